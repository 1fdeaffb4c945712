package audit

import (
	"strings"

	"replaywatch/internal/models"
)

// DefaultRedirectCode is the status never counted as a disagreement.
const DefaultRedirectCode = "302"

// Classifier decides whether a matched pair agrees on its outcome.
type Classifier struct {
	redirectCode string
}

// NewClassifier creates a classifier exempting redirectCode.
// An empty code disables the exemption.
func NewClassifier(redirectCode string) *Classifier {
	return &Classifier{redirectCode: strings.TrimSpace(redirectCode)}
}

// Classify returns VerdictAgree when the status codes are equal or either one
// is the redirect code, and VerdictDisagree otherwise.
func (c *Classifier) Classify(live, archived models.RequestRecord) models.Verdict {
	ls, as := strings.TrimSpace(live.StatusCode), strings.TrimSpace(archived.StatusCode)
	if ls == as {
		return models.VerdictAgree
	}
	if c.redirectCode != "" && (ls == c.redirectCode || as == c.redirectCode) {
		return models.VerdictAgree
	}
	return models.VerdictDisagree
}
