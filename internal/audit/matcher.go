package audit

import (
	"replaywatch/internal/config"
	"replaywatch/internal/models"
	"replaywatch/internal/similarity"
	"replaywatch/internal/urlutil"
)

// DefaultThreshold is the similarity a candidate must exceed to match.
const DefaultThreshold = 90

// Matcher pairs an archived request with a live one by URL similarity.
type Matcher struct {
	threshold    int
	policy       string
	canonicalize bool
}

// MatcherOption customizes a Matcher.
type MatcherOption func(*Matcher)

// WithThreshold sets the score a candidate must exceed.
func WithThreshold(threshold int) MatcherOption {
	return func(m *Matcher) { m.threshold = threshold }
}

// WithPolicy selects config.PolicyFirst or config.PolicyBest.
func WithPolicy(policy string) MatcherOption {
	return func(m *Matcher) { m.policy = policy }
}

// WithCanonicalURLs scores urlutil.MatchKey forms instead of raw URLs.
func WithCanonicalURLs(enabled bool) MatcherOption {
	return func(m *Matcher) { m.canonicalize = enabled }
}

// NewMatcher returns a first-above-threshold matcher at DefaultThreshold
// unless options say otherwise.
func NewMatcher(opts ...MatcherOption) *Matcher {
	m := &Matcher{threshold: DefaultThreshold, policy: config.PolicyFirst}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Score returns the similarity of two URLs on the 0-100 scale.
func (m *Matcher) Score(a, b string) int {
	if m.canonicalize {
		a, b = urlutil.MatchKey(a), urlutil.MatchKey(b)
	}
	return similarity.PartialRatio(a, b)
}

// Clears reports whether score is good enough to count as a match. A perfect
// score always clears so identical URLs match even at threshold 100.
func (m *Matcher) Clears(score int) bool {
	return score > m.threshold || score == similarity.MaxScore
}

// FindBestMatch looks for target's counterpart among candidates, which are
// visited in slice order. Under the first policy the earliest candidate that
// clears the threshold wins. Under the best policy the highest score wins;
// equal scores go to the candidate closest to target over the whole string,
// then to the earliest. ok is false when nothing clears.
func (m *Matcher) FindBestMatch(target models.RequestRecord, candidates []models.RequestRecord) (match models.RequestRecord, score int, ok bool) {
	best, closeness := -1, 0
	for i, c := range candidates {
		s := m.Score(target.URL, c.URL)
		if !m.Clears(s) {
			continue
		}
		if m.policy != config.PolicyBest {
			return c, s, true
		}
		if best >= 0 && s < score {
			continue
		}
		// A URL contained in another scores MaxScore however much longer the
		// other is, so the full-string ratio separates a site root from
		// the exact resource.
		r := m.closeness(target.URL, c.URL)
		if best < 0 || s > score || r > closeness {
			best, score, closeness = i, s, r
		}
	}
	if best < 0 {
		return models.RequestRecord{}, 0, false
	}
	return candidates[best], score, true
}

func (m *Matcher) closeness(a, b string) int {
	if m.canonicalize {
		a, b = urlutil.MatchKey(a), urlutil.MatchKey(b)
	}
	return similarity.Ratio(a, b)
}
