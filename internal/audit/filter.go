// Package audit matches archived request captures against live ones and
// scores how faithfully the archive reproduced the live site.
package audit

import (
	"fmt"
	"log/slog"
	"strings"

	"replaywatch/internal/models"
)

// DefaultNoiseMarkers are hosts that only the archiving system requests.
var DefaultNoiseMarkers = []string{"partner.archive-it.org"}

// NoiseFilter drops records produced by archiving infrastructure.
type NoiseFilter struct {
	markers []string
}

// NewNoiseFilter creates a filter for the given markers. Matching ignores case.
func NewNoiseFilter(markers []string) *NoiseFilter {
	f := &NoiseFilter{}
	for _, m := range markers {
		if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
			f.markers = append(f.markers, m)
		}
	}
	return f
}

// IsNoise reports whether url belongs to archiving infrastructure.
func (f *NoiseFilter) IsNoise(url string) bool {
	lower := strings.ToLower(url)
	for _, m := range f.markers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// Filter returns the records that are not noise, in their original order,
// and one notice per removed record. The input slice is not modified.
func (f *NoiseFilter) Filter(records []models.RequestRecord) ([]models.RequestRecord, []models.Notice) {
	kept := make([]models.RequestRecord, 0, len(records))
	var notices []models.Notice
	for _, r := range records {
		if f.IsNoise(r.URL) {
			notices = append(notices, models.Notice{
				Kind:    models.NoticeNoiseRemoved,
				Level:   slog.LevelDebug,
				Message: fmt.Sprintf("removing %s from network requests", r.URL),
				URL:     r.URL,
			})
			continue
		}
		kept = append(kept, r)
	}
	return kept, notices
}
