package audit

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"replaywatch/internal/config"
	"replaywatch/internal/models"
)

// Comparator runs filter, matcher and classifier over one pair of captures.
type Comparator struct {
	filter       *NoiseFilter
	matcher      *Matcher
	classifier   *Classifier
	scoreWorkers int
}

// NewComparator wires a comparator from its parts. scoreWorkers bounds how
// many archived records are scored concurrently; values below 1 mean 1.
func NewComparator(filter *NoiseFilter, matcher *Matcher, classifier *Classifier, scoreWorkers int) *Comparator {
	return &Comparator{
		filter:       filter,
		matcher:      matcher,
		classifier:   classifier,
		scoreWorkers: max(scoreWorkers, 1),
	}
}

// NewComparatorFromConfig builds a comparator from application settings.
func NewComparatorFromConfig(cfg *config.Config) *Comparator {
	return NewComparator(
		NewNoiseFilter(cfg.NoiseMarkers),
		NewMatcher(
			WithThreshold(cfg.Threshold),
			WithPolicy(cfg.MatchPolicy),
			WithCanonicalURLs(cfg.CanonicalizeURLs),
		),
		NewClassifier(cfg.RedirectCode),
		cfg.ScoreWorkers,
	)
}

type candidate struct {
	live  models.RequestRecord
	score int
	ok    bool
}

// Compare filters archived, matches each remaining record against the full
// live collection and aggregates the verdicts into a PairReport. Neither
// input is modified. The only error is cancellation of ctx.
func (c *Comparator) Compare(ctx context.Context, live, archived []models.RequestRecord) (models.PairReport, error) {
	kept, notices := c.filter.Filter(archived)

	// Scoring is independent per archived record; selection over the ordered
	// live slice happens inside FindBestMatch, so results stay deterministic.
	found := make([]candidate, len(kept))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.scoreWorkers)
	for i := range kept {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			m, s, ok := c.matcher.FindBestMatch(kept[i], live)
			found[i] = candidate{live: m, score: s, ok: ok}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return models.PairReport{}, fmt.Errorf("matching archived requests: %w", err)
	}

	report := models.PairReport{
		TotalArchived: len(kept),
		FilteredOut:   len(archived) - len(kept),
		Matches:       make([]models.MatchResult, 0, len(kept)),
	}

	for i, a := range kept {
		res := models.MatchResult{Archived: a}
		if !found[i].ok {
			res.Verdict = models.VerdictMissing
			report.MissingCount++
			notices = append(notices, models.Notice{
				Kind:           models.NoticeMissingMatch,
				Level:          slog.LevelInfo,
				Message:        "archived request not found in live capture",
				ArchivedURL:    a.URL,
				ArchivedStatus: a.StatusCode,
			})
			report.Matches = append(report.Matches, res)
			continue
		}

		l := found[i].live
		res.Live = &l
		res.Score = found[i].score
		res.Verdict = c.classifier.Classify(l, a)
		if res.Verdict == models.VerdictDisagree {
			report.DisagreementCount++
			notices = append(notices, models.Notice{
				Kind:           models.NoticeDisagreement,
				Level:          slog.LevelWarn,
				Message:        "status codes differ between live and archived request",
				LiveURL:        l.URL,
				LiveStatus:     l.StatusCode,
				ArchivedURL:    a.URL,
				ArchivedStatus: a.StatusCode,
			})
		}
		report.Matches = append(report.Matches, res)
	}

	report.CorrespondenceScore = correspondence(report.TotalArchived, report.MissingCount, report.DisagreementCount)
	if report.TotalArchived == 0 {
		notices = append(notices, models.Notice{
			Kind:    models.NoticeZeroRequests,
			Level:   slog.LevelWarn,
			Message: "no archived requests left to compare; correspondence defaults to 1",
			Detail:  fmt.Sprintf("%d removed as noise", report.FilteredOut),
		})
	}
	notices = append(notices, models.Notice{
		Kind:    models.NoticePairSummary,
		Level:   slog.LevelInfo,
		Message: summaryMessage(report),
	})
	report.Notices = notices
	return report, nil
}

// correspondence is the fraction of archived requests that matched and
// agreed. With nothing to compare there is nothing to disagree about.
func correspondence(total, missing, disagreements int) float64 {
	if total == 0 {
		return 1.0
	}
	return float64(total-missing-disagreements) / float64(total)
}

func summaryMessage(r models.PairReport) string {
	diffs := "no differences found"
	if r.DisagreementCount > 0 {
		diffs = fmt.Sprintf("%d differences between the live and archived sites", r.DisagreementCount)
	}
	missing := "no missing requests found"
	if r.MissingCount > 0 {
		missing = fmt.Sprintf("%d archived requests not present in the live site", r.MissingCount)
	}
	return fmt.Sprintf("%s; %s; correspondence %.4f", diffs, missing, r.CorrespondenceScore)
}
