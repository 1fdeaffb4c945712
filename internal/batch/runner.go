// Package batch compares every pair named by an index file.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"replaywatch/internal/capture"
	"replaywatch/internal/logging"
	"replaywatch/internal/models"
)

// Comparer produces the report for one pair of captures.
type Comparer interface {
	Compare(ctx context.Context, live, archived []models.RequestRecord) (models.PairReport, error)
}

// Runner drives the comparator over an index.
type Runner struct {
	comparer       Comparer
	maxConcurrency int
	entryTimeout   time.Duration
	logger         *slog.Logger
}

// Option customizes a Runner.
type Option func(*Runner)

// WithConcurrency sets how many entries are compared at once.
func WithConcurrency(n int) Option {
	return func(r *Runner) { r.maxConcurrency = n }
}

// WithEntryTimeout bounds each entry; zero disables the bound.
func WithEntryTimeout(d time.Duration) Option {
	return func(r *Runner) { r.entryTimeout = d }
}

// WithLogger replaces the default "batch" component logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// New creates a Runner. Without options entries run one at a time.
func New(comparer Comparer, opts ...Option) *Runner {
	r := &Runner{comparer: comparer, maxConcurrency: 1}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logging.New("batch")
	}
	return r
}

// Run compares every entry and returns one outcome per entry in index order.
// A failing entry never affects the others.
func (r *Runner) Run(ctx context.Context, index []models.IndexEntry, live, archived capture.CaptureLoader) []models.EntryOutcome {
	r.logger.Info("starting comparison", "entries", len(index), "concurrency", r.maxConcurrency)

	pool := NewWorkerPool(r.maxConcurrency, len(index), func(e models.IndexEntry) models.EntryOutcome {
		return r.runEntry(ctx, e, live, archived)
	})
	for i, e := range index {
		pool.Submit(i, e)
	}
	outcomes := pool.Stop()

	failed := 0
	for _, o := range outcomes {
		if o.Failed() {
			failed++
		}
	}
	r.logger.Info("comparison finished", "entries", len(outcomes), "failed", failed)
	return outcomes
}

func (r *Runner) runEntry(ctx context.Context, e models.IndexEntry, live, archived capture.CaptureLoader) models.EntryOutcome {
	if r.entryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.entryTimeout)
		defer cancel()
	}
	logger := r.logger.With("entry", e.Position, "live_ref", e.LiveCaptureRef, "archived_ref", e.ArchivedCaptureRef)
	out := models.EntryOutcome{Entry: e}

	fail := func(err error) models.EntryOutcome {
		out.Err = err
		out.Error = err.Error()
		logging.LogNotice(logger, models.Notice{
			Kind:    models.NoticeEntryFailed,
			Level:   slog.LevelError,
			Message: "comparison failed",
			Detail:  err.Error(),
		})
		return out
	}

	load := func(l capture.CaptureLoader, ref string) ([]models.RequestRecord, error) {
		records, notices, err := l.Load(ctx, ref)
		for _, n := range notices {
			logging.LogNotice(logger, n)
		}
		out.Notices = append(out.Notices, notices...)
		return records, err
	}

	archivedRecords, err := load(archived, e.ArchivedCaptureRef)
	if err != nil {
		return fail(err)
	}
	liveRecords, err := load(live, e.LiveCaptureRef)
	if err != nil {
		return fail(err)
	}

	logger.Debug("comparing captures", "live", len(liveRecords), "archived", len(archivedRecords))
	report, err := r.comparer.Compare(ctx, liveRecords, archivedRecords)
	if err != nil {
		return fail(fmt.Errorf("comparing %s to %s: %w", e.LiveCaptureRef, e.ArchivedCaptureRef, err))
	}
	for _, n := range report.Notices {
		logging.LogNotice(logger, n)
	}
	out.Report = &report
	return out
}
