// Package storetest holds behavior checks shared by every storage.Storer.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"replaywatch/internal/models"
	"replaywatch/internal/storage"
)

// Run exercises store against the Storer contract. The store must be empty.
func Run(t *testing.T, store storage.Storer) {
	t.Helper()
	ctx := context.Background()

	t.Run("run lifecycle", func(t *testing.T) {
		run := &models.Run{IndexPath: "index.csv", StartedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
		if err := store.CreateRun(ctx, run); err != nil {
			t.Fatalf("CreateRun() error: %v", err)
		}
		if run.ID == "" {
			t.Fatal("CreateRun() should assign an ID")
		}

		got, err := store.GetRunByID(ctx, run.ID)
		if err != nil {
			t.Fatalf("GetRunByID() error: %v", err)
		}
		if got.FinishedAt != nil || !got.StartedAt.Equal(run.StartedAt) {
			t.Errorf("unexpected unfinished run %+v", got)
		}

		finished := run.StartedAt.Add(90 * time.Second)
		run.FinishedAt = &finished
		run.Entries, run.Failed = 3, 1
		if err := store.FinishRun(ctx, run); err != nil {
			t.Fatalf("FinishRun() error: %v", err)
		}
		got, err = store.GetRunByID(ctx, run.ID)
		if err != nil {
			t.Fatalf("GetRunByID() error: %v", err)
		}
		if diff := cmp.Diff(run, got, cmpopts.EquateApproxTime(time.Microsecond)); diff != "" {
			t.Errorf("run mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("unknown run", func(t *testing.T) {
		if _, err := store.GetRunByID(ctx, "does-not-exist"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("GetRunByID() expected ErrNotFound, got %v", err)
		}
		err := store.FinishRun(ctx, &models.Run{ID: "does-not-exist"})
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("FinishRun() expected ErrNotFound, got %v", err)
		}
	})

	t.Run("list runs with keyset pagination", func(t *testing.T) {
		base := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
		var created []string
		for i := 0; i < 5; i++ {
			run := &models.Run{IndexPath: fmt.Sprintf("index-%d.csv", i), StartedAt: base.Add(time.Duration(i) * time.Minute)}
			if err := store.CreateRun(ctx, run); err != nil {
				t.Fatalf("CreateRun() error: %v", err)
			}
			created = append(created, run.ID)
		}

		var seen []string
		params := storage.ListRunsParams{AfterTime: base.Add(-time.Nanosecond), AfterID: "0", Limit: 2}
		for page := 0; page < 5; page++ {
			runs, err := store.ListRuns(ctx, params)
			if err != nil {
				t.Fatalf("ListRuns() error: %v", err)
			}
			for _, r := range runs {
				seen = append(seen, r.ID)
			}
			if len(runs) < params.Limit {
				break
			}
			last := runs[len(runs)-1]
			params.AfterTime, params.AfterID = last.StartedAt, last.ID
		}
		if diff := cmp.Diff(created, seen); diff != "" {
			t.Errorf("paged runs mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("outcomes", func(t *testing.T) {
		run := &models.Run{IndexPath: "outcomes.csv", StartedAt: time.Now().UTC()}
		if err := store.CreateRun(ctx, run); err != nil {
			t.Fatalf("CreateRun() error: %v", err)
		}

		live := models.RequestRecord{URL: "https://a.com/x", StatusCode: "200"}
		ok := models.EntryOutcome{
			Entry: models.IndexEntry{Position: 0, LiveURL: "https://a.com", ArchivedURL: "https://wayback/a.com", LiveCaptureRef: "a_live.csv", ArchivedCaptureRef: "a_arch.csv"},
			Report: &models.PairReport{
				TotalArchived:       2,
				FilteredOut:         1,
				MissingCount:        1,
				CorrespondenceScore: 0.5,
				Matches: []models.MatchResult{
					{Archived: models.RequestRecord{URL: "https://wayback/a.com/x", StatusCode: "200"}, Live: &live, Score: 100, Verdict: models.VerdictAgree},
					{Archived: models.RequestRecord{URL: "https://wayback/a.com/y", StatusCode: "200"}, Verdict: models.VerdictMissing},
				},
				Notices: []models.Notice{{Kind: models.NoticeMissingMatch, Level: slog.LevelInfo, Message: "missing", ArchivedURL: "https://wayback/a.com/y"}},
			},
			Notices: []models.Notice{{Kind: models.NoticeMalformedRecord, Level: slog.LevelWarn, Message: "a_arch.csv line 4"}},
		}
		failed := models.EntryOutcome{
			Entry: models.IndexEntry{Position: 1, LiveURL: "https://b.com", ArchivedURL: "https://wayback/b.com", LiveCaptureRef: "b_live.csv", ArchivedCaptureRef: "b_arch.csv"},
			Error: "missing input: archived capture b_arch.csv",
		}
		for _, o := range []models.EntryOutcome{ok, failed} {
			if err := store.SaveOutcome(ctx, run.ID, o); err != nil {
				t.Fatalf("SaveOutcome() error: %v", err)
			}
		}

		got, err := store.ListOutcomesByRunID(ctx, storage.ListOutcomesParams{RunID: run.ID, AfterPosition: -1, Limit: 10})
		if err != nil {
			t.Fatalf("ListOutcomesByRunID() error: %v", err)
		}
		if diff := cmp.Diff([]models.EntryOutcome{ok, failed}, got); diff != "" {
			t.Errorf("outcomes mismatch (-want +got):\n%s", diff)
		}

		got, err = store.ListOutcomesByRunID(ctx, storage.ListOutcomesParams{RunID: run.ID, AfterPosition: -1, FailedOnly: true, Limit: 10})
		if err != nil {
			t.Fatalf("ListOutcomesByRunID() error: %v", err)
		}
		if len(got) != 1 || got[0].Entry.Position != 1 {
			t.Errorf("expected only the failed entry, got %+v", got)
		}

		got, err = store.ListOutcomesByRunID(ctx, storage.ListOutcomesParams{RunID: run.ID, AfterPosition: 0, Limit: 10})
		if err != nil {
			t.Fatalf("ListOutcomesByRunID() error: %v", err)
		}
		if len(got) != 1 || got[0].Entry.Position != 1 {
			t.Errorf("expected entries after position 0, got %+v", got)
		}

		// Saving again replaces the stored outcome.
		retried := failed
		retried.Error = "timed out"
		if err := store.SaveOutcome(ctx, run.ID, retried); err != nil {
			t.Fatalf("SaveOutcome() error: %v", err)
		}
		got, _ = store.ListOutcomesByRunID(ctx, storage.ListOutcomesParams{RunID: run.ID, AfterPosition: 0, Limit: 10})
		if len(got) != 1 || got[0].Error != "timed out" {
			t.Errorf("expected the replaced outcome, got %+v", got)
		}
	})
}
