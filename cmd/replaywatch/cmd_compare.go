package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"replaywatch/internal/audit"
	"replaywatch/internal/batch"
	"replaywatch/internal/capture"
	"replaywatch/internal/config"
	"replaywatch/internal/logging"
	"replaywatch/internal/models"
	"replaywatch/internal/report"
)

type compareOptions struct {
	indexPath   string
	liveDir     string
	archivedDir string
	output      string
	failUnder   float64
	save        bool
	verbose     bool
}

var compareFlags struct {
	compareOptions
	threshold    int
	policy       string
	redirectCode string
	noiseMarkers []string
	workers      int
	canonicalize bool
	entryTimeout time.Duration
}

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare archived captures with live captures listed in an index",
	Long: `Reads an index CSV whose rows name a live capture and its archived
counterpart, compares every pair and prints one report per row.

Captures are CSV files with url and status_code columns, HAR files, or JSON
(array or one object per line).

Exit codes:
  0  every pair was compared and scored at least --fail-under
  1  one or more pairs scored below --fail-under
  2  one or more pairs could not be compared`,
	Example: `  replaywatch compare --index index.csv --live-dir live --archived-dir archived
  replaywatch compare --index index.csv --live-dir live --archived-dir archived --output junit > audit.xml`,
	RunE: runCompare,
}

func init() {
	f := compareCmd.Flags()
	f.StringVar(&compareFlags.indexPath, "index", "", "Index CSV file (required)")
	f.StringVar(&compareFlags.liveDir, "live-dir", ".", "Directory holding live captures")
	f.StringVar(&compareFlags.archivedDir, "archived-dir", ".", "Directory holding archived captures")
	f.StringVarP(&compareFlags.output, "output", "o", "text", "Output format: text, json, junit")
	f.Float64Var(&compareFlags.failUnder, "fail-under", 0, "Exit 1 when any correspondence score is below this (0-1)")
	f.BoolVar(&compareFlags.save, "save", false, "Persist the run to the configured database")
	f.BoolVarP(&compareFlags.verbose, "verbose", "v", false, "List every differing or missing request")

	f.IntVar(&compareFlags.threshold, "threshold", audit.DefaultThreshold, "Similarity score a live URL must exceed to match (0-100)")
	f.StringVar(&compareFlags.policy, "policy", config.PolicyFirst, "Match policy: first or best")
	f.StringVar(&compareFlags.redirectCode, "redirect-code", audit.DefaultRedirectCode, "Status code (live or archived) never counted as a disagreement; empty disables")
	f.StringSliceVar(&compareFlags.noiseMarkers, "noise-marker", nil, "Substring marking archive infrastructure URLs (repeatable)")
	f.IntVar(&compareFlags.workers, "workers", 0, "Index entries compared at once")
	f.BoolVar(&compareFlags.canonicalize, "canonicalize", false, "Canonicalize URLs before scoring")
	f.DurationVar(&compareFlags.entryTimeout, "entry-timeout", 0, "Time limit per index entry (0 for none)")

	_ = compareCmd.MarkFlagRequired("index")
}

func runCompare(cmd *cobra.Command, _ []string) error {
	cfg := *appConfig
	f := cmd.Flags()
	if f.Changed("threshold") {
		cfg.Threshold = compareFlags.threshold
	}
	if f.Changed("policy") {
		cfg.MatchPolicy = compareFlags.policy
	}
	if f.Changed("redirect-code") {
		cfg.RedirectCode = compareFlags.redirectCode
	}
	if f.Changed("noise-marker") {
		cfg.NoiseMarkers = compareFlags.noiseMarkers
	}
	if f.Changed("workers") {
		cfg.MaxConcurrency = compareFlags.workers
	}
	if f.Changed("canonicalize") {
		cfg.CanonicalizeURLs = compareFlags.canonicalize
	}
	if f.Changed("entry-timeout") {
		cfg.EntryTimeout = compareFlags.entryTimeout
	}

	code, err := executeCompare(cmd.Context(), &cfg, compareFlags.compareOptions, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	if code != report.ExitOK {
		return &exitError{code: code}
	}
	return nil
}

// executeCompare runs the batch described by opts and writes the report to
// out, returning the exit code for the outcomes.
func executeCompare(ctx context.Context, cfg *config.Config, opts compareOptions, out io.Writer) (int, error) {
	switch opts.output {
	case "text", "json", "junit":
	default:
		return 0, fmt.Errorf("invalid output format %q (must be text, json, or junit)", opts.output)
	}
	if err := cfg.Validate(); err != nil {
		return 0, fmt.Errorf("invalid configuration: %w", err)
	}
	logger := logging.New("compare")

	index, notices, err := capture.LoadIndex(opts.indexPath)
	if err != nil {
		return 0, err
	}
	for _, n := range notices {
		logging.LogNotice(logger, n)
	}

	runner := batch.New(audit.NewComparatorFromConfig(cfg),
		batch.WithConcurrency(cfg.MaxConcurrency),
		batch.WithEntryTimeout(cfg.EntryTimeout),
	)

	run := &models.Run{IndexPath: opts.indexPath, StartedAt: time.Now().UTC()}
	var store closableStore
	if opts.save {
		store, err = openStore(ctx, cfg)
		if err != nil {
			return 0, err
		}
		defer store.Close()
		if err := store.CreateRun(ctx, run); err != nil {
			return 0, err
		}
		logger.Info("recording run", "run_id", run.ID)
	}

	outcomes := runner.Run(ctx, index,
		capture.NewDirLoader(opts.liveDir, models.OriginLive),
		capture.NewDirLoader(opts.archivedDir, models.OriginArchived),
	)

	if store != nil {
		if err := saveRun(ctx, store, run, outcomes); err != nil {
			return 0, err
		}
	}

	switch opts.output {
	case "json":
		color := false
		if f, ok := out.(*os.File); ok {
			color = isatty.IsTerminal(f.Fd())
		}
		if err := report.PrintJSON(out, outcomes, opts.failUnder, color); err != nil {
			return 0, fmt.Errorf("writing JSON: %w", err)
		}
	case "junit":
		if err := report.PrintJUnit(out, outcomes); err != nil {
			return 0, fmt.Errorf("writing JUnit XML: %w", err)
		}
	default:
		report.PrintText(out, outcomes, opts.failUnder, opts.verbose)
		if store != nil {
			fmt.Fprintf(out, "Run: %s\n", run.ID)
		}
	}

	return report.ExitCode(outcomes, opts.failUnder), nil
}

func saveRun(ctx context.Context, store closableStore, run *models.Run, outcomes []models.EntryOutcome) error {
	for _, o := range outcomes {
		if err := store.SaveOutcome(ctx, run.ID, o); err != nil {
			return err
		}
		if o.Failed() {
			run.Failed++
		}
	}
	finished := time.Now().UTC()
	run.FinishedAt = &finished
	run.Entries = len(outcomes)
	return store.FinishRun(ctx, run)
}
