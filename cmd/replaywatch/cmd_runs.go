package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"replaywatch/internal/models"
	"replaywatch/internal/report"
	"replaywatch/internal/storage"
)

var runsFlags struct {
	limit     int
	output    string
	failUnder float64
	verbose   bool
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List runs recorded with compare --save",
	RunE:  runRuns,
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print the stored reports of one run",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

func init() {
	runsCmd.Flags().IntVar(&runsFlags.limit, "limit", 20, "Maximum number of runs to list")

	f := runsShowCmd.Flags()
	f.StringVarP(&runsFlags.output, "output", "o", "text", "Output format: text, json, junit")
	f.Float64Var(&runsFlags.failUnder, "fail-under", 0, "Mark entries scoring below this (0-1)")
	f.BoolVarP(&runsFlags.verbose, "verbose", "v", false, "List every differing or missing request")

	runsCmd.AddCommand(runsShowCmd)
}

func runRuns(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	store, err := openStore(ctx, appConfig)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(ctx, storage.ListRunsParams{Limit: runsFlags.limit})
	if err != nil {
		return err
	}
	printRuns(cmd.OutOrStdout(), runs, time.Now())
	return nil
}

func printRuns(w io.Writer, runs []models.Run, now time.Time) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded. Use 'replaywatch compare --save' to record one.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tINDEX\tSTARTED\tDURATION\tENTRIES\tFAILED")
	for _, r := range runs {
		duration := "running"
		if r.FinishedAt != nil {
			duration = r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", r.ID, r.IndexPath,
			humanize.RelTime(r.StartedAt, now, "ago", "from now"), duration,
			humanize.Comma(int64(r.Entries)), humanize.Comma(int64(r.Failed)))
	}
	tw.Flush()
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, err := openStore(ctx, appConfig)
	if err != nil {
		return err
	}
	defer store.Close()

	run, err := store.GetRunByID(ctx, args[0])
	if err != nil {
		return fmt.Errorf("run %s: %w", args[0], err)
	}

	var outcomes []models.EntryOutcome
	params := storage.ListOutcomesParams{RunID: run.ID, AfterPosition: -1, Limit: 500}
	for {
		page, err := store.ListOutcomesByRunID(ctx, params)
		if err != nil {
			return err
		}
		outcomes = append(outcomes, page...)
		if len(page) < params.Limit {
			break
		}
		params.AfterPosition = page[len(page)-1].Entry.Position
	}

	out := cmd.OutOrStdout()
	switch runsFlags.output {
	case "json":
		return report.PrintJSON(out, outcomes, runsFlags.failUnder, false)
	case "junit":
		return report.PrintJUnit(out, outcomes)
	case "text":
		fmt.Fprintf(out, "Run %s (%s)\n\n", run.ID, run.IndexPath)
		report.PrintText(out, outcomes, runsFlags.failUnder, runsFlags.verbose)
		return nil
	default:
		return fmt.Errorf("invalid output format %q (must be text, json, or junit)", runsFlags.output)
	}
}
