// Package report renders batch outcomes as text, JSON or JUnit XML.
package report

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/tidwall/pretty"

	"replaywatch/internal/models"
	"replaywatch/internal/urlutil"
)

// Exit codes returned by ExitCode.
const (
	ExitOK          = 0
	ExitBelowTarget = 1
	ExitFailed      = 2
)

// Summary aggregates a batch.
type Summary struct {
	Entries       int     `json:"entries"`
	Compared      int     `json:"compared"`
	Failed        int     `json:"failed"`
	BelowTarget   int     `json:"below_target"`
	Archived      int     `json:"archived_requests"`
	Matched       int     `json:"matched"`
	FilteredOut   int     `json:"filtered_out"`
	Disagreements int     `json:"disagreements"`
	Missing       int     `json:"missing"`
	MeanScore     float64 `json:"mean_correspondence"`

	// Statuses counts archived requests by status code across compared entries.
	Statuses map[string]int `json:"archived_statuses"`
}

// Summarize totals outcomes. An entry is below target when its score is
// under failUnder.
func Summarize(outcomes []models.EntryOutcome, failUnder float64) Summary {
	s := Summary{Entries: len(outcomes), Statuses: map[string]int{}}
	var total float64
	for _, o := range outcomes {
		if o.Report == nil {
			s.Failed++
			continue
		}
		r := o.Report
		s.Compared++
		s.Archived += r.TotalArchived
		s.Matched += r.Matched()
		s.FilteredOut += r.FilteredOut
		s.Disagreements += r.DisagreementCount
		s.Missing += r.MissingCount
		total += r.CorrespondenceScore
		for _, m := range r.Matches {
			s.Statuses[m.Archived.StatusCode]++
		}
		if r.CorrespondenceScore < failUnder {
			s.BelowTarget++
		}
	}
	if s.Compared > 0 {
		s.MeanScore = total / float64(s.Compared)
	}
	return s
}

// ExitCode maps outcomes to the process exit status: 2 when any entry
// failed, 1 when any score is below failUnder, 0 otherwise.
func ExitCode(outcomes []models.EntryOutcome, failUnder float64) int {
	s := Summarize(outcomes, failUnder)
	switch {
	case s.Failed > 0:
		return ExitFailed
	case s.BelowTarget > 0:
		return ExitBelowTarget
	default:
		return ExitOK
	}
}

// PrintText outputs outcomes in human-readable format.
func PrintText(w io.Writer, outcomes []models.EntryOutcome, failUnder float64, verbose bool) {
	for _, o := range outcomes {
		name := entryName(o.Entry)
		if o.Report == nil {
			fmt.Fprintf(w, "✗ [%d] %-30s error\n", o.Entry.Position, truncate(name, 30))
			fmt.Fprintf(w, "  └ %s\n", o.Error)
			continue
		}

		r := o.Report
		icon := "✓"
		if r.CorrespondenceScore < failUnder {
			icon = "✗"
		}
		fmt.Fprintf(w, "%s [%d] %-30s %6.1f%%  %s archived, %s matched, %s noise, %s differ, %s missing\n",
			icon, o.Entry.Position, truncate(name, 30), r.CorrespondenceScore*100,
			humanize.Comma(int64(r.TotalArchived)), humanize.Comma(int64(r.Matched())), humanize.Comma(int64(r.FilteredOut)),
			humanize.Comma(int64(r.DisagreementCount)), humanize.Comma(int64(r.MissingCount)))

		if !verbose {
			continue
		}
		for _, m := range r.Matches {
			switch m.Verdict {
			case models.VerdictDisagree:
				fmt.Fprintf(w, "  ≠ %s %s (live %s, score %d)\n", m.Archived.StatusCode, m.Archived.URL, m.Live.StatusCode, m.Score)
			case models.VerdictMissing:
				fmt.Fprintf(w, "  ? %s %s\n", m.Archived.StatusCode, m.Archived.URL)
			}
		}
		for _, n := range o.Notices {
			fmt.Fprintf(w, "  [%s] %s\n", n.Kind, n.Message)
		}
	}

	s := Summarize(outcomes, failUnder)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Entries: %s total, %s failed, %s below %.0f%%\n",
		humanize.Comma(int64(s.Entries)), humanize.Comma(int64(s.Failed)), humanize.Comma(int64(s.BelowTarget)), failUnder*100)
	if s.Compared > 0 {
		fmt.Fprintf(w, "Archived requests: %s compared, %s matched, %s noise, %s differ, %s missing\n",
			humanize.Comma(int64(s.Archived)), humanize.Comma(int64(s.Matched)), humanize.Comma(int64(s.FilteredOut)),
			humanize.Comma(int64(s.Disagreements)), humanize.Comma(int64(s.Missing)))
		fmt.Fprintf(w, "Mean correspondence: %.1f%%\n", s.MeanScore*100)
	}
	if len(s.Statuses) > 0 {
		fmt.Fprintf(w, "Archived statuses: %s\n", formatStatuses(s.Statuses))
	}
}

// formatStatuses renders counts as "200×12, 404×3", ordered by code.
func formatStatuses(counts map[string]int) string {
	codes := make([]string, 0, len(counts))
	for c := range counts {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = fmt.Sprintf("%s×%s", c, humanize.Comma(int64(counts[c])))
	}
	return strings.Join(parts, ", ")
}

type jsonReport struct {
	Summary Summary               `json:"summary"`
	Entries []models.EntryOutcome `json:"entries"`
}

// PrintJSON outputs outcomes and their summary as indented JSON. With color
// set the output carries terminal color codes.
func PrintJSON(w io.Writer, outcomes []models.EntryOutcome, failUnder float64, color bool) error {
	if outcomes == nil {
		outcomes = []models.EntryOutcome{}
	}
	b, err := json.Marshal(jsonReport{Summary: Summarize(outcomes, failUnder), Entries: outcomes})
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	b = pretty.Pretty(b)
	if color {
		b = pretty.Color(b, nil)
	}
	_, err = w.Write(b)
	return err
}

// junitTestSuites is the root JUnit XML element.
type junitTestSuites struct {
	XMLName xml.Name         `xml:"testsuites"`
	Suites  []junitTestSuite `xml:"testsuite"`
}

type junitTestSuite struct {
	XMLName  xml.Name        `xml:"testsuite"`
	Name     string          `xml:"name,attr"`
	Tests    int             `xml:"tests,attr"`
	Failures int             `xml:"failures,attr"`
	Errors   int             `xml:"errors,attr"`
	Cases    []junitTestCase `xml:"testcase"`
}

type junitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Failure   *junitFailure `xml:"failure,omitempty"`
	Error     *junitError   `xml:"error,omitempty"`
}

type junitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Content string `xml:",chardata"`
}

type junitError struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Content string `xml:",chardata"`
}

// PrintJUnit outputs one testsuite per entry and one testcase per archived
// request, for CI.
func PrintJUnit(w io.Writer, outcomes []models.EntryOutcome) error {
	suites := junitTestSuites{}

	for _, o := range outcomes {
		name := entryName(o.Entry)
		suite := junitTestSuite{Name: fmt.Sprintf("%d %s", o.Entry.Position, name)}

		if o.Report == nil {
			suite.Tests = 1
			suite.Errors = 1
			suite.Cases = append(suite.Cases, junitTestCase{
				Name:      o.Entry.ArchivedCaptureRef,
				ClassName: name,
				Error: &junitError{
					Message: o.Error,
					Type:    "EntryFailed",
					Content: o.Error,
				},
			})
			suites.Suites = append(suites.Suites, suite)
			continue
		}

		suite.Tests = len(o.Report.Matches)
		for _, m := range o.Report.Matches {
			tc := junitTestCase{Name: m.Archived.URL, ClassName: name}
			switch m.Verdict {
			case models.VerdictDisagree:
				suite.Failures++
				msg := fmt.Sprintf("archived %s, live %s", m.Archived.StatusCode, m.Live.StatusCode)
				tc.Failure = &junitFailure{Message: msg, Type: "StatusDisagreement", Content: m.Live.URL}
			case models.VerdictMissing:
				suite.Failures++
				tc.Failure = &junitFailure{Message: "no live counterpart", Type: "MissingRequest", Content: m.Archived.URL}
			}
			suite.Cases = append(suite.Cases, tc)
		}
		suites.Suites = append(suites.Suites, suite)
	}

	fmt.Fprint(w, xml.Header)
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(suites); err != nil {
		return err
	}
	fmt.Fprintln(w)
	return nil
}

// entryName labels an entry by its live host, falling back to the capture
// reference.
func entryName(e models.IndexEntry) string {
	if h := urlutil.Host(e.LiveURL); h != "" {
		return h
	}
	return e.LiveCaptureRef
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
