package report

import (
	"bytes"
	"encoding/xml"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
	"github.com/tidwall/gjson"

	"replaywatch/internal/models"
)

func sampleOutcomes() []models.EntryOutcome {
	live := models.RequestRecord{URL: "https://a.com/app.js", StatusCode: "404"}
	return []models.EntryOutcome{
		{
			Entry: models.IndexEntry{Position: 0, LiveURL: "https://A.com/", LiveCaptureRef: "a_live.csv", ArchivedCaptureRef: "a_arch.csv"},
			Report: &models.PairReport{
				TotalArchived:       3,
				FilteredOut:         1,
				DisagreementCount:   1,
				MissingCount:        1,
				CorrespondenceScore: 1.0 / 3,
				Matches: []models.MatchResult{
					{Archived: models.RequestRecord{URL: "https://wb/a.com/", StatusCode: "200"}, Live: &models.RequestRecord{URL: "https://a.com/", StatusCode: "200"}, Score: 100, Verdict: models.VerdictAgree},
					{Archived: models.RequestRecord{URL: "https://wb/a.com/app.js", StatusCode: "200"}, Live: &live, Score: 100, Verdict: models.VerdictDisagree},
					{Archived: models.RequestRecord{URL: "https://wb/a.com/gone.css", StatusCode: "200"}, Verdict: models.VerdictMissing},
				},
			},
		},
		{
			Entry: models.IndexEntry{Position: 1, LiveCaptureRef: "b_live.csv", ArchivedCaptureRef: "b_arch.csv"},
			Error: "missing input: archived capture b_arch.csv",
		},
		{
			Entry:  models.IndexEntry{Position: 2, LiveURL: "https://c.com", LiveCaptureRef: "c_live.csv", ArchivedCaptureRef: "c_arch.csv"},
			Report: &models.PairReport{CorrespondenceScore: 1.0},
		},
	}
}

func TestSummarizeAndExitCode(t *testing.T) {
	outcomes := sampleOutcomes()
	s := Summarize(outcomes, 0.5)
	if s.Entries != 3 || s.Compared != 2 || s.Failed != 1 || s.BelowTarget != 1 {
		t.Errorf("unexpected summary %+v", s)
	}
	if s.Archived != 3 || s.Matched != 2 || s.Disagreements != 1 || s.Missing != 1 || s.FilteredOut != 1 {
		t.Errorf("unexpected totals %+v", s)
	}
	if diff := cmp.Diff(map[string]int{"200": 3}, s.Statuses); diff != "" {
		t.Errorf("status counts mismatch (-want +got):\n%s", diff)
	}

	tests := []struct {
		name      string
		outcomes  []models.EntryOutcome
		failUnder float64
		want      int
	}{
		{"failed entry wins", outcomes, 0.5, ExitFailed},
		{"below target", outcomes[:1], 0.5, ExitBelowTarget},
		{"all clear", outcomes[:1], 0.3, ExitOK},
		{"perfect score never below target", outcomes[2:], 1.0, ExitOK},
		{"empty batch", nil, 1.0, ExitOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.outcomes, tt.failUnder); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPrintText(t *testing.T) {
	var buf bytes.Buffer
	PrintText(&buf, sampleOutcomes(), 0.5, true)
	out := buf.String()

	for _, want := range []string{
		"✗ [0] a.com",
		"33.3%  3 archived, 2 matched, 1 noise, 1 differ, 1 missing",
		"≠ 200 https://wb/a.com/app.js (live 404, score 100)",
		"? 200 https://wb/a.com/gone.css",
		"✗ [1] b_live.csv",
		"└ missing input: archived capture b_arch.csv",
		"✓ [2] c.com",
		"Entries: 3 total, 1 failed, 1 below 50%",
		"Archived requests: 3 compared, 2 matched, 1 noise, 1 differ, 1 missing",
		"Mean correspondence: 66.7%",
		"Archived statuses: 200×3",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}

	buf.Reset()
	PrintText(&buf, sampleOutcomes(), 0.5, false)
	if strings.Contains(buf.String(), "gone.css") {
		t.Error("match details should only appear in verbose mode")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"a.com", 30, "a.com"},
		{"abcdefghij", 8, "abcde..."},
		{"пример-очень-длинного-имени.рф", 10, "пример-..."},
	}
	for _, tt := range tests {
		got := truncate(tt.in, tt.max)
		if got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("truncate(%q, %d) produced invalid UTF-8", tt.in, tt.max)
		}
	}
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := PrintJSON(&buf, sampleOutcomes(), 0.5, false); err != nil {
		t.Fatalf("PrintJSON() error: %v", err)
	}
	out := buf.Bytes()
	if !gjson.ValidBytes(out) {
		t.Fatalf("invalid JSON:\n%s", out)
	}
	if got := gjson.GetBytes(out, "summary.failed").Int(); got != 1 {
		t.Errorf("summary.failed = %d, want 1", got)
	}
	if got := gjson.GetBytes(out, "entries.#").Int(); got != 3 {
		t.Errorf("entries = %d, want 3", got)
	}
	if got := gjson.GetBytes(out, "entries.1.error").String(); !strings.Contains(got, "b_arch.csv") {
		t.Errorf("entries.1.error = %q", got)
	}
	if got := gjson.GetBytes(out, "entries.0.report.matches.2.verdict").String(); got != "missing" {
		t.Errorf("verdict = %q, want missing", got)
	}
	if !bytes.Contains(out, []byte("\n  ")) {
		t.Error("expected indented output")
	}

	buf.Reset()
	if err := PrintJSON(&buf, nil, 1, false); err != nil {
		t.Fatalf("PrintJSON() error: %v", err)
	}
	if got := gjson.GetBytes(buf.Bytes(), "entries").Raw; got != "[]" {
		t.Errorf("empty batch should render an empty list, got %s", got)
	}
}

func TestPrintJUnit(t *testing.T) {
	var buf bytes.Buffer
	if err := PrintJUnit(&buf, sampleOutcomes()); err != nil {
		t.Fatalf("PrintJUnit() error: %v", err)
	}
	if !strings.HasPrefix(buf.String(), xml.Header) {
		t.Error("missing XML header")
	}

	var got junitTestSuites
	if err := xml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not valid XML: %v", err)
	}
	if len(got.Suites) != 3 {
		t.Fatalf("expected 3 suites, got %d", len(got.Suites))
	}

	first := got.Suites[0]
	if first.Name != "0 a.com" || first.Tests != 3 || first.Failures != 2 || first.Errors != 0 {
		t.Errorf("unexpected first suite %+v", first)
	}
	if first.Cases[1].Failure == nil || first.Cases[1].Failure.Type != "StatusDisagreement" {
		t.Errorf("expected a status disagreement failure, got %+v", first.Cases[1])
	}
	if first.Cases[2].Failure == nil || first.Cases[2].Failure.Type != "MissingRequest" {
		t.Errorf("expected a missing request failure, got %+v", first.Cases[2])
	}

	second := got.Suites[1]
	if second.Errors != 1 || second.Cases[0].Error == nil {
		t.Errorf("failed entry should be a JUnit error, got %+v", second)
	}
	if got.Suites[2].Tests != 0 {
		t.Errorf("entry without archived requests has no cases, got %+v", got.Suites[2])
	}
}
