package capture

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"replaywatch/internal/models"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestReadIndex(t *testing.T) {
	input := `current_url,archive_url,current_file,archive_file
https://a.com,https://wayback.archive-it.org/1/2020/https://a.com,a_live.csv,a_arch.csv
https://b.com,https://wayback.archive-it.org/1/2020/https://b.com,b_live.csv
 https://c.com , https://wayback.archive-it.org/1/2020/https://c.com , c_live.har , c_arch.har ,extra
`
	entries, notices, err := ReadIndex(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadIndex() error: %v", err)
	}

	want := []models.IndexEntry{
		{
			Position:           0,
			LiveURL:            "https://a.com",
			ArchivedURL:        "https://wayback.archive-it.org/1/2020/https://a.com",
			LiveCaptureRef:     "a_live.csv",
			ArchivedCaptureRef: "a_arch.csv",
		},
		{
			Position:           1,
			LiveURL:            "https://c.com",
			ArchivedURL:        "https://wayback.archive-it.org/1/2020/https://c.com",
			LiveCaptureRef:     "c_live.har",
			ArchivedCaptureRef: "c_arch.har",
		},
	}
	if diff := cmp.Diff(want, entries); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}
	if len(notices) != 1 || notices[0].Kind != models.NoticeMalformedRecord {
		t.Fatalf("expected one malformed notice, got %+v", notices)
	}
	if !strings.Contains(notices[0].Message, "index line 3") {
		t.Errorf("notice should name the line, got %q", notices[0].Message)
	}
}

func TestReadIndexSkipsUnparsableRow(t *testing.T) {
	input := "current_url,archive_url,current_file,archive_file\n" +
		"https://a.com,https://wayback.archive-it.org/1/2020/https://a.com,a_live.csv,a_arch.csv\n" +
		"https://b.com,https://x/b\"q,b_live.csv,b_arch.csv\n" +
		"https://c.com,https://wayback.archive-it.org/1/2020/https://c.com,c_live.csv,c_arch.csv\n"

	entries, notices, err := ReadIndex(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadIndex() error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected the two parsable rows, got %+v", entries)
	}
	if entries[0].LiveCaptureRef != "a_live.csv" || entries[1].LiveCaptureRef != "c_live.csv" || entries[1].Position != 1 {
		t.Errorf("unexpected entries %+v", entries)
	}
	if len(notices) != 1 || notices[0].Kind != models.NoticeMalformedRecord {
		t.Fatalf("expected one malformed notice, got %+v", notices)
	}
	if !strings.Contains(notices[0].Message, "index line 3") {
		t.Errorf("notice should name the line, got %q", notices[0].Message)
	}
}

func TestReadIndexEmpty(t *testing.T) {
	entries, _, err := ReadIndex(strings.NewReader(""))
	if err != nil || len(entries) != 0 {
		t.Errorf("empty index: entries=%v err=%v", entries, err)
	}
	entries, _, err = ReadIndex(strings.NewReader("a,b,c,d\n"))
	if err != nil || len(entries) != 0 {
		t.Errorf("header-only index: entries=%v err=%v", entries, err)
	}
}

func TestLoadIndexMissingFile(t *testing.T) {
	_, _, err := LoadIndex(filepath.Join(t.TempDir(), "nope.csv"))
	if !errors.Is(err, ErrMissingInput) {
		t.Errorf("expected ErrMissingInput, got %v", err)
	}
}

func TestDirLoader(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	t.Run("csv with extra columns", func(t *testing.T) {
		writeFile(t, dir, "live.csv", "\ufefftimestamp,URL,method,status_code\n"+
			"1,https://a.com/,GET,200\n"+
			"2,https://a.com/app.js,GET,404\n"+
			"3,,GET,200\n"+
			"4,https://a.com/short\n"+
			"5,https://a.com/err,GET,URLError\n")

		records, notices, err := NewDirLoader(dir, models.OriginLive).Load(ctx, "live.csv")
		if err != nil {
			t.Fatalf("Load() error: %v", err)
		}
		want := []models.RequestRecord{
			{URL: "https://a.com/", StatusCode: "200", Origin: models.OriginLive},
			{URL: "https://a.com/app.js", StatusCode: "404", Origin: models.OriginLive},
			{URL: "https://a.com/err", StatusCode: "URLError", Origin: models.OriginLive},
		}
		if diff := cmp.Diff(want, records); diff != "" {
			t.Errorf("records mismatch (-want +got):\n%s", diff)
		}
		if len(notices) != 2 {
			t.Errorf("expected 2 malformed notices, got %d: %+v", len(notices), notices)
		}
	})

	t.Run("csv with an unparsable row", func(t *testing.T) {
		writeFile(t, dir, "quote.csv", "url,status_code\n"+
			"https://a.com/1,200\n"+
			"https://a.com/b\"ad,200\n"+
			"https://a.com/3,404\n")

		records, notices, err := NewDirLoader(dir, models.OriginLive).Load(ctx, "quote.csv")
		if err != nil {
			t.Fatalf("Load() error: %v", err)
		}
		want := []models.RequestRecord{
			{URL: "https://a.com/1", StatusCode: "200", Origin: models.OriginLive},
			{URL: "https://a.com/3", StatusCode: "404", Origin: models.OriginLive},
		}
		if diff := cmp.Diff(want, records); diff != "" {
			t.Errorf("records mismatch (-want +got):\n%s", diff)
		}
		if len(notices) != 1 || !strings.Contains(notices[0].Message, "quote.csv line 3") {
			t.Errorf("expected one notice naming line 3, got %+v", notices)
		}
	})

	t.Run("csv with an unterminated quote", func(t *testing.T) {
		writeFile(t, dir, "open.csv", "url,status_code\n"+
			"https://a.com/1,200\n"+
			"\"https://a.com/2,200\n"+
			"https://a.com/3,404\n")

		records, notices, err := NewDirLoader(dir, models.OriginLive).Load(ctx, "open.csv")
		if err != nil {
			t.Fatalf("Load() error: %v", err)
		}
		if len(records) != 1 || records[0].URL != "https://a.com/1" {
			t.Errorf("unexpected records %+v", records)
		}
		if len(notices) != 1 {
			t.Fatalf("expected one notice, got %+v", notices)
		}
		if !strings.Contains(notices[0].Message, "open.csv line 3") || !strings.Contains(notices[0].Detail, "lines 3-4 dropped") {
			t.Errorf("notice should name the swallowed lines, got %+v", notices[0])
		}
	})

	t.Run("csv without required columns", func(t *testing.T) {
		writeFile(t, dir, "bad.csv", "address,code\nhttps://a.com,200\n")
		_, _, err := NewDirLoader(dir, models.OriginArchived).Load(ctx, "bad.csv")
		if !errors.Is(err, ErrMissingInput) {
			t.Errorf("expected ErrMissingInput, got %v", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, _, err := NewDirLoader(dir, models.OriginArchived).Load(ctx, "absent.csv")
		if !errors.Is(err, ErrMissingInput) {
			t.Errorf("expected ErrMissingInput, got %v", err)
		}
		if err == nil || !strings.Contains(err.Error(), "archived capture absent.csv") {
			t.Errorf("error should name the capture, got %v", err)
		}
	})

	t.Run("har", func(t *testing.T) {
		writeFile(t, dir, "arch.har", `{"log":{"version":"1.2","entries":[
			{"request":{"method":"GET","url":"https://wayback.archive-it.org/1/2020/https://a.com/"},"response":{"status":200}},
			{"request":{"method":"GET","url":"https://wayback.archive-it.org/1/2020/https://a.com/x.js"},"response":{"status":0}},
			{"request":{"method":"GET"},"response":{"status":200}},
			{"request":{"method":"GET","url":"https://partner.archive-it.org/b.js"},"response":{"status":302}}
		]}}`)

		records, notices, err := NewDirLoader(dir, models.OriginArchived).Load(ctx, "arch.har")
		if err != nil {
			t.Fatalf("Load() error: %v", err)
		}
		want := []models.RequestRecord{
			{URL: "https://wayback.archive-it.org/1/2020/https://a.com/", StatusCode: "200", Origin: models.OriginArchived},
			{URL: "https://wayback.archive-it.org/1/2020/https://a.com/x.js", StatusCode: URLErrorStatus, Origin: models.OriginArchived},
			{URL: "https://partner.archive-it.org/b.js", StatusCode: "302", Origin: models.OriginArchived},
		}
		if diff := cmp.Diff(want, records); diff != "" {
			t.Errorf("records mismatch (-want +got):\n%s", diff)
		}
		if len(notices) != 1 {
			t.Errorf("expected 1 malformed notice, got %d", len(notices))
		}
	})

	t.Run("invalid har", func(t *testing.T) {
		writeFile(t, dir, "broken.har", `{"log":`)
		if _, _, err := NewDirLoader(dir, models.OriginLive).Load(ctx, "broken.har"); !errors.Is(err, ErrMissingInput) {
			t.Errorf("expected ErrMissingInput, got %v", err)
		}
		writeFile(t, dir, "noentries.har", `{"log":{"version":"1.2"}}`)
		if _, _, err := NewDirLoader(dir, models.OriginLive).Load(ctx, "noentries.har"); !errors.Is(err, ErrMissingInput) {
			t.Errorf("expected ErrMissingInput, got %v", err)
		}
	})

	t.Run("json array and lines", func(t *testing.T) {
		writeFile(t, dir, "live.json", `[{"url":"https://a.com/","status_code":200,"extra":true},{"url":"https://a.com/x","status_code":"404"},{"status_code":200}]`)
		writeFile(t, dir, "live.jsonl", "{\"url\":\"https://a.com/\",\"status_code\":200}\n\nnot json\n{\"url\":\"https://a.com/x\",\"status_code\":\"URLError\"}\n")

		want := []models.RequestRecord{
			{URL: "https://a.com/", StatusCode: "200", Origin: models.OriginLive},
			{URL: "https://a.com/x", StatusCode: "404", Origin: models.OriginLive},
		}
		records, notices, err := NewDirLoader(dir, models.OriginLive).Load(ctx, "live.json")
		if err != nil {
			t.Fatalf("Load() error: %v", err)
		}
		if diff := cmp.Diff(want, records); diff != "" {
			t.Errorf("array records mismatch (-want +got):\n%s", diff)
		}
		if len(notices) != 1 {
			t.Errorf("expected 1 notice for the array, got %d", len(notices))
		}

		records, notices, err = NewDirLoader(dir, models.OriginLive).Load(ctx, "live.jsonl")
		if err != nil {
			t.Fatalf("Load() error: %v", err)
		}
		want[1].StatusCode = "URLError"
		if diff := cmp.Diff(want, records); diff != "" {
			t.Errorf("line records mismatch (-want +got):\n%s", diff)
		}
		if len(notices) != 1 {
			t.Errorf("expected 1 notice for the bad line, got %d", len(notices))
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		if _, _, err := NewDirLoader(dir, models.OriginLive).Load(cctx, "live.csv"); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}
