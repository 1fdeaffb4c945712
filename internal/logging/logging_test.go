package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"replaywatch/internal/models"
)

func TestNew_HasComponent(t *testing.T) {
	var buf bytes.Buffer
	Init(slog.LevelDebug, "text", &buf)

	New("matcher").Info("hello")

	output := buf.String()
	if !strings.Contains(output, "component=matcher") {
		t.Errorf("expected component=matcher in output, got: %s", output)
	}
	if !strings.Contains(output, "hello") {
		t.Errorf("expected 'hello' in output, got: %s", output)
	}
}

func TestInit_Formats(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{"text", "level=INFO"},
		{"json", `"level":"INFO"`},
		{"auto", "level=INFO"}, // a buffer is never a terminal
		{"tint", "INF"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			Init(slog.LevelInfo, tt.format, &buf)
			New("fmt").Info("check")
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("expected %q in %s output, got: %s", tt.want, tt.format, buf.String())
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		" error ": slog.LevelError,
		"info":    slog.LevelInfo,
		"loud":    slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLogNotice(t *testing.T) {
	var buf bytes.Buffer
	Init(slog.LevelInfo, "text", &buf)

	LogNotice(New("audit"), models.Notice{
		Kind:           models.NoticeDisagreement,
		Level:          slog.LevelWarn,
		Message:        "status codes differ",
		LiveURL:        "a.com/y",
		LiveStatus:     "200",
		ArchivedURL:    "archive/a.com/y",
		ArchivedStatus: "404",
	}, slog.Int("entry", 3))

	output := buf.String()
	for _, want := range []string{"level=WARN", "kind=disagreement", "entry=3", "live_status=200", "archived_status=404"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got: %s", want, output)
		}
	}

	buf.Reset()
	LogNotice(New("audit"), models.Notice{Kind: models.NoticePairSummary, Level: slog.LevelDebug, Message: "hidden"})
	if buf.Len() != 0 {
		t.Errorf("debug notice should be filtered at info level, got: %s", buf.String())
	}
}
