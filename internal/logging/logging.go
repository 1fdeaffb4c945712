package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"

	"replaywatch/internal/models"
)

// Init configures the global slog default with the given level and format.
// Format is "text", "json", "tint" or "auto"; auto picks tint when w is a
// terminal and text otherwise. If w is nil, os.Stderr is used.
func Init(level slog.Level, format string, w ...io.Writer) {
	var writer io.Writer = os.Stderr
	if len(w) > 0 && w[0] != nil {
		writer = w[0]
	}

	opts := &slog.HandlerOptions{Level: level}

	if format == "auto" {
		format = "text"
		if f, ok := writer.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
			format = "tint"
		}
	}

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(writer, opts)
	case "tint":
		handler = tint.NewHandler(writer, &tint.Options{Level: level, TimeFormat: "15:04:05"})
	default:
		handler = slog.NewTextHandler(writer, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// New returns a logger with a "component" attribute for module-scoped logging.
func New(component string) *slog.Logger {
	return slog.Default().With(slog.String("component", component))
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(strings.TrimSpace(s)))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// LogNotice writes a notice through logger at the notice's own level.
func LogNotice(logger *slog.Logger, n models.Notice, attrs ...any) {
	args := append([]any{slog.String("kind", string(n.Kind))}, attrs...)
	if n.URL != "" {
		args = append(args, slog.String("url", n.URL))
	}
	if n.LiveURL != "" {
		args = append(args, slog.String("live_url", n.LiveURL), slog.String("live_status", n.LiveStatus))
	}
	if n.ArchivedURL != "" {
		args = append(args, slog.String("archived_url", n.ArchivedURL), slog.String("archived_status", n.ArchivedStatus))
	}
	if n.Detail != "" {
		args = append(args, slog.String("detail", n.Detail))
	}
	logger.Log(context.Background(), n.Level, n.Message, args...)
}
