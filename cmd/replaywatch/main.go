// replaywatch audits how faithfully web archives replay the sites they captured.
//
// Usage:
//
//	replaywatch compare --index <file> --live-dir <dir> --archived-dir <dir> [--output text|json|junit]
//	replaywatch serve [--port <port>]
//	replaywatch runs [--limit N]
//	replaywatch runs show <run-id>
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"replaywatch/internal/report"
)

// exitError carries a non-zero exit status without an error message.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	cancel()

	var ee *exitError
	switch {
	case errors.As(err, &ee):
		os.Exit(ee.code)
	case err != nil:
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(report.ExitFailed)
	}
}
