// Package testapp implements the short-lived application the conformance
// scenarios launch: it waits --killDelay milliseconds and exits with --exitCode.
package testapp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
)

// ExitInterrupted is returned when the wait is cut short by the context.
const ExitInterrupted = 130

// exitUsage is returned for flags that cannot be parsed.
const exitUsage = 2

// Run executes the test application with args and returns its exit code.
// A negative killDelay waits until ctx is done. Unknown flags are ignored so
// launchers may pass through arbitrary definition properties.
func Run(ctx context.Context, args []string, stderr io.Writer, logger *slog.Logger) int {
	if logger == nil {
		logger = slog.Default()
	}
	var (
		killDelay int
		exitCode  int
		code      int
	)

	cmd := &cobra.Command{
		Use:           "testapp",
		Short:         "Sleep for --killDelay ms, then exit with --exitCode",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger.Info("testapp started", "killDelay", killDelay, "exitCode", exitCode)
			if err := wait(cmd.Context(), killDelay); err != nil {
				logger.Info("testapp interrupted", "error", err)
				code = ExitInterrupted
				return nil
			}
			code = exitCode
			return nil
		},
	}
	cmd.FParseErrWhitelist.UnknownFlags = true
	cmd.Flags().IntVar(&killDelay, "killDelay", 0, "milliseconds to wait before exiting; negative waits forever")
	cmd.Flags().IntVar(&exitCode, "exitCode", 0, "process exit code")
	cmd.SetArgs(args)
	cmd.SetErr(stderr)
	cmd.SetOut(stderr)

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, "testapp:", err)
		return exitUsage
	}
	return code
}

func wait(ctx context.Context, delayMillis int) error {
	if delayMillis < 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	if delayMillis == 0 {
		return nil
	}
	t := time.NewTimer(time.Duration(delayMillis) * time.Millisecond)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
