package report

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/dwsmith1983/tasklaunch/pkg/types"
)

// ConsoleSink writes a colored summary table.
type ConsoleSink struct {
	w io.Writer
}

// NewConsoleSink creates a console sink writing to w.
func NewConsoleSink(w io.Writer) *ConsoleSink {
	return &ConsoleSink{w: w}
}

// Name returns the sink identifier.
func (s *ConsoleSink) Name() string { return "console" }

// Send prints one line per scenario and a closing verdict.
func (s *ConsoleSink) Send(_ context.Context, report types.SuiteReport) error {
	fmt.Fprintf(s.w, "suite %s (launcher %s)\n", report.SuiteID, report.Launcher)
	for _, res := range report.Results {
		if res.Passed {
			fmt.Fprintf(s.w, "  %s %-20s %s\n", color.GreenString("PASS"), res.Scenario, res.Duration.Round(time.Millisecond))
			continue
		}
		fmt.Fprintf(s.w, "  %s %-20s %s [%s]\n", color.RedString("FAIL"), res.Scenario, res.Duration.Round(time.Millisecond), res.Failure)
		if res.Message != "" {
			fmt.Fprintf(s.w, "       %s\n", color.YellowString(res.Message))
		}
	}
	failed := len(report.Failed())
	if failed == 0 {
		fmt.Fprintf(s.w, "%s %d scenario(s)\n", color.GreenString("OK"), len(report.Results))
	} else {
		fmt.Fprintf(s.w, "%s %d of %d scenario(s) failed\n", color.RedString("FAILED"), failed, len(report.Results))
	}
	return nil
}
