package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dwsmith1983/tasklaunch/internal/report"
	"github.com/dwsmith1983/tasklaunch/internal/scenario"
	"github.com/dwsmith1983/tasklaunch/internal/telemetry"
	"github.com/dwsmith1983/tasklaunch/pkg/types"
)

type runFlags struct {
	project     projectFlags
	scenarios   []string
	concurrency int
	reportFile  string
	deployProps []string
}

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the conformance scenarios against the configured launcher",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSuite(cmd.Context(), f, cmd.OutOrStdout())
		},
	}
	f.project.register(cmd)
	cmd.Flags().StringSliceVar(&f.scenarios, "scenario", nil, "scenario to run (repeatable, default all)")
	cmd.Flags().IntVar(&f.concurrency, "concurrency", 0, "scenarios to run in parallel, overrides the config file")
	cmd.Flags().StringVar(&f.reportFile, "report-file", "", "also write the suite report to this file")
	cmd.Flags().StringArrayVar(&f.deployProps, "deploy-prop", nil, "deployment property key=value passed on every launch")
	return cmd
}

func runSuite(ctx context.Context, f runFlags, out io.Writer) error {
	cfg, err := f.project.load()
	if err != nil {
		return err
	}
	if f.concurrency > 0 {
		cfg.Concurrency = f.concurrency
	}
	if f.reportFile != "" {
		cfg.Reports = append(cfg.Reports, types.ReportConfig{Type: types.ReportFile, Path: f.reportFile})
	}
	names := cfg.Scenarios
	if len(f.scenarios) > 0 {
		names = f.scenarios
	}
	deployProps, err := parseKeyValues(f.deployProps)
	if err != nil {
		return fmt.Errorf("--deploy-prop: %w", err)
	}

	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("setting up telemetry: %w", err)
	}
	defer func() {
		if err := shutdown(context.WithoutCancel(ctx)); err != nil {
			slog.Warn("telemetry shutdown", "error", err)
		}
	}()

	dispatcher, err := report.NewDispatcher(ctx, cfg.Reports,
		report.WithLogger(slog.Default()),
		report.WithConsole(out),
		report.WithRegion(cfg.Launcher.Region),
	)
	if err != nil {
		return fmt.Errorf("creating report dispatcher: %w", err)
	}

	l, err := newLauncher(ctx, cfg.Launcher)
	if err != nil {
		return fmt.Errorf("creating %s launcher: %w", cfg.Launcher.Type, err)
	}
	defer closeLauncher(ctx, l)

	runner, err := scenario.New(scenario.Config{
		Launcher:             l,
		LauncherType:         cfg.Launcher.Type,
		Resource:             cfg.Launcher.Resource,
		DeploymentProperties: deployProps,
		Deployment:           cfg.Deployment,
		Undeployment:         cfg.Undeployment,
		Concurrency:          cfg.Concurrency,
		Logger:               slog.Default(),
	})
	if err != nil {
		return err
	}

	suite, err := runner.RunAll(ctx, names...)
	if err != nil {
		return err
	}
	if err := dispatcher.Dispatch(ctx, suite); err != nil {
		return fmt.Errorf("dispatching report: %w", err)
	}
	if failed := suite.Failed(); len(failed) > 0 {
		return fmt.Errorf("%d of %d scenarios failed", len(failed), len(suite.Results))
	}
	return nil
}
