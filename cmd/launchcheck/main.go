package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dwsmith1983/tasklaunch/internal/commands"
)

var version = "dev"

func main() {
	var logLevel, logFormat string

	root := &cobra.Command{
		Use:   "launchcheck",
		Short: "Conformance checks for task launchers",
		Long: `launchcheck drives a task launcher through the conformance scenarios:
it launches a short-lived test application, polls its status until the
expected lifecycle state is reached, and reports every scenario that
does not behave.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return commands.SetupLogging(logLevel, logFormat)
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (default $LOG_LEVEL or info)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "text", "text or json")

	root.AddCommand(
		commands.NewRunCmd(),
		commands.NewScenariosCmd(),
		commands.NewLaunchCmd(),
		commands.NewStatusCmd(),
		commands.NewCancelCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
