package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/tasklaunch/internal/eventually"
	"github.com/dwsmith1983/tasklaunch/internal/lifecycle"
	"github.com/dwsmith1983/tasklaunch/internal/probe"
	"github.com/dwsmith1983/tasklaunch/internal/scenario"
	"github.com/dwsmith1983/tasklaunch/pkg/types"
)

type launchFlags struct {
	project     projectFlags
	name        string
	props       []string
	deployProps []string
	wait        bool
}

// NewLaunchCmd creates the launch command. Arguments after -- are passed to
// the application as command line arguments.
func NewLaunchCmd() *cobra.Command {
	var f launchFlags
	cmd := &cobra.Command{
		Use:   "launch [-- args...]",
		Short: "Launch the test application once and print its launch id",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLaunch(cmd.Context(), f, args, cmd.OutOrStdout())
		},
	}
	f.project.register(cmd)
	cmd.Flags().StringVar(&f.name, "name", "", "definition name (default random)")
	cmd.Flags().StringArrayVar(&f.props, "prop", nil, "definition property key=value")
	cmd.Flags().StringArrayVar(&f.deployProps, "deploy-prop", nil, "deployment property key=value")
	cmd.Flags().BoolVar(&f.wait, "wait", false, "poll until the launch reaches a terminal state")
	return cmd
}

func runLaunch(ctx context.Context, f launchFlags, args []string, out io.Writer) error {
	props, err := parseKeyValues(f.props)
	if err != nil {
		return fmt.Errorf("--prop: %w", err)
	}
	deployProps, err := parseKeyValues(f.deployProps)
	if err != nil {
		return fmt.Errorf("--deploy-prop: %w", err)
	}
	if f.name == "" {
		f.name = scenario.RandomName()
	}

	cfg, l, cleanup, err := f.project.openLauncher(ctx)
	if err != nil {
		return err
	}
	// Without --wait the launch is left to run after this command exits, so
	// the launcher is not closed: closing the local launcher kills its children.
	if f.wait {
		defer cleanup()
	}

	id, err := l.Launch(ctx, types.LaunchRequest{
		Definition:           types.AppDefinition{Name: f.name, Properties: props},
		Resource:             cfg.Launcher.Resource,
		DeploymentProperties: deployProps,
		CommandLineArgs:      args,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(out, id)
	if !f.wait {
		return nil
	}

	terminal := eventually.Func("state is terminal", func(st types.TaskStatus) bool {
		return lifecycle.IsTerminal(st.State)
	})
	st, err := eventually.Eventually(ctx, probe.Status(l, id), terminal, cfg.Deployment,
		eventually.WithLogger(slog.Default()), eventually.WithName(string(id)))
	if err != nil {
		return err
	}
	printStatus(out, st)
	return nil
}

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	var p projectFlags
	cmd := &cobra.Command{
		Use:   "status <launch-id>",
		Short: "Show the state of a launch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, l, cleanup, err := p.openPersistentLauncher(cmd.Context(), "status")
			if err != nil {
				return err
			}
			defer cleanup()
			st, err := l.Status(cmd.Context(), types.LaunchID(args[0]))
			if err != nil {
				return err
			}
			printStatus(cmd.OutOrStdout(), st)
			return nil
		},
	}
	p.register(cmd)
	return cmd
}

// NewCancelCmd creates the cancel command.
func NewCancelCmd() *cobra.Command {
	var p projectFlags
	cmd := &cobra.Command{
		Use:   "cancel <launch-id>",
		Short: "Cancel a running launch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, l, cleanup, err := p.openPersistentLauncher(cmd.Context(), "cancel")
			if err != nil {
				return err
			}
			defer cleanup()
			if err := l.Cancel(cmd.Context(), types.LaunchID(args[0])); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cancel requested for %s\n", args[0])
			return nil
		},
	}
	p.register(cmd)
	return cmd
}

func printStatus(out io.Writer, st types.TaskStatus) {
	state := string(st.State)
	switch st.State {
	case types.LaunchComplete:
		state = color.GreenString(state)
	case types.LaunchFailed:
		state = color.RedString(state)
	case types.LaunchRunning:
		state = color.CyanString(state)
	case types.LaunchCancelled, types.LaunchUnknown:
		state = color.YellowString(state)
	}
	fmt.Fprintf(out, "%s  %s\n", st.ID, state)

	for _, k := range slices.Sorted(maps.Keys(st.Attributes)) {
		fmt.Fprintf(out, "  %-12s %s\n", k+":", st.Attributes[k])
	}
}
