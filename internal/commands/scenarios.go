package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/tasklaunch/internal/scenario"
)

// NewScenariosCmd creates the scenarios command.
func NewScenariosCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scenarios",
		Short: "List the conformance scenarios",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			bold := color.New(color.Bold)
			for _, sc := range scenario.Scenarios() {
				_, _ = bold.Fprintf(out, "  %-20s", sc.Name)
				fmt.Fprintf(out, " %s\n", sc.Description)
			}
		},
	}
}
