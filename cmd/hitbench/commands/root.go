// Package commands implements the hitbench subcommands.
package commands

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// NewRootCommand builds the hitbench command tree.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "hitbench",
		Short: "Benchmark and verify the canopy hit index",
		Long: `hitbench exercises the canopy hit index against a linear reference scan.

Commands:
  run       Time point and rect queries and compare them with a linear scan
  verify    Apply random mutations and check index integrity after each round`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(NewRunCommand())
	rootCmd.AddCommand(NewVerifyCommand())

	return rootCmd
}

// addCommonFlags registers the flags every subcommand accepts.
func addCommonFlags(cmd *cobra.Command, configPath *string, noColor *bool) {
	cmd.Flags().StringVarP(configPath, "config", "c", "", "config file (default: .hitbench.yaml in CWD or $HOME)")
	cmd.Flags().BoolVar(noColor, "no-color", false, "disable colored output")
}

func applyColor(noColor bool) {
	if noColor {
		color.NoColor = true //nolint:reassign // intentional override of library global
	}
}
