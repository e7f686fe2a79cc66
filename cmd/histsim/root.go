package main

import (
	"github.com/spf13/cobra"
)

// newRootCmd builds the command tree. A fresh tree per call keeps flag state
// out of package globals.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "histsim",
		Short: "histsim simulates a distributed miss-coalescing directory.",
		Long: `histsim replays per-node memory access streams through private ` +
			`L1 caches and a distributed HIST directory that merges ` +
			`concurrent misses to the same line, and reports how many misses ` +
			`were coalesced and what they cost.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}
