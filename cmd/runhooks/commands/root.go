// Package commands implements the runhooks demo CLI using cobra.
package commands

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version is set at build time
	Version = "0.1.0"
)

var rootCmd = &cobra.Command{
	Use:   "runhooks",
	Short: "Demo orchestrator for runhooks lifecycle hooks",
	Long: `Runhooks is a library of lifecycle hooks for experiment runners.
This binary is a minimal host: it executes a command as a job of one or
more runs and dispatches the job/run lifecycle through a hook registry
configured from a settings file.`,
	Version: Version,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
