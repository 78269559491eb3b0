package cmd

import (
	"fmt"
	"os"

	"app-bootstrap/core/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Install dependencies and launch the application server",
	Long: `bootstrap prepares the runtime environment from a requirements manifest
and runs the application behind a supervised pool of worker processes.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		// Report through the application's own logger.
		// Console format because this is a CLI, and "debug" selects the
		// development config for ISO8601 timestamps instead of epoch.
		cfg := &logger.Config{
			Level:  "debug",
			Format: "console",
		}

		l, logErr := logger.New(cfg)
		if logErr == nil {
			// Console encoding keeps the error readable on a terminal
			l.Error("command failed", zap.Error(err))
			_ = l.Sync()
		} else {
			// Fallback if logger creation fails (rare)
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
