// Command eligoctl is the operator CLI: it scores questionnaire fixtures
// offline and runs housekeeping passes against the database.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "eligoctl",
		Short:         "Operate the eligo simulation and migration service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(scoreCmd(), sweepCmd())
	return cmd
}
