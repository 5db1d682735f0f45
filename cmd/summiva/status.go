package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/cli"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show document, cluster and retrain counters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackend(cmd, func(b backend, format cli.OutputFormat) error {
			stats, err := b.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return cli.WriteStats(cmd.OutOrStdout(), stats, format)
		})
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "summiva version %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd, versionCmd)
}
