package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "amber",
	Short: "Amber - data retention and archival service",
	Long: `Amber is an open-source data retention service that enforces per-tenant
retention policies, archives expiring records, and keeps tamper-evident
audit trails of every action it takes.

It manages registered record collections, providing:
  - Scheduled soft/hard deletion of records past their retention period
  - Compressed, encrypted archival of records approaching expiry
  - Hash-chained audit trails for every retention decision
  - Legal holds that exempt archives from deletion
  - Restore of archived records back into live storage

For more information, visit: https://github.com/custodia-hq/amber`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.CompletionOptions.DisableDefaultCmd = false
}
