// Package cmd contains all the CLI commands for the application,
// built using the Cobra library.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "repo-quality",
	Short: "A CLI tool to analyze repository quality across a GitHub organization.",
	Long: `repo-quality collects pull request, commit, and contributor metadata for
every repository of a GitHub organization and scores each one against a
configurable set of quality rules. Results are written as JSON, CSV, XLSX,
and an interactive HTML dashboard.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	// Add a persistent flag for verbose output, available to all commands.
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose/debug logging")
}
