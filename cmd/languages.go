package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/naka-gawa/repo-quality/internal/domain"
)

var languagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "Lists the code types recognized by extension detection",
	Long:  `Lists every code type the analyzer can detect from root-directory file extensions, one per line.`,
	Run: func(cmd *cobra.Command, args []string) {
		for _, lang := range domain.DefaultLanguageTable().Languages() {
			fmt.Fprintln(cmd.OutOrStdout(), lang)
		}
	},
}

func init() {
	rootCmd.AddCommand(languagesCmd)
}
