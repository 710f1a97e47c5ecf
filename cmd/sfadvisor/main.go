package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:     "sfadvisor",
	Short:   "Salesforce architecture and best practices advisor",
	Version: version,
	Long: `sfadvisor answers Salesforce development questions from locally indexed
documentation and runs static analysis tools for Apex code, SOQL queries,
and governor limit budgets.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(optimizeCmd)
	rootCmd.AddCommand(limitsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
