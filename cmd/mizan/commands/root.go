// Package commands implements the mizan CLI.
package commands

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	policyFile string
	logLevel   string
	verbose    bool
	noColor    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mizan",
	Short: "Mizan - capital-preservation investment decisions",
	Long: `Mizan Unified CLI

Turns a free-text company reference into an auditable verdict
(INVEST | WATCH | REJECT) through a fixed gate pipeline:

  identity → fundamentals → business context → market data → macro
  → valuation → market structure → impairment → sizing → verdict

Usage:
  go run ./cmd/mizan [command]

Examples:
  go run ./cmd/mizan analyze "Apple"
  go run ./cmd/mizan analyze AAPL MSFT KO --json
  go run ./cmd/mizan serve --port 8000
  go run ./cmd/mizan watch
  go run ./cmd/mizan policy show`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			color.NoColor = true
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&policyFile, "policy", "", "policy YAML file (default: POLICY_FILE or built-in policy)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug|info|warn|error)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logs)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable coloured output")
}
