package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/cverag/internal/config"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "cverag",
	Short: "Check and explain CVE identifiers in security reports",
	Long: `cverag grounds language model answers about CVE identifiers on a local
copy of the CVE corpus. Identifiers that are not in the corpus are matched
against a precomputed embedding store to suggest the CVE the report most
likely meant. It serves an HTTP and WebSocket API, an MCP server for AI
agents, and command line helpers.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultPath, "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
