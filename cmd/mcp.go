package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	mcpserver "github.com/ziadkadry99/cverag/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for AI agent integration",
	Long:  `Starts a Model Context Protocol (MCP) server on stdio, exposing CVE extraction, corpus lookup and prompt tools for AI agents.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(context.Background(), appOptions{history: true})
		if err != nil {
			return err
		}
		defer a.Close()
		defer a.logger.Sync()

		// Set version from the cmd package variable.
		mcpserver.Version = Version

		fmt.Fprintf(os.Stderr, "cverag MCP server started on stdio (corpus=%s)\n", a.cfg.Corpus.Root)

		srv := mcpserver.NewServer(a.service)
		return srv.Serve()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
