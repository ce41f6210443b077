package main

import (
	"fmt"

	"cragflow/internal/mcpserver"

	"github.com/spf13/cobra"
)

var serveMCPCmd = &cobra.Command{
	Use:   "serve-mcp",
	Short: "Serve ask_docs, search_docs and ingest_clickup over MCP stdio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		// stdout carries the protocol, keep logs quiet.
		if logLevel == "" {
			logLevel = "warn"
		}
		eng, done, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer done()
		return mcpserver.Serve(eng, version)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "cragflow", version)
	},
}
