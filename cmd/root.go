// Package cmd wires the CLI commands for the SynaGraph service.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "synagraph",
	Short: "SynaGraph - multi-tenant knowledge graph with capsule answer caching",
	Long: `SynaGraph stores typed knowledge nodes, relations, and embeddings per
tenant, materializes cache-friendly answer capsules over them, and streams
cache invalidation events through a transactional outbox.

Running synagraph without arguments starts the HTTP server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
