package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ashureev/care-assistant/internal/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the lookup tools over MCP on stdio",
	Long:  `Starts a Model Context Protocol server on stdio exposing coverage_lookup, benefit_verify and claims_status.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		setupLogger(os.Stderr, false)

		a, err := loadApp()
		if err != nil {
			return err
		}

		mcpserver.Version = Version
		fmt.Fprintf(os.Stderr, "care MCP server started on stdio (members=%d)\n", a.data.Stats()["users"])
		return mcpserver.NewServer(a.registry).Serve()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
