package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ashureev/care-assistant/internal/tools"
)

var toolArgs tools.Args

var toolsCmd = &cobra.Command{
	Use:       "tools <name>",
	Short:     "Run a lookup tool directly and print its JSON result",
	ValidArgs: []string{tools.CoverageLookup, tools.BenefitVerify, tools.ClaimsStatus},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		setupLogger(os.Stderr, false)

		a, err := loadApp()
		if err != nil {
			return err
		}

		res, err := a.registry.Invoke(cmd.Context(), args[0], toolArgs)
		if err != nil {
			return fmt.Errorf("running %s: %w", args[0], err)
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	toolsCmd.Flags().StringVar(&toolArgs.UserID, "user", "", "member id, e.g. user_001")
	toolsCmd.Flags().StringVar(&toolArgs.Query, "query", "", "question text passed to coverage_lookup")
	toolsCmd.Flags().StringVar(&toolArgs.ServiceType, "service", "", "service for benefit_verify (default general medical)")
	toolsCmd.Flags().StringVar(&toolArgs.StatusFilter, "status", "all", "status filter for claims_status")
	_ = toolsCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(toolsCmd)
}
