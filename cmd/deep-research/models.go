// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/deep-research/internal/catalog"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the model catalog with prices and tier limits",
	Long: `Models prints every model the router can select: token prices, context
window, and the per-tier source limits that drive base/extended/ultra mode
selection. A dash means the model's context window cannot support ultra.`,
	RunE: runModels,
}

func init() {
	modelsCmd.Flags().Bool("json", false, "output the catalog as JSON")

	rootCmd.AddCommand(modelsCmd)
}

func runModels(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	ids := catalog.Models()

	if jsonOutput {
		entries := make([]catalog.Entry, 0, len(ids))
		for _, id := range ids {
			e, _ := catalog.Lookup(id)
			entries = append(entries, e)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	fmt.Fprintf(os.Stdout, "%-18s  %10s  %10s  %8s  %-10s  %-10s  %-10s\n",
		"Model", "In $/M", "Out $/M", "Ctx K", "Base", "Extended", "Ultra")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 90))

	for _, id := range ids {
		e, _ := catalog.Lookup(id)
		ultra := "-"
		if e.Limits.Ultra != nil {
			ultra = tierString(*e.Limits.Ultra)
		}
		fmt.Fprintf(os.Stdout, "%-18s  %10.2f  %10.2f  %8d  %-10s  %-10s  %-10s\n",
			e.ID, e.InputPerM, e.OutputPerM, e.ContextSizeK,
			tierString(e.Limits.Base), tierString(e.Limits.Extended), ultra)
	}
	return nil
}

// tierString formats one tier as search/select.
func tierString(t catalog.TierLimit) string {
	return fmt.Sprintf("%d/%d", t.MaxSearch, t.MaxSelect)
}
