// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/deep-research/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect past research runs (list, show, export)",
	Long: `History reads the local run database. Use subcommands to list recent
runs, print one run's report, or export a run to YAML or JSON.`,
}

// --- list subcommand ---

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs, newest first",
	RunE:  runHistoryList,
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	runs, err := s.List(context.Background(), limit)
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-36s  %-16s  %-10s  %5s  %8s  %s\n",
		"Run", "Date", "Depth", "Kept", "Cost", "Question")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 110))

	for _, r := range runs {
		question := r.Question
		if len(question) > 40 {
			question = question[:37] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-36s  %-16s  %-10s  %5d  $%7.4f  %s\n",
			r.RunID, r.CreatedAt.Format("2006-01-02 15:04"), r.Depth, r.Kept, r.CostUSD, question)
	}

	fmt.Fprintf(os.Stdout, "\n%d runs\n", len(runs))
	return nil
}

// --- show subcommand ---

var historyShowCmd = &cobra.Command{
	Use:   "show [run-id]",
	Short: "Print one run's report and summary",
	RunE:  runHistoryShow,
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("provide a run id (see history list)")
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	result, err := s.Get(context.Background(), args[0])
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Fprintf(os.Stderr, "question: %s\ndepth: %s  mode: %s  models: %s\nsources: %d kept of %d  cost: $%.4f\n\n",
		result.Question, result.Depth, result.Metadata.Mode,
		strings.Join(result.Metadata.ModelsUsed, ", "),
		result.Metadata.KeptSources, result.Metadata.TotalSources, result.Cost.TotalUSD)
	fmt.Fprintln(os.Stdout, result.Report)
	return nil
}

// --- export subcommand ---

var historyExportCmd = &cobra.Command{
	Use:   "export [run-id]",
	Short: "Export one run to YAML or JSON",
	RunE:  runHistoryExport,
}

func runHistoryExport(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("provide a run id (see history list)")
	}
	format, _ := cmd.Flags().GetString("format")

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	var path string
	switch format {
	case "yaml", "":
		path, err = s.ExportYAML(context.Background(), args[0])
	case "json":
		path, err = s.ExportJSON(context.Background(), args[0])
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Exported to %s\n", path)
	return nil
}

func openStore() (*store.Store, error) {
	return store.NewStore(buildConfig().Store)
}

func init() {
	historyListCmd.Flags().Int("limit", 0, "maximum runs to list (0 = use default)")
	historyListCmd.Flags().Bool("json", false, "output as JSON")

	historyShowCmd.Flags().Bool("json", false, "output the full run record as JSON")

	historyExportCmd.Flags().String("format", "yaml", "export format: yaml or json")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyExportCmd)

	rootCmd.AddCommand(historyCmd)
}
