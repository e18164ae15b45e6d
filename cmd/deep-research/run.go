// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/deep-research/internal/fetchweb"
	"github.com/pdiddy/deep-research/internal/llm"
	"github.com/pdiddy/deep-research/internal/pipeline"
	"github.com/pdiddy/deep-research/internal/store"
	"github.com/pdiddy/deep-research/internal/websearch"
	"github.com/pdiddy/deep-research/pkg/types"
)

var runCmd = &cobra.Command{
	Use:   "run [question]",
	Short: "Run a research question through the full pipeline",
	Long: `Run decomposes the question into sub-queries, searches the web, scores
and ranks the sources, and synthesizes a cited report. The report streams to
stdout as it is generated; progress goes to stderr.

With --json, every pipeline event is written to stdout as one JSON object
per line and nothing else is printed.`,
	RunE: runResearch,
}

func init() {
	runCmd.Flags().String("depth", "normal", "research depth: fast, normal, deep, or exhaustive")
	runCmd.Flags().String("cost", "auto", "cost preference: auto, economy, premium, or custom")
	runCmd.Flags().StringSlice("domains", nil, "restrict search to these domains (comma-separated)")
	runCmd.Flags().StringSlice("model", nil, "per-stage model override as stage=model (implies --cost custom)")
	runCmd.Flags().Bool("json", false, "emit pipeline events as newline-delimited JSON")
	runCmd.Flags().Bool("no-save", false, "do not record the run in history")
	runCmd.Flags().String("output", "", "write the report to this file instead of the reports directory")

	rootCmd.AddCommand(runCmd)
}

func runResearch(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("provide a research question")
	}
	question := strings.Join(args, " ")

	req, err := requestFromFlags(cmd, question)
	if err != nil {
		return err
	}

	cfg := buildConfig()
	if cfg.LLM.APIKey == "" {
		return fmt.Errorf("no completion API key: put it in .secrets/openai-api-key or set DEEP_RESEARCH_LLM_API_KEY")
	}
	if cfg.Search.APIKey == "" {
		return fmt.Errorf("no search API key: put it in .secrets/tavily-api-key or set DEEP_RESEARCH_SEARCH_API_KEY")
	}

	deps := pipeline.Deps{
		LLM:     llm.NewOpenAI(cfg.LLM),
		Search:  websearch.NewTavily(cfg.Search),
		Fetcher: fetchweb.NewHTTP(cfg.Fetch),
		Log:     os.Stderr,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events, runID := pipeline.Execute(ctx, req, cfg, deps)

	jsonOutput, _ := cmd.Flags().GetBool("json")
	result, err := consumeEvents(events, jsonOutput)
	if err != nil {
		return err
	}

	noSave, _ := cmd.Flags().GetBool("no-save")
	if !noSave {
		if err := saveRun(ctx, cfg, result); err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not save run %s: %v\n", runID, err)
		}
	}

	outPath, _ := cmd.Flags().GetString("output")
	if !jsonOutput || outPath != "" {
		if err := writeReport(cfg, result, outPath); err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not write report file: %v\n", err)
		}
	}
	return nil
}

// requestFromFlags assembles the immutable research request.
func requestFromFlags(cmd *cobra.Command, question string) (types.ResearchRequest, error) {
	depth, _ := cmd.Flags().GetString("depth")
	cost, _ := cmd.Flags().GetString("cost")
	domains, _ := cmd.Flags().GetStringSlice("domains")
	modelFlags, _ := cmd.Flags().GetStringSlice("model")

	switch types.Depth(depth) {
	case types.DepthFast, types.DepthNormal, types.DepthDeep, types.DepthExhaustive:
	default:
		return types.ResearchRequest{}, fmt.Errorf("unknown depth %q: use fast, normal, deep, or exhaustive", depth)
	}

	req := types.ResearchRequest{
		Question:       question,
		Depth:          types.Depth(depth),
		Domains:        domains,
		CostPreference: types.CostPreference(cost),
	}

	if len(modelFlags) > 0 {
		overrides := make(map[types.Stage]string, len(modelFlags))
		for _, pair := range modelFlags {
			stage, model, ok := strings.Cut(pair, "=")
			if !ok {
				return types.ResearchRequest{}, fmt.Errorf("invalid --model %q: expected stage=model", pair)
			}
			overrides[types.Stage(stage)] = model
		}
		req.ModelOverrides = overrides
		req.CostPreference = types.CostCustom
	}

	switch req.CostPreference {
	case types.CostAuto, types.CostEconomy, types.CostPremium, types.CostCustom:
	default:
		return types.ResearchRequest{}, fmt.Errorf("unknown cost preference %q: use auto, economy, premium, or custom", cost)
	}
	return req, nil
}

// consumeEvents drains the event stream to completion. Human mode prints
// progress to stderr and streams report text to stdout; JSON mode writes one
// event per line to stdout.
func consumeEvents(events <-chan types.PipelineEvent, jsonOutput bool) (*types.RunResult, error) {
	enc := json.NewEncoder(os.Stdout)

	var result *types.RunResult
	var terminal *types.ErrorEvent
	streaming := false

	for ev := range events {
		if jsonOutput {
			if err := enc.Encode(ev); err != nil {
				return nil, fmt.Errorf("encoding event: %w", err)
			}
		}

		switch ev.Type {
		case types.EventStage:
			if !jsonOutput {
				if streaming {
					fmt.Fprintln(os.Stdout)
					streaming = false
				}
				fmt.Fprintf(os.Stderr, "[%3.0f%%] %-10s %s: %s\n",
					ev.Stage.Progress*100, ev.Stage.Stage, ev.Stage.Status, ev.Stage.Message)
			}
		case types.EventSource:
			if !jsonOutput {
				fmt.Fprintf(os.Stderr, "       found: %s\n", ev.Source.URL)
			}
		case types.EventEvaluation:
			if !jsonOutput {
				fmt.Fprintf(os.Stderr, "       evaluated %d sources, kept %d, filtered %d\n",
					ev.Evaluation.TotalFound, ev.Evaluation.Kept, ev.Evaluation.Filtered)
			}
		case types.EventTextDelta:
			if !jsonOutput {
				fmt.Fprint(os.Stdout, ev.Delta)
				streaming = true
			}
		case types.EventCost:
			if !jsonOutput {
				fmt.Fprintf(os.Stderr, "cost: $%.4f (%d input + %d output tokens, %d searches)\n",
					ev.Cost.TotalUSD, ev.Cost.InputTokens, ev.Cost.OutputTokens, ev.Cost.SearchCalls)
			}
		case types.EventComplete:
			result = ev.Complete
		case types.EventError:
			if ev.Error.Recoverable {
				fmt.Fprintf(os.Stderr, "warning: %s: %s\n", ev.Error.Code, ev.Error.Message)
				continue
			}
			terminal = ev.Error
		}
	}

	if streaming {
		fmt.Fprintln(os.Stdout)
	}
	if terminal != nil {
		return nil, fmt.Errorf("%s: %s", terminal.Code, terminal.Message)
	}
	if result == nil {
		return nil, fmt.Errorf("pipeline ended without a result")
	}
	return result, nil
}

func saveRun(ctx context.Context, cfg types.PipelineConfig, result *types.RunResult) error {
	s, err := store.NewStore(cfg.Store)
	if err != nil {
		return err
	}
	defer s.Close()
	return s.SaveRun(ctx, result)
}

// writeReport writes the report with a citation footer to a file. The
// default location is reports/<date>-<run id prefix>.md.
func writeReport(cfg types.PipelineConfig, result *types.RunResult, path string) error {
	if path == "" {
		if err := os.MkdirAll(cfg.ReportsDir, 0o755); err != nil {
			return err
		}
		id := result.RunID
		if len(id) > 8 {
			id = id[:8]
		}
		path = filepath.Join(cfg.ReportsDir, fmt.Sprintf("%s-%s.md", time.Now().Format("2006-01-02"), id))
	}

	var b strings.Builder
	b.WriteString(result.Report)
	if len(result.Citations) > 0 {
		b.WriteString("\n\n## Sources\n\n")
		for _, c := range result.Citations {
			fmt.Fprintf(&b, "[%d] %s - %s\n", c.Number, c.Title, c.URL)
		}
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "report written to %s\n", path)
	return nil
}
