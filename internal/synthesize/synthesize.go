// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package synthesize turns kept sources into a cited analytical report.
// Three strategies, selected by the resolved processing mode: direct
// (base), map-reduce (extended), and iterative with verification (ultra).
// Implements: prd013-synthesis (R2-R6); docs/ARCHITECTURE § Synthesis.
package synthesize

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/pdiddy/deep-research/internal/costs"
	"github.com/pdiddy/deep-research/internal/llm"
	"github.com/pdiddy/deep-research/internal/modes"
	"github.com/pdiddy/deep-research/pkg/types"
)

// truncationNotice is appended in-band when the provider cut the report at
// its output limit, so callers are never silently handed a partial report.
const truncationNotice = "\n\n---\n*Report truncated: the model reached its output limit.*"

// Input is one synthesis request.
type Input struct {
	Question   string
	Sources    []types.EvaluatedSource
	Resolution modes.Resolution

	// Chain is the synthesis model followed by its fallbacks.
	Chain []string

	MaxOutputTokens int
}

// Result describes how the report was produced.
type Result struct {
	Report     string
	ModelsUsed []string
	Truncated  bool
}

// Engine executes the strategy matching the resolved processing mode.
type Engine struct {
	Client llm.Client
	Ledger *costs.Ledger
	Log    io.Writer

	mu   sync.Mutex
	used map[string]bool
}

// NewEngine constructs an engine writing warnings to w.
func NewEngine(client llm.Client, ledger *costs.Ledger, w io.Writer) *Engine {
	return &Engine{Client: client, Ledger: ledger, Log: w, used: make(map[string]bool)}
}

// Run synthesizes the report, forwarding text deltas to emit as they
// stream. The returned result carries the full report and every model id
// that actually served a call.
func (e *Engine) Run(ctx context.Context, in Input, emit func(string)) (Result, error) {
	if len(in.Sources) == 0 {
		return Result{}, fmt.Errorf("no sources to synthesize")
	}
	if emit == nil {
		emit = func(string) {}
	}

	var (
		report    string
		truncated bool
		err       error
	)
	switch in.Resolution.Mode {
	case modes.ModeExtended:
		report, truncated, err = e.mapReduce(ctx, in, emit)
	case modes.ModeUltra:
		report, truncated, err = e.iterative(ctx, in, emit)
	default:
		report, truncated, err = e.direct(ctx, in, emit)
	}
	if err != nil {
		return Result{}, err
	}

	return Result{Report: report, ModelsUsed: e.modelsUsed(), Truncated: truncated}, nil
}

// markUsed records a model that served a call.
func (e *Engine) markUsed(model string) {
	e.mu.Lock()
	e.used[model] = true
	e.mu.Unlock()
}

func (e *Engine) modelsUsed() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	models := make([]string, 0, len(e.used))
	for m := range e.used {
		models = append(models, m)
	}
	sort.Strings(models)
	return models
}

// stream walks the model chain until one call succeeds, forwarding deltas
// to onDelta. Completion calls are never retried against the same model.
func (e *Engine) stream(ctx context.Context, stage types.Stage, chain []string, system, prompt string, maxTokens int, onDelta func(string)) (string, llm.FinishReason, error) {
	var lastErr error
	for _, model := range chain {
		s, err := e.Client.Stream(ctx, llm.StreamRequest{
			Model:     model,
			System:    system,
			Prompt:    prompt,
			MaxTokens: maxTokens,
		})
		if err == nil {
			var text string
			var reason llm.FinishReason
			text, reason, err = llm.Collect(s, onDelta)
			if err == nil {
				e.markUsed(model)
				e.Ledger.AddEntry(stage, model,
					costs.EstimateTokens(system+prompt), costs.EstimateTokens(text))
				return text, reason, nil
			}
		}
		lastErr = err
		fmt.Fprintf(e.Log, "warning: %s on %s failed: %v\n", stage, model, err)
		if ctx.Err() != nil {
			return "", llm.FinishStop, ctx.Err()
		}
	}
	return "", llm.FinishStop, fmt.Errorf("all models failed: %w", lastErr)
}

// structured walks the model chain for a structured completion.
func (e *Engine) structured(ctx context.Context, stage types.Stage, chain []string, system, prompt string, maxTokens int) ([]byte, error) {
	var lastErr error
	for _, model := range chain {
		raw, err := e.Client.Structured(ctx, llm.StructuredRequest{
			Model:     model,
			System:    system,
			Prompt:    prompt,
			MaxTokens: maxTokens,
		})
		if err == nil {
			e.markUsed(model)
			e.Ledger.AddEntry(stage, model,
				costs.EstimateTokens(system+prompt), costs.EstimateTokens(string(raw)))
			return raw, nil
		}
		lastErr = err
		fmt.Fprintf(e.Log, "warning: %s on %s failed: %v\n", stage, model, err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("all models failed: %w", lastErr)
}

// mapBatchSize sizes MAP batches to roughly 60% of the primary model's base
// select limit, with a floor of one source.
func mapBatchSize(resolution modes.Resolution, chain []string) int {
	base := resolution.Limits.MaxSelect
	if len(chain) > 0 {
		base = baseSelectLimit(chain[0])
	}
	size := base * 60 / 100
	if size < 1 {
		size = 1
	}
	return size
}
