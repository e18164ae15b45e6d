// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package evaluate scores and ranks candidate sources for relevance,
// recency, authority, and bias, then filters and truncates to the keep
// budget.
// Implements: prd012-evaluation (R1-R5); docs/ARCHITECTURE § Evaluation.
//
// Evaluation is total over its input: a batch whose completion call fails is
// replaced with neutral scores, never omitted, so downstream stages always
// see exactly one EvaluatedSource per SearchResult.
package evaluate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/deep-research/internal/costs"
	"github.com/pdiddy/deep-research/internal/llm"
	"github.com/pdiddy/deep-research/pkg/types"
)

const neutralScore = 0.5

const systemPrompt = `You are a source-quality assessor. Score each numbered source for how
well it serves the research question. Respond with a JSON object:
{"scores": [{"index": 0, "relevance": 0.0, "recency": 0.0, "authority": 0.0,
"bias": 0.0, "class": "primary|secondary|tertiary", "contradicts": ""}]}.
All scores are in [0,1]; bias measures slant (1 = heavily slanted).
"contradicts" names the URL of another source in this batch the source
disagrees with, or is empty.`

// Output holds the full scored set plus the ranked kept subset.
type Output struct {
	// Sources carries one entry per input result, scored and classified.
	Sources []types.EvaluatedSource

	// Kept is the ranked, size-capped subset that survives the relevance
	// threshold. Never longer than the keep budget.
	Kept []types.EvaluatedSource

	// FailedBatches counts batches degraded to neutral scores.
	FailedBatches int

	// Shortfall is set when fewer than cfg.MinSources survive. The
	// evaluator does not relax its threshold; callers decide.
	Shortfall bool

	// ModelUsed is the model that served at least one batch ("" when every
	// batch degraded).
	ModelUsed string
}

// batchScore is one source's entry in the structured completion payload.
type batchScore struct {
	Index       int     `json:"index"`
	Relevance   float64 `json:"relevance"`
	Recency     float64 `json:"recency"`
	Authority   float64 `json:"authority"`
	Bias        float64 `json:"bias"`
	Class       string  `json:"class"`
	Contradicts string  `json:"contradicts"`
}

// Evaluate scores all results in fixed-size batches submitted concurrently,
// derives credibility from domain heuristics, ranks by composite score, and
// keeps at most keepBudget survivors. It returns an error only when ctx is
// cancelled; every other failure, including a stage deadline, degrades
// locally to neutral scores.
func Evaluate(ctx context.Context, client llm.Client, model, question string, results []types.SearchResult, cfg types.EvaluationConfig, keepBudget int, ledger *costs.Ledger, w io.Writer) (Output, error) {
	if len(results) == 0 {
		return Output{}, nil
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 15
	}

	scored := make([]types.EvaluatedSource, len(results))
	now := time.Now()
	for i, r := range results {
		cred := credibility(r, now)
		scored[i] = types.EvaluatedSource{
			SearchResult: r,
			Relevance:    neutralScore,
			Recency:      neutralScore,
			Authority:    neutralScore,
			Bias:         neutralScore,
			Class:        types.ClassSecondary,
			Credibility:  cred,
			Tier:         tierFor(cred),
		}
	}

	var (
		mu        sync.Mutex
		failed    int
		succeeded bool
	)

	g, gctx := errgroup.WithContext(ctx)
	for start := 0; start < len(results); start += batchSize {
		end := start + batchSize
		if end > len(results) {
			end = len(results)
		}
		start, end := start, end

		g.Go(func() error {
			ok := scoreBatch(gctx, client, model, question, results[start:end], scored[start:end], ledger, w)
			mu.Lock()
			if ok {
				succeeded = true
			} else {
				failed++
			}
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	// A stage deadline is just another way for batches to fail: the neutral
	// prefill stands. Only caller cancellation aborts.
	if errors.Is(ctx.Err(), context.Canceled) {
		return Output{}, ctx.Err()
	}

	for i := range scored {
		scored[i].Composite = composite(scored[i], cfg.Weights)
	}

	kept := rank(scored, cfg.RelevanceThreshold, keepBudget)

	out := Output{
		Sources:       scored,
		Kept:          kept,
		FailedBatches: failed,
	}
	if succeeded {
		out.ModelUsed = model
	}
	if len(kept) < cfg.MinSources {
		out.Shortfall = true
		fmt.Fprintf(w, "warning: only %d sources survived evaluation (minimum %d)\n", len(kept), cfg.MinSources)
	}
	return out, nil
}

// scoreBatch submits one batch as a structured completion and writes the
// validated scores into out. Returns false when the batch degraded to
// neutral scores.
func scoreBatch(ctx context.Context, client llm.Client, model, question string, batch []types.SearchResult, out []types.EvaluatedSource, ledger *costs.Ledger, w io.Writer) bool {
	prompt := batchPrompt(question, batch)

	raw, err := client.Structured(ctx, llm.StructuredRequest{
		Model:     model,
		System:    systemPrompt,
		Prompt:    prompt,
		MaxTokens: 2048,
	})
	if err != nil {
		fmt.Fprintf(w, "warning: evaluation batch failed, using neutral scores: %v\n", err)
		return false
	}

	ledger.AddEntry(types.StageEvaluate, model,
		costs.EstimateTokens(systemPrompt+prompt), costs.EstimateTokens(string(raw)))

	var resp struct {
		Scores []batchScore `json:"scores"`
	}
	if err := llm.Decode(raw, &resp); err != nil {
		fmt.Fprintf(w, "warning: evaluation batch returned malformed payload, using neutral scores: %v\n", err)
		return false
	}

	for _, s := range resp.Scores {
		if s.Index < 0 || s.Index >= len(out) {
			continue
		}
		e := &out[s.Index]
		e.Relevance = clamp01(s.Relevance)
		e.Recency = clamp01(s.Recency)
		e.Authority = clamp01(s.Authority)
		e.Bias = clamp01(s.Bias)
		e.Contradicts = s.Contradicts
		switch types.SourceClass(s.Class) {
		case types.ClassPrimary, types.ClassSecondary, types.ClassTertiary:
			e.Class = types.SourceClass(s.Class)
		}
	}
	return true
}

func batchPrompt(question string, batch []types.SearchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Research question: %s\n\nSources:\n", question)
	for i, r := range batch {
		snippet := r.Snippet
		if len(snippet) > 500 {
			snippet = snippet[:500]
		}
		fmt.Fprintf(&b, "[%d] %s\n    %s\n    %s\n", i, r.Title, r.URL, snippet)
		if !r.Published.IsZero() {
			fmt.Fprintf(&b, "    published: %s\n", r.Published.Format("2006-01-02"))
		}
	}
	return b.String()
}

// composite combines the four axes into one ranking score. The bias weight
// is folded back into the three positive weights (scaled proportionally) so
// the positive weights sum to the configured total, then bias is subtracted
// at its own weight as a penalty.
func composite(e types.EvaluatedSource, wts types.ScoreWeights) float64 {
	positive := wts.Relevance + wts.Recency + wts.Authority
	if positive <= 0 {
		return 0
	}
	scale := (positive + wts.Bias) / positive

	score := e.Relevance*wts.Relevance*scale +
		e.Recency*wts.Recency*scale +
		e.Authority*wts.Authority*scale -
		e.Bias*wts.Bias
	return clamp01(score)
}

// rank filters by relevance threshold, sorts descending by composite score,
// truncates to the keep budget, and marks the survivors.
func rank(scored []types.EvaluatedSource, threshold float64, keepBudget int) []types.EvaluatedSource {
	var kept []types.EvaluatedSource
	for _, e := range scored {
		if e.Relevance >= threshold {
			kept = append(kept, e)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Composite > kept[j].Composite
	})

	if keepBudget > 0 && len(kept) > keepBudget {
		kept = kept[:keepBudget]
	}

	for i := range kept {
		kept[i].Kept = true
		if kept[i].Tier == types.TierLow {
			kept[i].Flagged = true
		}
	}
	return kept
}

// KeepTop returns the top n sources by composite score, marked kept. Used
// by callers that decide to override an empty threshold result.
func KeepTop(scored []types.EvaluatedSource, n int) []types.EvaluatedSource {
	ranked := append([]types.EvaluatedSource(nil), scored...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Composite > ranked[j].Composite
	})
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	for i := range ranked {
		ranked[i].Kept = true
		if ranked[i].Tier == types.TierLow {
			ranked[i].Flagged = true
		}
	}
	return ranked
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
