// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package decompose turns a research question into independent sub-queries.
// Implements: prd010-pipeline R2 (decomposition stage).
package decompose

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/pdiddy/deep-research/internal/costs"
	"github.com/pdiddy/deep-research/internal/llm"
	"github.com/pdiddy/deep-research/pkg/types"
)

const systemPrompt = `You are a research planner. Decompose the research question into
independent web-search queries that together cover its main facets. Respond
with a JSON object: {"queries": [{"query": "...", "priority": "high|medium|low",
"language": "en"}]}. Queries must be concrete and searchable, not questions.`

// response is the structured completion payload. Fields missing from the
// model's JSON decode to zero values and are defaulted in convert.
type response struct {
	Queries []struct {
		Query    string `json:"query"`
		Priority string `json:"priority"`
		Language string `json:"language"`
	} `json:"queries"`
}

// Decompose produces up to count sub-queries for question, attempting each
// model in chain until one returns a usable result. On total failure,
// including a stage deadline, it degrades to a single sub-query holding the
// original question, so the pipeline can still run in reduced form. It
// returns an error only when ctx is cancelled. The returned model id is the
// one that actually served the call ("" when degraded).
func Decompose(ctx context.Context, client llm.Client, chain []string, question string, count int, ledger *costs.Ledger, w io.Writer) ([]types.SubQuery, string, error) {
	prompt := fmt.Sprintf("Research question: %s\n\nProduce %d sub-queries.", question, count)

	for _, model := range chain {
		raw, err := client.Structured(ctx, llm.StructuredRequest{
			Model:     model,
			System:    systemPrompt,
			Prompt:    prompt,
			MaxTokens: 1024,
		})
		if err != nil {
			fmt.Fprintf(w, "warning: decomposition on %s failed: %v\n", model, err)
			// A stage deadline counts as total failure and falls through to
			// the verbatim degradation; only caller cancellation aborts.
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil, "", ctx.Err()
			}
			continue
		}

		ledger.AddEntry(types.StageDecompose, model,
			costs.EstimateTokens(systemPrompt+prompt), costs.EstimateTokens(string(raw)))

		var resp response
		if err := llm.Decode(raw, &resp); err != nil {
			fmt.Fprintf(w, "warning: decomposition on %s returned malformed payload: %v\n", model, err)
			continue
		}

		subs := convert(resp, count)
		if len(subs) > 0 {
			return subs, model, nil
		}
		fmt.Fprintf(w, "warning: decomposition on %s produced no usable queries\n", model)
	}

	// Degraded default: search the original question as-is.
	fmt.Fprintf(w, "warning: decomposition failed on all models, using the question verbatim\n")
	return []types.SubQuery{{
		ID:       uuid.NewString(),
		Query:    question,
		Priority: types.PriorityHigh,
		Language: "en",
		State:    types.SubQueryPending,
	}}, "", nil
}

// convert validates and normalizes the payload: blank and duplicate queries
// are dropped, unknown priorities default to medium, and the result is
// clamped to count.
func convert(resp response, count int) []types.SubQuery {
	seen := make(map[string]bool)
	var subs []types.SubQuery

	for _, q := range resp.Queries {
		text := strings.TrimSpace(q.Query)
		if text == "" {
			continue
		}
		key := strings.ToLower(text)
		if seen[key] {
			continue
		}
		seen[key] = true

		priority := types.SubQueryPriority(q.Priority)
		switch priority {
		case types.PriorityHigh, types.PriorityMedium, types.PriorityLow:
		default:
			priority = types.PriorityMedium
		}

		lang := q.Language
		if lang == "" {
			lang = "en"
		}

		subs = append(subs, types.SubQuery{
			ID:       uuid.NewString(),
			Query:    text,
			Priority: priority,
			Language: lang,
			State:    types.SubQueryPending,
		})
		if len(subs) == count {
			break
		}
	}
	return subs
}
