// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package synthesize

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/deep-research/internal/llm"
	"github.com/pdiddy/deep-research/pkg/types"
)

// digest is one batch's compressed contribution to the reduce step.
type digest struct {
	startNum int
	text     string
	degraded bool
}

// mapReduce is the extended strategy: compress source batches concurrently
// into digests, then combine the digests into one thematically organized
// report with a single reduce call.
func (e *Engine) mapReduce(ctx context.Context, in Input, emit func(string)) (string, bool, error) {
	digests, err := e.mapPhase(ctx, in.Question, in.Sources, in.Chain, mapBatchSize(in.Resolution, in.Chain), 1)
	if err != nil {
		return "", false, err
	}
	return e.reducePhase(ctx, in, digests, emit)
}

// mapPhase summarizes batches concurrently. A batch whose digest call fails
// is replaced with a raw title+snippet listing rather than dropped, so
// every source stays representable in the reduce step.
func (e *Engine) mapPhase(ctx context.Context, question string, sources []types.EvaluatedSource, chain []string, batchSize, startNum int) ([]digest, error) {
	var batches []digest
	for start := 0; start < len(sources); start += batchSize {
		batches = append(batches, digest{startNum: startNum + start})
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := range batches {
		i := i
		start := i * batchSize
		end := start + batchSize
		if end > len(sources) {
			end = len(sources)
		}
		batch := sources[start:end]
		num := batches[i].startNum

		g.Go(func() error {
			prompt := fmt.Sprintf("Research question: %s\n\nSources:\n\n%s",
				question, formatSources(batch, num))

			raw, err := e.structured(gctx, types.StageSynthesize, chain, digestSystem, prompt, 2048)
			if err != nil {
				fmt.Fprintf(e.Log, "warning: digest batch at [%d] degraded to raw snippets: %v\n", num, err)
				batches[i].text = rawDigest(batch, num)
				batches[i].degraded = true
				return nil
			}

			var resp struct {
				Digest         string   `json:"digest"`
				Contradictions []string `json:"contradictions"`
			}
			if err := llm.Decode(raw, &resp); err != nil || strings.TrimSpace(resp.Digest) == "" {
				batches[i].text = rawDigest(batch, num)
				batches[i].degraded = true
				return nil
			}

			text := resp.Digest
			if len(resp.Contradictions) > 0 {
				text += "\nContradictions: " + strings.Join(resp.Contradictions, "; ")
			}
			batches[i].text = text
			return nil
		})
	}
	g.Wait()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return batches, nil
}

// reducePhase combines digests into the final report. A reduce failure
// falls back to streaming the concatenated digests rather than failing the
// run.
func (e *Engine) reducePhase(ctx context.Context, in Input, digests []digest, emit func(string)) (string, bool, error) {
	prompt := fmt.Sprintf("Research question: %s\n\nBatch digests:\n\n%s",
		in.Question, joinDigests(digests))

	report, reason, err := e.stream(ctx, types.StageSynthesize, in.Chain, reduceSystem, prompt, in.MaxOutputTokens, emit)
	if err != nil {
		if ctx.Err() != nil {
			return "", false, ctx.Err()
		}
		fmt.Fprintf(e.Log, "warning: reduce failed, returning concatenated digests: %v\n", err)
		report = joinDigests(digests)
		emit(report)
		return report, false, nil
	}

	truncated := reason == llm.FinishLength
	if truncated {
		emit(truncationNotice)
		report += truncationNotice
	}
	return report, truncated, nil
}

func joinDigests(digests []digest) string {
	parts := make([]string, len(digests))
	for i, d := range digests {
		parts[i] = d.text
	}
	return strings.Join(parts, "\n\n")
}
