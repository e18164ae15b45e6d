// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package synthesize

import (
	"context"
	"fmt"

	"github.com/pdiddy/deep-research/internal/llm"
	"github.com/pdiddy/deep-research/pkg/types"
)

// iterative is the ultra strategy: map-reduce over the first ~60% of
// sources, sequential enrichment rounds over the rest, then a mandatory
// verification pass. Only the verified report streams to the caller;
// intermediate drafts stay internal because each round replaces the whole
// text.
func (e *Engine) iterative(ctx context.Context, in Input, emit func(string)) (string, bool, error) {
	batchSize := mapBatchSize(in.Resolution, in.Chain)

	split := len(in.Sources) * 60 / 100
	if split < 1 {
		split = 1
	}
	first, rest := in.Sources[:split], in.Sources[split:]

	// Phase 1: map-reduce over the first slice.
	digests, err := e.mapPhase(ctx, in.Question, first, in.Chain, batchSize, 1)
	if err != nil {
		return "", false, err
	}
	report, _, err := e.reducePhase(ctx, Input{
		Question:        in.Question,
		Chain:           in.Chain,
		MaxOutputTokens: in.MaxOutputTokens,
	}, digests, func(string) {})
	if err != nil {
		return "", false, err
	}

	// Phase 2: strictly sequential enrichment, each round consuming the
	// previous round's full report. A failed round keeps the prior report.
	for start := 0; start < len(rest); start += batchSize {
		end := start + batchSize
		if end > len(rest) {
			end = len(rest)
		}
		batch := rest[start:end]
		num := split + start + 1

		enriched, ok := e.enrichRound(ctx, in, report, batch, num)
		if ctx.Err() != nil {
			return "", false, ctx.Err()
		}
		if ok {
			report = enriched
		}
		digests = append(digests, digest{startNum: num, text: rawDigest(batch, num)})
	}

	// Phase 3: mandatory verification. If it fails, the enriched report is
	// the best-effort result rather than a blocked run.
	verified, truncated, err := e.verify(ctx, in, report, digests, emit)
	if err != nil {
		if ctx.Err() != nil {
			return "", false, ctx.Err()
		}
		fmt.Fprintf(e.Log, "warning: verification failed, returning unverified report: %v\n", err)
		emit(report)
		return report, false, nil
	}
	return verified, truncated, nil
}

// enrichRound merges one batch of new sources into the report. The contract
// is integrate-don't-duplicate: the model adds only uncovered information.
func (e *Engine) enrichRound(ctx context.Context, in Input, report string, batch []types.EvaluatedSource, startNum int) (string, bool) {
	prompt := fmt.Sprintf("Research question: %s\n\nExisting report:\n\n%s\n\nNew sources:\n\n%s",
		in.Question, report, formatSources(batch, startNum))

	enriched, _, err := e.stream(ctx, types.StageSynthesize, in.Chain, enrichSystem, prompt, in.MaxOutputTokens, nil)
	if err != nil || enriched == "" {
		fmt.Fprintf(e.Log, "warning: enrichment round at [%d] failed, keeping previous report: %v\n", startNum, err)
		return "", false
	}
	return enriched, true
}

// verify re-reads the report against the accumulated digests, streaming the
// corrected report with its verification footer to the caller.
func (e *Engine) verify(ctx context.Context, in Input, report string, digests []digest, emit func(string)) (string, bool, error) {
	prompt := fmt.Sprintf("Report:\n\n%s\n\nSource digests:\n\n%s", report, joinDigests(digests))

	verified, reason, err := e.stream(ctx, types.StageVerify, in.Chain, verifySystem, prompt, in.MaxOutputTokens, emit)
	if err != nil {
		return "", false, err
	}

	truncated := reason == llm.FinishLength
	if truncated {
		emit(truncationNotice)
		verified += truncationNotice
	}
	return verified, truncated, nil
}
