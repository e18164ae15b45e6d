// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package synthesize

import (
	"context"
	"fmt"

	"github.com/pdiddy/deep-research/internal/llm"
	"github.com/pdiddy/deep-research/pkg/types"
)

// direct is the base strategy: one streaming completion with every kept
// source inlined as numbered context.
func (e *Engine) direct(ctx context.Context, in Input, emit func(string)) (string, bool, error) {
	prompt := fmt.Sprintf("Research question: %s\n\nSources:\n\n%s",
		in.Question, formatSources(in.Sources, 1))

	report, reason, err := e.stream(ctx, types.StageSynthesize, in.Chain, reportSystem, prompt, in.MaxOutputTokens, emit)
	if err != nil {
		return "", false, err
	}

	truncated := reason == llm.FinishLength
	if truncated {
		emit(truncationNotice)
		report += truncationNotice
	}
	return report, truncated, nil
}
