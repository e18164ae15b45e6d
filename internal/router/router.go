// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package router resolves an abstract pipeline stage to a concrete model id
// plus an ordered fallback chain.
// Implements: prd014-routing (R3-R5); docs/ARCHITECTURE § Model Router.
package router

import (
	"github.com/pdiddy/deep-research/internal/catalog"
	"github.com/pdiddy/deep-research/pkg/types"
)

// Selection is the outcome of routing one stage.
type Selection struct {
	ModelID string

	// Fallbacks is the ordered chain of alternate models to try when a
	// completion call against ModelID fails. ModelID never appears in it.
	Fallbacks []string

	// EstimatedInputTokens / EstimatedOutputTokens / EstimatedCostUSD are
	// rough per-call estimates used for up-front budgeting only.
	EstimatedInputTokens  int
	EstimatedOutputTokens int
	EstimatedCostUSD      float64
}

// Fallback ladders. These are deliberate, versioned policy tables, not
// derived at runtime: changing fallback order is a reviewed config change.
var (
	tierFlagship = []string{"gpt-5", "claude-opus-4-1", "gemini-2.5-pro"}
	tierMid      = []string{"claude-sonnet-4-5", "gpt-4.1", "gemini-2.5-pro"}
	tierBudget   = []string{"gemini-2.5-flash", "gpt-5-mini", "gpt-4o-mini", "claude-haiku-3-5"}
)

// ladderFor maps a stage to its fallback ladder by importance: synthesis and
// verification degrade through flagship models, decomposition through
// mid-tier, everything else through budget models.
func ladderFor(stage types.Stage) []string {
	switch stage {
	case types.StageSynthesize, types.StageVerify:
		return tierFlagship
	case types.StageDecompose:
		return tierMid
	default:
		return tierBudget
	}
}

// Fixed stage→model tables for the economy and premium preferences.
var (
	economyModels = map[types.Stage]string{
		types.StageDecompose:  "gpt-4o-mini",
		types.StageEvaluate:   "gemini-2.5-flash",
		types.StageSynthesize: "gemini-2.5-flash",
		types.StageVerify:     "gemini-2.5-flash",
	}
	premiumModels = map[types.Stage]string{
		types.StageDecompose:  "gpt-5",
		types.StageEvaluate:   "claude-sonnet-4-5",
		types.StageSynthesize: "claude-opus-4-1",
		types.StageVerify:     "claude-opus-4-1",
	}
)

// Rough per-call token estimates by stage, used only to price a selection
// before any call is made.
var stageEstimates = map[types.Stage][2]int{
	types.StageDecompose:  {1000, 600},
	types.StageEvaluate:   {6000, 1500},
	types.StageSynthesize: {20000, 4000},
	types.StageVerify:     {15000, 2000},
}

// Select resolves a stage to a model and fallback chain. Resolution order:
// custom override for the stage (when preference is custom), then the
// economy/premium fixed tables, then the depth preset's per-stage default.
// Pure function: no side effects, safe to call concurrently.
func Select(stage types.Stage, pref types.CostPreference, depth types.Depth, overrides map[types.Stage]string) Selection {
	preset := types.PresetFor(depth)

	var model string
	switch {
	case pref == types.CostCustom && overrides[stage] != "":
		model = overrides[stage]
	case pref == types.CostEconomy:
		model = economyModels[stage]
	case pref == types.CostPremium:
		model = premiumModels[stage]
	}
	if model == "" {
		model = preset.StageModels[stage]
	}
	if model == "" {
		// Stages without a preset default (e.g. verify) inherit synthesis.
		model = preset.StageModels[types.StageSynthesize]
	}

	chain := make([]string, 0, 3)
	for _, m := range ladderFor(stage) {
		if m != model {
			chain = append(chain, m)
		}
	}

	est := stageEstimates[stage]
	return Selection{
		ModelID:               model,
		Fallbacks:             chain,
		EstimatedInputTokens:  est[0],
		EstimatedOutputTokens: est[1],
		EstimatedCostUSD:      catalog.Cost(model, est[0], est[1]),
	}
}

// Chain returns the model followed by its fallbacks, the order completion
// calls should be attempted in.
func (s Selection) Chain() []string {
	return append([]string{s.ModelID}, s.Fallbacks...)
}
