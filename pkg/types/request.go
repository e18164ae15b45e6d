// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the deep-research pipeline.
// Implements: prd010-pipeline (ResearchRequest, SubQuery, depth presets);
//
//	prd012-evaluation (EvaluatedSource);
//	prd016-events (PipelineEvent and payloads);
//	prd015-costs (CostEntry, CostBreakdown).
//
// See docs/ARCHITECTURE § Pipeline Interface, § Data Structures.
package types

// Depth selects a preset balancing breadth against latency and cost.
type Depth string

const (
	DepthFast       Depth = "fast"
	DepthNormal     Depth = "normal"
	DepthDeep       Depth = "deep"
	DepthExhaustive Depth = "exhaustive"
)

// Stage identifies one pipeline stage. Stage names appear in events,
// cost entries, and the per-stage model override map.
type Stage string

const (
	StageDecompose  Stage = "decompose"
	StageSearch     Stage = "search"
	StageEvaluate   Stage = "evaluate"
	StageExtract    Stage = "extract"
	StageSynthesize Stage = "synthesize"
	StageVerify     Stage = "verify"
	StagePost       Stage = "post"
)

// CostPreference selects how models are chosen per stage.
type CostPreference string

const (
	CostAuto    CostPreference = "auto"
	CostEconomy CostPreference = "economy"
	CostPremium CostPreference = "premium"
	CostCustom  CostPreference = "custom"
)

// ResearchRequest describes one research run. It is immutable once the
// pipeline starts executing it.
type ResearchRequest struct {
	// Question is the natural-language research question.
	Question string `json:"question" yaml:"question"`

	// Depth selects the preset (sub-query count, source budget, default models).
	Depth Depth `json:"depth" yaml:"depth"`

	// Domains optionally restricts search to these domains.
	Domains []string `json:"domains,omitempty" yaml:"domains,omitempty"`

	// CostPreference selects the model-routing policy.
	CostPreference CostPreference `json:"cost_preference" yaml:"cost_preference"`

	// ModelOverrides maps a stage to an explicit model id. Consulted only
	// when CostPreference is "custom".
	ModelOverrides map[Stage]string `json:"model_overrides,omitempty" yaml:"model_overrides,omitempty"`
}

// DepthPreset carries the defaults attached to one Depth value.
type DepthPreset struct {
	// SubQueries is the number of sub-queries decomposition targets.
	SubQueries int

	// MaxSources is the keep budget after evaluation.
	MaxSources int

	// FetchContent enables the optional full-content extraction stage.
	FetchContent bool

	// StageModels holds the default model per stage for the "auto" preference.
	StageModels map[Stage]string
}

// depthPresets is the fixed preset table. Per-stage defaults deliberately
// mix providers so cheap stages run on cheap models.
var depthPresets = map[Depth]DepthPreset{
	DepthFast: {
		SubQueries: 3,
		MaxSources: 8,
		StageModels: map[Stage]string{
			StageDecompose:  "gemini-2.5-flash",
			StageEvaluate:   "gemini-2.5-flash",
			StageSynthesize: "claude-sonnet-4-5",
		},
	},
	DepthNormal: {
		SubQueries: 6,
		MaxSources: 15,
		StageModels: map[Stage]string{
			StageDecompose:  "gpt-5-mini",
			StageEvaluate:   "gemini-2.5-flash",
			StageSynthesize: "claude-sonnet-4-5",
		},
	},
	DepthDeep: {
		SubQueries:   10,
		MaxSources:   25,
		FetchContent: true,
		StageModels: map[Stage]string{
			StageDecompose:  "claude-sonnet-4-5",
			StageEvaluate:   "gpt-5-mini",
			StageSynthesize: "gpt-5",
		},
	},
	DepthExhaustive: {
		SubQueries:   14,
		MaxSources:   40,
		FetchContent: true,
		StageModels: map[Stage]string{
			StageDecompose:  "claude-sonnet-4-5",
			StageEvaluate:   "gpt-5-mini",
			StageSynthesize: "claude-opus-4-1",
		},
	},
}

// PresetFor returns the preset for d, falling back to normal for
// unrecognized values.
func PresetFor(d Depth) DepthPreset {
	if p, ok := depthPresets[d]; ok {
		return p
	}
	return depthPresets[DepthNormal]
}

// SubQueryPriority orders sub-queries by importance to the question.
type SubQueryPriority string

const (
	PriorityHigh   SubQueryPriority = "high"
	PriorityMedium SubQueryPriority = "medium"
	PriorityLow    SubQueryPriority = "low"
)

// SubQueryState is the lifecycle state of a sub-query.
type SubQueryState string

const (
	SubQueryPending   SubQueryState = "pending"
	SubQueryCompleted SubQueryState = "completed"
)

// SubQuery is one decomposed facet of the research question, searched
// independently. Created once by decomposition; only State changes afterward.
type SubQuery struct {
	ID       string           `json:"id" yaml:"id"`
	Query    string           `json:"query" yaml:"query"`
	Priority SubQueryPriority `json:"priority" yaml:"priority"`
	Language string           `json:"language" yaml:"language"`
	State    SubQueryState    `json:"state" yaml:"state"`
}
