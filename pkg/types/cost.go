// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// CostEntry records the estimated cost of one completion or search call.
// Entries are append-only; token counts are estimates, not metered usage.
type CostEntry struct {
	Stage        Stage     `json:"stage" yaml:"stage"`
	Model        string    `json:"model,omitempty" yaml:"model,omitempty"`
	InputTokens  int       `json:"input_tokens" yaml:"input_tokens"`
	OutputTokens int       `json:"output_tokens" yaml:"output_tokens"`
	CostUSD      float64   `json:"cost_usd" yaml:"cost_usd"`
	Timestamp    time.Time `json:"timestamp" yaml:"timestamp"`
}

// CostBreakdown aggregates a run's entries by stage and by model.
type CostBreakdown struct {
	TotalUSD     float64            `json:"total_usd" yaml:"total_usd"`
	InputTokens  int                `json:"input_tokens" yaml:"input_tokens"`
	OutputTokens int                `json:"output_tokens" yaml:"output_tokens"`
	ByStage      map[string]float64 `json:"by_stage" yaml:"by_stage"`
	ByModel      map[string]float64 `json:"by_model" yaml:"by_model"`
	SearchCalls  int                `json:"search_calls" yaml:"search_calls"`
	Entries      []CostEntry        `json:"entries,omitempty" yaml:"entries,omitempty"`
}
