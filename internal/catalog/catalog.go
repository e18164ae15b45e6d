// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package catalog is the read-only model catalog: per-model token prices,
// context-window sizes, and processing-tier limits.
// Implements: prd014-routing (R1, R2); docs/ARCHITECTURE § Model Catalog.
package catalog

import "sort"

// TierLimit bounds one processing tier for a model.
type TierLimit struct {
	// MaxSearch is the maximum number of sources the tier can process.
	MaxSearch int

	// MaxSelect is the maximum number of sources the tier can keep for
	// synthesis context.
	MaxSelect int
}

// Limits holds the processing tiers for one model. Ultra is nil for models
// whose context window cannot support iterative synthesis.
type Limits struct {
	Base     TierLimit
	Extended TierLimit
	Ultra    *TierLimit
}

// Entry describes one model: prices in USD per million tokens and the
// context window in K tokens. Tier limits are derived from the context
// window with a fixed safety margin and recorded here as static policy.
type Entry struct {
	ID           string
	InputPerM    float64
	OutputPerM   float64
	ContextSizeK int
	Limits       Limits
}

// Tier limit tables by context-window class. Derived offline as roughly
// contextK/8 searchable and contextK/16 selectable sources per tier step,
// with a safety margin for prompt scaffolding.
var (
	limitsLarge = Limits{ // ~1M context
		Base:     TierLimit{MaxSearch: 50, MaxSelect: 25},
		Extended: TierLimit{MaxSearch: 120, MaxSelect: 60},
		Ultra:    &TierLimit{MaxSearch: 250, MaxSelect: 120},
	}
	limitsMedium = Limits{ // ~200-300K context
		Base:     TierLimit{MaxSearch: 25, MaxSelect: 12},
		Extended: TierLimit{MaxSearch: 60, MaxSelect: 30},
		Ultra:    &TierLimit{MaxSearch: 120, MaxSelect: 60},
	}
	limitsMediumNoUltra = Limits{
		Base:     TierLimit{MaxSearch: 25, MaxSelect: 12},
		Extended: TierLimit{MaxSearch: 60, MaxSelect: 30},
	}
	limitsSmall = Limits{ // ~128K context
		Base:     TierLimit{MaxSearch: 15, MaxSelect: 8},
		Extended: TierLimit{MaxSearch: 40, MaxSelect: 20},
	}
)

// DefaultLimits is the conservative fallback for unknown model ids.
var DefaultLimits = Limits{
	Base:     TierLimit{MaxSearch: 10, MaxSelect: 5},
	Extended: TierLimit{MaxSearch: 25, MaxSelect: 12},
}

// entries is the static catalog. Prices are USD per million tokens.
var entries = map[string]Entry{
	"gpt-5":             {ID: "gpt-5", InputPerM: 1.25, OutputPerM: 10.00, ContextSizeK: 272, Limits: limitsMedium},
	"gpt-5-mini":        {ID: "gpt-5-mini", InputPerM: 0.25, OutputPerM: 2.00, ContextSizeK: 272, Limits: limitsMediumNoUltra},
	"gpt-4.1":           {ID: "gpt-4.1", InputPerM: 2.00, OutputPerM: 8.00, ContextSizeK: 1024, Limits: limitsLarge},
	"gpt-4o-mini":       {ID: "gpt-4o-mini", InputPerM: 0.15, OutputPerM: 0.60, ContextSizeK: 128, Limits: limitsSmall},
	"claude-opus-4-1":   {ID: "claude-opus-4-1", InputPerM: 15.00, OutputPerM: 75.00, ContextSizeK: 200, Limits: limitsMedium},
	"claude-sonnet-4-5": {ID: "claude-sonnet-4-5", InputPerM: 3.00, OutputPerM: 15.00, ContextSizeK: 200, Limits: limitsMedium},
	"claude-haiku-3-5":  {ID: "claude-haiku-3-5", InputPerM: 0.80, OutputPerM: 4.00, ContextSizeK: 200, Limits: limitsMediumNoUltra},
	"gemini-2.5-pro":    {ID: "gemini-2.5-pro", InputPerM: 1.25, OutputPerM: 10.00, ContextSizeK: 1024, Limits: limitsLarge},
	"gemini-2.5-flash":  {ID: "gemini-2.5-flash", InputPerM: 0.30, OutputPerM: 2.50, ContextSizeK: 1024, Limits: limitsLarge},
}

// Lookup returns the catalog entry for id. Unknown ids return a conservative
// default entry with ok=false so callers can still price and bound the call.
func Lookup(id string) (Entry, bool) {
	if e, ok := entries[id]; ok {
		return e, true
	}
	return Entry{
		ID:           id,
		InputPerM:    3.00,
		OutputPerM:   15.00,
		ContextSizeK: 128,
		Limits:       DefaultLimits,
	}, false
}

// Cost returns the USD cost of a call against model id for the given
// estimated token counts.
func Cost(id string, inputTokens, outputTokens int) float64 {
	e, _ := Lookup(id)
	return float64(inputTokens)/1e6*e.InputPerM + float64(outputTokens)/1e6*e.OutputPerM
}

// Models returns all known model ids in sorted order.
func Models() []string {
	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
