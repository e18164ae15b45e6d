// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package modes resolves the synthesis processing mode from a model's
// context capacity and the requested source counts.
// Implements: prd013-synthesis R1 (mode selection, clamping).
package modes

import "github.com/pdiddy/deep-research/internal/catalog"

// Mode is the synthesis strategy tier.
type Mode string

const (
	// ModeBase inlines all kept sources into a single completion.
	ModeBase Mode = "base"

	// ModeExtended compresses source batches concurrently, then combines
	// the digests (map-reduce).
	ModeExtended Mode = "extended"

	// ModeUltra runs map-reduce over a first slice, enriches the report
	// with the remaining sources round by round, then verifies it.
	ModeUltra Mode = "ultra"
)

// Resolution is the outcome of resolving a (model, search, select) request.
// EffectiveSearch and EffectiveSelect are the clamped counts; Clamped is set
// when the requested search count exceeded the model's highest tier.
type Resolution struct {
	Mode            Mode
	EffectiveSearch int
	EffectiveSelect int
	Clamped         bool

	// Limits are the chosen tier's bounds, exposed so callers can size
	// batches without a second catalog lookup.
	Limits catalog.TierLimit
}

// Resolve picks the lowest tier whose search capacity covers the requested
// count. Requests beyond the model's highest tier are clamped to that tier,
// never rejected. The select count is clamped to the chosen tier's select
// limit independently of which tier satisfied the search count. Unknown
// model ids resolve against the catalog's conservative default table.
func Resolve(modelID string, requestedSearch, requestedSelect int) Resolution {
	entry, _ := catalog.Lookup(modelID)
	lim := entry.Limits

	var (
		mode    Mode
		tier    catalog.TierLimit
		clamped bool
	)

	switch {
	case requestedSearch <= lim.Base.MaxSearch:
		mode, tier = ModeBase, lim.Base
	case requestedSearch <= lim.Extended.MaxSearch:
		mode, tier = ModeExtended, lim.Extended
	case lim.Ultra != nil && requestedSearch <= lim.Ultra.MaxSearch:
		mode, tier = ModeUltra, *lim.Ultra
	case lim.Ultra != nil:
		mode, tier, clamped = ModeUltra, *lim.Ultra, true
	default:
		mode, tier, clamped = ModeExtended, lim.Extended, true
	}

	search := requestedSearch
	if search > tier.MaxSearch {
		search = tier.MaxSearch
	}
	sel := requestedSelect
	if sel > tier.MaxSelect {
		sel = tier.MaxSelect
	}
	if sel <= 0 {
		sel = tier.MaxSelect
	}

	return Resolution{
		Mode:            mode,
		EffectiveSearch: search,
		EffectiveSelect: sel,
		Clamped:         clamped,
		Limits:          tier,
	}
}
