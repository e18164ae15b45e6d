// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package costs accumulates per-call cost estimates for one run.
// Implements: prd015-costs (R1-R3); docs/ARCHITECTURE § Cost Ledger.
package costs

import (
	"sync"
	"time"

	"github.com/pdiddy/deep-research/internal/catalog"
	"github.com/pdiddy/deep-research/pkg/types"
)

// Ledger is an append-only record of estimated completion and search costs.
// It is safe for use from concurrent stage goroutines. Entries record
// estimates, not metered usage; there is no retroactive correction.
type Ledger struct {
	mu          sync.Mutex
	entries     []types.CostEntry
	searchCalls int
	searchUSD   float64
	perQueryUSD float64
}

// NewLedger returns a ledger charging perQueryUSD for each search call.
func NewLedger(perQueryUSD float64) *Ledger {
	return &Ledger{perQueryUSD: perQueryUSD}
}

// AddEntry records one completion call. The USD cost is computed from the
// model catalog's price table.
func (l *Ledger) AddEntry(stage types.Stage, model string, inputTokens, outputTokens int) {
	entry := types.CostEntry{
		Stage:        stage,
		Model:        model,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		CostUSD:      catalog.Cost(model, inputTokens, outputTokens),
		Timestamp:    time.Now(),
	}
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
}

// AddSearchCost records n search calls at the flat per-query price.
func (l *Ledger) AddSearchCost(n int) {
	l.mu.Lock()
	l.searchCalls += n
	l.searchUSD += float64(n) * l.perQueryUSD
	l.mu.Unlock()
}

// Breakdown aggregates all entries by stage and by model.
func (l *Ledger) Breakdown() types.CostBreakdown {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := types.CostBreakdown{
		ByStage:     make(map[string]float64),
		ByModel:     make(map[string]float64),
		SearchCalls: l.searchCalls,
		Entries:     append([]types.CostEntry(nil), l.entries...),
	}
	for _, e := range l.entries {
		b.TotalUSD += e.CostUSD
		b.InputTokens += e.InputTokens
		b.OutputTokens += e.OutputTokens
		b.ByStage[string(e.Stage)] += e.CostUSD
		b.ByModel[e.Model] += e.CostUSD
	}
	if l.searchCalls > 0 {
		b.TotalUSD += l.searchUSD
		b.ByStage[string(types.StageSearch)] += l.searchUSD
	}
	return b
}

// EstimateTokens approximates the token count of text at four characters
// per token, the usual conservative rule of thumb for English prose.
func EstimateTokens(text string) int {
	n := len(text) / 4
	if n == 0 && len(text) > 0 {
		n = 1
	}
	return n
}
