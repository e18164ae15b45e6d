// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package modes

import (
	"testing"

	"github.com/pdiddy/deep-research/internal/catalog"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name        string
		model       string
		search      int
		sel         int
		wantMode    Mode
		wantSearch  int
		wantSelect  int
		wantClamped bool
	}{
		// claude-sonnet-4-5: base 25/12, extended 60/30, ultra 120/60.
		{"fits base", "claude-sonnet-4-5", 20, 10, ModeBase, 20, 10, false},
		{"base boundary", "claude-sonnet-4-5", 25, 12, ModeBase, 25, 12, false},
		{"spills to extended", "claude-sonnet-4-5", 26, 12, ModeExtended, 26, 12, false},
		{"spills to ultra", "claude-sonnet-4-5", 61, 30, ModeUltra, 61, 30, false},
		{"clamped at ultra", "claude-sonnet-4-5", 500, 200, ModeUltra, 120, 60, true},

		// gpt-5-mini has no ultra tier: clamp at extended.
		{"no ultra clamps at extended", "gpt-5-mini", 100, 50, ModeExtended, 60, 30, true},

		// Large-context models take much more in base.
		{"large context stays base", "gemini-2.5-flash", 40, 20, ModeBase, 40, 20, false},

		// Select is clamped to the chosen tier even when search fits.
		{"select clamped independently", "claude-sonnet-4-5", 20, 40, ModeBase, 20, 12, false},

		// Unknown model falls back to the conservative default table.
		{"unknown model", "mystery-model", 20, 10, ModeExtended, 20, 10, false},
		{"unknown model clamped", "mystery-model", 100, 50, ModeExtended, 25, 12, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.model, tt.search, tt.sel)
			if got.Mode != tt.wantMode {
				t.Errorf("Mode = %s, want %s", got.Mode, tt.wantMode)
			}
			if got.EffectiveSearch != tt.wantSearch {
				t.Errorf("EffectiveSearch = %d, want %d", got.EffectiveSearch, tt.wantSearch)
			}
			if got.EffectiveSelect != tt.wantSelect {
				t.Errorf("EffectiveSelect = %d, want %d", got.EffectiveSelect, tt.wantSelect)
			}
			if got.Clamped != tt.wantClamped {
				t.Errorf("Clamped = %v, want %v", got.Clamped, tt.wantClamped)
			}
		})
	}
}

func TestResolveMonotone(t *testing.T) {
	// Increasing the requested search count never lowers the resolved tier
	// or the effective counts.
	rank := map[Mode]int{ModeBase: 0, ModeExtended: 1, ModeUltra: 2}

	for _, model := range catalog.Models() {
		prev := Resolve(model, 1, 1)
		for search := 2; search <= 300; search++ {
			cur := Resolve(model, search, search/2+1)
			if rank[cur.Mode] < rank[prev.Mode] {
				t.Fatalf("%s: mode dropped from %s to %s at search=%d", model, prev.Mode, cur.Mode, search)
			}
			if cur.EffectiveSearch < prev.EffectiveSearch {
				t.Fatalf("%s: effective search dropped from %d to %d at search=%d",
					model, prev.EffectiveSearch, cur.EffectiveSearch, search)
			}
			prev = cur
		}
	}
}

func TestResolveNeverExceedsTier(t *testing.T) {
	for _, model := range catalog.Models() {
		for _, search := range []int{1, 10, 50, 100, 1000} {
			got := Resolve(model, search, search)
			if got.EffectiveSearch > got.Limits.MaxSearch {
				t.Errorf("%s search=%d: effective search %d > tier limit %d",
					model, search, got.EffectiveSearch, got.Limits.MaxSearch)
			}
			if got.EffectiveSelect > got.Limits.MaxSelect {
				t.Errorf("%s search=%d: effective select %d > tier limit %d",
					model, search, got.EffectiveSelect, got.Limits.MaxSelect)
			}
		}
	}
}

func TestResolveZeroSelectDefaults(t *testing.T) {
	got := Resolve("claude-sonnet-4-5", 10, 0)
	if got.EffectiveSelect != got.Limits.MaxSelect {
		t.Errorf("EffectiveSelect = %d, want tier default %d", got.EffectiveSelect, got.Limits.MaxSelect)
	}
}
