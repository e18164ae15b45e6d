// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"math"
	"sort"
	"testing"
)

func TestLookupKnownModel(t *testing.T) {
	e, ok := Lookup("gpt-5")
	if !ok {
		t.Fatal("Lookup(gpt-5) ok = false, want true")
	}
	if e.ID != "gpt-5" {
		t.Errorf("ID = %q, want gpt-5", e.ID)
	}
	if e.InputPerM <= 0 || e.OutputPerM <= 0 {
		t.Errorf("prices = %f/%f, want positive", e.InputPerM, e.OutputPerM)
	}
}

func TestLookupUnknownModel(t *testing.T) {
	e, ok := Lookup("some-future-model")
	if ok {
		t.Error("Lookup(unknown) ok = true, want false")
	}
	if e.ID != "some-future-model" {
		t.Errorf("ID = %q, want the requested id", e.ID)
	}
	if e.Limits != DefaultLimits {
		t.Errorf("Limits = %+v, want DefaultLimits", e.Limits)
	}
	if e.InputPerM <= 0 || e.OutputPerM <= 0 {
		t.Error("unknown models must still carry positive prices")
	}
}

func TestLimitsOrdering(t *testing.T) {
	// Every model's tiers must be strictly increasing in capacity, and a
	// tier's select limit never exceeds its search limit.
	for _, id := range Models() {
		e, _ := Lookup(id)
		lim := e.Limits
		if lim.Base.MaxSearch >= lim.Extended.MaxSearch {
			t.Errorf("%s: base search %d >= extended search %d", id, lim.Base.MaxSearch, lim.Extended.MaxSearch)
		}
		if lim.Base.MaxSelect >= lim.Extended.MaxSelect {
			t.Errorf("%s: base select %d >= extended select %d", id, lim.Base.MaxSelect, lim.Extended.MaxSelect)
		}
		if lim.Ultra != nil {
			if lim.Extended.MaxSearch >= lim.Ultra.MaxSearch {
				t.Errorf("%s: extended search %d >= ultra search %d", id, lim.Extended.MaxSearch, lim.Ultra.MaxSearch)
			}
		}
		for _, tier := range []TierLimit{lim.Base, lim.Extended} {
			if tier.MaxSelect > tier.MaxSearch {
				t.Errorf("%s: select %d > search %d", id, tier.MaxSelect, tier.MaxSearch)
			}
		}
	}
}

func TestUltraAvailability(t *testing.T) {
	tests := []struct {
		id        string
		wantUltra bool
	}{
		{"gemini-2.5-pro", true},
		{"gpt-5", true},
		{"claude-opus-4-1", true},
		{"gpt-5-mini", false},
		{"gpt-4o-mini", false},
		{"claude-haiku-3-5", false},
	}
	for _, tt := range tests {
		e, ok := Lookup(tt.id)
		if !ok {
			t.Fatalf("Lookup(%s) not found", tt.id)
		}
		if got := e.Limits.Ultra != nil; got != tt.wantUltra {
			t.Errorf("%s: ultra available = %v, want %v", tt.id, got, tt.wantUltra)
		}
	}
}

func TestCost(t *testing.T) {
	// gpt-5: $1.25/M input, $10.00/M output.
	got := Cost("gpt-5", 1_000_000, 100_000)
	want := 1.25 + 1.00
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Cost = %f, want %f", got, want)
	}

	if Cost("gpt-5", 0, 0) != 0 {
		t.Error("zero tokens must cost zero")
	}

	// Unknown models are priced with the fallback entry, never zero.
	if Cost("some-future-model", 1_000_000, 0) <= 0 {
		t.Error("unknown model cost must be positive")
	}
}

func TestModelsSorted(t *testing.T) {
	ids := Models()
	if len(ids) == 0 {
		t.Fatal("Models() returned no entries")
	}
	if !sort.StringsAreSorted(ids) {
		t.Errorf("Models() = %v, want sorted", ids)
	}
}
