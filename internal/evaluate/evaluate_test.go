// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package evaluate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/pdiddy/deep-research/internal/costs"
	"github.com/pdiddy/deep-research/internal/llm"
	"github.com/pdiddy/deep-research/pkg/types"
)

// scoringClient returns uniform scores for every source in a batch. Queries
// failing the failPrompts substring check return an error instead.
type scoringClient struct {
	relevance   float64
	failAlways  bool
	malformed   bool
	structCalls int
}

func (c *scoringClient) Structured(_ context.Context, req llm.StructuredRequest) (json.RawMessage, error) {
	c.structCalls++
	if c.failAlways {
		return nil, errors.New("model unavailable")
	}
	if c.malformed {
		return json.RawMessage(`{"scores": "not-an-array"}`), nil
	}

	// One score per "[N]" line in the prompt.
	n := strings.Count(req.Prompt, "\n[")
	var scores []string
	for i := 0; i < n; i++ {
		scores = append(scores, fmt.Sprintf(
			`{"index": %d, "relevance": %f, "recency": 0.5, "authority": 0.6, "bias": 0.1, "class": "secondary", "contradicts": ""}`,
			i, c.relevance))
	}
	payload := fmt.Sprintf(`{"scores": [%s]}`, strings.Join(scores, ","))
	return json.RawMessage(payload), nil
}

func (c *scoringClient) Stream(_ context.Context, _ llm.StreamRequest) (*llm.Stream, error) {
	return nil, errors.New("stream not supported in this mock")
}

func evalCfg() types.EvaluationConfig {
	return types.EvaluationConfig{
		BatchSize:          15,
		RelevanceThreshold: 0.35,
		MinSources:         3,
		Weights:            types.ScoreWeights{Relevance: 0.4, Recency: 0.2, Authority: 0.3, Bias: 0.1},
	}
}

func makeResults(n int) []types.SearchResult {
	results := make([]types.SearchResult, n)
	for i := range results {
		results[i] = types.SearchResult{
			URL:     fmt.Sprintf("https://example.com/doc-%d", i),
			Title:   fmt.Sprintf("Doc %d", i),
			Snippet: "snippet",
		}
	}
	return results
}

func TestEvaluateTotality(t *testing.T) {
	// Every input result must come back scored, whatever the batch size.
	client := &scoringClient{relevance: 0.8}
	results := makeResults(23)

	var buf bytes.Buffer
	out, err := Evaluate(context.Background(), client, "gemini-2.5-flash", "q", results, evalCfg(), 10, costs.NewLedger(0), &buf)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if len(out.Sources) != len(results) {
		t.Errorf("len(Sources) = %d, want %d", len(out.Sources), len(results))
	}
	if client.structCalls != 2 {
		t.Errorf("structured calls = %d, want 2 batches for 23 sources at batch size 15", client.structCalls)
	}
	if out.ModelUsed != "gemini-2.5-flash" {
		t.Errorf("ModelUsed = %q", out.ModelUsed)
	}
	if out.FailedBatches != 0 {
		t.Errorf("FailedBatches = %d, want 0", out.FailedBatches)
	}
}

func TestEvaluateKeepBudget(t *testing.T) {
	client := &scoringClient{relevance: 0.9}
	results := makeResults(30)

	out, err := Evaluate(context.Background(), client, "m", "q", results, evalCfg(), 10, costs.NewLedger(0), &bytes.Buffer{})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if len(out.Kept) != 10 {
		t.Errorf("len(Kept) = %d, want the keep budget 10", len(out.Kept))
	}
	for _, s := range out.Kept {
		if !s.Kept {
			t.Errorf("kept source %s not marked Kept", s.URL)
		}
	}
	// Ranked descending by composite.
	for i := 1; i < len(out.Kept); i++ {
		if out.Kept[i].Composite > out.Kept[i-1].Composite {
			t.Errorf("kept[%d] composite %f > kept[%d] %f", i, out.Kept[i].Composite, i-1, out.Kept[i-1].Composite)
		}
	}
}

func TestEvaluateThresholdFilters(t *testing.T) {
	client := &scoringClient{relevance: 0.2} // below the 0.35 threshold
	results := makeResults(8)

	var buf bytes.Buffer
	out, err := Evaluate(context.Background(), client, "m", "q", results, evalCfg(), 5, costs.NewLedger(0), &buf)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if len(out.Kept) != 0 {
		t.Errorf("len(Kept) = %d, want 0 below threshold", len(out.Kept))
	}
	if !out.Shortfall {
		t.Error("Shortfall = false, want true")
	}
	if !strings.Contains(buf.String(), "warning") {
		t.Errorf("expected a shortfall warning, got %q", buf.String())
	}
	// The full scored set is still intact for fallback ranking.
	if len(out.Sources) != 8 {
		t.Errorf("len(Sources) = %d, want 8", len(out.Sources))
	}
}

func TestEvaluateDegradesToNeutral(t *testing.T) {
	tests := []struct {
		name   string
		client *scoringClient
	}{
		{"call failure", &scoringClient{failAlways: true}},
		{"malformed payload", &scoringClient{malformed: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := makeResults(5)
			var buf bytes.Buffer
			out, err := Evaluate(context.Background(), tt.client, "m", "q", results, evalCfg(), 5, costs.NewLedger(0), &buf)
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}

			if out.FailedBatches != 1 {
				t.Errorf("FailedBatches = %d, want 1", out.FailedBatches)
			}
			if out.ModelUsed != "" {
				t.Errorf("ModelUsed = %q, want empty when every batch degraded", out.ModelUsed)
			}
			for _, s := range out.Sources {
				if s.Relevance != 0.5 || s.Recency != 0.5 || s.Authority != 0.5 || s.Bias != 0.5 {
					t.Errorf("source %s scores = %f/%f/%f/%f, want neutral 0.5",
						s.URL, s.Relevance, s.Recency, s.Authority, s.Bias)
				}
			}
			// Neutral relevance clears the 0.35 threshold: nothing is lost.
			if len(out.Kept) != 5 {
				t.Errorf("len(Kept) = %d, want 5", len(out.Kept))
			}
			if !strings.Contains(buf.String(), "warning") {
				t.Error("expected a degradation warning")
			}
		})
	}
}

// blockingClient hangs every call until the context ends.
type blockingClient struct{}

func (blockingClient) Structured(ctx context.Context, _ llm.StructuredRequest) (json.RawMessage, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (blockingClient) Stream(_ context.Context, _ llm.StreamRequest) (*llm.Stream, error) {
	return nil, errors.New("stream not supported in this mock")
}

func TestEvaluateDeadlineDegrades(t *testing.T) {
	// A stage deadline fails the in-flight batches, which keep their neutral
	// prefill; it must not turn the whole evaluation into an error.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	var buf bytes.Buffer
	out, err := Evaluate(ctx, blockingClient{}, "m", "q", makeResults(5), evalCfg(), 5, costs.NewLedger(0), &buf)
	if err != nil {
		t.Fatalf("Evaluate: %v, want degraded output after the deadline", err)
	}

	if out.FailedBatches != 1 {
		t.Errorf("FailedBatches = %d, want 1", out.FailedBatches)
	}
	if out.ModelUsed != "" {
		t.Errorf("ModelUsed = %q, want empty", out.ModelUsed)
	}
	for _, s := range out.Sources {
		if s.Relevance != 0.5 {
			t.Errorf("source %s relevance = %f, want neutral 0.5", s.URL, s.Relevance)
		}
	}
	if len(out.Kept) != 5 {
		t.Errorf("len(Kept) = %d, want 5", len(out.Kept))
	}
}

func TestEvaluateCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Evaluate(ctx, blockingClient{}, "m", "q", makeResults(5), evalCfg(), 5, costs.NewLedger(0), &bytes.Buffer{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestEvaluateEmptyInput(t *testing.T) {
	out, err := Evaluate(context.Background(), &scoringClient{}, "m", "q", nil, evalCfg(), 5, costs.NewLedger(0), &bytes.Buffer{})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(out.Sources) != 0 || len(out.Kept) != 0 {
		t.Errorf("empty input produced output: %+v", out)
	}
}

func TestComposite(t *testing.T) {
	wts := types.ScoreWeights{Relevance: 0.4, Recency: 0.2, Authority: 0.3, Bias: 0.1}

	tests := []struct {
		name string
		src  types.EvaluatedSource
		want float64
	}{
		{
			"perfect unbiased",
			types.EvaluatedSource{Relevance: 1, Recency: 1, Authority: 1, Bias: 0},
			1.0,
		},
		{
			"zero everything",
			types.EvaluatedSource{},
			0.0,
		},
		{
			// Positive weights scale by (0.9+0.1)/0.9; bias subtracts at 0.1.
			"neutral scores",
			types.EvaluatedSource{Relevance: 0.5, Recency: 0.5, Authority: 0.5, Bias: 0.5},
			0.5*0.9*(1.0/0.9) - 0.5*0.1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := composite(tt.src, wts); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("composite = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestCompositeBiasMonotone(t *testing.T) {
	wts := types.ScoreWeights{Relevance: 0.4, Recency: 0.2, Authority: 0.3, Bias: 0.1}
	low := composite(types.EvaluatedSource{Relevance: 0.8, Recency: 0.8, Authority: 0.8, Bias: 0.1}, wts)
	high := composite(types.EvaluatedSource{Relevance: 0.8, Recency: 0.8, Authority: 0.8, Bias: 0.9}, wts)
	if high >= low {
		t.Errorf("more bias must score lower: %f >= %f", high, low)
	}
}

func TestKeepTop(t *testing.T) {
	scored := []types.EvaluatedSource{
		{SearchResult: types.SearchResult{URL: "a"}, Composite: 0.2, Tier: types.TierLow},
		{SearchResult: types.SearchResult{URL: "b"}, Composite: 0.9, Tier: types.TierHigh},
		{SearchResult: types.SearchResult{URL: "c"}, Composite: 0.5, Tier: types.TierMedium},
	}

	top := KeepTop(scored, 2)
	if len(top) != 2 {
		t.Fatalf("len = %d, want 2", len(top))
	}
	if top[0].URL != "b" || top[1].URL != "c" {
		t.Errorf("order = %s, %s; want b, c", top[0].URL, top[1].URL)
	}
	for _, s := range top {
		if !s.Kept {
			t.Errorf("%s not marked kept", s.URL)
		}
	}
	// Input order untouched.
	if scored[0].URL != "a" || scored[0].Kept {
		t.Error("KeepTop mutated its input")
	}
}

func TestKeepTopFlagsLowTier(t *testing.T) {
	scored := []types.EvaluatedSource{
		{SearchResult: types.SearchResult{URL: "a"}, Composite: 0.9, Tier: types.TierLow},
	}
	top := KeepTop(scored, 1)
	if !top[0].Flagged {
		t.Error("low-credibility kept source must be flagged")
	}
}
