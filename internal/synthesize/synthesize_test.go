// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package synthesize

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/pdiddy/deep-research/internal/costs"
	"github.com/pdiddy/deep-research/internal/llm"
	"github.com/pdiddy/deep-research/internal/modes"
	"github.com/pdiddy/deep-research/pkg/types"
)

// mockLLM scripts stream and structured behavior per request.
type mockLLM struct {
	mu              sync.Mutex
	streamFn        func(req llm.StreamRequest) (string, llm.FinishReason, error)
	structuredFn    func(req llm.StructuredRequest) (json.RawMessage, error)
	streamCalls     []llm.StreamRequest
	structuredCalls []llm.StructuredRequest
}

func (m *mockLLM) Stream(_ context.Context, req llm.StreamRequest) (*llm.Stream, error) {
	m.mu.Lock()
	m.streamCalls = append(m.streamCalls, req)
	m.mu.Unlock()

	text, finish, err := m.streamFn(req)
	if err != nil {
		return nil, err
	}
	s := llm.NewStream()
	go func() {
		// Two pushes so callers see more than one delta.
		half := len(text) / 2
		if half > 0 {
			s.Push(text[:half])
		}
		s.Push(text[half:])
		s.Close(finish, nil)
	}()
	return s, nil
}

func (m *mockLLM) Structured(_ context.Context, req llm.StructuredRequest) (json.RawMessage, error) {
	m.mu.Lock()
	m.structuredCalls = append(m.structuredCalls, req)
	m.mu.Unlock()
	return m.structuredFn(req)
}

func plainStream(text string) func(llm.StreamRequest) (string, llm.FinishReason, error) {
	return func(llm.StreamRequest) (string, llm.FinishReason, error) {
		return text, llm.FinishStop, nil
	}
}

func digestPayload(llm.StructuredRequest) (json.RawMessage, error) {
	return json.RawMessage(`{"digest": "compressed facts [1] [2]", "contradictions": []}`), nil
}

func makeSources(n int) []types.EvaluatedSource {
	sources := make([]types.EvaluatedSource, n)
	for i := range sources {
		sources[i] = types.EvaluatedSource{
			SearchResult: types.SearchResult{
				URL:     fmt.Sprintf("https://example.com/%d", i),
				Title:   fmt.Sprintf("Source %d", i),
				Snippet: fmt.Sprintf("snippet %d", i),
			},
			Kept: true,
		}
	}
	return sources
}

func baseInput(mode modes.Mode, n int, chain ...string) Input {
	if len(chain) == 0 {
		chain = []string{"gpt-4o-mini"}
	}
	return Input{
		Question:        "how do raft and paxos differ",
		Sources:         makeSources(n),
		Resolution:      modes.Resolution{Mode: mode, Limits: modes.Resolve(chain[0], n, n).Limits},
		Chain:           chain,
		MaxOutputTokens: 4096,
	}
}

// --- direct ---

func TestDirect(t *testing.T) {
	client := &mockLLM{streamFn: plainStream("A report with citations [1] [2].")}
	e := NewEngine(client, costs.NewLedger(0), &bytes.Buffer{})

	var deltas []string
	res, err := e.Run(context.Background(), baseInput(modes.ModeBase, 3, "gpt-5"), func(d string) {
		deltas = append(deltas, d)
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Report != "A report with citations [1] [2]." {
		t.Errorf("Report = %q", res.Report)
	}
	if res.Truncated {
		t.Error("Truncated = true, want false")
	}
	if !reflect.DeepEqual(res.ModelsUsed, []string{"gpt-5"}) {
		t.Errorf("ModelsUsed = %v", res.ModelsUsed)
	}
	if strings.Join(deltas, "") != res.Report {
		t.Errorf("deltas %v do not reassemble the report", deltas)
	}
	if len(client.streamCalls) != 1 {
		t.Errorf("stream calls = %d, want 1", len(client.streamCalls))
	}
	// All sources inlined, numbered from 1.
	prompt := client.streamCalls[0].Prompt
	for _, marker := range []string{"[1]", "[2]", "[3]", "Source 0"} {
		if !strings.Contains(prompt, marker) {
			t.Errorf("prompt missing %q", marker)
		}
	}
}

func TestDirectTruncation(t *testing.T) {
	client := &mockLLM{streamFn: func(llm.StreamRequest) (string, llm.FinishReason, error) {
		return "partial report", llm.FinishLength, nil
	}}
	e := NewEngine(client, costs.NewLedger(0), &bytes.Buffer{})

	var streamed strings.Builder
	res, err := e.Run(context.Background(), baseInput(modes.ModeBase, 2), func(d string) {
		streamed.WriteString(d)
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !res.Truncated {
		t.Error("Truncated = false, want true")
	}
	if !strings.HasSuffix(res.Report, truncationNotice) {
		t.Errorf("Report = %q, want the truncation notice appended", res.Report)
	}
	if !strings.Contains(streamed.String(), "truncated") {
		t.Error("truncation notice was not streamed to the caller")
	}
}

func TestDirectFallbackChain(t *testing.T) {
	client := &mockLLM{streamFn: func(req llm.StreamRequest) (string, llm.FinishReason, error) {
		if req.Model == "m1" {
			return "", llm.FinishStop, errors.New("overloaded")
		}
		return "fallback report", llm.FinishStop, nil
	}}

	var buf bytes.Buffer
	e := NewEngine(client, costs.NewLedger(0), &buf)

	res, err := e.Run(context.Background(), baseInput(modes.ModeBase, 2, "m1", "m2"), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Report != "fallback report" {
		t.Errorf("Report = %q", res.Report)
	}
	if !reflect.DeepEqual(res.ModelsUsed, []string{"m2"}) {
		t.Errorf("ModelsUsed = %v, want only the model that served", res.ModelsUsed)
	}

	// m1 tried exactly once, never retried.
	var m1Calls int
	for _, c := range client.streamCalls {
		if c.Model == "m1" {
			m1Calls++
		}
	}
	if m1Calls != 1 {
		t.Errorf("m1 calls = %d, want 1", m1Calls)
	}
	if !strings.Contains(buf.String(), "warning") {
		t.Error("expected a warning for the failed model")
	}
}

func TestDirectAllModelsFail(t *testing.T) {
	client := &mockLLM{streamFn: func(llm.StreamRequest) (string, llm.FinishReason, error) {
		return "", llm.FinishStop, errors.New("down")
	}}
	e := NewEngine(client, costs.NewLedger(0), &bytes.Buffer{})

	if _, err := e.Run(context.Background(), baseInput(modes.ModeBase, 2, "m1", "m2"), nil); err == nil {
		t.Fatal("expected an error when every model fails")
	}
}

func TestRunEmptySources(t *testing.T) {
	e := NewEngine(&mockLLM{}, costs.NewLedger(0), &bytes.Buffer{})
	if _, err := e.Run(context.Background(), baseInput(modes.ModeBase, 0), nil); err == nil {
		t.Fatal("expected an error for empty sources")
	}
}

// --- map-reduce ---

func TestMapReduce(t *testing.T) {
	client := &mockLLM{
		streamFn:     plainStream("combined thematic report [1] [5]"),
		structuredFn: digestPayload,
	}
	e := NewEngine(client, costs.NewLedger(0), &bytes.Buffer{})

	// gpt-4o-mini base select limit is 8 → batch size 4 → 3 batches of 10.
	res, err := e.Run(context.Background(), baseInput(modes.ModeExtended, 10), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Report != "combined thematic report [1] [5]" {
		t.Errorf("Report = %q", res.Report)
	}
	if len(client.structuredCalls) != 3 {
		t.Errorf("digest calls = %d, want 3", len(client.structuredCalls))
	}
	if len(client.streamCalls) != 1 {
		t.Errorf("reduce calls = %d, want 1", len(client.streamCalls))
	}

	// Batch numbering is global: the second batch starts at source 5.
	var starts []string
	for _, c := range client.structuredCalls {
		for _, n := range []string{"[1]", "[5]", "[9]"} {
			if strings.Contains(c.Prompt, n) {
				starts = append(starts, n)
			}
		}
	}
	if len(starts) < 3 {
		t.Errorf("batch start numbers %v, want [1] [5] [9] across batches", starts)
	}
}

func TestMapReduceDegradedBatch(t *testing.T) {
	client := &mockLLM{
		streamFn: plainStream("report from digests"),
		structuredFn: func(llm.StructuredRequest) (json.RawMessage, error) {
			return nil, errors.New("digest model down")
		},
	}

	var buf bytes.Buffer
	e := NewEngine(client, costs.NewLedger(0), &buf)

	res, err := e.Run(context.Background(), baseInput(modes.ModeExtended, 6), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Report != "report from digests" {
		t.Errorf("Report = %q", res.Report)
	}
	if !strings.Contains(buf.String(), "degraded to raw snippets") {
		t.Errorf("expected a degradation warning, got %q", buf.String())
	}

	// The reduce prompt must still carry every source as a raw digest line.
	reducePrompt := client.streamCalls[0].Prompt
	for i := 0; i < 6; i++ {
		if !strings.Contains(reducePrompt, fmt.Sprintf("Source %d", i)) {
			t.Errorf("reduce prompt missing source %d after degradation", i)
		}
	}
}

func TestMapReduceReduceFallback(t *testing.T) {
	client := &mockLLM{
		streamFn: func(llm.StreamRequest) (string, llm.FinishReason, error) {
			return "", llm.FinishStop, errors.New("reduce down")
		},
		structuredFn: digestPayload,
	}

	var buf bytes.Buffer
	e := NewEngine(client, costs.NewLedger(0), &buf)

	var streamed strings.Builder
	res, err := e.Run(context.Background(), baseInput(modes.ModeExtended, 6), func(d string) {
		streamed.WriteString(d)
	})
	if err != nil {
		t.Fatalf("Run: %v, want digest fallback instead of failure", err)
	}

	if !strings.Contains(res.Report, "compressed facts") {
		t.Errorf("Report = %q, want the concatenated digests", res.Report)
	}
	if streamed.String() != res.Report {
		t.Error("fallback report was not emitted to the caller")
	}
	if !strings.Contains(buf.String(), "concatenated digests") {
		t.Error("expected a reduce-fallback warning")
	}
}

// --- iterative ---

// iterativeStream scripts the three stream roles by system prompt.
func iterativeStream(failVerify bool) func(llm.StreamRequest) (string, llm.FinishReason, error) {
	return func(req llm.StreamRequest) (string, llm.FinishReason, error) {
		switch req.System {
		case reduceSystem:
			return "initial report", llm.FinishStop, nil
		case enrichSystem:
			return "enriched report", llm.FinishStop, nil
		case verifySystem:
			if failVerify {
				return "", llm.FinishStop, errors.New("verify down")
			}
			return "verified report\n---\nVerification: 12 verified, 1 unverified, 0 contradicted.", llm.FinishStop, nil
		default:
			return "unexpected", llm.FinishStop, nil
		}
	}
}

func TestIterative(t *testing.T) {
	client := &mockLLM{
		streamFn:     iterativeStream(false),
		structuredFn: digestPayload,
	}
	ledger := costs.NewLedger(0)
	e := NewEngine(client, ledger, &bytes.Buffer{})

	var streamed strings.Builder
	res, err := e.Run(context.Background(), baseInput(modes.ModeUltra, 10), func(d string) {
		streamed.WriteString(d)
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !strings.HasPrefix(res.Report, "verified report") {
		t.Errorf("Report = %q, want the verified report", res.Report)
	}
	// Only the verification pass streams; intermediate drafts stay internal.
	if streamed.String() != res.Report {
		t.Errorf("streamed %q, want exactly the final report", streamed.String())
	}

	// 10 sources, batch size 4: map-reduce over the first 6, one enrichment
	// round for the remaining 4, then verification.
	var reduces, enriches, verifies int
	for _, c := range client.streamCalls {
		switch c.System {
		case reduceSystem:
			reduces++
		case enrichSystem:
			enriches++
		case verifySystem:
			verifies++
		}
	}
	if reduces != 1 || enriches != 1 || verifies != 1 {
		t.Errorf("stream calls = %d reduce, %d enrich, %d verify; want 1 each", reduces, enriches, verifies)
	}

	if ledger.Breakdown().ByStage["verify"] == 0 {
		t.Error("verification call not recorded under the verify stage")
	}
}

func TestIterativeVerifyFailure(t *testing.T) {
	client := &mockLLM{
		streamFn:     iterativeStream(true),
		structuredFn: digestPayload,
	}

	var buf bytes.Buffer
	e := NewEngine(client, costs.NewLedger(0), &buf)

	var streamed strings.Builder
	res, err := e.Run(context.Background(), baseInput(modes.ModeUltra, 10, "gpt-4o-mini"), func(d string) {
		streamed.WriteString(d)
	})
	if err != nil {
		t.Fatalf("Run: %v, want best-effort report instead of failure", err)
	}

	if res.Report != "enriched report" {
		t.Errorf("Report = %q, want the unverified enriched report", res.Report)
	}
	if streamed.String() != res.Report {
		t.Error("unverified report was not emitted to the caller")
	}
	if !strings.Contains(buf.String(), "unverified") {
		t.Error("expected a verification-failure warning")
	}
}

func TestIterativeEnrichFailureKeepsPrevious(t *testing.T) {
	client := &mockLLM{
		streamFn: func(req llm.StreamRequest) (string, llm.FinishReason, error) {
			switch req.System {
			case reduceSystem:
				return "initial report", llm.FinishStop, nil
			case enrichSystem:
				return "", llm.FinishStop, errors.New("enrich down")
			case verifySystem:
				// Verification still runs over the pre-enrichment report.
				if !strings.Contains(req.Prompt, "initial report") {
					return "", llm.FinishStop, errors.New("lost the previous report")
				}
				return "verified initial", llm.FinishStop, nil
			}
			return "", llm.FinishStop, errors.New("unexpected system prompt")
		},
		structuredFn: digestPayload,
	}

	var buf bytes.Buffer
	e := NewEngine(client, costs.NewLedger(0), &buf)

	res, err := e.Run(context.Background(), baseInput(modes.ModeUltra, 10), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Report != "verified initial" {
		t.Errorf("Report = %q, want verification over the kept report", res.Report)
	}
	if !strings.Contains(buf.String(), "keeping previous report") {
		t.Error("expected an enrichment-failure warning")
	}
}

func TestMapBatchSize(t *testing.T) {
	tests := []struct {
		model string
		want  int
	}{
		{"gpt-4o-mini", 4},       // base select 8 → 60% = 4
		{"claude-sonnet-4-5", 7}, // base select 12 → 7
		{"gemini-2.5-pro", 15},   // base select 25 → 15
	}
	for _, tt := range tests {
		res := modes.Resolve(tt.model, 10, 10)
		if got := mapBatchSize(res, []string{tt.model}); got != tt.want {
			t.Errorf("mapBatchSize(%s) = %d, want %d", tt.model, got, tt.want)
		}
	}
}
