// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pdiddy/deep-research/pkg/types"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *OpenAI {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	return NewOpenAI(types.LLMConfig{
		HTTPConfig: types.HTTPConfig{UserAgent: "test/0.1"},
		BaseURL:    ts.URL,
		APIKey:     "sk-test",
	})
}

func TestStructured(t *testing.T) {
	var gotAuth string
	var gotBody chatRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		fmt.Fprint(w, `{"choices": [{"message": {"content": "{\"answer\": 42}"}}]}`)
	})

	raw, err := client.Structured(context.Background(), StructuredRequest{
		Model:     "gpt-5-mini",
		System:    "be terse",
		Prompt:    "what is the answer",
		MaxTokens: 64,
	})
	if err != nil {
		t.Fatalf("Structured: %v", err)
	}

	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotBody.Model != "gpt-5-mini" {
		t.Errorf("model = %q", gotBody.Model)
	}
	if gotBody.ResponseFormat == nil || gotBody.ResponseFormat.Type != "json_object" {
		t.Errorf("response_format = %+v, want json_object", gotBody.ResponseFormat)
	}
	if len(gotBody.Messages) != 2 || gotBody.Messages[0].Role != "system" {
		t.Errorf("messages = %+v", gotBody.Messages)
	}

	var parsed struct {
		Answer int `json:"answer"`
	}
	if err := Decode(raw, &parsed); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if parsed.Answer != 42 {
		t.Errorf("answer = %d, want 42", parsed.Answer)
	}
}

func TestStructuredRejectsInvalidJSON(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices": [{"message": {"content": "not json at all"}}]}`)
	})

	if _, err := client.Structured(context.Background(), StructuredRequest{Model: "m"}); err == nil {
		t.Fatal("expected an error for non-JSON content")
	}
}

func TestStructuredErrorStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "overloaded"}`, http.StatusServiceUnavailable)
	})

	_, err := client.Structured(context.Background(), StructuredRequest{Model: "m"})
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Fatalf("err = %v, want an http 503 error", err)
	}
}

func sseChunk(content string, finish string) string {
	type delta struct {
		Content string `json:"content"`
	}
	chunk := map[string]any{
		"choices": []map[string]any{{
			"delta": delta{Content: content},
		}},
	}
	if finish != "" {
		chunk["choices"].([]map[string]any)[0]["finish_reason"] = finish
	}
	data, _ := json.Marshal(chunk)
	return "data: " + string(data) + "\n\n"
}

func TestStream(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body chatRequest
		json.NewDecoder(r.Body).Decode(&body)
		if !body.Stream {
			t.Error("stream flag not set on request")
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseChunk("The answer", ""))
		fmt.Fprint(w, ": keepalive comment\n\n")
		fmt.Fprint(w, sseChunk(" is 42.", "stop"))
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	s, err := client.Stream(context.Background(), StreamRequest{Model: "gpt-5", Prompt: "q"})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	var deltas []string
	text, reason, err := Collect(s, func(d string) { deltas = append(deltas, d) })
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}

	if text != "The answer is 42." {
		t.Errorf("text = %q", text)
	}
	if reason != FinishStop {
		t.Errorf("reason = %s, want stop", reason)
	}
	if len(deltas) != 2 {
		t.Errorf("deltas = %v, want 2 chunks", deltas)
	}
}

func TestStreamFinishLength(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sseChunk("truncated tex", ""))
		fmt.Fprint(w, sseChunk("", "length"))
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	s, err := client.Stream(context.Background(), StreamRequest{Model: "m"})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	text, reason, err := Collect(s, nil)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if reason != FinishLength {
		t.Errorf("reason = %s, want length", reason)
	}
	if text != "truncated tex" {
		t.Errorf("text = %q", text)
	}
}

func TestStreamToleratesMalformedChunks(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {not json}\n\n")
		fmt.Fprint(w, sseChunk("ok", "stop"))
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	s, err := client.Stream(context.Background(), StreamRequest{Model: "m"})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	text, _, err := Collect(s, nil)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if text != "ok" {
		t.Errorf("text = %q, want ok", text)
	}
}

func TestStreamErrorStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no", http.StatusBadRequest)
	})

	if _, err := client.Stream(context.Background(), StreamRequest{Model: "m"}); err == nil {
		t.Fatal("expected an error for http 400")
	}
}

func TestCollectNilOnDelta(t *testing.T) {
	s := NewStream()
	go func() {
		s.Push("a")
		s.Push("b")
		s.Close(FinishStop, nil)
	}()

	text, reason, err := Collect(s, nil)
	if err != nil || text != "ab" || reason != FinishStop {
		t.Errorf("Collect = %q/%s/%v", text, reason, err)
	}
}
