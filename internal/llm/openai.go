// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pdiddy/deep-research/pkg/types"
)

// OpenAI calls an OpenAI-compatible chat-completions endpoint. Structured
// requests use JSON mode; streaming requests use server-sent events.
type OpenAI struct {
	cfg    types.LLMConfig
	client *http.Client
}

// NewOpenAI constructs a client from config. An injected HTTP client keeps
// per-stage timeouts under the caller's control via context deadlines.
func NewOpenAI(cfg types.LLMConfig) *OpenAI {
	return &OpenAI{
		cfg: cfg,
		// No client-level timeout: streamed completions outlive any fixed
		// request timeout, so deadlines come from the request context.
		client: &http.Client{},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	MaxTokens      int           `json:"max_tokens,omitempty"`
	Stream         bool          `json:"stream,omitempty"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format,omitempty"`
}

// Structured sends a JSON-mode completion and returns the raw object.
func (o *OpenAI) Structured(ctx context.Context, req StructuredRequest) (json.RawMessage, error) {
	body := chatRequest{
		Model: req.Model,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.Prompt},
		},
		MaxTokens: req.MaxTokens,
	}
	body.ResponseFormat = &struct {
		Type string `json:"type"`
	}{Type: "json_object"}

	resp, err := o.post(ctx, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("completion http %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("completion returned no choices")
	}

	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if !json.Valid([]byte(content)) {
		return nil, fmt.Errorf("completion returned invalid JSON object")
	}
	return json.RawMessage(content), nil
}

// Stream sends a streaming completion and feeds deltas into the returned
// Stream as SSE chunks arrive.
func (o *OpenAI) Stream(ctx context.Context, req StreamRequest) (*Stream, error) {
	body := chatRequest{
		Model: req.Model,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.Prompt},
		},
		MaxTokens: req.MaxTokens,
		Stream:    true,
	}

	resp, err := o.post(ctx, body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("completion http %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	s := NewStream()
	go func() {
		defer resp.Body.Close()
		finish, err := readSSE(resp.Body, s)
		s.Close(finish, err)
	}()
	return s, nil
}

// readSSE consumes "data:" lines until [DONE] or EOF, pushing content deltas
// and capturing the finish reason from the final chunk.
func readSSE(r io.Reader, s *Stream) (FinishReason, error) {
	finish := FinishStop
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			break
		}

		var chunk struct {
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
				FinishReason *string `json:"finish_reason"`
			} `json:"choices"`
		}
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue // tolerate malformed keepalive chunks
		}
		for _, c := range chunk.Choices {
			if c.Delta.Content != "" {
				s.Push(c.Delta.Content)
			}
			if c.FinishReason != nil && *c.FinishReason == "length" {
				finish = FinishLength
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return finish, fmt.Errorf("reading completion stream: %w", err)
	}
	return finish, nil
}

func (o *OpenAI) post(ctx context.Context, body chatRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	url := strings.TrimSuffix(o.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", o.cfg.UserAgent)
	if o.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.cfg.APIKey)
	}
	return o.client.Do(req)
}
