// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pdiddy/deep-research/internal/httputil"
	"github.com/pdiddy/deep-research/pkg/types"
)

const tavilyEndpoint = "https://api.tavily.com/search"

// Tavily calls the Tavily search API.
type Tavily struct {
	cfg     types.SearchConfig
	client  *http.Client
	baseURL string
}

// NewTavily constructs a Tavily provider from config.
func NewTavily(cfg types.SearchConfig) *Tavily {
	return &Tavily{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: tavilyEndpoint,
	}
}

// Name returns the provider name.
func (t *Tavily) Name() string { return "tavily" }

// Search posts a query to Tavily. Transient failures (429, 5xx, transport
// errors) are retried with exponential backoff up to cfg.MaxRetries.
func (t *Tavily) Search(ctx context.Context, query string, opts Options) ([]types.SearchResult, error) {
	if strings.TrimSpace(t.cfg.APIKey) == "" {
		return nil, errors.New("tavily: API key is missing")
	}

	body := map[string]any{
		"query":       query,
		"api_key":     t.cfg.APIKey,
		"max_results": opts.MaxResults,
	}
	if len(opts.Domains) > 0 {
		body["include_domains"] = opts.Domains
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", t.cfg.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, t.client, req, t.cfg.MaxRetries)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("tavily http %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var response struct {
		Results []struct {
			Title         string  `json:"title"`
			URL           string  `json:"url"`
			Content       string  `json:"content"`
			RawContent    string  `json:"raw_content"`
			PublishedDate string  `json:"published_date"`
			Score         float64 `json:"score"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decoding tavily response: %w", err)
	}

	results := make([]types.SearchResult, 0, len(response.Results))
	for _, r := range response.Results {
		sr := types.SearchResult{
			URL:     r.URL,
			Title:   r.Title,
			Snippet: r.Content,
			Content: r.RawContent,
		}
		if r.PublishedDate != "" {
			if ts, err := time.Parse("2006-01-02", r.PublishedDate); err == nil {
				sr.Published = ts
			}
		}
		results = append(results, sr)
	}
	return results, nil
}
