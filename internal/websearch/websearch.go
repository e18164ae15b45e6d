// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package websearch queries a web search provider per sub-query and returns
// unified, deduplicated results.
// Implements: prd011-search (R1-R5); docs/ARCHITECTURE § Search.
package websearch

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/deep-research/pkg/types"
)

// Options narrows one provider call.
type Options struct {
	MaxResults int
	Domains    []string
	Language   string
}

// Provider executes a single web search. Implementations retry transient
// failures internally (bounded, exponential backoff); a returned error means
// the sub-query is abandoned.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, opts Options) ([]types.SearchResult, error)
}

// Output holds the deduplicated results and per-sub-query statistics.
type Output struct {
	Results     []types.SearchResult
	DupsRemoved int
	Calls       int
	Failed      []string // sub-query IDs whose search was abandoned
}

// Run fans out one concurrent search per sub-query. Failed sub-queries are
// logged and contribute no results; they never cancel their siblings. Each
// raw result is passed to onResult as it arrives, before deduplication.
// Results are deduplicated by normalized URL across all sub-queries.
func Run(ctx context.Context, provider Provider, subs []types.SubQuery, cfg types.SearchConfig, domains []string, onResult func(types.SearchResult), w io.Writer) Output {
	var (
		mu     sync.Mutex
		all    []types.SearchResult
		failed []string
	)

	opts := Options{MaxResults: cfg.MaxResultsPerQuery, Domains: domains}

	g, ctx := errgroup.WithContext(ctx)
	for i := range subs {
		sub := &subs[i]
		g.Go(func() error {
			results, err := provider.Search(ctx, sub.Query, withLanguage(opts, sub.Language))

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed = append(failed, sub.ID)
				fmt.Fprintf(w, "warning: search %q failed: %v\n", sub.Query, err)
				return nil
			}
			sub.State = types.SubQueryCompleted
			for j := range results {
				results[j].SubQueryID = sub.ID
				if onResult != nil {
					onResult(results[j])
				}
			}
			all = append(all, results...)
			return nil
		})
	}
	g.Wait()

	deduped, removed := Deduplicate(all)
	return Output{
		Results:     deduped,
		DupsRemoved: removed,
		Calls:       len(subs),
		Failed:      failed,
	}
}

func withLanguage(opts Options, lang string) Options {
	opts.Language = lang
	return opts
}

// Deduplicate merges results that share a normalized URL, keeping the first
// occurrence and filling its empty fields from later duplicates.
// Idempotent: running it over already-deduplicated input is a no-op.
func Deduplicate(results []types.SearchResult) ([]types.SearchResult, int) {
	seen := make(map[string]int) // normalized URL → index in deduped
	var deduped []types.SearchResult
	removed := 0

	for _, r := range results {
		key := NormalizeURL(r.URL)
		if key == "" {
			continue
		}
		if idx, ok := seen[key]; ok {
			mergeInto(&deduped[idx], r)
			removed++
			continue
		}
		seen[key] = len(deduped)
		deduped = append(deduped, r)
	}
	return deduped, removed
}

// NormalizeURL lowercases the host, strips the scheme, a leading "www.",
// any fragment, and a trailing slash. Query strings are kept: they often
// distinguish real documents.
func NormalizeURL(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	for _, scheme := range []string{"https://", "http://"} {
		s = strings.TrimPrefix(s, scheme)
	}
	if i := strings.Index(s, "#"); i >= 0 {
		s = s[:i]
	}

	host := s
	rest := ""
	if i := strings.IndexAny(s, "/?"); i >= 0 {
		host, rest = s[:i], s[i:]
	}
	host = strings.ToLower(strings.TrimPrefix(host, "www."))

	return strings.TrimSuffix(host+rest, "/")
}

// mergeInto fills empty fields of dst from src.
func mergeInto(dst *types.SearchResult, src types.SearchResult) {
	if dst.Title == "" && src.Title != "" {
		dst.Title = src.Title
	}
	if len(src.Snippet) > len(dst.Snippet) {
		dst.Snippet = src.Snippet
	}
	if dst.Content == "" && src.Content != "" {
		dst.Content = src.Content
	}
	if dst.Published.IsZero() && !src.Published.IsZero() {
		dst.Published = src.Published
	}
	if dst.Author == "" && src.Author != "" {
		dst.Author = src.Author
	}
}
