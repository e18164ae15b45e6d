// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// SearchResult is one candidate document returned by the search service.
// Results are deduplicated by normalized URL across all sub-queries before
// evaluation.
type SearchResult struct {
	// URL is the document location; the dedup key is its normalized form.
	URL string `json:"url" yaml:"url"`

	// Title is the document title as returned by the search provider.
	Title string `json:"title" yaml:"title"`

	// Snippet is the provider's extract for the document.
	Snippet string `json:"snippet" yaml:"snippet"`

	// Content is the full extracted text, when available. Filled either by
	// the provider or by the optional extraction stage.
	Content string `json:"content,omitempty" yaml:"content,omitempty"`

	// Published is the publish date, when known.
	Published time.Time `json:"published,omitempty" yaml:"published,omitempty"`

	// Author is the document author, when known.
	Author string `json:"author,omitempty" yaml:"author,omitempty"`

	// SubQueryID identifies the sub-query that produced this result.
	SubQueryID string `json:"sub_query_id" yaml:"sub_query_id"`
}

// CredibilityTier classifies a source by domain-heuristic credibility,
// independent of the model's judgment.
type CredibilityTier string

const (
	TierHigh   CredibilityTier = "high"
	TierMedium CredibilityTier = "medium"
	TierLow    CredibilityTier = "low"
)

// SourceClass is the model's classification of a source.
type SourceClass string

const (
	ClassPrimary   SourceClass = "primary"
	ClassSecondary SourceClass = "secondary"
	ClassTertiary  SourceClass = "tertiary"
)

// EvaluatedSource is a SearchResult extended with evaluation output.
// Created once by the evaluator and immutable afterward; the ranked,
// size-capped kept subset becomes the synthesis input.
type EvaluatedSource struct {
	SearchResult `yaml:",inline"`

	// Relevance, Recency, Authority, and Bias are independent scores in
	// [0,1]. Bias is a penalty: higher means more slanted.
	Relevance float64 `json:"relevance" yaml:"relevance"`
	Recency   float64 `json:"recency" yaml:"recency"`
	Authority float64 `json:"authority" yaml:"authority"`
	Bias      float64 `json:"bias" yaml:"bias"`

	// Composite is the weighted ranking score derived from the four axes.
	Composite float64 `json:"composite" yaml:"composite"`

	// Class is the model's primary/secondary/tertiary classification.
	Class SourceClass `json:"class" yaml:"class"`

	// Contradicts optionally names a URL in the same batch this source
	// contradicts.
	Contradicts string `json:"contradicts,omitempty" yaml:"contradicts,omitempty"`

	// Credibility is the domain-heuristic score in [0,1]; Tier buckets it.
	Credibility float64         `json:"credibility" yaml:"credibility"`
	Tier        CredibilityTier `json:"tier" yaml:"tier"`

	// Kept reports whether the source survived threshold and rank-truncation.
	Kept bool `json:"kept" yaml:"kept"`

	// Flagged marks low-credibility sources that were kept anyway.
	Flagged bool `json:"flagged,omitempty" yaml:"flagged,omitempty"`
}

// Citation maps a numbered inline citation to its source.
type Citation struct {
	Number int    `json:"number" yaml:"number"`
	URL    string `json:"url" yaml:"url"`
	Title  string `json:"title" yaml:"title"`
}
