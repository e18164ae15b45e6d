// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make
// network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "deep-research/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// LLMConfig holds settings for the completion service client.
type LLMConfig struct {
	HTTPConfig `yaml:",inline"`

	// BaseURL is the chat-completions endpoint base (OpenAI-compatible).
	BaseURL string `json:"base_url" yaml:"base_url"`

	// APIKey authenticates completion requests.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// MaxOutputTokens caps generation length per call (default 8192).
	MaxOutputTokens int `json:"max_output_tokens" yaml:"max_output_tokens"`
}

// SearchConfig holds settings for the web search stage.
// Per prd011-search R1.2, R5.1-R5.4.
type SearchConfig struct {
	HTTPConfig `yaml:",inline"`

	// APIKey authenticates search requests.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// MaxResultsPerQuery caps results requested per sub-query (default 8).
	MaxResultsPerQuery int `json:"max_results_per_query" yaml:"max_results_per_query"`

	// MaxRetries bounds per-call retry attempts on failure (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// CostPerQueryUSD is the flat per-query search price (default 0.005).
	CostPerQueryUSD float64 `json:"cost_per_query_usd" yaml:"cost_per_query_usd"`
}

// ScoreWeights holds the composite-score weights. Bias acts as a penalty;
// its weight is folded back into the other three so the positive weights
// still sum to the original total.
type ScoreWeights struct {
	Relevance float64 `json:"relevance" yaml:"relevance"`
	Recency   float64 `json:"recency" yaml:"recency"`
	Authority float64 `json:"authority" yaml:"authority"`
	Bias      float64 `json:"bias" yaml:"bias"`
}

// EvaluationConfig holds settings for the source evaluation stage.
// Per prd012-evaluation R1.3, R4.1-R4.5.
type EvaluationConfig struct {
	// BatchSize is the number of sources scored per completion call (default 15).
	BatchSize int `json:"batch_size" yaml:"batch_size"`

	// RelevanceThreshold drops sources scoring below it (default 0.35).
	RelevanceThreshold float64 `json:"relevance_threshold" yaml:"relevance_threshold"`

	// MinSources is the floor below which a shortfall warning is logged
	// (default 3). The evaluator never invents scores to fill the gap.
	MinSources int `json:"min_sources" yaml:"min_sources"`

	// Weights are the composite-score weights.
	Weights ScoreWeights `json:"weights" yaml:"weights"`
}

// FetchConfig holds settings for the optional full-content extraction stage.
type FetchConfig struct {
	HTTPConfig `yaml:",inline"`

	// MaxBytes caps extracted text per page (default 32 KiB).
	MaxBytes int `json:"max_bytes" yaml:"max_bytes"`

	// Concurrency bounds simultaneous fetches (default 4).
	Concurrency int `json:"concurrency" yaml:"concurrency"`
}

// StageTimeouts holds per-stage deadlines. Decomposition is the shortest
// budget, synthesis the longest.
type StageTimeouts struct {
	Decompose  time.Duration `json:"decompose" yaml:"decompose"`
	Search     time.Duration `json:"search" yaml:"search"`
	Evaluate   time.Duration `json:"evaluate" yaml:"evaluate"`
	Extract    time.Duration `json:"extract" yaml:"extract"`
	Synthesize time.Duration `json:"synthesize" yaml:"synthesize"`
}

// StoreConfig holds settings for the run-history store.
type StoreConfig struct {
	// Dir is the directory holding the history database (default "runs").
	Dir string `json:"dir" yaml:"dir"`

	// MaxResults is the default history listing size (default 20).
	MaxResults int `json:"max_results" yaml:"max_results"`
}

// PipelineConfig groups all component configurations. It is built once and
// passed by value; concurrent runs with different configurations never share
// mutable state.
type PipelineConfig struct {
	LLM        LLMConfig        `json:"llm" yaml:"llm"`
	Search     SearchConfig     `json:"search" yaml:"search"`
	Evaluation EvaluationConfig `json:"evaluation" yaml:"evaluation"`
	Fetch      FetchConfig      `json:"fetch" yaml:"fetch"`
	Timeouts   StageTimeouts    `json:"timeouts" yaml:"timeouts"`
	Store      StoreConfig      `json:"store" yaml:"store"`

	// ReportsDir is where completed reports are written (default "reports").
	ReportsDir string `json:"reports_dir" yaml:"reports_dir"`
}

// DefaultConfig returns the baseline configuration. Callers overlay file and
// environment settings on top of it.
func DefaultConfig() PipelineConfig {
	return PipelineConfig{
		LLM: LLMConfig{
			HTTPConfig:      HTTPConfig{Timeout: 120 * time.Second, UserAgent: "deep-research/0.1"},
			BaseURL:         "https://api.openai.com/v1",
			MaxOutputTokens: 8192,
		},
		Search: SearchConfig{
			HTTPConfig:         HTTPConfig{Timeout: 20 * time.Second, UserAgent: "deep-research/0.1"},
			MaxResultsPerQuery: 8,
			MaxRetries:         3,
			CostPerQueryUSD:    0.005,
		},
		Evaluation: EvaluationConfig{
			BatchSize:          15,
			RelevanceThreshold: 0.35,
			MinSources:         3,
			Weights:            ScoreWeights{Relevance: 0.4, Recency: 0.2, Authority: 0.3, Bias: 0.1},
		},
		Fetch: FetchConfig{
			HTTPConfig:  HTTPConfig{Timeout: 15 * time.Second, UserAgent: "deep-research/0.1"},
			MaxBytes:    32 * 1024,
			Concurrency: 4,
		},
		Timeouts: StageTimeouts{
			Decompose:  30 * time.Second,
			Search:     60 * time.Second,
			Evaluate:   90 * time.Second,
			Extract:    60 * time.Second,
			Synthesize: 300 * time.Second,
		},
		Store:      StoreConfig{Dir: "runs", MaxResults: 20},
		ReportsDir: "reports",
	}
}
