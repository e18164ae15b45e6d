// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// EventType discriminates PipelineEvent payloads on the wire.
type EventType string

const (
	EventStage      EventType = "stage"
	EventSource     EventType = "source"
	EventEvaluation EventType = "evaluation"
	EventTextDelta  EventType = "text-delta"
	EventMetadata   EventType = "metadata"
	EventCost       EventType = "cost"
	EventComplete   EventType = "complete"
	EventError      EventType = "error"
)

// StageStatus is the status carried on a stage event.
type StageStatus string

const (
	StatusRunning   StageStatus = "running"
	StatusCompleted StageStatus = "completed"
	StatusError     StageStatus = "error"
)

// PipelineEvent is the tagged union emitted over the lifetime of one run.
// Exactly one payload field matching Type is set. Events are emitted in
// chronological order; the stream ends with exactly one of EventComplete or
// a terminal EventError. Serialized as newline-delimited JSON.
type PipelineEvent struct {
	Type EventType `json:"type"`

	Stage      *StageEvent      `json:"stage,omitempty"`
	Source     *SourceEvent     `json:"source,omitempty"`
	Evaluation *EvaluationEvent `json:"evaluation,omitempty"`
	Delta      string           `json:"delta,omitempty"`
	Metadata   *RunMetadata     `json:"metadata,omitempty"`
	Cost       *CostBreakdown   `json:"cost,omitempty"`
	Complete   *RunResult       `json:"complete,omitempty"`
	Error      *ErrorEvent      `json:"error,omitempty"`
}

// StageEvent reports progress for one pipeline stage. Progress is in [0,1]
// and never decreases across the run.
type StageEvent struct {
	Stage    Stage       `json:"stage"`
	Status   StageStatus `json:"status"`
	Progress float64     `json:"progress"`
	Message  string      `json:"message"`
}

// SourceEvent announces a raw search result as it arrives, before evaluation.
type SourceEvent struct {
	URL        string `json:"url"`
	Title      string `json:"title"`
	SubQueryID string `json:"sub_query_id"`
}

// EvaluationEvent summarizes evaluation output, emitted once after scoring.
type EvaluationEvent struct {
	TotalFound int `json:"total_found"`
	Kept       int `json:"kept"`
	Filtered   int `json:"filtered"`
}

// ErrorEvent carries a terminal or recoverable pipeline error.
type ErrorEvent struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Stage       Stage  `json:"stage,omitempty"`
	Recoverable bool   `json:"recoverable"`
}

// Error codes surfaced on ErrorEvent.Code.
const (
	ErrNoResults       = "NO_RESULTS"
	ErrSearchFailed    = "SEARCH_FAILED"
	ErrSynthesisFailed = "SYNTHESIS_FAILED"
	ErrCancelled       = "CANCELLED"
	ErrInternal        = "INTERNAL"
)

// RunMetadata summarizes a completed run.
type RunMetadata struct {
	RunID           string   `json:"run_id" yaml:"run_id"`
	DurationMS      int64    `json:"duration_ms" yaml:"duration_ms"`
	TotalSources    int      `json:"total_sources" yaml:"total_sources"`
	KeptSources     int      `json:"kept_sources" yaml:"kept_sources"`
	FilteredSources int      `json:"filtered_sources" yaml:"filtered_sources"`
	ModelsUsed      []string `json:"models_used" yaml:"models_used"`
	Mode            string   `json:"mode" yaml:"mode"`
	Clamped         bool     `json:"clamped,omitempty" yaml:"clamped,omitempty"`
}

// RunResult is the bundled payload of the final complete event.
type RunResult struct {
	RunID      string            `json:"run_id" yaml:"run_id"`
	Question   string            `json:"question" yaml:"question"`
	Depth      Depth             `json:"depth" yaml:"depth"`
	Report     string            `json:"report" yaml:"report"`
	Citations  []Citation        `json:"citations" yaml:"citations"`
	Sources    []EvaluatedSource `json:"sources" yaml:"sources"`
	SubQueries []SubQuery        `json:"sub_queries" yaml:"sub_queries"`
	Metadata   RunMetadata       `json:"metadata" yaml:"metadata"`
	Cost       CostBreakdown     `json:"cost" yaml:"cost"`
}

// StageEv builds a stage event.
func StageEv(stage Stage, status StageStatus, progress float64, message string) PipelineEvent {
	return PipelineEvent{
		Type:  EventStage,
		Stage: &StageEvent{Stage: stage, Status: status, Progress: progress, Message: message},
	}
}

// SourceEv builds a source event.
func SourceEv(url, title, subQueryID string) PipelineEvent {
	return PipelineEvent{
		Type:   EventSource,
		Source: &SourceEvent{URL: url, Title: title, SubQueryID: subQueryID},
	}
}

// EvaluationEv builds an evaluation summary event.
func EvaluationEv(total, kept, filtered int) PipelineEvent {
	return PipelineEvent{
		Type:       EventEvaluation,
		Evaluation: &EvaluationEvent{TotalFound: total, Kept: kept, Filtered: filtered},
	}
}

// DeltaEv builds a text-delta event.
func DeltaEv(delta string) PipelineEvent {
	return PipelineEvent{Type: EventTextDelta, Delta: delta}
}

// ErrorEv builds an error event.
func ErrorEv(code, message string, stage Stage, recoverable bool) PipelineEvent {
	return PipelineEvent{
		Type:  EventError,
		Error: &ErrorEvent{Code: code, Message: message, Stage: stage, Recoverable: recoverable},
	}
}
