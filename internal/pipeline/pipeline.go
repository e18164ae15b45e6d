// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline drives one research run end to end: decomposition,
// search, evaluation, optional extraction, synthesis, post-processing.
// Progress is observable only through the event channel; no shared mutable
// state crosses the package boundary.
// Implements: prd010-pipeline (R1-R6); docs/ARCHITECTURE § Orchestrator.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/deep-research/internal/costs"
	"github.com/pdiddy/deep-research/internal/decompose"
	"github.com/pdiddy/deep-research/internal/evaluate"
	"github.com/pdiddy/deep-research/internal/fetchweb"
	"github.com/pdiddy/deep-research/internal/llm"
	"github.com/pdiddy/deep-research/internal/modes"
	"github.com/pdiddy/deep-research/internal/router"
	"github.com/pdiddy/deep-research/internal/synthesize"
	"github.com/pdiddy/deep-research/internal/websearch"
	"github.com/pdiddy/deep-research/pkg/types"
)

// Stage progress milestones. Values are cumulative over the whole run so
// successive stage events never report a lower progress.
const (
	progressDecomposed = 0.15
	progressSearched   = 0.40
	progressEvaluated  = 0.60
	progressExtracted  = 0.70
	progressSynthesis  = 0.95
	progressDone       = 1.00
)

const eventBuffer = 64

// Deps bundles the external collaborators one run needs. Log receives
// warnings for locally recovered failures.
type Deps struct {
	LLM     llm.Client
	Search  websearch.Provider
	Fetcher fetchweb.Fetcher
	Log     io.Writer
}

// Execute starts one research run and returns its event stream and run id
// immediately. The caller must drain the channel until it closes; it closes
// after exactly one of a complete event or a terminal error event.
// Cancelling ctx aborts all in-flight calls and terminates the stream.
func Execute(ctx context.Context, req types.ResearchRequest, cfg types.PipelineConfig, deps Deps) (<-chan types.PipelineEvent, string) {
	runID := uuid.NewString()
	events := make(chan types.PipelineEvent, eventBuffer)

	r := &run{
		id:     runID,
		req:    req,
		cfg:    cfg,
		deps:   deps,
		events: events,
		start:  time.Now(),
	}
	if r.deps.Log == nil {
		r.deps.Log = io.Discard
	}

	go r.execute(ctx)
	return events, runID
}

// run holds the state of one pipeline execution, alive only for its
// duration.
type run struct {
	id     string
	req    types.ResearchRequest
	cfg    types.PipelineConfig
	deps   Deps
	events chan types.PipelineEvent
	start  time.Time

	ctx          context.Context
	lastProgress float64
}

// execute is the producer goroutine. It guarantees the channel is closed
// after a single terminal event, whatever happens inside the stages.
func (r *run) execute(ctx context.Context) {
	r.ctx = ctx
	defer close(r.events)
	defer func() {
		if rec := recover(); rec != nil {
			fmt.Fprintf(r.deps.Log, "panic in pipeline run %s: %v\n", r.id, rec)
			r.tryEmit(types.ErrorEv(types.ErrInternal, fmt.Sprintf("internal error: %v", rec), "", false))
		}
	}()

	if err := r.pipeline(ctx); err != nil {
		code := types.ErrInternal
		if ctx.Err() != nil {
			code = types.ErrCancelled
		}
		if te, ok := err.(*terminalError); ok {
			code = te.code
		}
		r.tryEmit(types.ErrorEv(code, err.Error(), stageOf(err), false))
	}
}

// terminalError carries an error code and failing stage to the terminal
// error event.
type terminalError struct {
	code  string
	stage types.Stage
	err   error
}

func (e *terminalError) Error() string { return e.err.Error() }

func stageOf(err error) types.Stage {
	if te, ok := err.(*terminalError); ok {
		return te.stage
	}
	return ""
}

// pipeline runs the stages in order. Returning an error produces the
// terminal error event; returning nil means the complete event was emitted.
func (r *run) pipeline(ctx context.Context) error {
	if r.req.Question == "" {
		return &terminalError{code: types.ErrInternal, err: fmt.Errorf("empty research question")}
	}

	preset := types.PresetFor(r.req.Depth)
	ledger := costs.NewLedger(r.cfg.Search.CostPerQueryUSD)

	// --- Decomposition ---
	r.stage(types.StageDecompose, types.StatusRunning, 0.02, "decomposing research question")

	dctx, cancel := context.WithTimeout(ctx, r.cfg.Timeouts.Decompose)
	sel := router.Select(types.StageDecompose, r.req.CostPreference, r.req.Depth, r.req.ModelOverrides)
	subs, decomposeModel, err := decompose.Decompose(dctx, r.deps.LLM, sel.Chain(), r.req.Question, preset.SubQueries, ledger, r.deps.Log)
	cancel()
	if err != nil {
		return &terminalError{code: types.ErrCancelled, stage: types.StageDecompose, err: err}
	}
	r.stage(types.StageDecompose, types.StatusCompleted, progressDecomposed,
		fmt.Sprintf("%d sub-queries", len(subs)))

	// --- Search ---
	r.stage(types.StageSearch, types.StatusRunning, progressDecomposed, "searching the web")

	sctx, cancel := context.WithTimeout(ctx, r.cfg.Timeouts.Search)
	searchOut := websearch.Run(sctx, r.deps.Search, subs, r.cfg.Search, r.req.Domains, func(res types.SearchResult) {
		r.emit(types.SourceEv(res.URL, res.Title, res.SubQueryID))
	}, r.deps.Log)
	cancel()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	ledger.AddSearchCost(searchOut.Calls)

	if len(searchOut.Failed) == len(subs) {
		return &terminalError{code: types.ErrSearchFailed, stage: types.StageSearch,
			err: fmt.Errorf("all %d searches failed", len(subs))}
	}
	if len(searchOut.Results) == 0 {
		return &terminalError{code: types.ErrNoResults, stage: types.StageSearch,
			err: fmt.Errorf("no search results after deduplication")}
	}
	r.stage(types.StageSearch, types.StatusCompleted, progressSearched,
		fmt.Sprintf("%d sources (%d duplicates removed)", len(searchOut.Results), searchOut.DupsRemoved))

	// --- Mode resolution ---
	synthSel := router.Select(types.StageSynthesize, r.req.CostPreference, r.req.Depth, r.req.ModelOverrides)
	resolution := modes.Resolve(synthSel.ModelID, len(searchOut.Results), preset.MaxSources)

	sources := searchOut.Results
	if len(sources) > resolution.EffectiveSearch {
		sources = sources[:resolution.EffectiveSearch]
	}
	keepBudget := preset.MaxSources
	if keepBudget > resolution.EffectiveSelect {
		keepBudget = resolution.EffectiveSelect
	}

	// --- Evaluation ---
	r.stage(types.StageEvaluate, types.StatusRunning, progressSearched, "scoring sources")

	evalSel := router.Select(types.StageEvaluate, r.req.CostPreference, r.req.Depth, r.req.ModelOverrides)
	ectx, cancel := context.WithTimeout(ctx, r.cfg.Timeouts.Evaluate)
	evalOut, err := evaluate.Evaluate(ectx, r.deps.LLM, evalSel.ModelID, r.req.Question, sources, r.cfg.Evaluation, keepBudget, ledger, r.deps.Log)
	cancel()
	if err != nil {
		return err
	}

	kept := evalOut.Kept
	if len(kept) == 0 {
		// Nothing cleared the threshold: keep the top of the ranked set
		// rather than synthesizing from nothing.
		fmt.Fprintf(r.deps.Log, "warning: no sources above relevance threshold, keeping top %d by rank\n", keepBudget)
		kept = evaluate.KeepTop(evalOut.Sources, keepBudget)
	}

	r.emit(types.EvaluationEv(len(evalOut.Sources), len(kept), len(evalOut.Sources)-len(kept)))
	r.stage(types.StageEvaluate, types.StatusCompleted, progressEvaluated,
		fmt.Sprintf("kept %d of %d sources", len(kept), len(evalOut.Sources)))

	// --- Extraction (optional) ---
	if preset.FetchContent && r.deps.Fetcher != nil {
		r.stage(types.StageExtract, types.StatusRunning, progressEvaluated, "fetching full content")
		fctx, cancel := context.WithTimeout(ctx, r.cfg.Timeouts.Extract)
		fetchweb.FetchAll(fctx, r.deps.Fetcher, kept, r.cfg.Fetch, r.deps.Log)
		cancel()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.stage(types.StageExtract, types.StatusCompleted, progressExtracted, "content fetched")
	}

	// --- Synthesis ---
	r.stage(types.StageSynthesize, types.StatusRunning, progressExtracted, "synthesizing report")

	engine := synthesize.NewEngine(r.deps.LLM, ledger, r.deps.Log)
	synCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeouts.Synthesize)
	synthOut, err := engine.Run(synCtx, synthesize.Input{
		Question:        r.req.Question,
		Sources:         kept,
		Resolution:      resolution,
		Chain:           synthSel.Chain(),
		MaxOutputTokens: r.cfg.LLM.MaxOutputTokens,
	}, func(delta string) {
		r.emit(types.DeltaEv(delta))
	})
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &terminalError{code: types.ErrSynthesisFailed, stage: types.StageSynthesize, err: err}
	}
	r.stage(types.StageSynthesize, types.StatusCompleted, progressSynthesis, "report ready")

	// --- Post-processing ---
	result := r.bundle(preset, subs, evalOut, kept, resolution, decomposeModel, synthOut, ledger)

	r.stage(types.StagePost, types.StatusCompleted, progressDone, "run complete")
	r.emit(types.PipelineEvent{Type: types.EventMetadata, Metadata: &result.Metadata})
	r.emit(types.PipelineEvent{Type: types.EventCost, Cost: &result.Cost})
	r.emit(types.PipelineEvent{Type: types.EventComplete, Complete: result})
	return nil
}

// bundle assembles the final RunResult.
func (r *run) bundle(preset types.DepthPreset, subs []types.SubQuery, evalOut evaluate.Output, kept []types.EvaluatedSource, resolution modes.Resolution, decomposeModel string, synthOut synthesize.Result, ledger *costs.Ledger) *types.RunResult {
	citations := make([]types.Citation, len(kept))
	for i, src := range kept {
		citations[i] = types.Citation{Number: i + 1, URL: src.URL, Title: src.Title}
	}

	models := distinct(decomposeModel, evalOut.ModelUsed, synthOut.ModelsUsed...)

	meta := types.RunMetadata{
		RunID:           r.id,
		DurationMS:      time.Since(r.start).Milliseconds(),
		TotalSources:    len(evalOut.Sources),
		KeptSources:     len(kept),
		FilteredSources: len(evalOut.Sources) - len(kept),
		ModelsUsed:      models,
		Mode:            string(resolution.Mode),
		Clamped:         resolution.Clamped,
	}

	return &types.RunResult{
		RunID:      r.id,
		Question:   r.req.Question,
		Depth:      r.req.Depth,
		Report:     synthOut.Report,
		Citations:  citations,
		Sources:    kept,
		SubQueries: subs,
		Metadata:   meta,
		Cost:       ledger.Breakdown(),
	}
}

// stage emits a stage event, clamping progress so it never decreases.
func (r *run) stage(stage types.Stage, status types.StageStatus, progress float64, message string) {
	if progress < r.lastProgress {
		progress = r.lastProgress
	}
	r.lastProgress = progress
	r.emit(types.StageEv(stage, status, progress, message))
}

// emit sends an event, blocking until the consumer takes it or the run is
// cancelled. Cancellation makes it a no-op so stages wind down quickly.
func (r *run) emit(ev types.PipelineEvent) {
	select {
	case r.events <- ev:
	case <-r.ctx.Done():
	}
}

// tryEmit delivers the terminal event. It blocks for an active consumer,
// but after cancellation a consumer that stopped draining must not leak the
// producer goroutine, so the event is dropped if the buffer is full.
func (r *run) tryEmit(ev types.PipelineEvent) {
	select {
	case r.events <- ev:
	case <-r.ctx.Done():
		select {
		case r.events <- ev:
		default:
		}
	}
}

// distinct merges model ids, dropping blanks and duplicates while keeping
// first-seen order.
func distinct(first, second string, rest ...string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range append([]string{first, second}, rest...) {
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}
