package pipeline

import (
	"context"
	"time"

	"github.com/quietridge/analystd/internal/events"
	"github.com/quietridge/analystd/internal/parser"
	"github.com/quietridge/analystd/internal/retrieval"
	"github.com/quietridge/analystd/internal/settings"
	"github.com/quietridge/analystd/internal/store"
)

// RunAnalysis is C7's entry point. runID must already exist in status
// "running" (created by the caller — the scheduler's mark_schedule_started
// for scheduled work, or Engine.StartAdHocRun for manual invocations).
// schedule is nil for ad-hoc runs; when non-nil its circuit-breaker guard
// is (re-)checked here even though the scheduler's list_due_schedules
// already filtered on it, covering direct/manual re-invocation.
//
// RunAnalysis never updates the schedules table. The caller is responsible
// for computing next_run_at and calling store.MarkScheduleCompleted after
// this returns.
func (e *Engine) RunAnalysis(ctx context.Context, runID int64, ticker, kind string, schedule *store.Schedule) (*store.AnalysisResult, error) {
	skip, err := e.checkGuards(ticker, schedule)
	if err != nil {
		return nil, err
	}
	if skip != nil {
		reason := string(skip.Reason)
		_ = e.runs.CompleteRun(runID, store.RunStatusSkipped, &reason)
		e.log.Info().Str("ticker", ticker).Str("reason", reason).Msg("run skipped by guard rail")
		return nil, skip
	}

	e.events.Emit(events.RunStarted, "pipeline", &events.RunStartedData{RunID: runID, Ticker: ticker, TaskKind: kind})
	_ = e.status.IncrementTotalRuns()

	var result *store.AnalysisResult
	if e.settings.GetBool(settings.KeyFourPhaseAnalysisEnabled) {
		result, err = e.runFourPhase(ctx, runID, ticker, kind)
	} else {
		result, err = e.runLegacy(ctx, runID, ticker, kind)
	}

	if err != nil {
		msg := err.Error()
		_ = e.runs.CompleteRun(runID, store.RunStatusFailed, &msg)
		_ = e.status.IncrementTotalErrors()
		e.events.Emit(events.RunFailed, "pipeline", &events.RunFailedData{RunID: runID, Ticker: ticker, Error: msg})
		return nil, err
	}

	_ = e.runs.CompleteRun(runID, store.RunStatusCompleted, nil)
	_ = e.status.IncrementToday(store.CounterAnalyses)
	e.events.Emit(events.RunCompleted, "pipeline", &events.RunCompletedData{
		RunID: runID, Ticker: ticker, Recommendation: result.Recommendation, Confidence: result.Confidence,
	})
	return result, nil
}

// StartAdHocRun creates a Run with no owning schedule and runs the pipeline
// against it. Used by the admin surface / manual "analyze now" path.
func (e *Engine) StartAdHocRun(ctx context.Context, ticker, kind string) (*store.AnalysisResult, error) {
	runID, err := e.runs.CreateRun(ticker, "analyze_stock", kind)
	if err != nil {
		return nil, err
	}
	return e.RunAnalysis(ctx, runID, ticker, kind, nil)
}

// runFourPhase is the default variant: unbiased generation, dual ingest,
// hybrid retrieval, confidence-adjusted synthesis.
func (e *Engine) runFourPhase(ctx context.Context, runID int64, ticker, kind string) (*store.AnalysisResult, error) {
	now := time.Now().UTC()

	// Phase 1 — Unbiased Generation. A failure here is fatal.
	_ = e.runs.UpdateRunStage(runID, "phase1_generate")
	filepath, rawText, parsed, err := e.phase1Generate(ctx, ticker, kind, false, nil, now)
	if err != nil {
		return nil, err
	}
	_ = e.runs.UpdateRunArtifact(runID, filepath)
	_ = e.runs.UpdateRunOutcome(runID, parsed.GatePassed, parsed.Recommendation, parsed.Confidence, parsed.ExpectedValuePct, rawText)

	analysisResult := store.AnalysisResult{
		RunID: runID, Ticker: ticker, AnalysisKind: kind,
		GatePassed: parsed.GatePassed, Recommendation: parsed.Recommendation, Confidence: parsed.Confidence,
		ExpectedValuePct: parsed.ExpectedValuePct, EntryPrice: parsed.EntryPrice, StopPrice: parsed.StopPrice,
		TargetPrice: parsed.TargetPrice, PositionSizePct: parsed.PositionSizePct, TradeStructure: parsed.TradeStructure,
		Expiry: parsed.Expiry, Strikes: parsed.Strikes, Rationale: parsed.Rationale, DocDate: now,
	}

	// Phase 2 — Dual Ingest. Non-fatal: a failed or timed-out ingest just
	// means Phase 3 proceeds with doc_id = "".
	_ = e.runs.UpdateRunStage(runID, "phase2_ingest")
	docID := e.phase2Ingest(ctx, filepath)
	if docID != "" {
		analysisResult.DocID = &docID
	}

	// Phase 3 — Retrieve. Non-fatal: a timeout or error yields an empty,
	// first-analysis HybridContext.
	_ = e.runs.UpdateRunStage(runID, "phase3_retrieve")
	hc := e.phase3Retrieve(ctx, ticker, kind, docID)

	// Phase 4 — Synthesize. Non-fatal: errors degrade the written artifact
	// but never fail the run.
	_ = e.runs.UpdateRunStage(runID, "phase4_synthesize")
	adjusted, modifiers, pattern := e.phase4Synthesize(ctx, ticker, kind, runID, parsed, hc, filepath)

	analysisResult.AdjustedConfidence = &adjusted
	analysisResult.ConfidenceModifiers = modifiers
	_ = pattern

	if err := e.analysis.SaveAnalysisResult(analysisResult); err != nil {
		return nil, err
	}
	if err := e.analysis.UpdateAnalysisConfidence(runID, adjusted, modifiers); err != nil {
		return nil, err
	}
	analysisResult.AdjustedConfidence = &adjusted

	return &analysisResult, nil
}

// runLegacy is the single-shot variant: retrieval context is injected into
// Phase 1 directly (kb_enabled=true) and only a vector-only ingest follows.
// No synthesis, no confidence adjustment. Preserved for comparison/rollback
// behind the four_phase_analysis_enabled setting, including its asymmetric
// vector-only (never graph) ingest.
func (e *Engine) runLegacy(ctx context.Context, runID int64, ticker, kind string) (*store.AnalysisResult, error) {
	now := time.Now().UTC()

	hc := e.phase3Retrieve(ctx, ticker, kind, "")

	_ = e.runs.UpdateRunStage(runID, "generate")
	filepath, rawText, parsed, err := e.phase1Generate(ctx, ticker, kind, true, hc, now)
	if err != nil {
		return nil, err
	}
	_ = e.runs.UpdateRunArtifact(runID, filepath)
	_ = e.runs.UpdateRunOutcome(runID, parsed.GatePassed, parsed.Recommendation, parsed.Confidence, parsed.ExpectedValuePct, rawText)

	_ = e.runs.UpdateRunStage(runID, "vector_ingest")
	docID := e.vectorOnlyIngest(ctx, filepath)

	analysisResult := store.AnalysisResult{
		RunID: runID, Ticker: ticker, AnalysisKind: kind,
		GatePassed: parsed.GatePassed, Recommendation: parsed.Recommendation, Confidence: parsed.Confidence,
		ExpectedValuePct: parsed.ExpectedValuePct, EntryPrice: parsed.EntryPrice, StopPrice: parsed.StopPrice,
		TargetPrice: parsed.TargetPrice, PositionSizePct: parsed.PositionSizePct, TradeStructure: parsed.TradeStructure,
		Expiry: parsed.Expiry, Strikes: parsed.Strikes, Rationale: parsed.Rationale, DocDate: now,
	}
	if docID != "" {
		analysisResult.DocID = &docID
	}

	if err := e.analysis.SaveAnalysisResult(analysisResult); err != nil {
		return nil, err
	}
	return &analysisResult, nil
}

func (e *Engine) phase1Generate(ctx context.Context, ticker, kind string, kbEnabled bool, hc *retrieval.HybridContext, at time.Time) (string, string, parser.Parsed, error) {
	prompt, err := e.prompts.Build(ticker, kind, kbEnabled, hc)
	if err != nil {
		return "", "", parser.Parsed{}, err
	}

	timeout := time.Duration(e.settings.GetInt(settings.KeyClaudeTimeoutSeconds)) * time.Second
	label := ticker + ":" + kind
	rawText, reasonErr := e.reasoning.Invoke(ctx, prompt, nil, label, timeout)
	if reasonErr != nil {
		return "", "", parser.Parsed{}, reasonErr
	}

	id := docID(ticker, kind, at)
	path := artifactPath(e.analysesDir, id)
	if err := atomicWriteFile(path, rawText); err != nil {
		return "", "", parser.Parsed{}, err
	}

	parsed := parser.Parse(rawText)
	return path, rawText, parsed, nil
}

func (e *Engine) phase2Ingest(ctx context.Context, filepath string) string {
	timeout := time.Duration(e.settings.GetInt(settings.KeyPhase2TimeoutSeconds)) * time.Second
	ingestCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result := e.ingest.Ingest(ingestCtx, filepath)
	return result.DocID
}

// vectorOnlyIngest performs the legacy variant's single-shot vector embed
// via vectorOnly directly — never the dual Ingester — so the graph store is
// not touched at all. This asymmetry is the legacy behavior, not a bug.
func (e *Engine) vectorOnlyIngest(ctx context.Context, filepath string) string {
	timeout := time.Duration(e.settings.GetInt(settings.KeyPhase2TimeoutSeconds)) * time.Second
	ingestCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	chunks, err := e.vectorOnly.Embed(ingestCtx, filepath)
	if err != nil {
		e.log.Warn().Err(err).Str("filepath", filepath).Msg("legacy vector embed failed")
		return ""
	}
	return chunks.DocID
}

func (e *Engine) phase3Retrieve(ctx context.Context, ticker, kind, excludeDocID string) *retrieval.HybridContext {
	timeout := time.Duration(e.settings.GetInt(settings.KeyPhase3TimeoutSeconds)) * time.Second
	retrieveCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	query := kind + " analysis historical patterns"
	return e.retrieval.Build(retrieveCtx, ticker, query, kind, excludeDocID)
}

func (e *Engine) phase4Synthesize(ctx context.Context, ticker, kind string, runID int64, parsed parser.Parsed, hc *retrieval.HybridContext, filepath string) (int, map[string]int, HistoricalPattern) {
	timeout := time.Duration(e.settings.GetInt(settings.KeyPhase4TimeoutSeconds)) * time.Second
	_, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	past, err := e.analysis.PatternHistory(ticker, kind, runID, 5)
	if err != nil {
		e.log.Warn().Err(err).Str("ticker", ticker).Msg("pattern history lookup failed, treating as empty")
		past = nil
	}

	adj := adjustConfidence(parsed.Confidence, parsed.Recommendation, hc, past)

	block := renderSynthesisBlock(hc, past, adj)
	if err := atomicAppendFile(filepath, block); err != nil {
		e.log.Warn().Err(err).Str("filepath", filepath).Msg("failed to append synthesis block")
	}

	return adj.Adjusted, adj.Modifiers, adj.Pattern
}
