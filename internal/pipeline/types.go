// Package pipeline implements the four-phase analysis engine: unbiased
// generation, dual ingest, hybrid retrieval, and confidence-adjusted
// synthesis. A legacy single-shot variant is kept alongside it, selected by
// the `four_phase_analysis_enabled` setting, for comparison and rollback.
package pipeline

import (
	"context"
	"time"

	"github.com/quietridge/analystd/internal/events"
	"github.com/quietridge/analystd/internal/ingest"
	"github.com/quietridge/analystd/internal/reasoning"
	"github.com/quietridge/analystd/internal/retrieval"
	"github.com/quietridge/analystd/internal/settings"
	"github.com/quietridge/analystd/internal/store"
	"github.com/rs/zerolog"
)

// PromptBuilder renders the reasoning prompt for a given analysis kind.
// kbEnabled selects between the four-phase variant (false — Phase 1 runs
// unbiased) and the legacy variant (true — retrieval context is injected
// directly into Phase 1's prompt). hc is nil when kbEnabled is false.
type PromptBuilder interface {
	Build(ticker, kind string, kbEnabled bool, hc *retrieval.HybridContext) (string, error)
}

// ReasoningInvoker is the subset of reasoning.Invoker the pipeline depends
// on, narrowed to an interface so phase tests can substitute a fake rather
// than spawning a real subprocess.
type ReasoningInvoker interface {
	Invoke(ctx context.Context, prompt string, allowedCapabilities []string, label string, timeout time.Duration) (string, *reasoning.ReasoningError)
}

// Ingester is the subset of ingest.Fanout the pipeline depends on.
type Ingester interface {
	Ingest(ctx context.Context, filepath string) ingest.Result
}

// VectorEmbedder is the legacy variant's single-store dependency — it must
// never reach the graph store, which is what makes Ingester (dual fan-out)
// unsuitable for it even when only its vector half is read.
type VectorEmbedder interface {
	Embed(ctx context.Context, filepath string) (ingest.VectorChunks, error)
}

// RetrievalBuilder is the subset of retrieval.Builder the pipeline depends
// on.
type RetrievalBuilder interface {
	Build(ctx context.Context, ticker, queryText, analysisKind, excludeDocID string) *retrieval.HybridContext
}

// Engine runs the pipeline's guard rails and phases. It never touches the
// schedules table — schedule bookkeeping (mark_schedule_started,
// mark_schedule_completed, next_run_at arithmetic) belongs entirely to the
// caller (the scheduler for scheduled invocations), since only the caller
// knows the frequency/calendar logic a schedule's next_run_at requires.
type Engine struct {
	stocks      *store.StockRepository
	runs        *store.RunRepository
	analysis    *store.AnalysisRepository
	status      *store.ServiceStatusRepository
	settings    *settings.Store
	prompts     PromptBuilder
	reasoning   ReasoningInvoker
	ingest      Ingester
	vectorOnly  VectorEmbedder
	retrieval   RetrievalBuilder
	events      *events.Manager
	analysesDir string
	log         zerolog.Logger
}

// New creates an Engine. analysesDir is the directory Phase 1 writes
// artifacts into; it must already exist. vectorOnly is used exclusively by
// the legacy variant's single-shot ingest — it must be a vector-store-only
// dependency, never the dual fanout, so the legacy variant's graph-ingest
// asymmetry holds even at the wiring level.
func New(
	stocks *store.StockRepository,
	runs *store.RunRepository,
	analysis *store.AnalysisRepository,
	status *store.ServiceStatusRepository,
	settingsStore *settings.Store,
	prompts PromptBuilder,
	inv ReasoningInvoker,
	fanout Ingester,
	vectorOnly VectorEmbedder,
	retrievalBuilder RetrievalBuilder,
	evtManager *events.Manager,
	analysesDir string,
	log zerolog.Logger,
) *Engine {
	return &Engine{
		stocks: stocks, runs: runs, analysis: analysis, status: status,
		settings: settingsStore, prompts: prompts, reasoning: inv, ingest: fanout,
		vectorOnly: vectorOnly, retrieval: retrievalBuilder, events: evtManager, analysesDir: analysesDir,
		log: log.With().Str("component", "pipeline").Logger(),
	}
}

// SkipReason names why a run was short-circuited by a guard rail.
type SkipReason string

const (
	SkipStockDisabledOrAbsent SkipReason = "stock_disabled_or_absent"
	SkipDailyAnalysisCap      SkipReason = "daily_analysis_cap_reached"
	SkipCircuitBreakerTripped SkipReason = "circuit_breaker_tripped"
)

// SkipError is returned when a guard rail short-circuits the run before any
// phase executes. It is not a failure: the caller should treat it as a
// no-op, not bump error counters.
type SkipError struct {
	Reason SkipReason
}

func (e *SkipError) Error() string { return "run skipped: " + string(e.Reason) }
