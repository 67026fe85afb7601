// Package scheduler implements a single cron-like pass: it selects due
// schedules, enforces market-hours/trading-day/daily-run-count gates ahead
// of dispatch, fans a watchlist scan out across tickers bounded by a
// concurrency cap, dispatches each unit of work to the pipeline, and
// computes each schedule's next_run_at. It owns the schedules table: the
// pipeline (internal/pipeline) never writes to it.
package scheduler

import (
	"context"

	"github.com/quietridge/analystd/internal/calendar"
	"github.com/quietridge/analystd/internal/settings"
	"github.com/quietridge/analystd/internal/store"
	"github.com/rs/zerolog"
)

// PipelineInvoker is the subset of pipeline.Engine the scheduler depends on.
type PipelineInvoker interface {
	RunAnalysis(ctx context.Context, runID int64, ticker, kind string, schedule *store.Schedule) (*store.AnalysisResult, error)
}

// Scheduler runs one pass over due schedules per call to RunOnce. It holds
// no goroutines or timers of its own — internal/service's tick loop calls
// RunOnce once per tick.
type Scheduler struct {
	schedules *store.ScheduleRepository
	stocks    *store.StockRepository
	runs      *store.RunRepository
	status    *store.ServiceStatusRepository
	settings  *settings.Store
	calendar  *calendar.Calendar
	pipeline  PipelineInvoker
	log       zerolog.Logger
}

// New creates a Scheduler.
func New(
	schedules *store.ScheduleRepository,
	stocks *store.StockRepository,
	runs *store.RunRepository,
	status *store.ServiceStatusRepository,
	settingsStore *settings.Store,
	cal *calendar.Calendar,
	pipeline PipelineInvoker,
	log zerolog.Logger,
) *Scheduler {
	return &Scheduler{
		schedules: schedules, stocks: stocks, runs: runs, status: status, settings: settingsStore,
		calendar: cal, pipeline: pipeline,
		log: log.With().Str("component", "scheduler").Logger(),
	}
}

// Task kinds a Schedule's task_kind column may hold. Anything else is left
// to external collaborators, per spec.
const (
	TaskAnalyzeStock     = "analyze_stock"
	TaskAnalyzeWatchlist = "analyze_watchlist"
	TaskPipeline         = "pipeline"
)
