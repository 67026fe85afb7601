package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/quietridge/analystd/internal/pipeline"
	"github.com/quietridge/analystd/internal/settings"
	"github.com/quietridge/analystd/internal/store"
	"github.com/rs/zerolog"
)

// RunOnce executes a single pass over due schedules, in the order
// store.ListDueSchedules returns them (priority descending, next_run_at
// ascending, id ascending). A transient error from one schedule is logged
// and never aborts the pass.
func (s *Scheduler) RunOnce(ctx context.Context, now time.Time) error {
	due, err := s.schedules.ListDueSchedules(now)
	if err != nil {
		return err
	}

	for _, schedule := range due {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.dispatchOne(ctx, schedule, now)
	}
	return nil
}

func (s *Scheduler) dispatchOne(ctx context.Context, schedule store.Schedule, now time.Time) {
	log := s.log.With().Int64("schedule_id", schedule.ID).Str("task_kind", schedule.TaskKind).Logger()

	if schedule.MarketHoursOnly && !s.calendar.IsMarketHours(now) {
		log.Debug().Msg("skipped: outside market hours")
		return
	}
	if schedule.TradingDaysOnly && !s.calendar.IsTradingDay(now) {
		log.Debug().Msg("skipped: not a trading day")
		return
	}

	startOfToday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	todayCount, err := s.schedules.CountRunsSince(schedule.ID, startOfToday)
	if err != nil {
		log.Warn().Err(err).Msg("failed to count today's runs, skipping this pass")
		return
	}
	if todayCount >= schedule.MaxRunsPerDay {
		log.Debug().Msg("skipped: max_runs_per_day reached")
		return
	}

	switch schedule.TaskKind {
	case TaskAnalyzeWatchlist:
		s.dispatchWatchlist(ctx, schedule, now, log)
	case TaskAnalyzeStock, TaskPipeline:
		s.dispatchSingle(ctx, schedule, now, log)
	default:
		log.Debug().Msg("task kind deferred to external collaborators")
	}
}

// dispatchSingle handles analyze_stock and pipeline task kinds: one Run row
// owned by the schedule, via MarkScheduleStarted/MarkScheduleCompleted.
func (s *Scheduler) dispatchSingle(ctx context.Context, schedule store.Schedule, now time.Time, log zerolog.Logger) {
	runID, err := s.schedules.MarkScheduleStarted(schedule.ID, schedule.Target, schedule.TaskKind, schedule.AnalysisKind, now)
	if err != nil {
		log.Warn().Err(err).Msg("failed to start schedule run")
		return
	}

	result, runErr := s.pipeline.RunAnalysis(ctx, runID, schedule.Target, schedule.AnalysisKind, &schedule)

	status, errMsg := outcomeFor(runErr)
	var nextRunAt *time.Time
	if schedule.Frequency == "once" {
		if err := s.schedules.Disable(schedule.ID); err != nil {
			log.Warn().Err(err).Msg("failed to disable one-shot schedule")
		}
	} else {
		nextRunAt = s.nextRunAtFor(schedule, now)
	}

	if err := s.schedules.MarkScheduleCompleted(schedule.ID, runID, status, errMsg, nextRunAt); err != nil {
		log.Warn().Err(err).Msg("failed to finalize schedule run")
	}

	if schedule.TaskKind == TaskPipeline && runErr == nil && result != nil {
		s.maybeExecute(result, log)
	}
}

// maybeExecute logs the (out-of-scope) execution decision for a "pipeline"
// task kind; it never places an order.
func (s *Scheduler) maybeExecute(result *store.AnalysisResult, log zerolog.Logger) {
	if !result.GatePassed {
		return
	}
	if !s.settings.GetBool(settings.KeyAutoExecuteEnabled) {
		return
	}
	st, err := s.status.Get()
	if err != nil {
		return
	}
	if st.TodayExecutions >= s.settings.GetInt(settings.KeyMaxDailyExecutions) {
		log.Debug().Msg("execution cap reached, not proceeding to execution stage")
		return
	}
	log.Info().Str("recommendation", result.Recommendation).Msg("gate passed, auto-execute enabled — execution stage is out of scope")
}

// dispatchWatchlist fans out analysis across every enabled stock, bounded by
// max_concurrent_analyses, in (priority desc, ticker asc) order. Each
// ticker's Run is tracked as an independent ad-hoc run — see
// ScheduleRepository.UpdateAfterWatchlistPass for why the schedule itself
// isn't updated through MarkScheduleCompleted here.
func (s *Scheduler) dispatchWatchlist(ctx context.Context, schedule store.Schedule, now time.Time, log zerolog.Logger) {
	// ListEnabledStocks already orders by priority DESC, ticker ASC.
	stocks, err := s.stocks.ListEnabledStocks()
	if err != nil {
		log.Warn().Err(err).Msg("failed to list enabled stocks")
		return
	}

	maxConcurrent := s.settings.GetInt(settings.KeyMaxConcurrentAnalyses)
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	sem := make(chan struct{}, maxConcurrent)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var anyFailed bool

	for _, stock := range stocks {
		stock := stock
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			kind := stock.DefaultKind
			if kind == "" {
				kind = schedule.AnalysisKind
			}
			runID, err := s.runs.CreateRun(stock.Ticker, schedule.TaskKind, kind)
			if err != nil {
				log.Warn().Err(err).Str("ticker", stock.Ticker).Msg("failed to create watchlist run")
				mu.Lock()
				anyFailed = true
				mu.Unlock()
				return
			}
			_, runErr := s.pipeline.RunAnalysis(ctx, runID, stock.Ticker, kind, &schedule)
			var skipErr *pipeline.SkipError
			if runErr != nil && !errors.As(runErr, &skipErr) {
				mu.Lock()
				anyFailed = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	nextRunAt := s.nextRunAtFor(schedule, now)
	if err := s.schedules.UpdateAfterWatchlistPass(schedule.ID, len(stocks), anyFailed, nextRunAt); err != nil {
		log.Warn().Err(err).Msg("failed to finalize watchlist pass")
	}
}

// nextRunAtFor resolves the schedule's target stock (pre/post_earnings need
// its next_earnings_date) and computes the next occurrence.
func (s *Scheduler) nextRunAtFor(schedule store.Schedule, now time.Time) *time.Time {
	var stock *store.Stock
	if schedule.TaskKind != TaskAnalyzeWatchlist && schedule.Target != "" {
		st, err := s.stocks.GetStock(schedule.Target)
		if err == nil {
			stock = st
		}
	}
	return computeNextRunAt(s.calendar, schedule, stock, now)
}

func outcomeFor(err error) (status string, errMsg *string) {
	if err == nil {
		return store.RunStatusCompleted, nil
	}
	var skipErr *pipeline.SkipError
	if errors.As(err, &skipErr) {
		return store.RunStatusSkipped, nil
	}
	msg := err.Error()
	return store.RunStatusFailed, &msg
}
