package store

import (
	"testing"
	"time"

	itesting "github.com/quietridge/analystd/internal/testing"
	"github.com/stretchr/testify/require"
)

func TestUpsertStock_ThenGetStock_RoundTrips(t *testing.T) {
	db, cleanup := itesting.NewTestDB(t)
	defer cleanup()
	repo := NewStockRepository(db.Conn())

	require.NoError(t, repo.UpsertStock(Stock{
		Ticker: "aapl", DisplayName: "Apple", Sector: "Technology",
		Enabled: true, State: "analysis", DefaultKind: "stock", Priority: 7,
		Tags: []string{"mega_cap", "ai"},
	}))

	got, err := repo.GetStock("AAPL")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "AAPL", got.Ticker)
	require.Equal(t, "Apple", got.DisplayName)
	require.Equal(t, []string{"mega_cap", "ai"}, got.Tags)
}

func TestUpsertStock_IsIdempotentUpdate(t *testing.T) {
	db, cleanup := itesting.NewTestDB(t)
	defer cleanup()
	repo := NewStockRepository(db.Conn())

	require.NoError(t, repo.UpsertStock(Stock{Ticker: "MSFT", Priority: 1, State: "analysis", Enabled: true}))
	require.NoError(t, repo.UpsertStock(Stock{Ticker: "MSFT", Priority: 9, State: "watch", Enabled: true}))

	got, err := repo.GetStock("MSFT")
	require.NoError(t, err)
	require.Equal(t, 9, got.Priority)
	require.Equal(t, "watch", got.State)
}

func TestListEnabledStocks_OrderedByPriorityThenTicker(t *testing.T) {
	db, cleanup := itesting.NewTestDB(t)
	defer cleanup()
	repo := NewStockRepository(db.Conn())

	require.NoError(t, repo.UpsertStock(Stock{Ticker: "ZZZ", Priority: 5, Enabled: true, State: "analysis"}))
	require.NoError(t, repo.UpsertStock(Stock{Ticker: "AAA", Priority: 5, Enabled: true, State: "analysis"}))
	require.NoError(t, repo.UpsertStock(Stock{Ticker: "BBB", Priority: 9, Enabled: true, State: "analysis"}))
	require.NoError(t, repo.UpsertStock(Stock{Ticker: "DISABLED", Priority: 10, Enabled: false, State: "analysis"}))

	list, err := repo.ListEnabledStocks()
	require.NoError(t, err)
	require.Len(t, list, 3)
	require.Equal(t, "BBB", list[0].Ticker)
	require.Equal(t, "AAA", list[1].Ticker)
	require.Equal(t, "ZZZ", list[2].Ticker)
}

func TestDisableStock_ExcludesFromListEnabled(t *testing.T) {
	db, cleanup := itesting.NewTestDB(t)
	defer cleanup()
	repo := NewStockRepository(db.Conn())

	require.NoError(t, repo.UpsertStock(Stock{Ticker: "NVDA", Priority: 5, Enabled: true, State: "analysis"}))
	require.NoError(t, repo.DisableStock("NVDA"))

	list, err := repo.ListEnabledStocks()
	require.NoError(t, err)
	require.Empty(t, list)
}

func newTestSchedule(t *testing.T, repo *ScheduleRepository) int64 {
	t.Helper()
	id, err := repo.CreateSchedule(Schedule{
		Name: "daily-aapl", TaskKind: "analyze_stock", Target: "AAPL", AnalysisKind: "stock",
		Frequency: "daily", MaxRunsPerDay: 1, TimeoutSeconds: 300, MaxConsecutiveFails: 3, Enabled: true,
	})
	require.NoError(t, err)
	return id
}

func TestMarkScheduleStarted_IsIdempotentForSameTickBoundary(t *testing.T) {
	db, cleanup := itesting.NewTestDB(t)
	defer cleanup()
	repo := NewScheduleRepository(db.Conn())
	scheduleID := newTestSchedule(t, repo)

	tick := time.Date(2026, 7, 30, 9, 30, 0, 0, time.UTC)

	runID1, err := repo.MarkScheduleStarted(scheduleID, "AAPL", "analyze_stock", "stock", tick)
	require.NoError(t, err)

	runID2, err := repo.MarkScheduleStarted(scheduleID, "AAPL", "analyze_stock", "stock", tick)
	require.NoError(t, err)

	require.Equal(t, runID1, runID2)

	sched, err := repo.GetSchedule(scheduleID)
	require.NoError(t, err)
	require.Equal(t, 2, sched.RunCount, "run_count bumps on every call even when the run itself is deduplicated")
}

func TestMarkScheduleCompleted_ResetsConsecutiveFailsOnSuccess(t *testing.T) {
	db, cleanup := itesting.NewTestDB(t)
	defer cleanup()
	repo := NewScheduleRepository(db.Conn())
	scheduleID := newTestSchedule(t, repo)

	runID, err := repo.MarkScheduleStarted(scheduleID, "AAPL", "analyze_stock", "stock", time.Now())
	require.NoError(t, err)

	next := time.Now().Add(24 * time.Hour)
	require.NoError(t, repo.MarkScheduleCompleted(scheduleID, runID, RunStatusCompleted, nil, &next))

	sched, err := repo.GetSchedule(scheduleID)
	require.NoError(t, err)
	require.Equal(t, 0, sched.ConsecutiveFails)
	require.NotNil(t, sched.NextRunAt)
}

func TestMarkScheduleCompleted_IncrementsConsecutiveFailsOnFailure(t *testing.T) {
	db, cleanup := itesting.NewTestDB(t)
	defer cleanup()
	repo := NewScheduleRepository(db.Conn())
	scheduleID := newTestSchedule(t, repo)

	runID, err := repo.MarkScheduleStarted(scheduleID, "AAPL", "analyze_stock", "stock", time.Now())
	require.NoError(t, err)

	errMsg := "subprocess timed out"
	next := time.Now().Add(time.Hour)
	require.NoError(t, repo.MarkScheduleCompleted(scheduleID, runID, RunStatusFailed, &errMsg, &next))

	sched, err := repo.GetSchedule(scheduleID)
	require.NoError(t, err)
	require.Equal(t, 1, sched.ConsecutiveFails)
	require.Equal(t, 1, sched.FailCount)
}

func TestMarkScheduleCompleted_SkippedLeavesFailCountersUntouched(t *testing.T) {
	db, cleanup := itesting.NewTestDB(t)
	defer cleanup()
	repo := NewScheduleRepository(db.Conn())
	scheduleID := newTestSchedule(t, repo)

	runID, err := repo.MarkScheduleStarted(scheduleID, "AAPL", "analyze_stock", "stock", time.Now())
	require.NoError(t, err)

	next := time.Now().Add(time.Hour)
	reason := "daily_analysis_cap_reached"
	require.NoError(t, repo.MarkScheduleCompleted(scheduleID, runID, RunStatusSkipped, &reason, &next))

	sched, err := repo.GetSchedule(scheduleID)
	require.NoError(t, err)
	require.Equal(t, 0, sched.ConsecutiveFails)
	require.Equal(t, 0, sched.FailCount)
	require.Equal(t, RunStatusSkipped, *sched.LastRunStatus)
	require.NotNil(t, sched.NextRunAt)
}

func TestCountRunsSince_CountsOnlyRunsAtOrAfterCutoff(t *testing.T) {
	db, cleanup := itesting.NewTestDB(t)
	defer cleanup()
	conn := db.Conn()
	repo := NewScheduleRepository(conn)
	scheduleID := newTestSchedule(t, repo)

	yesterdayRunID, err := repo.MarkScheduleStarted(scheduleID, "AAPL", "analyze_stock", "stock", time.Now().Add(-48*time.Hour))
	require.NoError(t, err)
	_, err = conn.Exec(`UPDATE runs SET created_at = ? WHERE id = ?`, time.Now().Add(-24*time.Hour), yesterdayRunID)
	require.NoError(t, err)

	_, err = repo.MarkScheduleStarted(scheduleID, "AAPL", "analyze_stock", "stock", time.Now())
	require.NoError(t, err)
	_, err = repo.MarkScheduleStarted(scheduleID, "AAPL", "analyze_stock", "stock", time.Now().Add(time.Minute))
	require.NoError(t, err)

	cutoff := time.Now().Add(-time.Hour)
	count, err := repo.CountRunsSince(scheduleID, cutoff)
	require.NoError(t, err)
	require.Equal(t, 2, count, "only the two runs created at or after cutoff count")
}

func TestListDueSchedules_TripsCircuitBreaker(t *testing.T) {
	db, cleanup := itesting.NewTestDB(t)
	defer cleanup()
	repo := NewScheduleRepository(db.Conn())
	scheduleID, err := repo.CreateSchedule(Schedule{
		Name: "flaky", TaskKind: "analyze_stock", Target: "TSLA", AnalysisKind: "stock",
		Frequency: "daily", MaxRunsPerDay: 1, TimeoutSeconds: 300, MaxConsecutiveFails: 2, Enabled: true,
	})
	require.NoError(t, err)

	past := time.Now().Add(-time.Hour)
	for i := 0; i < 2; i++ {
		runID, err := repo.MarkScheduleStarted(scheduleID, "TSLA", "analyze_stock", "stock", time.Now().Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
		errMsg := "boom"
		require.NoError(t, repo.MarkScheduleCompleted(scheduleID, runID, RunStatusFailed, &errMsg, &past))
	}

	due, err := repo.ListDueSchedules(time.Now())
	require.NoError(t, err)
	require.Empty(t, due, "schedule should be excluded once consecutive_fails reaches max_consecutive_fails")
}

func TestListDueSchedules_OrdersByPriorityThenNextRunAtThenID(t *testing.T) {
	db, cleanup := itesting.NewTestDB(t)
	defer cleanup()
	repo := NewScheduleRepository(db.Conn())

	past := time.Now().Add(-time.Hour)
	mustCreate := func(name string, priority int, nextRunAt time.Time) int64 {
		id, err := repo.CreateSchedule(Schedule{
			Name: name, TaskKind: "analyze_stock", Target: "AAPL", AnalysisKind: "stock",
			Priority: priority, Frequency: "daily", MaxRunsPerDay: 1, TimeoutSeconds: 300,
			MaxConsecutiveFails: 3, Enabled: true, NextRunAt: &nextRunAt,
		})
		require.NoError(t, err)
		return id
	}

	low := mustCreate("low-priority", 2, past)
	highLater := mustCreate("high-priority-later", 8, past.Add(time.Minute))
	highEarlier := mustCreate("high-priority-earlier", 8, past)

	due, err := repo.ListDueSchedules(time.Now())
	require.NoError(t, err)
	require.Len(t, due, 3)
	require.Equal(t, highEarlier, due[0].ID, "priority 8 beats priority 2, and among ties next_run_at ascending wins")
	require.Equal(t, highLater, due[1].ID)
	require.Equal(t, low, due[2].ID)
}

func TestPatternHistory_OrdersByDocDateThenRunIDDescending(t *testing.T) {
	db, cleanup := itesting.NewTestDB(t)
	defer cleanup()
	scheduleRepo := NewScheduleRepository(db.Conn())
	analysisRepo := NewAnalysisRepository(db.Conn())
	scheduleID := newTestSchedule(t, scheduleRepo)

	sameDay := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	laterDay := time.Date(2026, 7, 2, 0, 0, 0, 0, time.UTC)

	runA, err := scheduleRepo.MarkScheduleStarted(scheduleID, "AAPL", "analyze_stock", "stock", time.Now())
	require.NoError(t, err)
	runB, err := scheduleRepo.MarkScheduleStarted(scheduleID, "AAPL", "analyze_stock", "stock", time.Now().Add(time.Second))
	require.NoError(t, err)
	runC, err := scheduleRepo.MarkScheduleStarted(scheduleID, "AAPL", "analyze_stock", "stock", time.Now().Add(2*time.Second))
	require.NoError(t, err)

	require.NoError(t, analysisRepo.SaveAnalysisResult(AnalysisResult{RunID: runA, Ticker: "AAPL", AnalysisKind: "stock", DocDate: sameDay}))
	require.NoError(t, analysisRepo.SaveAnalysisResult(AnalysisResult{RunID: runB, Ticker: "AAPL", AnalysisKind: "stock", DocDate: sameDay}))
	require.NoError(t, analysisRepo.SaveAnalysisResult(AnalysisResult{RunID: runC, Ticker: "AAPL", AnalysisKind: "stock", DocDate: laterDay}))

	history, err := analysisRepo.PatternHistory("AAPL", "stock", 0, 10)
	require.NoError(t, err)
	require.Len(t, history, 3)
	require.Equal(t, runC, history[0].RunID, "later doc_date sorts first")
	require.Equal(t, runB, history[1].RunID, "tie on doc_date breaks on run_id descending")
	require.Equal(t, runA, history[2].RunID)
}

func TestUpdateAnalysisConfidence_PersistsModifiers(t *testing.T) {
	db, cleanup := itesting.NewTestDB(t)
	defer cleanup()
	scheduleRepo := NewScheduleRepository(db.Conn())
	analysisRepo := NewAnalysisRepository(db.Conn())
	scheduleID := newTestSchedule(t, scheduleRepo)

	runID, err := scheduleRepo.MarkScheduleStarted(scheduleID, "AAPL", "analyze_stock", "stock", time.Now())
	require.NoError(t, err)
	require.NoError(t, analysisRepo.SaveAnalysisResult(AnalysisResult{RunID: runID, Ticker: "AAPL", AnalysisKind: "stock", Confidence: 60}))

	require.NoError(t, analysisRepo.UpdateAnalysisConfidence(runID, 50, map[string]int{"sparse_history": -5, "no_graph": -5}))

	got, err := analysisRepo.GetAnalysisResult(runID)
	require.NoError(t, err)
	require.NotNil(t, got.AdjustedConfidence)
	require.Equal(t, 50, *got.AdjustedConfidence)
	require.Equal(t, -5, got.ConfidenceModifiers["sparse_history"])
}

func TestIncrementToday_AndRollover(t *testing.T) {
	db, cleanup := itesting.NewTestDB(t)
	defer cleanup()
	repo := NewServiceStatusRepository(db.Conn())

	require.NoError(t, repo.Init(1234, "host-a", time.Now(), "2026-07-30"))
	require.NoError(t, repo.IncrementToday(CounterAnalyses))
	require.NoError(t, repo.IncrementToday(CounterAnalyses))

	status, err := repo.Get()
	require.NoError(t, err)
	require.Equal(t, 2, status.TodayAnalyses)
	require.Equal(t, 2, status.TotalAnalyses)

	require.NoError(t, repo.RolloverCountersIfNewDay("2026-07-31"))
	status, err = repo.Get()
	require.NoError(t, err)
	require.Equal(t, 0, status.TodayAnalyses)
	require.Equal(t, 2, status.TotalAnalyses, "cumulative counters survive rollover")
	require.Equal(t, "2026-07-31", status.TodayDate)
}

func TestRolloverCountersIfNewDay_NoOpSameDay(t *testing.T) {
	db, cleanup := itesting.NewTestDB(t)
	defer cleanup()
	repo := NewServiceStatusRepository(db.Conn())

	require.NoError(t, repo.Init(1, "h", time.Now(), "2026-07-30"))
	require.NoError(t, repo.IncrementToday(CounterExecutions))
	require.NoError(t, repo.RolloverCountersIfNewDay("2026-07-30"))

	status, err := repo.Get()
	require.NoError(t, err)
	require.Equal(t, 1, status.TodayExecutions, "same-day rollover must not reset counters")
}

func TestLogEvent_AndRecent(t *testing.T) {
	db, cleanup := itesting.NewTestDB(t)
	defer cleanup()
	repo := NewAuditRepository(db.Conn())

	require.NoError(t, repo.LogEvent("settings.set", "system", "settings", "dry_run_mode", "ok", `{"old":"false","new":"true"}`))

	events, err := repo.Recent(10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "settings.set", events[0].Action)
}
