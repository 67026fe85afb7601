package pipeline

import (
	"testing"
	"time"

	"github.com/quietridge/analystd/internal/settings"
	"github.com/quietridge/analystd/internal/store"
	itesting "github.com/quietridge/analystd/internal/testing"
	"github.com/stretchr/testify/require"
)

func newGuardTestEngine(t *testing.T) *Engine {
	t.Helper()
	db, cleanup := itesting.NewTestDB(t)
	t.Cleanup(cleanup)

	conn := db.Conn()
	stocks := store.NewStockRepository(conn)
	status := store.NewServiceStatusRepository(conn)
	require.NoError(t, status.Init(1234, "test-host", time.Now(), "2026-03-05"))

	return &Engine{
		stocks:   stocks,
		status:   status,
		settings: settings.New(conn, nil),
	}
}

func TestCheckGuards_DisabledStockSkips(t *testing.T) {
	e := newGuardTestEngine(t)
	require.NoError(t, e.stocks.UpsertStock(store.Stock{Ticker: "NVDA", Enabled: false, State: "archived"}))

	skip, err := e.checkGuards("NVDA", nil)
	require.NoError(t, err)
	require.NotNil(t, skip)
	require.Equal(t, SkipStockDisabledOrAbsent, skip.Reason)
}

func TestCheckGuards_AbsentStockSkips(t *testing.T) {
	e := newGuardTestEngine(t)

	skip, err := e.checkGuards("UNKNOWN", nil)
	require.NoError(t, err)
	require.NotNil(t, skip)
	require.Equal(t, SkipStockDisabledOrAbsent, skip.Reason)
}

func TestCheckGuards_PortfolioTickerBypassesStockCheck(t *testing.T) {
	e := newGuardTestEngine(t)

	skip, err := e.checkGuards("PORTFOLIO", nil)
	require.NoError(t, err)
	require.Nil(t, skip)
}

func TestCheckGuards_DailyAnalysisCapSkips(t *testing.T) {
	e := newGuardTestEngine(t)
	require.NoError(t, e.stocks.UpsertStock(store.Stock{Ticker: "NVDA", Enabled: true, State: "analysis"}))
	require.NoError(t, e.settings.SetInt(settings.KeyMaxDailyAnalyses, 2))
	require.NoError(t, e.status.IncrementToday(store.CounterAnalyses))
	require.NoError(t, e.status.IncrementToday(store.CounterAnalyses))

	skip, err := e.checkGuards("NVDA", nil)
	require.NoError(t, err)
	require.NotNil(t, skip)
	require.Equal(t, SkipDailyAnalysisCap, skip.Reason)
}

func TestCheckGuards_CircuitBreakerTrippedSkips(t *testing.T) {
	e := newGuardTestEngine(t)
	require.NoError(t, e.stocks.UpsertStock(store.Stock{Ticker: "NVDA", Enabled: true, State: "analysis"}))
	schedule := &store.Schedule{ConsecutiveFails: 5, MaxConsecutiveFails: 5}

	skip, err := e.checkGuards("NVDA", schedule)
	require.NoError(t, err)
	require.NotNil(t, skip)
	require.Equal(t, SkipCircuitBreakerTripped, skip.Reason)
}

func TestCheckGuards_AllPass(t *testing.T) {
	e := newGuardTestEngine(t)
	require.NoError(t, e.stocks.UpsertStock(store.Stock{Ticker: "NVDA", Enabled: true, State: "analysis"}))
	schedule := &store.Schedule{ConsecutiveFails: 0, MaxConsecutiveFails: 5}

	skip, err := e.checkGuards("NVDA", schedule)
	require.NoError(t, err)
	require.Nil(t, skip)
}
