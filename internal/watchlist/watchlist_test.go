package watchlist

import (
	"testing"
	"time"

	"github.com/quietridge/analystd/internal/events"
	"github.com/quietridge/analystd/internal/store"
	itesting "github.com/quietridge/analystd/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T) (*Manager, func()) {
	t.Helper()
	db, cleanup := itesting.NewTestDB(t)
	mgr := New(store.NewStockRepository(db.Conn()), events.NewManager(zerolog.Nop()), zerolog.Nop())
	return mgr, cleanup
}

func TestAdd_NormalizesTickerAndClampsPriority(t *testing.T) {
	mgr, cleanup := newManager(t)
	defer cleanup()

	got, err := mgr.Add("  nvda ", store.Stock{Priority: 99, DisplayName: "NVIDIA"})
	require.NoError(t, err)
	require.Equal(t, "NVDA", got.Ticker)
	require.Equal(t, 10, got.Priority)
	require.Equal(t, StateAnalysis, got.State)
	require.True(t, got.Enabled)
}

func TestAdd_RejectsInvalidTicker(t *testing.T) {
	mgr, cleanup := newManager(t)
	defer cleanup()

	_, err := mgr.Add("not a ticker!!", store.Stock{})
	require.Error(t, err)
}

func TestRemove_ArchivesRatherThanDeletes(t *testing.T) {
	mgr, cleanup := newManager(t)
	defer cleanup()

	_, err := mgr.Add("AMD", store.Stock{Priority: 5})
	require.NoError(t, err)

	require.NoError(t, mgr.Remove("amd"))

	enabled, err := mgr.Enabled()
	require.NoError(t, err)
	require.Empty(t, enabled)
}

func TestSetState_ValidatesStateAndKnownTicker(t *testing.T) {
	mgr, cleanup := newManager(t)
	defer cleanup()

	_, err := mgr.Add("INTC", store.Stock{Priority: 3})
	require.NoError(t, err)

	require.NoError(t, mgr.SetState("INTC", StatePaper))
	require.Error(t, mgr.SetState("INTC", "nonsense"))
	require.Error(t, mgr.SetState("UNKNOWN", StatePaper))
}

func TestSweepExpired_ArchivesPastExpiry(t *testing.T) {
	mgr, cleanup := newManager(t)
	defer cleanup()

	past := time.Now().Add(-time.Hour)
	_, err := mgr.Add("TSLA", store.Stock{Priority: 4, ExpiresAt: &past})
	require.NoError(t, err)

	future := time.Now().Add(time.Hour)
	_, err = mgr.Add("GOOG", store.Stock{Priority: 4, ExpiresAt: &future})
	require.NoError(t, err)

	n, err := mgr.SweepExpired(time.Now())
	require.NoError(t, err)
	require.Equal(t, 1, n)

	enabled, err := mgr.Enabled()
	require.NoError(t, err)
	require.Len(t, enabled, 1)
	require.Equal(t, "GOOG", enabled[0].Ticker)
}
