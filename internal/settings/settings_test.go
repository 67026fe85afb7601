package settings

import (
	"testing"

	"github.com/quietridge/analystd/internal/events"
	itesting "github.com/quietridge/analystd/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, cleanup := itesting.NewTestDB(t)
	t.Cleanup(cleanup)
	return New(db.Conn(), nil)
}

func TestGet_UnsetKeyReturnsDefault(t *testing.T) {
	s := newTestStore(t)
	require.Equal(t, "false", s.Get(KeyDryRunMode))
	require.Equal(t, "info", s.Get(KeyLogLevel))
}

func TestGet_UnrecognizedKeyReturnsEmpty(t *testing.T) {
	s := newTestStore(t)
	require.Equal(t, "", s.Get("not_a_real_key"))
}

func TestGetBool_UsesDefaultWhenUnset(t *testing.T) {
	s := newTestStore(t)
	require.False(t, s.GetBool(KeyDryRunMode))
	require.True(t, s.GetBool(KeyFourPhaseAnalysisEnabled))
}

func TestGetInt_UsesDefaultWhenUnset(t *testing.T) {
	s := newTestStore(t)
	require.Equal(t, 50, s.GetInt(KeyMaxDailyAnalyses))
}

func TestSet_ThenGet_ReturnsCommittedValue(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SetBool(KeyDryRunMode, true))
	require.True(t, s.GetBool(KeyDryRunMode))
}

func TestSet_IsUpsert(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SetInt(KeyMaxDailyAnalyses, 10))
	require.NoError(t, s.SetInt(KeyMaxDailyAnalyses, 20))
	require.Equal(t, 20, s.GetInt(KeyMaxDailyAnalyses))

	all, err := s.GetAll()
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestSet_EmitsSettingsChangedWithOldAndNew(t *testing.T) {
	db, cleanup := itesting.NewTestDB(t)
	t.Cleanup(cleanup)

	var captured []events.Event
	mgr := events.NewManager(zerolog.Nop()).WithSink(func(e events.Event) {
		captured = append(captured, e)
	})
	s := New(db.Conn(), mgr)

	require.NoError(t, s.SetBool(KeyDryRunMode, true))
	require.Len(t, captured, 1)

	data, ok := captured[0].Data.(*events.SettingsChangedData)
	require.True(t, ok)
	require.Equal(t, KeyDryRunMode, data.Key)
	require.Equal(t, "false", data.OldValue)
	require.Equal(t, "true", data.NewValue)
}

func TestGetInt_UnparsableFallsBackToDefault(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Set(KeyMaxDailyAnalyses, "not-a-number"))
	require.Equal(t, 50, s.GetInt(KeyMaxDailyAnalyses))
}
