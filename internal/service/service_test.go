package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/quietridge/analystd/internal/calendar"
	"github.com/quietridge/analystd/internal/store"
	itesting "github.com/quietridge/analystd/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeRunOncer struct {
	calls int32
	err   error
}

func (f *fakeRunOncer) RunOnce(ctx context.Context, now time.Time) error {
	atomic.AddInt32(&f.calls, 1)
	return f.err
}

type fakeMaintenanceRunner struct {
	calls int32
}

func (f *fakeMaintenanceRunner) Run() error {
	atomic.AddInt32(&f.calls, 1)
	return nil
}

func newServiceHarness(t *testing.T, tickInterval time.Duration) (*Service, *store.ServiceStatusRepository, *fakeRunOncer) {
	t.Helper()
	db, cleanup := itesting.NewTestDB(t)
	t.Cleanup(cleanup)
	status := store.NewServiceStatusRepository(db.Conn())

	cal, err := calendar.New("America/New_York", nil)
	require.NoError(t, err)

	runOncer := &fakeRunOncer{}
	svc := New(status, runOncer, cal, tickInterval, 4242, "test-host", nil, nil, nil, zerolog.Nop())
	return svc, status, runOncer
}

func TestService_StartRunsTickLoopAndRecordsHeartbeat(t *testing.T) {
	svc, status, runOncer := newServiceHarness(t, 20*time.Millisecond)

	require.NoError(t, svc.Start(context.Background()))
	defer svc.Stop()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&runOncer.calls) >= 2
	}, time.Second, 10*time.Millisecond, "scheduler.RunOnce should fire on every tick")

	st, err := status.Get()
	require.NoError(t, err)
	require.NotNil(t, st.LastHeartbeat)
}

func TestService_StartTwiceReturnsError(t *testing.T) {
	svc, _, _ := newServiceHarness(t, 50*time.Millisecond)
	require.NoError(t, svc.Start(context.Background()))
	defer svc.Stop()

	require.Error(t, svc.Start(context.Background()))
}

func TestService_StartRefusesWhenFreshHeartbeatFromAnotherPID(t *testing.T) {
	db, cleanup := itesting.NewTestDB(t)
	defer cleanup()
	status := store.NewServiceStatusRepository(db.Conn())
	require.NoError(t, status.Init(9999, "other-host", time.Now(), "2026-03-05"))
	require.NoError(t, status.Heartbeat(0, "idle", ""))

	cal, err := calendar.New("America/New_York", nil)
	require.NoError(t, err)

	svc := New(status, &fakeRunOncer{}, cal, 30*time.Second, 1111, "this-host", nil, nil, nil, zerolog.Nop())
	err = svc.Start(context.Background())
	require.Error(t, err)
}

func TestService_StartProceedsWhenExistingHeartbeatIsStale(t *testing.T) {
	db, cleanup := itesting.NewTestDB(t)
	defer cleanup()
	status := store.NewServiceStatusRepository(db.Conn())
	staleStart := time.Now().Add(-time.Hour)
	require.NoError(t, status.Init(9999, "other-host", staleStart, "2026-03-05"))
	_, err := db.Conn().Exec(`UPDATE service_status SET last_heartbeat = ? WHERE id = 1`, staleStart)
	require.NoError(t, err)

	cal, err := calendar.New("America/New_York", nil)
	require.NoError(t, err)

	svc := New(status, &fakeRunOncer{}, cal, 10*time.Millisecond, 1111, "this-host", nil, nil, nil, zerolog.Nop())
	require.NoError(t, svc.Start(context.Background()))
	svc.Stop()
}

func TestService_StopIsIdempotentWhenNeverStarted(t *testing.T) {
	svc, _, _ := newServiceHarness(t, time.Second)
	require.NotPanics(t, svc.Stop)
}
