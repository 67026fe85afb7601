package store

import (
	"testing"

	itesting "github.com/quietridge/analystd/internal/testing"
	"github.com/stretchr/testify/require"
)

func TestCreateRun_ThenGetRun_RoundTrips(t *testing.T) {
	db, cleanup := itesting.NewTestDB(t)
	defer cleanup()
	repo := NewRunRepository(db.Conn())

	id, err := repo.CreateRun("NVDA", "analyze_stock", "stock")
	require.NoError(t, err)
	require.Positive(t, id)

	run, err := repo.GetRun(id)
	require.NoError(t, err)
	require.NotNil(t, run)
	require.Nil(t, run.ScheduleID, "ad-hoc runs have no owning schedule")
	require.Equal(t, RunStatusRunning, run.Status)
	require.Equal(t, "phase1", run.Stage)
}

func TestUpdateRunStage_RecordsCurrentPhase(t *testing.T) {
	db, cleanup := itesting.NewTestDB(t)
	defer cleanup()
	repo := NewRunRepository(db.Conn())

	id, err := repo.CreateRun("NVDA", "analyze_stock", "stock")
	require.NoError(t, err)
	require.NoError(t, repo.UpdateRunStage(id, "phase3_retrieve"))

	run, err := repo.GetRun(id)
	require.NoError(t, err)
	require.Equal(t, "phase3_retrieve", run.Stage)
}

func TestUpdateRunArtifact_RecordsPath(t *testing.T) {
	db, cleanup := itesting.NewTestDB(t)
	defer cleanup()
	repo := NewRunRepository(db.Conn())

	id, err := repo.CreateRun("NVDA", "analyze_stock", "stock")
	require.NoError(t, err)
	require.NoError(t, repo.UpdateRunArtifact(id, "/data/analyses/NVDA_stock_20260101T0930.md"))

	run, err := repo.GetRun(id)
	require.NoError(t, err)
	require.NotNil(t, run.ArtifactPath)
	require.Equal(t, "/data/analyses/NVDA_stock_20260101T0930.md", *run.ArtifactPath)
}

func TestUpdateRunOutcome_RecordsParsedFields(t *testing.T) {
	db, cleanup := itesting.NewTestDB(t)
	defer cleanup()
	repo := NewRunRepository(db.Conn())

	id, err := repo.CreateRun("NVDA", "analyze_stock", "stock")
	require.NoError(t, err)
	require.NoError(t, repo.UpdateRunOutcome(id, true, "BUY", 72, 4.2, "raw reasoning text"))

	run, err := repo.GetRun(id)
	require.NoError(t, err)
	require.True(t, run.GatePassed)
	require.Equal(t, "BUY", run.Recommendation)
	require.Equal(t, 72, run.Confidence)
	require.InDelta(t, 4.2, run.ExpectedValuePct, 0.001)
	require.Equal(t, "raw reasoning text", *run.RawOutput)
}

func TestCompleteRun_SetsTerminalStatusAndDuration(t *testing.T) {
	db, cleanup := itesting.NewTestDB(t)
	defer cleanup()
	repo := NewRunRepository(db.Conn())

	id, err := repo.CreateRun("NVDA", "analyze_stock", "stock")
	require.NoError(t, err)
	require.NoError(t, repo.CompleteRun(id, RunStatusCompleted, nil))

	run, err := repo.GetRun(id)
	require.NoError(t, err)
	require.Equal(t, RunStatusCompleted, run.Status)
	require.NotNil(t, run.CompletedAt)
	require.NotNil(t, run.DurationMs)
}

func TestCompleteRun_RecordsErrorMessageOnFailure(t *testing.T) {
	db, cleanup := itesting.NewTestDB(t)
	defer cleanup()
	repo := NewRunRepository(db.Conn())

	id, err := repo.CreateRun("NVDA", "analyze_stock", "stock")
	require.NoError(t, err)
	msg := "reasoning subprocess timed out"
	require.NoError(t, repo.CompleteRun(id, RunStatusFailed, &msg))

	run, err := repo.GetRun(id)
	require.NoError(t, err)
	require.Equal(t, RunStatusFailed, run.Status)
	require.NotNil(t, run.ErrorMessage)
	require.Equal(t, msg, *run.ErrorMessage)
}

func TestGetRun_UnknownIDReturnsNil(t *testing.T) {
	db, cleanup := itesting.NewTestDB(t)
	defer cleanup()
	repo := NewRunRepository(db.Conn())

	run, err := repo.GetRun(999)
	require.NoError(t, err)
	require.Nil(t, run)
}
