package store

import (
	"database/sql"
	"time"
)

const runColumns = `id, schedule_id, tick_boundary, task_kind, ticker, analysis_kind, status, stage,
	gate_passed, recommendation, confidence, expected_value_pct, order_placed, order_id, artifact_path,
	started_at, completed_at, duration_ms, error_message, raw_output, created_at`

// RunRepository owns ad-hoc (non-scheduled) Run creation and the
// stage/artifact updates every run receives regardless of whether it was
// started by ScheduleRepository.MarkScheduleStarted or directly.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a repository over db.
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// CreateRun starts an ad-hoc run (schedule_id and tick_boundary are both
// null) in status "running" and returns its id. Used when run_analysis is
// invoked without a backing schedule.
func (r *RunRepository) CreateRun(ticker, taskKind, analysisKind string) (int64, error) {
	now := time.Now().UTC()
	res, err := r.db.Exec(`
		INSERT INTO runs (task_kind, ticker, analysis_kind, status, stage, started_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		taskKind, ticker, analysisKind, RunStatusRunning, "phase1", now, now,
	)
	if err != nil {
		return 0, classify("create_run", err)
	}
	id, err := res.LastInsertId()
	return id, classify("create_run", err)
}

// UpdateRunStage records which pipeline phase a run is currently executing,
// for observability during a long-running phase.
func (r *RunRepository) UpdateRunStage(runID int64, stage string) error {
	_, err := r.db.Exec(`UPDATE runs SET stage = ? WHERE id = ?`, stage, runID)
	return classify("update_run_stage", err)
}

// UpdateRunArtifact records the filepath Phase 1 wrote to.
func (r *RunRepository) UpdateRunArtifact(runID int64, artifactPath string) error {
	_, err := r.db.Exec(`UPDATE runs SET artifact_path = ? WHERE id = ?`, artifactPath, runID)
	return classify("update_run_artifact", err)
}

// UpdateRunOutcome records the parsed gate/recommendation/confidence/EV and
// the raw reasoning output, ahead of the run's terminal status transition.
func (r *RunRepository) UpdateRunOutcome(runID int64, gatePassed bool, recommendation string, confidence int, expectedValuePct float64, rawOutput string) error {
	_, err := r.db.Exec(`
		UPDATE runs SET gate_passed = ?, recommendation = ?, confidence = ?, expected_value_pct = ?, raw_output = ?
		WHERE id = ?`,
		gatePassed, recommendation, confidence, expectedValuePct, rawOutput, runID,
	)
	return classify("update_run_outcome", err)
}

// CompleteRun finalizes an ad-hoc run's terminal status, independent of any
// schedule bookkeeping (see ScheduleRepository.MarkScheduleCompleted for the
// scheduled-run equivalent, which also updates the owning schedule).
func (r *RunRepository) CompleteRun(runID int64, status string, errMsg *string) error {
	now := time.Now().UTC()
	return classify("complete_run", WithTransaction(r.db, func(tx *sql.Tx) error {
		var startedAt sql.NullTime
		if err := tx.QueryRow(`SELECT started_at FROM runs WHERE id = ?`, runID).Scan(&startedAt); err != nil {
			return err
		}
		var durationMs int64
		if startedAt.Valid {
			durationMs = now.Sub(startedAt.Time).Milliseconds()
		}
		_, err := tx.Exec(`
			UPDATE runs SET status = ?, completed_at = ?, duration_ms = ?, error_message = ?
			WHERE id = ?`,
			status, now, durationMs, errMsg, runID,
		)
		return err
	}))
}

// GetRun returns the run for id, or nil if it doesn't exist.
func (r *RunRepository) GetRun(runID int64) (*Run, error) {
	row := r.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, runID)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify("get_run", err)
	}
	return run, nil
}

func scanRun(row rowScanner) (*Run, error) {
	var r Run
	var scheduleID sql.NullInt64
	var tickBoundary, startedAt, completedAt sql.NullTime
	var durationMs sql.NullInt64
	var orderID, artifactPath, errorMessage, rawOutput sql.NullString
	var createdAt time.Time

	err := row.Scan(
		&r.ID, &scheduleID, &tickBoundary, &r.TaskKind, &r.Ticker, &r.AnalysisKind, &r.Status, &r.Stage,
		&r.GatePassed, &r.Recommendation, &r.Confidence, &r.ExpectedValuePct, &r.OrderPlaced, &orderID, &artifactPath,
		&startedAt, &completedAt, &durationMs, &errorMessage, &rawOutput, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	if scheduleID.Valid {
		v := scheduleID.Int64
		r.ScheduleID = &v
	}
	if tickBoundary.Valid {
		r.TickBoundary = &tickBoundary.Time
	}
	if startedAt.Valid {
		r.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		r.CompletedAt = &completedAt.Time
	}
	if durationMs.Valid {
		v := durationMs.Int64
		r.DurationMs = &v
	}
	if orderID.Valid {
		r.OrderID = &orderID.String
	}
	if artifactPath.Valid {
		r.ArtifactPath = &artifactPath.String
	}
	if errorMessage.Valid {
		r.ErrorMessage = &errorMessage.String
	}
	if rawOutput.Valid {
		r.RawOutput = &rawOutput.String
	}
	r.CreatedAt = createdAt

	return &r, nil
}
