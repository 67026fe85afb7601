package store

import (
	"database/sql"
	"time"

	"github.com/quietridge/analystd/internal/database"
)

// WithTransaction re-exports the database package's transaction helper so
// repository files in this package share one import.
var WithTransaction = database.WithTransaction

const scheduleColumns = `id, name, task_kind, target, analysis_kind, priority, frequency, time_of_day, day_of_week,
	interval_minutes, days_before_earnings, days_after_earnings, market_hours_only, trading_days_only,
	max_runs_per_day, timeout_seconds, run_count, fail_count, consecutive_fails, max_consecutive_fails,
	enabled, last_run_at, last_run_status, next_run_at, created_at, updated_at`

// ScheduleRepository owns the schedules and runs tables jointly, since
// marking a schedule started/completed always touches both.
type ScheduleRepository struct {
	db *sql.DB
}

// NewScheduleRepository creates a repository over db.
func NewScheduleRepository(db *sql.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// CreateSchedule inserts a new schedule and returns its assigned id.
func (r *ScheduleRepository) CreateSchedule(s Schedule) (int64, error) {
	now := time.Now().UTC()
	res, err := r.db.Exec(`
		INSERT INTO schedules (name, task_kind, target, analysis_kind, priority, frequency, time_of_day, day_of_week,
			interval_minutes, days_before_earnings, days_after_earnings, market_hours_only, trading_days_only,
			max_runs_per_day, timeout_seconds, max_consecutive_fails, enabled, next_run_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.Name, s.TaskKind, s.Target, s.AnalysisKind, clamp(s.Priority, 1, 10), s.Frequency, s.TimeOfDay, s.DayOfWeek,
		s.IntervalMinutes, s.DaysBeforeEarnings, s.DaysAfterEarnings, s.MarketHoursOnly, s.TradingDaysOnly,
		s.MaxRunsPerDay, s.TimeoutSeconds, s.MaxConsecutiveFails, s.Enabled, nullableTime(s.NextRunAt), now, now,
	)
	if err != nil {
		return 0, classify("create_schedule", err)
	}
	id, err := res.LastInsertId()
	return id, classify("create_schedule", err)
}

// DeleteSchedule removes a schedule by id. Runs referencing it are left
// intact; they retain their historical schedule_id for audit purposes.
func (r *ScheduleRepository) DeleteSchedule(id int64) error {
	_, err := r.db.Exec(`DELETE FROM schedules WHERE id = ?`, id)
	return classify("delete_schedule", err)
}

// Disable turns a schedule off, excluding it from list_due_schedules without
// deleting its history. Used for the "once" frequency's self-disable after
// its single run.
func (r *ScheduleRepository) Disable(id int64) error {
	_, err := r.db.Exec(`UPDATE schedules SET enabled = 0, updated_at = ? WHERE id = ?`, time.Now().UTC(), id)
	return classify("disable_schedule", err)
}

// ListDueSchedules returns enabled schedules whose next_run_at has arrived
// and whose circuit breaker has not tripped, ordered by priority descending,
// then next_run_at ascending, then id ascending for a stable tie-break
// within a tick.
func (r *ScheduleRepository) ListDueSchedules(now time.Time) ([]Schedule, error) {
	rows, err := r.db.Query(`SELECT `+scheduleColumns+` FROM schedules
		WHERE enabled = 1 AND next_run_at IS NOT NULL AND next_run_at <= ?
			AND consecutive_fails < max_consecutive_fails
		ORDER BY priority DESC, next_run_at ASC, id ASC`, now.UTC())
	if err != nil {
		return nil, classify("list_due_schedules", err)
	}
	defer rows.Close()

	var out []Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, classify("list_due_schedules", err)
		}
		out = append(out, *s)
	}
	return out, classify("list_due_schedules", rows.Err())
}

// GetSchedule returns the schedule for id, or nil if it doesn't exist.
func (r *ScheduleRepository) GetSchedule(id int64) (*Schedule, error) {
	row := r.db.QueryRow(`SELECT `+scheduleColumns+` FROM schedules WHERE id = ?`, id)
	s, err := scanSchedule(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify("get_schedule", err)
	}
	return s, nil
}

// MarkScheduleStarted creates a Run in status "running" for schedule_id at
// tickBoundary (the triggering instant truncated to the second) and bumps
// run_count. It is idempotent for a given (schedule_id, tick_boundary): a
// replayed call after a crash returns the same run_id rather than creating
// a second Run, via the unique partial index on runs(schedule_id,
// tick_boundary).
func (r *ScheduleRepository) MarkScheduleStarted(scheduleID int64, ticker, taskKind, analysisKind string, tickBoundary time.Time) (int64, error) {
	tb := tickBoundary.UTC().Truncate(time.Second)
	now := time.Now().UTC()

	var runID int64
	err := WithTransaction(r.db, func(tx *sql.Tx) error {
		row := tx.QueryRow(`
			INSERT INTO runs (schedule_id, tick_boundary, task_kind, ticker, analysis_kind, status, started_at, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(schedule_id, tick_boundary) WHERE schedule_id IS NOT NULL AND tick_boundary IS NOT NULL
			DO UPDATE SET schedule_id = excluded.schedule_id
			RETURNING id`,
			scheduleID, tb, taskKind, ticker, analysisKind, RunStatusRunning, now, now,
		)
		if err := row.Scan(&runID); err != nil {
			return err
		}

		_, err := tx.Exec(`UPDATE schedules SET run_count = run_count + 1, updated_at = ? WHERE id = ?`, now, scheduleID)
		return err
	})
	if err != nil {
		return 0, classify("mark_schedule_started", err)
	}
	return runID, nil
}

// MarkScheduleCompleted finalizes a Run and updates its schedule's circuit
// breaker and bookkeeping. On status "completed" it resets
// consecutive_fails to 0; on "failed" it increments both fail_count and
// consecutive_fails; on "skipped" (a guard rail inside the pipeline
// short-circuited a dispatch the scheduler already started) it leaves both
// counters untouched — a skip is neither a success nor a failure. nextRunAt
// is computed by the caller (the scheduler, which alone knows the
// schedule's frequency arithmetic and the trading calendar) and stored
// verbatim.
func (r *ScheduleRepository) MarkScheduleCompleted(scheduleID, runID int64, status string, errMsg *string, nextRunAt *time.Time) error {
	now := time.Now().UTC()

	return classify("mark_schedule_completed", WithTransaction(r.db, func(tx *sql.Tx) error {
		var startedAt sql.NullTime
		if err := tx.QueryRow(`SELECT started_at FROM runs WHERE id = ?`, runID).Scan(&startedAt); err != nil {
			return err
		}

		var durationMs int64
		if startedAt.Valid {
			durationMs = now.Sub(startedAt.Time).Milliseconds()
		}

		if _, err := tx.Exec(`
			UPDATE runs SET status = ?, completed_at = ?, duration_ms = ?, error_message = ?
			WHERE id = ?`,
			status, now, durationMs, errMsg, runID,
		); err != nil {
			return err
		}

		switch status {
		case RunStatusCompleted:
			_, err := tx.Exec(`
				UPDATE schedules SET consecutive_fails = 0, last_run_at = ?, last_run_status = ?, next_run_at = ?, updated_at = ?
				WHERE id = ?`,
				now, status, nullableTime(nextRunAt), now, scheduleID,
			)
			return err
		case RunStatusSkipped:
			_, err := tx.Exec(`
				UPDATE schedules SET last_run_at = ?, last_run_status = ?, next_run_at = ?, updated_at = ?
				WHERE id = ?`,
				now, status, nullableTime(nextRunAt), now, scheduleID,
			)
			return err
		default:
			_, err := tx.Exec(`
				UPDATE schedules SET fail_count = fail_count + 1, consecutive_fails = consecutive_fails + 1,
					last_run_at = ?, last_run_status = ?, next_run_at = ?, updated_at = ?
				WHERE id = ?`,
				now, status, nullableTime(nextRunAt), now, scheduleID,
			)
			return err
		}
	}))
}

// UpdateAfterWatchlistPass finalizes bookkeeping for an analyze_watchlist
// schedule. Unlike analyze_stock/pipeline schedules, a watchlist pass's
// actual work is tracked as independent per-ticker ad-hoc Runs (see
// RunRepository.CreateRun) rather than as one schedule-owned Run row, so
// this updates the schedules row directly instead of going through
// MarkScheduleCompleted. anyFailed reports whether at least one ticker's
// dispatch returned a non-skip error; dispatched is added to run_count.
func (r *ScheduleRepository) UpdateAfterWatchlistPass(scheduleID int64, dispatched int, anyFailed bool, nextRunAt *time.Time) error {
	now := time.Now().UTC()

	if anyFailed {
		_, err := r.db.Exec(`
			UPDATE schedules SET run_count = run_count + ?, fail_count = fail_count + 1, consecutive_fails = consecutive_fails + 1,
				last_run_at = ?, last_run_status = ?, next_run_at = ?, updated_at = ?
			WHERE id = ?`,
			dispatched, now, RunStatusFailed, nullableTime(nextRunAt), now, scheduleID,
		)
		return classify("update_after_watchlist_pass", err)
	}

	_, err := r.db.Exec(`
		UPDATE schedules SET run_count = run_count + ?, consecutive_fails = 0,
			last_run_at = ?, last_run_status = ?, next_run_at = ?, updated_at = ?
		WHERE id = ?`,
		dispatched, now, RunStatusCompleted, nullableTime(nextRunAt), now, scheduleID,
	)
	return classify("update_after_watchlist_pass", err)
}

// CountRunsSince returns how many runs exist for scheduleID with
// created_at >= since — used by the scheduler's max_runs_per_day gate.
func (r *ScheduleRepository) CountRunsSince(scheduleID int64, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM runs WHERE schedule_id = ? AND created_at >= ?`, scheduleID, since.UTC()).Scan(&count)
	return count, classify("count_runs_since", err)
}

// ListAllSchedules returns every schedule (enabled or not, tripped or not),
// ordered by next_run_at ascending with nulls last, then id ascending. Used
// by the read-only admin surface; never consulted by the scheduler itself.
func (r *ScheduleRepository) ListAllSchedules() ([]Schedule, error) {
	rows, err := r.db.Query(`SELECT ` + scheduleColumns + ` FROM schedules
		ORDER BY (next_run_at IS NULL), next_run_at ASC, id ASC`)
	if err != nil {
		return nil, classify("list_all_schedules", err)
	}
	defer rows.Close()

	var out []Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, classify("list_all_schedules", err)
		}
		out = append(out, *s)
	}
	return out, classify("list_all_schedules", rows.Err())
}

func scanSchedule(row rowScanner) (*Schedule, error) {
	var s Schedule
	var timeOfDay, lastRunStatus sql.NullString
	var dayOfWeek, intervalMinutes, daysBefore, daysAfter sql.NullInt64
	var lastRunAt, nextRunAt sql.NullTime
	var createdAt, updatedAt time.Time

	err := row.Scan(
		&s.ID, &s.Name, &s.TaskKind, &s.Target, &s.AnalysisKind, &s.Priority, &s.Frequency, &timeOfDay, &dayOfWeek,
		&intervalMinutes, &daysBefore, &daysAfter, &s.MarketHoursOnly, &s.TradingDaysOnly,
		&s.MaxRunsPerDay, &s.TimeoutSeconds, &s.RunCount, &s.FailCount, &s.ConsecutiveFails, &s.MaxConsecutiveFails,
		&s.Enabled, &lastRunAt, &lastRunStatus, &nextRunAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if timeOfDay.Valid {
		s.TimeOfDay = &timeOfDay.String
	}
	if dayOfWeek.Valid {
		v := int(dayOfWeek.Int64)
		s.DayOfWeek = &v
	}
	if intervalMinutes.Valid {
		v := int(intervalMinutes.Int64)
		s.IntervalMinutes = &v
	}
	if daysBefore.Valid {
		v := int(daysBefore.Int64)
		s.DaysBeforeEarnings = &v
	}
	if daysAfter.Valid {
		v := int(daysAfter.Int64)
		s.DaysAfterEarnings = &v
	}
	if lastRunAt.Valid {
		s.LastRunAt = &lastRunAt.Time
	}
	if lastRunStatus.Valid {
		s.LastRunStatus = &lastRunStatus.String
	}
	if nextRunAt.Valid {
		s.NextRunAt = &nextRunAt.Time
	}
	s.CreatedAt = createdAt
	s.UpdatedAt = updatedAt

	return &s, nil
}
