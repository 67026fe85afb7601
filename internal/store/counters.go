package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Recognized counter names for IncrementToday.
const (
	CounterAnalyses   = "analyses"
	CounterExecutions = "executions"
)

const serviceStatusColumns = `pid, host, started_at, last_heartbeat, last_tick_duration_ms, state, current_task,
	total_runs, total_analyses, total_executions, total_errors, today_date, today_analyses, today_executions`

// ServiceStatusRepository owns the singleton service_status row.
type ServiceStatusRepository struct {
	db *sql.DB
}

// NewServiceStatusRepository creates a repository over db.
func NewServiceStatusRepository(db *sql.DB) *ServiceStatusRepository {
	return &ServiceStatusRepository{db: db}
}

// Init creates (or replaces) the singleton row for a freshly-started
// process.
func (r *ServiceStatusRepository) Init(pid int, host string, startedAt time.Time, todayDate string) error {
	_, err := r.db.Exec(`
		INSERT INTO service_status (id, pid, host, started_at, state, today_date)
		VALUES (1, ?, ?, ?, 'idle', ?)
		ON CONFLICT(id) DO UPDATE SET
			pid = excluded.pid, host = excluded.host, started_at = excluded.started_at,
			state = 'idle', today_date = excluded.today_date`,
		pid, host, startedAt.UTC(), todayDate,
	)
	return classify("init_service_status", err)
}

// Get returns the current service status, or nil if Init was never called.
func (r *ServiceStatusRepository) Get() (*ServiceStatus, error) {
	row := r.db.QueryRow(`SELECT ` + serviceStatusColumns + ` FROM service_status WHERE id = 1`)
	s, err := scanServiceStatus(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify("get_service_status", err)
	}
	return s, nil
}

// Heartbeat records a tick's completion: timestamp, duration, state, and the
// label of the task currently (or most recently) running.
func (r *ServiceStatusRepository) Heartbeat(tickDuration time.Duration, state, currentTask string) error {
	_, err := r.db.Exec(`
		UPDATE service_status SET last_heartbeat = ?, last_tick_duration_ms = ?, state = ?, current_task = ?
		WHERE id = 1`,
		time.Now().UTC(), tickDuration.Milliseconds(), state, currentTask,
	)
	return classify("heartbeat", err)
}

// IncrementToday bumps both the cumulative and today-scoped counter for
// name. Unrecognized counter names are a caller bug, not a runtime
// condition; IncrementToday returns an error rather than silently no-oping.
func (r *ServiceStatusRepository) IncrementToday(name string) error {
	var column, todayColumn string
	switch name {
	case CounterAnalyses:
		column, todayColumn = "total_analyses", "today_analyses"
	case CounterExecutions:
		column, todayColumn = "total_executions", "today_executions"
	default:
		return fmt.Errorf("unrecognized counter name %q", name)
	}

	query := fmt.Sprintf(`UPDATE service_status SET %s = %s + 1, %s = %s + 1 WHERE id = 1`,
		column, column, todayColumn, todayColumn)
	_, err := r.db.Exec(query)
	return classify("increment_today", err)
}

// IncrementTotalRuns bumps total_runs, independent of the today-scoped
// analyses/executions counters.
func (r *ServiceStatusRepository) IncrementTotalRuns() error {
	_, err := r.db.Exec(`UPDATE service_status SET total_runs = total_runs + 1 WHERE id = 1`)
	return classify("increment_total_runs", err)
}

// IncrementTotalErrors bumps total_errors.
func (r *ServiceStatusRepository) IncrementTotalErrors() error {
	_, err := r.db.Exec(`UPDATE service_status SET total_errors = total_errors + 1 WHERE id = 1`)
	return classify("increment_total_errors", err)
}

// RolloverCountersIfNewDay resets today_analyses and today_executions to 0
// and advances today_date when today differs from the stored today_date. A
// no-op if the day hasn't changed.
func (r *ServiceStatusRepository) RolloverCountersIfNewDay(today string) error {
	res, err := r.db.Exec(`
		UPDATE service_status SET today_date = ?, today_analyses = 0, today_executions = 0
		WHERE id = 1 AND today_date != ?`,
		today, today,
	)
	if err != nil {
		return classify("rollover_counters_if_new_day", err)
	}
	_, err = res.RowsAffected()
	return classify("rollover_counters_if_new_day", err)
}

func scanServiceStatus(row rowScanner) (*ServiceStatus, error) {
	var s ServiceStatus
	var lastHeartbeat sql.NullTime
	var lastTickDurationMs sql.NullInt64
	var startedAt time.Time

	err := row.Scan(
		&s.PID, &s.Host, &startedAt, &lastHeartbeat, &lastTickDurationMs, &s.State, &s.CurrentTask,
		&s.TotalRuns, &s.TotalAnalyses, &s.TotalExecutions, &s.TotalErrors,
		&s.TodayDate, &s.TodayAnalyses, &s.TodayExecutions,
	)
	if err != nil {
		return nil, err
	}

	s.StartedAt = startedAt
	if lastHeartbeat.Valid {
		s.LastHeartbeat = &lastHeartbeat.Time
	}
	if lastTickDurationMs.Valid {
		v := lastTickDurationMs.Int64
		s.LastTickDurationMs = &v
	}
	return &s, nil
}
