// Package settings provides process-wide hot-reloadable key/value
// configuration with typed accessors and documented defaults. Settings are
// stored one row per key; every read is a fresh point lookup — callers must
// not cache a value across an external wait, since another goroutine (or
// another process sharing the database) may have committed a new value in
// the meantime.
package settings

import (
	"database/sql"
	"strconv"

	"github.com/quietridge/analystd/internal/events"
)

// Recognized setting keys and their documented defaults.
const (
	KeyDryRunMode               = "dry_run_mode"
	KeyAutoExecuteEnabled       = "auto_execute_enabled"
	KeyMaxDailyAnalyses         = "max_daily_analyses"
	KeyMaxDailyExecutions       = "max_daily_executions"
	KeyMaxConcurrentAnalyses    = "max_concurrent_analyses"
	KeyClaudeTimeoutSeconds     = "claude_timeout_seconds"
	KeyPhase2TimeoutSeconds     = "phase2_timeout_seconds"
	KeyPhase3TimeoutSeconds     = "phase3_timeout_seconds"
	KeyPhase4TimeoutSeconds     = "phase4_timeout_seconds"
	KeyFourPhaseAnalysisEnabled = "four_phase_analysis_enabled"
	KeyLogLevel                 = "log_level"
	// KeyReasoningEnvWhitelist is a comma-separated list of SECRET_-prefixed
	// env var names that should still reach the reasoning subprocess despite
	// the default SECRET_ filter (see internal/reasoning).
	KeyReasoningEnvWhitelist = "reasoning_env_whitelist"
)

var defaults = map[string]string{
	KeyDryRunMode:               "false",
	KeyAutoExecuteEnabled:       "false",
	KeyMaxDailyAnalyses:         "50",
	KeyMaxDailyExecutions:       "10",
	KeyMaxConcurrentAnalyses:    "2",
	KeyClaudeTimeoutSeconds:     "120",
	KeyPhase2TimeoutSeconds:     "60",
	KeyPhase3TimeoutSeconds:     "60",
	KeyPhase4TimeoutSeconds:     "90",
	KeyFourPhaseAnalysisEnabled: "true",
	KeyLogLevel:                 "info",
	KeyReasoningEnvWhitelist:    "",
}

var categories = map[string]string{
	KeyDryRunMode:               "pipeline",
	KeyAutoExecuteEnabled:       "pipeline",
	KeyMaxDailyAnalyses:         "limits",
	KeyMaxDailyExecutions:       "limits",
	KeyMaxConcurrentAnalyses:    "limits",
	KeyClaudeTimeoutSeconds:     "timeouts",
	KeyPhase2TimeoutSeconds:     "timeouts",
	KeyPhase3TimeoutSeconds:     "timeouts",
	KeyPhase4TimeoutSeconds:     "timeouts",
	KeyFourPhaseAnalysisEnabled: "pipeline",
	KeyLogLevel:                 "general",
	KeyReasoningEnvWhitelist:    "pipeline",
}

// Store is the process-wide settings table. Get is a point lookup: it never
// caches, so callers see the latest committed value on every call.
type Store struct {
	db     *sql.DB
	events *events.Manager
}

// New creates a settings store backed by db. events may be nil, in which
// case Set performs no emission.
func New(db *sql.DB, evtManager *events.Manager) *Store {
	return &Store{db: db, events: evtManager}
}

// Get returns the raw string value for key, or its documented default if the
// key is unset. Unknown keys (not in the recognized set and not present in
// the table) return "".
func (s *Store) Get(key string) string {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == nil {
		return value
	}
	if d, ok := defaults[key]; ok {
		return d
	}
	return ""
}

// GetBool returns key's value parsed as a bool. An unset or unparsable value
// falls back to the documented default (or false for unrecognized keys);
// it never returns an error to the caller.
func (s *Store) GetBool(key string) bool {
	raw := s.Get(key)
	v, err := strconv.ParseBool(raw)
	if err != nil {
		if d, ok := defaults[key]; ok {
			v, _ = strconv.ParseBool(d)
		}
		return v
	}
	return v
}

// GetInt returns key's value parsed as an int, falling back to the
// documented default (or 0) on an unset or unparsable value.
func (s *Store) GetInt(key string) int {
	raw := s.Get(key)
	v, err := strconv.Atoi(raw)
	if err != nil {
		if d, ok := defaults[key]; ok {
			v, _ = strconv.Atoi(d)
		}
		return v
	}
	return v
}

// GetString returns key's value verbatim, falling back to the documented
// default (or "") when unset.
func (s *Store) GetString(key string) string {
	return s.Get(key)
}

// Set writes value for key and emits a SettingsChanged event carrying the
// old and new values. The write is an upsert: a first Set for a never-before
// -seen key inserts it.
func (s *Store) Set(key, value string) error {
	old := s.Get(key)

	category := categories[key]
	if category == "" {
		category = "general"
	}

	_, err := s.db.Exec(
		`INSERT INTO settings (key, value, category, updated_at) VALUES (?, ?, ?, datetime('now'))
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, category,
	)
	if err != nil {
		return err
	}

	if s.events != nil {
		s.events.Emit(events.SettingsChanged, "settings", &events.SettingsChangedData{
			Key:      key,
			OldValue: old,
			NewValue: value,
		})
	}
	return nil
}

// SetBool is a typed convenience wrapper over Set.
func (s *Store) SetBool(key string, value bool) error {
	return s.Set(key, strconv.FormatBool(value))
}

// SetInt is a typed convenience wrapper over Set.
func (s *Store) SetInt(key string, value int) error {
	return s.Set(key, strconv.Itoa(value))
}

// GetAll returns every currently-set key/value pair. Keys never explicitly
// set are not included, even if they have a documented default.
func (s *Store) GetAll() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT key, value FROM settings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		result[k] = v
	}
	return result, rows.Err()
}
