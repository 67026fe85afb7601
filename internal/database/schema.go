package database

// Schemas maps a database name (DB.Name()) to its embedded schema SQL.
// Schema files are not shipped alongside the binary; they are compiled in so
// Migrate() works regardless of working directory or install location.
var Schemas = map[string]string{
	"analystd": analystdSchema,
}

const analystdSchema = `
CREATE TABLE IF NOT EXISTS stocks (
	ticker              TEXT PRIMARY KEY,
	display_name        TEXT NOT NULL DEFAULT '',
	sector              TEXT NOT NULL DEFAULT '',
	enabled             INTEGER NOT NULL DEFAULT 1,
	state               TEXT NOT NULL DEFAULT 'analysis',
	default_kind        TEXT NOT NULL DEFAULT 'stock',
	priority            INTEGER NOT NULL DEFAULT 5,
	next_earnings_date  TEXT,
	earnings_confirmed  INTEGER NOT NULL DEFAULT 0,
	has_open_position   INTEGER NOT NULL DEFAULT 0,
	max_position_pct    REAL NOT NULL DEFAULT 0,
	tags                TEXT NOT NULL DEFAULT '',
	notes               TEXT NOT NULL DEFAULT '',
	expires_at          TEXT,
	archived            INTEGER NOT NULL DEFAULT 0,
	created_at          TEXT NOT NULL,
	updated_at          TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS schedules (
	id                     INTEGER PRIMARY KEY AUTOINCREMENT,
	name                   TEXT NOT NULL UNIQUE,
	task_kind              TEXT NOT NULL,
	target                 TEXT NOT NULL DEFAULT '',
	analysis_kind          TEXT NOT NULL DEFAULT 'stock',
	priority               INTEGER NOT NULL DEFAULT 5,
	frequency              TEXT NOT NULL,
	time_of_day            TEXT,
	day_of_week            INTEGER,
	interval_minutes       INTEGER,
	days_before_earnings   INTEGER,
	days_after_earnings    INTEGER,
	market_hours_only      INTEGER NOT NULL DEFAULT 0,
	trading_days_only      INTEGER NOT NULL DEFAULT 0,
	max_runs_per_day       INTEGER NOT NULL DEFAULT 1,
	timeout_seconds        INTEGER NOT NULL DEFAULT 300,
	run_count              INTEGER NOT NULL DEFAULT 0,
	fail_count             INTEGER NOT NULL DEFAULT 0,
	consecutive_fails      INTEGER NOT NULL DEFAULT 0,
	max_consecutive_fails  INTEGER NOT NULL DEFAULT 3,
	enabled                INTEGER NOT NULL DEFAULT 1,
	last_run_at            TEXT,
	last_run_status        TEXT,
	next_run_at            TEXT,
	created_at             TEXT NOT NULL,
	updated_at             TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_schedules_due
	ON schedules (enabled, next_run_at, consecutive_fails, max_consecutive_fails, priority);

CREATE TABLE IF NOT EXISTS runs (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	schedule_id       INTEGER,
	tick_boundary     TEXT,
	task_kind         TEXT NOT NULL,
	ticker            TEXT NOT NULL,
	analysis_kind     TEXT NOT NULL DEFAULT 'stock',
	status            TEXT NOT NULL DEFAULT 'pending',
	stage             TEXT NOT NULL DEFAULT '',
	gate_passed       INTEGER NOT NULL DEFAULT 0,
	recommendation    TEXT NOT NULL DEFAULT 'UNKNOWN',
	confidence        INTEGER NOT NULL DEFAULT 0,
	expected_value_pct REAL NOT NULL DEFAULT 0,
	order_placed      INTEGER NOT NULL DEFAULT 0,
	order_id          TEXT,
	artifact_path     TEXT,
	started_at        TEXT,
	completed_at      TEXT,
	duration_ms       INTEGER,
	error_message     TEXT,
	raw_output        TEXT,
	created_at        TEXT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_runs_schedule_tick
	ON runs (schedule_id, tick_boundary) WHERE schedule_id IS NOT NULL AND tick_boundary IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_runs_ticker ON runs (ticker, created_at DESC);

CREATE TABLE IF NOT EXISTS analysis_results (
	run_id               INTEGER PRIMARY KEY,
	ticker               TEXT NOT NULL,
	analysis_kind        TEXT NOT NULL,
	gate_passed          INTEGER NOT NULL DEFAULT 0,
	recommendation       TEXT NOT NULL DEFAULT 'UNKNOWN',
	confidence           INTEGER NOT NULL DEFAULT 0,
	adjusted_confidence  INTEGER,
	confidence_modifiers TEXT NOT NULL DEFAULT '{}',
	expected_value_pct   REAL NOT NULL DEFAULT 0,
	entry_price          REAL,
	stop_price           REAL,
	target_price         REAL,
	position_size_pct    REAL,
	trade_structure      TEXT,
	expiry               TEXT,
	strikes              TEXT,
	rationale            TEXT,
	snapshot_price       REAL,
	implied_volatility   REAL,
	doc_id               TEXT,
	doc_date             TEXT NOT NULL,
	created_at           TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(id)
);

CREATE INDEX IF NOT EXISTS idx_analysis_results_ticker
	ON analysis_results (ticker, analysis_kind, doc_date DESC);

CREATE TABLE IF NOT EXISTS settings (
	key         TEXT PRIMARY KEY,
	value       TEXT NOT NULL,
	category    TEXT NOT NULL DEFAULT 'general',
	description TEXT,
	updated_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS service_status (
	id                      INTEGER PRIMARY KEY CHECK (id = 1),
	pid                     INTEGER NOT NULL,
	host                    TEXT NOT NULL DEFAULT '',
	started_at              TEXT NOT NULL,
	last_heartbeat          TEXT,
	last_tick_duration_ms   INTEGER,
	state                   TEXT NOT NULL DEFAULT 'idle',
	current_task            TEXT NOT NULL DEFAULT '',
	total_runs              INTEGER NOT NULL DEFAULT 0,
	total_analyses          INTEGER NOT NULL DEFAULT 0,
	total_executions        INTEGER NOT NULL DEFAULT 0,
	total_errors            INTEGER NOT NULL DEFAULT 0,
	today_date              TEXT NOT NULL DEFAULT '',
	today_analyses          INTEGER NOT NULL DEFAULT 0,
	today_executions        INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS audit_events (
	id          TEXT PRIMARY KEY,
	timestamp   TEXT NOT NULL,
	action      TEXT NOT NULL,
	actor       TEXT NOT NULL DEFAULT 'system',
	resource_kind TEXT NOT NULL,
	resource_id TEXT NOT NULL DEFAULT '',
	result      TEXT NOT NULL,
	details     TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_audit_events_time ON audit_events (timestamp DESC);
`
