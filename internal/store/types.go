// Package store is the persistence layer: Stock, Schedule, Run,
// AnalysisResult, and AuditEvent repositories over a single SQLite database.
// Every exported method runs in its own short transaction; callers see
// committed state only. Connection failures surface as
// storeerr.TransientPersistenceError (retriable by the caller); constraint
// violations surface as storeerr.PermanentPersistenceError (not retried).
package store

import "time"

// Stock is a ticker under active or archived coverage.
type Stock struct {
	Ticker           string
	DisplayName      string
	Sector           string
	Enabled          bool
	State            string // "analysis", "paper", "live"; the repository stores any string as given
	DefaultKind      string // "stock", "option", ...
	Priority         int
	NextEarningsDate *time.Time
	EarningsConfirmed bool
	HasOpenPosition  bool
	MaxPositionPct   float64
	Tags             []string
	Notes            string
	ExpiresAt        *time.Time
	Archived         bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Schedule is a recurring or one-off unit of scheduled work.
type Schedule struct {
	ID                  int64
	Name                string
	TaskKind             string
	Target               string
	AnalysisKind         string
	Priority             int // 1..10; tie-break ahead of next_run_at within a tick
	Frequency            string // once, daily, weekly, pre_earnings, post_earnings, interval
	TimeOfDay            *string
	DayOfWeek            *int
	IntervalMinutes      *int
	DaysBeforeEarnings   *int
	DaysAfterEarnings    *int
	MarketHoursOnly      bool
	TradingDaysOnly      bool
	MaxRunsPerDay        int
	TimeoutSeconds       int
	RunCount             int
	FailCount            int
	ConsecutiveFails     int
	MaxConsecutiveFails  int
	Enabled              bool
	LastRunAt            *time.Time
	LastRunStatus        *string
	NextRunAt            *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Run statuses. Terminal statuses are a sink: once reached, never revisited.
const (
	RunStatusPending   = "pending"
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
	RunStatusSkipped   = "skipped"
)

// Run is one execution of a schedule (or an ad-hoc task).
type Run struct {
	ID                int64
	ScheduleID         *int64
	TickBoundary       *time.Time
	TaskKind           string
	Ticker             string
	AnalysisKind       string
	Status             string
	Stage              string
	GatePassed         bool
	Recommendation     string
	Confidence         int
	ExpectedValuePct   float64
	OrderPlaced        bool
	OrderID            *string
	ArtifactPath       *string
	StartedAt          *time.Time
	CompletedAt        *time.Time
	DurationMs         *int64
	ErrorMessage       *string
	RawOutput          *string
	CreatedAt          time.Time
}

// AnalysisResult is the structured parse of a Run's artifact.
type AnalysisResult struct {
	RunID               int64
	Ticker              string
	AnalysisKind        string
	GatePassed          bool
	Recommendation      string
	Confidence          int
	AdjustedConfidence  *int
	ConfidenceModifiers map[string]int
	ExpectedValuePct    float64
	EntryPrice          *float64
	StopPrice           *float64
	TargetPrice         *float64
	PositionSizePct     *float64
	TradeStructure      *string
	Expiry              *string
	Strikes             *string
	Rationale           string
	SnapshotPrice       *float64
	ImpliedVolatility   *float64
	DocID               *string
	DocDate             time.Time
	CreatedAt           time.Time
}

// ServiceStatus is the singleton process-health row.
type ServiceStatus struct {
	PID                int
	Host               string
	StartedAt          time.Time
	LastHeartbeat      *time.Time
	LastTickDurationMs *int64
	State              string
	CurrentTask        string
	TotalRuns          int
	TotalAnalyses      int
	TotalExecutions    int
	TotalErrors        int
	TodayDate          string
	TodayAnalyses      int
	TodayExecutions    int
}

// AuditEvent is an append-only observational record; never read for
// decisions, only for the admin audit surface.
type AuditEvent struct {
	ID           string
	Timestamp    time.Time
	Action       string
	Actor        string
	ResourceKind string
	ResourceID   string
	Result       string
	Details      string // JSON
}
