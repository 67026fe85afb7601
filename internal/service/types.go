// Package service runs the ingredient that turns a configured pipeline,
// scheduler, and calendar into a live process: a tick loop that calls
// scheduler.RunOnce once per tick, records a heartbeat, and rolls counters
// over at local midnight, plus two robfig/cron-driven daily/weekly
// maintenance jobs. It refuses to start a second time against the same
// database from a different process.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/quietridge/analystd/internal/calendar"
	"github.com/quietridge/analystd/internal/store"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// RunOncer is the subset of scheduler.Scheduler the service loop depends on.
type RunOncer interface {
	RunOnce(ctx context.Context, now time.Time) error
}

// MaintenanceRunner is a single named maintenance task (daily or weekly).
// internal/reliability's DailyMaintenanceJob/WeeklyMaintenanceJob satisfy
// this with their Run() method.
type MaintenanceRunner interface {
	Run() error
}

// ExpirySweeper is the subset of watchlist.Manager the service loop depends
// on. Called once per tick; safe to be a frequent no-op.
type ExpirySweeper interface {
	SweepExpired(now time.Time) (int, error)
}

// Service owns the tick loop and the cron-scheduled maintenance jobs for one
// running process.
type Service struct {
	status    *store.ServiceStatusRepository
	scheduler RunOncer
	calendar  *calendar.Calendar
	watchlist ExpirySweeper

	tickInterval time.Duration
	pid          int
	host         string

	dailyJob   MaintenanceRunner
	weeklyJob  MaintenanceRunner
	cronRunner *cron.Cron

	log zerolog.Logger

	mu      sync.Mutex
	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
}

// New creates a Service. dailyJob/weeklyJob and watchlist may be nil to run
// without maintenance scheduling or expiry sweeping (e.g. in tests).
func New(
	status *store.ServiceStatusRepository,
	scheduler RunOncer,
	cal *calendar.Calendar,
	tickInterval time.Duration,
	pid int,
	host string,
	dailyJob, weeklyJob MaintenanceRunner,
	watchlist ExpirySweeper,
	log zerolog.Logger,
) *Service {
	return &Service{
		status: status, scheduler: scheduler, calendar: cal, watchlist: watchlist,
		tickInterval: tickInterval, pid: pid, host: host,
		dailyJob: dailyJob, weeklyJob: weeklyJob,
		log: log.With().Str("component", "service").Logger(),
	}
}
