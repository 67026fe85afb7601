package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Start performs the single-instance guard, initializes the service_status
// row, wires the cron-driven maintenance jobs, and launches the tick loop
// goroutine. It returns once startup has either succeeded or failed; Stop
// shuts the loop down and blocks until it has exited.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("service already running")
	}

	if err := s.checkSingleInstance(); err != nil {
		return err
	}

	today := time.Now().In(s.calendar.Location()).Format("2006-01-02")
	if err := s.status.Init(s.pid, s.host, time.Now(), today); err != nil {
		return fmt.Errorf("init service status: %w", err)
	}

	s.cronRunner = cron.New(cron.WithLocation(s.calendar.Location()))
	if s.dailyJob != nil {
		if _, err := s.cronRunner.AddFunc("0 2 * * *", s.runMaintenance("daily", s.dailyJob)); err != nil {
			return fmt.Errorf("schedule daily maintenance: %w", err)
		}
	}
	if s.weeklyJob != nil {
		if _, err := s.cronRunner.AddFunc("0 3 * * 0", s.runMaintenance("weekly", s.weeklyJob)); err != nil {
			return fmt.Errorf("schedule weekly maintenance: %w", err)
		}
	}
	s.cronRunner.Start()

	s.stopCh = make(chan struct{})
	s.running = true

	s.wg.Add(1)
	go s.tickLoop(ctx)

	s.log.Info().Dur("tick_interval", s.tickInterval).Msg("service started")
	return nil
}

// Stop signals the tick loop and cron runner to shut down and waits for the
// tick loop goroutine to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	if s.cronRunner != nil {
		cronCtx := s.cronRunner.Stop()
		<-cronCtx.Done()
	}
	s.log.Info().Msg("service stopped")
}

func (s *Service) tickLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.tick(ctx, now)
		}
	}
}

func (s *Service) tick(ctx context.Context, now time.Time) {
	start := time.Now()
	local := now.In(s.calendar.Location())

	if err := s.status.RolloverCountersIfNewDay(local.Format("2006-01-02")); err != nil {
		s.log.Warn().Err(err).Msg("failed to roll over daily counters")
	}

	tickCtx, cancel := context.WithTimeout(ctx, s.tickInterval)
	defer cancel()

	if err := s.scheduler.RunOnce(tickCtx, now); err != nil {
		s.log.Warn().Err(err).Msg("scheduler pass failed")
	}

	if s.watchlist != nil {
		if n, err := s.watchlist.SweepExpired(now); err != nil {
			s.log.Warn().Err(err).Msg("watchlist expiry sweep failed")
		} else if n > 0 {
			s.log.Info().Int("archived", n).Msg("watchlist expiry sweep archived entries")
		}
	}

	if err := s.status.Heartbeat(time.Since(start), "idle", ""); err != nil {
		s.log.Warn().Err(err).Msg("failed to record heartbeat")
	}
}

func (s *Service) runMaintenance(label string, job MaintenanceRunner) func() {
	return func() {
		log := s.log.With().Str("job", label).Logger()
		log.Info().Msg("maintenance job starting")
		if err := job.Run(); err != nil {
			log.Error().Err(err).Msg("maintenance job failed")
			return
		}
		log.Info().Msg("maintenance job completed")
	}
}
