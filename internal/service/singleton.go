package service

import (
	"fmt"
	"time"
)

// checkSingleInstance refuses to start if a heartbeat from a different pid
// is fresher than 2x the tick interval — evidence another process is
// actively ticking against the same database right now. A stale heartbeat
// (the prior process died without a clean shutdown) does not block startup:
// Init below will simply claim the row.
func (s *Service) checkSingleInstance() error {
	existing, err := s.status.Get()
	if err != nil {
		return fmt.Errorf("check single instance: %w", err)
	}
	if existing == nil || existing.LastHeartbeat == nil {
		return nil
	}
	if existing.PID == s.pid && existing.Host == s.host {
		return nil
	}

	staleness := time.Since(*existing.LastHeartbeat)
	if staleness < 2*s.tickInterval {
		return fmt.Errorf(
			"refusing to start: pid %d on host %q sent a heartbeat %s ago (within 2x the %s tick interval)",
			existing.PID, existing.Host, staleness.Round(time.Second), s.tickInterval,
		)
	}
	return nil
}
