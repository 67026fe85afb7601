package pipeline

import (
	"strings"

	"github.com/quietridge/analystd/internal/settings"
	"github.com/quietridge/analystd/internal/store"
)

const portfolioTicker = "PORTFOLIO"

// checkGuards runs the three guard rails in order, returning the first one
// that trips. schedule is nil for ad-hoc (non-scheduled) invocations, in
// which case the circuit-breaker guard is skipped — there is no schedule to
// check.
func (e *Engine) checkGuards(ticker string, schedule *store.Schedule) (*SkipError, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))

	if ticker != portfolioTicker {
		stock, err := e.stocks.GetStock(ticker)
		if err != nil {
			return nil, err
		}
		if stock == nil || !stock.Enabled {
			return &SkipError{Reason: SkipStockDisabledOrAbsent}, nil
		}
	}

	status, err := e.status.Get()
	if err != nil {
		return nil, err
	}
	maxDaily := e.settings.GetInt(settings.KeyMaxDailyAnalyses)
	if status != nil && status.TodayAnalyses >= maxDaily {
		return &SkipError{Reason: SkipDailyAnalysisCap}, nil
	}

	if schedule != nil && schedule.ConsecutiveFails >= schedule.MaxConsecutiveFails {
		return &SkipError{Reason: SkipCircuitBreakerTripped}, nil
	}

	return nil, nil
}
