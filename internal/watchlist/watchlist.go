// Package watchlist owns the lifecycle of monitored tickers: enabling and
// disabling coverage, priority and state changes, and the periodic sweep
// that archives expired entries. It is a thin behavioral layer over
// internal/store's StockRepository — the table itself, and its column
// layout, belong to store; this package only enforces the invariants
// spec.md §3 names (ticker normalization, priority clamped to 1..10, valid
// state transitions) before delegating to it.
package watchlist

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/quietridge/analystd/internal/events"
	"github.com/quietridge/analystd/internal/store"
	"github.com/rs/zerolog"
)

// Valid stock states. "live" is a display-only value: the pipeline refuses
// to place real orders regardless of what a stock's state column holds.
const (
	StateAnalysis = "analysis"
	StatePaper    = "paper"
	StateLive     = "live"
)

var validStates = map[string]bool{
	StateAnalysis: true,
	StatePaper:    true,
	StateLive:     true,
}

// tickerPattern matches spec.md's identity rule: case-folded to upper-case,
// alphanumeric plus '.' or '-', at most 10 characters.
var tickerPattern = regexp.MustCompile(`^[A-Z0-9.\-]{1,10}$`)

// Manager enforces watchlist invariants over a StockRepository.
type Manager struct {
	stocks *store.StockRepository
	events *events.Manager
	log    zerolog.Logger
}

// New creates a Manager.
func New(stocks *store.StockRepository, evtManager *events.Manager, log zerolog.Logger) *Manager {
	return &Manager{
		stocks: stocks,
		events: evtManager,
		log:    log.With().Str("component", "watchlist").Logger(),
	}
}

// normalizeTicker upper-cases and trims a ticker, returning an error if the
// result doesn't match spec.md's identity rule.
func normalizeTicker(ticker string) (string, error) {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	if !tickerPattern.MatchString(t) {
		return "", fmt.Errorf("invalid ticker %q: must be 1-10 chars of A-Z, 0-9, '.', '-'", ticker)
	}
	return t, nil
}

// clampPriority forces priority into spec.md's 1..10 range.
func clampPriority(p int) int {
	if p < 1 {
		return 1
	}
	if p > 10 {
		return 10
	}
	return p
}

// Add enables coverage for ticker, creating or updating its Stock row.
// Priority is clamped to 1..10; an unset or invalid State defaults to
// "analysis".
func (m *Manager) Add(ticker string, attrs store.Stock) (*store.Stock, error) {
	t, err := normalizeTicker(ticker)
	if err != nil {
		return nil, err
	}

	attrs.Ticker = t
	attrs.Priority = clampPriority(attrs.Priority)
	attrs.Enabled = true
	attrs.Archived = false
	if !validStates[attrs.State] {
		attrs.State = StateAnalysis
	}

	if err := m.stocks.UpsertStock(attrs); err != nil {
		return nil, err
	}

	m.log.Info().Str("ticker", t).Str("state", attrs.State).Msg("stock added to watchlist")
	if m.events != nil {
		m.events.Emit(events.StockAdded, "watchlist", &events.StockAddedData{Ticker: t, State: attrs.State})
	}

	return m.stocks.GetStock(t)
}

// Remove soft-removes ticker from the active watchlist: it is archived and
// disabled, never deleted, so Run rows that reference it remain valid.
func (m *Manager) Remove(ticker string) error {
	t, err := normalizeTicker(ticker)
	if err != nil {
		return err
	}

	if err := m.stocks.ArchiveStock(t); err != nil {
		return err
	}

	m.log.Info().Str("ticker", t).Msg("stock removed from watchlist")
	if m.events != nil {
		m.events.Emit(events.StockRemoved, "watchlist", &events.StockRemovedData{Ticker: t})
	}
	return nil
}

// SetState transitions ticker to a new state (analysis/paper/live). Returns
// an error for an unrecognized state or an unknown ticker without
// mutating anything.
func (m *Manager) SetState(ticker, newState string) error {
	t, err := normalizeTicker(ticker)
	if err != nil {
		return err
	}
	if !validStates[newState] {
		return fmt.Errorf("invalid state %q: must be one of analysis, paper, live", newState)
	}

	existing, err := m.stocks.GetStock(t)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("unknown ticker %q", t)
	}
	oldState := existing.State

	if err := m.stocks.SetState(t, newState); err != nil {
		return err
	}

	m.log.Info().Str("ticker", t).Str("old_state", oldState).Str("new_state", newState).
		Msg("stock state changed")
	if m.events != nil && oldState != newState {
		m.events.Emit(events.StockStateChanged, "watchlist", &events.StockStateChangedData{
			Ticker: t, OldState: oldState, NewState: newState,
		})
	}
	return nil
}

// SweepExpired archives every watchlist entry whose expiry has passed now,
// and returns how many were archived. Safe to call on every service tick;
// a no-op when nothing has expired.
func (m *Manager) SweepExpired(now time.Time) (int, error) {
	n, err := m.stocks.ArchiveExpired(now)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		m.log.Info().Int("count", n).Msg("expired watchlist entries archived")
	}
	return n, nil
}

// Enabled returns the current analysis universe: enabled, non-archived
// stocks ordered by priority descending then ticker ascending. This is
// what the scheduler's analyze_watchlist fan-out iterates over.
func (m *Manager) Enabled() ([]store.Stock, error) {
	return m.stocks.ListEnabledStocks()
}
