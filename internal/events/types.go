// Package events defines the system's event vocabulary and a Manager that
// emits and logs them. Events are the audit trail's raw material: anything
// appended to audit_events traces back to one of these.
package events

import (
	"time"

	"github.com/rs/zerolog"
)

// EventType names a kind of event.
type EventType string

const (
	// Run lifecycle.
	RunStarted   EventType = "RUN_STARTED"
	RunCompleted EventType = "RUN_COMPLETED"
	RunFailed    EventType = "RUN_FAILED"

	// Schedule lifecycle.
	ScheduleTripped  EventType = "SCHEDULE_TRIPPED"
	ScheduleRecovered EventType = "SCHEDULE_RECOVERED"
	ScheduleCreated  EventType = "SCHEDULE_CREATED"
	ScheduleDeleted  EventType = "SCHEDULE_DELETED"

	// Watchlist lifecycle.
	StockAdded       EventType = "STOCK_ADDED"
	StockRemoved     EventType = "STOCK_REMOVED"
	StockStateChanged EventType = "STOCK_STATE_CHANGED"

	// Settings and configuration.
	SettingsChanged EventType = "SETTINGS_CHANGED"

	// Reliability.
	BackupCompleted  EventType = "BACKUP_COMPLETED"
	BackupFailed     EventType = "BACKUP_FAILED"
	RestoreCompleted EventType = "RESTORE_COMPLETED"
	RestoreFailed    EventType = "RESTORE_FAILED"

	// Service.
	ServiceStarted EventType = "SERVICE_STARTED"
	ServiceStopped EventType = "SERVICE_STOPPED"

	// Generic.
	ErrorOccurred EventType = "ERROR_OCCURRED"
)

// Event is the envelope emitted for every occurrence: a type, the module
// that raised it, and its typed payload.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Module    string    `json:"module"`
	Data      EventData `json:"data"`
}

// Manager emits events and logs them through zerolog. It does not persist
// events itself; a caller that wants a durable audit trail wraps Manager
// with a sink that writes to audit_events (see internal/store).
type Manager struct {
	log  zerolog.Logger
	sink func(Event)
}

// NewManager creates an event manager bound to the given logger.
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{log: log.With().Str("component", "events").Logger()}
}

// WithSink returns a copy of the manager that additionally forwards every
// emitted event to sink, after logging it.
func (m *Manager) WithSink(sink func(Event)) *Manager {
	return &Manager{log: m.log, sink: sink}
}

// Emit records an event's occurrence: it is logged, and forwarded to the
// sink if one is configured.
func (m *Manager) Emit(eventType EventType, module string, data EventData) {
	evt := Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Module:    module,
		Data:      data,
	}

	logEvt := m.log.Info().
		Str("event_type", string(eventType)).
		Str("module", module)
	if data != nil {
		logEvt = logEvt.Interface("data", data)
	}
	logEvt.Msg("event emitted")

	if m.sink != nil {
		m.sink(evt)
	}
}

// EmitError emits an ErrorOccurred event carrying err's message and optional
// context fields.
func (m *Manager) EmitError(module string, err error, context map[string]interface{}) {
	m.Emit(ErrorOccurred, module, &ErrorEventData{
		Error:   err.Error(),
		Context: context,
	})
}
