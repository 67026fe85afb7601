package events

import "encoding/json"

// EventData is implemented by every event payload type, so that an Event's
// Data field can be marshaled/unmarshaled polymorphically based on Type.
type EventData interface {
	EventType() EventType
}

// RunStartedData contains data for RunStarted events.
type RunStartedData struct {
	RunID      int64  `json:"run_id"`
	ScheduleID int64  `json:"schedule_id,omitempty"`
	Ticker     string `json:"ticker"`
	TaskKind   string `json:"task_kind"`
}

func (d *RunStartedData) EventType() EventType { return RunStarted }

// RunCompletedData contains data for RunCompleted events.
type RunCompletedData struct {
	RunID          int64  `json:"run_id"`
	Ticker         string `json:"ticker"`
	Recommendation string `json:"recommendation"`
	Confidence     int    `json:"confidence"`
	DurationMs     int64  `json:"duration_ms"`
}

func (d *RunCompletedData) EventType() EventType { return RunCompleted }

// RunFailedData contains data for RunFailed events.
type RunFailedData struct {
	RunID      int64  `json:"run_id"`
	ScheduleID int64  `json:"schedule_id,omitempty"`
	Ticker     string `json:"ticker"`
	Error      string `json:"error"`
}

func (d *RunFailedData) EventType() EventType { return RunFailed }

// ScheduleTrippedData contains data for ScheduleTripped events, emitted when
// a schedule's circuit breaker opens after its consecutive-failure limit is
// reached.
type ScheduleTrippedData struct {
	ScheduleID       int64  `json:"schedule_id"`
	Name             string `json:"name"`
	ConsecutiveFails int    `json:"consecutive_fails"`
	MaxConsecutive   int    `json:"max_consecutive_fails"`
}

func (d *ScheduleTrippedData) EventType() EventType { return ScheduleTripped }

// ScheduleRecoveredData contains data for ScheduleRecovered events, emitted
// when a previously-tripped schedule runs to completion again.
type ScheduleRecoveredData struct {
	ScheduleID int64  `json:"schedule_id"`
	Name       string `json:"name"`
}

func (d *ScheduleRecoveredData) EventType() EventType { return ScheduleRecovered }

// ScheduleCreatedData contains data for ScheduleCreated events.
type ScheduleCreatedData struct {
	ScheduleID int64  `json:"schedule_id"`
	Name       string `json:"name"`
	Frequency  string `json:"frequency"`
}

func (d *ScheduleCreatedData) EventType() EventType { return ScheduleCreated }

// ScheduleDeletedData contains data for ScheduleDeleted events.
type ScheduleDeletedData struct {
	ScheduleID int64  `json:"schedule_id"`
	Name       string `json:"name"`
}

func (d *ScheduleDeletedData) EventType() EventType { return ScheduleDeleted }

// StockAddedData contains data for StockAdded events.
type StockAddedData struct {
	Ticker string `json:"ticker"`
	State  string `json:"state"`
}

func (d *StockAddedData) EventType() EventType { return StockAdded }

// StockRemovedData contains data for StockRemoved events.
type StockRemovedData struct {
	Ticker string `json:"ticker"`
}

func (d *StockRemovedData) EventType() EventType { return StockRemoved }

// StockStateChangedData contains data for StockStateChanged events.
type StockStateChangedData struct {
	Ticker   string `json:"ticker"`
	OldState string `json:"old_state"`
	NewState string `json:"new_state"`
}

func (d *StockStateChangedData) EventType() EventType { return StockStateChanged }

// SettingsChangedData contains data for SettingsChanged events.
type SettingsChangedData struct {
	Key      string      `json:"key"`
	OldValue interface{} `json:"old_value,omitempty"`
	NewValue interface{} `json:"new_value"`
}

func (d *SettingsChangedData) EventType() EventType { return SettingsChanged }

// BackupCompletedData contains data for BackupCompleted events.
type BackupCompletedData struct {
	ManifestID string `json:"manifest_id"`
	SizeBytes  int64  `json:"size_bytes"`
	Object     string `json:"object"`
}

func (d *BackupCompletedData) EventType() EventType { return BackupCompleted }

// BackupFailedData contains data for BackupFailed events.
type BackupFailedData struct {
	Error string `json:"error"`
}

func (d *BackupFailedData) EventType() EventType { return BackupFailed }

// RestoreCompletedData contains data for RestoreCompleted events.
type RestoreCompletedData struct {
	ManifestID string `json:"manifest_id"`
}

func (d *RestoreCompletedData) EventType() EventType { return RestoreCompleted }

// RestoreFailedData contains data for RestoreFailed events.
type RestoreFailedData struct {
	ManifestID string `json:"manifest_id,omitempty"`
	Error      string `json:"error"`
}

func (d *RestoreFailedData) EventType() EventType { return RestoreFailed }

// ServiceStartedData contains data for ServiceStarted events.
type ServiceStartedData struct {
	PID  int    `json:"pid"`
	Host string `json:"host"`
}

func (d *ServiceStartedData) EventType() EventType { return ServiceStarted }

// ServiceStoppedData contains data for ServiceStopped events.
type ServiceStoppedData struct {
	Reason string `json:"reason"`
}

func (d *ServiceStoppedData) EventType() EventType { return ServiceStopped }

// ErrorEventData contains data for ErrorOccurred events.
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

func (d *ErrorEventData) EventType() EventType { return ErrorOccurred }

// MarshalJSON customizes serialization of Event so Data is emitted as plain
// JSON rather than being hidden behind the EventData interface.
func (e *Event) MarshalJSON() ([]byte, error) {
	type Alias Event
	aux := &struct {
		Data json.RawMessage `json:"data"`
		*Alias
	}{
		Alias: (*Alias)(e),
	}

	if e.Data != nil {
		dataBytes, err := json.Marshal(e.Data)
		if err != nil {
			return nil, err
		}
		aux.Data = dataBytes
	}

	return json.Marshal(aux)
}

// UnmarshalJSON customizes deserialization of Event, dispatching Data's
// concrete type on the Type discriminator.
func (e *Event) UnmarshalJSON(data []byte) error {
	type Alias Event
	aux := &struct {
		Data json.RawMessage `json:"data"`
		*Alias
	}{
		Alias: (*Alias)(e),
	}

	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	if len(aux.Data) == 0 {
		return nil
	}

	var eventData EventData
	switch aux.Type {
	case RunStarted:
		eventData = &RunStartedData{}
	case RunCompleted:
		eventData = &RunCompletedData{}
	case RunFailed:
		eventData = &RunFailedData{}
	case ScheduleTripped:
		eventData = &ScheduleTrippedData{}
	case ScheduleRecovered:
		eventData = &ScheduleRecoveredData{}
	case ScheduleCreated:
		eventData = &ScheduleCreatedData{}
	case ScheduleDeleted:
		eventData = &ScheduleDeletedData{}
	case StockAdded:
		eventData = &StockAddedData{}
	case StockRemoved:
		eventData = &StockRemovedData{}
	case StockStateChanged:
		eventData = &StockStateChangedData{}
	case SettingsChanged:
		eventData = &SettingsChangedData{}
	case BackupCompleted:
		eventData = &BackupCompletedData{}
	case BackupFailed:
		eventData = &BackupFailedData{}
	case RestoreCompleted:
		eventData = &RestoreCompletedData{}
	case RestoreFailed:
		eventData = &RestoreFailedData{}
	case ServiceStarted:
		eventData = &ServiceStartedData{}
	case ServiceStopped:
		eventData = &ServiceStoppedData{}
	case ErrorOccurred:
		eventData = &ErrorEventData{}
	default:
		var raw map[string]interface{}
		if err := json.Unmarshal(aux.Data, &raw); err != nil {
			return err
		}
		e.Data = &GenericEventData{Type: aux.Type, Data: raw}
		return nil
	}

	if err := json.Unmarshal(aux.Data, eventData); err != nil {
		return err
	}
	e.Data = eventData
	return nil
}

// GenericEventData is a fallback payload for event types with no registered
// struct (forward-compat with events emitted by a newer version).
type GenericEventData struct {
	Type EventType              `json:"-"`
	Data map[string]interface{} `json:"-"`
}

func (d *GenericEventData) EventType() EventType { return d.Type }

func (d *GenericEventData) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Data)
}

func (d *GenericEventData) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &d.Data)
}
