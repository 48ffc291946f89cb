package gateway

import (
	"encoding/json"
	"time"

	"github.com/TreZc0/hyrule-town-hall-sub000/internal/events"
)

// RaceEvent is the envelope pushed to WebSocket clients.
type RaceEvent struct {
	ID        string          `json:"id"`        // Event UUID
	RaceID    string          `json:"race_id"`   // Race or team UUID
	Type      EventType       `json:"type"`      // Event type
	Timestamp time.Time       `json:"timestamp"` // Event creation time
	Data      json.RawMessage `json:"data"`      // Event-specific payload
}

// EventType represents the type of race event
type EventType string

const (
	EventTypeThreadOpened  EventType = "ThreadOpened"
	EventTypeAttemptReady  EventType = "AttemptReady"
	EventTypeTimeRecorded  EventType = "TimeRecorded"
	EventTypeRaceCompleted EventType = "RaceCompleted"
)

// ParseEventPayload parses event data into the appropriate payload struct
func ParseEventPayload(event *RaceEvent) (interface{}, error) {
	switch event.Type {
	case EventTypeThreadOpened:
		var payload events.ThreadOpenedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeAttemptReady:
		var payload events.AttemptReadyPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeTimeRecorded:
		var payload events.TimeRecordedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeRaceCompleted:
		var payload events.RaceCompletedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	default:
		return nil, nil // Unknown event type
	}
}
