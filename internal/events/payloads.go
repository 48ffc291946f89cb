package events

import (
	"time"
)

// Event payload types shared between the engine and the gateway

// Event type names as they appear on the outbox rows and NATS subjects.
const (
	TypeThreadOpened  = "ThreadOpened"
	TypeAttemptReady  = "AttemptReady"
	TypeTimeRecorded  = "TimeRecorded"
	TypeRaceCompleted = "RaceCompleted"
)

// ThreadOpenedPayload is the payload for a ThreadOpened event
type ThreadOpenedPayload struct {
	RaceID    string    `json:"race_id,omitempty"`
	Part      int       `json:"part,omitempty"`
	TeamID    string    `json:"team_id,omitempty"`
	Kind      string    `json:"kind,omitempty"`
	ThreadID  int64     `json:"thread_id"`
	OpenedAt  time.Time `json:"opened_at"`
	StartTime time.Time `json:"start_time,omitempty"`
}

// AttemptReadyPayload is the payload for an AttemptReady event
type AttemptReadyPayload struct {
	RaceID  string    `json:"race_id,omitempty"`
	Part    int       `json:"part,omitempty"`
	TeamID  string    `json:"team_id,omitempty"`
	Kind    string    `json:"kind,omitempty"`
	ReadyAt time.Time `json:"ready_at"`
}

// TimeRecordedPayload is the payload for a TimeRecorded event
type TimeRecordedPayload struct {
	RaceID     string    `json:"race_id,omitempty"`
	Part       int       `json:"part,omitempty"`
	TeamID     string    `json:"team_id,omitempty"`
	Kind       string    `json:"kind,omitempty"`
	Elapsed    string    `json:"elapsed,omitempty"`
	Forfeit    bool      `json:"forfeit"`
	RecordedBy int64     `json:"recorded_by"`
	RecordedAt time.Time `json:"recorded_at"`
}

// RaceCompletedResult is one entrant's line in a RaceCompleted event
type RaceCompletedResult struct {
	TeamID   string `json:"team_id"`
	TeamName string `json:"team_name"`
	Elapsed  string `json:"elapsed,omitempty"`
	Forfeit  bool   `json:"forfeit"`
	Place    int    `json:"place"`
}

// RaceCompletedPayload is the payload for a RaceCompleted event
type RaceCompletedPayload struct {
	RaceID      string                `json:"race_id"`
	Results     []RaceCompletedResult `json:"results"`
	CompletedAt time.Time             `json:"completed_at"`
}
