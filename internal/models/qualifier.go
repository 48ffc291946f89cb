package models

import (
	"time"

	"github.com/google/uuid"
)

// TeamAsyncRequest is a qualifier team's request to run one async
// timeline. A request with SubmittedAt set has a committed result and
// is never provisioned again.
type TeamAsyncRequest struct {
	TeamID      uuid.UUID  `json:"team_id"`
	EventID     uuid.UUID  `json:"event_id"`
	Kind        AsyncKind  `json:"kind"`
	TeamName    string     `json:"team_name"`
	Members     []Member   `json:"members"`
	RequestedAt *time.Time `json:"requested_at,omitempty"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	ThreadID    *int64     `json:"thread_id,omitempty"`
}

// Actor returns the member allowed to drive the async controls for the
// team, or nil for an empty roster.
func (t TeamAsyncRequest) Actor() *Member {
	if len(t.Members) == 0 {
		return nil
	}
	return &t.Members[0]
}
