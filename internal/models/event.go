package models

import (
	"github.com/google/uuid"
)

// Event is the engine's read model of a tournament event. The engine
// never writes these rows; they are maintained by the event admin
// tooling.
type Event struct {
	ID               uuid.UUID `json:"id"`
	Series           string    `json:"series"`
	Slug             string    `json:"slug"`
	AsyncChannel     *int64    `json:"async_channel,omitempty"`
	OrganizerChannel *int64    `json:"organizer_channel,omitempty"`
	ResultsChannel   *int64    `json:"results_channel,omitempty"`
	AutomatedAsyncs  bool      `json:"automated_asyncs"`
	AsyncsAllowed    bool      `json:"asyncs_allowed"`
	Organizers       []int64   `json:"organizers,omitempty"`
}

// IsOrganizer reports whether a platform account organizes this event.
func (e *Event) IsOrganizer(discordID int64) bool {
	for _, id := range e.Organizers {
		if id == discordID {
			return true
		}
	}
	return false
}
