package models

import (
	"time"

	"github.com/google/uuid"
)

// ScheduleKind defines how a race is scheduled.
type ScheduleKind string

const (
	ScheduleUnscheduled ScheduleKind = "UNSCHEDULED"
	ScheduleLive        ScheduleKind = "LIVE"
	ScheduleAsync       ScheduleKind = "ASYNC"
)

// MaxAsyncParts is the maximum number of async halves a race can have.
const MaxAsyncParts = 3

// AsyncPart identifies one async half of a race, 1-based into the entrant list.
type AsyncPart int

// Valid reports whether the part is in range for any race shape.
func (p AsyncPart) Valid() bool {
	return p >= 1 && p <= MaxAsyncParts
}

// Index returns the zero-based slot for the part.
func (p AsyncPart) Index() int {
	return int(p) - 1
}

// Schedule holds the scheduling state of a race. For async races each
// entrant slot carries its own start timestamp; populated slots never
// exceed the entrant count.
type Schedule struct {
	Kind        ScheduleKind `json:"kind"`
	Start       *time.Time   `json:"start,omitempty"`
	AsyncStarts [MaxAsyncParts]*time.Time `json:"async_starts,omitempty"`
}

// AsyncStart returns the scheduled start for a part, nil when unset.
func (s Schedule) AsyncStart(part AsyncPart) *time.Time {
	if !part.Valid() {
		return nil
	}
	return s.AsyncStarts[part.Index()]
}

// Member is one account on an entrant roster.
type Member struct {
	UserID    uuid.UUID `json:"user_id"`
	DiscordID int64     `json:"discord_id"`
	Name      string    `json:"name"`
}

// Entrant is one side of a race. The first member acts for the whole
// entrant in async threads.
type Entrant struct {
	TeamID  uuid.UUID `json:"team_id"`
	Name    string    `json:"name"`
	Members []Member  `json:"members"`
}

// Actor returns the member allowed to drive the async controls for this
// entrant, or nil for an empty roster.
func (e Entrant) Actor() *Member {
	if len(e.Members) == 0 {
		return nil
	}
	return &e.Members[0]
}

// AsyncThreadState tracks the per-part thread bookkeeping for a race.
// ThreadID is immutable once set.
type AsyncThreadState struct {
	ThreadID   int64 `json:"thread_id"`
	SeedPosted bool  `json:"seed_posted"`
	Ready      bool  `json:"ready"`
}

// Race is the engine's read model of a scheduled match.
type Race struct {
	ID               uuid.UUID  `json:"id"`
	EventID          uuid.UUID  `json:"event_id"`
	Phase            string     `json:"phase,omitempty"`
	Round            string     `json:"round,omitempty"`
	Game             int        `json:"game,omitempty"`
	Entrants         []Entrant  `json:"entrants"`
	Schedule         Schedule   `json:"schedule"`
	AsyncThreads     [MaxAsyncParts]*AsyncThreadState `json:"async_threads,omitempty"`
	SchedulingThread *int64     `json:"scheduling_thread,omitempty"`
	StartggSet       *string    `json:"startgg_set,omitempty"`
	ChallongeMatch   *string    `json:"challonge_match,omitempty"`
}

// Entrant returns the entrant racing a given async part, nil when the
// part exceeds the race shape.
func (r *Race) Entrant(part AsyncPart) *Entrant {
	if !part.Valid() || part.Index() >= len(r.Entrants) {
		return nil
	}
	return &r.Entrants[part.Index()]
}

// AsyncThread returns the thread state for a part, nil when no thread
// has been opened yet.
func (r *Race) AsyncThread(part AsyncPart) *AsyncThreadState {
	if !part.Valid() {
		return nil
	}
	return r.AsyncThreads[part.Index()]
}

// Matchup renders "A vs B" (or "A vs B vs C") from the entrant names.
func (r *Race) Matchup() string {
	out := ""
	for i, e := range r.Entrants {
		if i > 0 {
			out += " vs "
		}
		out += e.Name
	}
	return out
}

// PhaseRound renders the human label for the race's bracket position,
// falling back to the matchup when the bracket data is absent.
func (r *Race) PhaseRound() string {
	switch {
	case r.Phase != "" && r.Round != "":
		return r.Phase + " " + r.Round
	case r.Round != "":
		return r.Round
	case r.Phase != "":
		return r.Phase
	default:
		return r.Matchup()
	}
}
