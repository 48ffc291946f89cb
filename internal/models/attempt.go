package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AsyncKind identifies a freestanding async timeline for qualifier and
// seeding attempts. Each kind runs on its own seed and its own clock.
type AsyncKind string

const (
	AsyncKindQualifier1  AsyncKind = "QUALIFIER_1"
	AsyncKindQualifier2  AsyncKind = "QUALIFIER_2"
	AsyncKindQualifier3  AsyncKind = "QUALIFIER_3"
	AsyncKindSeeding     AsyncKind = "SEEDING"
	AsyncKindTiebreaker1 AsyncKind = "TIEBREAKER_1"
	AsyncKindTiebreaker2 AsyncKind = "TIEBREAKER_2"
)

// Valid reports whether the kind is one of the known timelines.
func (k AsyncKind) Valid() bool {
	switch k {
	case AsyncKindQualifier1, AsyncKindQualifier2, AsyncKindQualifier3,
		AsyncKindSeeding, AsyncKindTiebreaker1, AsyncKindTiebreaker2:
		return true
	}
	return false
}

// AttemptRef addresses one async attempt: either a (race, part) half of
// a match or a (team, kind) qualifier run. Exactly one of the two legs
// is populated.
type AttemptRef struct {
	RaceID uuid.UUID
	Part   AsyncPart

	TeamID uuid.UUID
	Kind   AsyncKind
}

// MatchAttempt builds a ref for one half of a match race.
func MatchAttempt(raceID uuid.UUID, part AsyncPart) AttemptRef {
	return AttemptRef{RaceID: raceID, Part: part}
}

// QualifierAttempt builds a ref for a freestanding qualifier run.
func QualifierAttempt(teamID uuid.UUID, kind AsyncKind) AttemptRef {
	return AttemptRef{TeamID: teamID, Kind: kind}
}

// IsQualifier reports whether the ref addresses a freestanding attempt.
func (r AttemptRef) IsQualifier() bool {
	return r.TeamID != uuid.Nil
}

// Key returns a stable map key for the attempt.
func (r AttemptRef) Key() string {
	if r.IsQualifier() {
		return fmt.Sprintf("qual:%s:%s", r.TeamID, r.Kind)
	}
	return fmt.Sprintf("race:%s:%d", r.RaceID, r.Part)
}

func (r AttemptRef) String() string { return r.Key() }

// AsyncTimeRecord is one attempt's timing row. A row with RecordedBy
// unset is a placeholder written at READY and never counts as a result.
// Finish unset with RecordedBy set marks a forfeit.
type AsyncTimeRecord struct {
	Ref        AttemptRef
	StartTime  *time.Time
	Finish     *time.Duration
	RecordedBy *int64
	RecordedAt *time.Time
	VodLink    *string
}

// Recorded reports whether the row is a committed result (or forfeit).
func (t AsyncTimeRecord) Recorded() bool {
	return t.RecordedBy != nil
}

// Forfeited reports whether the row records a forfeit.
func (t AsyncTimeRecord) Forfeited() bool {
	return t.Recorded() && t.Finish == nil
}
