package db

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

type Race struct {
	ID               uuid.UUID
	EventID          uuid.UUID
	Phase            sql.NullString
	Round            sql.NullString
	Game             sql.NullInt32
	ScheduleKind     string
	StartTime        sql.NullTime
	AsyncStart1      sql.NullTime
	AsyncStart2      sql.NullTime
	AsyncStart3      sql.NullTime
	SchedulingThread sql.NullInt64
	StartggSet       sql.NullString
	ChallongeMatch   sql.NullString
	SeedData         pqtype.NullRawMessage
}

type RaceEntrant struct {
	RaceID  uuid.UUID
	Ordinal int32
	TeamID  uuid.UUID
	Name    string
}

type TeamMember struct {
	TeamID    uuid.UUID
	Ordinal   int32
	UserID    uuid.UUID
	DiscordID int64
	Name      string
}

type AsyncThread struct {
	RaceID     uuid.UUID
	Part       int32
	ThreadID   int64
	SeedPosted bool
	Ready      bool
}

type AsyncTime struct {
	RaceID        uuid.UUID
	Part          int32
	StartTime     sql.NullTime
	FinishSeconds sql.NullInt64
	RecordedBy    sql.NullInt64
	RecordedAt    sql.NullTime
	VodLink       sql.NullString
}

type AsyncQualTime struct {
	TeamID        uuid.UUID
	Kind          string
	StartTime     sql.NullTime
	FinishSeconds sql.NullInt64
	RecordedBy    sql.NullInt64
	RecordedAt    sql.NullTime
	VodLink       sql.NullString
}

type AsyncTeam struct {
	TeamID      uuid.UUID
	EventID     uuid.UUID
	Kind        string
	RequestedAt sql.NullTime
	SubmittedAt sql.NullTime
	ThreadID    sql.NullInt64
}

type QualifierSeed struct {
	EventID  uuid.UUID
	Kind     string
	SeedData pqtype.NullRawMessage
}

type Event struct {
	ID               uuid.UUID
	Series           string
	Slug             string
	AsyncChannel     sql.NullInt64
	OrganizerChannel sql.NullInt64
	ResultsChannel   sql.NullInt64
	AutomatedAsyncs  bool
	AsyncsAllowed    bool
}

type OutboxEvent struct {
	ID        uuid.UUID
	RaceID    uuid.UUID
	EventType string
	Payload   json.RawMessage
	CreatedAt time.Time
	SentAt    sql.NullTime
}
