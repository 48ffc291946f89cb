package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

const fetchQualifierRequestsDue = `
SELECT a.team_id, a.event_id, a.kind, tm.name, e.async_channel, s.seed_data
FROM async_teams a
JOIN teams tm ON tm.id = a.team_id
JOIN events e ON e.id = a.event_id
JOIN qualifier_seeds s ON s.event_id = a.event_id AND s.kind = a.kind
WHERE a.requested_at IS NOT NULL
  AND a.submitted_at IS NULL
  AND a.thread_id IS NULL
  AND e.automated_asyncs
  AND e.async_channel IS NOT NULL
  AND s.seed_data IS NOT NULL
ORDER BY a.requested_at
`

type FetchQualifierRequestsDueRow struct {
	TeamID       uuid.UUID
	EventID      uuid.UUID
	Kind         string
	TeamName     string
	AsyncChannel int64
	SeedData     pqtype.NullRawMessage
}

func (q *Queries) FetchQualifierRequestsDue(ctx context.Context) ([]FetchQualifierRequestsDueRow, error) {
	rows, err := q.db.QueryContext(ctx, fetchQualifierRequestsDue)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []FetchQualifierRequestsDueRow
	for rows.Next() {
		var r FetchQualifierRequestsDueRow
		if err := rows.Scan(&r.TeamID, &r.EventID, &r.Kind, &r.TeamName, &r.AsyncChannel, &r.SeedData); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const getAsyncTeam = `
SELECT a.team_id, a.event_id, a.kind, a.requested_at, a.submitted_at, a.thread_id
FROM async_teams a
WHERE a.team_id = $1 AND a.kind = $2
`

func (q *Queries) GetAsyncTeam(ctx context.Context, teamID uuid.UUID, kind string) (AsyncTeam, error) {
	row := q.db.QueryRowContext(ctx, getAsyncTeam, teamID, kind)
	var a AsyncTeam
	err := row.Scan(&a.TeamID, &a.EventID, &a.Kind, &a.RequestedAt, &a.SubmittedAt, &a.ThreadID)
	return a, err
}

const getAsyncTeamByThread = `
SELECT a.team_id, a.event_id, a.kind, a.requested_at, a.submitted_at, a.thread_id
FROM async_teams a
WHERE a.thread_id = $1
`

func (q *Queries) GetAsyncTeamByThread(ctx context.Context, threadID int64) (AsyncTeam, error) {
	row := q.db.QueryRowContext(ctx, getAsyncTeamByThread, threadID)
	var a AsyncTeam
	err := row.Scan(&a.TeamID, &a.EventID, &a.Kind, &a.RequestedAt, &a.SubmittedAt, &a.ThreadID)
	return a, err
}

const getTeamName = `
SELECT name FROM teams WHERE id = $1
`

func (q *Queries) GetTeamName(ctx context.Context, teamID uuid.UUID) (string, error) {
	row := q.db.QueryRowContext(ctx, getTeamName, teamID)
	var name string
	err := row.Scan(&name)
	return name, err
}

const setAsyncTeamThread = `
UPDATE async_teams SET thread_id = $3
WHERE team_id = $1 AND kind = $2 AND thread_id IS NULL
`

func (q *Queries) SetAsyncTeamThread(ctx context.Context, teamID uuid.UUID, kind string, threadID int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, setAsyncTeamThread, teamID, kind, threadID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const markAsyncTeamSubmitted = `
UPDATE async_teams SET submitted_at = $3
WHERE team_id = $1 AND kind = $2 AND submitted_at IS NULL
`

func (q *Queries) MarkAsyncTeamSubmitted(ctx context.Context, teamID uuid.UUID, kind string, submittedAt time.Time) error {
	_, err := q.db.ExecContext(ctx, markAsyncTeamSubmitted, teamID, kind, submittedAt)
	return err
}

const getQualifierSeed = `
SELECT event_id, kind, seed_data
FROM qualifier_seeds
WHERE event_id = $1 AND kind = $2
`

func (q *Queries) GetQualifierSeed(ctx context.Context, eventID uuid.UUID, kind string) (QualifierSeed, error) {
	row := q.db.QueryRowContext(ctx, getQualifierSeed, eventID, kind)
	var s QualifierSeed
	err := row.Scan(&s.EventID, &s.Kind, &s.SeedData)
	return s, err
}

const insertQualTimePlaceholder = `
INSERT INTO async_qual_times (team_id, kind)
VALUES ($1, $2)
ON CONFLICT (team_id, kind) DO NOTHING
`

func (q *Queries) InsertQualTimePlaceholder(ctx context.Context, teamID uuid.UUID, kind string) (int64, error) {
	result, err := q.db.ExecContext(ctx, insertQualTimePlaceholder, teamID, kind)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getQualTime = `
SELECT team_id, kind, start_time, finish_seconds, recorded_by, recorded_at, vod_link
FROM async_qual_times
WHERE team_id = $1 AND kind = $2
`

func (q *Queries) GetQualTime(ctx context.Context, teamID uuid.UUID, kind string) (AsyncQualTime, error) {
	row := q.db.QueryRowContext(ctx, getQualTime, teamID, kind)
	var t AsyncQualTime
	err := row.Scan(
		&t.TeamID, &t.Kind, &t.StartTime, &t.FinishSeconds,
		&t.RecordedBy, &t.RecordedAt, &t.VodLink,
	)
	return t, err
}

const setQualStartTime = `
UPDATE async_qual_times SET start_time = $3
WHERE team_id = $1 AND kind = $2 AND start_time IS NULL
`

func (q *Queries) SetQualStartTime(ctx context.Context, teamID uuid.UUID, kind string, startTime time.Time) (int64, error) {
	result, err := q.db.ExecContext(ctx, setQualStartTime, teamID, kind, startTime)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const commitQualFinish = `
UPDATE async_qual_times
SET finish_seconds = $3, recorded_by = $4, recorded_at = $5, vod_link = $6
WHERE team_id = $1 AND kind = $2 AND recorded_by IS NULL
`

type CommitQualFinishParams struct {
	TeamID        uuid.UUID
	Kind          string
	FinishSeconds sql.NullInt64
	RecordedBy    int64
	RecordedAt    time.Time
	VodLink       sql.NullString
}

func (q *Queries) CommitQualFinish(ctx context.Context, arg CommitQualFinishParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, commitQualFinish,
		arg.TeamID, arg.Kind, arg.FinishSeconds, arg.RecordedBy, arg.RecordedAt, arg.VodLink)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const upsertQualResult = `
INSERT INTO async_qual_times (team_id, kind, finish_seconds, recorded_by, recorded_at, vod_link)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (team_id, kind) DO UPDATE
SET finish_seconds = EXCLUDED.finish_seconds,
    recorded_by    = EXCLUDED.recorded_by,
    recorded_at    = EXCLUDED.recorded_at,
    vod_link       = EXCLUDED.vod_link
`

type UpsertQualResultParams struct {
	TeamID        uuid.UUID
	Kind          string
	FinishSeconds sql.NullInt64
	RecordedBy    int64
	RecordedAt    time.Time
	VodLink       sql.NullString
}

func (q *Queries) UpsertQualResult(ctx context.Context, arg UpsertQualResultParams) error {
	_, err := q.db.ExecContext(ctx, upsertQualResult,
		arg.TeamID, arg.Kind, arg.FinishSeconds, arg.RecordedBy, arg.RecordedAt, arg.VodLink)
	return err
}

const listPendingQualFinishes = `
SELECT t.team_id, t.kind, t.start_time, a.thread_id
FROM async_qual_times t
JOIN async_teams a ON a.team_id = t.team_id AND a.kind = t.kind
WHERE t.start_time IS NOT NULL AND t.recorded_by IS NULL AND a.thread_id IS NOT NULL
`

type ListPendingQualFinishesRow struct {
	TeamID    uuid.UUID
	Kind      string
	StartTime time.Time
	ThreadID  int64
}

func (q *Queries) ListPendingQualFinishes(ctx context.Context) ([]ListPendingQualFinishesRow, error) {
	rows, err := q.db.QueryContext(ctx, listPendingQualFinishes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListPendingQualFinishesRow
	for rows.Next() {
		var r ListPendingQualFinishesRow
		if err := rows.Scan(&r.TeamID, &r.Kind, &r.StartTime, &r.ThreadID); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}
