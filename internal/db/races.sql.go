package db

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const getRace = `
SELECT id, event_id, phase, round, game, schedule_kind, start_time,
       async_start1, async_start2, async_start3, scheduling_thread,
       startgg_set, challonge_match, seed_data
FROM races
WHERE id = $1
`

func (q *Queries) GetRace(ctx context.Context, id uuid.UUID) (Race, error) {
	row := q.db.QueryRowContext(ctx, getRace, id)
	var r Race
	err := row.Scan(
		&r.ID, &r.EventID, &r.Phase, &r.Round, &r.Game, &r.ScheduleKind,
		&r.StartTime, &r.AsyncStart1, &r.AsyncStart2, &r.AsyncStart3,
		&r.SchedulingThread, &r.StartggSet, &r.ChallongeMatch, &r.SeedData,
	)
	return r, err
}

const listRaceEntrants = `
SELECT race_id, ordinal, team_id, name
FROM race_entrants
WHERE race_id = $1
ORDER BY ordinal
`

func (q *Queries) ListRaceEntrants(ctx context.Context, raceID uuid.UUID) ([]RaceEntrant, error) {
	rows, err := q.db.QueryContext(ctx, listRaceEntrants, raceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []RaceEntrant
	for rows.Next() {
		var e RaceEntrant
		if err := rows.Scan(&e.RaceID, &e.Ordinal, &e.TeamID, &e.Name); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

const listTeamMembers = `
SELECT team_id, ordinal, user_id, discord_id, name
FROM team_members
WHERE team_id = $1
ORDER BY ordinal
`

func (q *Queries) ListTeamMembers(ctx context.Context, teamID uuid.UUID) ([]TeamMember, error) {
	rows, err := q.db.QueryContext(ctx, listTeamMembers, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TeamMember
	for rows.Next() {
		var m TeamMember
		if err := rows.Scan(&m.TeamID, &m.Ordinal, &m.UserID, &m.DiscordID, &m.Name); err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

const listAsyncThreads = `
SELECT race_id, part, thread_id, seed_posted, ready
FROM async_threads
WHERE race_id = $1
ORDER BY part
`

func (q *Queries) ListAsyncThreads(ctx context.Context, raceID uuid.UUID) ([]AsyncThread, error) {
	rows, err := q.db.QueryContext(ctx, listAsyncThreads, raceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []AsyncThread
	for rows.Next() {
		var t AsyncThread
		if err := rows.Scan(&t.RaceID, &t.Part, &t.ThreadID, &t.SeedPosted, &t.Ready); err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

const getAsyncThreadByThread = `
SELECT race_id, part, thread_id, seed_posted, ready
FROM async_threads
WHERE thread_id = $1
`

func (q *Queries) GetAsyncThreadByThread(ctx context.Context, threadID int64) (AsyncThread, error) {
	row := q.db.QueryRowContext(ctx, getAsyncThreadByThread, threadID)
	var t AsyncThread
	err := row.Scan(&t.RaceID, &t.Part, &t.ThreadID, &t.SeedPosted, &t.Ready)
	return t, err
}

const insertAsyncThread = `
INSERT INTO async_threads (race_id, part, thread_id)
VALUES ($1, $2, $3)
ON CONFLICT (race_id, part) DO NOTHING
`

type InsertAsyncThreadParams struct {
	RaceID   uuid.UUID
	Part     int32
	ThreadID int64
}

func (q *Queries) InsertAsyncThread(ctx context.Context, arg InsertAsyncThreadParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, insertAsyncThread, arg.RaceID, arg.Part, arg.ThreadID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const setAsyncSeedPosted = `
UPDATE async_threads SET seed_posted = TRUE
WHERE race_id = $1 AND part = $2
`

func (q *Queries) SetAsyncSeedPosted(ctx context.Context, raceID uuid.UUID, part int32) error {
	_, err := q.db.ExecContext(ctx, setAsyncSeedPosted, raceID, part)
	return err
}

const setAsyncReady = `
UPDATE async_threads SET ready = TRUE
WHERE race_id = $1 AND part = $2
`

func (q *Queries) SetAsyncReady(ctx context.Context, raceID uuid.UUID, part int32) error {
	_, err := q.db.ExecContext(ctx, setAsyncReady, raceID, part)
	return err
}

const fetchAsyncPartsDue = `
SELECT r.id, p.part,
       CASE p.part
           WHEN 1 THEN r.async_start1
           WHEN 2 THEN r.async_start2
           ELSE r.async_start3
       END AS start_time,
       e.async_channel
FROM races r
CROSS JOIN (VALUES (1), (2), (3)) AS p(part)
JOIN events e ON e.id = r.event_id
LEFT JOIN async_threads t ON t.race_id = r.id AND t.part = p.part
WHERE r.schedule_kind = 'ASYNC'
  AND e.async_channel IS NOT NULL
  AND t.thread_id IS NULL
  AND CASE p.part
          WHEN 1 THEN r.async_start1
          WHEN 2 THEN r.async_start2
          ELSE r.async_start3
      END > $1
  AND CASE p.part
          WHEN 1 THEN r.async_start1
          WHEN 2 THEN r.async_start2
          ELSE r.async_start3
      END <= $2
ORDER BY start_time
`

type FetchAsyncPartsDueParams struct {
	After  time.Time
	Before time.Time
}

type FetchAsyncPartsDueRow struct {
	RaceID       uuid.UUID
	Part         int32
	StartTime    time.Time
	AsyncChannel int64
}

func (q *Queries) FetchAsyncPartsDue(ctx context.Context, arg FetchAsyncPartsDueParams) ([]FetchAsyncPartsDueRow, error) {
	rows, err := q.db.QueryContext(ctx, fetchAsyncPartsDue, arg.After, arg.Before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []FetchAsyncPartsDueRow
	for rows.Next() {
		var r FetchAsyncPartsDueRow
		if err := rows.Scan(&r.RaceID, &r.Part, &r.StartTime, &r.AsyncChannel); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const getEvent = `
SELECT id, series, slug, async_channel, organizer_channel, results_channel,
       automated_asyncs, asyncs_allowed
FROM events
WHERE id = $1
`

func (q *Queries) GetEvent(ctx context.Context, id uuid.UUID) (Event, error) {
	row := q.db.QueryRowContext(ctx, getEvent, id)
	var e Event
	err := row.Scan(
		&e.ID, &e.Series, &e.Slug, &e.AsyncChannel, &e.OrganizerChannel,
		&e.ResultsChannel, &e.AutomatedAsyncs, &e.AsyncsAllowed,
	)
	return e, err
}

const listEventOrganizers = `
SELECT discord_id
FROM event_organizers
WHERE event_id = $1
ORDER BY discord_id
`

func (q *Queries) ListEventOrganizers(ctx context.Context, eventID uuid.UUID) ([]int64, error) {
	rows, err := q.db.QueryContext(ctx, listEventOrganizers, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		items = append(items, id)
	}
	return items, rows.Err()
}
