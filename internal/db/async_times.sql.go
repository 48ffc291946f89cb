package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const insertAsyncTimePlaceholder = `
INSERT INTO async_times (race_id, part)
VALUES ($1, $2)
ON CONFLICT (race_id, part) DO NOTHING
`

func (q *Queries) InsertAsyncTimePlaceholder(ctx context.Context, raceID uuid.UUID, part int32) (int64, error) {
	result, err := q.db.ExecContext(ctx, insertAsyncTimePlaceholder, raceID, part)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getAsyncTime = `
SELECT race_id, part, start_time, finish_seconds, recorded_by, recorded_at, vod_link
FROM async_times
WHERE race_id = $1 AND part = $2
`

func (q *Queries) GetAsyncTime(ctx context.Context, raceID uuid.UUID, part int32) (AsyncTime, error) {
	row := q.db.QueryRowContext(ctx, getAsyncTime, raceID, part)
	var t AsyncTime
	err := row.Scan(
		&t.RaceID, &t.Part, &t.StartTime, &t.FinishSeconds,
		&t.RecordedBy, &t.RecordedAt, &t.VodLink,
	)
	return t, err
}

const setAsyncStartTime = `
UPDATE async_times SET start_time = $3
WHERE race_id = $1 AND part = $2 AND start_time IS NULL
`

type SetAsyncStartTimeParams struct {
	RaceID    uuid.UUID
	Part      int32
	StartTime time.Time
}

func (q *Queries) SetAsyncStartTime(ctx context.Context, arg SetAsyncStartTimeParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, setAsyncStartTime, arg.RaceID, arg.Part, arg.StartTime)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const commitAsyncFinish = `
UPDATE async_times
SET finish_seconds = $3, recorded_by = $4, recorded_at = $5, vod_link = $6
WHERE race_id = $1 AND part = $2 AND recorded_by IS NULL
`

type CommitAsyncFinishParams struct {
	RaceID        uuid.UUID
	Part          int32
	FinishSeconds sql.NullInt64
	RecordedBy    int64
	RecordedAt    time.Time
	VodLink       sql.NullString
}

func (q *Queries) CommitAsyncFinish(ctx context.Context, arg CommitAsyncFinishParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, commitAsyncFinish,
		arg.RaceID, arg.Part, arg.FinishSeconds, arg.RecordedBy, arg.RecordedAt, arg.VodLink)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const upsertAsyncResult = `
INSERT INTO async_times (race_id, part, finish_seconds, recorded_by, recorded_at, vod_link)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (race_id, part) DO UPDATE
SET finish_seconds = EXCLUDED.finish_seconds,
    recorded_by    = EXCLUDED.recorded_by,
    recorded_at    = EXCLUDED.recorded_at,
    vod_link       = EXCLUDED.vod_link
`

type UpsertAsyncResultParams struct {
	RaceID        uuid.UUID
	Part          int32
	FinishSeconds sql.NullInt64
	RecordedBy    int64
	RecordedAt    time.Time
	VodLink       sql.NullString
}

func (q *Queries) UpsertAsyncResult(ctx context.Context, arg UpsertAsyncResultParams) error {
	_, err := q.db.ExecContext(ctx, upsertAsyncResult,
		arg.RaceID, arg.Part, arg.FinishSeconds, arg.RecordedBy, arg.RecordedAt, arg.VodLink)
	return err
}

const countRecordedAsyncTimes = `
SELECT COUNT(*)
FROM async_times
WHERE race_id = $1 AND recorded_by IS NOT NULL
`

func (q *Queries) CountRecordedAsyncTimes(ctx context.Context, raceID uuid.UUID) (int64, error) {
	row := q.db.QueryRowContext(ctx, countRecordedAsyncTimes, raceID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const listAsyncTimes = `
SELECT race_id, part, start_time, finish_seconds, recorded_by, recorded_at, vod_link
FROM async_times
WHERE race_id = $1
ORDER BY part
`

func (q *Queries) ListAsyncTimes(ctx context.Context, raceID uuid.UUID) ([]AsyncTime, error) {
	rows, err := q.db.QueryContext(ctx, listAsyncTimes, raceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []AsyncTime
	for rows.Next() {
		var t AsyncTime
		if err := rows.Scan(
			&t.RaceID, &t.Part, &t.StartTime, &t.FinishSeconds,
			&t.RecordedBy, &t.RecordedAt, &t.VodLink,
		); err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

const listPendingAsyncFinishes = `
SELECT t.race_id, t.part, t.start_time, th.thread_id
FROM async_times t
JOIN async_threads th ON th.race_id = t.race_id AND th.part = t.part
WHERE t.start_time IS NOT NULL AND t.recorded_by IS NULL
`

type ListPendingAsyncFinishesRow struct {
	RaceID    uuid.UUID
	Part      int32
	StartTime time.Time
	ThreadID  int64
}

func (q *Queries) ListPendingAsyncFinishes(ctx context.Context) ([]ListPendingAsyncFinishesRow, error) {
	rows, err := q.db.QueryContext(ctx, listPendingAsyncFinishes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListPendingAsyncFinishesRow
	for rows.Next() {
		var r ListPendingAsyncFinishesRow
		if err := rows.Scan(&r.RaceID, &r.Part, &r.StartTime, &r.ThreadID); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}
