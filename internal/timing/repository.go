// Package timing is the store for async attempt timing rows. Rows are
// keyed by attempt and written with single-row guards so duplicate
// control clicks can never double-commit.
package timing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/TreZc0/hyrule-town-hall-sub000/internal/db"
	"github.com/TreZc0/hyrule-town-hall-sub000/internal/models"
	"github.com/TreZc0/hyrule-town-hall-sub000/internal/sqlutil"
)

type Repository struct {
	queries *db.Queries
}

func NewRepository(queries *db.Queries) *Repository {
	return &Repository{
		queries: queries,
	}
}

// EnsurePlaceholder inserts the READY placeholder row for an attempt.
// It reports false when a row already exists; the insert is
// conflict-do-nothing so concurrent clicks are safe.
func (r *Repository) EnsurePlaceholder(ctx context.Context, ref models.AttemptRef) (bool, error) {
	var affected int64
	var err error
	if ref.IsQualifier() {
		affected, err = r.queries.InsertQualTimePlaceholder(ctx, ref.TeamID, string(ref.Kind))
	} else {
		affected, err = r.queries.InsertAsyncTimePlaceholder(ctx, ref.RaceID, int32(ref.Part))
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert placeholder for %s: %w", ref, err)
	}
	return affected > 0, nil
}

// Get returns the timing row for an attempt, nil when READY was never
// pressed.
func (r *Repository) Get(ctx context.Context, ref models.AttemptRef) (*models.AsyncTimeRecord, error) {
	if ref.IsQualifier() {
		row, err := r.queries.GetQualTime(ctx, ref.TeamID, string(ref.Kind))
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get qualifier time for %s: %w", ref, err)
		}
		return qualTimeToModel(ref, row), nil
	}

	row, err := r.queries.GetAsyncTime(ctx, ref.RaceID, int32(ref.Part))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get async time for %s: %w", ref, err)
	}
	return asyncTimeToModel(ref, row), nil
}

// CommitStart records the countdown's GO! moment. It reports false when
// a start was already committed.
func (r *Repository) CommitStart(ctx context.Context, ref models.AttemptRef, start time.Time) (bool, error) {
	var affected int64
	var err error
	if ref.IsQualifier() {
		affected, err = r.queries.SetQualStartTime(ctx, ref.TeamID, string(ref.Kind), start)
	} else {
		affected, err = r.queries.SetAsyncStartTime(ctx, db.SetAsyncStartTimeParams{
			RaceID:    ref.RaceID,
			Part:      int32(ref.Part),
			StartTime: start,
		})
	}
	if err != nil {
		return false, fmt.Errorf("failed to commit start for %s: %w", ref, err)
	}
	return affected > 0, nil
}

// CommitFinish finalizes an attempt's elapsed time. The update only
// lands on an unrecorded row, so a replayed finalize reports false and
// writes nothing.
func (r *Repository) CommitFinish(ctx context.Context, ref models.AttemptRef, finish time.Duration, recordedBy int64, recordedAt time.Time, vodLink *string) (bool, error) {
	finishSecs := sql.NullInt64{Int64: int64(finish / time.Second), Valid: true}
	var affected int64
	var err error
	if ref.IsQualifier() {
		affected, err = r.queries.CommitQualFinish(ctx, db.CommitQualFinishParams{
			TeamID:        ref.TeamID,
			Kind:          string(ref.Kind),
			FinishSeconds: finishSecs,
			RecordedBy:    recordedBy,
			RecordedAt:    recordedAt,
			VodLink:       sqlutil.ToSqlString(vodLink),
		})
	} else {
		affected, err = r.queries.CommitAsyncFinish(ctx, db.CommitAsyncFinishParams{
			RaceID:        ref.RaceID,
			Part:          int32(ref.Part),
			FinishSeconds: finishSecs,
			RecordedBy:    recordedBy,
			RecordedAt:    recordedAt,
			VodLink:       sqlutil.ToSqlString(vodLink),
		})
	}
	if err != nil {
		return false, fmt.Errorf("failed to commit finish for %s: %w", ref, err)
	}
	return affected > 0, nil
}

// RecordResult is the organizer upsert: it overwrites whatever the row
// holds with the given elapsed time, or a forfeit when finish is nil.
func (r *Repository) RecordResult(ctx context.Context, ref models.AttemptRef, finish *time.Duration, recordedBy int64, recordedAt time.Time, vodLink *string) error {
	finishSecs := sqlutil.ToSqlSeconds(finish)
	if ref.IsQualifier() {
		if err := r.queries.UpsertQualResult(ctx, db.UpsertQualResultParams{
			TeamID:        ref.TeamID,
			Kind:          string(ref.Kind),
			FinishSeconds: finishSecs,
			RecordedBy:    recordedBy,
			RecordedAt:    recordedAt,
			VodLink:       sqlutil.ToSqlString(vodLink),
		}); err != nil {
			return fmt.Errorf("failed to record qualifier result for %s: %w", ref, err)
		}
		return nil
	}

	if err := r.queries.UpsertAsyncResult(ctx, db.UpsertAsyncResultParams{
		RaceID:        ref.RaceID,
		Part:          int32(ref.Part),
		FinishSeconds: finishSecs,
		RecordedBy:    recordedBy,
		RecordedAt:    recordedAt,
		VodLink:       sqlutil.ToSqlString(vodLink),
	}); err != nil {
		return fmt.Errorf("failed to record result for %s: %w", ref, err)
	}
	return nil
}

// CountRecorded counts the committed results (including forfeits) for a
// race; placeholder rows never count.
func (r *Repository) CountRecorded(ctx context.Context, raceID uuid.UUID) (int, error) {
	count, err := r.queries.CountRecordedAsyncTimes(ctx, raceID)
	if err != nil {
		return 0, fmt.Errorf("failed to count recorded times: %w", err)
	}
	return int(count), nil
}

// ListRecords returns every timing row for a race, placeholders
// included.
func (r *Repository) ListRecords(ctx context.Context, raceID uuid.UUID) ([]models.AsyncTimeRecord, error) {
	rows, err := r.queries.ListAsyncTimes(ctx, raceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list async times: %w", err)
	}
	records := make([]models.AsyncTimeRecord, len(rows))
	for i, row := range rows {
		ref := models.MatchAttempt(row.RaceID, models.AsyncPart(row.Part))
		records[i] = *asyncTimeToModel(ref, row)
	}
	return records, nil
}

// PendingFinish is an attempt that was started but never committed; the
// reconciliation scan re-arms these after a restart.
type PendingFinish struct {
	Ref       models.AttemptRef
	StartTime time.Time
	ThreadID  int64
}

// ListPendingFinishes returns started-but-unrecorded attempts across
// both match and qualifier tables.
func (r *Repository) ListPendingFinishes(ctx context.Context) ([]PendingFinish, error) {
	matchRows, err := r.queries.ListPendingAsyncFinishes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending async finishes: %w", err)
	}
	qualRows, err := r.queries.ListPendingQualFinishes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending qualifier finishes: %w", err)
	}

	pending := make([]PendingFinish, 0, len(matchRows)+len(qualRows))
	for _, row := range matchRows {
		pending = append(pending, PendingFinish{
			Ref:       models.MatchAttempt(row.RaceID, models.AsyncPart(row.Part)),
			StartTime: row.StartTime,
			ThreadID:  row.ThreadID,
		})
	}
	for _, row := range qualRows {
		pending = append(pending, PendingFinish{
			Ref:       models.QualifierAttempt(row.TeamID, models.AsyncKind(row.Kind)),
			StartTime: row.StartTime,
			ThreadID:  row.ThreadID,
		})
	}
	return pending, nil
}

func asyncTimeToModel(ref models.AttemptRef, row db.AsyncTime) *models.AsyncTimeRecord {
	return &models.AsyncTimeRecord{
		Ref:        ref,
		StartTime:  sqlutil.FromSqlTime(row.StartTime),
		Finish:     sqlutil.FromSqlSeconds(row.FinishSeconds),
		RecordedBy: sqlutil.FromSqlInt64(row.RecordedBy),
		RecordedAt: sqlutil.FromSqlTime(row.RecordedAt),
		VodLink:    sqlutil.FromSqlStringPtr(row.VodLink),
	}
}

func qualTimeToModel(ref models.AttemptRef, row db.AsyncQualTime) *models.AsyncTimeRecord {
	return &models.AsyncTimeRecord{
		Ref:        ref,
		StartTime:  sqlutil.FromSqlTime(row.StartTime),
		Finish:     sqlutil.FromSqlSeconds(row.FinishSeconds),
		RecordedBy: sqlutil.FromSqlInt64(row.RecordedBy),
		RecordedAt: sqlutil.FromSqlTime(row.RecordedAt),
		VodLink:    sqlutil.FromSqlStringPtr(row.VodLink),
	}
}
