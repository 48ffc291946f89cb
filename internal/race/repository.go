package race

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/TreZc0/hyrule-town-hall-sub000/internal/db"
	"github.com/TreZc0/hyrule-town-hall-sub000/internal/models"
	"github.com/TreZc0/hyrule-town-hall-sub000/internal/seed"
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

func (r *Repository) GetRace(ctx context.Context, id uuid.UUID) (*models.Race, error) {
	dbRace, err := r.queries.GetRace(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get race: %w", err)
	}

	entrants, err := r.queries.ListRaceEntrants(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list race entrants: %w", err)
	}

	race := dbRaceToModel(dbRace)
	for _, e := range entrants {
		members, err := r.queries.ListTeamMembers(ctx, e.TeamID)
		if err != nil {
			return nil, fmt.Errorf("failed to list team members: %w", err)
		}
		entrant := models.Entrant{TeamID: e.TeamID, Name: e.Name}
		for _, m := range members {
			entrant.Members = append(entrant.Members, models.Member{
				UserID:    m.UserID,
				DiscordID: m.DiscordID,
				Name:      m.Name,
			})
		}
		race.Entrants = append(race.Entrants, entrant)
	}

	threads, err := r.queries.ListAsyncThreads(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list async threads: %w", err)
	}
	for _, t := range threads {
		part := models.AsyncPart(t.Part)
		if !part.Valid() {
			continue
		}
		race.AsyncThreads[part.Index()] = &models.AsyncThreadState{
			ThreadID:   t.ThreadID,
			SeedPosted: t.SeedPosted,
			Ready:      t.Ready,
		}
	}

	return race, nil
}

// GetRaceSeed returns the seed descriptor stored on the race row.
func (r *Repository) GetRaceSeed(ctx context.Context, id uuid.UUID) (seed.Data, error) {
	dbRace, err := r.queries.GetRace(ctx, id)
	if err != nil {
		return seed.Data{}, fmt.Errorf("failed to get race: %w", err)
	}
	if !dbRace.SeedData.Valid {
		return seed.Data{}, nil
	}
	var data seed.Data
	if err := json.Unmarshal(dbRace.SeedData.RawMessage, &data); err != nil {
		return seed.Data{}, fmt.Errorf("failed to unmarshal race seed: %w", err)
	}
	return data, nil
}

func (r *Repository) GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	dbEvent, err := r.queries.GetEvent(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	organizers, err := r.queries.ListEventOrganizers(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list event organizers: %w", err)
	}

	return &models.Event{
		ID:               dbEvent.ID,
		Series:           dbEvent.Series,
		Slug:             dbEvent.Slug,
		AsyncChannel:     sqlutil.FromSqlInt64(dbEvent.AsyncChannel),
		OrganizerChannel: sqlutil.FromSqlInt64(dbEvent.OrganizerChannel),
		ResultsChannel:   sqlutil.FromSqlInt64(dbEvent.ResultsChannel),
		AutomatedAsyncs:  dbEvent.AutomatedAsyncs,
		AsyncsAllowed:    dbEvent.AsyncsAllowed,
		Organizers:       organizers,
	}, nil
}

// FetchAsyncPartsDue returns async halves scheduled inside (after, before]
// that have no thread yet.
func (r *Repository) FetchAsyncPartsDue(ctx context.Context, after, before time.Time) ([]AsyncPartDue, error) {
	rows, err := r.queries.FetchAsyncPartsDue(ctx, db.FetchAsyncPartsDueParams{
		After:  after,
		Before: before,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch async parts due: %w", err)
	}

	due := make([]AsyncPartDue, len(rows))
	for i, row := range rows {
		due[i] = AsyncPartDue{
			RaceID:       row.RaceID,
			Part:         models.AsyncPart(row.Part),
			StartTime:    row.StartTime,
			AsyncChannel: row.AsyncChannel,
		}
	}
	return due, nil
}

// RegisterAsyncThread persists a freshly created thread. It reports
// false when another scan already registered one, keeping thread
// creation single-shot.
func (r *Repository) RegisterAsyncThread(ctx context.Context, raceID uuid.UUID, part models.AsyncPart, threadID int64) (bool, error) {
	affected, err := r.queries.InsertAsyncThread(ctx, db.InsertAsyncThreadParams{
		RaceID:   raceID,
		Part:     int32(part),
		ThreadID: threadID,
	})
	if err != nil {
		return false, fmt.Errorf("failed to register async thread: %w", err)
	}
	return affected > 0, nil
}

func (r *Repository) SetSeedPosted(ctx context.Context, raceID uuid.UUID, part models.AsyncPart) error {
	if err := r.queries.SetAsyncSeedPosted(ctx, raceID, int32(part)); err != nil {
		return fmt.Errorf("failed to set seed posted: %w", err)
	}
	return nil
}

func (r *Repository) SetReady(ctx context.Context, raceID uuid.UUID, part models.AsyncPart) error {
	if err := r.queries.SetAsyncReady(ctx, raceID, int32(part)); err != nil {
		return fmt.Errorf("failed to set ready: %w", err)
	}
	return nil
}

// ResolveThread maps a thread back to the match attempt it hosts.
func (r *Repository) ResolveThread(ctx context.Context, threadID int64) (models.AttemptRef, error) {
	t, err := r.queries.GetAsyncThreadByThread(ctx, threadID)
	if err != nil {
		return models.AttemptRef{}, fmt.Errorf("failed to resolve thread: %w", err)
	}
	return models.MatchAttempt(t.RaceID, models.AsyncPart(t.Part)), nil
}

func dbRaceToModel(dbRace db.Race) *models.Race {
	race := &models.Race{
		ID:      dbRace.ID,
		EventID: dbRace.EventID,
		Schedule: models.Schedule{
			Kind:  models.ScheduleKind(dbRace.ScheduleKind),
			Start: sqlutil.FromSqlTime(dbRace.StartTime),
		},
		SchedulingThread: sqlutil.FromSqlInt64(dbRace.SchedulingThread),
		StartggSet:       sqlutil.FromSqlStringPtr(dbRace.StartggSet),
		ChallongeMatch:   sqlutil.FromSqlStringPtr(dbRace.ChallongeMatch),
	}
	if dbRace.Phase.Valid {
		race.Phase = dbRace.Phase.String
	}
	if dbRace.Round.Valid {
		race.Round = dbRace.Round.String
	}
	if dbRace.Game.Valid {
		race.Game = int(dbRace.Game.Int32)
	}
	race.Schedule.AsyncStarts[0] = sqlutil.FromSqlTime(dbRace.AsyncStart1)
	race.Schedule.AsyncStarts[1] = sqlutil.FromSqlTime(dbRace.AsyncStart2)
	race.Schedule.AsyncStarts[2] = sqlutil.FromSqlTime(dbRace.AsyncStart3)
	return race
}
