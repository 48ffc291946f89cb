// Package qualifier manages the freestanding async timelines qualifier
// and seeding teams run outside any match.
package qualifier

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

// RequestDue is one qualifier request the provisioner should open a
// thread for: requested, not submitted, no thread, automation enabled
// and a seed present.
type RequestDue struct {
	TeamID       uuid.UUID
	EventID      uuid.UUID
	Kind         models.AsyncKind
	TeamName     string
	AsyncChannel int64
	Seed         seed.Data
}

// FetchRequestsDue returns the qualifier requests the provisioner
// should act on this scan.
func (r *Repository) FetchRequestsDue(ctx context.Context) ([]RequestDue, error) {
	rows, err := r.queries.FetchQualifierRequestsDue(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch qualifier requests due: %w", err)
	}

	due := make([]RequestDue, 0, len(rows))
	for _, row := range rows {
		item := RequestDue{
			TeamID:       row.TeamID,
			EventID:      row.EventID,
			Kind:         models.AsyncKind(row.Kind),
			TeamName:     row.TeamName,
			AsyncChannel: row.AsyncChannel,
		}
		if row.SeedData.Valid {
			if err := json.Unmarshal(row.SeedData.RawMessage, &item.Seed); err != nil {
				return nil, fmt.Errorf("failed to unmarshal seed for team %s %s: %w", row.TeamID, row.Kind, err)
			}
		}
		due = append(due, item)
	}
	return due, nil
}

// GetRequest returns the full request state for one (team, kind)
// timeline, roster included.
func (r *Repository) GetRequest(ctx context.Context, teamID uuid.UUID, kind models.AsyncKind) (*models.TeamAsyncRequest, error) {
	row, err := r.queries.GetAsyncTeam(ctx, teamID, string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to get async team: %w", err)
	}
	return r.asyncTeamToModel(ctx, row)
}

// ResolveThread maps a thread back to the qualifier attempt it hosts.
func (r *Repository) ResolveThread(ctx context.Context, threadID int64) (models.AttemptRef, error) {
	row, err := r.queries.GetAsyncTeamByThread(ctx, threadID)
	if err != nil {
		return models.AttemptRef{}, fmt.Errorf("failed to resolve qualifier thread: %w", err)
	}
	return models.QualifierAttempt(row.TeamID, models.AsyncKind(row.Kind)), nil
}

// RegisterThread persists a freshly created qualifier thread. It
// reports false when a thread already exists for the timeline.
func (r *Repository) RegisterThread(ctx context.Context, teamID uuid.UUID, kind models.AsyncKind, threadID int64) (bool, error) {
	affected, err := r.queries.SetAsyncTeamThread(ctx, teamID, string(kind), threadID)
	if err != nil {
		return false, fmt.Errorf("failed to register qualifier thread: %w", err)
	}
	return affected > 0, nil
}

// MarkSubmitted flags the timeline as having a committed result.
func (r *Repository) MarkSubmitted(ctx context.Context, teamID uuid.UUID, kind models.AsyncKind, at time.Time) error {
	if err := r.queries.MarkAsyncTeamSubmitted(ctx, teamID, string(kind), at); err != nil {
		return fmt.Errorf("failed to mark qualifier submitted: %w", err)
	}
	return nil
}

// GetSeed returns the seed descriptor for one event timeline.
func (r *Repository) GetSeed(ctx context.Context, eventID uuid.UUID, kind models.AsyncKind) (seed.Data, error) {
	row, err := r.queries.GetQualifierSeed(ctx, eventID, string(kind))
	if err != nil {
		return seed.Data{}, fmt.Errorf("failed to get qualifier seed: %w", err)
	}
	if !row.SeedData.Valid {
		return seed.Data{}, nil
	}
	var data seed.Data
	if err := json.Unmarshal(row.SeedData.RawMessage, &data); err != nil {
		return seed.Data{}, fmt.Errorf("failed to unmarshal qualifier seed: %w", err)
	}
	return data, nil
}

func (r *Repository) asyncTeamToModel(ctx context.Context, row db.AsyncTeam) (*models.TeamAsyncRequest, error) {
	name, err := r.queries.GetTeamName(ctx, row.TeamID)
	if err != nil {
		return nil, fmt.Errorf("failed to get team name: %w", err)
	}
	members, err := r.queries.ListTeamMembers(ctx, row.TeamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list team members: %w", err)
	}

	req := &models.TeamAsyncRequest{
		TeamID:      row.TeamID,
		EventID:     row.EventID,
		Kind:        models.AsyncKind(row.Kind),
		TeamName:    name,
		RequestedAt: sqlutil.FromSqlTime(row.RequestedAt),
		SubmittedAt: sqlutil.FromSqlTime(row.SubmittedAt),
		ThreadID:    sqlutil.FromSqlInt64(row.ThreadID),
	}
	for _, m := range members {
		req.Members = append(req.Members, models.Member{
			UserID:    m.UserID,
			DiscordID: m.DiscordID,
			Name:      m.Name,
		})
	}
	return req, nil
}
