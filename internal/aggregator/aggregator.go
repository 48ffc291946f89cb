// Package aggregator watches for the moment every half of an async race
// has a committed result, then posts the outcome and fans it out to the
// bracket services.
package aggregator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/TreZc0/hyrule-town-hall-sub000/internal/events"
	"github.com/TreZc0/hyrule-town-hall-sub000/internal/messaging"
	"github.com/TreZc0/hyrule-town-hall-sub000/internal/models"
)

// RaceStore defines what the aggregator needs from the race read model.
type RaceStore interface {
	GetRace(ctx context.Context, id uuid.UUID) (*models.Race, error)
	GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

// TimingStore defines what the aggregator needs from the timing rows.
type TimingStore interface {
	CountRecorded(ctx context.Context, raceID uuid.UUID) (int, error)
	ListRecords(ctx context.Context, raceID uuid.UUID) ([]models.AsyncTimeRecord, error)
}

// Reporter pushes a completed result to one external bracket service.
// Reporters fail independently; one sink being down never blocks the
// announcement or the other sinks.
type Reporter interface {
	Name() string
	Report(ctx context.Context, race *models.Race, results []Result) error
}

// OutboxApp defines what the aggregator needs from the outbox app.
type OutboxApp interface {
	Insert(ctx context.Context, raceID uuid.UUID, eventType string, payload []byte) error
}

type Clock interface {
	Now() time.Time
}

type Aggregator struct {
	surface   messaging.Surface
	races     RaceStore
	timing    TimingStore
	reporters []Reporter
	outbox    OutboxApp
	clock     Clock

	mu        sync.Mutex
	announced map[uuid.UUID]bool
}

func New(surface messaging.Surface, races RaceStore, timing TimingStore, reporters []Reporter, outbox OutboxApp, clock Clock) *Aggregator {
	return &Aggregator{
		surface:   surface,
		races:     races,
		timing:    timing,
		reporters: reporters,
		outbox:    outbox,
		clock:     clock,
		announced: make(map[uuid.UUID]bool),
	}
}

// TimeRecorded is called after every committed match result. When the
// recorded count reaches the entrant count the race is complete and the
// outcome goes out; until then this is a no-op.
func (a *Aggregator) TimeRecorded(ctx context.Context, raceID uuid.UUID) error {
	race, err := a.races.GetRace(ctx, raceID)
	if err != nil {
		return fmt.Errorf("failed to load race %s: %w", raceID, err)
	}

	count, err := a.timing.CountRecorded(ctx, raceID)
	if err != nil {
		return err
	}
	if count < len(race.Entrants) {
		log.Debug().
			Str("race_id", raceID.String()).
			Int("recorded", count).
			Int("entrants", len(race.Entrants)).
			Msg("race not yet complete")
		return nil
	}

	// Load the results before claiming the announcement, so a transient
	// read failure leaves the race announceable on the next completion
	// check.
	records, err := a.timing.ListRecords(ctx, raceID)
	if err != nil {
		return err
	}
	results := orderResults(race, records)
	if len(results) == 0 {
		return fmt.Errorf("race %s complete but no results ordered", raceID)
	}

	a.mu.Lock()
	if a.announced[raceID] {
		a.mu.Unlock()
		return nil
	}
	a.announced[raceID] = true
	a.mu.Unlock()

	log.Info().
		Str("race_id", raceID.String()).
		Int("results", len(results)).
		Msg("race complete, announcing")

	a.announce(ctx, race, results)
	a.report(ctx, race, results)
	a.emitRaceCompleted(ctx, race, results)
	return nil
}

// announce posts the outcome to the event's results channel and to the
// race's scheduling thread. Either target failing is logged and the
// other still gets the post.
func (a *Aggregator) announce(ctx context.Context, race *models.Race, results []Result) {
	content := announcement(race, results)

	event, err := a.races.GetEvent(ctx, race.EventID)
	if err != nil {
		log.Error().Err(err).Str("race_id", race.ID.String()).Msg("failed to load event for announcement")
	} else if event.ResultsChannel != nil {
		if _, err := a.surface.Post(ctx, *event.ResultsChannel, content); err != nil {
			log.Error().Err(err).Str("race_id", race.ID.String()).Msg("failed to post results announcement")
		}
	}

	if race.SchedulingThread != nil {
		if _, err := a.surface.Post(ctx, *race.SchedulingThread, content); err != nil {
			log.Error().Err(err).Str("race_id", race.ID.String()).Msg("failed to post results to scheduling thread")
		}
	}
}

// report fans the outcome out to every configured bracket sink.
func (a *Aggregator) report(ctx context.Context, race *models.Race, results []Result) {
	for _, r := range a.reporters {
		if err := r.Report(ctx, race, results); err != nil {
			log.Error().
				Err(err).
				Str("race_id", race.ID.String()).
				Str("reporter", r.Name()).
				Msg("failed to report race result")
			continue
		}
		log.Info().
			Str("race_id", race.ID.String()).
			Str("reporter", r.Name()).
			Msg("race result reported")
	}
}

func (a *Aggregator) emitRaceCompleted(ctx context.Context, race *models.Race, results []Result) {
	payload := events.RaceCompletedPayload{
		RaceID:      race.ID.String(),
		CompletedAt: a.clock.Now().UTC(),
	}
	for _, r := range results {
		line := events.RaceCompletedResult{
			TeamID:   r.Entrant.TeamID.String(),
			TeamName: r.Entrant.Name,
			Forfeit:  r.Forfeit(),
			Place:    r.Place,
		}
		if !r.Forfeit() {
			line.Elapsed = r.Elapsed()
		}
		payload.Results = append(payload.Results, line)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("race_id", race.ID.String()).Msg("failed to marshal RaceCompleted payload")
		return
	}
	if err := a.outbox.Insert(ctx, race.ID, events.TypeRaceCompleted, data); err != nil {
		log.Error().Err(err).Str("race_id", race.ID.String()).Msg("failed to emit RaceCompleted event")
	}
}
