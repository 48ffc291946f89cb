// Package provisioner opens async threads. A single scanner goroutine
// wakes every interval, finds attempts whose start falls inside the
// lead window and opens exactly one thread per attempt.
package provisioner

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/TreZc0/hyrule-town-hall-sub000/internal/events"
	"github.com/TreZc0/hyrule-town-hall-sub000/internal/lifecycle"
	"github.com/TreZc0/hyrule-town-hall-sub000/internal/messaging"
	"github.com/TreZc0/hyrule-town-hall-sub000/internal/models"
	"github.com/TreZc0/hyrule-town-hall-sub000/internal/qualifier"
	"github.com/TreZc0/hyrule-town-hall-sub000/internal/race"
)

// RaceStore defines what the provisioner needs from the race read
// model.
type RaceStore interface {
	FetchAsyncPartsDue(ctx context.Context, after, before time.Time) ([]race.AsyncPartDue, error)
	GetRace(ctx context.Context, id uuid.UUID) (*models.Race, error)
	GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error)
	RegisterAsyncThread(ctx context.Context, raceID uuid.UUID, part models.AsyncPart, threadID int64) (bool, error)
}

// QualifierStore defines what the provisioner needs from the qualifier
// request store.
type QualifierStore interface {
	FetchRequestsDue(ctx context.Context) ([]qualifier.RequestDue, error)
	GetRequest(ctx context.Context, teamID uuid.UUID, kind models.AsyncKind) (*models.TeamAsyncRequest, error)
	RegisterThread(ctx context.Context, teamID uuid.UUID, kind models.AsyncKind, threadID int64) (bool, error)
}

// OutboxApp defines what the provisioner needs from the outbox app.
type OutboxApp interface {
	Insert(ctx context.Context, raceID uuid.UUID, eventType string, payload []byte) error
}

type Config struct {
	ScanInterval time.Duration // how often the scanner wakes
	LeadTime     time.Duration // how far ahead of the start a thread opens
}

func DefaultConfig() Config {
	return Config{
		ScanInterval: time.Minute,
		LeadTime:     30 * time.Minute,
	}
}

// Provisioner runs the scan loop. Exactly one goroutine scans, so two
// threads can never be created for the same attempt by this process;
// the registration insert guards against other processes.
type Provisioner struct {
	surface messaging.Surface
	races   RaceStore
	quals   QualifierStore
	outbox  OutboxApp
	clock   clockwork.Clock
	config  Config

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func New(surface messaging.Surface, races RaceStore, quals QualifierStore, outbox OutboxApp, clock clockwork.Clock, cfg Config) *Provisioner {
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = time.Minute
	}
	if cfg.LeadTime <= 0 {
		cfg.LeadTime = 30 * time.Minute
	}
	return &Provisioner{
		surface:  surface,
		races:    races,
		quals:    quals,
		outbox:   outbox,
		clock:    clock,
		config:   cfg,
		stopChan: make(chan struct{}),
	}
}

func (p *Provisioner) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("provisioner already running")
	}
	p.running = true
	p.mu.Unlock()

	p.wg.Add(1)
	go p.run(ctx)

	log.Info().
		Dur("scan_interval", p.config.ScanInterval).
		Dur("lead_time", p.config.LeadTime).
		Msg("thread provisioner started")
	return nil
}

func (p *Provisioner) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return fmt.Errorf("provisioner not running")
	}
	p.running = false
	p.mu.Unlock()

	close(p.stopChan)
	p.wg.Wait()

	log.Info().Msg("thread provisioner stopped")
	return nil
}

func (p *Provisioner) run(ctx context.Context) {
	defer p.wg.Done()

	ticker := p.clock.NewTicker(p.config.ScanInterval)
	defer ticker.Stop()

	p.Scan(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopChan:
			return
		case <-ticker.Chan():
			p.Scan(ctx)
		}
	}
}

// Scan runs one provisioning pass. Each due attempt is handled
// independently; one failure never blocks the rest of the batch.
func (p *Provisioner) Scan(ctx context.Context) {
	now := p.clock.Now()

	parts, err := p.races.FetchAsyncPartsDue(ctx, now, now.Add(p.config.LeadTime))
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch async parts due")
	} else {
		for _, due := range parts {
			if err := p.provisionMatchPart(ctx, due); err != nil {
				log.Error().
					Err(err).
					Str("race_id", due.RaceID.String()).
					Int("part", int(due.Part)).
					Msg("failed to provision async thread")
			}
		}
	}

	requests, err := p.quals.FetchRequestsDue(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch qualifier requests due")
		return
	}
	for _, due := range requests {
		if err := p.provisionQualifier(ctx, due); err != nil {
			log.Error().
				Err(err).
				Str("team_id", due.TeamID.String()).
				Str("kind", string(due.Kind)).
				Msg("failed to provision qualifier thread")
		}
	}
}

func (p *Provisioner) provisionMatchPart(ctx context.Context, due race.AsyncPartDue) error {
	r, err := p.races.GetRace(ctx, due.RaceID)
	if err != nil {
		return err
	}
	entrant := r.Entrant(due.Part)
	if entrant == nil {
		return fmt.Errorf("race %s has no entrant for part %d", due.RaceID, due.Part)
	}
	actor := entrant.Actor()
	if actor == nil {
		return fmt.Errorf("entrant %s has no members", entrant.TeamID)
	}

	rank := race.DisplayRank(r.Schedule, due.Part)
	title := lifecycle.MatchThreadTitle(r, due.Part, rank)

	threadID, err := p.surface.CreateThread(ctx, due.AsyncChannel, title)
	if err != nil {
		return fmt.Errorf("failed to create thread: %w", err)
	}

	registered, err := p.races.RegisterAsyncThread(ctx, due.RaceID, due.Part, threadID)
	if err != nil {
		return err
	}
	if !registered {
		log.Warn().
			Str("race_id", due.RaceID.String()).
			Int("part", int(due.Part)).
			Int64("thread_id", threadID).
			Msg("thread already registered, orphaning the new one")
		return nil
	}

	p.addMembers(ctx, threadID, r, due.Part, actor)

	if _, err := p.surface.Post(ctx, threadID, lifecycle.ThreadInstructions(entrant.Name, rank), lifecycle.ReadyControl()); err != nil {
		return fmt.Errorf("failed to post thread instructions: %w", err)
	}

	log.Info().
		Str("race_id", due.RaceID.String()).
		Int("part", int(due.Part)).
		Int64("thread_id", threadID).
		Time("start", due.StartTime).
		Msg("async thread opened")

	p.emitThreadOpened(ctx, models.MatchAttempt(due.RaceID, due.Part), threadID, due.StartTime)
	return nil
}

// addMembers invites the runner and the event organizers. Organizers
// who run for an opposing entrant are left out so nobody sees the seed
// before their own thread opens.
func (p *Provisioner) addMembers(ctx context.Context, threadID int64, r *models.Race, part models.AsyncPart, actor *models.Member) {
	if err := p.surface.AddThreadMember(ctx, threadID, actor.DiscordID); err != nil {
		log.Error().Err(err).Int64("thread_id", threadID).Int64("user", actor.DiscordID).Msg("failed to add runner to thread")
	}

	event, err := p.races.GetEvent(ctx, r.EventID)
	if err != nil {
		log.Error().Err(err).Str("event_id", r.EventID.String()).Msg("failed to load event for thread members")
		return
	}

	opposing := make(map[int64]bool)
	for i := range r.Entrants {
		if models.AsyncPart(i+1) == part {
			continue
		}
		for _, m := range r.Entrants[i].Members {
			opposing[m.DiscordID] = true
		}
	}

	for _, organizer := range event.Organizers {
		if organizer == actor.DiscordID || opposing[organizer] {
			continue
		}
		if err := p.surface.AddThreadMember(ctx, threadID, organizer); err != nil {
			log.Error().Err(err).Int64("thread_id", threadID).Int64("user", organizer).Msg("failed to add organizer to thread")
		}
	}
}

func (p *Provisioner) provisionQualifier(ctx context.Context, due qualifier.RequestDue) error {
	req, err := p.quals.GetRequest(ctx, due.TeamID, due.Kind)
	if err != nil {
		return err
	}
	actor := req.Actor()
	if actor == nil {
		return fmt.Errorf("team %s has no members", due.TeamID)
	}

	title := lifecycle.QualifierThreadTitle(due.TeamName, due.Kind)
	threadID, err := p.surface.CreateThread(ctx, due.AsyncChannel, title)
	if err != nil {
		return fmt.Errorf("failed to create thread: %w", err)
	}

	registered, err := p.quals.RegisterThread(ctx, due.TeamID, due.Kind, threadID)
	if err != nil {
		return err
	}
	if !registered {
		log.Warn().
			Str("team_id", due.TeamID.String()).
			Str("kind", string(due.Kind)).
			Int64("thread_id", threadID).
			Msg("qualifier thread already registered, orphaning the new one")
		return nil
	}

	for _, m := range req.Members {
		if err := p.surface.AddThreadMember(ctx, threadID, m.DiscordID); err != nil {
			log.Error().Err(err).Int64("thread_id", threadID).Int64("user", m.DiscordID).Msg("failed to add member to qualifier thread")
		}
	}

	if _, err := p.surface.Post(ctx, threadID, lifecycle.QualifierInstructions(due.TeamName, due.Kind), lifecycle.ReadyControl()); err != nil {
		return fmt.Errorf("failed to post qualifier instructions: %w", err)
	}

	log.Info().
		Str("team_id", due.TeamID.String()).
		Str("kind", string(due.Kind)).
		Int64("thread_id", threadID).
		Msg("qualifier thread opened")

	p.emitThreadOpened(ctx, models.QualifierAttempt(due.TeamID, due.Kind), threadID, time.Time{})
	return nil
}

func (p *Provisioner) emitThreadOpened(ctx context.Context, ref models.AttemptRef, threadID int64, startTime time.Time) {
	payload := events.ThreadOpenedPayload{
		ThreadID: threadID,
		OpenedAt: p.clock.Now().UTC(),
	}
	key := ref.RaceID
	if ref.IsQualifier() {
		payload.TeamID = ref.TeamID.String()
		payload.Kind = string(ref.Kind)
		key = ref.TeamID
	} else {
		payload.RaceID = ref.RaceID.String()
		payload.Part = int(ref.Part)
		payload.StartTime = startTime
	}

	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("attempt", ref.Key()).Msg("failed to marshal ThreadOpened payload")
		return
	}
	if err := p.outbox.Insert(ctx, key, events.TypeThreadOpened, data); err != nil {
		log.Error().Err(err).Str("attempt", ref.Key()).Msg("failed to emit ThreadOpened event")
	}
}
