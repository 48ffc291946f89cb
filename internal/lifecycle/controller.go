// Package lifecycle drives an async attempt from its opened thread
// through readiness, countdown, live timing and the revert-capable
// finish, answering the thread controls and organizer commands.
package lifecycle

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/TreZc0/hyrule-town-hall-sub000/internal/events"
	"github.com/TreZc0/hyrule-town-hall-sub000/internal/messaging"
	"github.com/TreZc0/hyrule-town-hall-sub000/internal/models"
	"github.com/TreZc0/hyrule-town-hall-sub000/internal/seed"
	"github.com/TreZc0/hyrule-town-hall-sub000/internal/timefmt"
	"github.com/TreZc0/hyrule-town-hall-sub000/internal/timing"
)

// Clock is the interface we use for time operations.
// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) clockwork.Timer
}

// RaceStore defines what the controller needs from the race read model.
type RaceStore interface {
	GetRace(ctx context.Context, id uuid.UUID) (*models.Race, error)
	GetRaceSeed(ctx context.Context, id uuid.UUID) (seed.Data, error)
	GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error)
	SetSeedPosted(ctx context.Context, raceID uuid.UUID, part models.AsyncPart) error
	SetReady(ctx context.Context, raceID uuid.UUID, part models.AsyncPart) error
	ResolveThread(ctx context.Context, threadID int64) (models.AttemptRef, error)
}

// QualifierStore defines what the controller needs from the qualifier
// request store.
type QualifierStore interface {
	GetRequest(ctx context.Context, teamID uuid.UUID, kind models.AsyncKind) (*models.TeamAsyncRequest, error)
	GetSeed(ctx context.Context, eventID uuid.UUID, kind models.AsyncKind) (seed.Data, error)
	MarkSubmitted(ctx context.Context, teamID uuid.UUID, kind models.AsyncKind, at time.Time) error
	ResolveThread(ctx context.Context, threadID int64) (models.AttemptRef, error)
}

// TimingStore defines what the controller needs from the timing rows.
type TimingStore interface {
	EnsurePlaceholder(ctx context.Context, ref models.AttemptRef) (bool, error)
	Get(ctx context.Context, ref models.AttemptRef) (*models.AsyncTimeRecord, error)
	CommitStart(ctx context.Context, ref models.AttemptRef, start time.Time) (bool, error)
	CommitFinish(ctx context.Context, ref models.AttemptRef, finish time.Duration, recordedBy int64, recordedAt time.Time, vodLink *string) (bool, error)
	RecordResult(ctx context.Context, ref models.AttemptRef, finish *time.Duration, recordedBy int64, recordedAt time.Time, vodLink *string) error
	ListPendingFinishes(ctx context.Context) ([]timing.PendingFinish, error)
}

// CompletionNotifier is told after every committed match record so it
// can check whether the race is complete.
type CompletionNotifier interface {
	TimeRecorded(ctx context.Context, raceID uuid.UUID) error
}

// OutboxApp defines what the controller needs from the outbox app.
type OutboxApp interface {
	Insert(ctx context.Context, raceID uuid.UUID, eventType string, payload []byte) error
}

// Config holds the lifecycle tunables.
type Config struct {
	CountdownFrom int           // first number called out
	CountdownTick time.Duration // spacing between countdown posts
	RevertWindow  time.Duration // how long a finish can be reverted
}

func DefaultConfig() Config {
	return Config{
		CountdownFrom: 5,
		CountdownTick: time.Second,
		RevertWindow:  30 * time.Second,
	}
}

// Click carries the interaction context of a control press.
type Click struct {
	ActorID   int64
	ChannelID int64
	MessageID int64
}

// Controller is the per-attempt state machine. All shared state is the
// pending-finalize map; everything else lives in Postgres and in the
// thread messages themselves.
type Controller struct {
	surface  messaging.Surface
	races    RaceStore
	quals    QualifierStore
	timing   TimingStore
	notifier CompletionNotifier
	outbox   OutboxApp
	clock    Clock
	cfg      Config

	pendingMu sync.Mutex
	pending   map[string]*pendingFinalize

	done      chan struct{}
	closeOnce sync.Once
}

func NewController(surface messaging.Surface, races RaceStore, quals QualifierStore, timingStore TimingStore, notifier CompletionNotifier, outboxApp OutboxApp, clock Clock, cfg Config) *Controller {
	if cfg.CountdownFrom <= 0 {
		cfg.CountdownFrom = 5
	}
	if cfg.CountdownTick <= 0 {
		cfg.CountdownTick = time.Second
	}
	if cfg.RevertWindow <= 0 {
		cfg.RevertWindow = 30 * time.Second
	}
	return &Controller{
		surface:  surface,
		races:    races,
		quals:    quals,
		timing:   timingStore,
		notifier: notifier,
		outbox:   outboxApp,
		clock:    clock,
		cfg:      cfg,
		done:     make(chan struct{}),
	}
}

// Close releases every armed revert window without committing it. The
// startup reconciliation scan recovers them on the next boot.
func (c *Controller) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// ResolveThread maps a thread to the attempt it hosts, match attempts
// first, then qualifier timelines.
func (c *Controller) ResolveThread(ctx context.Context, threadID int64) (models.AttemptRef, error) {
	ref, err := c.races.ResolveThread(ctx, threadID)
	if err == nil {
		return ref, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.AttemptRef{}, err
	}
	ref, err = c.quals.ResolveThread(ctx, threadID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.AttemptRef{}, ErrNotFound
	}
	if err != nil {
		return models.AttemptRef{}, err
	}
	return ref, nil
}

// attemptContext is the resolved environment of one attempt.
type attemptContext struct {
	actor   models.Member
	eventID uuid.UUID
	label   string // phase/round or timeline label, for notices
	player  string
}

func (c *Controller) resolveAttempt(ctx context.Context, ref models.AttemptRef) (*attemptContext, error) {
	if ref.IsQualifier() {
		req, err := c.quals.GetRequest(ctx, ref.TeamID, ref.Kind)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, err
		}
		actor := req.Actor()
		if actor == nil {
			return nil, fmt.Errorf("team %s has no members", ref.TeamID)
		}
		return &attemptContext{
			actor:   *actor,
			eventID: req.EventID,
			label:   kindLabel(ref.Kind),
			player:  req.TeamName,
		}, nil
	}

	r, err := c.races.GetRace(ctx, ref.RaceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	entrant := r.Entrant(ref.Part)
	if entrant == nil {
		return nil, ErrNotFound
	}
	actor := entrant.Actor()
	if actor == nil {
		return nil, fmt.Errorf("entrant %s has no members", entrant.TeamID)
	}
	return &attemptContext{
		actor:   *actor,
		eventID: r.EventID,
		label:   r.PhaseRound(),
		player:  entrant.Name,
	}, nil
}

func (c *Controller) attemptSeed(ctx context.Context, ref models.AttemptRef, eventID uuid.UUID) (seed.Data, error) {
	if ref.IsQualifier() {
		return c.quals.GetSeed(ctx, eventID, ref.Kind)
	}
	return c.races.GetRaceSeed(ctx, ref.RaceID)
}

// Ready handles the READY control: inserts the placeholder row, posts
// the seed and swaps the control for START COUNTDOWN. Duplicate clicks
// answer ErrAlreadyReady and write nothing.
func (c *Controller) Ready(ctx context.Context, ref models.AttemptRef, click Click) error {
	ac, err := c.resolveAttempt(ctx, ref)
	if err != nil {
		return err
	}
	if ac.actor.DiscordID != click.ActorID {
		return ErrUnauthorized
	}

	if rec, err := c.timing.Get(ctx, ref); err != nil {
		return err
	} else if rec != nil {
		return ErrAlreadyReady
	}

	created, err := c.timing.EnsurePlaceholder(ctx, ref)
	if err != nil {
		return err
	}
	if !created {
		return ErrAlreadyReady
	}

	log.Info().Str("attempt", ref.Key()).Int64("actor", click.ActorID).Msg("attempt marked ready")

	seedData, err := c.attemptSeed(ctx, ref, ac.eventID)
	if err != nil {
		return fmt.Errorf("ready committed but seed lookup failed: %w", err)
	}
	if _, err := c.surface.Post(ctx, click.ChannelID, seedMessage(seedData)); err != nil {
		return fmt.Errorf("ready committed but seed post failed: %w", err)
	}

	if err := c.swapControls(ctx, click, startCountdownControl()); err != nil {
		return fmt.Errorf("ready committed but control swap failed: %w", err)
	}

	if !ref.IsQualifier() {
		if err := c.races.SetSeedPosted(ctx, ref.RaceID, ref.Part); err != nil {
			log.Error().Err(err).Str("attempt", ref.Key()).Msg("failed to flag seed posted")
		}
		if err := c.races.SetReady(ctx, ref.RaceID, ref.Part); err != nil {
			log.Error().Err(err).Str("attempt", ref.Key()).Msg("failed to flag ready")
		}
	}

	c.emitAttemptReady(ctx, ref)
	return nil
}

// StartCountdown handles the START COUNTDOWN control: posts the call
// sequence one message per tick, commits the start timestamp strictly
// after GO!, then posts the timing controls.
func (c *Controller) StartCountdown(ctx context.Context, ref models.AttemptRef, click Click) error {
	ac, err := c.resolveAttempt(ctx, ref)
	if err != nil {
		return err
	}
	if ac.actor.DiscordID != click.ActorID {
		return ErrUnauthorized
	}

	rec, err := c.timing.Get(ctx, ref)
	if err != nil {
		return err
	}
	if rec == nil {
		return ErrNotStarted
	}
	if rec.Recorded() {
		return ErrAlreadyFinished
	}
	if rec.StartTime != nil {
		return ErrAlreadyStarted
	}

	if err := c.swapControls(ctx, click); err != nil {
		return fmt.Errorf("failed to strip countdown control: %w", err)
	}

	if _, err := c.surface.Post(ctx, click.ChannelID, "Your race is about to start!"); err != nil {
		return fmt.Errorf("failed to post countdown lead-in: %w", err)
	}

	timer := c.clock.NewTimer(c.cfg.CountdownTick)
	defer stopAndDrainTimer(timer)
	for i := c.cfg.CountdownFrom; i >= 0; i-- {
		select {
		case <-timer.Chan():
		case <-ctx.Done():
			return ctx.Err()
		}
		content := fmt.Sprintf("**%d**", i)
		if i == 0 {
			content = "**GO!**"
		}
		if _, err := c.surface.Post(ctx, click.ChannelID, content); err != nil {
			return fmt.Errorf("failed to post countdown message: %w", err)
		}
		if i > 0 {
			timer.Reset(c.cfg.CountdownTick)
		}
	}

	// The run clock starts only after GO! is on screen.
	start := c.clock.Now()
	committed, err := c.timing.CommitStart(ctx, ref, start)
	if err != nil {
		return err
	}
	if !committed {
		return ErrAlreadyStarted
	}

	log.Info().Str("attempt", ref.Key()).Time("start", start).Msg("attempt started")

	if _, err := c.surface.Post(ctx, click.ChannelID, timingControlsContent(), finishControl(), forfeitControl()); err != nil {
		return fmt.Errorf("start committed but timing controls failed: %w", err)
	}

	c.postOrganizerStartNotice(ctx, ref, ac)
	return nil
}

// Finish handles the FINISH control: captures the elapsed time, arms
// the revert window and defers the commit. Nothing is written until the
// window lapses.
func (c *Controller) Finish(ctx context.Context, ref models.AttemptRef, click Click) error {
	ac, err := c.resolveAttempt(ctx, ref)
	if err != nil {
		return err
	}
	if ac.actor.DiscordID != click.ActorID {
		return ErrUnauthorized
	}

	rec, err := c.timing.Get(ctx, ref)
	if err != nil {
		return err
	}
	if rec == nil || rec.StartTime == nil {
		return ErrNotStarted
	}
	if rec.Recorded() {
		return ErrAlreadyFinished
	}

	elapsed := c.clock.Now().Sub(*rec.StartTime)
	elapsedStr := timefmt.Format(elapsed)

	if err := c.surface.Edit(ctx, click.ChannelID, click.MessageID, finishPendingContent(elapsedStr), revertControl()); err != nil {
		return fmt.Errorf("failed to arm revert window: %w", err)
	}

	c.scheduleFinalize(ref, click.ChannelID, click.MessageID, elapsed, click.ActorID)
	log.Info().Str("attempt", ref.Key()).Str("elapsed", elapsedStr).Msg("finish pending, revert window armed")
	return nil
}

// Revert handles the REVERT control: cancels the pending finalize and
// restores the timing controls. A later FINISH arms a fresh window.
func (c *Controller) Revert(ctx context.Context, ref models.AttemptRef, click Click) error {
	c.cancelFinalize(ref)

	if err := c.surface.Edit(ctx, click.ChannelID, click.MessageID, timingControlsContent(), finishControl(), forfeitControl()); err != nil {
		return fmt.Errorf("failed to restore timing controls: %w", err)
	}
	log.Info().Str("attempt", ref.Key()).Msg("finish reverted")
	return nil
}

// Forfeit handles the FORFEIT control with a confirm round trip.
func (c *Controller) Forfeit(ctx context.Context, ref models.AttemptRef, click Click) error {
	ac, err := c.resolveAttempt(ctx, ref)
	if err != nil {
		return err
	}
	if ac.actor.DiscordID != click.ActorID {
		return ErrUnauthorized
	}

	if err := c.surface.Edit(ctx, click.ChannelID, click.MessageID, forfeitPromptContent(), forfeitConfirmControl(), forfeitCancelControl()); err != nil {
		return fmt.Errorf("failed to post forfeit prompt: %w", err)
	}
	return nil
}

// ForfeitConfirm posts the forfeit notice and strips the controls. No
// row is written; the organizer's record-forfeit command is the
// durable checkpoint.
func (c *Controller) ForfeitConfirm(ctx context.Context, ref models.AttemptRef, click Click) error {
	ac, err := c.resolveAttempt(ctx, ref)
	if err != nil {
		return err
	}
	if ac.actor.DiscordID != click.ActorID {
		return ErrUnauthorized
	}

	c.cancelFinalize(ref)

	if err := c.surface.Edit(ctx, click.ChannelID, click.MessageID, forfeitNoticeContent(ac.player)); err != nil {
		return fmt.Errorf("failed to strip controls after forfeit: %w", err)
	}
	if _, err := c.surface.Post(ctx, click.ChannelID, forfeitNoticeContent(ac.player)); err != nil {
		return fmt.Errorf("failed to post forfeit notice: %w", err)
	}

	log.Info().Str("attempt", ref.Key()).Msg("attempt forfeited, awaiting organizer record")
	return nil
}

// ForfeitCancel restores the timing controls.
func (c *Controller) ForfeitCancel(ctx context.Context, ref models.AttemptRef, click Click) error {
	if err := c.surface.Edit(ctx, click.ChannelID, click.MessageID, timingControlsContent(), finishControl(), forfeitControl()); err != nil {
		return fmt.Errorf("failed to cancel forfeit: %w", err)
	}
	return nil
}

// swapControls rewrites the clicked message keeping its content but
// replacing the attached controls.
func (c *Controller) swapControls(ctx context.Context, click Click, controls ...messaging.Control) error {
	msg, err := c.surface.GetMessage(ctx, click.ChannelID, click.MessageID)
	if err != nil {
		return err
	}
	return c.surface.Edit(ctx, click.ChannelID, click.MessageID, msg.Content, controls...)
}

func (c *Controller) postOrganizerStartNotice(ctx context.Context, ref models.AttemptRef, ac *attemptContext) {
	event, err := c.races.GetEvent(ctx, ac.eventID)
	if err != nil {
		log.Error().Err(err).Str("attempt", ref.Key()).Msg("failed to load event for organizer notice")
		return
	}
	if event.OrganizerChannel == nil {
		return
	}
	seedData, err := c.attemptSeed(ctx, ref, ac.eventID)
	if err != nil {
		seedData = seed.Data{}
	}
	if _, err := c.surface.Post(ctx, *event.OrganizerChannel, organizerStartNotice(ac.label, ac.player, seedData)); err != nil {
		log.Error().Err(err).Str("attempt", ref.Key()).Msg("failed to post organizer start notice")
	}
}

func (c *Controller) emitAttemptReady(ctx context.Context, ref models.AttemptRef) {
	payload := events.AttemptReadyPayload{ReadyAt: c.clock.Now().UTC()}
	key := ref.RaceID
	if ref.IsQualifier() {
		payload.TeamID = ref.TeamID.String()
		payload.Kind = string(ref.Kind)
		key = ref.TeamID
	} else {
		payload.RaceID = ref.RaceID.String()
		payload.Part = int(ref.Part)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("attempt", ref.Key()).Msg("failed to marshal AttemptReady payload")
		return
	}
	if err := c.outbox.Insert(ctx, key, events.TypeAttemptReady, data); err != nil {
		log.Error().Err(err).Str("attempt", ref.Key()).Msg("failed to emit AttemptReady event")
	}
}

func (c *Controller) emitTimeRecorded(ctx context.Context, ref models.AttemptRef, elapsed *time.Duration, recordedBy int64, recordedAt time.Time) {
	payload := events.TimeRecordedPayload{
		Forfeit:    elapsed == nil,
		RecordedBy: recordedBy,
		RecordedAt: recordedAt.UTC(),
	}
	if elapsed != nil {
		payload.Elapsed = timefmt.Format(*elapsed)
	}
	key := ref.RaceID
	if ref.IsQualifier() {
		payload.TeamID = ref.TeamID.String()
		payload.Kind = string(ref.Kind)
		key = ref.TeamID
	} else {
		payload.RaceID = ref.RaceID.String()
		payload.Part = int(ref.Part)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("attempt", ref.Key()).Msg("failed to marshal TimeRecorded payload")
		return
	}
	if err := c.outbox.Insert(ctx, key, events.TypeTimeRecorded, data); err != nil {
		log.Error().Err(err).Str("attempt", ref.Key()).Msg("failed to emit TimeRecorded event")
	}
}
