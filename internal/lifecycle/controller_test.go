package lifecycle

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/TreZc0/hyrule-town-hall-sub000/internal/messaging"
	"github.com/TreZc0/hyrule-town-hall-sub000/internal/messaging/memory"
	"github.com/TreZc0/hyrule-town-hall-sub000/internal/models"
	"github.com/TreZc0/hyrule-town-hall-sub000/internal/seed"
	"github.com/TreZc0/hyrule-town-hall-sub000/internal/timing"
)

const (
	runnerDiscordID    = int64(111)
	opponentDiscordID  = int64(222)
	organizerDiscordID = int64(999)
	organizerChannelID = int64(55)
	threadID           = int64(77)
)

type fakeRaces struct {
	race       *models.Race
	seedData   seed.Data
	event      *models.Event
	threadRefs map[int64]models.AttemptRef

	mu         sync.Mutex
	seedPosted bool
	ready      bool
}

func (f *fakeRaces) GetRace(_ context.Context, id uuid.UUID) (*models.Race, error) {
	if f.race == nil || f.race.ID != id {
		return nil, sql.ErrNoRows
	}
	return f.race, nil
}

func (f *fakeRaces) GetRaceSeed(_ context.Context, id uuid.UUID) (seed.Data, error) {
	return f.seedData, nil
}

func (f *fakeRaces) GetEvent(_ context.Context, id uuid.UUID) (*models.Event, error) {
	if f.event == nil || f.event.ID != id {
		return nil, sql.ErrNoRows
	}
	return f.event, nil
}

func (f *fakeRaces) SetSeedPosted(_ context.Context, _ uuid.UUID, _ models.AsyncPart) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seedPosted = true
	return nil
}

func (f *fakeRaces) SetReady(_ context.Context, _ uuid.UUID, _ models.AsyncPart) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ready = true
	return nil
}

func (f *fakeRaces) ResolveThread(_ context.Context, id int64) (models.AttemptRef, error) {
	ref, ok := f.threadRefs[id]
	if !ok {
		return models.AttemptRef{}, sql.ErrNoRows
	}
	return ref, nil
}

type fakeQuals struct {
	req      *models.TeamAsyncRequest
	seedData seed.Data

	mu        sync.Mutex
	submitted bool
}

func (f *fakeQuals) GetRequest(_ context.Context, teamID uuid.UUID, kind models.AsyncKind) (*models.TeamAsyncRequest, error) {
	if f.req == nil || f.req.TeamID != teamID || f.req.Kind != kind {
		return nil, sql.ErrNoRows
	}
	return f.req, nil
}

func (f *fakeQuals) GetSeed(_ context.Context, _ uuid.UUID, _ models.AsyncKind) (seed.Data, error) {
	return f.seedData, nil
}

func (f *fakeQuals) MarkSubmitted(_ context.Context, _ uuid.UUID, _ models.AsyncKind, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = true
	return nil
}

func (f *fakeQuals) ResolveThread(_ context.Context, _ int64) (models.AttemptRef, error) {
	return models.AttemptRef{}, sql.ErrNoRows
}

func (f *fakeQuals) wasSubmitted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitted
}

// fakeTiming mirrors the store's single-row guard semantics in memory.
type fakeTiming struct {
	mu      sync.Mutex
	rows    map[string]*models.AsyncTimeRecord
	pending []timing.PendingFinish
}

func newFakeTiming() *fakeTiming {
	return &fakeTiming{rows: make(map[string]*models.AsyncTimeRecord)}
}

func (f *fakeTiming) EnsurePlaceholder(_ context.Context, ref models.AttemptRef) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[ref.Key()]; ok {
		return false, nil
	}
	f.rows[ref.Key()] = &models.AsyncTimeRecord{Ref: ref}
	return true, nil
}

func (f *fakeTiming) Get(_ context.Context, ref models.AttemptRef) (*models.AsyncTimeRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[ref.Key()]
	if !ok {
		return nil, nil
	}
	copy := *row
	return &copy, nil
}

func (f *fakeTiming) CommitStart(_ context.Context, ref models.AttemptRef, start time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[ref.Key()]
	if !ok || row.StartTime != nil {
		return false, nil
	}
	row.StartTime = &start
	return true, nil
}

func (f *fakeTiming) CommitFinish(_ context.Context, ref models.AttemptRef, finish time.Duration, recordedBy int64, recordedAt time.Time, vodLink *string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[ref.Key()]
	if !ok || row.RecordedBy != nil {
		return false, nil
	}
	row.Finish = &finish
	row.RecordedBy = &recordedBy
	row.RecordedAt = &recordedAt
	row.VodLink = vodLink
	return true, nil
}

func (f *fakeTiming) RecordResult(_ context.Context, ref models.AttemptRef, finish *time.Duration, recordedBy int64, recordedAt time.Time, vodLink *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[ref.Key()]
	if !ok {
		row = &models.AsyncTimeRecord{Ref: ref}
		f.rows[ref.Key()] = row
	}
	row.Finish = finish
	row.RecordedBy = &recordedBy
	row.RecordedAt = &recordedAt
	row.VodLink = vodLink
	return nil
}

func (f *fakeTiming) ListPendingFinishes(_ context.Context) ([]timing.PendingFinish, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]timing.PendingFinish(nil), f.pending...), nil
}

func (f *fakeTiming) record(ref models.AttemptRef) *models.AsyncTimeRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[ref.Key()]
	if !ok {
		return nil
	}
	copy := *row
	return &copy
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []uuid.UUID
}

func (f *fakeNotifier) TimeRecorded(_ context.Context, raceID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, raceID)
	return nil
}

func (f *fakeNotifier) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeOutbox struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeOutbox) Insert(_ context.Context, _ uuid.UUID, eventType string, _ []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, eventType)
	return nil
}

func (f *fakeOutbox) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

type testEnv struct {
	controller *Controller
	surface    *memory.Surface
	races      *fakeRaces
	quals      *fakeQuals
	timing     *fakeTiming
	notifier   *fakeNotifier
	outbox     *fakeOutbox
	clock      *clockwork.FakeClock
	ref        models.AttemptRef
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	raceID := uuid.New()
	eventID := uuid.New()
	ref := models.MatchAttempt(raceID, 1)

	races := &fakeRaces{
		race: &models.Race{
			ID:      raceID,
			EventID: eventID,
			Phase:   "Swiss",
			Round:   "Round 2",
			Entrants: []models.Entrant{
				{TeamID: uuid.New(), Name: "Alice", Members: []models.Member{{UserID: uuid.New(), DiscordID: runnerDiscordID, Name: "Alice"}}},
				{TeamID: uuid.New(), Name: "Bob", Members: []models.Member{{UserID: uuid.New(), DiscordID: opponentDiscordID, Name: "Bob"}}},
			},
			Schedule: models.Schedule{Kind: models.ScheduleAsync},
		},
		seedData:   seed.Data{Permalink: "https://example.com/seed/abc", Hash: []string{"Bow", "Boots"}},
		event:      &models.Event{ID: eventID, Slug: "test-event", OrganizerChannel: ptrInt64(organizerChannelID), Organizers: []int64{organizerDiscordID}},
		threadRefs: map[int64]models.AttemptRef{threadID: ref},
	}
	quals := &fakeQuals{}
	timingStore := newFakeTiming()
	notifier := &fakeNotifier{}
	outboxApp := &fakeOutbox{}
	clock := clockwork.NewFakeClock()
	surface := memory.New()

	ctrl := NewController(surface, races, quals, timingStore, notifier, outboxApp, clock, DefaultConfig())

	return &testEnv{
		controller: ctrl,
		surface:    surface,
		races:      races,
		quals:      quals,
		timing:     timingStore,
		notifier:   notifier,
		outbox:     outboxApp,
		clock:      clock,
		ref:        ref,
	}
}

func ptrInt64(v int64) *int64 { return &v }

// postControlMessage seeds the thread with a message carrying the given
// controls and returns a Click as if the runner pressed one of them.
func (e *testEnv) postControlMessage(t *testing.T, content string, controls ...messaging.Control) Click {
	t.Helper()
	msgID, err := e.surface.Post(context.Background(), threadID, content, controls...)
	if err != nil {
		t.Fatalf("failed to seed control message: %v", err)
	}
	return Click{ActorID: runnerDiscordID, ChannelID: threadID, MessageID: msgID}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func lastMessage(t *testing.T, s *memory.Surface, channelID int64) messaging.Message {
	t.Helper()
	msgs := s.Messages(channelID)
	if len(msgs) == 0 {
		t.Fatalf("no messages in channel %d", channelID)
	}
	return msgs[len(msgs)-1]
}

func TestReadyPostsSeedAndSwapsControl(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	click := env.postControlMessage(t, ThreadInstructions("Alice", 1), ReadyControl())

	if err := env.controller.Ready(ctx, env.ref, click); err != nil {
		t.Fatalf("Ready failed: %v", err)
	}

	if env.timing.record(env.ref) == nil {
		t.Error("expected placeholder row after READY")
	}

	last := lastMessage(t, env.surface, threadID)
	if !strings.Contains(last.Content, "https://example.com/seed/abc") {
		t.Errorf("seed post missing seed link: %q", last.Content)
	}
	if !strings.Contains(last.Content, "Bow / Boots") {
		t.Errorf("seed post missing hash line: %q", last.Content)
	}

	edited, err := env.surface.GetMessage(ctx, threadID, click.MessageID)
	if err != nil {
		t.Fatalf("failed to fetch clicked message: %v", err)
	}
	if !edited.HasControl(messaging.ControlStartCountdown) || edited.HasControl(messaging.ControlReady) {
		t.Errorf("expected READY swapped for START COUNTDOWN, got %+v", edited.Controls)
	}

	if got := env.outbox.types(); len(got) != 1 || got[0] != "AttemptReady" {
		t.Errorf("expected one AttemptReady event, got %v", got)
	}
}

func TestReadyRejectsWrongActor(t *testing.T) {
	env := newTestEnv(t)
	click := env.postControlMessage(t, ThreadInstructions("Alice", 1), ReadyControl())
	click.ActorID = opponentDiscordID

	err := env.controller.Ready(context.Background(), env.ref, click)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if env.timing.record(env.ref) != nil {
		t.Error("unauthorized READY must not create a row")
	}
}

func TestReadyTwiceIsRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	click := env.postControlMessage(t, ThreadInstructions("Alice", 1), ReadyControl())

	if err := env.controller.Ready(ctx, env.ref, click); err != nil {
		t.Fatalf("first Ready failed: %v", err)
	}
	postedAfterFirst := len(env.surface.Messages(threadID))

	if err := env.controller.Ready(ctx, env.ref, click); !errors.Is(err, ErrAlreadyReady) {
		t.Fatalf("expected ErrAlreadyReady, got %v", err)
	}
	if got := len(env.surface.Messages(threadID)); got != postedAfterFirst {
		t.Errorf("duplicate READY must not post, message count went %d -> %d", postedAfterFirst, got)
	}
}

func TestStartCountdownSequence(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.timing.EnsurePlaceholder(ctx, env.ref); err != nil {
		t.Fatal(err)
	}
	click := env.postControlMessage(t, "seed posted", startCountdownControl())
	before := len(env.surface.Messages(threadID))

	errCh := make(chan error, 1)
	go func() {
		errCh <- env.controller.StartCountdown(ctx, env.ref, click)
	}()

	cfg := DefaultConfig()
	for i := 0; i <= cfg.CountdownFrom; i++ {
		env.clock.BlockUntil(1)
		env.clock.Advance(cfg.CountdownTick)
	}

	if err := <-errCh; err != nil {
		t.Fatalf("StartCountdown failed: %v", err)
	}

	msgs := env.surface.Messages(threadID)[before:]
	var contents []string
	for _, m := range msgs {
		contents = append(contents, m.Content)
	}
	want := []string{"Your race is about to start!", "**5**", "**4**", "**3**", "**2**", "**1**", "**GO!**"}
	if len(contents) < len(want)+1 {
		t.Fatalf("expected countdown plus timing controls, got %v", contents)
	}
	for i, w := range want {
		if contents[i] != w {
			t.Errorf("countdown message %d = %q, want %q", i, contents[i], w)
		}
	}

	last := lastMessage(t, env.surface, threadID)
	if !last.HasControl(messaging.ControlFinish) || !last.HasControl(messaging.ControlForfeit) {
		t.Errorf("expected FINISH and FORFEIT controls after GO!, got %+v", last.Controls)
	}

	rec := env.timing.record(env.ref)
	if rec == nil || rec.StartTime == nil {
		t.Fatal("expected committed start time")
	}
	if !rec.StartTime.Equal(env.clock.Now()) {
		t.Errorf("start time %v should be captured after GO! at %v", rec.StartTime, env.clock.Now())
	}

	orgMsgs := env.surface.Messages(organizerChannelID)
	if len(orgMsgs) != 1 || !strings.Contains(orgMsgs[0].Content, "Alice") {
		t.Errorf("expected organizer heads-up naming the runner, got %v", orgMsgs)
	}
}

func TestStartCountdownTwiceIsRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.timing.EnsurePlaceholder(ctx, env.ref); err != nil {
		t.Fatal(err)
	}
	if _, err := env.timing.CommitStart(ctx, env.ref, env.clock.Now()); err != nil {
		t.Fatal(err)
	}

	click := env.postControlMessage(t, "seed posted", startCountdownControl())
	if err := env.controller.StartCountdown(ctx, env.ref, click); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}
}

func TestFinishCommitsAfterRevertWindow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	start := env.clock.Now()
	if _, err := env.timing.EnsurePlaceholder(ctx, env.ref); err != nil {
		t.Fatal(err)
	}
	if _, err := env.timing.CommitStart(ctx, env.ref, start); err != nil {
		t.Fatal(err)
	}
	env.clock.Advance(92 * time.Minute)

	click := env.postControlMessage(t, timingControlsContent(), finishControl(), forfeitControl())
	if err := env.controller.Finish(ctx, env.ref, click); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	pending, err := env.surface.GetMessage(ctx, threadID, click.MessageID)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(pending.Content, "01:32:00") || !strings.Contains(pending.Content, RevertMarker) {
		t.Errorf("pending message should show elapsed and revert notice: %q", pending.Content)
	}
	if !pending.HasControl(messaging.ControlRevert) {
		t.Errorf("expected REVERT control, got %+v", pending.Controls)
	}
	if rec := env.timing.record(env.ref); rec.Recorded() {
		t.Fatal("finish must not commit before the window lapses")
	}

	env.clock.BlockUntil(1)
	env.clock.Advance(DefaultConfig().RevertWindow)

	waitFor(t, func() bool {
		rec := env.timing.record(env.ref)
		return rec != nil && rec.Recorded()
	}, "finish never committed after revert window")

	rec := env.timing.record(env.ref)
	if rec.Finish == nil || *rec.Finish != 92*time.Minute {
		t.Errorf("committed finish = %v, want 92m", rec.Finish)
	}
	if rec.RecordedBy == nil || *rec.RecordedBy != runnerDiscordID {
		t.Errorf("recorded_by = %v, want runner", rec.RecordedBy)
	}

	waitFor(t, func() bool { return env.notifier.callCount() == 1 }, "completion check never ran")

	waitFor(t, func() bool {
		for _, et := range env.outbox.types() {
			if et == "TimeRecorded" {
				return true
			}
		}
		return false
	}, "TimeRecorded event never emitted")
}

func TestFinishCommitsAfterInteractionContextCanceled(t *testing.T) {
	env := newTestEnv(t)

	start := env.clock.Now()
	if _, err := env.timing.EnsurePlaceholder(context.Background(), env.ref); err != nil {
		t.Fatal(err)
	}
	if _, err := env.timing.CommitStart(context.Background(), env.ref, start); err != nil {
		t.Fatal(err)
	}
	env.clock.Advance(75 * time.Minute)

	// The dispatcher hands each interaction a deadline-bound context and
	// cancels it as soon as the handler returns. The revert window must
	// keep running anyway.
	click := env.postControlMessage(t, timingControlsContent(), finishControl(), forfeitControl())
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := env.controller.Finish(ctx, env.ref, click); err != nil {
		cancel()
		t.Fatalf("Finish failed: %v", err)
	}
	cancel()

	env.clock.BlockUntil(1)
	env.clock.Advance(DefaultConfig().RevertWindow)

	waitFor(t, func() bool {
		rec := env.timing.record(env.ref)
		return rec != nil && rec.Recorded()
	}, "finish never committed once the interaction context was canceled")

	rec := env.timing.record(env.ref)
	if rec.Finish == nil || *rec.Finish != 75*time.Minute {
		t.Errorf("committed finish = %v, want 75m", rec.Finish)
	}
}

func TestCloseReleasesArmedWindowWithoutCommitting(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	start := env.clock.Now()
	if _, err := env.timing.EnsurePlaceholder(ctx, env.ref); err != nil {
		t.Fatal(err)
	}
	if _, err := env.timing.CommitStart(ctx, env.ref, start); err != nil {
		t.Fatal(err)
	}
	env.clock.Advance(40 * time.Minute)

	click := env.postControlMessage(t, timingControlsContent(), finishControl(), forfeitControl())
	if err := env.controller.Finish(ctx, env.ref, click); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	env.clock.BlockUntil(1)
	env.controller.Close()

	// Let the waiter observe the close before the timer ever fires.
	time.Sleep(50 * time.Millisecond)
	env.clock.Advance(DefaultConfig().RevertWindow)

	time.Sleep(50 * time.Millisecond)
	if rec := env.timing.record(env.ref); rec.Recorded() {
		t.Error("shutdown must leave the pending finish for the startup scan, not commit it")
	}
}

func TestRevertThenRefinishCommitsSecondTime(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	start := env.clock.Now()
	if _, err := env.timing.EnsurePlaceholder(ctx, env.ref); err != nil {
		t.Fatal(err)
	}
	if _, err := env.timing.CommitStart(ctx, env.ref, start); err != nil {
		t.Fatal(err)
	}
	env.clock.Advance(60 * time.Minute)

	click := env.postControlMessage(t, timingControlsContent(), finishControl(), forfeitControl())
	if err := env.controller.Finish(ctx, env.ref, click); err != nil {
		t.Fatalf("first Finish failed: %v", err)
	}
	if err := env.controller.Revert(ctx, env.ref, click); err != nil {
		t.Fatalf("Revert failed: %v", err)
	}

	restored, err := env.surface.GetMessage(ctx, threadID, click.MessageID)
	if err != nil {
		t.Fatal(err)
	}
	if !restored.HasControl(messaging.ControlFinish) || !restored.HasControl(messaging.ControlForfeit) {
		t.Errorf("revert should restore timing controls, got %+v", restored.Controls)
	}

	// Run on for three more minutes, then finish for real.
	env.clock.Advance(3 * time.Minute)
	if err := env.controller.Finish(ctx, env.ref, click); err != nil {
		t.Fatalf("second Finish failed: %v", err)
	}

	env.clock.BlockUntil(1)
	env.clock.Advance(DefaultConfig().RevertWindow)

	waitFor(t, func() bool {
		rec := env.timing.record(env.ref)
		return rec != nil && rec.Recorded()
	}, "second finish never committed")

	rec := env.timing.record(env.ref)
	if rec.Finish == nil || *rec.Finish != 63*time.Minute {
		t.Errorf("committed finish = %v, want 63m (the second press)", rec.Finish)
	}
	if env.notifier.callCount() != 1 {
		t.Errorf("expected exactly one completion check, got %d", env.notifier.callCount())
	}
}

func TestFinalizeAbandonedWhenMessageChanged(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	start := env.clock.Now()
	if _, err := env.timing.EnsurePlaceholder(ctx, env.ref); err != nil {
		t.Fatal(err)
	}
	if _, err := env.timing.CommitStart(ctx, env.ref, start); err != nil {
		t.Fatal(err)
	}
	env.clock.Advance(45 * time.Minute)

	click := env.postControlMessage(t, timingControlsContent(), finishControl(), forfeitControl())
	if err := env.controller.Finish(ctx, env.ref, click); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	// An organizer edits the window message before the timer fires.
	if err := env.surface.Edit(ctx, threadID, click.MessageID, "result recorded manually"); err != nil {
		t.Fatal(err)
	}

	env.clock.BlockUntil(1)
	env.clock.Advance(DefaultConfig().RevertWindow)

	time.Sleep(50 * time.Millisecond)
	if rec := env.timing.record(env.ref); rec.Recorded() {
		t.Error("finalize must abandon the commit when the window message changed")
	}
}

func TestForfeitConfirmWritesNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.timing.EnsurePlaceholder(ctx, env.ref); err != nil {
		t.Fatal(err)
	}
	if _, err := env.timing.CommitStart(ctx, env.ref, env.clock.Now()); err != nil {
		t.Fatal(err)
	}

	click := env.postControlMessage(t, timingControlsContent(), finishControl(), forfeitControl())
	if err := env.controller.Forfeit(ctx, env.ref, click); err != nil {
		t.Fatalf("Forfeit failed: %v", err)
	}

	prompt, err := env.surface.GetMessage(ctx, threadID, click.MessageID)
	if err != nil {
		t.Fatal(err)
	}
	if !prompt.HasControl(messaging.ControlForfeitConfirm) || !prompt.HasControl(messaging.ControlForfeitCancel) {
		t.Errorf("expected confirm/cancel controls, got %+v", prompt.Controls)
	}

	if err := env.controller.ForfeitConfirm(ctx, env.ref, click); err != nil {
		t.Fatalf("ForfeitConfirm failed: %v", err)
	}

	rec := env.timing.record(env.ref)
	if rec.Recorded() {
		t.Error("forfeit from the thread must not write a result; that is the organizer's call")
	}

	stripped, err := env.surface.GetMessage(ctx, threadID, click.MessageID)
	if err != nil {
		t.Fatal(err)
	}
	if len(stripped.Controls) != 0 {
		t.Errorf("expected controls stripped after forfeit, got %+v", stripped.Controls)
	}
	if !strings.Contains(lastMessage(t, env.surface, threadID).Content, "forfeited") {
		t.Error("expected forfeit notice in the thread")
	}
}

func TestRecordResultByOrganizer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.controller.RecordResult(ctx, env.ref, organizerDiscordID, "1:23:45", nil); err != nil {
		t.Fatalf("RecordResult failed: %v", err)
	}

	rec := env.timing.record(env.ref)
	if rec == nil || rec.Finish == nil || *rec.Finish != 1*time.Hour+23*time.Minute+45*time.Second {
		t.Fatalf("recorded finish = %+v, want 1:23:45", rec)
	}
	if env.notifier.callCount() != 1 {
		t.Errorf("expected completion check after organizer record, got %d", env.notifier.callCount())
	}
}

func TestRecordResultRejectsNonOrganizer(t *testing.T) {
	env := newTestEnv(t)

	err := env.controller.RecordResult(context.Background(), env.ref, runnerDiscordID, "1:23:45", nil)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if env.timing.record(env.ref) != nil {
		t.Error("unauthorized record must not write")
	}
}

func TestRecordResultRejectsMalformedTime(t *testing.T) {
	env := newTestEnv(t)

	for _, bad := range []string{"99:99", "1h23m", "::", "1:2:3:4", "-1:00:00"} {
		err := env.controller.RecordResult(context.Background(), env.ref, organizerDiscordID, bad, nil)
		if !errors.Is(err, ErrMalformedInput) {
			t.Errorf("RecordResult(%q) = %v, want ErrMalformedInput", bad, err)
		}
	}
	if env.timing.record(env.ref) != nil {
		t.Error("malformed input must not write")
	}
}

func TestRecordForfeitByOrganizer(t *testing.T) {
	env := newTestEnv(t)

	if err := env.controller.RecordForfeit(context.Background(), env.ref, organizerDiscordID); err != nil {
		t.Fatalf("RecordForfeit failed: %v", err)
	}

	rec := env.timing.record(env.ref)
	if rec == nil || !rec.Forfeited() {
		t.Fatalf("expected forfeit row, got %+v", rec)
	}
}

func TestOrganizerRecordCancelsPendingFinalize(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	start := env.clock.Now()
	if _, err := env.timing.EnsurePlaceholder(ctx, env.ref); err != nil {
		t.Fatal(err)
	}
	if _, err := env.timing.CommitStart(ctx, env.ref, start); err != nil {
		t.Fatal(err)
	}
	env.clock.Advance(30 * time.Minute)

	click := env.postControlMessage(t, timingControlsContent(), finishControl(), forfeitControl())
	if err := env.controller.Finish(ctx, env.ref, click); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	if err := env.controller.RecordResult(ctx, env.ref, organizerDiscordID, "0:29:30", nil); err != nil {
		t.Fatalf("RecordResult failed: %v", err)
	}

	env.clock.Advance(DefaultConfig().RevertWindow)
	time.Sleep(50 * time.Millisecond)

	rec := env.timing.record(env.ref)
	if rec.Finish == nil || *rec.Finish != 29*time.Minute+30*time.Second {
		t.Errorf("organizer result must stand, got %v", rec.Finish)
	}
}

func TestQualifierFinalizeMarksSubmitted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	teamID := uuid.New()
	ref := models.QualifierAttempt(teamID, models.AsyncKindQualifier1)
	env.quals.req = &models.TeamAsyncRequest{
		TeamID:   teamID,
		EventID:  env.races.event.ID,
		Kind:     models.AsyncKindQualifier1,
		TeamName: "Team Z",
		Members:  []models.Member{{UserID: uuid.New(), DiscordID: runnerDiscordID, Name: "Zelda"}},
	}
	env.quals.seedData = seed.Data{Permalink: "https://example.com/seed/q1"}

	start := env.clock.Now()
	if _, err := env.timing.EnsurePlaceholder(ctx, ref); err != nil {
		t.Fatal(err)
	}
	if _, err := env.timing.CommitStart(ctx, ref, start); err != nil {
		t.Fatal(err)
	}
	env.clock.Advance(80 * time.Minute)

	click := env.postControlMessage(t, timingControlsContent(), finishControl(), forfeitControl())
	if err := env.controller.Finish(ctx, ref, click); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	env.clock.BlockUntil(1)
	env.clock.Advance(DefaultConfig().RevertWindow)

	waitFor(t, func() bool { return env.quals.wasSubmitted() }, "qualifier submission never marked")

	waitFor(t, func() bool {
		for _, m := range env.surface.Messages(organizerChannelID) {
			if strings.Contains(m.Content, "Team Z") && strings.Contains(m.Content, "01:20:00") {
				return true
			}
		}
		return false
	}, "organizer submission notice never posted")

	if env.notifier.callCount() != 0 {
		t.Error("qualifier attempts must not trigger the match completion check")
	}
}

func TestReconcileRearmsPendingWindow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	start := env.clock.Now()
	if _, err := env.timing.EnsurePlaceholder(ctx, env.ref); err != nil {
		t.Fatal(err)
	}
	if _, err := env.timing.CommitStart(ctx, env.ref, start); err != nil {
		t.Fatal(err)
	}
	env.timing.pending = []timing.PendingFinish{{Ref: env.ref, StartTime: start, ThreadID: threadID}}

	// The revert-window message survives in the thread from before the
	// restart.
	if _, err := env.surface.Post(ctx, threadID, finishPendingContent("01:10:00"), revertControl()); err != nil {
		t.Fatal(err)
	}

	if err := env.controller.Reconcile(ctx); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	env.clock.BlockUntil(1)
	env.clock.Advance(DefaultConfig().RevertWindow)

	waitFor(t, func() bool {
		rec := env.timing.record(env.ref)
		return rec != nil && rec.Recorded()
	}, "reconciled finish never committed")

	rec := env.timing.record(env.ref)
	if rec.Finish == nil || *rec.Finish != 70*time.Minute {
		t.Errorf("reconciled finish = %v, want 70m", rec.Finish)
	}
}

func TestResolveThreadFallsThroughToQualifiers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ref, err := env.controller.ResolveThread(ctx, threadID)
	if err != nil {
		t.Fatalf("ResolveThread failed: %v", err)
	}
	if ref != env.ref {
		t.Errorf("resolved %v, want %v", ref, env.ref)
	}

	if _, err := env.controller.ResolveThread(ctx, 424242); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown thread should resolve to ErrNotFound, got %v", err)
	}
}
