package aggregator

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

	"github.com/TreZc0/hyrule-town-hall-sub000/internal/messaging/memory"
	"github.com/TreZc0/hyrule-town-hall-sub000/internal/models"
)

const (
	resultsChannelID   = int64(30)
	schedulingThreadID = int64(40)
)

type fakeRaces struct {
	race  *models.Race
	event *models.Event
}

func (f *fakeRaces) GetRace(_ context.Context, id uuid.UUID) (*models.Race, error) {
	if f.race == nil || f.race.ID != id {
		return nil, sql.ErrNoRows
	}
	return f.race, nil
}

func (f *fakeRaces) GetEvent(_ context.Context, id uuid.UUID) (*models.Event, error) {
	if f.event == nil || f.event.ID != id {
		return nil, sql.ErrNoRows
	}
	return f.event, nil
}

type fakeTiming struct {
	records []models.AsyncTimeRecord
	listErr error
}

func (f *fakeTiming) CountRecorded(_ context.Context, _ uuid.UUID) (int, error) {
	n := 0
	for _, rec := range f.records {
		if rec.Recorded() {
			n++
		}
	}
	return n, nil
}

func (f *fakeTiming) ListRecords(_ context.Context, _ uuid.UUID) ([]models.AsyncTimeRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]models.AsyncTimeRecord(nil), f.records...), nil
}

type fakeReporter struct {
	name string
	err  error

	mu    sync.Mutex
	calls int
}

func (f *fakeReporter) Name() string { return f.name }

func (f *fakeReporter) Report(_ context.Context, _ *models.Race, _ []Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

func (f *fakeReporter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
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

func testRace() (*models.Race, *models.Event) {
	raceID := uuid.New()
	eventID := uuid.New()
	thread := schedulingThreadID
	race := &models.Race{
		ID:      raceID,
		EventID: eventID,
		Phase:   "Bracket",
		Round:   "Quarterfinal",
		Entrants: []models.Entrant{
			{TeamID: uuid.New(), Name: "Alice"},
			{TeamID: uuid.New(), Name: "Bob"},
		},
		Schedule:         models.Schedule{Kind: models.ScheduleAsync},
		SchedulingThread: &thread,
	}
	ch := resultsChannelID
	event := &models.Event{ID: eventID, Slug: "test-event", ResultsChannel: &ch}
	return race, event
}

func recordFor(raceID uuid.UUID, part models.AsyncPart, finish *time.Duration, vod *string) models.AsyncTimeRecord {
	by := int64(1)
	at := time.Now()
	return models.AsyncTimeRecord{
		Ref:        models.MatchAttempt(raceID, part),
		Finish:     finish,
		RecordedBy: &by,
		RecordedAt: &at,
		VodLink:    vod,
	}
}

func durPtr(d time.Duration) *time.Duration { return &d }
func strPtr(s string) *string               { return &s }

func TestTimeRecordedBeforeCompleteIsNoop(t *testing.T) {
	race, event := testRace()
	surface := memory.New()
	timing := &fakeTiming{records: []models.AsyncTimeRecord{
		recordFor(race.ID, 1, durPtr(time.Hour), nil),
		{Ref: models.MatchAttempt(race.ID, 2)}, // placeholder, not recorded
	}}
	agg := New(surface, &fakeRaces{race: race, event: event}, timing, nil, &fakeOutbox{}, clockwork.NewRealClock())

	if err := agg.TimeRecorded(context.Background(), race.ID); err != nil {
		t.Fatalf("TimeRecorded failed: %v", err)
	}
	if msgs := surface.Messages(resultsChannelID); len(msgs) != 0 {
		t.Errorf("incomplete race must not announce, got %v", msgs)
	}
}

func TestCompleteRaceAnnouncesOnce(t *testing.T) {
	race, event := testRace()
	surface := memory.New()
	timing := &fakeTiming{records: []models.AsyncTimeRecord{
		recordFor(race.ID, 2, durPtr(90*time.Minute), strPtr("https://vod.example/bob")),
		recordFor(race.ID, 1, durPtr(85*time.Minute), nil),
	}}
	reporter := &fakeReporter{name: "startgg"}
	outbox := &fakeOutbox{}
	agg := New(surface, &fakeRaces{race: race, event: event}, timing, []Reporter{reporter}, outbox, clockwork.NewRealClock())

	if err := agg.TimeRecorded(context.Background(), race.ID); err != nil {
		t.Fatalf("TimeRecorded failed: %v", err)
	}

	resultMsgs := surface.Messages(resultsChannelID)
	if len(resultMsgs) != 1 {
		t.Fatalf("expected one results post, got %d", len(resultMsgs))
	}
	content := resultMsgs[0].Content
	if !strings.Contains(content, "**Alice** (01:25:00) defeats **Bob** (01:30:00)") {
		t.Errorf("unexpected defeat line: %q", content)
	}
	if !strings.Contains(content, "https://vod.example/bob") {
		t.Errorf("expected recording link in announcement: %q", content)
	}

	if threadMsgs := surface.Messages(schedulingThreadID); len(threadMsgs) != 1 {
		t.Errorf("expected results echoed to scheduling thread, got %d posts", len(threadMsgs))
	}
	if reporter.callCount() != 1 {
		t.Errorf("expected one reporter call, got %d", reporter.callCount())
	}
	if got := outbox.types(); len(got) != 1 || got[0] != "RaceCompleted" {
		t.Errorf("expected one RaceCompleted event, got %v", got)
	}

	// A re-record after completion must not announce again.
	if err := agg.TimeRecorded(context.Background(), race.ID); err != nil {
		t.Fatalf("second TimeRecorded failed: %v", err)
	}
	if len(surface.Messages(resultsChannelID)) != 1 {
		t.Error("race announced twice")
	}
}

func TestTransientReadFailureDoesNotSwallowAnnouncement(t *testing.T) {
	race, event := testRace()
	surface := memory.New()
	timing := &fakeTiming{
		records: []models.AsyncTimeRecord{
			recordFor(race.ID, 1, durPtr(time.Hour), nil),
			recordFor(race.ID, 2, durPtr(time.Hour+5*time.Minute), nil),
		},
		listErr: errors.New("connection reset"),
	}
	outbox := &fakeOutbox{}
	agg := New(surface, &fakeRaces{race: race, event: event}, timing, nil, outbox, clockwork.NewRealClock())

	if err := agg.TimeRecorded(context.Background(), race.ID); err == nil {
		t.Fatal("expected the read failure to surface")
	}
	if len(surface.Messages(resultsChannelID)) != 0 {
		t.Fatal("failed completion check must not announce")
	}

	// The next completion check finds the store healthy and must still
	// announce exactly once.
	timing.listErr = nil
	if err := agg.TimeRecorded(context.Background(), race.ID); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if len(surface.Messages(resultsChannelID)) != 1 {
		t.Errorf("expected one announcement after retry, got %d", len(surface.Messages(resultsChannelID)))
	}
	if got := outbox.types(); len(got) != 1 || got[0] != "RaceCompleted" {
		t.Errorf("expected one RaceCompleted event, got %v", got)
	}

	if err := agg.TimeRecorded(context.Background(), race.ID); err != nil {
		t.Fatalf("post-announce TimeRecorded failed: %v", err)
	}
	if len(surface.Messages(resultsChannelID)) != 1 {
		t.Error("race announced twice")
	}
}

func TestForfeitsOrderLast(t *testing.T) {
	race, event := testRace()
	surface := memory.New()
	timing := &fakeTiming{records: []models.AsyncTimeRecord{
		recordFor(race.ID, 1, nil, nil), // forfeit despite being part 1
		recordFor(race.ID, 2, durPtr(2*time.Hour), nil),
	}}
	agg := New(surface, &fakeRaces{race: race, event: event}, timing, nil, &fakeOutbox{}, clockwork.NewRealClock())

	if err := agg.TimeRecorded(context.Background(), race.ID); err != nil {
		t.Fatalf("TimeRecorded failed: %v", err)
	}

	content := surface.Messages(resultsChannelID)[0].Content
	if !strings.Contains(content, "**Bob** (02:00:00) defeats **Alice** (DNF)") {
		t.Errorf("forfeit must lose regardless of part order: %q", content)
	}
}

func TestReporterFailureIsIsolated(t *testing.T) {
	race, event := testRace()
	surface := memory.New()
	timing := &fakeTiming{records: []models.AsyncTimeRecord{
		recordFor(race.ID, 1, durPtr(time.Hour), nil),
		recordFor(race.ID, 2, durPtr(time.Hour+time.Minute), nil),
	}}
	failing := &fakeReporter{name: "startgg", err: errors.New("api down")}
	healthy := &fakeReporter{name: "challonge"}
	agg := New(surface, &fakeRaces{race: race, event: event}, timing, []Reporter{failing, healthy}, &fakeOutbox{}, clockwork.NewRealClock())

	if err := agg.TimeRecorded(context.Background(), race.ID); err != nil {
		t.Fatalf("TimeRecorded failed: %v", err)
	}

	if healthy.callCount() != 1 {
		t.Error("second reporter must run even when the first fails")
	}
	if len(surface.Messages(resultsChannelID)) != 1 {
		t.Error("announcement must go out even when a reporter fails")
	}
}

func TestThreeWayOrdering(t *testing.T) {
	race, event := testRace()
	race.Entrants = append(race.Entrants, models.Entrant{TeamID: uuid.New(), Name: "Carol"})
	surface := memory.New()
	timing := &fakeTiming{records: []models.AsyncTimeRecord{
		recordFor(race.ID, 1, durPtr(95*time.Minute), nil),
		recordFor(race.ID, 2, nil, nil),
		recordFor(race.ID, 3, durPtr(90*time.Minute), nil),
	}}
	agg := New(surface, &fakeRaces{race: race, event: event}, timing, nil, &fakeOutbox{}, clockwork.NewRealClock())

	if err := agg.TimeRecorded(context.Background(), race.ID); err != nil {
		t.Fatalf("TimeRecorded failed: %v", err)
	}

	content := surface.Messages(resultsChannelID)[0].Content
	first := strings.Index(content, "Carol")
	second := strings.Index(content, "Alice")
	third := strings.Index(content, "Bob")
	if first == -1 || second == -1 || third == -1 || !(first < second && second < third) {
		t.Errorf("expected Carol, Alice, Bob in order: %q", content)
	}
	if !strings.Contains(content, "3rd: **Bob** (DNF)") {
		t.Errorf("expected Bob placed last as DNF: %q", content)
	}
}
