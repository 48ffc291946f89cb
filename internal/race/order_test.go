package race

import (
	"testing"
	"time"

	"github.com/TreZc0/hyrule-town-hall-sub000/internal/models"
)

func asyncSchedule(starts ...*time.Time) models.Schedule {
	s := models.Schedule{Kind: models.ScheduleAsync}
	copy(s.AsyncStarts[:], starts)
	return s
}

func tp(t time.Time) *time.Time { return &t }

func TestDisplayOrderSortsByStart(t *testing.T) {
	base := time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC)

	// Part 2 runs first, then part 1.
	s := asyncSchedule(tp(base.Add(2*time.Hour)), tp(base))
	got := DisplayOrder(s)
	want := []models.AsyncPart{2, 1}
	if len(got) != len(want) {
		t.Fatalf("DisplayOrder = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("DisplayOrder = %v, want %v", got, want)
		}
	}
}

func TestDisplayOrderIndependentOfPartNumber(t *testing.T) {
	base := time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC)

	// Swapping which part holds which timestamp swaps the order;
	// the result depends only on the timestamps.
	early, late := tp(base), tp(base.Add(time.Hour))

	first := DisplayOrder(asyncSchedule(early, late))
	second := DisplayOrder(asyncSchedule(late, early))

	if first[0] != 1 || second[0] != 2 {
		t.Errorf("order not derived from start times: %v / %v", first, second)
	}
}

func TestDisplayOrderSkipsUnpopulatedParts(t *testing.T) {
	base := time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC)

	s := asyncSchedule(nil, tp(base), tp(base.Add(time.Minute)))
	got := DisplayOrder(s)
	if len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Errorf("DisplayOrder = %v, want [2 3]", got)
	}
}

func TestDisplayOrderTiesBreakOnPart(t *testing.T) {
	base := time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC)

	s := asyncSchedule(tp(base), tp(base), tp(base))
	got := DisplayOrder(s)
	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Errorf("DisplayOrder = %v, want [1 2 3]", got)
	}
}

func TestDisplayRank(t *testing.T) {
	base := time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC)
	s := asyncSchedule(tp(base.Add(time.Hour)), tp(base))

	if got := DisplayRank(s, 2); got != 1 {
		t.Errorf("DisplayRank(part 2) = %d, want 1", got)
	}
	if got := DisplayRank(s, 1); got != 2 {
		t.Errorf("DisplayRank(part 1) = %d, want 2", got)
	}
	if got := DisplayRank(s, 3); got != 0 {
		t.Errorf("DisplayRank(part 3) = %d, want 0", got)
	}
}
