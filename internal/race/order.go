package race

import (
	"sort"

	"github.com/TreZc0/hyrule-town-hall-sub000/internal/models"
)

// DisplayOrder ranks the populated async parts of a schedule by their
// start timestamps, earliest first. Ties break on the lower part
// number, so the order is a pure function of the schedule. Parts with
// no start are excluded.
func DisplayOrder(s models.Schedule) []models.AsyncPart {
	var parts []models.AsyncPart
	for p := models.AsyncPart(1); p <= models.MaxAsyncParts; p++ {
		if s.AsyncStart(p) != nil {
			parts = append(parts, p)
		}
	}
	sort.SliceStable(parts, func(i, j int) bool {
		ti := s.AsyncStart(parts[i])
		tj := s.AsyncStart(parts[j])
		if ti.Equal(*tj) {
			return parts[i] < parts[j]
		}
		return ti.Before(*tj)
	})
	return parts
}

// DisplayRank returns the 1-based position of a part in the display
// order, 0 when the part has no scheduled start.
func DisplayRank(s models.Schedule, part models.AsyncPart) int {
	for i, p := range DisplayOrder(s) {
		if p == part {
			return i + 1
		}
	}
	return 0
}
