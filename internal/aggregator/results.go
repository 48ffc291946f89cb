package aggregator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/TreZc0/hyrule-town-hall-sub000/internal/models"
	"github.com/TreZc0/hyrule-town-hall-sub000/internal/timefmt"
)

// Result is one entrant's final line in a completed race.
type Result struct {
	Entrant models.Entrant
	Record  models.AsyncTimeRecord
	Place   int
}

// Forfeit reports whether this line is a DNF.
func (r Result) Forfeit() bool {
	return r.Record.Forfeited()
}

// Elapsed renders the finish time, "DNF" for forfeits.
func (r Result) Elapsed() string {
	if r.Record.Finish == nil {
		return "DNF"
	}
	return timefmt.Format(*r.Record.Finish)
}

// orderResults ranks the committed records: finishers by elapsed time,
// forfeits after every finisher. Ties and forfeit ordering fall back to
// the part number so the outcome is stable.
func orderResults(race *models.Race, records []models.AsyncTimeRecord) []Result {
	recorded := make([]models.AsyncTimeRecord, 0, len(records))
	for _, rec := range records {
		if rec.Recorded() {
			recorded = append(recorded, rec)
		}
	}

	sort.SliceStable(recorded, func(i, j int) bool {
		a, b := recorded[i], recorded[j]
		switch {
		case a.Finish == nil && b.Finish == nil:
			return a.Ref.Part < b.Ref.Part
		case a.Finish == nil:
			return false
		case b.Finish == nil:
			return true
		case *a.Finish != *b.Finish:
			return *a.Finish < *b.Finish
		default:
			return a.Ref.Part < b.Ref.Part
		}
	})

	results := make([]Result, 0, len(recorded))
	for i, rec := range recorded {
		entrant := race.Entrant(rec.Ref.Part)
		if entrant == nil {
			continue
		}
		results = append(results, Result{
			Entrant: *entrant,
			Record:  rec,
			Place:   i + 1,
		})
	}
	return results
}

// announcement renders the results post. Head-to-head races read as a
// defeat line; larger fields get a placement list. Recording links
// follow when any runner submitted one.
func announcement(race *models.Race, results []Result) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Async results for %s:\n", race.PhaseRound()))

	if len(results) == 2 {
		winner, loser := results[0], results[1]
		b.WriteString(fmt.Sprintf("**%s** (%s) defeats **%s** (%s)",
			winner.Entrant.Name, winner.Elapsed(),
			loser.Entrant.Name, loser.Elapsed()))
	} else {
		for i, r := range results {
			if i > 0 {
				b.WriteString("\n")
			}
			b.WriteString(fmt.Sprintf("%s: **%s** (%s)", timefmt.Ordinal(r.Place), r.Entrant.Name, r.Elapsed()))
		}
	}

	var recordings []string
	for _, r := range results {
		if r.Record.VodLink != nil && *r.Record.VodLink != "" {
			recordings = append(recordings, fmt.Sprintf("%s: %s", r.Entrant.Name, *r.Record.VodLink))
		}
	}
	if len(recordings) > 0 {
		b.WriteString("\nRecordings:\n")
		b.WriteString(strings.Join(recordings, "\n"))
	}

	return b.String()
}
