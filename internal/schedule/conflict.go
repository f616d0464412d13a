package schedule

import (
	"sort"
	"time"

	"github.com/viva-scheduler/backend/internal/interval"
	"github.com/viva-scheduler/backend/internal/storage/models"
)

// Resolution is the outcome of Resolve.
type Resolution struct {
	Accepted      bool     `json:"accepted"`
	ConflictsWith []string `json:"conflictsWith"`
}

// Conflict describes one existing event blocking a candidate.
type Conflict struct {
	EventID      string    `json:"eventId"`
	Title        string    `json:"title"`
	OverlapStart time.Time `json:"overlapStart"`
	OverlapEnd   time.Time `json:"overlapEnd"`
}

// Resolve decides whether a validated candidate may be committed against
// existing. Only events of the candidate's owner are considered, and the
// event with excludeID is skipped so that an edit or a move does not collide
// with itself. Every overlapping event is reported, in start order.
func Resolve(candidate models.Event, existing []models.Event, excludeID string) Resolution {
	conflicts := Conflicts(candidate, existing, excludeID)

	ids := make([]string, 0, len(conflicts))
	for _, c := range conflicts {
		ids = append(ids, c.EventID)
	}

	return Resolution{
		Accepted:      len(ids) == 0,
		ConflictsWith: ids,
	}
}

// Conflicts returns the blocking events of candidate with their overlap
// windows. Resolve is built on it.
func Conflicts(candidate models.Event, existing []models.Event, excludeID string) []Conflict {
	span := interval.New(candidate.Start, candidate.End)

	var conflicts []Conflict
	for _, e := range sortedByStart(existing) {
		if e.OwnerID != candidate.OwnerID {
			continue
		}
		if excludeID != "" && e.ID == excludeID {
			continue
		}

		other := interval.New(e.Start, e.End)
		if !interval.Overlaps(span, other) {
			continue
		}

		overlap := interval.Intersection(span, other)
		conflicts = append(conflicts, Conflict{
			EventID:      e.ID,
			Title:        e.Title,
			OverlapStart: overlap.Start,
			OverlapEnd:   overlap.End,
		})
	}

	return conflicts
}

// sortedByStart returns a copy of events ordered by start, end, then id.
// The input snapshot is never reordered.
func sortedByStart(events []models.Event) []models.Event {
	out := make([]models.Event, len(events))
	copy(out, events)

	sort.SliceStable(out, func(i, j int) bool {
		a := interval.New(out[i].Start, out[i].End)
		b := interval.New(out[j].Start, out[j].End)
		if interval.Less(a, b) {
			return true
		}
		if interval.Less(b, a) {
			return false
		}
		return out[i].ID < out[j].ID
	})

	return out
}
