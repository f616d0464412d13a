package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/viva-scheduler/backend/internal/storage/models"
)

func clock(hour, minute int) time.Time {
	return time.Date(2026, 11, 3, hour, minute, 0, 0, time.UTC)
}

func event(id, owner string, start, end time.Time) models.Event {
	return models.Event{
		ID:      id,
		OwnerID: owner,
		Title:   "Event " + id,
		Start:   start,
		End:     end,
		Color:   "#abc",
	}
}

func TestResolve_OverlapIsRejected(t *testing.T) {
	existing := []models.Event{event("first", "ex-1", clock(10, 0), clock(11, 0))}
	candidate := event("", "ex-1", clock(10, 30), clock(11, 30))

	res := Resolve(candidate, existing, "")

	assert.False(t, res.Accepted)
	assert.Equal(t, []string{"first"}, res.ConflictsWith)
}

func TestResolve_TouchingIsAccepted(t *testing.T) {
	existing := []models.Event{event("first", "ex-1", clock(10, 0), clock(11, 0))}
	candidate := event("", "ex-1", clock(11, 0), clock(12, 0))

	res := Resolve(candidate, existing, "")

	assert.True(t, res.Accepted)
	assert.Empty(t, res.ConflictsWith)
}

func TestResolve_ScopedToOwner(t *testing.T) {
	existing := []models.Event{event("other", "ex-2", clock(10, 0), clock(11, 0))}
	candidate := event("", "ex-1", clock(10, 0), clock(11, 0))

	assert.True(t, Resolve(candidate, existing, "").Accepted)
}

func TestResolve_ReportsEveryConflictInStartOrder(t *testing.T) {
	existing := []models.Event{
		event("c", "ex-1", clock(13, 0), clock(14, 0)),
		event("a", "ex-1", clock(9, 0), clock(10, 30)),
		event("free", "ex-1", clock(15, 0), clock(16, 0)),
		event("b", "ex-1", clock(11, 0), clock(12, 0)),
	}
	candidate := event("", "ex-1", clock(10, 0), clock(13, 30))

	res := Resolve(candidate, existing, "")

	assert.False(t, res.Accepted)
	assert.Equal(t, []string{"a", "b", "c"}, res.ConflictsWith)
	assert.Equal(t, "c", existing[0].ID, "snapshot must not be reordered")
}

func TestResolve_ExcludeID(t *testing.T) {
	self := event("self", "ex-1", clock(10, 0), clock(11, 0))
	existing := []models.Event{self, event("other", "ex-1", clock(12, 0), clock(13, 0))}

	moved := self
	moved.Start, moved.End = clock(10, 15), clock(11, 15)

	res := Resolve(moved, existing, self.ID)
	assert.True(t, res.Accepted)
	assert.NotContains(t, res.ConflictsWith, self.ID)

	withoutExclude := Resolve(moved, existing, "")
	assert.Equal(t, []string{"self"}, withoutExclude.ConflictsWith)
}

func TestResolve_Idempotent(t *testing.T) {
	existing := []models.Event{
		event("a", "ex-1", clock(9, 0), clock(10, 30)),
		event("b", "ex-1", clock(10, 0), clock(12, 0)),
	}
	candidate := event("", "ex-1", clock(10, 0), clock(11, 0))

	assert.Equal(t, Resolve(candidate, existing, ""), Resolve(candidate, existing, ""))
}

func TestConflicts_OverlapWindow(t *testing.T) {
	existing := []models.Event{event("first", "ex-1", clock(10, 0), clock(11, 0))}
	candidate := event("", "ex-1", clock(10, 30), clock(11, 30))

	conflicts := Conflicts(candidate, existing, "")

	if assert.Len(t, conflicts, 1) {
		assert.Equal(t, "first", conflicts[0].EventID)
		assert.Equal(t, "Event first", conflicts[0].Title)
		assert.Equal(t, clock(10, 30), conflicts[0].OverlapStart)
		assert.Equal(t, clock(11, 0), conflicts[0].OverlapEnd)
	}
}
