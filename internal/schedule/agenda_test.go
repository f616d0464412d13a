package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viva-scheduler/backend/internal/storage/models"
)

func TestAggregate_GroupsAndOrders(t *testing.T) {
	nextDay := func(hour int) time.Time { return clock(hour, 0).AddDate(0, 0, 1) }

	events := []models.Event{
		event("late", "ex-1", clock(15, 0), clock(16, 0)),
		event("tomorrow", "ex-1", nextDay(9), nextDay(10)),
		event("early-b", "ex-1", clock(9, 0), clock(10, 0)),
		event("early-a", "ex-1", clock(9, 0), clock(10, 0)),
	}

	agenda := Aggregate(events, time.UTC)

	require.Len(t, agenda, 2)
	assert.Equal(t, "2026-11-03", agenda[0].Day)
	assert.Equal(t, []string{"early-a", "early-b", "late"}, ids(agenda[0].Events))
	assert.Equal(t, "2026-11-04", agenda[1].Day)
	assert.Equal(t, []string{"tomorrow"}, ids(agenda[1].Events))
}

func TestAggregate_EventAcrossMidnight(t *testing.T) {
	overnight := event("night", "ex-1", clock(22, 0), clock(22, 0).Add(4*time.Hour))

	agenda := Aggregate([]models.Event{overnight}, time.UTC)

	require.Len(t, agenda, 2)
	assert.Equal(t, "2026-11-03", agenda[0].Day)
	assert.Equal(t, "2026-11-04", agenda[1].Day)
	assert.Equal(t, "night", agenda[1].Events[0].ID)
}

func TestAggregate_Empty(t *testing.T) {
	agenda := Aggregate(nil, nil)
	assert.NotNil(t, agenda)
	assert.Empty(t, agenda)
}

func TestAggregate_Deterministic(t *testing.T) {
	events := []models.Event{
		event("b", "ex-1", clock(9, 0), clock(10, 0)),
		event("a", "ex-2", clock(9, 0), clock(10, 0)),
		event("c", "ex-1", clock(8, 0), clock(12, 0)),
	}
	reversed := []models.Event{events[2], events[1], events[0]}

	assert.Equal(t, Aggregate(events, time.UTC), Aggregate(reversed, time.UTC))
}

func ids(events []models.Event) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.ID)
	}
	return out
}
