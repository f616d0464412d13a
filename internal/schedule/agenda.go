package schedule

import (
	"sort"
	"time"

	"github.com/viva-scheduler/backend/internal/interval"
	"github.com/viva-scheduler/backend/internal/storage/models"
)

// AgendaDay groups the events touching one calendar day.
type AgendaDay struct {
	Day    string         `json:"day"`
	Events []models.Event `json:"events"`
}

// Aggregate groups events by the calendar days (in loc) they touch. Days are
// ascending; events within a day are ordered by start, end, then id. An event
// running past midnight is listed under each day it touches.
func Aggregate(events []models.Event, loc *time.Location) []AgendaDay {
	if loc == nil {
		loc = time.UTC
	}

	byDay := make(map[string][]models.Event)
	for _, e := range sortedByStart(events) {
		for _, day := range interval.SpansDays(interval.New(e.Start, e.End), loc) {
			byDay[day] = append(byDay[day], e)
		}
	}

	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Strings(days)

	agenda := make([]AgendaDay, 0, len(days))
	for _, day := range days {
		agenda = append(agenda, AgendaDay{Day: day, Events: byDay[day]})
	}
	return agenda
}
