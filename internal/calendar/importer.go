// Package calendar imports events from iCalendar (.ics) files into an
// owner's schedule.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	log "github.com/sirupsen/logrus"

	"github.com/viva-scheduler/backend/internal/apperr"
	"github.com/viva-scheduler/backend/internal/schedule"
	"github.com/viva-scheduler/backend/internal/storage/models"
)

// EventCreator admits one candidate through validation and conflict
// resolution. *schedule.Service implements it.
type EventCreator interface {
	Create(ctx context.Context, c schedule.Candidate) (*models.Event, error)
}

// Notifier is told when an import finishes.
type Notifier interface {
	BroadcastImportFinished(ownerID string, imported, skipped int)
}

// Skipped explains why one VEVENT was not imported. Errors holds the
// violated field rules and ConflictsWith the blocking event ids; Reason is
// a readable summary of either.
type Skipped struct {
	UID           string   `json:"uid,omitempty"`
	Summary       string   `json:"summary,omitempty"`
	Reason        string   `json:"reason"`
	Errors        []string `json:"errors,omitempty"`
	ConflictsWith []string `json:"conflictsWith,omitempty"`
}

// Report summarizes an import.
type Report struct {
	OwnerID  string    `json:"ownerId"`
	Imported []string  `json:"imported"`
	Skipped  []Skipped `json:"skipped"`
}

// Importer turns VEVENTs into schedule events.
type Importer struct {
	events   EventCreator
	notifier Notifier
	location *time.Location
}

// NewImporter creates a new importer. notifier may be nil.
func NewImporter(events EventCreator, notifier Notifier, loc *time.Location) *Importer {
	if loc == nil {
		loc = time.UTC
	}
	return &Importer{events: events, notifier: notifier, location: loc}
}

// Import parses an .ics stream and creates one event per VEVENT for
// ownerID. Events that fail validation or conflict with the schedule
// (including earlier events of the same file) are skipped and reported.
// A store failure aborts the import; events created before it remain.
func (i *Importer) Import(ctx context.Context, ownerID string, r io.Reader) (*Report, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, &apperr.ValidationError{Errors: []string{schedule.MsgOwnerRequired}}
	}

	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return nil, &apperr.ValidationError{Errors: []string{"Calendar file could not be parsed: " + err.Error()}}
	}

	report := &Report{OwnerID: ownerID, Imported: []string{}, Skipped: []Skipped{}}

	for _, ve := range cal.Events() {
		uid := propertyValue(ve, ical.ComponentPropertyUniqueId)
		summary := propertyValue(ve, ical.ComponentPropertySummary)

		c, reason := i.candidate(ownerID, ve)
		if reason != "" {
			report.Skipped = append(report.Skipped, Skipped{UID: uid, Summary: summary, Reason: reason})
			continue
		}

		event, err := i.events.Create(ctx, c)
		if err != nil {
			skipped, ok := skipFor(err)
			if !ok {
				return report, err
			}
			skipped.UID, skipped.Summary = uid, summary
			report.Skipped = append(report.Skipped, skipped)
			continue
		}
		report.Imported = append(report.Imported, event.ID)
	}

	log.WithFields(log.Fields{
		"owner_id": ownerID,
		"imported": len(report.Imported),
		"skipped":  len(report.Skipped),
	}).Info("Calendar import completed")

	if i.notifier != nil {
		i.notifier.BroadcastImportFinished(ownerID, len(report.Imported), len(report.Skipped))
	}
	return report, nil
}

// candidate maps a VEVENT onto an event candidate, or explains why it
// cannot be imported.
func (i *Importer) candidate(ownerID string, ve *ical.VEvent) (schedule.Candidate, string) {
	if ve.GetProperty(ical.ComponentPropertyRrule) != nil {
		return schedule.Candidate{}, "recurring events are not supported"
	}

	start, end, err := i.times(ve)
	if err != nil {
		return schedule.Candidate{}, err.Error()
	}

	return schedule.Candidate{
		OwnerID:     ownerID,
		Title:       propertyValue(ve, ical.ComponentPropertySummary),
		Description: propertyValue(ve, ical.ComponentPropertyDescription),
		Start:       start.Format(time.RFC3339),
		End:         end.Format(time.RFC3339),
		Location:    propertyValue(ve, ical.ComponentPropertyLocation),
		Color:       models.DefaultEventColor,
	}, ""
}

// times resolves DTSTART and DTEND. All-day events cover whole days in the
// canonical location; a missing DTEND means one day (all-day) or zero
// duration, which validation then rejects.
func (i *Importer) times(ve *ical.VEvent) (time.Time, time.Time, error) {
	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return time.Time{}, time.Time{}, errors.New("missing DTSTART")
	}

	if isAllDay(dtStart) {
		start, err := time.ParseInLocation("20060102", strings.TrimSpace(dtStart.Value), i.location)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid DTSTART %q", dtStart.Value)
		}
		end := start.AddDate(0, 0, 1)
		if dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd); dtEnd != nil {
			if end, err = time.ParseInLocation("20060102", strings.TrimSpace(dtEnd.Value), i.location); err != nil {
				return time.Time{}, time.Time{}, fmt.Errorf("invalid DTEND %q", dtEnd.Value)
			}
		}
		return start, end, nil
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid DTSTART %q", dtStart.Value)
	}
	end := start
	if ve.GetProperty(ical.ComponentPropertyDtEnd) != nil {
		if end, err = ve.GetEndAt(); err != nil {
			return time.Time{}, time.Time{}, errors.New("invalid DTEND")
		}
	}
	return start.In(i.location), end.In(i.location), nil
}

func isAllDay(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

func propertyValue(ve *ical.VEvent, name ical.ComponentProperty) string {
	if p := ve.GetProperty(name); p != nil {
		return strings.TrimSpace(p.Value)
	}
	return ""
}

// skipFor turns per-event rejections into report entries. Any other
// error aborts the import.
func skipFor(err error) (Skipped, bool) {
	var verr *apperr.ValidationError
	if errors.As(err, &verr) {
		return Skipped{Reason: strings.Join(verr.Errors, "; "), Errors: verr.Errors}, true
	}
	var cerr *apperr.ConflictError
	if errors.As(err, &cerr) {
		return Skipped{
			Reason:        "conflicts with " + strings.Join(cerr.ConflictsWith, ", "),
			ConflictsWith: cerr.ConflictsWith,
		}, true
	}
	return Skipped{}, false
}
