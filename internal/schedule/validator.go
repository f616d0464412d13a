// Package schedule holds the scheduling core: event validation, conflict
// resolution and agenda aggregation, plus the service that composes them
// with the event store.
package schedule

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/viva-scheduler/backend/internal/interval"
	"github.com/viva-scheduler/backend/internal/storage/models"
)

// Candidate is a proposed event as received from a form, a drag handler or
// an import. Timestamps are RFC 3339 strings and any field may be missing.
type Candidate struct {
	ID          string `json:"id,omitempty"`
	OwnerID     string `json:"ownerId"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Location    string `json:"location,omitempty"`
	Color       string `json:"color"`
}

// CandidateFromEvent turns a stored event back into a candidate, so that
// partial edits (such as a move) can be revalidated as a whole.
func CandidateFromEvent(e models.Event) Candidate {
	return Candidate{
		ID:          e.ID,
		OwnerID:     e.OwnerID,
		Title:       e.Title,
		Description: e.Description,
		Start:       e.Start.Format(time.RFC3339Nano),
		End:         e.End.Format(time.RFC3339Nano),
		Location:    e.Location,
		Color:       e.Color,
	}
}

// Validation is the outcome of Validate. Event is only populated when Valid.
type Validation struct {
	Valid  bool         `json:"valid"`
	Errors []string     `json:"errors"`
	Event  models.Event `json:"-"`
}

// Validation messages, in rule order.
const (
	MsgTitleRequired   = "Title is required"
	MsgTitleTooShort   = "Title must be at least 3 characters long"
	MsgTitleTooLong    = "Title must be at most 50 characters long"
	MsgDescriptionLong = "Description must be at most 500 characters long"
	MsgStartRequired   = "Start time is required"
	MsgStartInvalid    = "Start time is not a valid timestamp"
	MsgEndRequired     = "End time is required"
	MsgEndInvalid      = "End time is not a valid timestamp"
	MsgEndBeforeStart  = "End time must be after start time"
	MsgDurationTooLong = "Event cannot last longer than 24 hours"
	MsgLocationTooLong = "Location must be at most 100 characters long"
	MsgColorInvalid    = "Color must be a hex color such as #RGB or #RRGGBB"
	MsgOwnerRequired   = "Owner is required"
)

var (
	fieldRules = validator.New()
	hexColor   = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

	titleMin       = fmt.Sprintf("min=%d", models.TitleMinLength)
	titleMax       = fmt.Sprintf("max=%d", models.TitleMaxLength)
	descriptionMax = fmt.Sprintf("max=%d", models.DescriptionMaxLength)
	locationMax    = fmt.Sprintf("max=%d", models.LocationMaxLength)
)

// Validate checks every field rule of c and collects all violations.
// It never fails for bad data; an invalid candidate is a normal result.
func Validate(c Candidate) Validation {
	var errs []string
	title := strings.TrimSpace(c.Title)

	if title == "" {
		errs = append(errs, MsgTitleRequired)
	} else {
		if fieldRules.Var(title, titleMin) != nil {
			errs = append(errs, MsgTitleTooShort)
		}
		if fieldRules.Var(title, titleMax) != nil {
			errs = append(errs, MsgTitleTooLong)
		}
	}

	if fieldRules.Var(c.Description, descriptionMax) != nil {
		errs = append(errs, MsgDescriptionLong)
	}

	start, startOK := parseTimestamp(c.Start, MsgStartRequired, MsgStartInvalid, &errs)
	end, endOK := parseTimestamp(c.End, MsgEndRequired, MsgEndInvalid, &errs)

	if startOK && endOK {
		span := interval.New(start, end)
		if !end.After(start) {
			errs = append(errs, MsgEndBeforeStart)
		} else if span.Duration() > models.MaxEventDuration {
			errs = append(errs, MsgDurationTooLong)
		}
	}

	if fieldRules.Var(c.Location, locationMax) != nil {
		errs = append(errs, MsgLocationTooLong)
	}

	if !hexColor.MatchString(c.Color) {
		errs = append(errs, MsgColorInvalid)
	}

	if strings.TrimSpace(c.OwnerID) == "" {
		errs = append(errs, MsgOwnerRequired)
	}

	if len(errs) > 0 {
		return Validation{Valid: false, Errors: errs}
	}

	return Validation{
		Valid:  true,
		Errors: []string{},
		Event:  models.Event{
			ID:          c.ID,
			OwnerID:     strings.TrimSpace(c.OwnerID),
			Title:       title,
			Description: c.Description,
			Start:       start,
			End:         end,
			Location:    c.Location,
			Color:       c.Color,
		},
	}
}

func parseTimestamp(raw, missing, invalid string, errs *[]string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		*errs = append(*errs, missing)
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		*errs = append(*errs, invalid)
		return time.Time{}, false
	}
	return t.Truncate(models.TimestampPrecision), true
}
