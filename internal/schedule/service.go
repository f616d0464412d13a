package schedule

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/viva-scheduler/backend/internal/apperr"
	"github.com/viva-scheduler/backend/internal/storage/models"
)

// EventStore is the persistence collaborator of the event service.
type EventStore interface {
	GetByID(ctx context.Context, id string) (*models.Event, error)
	Snapshot(ctx context.Context, ownerID string) (*models.OwnerEvents, error)
	Create(ctx context.Context, event *models.Event, expectedVersion int64) error
	Update(ctx context.Context, event *models.Event, expectedVersion int64) error
	Delete(ctx context.Context, id string) error
	ListByOwner(ctx context.Context, ownerID string, from, to time.Time) ([]models.Event, error)
}

// Notifier is told about every committed event change.
type Notifier interface {
	BroadcastEventChanged(action string, event models.Event)
}

// Event change actions passed to the Notifier.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionMoved   = "moved"
	ActionDeleted = "deleted"
)

// DefaultMaxAttempts bounds the optimistic commit loop.
const DefaultMaxAttempts = 3

// Service runs proposed event changes through the validator and the
// resolver, then commits accepted ones against the snapshot they were
// decided on.
type Service struct {
	store       EventStore
	notifier    Notifier
	location    *time.Location
	now         func() time.Time
	maxAttempts int
}

// NewService creates a new event service. notifier may be nil.
func NewService(store EventStore, notifier Notifier, loc *time.Location, maxAttempts int) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Service{
		store:       store,
		notifier:    notifier,
		location:    loc,
		now:         time.Now,
		maxAttempts: maxAttempts,
	}
}

// WithClock replaces the service clock.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Location returns the canonical clock location.
func (s *Service) Location() *time.Location {
	return s.location
}

// Now returns the current time in the canonical location.
func (s *Service) Now() time.Time {
	return s.now().In(s.location)
}

// Get returns a single event.
func (s *Service) Get(ctx context.Context, id string) (*models.Event, error) {
	event, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Integration("loading event", err)
	}
	if event == nil {
		return nil, fmt.Errorf("event %s: %w", id, apperr.ErrNotFound)
	}
	return event, nil
}

// Create validates, resolves and stores a new event.
func (s *Service) Create(ctx context.Context, c Candidate) (*models.Event, error) {
	c.ID = ""
	v := Validate(c)
	if !v.Valid {
		return nil, &apperr.ValidationError{Errors: v.Errors}
	}

	event := v.Event
	if err := s.commit(ctx, &event, "", true); err != nil {
		return nil, err
	}

	s.notify(ActionCreated, event)
	return &event, nil
}

// Update replaces every field of an existing event. The event itself is
// excluded from conflict checks.
func (s *Service) Update(ctx context.Context, id string, c Candidate) (*models.Event, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	c.ID = id
	if strings.TrimSpace(c.OwnerID) == "" {
		c.OwnerID = current.OwnerID
	}

	return s.replace(ctx, current, c, ActionUpdated)
}

// Move reschedules an existing event (drag and drop). Only start and end
// change; the result goes through the same validation and resolution.
func (s *Service) Move(ctx context.Context, id, start, end string) (*models.Event, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	c := CandidateFromEvent(*current)
	c.Start = start
	c.End = end

	return s.replace(ctx, current, c, ActionMoved)
}

func (s *Service) replace(ctx context.Context, current *models.Event, c Candidate, action string) (*models.Event, error) {
	v := Validate(c)
	if !v.Valid {
		return nil, &apperr.ValidationError{Errors: v.Errors}
	}

	event := v.Event
	event.ID = current.ID
	event.CreatedAt = current.CreatedAt
	if err := s.commit(ctx, &event, current.ID, false); err != nil {
		return nil, err
	}

	s.notify(action, event)
	return &event, nil
}

// Delete removes an event on explicit owner action.
func (s *Service) Delete(ctx context.Context, id string) error {
	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return apperr.Integration("deleting event", err)
	}

	s.notify(ActionDeleted, *current)
	return nil
}

// List returns an owner's events that overlap [from, to). Zero bounds are
// open.
func (s *Service) List(ctx context.Context, ownerID string, from, to time.Time) ([]models.Event, error) {
	events, err := s.store.ListByOwner(ctx, ownerID, from, to)
	if err != nil {
		return nil, apperr.Integration("listing events", err)
	}
	if events == nil {
		events = []models.Event{}
	}
	return events, nil
}

// Agenda returns an owner's events in [from, to) grouped by day.
func (s *Service) Agenda(ctx context.Context, ownerID string, from, to time.Time) ([]AgendaDay, error) {
	events, err := s.List(ctx, ownerID, from, to)
	if err != nil {
		return nil, err
	}
	return Aggregate(events, s.location), nil
}

// commit resolves event against a fresh snapshot of its owner's events and
// writes it only if that snapshot is still current. A stale snapshot means a
// concurrent write for the same owner; the decision is recomputed.
func (s *Service) commit(ctx context.Context, event *models.Event, excludeID string, create bool) error {
	for attempt := 1; ; attempt++ {
		snap, err := s.store.Snapshot(ctx, event.OwnerID)
		if err != nil {
			return apperr.Integration("loading owner events", err)
		}

		res := Resolve(*event, snap.Events, excludeID)
		if !res.Accepted {
			return &apperr.ConflictError{ConflictsWith: res.ConflictsWith}
		}

		if create {
			err = s.store.Create(ctx, event, snap.Version)
		} else {
			err = s.store.Update(ctx, event, snap.Version)
		}
		if err == nil {
			return nil
		}

		if errors.Is(err, apperr.ErrStaleSnapshot) && attempt < s.maxAttempts {
			log.WithFields(log.Fields{
				"owner_id": event.OwnerID,
				"attempt":  attempt,
			}).Debug("Owner schedule changed during commit, resolving again")
			continue
		}
		if errors.Is(err, apperr.ErrStaleSnapshot) {
			return &apperr.IntegrationFailure{
				Op:  "saving event",
				Err: fmt.Errorf("gave up after %d attempts: %w", attempt, err),
			}
		}
		return apperr.Integration("saving event", err)
	}
}

func (s *Service) notify(action string, event models.Event) {
	if s.notifier != nil {
		s.notifier.BroadcastEventChanged(action, event)
	}
}
