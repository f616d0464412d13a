package release

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/viva-scheduler/backend/internal/apperr"
	"github.com/viva-scheduler/backend/internal/schedule"
	"github.com/viva-scheduler/backend/internal/storage/models"
)

// Store is the persistence collaborator for releases. Every write takes the
// version of the release snapshot it was decided on and fails with
// apperr.ErrStaleSnapshot if another release write happened in between.
type Store interface {
	GetByID(ctx context.Context, id string) (*models.ExamDutyRelease, error)
	List(ctx context.Context, examinerID, status string) ([]models.ExamDutyRelease, error)
	Snapshot(ctx context.Context, startDate, endDate string) (*models.ReleaseSnapshot, error)
	Create(ctx context.Context, r *models.ExamDutyRelease, expectedVersion int64) error
	UpdateStatus(ctx context.Context, r *models.ExamDutyRelease, fromStatus string, expectedVersion int64) error
	ListDraftsStartingBefore(ctx context.Context, day string) ([]models.ExamDutyRelease, error)
	ApplyReassignment(ctx context.Context, plan models.ReassignmentPlan) error
}

// EventSnapshotter reads an owner's events for displacement checks.
type EventSnapshotter interface {
	Snapshot(ctx context.Context, ownerID string) (*models.OwnerEvents, error)
}

// Directory is the staff directory collaborator. GetByID returns nil for
// an unknown id.
type Directory interface {
	ListLecturers(ctx context.Context) ([]models.Lecturer, error)
	GetByID(ctx context.Context, id string) (*models.Lecturer, error)
}

// Notifier is told about committed status changes and reassignments.
type Notifier interface {
	BroadcastReleaseStatusChanged(r models.ExamDutyRelease, previousStatus string, affectedEventIDs []string)
	BroadcastReassignmentConfirmed(releaseID string, moved, removed []string)
}

// ReassignmentResult reports what a confirmed reassignment did.
type ReassignmentResult struct {
	ReleaseID string   `json:"releaseId"`
	Moved     []string `json:"moved"`
	Removed   []string `json:"removed"`
}

// Service loads snapshots, runs workflow decisions and persists them.
type Service struct {
	store       Store
	events      EventSnapshotter
	directory   Directory
	notifier    Notifier
	location    *time.Location
	now         func() time.Time
	maxAttempts int
}

// NewService creates a new release service. notifier may be nil.
func NewService(
	store Store,
	events EventSnapshotter,
	directory Directory,
	notifier Notifier,
	loc *time.Location,
	maxAttempts int,
) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if maxAttempts <= 0 {
		maxAttempts = schedule.DefaultMaxAttempts
	}
	return &Service{
		store:       store,
		events:      events,
		directory:   directory,
		notifier:    notifier,
		location:    loc,
		now:         time.Now,
		maxAttempts: maxAttempts,
	}
}

// WithClock replaces the service clock. Used by tests and by deployments
// pinning the canonical clock.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Get returns a single release.
func (s *Service) Get(ctx context.Context, id string) (*models.ExamDutyRelease, error) {
	r, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Integration("loading release", err)
	}
	if r == nil {
		return nil, fmt.Errorf("release %s: %w", id, apperr.ErrNotFound)
	}
	return r, nil
}

// List returns releases filtered by examiner and status; empty filters match all.
func (s *Service) List(ctx context.Context, examinerID, status string) ([]models.ExamDutyRelease, error) {
	releases, err := s.store.List(ctx, examinerID, status)
	if err != nil {
		return nil, apperr.Integration("listing releases", err)
	}
	if releases == nil {
		releases = []models.ExamDutyRelease{}
	}
	return releases, nil
}

// SaveDraft stores a new release in draft state without running the
// submission guards.
func (s *Service) SaveDraft(ctx context.Context, in models.ExamDutyRelease, actor Actor) (*models.ExamDutyRelease, error) {
	r := s.newDraft(in, actor)
	if r.ExaminerID != actor.ID {
		return nil, apperr.NewGuardViolation(apperr.ReasonUnauthorizedTransition,
			"drafts can only be created by the requesting examiner")
	}
	if err := s.requireExaminer(ctx, r.ExaminerID); err != nil {
		return nil, err
	}

	return r, s.withSnapshot(ctx, r.StartDate, r.EndDate, func(snap Snapshot, version int64) error {
		return s.store.Create(ctx, r, version)
	})
}

// Submit creates a release from the submitted form and moves it from draft
// to pending in one step. Nothing is stored when a guard fails.
func (s *Service) Submit(ctx context.Context, in models.ExamDutyRelease, actor Actor) (*models.ExamDutyRelease, error) {
	r := s.newDraft(in, actor)
	if err := s.requireExaminer(ctx, r.ExaminerID); err != nil {
		return nil, err
	}

	err := s.withSnapshot(ctx, r.StartDate, r.EndDate, func(snap Snapshot, version int64) error {
		d := Submit(*r, actor, snap)
		if d.Violation != nil {
			return d.Violation
		}
		r.Status = d.NewStatus
		return s.store.Create(ctx, r, version)
	})
	if err != nil {
		return nil, err
	}

	s.notifyStatus(*r, models.ReleaseStatusDraft, nil)
	return r, nil
}

// SubmitDraft moves a stored draft to pending.
func (s *Service) SubmitDraft(ctx context.Context, id string, actor Actor) (*models.ExamDutyRelease, error) {
	r, _, err := s.transition(ctx, id, models.ReleaseStatusPending, actor)
	return r, err
}

// Transition applies an approver decision or a withdrawal.
func (s *Service) Transition(ctx context.Context, id, target string, actor Actor) (*models.ExamDutyRelease, Decision, error) {
	return s.transition(ctx, id, target, actor)
}

// Withdraw withdraws a pending release on behalf of its requester. Unlike a
// status change to withdrawn, it refuses drafts.
func (s *Service) Withdraw(ctx context.Context, id string, actor Actor) (*models.ExamDutyRelease, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status != models.ReleaseStatusPending {
		return nil, apperr.NewGuardViolation(apperr.ReasonInvalidState,
			"only a pending release can be withdrawn, release is %s", current.Status)
	}

	r, _, err := s.transition(ctx, id, models.ReleaseStatusWithdrawn, actor)
	return r, err
}

func (s *Service) transition(ctx context.Context, id, target string, actor Actor) (*models.ExamDutyRelease, Decision, error) {
	var (
		r        *models.ExamDutyRelease
		decision Decision
		previous string
	)

	err := s.retry(ctx, func() error {
		current, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		r = current
		previous = current.Status

		snap, version, err := s.snapshot(ctx, current.StartDate, current.EndDate)
		if err != nil {
			return err
		}
		if target == models.ReleaseStatusApproved {
			owner, err := s.events.Snapshot(ctx, current.ExaminerID)
			if err != nil {
				return apperr.Integration("loading examiner events", err)
			}
			snap.ExaminerEvents = owner.Events
		}

		decision = Transition(*current, target, actor, snap)
		if decision.Violation != nil {
			return decision.Violation
		}

		r.Status = decision.NewStatus
		if target == models.ReleaseStatusApproved || target == models.ReleaseStatusRejected {
			now := s.now().UTC()
			decidedBy := actor.ID
			r.DecidedBy = &decidedBy
			r.DecidedAt = &now
		}
		return s.store.UpdateStatus(ctx, r, previous, version)
	})
	if err != nil {
		return nil, decision, err
	}

	log.WithFields(log.Fields{
		"release_id": r.ID,
		"from":       previous,
		"to":         r.Status,
		"actor":      actor.ID,
	}).Info("Release status changed")

	s.notifyStatus(*r, previous, decision.AffectedEventIDs)
	return r, decision, nil
}

// EligibleReplacements annotates the staff directory for a release form.
func (s *Service) EligibleReplacements(ctx context.Context, examinerID, startDate, endDate string) ([]models.LecturerAvailability, error) {
	snap, _, err := s.snapshot(ctx, startDate, endDate)
	if err != nil {
		return nil, err
	}

	out, v := EligibleReplacements(examinerID, startDate, endDate, snap)
	if v != nil {
		return nil, v
	}
	return out, nil
}

// ConfirmReassignment applies the reassignment flagged by an approval: each
// displaced event moves to the replacement lecturer, or is removed when no
// replacement was named. Moves are checked against the replacement's
// calendar; if any of them conflicts nothing is written.
func (s *Service) ConfirmReassignment(ctx context.Context, id string, actor Actor) (*ReassignmentResult, error) {
	if actor.Role != RoleApprover {
		return nil, apperr.NewGuardViolation(apperr.ReasonUnauthorizedTransition,
			"only an approver can confirm a reassignment")
	}

	var result *ReassignmentResult

	err := s.retry(ctx, func() error {
		r, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		if r.Status != models.ReleaseStatusApproved {
			return apperr.NewGuardViolation(apperr.ReasonInvalidState,
				"only an approved release can be reassigned, release is %s", r.Status)
		}
		if r.ReassignmentConfirmedAt != nil {
			return apperr.NewGuardViolation(apperr.ReasonInvalidState,
				"reassignment was already confirmed at %s", r.ReassignmentConfirmedAt.Format(time.RFC3339))
		}

		plan, res, err := s.planReassignment(ctx, r)
		if err != nil {
			return err
		}
		if err := s.store.ApplyReassignment(ctx, *plan); err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"release_id": id,
		"moved":      len(result.Moved),
		"removed":    len(result.Removed),
	}).Info("Reassignment confirmed")

	if s.notifier != nil {
		s.notifier.BroadcastReassignmentConfirmed(result.ReleaseID, result.Moved, result.Removed)
	}
	return result, nil
}

func (s *Service) planReassignment(ctx context.Context, r *models.ExamDutyRelease) (*models.ReassignmentPlan, *ReassignmentResult, error) {
	examiner, err := s.events.Snapshot(ctx, r.ExaminerID)
	if err != nil {
		return nil, nil, apperr.Integration("loading examiner events", err)
	}

	plan := &models.ReassignmentPlan{
		ReleaseID: r.ID,
		Versions:  map[string]int64{r.ExaminerID: examiner.Version},
	}
	res := &ReassignmentResult{ReleaseID: r.ID, Moved: []string{}, Removed: []string{}}

	displaced := Displaced(*r, examiner.Events, s.location)
	replacementID := r.Replacement()

	var target []models.Event
	if replacementID != "" && len(displaced) > 0 {
		replacement, err := s.events.Snapshot(ctx, replacementID)
		if err != nil {
			return nil, nil, apperr.Integration("loading replacement events", err)
		}
		plan.Versions[replacementID] = replacement.Version
		target = append(target, replacement.Events...)
	}

	byID := make(map[string]models.Event, len(examiner.Events))
	for _, e := range examiner.Events {
		byID[e.ID] = e
	}

	var blocking []string
	seen := make(map[string]bool)
	for _, ra := range displaced {
		if ra.ToLecturerID == "" {
			plan.Moves = append(plan.Moves, models.EventMove{EventID: ra.EventID})
			res.Removed = append(res.Removed, ra.EventID)
			continue
		}

		moved := byID[ra.EventID]
		moved.OwnerID = ra.ToLecturerID

		resolution := schedule.Resolve(moved, target, "")
		if !resolution.Accepted {
			for _, cid := range resolution.ConflictsWith {
				if !seen[cid] {
					seen[cid] = true
					blocking = append(blocking, cid)
				}
			}
			continue
		}

		target = append(target, moved)
		plan.Moves = append(plan.Moves, models.EventMove{EventID: ra.EventID, ToOwnerID: ra.ToLecturerID})
		res.Moved = append(res.Moved, ra.EventID)
	}

	if len(blocking) > 0 {
		return nil, nil, &apperr.ConflictError{ConflictsWith: blocking}
	}
	return plan, res, nil
}

// SweepStaleDrafts withdraws drafts whose start date has passed; the
// submission guard can never accept them.
func (s *Service) SweepStaleDrafts(ctx context.Context) (int, error) {
	today := s.now().In(s.location).Format(models.DateLayout)

	drafts, err := s.store.ListDraftsStartingBefore(ctx, today)
	if err != nil {
		return 0, apperr.Integration("listing stale drafts", err)
	}

	swept := 0
	for _, d := range drafts {
		err := s.withSnapshot(ctx, d.StartDate, d.EndDate, func(_ Snapshot, version int64) error {
			r := d
			r.Status = models.ReleaseStatusWithdrawn
			return s.store.UpdateStatus(ctx, &r, models.ReleaseStatusDraft, version)
		})
		if err != nil {
			log.WithError(err).WithField("release_id", d.ID).Warn("Failed to withdraw stale draft")
			continue
		}
		swept++
		d.Status = models.ReleaseStatusWithdrawn
		s.notifyStatus(d, models.ReleaseStatusDraft, nil)
	}

	return swept, nil
}

// requireExaminer rejects releases for people missing from the staff
// directory.
func (s *Service) requireExaminer(ctx context.Context, examinerID string) error {
	l, err := s.directory.GetByID(ctx, examinerID)
	if err != nil {
		return apperr.Integration("loading examiner", err)
	}
	if l == nil {
		return &apperr.ValidationError{Errors: []string{fmt.Sprintf("Examiner %q is not in the staff directory", examinerID)}}
	}
	return nil
}

func (s *Service) newDraft(in models.ExamDutyRelease, actor Actor) *models.ExamDutyRelease {
	r := in
	r.ID = ""
	r.Status = models.ReleaseStatusDraft
	r.Reason = strings.TrimSpace(r.Reason)
	r.DecidedBy = nil
	r.DecidedAt = nil
	r.ReassignmentConfirmedAt = nil
	if r.ExaminerID == "" {
		r.ExaminerID = actor.ID
	}
	if r.ReplacementLecturerID != nil && strings.TrimSpace(*r.ReplacementLecturerID) == "" {
		r.ReplacementLecturerID = nil
	}
	return &r
}

// snapshot loads the state a decision over [startDate, endDate] needs. An
// unparseable range still loads the directory; the guards report the range.
func (s *Service) snapshot(ctx context.Context, startDate, endDate string) (Snapshot, int64, error) {
	rs, err := s.store.Snapshot(ctx, startDate, endDate)
	if err != nil {
		return Snapshot{}, 0, apperr.Integration("loading releases", err)
	}

	lecturers, err := s.directory.ListLecturers(ctx)
	if err != nil {
		return Snapshot{}, 0, apperr.Integration("loading staff directory", err)
	}

	return Snapshot{
		Today:     s.now(),
		Location:  s.location,
		Releases:  rs.Releases,
		Lecturers: lecturers,
	}, rs.Version, nil
}

// withSnapshot runs fn against a fresh snapshot, reloading on a stale write.
func (s *Service) withSnapshot(ctx context.Context, startDate, endDate string, fn func(Snapshot, int64) error) error {
	return s.retry(ctx, func() error {
		snap, version, err := s.snapshot(ctx, startDate, endDate)
		if err != nil {
			return err
		}
		return fn(snap, version)
	})
}

// retry re-runs fn while it fails with a stale snapshot. Guard violations,
// conflicts, missing releases and integration failures are returned as
// they are.
func (s *Service) retry(ctx context.Context, fn func() error) error {
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !errors.Is(err, apperr.ErrStaleSnapshot) {
			var v *apperr.GuardViolation
			var c *apperr.ConflictError
			if errors.As(err, &v) || errors.As(err, &c) {
				return err
			}
			return apperr.Integration("saving release", err)
		}
		if attempt >= s.maxAttempts {
			return &apperr.IntegrationFailure{
				Op:  "saving release",
				Err: fmt.Errorf("gave up after %d attempts: %w", attempt, err),
			}
		}
		if ctx.Err() != nil {
			return apperr.Integration("saving release", ctx.Err())
		}
		log.WithField("attempt", attempt).Debug("Release snapshot changed during commit, deciding again")
	}
}

func (s *Service) notifyStatus(r models.ExamDutyRelease, previous string, affected []string) {
	if s.notifier != nil {
		s.notifier.BroadcastReleaseStatusChanged(r, previous, affected)
	}
}
