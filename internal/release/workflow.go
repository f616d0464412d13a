// Package release implements the exam-duty-release workflow: the state
// machine deciding submissions and approver actions, replacement lecturer
// eligibility, and the service persisting its decisions.
package release

import (
	"sort"
	"strings"
	"time"

	"github.com/viva-scheduler/backend/internal/apperr"
	"github.com/viva-scheduler/backend/internal/interval"
	"github.com/viva-scheduler/backend/internal/storage/models"
)

// Role is the caller's role as established by the authentication layer.
type Role string

// Roles known to the workflow.
const (
	RoleExaminer Role = "examiner"
	RoleApprover Role = "approver"
)

// Actor identifies who attempts a transition.
type Actor struct {
	ID   string
	Role Role
}

// Snapshot is the immutable state a decision is computed from.
type Snapshot struct {
	// Today is any instant of the current day on the canonical clock.
	Today    time.Time
	Location *time.Location

	// Releases holds the pending and approved releases that may overlap the
	// decided one, for any examiner.
	Releases []models.ExamDutyRelease

	// ExaminerEvents holds the requesting examiner's events.
	ExaminerEvents []models.Event

	// Lecturers is the staff directory.
	Lecturers []models.Lecturer
}

func (s Snapshot) location() *time.Location {
	if s.Location == nil {
		return time.UTC
	}
	return s.Location
}

// Reassignment flags one examiner event displaced by an approved release.
// An empty ToLecturerID means the event is left unassigned.
type Reassignment struct {
	EventID      string `json:"eventId"`
	Title        string `json:"title"`
	ToLecturerID string `json:"toLecturerId,omitempty"`
}

// Decision is the outcome of Submit or Transition. On a violation NewStatus
// is the unchanged current status and nothing else is set.
type Decision struct {
	OK                   bool                   `json:"ok"`
	NewStatus            string                 `json:"newStatus"`
	AffectedEventIDs     []string               `json:"affectedEventIds"`
	RequiresReassignment bool                   `json:"requiresReassignment"`
	Reassignments        []Reassignment         `json:"reassignments,omitempty"`
	Violation            *apperr.GuardViolation `json:"-"`
}

func refuse(r models.ExamDutyRelease, v *apperr.GuardViolation) Decision {
	return Decision{NewStatus: r.Status, AffectedEventIDs: []string{}, Violation: v}
}

func accept(status string) Decision {
	return Decision{OK: true, NewStatus: status, AffectedEventIDs: []string{}}
}

// Submit decides the draft → pending transition.
func Submit(r models.ExamDutyRelease, actor Actor, snap Snapshot) Decision {
	if r.Status != models.ReleaseStatusDraft {
		return refuse(r, apperr.NewGuardViolation(apperr.ReasonInvalidState,
			"only a draft can be submitted, release is %s", r.Status))
	}
	if actor.ID != r.ExaminerID {
		return refuse(r, apperr.NewGuardViolation(apperr.ReasonUnauthorizedTransition,
			"only the requesting examiner can submit the release"))
	}
	if strings.TrimSpace(r.Reason) == "" {
		return refuse(r, apperr.NewGuardViolation(apperr.ReasonDateRangeInvalid, "a reason is required"))
	}

	rng, v := checkDateRange(r, snap)
	if v != nil {
		return refuse(r, v)
	}

	for _, other := range snap.Releases {
		if other.ID == r.ID || other.ExaminerID != r.ExaminerID || !other.IsActive() {
			continue
		}
		if overlapsRange(other, rng, snap.location()) {
			return refuse(r, apperr.NewGuardViolation(apperr.ReasonDateRangeInvalid,
				"the range overlaps release %s (%s to %s)", other.ID, other.StartDate, other.EndDate))
		}
	}

	if replacement := r.Replacement(); replacement != "" {
		if reason := unavailability(replacement, r.ExaminerID, r.ID, rng, snap); reason != "" {
			return refuse(r, apperr.NewGuardViolation(apperr.ReasonReplacementUnavailable,
				"lecturer %s %s", replacement, reason))
		}
	}

	return accept(models.ReleaseStatusPending)
}

// Transition decides a move of r to target on behalf of actor. Submission
// (target pending) is delegated to Submit.
func Transition(r models.ExamDutyRelease, target string, actor Actor, snap Snapshot) Decision {
	if r.IsTerminal() {
		return refuse(r, apperr.NewGuardViolation(apperr.ReasonInvalidState,
			"release is already %s", r.Status))
	}

	switch target {
	case models.ReleaseStatusPending:
		return Submit(r, actor, snap)

	case models.ReleaseStatusApproved, models.ReleaseStatusRejected:
		if r.Status != models.ReleaseStatusPending {
			return refuse(r, apperr.NewGuardViolation(apperr.ReasonInvalidState,
				"only a pending release can be %s, release is %s", target, r.Status))
		}
		if actor.Role != RoleApprover {
			return refuse(r, apperr.NewGuardViolation(apperr.ReasonUnauthorizedTransition,
				"only an approver can mark a release %s", target))
		}
		if target == models.ReleaseStatusRejected {
			return accept(models.ReleaseStatusRejected)
		}
		return approve(r, snap)

	case models.ReleaseStatusWithdrawn:
		if actor.ID != r.ExaminerID {
			return refuse(r, apperr.NewGuardViolation(apperr.ReasonUnauthorizedTransition,
				"only the requesting examiner can withdraw the release"))
		}
		return accept(models.ReleaseStatusWithdrawn)
	}

	return refuse(r, apperr.NewGuardViolation(apperr.ReasonInvalidState,
		"cannot move a %s release to %q", r.Status, target))
}

// approve lists the examiner events lying entirely within the released days.
func approve(r models.ExamDutyRelease, snap Snapshot) Decision {
	d := accept(models.ReleaseStatusApproved)

	reassignments := Displaced(r, snap.ExaminerEvents, snap.location())
	for _, ra := range reassignments {
		d.AffectedEventIDs = append(d.AffectedEventIDs, ra.EventID)
	}
	d.Reassignments = reassignments
	d.RequiresReassignment = len(reassignments) > 0
	return d
}

// Displaced returns, in start order, the events of r's examiner that fall
// entirely within r's whole-day range, each flagged for the replacement or
// as unassigned. A release with an unparseable range displaces nothing.
func Displaced(r models.ExamDutyRelease, events []models.Event, loc *time.Location) []Reassignment {
	rng, err := interval.WholeDays(r.StartDate, r.EndDate, loc)
	if err != nil {
		return nil
	}

	var inside []models.Event
	for _, e := range events {
		if e.OwnerID != r.ExaminerID {
			continue
		}
		if interval.Contains(rng, interval.New(e.Start, e.End)) {
			inside = append(inside, e)
		}
	}
	sort.SliceStable(inside, func(i, j int) bool {
		if !inside[i].Start.Equal(inside[j].Start) {
			return inside[i].Start.Before(inside[j].Start)
		}
		return inside[i].ID < inside[j].ID
	})

	out := make([]Reassignment, 0, len(inside))
	for _, e := range inside {
		out = append(out, Reassignment{
			EventID:      e.ID,
			Title:        e.Title,
			ToLecturerID: r.Replacement(),
		})
	}
	return out
}

// checkDateRange applies the date guards of submission.
func checkDateRange(r models.ExamDutyRelease, snap Snapshot) (interval.Interval, *apperr.GuardViolation) {
	loc := snap.location()

	rng, err := interval.WholeDays(r.StartDate, r.EndDate, loc)
	if err != nil {
		return interval.Interval{}, apperr.NewGuardViolation(apperr.ReasonDateRangeInvalid,
			"dates must be given as YYYY-MM-DD")
	}
	if !rng.End.After(rng.Start) {
		return interval.Interval{}, apperr.NewGuardViolation(apperr.ReasonDateRangeInvalid,
			"end date %s is before start date %s", r.EndDate, r.StartDate)
	}

	today := interval.StartOfDay(snap.Today, loc)
	if rng.Start.Before(today) {
		return interval.Interval{}, apperr.NewGuardViolation(apperr.ReasonDateRangeInvalid,
			"start date %s is in the past", r.StartDate)
	}

	return rng, nil
}

func overlapsRange(r models.ExamDutyRelease, rng interval.Interval, loc *time.Location) bool {
	other, err := interval.WholeDays(r.StartDate, r.EndDate, loc)
	if err != nil {
		return false
	}
	return interval.Overlaps(rng, other)
}
