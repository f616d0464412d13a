package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/viva-scheduler/backend/internal/api/middleware"
	"github.com/viva-scheduler/backend/internal/apperr"
	"github.com/viva-scheduler/backend/internal/release"
	"github.com/viva-scheduler/backend/internal/storage/models"
)

// ReleaseRequest is the exam duty release form.
type ReleaseRequest struct {
	ExaminerID            string  `json:"examinerId"`
	StartDate             string  `json:"startDate"`
	EndDate               string  `json:"endDate"`
	Reason                string  `json:"reason"`
	ReplacementLecturerID *string `json:"replacementLecturerId"`
}

func (req ReleaseRequest) release() models.ExamDutyRelease {
	return models.ExamDutyRelease{
		ExaminerID:            strings.TrimSpace(req.ExaminerID),
		StartDate:             strings.TrimSpace(req.StartDate),
		EndDate:               strings.TrimSpace(req.EndDate),
		Reason:                req.Reason,
		ReplacementLecturerID: req.ReplacementLecturerID,
	}
}

// TransitionResponse is returned by status changes.
type TransitionResponse struct {
	Release              *models.ExamDutyRelease `json:"release"`
	AffectedEventIDs     []string                `json:"affectedEventIds"`
	RequiresReassignment bool                    `json:"requiresReassignment"`
	Reassignments        []release.Reassignment  `json:"reassignments,omitempty"`
}

// CreateRelease submits a release request, or saves it as a draft when
// called with ?draft=true.
func CreateRelease(svc *release.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}

		var req ReleaseRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		var (
			created *models.ExamDutyRelease
			err     error
		)
		if r.URL.Query().Get("draft") == "true" {
			created, err = svc.SaveDraft(r.Context(), req.release(), actor)
		} else {
			created, err = svc.Submit(r.Context(), req.release(), actor)
		}
		if err != nil {
			middleware.WriteAppError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, created)
	}
}

// SubmitRelease moves a saved draft to pending.
func SubmitRelease(svc *release.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}

		submitted, err := svc.SubmitDraft(r.Context(), mux.Vars(r)["id"], actor)
		if err != nil {
			middleware.WriteAppError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, submitted)
	}
}

// GetRelease returns a single release.
func GetRelease(svc *release.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rel, err := svc.Get(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			middleware.WriteAppError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, rel)
	}
}

// ListReleases returns releases filtered by examinerId and status.
func ListReleases(svc *release.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		status := q.Get("status")
		if status != "" && !models.ValidReleaseStatus(status) {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Unknown status "+status)
			return
		}

		releases, err := svc.List(r.Context(), q.Get("examinerId"), status)
		if err != nil {
			middleware.WriteAppError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, releases)
	}
}

// UpdateReleaseStatus applies an approver decision or a withdrawal.
func UpdateReleaseStatus(svc *release.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}

		var req struct {
			Status string `json:"status"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		if !models.ValidReleaseStatus(req.Status) {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Unknown status "+req.Status)
			return
		}

		rel, decision, err := svc.Transition(r.Context(), mux.Vars(r)["id"], req.Status, actor)
		if err != nil {
			middleware.WriteAppError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, TransitionResponse{
			Release:              rel,
			AffectedEventIDs:     decision.AffectedEventIDs,
			RequiresReassignment: decision.RequiresReassignment,
			Reassignments:        decision.Reassignments,
		})
	}
}

// ConfirmReassignment applies the reassignment of an approved release.
func ConfirmReassignment(svc *release.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}

		result, err := svc.ConfirmReassignment(r.Context(), mux.Vars(r)["id"], actor)
		if err != nil {
			middleware.WriteAppError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}

// WithdrawRelease withdraws a pending release. Any other state is a 409.
func WithdrawRelease(svc *release.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}

		rel, err := svc.Withdraw(r.Context(), mux.Vars(r)["id"], actor)
		var gv *apperr.GuardViolation
		if errors.As(err, &gv) && gv.Code == apperr.ReasonInvalidState {
			middleware.WriteAppErrorWithGuardStatus(w, err, http.StatusConflict)
			return
		}
		if err != nil {
			middleware.WriteAppError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, rel)
	}
}

// ListReplacements returns the staff directory annotated with replacement
// eligibility for a release range.
func ListReplacements(svc *release.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		examinerID := strings.TrimSpace(q.Get("examinerId"))
		if examinerID == "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "examinerId is required")
			return
		}

		out, err := svc.EligibleReplacements(r.Context(), examinerID, q.Get("startDate"), q.Get("endDate"))
		if err != nil {
			middleware.WriteAppError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, out)
	}
}
