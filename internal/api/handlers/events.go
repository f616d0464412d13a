package handlers

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/viva-scheduler/backend/internal/api/middleware"
	"github.com/viva-scheduler/backend/internal/calendar"
	"github.com/viva-scheduler/backend/internal/interval"
	"github.com/viva-scheduler/backend/internal/schedule"
)

// defaultAgendaDays is the agenda window when no end bound is given.
const defaultAgendaDays = 7

// ListEvents returns an owner's events, optionally limited to [from, to).
func ListEvents(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		ownerID := strings.TrimSpace(q.Get("ownerId"))
		if ownerID == "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "ownerId is required")
			return
		}

		from, err := parseBound(q.Get("from"), svc.Location())
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, err.Error())
			return
		}
		to, err := parseBound(q.Get("to"), svc.Location())
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, err.Error())
			return
		}

		events, err := svc.List(r.Context(), ownerID, from, to)
		if err != nil {
			middleware.WriteAppError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, events)
	}
}

// GetEvent returns a single event.
func GetEvent(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		event, err := svc.Get(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			middleware.WriteAppError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, event)
	}
}

// CreateEvent validates, resolves and stores a new event.
func CreateEvent(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var c schedule.Candidate
		if !decodeJSON(w, r, &c) {
			return
		}

		event, err := svc.Create(r.Context(), c)
		if err != nil {
			middleware.WriteAppError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, event)
	}
}

// UpdateEvent replaces every field of an event.
func UpdateEvent(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var c schedule.Candidate
		if !decodeJSON(w, r, &c) {
			return
		}

		event, err := svc.Update(r.Context(), mux.Vars(r)["id"], c)
		if err != nil {
			middleware.WriteAppError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, event)
	}
}

// MoveEvent reschedules an event (drag and drop).
func MoveEvent(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Start string `json:"start"`
			End   string `json:"end"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}

		event, err := svc.Move(r.Context(), mux.Vars(r)["id"], req.Start, req.End)
		if err != nil {
			middleware.WriteAppError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, event)
	}
}

// DeleteEvent removes an event.
func DeleteEvent(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
			middleware.WriteAppError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// GetAgenda returns an owner's events grouped by day. The window defaults
// to the week starting today.
func GetAgenda(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		ownerID := strings.TrimSpace(q.Get("ownerId"))
		if ownerID == "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "ownerId is required")
			return
		}

		loc := svc.Location()
		from, err := parseBound(q.Get("from"), loc)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, err.Error())
			return
		}
		to, err := parseBound(q.Get("to"), loc)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, err.Error())
			return
		}

		if from.IsZero() {
			from = interval.StartOfDay(svc.Now(), loc)
		}
		if to.IsZero() {
			to = from.AddDate(0, 0, defaultAgendaDays)
		}
		if !to.After(from) {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "to must be after from")
			return
		}

		agenda, err := svc.Agenda(r.Context(), ownerID, from, to)
		if err != nil {
			middleware.WriteAppError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, agenda)
	}
}

// ImportEvents reads an .ics upload and imports its events for ownerId.
func ImportEvents(importer *calendar.Importer, maxBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID := strings.TrimSpace(r.URL.Query().Get("ownerId"))
		if ownerID == "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "ownerId is required")
			return
		}

		body := http.MaxBytesReader(w, r.Body, maxBytes)
		report, err := importer.Import(r.Context(), ownerID, body)
		if err != nil {
			middleware.WriteAppError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, report)
	}
}
