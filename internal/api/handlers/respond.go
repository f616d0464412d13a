// Package handlers provides HTTP request handlers for the API endpoints.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/viva-scheduler/backend/internal/api/middleware"
	"github.com/viva-scheduler/backend/internal/interval"
	"github.com/viva-scheduler/backend/internal/release"
)

// Actor identity headers, set by the authentication proxy in front of the
// service.
const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"
)

// writeJSON writes v as a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("Failed to encode response")
	}
}

// decodeJSON decodes the request body into v, writing a bad_request error
// and returning false if it cannot.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
		return false
	}
	return true
}

var errMissingActor = errors.New("the " + HeaderActorID + " header is required")

// actorFromRequest reads the caller identity. The role defaults to examiner.
func actorFromRequest(r *http.Request) (release.Actor, error) {
	id := strings.TrimSpace(r.Header.Get(HeaderActorID))
	if id == "" {
		return release.Actor{}, errMissingActor
	}

	role := release.Role(strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderActorRole))))
	switch role {
	case "":
		role = release.RoleExaminer
	case release.RoleExaminer, release.RoleApprover:
	default:
		return release.Actor{}, fmt.Errorf("unknown role %q", role)
	}

	return release.Actor{ID: id, Role: role}, nil
}

// requireActor writes a bad_request error and returns false when the
// request carries no usable identity.
func requireActor(w http.ResponseWriter, r *http.Request) (release.Actor, bool) {
	actor, err := actorFromRequest(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, err.Error())
		return release.Actor{}, false
	}
	return actor, true
}

// parseBound reads a range bound given either as an RFC 3339 timestamp or
// as a YYYY-MM-DD day in loc. An empty value is the zero time.
func parseBound(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	if t, err := interval.ParseDay(value, loc); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid time %q, expected RFC 3339 or YYYY-MM-DD", value)
}
