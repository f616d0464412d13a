// Package middleware provides HTTP middleware for the API.
package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime/debug"

	log "github.com/sirupsen/logrus"

	"github.com/viva-scheduler/backend/internal/apperr"
)

// ErrorResponse represents a standardized API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ValidationResponse is the 400 body of a rejected event: the envelope
// plus every violated rule at the top level.
type ValidationResponse struct {
	ErrorResponse
	Errors []string `json:"errors"`
}

// ConflictResponse is the 409 body of a conflicting event.
type ConflictResponse struct {
	ErrorResponse
	Errors        []string `json:"errors"`
	ConflictsWith []string `json:"conflictsWith"`
}

// ConflictMessage is the user-facing message of a scheduling conflict.
const ConflictMessage = "Event conflicts with existing events"

// WriteError writes a JSON error response with the given status code.
func WriteError(w http.ResponseWriter, status int, errCode, message string) {
	WriteErrorWithDetails(w, status, errCode, message, nil)
}

// WriteErrorWithDetails writes a JSON error response with additional details.
func WriteErrorWithDetails(w http.ResponseWriter, status int, errCode, message string, details any) {
	writeBody(w, status, ErrorResponse{
		Error:   errCode,
		Message: message,
		Details: details,
	})
}

func writeBody(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// WriteAppError maps the application error taxonomy onto the error envelope.
// Guard violations use their reason code as error code.
func WriteAppError(w http.ResponseWriter, err error) {
	WriteAppErrorWithGuardStatus(w, err, http.StatusUnprocessableEntity)
}

// WriteAppErrorWithGuardStatus is WriteAppError with a caller-chosen status
// for guard violations.
func WriteAppErrorWithGuardStatus(w http.ResponseWriter, err error, guardStatus int) {
	var (
		verr *apperr.ValidationError
		cerr *apperr.ConflictError
		gv   *apperr.GuardViolation
		inf  *apperr.IntegrationFailure
	)

	switch {
	case errors.As(err, &verr):
		writeBody(w, http.StatusBadRequest, ValidationResponse{
			ErrorResponse: ErrorResponse{Error: ErrValidation, Message: "Validation failed"},
			Errors:        verr.Errors,
		})

	case errors.As(err, &cerr):
		writeBody(w, http.StatusConflict, ConflictResponse{
			ErrorResponse: ErrorResponse{Error: ErrConflict, Message: ConflictMessage},
			Errors:        []string{ConflictMessage},
			ConflictsWith: cerr.ConflictsWith,
		})

	case errors.As(err, &gv):
		WriteError(w, guardStatus, string(gv.Code), gv.Message)

	case errors.Is(err, apperr.ErrNotFound):
		WriteError(w, http.StatusNotFound, ErrNotFound, err.Error())

	case errors.As(err, &inf):
		log.WithError(inf.Err).WithField("op", inf.Op).Error("Integration failure")
		WriteError(w, http.StatusServiceUnavailable, ErrIntegration, "A backing service failed, please retry")

	default:
		log.WithError(err).Error("Unhandled error")
		WriteError(w, http.StatusInternalServerError, ErrInternalError, "An unexpected error occurred")
	}
}

// ErrorRecovery is middleware that recovers from panics and returns a 500 error.
func ErrorRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.WithFields(log.Fields{
					"panic": err,
					"stack": string(debug.Stack()),
				}).Error("Panic recovered")
				WriteError(w, http.StatusInternalServerError, ErrInternalError, "An unexpected error occurred")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Common error codes
const (
	ErrNotFound      = "not_found"
	ErrBadRequest    = "bad_request"
	ErrConflict      = "conflict"
	ErrInternalError = "internal_error"
	ErrValidation    = "validation_error"
	ErrIntegration   = "integration_failure"
)
