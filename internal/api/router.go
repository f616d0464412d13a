// Package api provides HTTP routing and handlers for the REST API.
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/viva-scheduler/backend/internal/api/handlers"
	"github.com/viva-scheduler/backend/internal/api/middleware"
	"github.com/viva-scheduler/backend/internal/calendar"
	"github.com/viva-scheduler/backend/internal/release"
	"github.com/viva-scheduler/backend/internal/schedule"
	"github.com/viva-scheduler/backend/internal/storage"
	"github.com/viva-scheduler/backend/internal/websocket"
)

// Services holds everything the routes are wired to.
type Services struct {
	DB       *storage.DB
	Hub      *websocket.Hub
	Events   *schedule.Service
	Releases *release.Service
	Importer *calendar.Importer

	// MaxImportBytes caps .ics uploads.
	MaxImportBytes int64

	// StaticDir optionally serves a frontend build at /.
	StaticDir string

	Version string
}

// NewRouter creates and configures the HTTP router with all API routes.
func NewRouter(s Services) *mux.Router {
	r := mux.NewRouter()

	// Apply global middleware
	r.Use(middleware.Logging)
	r.Use(middleware.ErrorRecovery)

	// API subrouter
	api := r.PathPrefix("/api").Subrouter()

	// Health endpoint
	api.HandleFunc("/health", handlers.HealthCheck(s.DB, s.Hub, s.Version)).Methods("GET")

	// WebSocket endpoint
	api.HandleFunc("/ws", handlers.WebSocketUpgrade(s.Hub)).Methods("GET")

	// Event endpoints
	api.HandleFunc("/events", handlers.ListEvents(s.Events)).Methods("GET")
	api.HandleFunc("/events", handlers.CreateEvent(s.Events)).Methods("POST")
	api.HandleFunc("/events/import", handlers.ImportEvents(s.Importer, s.MaxImportBytes)).Methods("POST")
	api.HandleFunc("/events/{id}", handlers.GetEvent(s.Events)).Methods("GET")
	api.HandleFunc("/events/{id}", handlers.UpdateEvent(s.Events)).Methods("PUT")
	api.HandleFunc("/events/{id}", handlers.DeleteEvent(s.Events)).Methods("DELETE")
	api.HandleFunc("/events/{id}/move", handlers.MoveEvent(s.Events)).Methods("PATCH")
	api.HandleFunc("/agenda", handlers.GetAgenda(s.Events)).Methods("GET")

	// Exam duty release endpoints
	api.HandleFunc("/exam-duty-release", handlers.ListReleases(s.Releases)).Methods("GET")
	api.HandleFunc("/exam-duty-release", handlers.CreateRelease(s.Releases)).Methods("POST")
	api.HandleFunc("/exam-duty-release/{id}", handlers.GetRelease(s.Releases)).Methods("GET")
	api.HandleFunc("/exam-duty-release/{id}", handlers.WithdrawRelease(s.Releases)).Methods("DELETE")
	api.HandleFunc("/exam-duty-release/{id}/submit", handlers.SubmitRelease(s.Releases)).Methods("POST")
	api.HandleFunc("/exam-duty-release/{id}/status", handlers.UpdateReleaseStatus(s.Releases)).Methods("PATCH")
	api.HandleFunc("/exam-duty-release/{id}/reassignment", handlers.ConfirmReassignment(s.Releases)).Methods("POST")

	// Staff directory endpoints
	api.HandleFunc("/lecturers/replacements", handlers.ListReplacements(s.Releases)).Methods("GET")

	// Serve static frontend files
	if s.StaticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(s.StaticDir)))
	}

	return r
}
