package handlers

import (
	"net/http"

	"github.com/viva-scheduler/backend/internal/storage"
	"github.com/viva-scheduler/backend/internal/websocket"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	DBConnected bool   `json:"dbConnected"`
	Schema      int    `json:"schemaVersion"`
	Clients     int    `json:"clients"`
}

// HealthCheck returns a handler that performs a health check.
func HealthCheck(db *storage.DB, hub *websocket.Hub, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Check database connection
		dbConnected := db.PingContext(r.Context()) == nil
		schema, err := storage.SchemaVersion(db)
		if err != nil {
			dbConnected = false
		}

		// Determine overall status
		status := "healthy"
		code := http.StatusOK
		if !dbConnected {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		writeJSON(w, code, HealthResponse{
			Status:      status,
			Version:     version,
			DBConnected: dbConnected,
			Schema:      schema,
			Clients:     hub.ClientCount(),
		})
	}
}
