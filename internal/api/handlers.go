package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/skridlevsky/membership-tracker/internal/roster"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services,omitempty"`
}

// NewHealthHandler reports "ok", or "degraded" with 503 when the database
// check fails. db may be nil.
func NewHealthHandler(db interface{ Health(context.Context) error }, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		services := make(map[string]string)
		status := "ok"

		if db != nil {
			if err := db.Health(r.Context()); err != nil {
				log.Error("Database health check failed", zap.Error(err))
				services["database"] = "unhealthy"
				status = "degraded"
			} else {
				services["database"] = "healthy"
			}
		}

		code := http.StatusOK
		if status != "ok" {
			code = http.StatusServiceUnavailable
		}
		respondJSON(w, code, HealthResponse{
			Status:    status,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Services:  services,
		})
	}
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError maps lookup failures to 404 and everything else to 500
func respondError(w http.ResponseWriter, log *zap.Logger, msg string, err error) {
	if errors.Is(err, roster.ErrLookup) {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	log.Error(msg, zap.Error(err))
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}
