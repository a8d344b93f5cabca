package handler

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"pollengine/pkg/database"
	"pollengine/pkg/redis"
)

// HealthHandler reports liveness of the service and its dependencies.
type HealthHandler struct {
	db    *database.PostgresDB
	redis *redis.Client
	log   *zap.Logger
}

func NewHealthHandler(db *database.PostgresDB, redisClient *redis.Client, log *zap.Logger) *HealthHandler {
	return &HealthHandler{db: db, redis: redisClient, log: log}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{
		"database": "ok",
		"redis":    "ok",
	}
	healthy := true

	if err := h.db.Health(ctx); err != nil {
		checks["database"] = "unreachable"
		healthy = false
		h.log.Warn("database health check failed", zap.Error(err))
	}
	if err := h.redis.Health(ctx); err != nil {
		checks["redis"] = "unreachable"
		healthy = false
		h.log.Warn("redis health check failed", zap.Error(err))
	}

	status := http.StatusOK
	overall := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}

	respondJSON(w, status, map[string]interface{}{
		"status": overall,
		"checks": checks,
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
