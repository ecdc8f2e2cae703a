// Package admin implements the dashboard's administrative HTTP surface:
// generic record CRUD across every registered entity type, schema
// introspection, audit trail queries, inventory shard management, and API
// key management.
package admin

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tavernkeep/tavernkeep/internal/gateway"
	"github.com/tavernkeep/tavernkeep/internal/middleware"
	"github.com/tavernkeep/tavernkeep/internal/model"
	"github.com/tavernkeep/tavernkeep/internal/refcheck"
	"github.com/tavernkeep/tavernkeep/internal/telemetry"
	"github.com/tavernkeep/tavernkeep/internal/validate"
)

// actorFrom builds the audit actor from the authenticated request context.
func actorFrom(c *gin.Context) gateway.Actor {
	return gateway.Actor{
		ID:        c.GetString("user_id"),
		Name:      c.GetString("user_name"),
		IPAddress: c.ClientIP(),
		RequestID: c.GetString(middleware.RequestIDKey),
	}
}

// observe records one admin operation outcome.
func observe(entity, action string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	telemetry.AdminOperationsTotal.WithLabelValues(entity, action, outcome).Inc()
}

// respondError maps the engine's error taxonomy onto HTTP statuses. Field
// level validation and reference errors carry their per-field details in the
// response body; unexpected errors are logged with the request ID and return
// a generic message so internals never leak to the dashboard.
func respondError(c *gin.Context, err error) {
	var (
		valErr  *validate.Error
		refErr  *refcheck.Error
		bulkErr *gateway.BulkDeleteError
	)

	switch {
	case errors.Is(err, model.ErrModelNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown entity type"})
	case errors.Is(err, gateway.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
	case errors.Is(err, gateway.ErrShardedEntity):
		c.JSON(http.StatusNotFound, gin.H{"error": "Entity is stored per owner; use the inventory endpoints"})
	case errors.Is(err, model.ErrStoreUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Backing store unavailable"})
	case errors.As(err, &valErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  "Validation failed",
			"fields": valErr.Fields,
		})
	case errors.As(err, &refErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  "Reference check failed",
			"fields": refErr.Fields,
		})
	case errors.As(err, &bulkErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "Bulk delete aborted, some records do not exist",
			"missing": bulkErr.Missing,
		})
	default:
		slog.Error("admin operation failed",
			"error", err,
			"path", c.FullPath(),
			"request_id", c.GetString(middleware.RequestIDKey))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
