package admin

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tavernkeep/tavernkeep/internal/audit"
)

// AuditHandlers serves the audit trail query endpoint.
type AuditHandlers struct {
	repo        *audit.Repository
	maxPageSize int
}

// NewAuditHandlers creates the audit handler set.
func NewAuditHandlers(repo *audit.Repository, maxPageSize int) *AuditHandlers {
	if maxPageSize < 1 {
		maxPageSize = 100
	}
	return &AuditHandlers{repo: repo, maxPageSize: maxPageSize}
}

// @Summary      Query audit trail
// @Description  Returns audit entries newest first, filtered by actor, entity type, action, record, and time window.
// @Tags         Audit
// @Produce      json
// @Param        actor_id   query  string  false  "Filter by actor"
// @Param        entity     query  string  false  "Filter by entity type"
// @Param        action     query  string  false  "Filter by action (create, update, delete, bulk_delete, import)"
// @Param        record_id  query  string  false  "Filter by record"
// @Param        from       query  string  false  "RFC3339 lower bound"
// @Param        to         query  string  false  "RFC3339 upper bound"
// @Param        page       query  int     false  "Page number (1-based)"
// @Param        per_page   query  int     false  "Page size"
// @Success      200  {object}  map[string]interface{}
// @Router       /api/v1/admin/audit [get]
func (h *AuditHandlers) List() gin.HandlerFunc {
	return func(c *gin.Context) {
		var f audit.Filters
		if v := c.Query("actor_id"); v != "" {
			f.ActorID = &v
		}
		if v := c.Query("entity"); v != "" {
			f.Entity = &v
		}
		if v := c.Query("action"); v != "" {
			action := audit.Action(v)
			f.Action = &action
		}
		if v := c.Query("record_id"); v != "" {
			f.RecordID = &v
		}
		if v := c.Query("from"); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "from must be RFC3339"})
				return
			}
			f.From = &t
		}
		if v := c.Query("to"); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "to must be RFC3339"})
				return
			}
			f.To = &t
		}

		page := intQuery(c, "page", 1)
		perPage := intQuery(c, "per_page", 50)
		if perPage > h.maxPageSize {
			perPage = h.maxPageSize
		}

		entries, total, err := h.repo.ListEntries(c.Request.Context(), f, perPage, (page-1)*perPage)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"entries":  entries,
			"total":    total,
			"page":     page,
			"per_page": perPage,
		})
	}
}
