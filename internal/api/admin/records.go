package admin

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tavernkeep/tavernkeep/internal/gateway"
)

// RecordHandlers serves the generic per-entity CRUD endpoints. One handler
// set covers every registered entity type; the :entity path segment selects
// the type at request time.
type RecordHandlers struct {
	gw             *gateway.Gateway
	maxPageSize    int
	maxImportBatch int
}

// NewRecordHandlers creates the record handler set.
func NewRecordHandlers(gw *gateway.Gateway, maxPageSize, maxImportBatch int) *RecordHandlers {
	if maxPageSize < 1 {
		maxPageSize = 100
	}
	if maxImportBatch < 1 {
		maxImportBatch = 500
	}
	return &RecordHandlers{gw: gw, maxPageSize: maxPageSize, maxImportBatch: maxImportBatch}
}

// @Summary      List records
// @Description  Returns a page of records for the entity type, optionally filtered by free text across its label fields.
// @Tags         Records
// @Produce      json
// @Param        entity    path   string  true   "Entity type name"
// @Param        page      query  int     false  "Page number (1-based)"
// @Param        per_page  query  int     false  "Page size"
// @Param        q         query  string  false  "Free-text filter"
// @Param        sort      query  string  false  "Sort field"
// @Param        order     query  string  false  "asc or desc"
// @Success      200  {object}  gateway.Page
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/admin/models/{entity}/records [get]
func (h *RecordHandlers) List() gin.HandlerFunc {
	return func(c *gin.Context) {
		entity := c.Param("entity")
		params := gateway.ListParams{
			Page:      intQuery(c, "page", 1),
			PerPage:   intQuery(c, "per_page", 20),
			Query:     c.Query("q"),
			SortField: c.Query("sort"),
			SortDesc:  c.Query("order") == "desc",
		}
		if params.PerPage > h.maxPageSize {
			params.PerPage = h.maxPageSize
		}

		page, err := h.gw.List(c.Request.Context(), entity, params)
		observe(entity, "list", err)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

// @Summary      Get record
// @Tags         Records
// @Produce      json
// @Param        entity  path  string  true  "Entity type name"
// @Param        id      path  string  true  "Record ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/admin/models/{entity}/records/{id} [get]
func (h *RecordHandlers) Get() gin.HandlerFunc {
	return func(c *gin.Context) {
		entity := c.Param("entity")
		doc, err := h.gw.Get(c.Request.Context(), entity, c.Param("id"))
		observe(entity, "get", err)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, doc)
	}
}

// @Summary      Create record
// @Description  Validates the payload against the entity schema, checks cross-entity references, and persists a new record.
// @Tags         Records
// @Accept       json
// @Produce      json
// @Param        entity  path  string                  true  "Entity type name"
// @Param        body    body  map[string]interface{}  true  "Record payload"
// @Success      201  {object}  map[string]interface{}
// @Failure      422  {object}  map[string]interface{}  "Validation or reference failure with per-field details"
// @Router       /api/v1/admin/models/{entity}/records [post]
func (h *RecordHandlers) Create() gin.HandlerFunc {
	return func(c *gin.Context) {
		entity := c.Param("entity")
		var payload map[string]any
		if err := c.ShouldBindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
			return
		}

		doc, err := h.gw.Create(c.Request.Context(), actorFrom(c), entity, payload)
		observe(entity, "create", err)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, doc)
	}
}

// @Summary      Update record
// @Description  Applies a partial patch: only supplied fields are validated and written. An empty patch is a no-op.
// @Tags         Records
// @Accept       json
// @Produce      json
// @Param        entity  path  string                  true  "Entity type name"
// @Param        id      path  string                  true  "Record ID"
// @Param        body    body  map[string]interface{}  true  "Partial patch"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]string
// @Failure      422  {object}  map[string]interface{}
// @Router       /api/v1/admin/models/{entity}/records/{id} [patch]
func (h *RecordHandlers) Update() gin.HandlerFunc {
	return func(c *gin.Context) {
		entity := c.Param("entity")
		var patch map[string]any
		if err := c.ShouldBindJSON(&patch); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
			return
		}

		doc, err := h.gw.Update(c.Request.Context(), actorFrom(c), entity, c.Param("id"), patch)
		observe(entity, "update", err)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, doc)
	}
}

// @Summary      Delete record
// @Tags         Records
// @Produce      json
// @Param        entity  path  string  true  "Entity type name"
// @Param        id      path  string  true  "Record ID"
// @Success      204  "Deleted"
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/admin/models/{entity}/records/{id} [delete]
func (h *RecordHandlers) Delete() gin.HandlerFunc {
	return func(c *gin.Context) {
		entity := c.Param("entity")
		err := h.gw.Delete(c.Request.Context(), actorFrom(c), entity, c.Param("id"))
		observe(entity, "delete", err)
		if err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

type bulkDeleteRequest struct {
	IDs []string `json:"ids" binding:"required"`
}

// @Summary      Bulk delete records
// @Description  All-or-nothing: if any id does not resolve, nothing is deleted and the missing ids are returned.
// @Tags         Records
// @Accept       json
// @Produce      json
// @Param        entity  path  string             true  "Entity type name"
// @Param        body    body  bulkDeleteRequest  true  "Record IDs"
// @Success      200  {object}  map[string]int  "deleted count"
// @Failure      409  {object}  map[string]interface{}  "missing ids"
// @Router       /api/v1/admin/models/{entity}/records/bulk-delete [post]
func (h *RecordHandlers) BulkDelete() gin.HandlerFunc {
	return func(c *gin.Context) {
		entity := c.Param("entity")
		var req bulkDeleteRequest
		if err := c.ShouldBindJSON(&req); err != nil || len(req.IDs) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "ids is required"})
			return
		}

		deleted, err := h.gw.BulkDelete(c.Request.Context(), actorFrom(c), entity, req.IDs)
		observe(entity, "bulk_delete", err)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": deleted})
	}
}

type importRequest struct {
	Records []map[string]any `json:"records" binding:"required"`
}

// @Summary      Import records
// @Description  Processes payloads in order; each failure is reported with its index and never aborts the rest.
// @Tags         Records
// @Accept       json
// @Produce      json
// @Param        entity  path  string         true  "Entity type name"
// @Param        body    body  importRequest  true  "Record payloads"
// @Success      200  {object}  gateway.ImportResult
// @Router       /api/v1/admin/models/{entity}/records/import [post]
func (h *RecordHandlers) Import() gin.HandlerFunc {
	return func(c *gin.Context) {
		entity := c.Param("entity")
		var req importRequest
		if err := c.ShouldBindJSON(&req); err != nil || len(req.Records) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "records is required"})
			return
		}
		if len(req.Records) > h.maxImportBatch {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": "Import batch too large",
				"max":   h.maxImportBatch,
			})
			return
		}

		result, err := h.gw.Import(c.Request.Context(), actorFrom(c), entity, req.Records)
		observe(entity, "import", err)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// intQuery parses a positive integer query parameter with a default.
func intQuery(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	return n
}
