package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tavernkeep/tavernkeep/internal/model"
	"github.com/tavernkeep/tavernkeep/internal/shard"
)

// InventoryHandlers serves the per-owner inventory shard endpoints. Unlike
// the generic record endpoints there is no global item listing; items are
// addressed through their owning character.
type InventoryHandlers struct {
	adapter     *shard.Adapter
	maxPageSize int
}

// NewInventoryHandlers creates the inventory handler set.
func NewInventoryHandlers(adapter *shard.Adapter, maxPageSize int) *InventoryHandlers {
	if maxPageSize < 1 {
		maxPageSize = 100
	}
	return &InventoryHandlers{adapter: adapter, maxPageSize: maxPageSize}
}

// @Summary      List inventory owners
// @Description  Returns characters holding a non-empty inventory shard, with item counts, optionally filtered by display name.
// @Tags         Inventories
// @Produce      json
// @Param        q         query  string  false  "Display name filter"
// @Param        page      query  int     false  "Page number (1-based)"
// @Param        per_page  query  int     false  "Page size"
// @Success      200  {object}  shard.OwnerPage
// @Failure      503  {object}  map[string]string  "Backing store unavailable"
// @Router       /api/v1/admin/inventories [get]
func (h *InventoryHandlers) ListOwners() gin.HandlerFunc {
	return func(c *gin.Context) {
		perPage := intQuery(c, "per_page", 20)
		if perPage > h.maxPageSize {
			perPage = h.maxPageSize
		}

		page, err := h.adapter.ListOwners(c.Request.Context(), c.Query("q"), intQuery(c, "page", 1), perPage)
		observe(model.EntityInventories, "list", err)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

// @Summary      Get inventory
// @Description  Returns one character's full inventory contents.
// @Tags         Inventories
// @Produce      json
// @Param        ownerId  path  string  true  "Character ID"
// @Success      200  {object}  shard.Inventory
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/admin/inventories/{ownerId} [get]
func (h *InventoryHandlers) Get() gin.HandlerFunc {
	return func(c *gin.Context) {
		inv, err := h.adapter.Get(c.Request.Context(), c.Param("ownerId"))
		observe(model.EntityInventories, "get", err)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, inv)
	}
}

// @Summary      Add inventory item
// @Description  Validates and inserts one item into the character's shard, creating the shard on first write.
// @Tags         Inventories
// @Accept       json
// @Produce      json
// @Param        ownerId  path  string                  true  "Character ID"
// @Param        body     body  map[string]interface{}  true  "Item payload"
// @Success      201  {object}  map[string]interface{}
// @Failure      422  {object}  map[string]interface{}
// @Router       /api/v1/admin/inventories/{ownerId}/items [post]
func (h *InventoryHandlers) AddItem() gin.HandlerFunc {
	return func(c *gin.Context) {
		var payload map[string]any
		if err := c.ShouldBindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
			return
		}

		doc, err := h.adapter.AddItem(c.Request.Context(), actorFrom(c), c.Param("ownerId"), payload)
		observe(model.EntityInventories, "create", err)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, doc)
	}
}

// @Summary      Update inventory item
// @Tags         Inventories
// @Accept       json
// @Produce      json
// @Param        ownerId  path  string                  true  "Character ID"
// @Param        itemId   path  string                  true  "Item ID"
// @Param        body     body  map[string]interface{}  true  "Partial patch"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/admin/inventories/{ownerId}/items/{itemId} [patch]
func (h *InventoryHandlers) UpdateItem() gin.HandlerFunc {
	return func(c *gin.Context) {
		var patch map[string]any
		if err := c.ShouldBindJSON(&patch); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
			return
		}

		doc, err := h.adapter.UpdateItem(c.Request.Context(), actorFrom(c), c.Param("ownerId"), c.Param("itemId"), patch)
		observe(model.EntityInventories, "update", err)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, doc)
	}
}

// @Summary      Delete inventory item
// @Tags         Inventories
// @Produce      json
// @Param        ownerId  path  string  true  "Character ID"
// @Param        itemId   path  string  true  "Item ID"
// @Success      204  "Deleted"
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/admin/inventories/{ownerId}/items/{itemId} [delete]
func (h *InventoryHandlers) DeleteItem() gin.HandlerFunc {
	return func(c *gin.Context) {
		err := h.adapter.DeleteItem(c.Request.Context(), actorFrom(c), c.Param("ownerId"), c.Param("itemId"))
		observe(model.EntityInventories, "delete", err)
		if err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
