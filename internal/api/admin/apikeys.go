package admin

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tavernkeep/tavernkeep/internal/auth"
)

// APIKeyHandlers serves bot credential management. The raw key appears in
// exactly one response, at creation time.
type APIKeyHandlers struct {
	store  *auth.APIKeyStore
	prefix string
}

// NewAPIKeyHandlers creates the API key handler set. prefix is prepended to
// every generated key (e.g. "tvk").
func NewAPIKeyHandlers(store *auth.APIKeyStore, prefix string) *APIKeyHandlers {
	if prefix == "" {
		prefix = auth.DefaultKeyPrefix
	}
	return &APIKeyHandlers{store: store, prefix: prefix}
}

// @Summary      List API keys
// @Tags         APIKeys
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/v1/admin/apikeys [get]
func (h *APIKeyHandlers) List() gin.HandlerFunc {
	return func(c *gin.Context) {
		keys, err := h.store.List(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"keys": keys})
	}
}

type createKeyRequest struct {
	Name      string `json:"name" binding:"required"`
	ExpiresIn string `json:"expires_in"` // Go duration string, e.g. "720h"
}

// @Summary      Create API key
// @Description  Generates a new key and returns the raw value once. Only the bcrypt hash is stored.
// @Tags         APIKeys
// @Accept       json
// @Produce      json
// @Param        body  body  createKeyRequest  true  "Key settings"
// @Success      201  {object}  map[string]interface{}
// @Router       /api/v1/admin/apikeys [post]
func (h *APIKeyHandlers) Create() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createKeyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
			return
		}

		var expiresAt *time.Time
		if req.ExpiresIn != "" {
			d, err := time.ParseDuration(req.ExpiresIn)
			if err != nil || d <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "expires_in must be a positive duration"})
				return
			}
			t := time.Now().UTC().Add(d)
			expiresAt = &t
		}

		gk, err := auth.NewAPIKey(h.prefix)
		if err != nil {
			respondError(c, err)
			return
		}

		key, err := h.store.Create(c.Request.Context(), req.Name, gk.Hash, gk.DisplayPrefix, c.GetString("user_id"), expiresAt)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"key": key,
			// Shown once; the server keeps only the hash.
			"raw_key": gk.Raw,
		})
	}
}

// @Summary      Revoke API key
// @Tags         APIKeys
// @Produce      json
// @Param        id  path  string  true  "Key ID"
// @Success      204  "Revoked"
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/admin/apikeys/{id} [delete]
func (h *APIKeyHandlers) Revoke() gin.HandlerFunc {
	return func(c *gin.Context) {
		err := h.store.Revoke(c.Request.Context(), c.Param("id"))
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "API key not found"})
			return
		}
		if err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
