package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tavernkeep/tavernkeep/internal/model"
)

// SchemaHandlers serves schema introspection: the catalog of registered
// entity types and the field-level description the dashboard uses to build
// its forms and tables.
type SchemaHandlers struct {
	registry *model.Registry
}

// NewSchemaHandlers creates the schema handler set.
func NewSchemaHandlers(registry *model.Registry) *SchemaHandlers {
	return &SchemaHandlers{registry: registry}
}

type entitySummary struct {
	Name     string `json:"name"`
	Strategy string `json:"strategy"`
}

// @Summary      List entity types
// @Description  Returns every registered entity type in registration order.
// @Tags         Schema
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/v1/admin/models [get]
func (h *SchemaHandlers) ListTypes() gin.HandlerFunc {
	return func(c *gin.Context) {
		types := h.registry.Types()
		out := make([]entitySummary, 0, len(types))
		for _, et := range types {
			out = append(out, entitySummary{
				Name:     et.Name,
				Strategy: string(et.Strategy),
			})
		}
		c.JSON(http.StatusOK, gin.H{"models": out})
	}
}

type fieldDescription struct {
	Name     string   `json:"name"`
	Kind     string   `json:"kind"`
	Required bool     `json:"required"`
	Default  any      `json:"default,omitempty"`
	Enum     []string `json:"enum,omitempty"`
	Ref      string   `json:"ref,omitempty"`
	MinLen   int      `json:"min_len,omitempty"`
	MaxLen   int      `json:"max_len,omitempty"`
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
}

// @Summary      Describe entity type
// @Description  Returns the entity's field descriptors, excluding the engine-managed identity and revision fields.
// @Tags         Schema
// @Produce      json
// @Param        entity  path  string  true  "Entity type name"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/admin/models/{entity} [get]
func (h *SchemaHandlers) Describe() gin.HandlerFunc {
	return func(c *gin.Context) {
		et, err := h.registry.Resolve(c.Param("entity"))
		if err != nil {
			respondError(c, err)
			return
		}

		fields := model.DescribeFields(et)
		out := make([]fieldDescription, 0, len(fields))
		for _, fd := range fields {
			out = append(out, fieldDescription{
				Name:     fd.Name,
				Kind:     string(fd.Kind),
				Required: fd.Required,
				Default:  fd.Default,
				Enum:     fd.Enum,
				Ref:      fd.Ref,
				MinLen:   fd.MinLen,
				MaxLen:   fd.MaxLen,
				Min:      fd.Min,
				Max:      fd.Max,
			})
		}
		c.JSON(http.StatusOK, gin.H{
			"name":     et.Name,
			"strategy": string(et.Strategy),
			"fields":   out,
		})
	}
}
