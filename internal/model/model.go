// Package model holds the static metadata catalog for every record type the
// administrative engine can manage. Each entity type declares its field
// descriptors and storage strategy once at startup; nothing in this package
// inspects live data or third-party schema objects at request time.
package model

// Kind is the primitive kind of a field value.
type Kind string

const (
	KindString     Kind = "string"
	KindNumber     Kind = "number"
	KindBoolean    Kind = "boolean"
	KindDate       Kind = "date"
	KindIdentifier Kind = "identifier"
	KindArray      Kind = "array"
	KindObject     Kind = "object"
	// KindAny accepts any JSON value. Used for free-form metadata fields
	// whose shape is owned by game systems outside the dashboard.
	KindAny Kind = "any"
)

// Strategy describes how records of an entity type are physically stored.
type Strategy string

const (
	// Shared stores all records of the type in one collection.
	Shared Strategy = "shared"
	// PerOwnerShard stores records in one collection per owner key.
	PerOwnerShard Strategy = "per_owner_shard"
)

// identity and internal version columns are never part of an entity's
// declared attribute set and are filtered out of schema descriptions.
const (
	IdentityField = "id"
	VersionField  = "rev"
)

// FieldDescriptor describes a single attribute of an entity type.
type FieldDescriptor struct {
	Name     string   `json:"name"`
	Kind     Kind     `json:"kind"`
	Required bool     `json:"required"`
	Default  any      `json:"default,omitempty"`
	Enum     []string `json:"enum,omitempty"`
	// Ref names the entity type this identifier (or array of identifiers)
	// points at. Empty for non-reference fields.
	Ref string `json:"ref,omitempty"`

	// String length bounds; zero means unbounded.
	MinLen int `json:"min_len,omitempty"`
	MaxLen int `json:"max_len,omitempty"`

	// Numeric bounds; nil means unbounded.
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// EntityType is one registered logical record kind.
type EntityType struct {
	// Name is the logical name used in API paths and audit entries.
	Name string `json:"name"`
	// Collection is the physical collection name for Shared types. Empty
	// for PerOwnerShard types, whose collections are resolved per owner.
	Collection string `json:"collection,omitempty"`
	Strategy   Strategy `json:"strategy"`
	Fields     []FieldDescriptor `json:"fields"`
	// CreateExempt lists required fields whose population is deferred to
	// business logic outside the admin engine (e.g. the Discord account
	// link flow). Create validation does not demand them.
	CreateExempt []string `json:"create_exempt,omitempty"`
}

// Field returns the descriptor for name, or nil if the entity has no such field.
func (et *EntityType) Field(name string) *FieldDescriptor {
	for i := range et.Fields {
		if et.Fields[i].Name == name {
			return &et.Fields[i]
		}
	}
	return nil
}

// IsCreateExempt reports whether name is on the entity's create exemption list.
func (et *EntityType) IsCreateExempt(name string) bool {
	for _, f := range et.CreateExempt {
		if f == name {
			return true
		}
	}
	return false
}

// DescribeFields returns the entity's field descriptors in declaration
// order, excluding the identity and internal version fields. The result is
// what the schema-description endpoint serves so admin UIs can build forms
// without hard-coding per-type knowledge.
func DescribeFields(et *EntityType) []FieldDescriptor {
	out := make([]FieldDescriptor, 0, len(et.Fields))
	for _, f := range et.Fields {
		if f.Name == IdentityField || f.Name == VersionField {
			continue
		}
		out = append(out, f)
	}
	return out
}

func floatPtr(f float64) *float64 { return &f }
