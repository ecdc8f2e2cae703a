package model

import (
	"errors"
	"testing"
)

// ---------------------------------------------------------------------------
// Registry
// ---------------------------------------------------------------------------

func TestRegistry_RegisterAndResolve(t *testing.T) {
	r := NewRegistry()
	et := &EntityType{Name: "widgets", Collection: "widgets", Strategy: Shared}
	if err := r.Register(et); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	got, err := r.Resolve("widgets")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if got != et {
		t.Error("Resolve() returned a different entity type")
	}
}

func TestRegistry_ResolveUnknown(t *testing.T) {
	r := NewRegistry()
	_, err := r.Resolve("nope")
	if !errors.Is(err, ErrModelNotFound) {
		t.Errorf("Resolve() error = %v, want ErrModelNotFound", err)
	}
}

func TestRegistry_DuplicateRegistration(t *testing.T) {
	r := NewRegistry()
	et := &EntityType{Name: "widgets", Collection: "widgets", Strategy: Shared}
	if err := r.Register(et); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if err := r.Register(et); err == nil {
		t.Error("Register() expected error for duplicate name, got nil")
	}
}

func TestRegistry_SharedRequiresCollection(t *testing.T) {
	r := NewRegistry()
	err := r.Register(&EntityType{Name: "widgets", Strategy: Shared})
	if err == nil {
		t.Error("Register() expected error for shared type without collection, got nil")
	}
}

func TestRegistry_ShardProbe(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&EntityType{Name: "inv", Strategy: PerOwnerShard}); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	// Default probe reports the store unreachable.
	_, err := r.Resolve("inv")
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("Resolve() error = %v, want ErrStoreUnavailable", err)
	}

	r.SetShardProbe(func() bool { return true })
	if _, err := r.Resolve("inv"); err != nil {
		t.Errorf("Resolve() after probe enabled error: %v", err)
	}

	r.SetShardProbe(func() bool { return false })
	if _, err := r.Resolve("inv"); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("Resolve() after probe disabled error = %v, want ErrStoreUnavailable", err)
	}
}

func TestRegistry_ShardProbeDoesNotAffectSharedTypes(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&EntityType{Name: "widgets", Collection: "widgets", Strategy: Shared}); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	// Probe is the unreachable default; shared types must still resolve.
	if _, err := r.Resolve("widgets"); err != nil {
		t.Errorf("Resolve() error for shared type: %v", err)
	}
}

func TestRegistry_TypesPreservesOrder(t *testing.T) {
	r := NewRegistry()
	names := []string{"alpha", "beta", "gamma"}
	for _, n := range names {
		if err := r.Register(&EntityType{Name: n, Collection: n, Strategy: Shared}); err != nil {
			t.Fatalf("Register(%q) error: %v", n, err)
		}
	}
	types := r.Types()
	if len(types) != len(names) {
		t.Fatalf("Types() returned %d types, want %d", len(types), len(names))
	}
	for i, n := range names {
		if types[i].Name != n {
			t.Errorf("Types()[%d].Name = %q, want %q", i, types[i].Name, n)
		}
	}
}

// ---------------------------------------------------------------------------
// EntityType helpers
// ---------------------------------------------------------------------------

func TestEntityType_Field(t *testing.T) {
	et := &EntityType{
		Name: "widgets",
		Fields: []FieldDescriptor{
			{Name: "name", Kind: KindString},
			{Name: "size", Kind: KindNumber},
		},
	}
	if fd := et.Field("size"); fd == nil || fd.Kind != KindNumber {
		t.Errorf("Field(size) = %+v, want number descriptor", fd)
	}
	if fd := et.Field("missing"); fd != nil {
		t.Errorf("Field(missing) = %+v, want nil", fd)
	}
}

func TestDescribeFields_ExcludesIdentityAndVersion(t *testing.T) {
	et := &EntityType{
		Name: "widgets",
		Fields: []FieldDescriptor{
			{Name: IdentityField, Kind: KindIdentifier},
			{Name: "name", Kind: KindString},
			{Name: VersionField, Kind: KindNumber},
		},
	}
	fields := DescribeFields(et)
	if len(fields) != 1 || fields[0].Name != "name" {
		t.Errorf("DescribeFields() = %+v, want only the name field", fields)
	}
}

// ---------------------------------------------------------------------------
// Catalog
// ---------------------------------------------------------------------------

func TestNewCatalogRegistry(t *testing.T) {
	r := NewCatalogRegistry()
	r.SetShardProbe(func() bool { return true })

	for _, et := range Catalog() {
		got, err := r.Resolve(et.Name)
		if err != nil {
			t.Errorf("Resolve(%q) error: %v", et.Name, err)
			continue
		}
		if got.Name != et.Name {
			t.Errorf("Resolve(%q).Name = %q", et.Name, got.Name)
		}
	}
}

func TestCatalog_InventoriesIsTheOnlyShardedType(t *testing.T) {
	for _, et := range Catalog() {
		sharded := et.Strategy == PerOwnerShard
		if sharded != (et.Name == EntityInventories) {
			t.Errorf("entity %q strategy = %q", et.Name, et.Strategy)
		}
		if et.Strategy == Shared && et.Collection == "" {
			t.Errorf("shared entity %q has no collection", et.Name)
		}
	}
}

func TestCatalog_ReferencesResolveWithinCatalog(t *testing.T) {
	known := make(map[string]bool)
	for _, et := range Catalog() {
		known[et.Name] = true
	}
	for _, et := range Catalog() {
		for _, fd := range et.Fields {
			if fd.Ref != "" && !known[fd.Ref] {
				t.Errorf("entity %q field %q references unknown type %q", et.Name, fd.Name, fd.Ref)
			}
		}
	}
}

// ---------------------------------------------------------------------------
// Value
// ---------------------------------------------------------------------------

func TestFromJSON(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want ValueKind
	}{
		{"nil", nil, ValueNull},
		{"bool", true, ValueBool},
		{"float64", 3.14, ValueNumber},
		{"int", 7, ValueNumber},
		{"string", "hello", ValueString},
		{"array", []any{"a", float64(1)}, ValueArray},
		{"map", map[string]any{"k": "v"}, ValueMap},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := FromJSON(tt.in)
			if err != nil {
				t.Fatalf("FromJSON() error: %v", err)
			}
			if v.Kind() != tt.want {
				t.Errorf("Kind() = %v, want %v", v.Kind(), tt.want)
			}
		})
	}
}

func TestFromJSON_UnsupportedType(t *testing.T) {
	type opaque struct{}
	if _, err := FromJSON(opaque{}); err == nil {
		t.Error("FromJSON() expected error for unsupported type, got nil")
	}
}

func TestValue_Keys_Sorted(t *testing.T) {
	v, err := FromJSON(map[string]any{"c": 1.0, "a": 2.0, "b": 3.0})
	if err != nil {
		t.Fatalf("FromJSON() error: %v", err)
	}
	keys := v.Keys()
	want := []string{"a", "b", "c"}
	for i, k := range want {
		if keys[i] != k {
			t.Errorf("Keys() = %v, want %v", keys, want)
			break
		}
	}
}
