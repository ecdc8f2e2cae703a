package validate

import (
	"errors"
	"strings"
	"testing"

	"github.com/tavernkeep/tavernkeep/internal/model"
)

func itemsType(t *testing.T) *model.EntityType {
	t.Helper()
	for _, et := range model.Catalog() {
		if et.Name == "items" {
			return et
		}
	}
	t.Fatal("items entity type missing from catalog")
	return nil
}

func fieldError(t *testing.T, err error, field string) string {
	t.Helper()
	var ve *Error
	if !errors.As(err, &ve) {
		t.Fatalf("error = %v, want *validate.Error", err)
	}
	msg, ok := ve.Fields[field]
	if !ok {
		t.Fatalf("no violation for field %q in %v", field, ve.Fields)
	}
	return msg
}

// ---------------------------------------------------------------------------
// Create mode
// ---------------------------------------------------------------------------

func TestRecord_ValidCreate(t *testing.T) {
	payload := map[string]any{
		"name":      "Iron Sword",
		"rarity":    "rare",
		"value":     float64(25),
		"stackable": false,
	}
	if err := Record(itemsType(t), payload, Create); err != nil {
		t.Errorf("Record() unexpected error: %v", err)
	}
}

func TestRecord_MissingRequiredField(t *testing.T) {
	err := Record(itemsType(t), map[string]any{}, Create)
	if err == nil {
		t.Fatal("Record() expected error for missing name, got nil")
	}
	if msg := fieldError(t, err, "name"); msg != "is required" {
		t.Errorf("name violation = %q, want %q", msg, "is required")
	}
}

func TestRecord_RequiredFieldWithDefaultNotDemanded(t *testing.T) {
	// rarity is required but carries a default, so create may omit it.
	err := Record(itemsType(t), map[string]any{"name": "Rope"}, Create)
	if err != nil {
		t.Errorf("Record() unexpected error: %v", err)
	}
}

func TestRecord_CreateExemptFieldNotDemanded(t *testing.T) {
	var characters *model.EntityType
	for _, et := range model.Catalog() {
		if et.Name == "characters" {
			characters = et
		}
	}
	// player_id is required but exempt from create validation.
	err := Record(characters, map[string]any{"name": "Zelda"}, Create)
	if err != nil {
		t.Errorf("Record() unexpected error: %v", err)
	}
}

func TestRecord_BlankStringCountsAsMissing(t *testing.T) {
	err := Record(itemsType(t), map[string]any{"name": "   "}, Create)
	if err == nil {
		t.Fatal("Record() expected error for blank name, got nil")
	}
	fieldError(t, err, "name")
}

func TestRecord_CollectsAllViolations(t *testing.T) {
	payload := map[string]any{
		"name":   "x",
		"rarity": "mythic",
		"value":  float64(-5),
	}
	err := Record(itemsType(t), payload, Create)
	if err == nil {
		t.Fatal("Record() expected error, got nil")
	}
	var ve *Error
	if !errors.As(err, &ve) {
		t.Fatalf("error = %v, want *validate.Error", err)
	}
	if len(ve.Fields) != 2 {
		t.Errorf("collected %d violations (%v), want 2", len(ve.Fields), ve.Fields)
	}
}

// ---------------------------------------------------------------------------
// PartialUpdate mode
// ---------------------------------------------------------------------------

func TestRecord_PartialUpdateSkipsAbsentRequired(t *testing.T) {
	// An update that touches only value must not demand name.
	err := Record(itemsType(t), map[string]any{"value": float64(10)}, PartialUpdate)
	if err != nil {
		t.Errorf("Record() unexpected error: %v", err)
	}
}

func TestRecord_PartialUpdateStillChecksKinds(t *testing.T) {
	err := Record(itemsType(t), map[string]any{"value": "lots"}, PartialUpdate)
	if err == nil {
		t.Fatal("Record() expected error for non-numeric value, got nil")
	}
	if msg := fieldError(t, err, "value"); msg != "must be a number" {
		t.Errorf("value violation = %q", msg)
	}
}

func TestRecord_NullClearsOptionalField(t *testing.T) {
	err := Record(itemsType(t), map[string]any{"description": nil}, PartialUpdate)
	if err != nil {
		t.Errorf("Record() unexpected error: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Kind checks
// ---------------------------------------------------------------------------

func TestCheckKind_String(t *testing.T) {
	fd := model.FieldDescriptor{Name: "name", Kind: model.KindString, MinLen: 2, MaxLen: 5}
	et := &model.EntityType{Name: "t", Fields: []model.FieldDescriptor{fd}}

	tests := []struct {
		name    string
		value   any
		wantErr bool
	}{
		{"ok", "abc", false},
		{"too short", "a", true},
		{"too long", "abcdef", true},
		{"wrong type", float64(3), true},
		{"multibyte runes counted not bytes", "héllo", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Record(et, map[string]any{"name": tt.value}, PartialUpdate)
			if (err != nil) != tt.wantErr {
				t.Errorf("Record() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCheckKind_NumberBounds(t *testing.T) {
	err := Record(itemsType(t), map[string]any{"value": float64(-1)}, PartialUpdate)
	if err == nil {
		t.Fatal("Record() expected error for value below minimum, got nil")
	}
	if msg := fieldError(t, err, "value"); !strings.Contains(msg, "at least") {
		t.Errorf("value violation = %q, want bound message", msg)
	}
}

func TestCheckKind_BooleanLiteralStrings(t *testing.T) {
	for _, v := range []any{true, false, "true", "false"} {
		err := Record(itemsType(t), map[string]any{"stackable": v}, PartialUpdate)
		if err != nil {
			t.Errorf("Record(stackable=%v) unexpected error: %v", v, err)
		}
	}
	if err := Record(itemsType(t), map[string]any{"stackable": "yes"}, PartialUpdate); err == nil {
		t.Error("Record(stackable=yes) expected error, got nil")
	}
}

func TestCheckKind_Date(t *testing.T) {
	fd := model.FieldDescriptor{Name: "when", Kind: model.KindDate}
	et := &model.EntityType{Name: "t", Fields: []model.FieldDescriptor{fd}}

	tests := []struct {
		name    string
		value   any
		wantErr bool
	}{
		{"rfc3339", "2026-08-31T12:00:00Z", false},
		{"date only", "2026-08-31", false},
		{"no zone", "2026-08-31T12:00:00", false},
		{"epoch millis", float64(1756600000000), false},
		{"negative epoch", float64(-1), true},
		{"garbage", "next tuesday", true},
		{"wrong type", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Record(et, map[string]any{"when": tt.value}, PartialUpdate)
			if (err != nil) != tt.wantErr {
				t.Errorf("Record() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCheckKind_Identifier(t *testing.T) {
	fd := model.FieldDescriptor{Name: "ref", Kind: model.KindIdentifier}
	et := &model.EntityType{Name: "t", Fields: []model.FieldDescriptor{fd}}

	if err := Record(et, map[string]any{"ref": "b9d0e6c2-9b3e-4f1a-8a08-1c2d3e4f5a6b"}, PartialUpdate); err != nil {
		t.Errorf("Record() unexpected error for valid uuid: %v", err)
	}
	if err := Record(et, map[string]any{"ref": "not-a-uuid"}, PartialUpdate); err == nil {
		t.Error("Record() expected error for malformed identifier, got nil")
	}
}

func TestCheckKind_ArrayAndObject(t *testing.T) {
	err := Record(itemsType(t), map[string]any{"tags": "not-an-array"}, PartialUpdate)
	if err == nil {
		t.Error("Record() expected error for non-array tags, got nil")
	}
	err = Record(itemsType(t), map[string]any{"effects": []any{"x"}}, PartialUpdate)
	if err == nil {
		t.Error("Record() expected error for non-object effects, got nil")
	}
}

func TestCheckKind_AnyAcceptsEverything(t *testing.T) {
	for _, v := range []any{"s", float64(1), true, []any{}, map[string]any{"k": "v"}} {
		if err := Record(itemsType(t), map[string]any{"metadata": v}, PartialUpdate); err != nil {
			t.Errorf("Record(metadata=%v) unexpected error: %v", v, err)
		}
	}
}

// ---------------------------------------------------------------------------
// Enum checks
// ---------------------------------------------------------------------------

func TestCheckEnum(t *testing.T) {
	err := Record(itemsType(t), map[string]any{"rarity": "mythic"}, PartialUpdate)
	if err == nil {
		t.Fatal("Record() expected error for enum violation, got nil")
	}
	msg := fieldError(t, err, "rarity")
	if !strings.HasPrefix(msg, "must be one of:") {
		t.Errorf("rarity violation = %q", msg)
	}
}

// ---------------------------------------------------------------------------
// Error formatting
// ---------------------------------------------------------------------------

func TestError_SortedDeterministicMessage(t *testing.T) {
	e := &Error{Fields: FieldErrors{"b": "bad", "a": "worse"}}
	want := "validation failed: a: worse; b: bad"
	if e.Error() != want {
		t.Errorf("Error() = %q, want %q", e.Error(), want)
	}
}
