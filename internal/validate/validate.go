// Package validate checks record payloads against the static field
// descriptors of their entity type. Validation is exhaustive: every
// violation across every field is collected into one error rather than
// stopping at the first, so admin UIs can mark all bad inputs at once.
package validate

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/tavernkeep/tavernkeep/internal/model"
)

// Mode selects which rules apply.
type Mode int

const (
	// Create enforces required fields (minus defaults and the entity's
	// exemption list) in addition to per-kind checks.
	Create Mode = iota
	// PartialUpdate checks only the fields present in the payload.
	PartialUpdate
)

// FieldErrors maps field name (or "field[index]" for array elements) to a
// human-readable message.
type FieldErrors map[string]string

// Error carries the collected field violations for one payload.
type Error struct {
	Fields FieldErrors
}

func (e *Error) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// dateLayouts are the accepted textual date formats, tried in order.
var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

// Record validates payload against the entity type's descriptors. A nil
// return means the payload is acceptable for the given mode.
func Record(et *model.EntityType, payload map[string]any, mode Mode) error {
	errs := make(FieldErrors)

	for _, fd := range model.DescribeFields(et) {
		raw, present := payload[fd.Name]

		if !present {
			if mode == Create && fd.Required && fd.Default == nil && !et.IsCreateExempt(fd.Name) {
				errs[fd.Name] = "is required"
			}
			continue
		}

		val, err := model.FromJSON(raw)
		if err != nil {
			errs[fd.Name] = "is not a JSON value"
			continue
		}

		if isEmpty(val) {
			if mode == Create && fd.Required && fd.Default == nil && !et.IsCreateExempt(fd.Name) {
				errs[fd.Name] = "is required"
			}
			// Empty optional values are acceptable in any mode; they clear
			// the field rather than failing its kind check.
			continue
		}

		if msg := checkKind(fd, val); msg != "" {
			errs[fd.Name] = msg
			continue
		}

		if len(fd.Enum) > 0 {
			if msg := checkEnum(fd, val); msg != "" {
				errs[fd.Name] = msg
			}
		}
	}

	if len(errs) > 0 {
		return &Error{Fields: errs}
	}
	return nil
}

// isEmpty reports whether a supplied value counts as "not populated" for
// required-field purposes: null, or a blank string. Zero numbers, false
// booleans, and empty containers are real values.
func isEmpty(v model.Value) bool {
	if v.IsNull() {
		return true
	}
	return v.Kind() == model.ValueString && strings.TrimSpace(v.Str()) == ""
}

func checkKind(fd model.FieldDescriptor, v model.Value) string {
	switch fd.Kind {
	case model.KindString:
		if v.Kind() != model.ValueString {
			return "must be a string"
		}
		n := utf8.RuneCountInString(v.Str())
		if fd.MinLen > 0 && n < fd.MinLen {
			return fmt.Sprintf("must be at least %d characters", fd.MinLen)
		}
		if fd.MaxLen > 0 && n > fd.MaxLen {
			return fmt.Sprintf("must be at most %d characters", fd.MaxLen)
		}

	case model.KindNumber:
		if v.Kind() != model.ValueNumber {
			return "must be a number"
		}
		if !v.IsFinite() {
			return "must be a finite number"
		}
		if fd.Min != nil && v.Number() < *fd.Min {
			return fmt.Sprintf("must be at least %v", *fd.Min)
		}
		if fd.Max != nil && v.Number() > *fd.Max {
			return fmt.Sprintf("must be at most %v", *fd.Max)
		}

	case model.KindBoolean:
		// Tolerate the two literal spellings, which HTML form payloads
		// routinely produce instead of JSON booleans.
		if v.Kind() == model.ValueBool {
			return ""
		}
		if v.Kind() == model.ValueString && (v.Str() == "true" || v.Str() == "false") {
			return ""
		}
		return "must be a boolean"

	case model.KindDate:
		if !isValidDate(v) {
			return "must be a valid date"
		}

	case model.KindIdentifier:
		if v.Kind() != model.ValueString {
			return "must be an identifier"
		}
		if _, err := uuid.Parse(v.Str()); err != nil {
			return "must be a valid identifier"
		}

	case model.KindArray:
		if v.Kind() != model.ValueArray {
			return "must be an array"
		}

	case model.KindObject:
		if v.Kind() != model.ValueMap {
			return "must be an object"
		}

	case model.KindAny:
		// Accepted unconditionally.
	}
	return ""
}

// isValidDate accepts textual dates in the known layouts and positive epoch
// milliseconds.
func isValidDate(v model.Value) bool {
	switch v.Kind() {
	case model.ValueString:
		for _, layout := range dateLayouts {
			if _, err := time.Parse(layout, v.Str()); err == nil {
				return true
			}
		}
		return false
	case model.ValueNumber:
		return v.IsFinite() && v.Number() > 0
	default:
		return false
	}
}

// checkEnum verifies membership in the declared value set. The check applies
// regardless of primitive kind, so enum values are compared in string form.
func checkEnum(fd model.FieldDescriptor, v model.Value) string {
	s, ok := stringForm(v)
	if !ok {
		return enumMessage(fd)
	}
	for _, allowed := range fd.Enum {
		if s == allowed {
			return ""
		}
	}
	return enumMessage(fd)
}

func enumMessage(fd model.FieldDescriptor) string {
	return "must be one of: " + strings.Join(fd.Enum, ", ")
}

func stringForm(v model.Value) (string, bool) {
	switch v.Kind() {
	case model.ValueString:
		return v.Str(), true
	case model.ValueNumber:
		return strconv.FormatFloat(v.Number(), 'f', -1, 64), true
	case model.ValueBool:
		return strconv.FormatBool(v.Bool()), true
	default:
		return "", false
	}
}
