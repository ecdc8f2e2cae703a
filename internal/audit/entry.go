// Package audit is the immutable trail of administrative mutations. Every
// successful create, update, delete, bulk-delete item, and import item
// produces exactly one entry with before/after snapshots. Entries are only
// ever inserted — nothing in the codebase updates or deletes them — because
// their consumers (moderation reviews, dispute resolution) need a record
// that operators cannot quietly rewrite.
package audit

import (
	"time"

	"github.com/tavernkeep/tavernkeep/internal/docstore"
)

// Action is the kind of mutation an entry records.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	// ActionBulkDelete marks one record deleted as part of a bulk delete;
	// a bulk delete of N records emits N entries.
	ActionBulkDelete Action = "bulk_delete"
	// ActionImport marks one record created as part of a bulk import.
	ActionImport Action = "import"
)

// Entry is one audit trail record.
type Entry struct {
	ID          string       `json:"id"`
	ActorID     string       `json:"actor_id"`
	ActorName   string       `json:"actor_name,omitempty"`
	Action      Action       `json:"action"`
	Entity      string       `json:"entity"`
	RecordID    string       `json:"record_id"`
	RecordLabel string       `json:"record_label,omitempty"`
	Before      docstore.Doc `json:"before,omitempty"`
	After       docstore.Doc `json:"after,omitempty"`
	IPAddress   string       `json:"ip_address,omitempty"`
	RequestID   string       `json:"request_id,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}
