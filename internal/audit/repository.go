// repository.go persists and queries audit entries. The query side mirrors
// the filters the audit endpoint exposes: actor, entity, action, record id,
// and time range, newest first with pagination.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/tavernkeep/tavernkeep/internal/docstore"
)

// Repository handles audit trail database operations.
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates a Repository.
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Filters narrows a ListEntries query. Nil fields are not applied.
type Filters struct {
	ActorID  *string
	Entity   *string
	Action   *Action
	RecordID *string
	From     *time.Time
	To       *time.Time
}

// Insert appends one entry. The id and timestamp are assigned here so
// callers cannot backdate or overwrite entries.
func (r *Repository) Insert(ctx context.Context, e *Entry) error {
	e.ID = uuid.New().String()
	e.CreatedAt = time.Now().UTC()

	before, err := marshalSnapshot(e.Before)
	if err != nil {
		return fmt.Errorf("marshal before snapshot: %w", err)
	}
	after, err := marshalSnapshot(e.After)
	if err != nil {
		return fmt.Errorf("marshal after snapshot: %w", err)
	}

	query := `
		INSERT INTO audit_log (id, actor_id, actor_name, action, entity, record_id, record_label,
			before_doc, after_doc, ip_address, request_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = r.db.ExecContext(ctx, query,
		e.ID, e.ActorID, e.ActorName, e.Action, e.Entity, e.RecordID, e.RecordLabel,
		before, after, e.IPAddress, e.RequestID, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// ListEntries returns entries matching the filters, newest first, plus the
// total matching count for pagination.
func (r *Repository) ListEntries(ctx context.Context, f Filters, limit, offset int) ([]*Entry, int, error) {
	where := ` WHERE 1=1`
	args := make([]any, 0, 8)

	addFilter := func(clause string, v any) {
		args = append(args, v)
		where += fmt.Sprintf(clause, len(args))
	}

	if f.ActorID != nil {
		addFilter(` AND actor_id = $%d`, *f.ActorID)
	}
	if f.Entity != nil {
		addFilter(` AND entity = $%d`, *f.Entity)
	}
	if f.Action != nil {
		addFilter(` AND action = $%d`, *f.Action)
	}
	if f.RecordID != nil {
		addFilter(` AND record_id = $%d`, *f.RecordID)
	}
	if f.From != nil {
		addFilter(` AND created_at >= $%d`, *f.From)
	}
	if f.To != nil {
		addFilter(` AND created_at <= $%d`, *f.To)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_log`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit entries: %w", err)
	}

	query := `
		SELECT id, actor_id, actor_name, action, entity, record_id, record_label,
			before_doc, after_doc, ip_address, request_id, created_at
		FROM audit_log` + where
	args = append(args, limit, offset)
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	entries := make([]*Entry, 0)
	for rows.Next() {
		e := &Entry{}
		var before, after []byte
		if err := rows.Scan(
			&e.ID, &e.ActorID, &e.ActorName, &e.Action, &e.Entity, &e.RecordID, &e.RecordLabel,
			&before, &after, &e.IPAddress, &e.RequestID, &e.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan audit entry: %w", err)
		}
		if e.Before, err = unmarshalSnapshot(before); err != nil {
			return nil, 0, err
		}
		if e.After, err = unmarshalSnapshot(after); err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

func marshalSnapshot(doc docstore.Doc) ([]byte, error) {
	if doc == nil {
		return nil, nil
	}
	return json.Marshal(doc)
}

func unmarshalSnapshot(raw []byte) (docstore.Doc, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var doc docstore.Doc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal audit snapshot: %w", err)
	}
	return doc, nil
}
