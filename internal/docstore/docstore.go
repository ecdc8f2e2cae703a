// Package docstore implements the document store the admin engine persists
// records into. Each logical collection is one PostgreSQL table with a JSONB
// document column; shared entity collections are created by migrations,
// while per-owner shard collections are opened (created if missing) at
// request time through OpenCollection.
package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Doc is one stored document's attribute map. Reads merge the identity and
// version columns back in under "id" and "rev".
type Doc map[string]any

// ErrNotFound is returned when a document id does not resolve.
var ErrNotFound = errors.New("document not found")

// collection names end up in SQL identifiers, so they are restricted to a
// conservative charset and length (PostgreSQL truncates identifiers at 63).
var collectionNameRe = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)

// DB wraps the SQL connection and hands out collection handles.
type DB struct {
	conn *sqlx.DB
}

// New wraps an established sqlx connection.
func New(conn *sqlx.DB) *DB {
	return &DB{conn: conn}
}

// Connected reports whether the underlying connection currently answers a
// ping. The model registry uses this as the shard-store availability probe.
func (d *DB) Connected() bool {
	if d == nil || d.conn == nil {
		return false
	}
	return d.conn.Ping() == nil
}

// Collection returns a handle for an existing collection table. The name
// must come from the static catalog or a migration, never from request input.
func (d *DB) Collection(name string) *Collection {
	return &Collection{conn: d.conn, name: name}
}

// OpenCollection returns a handle for name, creating the backing table if
// it does not exist yet. This is the "open or create a named sub-collection"
// capability the per-owner shard layout needs.
func (d *DB) OpenCollection(ctx context.Context, name string) (*Collection, error) {
	if !collectionNameRe.MatchString(name) {
		return nil, fmt.Errorf("invalid collection name %q", name)
	}
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id         TEXT PRIMARY KEY,
			doc        JSONB NOT NULL,
			rev        BIGINT NOT NULL DEFAULT 1,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, pq.QuoteIdentifier(name))
	if _, err := d.conn.ExecContext(ctx, ddl); err != nil {
		return nil, fmt.Errorf("failed to open collection %q: %w", name, err)
	}
	return &Collection{conn: d.conn, name: name}, nil
}

// Collection is a handle to one collection table.
type Collection struct {
	conn *sqlx.DB
	name string
}

// Name returns the physical collection name.
func (c *Collection) Name() string { return c.name }

// Filter matches documents where at least one of Fields contains Needle
// case-insensitively. A zero Filter matches everything.
type Filter struct {
	Fields []string
	Needle string
}

func (f Filter) empty() bool { return len(f.Fields) == 0 || f.Needle == "" }

// Sort orders results by one document field. The zero Sort orders by
// creation time, newest first.
type Sort struct {
	Field string
	Desc  bool
}

// escapeLike escapes LIKE wildcards in a user-supplied needle.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// whereClause renders the filter into SQL, appending bind args.
func (f Filter) whereClause(args *[]any) string {
	if f.empty() {
		return ""
	}
	pattern := "%" + escapeLike(f.Needle) + "%"
	parts := make([]string, 0, len(f.Fields))
	for _, field := range f.Fields {
		*args = append(*args, field, pattern)
		parts = append(parts, fmt.Sprintf(`doc->>$%d ILIKE $%d`, len(*args)-1, len(*args)))
	}
	return " WHERE (" + strings.Join(parts, " OR ") + ")"
}

func (s Sort) orderClause() string {
	if s.Field == "" {
		return " ORDER BY created_at DESC"
	}
	dir := "ASC"
	if s.Desc {
		dir = "DESC"
	}
	// Field names are validated against the entity schema by the caller;
	// quoting here is belt and braces for the identifier-in-JSON position.
	return fmt.Sprintf(" ORDER BY doc->>%s %s, created_at DESC", quoteLiteral(s.Field), dir)
}

// quoteLiteral renders a string as a SQL literal for positions where bind
// parameters are not usable (ORDER BY key expressions).
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Insert stores a new document under id.
func (c *Collection) Insert(ctx context.Context, id string, doc Doc) error {
	raw, err := marshalDoc(doc)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`INSERT INTO %s (id, doc) VALUES ($1, $2)`, pq.QuoteIdentifier(c.name))
	if _, err := c.conn.ExecContext(ctx, query, id, raw); err != nil {
		return fmt.Errorf("insert into %s: %w", c.name, err)
	}
	return nil
}

// FindByID fetches one document, or ErrNotFound.
func (c *Collection) FindByID(ctx context.Context, id string) (Doc, error) {
	query := fmt.Sprintf(`SELECT id, doc, rev FROM %s WHERE id = $1`, pq.QuoteIdentifier(c.name))
	return c.scanOne(c.conn.QueryRowxContext(ctx, query, id))
}

// FindByIDs fetches every document whose id is in ids. Missing ids are
// simply absent from the result; the caller diffs if it needs to know.
func (c *Collection) FindByIDs(ctx context.Context, ids []string) ([]Doc, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT id, doc, rev FROM %s WHERE id = ANY($1)`, pq.QuoteIdentifier(c.name))
	rows, err := c.conn.QueryxContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("find by ids in %s: %w", c.name, err)
	}
	defer rows.Close()
	return c.scanAll(rows)
}

// Find returns a page of documents matching the filter.
func (c *Collection) Find(ctx context.Context, f Filter, s Sort, limit, offset int) ([]Doc, error) {
	args := make([]any, 0, 4)
	query := fmt.Sprintf(`SELECT id, doc, rev FROM %s`, pq.QuoteIdentifier(c.name))
	query += f.whereClause(&args)
	query += s.orderClause()
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if offset > 0 {
		args = append(args, offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	rows, err := c.conn.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", c.name, err)
	}
	defer rows.Close()
	return c.scanAll(rows)
}

// Count returns the number of documents matching the filter.
func (c *Collection) Count(ctx context.Context, f Filter) (int, error) {
	args := make([]any, 0, 2)
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, pq.QuoteIdentifier(c.name))
	query += f.whereClause(&args)
	var total int
	if err := c.conn.QueryRowxContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count in %s: %w", c.name, err)
	}
	return total, nil
}

// UpdateByID replaces the document stored under id and bumps its revision.
func (c *Collection) UpdateByID(ctx context.Context, id string, doc Doc) error {
	raw, err := marshalDoc(doc)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(
		`UPDATE %s SET doc = $2, rev = rev + 1, updated_at = now() WHERE id = $1`,
		pq.QuoteIdentifier(c.name))
	res, err := c.conn.ExecContext(ctx, query, id, raw)
	if err != nil {
		return fmt.Errorf("update in %s: %w", c.name, err)
	}
	return requireRow(res)
}

// DeleteByID removes the document stored under id, or ErrNotFound.
func (c *Collection) DeleteByID(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, pq.QuoteIdentifier(c.name))
	res, err := c.conn.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete in %s: %w", c.name, err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// marshalDoc serialises the attribute map, dropping the merged-in identity
// and version keys so they are never duplicated inside the JSONB column.
func marshalDoc(doc Doc) ([]byte, error) {
	clean := make(map[string]any, len(doc))
	for k, v := range doc {
		if k == "id" || k == "rev" {
			continue
		}
		clean[k] = v
	}
	raw, err := json.Marshal(clean)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	return raw, nil
}

func (c *Collection) scanOne(row *sqlx.Row) (Doc, error) {
	var (
		id  string
		raw []byte
		rev int64
	)
	if err := row.Scan(&id, &raw, &rev); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan from %s: %w", c.name, err)
	}
	return unmarshalDoc(id, raw, rev)
}

func (c *Collection) scanAll(rows *sqlx.Rows) ([]Doc, error) {
	docs := make([]Doc, 0)
	for rows.Next() {
		var (
			id  string
			raw []byte
			rev int64
		)
		if err := rows.Scan(&id, &raw, &rev); err != nil {
			return nil, fmt.Errorf("scan from %s: %w", c.name, err)
		}
		doc, err := unmarshalDoc(id, raw, rev)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func unmarshalDoc(id string, raw []byte, rev int64) (Doc, error) {
	doc := make(Doc)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("unmarshal document %s: %w", id, err)
		}
	}
	doc["id"] = id
	doc["rev"] = rev
	return doc, nil
}
