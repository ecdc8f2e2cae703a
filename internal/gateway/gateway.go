// Package gateway implements the generic administrative CRUD engine: one
// uniform list/get/create/update/delete/bulk-delete/import surface across
// every registered entity type. Handlers never touch collections directly;
// every mutation flows through here so validation, reference checks, and
// the audit trail cannot be bypassed.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/tavernkeep/tavernkeep/internal/audit"
	"github.com/tavernkeep/tavernkeep/internal/docstore"
	"github.com/tavernkeep/tavernkeep/internal/model"
	"github.com/tavernkeep/tavernkeep/internal/refcheck"
	"github.com/tavernkeep/tavernkeep/internal/validate"
)

// Store is the persistence capability the gateway needs per collection.
// *docstore.Collection satisfies it.
type Store interface {
	Insert(ctx context.Context, id string, doc docstore.Doc) error
	FindByID(ctx context.Context, id string) (docstore.Doc, error)
	FindByIDs(ctx context.Context, ids []string) ([]docstore.Doc, error)
	Find(ctx context.Context, f docstore.Filter, s docstore.Sort, limit, offset int) ([]docstore.Doc, error)
	Count(ctx context.Context, f docstore.Filter) (int, error)
	UpdateByID(ctx context.Context, id string, doc docstore.Doc) error
	DeleteByID(ctx context.Context, id string) error
}

// StoreResolver maps an entity type to its store.
type StoreResolver interface {
	StoreFor(ctx context.Context, et *model.EntityType) (Store, error)
}

// Recorder appends to the audit trail. *audit.Trail satisfies it.
type Recorder interface {
	Record(ctx context.Context, e *audit.Entry) error
}

// Actor identifies who performed a mutation and where the request came
// from; it is stamped into every audit entry.
type Actor struct {
	ID        string
	Name      string
	IPAddress string
	RequestID string
}

// commonLabelFields are the display-name-like fields free-text list search
// matches across, in preference order. The same order picks the audit
// record label.
var commonLabelFields = []string{"name", "title", "display_name", "label"}

// Gateway orchestrates registry resolution, validation, reference checks,
// persistence, and audit logging.
type Gateway struct {
	registry *model.Registry
	stores   StoreResolver
	refs     *refcheck.Checker
	trail    Recorder
}

// New wires a gateway. The reference checker is built on the same registry
// and store resolver so reference lookups see the same data the gateway
// persists into.
func New(registry *model.Registry, stores StoreResolver, trail Recorder) *Gateway {
	return &Gateway{
		registry: registry,
		stores:   stores,
		refs:     refcheck.New(registry, refAdapter{stores}),
		trail:    trail,
	}
}

// refAdapter narrows the gateway's store resolver to the lookup capability
// the reference checker needs.
type refAdapter struct {
	stores StoreResolver
}

func (a refAdapter) StoreFor(ctx context.Context, et *model.EntityType) (refcheck.Lookup, error) {
	return a.stores.StoreFor(ctx, et)
}

// NewStoreResolver resolves shared entity types to their docstore
// collections. PerOwnerShard types have no shared collection; their calls
// are intercepted by the shard adapter before reaching a store.
func NewStoreResolver(db *docstore.DB) StoreResolver {
	return docResolver{db: db}
}

type docResolver struct {
	db *docstore.DB
}

func (r docResolver) StoreFor(_ context.Context, et *model.EntityType) (Store, error) {
	if et.Strategy != model.Shared {
		return nil, fmt.Errorf("%w: %s", ErrShardedEntity, et.Name)
	}
	return r.db.Collection(et.Collection), nil
}

// ListParams are the paging, filtering, and sorting inputs to List.
type ListParams struct {
	Page      int
	PerPage   int
	Query     string // free text matched across common label fields
	SortField string
	SortDesc  bool
}

// Page is one page of records plus pagination metadata.
type Page struct {
	Records []docstore.Doc `json:"records"`
	Total   int            `json:"total"`
	Page    int            `json:"page"`
	PerPage int            `json:"per_page"`
}

// List returns a page of records. Free text filters with an OR across the
// common label fields present on the entity's schema; when the schema has
// none of them the filter is ignored rather than failing the query.
func (g *Gateway) List(ctx context.Context, entity string, p ListParams) (*Page, error) {
	et, store, err := g.resolve(ctx, entity)
	if err != nil {
		return nil, err
	}

	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage < 1 {
		p.PerPage = 20
	}

	filter := docstore.Filter{}
	if p.Query != "" {
		if fields := labelFields(et); len(fields) > 0 {
			filter = docstore.Filter{Fields: fields, Needle: p.Query}
		}
	}

	sort := docstore.Sort{Desc: p.SortDesc}
	if p.SortField != "" && et.Field(p.SortField) != nil {
		sort.Field = p.SortField
	}

	total, err := store.Count(ctx, filter)
	if err != nil {
		return nil, err
	}
	records, err := store.Find(ctx, filter, sort, p.PerPage, (p.Page-1)*p.PerPage)
	if err != nil {
		return nil, err
	}
	return &Page{Records: records, Total: total, Page: p.Page, PerPage: p.PerPage}, nil
}

// Get fetches one record by id.
func (g *Gateway) Get(ctx context.Context, entity, id string) (docstore.Doc, error) {
	_, store, err := g.resolve(ctx, entity)
	if err != nil {
		return nil, err
	}
	doc, err := store.FindByID(ctx, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s %q", ErrRecordNotFound, entity, id)
	}
	return doc, err
}

// Create validates the payload, checks its references, persists a new
// record, and appends a create audit entry.
func (g *Gateway) Create(ctx context.Context, actor Actor, entity string, payload map[string]any) (docstore.Doc, error) {
	et, store, err := g.resolve(ctx, entity)
	if err != nil {
		return nil, err
	}

	if err := validate.Record(et, payload, validate.Create); err != nil {
		return nil, err
	}
	if err := g.refs.Check(ctx, et, payload); err != nil {
		return nil, err
	}

	doc := BuildDoc(et, payload)
	id := uuid.New().String()
	if err := store.Insert(ctx, id, doc); err != nil {
		return nil, err
	}
	doc["id"] = id

	if err := g.record(ctx, actor, audit.ActionCreate, et, id, nil, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Update applies a partial patch: only fields supplied in the patch are
// validated, reference-checked, and written; everything else keeps its
// stored value. A patch touching no declared field is a no-op: nothing is
// written, the version stays put, and no audit entry is appended.
func (g *Gateway) Update(ctx context.Context, actor Actor, entity, id string, patch map[string]any) (docstore.Doc, error) {
	et, store, err := g.resolve(ctx, entity)
	if err != nil {
		return nil, err
	}

	before, err := store.FindByID(ctx, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s %q", ErrRecordNotFound, entity, id)
	}
	if err != nil {
		return nil, err
	}

	if err := validate.Record(et, patch, validate.PartialUpdate); err != nil {
		return nil, err
	}
	if err := g.refs.Check(ctx, et, patch); err != nil {
		return nil, err
	}

	after, changed := ApplyDeclaredPatch(et, before, patch)
	if !changed {
		return before, nil
	}
	if err := store.UpdateByID(ctx, id, after); err != nil {
		return nil, err
	}

	if err := g.record(ctx, actor, audit.ActionUpdate, et, id, before, after); err != nil {
		return nil, err
	}
	return after, nil
}

// Delete removes one record, keeping its final state as the audit entry's
// before snapshot.
func (g *Gateway) Delete(ctx context.Context, actor Actor, entity, id string) error {
	et, store, err := g.resolve(ctx, entity)
	if err != nil {
		return err
	}

	before, err := store.FindByID(ctx, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return fmt.Errorf("%w: %s %q", ErrRecordNotFound, entity, id)
	}
	if err != nil {
		return err
	}

	if err := store.DeleteByID(ctx, id); err != nil && !errors.Is(err, docstore.ErrNotFound) {
		return err
	}
	return g.record(ctx, actor, audit.ActionDelete, et, id, before, nil)
}

// BulkDelete is all-or-nothing: every id must resolve before anything is
// deleted. The existence check and the delete pass are separate store
// calls with no transaction between them, so a record deleted concurrently
// in the window simply ends up deleted either way.
func (g *Gateway) BulkDelete(ctx context.Context, actor Actor, entity string, ids []string) (int, error) {
	et, store, err := g.resolve(ctx, entity)
	if err != nil {
		return 0, err
	}

	found, err := store.FindByIDs(ctx, ids)
	if err != nil {
		return 0, err
	}
	byID := make(map[string]docstore.Doc, len(found))
	for _, doc := range found {
		if id, _ := doc["id"].(string); id != "" {
			byID[id] = doc
		}
	}

	var missing []string
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return 0, &BulkDeleteError{Missing: missing}
	}

	deleted := 0
	for _, id := range ids {
		before, ok := byID[id]
		if !ok {
			continue
		}
		delete(byID, id) // handle duplicated ids in the request once
		err := store.DeleteByID(ctx, id)
		if errors.Is(err, docstore.ErrNotFound) {
			continue
		}
		if err != nil {
			return deleted, err
		}
		deleted++
		if err := g.record(ctx, actor, audit.ActionBulkDelete, et, id, before, nil); err != nil {
			return deleted, err
		}
	}
	return deleted, nil
}

// ImportFailure records one payload that could not be imported.
type ImportFailure struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// ImportResult summarises a bulk import.
type ImportResult struct {
	Imported int             `json:"imported"`
	Failed   int             `json:"failed"`
	Failures []ImportFailure `json:"failures,omitempty"`
}

// Import processes payloads strictly in order and independently; failures
// are reported per index and never abort the run. Caller-supplied identity
// and version fields are stripped so imports cannot collide with or
// overwrite existing records.
func (g *Gateway) Import(ctx context.Context, actor Actor, entity string, payloads []map[string]any) (*ImportResult, error) {
	et, store, err := g.resolve(ctx, entity)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{Failures: make([]ImportFailure, 0)}
	for i, payload := range payloads {
		clean := make(map[string]any, len(payload))
		for k, v := range payload {
			if k == model.IdentityField || k == model.VersionField {
				continue
			}
			clean[k] = v
		}

		if err := g.importOne(ctx, actor, et, store, clean); err != nil {
			result.Failed++
			result.Failures = append(result.Failures, ImportFailure{Index: i, Error: err.Error()})
			continue
		}
		result.Imported++
	}
	return result, nil
}

func (g *Gateway) importOne(ctx context.Context, actor Actor, et *model.EntityType, store Store, payload map[string]any) error {
	if err := validate.Record(et, payload, validate.Create); err != nil {
		return err
	}
	if err := g.refs.Check(ctx, et, payload); err != nil {
		return err
	}

	doc := BuildDoc(et, payload)
	id := uuid.New().String()
	if err := store.Insert(ctx, id, doc); err != nil {
		return err
	}
	doc["id"] = id
	return g.record(ctx, actor, audit.ActionImport, et, id, nil, doc)
}

// resolve maps an entity name to its type and store.
func (g *Gateway) resolve(ctx context.Context, entity string) (*model.EntityType, Store, error) {
	et, err := g.registry.Resolve(entity)
	if err != nil {
		return nil, nil, err
	}
	store, err := g.stores.StoreFor(ctx, et)
	if err != nil {
		return nil, nil, err
	}
	return et, store, nil
}

// record appends one audit entry for a completed mutation.
func (g *Gateway) record(ctx context.Context, actor Actor, action audit.Action, et *model.EntityType, id string, before, after docstore.Doc) error {
	labelSource := after
	if labelSource == nil {
		labelSource = before
	}
	entry := &audit.Entry{
		ActorID:     actor.ID,
		ActorName:   actor.Name,
		Action:      action,
		Entity:      et.Name,
		RecordID:    id,
		RecordLabel: RecordLabel(labelSource),
		Before:      before,
		After:       after,
		IPAddress:   actor.IPAddress,
		RequestID:   actor.RequestID,
	}
	if err := g.trail.Record(ctx, entry); err != nil {
		return fmt.Errorf("record audit entry: %w", err)
	}
	return nil
}

// RecordLabel derives a human-readable label from the common label fields,
// falling back to the record id.
func RecordLabel(doc docstore.Doc) string {
	for _, f := range commonLabelFields {
		if s, ok := doc[f].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	if id, ok := doc["id"].(string); ok {
		return id
	}
	return ""
}

// labelFields intersects the common label fields with the entity's schema.
func labelFields(et *model.EntityType) []string {
	var fields []string
	for _, f := range commonLabelFields {
		if et.Field(f) != nil {
			fields = append(fields, f)
		}
	}
	return fields
}

// BuildDoc assembles the stored document from the payload: declared fields
// only, with defaults filled in for absent fields. Unknown payload keys are
// dropped so documents stay schema-shaped.
func BuildDoc(et *model.EntityType, payload map[string]any) docstore.Doc {
	doc := make(docstore.Doc)
	for _, fd := range model.DescribeFields(et) {
		if v, ok := payload[fd.Name]; ok {
			doc[fd.Name] = v
			continue
		}
		if fd.Default != nil {
			doc[fd.Name] = fd.Default
		}
	}
	return doc
}

// ApplyDeclaredPatch merges only the supplied, declared fields over the
// stored document. Identity and version keys in the patch are ignored.
// changed is false when the patch carried no declared field at all; callers
// use that to skip the write so the stored version does not move.
func ApplyDeclaredPatch(et *model.EntityType, before docstore.Doc, patch map[string]any) (after docstore.Doc, changed bool) {
	after = make(docstore.Doc, len(before))
	for k, v := range before {
		after[k] = v
	}
	for _, fd := range model.DescribeFields(et) {
		if v, ok := patch[fd.Name]; ok {
			after[fd.Name] = v
			changed = true
		}
	}
	return after, changed
}
