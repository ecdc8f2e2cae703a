// adapter.go specializes the admin engine for character inventories.
// There is no global item collection, so listing works at owner
// granularity and item mutations take an explicit (owner, item) pair.
package shard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/tavernkeep/tavernkeep/internal/audit"
	"github.com/tavernkeep/tavernkeep/internal/docstore"
	"github.com/tavernkeep/tavernkeep/internal/gateway"
	"github.com/tavernkeep/tavernkeep/internal/model"
	"github.com/tavernkeep/tavernkeep/internal/refcheck"
	"github.com/tavernkeep/tavernkeep/internal/validate"
)

// Owner is one shard owner row in the list view: the character, not its
// items. ItemCount is attached from the owner's shard; contents are only
// fetched by Get.
type Owner struct {
	OwnerID     string    `json:"owner_id"`
	DisplayName string    `json:"display_name"`
	Icon        string    `json:"icon,omitempty"`
	ItemCount   int       `json:"item_count"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// OwnerPage is one page of shard owners.
type OwnerPage struct {
	Owners  []Owner `json:"owners"`
	Total   int     `json:"total"`
	Page    int     `json:"page"`
	PerPage int     `json:"per_page"`
}

// Inventory is one owner's full shard contents.
type Inventory struct {
	OwnerID     string         `json:"owner_id"`
	DisplayName string         `json:"display_name"`
	Icon        string         `json:"icon,omitempty"`
	Items       []docstore.Doc `json:"items"`
}

// Adapter implements the per-owner shard operations. It shares the
// registry, reference checker, and audit trail with the generic gateway
// so inventory mutations get the same validation and audit guarantees.
type Adapter struct {
	conn     *sqlx.DB
	db       *docstore.DB
	resolver *Resolver
	registry *model.Registry
	refs     *refcheck.Checker
	trail    gateway.Recorder
}

// New wires the adapter. stores resolves the shared entity types the item
// schema references (items) and the characters collection owners live in.
func New(conn *sqlx.DB, db *docstore.DB, resolver *Resolver, registry *model.Registry, stores gateway.StoreResolver, trail gateway.Recorder) *Adapter {
	return &Adapter{
		conn:     conn,
		db:       db,
		resolver: resolver,
		registry: registry,
		refs:     refcheck.New(registry, storeAdapter{stores}),
		trail:    trail,
	}
}

type storeAdapter struct {
	stores gateway.StoreResolver
}

func (a storeAdapter) StoreFor(ctx context.Context, et *model.EntityType) (refcheck.Lookup, error) {
	return a.stores.StoreFor(ctx, et)
}

// entityType resolves the inventories declaration, which also enforces the
// store-availability check the registry applies to PerOwnerShard types.
func (a *Adapter) entityType() (*model.EntityType, error) {
	return a.registry.Resolve(model.EntityInventories)
}

// ListOwners pages through owners known to hold a non-empty shard,
// optionally filtered by display name. Item counts are maintained in the
// owner index by the mutation paths, and an owner whose shard empties is
// dropped from the index, so the total and the page both reflect only
// non-empty shards.
func (a *Adapter) ListOwners(ctx context.Context, query string, page, perPage int) (*OwnerPage, error) {
	if _, err := a.entityType(); err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}

	where := ""
	args := []any{}
	if query != "" {
		where = " WHERE display_name ILIKE $1"
		args = append(args, "%"+query+"%")
	}

	var total int
	if err := a.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM inventory_owners`+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count inventory owners: %w", err)
	}

	args = append(args, perPage, (page-1)*perPage)
	querySQL := fmt.Sprintf(`
		SELECT character_id, display_name, icon, item_count, updated_at
		FROM inventory_owners%s
		ORDER BY display_name ASC LIMIT $%d OFFSET $%d`,
		where, len(args)-1, len(args))

	rows, err := a.conn.QueryContext(ctx, querySQL, args...)
	if err != nil {
		return nil, fmt.Errorf("list inventory owners: %w", err)
	}
	defer rows.Close()

	owners := make([]Owner, 0)
	for rows.Next() {
		var o Owner
		if err := rows.Scan(&o.OwnerID, &o.DisplayName, &o.Icon, &o.ItemCount, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan inventory owner: %w", err)
		}
		owners = append(owners, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &OwnerPage{Owners: owners, Total: total, Page: page, PerPage: perPage}, nil
}

// Get fetches one owner's entire inventory.
func (a *Adapter) Get(ctx context.Context, ownerID string) (*Inventory, error) {
	if _, err := a.entityType(); err != nil {
		return nil, err
	}
	display, icon, err := a.ownerCharacter(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	col, _, err := a.resolver.Open(ctx, display)
	if err != nil {
		return nil, err
	}
	items, err := col.Find(ctx, docstore.Filter{}, docstore.Sort{Field: "name"}, 0, 0)
	if err != nil {
		return nil, err
	}
	return &Inventory{OwnerID: ownerID, DisplayName: display, Icon: icon, Items: items}, nil
}

// AddItem validates and inserts one item into an owner's shard, creating
// the shard on first write and registering the owner in the index.
func (a *Adapter) AddItem(ctx context.Context, actor gateway.Actor, ownerID string, payload map[string]any) (docstore.Doc, error) {
	et, err := a.entityType()
	if err != nil {
		return nil, err
	}
	display, icon, err := a.ownerCharacter(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	if err := validate.Record(et, payload, validate.Create); err != nil {
		return nil, err
	}
	if err := a.refs.Check(ctx, et, payload); err != nil {
		return nil, err
	}

	col, key, err := a.resolver.Open(ctx, display)
	if err != nil {
		return nil, err
	}
	doc := gateway.BuildDoc(et, payload)
	id := uuid.New().String()
	if err := col.Insert(ctx, id, doc); err != nil {
		return nil, err
	}
	doc["id"] = id

	count, err := col.Count(ctx, docstore.Filter{})
	if err != nil {
		return nil, err
	}
	if err := a.registerOwner(ctx, key, ownerID, display, icon, count); err != nil {
		return nil, err
	}
	return doc, a.record(ctx, actor, audit.ActionCreate, id, nil, doc)
}

// UpdateItem applies a partial patch to one item, addressed by its owning
// shard plus item id.
func (a *Adapter) UpdateItem(ctx context.Context, actor gateway.Actor, ownerID, itemID string, patch map[string]any) (docstore.Doc, error) {
	et, err := a.entityType()
	if err != nil {
		return nil, err
	}
	display, _, err := a.ownerCharacter(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	col, _, err := a.resolver.Open(ctx, display)
	if err != nil {
		return nil, err
	}

	before, err := col.FindByID(ctx, itemID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, fmt.Errorf("%w: inventory item %q", gateway.ErrRecordNotFound, itemID)
	}
	if err != nil {
		return nil, err
	}

	if err := validate.Record(et, patch, validate.PartialUpdate); err != nil {
		return nil, err
	}
	if err := a.refs.Check(ctx, et, patch); err != nil {
		return nil, err
	}

	after, changed := gateway.ApplyDeclaredPatch(et, before, patch)
	if !changed {
		return before, nil
	}
	if err := col.UpdateByID(ctx, itemID, after); err != nil {
		return nil, err
	}
	return after, a.record(ctx, actor, audit.ActionUpdate, itemID, before, after)
}

// DeleteItem removes one item from its owner's shard.
func (a *Adapter) DeleteItem(ctx context.Context, actor gateway.Actor, ownerID, itemID string) error {
	if _, err := a.entityType(); err != nil {
		return err
	}
	display, _, err := a.ownerCharacter(ctx, ownerID)
	if err != nil {
		return err
	}
	col, key, err := a.resolver.Open(ctx, display)
	if err != nil {
		return err
	}

	before, err := col.FindByID(ctx, itemID)
	if errors.Is(err, docstore.ErrNotFound) {
		return fmt.Errorf("%w: inventory item %q", gateway.ErrRecordNotFound, itemID)
	}
	if err != nil {
		return err
	}
	if err := col.DeleteByID(ctx, itemID); err != nil && !errors.Is(err, docstore.ErrNotFound) {
		return err
	}

	count, err := col.Count(ctx, docstore.Filter{})
	if err != nil {
		return err
	}
	if err := a.syncOwnerCount(ctx, key, count); err != nil {
		return err
	}
	return a.record(ctx, actor, audit.ActionDelete, itemID, before, nil)
}

// ownerCharacter resolves the owning character's display name and icon.
func (a *Adapter) ownerCharacter(ctx context.Context, ownerID string) (display, icon string, err error) {
	characters, err := a.registry.Resolve("characters")
	if err != nil {
		return "", "", err
	}
	doc, err := a.db.Collection(characters.Collection).FindByID(ctx, ownerID)
	if errors.Is(err, docstore.ErrNotFound) {
		return "", "", fmt.Errorf("%w: character %q", gateway.ErrRecordNotFound, ownerID)
	}
	if err != nil {
		return "", "", err
	}
	display, _ = doc["name"].(string)
	if display == "" {
		return "", "", fmt.Errorf("character %q has no display name", ownerID)
	}
	icon, _ = doc["icon"].(string)
	return display, icon, nil
}

// registerOwner upserts the owner index row so listing can enumerate
// shards without scanning the catalog of physical collections. itemCount
// is the shard's current size, kept in the index so listing never has to
// open a shard.
func (a *Adapter) registerOwner(ctx context.Context, ownerKey, characterID, display, icon string, itemCount int) error {
	_, err := a.conn.ExecContext(ctx, `
		INSERT INTO inventory_owners (owner_key, character_id, display_name, icon, item_count, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (owner_key) DO UPDATE
		SET character_id = EXCLUDED.character_id,
			display_name = EXCLUDED.display_name,
			icon = EXCLUDED.icon,
			item_count = EXCLUDED.item_count,
			updated_at = now()`,
		ownerKey, characterID, display, icon, itemCount)
	if err != nil {
		return fmt.Errorf("register inventory owner: %w", err)
	}
	return nil
}

// syncOwnerCount reconciles the index row after a delete. An emptied shard
// drops out of the index entirely so listings never enumerate it.
func (a *Adapter) syncOwnerCount(ctx context.Context, ownerKey string, itemCount int) error {
	if itemCount == 0 {
		if _, err := a.conn.ExecContext(ctx,
			`DELETE FROM inventory_owners WHERE owner_key = $1`, ownerKey); err != nil {
			return fmt.Errorf("drop emptied inventory owner: %w", err)
		}
		return nil
	}
	if _, err := a.conn.ExecContext(ctx,
		`UPDATE inventory_owners SET item_count = $2, updated_at = now() WHERE owner_key = $1`,
		ownerKey, itemCount); err != nil {
		return fmt.Errorf("update inventory owner count: %w", err)
	}
	return nil
}

func (a *Adapter) record(ctx context.Context, actor gateway.Actor, action audit.Action, id string, before, after docstore.Doc) error {
	labelSource := after
	if labelSource == nil {
		labelSource = before
	}
	entry := &audit.Entry{
		ActorID:     actor.ID,
		ActorName:   actor.Name,
		Action:      action,
		Entity:      model.EntityInventories,
		RecordID:    id,
		RecordLabel: gateway.RecordLabel(labelSource),
		Before:      before,
		After:       after,
		IPAddress:   actor.IPAddress,
		RequestID:   actor.RequestID,
	}
	if err := a.trail.Record(ctx, entry); err != nil {
		return fmt.Errorf("record audit entry: %w", err)
	}
	return nil
}
