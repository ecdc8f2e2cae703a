package shard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/tavernkeep/tavernkeep/internal/audit"
	"github.com/tavernkeep/tavernkeep/internal/docstore"
	"github.com/tavernkeep/tavernkeep/internal/gateway"
	"github.com/tavernkeep/tavernkeep/internal/model"
)

var docCols = []string{"id", "doc", "rev"}

// memTrail collects audit entries in memory.
type memTrail struct {
	entries []*audit.Entry
}

func (t *memTrail) Record(_ context.Context, e *audit.Entry) error {
	t.entries = append(t.entries, e)
	return nil
}

type adapterRig struct {
	adapter *Adapter
	mock    sqlmock.Sqlmock
	trail   *memTrail
}

func newAdapterRig(t *testing.T) *adapterRig {
	t.Helper()
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	db := sqlx.NewDb(conn, "sqlmock")
	store := docstore.New(db)
	registry := model.NewCatalogRegistry()
	registry.SetShardProbe(func() bool { return true })

	resolver, err := NewResolver(store, 8)
	if err != nil {
		t.Fatalf("NewResolver() error: %v", err)
	}
	trail := &memTrail{}
	adapter := New(db, store, resolver, registry, gateway.NewStoreResolver(store), trail)
	return &adapterRig{adapter: adapter, mock: mock, trail: trail}
}

// expectOwnerCharacter expects the character lookup backing ownerCharacter.
func (rig *adapterRig) expectOwnerCharacter(ownerID, name, icon string) {
	doc := []byte(`{"name":"` + name + `","icon":"` + icon + `"}`)
	rig.mock.ExpectQuery(`SELECT id, doc, rev FROM "characters" WHERE id = \$1`).
		WithArgs(ownerID).
		WillReturnRows(sqlmock.NewRows(docCols).AddRow(ownerID, doc, 1))
}

// expectShardOpen expects the create-if-missing DDL for Zelda's shard.
func (rig *adapterRig) expectShardOpen() {
	rig.mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "inv_zelda_[0-9a-f]{8}"`).
		WillReturnResult(sqlmock.NewResult(0, 0))
}

func TestAdapterGet(t *testing.T) {
	rig := newAdapterRig(t)
	rig.expectOwnerCharacter("char-1", "Zelda", "zelda.png")
	rig.expectShardOpen()
	rig.mock.ExpectQuery(`SELECT id, doc, rev FROM "inv_zelda_[0-9a-f]{8}" ORDER BY doc->>'name' ASC`).
		WillReturnRows(sqlmock.NewRows(docCols).
			AddRow("itm-1", []byte(`{"name":"Bow","quantity":1}`), 1).
			AddRow("itm-2", []byte(`{"name":"Lantern","quantity":2}`), 3))

	inv, err := rig.adapter.Get(context.Background(), "char-1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if inv.OwnerID != "char-1" || inv.DisplayName != "Zelda" || inv.Icon != "zelda.png" {
		t.Errorf("inventory header = %+v", inv)
	}
	if len(inv.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(inv.Items))
	}
	if inv.Items[1]["name"] != "Lantern" || inv.Items[1]["rev"] != int64(3) {
		t.Errorf("item = %v", inv.Items[1])
	}
	if err := rig.mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestAdapterGet_UnknownCharacter(t *testing.T) {
	rig := newAdapterRig(t)
	rig.mock.ExpectQuery(`SELECT id, doc, rev FROM "characters" WHERE id = \$1`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(docCols))

	_, err := rig.adapter.Get(context.Background(), "ghost")
	if !errors.Is(err, gateway.ErrRecordNotFound) {
		t.Errorf("Get() error = %v, want ErrRecordNotFound", err)
	}
}

func TestAdapter_StoreUnavailable(t *testing.T) {
	rig := newAdapterRig(t)

	// Flip the probe so inventories stops resolving.
	registry := model.NewCatalogRegistry()
	registry.SetShardProbe(func() bool { return false })
	rig.adapter.registry = registry

	if _, err := rig.adapter.Get(context.Background(), "char-1"); !errors.Is(err, model.ErrStoreUnavailable) {
		t.Errorf("Get() error = %v, want ErrStoreUnavailable", err)
	}
	if _, err := rig.adapter.ListOwners(context.Background(), "", 1, 20); !errors.Is(err, model.ErrStoreUnavailable) {
		t.Errorf("ListOwners() error = %v, want ErrStoreUnavailable", err)
	}
}

func TestAdapterAddItem(t *testing.T) {
	rig := newAdapterRig(t)
	rig.expectOwnerCharacter("char-1", "Zelda", "zelda.png")
	rig.expectShardOpen()
	rig.mock.ExpectExec(`INSERT INTO "inv_zelda_[0-9a-f]{8}" \(id, doc\) VALUES \(\$1, \$2\)`).
		WithArgs(sqlmock.AnyArg(), []byte(`{"name":"Master Sword","quantity":1}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	rig.mock.ExpectQuery(`SELECT COUNT\(\*\) FROM "inv_zelda_[0-9a-f]{8}"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	rig.mock.ExpectExec(`INSERT INTO inventory_owners .+ ON CONFLICT \(owner_key\) DO UPDATE`).
		WithArgs("zelda", "char-1", "Zelda", "zelda.png", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	actor := gateway.Actor{ID: "admin-1", Name: "Moira"}
	doc, err := rig.adapter.AddItem(context.Background(), actor, "char-1", map[string]any{"name": "Master Sword"})
	if err != nil {
		t.Fatalf("AddItem() error: %v", err)
	}
	if doc["id"] == "" || doc["id"] == nil {
		t.Error("item has no id")
	}
	// quantity picks up its schema default
	if doc["quantity"] != float64(1) {
		t.Errorf("quantity = %v, want default 1", doc["quantity"])
	}
	if len(rig.trail.entries) != 1 {
		t.Fatalf("audit entries = %d, want 1", len(rig.trail.entries))
	}
	e := rig.trail.entries[0]
	if e.Action != audit.ActionCreate || e.Entity != model.EntityInventories || e.RecordLabel != "Master Sword" {
		t.Errorf("audit entry = %+v", e)
	}
	if err := rig.mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestAdapterAddItem_ValidationFailure(t *testing.T) {
	rig := newAdapterRig(t)
	rig.expectOwnerCharacter("char-1", "Zelda", "")

	_, err := rig.adapter.AddItem(context.Background(), gateway.Actor{}, "char-1",
		map[string]any{"quantity": float64(-5)})
	if err == nil {
		t.Fatal("AddItem() expected validation error")
	}
	if len(rig.trail.entries) != 0 {
		t.Error("rejected item must not be audited")
	}
	// Nothing was written; only the character lookup ran.
	if err := rig.mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestAdapterUpdateItem(t *testing.T) {
	rig := newAdapterRig(t)
	rig.expectOwnerCharacter("char-1", "Zelda", "")
	rig.expectShardOpen()
	rig.mock.ExpectQuery(`SELECT id, doc, rev FROM "inv_zelda_[0-9a-f]{8}" WHERE id = \$1`).
		WithArgs("itm-1").
		WillReturnRows(sqlmock.NewRows(docCols).AddRow("itm-1", []byte(`{"name":"Bow","quantity":1}`), 1))
	rig.mock.ExpectExec(`UPDATE "inv_zelda_[0-9a-f]{8}" SET doc = \$2, rev = rev \+ 1`).
		WithArgs("itm-1", []byte(`{"name":"Bow","quantity":3}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	doc, err := rig.adapter.UpdateItem(context.Background(), gateway.Actor{}, "char-1", "itm-1",
		map[string]any{"quantity": float64(3)})
	if err != nil {
		t.Fatalf("UpdateItem() error: %v", err)
	}
	if doc["quantity"] != float64(3) || doc["name"] != "Bow" {
		t.Errorf("patched doc = %v", doc)
	}
	if len(rig.trail.entries) != 1 || rig.trail.entries[0].Action != audit.ActionUpdate {
		t.Errorf("audit entries = %+v", rig.trail.entries)
	}
}

func TestAdapterUpdateItem_NoDeclaredFieldIsNoOp(t *testing.T) {
	rig := newAdapterRig(t)
	rig.expectOwnerCharacter("char-1", "Zelda", "")
	rig.expectShardOpen()
	rig.mock.ExpectQuery(`SELECT id, doc, rev FROM "inv_zelda_[0-9a-f]{8}" WHERE id = \$1`).
		WithArgs("itm-1").
		WillReturnRows(sqlmock.NewRows(docCols).AddRow("itm-1", []byte(`{"name":"Bow","quantity":1}`), 7))

	doc, err := rig.adapter.UpdateItem(context.Background(), gateway.Actor{}, "char-1", "itm-1",
		map[string]any{"bogus": "x"})
	if err != nil {
		t.Fatalf("UpdateItem() error: %v", err)
	}
	if doc["rev"] != int64(7) {
		t.Errorf("rev = %v, want untouched 7", doc["rev"])
	}
	if len(rig.trail.entries) != 0 {
		t.Error("no-op patch must not be audited")
	}
	// No UPDATE ran; sqlmock fails the test if one had been expected to.
	if err := rig.mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestAdapterUpdateItem_NotFound(t *testing.T) {
	rig := newAdapterRig(t)
	rig.expectOwnerCharacter("char-1", "Zelda", "")
	rig.expectShardOpen()
	rig.mock.ExpectQuery(`SELECT id, doc, rev FROM "inv_zelda_[0-9a-f]{8}" WHERE id = \$1`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(docCols))

	_, err := rig.adapter.UpdateItem(context.Background(), gateway.Actor{}, "char-1", "ghost",
		map[string]any{"quantity": float64(3)})
	if !errors.Is(err, gateway.ErrRecordNotFound) {
		t.Errorf("UpdateItem() error = %v, want ErrRecordNotFound", err)
	}
}

func TestAdapterDeleteItem(t *testing.T) {
	rig := newAdapterRig(t)
	rig.expectOwnerCharacter("char-1", "Zelda", "")
	rig.expectShardOpen()
	rig.mock.ExpectQuery(`SELECT id, doc, rev FROM "inv_zelda_[0-9a-f]{8}" WHERE id = \$1`).
		WithArgs("itm-1").
		WillReturnRows(sqlmock.NewRows(docCols).AddRow("itm-1", []byte(`{"name":"Bow"}`), 1))
	rig.mock.ExpectExec(`DELETE FROM "inv_zelda_[0-9a-f]{8}" WHERE id = \$1`).
		WithArgs("itm-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	rig.mock.ExpectQuery(`SELECT COUNT\(\*\) FROM "inv_zelda_[0-9a-f]{8}"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	rig.mock.ExpectExec(`UPDATE inventory_owners SET item_count = \$2, updated_at = now\(\) WHERE owner_key = \$1`).
		WithArgs("zelda", 2).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := rig.adapter.DeleteItem(context.Background(), gateway.Actor{}, "char-1", "itm-1"); err != nil {
		t.Fatalf("DeleteItem() error: %v", err)
	}
	e := rig.trail.entries[0]
	if e.Action != audit.ActionDelete || e.Before == nil || e.After != nil {
		t.Errorf("audit entry = %+v", e)
	}
	if err := rig.mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestAdapterDeleteItem_LastItemDropsOwnerFromIndex(t *testing.T) {
	rig := newAdapterRig(t)
	rig.expectOwnerCharacter("char-1", "Zelda", "")
	rig.expectShardOpen()
	rig.mock.ExpectQuery(`SELECT id, doc, rev FROM "inv_zelda_[0-9a-f]{8}" WHERE id = \$1`).
		WithArgs("itm-1").
		WillReturnRows(sqlmock.NewRows(docCols).AddRow("itm-1", []byte(`{"name":"Bow"}`), 1))
	rig.mock.ExpectExec(`DELETE FROM "inv_zelda_[0-9a-f]{8}" WHERE id = \$1`).
		WithArgs("itm-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	rig.mock.ExpectQuery(`SELECT COUNT\(\*\) FROM "inv_zelda_[0-9a-f]{8}"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	rig.mock.ExpectExec(`DELETE FROM inventory_owners WHERE owner_key = \$1`).
		WithArgs("zelda").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := rig.adapter.DeleteItem(context.Background(), gateway.Actor{}, "char-1", "itm-1"); err != nil {
		t.Fatalf("DeleteItem() error: %v", err)
	}
	if err := rig.mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestAdapterListOwners(t *testing.T) {
	rig := newAdapterRig(t)
	now := time.Now().UTC()

	rig.mock.ExpectQuery(`SELECT COUNT\(\*\) FROM inventory_owners WHERE display_name ILIKE \$1`).
		WithArgs("%zel%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	rig.mock.ExpectQuery(`FROM inventory_owners WHERE display_name ILIKE \$1\s+ORDER BY display_name ASC LIMIT \$2 OFFSET \$3`).
		WithArgs("%zel%", 20, 0).
		WillReturnRows(sqlmock.NewRows([]string{"character_id", "display_name", "icon", "item_count", "updated_at"}).
			AddRow("char-1", "Zelda", "zelda.png", 4, now))

	page, err := rig.adapter.ListOwners(context.Background(), "zel", 1, 20)
	if err != nil {
		t.Fatalf("ListOwners() error: %v", err)
	}
	if page.Total != 1 || len(page.Owners) != 1 {
		t.Fatalf("page = %+v", page)
	}
	o := page.Owners[0]
	if o.OwnerID != "char-1" || o.DisplayName != "Zelda" || o.ItemCount != 4 {
		t.Errorf("owner = %+v", o)
	}
}

// An owner whose shard was emptied is gone from the index, so the total and
// the page rows always agree: no page can under-fill against its total.
func TestAdapterListOwners_TotalMatchesPageRows(t *testing.T) {
	rig := newAdapterRig(t)
	now := time.Now().UTC()

	rig.mock.ExpectQuery(`SELECT COUNT\(\*\) FROM inventory_owners`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	rig.mock.ExpectQuery(`FROM inventory_owners\s+ORDER BY display_name ASC LIMIT \$1 OFFSET \$2`).
		WithArgs(20, 0).
		WillReturnRows(sqlmock.NewRows([]string{"character_id", "display_name", "icon", "item_count", "updated_at"}).
			AddRow("char-2", "Link", "", 1, now).
			AddRow("char-1", "Zelda", "", 3, now))

	page, err := rig.adapter.ListOwners(context.Background(), "", 1, 20)
	if err != nil {
		t.Fatalf("ListOwners() error: %v", err)
	}
	if page.Total != len(page.Owners) {
		t.Errorf("Total = %d but page holds %d owners", page.Total, len(page.Owners))
	}
	if page.Owners[0].ItemCount != 1 || page.Owners[1].ItemCount != 3 {
		t.Errorf("item counts = %+v", page.Owners)
	}
	if err := rig.mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
