package docstore

import (
	"context"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

var docCols = []string{"id", "doc", "rev"}

var errDB = errors.New("db down")

func newTestDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return New(sqlx.NewDb(conn, "sqlmock")), mock
}

// ---------------------------------------------------------------------------
// Insert
// ---------------------------------------------------------------------------

func TestInsert(t *testing.T) {
	db, mock := newTestDB(t)
	mock.ExpectExec(`INSERT INTO "items"`).
		WithArgs("id-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	col := db.Collection("items")
	if err := col.Insert(context.Background(), "id-1", Doc{"name": "Sword"}); err != nil {
		t.Fatalf("Insert() error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestInsert_StripsIdentityKeysFromDocument(t *testing.T) {
	db, mock := newTestDB(t)
	// The JSONB payload must not carry id or rev; they live in columns.
	mock.ExpectExec(`INSERT INTO "items"`).
		WithArgs("id-1", []byte(`{"name":"Sword"}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	col := db.Collection("items")
	doc := Doc{"name": "Sword", "id": "stale", "rev": int64(4)}
	if err := col.Insert(context.Background(), "id-1", doc); err != nil {
		t.Fatalf("Insert() error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

// ---------------------------------------------------------------------------
// FindByID
// ---------------------------------------------------------------------------

func TestFindByID(t *testing.T) {
	db, mock := newTestDB(t)
	rows := sqlmock.NewRows(docCols).AddRow("id-1", []byte(`{"name":"Sword"}`), int64(3))
	mock.ExpectQuery(`SELECT id, doc, rev FROM "items" WHERE id = \$1`).
		WithArgs("id-1").
		WillReturnRows(rows)

	doc, err := db.Collection("items").FindByID(context.Background(), "id-1")
	if err != nil {
		t.Fatalf("FindByID() error: %v", err)
	}
	if doc["name"] != "Sword" {
		t.Errorf("doc name = %v", doc["name"])
	}
	if doc["id"] != "id-1" {
		t.Errorf("identity not merged back: %v", doc["id"])
	}
	if doc["rev"] != int64(3) {
		t.Errorf("revision not merged back: %v", doc["rev"])
	}
}

func TestFindByID_NotFound(t *testing.T) {
	db, mock := newTestDB(t)
	mock.ExpectQuery(`SELECT id, doc, rev FROM "items"`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(docCols))

	_, err := db.Collection("items").FindByID(context.Background(), "ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("FindByID() error = %v, want ErrNotFound", err)
	}
}

// ---------------------------------------------------------------------------
// FindByIDs
// ---------------------------------------------------------------------------

func TestFindByIDs(t *testing.T) {
	db, mock := newTestDB(t)
	rows := sqlmock.NewRows(docCols).
		AddRow("id-1", []byte(`{"name":"Sword"}`), int64(1)).
		AddRow("id-2", []byte(`{"name":"Shield"}`), int64(1))
	mock.ExpectQuery(`SELECT id, doc, rev FROM "items" WHERE id = ANY`).
		WillReturnRows(rows)

	docs, err := db.Collection("items").FindByIDs(context.Background(), []string{"id-1", "id-2", "ghost"})
	if err != nil {
		t.Fatalf("FindByIDs() error: %v", err)
	}
	if len(docs) != 2 {
		t.Errorf("len(docs) = %d, want 2 (missing ids are absent, not errors)", len(docs))
	}
}

func TestFindByIDs_EmptyInput(t *testing.T) {
	db, _ := newTestDB(t)
	docs, err := db.Collection("items").FindByIDs(context.Background(), nil)
	if err != nil {
		t.Fatalf("FindByIDs() error: %v", err)
	}
	if docs != nil {
		t.Errorf("FindByIDs(nil) = %v, want nil without touching the database", docs)
	}
}

// ---------------------------------------------------------------------------
// Find / Count
// ---------------------------------------------------------------------------

func TestFind_FilterAndPaging(t *testing.T) {
	db, mock := newTestDB(t)
	rows := sqlmock.NewRows(docCols).AddRow("id-1", []byte(`{"name":"Sword"}`), int64(1))
	mock.ExpectQuery(`SELECT id, doc, rev FROM "items" WHERE \(doc->>\$1 ILIKE \$2\).+LIMIT \$3 OFFSET \$4`).
		WithArgs("name", "%swo%", 10, 20).
		WillReturnRows(rows)

	f := Filter{Fields: []string{"name"}, Needle: "swo"}
	docs, err := db.Collection("items").Find(context.Background(), f, Sort{}, 10, 20)
	if err != nil {
		t.Fatalf("Find() error: %v", err)
	}
	if len(docs) != 1 {
		t.Errorf("len(docs) = %d, want 1", len(docs))
	}
}

func TestFind_EscapesLikeWildcards(t *testing.T) {
	db, mock := newTestDB(t)
	mock.ExpectQuery(`SELECT id, doc, rev FROM "items"`).
		WithArgs("name", `%100\%\_pure%`).
		WillReturnRows(sqlmock.NewRows(docCols))

	f := Filter{Fields: []string{"name"}, Needle: "100%_pure"}
	if _, err := db.Collection("items").Find(context.Background(), f, Sort{}, 0, 0); err != nil {
		t.Fatalf("Find() error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestCount(t *testing.T) {
	db, mock := newTestDB(t)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM "items"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	total, err := db.Collection("items").Count(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("Count() error: %v", err)
	}
	if total != 42 {
		t.Errorf("Count() = %d, want 42", total)
	}
}

// ---------------------------------------------------------------------------
// UpdateByID / DeleteByID
// ---------------------------------------------------------------------------

func TestUpdateByID(t *testing.T) {
	db, mock := newTestDB(t)
	mock.ExpectExec(`UPDATE "items" SET doc = \$2, rev = rev \+ 1`).
		WithArgs("id-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := db.Collection("items").UpdateByID(context.Background(), "id-1", Doc{"name": "Sharp Sword"})
	if err != nil {
		t.Fatalf("UpdateByID() error: %v", err)
	}
}

func TestUpdateByID_NotFound(t *testing.T) {
	db, mock := newTestDB(t)
	mock.ExpectExec(`UPDATE "items"`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := db.Collection("items").UpdateByID(context.Background(), "ghost", Doc{})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateByID() error = %v, want ErrNotFound", err)
	}
}

func TestDeleteByID(t *testing.T) {
	db, mock := newTestDB(t)
	mock.ExpectExec(`DELETE FROM "items" WHERE id = \$1`).
		WithArgs("id-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := db.Collection("items").DeleteByID(context.Background(), "id-1"); err != nil {
		t.Fatalf("DeleteByID() error: %v", err)
	}
}

func TestDeleteByID_NotFound(t *testing.T) {
	db, mock := newTestDB(t)
	mock.ExpectExec(`DELETE FROM "items"`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := db.Collection("items").DeleteByID(context.Background(), "ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteByID() error = %v, want ErrNotFound", err)
	}
}

func TestDeleteByID_DBError(t *testing.T) {
	db, mock := newTestDB(t)
	mock.ExpectExec(`DELETE FROM "items"`).WillReturnError(errDB)

	if err := db.Collection("items").DeleteByID(context.Background(), "id-1"); err == nil {
		t.Error("DeleteByID() expected error, got nil")
	}
}

// ---------------------------------------------------------------------------
// OpenCollection
// ---------------------------------------------------------------------------

func TestOpenCollection(t *testing.T) {
	db, mock := newTestDB(t)
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "inv_zelda_[0-9a-f]{8}"`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	col, err := db.OpenCollection(context.Background(), "inv_zelda_0a1b2c3d")
	if err != nil {
		t.Fatalf("OpenCollection() error: %v", err)
	}
	if col.Name() != "inv_zelda_0a1b2c3d" {
		t.Errorf("Name() = %q", col.Name())
	}
}

func TestOpenCollection_RejectsInvalidNames(t *testing.T) {
	db, _ := newTestDB(t)
	bad := []string{"", "1leading", "UPPER", "has space", `quoted"name`, "semi;colon"}
	for _, name := range bad {
		if _, err := db.OpenCollection(context.Background(), name); err == nil {
			t.Errorf("OpenCollection(%q) expected error, got nil", name)
		}
	}
}
