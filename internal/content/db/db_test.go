package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/clarive/filesync/internal/content/schema"
)

// openTestDB opens an initialized database in a temporary directory.
func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.InitSchema(context.Background()); err != nil {
		t.Fatalf("InitSchema() failed: %v", err)
	}
	return db
}

func newRecord(typ, title string, date time.Time) *schema.Record {
	return &schema.Record{
		Type:     typ,
		Title:    title,
		Status:   "publish",
		Date:     date,
		Modified: date,
		Fields:   map[string]any{"comment_status": "open", "menu_order": 2},
		Body:     "<p>" + title + "</p>\n",
	}
}

func TestOpen_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "content.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer db.Close()

	if db.Path() != path {
		t.Errorf("Path() = %q, want %q", db.Path(), path)
	}
}

func TestInitSchema_Idempotent(t *testing.T) {
	db := openTestDB(t)

	if err := db.InitSchema(context.Background()); err != nil {
		t.Errorf("second InitSchema() failed: %v", err)
	}

	for _, table := range []string{"records", "record_meta"} {
		var count int
		err := db.conn.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&count)
		if err != nil {
			t.Fatalf("failed to query table %s: %v", table, err)
		}
		if count != 1 {
			t.Errorf("table %s does not exist", table)
		}
	}
}

func TestInsertAndGetRecord(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	want := newRecord("post", "Hello World", time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC))
	id, err := db.InsertRecord(ctx, want)
	if err != nil {
		t.Fatalf("InsertRecord() failed: %v", err)
	}
	if id <= 0 {
		t.Fatalf("InsertRecord() id = %d, want > 0", id)
	}
	want.ID = id
	want.Metadata = map[string]string{}

	got, err := db.GetRecord(ctx, id)
	if err != nil {
		t.Fatalf("GetRecord() failed: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}
}

func TestGetRecord_NotFound(t *testing.T) {
	db := openTestDB(t)

	_, err := db.GetRecord(context.Background(), 404)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRecord() error = %v, want ErrNotFound", err)
	}
}

func TestInsertRecord_Invalid(t *testing.T) {
	db := openTestDB(t)

	r := newRecord("post", "x", time.Now())
	r.Fields["body"] = "nope"
	if _, err := db.InsertRecord(context.Background(), r); err == nil {
		t.Error("InsertRecord() should reject a reserved field")
	}
}

func TestUpdateRecord(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	r := newRecord("page", "Before", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	id, err := db.InsertRecord(ctx, r)
	if err != nil {
		t.Fatalf("InsertRecord() failed: %v", err)
	}

	r.ID = id
	r.Title = "After"
	r.Body = "changed"
	if err := db.UpdateRecord(ctx, r); err != nil {
		t.Fatalf("UpdateRecord() failed: %v", err)
	}

	got, err := db.GetRecord(ctx, id)
	if err != nil {
		t.Fatalf("GetRecord() failed: %v", err)
	}
	if got.Title != "After" || got.Body != "changed" {
		t.Errorf("got (%q, %q), want (After, changed)", got.Title, got.Body)
	}

	r.ID = id + 100
	if err := db.UpdateRecord(ctx, r); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateRecord() on missing id error = %v, want ErrNotFound", err)
	}
}

func TestListRecords_ExcludesTrashAndRevisions(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	older := newRecord("post", "Older", base)
	newer := newRecord("page", "Newer", base.Add(time.Hour))
	trashed := newRecord("post", "Trashed", base)
	trashed.Status = StatusTrash
	revision := newRecord(TypeRevision, "Rev", base)

	for _, r := range []*schema.Record{older, newer, trashed, revision} {
		if _, err := db.InsertRecord(ctx, r); err != nil {
			t.Fatalf("InsertRecord(%q) failed: %v", r.Title, err)
		}
	}

	records, err := db.ListRecords(ctx, schema.Filter{})
	if err != nil {
		t.Fatalf("ListRecords() failed: %v", err)
	}

	var titles []string
	for _, r := range records {
		titles = append(titles, r.Title)
	}
	if diff := cmp.Diff([]string{"Newer", "Older"}, titles); diff != "" {
		t.Errorf("titles mismatch (-want +got):\n%s", diff)
	}
}

func TestListRecords_Filters(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	postID, err := db.InsertRecord(ctx, newRecord("post", "A post", now))
	if err != nil {
		t.Fatalf("InsertRecord() failed: %v", err)
	}
	if _, err := db.InsertRecord(ctx, newRecord("page", "A page", now)); err != nil {
		t.Fatalf("InsertRecord() failed: %v", err)
	}

	byID, err := db.ListRecords(ctx, schema.Filter{ID: &postID})
	if err != nil {
		t.Fatalf("ListRecords(ID) failed: %v", err)
	}
	if len(byID) != 1 || byID[0].ID != postID {
		t.Errorf("ListRecords(ID) = %v, want only record %d", byID, postID)
	}

	byType, err := db.ListRecords(ctx, schema.Filter{Type: "page"})
	if err != nil {
		t.Fatalf("ListRecords(Type) failed: %v", err)
	}
	if len(byType) != 1 || byType[0].Type != "page" {
		t.Errorf("ListRecords(Type) returned %d records", len(byType))
	}
}

func TestMetadata(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	now := time.Now()
	id1, _ := db.InsertRecord(ctx, newRecord("post", "one", now))
	id2, _ := db.InsertRecord(ctx, newRecord("post", "two", now))

	sets := []struct {
		id         int64
		key, value string
	}{
		{id1, "layout", "wide"},
		{id1, "Views", "10"},
		{id2, "layout", "narrow"},
		{id1, "layout", "full"},
	}
	for _, s := range sets {
		if err := db.SetMetadata(ctx, s.id, s.key, s.value); err != nil {
			t.Fatalf("SetMetadata(%d, %q) failed: %v", s.id, s.key, err)
		}
	}

	all, err := db.GetMetadata(ctx, nil)
	if err != nil {
		t.Fatalf("GetMetadata(nil) failed: %v", err)
	}
	want := map[int64]map[string]string{
		id1: {"layout": "full", "Views": "10"},
		id2: {"layout": "narrow"},
	}
	if diff := cmp.Diff(want, all); diff != "" {
		t.Errorf("metadata mismatch (-want +got):\n%s", diff)
	}

	one, err := db.GetMetadata(ctx, &id2)
	if err != nil {
		t.Fatalf("GetMetadata(id) failed: %v", err)
	}
	if len(one) != 1 || one[id2]["layout"] != "narrow" {
		t.Errorf("GetMetadata(%d) = %v", id2, one)
	}
}

func TestCounts(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	now := time.Now()
	for _, typ := range []string{"post", "post", "page", TypeRevision} {
		if _, err := db.InsertRecord(ctx, newRecord(typ, "x", now)); err != nil {
			t.Fatalf("InsertRecord() failed: %v", err)
		}
	}

	total, err := db.GetRecordCount(ctx)
	if err != nil {
		t.Fatalf("GetRecordCount() failed: %v", err)
	}
	if total != 4 {
		t.Errorf("GetRecordCount() = %d, want 4", total)
	}

	byType, err := db.CountByType(ctx)
	if err != nil {
		t.Fatalf("CountByType() failed: %v", err)
	}
	if diff := cmp.Diff(map[string]int{"post": 2, "page": 1}, byType); diff != "" {
		t.Errorf("CountByType() mismatch (-want +got):\n%s", diff)
	}
}

func TestListRecords_CorruptRow(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var ids []int64
	for _, title := range []string{"One", "Two", "Three"} {
		id, err := db.InsertRecord(ctx, newRecord("post", title, now))
		if err != nil {
			t.Fatalf("InsertRecord(%q) failed: %v", title, err)
		}
		ids = append(ids, id)
	}
	if _, err := db.conn.Exec(`UPDATE records SET fields = '{broken' WHERE id = ?`, ids[1]); err != nil {
		t.Fatalf("failed to corrupt row: %v", err)
	}

	records, err := db.ListRecords(ctx, schema.Filter{})
	var corrupt *schema.CorruptRecordError
	if !errors.As(err, &corrupt) || corrupt.ID != ids[1] {
		t.Fatalf("ListRecords() error = %v, want CorruptRecordError for %d", err, ids[1])
	}
	var titles []string
	for _, r := range records {
		titles = append(titles, r.Title)
	}
	if diff := cmp.Diff([]string{"Three", "One"}, titles); diff != "" {
		t.Errorf("titles mismatch (-want +got):\n%s", diff)
	}

	if _, err := db.GetRecord(ctx, ids[1]); !errors.As(err, &corrupt) {
		t.Errorf("GetRecord() error = %v, want CorruptRecordError", err)
	}
}
