package storage

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/hyperjump/docsearch/internal/models"
)

func testDocs() []*models.Document {
	return []*models.Document{
		{ID: 0, Path: "/docs/a.pdf", Fields: []models.Field{
			{Name: "author", Value: "/docs/a.pdf", Mode: models.IndexedOnly},
			{Name: "keywords", Value: "red", Mode: models.Stored},
			{Name: "keywords", Value: "green", Mode: models.Stored},
			{Name: "title", Value: "Plan", Mode: models.Stored},
		}, Body: "ignored"},
		{ID: 1, Path: "/docs/b.txt"},
	}
}

func TestSQLiteStore_PutAndGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gen", "stored.db")
	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()

	if err := store.PutDocuments(ctx, testDocs()); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetStoredFields(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got.Path != "/docs/a.pdf" {
		t.Errorf("path = %q", got.Path)
	}
	want := models.StoredFields{"keywords": {"red", "green"}, "title": {"Plan"}}
	if !reflect.DeepEqual(got.Fields, want) {
		t.Errorf("fields = %v, want %v", got.Fields, want)
	}

	got, err = store.GetStoredFields(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got.Path != "/docs/b.txt" || len(got.Fields) != 0 {
		t.Errorf("got %+v", got)
	}

	ids, err := store.DocIDs(ctx)
	if err != nil || !reflect.DeepEqual(ids, []uint32{0, 1}) {
		t.Errorf("DocIDs = %v, %v", ids, err)
	}
}

func TestSQLiteStore_NotFound(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "stored.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	_, err = store.GetStoredFields(context.Background(), 42)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStore_DuplicateID(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "stored.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	docs := []*models.Document{{ID: 3, Path: "/a"}, {ID: 3, Path: "/b"}}
	if err := store.PutDocuments(context.Background(), docs); err == nil {
		t.Fatal("expected error for duplicate id")
	}
	// The failed transaction leaves nothing behind.
	ids, err := store.DocIDs(context.Background())
	if err != nil || len(ids) != 0 {
		t.Errorf("DocIDs = %v, %v, want none", ids, err)
	}
}

func TestSQLiteStore_ReadOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stored.db")
	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := store.PutDocuments(ctx, testDocs()); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	ro, err := OpenSQLiteStoreReadOnly(path)
	if err != nil {
		t.Fatal(err)
	}
	var reader StoredFieldStore = ro
	defer reader.Close()
	got, err := reader.GetStoredFields(ctx, 1)
	if err != nil || got.Path != "/docs/b.txt" {
		t.Errorf("GetStoredFields(1) = %+v, %v", got, err)
	}
	if ids, err := reader.DocIDs(ctx); err != nil || !reflect.DeepEqual(ids, []uint32{0, 1}) {
		t.Errorf("DocIDs = %v, %v", ids, err)
	}
	if err := ro.PutDocuments(ctx, []*models.Document{{ID: 9, Path: "/x"}}); err == nil {
		t.Error("expected write to read-only store to fail")
	}
}

func TestOpenSQLiteStoreReadOnly_missing(t *testing.T) {
	if _, err := OpenSQLiteStoreReadOnly(filepath.Join(t.TempDir(), "nope.db")); err == nil {
		t.Error("expected error for missing database")
	}
}
