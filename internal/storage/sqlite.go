package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/docsearch/internal/models"
)

// SQLiteStore implements StoredFieldStore using SQLite. One database belongs
// to one index generation and is written once.
type SQLiteStore struct {
	db *sql.DB
}

var _ StoredFieldStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// The file is renamed with its directory after the build, so no WAL side files.
	if _, err := db.Exec("PRAGMA journal_mode=DELETE"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set journal mode: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// OpenSQLiteStoreReadOnly opens an existing database without write access.
func OpenSQLiteStoreReadOnly(dbPath string) (*SQLiteStore, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id INTEGER PRIMARY KEY,
		path TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS stored_fields (
		doc_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		ord INTEGER NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (doc_id, name, ord),
		FOREIGN KEY (doc_id) REFERENCES documents(id) ON DELETE CASCADE
	);
	`
	_, err := db.Exec(schema)
	return err
}

// PutDocuments inserts the path and stored fields of every document in one transaction.
func (s *SQLiteStore) PutDocuments(ctx context.Context, docs []*models.Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	docStmt, err := tx.PrepareContext(ctx, `INSERT INTO documents (id, path) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer docStmt.Close()
	fieldStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO stored_fields (doc_id, name, ord, value) VALUES (?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer fieldStmt.Close()

	for _, doc := range docs {
		if _, err := docStmt.ExecContext(ctx, doc.ID, doc.Path); err != nil {
			return fmt.Errorf("insert document %d: %w", doc.ID, err)
		}
		ord := 0
		for _, f := range doc.Fields {
			if f.Mode != models.Stored {
				continue
			}
			if _, err := fieldStmt.ExecContext(ctx, doc.ID, f.Name, ord, f.Value); err != nil {
				return fmt.Errorf("insert field %s of document %d: %w", f.Name, doc.ID, err)
			}
			ord++
		}
	}
	return tx.Commit()
}

// GetStoredFields returns the path and stored fields of a document, or ErrNotFound.
func (s *SQLiteStore) GetStoredFields(ctx context.Context, id uint32) (*models.StoredDocument, error) {
	doc := &models.StoredDocument{ID: id, Fields: models.StoredFields{}}
	err := s.db.QueryRowContext(ctx, `SELECT path FROM documents WHERE id = ?`, id).Scan(&doc.Path)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT name, value FROM stored_fields WHERE doc_id = ? ORDER BY ord`, id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		doc.Fields[name] = append(doc.Fields[name], value)
	}
	return doc, rows.Err()
}

// DocIDs returns every document id in ascending order.
func (s *SQLiteStore) DocIDs(ctx context.Context) ([]uint32, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM documents ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint32
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, uint32(id))
	}
	return ids, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
