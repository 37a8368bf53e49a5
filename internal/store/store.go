// Package store persists document metadata in a local SQLite file using the
// pure-Go driver. The document text itself lives on disk next to the
// database; the store only records where it is and what it contains.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// ErrNotFound is returned when a document id does not exist.
var ErrNotFound = errors.New("store: document not found")

// Document is the metadata record for one uploaded document.
type Document struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	Title       string    `json:"title"`
	TextPath    string    `json:"-"`
	PageCount   int       `json:"page_count"`
	WordCount   int       `json:"word_count"`
	TokenCount  int       `json:"token_count"`
	ContentHash string    `json:"content_hash"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store is a SQLite-backed document metadata store.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// Open creates a Store on a local SQLite file. A single shared connection
// serializes writers, eliminating SQLITE_BUSY errors from concurrent uploads.
func Open(dbPath string, log *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	return &Store{db: db, log: log}, nil
}

// Init creates the documents table.
func (s *Store) Init(ctx context.Context) error {
	ddl := `CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		title TEXT NOT NULL,
		text_path TEXT NOT NULL,
		page_count INTEGER NOT NULL,
		word_count INTEGER NOT NULL,
		token_count INTEGER NOT NULL,
		content_hash TEXT NOT NULL,
		created_at INTEGER NOT NULL
	)`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_documents_hash ON documents(content_hash)`); err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

func (s *Store) Insert(ctx context.Context, d Document) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, filename, title, text_path, page_count, word_count, token_count, content_hash, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Filename, d.Title, d.TextPath, d.PageCount, d.WordCount, d.TokenCount, d.ContentHash, d.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, filename, title, text_path, page_count, word_count, token_count, content_hash, created_at
		 FROM documents WHERE id = ?`, id)
	d, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return d, nil
}

func (s *Store) List(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, filename, title, text_path, page_count, word_count, token_count, content_hash, created_at
		 FROM documents ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, *d)
	}
	return docs, rows.Err()
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// FindByHash returns the first document with the given content hash, or
// (nil, nil) when none exists. Used for duplicate detection on upload.
func (s *Store) FindByHash(ctx context.Context, hash string) (*Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, filename, title, text_path, page_count, word_count, token_count, content_hash, created_at
		 FROM documents WHERE content_hash = ? LIMIT 1`, hash)
	d, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by hash: %w", err)
	}
	return d, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*Document, error) {
	var d Document
	var createdAt int64
	if err := row.Scan(&d.ID, &d.Filename, &d.Title, &d.TextPath,
		&d.PageCount, &d.WordCount, &d.TokenCount, &d.ContentHash, &createdAt); err != nil {
		return nil, err
	}
	d.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &d, nil
}
