package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// PostgresStore implements Store over a single JSONB document table. The
// category column is denormalized from the document so category queries hit
// an index instead of unpacking JSON per row.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore wraps an already-connected database handle. Schema setup
// is handled by migrations, not here.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// QueryByCategory returns documents matching the category case-insensitively.
func (s *PostgresStore) QueryByCategory(ctx context.Context, category string) ([]Document, error) {
	const q = `SELECT doc FROM catalog_products WHERE lower(category) = lower($1)`
	return s.selectDocs(ctx, q, category)
}

// ScanAll returns every document in the collection.
func (s *PostgresStore) ScanAll(ctx context.Context) ([]Document, error) {
	const q = `SELECT doc FROM catalog_products`
	return s.selectDocs(ctx, q)
}

func (s *PostgresStore) selectDocs(ctx context.Context, query string, args ...any) ([]Document, error) {
	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("document query failed: %w", err)
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("document scan failed: %w", err)
		}
		var doc Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("corrupt product document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("document iteration failed: %w", err)
	}
	return docs, nil
}

// Put upserts the document by product ID.
func (s *PostgresStore) Put(ctx context.Context, doc Document) error {
	id := doc.ID()
	if id == "" {
		return errors.New("document has no productId")
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	const q = `
        INSERT INTO catalog_products (product_id, category, doc)
        VALUES ($1, $2, $3)
        ON CONFLICT (product_id) DO UPDATE SET category = EXCLUDED.category, doc = EXCLUDED.doc`
	if _, err := s.db.ExecContext(ctx, q, id, doc.Category(), raw); err != nil {
		return fmt.Errorf("failed to store document %s: %w", id, err)
	}
	return nil
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database handle.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
