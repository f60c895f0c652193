// Package store provides the catalog document store: a keyed collection of
// raw product documents with two read primitives (scan-all and
// query-by-category) behind a backend-neutral interface. Business rules live
// above this layer; the store only moves documents.
package store

import "context"

// Document is one raw product record as persisted: a key→value map with
// nested maps for pricing, inventory, attributes, and variants.
type Document map[string]any

// ID returns the document's product identifier, or an empty string when the
// document carries none.
func (d Document) ID() string {
	if v, ok := d["productId"].(string); ok {
		return v
	}
	return ""
}

// Category returns the document's raw category string.
func (d Document) Category() string {
	if v, ok := d["category"].(string); ok {
		return v
	}
	return ""
}

// Store is the catalog document collection consumed by the repository layer.
// Implementations must be safe for concurrent use.
type Store interface {
	// QueryByCategory returns documents whose category matches the given one
	// case-insensitively.
	QueryByCategory(ctx context.Context, category string) ([]Document, error)

	// ScanAll returns every document in the collection.
	ScanAll(ctx context.Context) ([]Document, error)

	// Put inserts or replaces a document keyed by its product ID. Used by the
	// seed tooling; the MCP surface itself never writes.
	Put(ctx context.Context, doc Document) error

	// Ping verifies connectivity to the backing service.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
