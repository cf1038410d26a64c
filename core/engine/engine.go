// Package engine defines the contract between the typed search layer and
// an external full-text search engine. The engine owns the inverted index,
// tokenization, scoring and durable storage; this layer only hands it
// schemas, field lists and serialized queries, and decodes what comes back.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/tafuta/tafuta/core/document"
	"github.com/tafuta/tafuta/core/query"
	"github.com/tafuta/tafuta/core/schema"
	"github.com/tafuta/tafuta/core/value"
)

// ErrNotFound reports a point-lookup miss. It is an absent result, not a
// failure; callers translate it rather than surfacing it.
var ErrNotFound = errors.New("engine: document not found")

// Error wraps an opaque engine failure: I/O errors, corrupt segments,
// invalid queries. Engine errors pass through unchanged and are never
// silently swallowed.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("engine: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Hit is one scored search result.
type Hit struct {
	Score float32
	Doc   document.Fields
}

// SearchResult carries the total live match count and the requested page
// of scored documents.
type SearchResult struct {
	Count uint64
	Hits  []Hit
}

// Engine is a handle to one opened index. Implementations buffer writes
// until Commit and keep reads on the last committed snapshot; they are not
// required to be safe for concurrent use, since the façade serializes all
// operations against a handle.
type Engine interface {
	// Schema returns the schema the index was opened with.
	Schema() *schema.Schema

	// Add buffers one document for the next commit. Buffered documents
	// are invisible to reads and searches until Commit returns.
	Add(ctx context.Context, doc document.Fields) error

	// Delete buffers a delete of every document whose field matches the
	// term, taking effect at the next commit.
	Delete(ctx context.Context, field string, term value.FieldValue) error

	// Commit durably flushes buffered writes and publishes them to
	// subsequent reads and searches.
	Commit(ctx context.Context) error

	// Clear removes all documents. The schema is retained.
	Clear(ctx context.Context) error

	// Count returns the number of live committed documents.
	Count(ctx context.Context) (uint64, error)

	// Get returns at most one document whose field matches the term, or
	// ErrNotFound. If the field is not unique, which match is returned
	// is unspecified.
	Get(ctx context.Context, field string, term value.FieldValue) (document.Fields, error)

	// GetAll returns the documents matching any of the terms on field.
	// Misses are omitted, not errors.
	GetAll(ctx context.Context, field string, terms []value.FieldValue) ([]document.Fields, error)

	// Search runs a ranked retrieval over the committed snapshot.
	// limit must be positive.
	Search(ctx context.Context, q query.Query, limit, offset uint32) (*SearchResult, error)

	// Close releases the handle. The engine's committed state survives.
	Close() error
}
