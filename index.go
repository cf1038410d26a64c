// Package tafuta is a typed full-text search layer. It derives an engine
// schema from an annotated document type, encodes documents into the
// engine's generic field representation, and runs queries from the query
// algebra against a pluggable engine backend, with bleve as the primary
// implementation.
package tafuta

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	blevengine "github.com/tafuta/tafuta/bleve"
	"github.com/tafuta/tafuta/core/document"
	"github.com/tafuta/tafuta/core/engine"
	"github.com/tafuta/tafuta/core/query"
	"github.com/tafuta/tafuta/core/schema"
	"github.com/tafuta/tafuta/core/value"
)

// ErrClosed reports an operation against a closed index.
var ErrClosed = errors.New("tafuta: index is closed")

// Options configures an Index.
type Options struct {
	// Path is the on-disk index location. Empty opens a volatile
	// in-memory index. Ignored when Engine is set.
	Path string
	// Engine is a pre-opened engine handle; it overrides Path. The
	// engine's schema must match the document type's schema.
	Engine engine.Engine
	// Logger receives operational logs. Defaults to a no-op logger.
	Logger *zap.Logger
}

// Hit is one scored, decoded search result.
type Hit[T any] struct {
	Score float32
	Doc   T
}

// SearchResult carries the total match count and the requested page of
// decoded documents.
type SearchResult[T any] struct {
	Count uint64
	Hits  []Hit[T]
}

// Index is a handle to one opened index for a document type T. All
// operations are serialized: at most one is in flight at a time, and
// writes become visible to reads only after Commit returns. Operations
// suspend on engine I/O but never run concurrently against the handle.
type Index[T any] struct {
	eng    engine.Engine
	schema *schema.Schema
	log    *zap.Logger
	events *subscriptionRegistry

	mu     sync.Mutex
	closed bool
}

// Open creates or opens an index for document type T. The schema is
// derived from T's annotated fields; it is a pure function of the type.
func Open[T any](opts Options) (*Index[T], error) {
	var template T
	s, err := schema.Extract(template)
	if err != nil {
		return nil, err
	}

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	eng := opts.Engine
	if eng == nil {
		if opts.Path == "" {
			eng, err = blevengine.OpenInMemory(s, blevengine.WithLogger(log))
		} else {
			eng, err = blevengine.Open(opts.Path, s, blevengine.WithLogger(log))
		}
		if err != nil {
			return nil, err
		}
	}

	events, err := newSubscriptionRegistry()
	if err != nil {
		return nil, fmt.Errorf("could not initialize event bus: %w", err)
	}

	log.Debug("index opened",
		zap.String("path", opts.Path),
		zap.Int("fields", s.Len()),
	)
	return &Index[T]{eng: eng, schema: s, log: log, events: events}, nil
}

// Schema returns the schema derived from T.
func (ix *Index[T]) Schema() *schema.Schema { return ix.schema }

// locked serializes one operation against the handle.
func (ix *Index[T]) locked(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return ErrClosed
	}
	return fn()
}

// Add buffers one document for the next commit. It is not visible to
// reads or searches until Commit returns.
func (ix *Index[T]) Add(ctx context.Context, doc T) error {
	return ix.AddAll(ctx, doc)
}

// AddAll buffers several documents for the next commit.
func (ix *Index[T]) AddAll(ctx context.Context, docs ...T) error {
	n := len(docs)
	return ix.locked(ctx, func() error {
		return ix.events.withEvents("add", EventAddStart, EventAddSuccess, EventAddFailed, &n, func() error {
			for _, doc := range docs {
				fields, err := document.Encode(doc)
				if err != nil {
					return err
				}
				if err := ix.eng.Add(ctx, fields); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

// Commit durably flushes buffered writes and publishes them to subsequent
// reads and searches.
func (ix *Index[T]) Commit(ctx context.Context) error {
	return ix.locked(ctx, func() error {
		return ix.events.withEvents("commit", EventCommitStart, EventCommitSuccess, EventCommitFailed, nil, func() error {
			return ix.eng.Commit(ctx)
		})
	})
}

// Index adds one document and commits in a single call.
func (ix *Index[T]) Index(ctx context.Context, doc T) error {
	if err := ix.Add(ctx, doc); err != nil {
		return err
	}
	return ix.Commit(ctx)
}

// Delete removes every document whose field matches the term, taking
// effect after the next Commit.
func (ix *Index[T]) Delete(ctx context.Context, field string, term value.FieldValue) error {
	return ix.locked(ctx, func() error {
		return ix.events.withEvents("delete", EventDeleteStart, EventDeleteSuccess, EventDeleteFailed, nil, func() error {
			return ix.eng.Delete(ctx, field, term)
		})
	})
}

// Exists reports whether a committed document matches the term.
func (ix *Index[T]) Exists(ctx context.Context, field string, term value.FieldValue) (bool, error) {
	var found bool
	err := ix.locked(ctx, func() error {
		_, err := ix.eng.Get(ctx, field, term)
		if errors.Is(err, engine.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

// Get returns the first committed document matching the term. A miss is
// an absent result, not an error.
func (ix *Index[T]) Get(ctx context.Context, field string, term value.FieldValue) (T, bool, error) {
	var doc T
	var found bool
	err := ix.locked(ctx, func() error {
		fields, err := ix.eng.Get(ctx, field, term)
		if errors.Is(err, engine.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := document.Decode(fields, &doc); err != nil {
			return err
		}
		found = true
		return nil
	})
	return doc, found, err
}

// GetAll returns the committed documents matching any of the terms on
// field. Misses are omitted.
func (ix *Index[T]) GetAll(ctx context.Context, field string, terms ...value.FieldValue) ([]T, error) {
	var out []T
	err := ix.locked(ctx, func() error {
		docs, err := ix.eng.GetAll(ctx, field, terms)
		if err != nil {
			return err
		}
		out = make([]T, 0, len(docs))
		for _, fields := range docs {
			var doc T
			if err := document.Decode(fields, &doc); err != nil {
				return err
			}
			out = append(out, doc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns the number of live committed documents.
func (ix *Index[T]) Count(ctx context.Context) (uint64, error) {
	var n uint64
	err := ix.locked(ctx, func() error {
		var err error
		n, err = ix.eng.Count(ctx)
		return err
	})
	return n, err
}

// Clear removes all documents. The schema and the handle stay usable.
func (ix *Index[T]) Clear(ctx context.Context) error {
	return ix.locked(ctx, func() error {
		return ix.events.withEvents("clear", EventClearStart, EventClearSuccess, EventClearFailed, nil, func() error {
			return ix.eng.Clear(ctx)
		})
	})
}

// Search runs a ranked retrieval and decodes the matching documents.
// limit must be positive; offset pages past prior results.
func (ix *Index[T]) Search(ctx context.Context, q query.Query, limit, offset uint32) (*SearchResult[T], error) {
	var out *SearchResult[T]
	err := ix.locked(ctx, func() error {
		return ix.events.withEvents("search", EventSearchStart, EventSearchSuccess, EventSearchFailed, nil, func() error {
			res, err := ix.eng.Search(ctx, q, limit, offset)
			if err != nil {
				return err
			}
			out = &SearchResult[T]{Count: res.Count, Hits: make([]Hit[T], 0, len(res.Hits))}
			for _, hit := range res.Hits {
				var doc T
				if err := document.Decode(hit.Doc, &doc); err != nil {
					return err
				}
				out.Hits = append(out.Hits, Hit[T]{Score: hit.Score, Doc: doc})
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SearchString parses free text against the given default fields, with
// optional per-field fuzzy matching, and runs it as a ranked retrieval.
func (ix *Index[T]) SearchString(ctx context.Context, text string, fields []string, fuzzy []query.FuzzyField, limit, offset uint32) (*SearchResult[T], error) {
	q := query.QueryString{Query: text, DefaultFields: fields, FuzzyFields: fuzzy}
	return ix.Search(ctx, q, limit, offset)
}

// Subscribe registers a callback for an event type and returns an id for
// Unsubscribe.
func (ix *Index[T]) Subscribe(event IndexEventType, cb EventCallback) string {
	return ix.events.subscribe(event, cb)
}

// Unsubscribe removes a subscription by id.
func (ix *Index[T]) Unsubscribe(id string) {
	ix.events.unsubscribe(id)
}

// Close releases the engine handle. Buffered, uncommitted writes are
// discarded; committed state survives for on-disk engines.
func (ix *Index[T]) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return nil
	}
	ix.closed = true
	return ix.eng.Close()
}
