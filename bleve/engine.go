// Package bleve adapts the blevesearch/bleve full-text engine to the
// engine contract. Documents are keyed by generated ids; writes accumulate
// in a bleve batch that is applied on Commit, so buffered documents stay
// invisible to reads until then.
package bleve

import (
	"context"
	"fmt"

	"github.com/blevesearch/bleve/v2"
	bquery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tafuta/tafuta/core/document"
	"github.com/tafuta/tafuta/core/engine"
	"github.com/tafuta/tafuta/core/query"
	"github.com/tafuta/tafuta/core/schema"
	"github.com/tafuta/tafuta/core/value"
)

// deletePageSize bounds how many matching ids one delete resolution pass
// collects per search.
const deletePageSize = 1000

var _ engine.Engine = (*Engine)(nil)

// Engine is a bleve-backed index handle. It is not safe for concurrent use;
// the index façade serializes operations against it.
type Engine struct {
	idx     bleve.Index
	schema  *schema.Schema
	log     *zap.Logger
	batch   *bleve.Batch
	deletes []pendingDelete
}

type pendingDelete struct {
	field string
	term  value.FieldValue
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// Open creates or opens an on-disk index at path with the given schema.
// Reopening an existing path with a different schema is undefined; the
// persisted mapping wins.
func Open(path string, s *schema.Schema, opts ...Option) (*Engine, error) {
	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		m, merr := buildIndexMapping(s)
		if merr != nil {
			return nil, &engine.Error{Op: "open", Err: merr}
		}
		idx, err = bleve.New(path, m)
	}
	if err != nil {
		return nil, &engine.Error{Op: "open", Err: err}
	}
	return newEngine(idx, s, opts...), nil
}

// OpenInMemory opens a volatile index with the given schema. State is lost
// on Close; intended for tests and ephemeral workloads.
func OpenInMemory(s *schema.Schema, opts ...Option) (*Engine, error) {
	m, err := buildIndexMapping(s)
	if err != nil {
		return nil, &engine.Error{Op: "open", Err: err}
	}
	idx, err := bleve.NewMemOnly(m)
	if err != nil {
		return nil, &engine.Error{Op: "open", Err: err}
	}
	return newEngine(idx, s, opts...), nil
}

func newEngine(idx bleve.Index, s *schema.Schema, opts ...Option) *Engine {
	e := &Engine{
		idx:    idx,
		schema: s,
		log:    zap.NewNop(),
		batch:  idx.NewBatch(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Schema returns the schema the index was opened with.
func (e *Engine) Schema() *schema.Schema { return e.schema }

// Add buffers one document for the next commit.
func (e *Engine) Add(_ context.Context, doc document.Fields) error {
	bdoc, err := toBleveDoc(doc)
	if err != nil {
		return &engine.Error{Op: "add", Err: err}
	}
	if err := e.batch.Index(uuid.NewString(), bdoc); err != nil {
		return &engine.Error{Op: "add", Err: err}
	}
	return nil
}

// Delete buffers a delete-by-term, resolved when Commit runs. The term
// is matched after the batch's adds are applied, so a delete also
// covers documents added in the same batch.
func (e *Engine) Delete(_ context.Context, field string, term value.FieldValue) error {
	if _, ok := e.schema.Field(field); !ok {
		return &engine.Error{Op: "delete", Err: fmt.Errorf("unknown field %q", field)}
	}
	e.deletes = append(e.deletes, pendingDelete{field: field, term: term})
	return nil
}

// Commit applies buffered adds, then resolves and applies buffered
// deletes, publishing the result to subsequent reads. Adds apply before
// deletes are resolved, so a delete in the same batch covers them.
func (e *Engine) Commit(ctx context.Context) error {
	if e.batch.Size() > 0 {
		if err := e.idx.Batch(e.batch); err != nil {
			return &engine.Error{Op: "commit", Err: err}
		}
		e.batch = e.idx.NewBatch()
	}

	if len(e.deletes) == 0 {
		return nil
	}
	deletes := e.deletes
	e.deletes = nil

	del := e.idx.NewBatch()
	removed := 0
	for _, pd := range deletes {
		tq, err := termQuery(e.schema, pd.field, pd.term)
		if err != nil {
			return &engine.Error{Op: "commit", Err: err}
		}
		ids, err := e.matchingIDs(ctx, tq)
		if err != nil {
			return err
		}
		for _, id := range ids {
			del.Delete(id)
			removed++
		}
	}
	if del.Size() > 0 {
		if err := e.idx.Batch(del); err != nil {
			return &engine.Error{Op: "commit", Err: err}
		}
	}
	e.log.Debug("commit applied deletes", zap.Int("documents", removed))
	return nil
}

// Clear removes every document, retaining the schema and the handle.
func (e *Engine) Clear(ctx context.Context) error {
	e.batch = e.idx.NewBatch()
	e.deletes = nil

	ids, err := e.matchingIDs(ctx, bleve.NewMatchAllQuery())
	if err != nil {
		return err
	}
	del := e.idx.NewBatch()
	for _, id := range ids {
		del.Delete(id)
	}
	if del.Size() > 0 {
		if err := e.idx.Batch(del); err != nil {
			return &engine.Error{Op: "clear", Err: err}
		}
	}
	e.log.Debug("index cleared", zap.Int("documents", len(ids)))
	return nil
}

// Count returns the number of live committed documents.
func (e *Engine) Count(_ context.Context) (uint64, error) {
	n, err := e.idx.DocCount()
	if err != nil {
		return 0, &engine.Error{Op: "count", Err: err}
	}
	return n, nil
}

// Get returns the first committed document matching the term, or
// engine.ErrNotFound.
func (e *Engine) Get(ctx context.Context, field string, term value.FieldValue) (document.Fields, error) {
	tq, err := termQuery(e.schema, field, term)
	if err != nil {
		return nil, &engine.Error{Op: "get", Err: err}
	}
	req := bleve.NewSearchRequestOptions(tq, 1, 0, false)
	req.Fields = []string{"*"}
	res, err := e.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, &engine.Error{Op: "get", Err: err}
	}
	if len(res.Hits) == 0 {
		return nil, engine.ErrNotFound
	}
	return fromStoredFields(e.schema, res.Hits[0].Fields), nil
}

// GetAll returns the committed documents matching any of the terms.
func (e *Engine) GetAll(ctx context.Context, field string, terms []value.FieldValue) ([]document.Fields, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	subs := make([]bquery.Query, len(terms))
	for i, term := range terms {
		tq, err := termQuery(e.schema, field, term)
		if err != nil {
			return nil, &engine.Error{Op: "get_all", Err: err}
		}
		subs[i] = tq
	}
	req := bleve.NewSearchRequestOptions(bleve.NewDisjunctionQuery(subs...), len(terms), 0, false)
	req.Fields = []string{"*"}
	res, err := e.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, &engine.Error{Op: "get_all", Err: err}
	}
	docs := make([]document.Fields, 0, len(res.Hits))
	for _, hit := range res.Hits {
		docs = append(docs, fromStoredFields(e.schema, hit.Fields))
	}
	return docs, nil
}

// Search runs a ranked retrieval over the committed snapshot.
func (e *Engine) Search(ctx context.Context, q query.Query, limit, offset uint32) (*engine.SearchResult, error) {
	if limit == 0 {
		return nil, &engine.Error{Op: "search", Err: fmt.Errorf("limit must be positive")}
	}
	bq, err := translate(e.schema, q)
	if err != nil {
		return nil, &engine.Error{Op: "search", Err: err}
	}

	req := bleve.NewSearchRequestOptions(bq, int(limit), int(offset), false)
	req.Fields = []string{"*"}
	res, err := e.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, &engine.Error{Op: "search", Err: err}
	}

	out := &engine.SearchResult{Count: res.Total, Hits: make([]engine.Hit, 0, len(res.Hits))}
	for _, hit := range res.Hits {
		out.Hits = append(out.Hits, engine.Hit{
			Score: float32(hit.Score),
			Doc:   fromStoredFields(e.schema, hit.Fields),
		})
	}
	return out, nil
}

// Close releases the handle. Buffered, uncommitted writes are discarded.
func (e *Engine) Close() error {
	if err := e.idx.Close(); err != nil {
		return &engine.Error{Op: "close", Err: err}
	}
	return nil
}

// matchingIDs collects the ids of every committed document matching q,
// paging to stay bounded.
func (e *Engine) matchingIDs(ctx context.Context, q bquery.Query) ([]string, error) {
	var ids []string
	for from := 0; ; from += deletePageSize {
		req := bleve.NewSearchRequestOptions(q, deletePageSize, from, false)
		res, err := e.idx.SearchInContext(ctx, req)
		if err != nil {
			return nil, &engine.Error{Op: "match_ids", Err: err}
		}
		for _, hit := range res.Hits {
			ids = append(ids, hit.ID)
		}
		if len(res.Hits) < deletePageSize {
			return ids, nil
		}
	}
}
