// Package sqlite implements the engine interface on top of an SQLite
// database. Structured predicates run against a flattened field_values
// table, full-text predicates against an fts5 virtual table, and the
// stored form of each document is its wire JSON. It offers the same
// commit-scoped visibility as the primary engine: writes buffer in
// memory and publish as one transaction on commit.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"

	sqlite3 "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/tafuta/tafuta/core/document"
	"github.com/tafuta/tafuta/core/engine"
	"github.com/tafuta/tafuta/core/query"
	"github.com/tafuta/tafuta/core/schema"
	"github.com/tafuta/tafuta/core/value"
)

const driverName = "sqlite3_with_regexp"

var registerDriver sync.Once

// ensureDriver installs a driver whose connections carry a REGEXP
// function backed by the Go regexp package, so regex queries work
// without a loadable extension.
func ensureDriver() {
	registerDriver.Do(func() {
		sql.Register(driverName, &sqlite3.SQLiteDriver{
			ConnectHook: func(conn *sqlite3.SQLiteConn) error {
				return conn.RegisterFunc("regexp", func(pattern, s string) (bool, error) {
					re, err := regexp.Compile(pattern)
					if err != nil {
						return false, err
					}
					return re.MatchString(s), nil
				}, true)
			},
		})
	})
}

type pendingDelete struct {
	field string
	term  value.FieldValue
}

// Engine is an SQLite-backed engine for one schema. It is not safe for
// concurrent use; callers serialize access.
type Engine struct {
	db      *sql.DB
	schema  *schema.Schema
	log     *zap.Logger
	fts     []string
	adds    []document.Fields
	deletes []pendingDelete
}

var _ engine.Engine = (*Engine)(nil)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger; the default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// Open creates or opens an index database at path. An empty path opens
// a volatile in-memory database.
func Open(path string, s *schema.Schema, opts ...Option) (*Engine, error) {
	ensureDriver()
	dsn := path
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, &engine.Error{Op: "open", Err: fmt.Errorf("could not open database: %w", err)}
	}
	// A single connection keeps the in-memory database alive and
	// matches the serialized access model.
	db.SetMaxOpenConns(1)

	e := &Engine{db: db, schema: s, log: zap.NewNop(), fts: ftsFields(s)}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return e, nil
}

// ftsFields lists the schema fields carried by the fts table.
func ftsFields(s *schema.Schema) []string {
	var out []string
	for _, f := range s.Fields() {
		if f.Kind == value.KindText || f.Kind == value.KindJSON {
			out = append(out, f.Name)
		}
	}
	return out
}

func (e *Engine) migrate() error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			docid INTEGER PRIMARY KEY AUTOINCREMENT,
			doc   TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS field_values (
			docid      INTEGER NOT NULL,
			name       TEXT NOT NULL,
			text_value TEXT,
			num_value  REAL
		)`,
		`CREATE INDEX IF NOT EXISTS field_values_text ON field_values (name, text_value)`,
		`CREATE INDEX IF NOT EXISTS field_values_num ON field_values (name, num_value)`,
	}
	if len(e.fts) > 0 {
		cols := make([]string, len(e.fts))
		for i, f := range e.fts {
			cols[i] = fmt.Sprintf("%q", f)
		}
		ddl = append(ddl, fmt.Sprintf(
			`CREATE VIRTUAL TABLE IF NOT EXISTS search USING fts5(%s, tokenize='unicode61 remove_diacritics 2')`,
			strings.Join(cols, ", "),
		))
	}
	for _, stmt := range ddl {
		if _, err := e.db.Exec(stmt); err != nil {
			return &engine.Error{Op: "open", Err: fmt.Errorf("could not create tables: %w", err)}
		}
	}
	return nil
}

// Schema returns the schema the database was opened with.
func (e *Engine) Schema() *schema.Schema { return e.schema }

// Add buffers a document for the next commit.
func (e *Engine) Add(ctx context.Context, doc document.Fields) error {
	if err := ctx.Err(); err != nil {
		return &engine.Error{Op: "add", Err: err}
	}
	e.adds = append(e.adds, doc)
	return nil
}

// Delete buffers a delete-by-term for the next commit.
func (e *Engine) Delete(ctx context.Context, field string, term value.FieldValue) error {
	if err := ctx.Err(); err != nil {
		return &engine.Error{Op: "delete", Err: err}
	}
	if _, ok := e.schema.Kind(field); !ok {
		return &engine.Error{Op: "delete", Err: fmt.Errorf("unknown field %q", field)}
	}
	e.deletes = append(e.deletes, pendingDelete{field: field, term: term})
	return nil
}

// Commit publishes buffered adds and deletes as one transaction. Adds
// apply before deletes, so a delete in the same batch covers them. A
// failed commit keeps the batch buffered for a later retry.
func (e *Engine) Commit(ctx context.Context) error {
	adds, deletes := e.adds, e.deletes

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return &engine.Error{Op: "commit", Err: fmt.Errorf("could not begin transaction: %w", err)}
	}
	defer tx.Rollback()

	for _, doc := range adds {
		if err := e.insert(ctx, tx, doc); err != nil {
			return &engine.Error{Op: "commit", Err: err}
		}
	}
	for _, del := range deletes {
		if err := e.applyDelete(ctx, tx, del); err != nil {
			return &engine.Error{Op: "commit", Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &engine.Error{Op: "commit", Err: fmt.Errorf("could not commit transaction: %w", err)}
	}
	e.adds, e.deletes = nil, nil
	e.log.Debug("commit applied",
		zap.Int("added", len(adds)),
		zap.Int("deleted_terms", len(deletes)),
	)
	return nil
}

func (e *Engine) insert(ctx context.Context, tx *sql.Tx, doc document.Fields) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("could not serialize document: %w", err)
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO documents (doc) VALUES (?)`, string(raw))
	if err != nil {
		return fmt.Errorf("could not insert document: %w", err)
	}
	docid, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("could not read document id: %w", err)
	}

	for _, row := range indexRows(e.schema, doc) {
		var text, num any
		if row.text != nil {
			text = *row.text
		}
		if row.num != nil {
			num = *row.num
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO field_values (docid, name, text_value, num_value) VALUES (?, ?, ?, ?)`,
			docid, row.name, text, num,
		); err != nil {
			return fmt.Errorf("could not index field %q: %w", row.name, err)
		}
	}

	if len(e.fts) > 0 {
		content := ftsContent(e.fts, doc)
		cols := make([]string, 0, len(e.fts)+1)
		marks := make([]string, 0, len(e.fts)+1)
		args := make([]any, 0, len(e.fts)+1)
		cols, marks, args = append(cols, "rowid"), append(marks, "?"), append(args, docid)
		for _, f := range e.fts {
			cols = append(cols, fmt.Sprintf("%q", f))
			marks = append(marks, "?")
			args = append(args, content[f])
		}
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`INSERT INTO search (%s) VALUES (%s)`, strings.Join(cols, ", "), strings.Join(marks, ", ")),
			args...,
		); err != nil {
			return fmt.Errorf("could not index full-text content: %w", err)
		}
	}
	return nil
}

func (e *Engine) applyDelete(ctx context.Context, tx *sql.Tx, del pendingDelete) error {
	cond, err := termCondition(e.schema, del.field, del.term)
	if err != nil {
		return err
	}
	rows, err := tx.QueryContext(ctx,
		fmt.Sprintf(`SELECT d.docid FROM documents d WHERE %s`, cond.sql), cond.args...)
	if err != nil {
		return fmt.Errorf("could not resolve delete terms: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("could not scan docid: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Close(); err != nil {
		return fmt.Errorf("could not read matching documents: %w", err)
	}

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE docid = ?`, id); err != nil {
			return fmt.Errorf("could not delete document: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM field_values WHERE docid = ?`, id); err != nil {
			return fmt.Errorf("could not delete indexed fields: %w", err)
		}
		if len(e.fts) > 0 {
			if _, err := tx.ExecContext(ctx, `DELETE FROM search WHERE rowid = ?`, id); err != nil {
				return fmt.Errorf("could not delete full-text content: %w", err)
			}
		}
	}
	return nil
}

// Clear removes every document and drops buffered writes.
func (e *Engine) Clear(ctx context.Context) error {
	e.adds, e.deletes = nil, nil
	stmts := []string{
		`DELETE FROM documents`,
		`DELETE FROM field_values`,
	}
	if len(e.fts) > 0 {
		stmts = append(stmts, `DELETE FROM search`)
	}
	for _, stmt := range stmts {
		if _, err := e.db.ExecContext(ctx, stmt); err != nil {
			return &engine.Error{Op: "clear", Err: err}
		}
	}
	return nil
}

// Count returns the number of committed documents.
func (e *Engine) Count(ctx context.Context) (uint64, error) {
	var n uint64
	if err := e.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, &engine.Error{Op: "count", Err: err}
	}
	return n, nil
}

// Get returns the first committed document matching the term, or
// engine.ErrNotFound.
func (e *Engine) Get(ctx context.Context, field string, term value.FieldValue) (document.Fields, error) {
	cond, err := termCondition(e.schema, field, term)
	if err != nil {
		return nil, &engine.Error{Op: "get", Err: err}
	}
	var raw string
	err = e.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT d.doc FROM documents d WHERE %s ORDER BY d.docid LIMIT 1`, cond.sql),
		cond.args...,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, engine.ErrNotFound
	}
	if err != nil {
		return nil, &engine.Error{Op: "get", Err: err}
	}
	doc, err := decodeStored(raw)
	if err != nil {
		return nil, &engine.Error{Op: "get", Err: err}
	}
	return doc, nil
}

// GetAll returns the committed documents matching any of the terms.
func (e *Engine) GetAll(ctx context.Context, field string, terms []value.FieldValue) ([]document.Fields, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	parts := make([]condition, 0, len(terms))
	for _, t := range terms {
		c, err := termCondition(e.schema, field, t)
		if err != nil {
			return nil, &engine.Error{Op: "get", Err: err}
		}
		parts = append(parts, c)
	}
	cond := anyOf(parts)
	rows, err := e.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT d.doc FROM documents d WHERE %s ORDER BY d.docid`, cond.sql),
		cond.args...,
	)
	if err != nil {
		return nil, &engine.Error{Op: "get", Err: err}
	}
	defer rows.Close()

	var out []document.Fields
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, &engine.Error{Op: "get", Err: err}
		}
		doc, err := decodeStored(raw)
		if err != nil {
			return nil, &engine.Error{Op: "get", Err: err}
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, &engine.Error{Op: "get", Err: err}
	}
	return out, nil
}

// Search runs a query and returns one page of matches. Full-text
// matches are ranked by bm25 when the whole query is a full-text
// predicate; structured matches come back in insertion order with a
// neutral score.
func (e *Engine) Search(ctx context.Context, q query.Query, limit, offset uint32) (*engine.SearchResult, error) {
	if limit == 0 {
		return nil, &engine.Error{Op: "search", Err: fmt.Errorf("limit must be positive")}
	}
	cond, err := translate(e.schema, q)
	if err != nil {
		return nil, &engine.Error{Op: "search", Err: err}
	}

	var total uint64
	if err := e.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM documents d WHERE %s`, cond.sql), cond.args...,
	).Scan(&total); err != nil {
		return nil, &engine.Error{Op: "search", Err: err}
	}

	sel, args := e.searchStatement(q, cond, limit, offset)
	rows, err := e.db.QueryContext(ctx, sel, args...)
	if err != nil {
		return nil, &engine.Error{Op: "search", Err: err}
	}
	defer rows.Close()

	result := &engine.SearchResult{Count: total}
	for rows.Next() {
		var raw string
		var score float64
		if err := rows.Scan(&raw, &score); err != nil {
			return nil, &engine.Error{Op: "search", Err: err}
		}
		doc, err := decodeStored(raw)
		if err != nil {
			return nil, &engine.Error{Op: "search", Err: err}
		}
		result.Hits = append(result.Hits, engine.Hit{Score: float32(score), Doc: doc})
	}
	if err := rows.Err(); err != nil {
		return nil, &engine.Error{Op: "search", Err: err}
	}
	return result, nil
}

// searchStatement builds the page query. Pure full-text queries join
// the fts table so results rank by relevance; bm25 returns smaller
// values for better matches, so the sign flips to make higher better.
func (e *Engine) searchStatement(q query.Query, cond condition, limit, offset uint32) (string, []any) {
	if expr, ok := ftsOnlyExpr(q); ok && len(e.fts) > 0 {
		sel := `SELECT d.doc, -bm25(search) AS score
			FROM search JOIN documents d ON d.docid = search.rowid
			WHERE search MATCH ?
			ORDER BY bm25(search), d.docid LIMIT ? OFFSET ?`
		return sel, []any{expr, int64(limit), int64(offset)}
	}
	sel := fmt.Sprintf(
		`SELECT d.doc, 1.0 AS score FROM documents d WHERE %s ORDER BY d.docid LIMIT ? OFFSET ?`,
		cond.sql,
	)
	args := append(append([]any{}, cond.args...), int64(limit), int64(offset))
	return sel, args
}

// ftsOnlyExpr reports whether the query is entirely a full-text
// predicate, returning its fts5 expression.
func ftsOnlyExpr(q query.Query) (string, bool) {
	switch v := q.(type) {
	case query.Phrase:
		expr := phraseExpr(v.Field, v.Terms, v.Slop, false)
		return expr, expr != ""
	case query.PhrasePrefix:
		expr := phraseExpr(v.Field, v.Terms, nil, true)
		return expr, expr != ""
	case query.QueryString:
		expr := queryStringExpr(v.Query, v.DefaultFields)
		return expr, expr != ""
	case query.Boost:
		return ftsOnlyExpr(v.Query)
	case query.ConstScore:
		return ftsOnlyExpr(v.Query)
	default:
		return "", false
	}
}

func decodeStored(raw string) (document.Fields, error) {
	var doc document.Fields
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("could not decode stored document: %w", err)
	}
	return doc, nil
}

// Close releases the database handle. Buffered writes are discarded.
func (e *Engine) Close() error {
	e.adds, e.deletes = nil, nil
	if err := e.db.Close(); err != nil {
		return &engine.Error{Op: "close", Err: err}
	}
	return nil
}
