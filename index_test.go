package tafuta

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tafuta/tafuta/core/query"
	"github.com/tafuta/tafuta/core/schema"
	"github.com/tafuta/tafuta/core/value"
	"github.com/tafuta/tafuta/sqlite"
)

type article struct {
	ID    string   `search:"id,id"`
	Title string   `search:"title"`
	Score float64  `search:"score,f64,fast"`
	Tags  []string `search:"tags,facet"`
}

func newTestIndex(t *testing.T) *Index[article] {
	t.Helper()
	ix, err := Open[article](Options{})
	require.NoError(t, err)
	t.Cleanup(func() { ix.Close() })
	return ix
}

func TestOpenDerivesSchema(t *testing.T) {
	ix := newTestIndex(t)
	s := ix.Schema()
	assert.Equal(t, 4, s.Len())

	kind, ok := s.Kind("score")
	require.True(t, ok)
	assert.Equal(t, value.KindF64, kind)
}

func TestOpenRejectsBadDocumentType(t *testing.T) {
	type bare struct {
		Name string
	}
	_, err := Open[bare](Options{})
	assert.Error(t, err)
}

func TestIndexLifecycle(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()

	in := article{ID: "1", Title: "Swift and Rust", Score: 9.5, Tags: []string{"/lang/swift"}}
	require.NoError(t, ix.Add(ctx, in))

	// Uncommitted writes stay invisible.
	n, err := ix.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	ok, err := ix.Exists(ctx, "id", value.Text("1"))
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, ix.Commit(ctx))

	ok, err = ix.Exists(ctx, "id", value.Text("1"))
	require.NoError(t, err)
	assert.True(t, ok)

	got, found, err := ix.Get(ctx, "id", value.Text("1"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, in.Title, got.Title)
	assert.Equal(t, in.Score, got.Score)

	require.NoError(t, ix.Delete(ctx, "id", value.Text("1")))
	require.NoError(t, ix.Commit(ctx))

	_, found, err = ix.Get(ctx, "id", value.Text("1"))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestIndexAddsAndCommits(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, ix.Index(ctx, article{ID: "1", Title: "one call"}))

	n, err := ix.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
}

func TestAddAllAndGetAll(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, ix.AddAll(ctx,
		article{ID: "1", Title: "first"},
		article{ID: "2", Title: "second"},
		article{ID: "3", Title: "third"},
	))
	require.NoError(t, ix.Commit(ctx))

	docs, err := ix.GetAll(ctx, "id", value.Text("2"), value.Text("3"))
	require.NoError(t, err)
	require.Len(t, docs, 2)

	ids := []string{docs[0].ID, docs[1].ID}
	assert.ElementsMatch(t, []string{"2", "3"}, ids)
}

func TestSearchDecodesDocuments(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, ix.AddAll(ctx,
		article{ID: "1", Title: "swift essentials", Score: 5},
		article{ID: "2", Title: "rust essentials", Score: 7},
	))
	require.NoError(t, ix.Commit(ctx))

	res, err := ix.Search(ctx, query.NewTerm("title", value.Text("rust")), 10, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(1), res.Count)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "2", res.Hits[0].Doc.ID)
	assert.Greater(t, res.Hits[0].Score, float32(0))
}

func TestSearchString(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, ix.AddAll(ctx,
		article{ID: "1", Title: "the quick brown fox"},
		article{ID: "2", Title: "a lazy dog"},
	))
	require.NoError(t, ix.Commit(ctx))

	res, err := ix.SearchString(ctx, "quick fox", []string{"title"}, nil, 10, 0)
	require.NoError(t, err)
	require.NotZero(t, res.Count)
	assert.Equal(t, "1", res.Hits[0].Doc.ID)
}

func TestClearKeepsHandleUsable(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, ix.Index(ctx, article{ID: "1"}))
	require.NoError(t, ix.Clear(ctx))

	n, err := ix.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, ix.Index(ctx, article{ID: "2"}))
	n, err = ix.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
}

func TestClosedIndexRejectsOperations(t *testing.T) {
	ix := newTestIndex(t)
	require.NoError(t, ix.Close())
	// Closing twice is harmless.
	require.NoError(t, ix.Close())

	ctx := context.Background()
	assert.ErrorIs(t, ix.Add(ctx, article{ID: "1"}), ErrClosed)
	assert.ErrorIs(t, ix.Commit(ctx), ErrClosed)
	_, err := ix.Count(ctx)
	assert.ErrorIs(t, err, ErrClosed)
	_, _, err = ix.Get(ctx, "id", value.Text("1"))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCancelledContext(t *testing.T) {
	ix := newTestIndex(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, ix.Add(ctx, article{ID: "1"}), context.Canceled)
	_, err := ix.Count(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEventsEmittedAroundCommit(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()

	got := make(chan IndexEvent, 1)
	id := ix.Subscribe(EventCommitSuccess, func(_ context.Context, ev IndexEvent) error {
		select {
		case got <- ev:
		default:
		}
		return nil
	})
	defer ix.Unsubscribe(id)

	require.NoError(t, ix.Add(ctx, article{ID: "1"}))
	require.NoError(t, ix.Commit(ctx))

	select {
	case ev := <-got:
		assert.Equal(t, EventCommitSuccess, ev.Type)
		assert.Equal(t, "commit", ev.Operation)
		assert.NotNil(t, ev.Duration)
	case <-time.After(2 * time.Second):
		t.Fatal("commit success event was not delivered")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()

	got := make(chan IndexEvent, 8)
	id := ix.Subscribe(EventClearSuccess, func(_ context.Context, ev IndexEvent) error {
		got <- ev
		return nil
	})
	require.NoError(t, ix.Clear(ctx))

	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("clear success event was not delivered")
	}

	ix.Unsubscribe(id)
	require.NoError(t, ix.Clear(ctx))

	select {
	case <-got:
		t.Fatal("event delivered after unsubscribe")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestOpenWithCustomEngine(t *testing.T) {
	s, err := schema.Extract(article{})
	require.NoError(t, err)

	eng, err := sqlite.Open("", s)
	require.NoError(t, err)

	ix, err := Open[article](Options{Engine: eng})
	require.NoError(t, err)
	t.Cleanup(func() { ix.Close() })

	ctx := context.Background()
	require.NoError(t, ix.Index(ctx, article{ID: "1", Title: "stored in sqlite"}))

	got, found, err := ix.Get(ctx, "id", value.Text("1"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "stored in sqlite", got.Title)
}
