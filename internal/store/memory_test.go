package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CDeX-Labs/CDeX-Judge-Service/internal/store"
)

type doc struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
	Score  int    `json:"score"`
}

func put(t *testing.T, s store.Store, collection string, d doc) {
	t.Helper()
	rec, err := store.Marshal(d.ID, d)
	require.NoError(t, err)
	require.NoError(t, s.Put(context.Background(), collection, rec))
}

func TestMemoryPutGet(t *testing.T) {
	s := store.NewMemory()
	ctx := context.Background()

	put(t, s, "submissions", doc{ID: "s1", UserID: "alice", Score: 100})

	rec, err := s.Get(ctx, "submissions", "s1")
	require.NoError(t, err)

	var got doc
	require.NoError(t, store.Unmarshal(rec, &got))
	assert.Equal(t, "alice", got.UserID)
	assert.Equal(t, 100, got.Score)
}

func TestMemoryGetNotFound(t *testing.T) {
	s := store.NewMemory()
	ctx := context.Background()

	_, err := s.Get(ctx, "submissions", "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	// Collections are independent namespaces.
	put(t, s, "submissions", doc{ID: "s1"})
	_, err = s.Get(ctx, "problems", "s1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMemoryPutOverwrites(t *testing.T) {
	s := store.NewMemory()
	ctx := context.Background()

	put(t, s, "submissions", doc{ID: "s1", Score: 1})
	put(t, s, "submissions", doc{ID: "s1", Score: 2})

	rec, err := s.Get(ctx, "submissions", "s1")
	require.NoError(t, err)

	var got doc
	require.NoError(t, store.Unmarshal(rec, &got))
	assert.Equal(t, 2, got.Score)
}

func TestMemoryQueryByField(t *testing.T) {
	s := store.NewMemory()
	ctx := context.Background()

	put(t, s, "submissions", doc{ID: "s1", UserID: "alice"})
	put(t, s, "submissions", doc{ID: "s2", UserID: "bob"})
	put(t, s, "submissions", doc{ID: "s3", UserID: "alice"})

	recs, err := s.Query(ctx, "submissions", "userId", "alice")
	require.NoError(t, err)
	require.Len(t, recs, 2)

	ids := []string{recs[0].ID, recs[1].ID}
	assert.ElementsMatch(t, []string{"s1", "s3"}, ids)

	recs, err = s.Query(ctx, "submissions", "userId", "nobody")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestMemoryReturnsCopies(t *testing.T) {
	s := store.NewMemory()
	ctx := context.Background()

	put(t, s, "submissions", doc{ID: "s1", UserID: "alice"})

	rec, err := s.Get(ctx, "submissions", "s1")
	require.NoError(t, err)
	for i := range rec.Data {
		rec.Data[i] = 'x'
	}

	again, err := s.Get(ctx, "submissions", "s1")
	require.NoError(t, err)

	var got doc
	require.NoError(t, store.Unmarshal(again, &got))
	assert.Equal(t, "alice", got.UserID)
}
