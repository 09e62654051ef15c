package store

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct {
	ID    string          `json:"id"`
	Count int64           `json:"count"`
	Total decimal.Decimal `json:"total"`
}

func TestGetOrCreatePersistsDefault(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	coll := NewCollection[widget](kv, "widgets")

	w, err := coll.GetOrCreate(ctx, "w1", func(w *widget) {
		w.ID = "w1"
	})
	require.NoError(t, err)
	assert.Equal(t, "w1", w.ID)
	assert.True(t, w.Total.IsZero())

	// The default must be visible in the store immediately, not only
	// after a later Put.
	stored, ok, err := coll.Get(ctx, "w1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "w1", stored.ID)
}

func TestGetOrCreateReturnsExisting(t *testing.T) {
	ctx := context.Background()
	coll := NewCollection[widget](NewMemoryKV(), "widgets")

	require.NoError(t, coll.Put(ctx, "w1", &widget{ID: "w1", Count: 3}))

	w, err := coll.GetOrCreate(ctx, "w1", func(w *widget) {
		w.Count = 99 // must not run for an existing record
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), w.Count)
}

func TestPutIsFullOverwrite(t *testing.T) {
	ctx := context.Background()
	coll := NewCollection[widget](NewMemoryKV(), "widgets")

	require.NoError(t, coll.Put(ctx, "w1", &widget{ID: "w1", Count: 3, Total: decimal.NewFromInt(10)}))
	require.NoError(t, coll.Put(ctx, "w1", &widget{ID: "w1"}))

	w, ok, err := coll.Get(ctx, "w1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(0), w.Count)
	assert.True(t, w.Total.IsZero())
}

func TestStoredValuesAreIsolated(t *testing.T) {
	ctx := context.Background()
	coll := NewCollection[widget](NewMemoryKV(), "widgets")

	w := &widget{ID: "w1", Count: 1}
	require.NoError(t, coll.Put(ctx, "w1", w))
	w.Count = 42 // mutating the caller's copy must not touch the store

	stored, ok, err := coll.Get(ctx, "w1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), stored.Count)
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	coll := NewCollection[widget](kv, "widgets")

	require.NoError(t, coll.Put(ctx, "w1", &widget{ID: "w1", Count: 1}))
	snap := kv.Snapshot()

	require.NoError(t, coll.Put(ctx, "w1", &widget{ID: "w1", Count: 2}))
	assert.NotEqual(t, snap, kv.Snapshot())

	require.NoError(t, coll.Put(ctx, "w1", &widget{ID: "w1", Count: 1}))
	assert.Equal(t, snap, kv.Snapshot())
}

func TestDecimalRoundTrip(t *testing.T) {
	ctx := context.Background()
	coll := NewCollection[widget](NewMemoryKV(), "widgets")

	huge, err := decimal.NewFromString("123456789012345678901234567890")
	require.NoError(t, err)
	require.NoError(t, coll.Put(ctx, "w1", &widget{ID: "w1", Total: huge}))

	w, ok, err := coll.Get(ctx, "w1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, huge.Equal(w.Total))
}
