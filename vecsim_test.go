package vecsim

import (
	"context"
	"errors"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecsim/blobstore"
)

func seedIndex(t *testing.T, optFns ...Option) *Index {
	t.Helper()

	opts := append([]Option{WithSeed(42)}, optFns...)
	idx, err := New(4, 100, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	ctx := context.Background()
	require.NoError(t, idx.Insert(ctx, 1, []float32{1, 0, 0, 0}))
	require.NoError(t, idx.Insert(ctx, 2, []float32{0.8, 0.6, 0, 0}))
	require.NoError(t, idx.Insert(ctx, 3, []float32{0, 1, 0, 0}))
	require.NoError(t, idx.Insert(ctx, 4, []float32{0.5, 0.5, 0.5, 0.5}))

	return idx
}

func TestIndex_Search(t *testing.T) {
	idx := seedIndex(t)
	ctx := context.Background()

	results, err := idx.Search(ctx, []float32{1, 0, 0, 0}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, int32(1), results[0].ID)
	assert.Equal(t, int32(2), results[1].ID)
	assert.Equal(t, int32(4), results[2].ID)

	assert.InDelta(t, 1.0, results[0].Similarity, 1e-6)
	assert.InDelta(t, 0.8, results[1].Similarity, 1e-6)
	assert.InDelta(t, 0.5, results[2].Similarity, 1e-6)
}

func TestIndex_SearchKLargerThanCount(t *testing.T) {
	idx := seedIndex(t)

	results, err := idx.Search(context.Background(), []float32{1, 0, 0, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, results, 4)
}

func TestIndex_SearchInvalidK(t *testing.T) {
	idx := seedIndex(t)

	_, err := idx.Search(context.Background(), []float32{1, 0, 0, 0}, 0)
	assert.ErrorIs(t, err, ErrInvalidK)
}

func TestIndex_SearchDimensionMismatch(t *testing.T) {
	idx := seedIndex(t)

	_, err := idx.Search(context.Background(), []float32{1, 0}, 3)

	var dm *ErrDimensionMismatch
	require.ErrorAs(t, err, &dm)
	assert.Equal(t, 4, dm.Expected)
	assert.Equal(t, 2, dm.Actual)
}

func TestIndex_SearchAllowFilter(t *testing.T) {
	idx := seedIndex(t)

	allow := roaring.New()
	allow.Add(2)
	allow.Add(3)

	results, err := idx.Search(context.Background(), []float32{1, 0, 0, 0}, 4, func(o *SearchOptions) {
		o.Allow = allow
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, int32(2), results[0].ID)
	assert.Equal(t, int32(3), results[1].ID)
}

func TestIndex_SearchAllowFilterNegativeID(t *testing.T) {
	idx := seedIndex(t)
	ctx := context.Background()
	id := int32(-7)
	require.NoError(t, idx.Insert(ctx, id, []float32{0.9, 0, 0, 0.1}))

	allow := roaring.New()
	allow.Add(uint32(id))

	results, err := idx.Search(ctx, []float32{1, 0, 0, 0}, 5, func(o *SearchOptions) {
		o.Allow = allow
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int32(-7), results[0].ID)
}

func TestIndex_InsertDuplicateID(t *testing.T) {
	idx := seedIndex(t)

	err := idx.Insert(context.Background(), 1, []float32{0, 0, 1, 0})
	assert.ErrorIs(t, err, ErrDuplicateID)

	// The original vector is untouched.
	results, err := idx.Search(context.Background(), []float32{1, 0, 0, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, int32(1), results[0].ID)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-6)
}

func TestIndex_InsertCapacityExceeded(t *testing.T) {
	idx, err := New(2, 2, WithSeed(1))
	require.NoError(t, err)
	defer idx.Close()

	ctx := context.Background()
	require.NoError(t, idx.Insert(ctx, 1, []float32{1, 0}))
	require.NoError(t, idx.Insert(ctx, 2, []float32{0, 1}))

	err = idx.Insert(ctx, 3, []float32{1, 1})
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Equal(t, 2, idx.Count())
}

func TestIndex_InsertCopiesVector(t *testing.T) {
	idx, err := New(2, 10, WithSeed(1))
	require.NoError(t, err)
	defer idx.Close()

	ctx := context.Background()
	v := []float32{1, 0}
	require.NoError(t, idx.Insert(ctx, 1, v))
	v[0] = 0
	v[1] = 1

	results, err := idx.Search(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-6)
}

func TestIndex_New_InvalidParams(t *testing.T) {
	tests := []struct {
		name        string
		dimension   int
		maxElements int
	}{
		{name: "zero dimension", dimension: 0, maxElements: 10},
		{name: "negative dimension", dimension: -1, maxElements: 10},
		{name: "zero capacity", dimension: 4, maxElements: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.dimension, tt.maxElements)
			assert.Error(t, err)
		})
	}
}

func TestIndex_Metrics(t *testing.T) {
	metrics := &BasicMetricsCollector{}
	idx := seedIndex(t, WithMetricsCollector(metrics))

	_, err := idx.Search(context.Background(), []float32{1, 0, 0, 0}, 2)
	require.NoError(t, err)

	stats := metrics.GetStats()
	assert.Equal(t, int64(4), stats.InsertCount)
	assert.Equal(t, int64(0), stats.InsertErrors)
	assert.Equal(t, int64(1), stats.SearchCount)
}

func TestIndex_Stats(t *testing.T) {
	idx := seedIndex(t)

	s := idx.Stats()
	assert.Equal(t, 4, s.Elements)
	assert.Equal(t, 100, s.Capacity)
	assert.Equal(t, 16, s.M)

	require.NoError(t, idx.Close())
	assert.Zero(t, idx.Stats())
}

func TestTranslateError_Passthrough(t *testing.T) {
	sentinel := errors.New("boom")
	assert.Equal(t, sentinel, translateError(sentinel))
	assert.NoError(t, translateError(nil))
}

func TestIndex_SaveOnClosedStoreError(t *testing.T) {
	idx := seedIndex(t, WithBlobStore(blobstore.NewMemoryStore()))
	require.NoError(t, idx.Close())

	err := idx.Save(context.Background(), "snap.vsim")
	assert.ErrorIs(t, err, ErrClosed)
}
