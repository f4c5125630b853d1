package flat

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecsim/distance"
)

func TestTopKExample(t *testing.T) {
	matrix := []float32{
		1, 0,
		0, 1,
		0.9, 0.1,
	}
	ids := []int32{10, 20, 30}
	query := []float32{1, 0}

	results, err := TopK(query, matrix, ids, 2, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, int32(10), results[0].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.Equal(t, int32(30), results[1].ID)
	assert.InDelta(t, 0.9, results[1].Score, 1e-6)
}

func TestTopKDegenerateInputs(t *testing.T) {
	matrix := []float32{1, 0}
	ids := []int32{1}
	query := []float32{1, 0}

	results, err := TopK(query, matrix, ids, 2, 0)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = TopK(query, matrix, ids, 2, -3)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = TopK(query, nil, nil, 2, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestTopKClampsToRows(t *testing.T) {
	matrix := []float32{1, 0, 0, 1}
	ids := []int32{1, 2}
	query := []float32{1, 1}

	results, err := TopK(query, matrix, ids, 2, 10)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestTopKShapeErrors(t *testing.T) {
	_, err := TopK([]float32{1, 0}, []float32{1, 0, 0}, []int32{1, 2}, 2, 1)
	var shapeErr *ErrMatrixShape
	require.ErrorAs(t, err, &shapeErr)
	assert.Equal(t, 2, shapeErr.Rows)

	_, err = TopK([]float32{1}, []float32{1, 0}, []int32{1}, 2, 1)
	assert.Error(t, err)

	_, err = TopK([]float32{1}, []float32{1}, []int32{1}, 0, 1)
	assert.Error(t, err)
}

// bruteBaseline computes the expected ranking with a full sort.
func bruteBaseline(query, matrix []float32, ids []int32, dim, k int) []Result {
	results := make([]Result, len(ids))
	for i := range ids {
		results[i] = Result{
			ID:    ids[i],
			Score: distance.Dot(query, matrix[i*dim:(i+1)*dim]),
		}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if k < len(results) {
		results = results[:k]
	}
	return results
}

func TestTopKMatchesFullSort(t *testing.T) {
	const (
		rows = 500
		dim  = 16
		k    = 10
	)

	rng := rand.New(rand.NewSource(1))
	matrix := make([]float32, rows*dim)
	ids := make([]int32, rows)
	for i := range matrix {
		matrix[i] = rng.Float32()*2 - 1
	}
	for i := range ids {
		ids[i] = int32(i * 3) // non-contiguous ids
	}
	query := make([]float32, dim)
	for i := range query {
		query[i] = rng.Float32()*2 - 1
	}

	results, err := TopK(query, matrix, ids, dim, k)
	require.NoError(t, err)
	require.Len(t, results, k)

	// Scores are non-increasing.
	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i].Score, results[i-1].Score)
	}

	// The returned set equals the true top-k. Compare score multisets so
	// tie order does not matter.
	expected := bruteBaseline(query, matrix, ids, dim, k)
	for i := range results {
		assert.InDelta(t, expected[i].Score, results[i].Score, 1e-5)
	}
}

func TestTopKParallelPath(t *testing.T) {
	const (
		rows = 3 * parallelThreshold
		dim  = 8
		k    = 25
	)

	rng := rand.New(rand.NewSource(2))
	matrix := make([]float32, rows*dim)
	ids := make([]int32, rows)
	for i := range matrix {
		matrix[i] = rng.Float32()*2 - 1
	}
	for i := range ids {
		ids[i] = int32(i)
	}
	query := make([]float32, dim)
	for i := range query {
		query[i] = rng.Float32()*2 - 1
	}

	results, err := TopK(query, matrix, ids, dim, k)
	require.NoError(t, err)
	require.Len(t, results, k)

	expected := bruteBaseline(query, matrix, ids, dim, k)
	for i := range results {
		assert.InDelta(t, expected[i].Score, results[i].Score, 1e-4)
	}
}

func TestTopKInto(t *testing.T) {
	matrix := []float32{
		1, 0,
		0, 1,
		0.9, 0.1,
	}
	ids := []int32{10, 20, 30}
	query := []float32{1, 0}

	outIDs := make([]int32, 2)
	outScores := make([]float32, 2)

	n, err := TopKInto(query, matrix, ids, 2, 2, outIDs, outScores)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	assert.Equal(t, []int32{10, 30}, outIDs)
	assert.InDelta(t, 1.0, outScores[0], 1e-6)
	assert.InDelta(t, 0.9, outScores[1], 1e-6)
}

func TestTopKIntoShortBuffer(t *testing.T) {
	matrix := []float32{1, 0, 0, 1}
	ids := []int32{1, 2}
	query := []float32{1, 0}

	var shortErr *ErrShortBuffer

	_, err := TopKInto(query, matrix, ids, 2, 2, make([]int32, 1), make([]float32, 2))
	require.ErrorAs(t, err, &shortErr)
	assert.Equal(t, 2, shortErr.Need)

	_, err = TopKInto(query, matrix, ids, 2, 2, make([]int32, 2), make([]float32, 1))
	assert.ErrorAs(t, err, &shortErr)
}

func TestTopKIntoDegenerate(t *testing.T) {
	n, err := TopKInto([]float32{1}, nil, nil, 1, 5, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
