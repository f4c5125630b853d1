package flat

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/vecsim/distance"
	"github.com/hupe1980/vecsim/internal/queue"
)

// parallelThreshold is the row count above which the scan is split
// across goroutines. Below it the goroutine overhead dominates.
const parallelThreshold = 4096

// Result is a single scored match.
type Result struct {
	// ID is the caller-chosen identifier of the matched row.
	ID int32

	// Score is the inner product between the query and the row.
	// Higher is better.
	Score float32
}

// ErrMatrixShape indicates that the matrix length does not equal
// rows * dim for the given ids and dimension.
type ErrMatrixShape struct {
	Rows, Dim, MatrixLen int
}

func (e *ErrMatrixShape) Error() string {
	return fmt.Sprintf("matrix shape mismatch: %d rows * %d dim != %d values", e.Rows, e.Dim, e.MatrixLen)
}

// ErrShortBuffer indicates an output buffer smaller than the effective
// result count.
type ErrShortBuffer struct {
	Need, Got int
}

func (e *ErrShortBuffer) Error() string {
	return fmt.Sprintf("output buffer too small: need %d, got %d", e.Need, e.Got)
}

// TopK returns the min(k, rows) rows of matrix with the highest inner
// product against query, in descending score order. The number of rows
// is len(ids); row i occupies matrix[i*dim : (i+1)*dim].
//
// rows == 0 or k <= 0 yields an empty result, not an error. The order
// of equally scored rows is unspecified.
func TopK(query, matrix []float32, ids []int32, dim, k int) ([]Result, error) {
	rows := len(ids)
	if rows == 0 || k <= 0 {
		return nil, nil
	}

	if err := validateShape(query, matrix, rows, dim); err != nil {
		return nil, err
	}

	effectiveK := min(k, rows)

	top := selectTop(query, matrix, ids, dim, rows, effectiveK)

	// Pop yields worst-first; fill the slice backwards for descending score.
	results := make([]Result, top.Len())
	for i := top.Len() - 1; i >= 0; i-- {
		item, _ := top.Pop()
		results[i] = Result{ID: item.Label, Score: -item.Distance}
	}
	return results, nil
}

// TopKInto is TopK writing into caller-provided parallel buffers.
// It returns the number of entries written. Both buffers must hold at
// least min(k, rows) entries.
func TopKInto(query, matrix []float32, ids []int32, dim, k int, outIDs []int32, outScores []float32) (int, error) {
	rows := len(ids)
	if rows == 0 || k <= 0 {
		return 0, nil
	}

	effectiveK := min(k, rows)
	if len(outIDs) < effectiveK {
		return 0, &ErrShortBuffer{Need: effectiveK, Got: len(outIDs)}
	}
	if len(outScores) < effectiveK {
		return 0, &ErrShortBuffer{Need: effectiveK, Got: len(outScores)}
	}

	results, err := TopK(query, matrix, ids, dim, k)
	if err != nil {
		return 0, err
	}
	for i, r := range results {
		outIDs[i] = r.ID
		outScores[i] = r.Score
	}
	return len(results), nil
}

func validateShape(query, matrix []float32, rows, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("flat: invalid dimension %d", dim)
	}
	if len(query) != dim {
		return fmt.Errorf("flat: query length %d does not match dimension %d", len(query), dim)
	}
	if len(matrix) != rows*dim {
		return &ErrMatrixShape{Rows: rows, Dim: dim, MatrixLen: len(matrix)}
	}
	return nil
}

// selectTop runs the bounded-heap selection, fanning out across
// goroutines for large matrices. The per-chunk heaps keep the merge
// cost at O(workers * k * log k).
func selectTop(query, matrix []float32, ids []int32, dim, rows, effectiveK int) *queue.PriorityQueue {
	workers := runtime.GOMAXPROCS(0)
	if rows < parallelThreshold || workers <= 1 {
		return scanRange(query, matrix, ids, dim, 0, rows, effectiveK)
	}
	if workers > rows/parallelThreshold+1 {
		workers = rows/parallelThreshold + 1
	}

	chunks := make([]*queue.PriorityQueue, workers)
	chunkSize := (rows + workers - 1) / workers

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		w := w
		start := w * chunkSize
		end := min(start+chunkSize, rows)
		g.Go(func() error {
			chunks[w] = scanRange(query, matrix, ids, dim, start, end, effectiveK)
			return nil
		})
	}
	_ = g.Wait() // workers never fail

	top := chunks[0]
	for _, chunk := range chunks[1:] {
		for _, item := range chunk.Items() {
			top.PushBounded(item, effectiveK)
		}
	}
	return top
}

// scanRange scores rows [start, end) and keeps the best effectiveK in a
// bounded max-heap keyed by negated score.
func scanRange(query, matrix []float32, ids []int32, dim, start, end, effectiveK int) *queue.PriorityQueue {
	top := queue.NewMax(effectiveK)
	for i := start; i < end; i++ {
		row := matrix[i*dim : (i+1)*dim]
		score := distance.Dot(query, row)
		top.PushBounded(queue.Item{Label: ids[i], Distance: -score}, effectiveK)
	}
	return top
}
