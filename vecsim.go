// Package vecsim provides an embedded vector similarity index for Go.
//
// Vectors live in an inner-product space: the similarity between two
// vectors is their dot product, and searches return the most similar
// vectors first. Callers that want cosine similarity normalize their
// vectors before inserting and querying; the index neither performs
// nor validates normalization.
//
// An Index wraps an HNSW graph for approximate nearest neighbour
// search. All operations on a handle are serialized by a single lock,
// so a handle is safe for concurrent use from multiple goroutines.
//
// Quick start:
//
//	idx, err := vecsim.New(128, 100_000)
//	if err != nil {
//	    panic(err)
//	}
//	defer idx.Close()
//
//	_ = idx.Insert(ctx, 42, vector)
//
//	results, err := idx.Search(ctx, query, 10)
//
// Snapshots are written to a pluggable blob store:
//
//	idx, err := vecsim.New(128, 100_000,
//	    vecsim.WithBlobStore(blobstore.NewLocalStore("./data")),
//	    vecsim.WithCompression(persistence.CompressionZstd),
//	)
//	...
//	_ = idx.Save(ctx, "movies.vsim")
//
// Open restores a snapshot, or starts fresh when none exists:
//
//	idx, created, err := vecsim.Open(ctx, "movies.vsim", 128, 100_000,
//	    vecsim.WithBlobStore(store),
//	)
//
// For exact search over small datasets, see the flat package.
package vecsim

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/vecsim/blobstore"
	"github.com/hupe1980/vecsim/hnsw"
	"github.com/hupe1980/vecsim/persistence"
)

// Result is a single search hit.
type Result struct {
	// ID is the caller-assigned vector id.
	ID int32

	// Similarity is the inner product between the query and the hit.
	// Results are ordered by descending similarity.
	Similarity float32
}

// SearchOptions tune a single query.
type SearchOptions struct {
	// EF overrides the index-level exploration factor for this query.
	// Values below k are raised to k.
	EF int

	// Allow restricts results to ids present in the bitmap, keyed by
	// the uint32 bit pattern of the id so negative ids work (add them
	// as uint32(id)). Nil means no restriction. The graph is still
	// traversed through excluded nodes so reachability is unaffected.
	Allow *roaring.Bitmap
}

// Index is a handle to one in-memory vector index. The zero value is
// not usable; construct with New or Open.
//
// A single mutex serializes every operation, including searches. Each
// operation runs to completion before the next begins.
type Index struct {
	mu sync.Mutex

	// graph is nil once the index is closed.
	graph *hnsw.Graph

	dimension   int
	maxElements int
	ef          int

	store       blobstore.Store
	compression persistence.Compression
	logger      *Logger
	metrics     MetricsCollector
}

// New creates an empty index for vectors of the given dimension with a
// fixed element capacity.
func New(dimension, maxElements int, optFns ...Option) (*Index, error) {
	opts := applyOptions(optFns...)

	graph, err := hnsw.New(func(o *hnsw.Options) {
		o.Dimension = dimension
		o.MaxElements = maxElements
		o.M = opts.m
		o.EFConstruction = opts.efConstruction
		o.Seed = opts.seed
	})
	if err != nil {
		return nil, translateError(err)
	}

	return newIndex(graph, opts), nil
}

// Open restores the named snapshot from the configured blob store.
//
// Three outcomes:
//   - the snapshot exists and matches dimension: the returned index
//     holds its contents and created is false;
//   - the snapshot does not exist: a fresh empty index is returned and
//     created is true;
//   - the snapshot is corrupt or its dimension differs: an error.
//
// maxElements applies only when a fresh index is created; a restored
// index keeps the capacity it was saved with.
func Open(ctx context.Context, name string, dimension, maxElements int, optFns ...Option) (*Index, bool, error) {
	opts := applyOptions(optFns...)

	start := time.Now()
	var graph *hnsw.Graph
	err := guard(func() error {
		var lerr error
		graph, lerr = loadGraph(ctx, opts.store, name, dimension)
		return lerr
	})
	opts.metrics.RecordLoad(time.Since(start), err)

	switch {
	case errors.Is(err, blobstore.ErrNotFound):
		idx, nerr := New(dimension, maxElements, optFns...)
		if nerr != nil {
			return nil, false, nerr
		}
		opts.logger.LogSnapshot(ctx, "create", name, 0, nil)
		return idx, true, nil
	case err != nil:
		opts.logger.LogSnapshot(ctx, "load", name, 0, err)
		return nil, false, translateError(err)
	}

	opts.logger.LogSnapshot(ctx, "load", name, graph.Len(), nil)

	return newIndex(graph, opts), false, nil
}

func newIndex(graph *hnsw.Graph, opts options) *Index {
	return &Index{
		graph:       graph,
		dimension:   graph.Dimension(),
		maxElements: graph.Capacity(),
		ef:          opts.ef,
		store:       opts.store,
		compression: opts.compression,
		logger:      opts.logger,
		metrics:     opts.metrics,
	}
}

func loadGraph(ctx context.Context, store blobstore.Store, name string, dimension int) (*hnsw.Graph, error) {
	blob, err := store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer blob.Close()

	data, err := blobstore.ReadAll(blob)
	if err != nil {
		return nil, err
	}

	meta, payload, err := persistence.Read(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if meta.Dimension != dimension {
		return nil, fmt.Errorf("%w: snapshot dimension %d, requested %d",
			ErrSnapshotMismatch, meta.Dimension, dimension)
	}

	graph, err := hnsw.ReadGraph(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: decode graph: %w", ErrSnapshotMismatch, err)
	}
	if graph.Dimension() != meta.Dimension || graph.Len() != meta.Elements {
		return nil, fmt.Errorf("%w: header disagrees with payload", ErrSnapshotMismatch)
	}

	return graph, nil
}

// Insert adds a vector under the given id. The vector is copied, so
// the caller may reuse the slice. Inserting an existing id fails with
// ErrDuplicateID; inserting past capacity fails with
// ErrCapacityExceeded.
func (idx *Index) Insert(ctx context.Context, id int32, vector []float32) (err error) {
	start := time.Now()
	defer func() {
		idx.metrics.RecordInsert(time.Since(start), err)
		idx.logger.LogInsert(ctx, id, len(vector), err)
	}()

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.graph == nil {
		return ErrClosed
	}

	err = translateError(guard(func() error {
		return idx.graph.Insert(id, vector)
	}))
	return err
}

// SetEF updates the default query-time exploration factor. Calling
// SetEF on a closed index does nothing.
func (idx *Index) SetEF(ef int) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.graph == nil {
		return
	}
	idx.ef = ef
}

// Search returns up to k results ordered by descending similarity.
// Fewer than k results are returned when the index holds fewer
// eligible vectors.
func (idx *Index) Search(ctx context.Context, query []float32, k int, optFns ...func(o *SearchOptions)) (_ []Result, err error) {
	start := time.Now()
	defer func() {
		idx.metrics.RecordSearch(k, time.Since(start), err)
		idx.logger.LogSearch(ctx, k, time.Since(start), err)
	}()

	if k <= 0 {
		return nil, ErrInvalidK
	}

	var opts SearchOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.graph == nil {
		return nil, ErrClosed
	}

	ef := idx.ef
	if opts.EF > 0 {
		ef = opts.EF
	}
	if ef < k {
		ef = k
	}

	var filter func(label int32) bool
	if opts.Allow != nil {
		allow := opts.Allow
		filter = func(label int32) bool {
			return allow.Contains(uint32(label))
		}
	}

	var candidates []hnsw.Candidate
	err = guard(func() error {
		var serr error
		candidates, serr = idx.graph.Search(query, k, ef, filter)
		return serr
	})
	if err != nil {
		return nil, translateError(err)
	}

	// The graph ranks by distance = 1 - dot(q, v); undo the transform
	// so callers see similarities.
	results := make([]Result, len(candidates))
	for i, c := range candidates {
		results[i] = Result{
			ID:         c.Label,
			Similarity: 1 - c.Distance,
		}
	}

	return results, nil
}

// Count returns the number of stored vectors, 0 when closed.
func (idx *Index) Count() int {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.graph == nil {
		return 0
	}
	return idx.graph.Len()
}

// Stats returns structural statistics about the underlying graph,
// the zero value when closed.
func (idx *Index) Stats() hnsw.Stats {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.graph == nil {
		return hnsw.Stats{}
	}
	return idx.graph.Stats()
}

// Dimension returns the fixed vector dimension.
func (idx *Index) Dimension() int { return idx.dimension }

// Capacity returns the maximum number of vectors the index can hold.
func (idx *Index) Capacity() int { return idx.maxElements }

// Save writes a snapshot of the index under the given name in the
// configured blob store. The index remains usable afterwards.
func (idx *Index) Save(ctx context.Context, name string) (err error) {
	start := time.Now()

	idx.mu.Lock()
	defer idx.mu.Unlock()

	elements := 0
	defer func() {
		idx.metrics.RecordSave(time.Since(start), err)
		idx.logger.LogSnapshot(ctx, "save", name, elements, err)
	}()

	if idx.graph == nil {
		return ErrClosed
	}
	elements = idx.graph.Len()

	var payload bytes.Buffer
	err = guard(func() error {
		return idx.graph.WriteTo(&payload)
	})
	if err != nil {
		return fmt.Errorf("encode graph: %w", err)
	}

	var snapshot bytes.Buffer
	meta := persistence.Metadata{
		Dimension: idx.dimension,
		Capacity:  idx.maxElements,
		Elements:  elements,
	}
	if err = persistence.Write(&snapshot, meta, payload.Bytes(), idx.compression); err != nil {
		return err
	}

	err = idx.store.Put(ctx, name, snapshot.Bytes())
	return err
}

// Close releases the index. Further calls to Insert, Search and Save
// fail with ErrClosed; Count reports 0 and SetEF does nothing. Close
// is idempotent.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.graph = nil

	return nil
}

// guard converts a panic inside the engine or the snapshot decoder
// into an error, so a fault never crosses the API boundary with the
// lock still held.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrInternal, r)
		}
	}()
	return fn()
}
