// Package hnsw implements a Hierarchical Navigable Small World graph for
// approximate nearest-neighbor search.
//
// Elements carry caller-chosen int32 labels. The graph has a fixed
// dimension and capacity set at construction; query-time search breadth
// (ef) is passed per search so the recall/latency tradeoff stays with
// the caller.
//
// A Graph is not safe for concurrent use. The vecsim package serializes
// all access behind a single lock; standalone users must do the same.
package hnsw

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/bits-and-blooms/bitset"

	"github.com/hupe1980/vecsim/distance"
	"github.com/hupe1980/vecsim/internal/queue"
)

// ErrCapacityExceeded is returned when an insert would grow the graph
// beyond its configured capacity.
type ErrCapacityExceeded struct {
	Capacity int
}

func (e *ErrCapacityExceeded) Error() string {
	return fmt.Sprintf("capacity exceeded: max elements %d", e.Capacity)
}

// ErrDimensionMismatch is returned when a vector does not match the
// graph dimension.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// ErrDuplicateLabel is returned when a label is inserted twice.
// Duplicate inserts are rejected rather than overwritten: silently
// rewiring a live graph node degrades recall in ways the caller cannot
// observe, so the ambiguity is surfaced instead.
type ErrDuplicateLabel struct {
	Label int32
}

func (e *ErrDuplicateLabel) Error() string {
	return fmt.Sprintf("duplicate label: %d", e.Label)
}

// Candidate is a single approximate neighbour, in engine distance space
// (lower is closer).
type Candidate struct {
	Label    int32
	Distance float32
}

// Options configures a Graph.
type Options struct {
	// Dimension is the fixed vector width. Required.
	Dimension int

	// MaxElements caps the number of elements. Required.
	MaxElements int

	// M is the number of established connections per element during
	// construction. The range 12-48 is fine for most use cases; layer 0
	// allows 2*M.
	M int

	// EFConstruction is the size of the dynamic candidate list during
	// insertion. Higher improves graph quality at build-time cost.
	EFConstruction int

	// Heuristic selects the neighbour-diversity heuristic over naive
	// nearest selection when linking.
	Heuristic bool

	// Metric is the distance metric. Inner product by default.
	Metric distance.Metric

	// Seed seeds level generation. Zero picks a random seed.
	Seed int64
}

// DefaultOptions are the options applied before user overrides.
var DefaultOptions = Options{
	M:              16,
	EFConstruction: 200,
	Heuristic:      true,
	Metric:         distance.MetricInnerProduct,
}

type node struct {
	Label       int32
	Vector      []float32
	Layer       int
	Connections [][]uint32 // one slice per layer, 0..Layer
}

// Graph is the Hierarchical Navigable Small World graph.
type Graph struct {
	dim         int
	maxElements int
	mmax        int // max connections per element per layer
	mmax0       int // max for layer 0
	ml          float64
	entryPoint  uint32
	maxLevel    int

	nodes   []*node
	byLabel map[int32]uint32

	distFunc distance.Func
	rng      *rand.Rand
	opts     Options
}

// New creates an empty Graph.
func New(optFns ...func(o *Options)) (*Graph, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Dimension <= 0 {
		return nil, fmt.Errorf("hnsw: invalid dimension %d", opts.Dimension)
	}
	if opts.MaxElements <= 0 {
		return nil, fmt.Errorf("hnsw: invalid max elements %d", opts.MaxElements)
	}
	if opts.M < 2 {
		// M == 1 would divide by zero in the level normalization factor.
		opts.M = 2
	}
	if opts.EFConstruction < 1 {
		opts.EFConstruction = 1
	}

	distFunc, err := distance.Provider(opts.Metric)
	if err != nil {
		return nil, fmt.Errorf("hnsw: %w", err)
	}

	seed := opts.Seed
	if seed == 0 {
		seed = rand.Int63()
	}

	return &Graph{
		dim:         opts.Dimension,
		maxElements: opts.MaxElements,
		mmax:        opts.M,
		mmax0:       2 * opts.M,
		ml:          1 / math.Log(float64(opts.M)),
		nodes:       make([]*node, 0, opts.MaxElements),
		byLabel:     make(map[int32]uint32, opts.MaxElements),
		distFunc:    distFunc,
		rng:         rand.New(rand.NewSource(seed)),
		opts:        opts,
	}, nil
}

// Len returns the number of inserted elements.
func (g *Graph) Len() int { return len(g.nodes) }

// Dimension returns the fixed vector width.
func (g *Graph) Dimension() int { return g.dim }

// Capacity returns the configured maximum element count.
func (g *Graph) Capacity() int { return g.maxElements }

// Contains reports whether label has been inserted.
func (g *Graph) Contains(label int32) bool {
	_, ok := g.byLabel[label]
	return ok
}

// Insert adds one element. The vector is copied; the caller keeps
// ownership of v.
func (g *Graph) Insert(label int32, v []float32) error {
	if len(v) != g.dim {
		return &ErrDimensionMismatch{Expected: g.dim, Actual: len(v)}
	}
	if len(g.nodes) >= g.maxElements {
		return &ErrCapacityExceeded{Capacity: g.maxElements}
	}
	if _, ok := g.byLabel[label]; ok {
		return &ErrDuplicateLabel{Label: label}
	}

	vec := make([]float32, len(v))
	copy(vec, v)

	level := int(math.Floor(-math.Log(g.rng.Float64()) * g.ml))

	id := uint32(len(g.nodes))
	n := &node{
		Label:       label,
		Vector:      vec,
		Layer:       level,
		Connections: make([][]uint32, level+1),
	}

	if len(g.nodes) == 0 {
		g.nodes = append(g.nodes, n)
		g.byLabel[label] = id
		g.entryPoint = id
		g.maxLevel = level
		return nil
	}

	// Greedy descent through the layers above the new node's level.
	currID, currDist := g.descend(vec, g.entryPoint, g.maxLevel, level)

	for l := min(level, g.maxLevel); l >= 0; l-- {
		top := g.searchLayer(vec, currID, currDist, g.opts.EFConstruction, l, nil)

		neighbours := g.selectNeighbours(top, g.mmax)
		n.Connections[l] = neighbours

		// Carry the closest match down as the next entry point.
		if len(neighbours) > 0 {
			currID = neighbours[0]
			currDist = g.distFunc(vec, g.nodes[currID].Vector)
		}
	}

	g.nodes = append(g.nodes, n)
	g.byLabel[label] = id

	// Link back from the neighbours, making the node visible.
	for l := min(level, g.maxLevel); l >= 0; l-- {
		for _, neighbour := range n.Connections[l] {
			g.link(neighbour, id, l)
		}
	}

	if level > g.maxLevel {
		g.entryPoint = id
		g.maxLevel = level
	}

	return nil
}

// Search returns up to k approximate nearest neighbours of q, ordered
// by ascending distance. ef is clamped to at least k. filter, when
// non-nil, restricts results to labels it accepts; filtered nodes are
// still traversed so the graph stays navigable.
func (g *Graph) Search(q []float32, k, ef int, filter func(label int32) bool) ([]Candidate, error) {
	if len(q) != g.dim {
		return nil, &ErrDimensionMismatch{Expected: g.dim, Actual: len(q)}
	}
	if k <= 0 || len(g.nodes) == 0 {
		return nil, nil
	}
	if ef < k {
		ef = k
	}

	currID := g.entryPoint
	currDist := g.distFunc(q, g.nodes[currID].Vector)
	currID, currDist = g.descendFrom(q, currID, currDist, g.maxLevel, 0)

	top := g.searchLayer(q, currID, currDist, ef, 0, filter)

	for top.Len() > k {
		top.Pop()
	}

	// Pop yields worst-first; fill backwards for ascending distance.
	results := make([]Candidate, top.Len())
	for i := top.Len() - 1; i >= 0; i-- {
		item, _ := top.Pop()
		results[i] = Candidate{Label: g.nodes[item.Label].Label, Distance: item.Distance}
	}
	return results, nil
}

// descend runs the greedy upper-layer walk from the entry point down to
// (but not including) toLevel.
func (g *Graph) descend(v []float32, epID uint32, fromLevel, toLevel int) (uint32, float32) {
	currDist := g.distFunc(v, g.nodes[epID].Vector)
	return g.descendFrom(v, epID, currDist, fromLevel, toLevel)
}

func (g *Graph) descendFrom(v []float32, currID uint32, currDist float32, fromLevel, toLevel int) (uint32, float32) {
	for l := fromLevel; l > toLevel; l-- {
		changed := true
		for changed {
			changed = false
			curr := g.nodes[currID]
			if l >= len(curr.Connections) {
				continue
			}
			for _, nid := range curr.Connections[l] {
				d := g.distFunc(v, g.nodes[nid].Vector)
				if d < currDist {
					currID = nid
					currDist = d
					changed = true
				}
			}
		}
	}
	return currID, currDist
}

// searchLayer runs a best-first search on one layer. The returned
// max-heap holds at most ef candidates keyed by internal id (stored in
// Item.Label) and distance.
func (g *Graph) searchLayer(q []float32, epID uint32, epDist float32, ef, level int, filter func(label int32) bool) *queue.PriorityQueue {
	visited := bitset.New(uint(len(g.nodes)))
	visited.Set(uint(epID))

	candidates := queue.NewMin(ef)
	candidates.Push(queue.Item{Label: int32(epID), Distance: epDist})

	results := queue.NewMax(ef)
	if filter == nil || filter(g.nodes[epID].Label) {
		results.Push(queue.Item{Label: int32(epID), Distance: epDist})
	}

	for candidates.Len() > 0 {
		candidate, _ := candidates.Pop()

		if results.Len() >= ef {
			if worst, _ := results.Top(); candidate.Distance > worst.Distance {
				break
			}
		}

		curr := g.nodes[uint32(candidate.Label)]
		if level >= len(curr.Connections) {
			continue
		}

		for _, nid := range curr.Connections[level] {
			if visited.Test(uint(nid)) {
				continue
			}
			visited.Set(uint(nid))

			d := g.distFunc(q, g.nodes[nid].Vector)

			if results.Len() < ef {
				candidates.Push(queue.Item{Label: int32(nid), Distance: d})
				if filter == nil || filter(g.nodes[nid].Label) {
					results.Push(queue.Item{Label: int32(nid), Distance: d})
				}
				continue
			}

			if worst, _ := results.Top(); d < worst.Distance {
				candidates.Push(queue.Item{Label: int32(nid), Distance: d})
				if filter == nil || filter(g.nodes[nid].Label) {
					results.PushBounded(queue.Item{Label: int32(nid), Distance: d}, ef)
				}
			}
		}
	}

	return results
}

// selectNeighbours picks at most m connection targets from the given
// max-heap of candidates, closest first.
func (g *Graph) selectNeighbours(top *queue.PriorityQueue, m int) []uint32 {
	// Drain worst-first, reverse into closest-first order.
	items := make([]queue.Item, top.Len())
	for i := top.Len() - 1; i >= 0; i-- {
		items[i], _ = top.Pop()
	}

	if !g.opts.Heuristic || len(items) <= m {
		if len(items) > m {
			items = items[:m]
		}
		ids := make([]uint32, len(items))
		for i, item := range items {
			ids[i] = uint32(item.Label)
		}
		return ids
	}

	// Diversity heuristic: keep a candidate only if it is closer to the
	// query than to any already-kept neighbour, backfilling from the
	// discarded pool when short.
	chosen := make([]queue.Item, 0, m)
	discarded := make([]queue.Item, 0, len(items))

	for _, item := range items {
		if len(chosen) >= m {
			break
		}
		keep := true
		for _, c := range chosen {
			if g.distFunc(g.nodes[uint32(c.Label)].Vector, g.nodes[uint32(item.Label)].Vector) < item.Distance {
				keep = false
				break
			}
		}
		if keep {
			chosen = append(chosen, item)
		} else {
			discarded = append(discarded, item)
		}
	}

	for _, item := range discarded {
		if len(chosen) >= m {
			break
		}
		chosen = append(chosen, item)
	}

	ids := make([]uint32, len(chosen))
	for i, item := range chosen {
		ids[i] = uint32(item.Label)
	}
	return ids
}

// link adds a directed connection from first to second on the given
// layer, re-selecting the neighbour set when it overflows.
func (g *Graph) link(first, second uint32, level int) {
	maxConnections := g.mmax
	if level == 0 {
		maxConnections = g.mmax0
	}

	n := g.nodes[first]
	if level >= len(n.Connections) {
		return
	}
	n.Connections[level] = append(n.Connections[level], second)

	if len(n.Connections[level]) <= maxConnections {
		return
	}

	top := queue.NewMax(len(n.Connections[level]))
	for _, id := range n.Connections[level] {
		top.Push(queue.Item{
			Label:    int32(id),
			Distance: g.distFunc(n.Vector, g.nodes[id].Vector),
		})
	}

	n.Connections[level] = g.selectNeighbours(top, maxConnections)
}
