package hnsw

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
	"math/rand"

	"github.com/hupe1980/vecsim/distance"
)

// Compile time checks to ensure Graph satisfies the gob interfaces.
var (
	_ gob.GobEncoder = (*Graph)(nil)
	_ gob.GobDecoder = (*Graph)(nil)
)

// GobEncode serializes the full graph, including connections and the
// label mapping.
func (g *Graph) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	encoder := gob.NewEncoder(&buf)

	for _, v := range []any{g.dim, g.maxElements, g.ml, g.entryPoint, g.maxLevel, g.nodes, g.byLabel, g.opts} {
		if err := encoder.Encode(v); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// GobDecode restores a graph serialized with GobEncode. Derived state
// (distance function, connection caps, level RNG) is rebuilt from the
// decoded options.
func (g *Graph) GobDecode(data []byte) error {
	decoder := gob.NewDecoder(bytes.NewBuffer(data))

	for _, v := range []any{&g.dim, &g.maxElements, &g.ml, &g.entryPoint, &g.maxLevel, &g.nodes, &g.byLabel, &g.opts} {
		if err := decoder.Decode(v); err != nil {
			return err
		}
	}

	fn, err := distance.Provider(g.opts.Metric)
	if err != nil {
		return fmt.Errorf("hnsw: decode: %w", err)
	}
	g.distFunc = fn

	g.mmax = g.opts.M
	g.mmax0 = 2 * g.opts.M

	seed := g.opts.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	g.rng = rand.New(rand.NewSource(seed))

	if g.byLabel == nil {
		g.byLabel = make(map[int32]uint32)
	}

	return nil
}

// WriteTo serializes the graph to w.
func (g *Graph) WriteTo(w io.Writer) error {
	return gob.NewEncoder(w).Encode(g)
}

// ReadGraph restores a graph serialized with WriteTo.
func ReadGraph(r io.Reader) (*Graph, error) {
	var g Graph
	if err := gob.NewDecoder(r).Decode(&g); err != nil {
		return nil, err
	}
	return &g, nil
}
