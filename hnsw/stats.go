package hnsw

// Stats describes the shape of the graph.
type Stats struct {
	Elements  int
	Capacity  int
	MaxLevel  int
	M         int
	LevelSize []int // node count per level, index = level
}

// Stats returns structural statistics about the graph.
func (g *Graph) Stats() Stats {
	s := Stats{
		Elements:  len(g.nodes),
		Capacity:  g.maxElements,
		MaxLevel:  g.maxLevel,
		M:         g.opts.M,
		LevelSize: make([]int, g.maxLevel+1),
	}
	for _, n := range g.nodes {
		if n.Layer <= g.maxLevel {
			s.LevelSize[n.Layer]++
		}
	}
	return s
}
