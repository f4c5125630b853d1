package hybrid

import (
	"sort"

	"github.com/hupe1980/vecsim"
)

// Result is a fused or reranked search hit.
type Result struct {
	ID    int32
	Score float32
}

// MergeOptions configure Reciprocal Rank Fusion.
type MergeOptions struct {
	// K dampens the contribution of lower ranks. The conventional
	// value is 60.
	K float32
}

// DefaultMergeOptions are the options applied before user overrides.
var DefaultMergeOptions = MergeOptions{
	K: 60,
}

// Merge fuses a similarity-ranked result list with a keyword-ranked id
// list using Reciprocal Rank Fusion. Each list contributes
// 1/(K + rank + 1) per id, ranks starting at zero. Ids appearing in
// both lists accumulate both contributions. The fused list is ordered
// by descending score.
func Merge(vectorResults []vecsim.Result, keywordIDs []int32, optFns ...func(o *MergeOptions)) []Result {
	opts := DefaultMergeOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	scores := make(map[int32]float32, len(vectorResults)+len(keywordIDs))

	for rank, r := range vectorResults {
		scores[r.ID] += 1 / (opts.K + float32(rank) + 1)
	}
	for rank, id := range keywordIDs {
		scores[id] += 1 / (opts.K + float32(rank) + 1)
	}

	results := make([]Result, 0, len(scores))
	for id, score := range scores {
		results = append(results, Result{ID: id, Score: score})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	return results
}

// RerankOptions configure the similarity/popularity blend.
type RerankOptions struct {
	SimilarityWeight float32
	PopularityWeight float32
}

// DefaultRerankOptions are the options applied before user overrides.
var DefaultRerankOptions = RerankOptions{
	SimilarityWeight: 0.7,
	PopularityWeight: 0.3,
}

// Rerank orders candidates by a weighted blend of search similarity
// and a caller-supplied popularity signal. popularity maps an id to
// its score; ids missing from the map contribute zero popularity.
func Rerank(candidates []vecsim.Result, popularity map[int32]float32, optFns ...func(o *RerankOptions)) []Result {
	opts := DefaultRerankOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	results := make([]Result, len(candidates))
	for i, c := range candidates {
		results[i] = Result{
			ID:    c.ID,
			Score: c.Similarity*opts.SimilarityWeight + popularity[c.ID]*opts.PopularityWeight,
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	return results
}
