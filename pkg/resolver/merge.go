package resolver

import (
	"sort"

	"github.com/meridiandb/hexad/pkg/types"
)

// mergeResults concatenates every peer's results and sorts the union by
// descending score, breaking ties by source_store for a deterministic
// order across runs. The sort is stable so that, within one peer's own
// results (equal score and source_store), the adapter's original ordering
// survives.
func mergeResults(perPeer [][]types.NormalisedResult) []types.NormalisedResult {
	var merged []types.NormalisedResult
	for _, results := range perPeer {
		merged = append(merged, results...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		return merged[i].SourceStore < merged[j].SourceStore
	})
	return merged
}
