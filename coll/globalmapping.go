package coll

import (
	"context"

	"github.com/dtaskrt/dtaskrt/transport"
)

// MakeGlobalMappingFromLocal reconstructs the global index->(rank,
// rankUniqueId) mapping purely from each rank's list of locally-owned
// indices (spec §4.9): all-reduce the max local count, pad every rank's
// list to that length with -1, all-gather the padded arrays, then walk
// each rank's block up to its first -1 assigning dense rankUniqueIds.
//
// Invariant: every global index appears in exactly one rank's block - the
// caller is responsible for that being true of localIndices.
func MakeGlobalMappingFromLocal(ctx context.Context, tr transport.Transport, totalSize int, localIndices []int) ([]IndexInfo, error) {
	maxLocal, err := tr.AllReduceMaxInt(ctx, len(localIndices))
	if err != nil {
		return nil, err
	}

	padded := make([]int, maxLocal)
	for i := range padded {
		padded[i] = -1
	}
	copy(padded, localIndices)

	all, err := tr.AllGatherInts(ctx, padded)
	if err != nil {
		return nil, err
	}

	mapping := make([]IndexInfo, totalSize)
	rankCounts := make([]int, tr.Size())
	for r := 0; r < tr.Size(); r++ {
		block := all[r*maxLocal : (r+1)*maxLocal]
		for _, globalIndex := range block {
			if globalIndex == -1 {
				break
			}
			mapping[globalIndex] = IndexInfo{Rank: r, RankUniqueID: rankCounts[r]}
			rankCounts[r]++
		}
	}
	return mapping, nil
}
