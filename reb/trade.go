// Package reb implements the measurement-driven pairwise load balancer and
// the two-phase migration protocol that moves tasks between ranks (spec
// §4.6/§4.7).
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package reb

import (
	"math"
	"sort"
)

// TaskWeight is one task's measured cost paired with the global index it
// belongs to - the Go analogue of the C++ backend's pair64 (weight,
// index), always kept sorted ascending by Weight before a trade/take pass
// (spec §4.6 "sort the old config by task weight").
type TaskWeight struct {
	Weight uint64
	Index  int
}

func sortByWeight(w []TaskWeight) {
	sort.Slice(w, func(i, j int) bool { return w[i].Weight < w[j].Weight })
}

// TradeTasks finds the (bigIdx, smallIdx) pair whose weight difference is
// closest to desiredDelta, scanning bigger/smaller monotonically from
// their ends inward (spec §4.6/I4). Both slices must already be sorted
// ascending by Weight. closeness is |bigger[bigIdx]-smaller[smallIdx] -
// desiredDelta|, the smaller the better.
func TradeTasks(desiredDelta uint64, bigger, smaller []TaskWeight) (bigIdx, smallIdx int, closeness uint64) {
	smallIdx = 0
	smallStop := len(smaller) - 1
	bigIdx = len(bigger) - 1
	bestBig, bestSmall := bigIdx, smallIdx
	bestDeltaDelta := uint64(math.MaxUint64)
	smallSize, bigSize := uint64(0), uint64(1) // seed so the loop condition passes once

	for smallIdx <= smallStop && bigIdx >= 0 && smallSize < bigSize {
		smallSize = smaller[smallIdx].Weight
		bigSize = bigger[bigIdx].Weight
		delta := bigSize - smallSize

		if desiredDelta > delta {
			deltaDelta := desiredDelta - delta
			if bestDeltaDelta < deltaDelta {
				return bestBig, bestSmall, bestDeltaDelta
			}
			return bigIdx, smallIdx, deltaDelta
		}

		deltaDelta := delta - desiredDelta
		if bestDeltaDelta < deltaDelta {
			return bestBig, bestSmall, bestDeltaDelta
		}
		bestDeltaDelta = deltaDelta
		bestBig, bestSmall = bigIdx, smallIdx

		smallTaskDelta := uint64(math.MaxUint64)
		bigTaskDelta := uint64(math.MaxUint64)
		if smallIdx < smallStop {
			smallTaskDelta = smaller[smallIdx+1].Weight - smaller[smallIdx].Weight
		}
		if bigIdx > 0 {
			bigTaskDelta = bigger[bigIdx].Weight - bigger[bigIdx-1].Weight
		}
		if bigTaskDelta < smallTaskDelta {
			bigIdx--
		} else {
			smallIdx++
		}
	}

	// Scan exhausted one side without beating the best found so far: the
	// closest remaining pairing is the smallest big task against the
	// biggest small task.
	return 0, smallStop, bestDeltaDelta
}

// TakeTasks greedily selects the largest-weight tasks from giver, from the
// tail inward, whose cumulative weight stays under 1.1*desiredDelta (spec
// §4.6/I5: "toRet" in the original, a C++ std::set so duplicates can't
// occur and iteration order is ascending by index). The returned indices
// are ascending, matching that iteration order; a caller that removes them
// from giver by swap-with-last walks the list from its end, so no removal
// disturbs an index still to be removed.
func TakeTasks(desiredDelta uint64, giver []TaskWeight) []int {
	deltaCutoff := desiredDelta / 10
	maxGiveAway := desiredDelta + deltaCutoff
	remaining := maxGiveAway

	var taken []int
	for i := len(giver) - 1; i >= 0; i-- {
		size := giver[i].Weight
		if size < remaining {
			taken = append(taken, i)
			remaining -= size
		} else {
			break
		}
	}
	sort.Ints(taken)
	return taken
}
