// Package coll implements the collection/phase data model: per-collection
// element ownership, the global index->(rank,rankUniqueId) mapping, and the
// per-phase performance counters the load balancer consumes (spec §3,
// §4.8-4.9).
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package coll

import "go.uber.org/atomic"

// IndexInfo is the position of an element in the global mapping: which rank
// owns it, and its dense 0-based id within that rank (used in tags).
type IndexInfo struct {
	Rank         int
	RankUniqueID int
}

// PerfCounter accumulates cycles spent executing tasks on one local element
// within the current phase. Monotonic within a phase, reset by ResetPhase.
// Backed by go.uber.org/atomic the way the teacher backs its own counters
// with 3rdparty/atomic, since the front-end may read a counter's value (for
// a status snapshot) from outside the single-threaded progress loop.
type PerfCounter struct {
	counter atomic.Uint64
}

func (c *PerfCounter) Add(cycles uint64) { c.counter.Add(cycles) }
func (c *PerfCounter) Load() uint64      { return c.counter.Load() }
func (c *PerfCounter) Reset()            { c.counter.Store(0) }

// LocalIndex is a local element slot: its global index plus the counter
// accumulating work done on it this phase.
type LocalIndex struct {
	Index    int
	Counters PerfCounter
}

func NewLocalIndex(index int) LocalIndex {
	return LocalIndex{Index: index}
}
