// Package sched implements the dependency/progress engine: the request
// table, the pending-recv index, the task queue and join counters, and the
// progress loop that ties them together (spec §4.2-§4.4).
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package sched

// Listener is anything waiting on a transport request's completion. The
// three concrete variants - task, pending-send, pending-recv - are modeled
// as a closed set of implementations rather than a tagged union, the way
// the teacher favors small interfaces over enums (spec §9 "Listener
// polymorphism").
type Listener interface {
	// DecrementJoinCounter decrements and returns the listener's join
	// counter. When it reaches zero the listener is ready to finalize.
	DecrementJoinCounter() int
	// Finalize runs once the join counter reaches zero. Its bool result
	// mirrors the source's "should the listener be destroyed" signal; Go's
	// GC makes that moot, and RequestTable.InformListener ignores the
	// result and always nulls the request-table slot.
	Finalize() bool
}

// clearedListener is the REQUEST_CLEAR sentinel (spec §4.2): installed in
// a request-table slot when the underlying request completed before any
// listener had registered for it. The sentinel trick is required because
// completion order and registration order race across the probe/test
// cycle (spec §9).
type clearedListener struct{}

func (clearedListener) DecrementJoinCounter() int { panic("sched: decrement on cleared sentinel") }
func (clearedListener) Finalize() bool            { panic("sched: finalize on cleared sentinel") }

var requestClear Listener = clearedListener{}
