package sched

import (
	"github.com/dtaskrt/dtaskrt/cmn"
	"github.com/dtaskrt/dtaskrt/transport"
)

// RequestTable is the append-only vector of in-flight request handles
// paired with the listeners waiting on each (spec §4.2). Completed slots
// are back-filled by swap-with-last so the transport always sees
// contiguous storage for TestSome.
type RequestTable struct {
	requests  []transport.Request
	listeners []Listener
}

func NewRequestTable() *RequestTable {
	return &RequestTable{
		requests:  make([]transport.Request, 0, 64),
		listeners: make([]Listener, 0, 64),
	}
}

// Allocate appends a fresh (nil request, nil listener) slot and returns its
// id. Request ids are single-use: a caller must hand the id to a listener
// (directly, or via RegisterDependency) before the next progress step that
// could complete and swap it away (spec §4.2/§9 "Back-fill by swap").
func (rt *RequestTable) Allocate() int {
	id := len(rt.requests)
	rt.requests = append(rt.requests, nil)
	rt.listeners = append(rt.listeners, nil)
	return id
}

func (rt *RequestTable) SetRequest(id int, req transport.Request) { rt.requests[id] = req }
func (rt *RequestTable) Request(id int) transport.Request         { return rt.requests[id] }
func (rt *RequestTable) Requests() []transport.Request            { return rt.requests }
func (rt *RequestTable) Len() int                                 { return len(rt.requests) }

func (rt *RequestTable) Listener(id int) Listener    { return rt.listeners[id] }
func (rt *RequestTable) SetListener(id int, l Listener) { rt.listeners[id] = l }

// InformListener is the spec's inform_listener(i): if the slot has no
// listener yet, mark it REQUEST_CLEAR; otherwise decrement the listener's
// join counter and, once it hits zero, finalize and null the slot.
func (rt *RequestTable) InformListener(idx int) {
	l := rt.listeners[idx]
	if l == nil {
		rt.listeners[idx] = requestClear
		return
	}
	if cnt := l.DecrementJoinCounter(); cnt == 0 {
		l.Finalize()
		rt.listeners[idx] = nil
	}
}

// RegisterDependency folds a caller's pending request ids into task's join
// counter (spec §4.4): a REQUEST_CLEAR slot means the request already
// completed, so it is consumed silently; a nil slot installs task as the
// listener and bumps its join counter; any other state is an invariant
// violation.
func (rt *RequestTable) RegisterDependency(task Task, pendingRequests []int, queue *TaskQueue) {
	for _, id := range pendingRequests {
		switch rt.listeners[id] {
		case requestClear:
			rt.listeners[id] = nil
		case nil:
			rt.listeners[id] = &taskListener{task: task, queue: queue}
			task.IncrementJoinCounter()
		default:
			cmn.Fatalf("request %d listener in unexpected state for register_dependency", id)
		}
	}
}

// CompleteSwap removes slot idx by swapping it with the last slot and
// shrinking by one, preserving the dense array TestSome needs. Callers
// must process completed indices from highest to lowest so the swap never
// invalidates an index still to be processed (spec §4.4).
func (rt *RequestTable) CompleteSwap(idx int) {
	last := len(rt.requests) - 1
	rt.requests[idx] = rt.requests[last]
	rt.listeners[idx] = rt.listeners[last]
	rt.requests = rt.requests[:last]
	rt.listeners = rt.listeners[:last]
}
