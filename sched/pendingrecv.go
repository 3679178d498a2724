package sched

import (
	"fmt"

	"github.com/dtaskrt/dtaskrt/cmn"
)

// PendingRecv is a receiver object registered before its message has
// arrived (spec glossary). Configure is called once create_pending_recvs
// has probed the matching message and allocated a buffer of the right
// size; Finalize (via Listener) unpacks it once the Irecv completes.
type PendingRecv interface {
	Listener
	IncrementJoinCounter()
	ReqID() int
	SetReqID(id int)
	Configure(buf []byte)
}

// genericPendingRecv is the non-local pending-recv used by make_recv_op
// (spec §4.5): owns a buffer and invokes a user-supplied unpacker on
// completion.
type genericPendingRecv struct {
	joinCounter int
	reqID       int
	unpack      func(buf []byte)
	buf         []byte
}

// NewPendingRecv wraps unpack (the user Accessor's unpacker bound to a
// destination element) as a PendingRecv listener.
func NewPendingRecv(unpack func(buf []byte)) PendingRecv {
	return &genericPendingRecv{unpack: unpack}
}

func (p *genericPendingRecv) IncrementJoinCounter()   { p.joinCounter++ }
func (p *genericPendingRecv) DecrementJoinCounter() int { p.joinCounter--; return p.joinCounter }
func (p *genericPendingRecv) ReqID() int               { return p.reqID }
func (p *genericPendingRecv) SetReqID(id int)          { p.reqID = id }
func (p *genericPendingRecv) Configure(buf []byte)     { p.buf = buf }
func (p *genericPendingRecv) Finalize() bool {
	p.unpack(p.buf)
	return true
}

// Generator fabricates a receiver object on the fly for an active message
// (spec §4.3 (ii)): the sender's tag carries a non-zero taskId identifying
// a pre-registered (Accessor, T, Index) triple; the receive side looks the
// generator up by taskId and calls Generate with the tag's dstId/collId.
type Generator interface {
	Generate(dstID, collID int) PendingRecv
}

// GeneratorRegistry is the process-wide (folded into one runtime instance,
// per spec §9 "Global state") map from taskId to Generator. taskId 0 is
// reserved for ordinary point-to-point; registration starts at 1 and is
// capped by the tag's 4-bit field (16 generators, spec §4.1/§9).
type GeneratorRegistry struct {
	generators []Generator // index 0 reserved/unused
	maxTaskID  int
}

func NewGeneratorRegistry(maxTaskID int) *GeneratorRegistry {
	return &GeneratorRegistry{generators: make([]Generator, 1), maxTaskID: maxTaskID}
}

// RegisterOnce assigns the next taskId to gen. Registering a 17th
// generator (or whatever the configured limit is) is a fatal invariant
// violation, not a silent truncation (spec §9 open question, resolved).
func (gr *GeneratorRegistry) RegisterOnce(gen Generator) int {
	id := len(gr.generators)
	cmn.AssertMsg(id <= gr.maxTaskID, fmt.Sprintf("active-message generator registry exhausted at %d (max %d)", id, gr.maxTaskID))
	gr.generators = append(gr.generators, gen)
	return id
}

func (gr *GeneratorRegistry) Get(taskID int) Generator {
	cmn.AssertMsg(taskID > 0 && taskID < len(gr.generators), "unknown active-message taskId")
	return gr.generators[taskID]
}

// PendingRecvIndex is the map keyed by (remoteRank, tag) -> FIFO queue of
// pending receivers, plus the count of probe-pending receives whose size
// is not yet known (spec §component 4).
type PendingRecvIndex struct {
	byRank           map[int]map[int][]PendingRecv
	numPendingProbes int
}

func NewPendingRecvIndex() *PendingRecvIndex {
	return &PendingRecvIndex{byRank: make(map[int]map[int][]PendingRecv)}
}

func (idx *PendingRecvIndex) Add(remoteRank, tag int, p PendingRecv) {
	m, ok := idx.byRank[remoteRank]
	if !ok {
		m = make(map[int][]PendingRecv)
		idx.byRank[remoteRank] = m
	}
	m[tag] = append(m[tag], p)
	idx.numPendingProbes++
}

// Pop removes and returns the oldest pending receiver registered for
// (remoteRank, tag), FIFO. Not found is a fatal invariant violation at the
// call site (spec §7 "tag not found in pending-recv index").
func (idx *PendingRecvIndex) Pop(remoteRank, tag int) (PendingRecv, bool) {
	m, ok := idx.byRank[remoteRank]
	if !ok {
		return nil, false
	}
	list, ok := m[tag]
	if !ok || len(list) == 0 {
		return nil, false
	}
	p := list[0]
	list = list[1:]
	if len(list) == 0 {
		delete(m, tag)
		if len(m) == 0 {
			delete(idx.byRank, remoteRank)
		}
	} else {
		m[tag] = list
	}
	return p, true
}

func (idx *PendingRecvIndex) NumPendingProbes() int { return idx.numPendingProbes }
func (idx *PendingRecvIndex) ResetProbes()          { idx.numPendingProbes = 0 }
