// Package transport defines the contract between the task-runtime core and
// the underlying point-to-point messaging layer (the MPI-equivalent
// transport in spec terms). Every other core package - sched, coll, reb,
// runtime - talks to the network exclusively through the Transport
// interface; nothing else here knows about sockets, ranks, or wire bytes.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package transport

import "context"

// Request is an opaque handle to an outstanding non-blocking send or recv.
// Implementations are free to wrap whatever native handle their transport
// uses (an MPI_Request, a channel, a future); the core only ever holds and
// compares these by value.
type Request interface{}

// Status describes a message discovered by Probe before it has been
// received: who sent it, what tag it carries, and how many bytes are
// waiting. The tag's layout is owned by the tag encoder (tag.go); Probe
// only reports the raw integer.
type Status struct {
	Source int
	Tag    int
	Count  int // bytes
}

// PerfCtrReduce is the wire layout for the balancer's custom associative
// reduction: elementwise sum/max/min/max over (total, max, min,
// maxLocalTasks), reduced across all ranks once per balance iteration.
// Fields not used by a particular reduction must be initialised to the
// operation's identity element by the caller (spec §6).
type PerfCtrReduce struct {
	Total         uint64
	Max           uint64
	Min           uint64
	MaxLocalTasks uint64
}

// ReducePerfCtr is the associative operator backing AllReducePerf: in ==
// the remote contribution, inout == the accumulator (and the rank's own
// local value seeded before the call). It is exported so a from-scratch
// Transport implementation can register it as a custom MPI_Op (or
// equivalent) exactly once at construction time.
func ReducePerfCtr(in, inout *PerfCtrReduce) {
	if in.Max > inout.Max {
		inout.Max = in.Max
	}
	if in.Min < inout.Min {
		inout.Min = in.Min
	}
	inout.Total += in.Total
	if in.MaxLocalTasks > inout.MaxLocalTasks {
		inout.MaxLocalTasks = in.MaxLocalTasks
	}
}

// CommHandle is the result of CommSplit: a possibly-distinct communicator
// plus this rank's position and size within it.
type CommHandle interface {
	Rank() int
	Size() int
	// SendRecv exchanges a full weight/index buffer with partner in one
	// call, the way the balancer's pairwise step does (spec §4.6).
	SendRecv(ctx context.Context, partner int, send []uint64) (recv []uint64, err error)
	// Free releases the split communicator. A from-scratch transport that
	// has no notion of communicator lifetime may no-op this.
	Free()
}

// Transport is the full surface the core needs to port off any concrete
// point-to-point layer (spec §6 "Core -> transport"): non-blocking
// send/recv with opaque requests, wildcard probe, test/wait, and the
// collective primitives the balancer and migration engine need.
type Transport interface {
	Rank() int
	Size() int

	// Isend posts a non-blocking send of exactly len(data) bytes to dest
	// under tag, returning a request that completes once the buffer may be
	// reused.
	Isend(ctx context.Context, dest int, tag int, data []byte) (Request, error)

	// Irecv posts a non-blocking receive of exactly len(data) bytes from
	// src under tag.
	Irecv(ctx context.Context, src int, tag int, data []byte) (Request, error)

	// Probe blocks until a message matching srcOrAny/tagOrAny (either may
	// be AnySource/AnyTag) is ready to be received, and reports its
	// source, tag, and byte count without consuming it.
	Probe(ctx context.Context, srcOrAny, tagOrAny int) (Status, error)

	// TestSome reports which of reqs have completed, without blocking on
	// the rest. Index order must be stable against reqs.
	TestSome(reqs []Request) (completed []int, err error)

	// WaitAll blocks until every request in reqs has completed.
	WaitAll(ctx context.Context, reqs []Request) error

	// AllReducePerf performs the custom (total,max,min,maxLocalTasks)
	// reduction described by ReducePerfCtr across every rank.
	AllReducePerf(ctx context.Context, local PerfCtrReduce) (PerfCtrReduce, error)

	// AllReduceMaxInt all-reduces a single int with MAX, used by
	// make_global_mapping_from_local to size the padded gather buffer.
	AllReduceMaxInt(ctx context.Context, local int) (int, error)

	// AllGatherInts gathers one fixed-length []int per rank into a
	// rank-major total buffer of len(local)*Size().
	AllGatherInts(ctx context.Context, local []int) ([]int, error)

	// Barrier blocks until every rank has called it.
	Barrier(ctx context.Context)

	// CommSplit partitions ranks into communicators by color, ordering
	// each resulting communicator by key (spec §4.6: color=0, key=
	// localWork/1000 so ranks sort by work).
	CommSplit(ctx context.Context, color, key int) (CommHandle, error)
}

// AnySource and AnyTag are Probe wildcards, the Go-side names for
// MPI_ANY_SOURCE / MPI_ANY_TAG.
const (
	AnySource = -1
	AnyTag    = -1
)
