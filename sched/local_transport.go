package sched

import (
	"context"
	"sync"

	"github.com/dtaskrt/dtaskrt/cmn"
	"github.com/dtaskrt/dtaskrt/transport"
)

// LocalCluster is an in-process stand-in for an MPI communicator: N ranks
// sharing one Go process, each talking to the others over buffered
// channels. No real MPI binding exists in the Go ecosystem represented by
// the retrieved pack, so this is what the bundled example and every
// package's tests drive against instead (spec §6 "Core -> transport" is
// satisfied by any conforming implementation).
type LocalCluster struct {
	mu    sync.Mutex
	ranks []*LocalTransport
}

// NewLocalCluster builds n ranks, each a LocalTransport wired to every
// other rank's inbox.
func NewLocalCluster(n int) *LocalCluster {
	cmn.Assert(n > 0)
	c := &LocalCluster{ranks: make([]*LocalTransport, n)}
	inboxes := make([]chan localMsg, n)
	for i := range inboxes {
		inboxes[i] = make(chan localMsg, 4096)
	}
	gate := newBarrierGate(n)
	for r := 0; r < n; r++ {
		c.ranks[r] = &LocalTransport{
			cluster: c,
			rank:    r,
			size:    n,
			inbox:   inboxes[r],
			peers:   inboxes,
			probed:  make(map[int]localMsg),
			barrier: gate,
		}
	}
	return c
}

func (c *LocalCluster) Rank(r int) transport.Transport { return c.ranks[r] }

type localMsg struct {
	source int
	tag    int
	data   []byte
}

type localRequest struct {
	done bool
	data []byte // recv destination, nil for sends
	src  localMsg
	kind byte // 's' send, 'r' recv
}

// LocalTransport is one rank's view of a LocalCluster.
type LocalTransport struct {
	cluster *LocalCluster
	rank    int
	size    int

	inbox chan localMsg
	peers []chan localMsg

	mu     sync.Mutex
	probed map[int]localMsg // lookahead buffer keyed by source, for Probe's single-message-at-a-time contract

	barrier *barrierGate
}

func (lt *LocalTransport) Rank() int { return lt.rank }
func (lt *LocalTransport) Size() int { return lt.size }

func (lt *LocalTransport) Isend(ctx context.Context, dest, tag int, data []byte) (transport.Request, error) {
	buf := make([]byte, len(data))
	copy(buf, data)
	lt.peers[dest] <- localMsg{source: lt.rank, tag: tag, data: buf}
	req := &localRequest{done: true, kind: 's'}
	return req, nil
}

// recvFor pulls the next buffered message matching src/tag (AnySource/
// AnyTag as wildcards) out of the inbox, blocking until one arrives.
func (lt *LocalTransport) recvFor(ctx context.Context, src, tag int) localMsg {
	lt.mu.Lock()
	for key, m := range lt.probed {
		if (src == transport.AnySource || m.source == src) && (tag == transport.AnyTag || m.tag == tag) {
			delete(lt.probed, key)
			lt.mu.Unlock()
			return m
		}
	}
	lt.mu.Unlock()

	for {
		select {
		case m := <-lt.inbox:
			if (src == transport.AnySource || m.source == src) && (tag == transport.AnyTag || m.tag == tag) {
				return m
			}
			lt.mu.Lock()
			lt.probed[m.source] = m
			lt.mu.Unlock()
		case <-ctx.Done():
			return localMsg{}
		}
	}
}

func (lt *LocalTransport) Irecv(ctx context.Context, src, tag int, data []byte) (transport.Request, error) {
	m := lt.recvFor(ctx, src, tag)
	n := copy(data, m.data)
	cmn.AssertMsg(n == len(data), "local transport recv size mismatch")
	return &localRequest{done: true, kind: 'r', src: m}, nil
}

func (lt *LocalTransport) Probe(ctx context.Context, srcOrAny, tagOrAny int) (transport.Status, error) {
	m := lt.recvFor(ctx, srcOrAny, tagOrAny)
	lt.mu.Lock()
	lt.probed[m.source] = m
	lt.mu.Unlock()
	return transport.Status{Source: m.source, Tag: m.tag, Count: len(m.data)}, nil
}

// TestSome: LocalTransport resolves Isend/Irecv synchronously, so every
// request handed in is already complete.
func (lt *LocalTransport) TestSome(reqs []transport.Request) ([]int, error) {
	completed := make([]int, 0, len(reqs))
	for i, r := range reqs {
		if r == nil {
			continue
		}
		lr := r.(*localRequest)
		if lr.done {
			completed = append(completed, i)
		}
	}
	return completed, nil
}

func (lt *LocalTransport) WaitAll(ctx context.Context, reqs []transport.Request) error {
	return nil
}

func (lt *LocalTransport) AllReducePerf(ctx context.Context, local transport.PerfCtrReduce) (transport.PerfCtrReduce, error) {
	vals := lt.barrier.gatherPerf(lt.rank, local)
	out := vals[0]
	for _, v := range vals[1:] {
		transport.ReducePerfCtr(&v, &out)
	}
	return out, nil
}

func (lt *LocalTransport) AllReduceMaxInt(ctx context.Context, local int) (int, error) {
	vals := lt.barrier.gatherInt(lt.rank, local)
	max := vals[0]
	for _, v := range vals[1:] {
		if v > max {
			max = v
		}
	}
	return max, nil
}

func (lt *LocalTransport) AllGatherInts(ctx context.Context, local []int) ([]int, error) {
	chunks := lt.barrier.gatherIntSlice(lt.rank, local)
	out := make([]int, 0, len(local)*lt.size)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out, nil
}

func (lt *LocalTransport) Barrier(ctx context.Context) {
	lt.barrier.wait(lt.rank)
}

// CommSplit ignores color and key: after a barrier it returns a communicator
// holding every rank of the cluster, in the cluster's own rank order.
func (lt *LocalTransport) CommSplit(ctx context.Context, color, key int) (transport.CommHandle, error) {
	lt.barrier.wait(lt.rank)
	return &localComm{lt: lt}, nil
}

// localComm implements transport.CommHandle directly in terms of the
// parent LocalTransport: since every rank of a LocalCluster lives in the
// same process, a split communicator's SendRecv can just reuse the
// owning rank's channels.
type localComm struct {
	lt *LocalTransport
}

func (c *localComm) Rank() int { return c.lt.rank }
func (c *localComm) Size() int { return c.lt.size }

func (c *localComm) SendRecv(ctx context.Context, partner int, send []uint64) ([]uint64, error) {
	buf := uint64sToBytes(send)
	tag := commSplitTag
	if _, err := c.lt.Isend(ctx, partner, tag, buf); err != nil {
		return nil, err
	}
	recvBuf := make([]byte, len(buf))
	if _, err := c.lt.Irecv(ctx, partner, tag, recvBuf); err != nil {
		return nil, err
	}
	return bytesToUint64s(recvBuf), nil
}

func (c *localComm) Free() {}

// commSplitTag is a fixed, reserved tag used exclusively by the pairwise
// balancer's post-split exchange, outside the ordinary MakeUniqueTag space
// (spec §4.6 treats the split communicator's traffic as out of band from
// collection point-to-point).
const commSplitTag = -1000

func uint64sToBytes(in []uint64) []byte {
	out := make([]byte, len(in)*8)
	for i, v := range in {
		for b := 0; b < 8; b++ {
			out[i*8+b] = byte(v >> (8 * b))
		}
	}
	return out
}

func bytesToUint64s(in []byte) []uint64 {
	cmn.AssertMsg(len(in)%8 == 0, "uint64 buffer length must be a multiple of 8")
	out := make([]uint64, len(in)/8)
	for i := range out {
		var v uint64
		for b := 0; b < 8; b++ {
			v |= uint64(in[i*8+b]) << (8 * b)
		}
		out[i] = v
	}
	return out
}
