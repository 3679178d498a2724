package sched

import (
	"sync"

	"github.com/dtaskrt/dtaskrt/transport"
)

// gatherRound is a single reusable rendezvous point: n participants each
// call gather once with their contribution, and every call returns the
// full set once the last participant arrives. It backs LocalCluster's
// Barrier/AllReduce*/AllGather* collectives, which in a real transport
// are implemented by the underlying library rather than hand-rolled, but
// LocalCluster has no such library beneath it (spec §6).
type gatherRound struct {
	mu      sync.Mutex
	cond    *sync.Cond
	n       int
	arrived int
	vals    map[int]interface{}
	result  []interface{}
	gen     int
}

func newGatherRound(n int) *gatherRound {
	g := &gatherRound{n: n, vals: make(map[int]interface{})}
	g.cond = sync.NewCond(&g.mu)
	return g
}

func (g *gatherRound) gather(rank int, val interface{}) []interface{} {
	g.mu.Lock()
	myGen := g.gen
	g.vals[rank] = val
	g.arrived++
	if g.arrived == g.n {
		res := make([]interface{}, g.n)
		for r := 0; r < g.n; r++ {
			res[r] = g.vals[r]
		}
		g.result = res
		g.vals = make(map[int]interface{})
		g.arrived = 0
		g.gen++
		g.cond.Broadcast()
	} else {
		for g.gen == myGen {
			g.cond.Wait()
		}
	}
	res := g.result
	g.mu.Unlock()
	return res
}

// barrierGate bundles the independent rendezvous rounds a LocalCluster
// needs: a plain barrier, and one typed gather per collective so
// concurrent calls to different collectives (which never happens in
// practice - the balancer and mapping code call these in lockstep - but
// would otherwise corrupt a shared round) never cross-contaminate.
type barrierGate struct {
	plain     *gatherRound
	perf      *gatherRound
	intRound  *gatherRound
	intsRound *gatherRound
}

func newBarrierGate(n int) *barrierGate {
	return &barrierGate{
		plain:     newGatherRound(n),
		perf:      newGatherRound(n),
		intRound:  newGatherRound(n),
		intsRound: newGatherRound(n),
	}
}

func (b *barrierGate) wait(rank int) {
	b.plain.gather(rank, nil)
}

func (b *barrierGate) gatherPerf(rank int, val transport.PerfCtrReduce) []transport.PerfCtrReduce {
	raw := b.perf.gather(rank, val)
	out := make([]transport.PerfCtrReduce, len(raw))
	for i, v := range raw {
		out[i] = v.(transport.PerfCtrReduce)
	}
	return out
}

func (b *barrierGate) gatherInt(rank, val int) []int {
	raw := b.intRound.gather(rank, val)
	out := make([]int, len(raw))
	for i, v := range raw {
		out[i] = v.(int)
	}
	return out
}

func (b *barrierGate) gatherIntSlice(rank int, val []int) [][]int {
	raw := b.intsRound.gather(rank, val)
	out := make([][]int, len(raw))
	for i, v := range raw {
		out[i] = v.([]int)
	}
	return out
}
