// Command taskrtdemo wires two sched.LocalTransport ranks together and runs
// one balance-plus-migration round over a small collection, as a minimal,
// runnable consumer of the runtime/coll/reb/sched/transport packages -
// analogous to the teacher's cmd/cli being the library's own first client.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package main

import (
	"context"
	"encoding/binary"
	"flag"
	"sync"

	"github.com/dtaskrt/dtaskrt/cmn/nlog"
	"github.com/dtaskrt/dtaskrt/runtime"
	"github.com/dtaskrt/dtaskrt/sched"
)

type cell struct{ value int32 }

type cellAccessor struct{}

func (cellAccessor) ComputeSize(*cell) int { return 4 }
func (cellAccessor) Pack(e *cell, buf []byte) {
	binary.LittleEndian.PutUint32(buf, uint32(e.value))
}
func (cellAccessor) Unpack(e *cell, buf []byte) {
	e.value = int32(binary.LittleEndian.Uint32(buf))
}

func main() {
	verbose := flag.Int("v", 0, "verbosity for the reb module")
	flag.Parse()
	nlog.SetVerbosity(nlog.SmoduleReb, *verbose)

	const size = 4
	cluster := sched.NewLocalCluster(2)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); runRank(cluster, 0, size) }()
	go func() { defer wg.Done(); runRank(cluster, 1, size) }()
	wg.Wait()
}

// runRank builds a block-distributed collection of size cells, assigns
// each local cell a synthetic weight skewed toward rank 0, then runs one
// Rebalance round and reports where every cell ended up.
func runRank(cluster *sched.LocalCluster, rank, size int) {
	ctx := context.Background()
	tr := cluster.Rank(rank)
	mgr := runtime.NewManager(tr, nil)

	c := runtime.MakeCollection[cell](mgr, size)
	phase := mgr.MakePhaseFromSize(size)
	runtime.BindPhase(c, phase)

	for i := range phase.Local {
		idx := phase.Local[i].Index
		c.SetElement(idx, &cell{value: int32(idx)})
		weight := uint64(10)
		if rank == 0 {
			weight = 100
		}
		phase.Local[i].Counters.Add(weight)
	}

	acc := cellAccessor{}
	result, err := runtime.Rebalance[cell](ctx, mgr, phase, c, acc)
	if err != nil {
		nlog.Errorf("rank %d: rebalance failed: %v", rank, err)
		return
	}

	nlog.Infof("rank %d: rebalanced in %d tries, max-diff fraction %.3f, now owns %d cells",
		rank, result.Tries, result.MaxDiffFraction, len(c.LocalElements()))
	for idx := range c.LocalElements() {
		nlog.Infof("rank %d: owns cell %d", rank, idx)
	}
}
