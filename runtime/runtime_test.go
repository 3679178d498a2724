package runtime

import (
	"context"
	"encoding/binary"
	"sync"
	"testing"

	"github.com/dtaskrt/dtaskrt/coll"
	"github.com/dtaskrt/dtaskrt/sched"
)

type elem struct{ v int32 }

type elemAccessor struct{}

func (elemAccessor) ComputeSize(e *elem) int { return 4 }
func (elemAccessor) Pack(e *elem, buf []byte) {
	binary.LittleEndian.PutUint32(buf, uint32(e.v))
}
func (elemAccessor) Unpack(e *elem, buf []byte) {
	e.v = int32(binary.LittleEndian.Uint32(buf))
}

type fakeTask struct {
	jc  int
	ran bool
}

func (t *fakeTask) JoinCounter() int          { return t.jc }
func (t *fakeTask) IncrementJoinCounter()     { t.jc++ }
func (t *fakeTask) DecrementJoinCounter() int { t.jc--; return t.jc }
func (t *fakeTask) Run(context.Context)       { t.ran = true }
func (t *fakeTask) AddCounter(uint64)         {}

func fakeClock() func() uint64 {
	n := uint64(0)
	return func() uint64 { n++; return n }
}

// A send on rank 0 and a dependent-task recv on rank 1 round-trips a
// value through MakeSendOp/MakeRecvOp (spec §4.5).
func TestSendRecvRoundTrip(t *testing.T) {
	cluster := sched.NewLocalCluster(2)
	m0 := NewManager(cluster.Rank(0), fakeClock())
	m1 := NewManager(cluster.Rank(1), fakeClock())

	c0 := MakeCollection[elem](m0, 2)
	c1 := MakeCollection[elem](m1, 2)
	mapping := []coll.IndexInfo{{Rank: 0, RankUniqueID: 0}, {Rank: 1, RankUniqueID: 0}}
	c0.BindMapping(mapping)
	c1.BindMapping(mapping)
	c0.SetElement(0, &elem{v: 42})

	acc := elemAccessor{}
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		ctx := context.Background()
		if _, err := MakeSendOp[elem](ctx, m0, c0, acc, 0, 1, 1); err != nil {
			t.Errorf("MakeSendOp: %v", err)
		}
		if err := m0.ClearTasks(ctx); err != nil {
			t.Errorf("rank0 ClearTasks: %v", err)
		}
	}()
	go func() {
		defer wg.Done()
		ctx := context.Background()
		id := MakeRecvOp[elem](m1, c1, acc, 1, 0, 0)
		task := &fakeTask{}
		m1.RegisterDependency(task, []int{id})
		m1.RegisterTask(task)
		if err := m1.ClearTasks(ctx); err != nil {
			t.Errorf("rank1 ClearTasks: %v", err)
		}
		if !task.ran {
			t.Errorf("expected dependent task to run once recv completed")
		}
	}()
	wg.Wait()

	got, ok := c1.GetElement(1)
	if !ok {
		t.Fatalf("expected element to land at index 1")
	}
	if got.v != 42 {
		t.Fatalf("expected v=42, got %d", got.v)
	}
}

// Rebalance moves element 0 from rank 0 to rank 1 when rank 0 reports five
// times rank 1's work (mirrors the pairwise trade scenario S3 but exercised
// through the full migration protocol end to end); the checks below assert
// that every index ends up owned by exactly one rank.
func TestRebalanceMigratesElement(t *testing.T) {
	cluster := sched.NewLocalCluster(2)
	m0 := NewManager(cluster.Rank(0), fakeClock())
	m1 := NewManager(cluster.Rank(1), fakeClock())

	c0 := MakeCollection[elem](m0, 4)
	c1 := MakeCollection[elem](m1, 4)
	mapping := []coll.IndexInfo{
		{Rank: 0, RankUniqueID: 0}, {Rank: 0, RankUniqueID: 1},
		{Rank: 1, RankUniqueID: 0}, {Rank: 1, RankUniqueID: 1},
	}
	c0.BindMapping(mapping)
	c1.BindMapping(mapping)
	c0.SetElement(0, &elem{v: 100})
	c0.SetElement(1, &elem{v: 101})
	c1.SetElement(2, &elem{v: 102})
	c1.SetElement(3, &elem{v: 103})

	phase0 := &coll.Phase{Size: 4, IndexToRankMapping: append([]coll.IndexInfo(nil), mapping...), Local: []coll.LocalIndex{
		coll.NewLocalIndex(0), coll.NewLocalIndex(1),
	}}
	phase1 := &coll.Phase{Size: 4, IndexToRankMapping: append([]coll.IndexInfo(nil), mapping...), Local: []coll.LocalIndex{
		coll.NewLocalIndex(2), coll.NewLocalIndex(3),
	}}
	phase0.Local[0].Counters.Add(50)
	phase0.Local[1].Counters.Add(50)
	phase1.Local[0].Counters.Add(10)
	phase1.Local[1].Counters.Add(10)

	acc := elemAccessor{}
	var wg sync.WaitGroup
	var err0, err1 error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err0 = Rebalance[elem](context.Background(), m0, phase0, c0, acc)
	}()
	go func() {
		defer wg.Done()
		_, err1 = Rebalance[elem](context.Background(), m1, phase1, c1, acc)
	}()
	wg.Wait()

	if err0 != nil {
		t.Fatalf("rank0 Rebalance: %v", err0)
	}
	if err1 != nil {
		t.Fatalf("rank1 Rebalance: %v", err1)
	}

	totalLocal := len(c0.LocalElements()) + len(c1.LocalElements())
	if totalLocal != 4 {
		t.Fatalf("expected every index owned exactly once across both ranks, got %d local elements total", totalLocal)
	}
	for idx := 0; idx < 4; idx++ {
		_, inC0 := c0.GetElement(idx)
		_, inC1 := c1.GetElement(idx)
		if inC0 == inC1 {
			t.Fatalf("index %d expected to be owned by exactly one rank, c0=%v c1=%v", idx, inC0, inC1)
		}
	}
}

// FromMpi must stamp ParentMpiRank with the true MPI-side home rank for
// every index, including ones that migrate during the call - not just the
// indices that happen to stay put (spec §4.7 Interop, scenario S6).
func TestFromMpiRecordsParentRankForMigratedIndex(t *testing.T) {
	cluster := sched.NewLocalCluster(2)
	m0 := NewManager(cluster.Rank(0), fakeClock())
	m1 := NewManager(cluster.Rank(1), fakeClock())

	oldMapping := []coll.IndexInfo{
		{Rank: 0, RankUniqueID: 0}, {Rank: 0, RankUniqueID: 1},
		{Rank: 1, RankUniqueID: 0}, {Rank: 1, RankUniqueID: 1},
	}
	// Index 1 moves from rank 0 to rank 1; everything else stays put.
	newMapping := []coll.IndexInfo{
		{Rank: 0, RankUniqueID: 0}, {Rank: 1, RankUniqueID: 2},
		{Rank: 1, RankUniqueID: 0}, {Rank: 1, RankUniqueID: 1},
	}

	mpiColl0 := coll.NewCollection[elem](0, 4, 0)
	mpiColl0.BindMapping(oldMapping)
	mpiColl0.SetElement(0, &elem{v: 100})
	mpiColl0.SetElement(1, &elem{v: 101})

	mpiColl1 := coll.NewCollection[elem](0, 4, 1)
	mpiColl1.BindMapping(oldMapping)
	mpiColl1.SetElement(2, &elem{v: 102})
	mpiColl1.SetElement(3, &elem{v: 103})

	acc := elemAccessor{}
	var c0, c1 *coll.Collection[elem]
	var err0, err1 error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c0, err0 = FromMpi[elem](context.Background(), m0, mpiColl0, newMapping, acc)
	}()
	go func() {
		defer wg.Done()
		c1, err1 = FromMpi[elem](context.Background(), m1, mpiColl1, newMapping, acc)
	}()
	wg.Wait()

	if err0 != nil {
		t.Fatalf("rank0 FromMpi: %v", err0)
	}
	if err1 != nil {
		t.Fatalf("rank1 FromMpi: %v", err1)
	}

	if _, ok := c0.GetElement(1); ok {
		t.Fatalf("expected index 1 to have migrated away from rank 0")
	}
	got, ok := c1.GetElement(1)
	if !ok {
		t.Fatalf("expected index 1 to have arrived at rank 1")
	}
	if got.v != 101 {
		t.Fatalf("expected migrated value 101, got %d", got.v)
	}
	if home := c1.ParentMpiRank(1); home != 0 {
		t.Fatalf("expected migrated index 1's ParentMpiRank to be its true MPI-side home rank 0, got %d", home)
	}
	if home := c1.ParentMpiRank(3); home != 1 {
		t.Fatalf("expected untouched index 3's ParentMpiRank to be 1, got %d", home)
	}
}
