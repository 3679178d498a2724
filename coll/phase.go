package coll

import (
	"context"
	"sort"

	"github.com/dtaskrt/dtaskrt/cmn"
	"github.com/dtaskrt/dtaskrt/reb"
	"github.com/dtaskrt/dtaskrt/transport"
)

// Phase is a snapshot of the index->rank mapping used during one round of
// computation: its Local list enumerates the elements this rank executes
// plus each element's cumulative performance counter. Counters accumulate
// only within a phase (spec §3/glossary).
type Phase struct {
	Size               int
	IndexToRankMapping []IndexInfo
	Local              []LocalIndex
}

// NewPhaseFromSize builds the initial block distribution i/(size/P) (spec
// §3): size must be evenly divisible by the rank count, a fatal invariant
// violation otherwise (spec §7).
func NewPhaseFromSize(tr transport.Transport, size int) *Phase {
	p := tr.Size()
	rank := tr.Rank()
	if p == 0 || size%p != 0 {
		cmn.Fatalf("collection size %d does not evenly divide across %d ranks", size, p)
	}
	perRank := size / p

	mapping := make([]IndexInfo, size)
	var local []LocalIndex
	for i := 0; i < size; i++ {
		r := i / perRank
		mapping[i] = IndexInfo{Rank: r, RankUniqueID: i % perRank}
		if r == rank {
			local = append(local, NewLocalIndex(i))
		}
	}
	return &Phase{Size: size, IndexToRankMapping: mapping, Local: local}
}

// NewPhaseFromCollection inherits ownership from an existing (e.g.
// MPI-side) collection instead of a fresh block distribution.
func NewPhaseFromCollection[T any](ctx context.Context, tr transport.Transport, c *Collection[T]) (*Phase, error) {
	local := make([]LocalIndex, 0, len(c.LocalElements()))
	localIndices := make([]int, 0, len(c.LocalElements()))
	for idx := range c.LocalElements() {
		localIndices = append(localIndices, idx)
	}
	sort.Ints(localIndices) // deterministic local ordering across ranks
	for _, idx := range localIndices {
		local = append(local, NewLocalIndex(idx))
	}

	mapping, err := MakeGlobalMappingFromLocal(ctx, tr, c.Size(), localIndices)
	if err != nil {
		return nil, err
	}
	return &Phase{Size: c.Size(), IndexToRankMapping: mapping, Local: local}, nil
}

func (p *Phase) Rank(index int) int { return p.IndexToRankMapping[index].Rank }

// ResetPhase rebuilds Local and IndexToRankMapping from a freshly balanced
// config (spec §4.8 reset_phase): the first min(old,new) local slots are
// overwritten in place with zeroed counters, the tail is appended or
// truncated to match the new size, and the global mapping is rebuilt from
// scratch by the gather-all protocol in §4.9 rather than patched
// incrementally, since a rebalance can move ownership of any index.
func (p *Phase) ResetPhase(ctx context.Context, tr transport.Transport, newConfig []reb.TaskWeight) error {
	old := len(p.Local)
	n := len(newConfig)
	for i := 0; i < old && i < n; i++ {
		p.Local[i] = NewLocalIndex(newConfig[i].Index)
	}
	for i := old; i < n; i++ {
		p.Local = append(p.Local, NewLocalIndex(newConfig[i].Index))
	}
	if n < old {
		p.Local = p.Local[:n]
	}

	localIndices := make([]int, n)
	for i, w := range newConfig {
		localIndices[i] = w.Index
	}
	mapping, err := MakeGlobalMappingFromLocal(ctx, tr, p.Size, localIndices)
	if err != nil {
		return err
	}
	p.IndexToRankMapping = mapping
	return nil
}

// IndexBegin/IndexEnd mirror the original iterator pair used by
// register_phase_collection to walk Local in order.
func (p *Phase) IndexBegin() int { return 0 }
func (p *Phase) IndexEnd() int   { return len(p.Local) }
