package runtime

import (
	"context"

	"github.com/dtaskrt/dtaskrt/cmn"
	"github.com/dtaskrt/dtaskrt/coll"
	"github.com/dtaskrt/dtaskrt/reb"
)

// FromMpi moves elements away from their MPI-side home rank (mpiColl's own
// mapping) to the runtime's current mapping (spec §4.7 Interop, scenario
// S6), and returns a new runtime-owned Collection linked back to mpiColl
// via AssignMpi so a later ToMpi can reverse the move.
func FromMpi[T any](ctx context.Context, m *Manager, mpiColl *coll.Collection[T], newMapping []coll.IndexInfo, acc Accessor[T]) (*coll.Collection[T], error) {
	c := coll.NewCollection[T](m.nextCollectionID(), mpiColl.Size(), m.Rank())
	for idx, e := range mpiColl.LocalElements() {
		c.SetElement(idx, e)
	}

	// Every index this rank held at the MPI boundary gets its home rank
	// stamped before any migration runs (`_examples/original_source/mpi_backend/mpi_collection.h`'s
	// collection(rank, size, elements) constructor stamps
	// parent_mpi_ranks_[idx] = rank for every incoming element up front) -
	// migrateBetweenMappings below reads ParentMpiRank for every index this
	// rank is about to send away, so it must already hold the true value,
	// not just the subset that happens to stay put.
	selfRank := m.Rank()
	oldMapping := mpiColl.IndexMapping()
	for idx, home := range oldMapping {
		if home.Rank == selfRank {
			c.AddParentMpiRank(idx, selfRank)
		}
	}

	if err := migrateBetweenMappings(ctx, m, c, acc, oldMapping, newMapping); err != nil {
		return nil, err
	}

	c.AssignMpi(mpiColl)
	return c, nil
}

// ToMpi reverses FromMpi (spec §4.7 Interop): a fully blocking call that
// moves every element back to its recorded parentMpiRank and hands back
// the detached MPI-side sibling collection, fully repopulated. Calling
// ToMpi on a collection that never had an MPI parent is a fatal interop-
// misuse error (spec §7).
func ToMpi[T any](ctx context.Context, m *Manager, c *coll.Collection[T], acc Accessor[T]) (*coll.Collection[T], error) {
	if err := m.engine.ClearTasks(ctx); err != nil {
		return nil, err
	}
	if !c.HasMpiParent() {
		cmn.Fatalf("to_mpi: collection has no MPI parent")
	}
	m.tr.Barrier(ctx)

	mpiParent := c.MoveMpiParent()
	selfRank := m.Rank()

	var toSend []reb.OutgoingMigration
	var toRecv []reb.IncomingMigration

	for idx, e := range c.LocalElements() {
		home := c.ParentMpiRank(idx)
		if home != selfRank {
			buf := make([]byte, acc.ComputeSize(e))
			acc.Pack(e, buf)
			toSend = append(toSend, reb.OutgoingMigration{DestRank: home, Index: idx, MpiParent: home, Data: buf})
		}
	}
	for idx := range mpiParent.LocalElements() {
		oldLoc := c.Rank(idx)
		if oldLoc != selfRank {
			toRecv = append(toRecv, reb.IncomingMigration{SrcRank: oldLoc, Index: idx})
		}
	}

	if err := reb.Migrate(ctx, m.tr, toSend, toRecv); err != nil {
		return nil, err
	}

	for _, in := range toRecv {
		e := mpiParent.EmplaceNew(in.Index)
		acc.Unpack(e, in.Data)
	}
	return mpiParent, nil
}
