package runtime

import (
	"context"

	"github.com/dtaskrt/dtaskrt/coll"
)

// MakeCollection issues a fresh collectionId from m and returns a new,
// empty Collection[T] (spec §6 make_collection<T>(size)). Go methods can't
// carry their own type parameters, so this lives as a free function over
// *Manager rather than a method.
func MakeCollection[T any](m *Manager, size int) *coll.Collection[T] {
	id := m.nextCollectionID()
	return coll.NewCollection[T](id, size, m.Rank())
}

// MakePhaseFromSize builds the initial block-distributed Phase for a
// collection of the given size (spec §6 make_phase(size)).
func (m *Manager) MakePhaseFromSize(size int) *coll.Phase {
	return coll.NewPhaseFromSize(m.tr, size)
}

// MakePhaseFromCollection inherits ownership from an existing collection
// (e.g. one just produced by FromMpi) instead of a fresh block
// distribution (spec §6 make_phase(coll)).
func MakePhaseFromCollection[T any](ctx context.Context, m *Manager, c *coll.Collection[T]) (*coll.Phase, error) {
	return coll.NewPhaseFromCollection[T](ctx, m.tr, c)
}

// BindPhase installs phase's mapping into c, the step that takes a
// collection from unbound (spec §3 "initialized: false until the first
// phase binds the mapping") to ready-to-use.
func BindPhase[T any](c *coll.Collection[T], phase *coll.Phase) {
	c.BindMapping(phase.IndexToRankMapping)
}
