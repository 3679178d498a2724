package runtime

import (
	"context"

	"github.com/dtaskrt/dtaskrt/coll"
)

// ReduceFunctor is a user-supplied associative local reduction over a
// collection's elements (spec §6 register_reduce's Functor parameter).
// The actual cross-rank combination is out of scope here - the spec
// classifies "collective-style gather/broadcast helpers" as an external
// collaborator the core only wraps (spec §1) - so Reduce folds every
// local element and returns the partial result for the front-end to hand
// to whatever all-reduce its concrete transport exposes, the same
// contract register_local_reduce documents in the original backend.
type ReduceFunctor[T, R any] struct {
	Identity func() R
	Combine  func(acc R, elem *T) R
}

// RegisterReduce drains pending tasks, then folds every locally-owned
// element of c through fn (spec §6 register_reduce / register_local_reduce).
// Cross-rank combination of the partial result is the front-end's concern
// (see ReduceFunctor's doc comment); a from-scratch transport would
// typically plug the result into something like Transport.AllReducePerf's
// custom-op pattern.
func RegisterReduce[T, R any](ctx context.Context, m *Manager, c *coll.Collection[T], fn ReduceFunctor[T, R]) (R, error) {
	if err := m.engine.ClearTasks(ctx); err != nil {
		var zero R
		return zero, err
	}
	acc := fn.Identity()
	for _, e := range c.LocalElements() {
		acc = fn.Combine(acc, e)
	}
	return acc, nil
}

// RegisterPhaseGather drains pending tasks before a gather-to-root
// collective (spec §6 register_phase_gather). The gather itself is one of
// the explicitly out-of-scope "collective-style gather/broadcast helpers"
// (spec §1); this only provides the clear_tasks barrier the original
// performs immediately before delegating to darma_backend::gather.
func (m *Manager) RegisterPhaseGather(ctx context.Context, _ *coll.Phase, _ int) error {
	return m.engine.ClearTasks(ctx)
}

// RegisterPhaseBroadcast is RegisterPhaseGather's broadcast counterpart
// (spec §6 register_phase_broadcast): same out-of-scope delegation, same
// clear_tasks barrier first.
func (m *Manager) RegisterPhaseBroadcast(ctx context.Context, _ *coll.Phase, _ int) error {
	return m.engine.ClearTasks(ctx)
}
