package runtime

import (
	"context"

	"github.com/dtaskrt/dtaskrt/coll"
	"github.com/dtaskrt/dtaskrt/sched"
)

// RegisterTask enqueues t if it is already runnable; otherwise it waits
// until the requests folded in by RegisterDependency complete and bring its
// join counter to zero (spec §6 register_task).
func (m *Manager) RegisterTask(t sched.Task) {
	m.engine.RegisterTask(t)
}

// RegisterControlTask enqueues t and immediately drains the queue (spec §6
// register_control_task): used for tasks the front-end needs to observe
// the effect of before issuing more work.
func (m *Manager) RegisterControlTask(ctx context.Context, t sched.Task) error {
	m.engine.RegisterTask(t)
	return m.engine.ClearTasks(ctx)
}

// RegisterPredicatedTask is register_task followed by clear_tasks (spec
// §6): the predicate/dependent-task pair the front-end builds around a
// PredicateTask needs the queue drained before the predicate can be
// re-evaluated.
func (m *Manager) RegisterPredicatedTask(ctx context.Context, t sched.Task) error {
	m.engine.RegisterTask(t)
	return m.engine.ClearTasks(ctx)
}

// RegisterDependency folds asyncRef's outstanding request ids into t's
// join counter (spec §6/§4.4 register_dependency).
func (m *Manager) RegisterDependency(t sched.Task, pendingRequests []int) {
	m.engine.RegisterDependency(t, pendingRequests)
}

// ClearTasks runs the progress engine until the task queue is empty - the
// synchronization point used between phases, before interop, and before
// any collective (spec.md:97).
func (m *Manager) ClearTasks(ctx context.Context) error {
	return m.engine.ClearTasks(ctx)
}

// ClearDependencies runs the progress engine until every outstanding
// request has completed, independent of the task queue (spec.md:160
// clear_dependencies) - a distinct, heavier synchronization point from
// ClearTasks, not used by the ordinary phase/interop/collective boundary.
func (m *Manager) ClearDependencies(ctx context.Context) error {
	return m.engine.ClearDependencies(ctx)
}

// TaskGenerator fabricates one task per local element of a phase (spec §6
// register_phase_collection's GeneratorTask parameter).
type TaskGenerator interface {
	Generate(local *coll.LocalIndex) sched.Task
}

// RegisterPhaseCollection asks gen for a task per local element of phase,
// enqueues all of them, and runs them to completion (spec §6
// register_phase_collection): drain first so nothing from a previous
// phase is still outstanding, generate and enqueue every task, then drain
// again so the caller sees the whole phase's work as one bulk-synchronous
// step.
func (m *Manager) RegisterPhaseCollection(ctx context.Context, phase *coll.Phase, gen TaskGenerator) error {
	if err := m.engine.ClearTasks(ctx); err != nil {
		return err
	}
	for i := range phase.Local {
		t := gen.Generate(&phase.Local[i])
		m.engine.RegisterTask(t)
	}
	return m.engine.ClearTasks(ctx)
}
