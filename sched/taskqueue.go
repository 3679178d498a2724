package sched

import "context"

// Task is the front-end's unit of work: runnable once its join counter
// reaches zero. The runtime's task object doubles as a Listener through
// taskListener below, decrementing the same counter that gates readiness.
type Task interface {
	JoinCounter() int
	IncrementJoinCounter()
	DecrementJoinCounter() int
	Run(ctx context.Context)
	// AddCounter accumulates the rdtsc-equivalent cycle count this task
	// spent running, into whatever LocalIndex.Counters it is attached to.
	AddCounter(cycles uint64)
}

// taskListener adapts a Task to Listener: when the task's join counter
// reaches zero, push it onto the ready queue (spec §4.2 "task" variant).
type taskListener struct {
	task  Task
	queue *TaskQueue
}

func (tl *taskListener) DecrementJoinCounter() int { return tl.task.DecrementJoinCounter() }
func (tl *taskListener) Finalize() bool {
	tl.queue.Push(tl.task)
	return true
}

// TaskQueue is the FIFO of ready-to-run tasks (spec §4.2/§5): single
// consumer, single producer, touched only from the runtime's owning
// goroutine, so it carries no locking.
type TaskQueue struct {
	q []Task
}

func NewTaskQueue() *TaskQueue { return &TaskQueue{} }

// Push enqueues a task that must already have join counter zero - the
// queue only ever holds runnable tasks (spec §4.2 register_task).
func (q *TaskQueue) Push(t Task) { q.q = append(q.q, t) }

func (q *TaskQueue) Empty() bool { return len(q.q) == 0 }
func (q *TaskQueue) Len() int    { return len(q.q) }

func (q *TaskQueue) pop() Task {
	t := q.q[0]
	q.q = q.q[1:]
	return t
}

// ProgressTasks runs every ready task to completion in FIFO order,
// accumulating its wall-clock cost into its counter (spec §4.4). clock
// supplies the before/after timestamps; swap in a real rdtsc-equivalent in
// production, a fake monotonic counter in tests.
func (q *TaskQueue) ProgressTasks(ctx context.Context, clock func() uint64) {
	for !q.Empty() {
		t := q.pop()
		start := clock()
		t.Run(ctx)
		t.AddCounter(clock() - start)
	}
}
