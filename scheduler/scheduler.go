// Package scheduler implements the idle-timeout wheel each EventLoop
// owns: a deadline-ordered set of tasks with O(log n) insert and
// cancel, and a runDue call that drains everything whose deadline has
// passed. Adapted from a priority-queue-over-container/heap shape used
// elsewhere in the corpus for the same "pop whatever is due" pattern.
package scheduler

import "container/heap"

// Task is invoked once its deadline elapses, unless cancelled first.
type Task func()

// Handle lets the owner of a scheduled Task cancel it before it fires.
// Cancelling a Task that has already fired, or an already-cancelled
// Handle, is a no-op.
type Handle struct {
	item *entry
	s    *Scheduler
}

// Scheduler is a monotonic-clock priority queue of (deadline, task)
// entries. It is not safe for concurrent use: every Connection's
// timeout task is owned and driven by a single EventLoop thread.
type Scheduler struct {
	h       entryHeap
	nextSeq int
}

// New returns an empty Scheduler.
func New() *Scheduler {
	return &Scheduler{}
}

// Schedule inserts task to run at deadline and returns a Handle that
// can cancel it before it fires.
func (s *Scheduler) Schedule(deadline int64, task Task) Handle {
	e := &entry{deadline: deadline, seq: s.nextSeq, task: task}
	s.nextSeq++
	heap.Push(&s.h, e)

	return Handle{item: e, s: s}
}

// Cancel removes h's task from the queue so it never fires. Safe to
// call more than once, and safe to call after the task has already
// fired.
func (h Handle) Cancel() {
	if h.item == nil || h.item.index == -1 {
		return
	}

	heap.Remove(&h.s.h, h.item.index)
	h.item.index = -1
}

// Len returns the number of tasks still pending. Cancelled tasks are
// removed by Cancel itself and are not counted.
func (s *Scheduler) Len() int {
	return len(s.h)
}

// NextDeadline returns the deadline of the earliest pending task and
// true, or false if the Scheduler is empty.
func (s *Scheduler) NextDeadline() (int64, bool) {
	if len(s.h) == 0 {
		return 0, false
	}

	return s.h[0].deadline, true
}

// RunDue pops and runs every task whose deadline is ≤ now, in deadline
// order, ties broken by insertion order.
func (s *Scheduler) RunDue(now int64) {
	for len(s.h) > 0 && s.h[0].deadline <= now {
		e := heap.Pop(&s.h).(*entry)
		e.index = -1
		e.task()
	}
}

type entry struct {
	deadline int64
	seq      int
	task     Task
	index    int
}

type entryHeap []*entry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if h[i].deadline != h[j].deadline {
		return h[i].deadline < h[j].deadline
	}

	return h[i].seq < h[j].seq
}

func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entryHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]

	return e
}
