package orchestrator

import (
	"container/heap"
)

// queueItem is one waiting task. The sequence number is fixed when the
// task is first queued and kept across re-queues.
type queueItem struct {
	id   string
	rank int
	seq  uint64
}

// taskQueue is a min-heap ordered by priority rank, then arrival sequence.
type taskQueue []queueItem

func (q taskQueue) Len() int { return len(q) }

func (q taskQueue) Less(i, j int) bool {
	if q[i].rank != q[j].rank {
		return q[i].rank < q[j].rank
	}
	return q[i].seq < q[j].seq
}

func (q taskQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *taskQueue) Push(x any) { *q = append(*q, x.(queueItem)) }

func (q *taskQueue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	*q = old[:n-1]
	return it
}

func (q *taskQueue) push(it queueItem) { heap.Push(q, it) }

func (q *taskQueue) pop() queueItem { return heap.Pop(q).(queueItem) }

// drain removes every item in priority order.
func (q *taskQueue) drain() []queueItem {
	out := make([]queueItem, 0, q.Len())
	for q.Len() > 0 {
		out = append(out, q.pop())
	}
	return out
}

// ids returns the queued task IDs in priority order without modifying q.
func (q taskQueue) ids() []string {
	cp := append(taskQueue(nil), q...)
	out := make([]string, 0, len(cp))
	for _, it := range cp.drain() {
		out = append(out, it.id)
	}
	return out
}
