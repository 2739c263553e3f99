package scheduler

import (
	"container/heap"
	"time"
)

// decisionEvent is one candidate's scheduled answer, tagged with the epoch it
// was scheduled under.
type decisionEvent struct {
	fireAt      time.Time
	index       int // dispatch position, breaks fireAt ties
	candidateID int
	epoch       uint64
}

// eventQueue is a min-heap ordered by (fireAt, index).
type eventQueue []*decisionEvent

func (q eventQueue) Len() int { return len(q) }

func (q eventQueue) Less(i, j int) bool {
	if q[i].fireAt.Equal(q[j].fireAt) {
		return q[i].index < q[j].index
	}
	return q[i].fireAt.Before(q[j].fireAt)
}

func (q eventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *eventQueue) Push(x any) { *q = append(*q, x.(*decisionEvent)) }

func (q *eventQueue) Pop() any {
	old := *q
	n := len(old)
	ev := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return ev
}

func (q *eventQueue) push(ev *decisionEvent) { heap.Push(q, ev) }

func (q *eventQueue) pop() *decisionEvent { return heap.Pop(q).(*decisionEvent) }

func (q eventQueue) peek() *decisionEvent {
	if len(q) == 0 {
		return nil
	}
	return q[0]
}

// remove drops the event for a candidate, if any.
func (q *eventQueue) remove(candidateID int) bool {
	for i, ev := range *q {
		if ev.candidateID == candidateID {
			heap.Remove(q, i)
			return true
		}
	}
	return false
}

func (q *eventQueue) clear() {
	*q = (*q)[:0]
}
