package sim

import "container/heap"

// CompletionEvent is one in-flight request: created at arrival, consumed
// exactly once when simulated time reaches CompletionTimeMs.
type CompletionEvent struct {
	CompletionTimeMs float64
	LatencyMs        float64
}

// completionHeap implements heap.Interface ordered by completion time.
// See canonical Golang example here: https://pkg.go.dev/container/heap#example-package-IntHeap
type completionHeap []CompletionEvent

func (h completionHeap) Len() int           { return len(h) }
func (h completionHeap) Less(i, j int) bool { return h[i].CompletionTimeMs < h[j].CompletionTimeMs }
func (h completionHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *completionHeap) Push(x any) {
	*h = append(*h, x.(CompletionEvent))
}

func (h *completionHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[0 : n-1]
	return item
}

// CompletionQueue is a min-heap of outstanding completions.
// Equal completion times pop in no particular order.
type CompletionQueue struct {
	events completionHeap
}

// NewCompletionQueue creates an empty queue.
func NewCompletionQueue() *CompletionQueue {
	q := &CompletionQueue{events: make(completionHeap, 0)}
	heap.Init(&q.events)
	return q
}

// Len returns the number of in-flight completions.
func (q *CompletionQueue) Len() int {
	return q.events.Len()
}

// Push schedules a completion.
func (q *CompletionQueue) Push(ev CompletionEvent) {
	heap.Push(&q.events, ev)
}

// PopNext removes and returns the earliest completion.
// Returns false on an empty queue.
func (q *CompletionQueue) PopNext() (CompletionEvent, bool) {
	if q.events.Len() == 0 {
		return CompletionEvent{}, false
	}
	return heap.Pop(&q.events).(CompletionEvent), true
}

// Peek returns the earliest completion without removing it.
func (q *CompletionQueue) Peek() (CompletionEvent, bool) {
	if q.events.Len() == 0 {
		return CompletionEvent{}, false
	}
	return q.events[0], true
}

// Clear drops every scheduled completion.
func (q *CompletionQueue) Clear() {
	q.events = q.events[:0]
}
