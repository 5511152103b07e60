package cacheonly

import (
	"container/heap"
	"context"
	"sync"

	"github.com/always-cache/easyfetch/request"
)

// Queue is a blocking priority queue of descriptors. Higher priority is
// taken first; equal priorities are taken in ascending sequence order.
// When all requests share a priority this is plain submission order. With
// mixed priorities a later high-priority request overtakes earlier ones.
type Queue struct {
	mu    sync.Mutex
	items descriptorHeap
	ready chan struct{}
}

func NewQueue() *Queue {
	return &Queue{ready: make(chan struct{}, 1)}
}

// Push adds a descriptor and wakes a blocked Take.
func (q *Queue) Push(d *request.Descriptor) {
	q.mu.Lock()
	heap.Push(&q.items, d)
	q.mu.Unlock()
	q.signal()
}

// Take blocks until a descriptor is available or ctx is done.
func (q *Queue) Take(ctx context.Context) (*request.Descriptor, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		q.mu.Lock()
		if q.items.Len() > 0 {
			d := heap.Pop(&q.items).(*request.Descriptor)
			more := q.items.Len() > 0
			q.mu.Unlock()
			if more {
				q.signal()
			}
			return d, nil
		}
		q.mu.Unlock()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.ready:
		}
	}
}

// Len returns the number of queued descriptors.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

func (q *Queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// descriptorHeap implements heap.Interface.
type descriptorHeap []*request.Descriptor

func (h descriptorHeap) Len() int { return len(h) }

func (h descriptorHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority
	}
	return h[i].Sequence < h[j].Sequence
}

func (h descriptorHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *descriptorHeap) Push(x any) {
	*h = append(*h, x.(*request.Descriptor))
}

func (h *descriptorHeap) Pop() any {
	old := *h
	n := len(old)
	d := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return d
}
