// Package pqueue implements the priority message queue with datagram
// ingress described in §4.1: a bounded, tag-ordered queue fed by a
// dedicated reader task, which is the sole synchronization point between
// a subsystem's socket and its single-threaded main loop.
package pqueue

import (
	"container/heap"
	"context"
	"sort"
	"sync"
)

type item struct {
	payload []byte
	seq     uint64
}

// itemHeap orders by ascending tag byte (payload[0]), FIFO among equal
// tags via the monotonic seq counter — lower tag value sorts first, i.e.
// higher priority, per §4.1.
type itemHeap []item

func (h itemHeap) Len() int { return len(h) }
func (h itemHeap) Less(i, j int) bool {
	if h[i].payload[0] != h[j].payload[0] {
		return h[i].payload[0] < h[j].payload[0]
	}
	return h[i].seq < h[j].seq
}
func (h itemHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *itemHeap) Push(x any)   { *h = append(*h, x.(item)) }
func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// Queue is the bounded priority queue of §4.1. The zero value is not
// usable; construct with New.
type Queue struct {
	mu       sync.Mutex
	heap     itemHeap
	capacity int
	nextSeq  uint64
	avail    chan struct{}

	dropped func(payload []byte)
}

// New builds a Queue with the given capacity Q. onDrop, if non-nil, is
// called (outside the lock) whenever Submit drops a message because the
// queue is full — callers use it to emit the §7 warning log.
func New(capacity int, onDrop func(payload []byte)) *Queue {
	return &Queue{
		heap:     make(itemHeap, 0, capacity),
		capacity: capacity,
		avail:    make(chan struct{}, capacity),
		dropped:  onDrop,
	}
}

// Submit is non-blocking; it drops the message if the queue is full.
func (q *Queue) Submit(payload []byte) {
	q.mu.Lock()
	if len(q.heap) >= q.capacity {
		q.mu.Unlock()
		if q.dropped != nil {
			q.dropped(payload)
		}
		return
	}
	q.nextSeq++
	heap.Push(&q.heap, item{payload: payload, seq: q.nextSeq})
	q.mu.Unlock()

	select {
	case q.avail <- struct{}{}:
	default:
	}
}

// Poll blocks until a message is available or ctx is cancelled, returning
// the highest-priority message (lowest tag byte, FIFO within a tag).
func (q *Queue) Poll(ctx context.Context) ([]byte, bool) {
	for {
		select {
		case <-q.avail:
			q.mu.Lock()
			if len(q.heap) == 0 {
				// Another poller won the race for the item this signal
				// announced; keep waiting for the next one.
				q.mu.Unlock()
				continue
			}
			it := heap.Pop(&q.heap).(item)
			q.mu.Unlock()
			return it.payload, true
		case <-ctx.Done():
			return nil, false
		}
	}
}

// WaitNonEmpty blocks until the queue holds at least one message or ctx is
// cancelled, without removing anything. It assumes a single consumer
// goroutine (true for every subsystem's main loop in this simulation): no
// other caller can steal the item between the wait returning and a
// subsequent Peek/Poll.
func (q *Queue) WaitNonEmpty(ctx context.Context) bool {
	for {
		if !q.IsEmpty() {
			return true
		}
		select {
		case <-q.avail:
			if !q.IsEmpty() {
				// Put the signal back so a following Poll finds it.
				select {
				case q.avail <- struct{}{}:
				default:
				}
				return true
			}
		case <-ctx.Done():
			return false
		}
	}
}

// IsEmpty is observational and non-blocking.
func (q *Queue) IsEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.heap) == 0
}

// Peek returns the highest-priority message without removing it, along
// with whether one was present. Used by the elevator subsystem to inspect
// the queue head without consuming a REQUEST_ELEVATOR message (§4.3).
func (q *Queue) Peek() ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.heap) == 0 {
		return nil, false
	}
	return q.heap[0].payload, true
}

// RemoveMatching drains every queued message for which match returns
// true, in priority order, returning their payloads. Used by the elevator
// subsystem to absorb every pending REQUEST_ELEVATOR entry in one pass
// (§4.3 "absorb all of them into pendingStops ... and remove them").
func (q *Queue) RemoveMatching(match func(payload []byte) bool) [][]byte {
	q.mu.Lock()
	defer q.mu.Unlock()

	var matched, kept itemHeap
	for _, it := range q.heap {
		if match(it.payload) {
			matched = append(matched, it)
		} else {
			kept = append(kept, it)
		}
	}
	q.heap = kept
	heap.Init(&q.heap)

	sort.Sort(matched)
	payloads := make([][]byte, len(matched))
	for i, it := range matched {
		payloads[i] = it.payload
	}
	return payloads
}
