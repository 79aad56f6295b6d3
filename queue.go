package mjpeg

import (
	"context"
	"sync"
)

// FrameQueue is an unbounded FIFO handing frames from one producer to one
// consumer. Push never blocks, so a slow consumer costs memory, never ingestion.
type FrameQueue struct {
	mu     sync.Mutex
	frames []*Frame
	head   int
	closed bool

	notify chan struct{} // capacity 1, signaled on Push
	done   chan struct{} // closed by Close
	once   sync.Once
}

// NewFrameQueue creates an empty queue.
func NewFrameQueue() *FrameQueue {
	return &FrameQueue{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Push appends f and returns immediately. On a closed queue the frame is
// released and ErrQueueClosed is returned.
func (q *FrameQueue) Push(f *Frame) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		f.Release()
		return ErrQueueClosed
	}
	if q.head > 0 && q.head*2 >= len(q.frames) {
		n := copy(q.frames, q.frames[q.head:])
		clear(q.frames[n:])
		q.frames = q.frames[:n]
		q.head = 0
	}
	q.frames = append(q.frames, f)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

// TryPop removes the oldest frame without waiting.
func (q *FrameQueue) TryPop() (*Frame, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.popLocked()
}

func (q *FrameQueue) popLocked() (*Frame, bool) {
	if q.head == len(q.frames) {
		return nil, false
	}
	f := q.frames[q.head]
	q.frames[q.head] = nil
	q.head++
	if q.head == len(q.frames) {
		q.frames = q.frames[:0]
		q.head = 0
	}
	return f, true
}

// Pop removes the oldest frame, suspending until one is available. It returns
// ErrQueueClosed once the queue is closed and every pushed frame was consumed,
// or ctx.Err() when ctx ends first.
func (q *FrameQueue) Pop(ctx context.Context) (*Frame, error) {
	for {
		q.mu.Lock()
		f, ok := q.popLocked()
		closed := q.closed
		q.mu.Unlock()

		if ok {
			return f, nil
		}
		if closed {
			return nil, ErrQueueClosed
		}

		select {
		case <-q.notify:
		case <-q.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Len returns the number of frames waiting.
func (q *FrameQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames) - q.head
}

// Close stops accepting frames. Frames already queued remain poppable.
// Safe to call multiple times.
func (q *FrameQueue) Close() {
	q.once.Do(func() {
		q.mu.Lock()
		q.closed = true
		q.mu.Unlock()
		close(q.done)
	})
}

// Drain releases every waiting frame and returns how many there were.
func (q *FrameQueue) Drain() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for {
		f, ok := q.popLocked()
		if !ok {
			return n
		}
		f.Release()
		n++
	}
}
