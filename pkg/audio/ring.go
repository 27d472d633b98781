package audio

import (
	"sync"
	"sync/atomic"
)

// RingBuffer is a fixed-capacity frame buffer sitting between the real-time
// capture callback and the processing chain.
//
// The producer side never blocks: when the buffer is full, Push overwrites
// the oldest unread frame and increments the drop counter. Capture must never
// stall, so the buffer trades the oldest audio for liveness under sustained
// downstream backpressure.
//
// The consumer side polls with Pop and parks on Ready between polls. All
// methods are safe for concurrent use.
type RingBuffer struct {
	mu     sync.Mutex
	frames []AudioFrame
	head   int // index of oldest unread frame
	size   int // number of unread frames

	drops uint64 // atomic

	notify    chan struct{} // doorbell, capacity 1
	done      chan struct{}
	closeOnce sync.Once
}

// NewRingBuffer creates a buffer holding at most capacity frames. Capacity
// should be sized to tolerate the longest expected downstream stall; a
// capacity below 1 is raised to 1.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &RingBuffer{
		frames: make([]AudioFrame, capacity),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Push appends frame to the buffer without ever blocking. If the buffer is
// full the oldest unread frame is dropped and the drop counter increments.
// Pushing to a closed buffer is a no-op.
func (b *RingBuffer) Push(frame AudioFrame) {
	select {
	case <-b.done:
		return
	default:
	}

	b.mu.Lock()
	if b.size == len(b.frames) {
		// Overwrite policy: evict the oldest unread frame.
		b.head = (b.head + 1) % len(b.frames)
		b.size--
		atomic.AddUint64(&b.drops, 1)
	}
	b.frames[(b.head+b.size)%len(b.frames)] = frame
	b.size++
	b.mu.Unlock()

	// Non-blocking doorbell: a pending signal already wakes the consumer.
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// Pop returns the oldest unread frame. The second return value is false when
// the buffer is empty.
func (b *RingBuffer) Pop() (AudioFrame, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.size == 0 {
		return AudioFrame{}, false
	}
	frame := b.frames[b.head]
	b.frames[b.head] = AudioFrame{} // release the data slice
	b.head = (b.head + 1) % len(b.frames)
	b.size--
	return frame, true
}

// Ready returns the doorbell channel. A receive means at least one Push
// happened since the last signal; consumers should re-poll Pop until empty
// after each wake.
func (b *RingBuffer) Ready() <-chan struct{} {
	return b.notify
}

// Closed returns a channel that is closed when the buffer is closed.
func (b *RingBuffer) Closed() <-chan struct{} {
	return b.done
}

// Close marks the buffer closed. Subsequent pushes are discarded; frames
// already buffered remain readable via Pop so the consumer can drain.
// Close is safe to call multiple times.
func (b *RingBuffer) Close() {
	b.closeOnce.Do(func() { close(b.done) })
}

// Len returns the number of unread frames.
func (b *RingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Drops returns the total number of frames dropped due to overwrite.
func (b *RingBuffer) Drops() uint64 {
	return atomic.LoadUint64(&b.drops)
}
