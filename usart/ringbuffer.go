package usart

import (
	"errors"
	"sync/atomic"
)

// ErrBufferFull is returned by Push when the byte had to be dropped
var ErrBufferFull = errors.New("receive buffer full")

// RingBuffer is a fixed-capacity byte FIFO with one producer (the receive
// interrupt) and one consumer (foreground code).
//
// head is written only by the producer and tail only by the consumer; count
// is the sole shared field and moves up only in Push and down only in
// Pop/Clear. The producer never waits and never overwrites unread data.
type RingBuffer struct {
	buf  []byte
	head uint32
	tail uint32

	count     atomic.Uint32
	pushed    atomic.Uint32
	dropped   atomic.Uint32
	highWater atomic.Uint32
}

// NewRingBuffer creates a buffer holding up to capacity bytes
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		panic("ring buffer capacity must be positive")
	}
	return &RingBuffer{
		buf: make([]byte, capacity),
	}
}

// Push appends b. When full, b is dropped, counted, and ErrBufferFull returned.
// Producer side only.
func (r *RingBuffer) Push(b byte) error {
	n := r.count.Load()
	if n == uint32(len(r.buf)) {
		r.dropped.Add(1)
		return ErrBufferFull
	}

	r.buf[r.head] = b // 1) write data
	r.head++
	if r.head == uint32(len(r.buf)) {
		r.head = 0
	}
	n = r.count.Add(1) // 2) publish
	r.pushed.Add(1)

	if n > r.highWater.Load() {
		r.highWater.Store(n)
	}
	return nil
}

// Pop removes the oldest byte. It returns false when the buffer is empty.
// Consumer side only.
func (r *RingBuffer) Pop() (byte, bool) {
	if r.count.Load() == 0 {
		return 0, false
	}

	b := r.buf[r.tail] // 1) read current element
	r.tail++
	if r.tail == uint32(len(r.buf)) {
		r.tail = 0
	}
	r.count.Add(^uint32(0)) // 2) publish consumption
	return b, true
}

// Read pops up to len(p) bytes and returns how many were copied
func (r *RingBuffer) Read(p []byte) int {
	n := 0
	for n < len(p) {
		b, ok := r.Pop()
		if !ok {
			break
		}
		p[n] = b
		n++
	}
	return n
}

// IndexByte returns the position of the first c among the buffered bytes,
// or -1. Consumer side only.
func (r *RingBuffer) IndexByte(c byte) int {
	n := r.count.Load()
	idx := r.tail
	for i := uint32(0); i < n; i++ {
		if r.buf[idx] == c {
			return int(i)
		}
		idx++
		if idx == uint32(len(r.buf)) {
			idx = 0
		}
	}
	return -1
}

// Clear discards every byte buffered at the time of the call. It only moves
// the consumer index, so it is safe while the producer is live; bytes pushed
// concurrently may survive.
func (r *RingBuffer) Clear() {
	n := r.count.Load()
	r.tail = (r.tail + n) % uint32(len(r.buf))
	r.count.Add(-n)
}

// Len returns the number of buffered bytes
func (r *RingBuffer) Len() int {
	return int(r.count.Load())
}

// Cap returns the buffer capacity
func (r *RingBuffer) Cap() int {
	return len(r.buf)
}

// IsEmpty returns true if no bytes are buffered
func (r *RingBuffer) IsEmpty() bool {
	return r.count.Load() == 0
}

// IsFull returns true if the next Push would be dropped
func (r *RingBuffer) IsFull() bool {
	return r.count.Load() == uint32(len(r.buf))
}

// Dropped returns how many bytes were discarded because the buffer was full
func (r *RingBuffer) Dropped() uint32 {
	return r.dropped.Load()
}

// Pushed returns how many bytes were accepted
func (r *RingBuffer) Pushed() uint32 {
	return r.pushed.Load()
}

// HighWater returns the largest fill level seen
func (r *RingBuffer) HighWater() uint32 {
	return r.highWater.Load()
}
