package serial

import (
	"io"
	"sync"
	"time"
)

// LoopbackPort echoes everything written back to the reader. It lets the
// host board run without hardware attached.
type LoopbackPort struct {
	mu      sync.Mutex
	cond    *sync.Cond
	buf     []byte
	closed  bool
	timeout time.Duration
}

// NewLoopback creates a loopback port. Reads wait up to timeout for data and
// then return 0, nil, like a native port with a read timeout.
func NewLoopback(timeout time.Duration) *LoopbackPort {
	p := &LoopbackPort{timeout: timeout}
	p.cond = sync.NewCond(&p.mu)
	return p
}

func (p *LoopbackPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.buf) == 0 && !p.closed && p.timeout > 0 {
		timer := time.AfterFunc(p.timeout, func() {
			p.mu.Lock()
			p.cond.Broadcast()
			p.mu.Unlock()
		})
		p.cond.Wait()
		timer.Stop()
	}
	if p.closed {
		return 0, io.EOF
	}

	n := copy(b, p.buf)
	p.buf = p.buf[n:]
	return n, nil
}

func (p *LoopbackPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, io.ErrClosedPipe
	}
	p.buf = append(p.buf, b...)
	p.cond.Broadcast()
	return len(b), nil
}

// Close wakes pending readers with io.EOF
func (p *LoopbackPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.cond.Broadcast()
	return nil
}

func (p *LoopbackPort) Flush() error {
	return nil
}
