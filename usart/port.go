package usart

import (
	"context"
	"errors"
	"io"

	"tickcore/core"
)

// DefaultBufferSize is the receive buffer size used when none is configured
const DefaultBufferSize = 32

// ErrNoTransmitter is returned by the write side of a receive-only port
var ErrNoTransmitter = errors.New("usart: no transmitter attached")

// Port is one USART channel: an interrupt-fed receive ring and a transmit
// writer. Receive is the interrupt entry point; everything else is called
// from foreground code.
type Port struct {
	num    uint8
	rx     *RingBuffer
	tx     io.Writer
	notify chan struct{}
}

// NewPort creates port num with an rxSize-byte receive buffer. tx may be nil
// for a receive-only port.
func NewPort(num uint8, rxSize int, tx io.Writer) *Port {
	if rxSize <= 0 {
		rxSize = DefaultBufferSize
	}
	return &Port{
		num:    num,
		rx:     NewRingBuffer(rxSize),
		tx:     tx,
		notify: make(chan struct{}, 1),
	}
}

// Num returns the port number
func (p *Port) Num() uint8 {
	return p.num
}

// Receive stores one received byte. It is called from the receive interrupt,
// never blocks, and drops the byte when the buffer is full.
func (p *Port) Receive(b byte) {
	if err := p.rx.Push(b); err != nil {
		core.RecordEvent(core.EvtByteDropped, uint16(p.num), uint32(b), p.rx.Dropped())
		return
	}
	// Coalesced wake-up for GetsContext/WaitReadable.
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// Getc returns the next received byte, or false if none is buffered
func (p *Port) Getc() (byte, bool) {
	return p.rx.Pop()
}

// Gets copies one line into buf and returns its length, including the
// trailing '\n'. Nothing is consumed until a whole line is buffered, unless
// the receive buffer is full or holds at least len(buf) bytes, in which case
// as much as fits is returned. It returns 0 when there is nothing to deliver.
func (p *Port) Gets(buf []byte) int {
	if len(buf) == 0 || p.rx.IsEmpty() {
		return 0
	}
	if p.rx.IndexByte('\n') < 0 && !p.rx.IsFull() && p.rx.Len() < len(buf) {
		return 0
	}

	n := 0
	for n < len(buf) {
		b, ok := p.rx.Pop()
		if !ok {
			break
		}
		buf[n] = b
		n++
		if b == '\n' {
			break
		}
	}
	return n
}

// GetsContext blocks until Gets can deliver a line or ctx is done
func (p *Port) GetsContext(ctx context.Context, buf []byte) (int, error) {
	for {
		if n := p.Gets(buf); n > 0 {
			return n, nil
		}
		select {
		case <-p.notify:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}

// WaitReadable blocks until at least one byte is buffered or ctx is done
func (p *Port) WaitReadable(ctx context.Context) error {
	for p.rx.IsEmpty() {
		select {
		case <-p.notify:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Read implements io.Reader. It blocks until at least one byte is buffered;
// Getc and Gets are the polling calls.
func (p *Port) Read(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}
	if err := p.WaitReadable(context.Background()); err != nil {
		return 0, err
	}
	return p.rx.Read(b), nil
}

// FindCharacter reports whether c is among the buffered bytes
func (p *Port) FindCharacter(c byte) bool {
	return p.rx.IndexByte(c) >= 0
}

// BufferEmpty returns true if nothing is buffered
func (p *Port) BufferEmpty() bool {
	return p.rx.IsEmpty()
}

// BufferFull returns true if the next received byte would be dropped
func (p *Port) BufferFull() bool {
	return p.rx.IsFull()
}

// ClearBuffer discards everything received so far
func (p *Port) ClearBuffer() {
	p.rx.Clear()
}

// Putc transmits one byte
func (p *Port) Putc(c byte) error {
	_, err := p.Write([]byte{c})
	return err
}

// Puts transmits a string
func (p *Port) Puts(s string) error {
	_, err := p.Write([]byte(s))
	return err
}

// Write implements io.Writer on the transmit side
func (p *Port) Write(b []byte) (int, error) {
	if p.tx == nil {
		return 0, ErrNoTransmitter
	}
	return p.tx.Write(b)
}

// Stats holds receive counters since the port was created
type Stats struct {
	Buffered  int    `json:"buffered"`
	Capacity  int    `json:"capacity"`
	Received  uint32 `json:"received"`
	Dropped   uint32 `json:"dropped"`
	HighWater uint32 `json:"high_water"`
}

// Stats returns a snapshot of the receive counters
func (p *Port) Stats() Stats {
	return Stats{
		Buffered:  p.rx.Len(),
		Capacity:  p.rx.Cap(),
		Received:  p.rx.Pushed(),
		Dropped:   p.rx.Dropped(),
		HighWater: p.rx.HighWater(),
	}
}
