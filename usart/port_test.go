package usart

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"tickcore/core"
)

func receiveString(p *Port, s string) {
	for i := 0; i < len(s); i++ {
		p.Receive(s[i])
	}
}

func TestPortGetc(t *testing.T) {
	p := NewPort(1, 4, nil)

	if _, ok := p.Getc(); ok {
		t.Error("Getc on empty port returned data")
	}

	receiveString(p, "ABCDE")
	var got []byte
	for {
		b, ok := p.Getc()
		if !ok {
			break
		}
		got = append(got, b)
	}
	if string(got) != "ABCD" {
		t.Errorf("Expected \"ABCD\", got %q", got)
	}
	if s := p.Stats(); s.Dropped != 1 || s.Received != 4 {
		t.Errorf("Expected 4 received and 1 dropped, got %+v", s)
	}
}

func TestPortDropRecordsEvent(t *testing.T) {
	core.ClearEvents()
	defer core.ClearEvents()

	p := NewPort(3, 1, nil)
	receiveString(p, "xy")

	events := core.Events()
	if len(events) != 1 {
		t.Fatalf("Expected one drop event, got %+v", events)
	}
	evt := events[0]
	if evt.EventType != core.EvtByteDropped || evt.Slot != 3 || evt.Value1 != 'y' || evt.Value2 != 1 {
		t.Errorf("Unexpected drop event: %+v", evt)
	}
}

func TestPortGetsWaitsForNewline(t *testing.T) {
	p := NewPort(1, 32, nil)
	buf := make([]byte, 16)

	receiveString(p, "hel")
	if n := p.Gets(buf); n != 0 {
		t.Errorf("Gets returned %d bytes before newline", n)
	}
	if p.BufferEmpty() {
		t.Error("Gets consumed a partial line")
	}

	receiveString(p, "lo\nnext")
	n := p.Gets(buf)
	if string(buf[:n]) != "hello\n" {
		t.Errorf("Expected \"hello\\n\", got %q", buf[:n])
	}
	if !p.FindCharacter('x') || p.FindCharacter('\n') {
		t.Error("Expected only the partial second line to remain")
	}
}

func TestPortGetsFullBuffers(t *testing.T) {
	// Receive buffer full without a newline: deliver what is there.
	p := NewPort(1, 4, nil)
	receiveString(p, "abcd")
	buf := make([]byte, 16)
	if n := p.Gets(buf); string(buf[:n]) != "abcd" {
		t.Errorf("Expected \"abcd\" from full receive buffer, got %q", buf[:n])
	}

	// Caller buffer smaller than the pending data: fill it.
	p = NewPort(1, 32, nil)
	receiveString(p, "abcdefgh")
	small := make([]byte, 3)
	if n := p.Gets(small); string(small[:n]) != "abc" {
		t.Errorf("Expected \"abc\", got %q", small[:n])
	}
}

func TestPortGetsContext(t *testing.T) {
	p := NewPort(1, 32, nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	go func() {
		time.Sleep(10 * time.Millisecond)
		receiveString(p, "ping")
		time.Sleep(10 * time.Millisecond)
		receiveString(p, "\n")
	}()

	buf := make([]byte, 16)
	n, err := p.GetsContext(ctx, buf)
	if err != nil {
		t.Fatalf("GetsContext failed: %v", err)
	}
	if string(buf[:n]) != "ping\n" {
		t.Errorf("Expected \"ping\\n\", got %q", buf[:n])
	}
}

func TestPortGetsContextCancelled(t *testing.T) {
	p := NewPort(1, 8, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := p.GetsContext(ctx, make([]byte, 4)); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
	if err := p.WaitReadable(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded from WaitReadable, got %v", err)
	}
}

func TestPortTransmit(t *testing.T) {
	var out bytes.Buffer
	p := NewPort(2, 8, &out)

	p.Puts("hello")
	p.Putc('\n')
	if out.String() != "hello\n" {
		t.Errorf("Expected \"hello\\n\", got %q", out.String())
	}

	rxOnly := NewPort(3, 8, nil)
	if err := rxOnly.Puts("x"); !errors.Is(err, ErrNoTransmitter) {
		t.Errorf("Expected ErrNoTransmitter, got %v", err)
	}
}

func TestPortClearBuffer(t *testing.T) {
	p := NewPort(1, 8, nil)
	receiveString(p, "junk")
	p.ClearBuffer()

	if !p.BufferEmpty() {
		t.Error("Expected empty buffer after ClearBuffer")
	}
	receiveString(p, "ok\n")
	buf := make([]byte, 8)
	if n := p.Gets(buf); string(buf[:n]) != "ok\n" {
		t.Errorf("Expected \"ok\\n\" after clear, got %q", buf[:n])
	}
}

func TestPortReadBlocksUntilData(t *testing.T) {
	p := NewPort(4, 8, nil)
	if p.Num() != 4 {
		t.Errorf("Expected port 4, got %d", p.Num())
	}

	got := make(chan string, 1)
	go func() {
		buf := make([]byte, 8)
		n, err := p.Read(buf)
		if err != nil {
			t.Errorf("Read failed: %v", err)
		}
		got <- string(buf[:n])
	}()

	select {
	case s := <-got:
		t.Fatalf("Read returned %q before any byte arrived", s)
	case <-time.After(20 * time.Millisecond):
	}

	p.Receive('o')
	p.Receive('k')

	select {
	case s := <-got:
		if s != "o" && s != "ok" {
			t.Errorf("Expected the received bytes, got %q", s)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Read never woke up")
	}

	if n, err := p.Read(nil); n != 0 || err != nil {
		t.Errorf("Expected empty read for empty slice, got %d, %v", n, err)
	}
}
