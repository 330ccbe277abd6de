package core

import (
	"context"
	"errors"
	"io"
	"sync"

	"uartdma/protocol"
)

// ErrStreamClosed is returned by blocking reads after Close.
var ErrStreamClosed = errors.New("rx stream closed")

// RxStream copies delivered spans out of the DMA ring into a larger FIFO so
// that a reader can consume them at its own pace. Read, Write and Buffered
// follow the shape of tinygo's drivers.UART, so code written against that
// interface can sit on top of a tracker.
//
// Consume may run on a different goroutine than Read.
type RxStream struct {
	mu      sync.Mutex
	fifo    *protocol.FifoBuffer
	dropped uint32
	out     io.Writer

	notify chan struct{} // coalesced wake-up for blocked readers
	closed chan struct{}
	once   sync.Once
}

// NewRxStream creates a stream holding up to capacity-1 unread bytes.
// Writes go to out, which may be nil for a receive-only stream.
func NewRxStream(capacity int, out io.Writer) *RxStream {
	return &RxStream{
		fifo:   protocol.NewFifoBuffer(capacity),
		out:    out,
		notify: make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
}

// Consume is a SpanConsumer. Bytes that do not fit are dropped and counted.
func (s *RxStream) Consume(span []byte) {
	s.mu.Lock()
	n := s.fifo.Write(span)
	s.dropped += uint32(len(span) - n)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Read copies buffered bytes into p without blocking. It returns 0, nil
// when nothing is buffered, like machine.UART.
func (s *RxStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fifo.Read(p), nil
}

// Write sends p to the transmit side.
func (s *RxStream) Write(p []byte) (int, error) {
	if s.out == nil {
		return 0, io.ErrClosedPipe
	}
	return s.out.Write(p)
}

// Buffered returns the number of unread bytes.
func (s *RxStream) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fifo.Available()
}

// Dropped returns how many bytes were lost to a full FIFO.
func (s *RxStream) Dropped() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// WaitReadable blocks until data is buffered, the stream is closed, or ctx is done.
func (s *RxStream) WaitReadable(ctx context.Context) error {
	for {
		if s.Buffered() > 0 {
			return nil
		}
		select {
		case <-s.notify:
			// coalesced; re-check
		case <-s.closed:
			if s.Buffered() > 0 {
				return nil
			}
			return ErrStreamClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// ReadContext blocks until at least one byte is available, then reads up to len(p).
func (s *RxStream) ReadContext(ctx context.Context, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for {
		if n, _ := s.Read(p); n > 0 {
			return n, nil
		}
		if err := s.WaitReadable(ctx); err != nil {
			return 0, err
		}
	}
}

// Close releases blocked readers. Buffered data can still be read.
func (s *RxStream) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}
