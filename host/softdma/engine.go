// Package softdma emulates the receive half of a UART wired to a circular
// DMA channel, so that the receive tracker can be driven by a host serial
// port exactly as the firmware drives it from interrupts.
//
// The producer side copies incoming bytes into the ring and raises
// half-transfer and transfer-complete events at the ring midpoint and end,
// and an idle-line event when the line goes quiet. The consumer side runs
// the tracker from a single goroutine, which plays the part of the
// interrupt handlers.
package softdma

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"uartdma/core"
)

var (
	ErrNoSource   = errors.New("softdma: no source reader")
	ErrAlreadyRun = errors.New("softdma: engine has already run")
	ErrRingSize   = errors.New("softdma: ring must hold at least 2 bytes")
)

// Config controls the emulated channel.
type Config struct {
	RingSize    int           // DMA buffer length
	IdleTimeout time.Duration // quiet time before an IDLE event
	ReadChunk   int           // bytes requested per source read

	// Lockstep makes the producer wait until each event has been serviced
	// before writing further. This models interrupt latency shorter than
	// half a ring; without it a slow consumer can be lapped.
	Lockstep bool

	// TimeoutEOF treats io.EOF from the source as a read timeout rather
	// than the end of the stream. tarm/serial reports timeouts that way.
	TimeoutEOF bool

	Logger *zerolog.Logger
}

// DefaultConfig returns a 20 byte ring with lockstep servicing.
func DefaultConfig() Config {
	return Config{
		RingSize:    core.RxDMABufferSize,
		IdleTimeout: 5 * time.Millisecond,
		ReadChunk:   64,
		Lockstep:    true,
	}
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.RingSize == 0 {
		c.RingSize = def.RingSize
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = def.IdleTimeout
	}
	if c.ReadChunk <= 0 {
		c.ReadChunk = def.ReadChunk
	}
	if c.Logger == nil {
		nop := zerolog.Nop()
		c.Logger = &nop
	}
}

// Stats counts engine activity. Produced and Consumed are monotonic byte
// counts; any gap left after a check is lost data.
type Stats struct {
	Produced uint64
	Consumed uint64
	Lost     uint64

	HalfTransfer     uint32
	TransferComplete uint32
	Idle             uint32
	Coalesced        uint32 // events merged into one already pending
	Overruns         uint32 // checks that found the ring lapped

	Rx core.RxStats
}

// Engine is a software DMA channel feeding a core.RxService.
type Engine struct {
	cfg Config
	src io.Reader
	log zerolog.Logger

	mu    sync.Mutex // guards the ring, the write index and every check
	ring  []byte
	pos   int
	stats Stats

	svc     *core.RxService
	events  chan core.Trigger
	handled chan struct{}
	ran     atomic.Bool
}

var _ core.RxDMADriver = (*Engine)(nil)

// New builds an engine reading from src and delivering spans to consume.
// src may be nil when bytes are pushed with Write.
func New(src io.Reader, cfg Config, consume core.SpanConsumer) (*Engine, error) {
	cfg.applyDefaults()
	e := &Engine{
		cfg:     cfg,
		src:     src,
		log:     cfg.Logger.With().Str("component", "softdma").Logger(),
		events:  make(chan core.Trigger, 8),
		handled: make(chan struct{}, 1),
	}

	counted := func(span []byte) {
		// runs inside Service with e.mu held
		e.stats.Consumed += uint64(len(span))
		consume(span)
	}
	svc, err := core.NewRxService(e, core.RxModeInterrupt, cfg.RingSize, counted)
	if err != nil {
		return nil, err
	}
	e.svc = svc
	return e, nil
}

// Start attaches the ring. It is called once by core.NewRxService.
func (e *Engine) Start(buf []byte) error {
	if len(buf) < 2 {
		return ErrRingSize
	}
	e.ring = buf
	e.pos = 0
	return nil
}

// Remaining mirrors the DMA CNDTR register. Callers hold e.mu.
func (e *Engine) Remaining() int {
	return len(e.ring) - e.pos
}

// Write pushes bytes onto the emulated wire. Events are raised without
// waiting for them to be serviced.
func (e *Engine) Write(p []byte) (int, error) {
	e.write(context.Background(), p, false)
	return len(p), nil
}

func (e *Engine) write(ctx context.Context, data []byte, wait bool) {
	n := len(e.ring)
	half := n / 2
	for len(data) > 0 {
		e.mu.Lock()
		limit, trig := half, core.TriggerHalfTransfer
		if e.pos >= half {
			limit, trig = n, core.TriggerTransferComplete
		}
		k := limit - e.pos
		if k > len(data) {
			k = len(data)
		}
		copy(e.ring[e.pos:], data[:k])
		e.pos += k
		e.stats.Produced += uint64(k)
		data = data[k:]
		hit := e.pos == limit
		if e.pos == n {
			e.pos = 0
		}
		e.mu.Unlock()

		if hit {
			e.raise(ctx, trig, wait)
		}
	}
}

// raise queues an event. A full queue means the flag is already pending,
// so the event is merged into it.
func (e *Engine) raise(ctx context.Context, t core.Trigger, wait bool) {
	if !wait {
		select {
		case e.events <- t:
		default:
			e.mu.Lock()
			e.stats.Coalesced++
			e.mu.Unlock()
		}
		return
	}
	select {
	case e.events <- t:
	case <-ctx.Done():
		return
	}
	select {
	case <-e.handled:
	case <-ctx.Done():
	}
}

// Service runs one check for t, as the interrupt handler would, and
// accounts for any bytes the check could not deliver.
func (e *Engine) Service(t core.Trigger) error {
	e.mu.Lock()
	if err := e.svc.HandleEvent(t); err != nil {
		e.mu.Unlock()
		return err
	}
	switch t {
	case core.TriggerHalfTransfer:
		e.stats.HalfTransfer++
	case core.TriggerTransferComplete:
		e.stats.TransferComplete++
	case core.TriggerIdleLine:
		e.stats.Idle++
	}
	lost := e.stats.Produced - e.stats.Consumed
	if lost > 0 {
		e.stats.Overruns++
		e.stats.Lost += lost
		e.stats.Consumed = e.stats.Produced
	}
	pos := e.svc.Tracker().Pos()
	e.mu.Unlock()

	if lost > 0 {
		e.log.Warn().Str("trigger", t.String()).Uint64("lost", lost).Msg("ring overrun")
	}
	e.log.Debug().Str("trigger", t.String()).Int("pos", pos).Msg("rx check")
	return nil
}

// Stats returns a snapshot of the counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.stats
	s.Rx = e.svc.Tracker().Stats()
	return s
}

// Run moves bytes from the source into the ring and services events until
// the source ends or ctx is done. A source ending with io.EOF is a clean
// stop; the trailing bytes are flushed with a final IDLE event. An engine
// runs once; afterwards it can still be driven with Write and Service.
func (e *Engine) Run(ctx context.Context) error {
	if e.src == nil {
		return ErrNoSource
	}
	if !e.ran.CompareAndSwap(false, true) {
		return ErrAlreadyRun
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	chunks := make(chan []byte, 4)
	readErr := make(chan error, 1)
	go e.readLoop(ctx, chunks, readErr)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		e.serviceLoop(stop)
	}()

	err := e.produceLoop(ctx, chunks, readErr)
	close(stop)
	wg.Wait()
	return err
}

func (e *Engine) readLoop(ctx context.Context, chunks chan<- []byte, readErr chan<- error) {
	defer close(chunks)
	buf := make([]byte, e.cfg.ReadChunk)
	for {
		n, err := e.src.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			select {
			case chunks <- data:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				if e.cfg.TimeoutEOF && ctx.Err() == nil {
					continue
				}
				return
			}
			readErr <- err
			return
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (e *Engine) produceLoop(ctx context.Context, chunks <-chan []byte, readErr <-chan error) error {
	idle := time.NewTimer(e.cfg.IdleTimeout)
	idle.Stop()
	defer idle.Stop()
	var idleC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case data, ok := <-chunks:
			if !ok {
				e.raise(ctx, core.TriggerIdleLine, true)
				select {
				case err := <-readErr:
					e.log.Error().Err(err).Msg("source read failed")
					return err
				default:
					return nil
				}
			}
			e.write(ctx, data, e.cfg.Lockstep)
			idle.Reset(e.cfg.IdleTimeout)
			idleC = idle.C

		case <-idleC:
			idleC = nil
			e.raise(ctx, core.TriggerIdleLine, e.cfg.Lockstep)
		}
	}
}

// serviceLoop handles events until stop is closed, then drains what is
// already queued. The events channel is never closed, so Write stays safe
// after Run returns.
func (e *Engine) serviceLoop(stop <-chan struct{}) {
	for {
		select {
		case t := <-e.events:
			e.handle(t)
		case <-stop:
			for {
				select {
				case t := <-e.events:
					e.handle(t)
				default:
					return
				}
			}
		}
	}
}

func (e *Engine) handle(t core.Trigger) {
	if err := e.Service(t); err != nil {
		e.log.Error().Err(err).Str("trigger", t.String()).Msg("rx check rejected")
	}
	select {
	case e.handled <- struct{}{}:
	default:
	}
}
