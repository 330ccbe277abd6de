// Package loopback verifies a board running the echo firmware: it sends
// numbered probe frames and checks that every one comes back intact.
package loopback

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"tinygo.org/x/drivers"

	"uartdma/core"
	"uartdma/host/serial"
	"uartdma/host/softdma"
	"uartdma/protocol"
)

// Banner is what the firmware prints after reset.
const Banner = "Hello World\r\n"

var ErrPayloadSize = errors.New("loopback: payload does not fit in a probe frame")

// Config controls a test run.
type Config struct {
	Count       int           // probes to send
	PayloadSize int           // bytes of payload per probe
	Interval    time.Duration // pause between probes
	EchoTimeout time.Duration // wait for stragglers after the last send

	Engine softdma.Config
	Logger *zerolog.Logger
}

// DefaultConfig sends 100 probes of 16 bytes
func DefaultConfig() Config {
	return Config{
		Count:       100,
		PayloadSize: 16,
		EchoTimeout: 2 * time.Second,
		Engine:      softdma.DefaultConfig(),
	}
}

// Report summarises a run.
type Report struct {
	Sent     int
	Received int
	Missing  int
	Corrupt  int
	Resyncs  uint32
	Bytes    int
	Overruns uint32
	Elapsed  time.Duration
}

// OK reports whether every probe came back intact.
func (r *Report) OK() bool {
	return r.Sent == r.Received && r.Missing == 0 && r.Corrupt == 0
}

func (r *Report) String() string {
	return fmt.Sprintf("sent=%d received=%d missing=%d corrupt=%d resyncs=%d bytes=%d overruns=%d elapsed=%s",
		r.Sent, r.Received, r.Missing, r.Corrupt, r.Resyncs, r.Bytes, r.Overruns, r.Elapsed)
}

// Tester drives one port. Received bytes pass through the same tracker
// the firmware uses, then through an RxStream into the probe decoder.
type Tester struct {
	cfg  Config
	port serial.Port
	log  zerolog.Logger

	stream  *core.RxStream
	uart    drivers.UART // the stream, as the tester reads and writes it
	engine  *softdma.Engine
	decMu   sync.Mutex // guards decoder
	decoder *protocol.ProbeDecoder

	mu       sync.Mutex
	received map[uint32]bool
	corrupt  int
	bytes    int
	leftover []byte // bytes that followed the banner

	engineDone chan error
	started    bool
}

// New builds a tester over port.
func New(port serial.Port, cfg Config) (*Tester, error) {
	if cfg.PayloadSize < 0 || cfg.PayloadSize > protocol.PayloadMax {
		return nil, fmt.Errorf("%w: %d (max %d)", ErrPayloadSize, cfg.PayloadSize, protocol.PayloadMax)
	}
	if cfg.Logger == nil {
		nop := zerolog.Nop()
		cfg.Logger = &nop
	}
	if cfg.Engine.Logger == nil {
		cfg.Engine.Logger = cfg.Logger
	}

	t := &Tester{
		cfg:        cfg,
		port:       port,
		log:        cfg.Logger.With().Str("component", "loopback").Logger(),
		stream:     core.NewRxStream(1024, port),
		received:   make(map[uint32]bool),
		engineDone: make(chan error, 1),
	}
	t.uart = t.stream
	t.decoder = protocol.NewProbeDecoder(t.onProbe)

	engine, err := softdma.New(port, cfg.Engine, t.stream.Consume)
	if err != nil {
		return nil, err
	}
	t.engine = engine
	return t, nil
}

// Start runs the receive engine until ctx is done or the port ends.
func (t *Tester) Start(ctx context.Context) {
	if t.started {
		return
	}
	t.started = true
	go func() {
		err := t.engine.Run(ctx)
		t.stream.Close()
		t.engineDone <- err
	}()
}

// WaitBanner reads until the reset banner has been seen.
func (t *Tester) WaitBanner(ctx context.Context) error {
	banner := []byte(Banner)
	var acc []byte
	buf := make([]byte, 64)
	for {
		n := readBuffered(t.uart, buf)
		if n == 0 {
			if err := t.stream.WaitReadable(ctx); err != nil {
				return fmt.Errorf("waiting for banner: %w", err)
			}
			continue
		}
		acc = append(acc, buf[:n]...)
		if i := bytes.Index(acc, banner); i >= 0 {
			t.mu.Lock()
			t.leftover = append(t.leftover, acc[i+len(banner):]...)
			t.mu.Unlock()
			t.log.Info().Msg("banner received")
			return nil
		}
		if len(acc) > 4*len(banner) {
			acc = acc[len(acc)-len(banner):]
		}
	}
}

// Run sends the probes and collects echoes. Start is called if needed.
func (t *Tester) Run(ctx context.Context) (*Report, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	t.Start(ctx)

	start := time.Now()
	sendDone := make(chan error, 1)
	go func() { sendDone <- t.send(ctx) }()

	progress := make(chan struct{}, 1)
	readerDone := make(chan struct{})
	go t.readLoop(ctx, progress, readerDone)

	var deadline <-chan time.Time
loop:
	for t.receivedCount() < t.cfg.Count {
		select {
		case <-progress:
		case err := <-sendDone:
			if err != nil {
				return nil, err
			}
			timer := time.NewTimer(t.cfg.EchoTimeout)
			defer timer.Stop()
			deadline = timer.C
		case <-deadline:
			t.log.Warn().Msg("echo timeout")
			break loop
		case <-readerDone:
			break loop
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return t.report(time.Since(start)), nil
}

func (t *Tester) send(ctx context.Context) error {
	for gen := 0; gen < t.cfg.Count; gen++ {
		frame, err := protocol.EncodeProbe(uint32(gen), Payload(uint32(gen), t.cfg.PayloadSize))
		if err != nil {
			return err
		}
		if _, err := t.uart.Write(frame); err != nil {
			return fmt.Errorf("sending probe %d: %w", gen, err)
		}
		if t.cfg.Interval > 0 {
			select {
			case <-time.After(t.cfg.Interval):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	t.log.Debug().Int("count", t.cfg.Count).Msg("all probes sent")
	return nil
}

func (t *Tester) readLoop(ctx context.Context, progress chan<- struct{}, done chan<- struct{}) {
	defer close(done)

	t.mu.Lock()
	leftover := t.leftover
	t.leftover = nil
	t.mu.Unlock()
	if len(leftover) > 0 {
		t.feed(leftover)
	}

	buf := make([]byte, 128)
	for {
		n := readBuffered(t.uart, buf)
		if n == 0 {
			if err := t.stream.WaitReadable(ctx); err != nil {
				return
			}
			continue
		}
		t.feed(buf[:n])
		select {
		case progress <- struct{}{}:
		default:
		}
	}
}

func (t *Tester) feed(data []byte) {
	t.mu.Lock()
	t.bytes += len(data)
	t.mu.Unlock()

	t.decMu.Lock()
	t.decoder.Feed(data)
	t.decMu.Unlock()
}

func (t *Tester) onProbe(p protocol.Probe) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p.Generation >= uint32(t.cfg.Count) ||
		!bytes.Equal(p.Payload, Payload(p.Generation, t.cfg.PayloadSize)) {
		t.corrupt++
		t.log.Warn().Uint32("gen", p.Generation).Msg("probe payload mismatch")
		return
	}
	t.received[p.Generation] = true
}

func (t *Tester) receivedCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.received)
}

func (t *Tester) report(elapsed time.Duration) *Report {
	t.decMu.Lock()
	ds := t.decoder.Stats()
	t.decMu.Unlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	es := t.engine.Stats()
	r := &Report{
		Sent:     t.cfg.Count,
		Received: len(t.received),
		Corrupt:  t.corrupt + int(ds.BadCRC),
		Resyncs:  ds.Resyncs,
		Bytes:    t.bytes,
		Overruns: es.Overruns,
		Elapsed:  elapsed,
	}
	r.Missing = r.Sent - r.Received
	t.log.Info().
		Int("sent", r.Sent).
		Int("received", r.Received).
		Int("missing", r.Missing).
		Int("corrupt", r.Corrupt).
		Uint32("resyncs", r.Resyncs).
		Dur("elapsed", r.Elapsed).
		Msg("loopback finished")
	return r
}

// readBuffered takes whatever u already holds, up to len(p). It never
// blocks, matching machine.UART.
func readBuffered(u drivers.UART, p []byte) int {
	if u.Buffered() == 0 {
		return 0
	}
	n, err := u.Read(p)
	if err != nil {
		return 0
	}
	return n
}

// Payload returns the expected payload for a generation. Bytes are
// lowercase letters so they never collide with the frame sync byte.
func Payload(gen uint32, size int) []byte {
	p := make([]byte, size)
	for i := range p {
		p[i] = 'a' + byte((int(gen)+i)%26)
	}
	return p
}
