package loopback

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uartdma/protocol"
)

// echoPort loops everything written back to the reader, like a board
// running the echo firmware. dropAt removes one byte from the stream.
type echoPort struct {
	pr *io.PipeReader
	pw *io.PipeWriter

	mu      sync.Mutex
	written int
	dropAt  int
}

func newEchoPort() *echoPort {
	pr, pw := io.Pipe()
	return &echoPort{pr: pr, pw: pw, dropAt: -1}
}

func (p *echoPort) Read(b []byte) (int, error) { return p.pr.Read(b) }

func (p *echoPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	start := p.written
	p.written += len(b)
	p.mu.Unlock()

	data := b
	if i := p.dropAt - start; i >= 0 && i < len(b) {
		data = append(append([]byte{}, b[:i]...), b[i+1:]...)
	}
	if _, err := p.pw.Write(data); err != nil {
		return 0, err
	}
	return len(b), nil
}

func (p *echoPort) Close() error {
	p.pw.Close()
	return p.pr.Close()
}

func (p *echoPort) Flush() error { return nil }

func testConfig(count int) Config {
	cfg := DefaultConfig()
	cfg.Count = count
	cfg.PayloadSize = 8
	cfg.EchoTimeout = 200 * time.Millisecond
	return cfg
}

func TestLoopbackNoLoss(t *testing.T) {
	port := newEchoPort()
	defer port.Close()

	tester, err := New(port, testConfig(50))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	report, err := tester.Run(ctx)
	require.NoError(t, err)

	assert.True(t, report.OK(), report.String())
	assert.Equal(t, 50, report.Received)
	assert.Zero(t, report.Missing)
	assert.Zero(t, report.Resyncs)
	assert.Zero(t, report.Overruns)
	assert.Equal(t, 50*14, report.Bytes)
}

func TestLoopbackDetectsDroppedByte(t *testing.T) {
	port := newEchoPort()
	defer port.Close()
	port.dropAt = 3*14 + 5 // inside the payload of probe 3

	tester, err := New(port, testConfig(20))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	report, err := tester.Run(ctx)
	require.NoError(t, err)

	assert.False(t, report.OK())
	assert.Equal(t, 19, report.Received)
	assert.Equal(t, 1, report.Missing)
	assert.Equal(t, uint32(1), report.Resyncs)
}

func TestWaitBanner(t *testing.T) {
	port := newEchoPort()
	defer port.Close()

	tester, err := New(port, testConfig(5))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	tester.Start(ctx)

	// Reset noise, then the banner split across writes.
	go func() {
		_, _ = port.pw.Write([]byte("\x00\xffHello "))
		_, _ = port.pw.Write([]byte("World\r\n"))
	}()
	require.NoError(t, tester.WaitBanner(ctx))

	report, err := tester.Run(ctx)
	require.NoError(t, err)
	assert.True(t, report.OK(), report.String())
}

func TestWaitBannerTimeout(t *testing.T) {
	port := newEchoPort()
	defer port.Close()

	tester, err := New(port, testConfig(1))
	require.NoError(t, err)

	runCtx, stop := context.WithCancel(context.Background())
	defer stop()
	tester.Start(runCtx)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, tester.WaitBanner(ctx), context.DeadlineExceeded)
}

func TestPayloadTooLarge(t *testing.T) {
	cfg := testConfig(1)
	cfg.PayloadSize = protocol.PayloadMax + 1
	_, err := New(newEchoPort(), cfg)
	assert.ErrorIs(t, err, ErrPayloadSize)
}

func TestPayloadAvoidsSync(t *testing.T) {
	for gen := uint32(0); gen < 30; gen++ {
		for _, b := range Payload(gen, protocol.PayloadMax) {
			require.NotEqual(t, byte(protocol.MessageValueSync), b)
		}
	}
}

// bufferedUART is a drivers.UART over a bytes.Buffer
type bufferedUART struct {
	bytes.Buffer
}

func (u *bufferedUART) Buffered() int { return u.Len() }

func TestReadBuffered(t *testing.T) {
	u := &bufferedUART{}
	p := make([]byte, 4)
	assert.Zero(t, readBuffered(u, p))

	u.WriteString("Hello")
	assert.Equal(t, 4, readBuffered(u, p))
	assert.Equal(t, "Hell", string(p))
	assert.Equal(t, 1, readBuffered(u, p))

	// The receive stream is consumed through the same interface.
	tester, err := New(newEchoPort(), testConfig(1))
	require.NoError(t, err)
	tester.stream.Consume([]byte("ok"))
	assert.Equal(t, 2, readBuffered(tester.uart, p))
	assert.Equal(t, "ok", string(p[:2]))
}
