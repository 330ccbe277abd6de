package core

// Trigger identifies what caused a receive check.
type Trigger uint8

const (
	TriggerHalfTransfer     Trigger = iota // DMA half-transfer (HT)
	TriggerTransferComplete                // DMA transfer-complete (TC), about to wrap
	TriggerIdleLine                        // USART IDLE, line silent after a burst
	TriggerPoll                            // main loop polling
	triggerCount
)

// String returns the short name used in debug output
func (t Trigger) String() string {
	switch t {
	case TriggerHalfTransfer:
		return "HT"
	case TriggerTransferComplete:
		return "TC"
	case TriggerIdleLine:
		return "IDLE"
	case TriggerPoll:
		return "POLL"
	default:
		return "UNKNOWN"
	}
}

// SpanConsumer receives one contiguous span of newly received bytes.
// The span aliases the DMA ring and must not be retained after return.
type SpanConsumer func(span []byte)

// RxStats counts tracker activity since construction or the last Reset
type RxStats struct {
	Triggers [triggerCount]uint32 // notifications per trigger
	Checks   uint32               // calls that found new data
	Spans    uint32               // consumer invocations
	Bytes    uint32               // total bytes delivered
	Wraps    uint32               // checks that took the two-span path
}

// RxTracker reconciles the write position of a circular DMA buffer
// against the last position handed to the consumer.
//
// It must be driven from a single context: either only from interrupts that
// share one preemption level, or only from the main loop. No locking is done.
type RxTracker struct {
	buf     []byte
	oldPos  int
	consume SpanConsumer
	stats   RxStats
}

// NewRxTracker creates a tracker over buf, which the DMA engine fills
// circularly. The cursor starts at 0.
func NewRxTracker(buf []byte, consume SpanConsumer) *RxTracker {
	if len(buf) == 0 {
		panic("rx: empty DMA buffer")
	}
	if consume == nil {
		panic("rx: nil span consumer")
	}
	return &RxTracker{
		buf:     buf,
		consume: consume,
	}
}

// Check delivers everything written between the cursor and pos, then
// moves the cursor to pos. pos must be in [0, Size()).
func (r *RxTracker) Check(pos int) {
	n := len(r.buf)
	if pos < 0 || pos >= n {
		panic("rx: write position " + itoa(pos) + " outside buffer of " + itoa(n))
	}
	if pos == r.oldPos {
		return
	}

	r.stats.Checks++
	if pos > r.oldPos {
		// Linear: one block [oldPos, pos)
		r.deliver(r.buf[r.oldPos:pos])
	} else {
		// Wrapped: tail [oldPos, N) was written first, then head [0, pos)
		r.stats.Wraps++
		r.deliver(r.buf[r.oldPos:n])
		if pos > 0 {
			r.deliver(r.buf[:pos])
		}
	}
	r.oldPos = pos
}

// Notify records the trigger and runs Check. The reconciliation is the
// same for every trigger; only the cadence differs.
func (r *RxTracker) Notify(t Trigger, pos int) {
	if t < triggerCount {
		r.stats.Triggers[t]++
	}
	old := r.oldPos
	r.Check(pos)
	RecordRx(t, old, pos, Pending(old, pos, len(r.buf)))
}

func (r *RxTracker) deliver(span []byte) {
	r.stats.Spans++
	r.stats.Bytes += uint32(len(span))
	// Cap the slice so the consumer cannot append into the ring.
	r.consume(span[:len(span):len(span)])
}

// Pos returns the cursor: everything before it has been delivered.
func (r *RxTracker) Pos() int {
	return r.oldPos
}

// Size returns the ring capacity N.
func (r *RxTracker) Size() int {
	return len(r.buf)
}

// Stats returns a copy of the counters.
func (r *RxTracker) Stats() RxStats {
	return r.stats
}

// Reset moves the cursor back to 0 and clears the counters. Only valid
// while the DMA channel is stopped and restarted from the beginning.
func (r *RxTracker) Reset() {
	r.oldPos = 0
	r.stats = RxStats{}
}

// Pending returns the forward circular distance from old to pos in a
// ring of size n, i.e. how many bytes a Check(pos) would deliver.
func Pending(old, pos, n int) int {
	return (pos - old + n) % n
}
