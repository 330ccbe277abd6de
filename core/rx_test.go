package core

import (
	"bytes"
	"testing"
)

// spanRecorder collects spans as offsets into the tracker's ring
type spanRecorder struct {
	buf   []byte
	spans [][2]int // [start, end)
	data  []byte
}

func newRecordingTracker(n int) (*RxTracker, *spanRecorder) {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = byte(i)
	}
	rec := &spanRecorder{buf: buf}
	tr := NewRxTracker(buf, rec.consume)
	return tr, rec
}

func (r *spanRecorder) consume(span []byte) {
	start := int(span[0])
	r.spans = append(r.spans, [2]int{start, start + len(span)})
	r.data = append(r.data, span...)
}

func (r *spanRecorder) reset() {
	r.spans = nil
	r.data = nil
}

func TestRxTrackerLinear(t *testing.T) {
	tr, rec := newRecordingTracker(20)
	tr.Check(5)
	rec.reset()

	tr.Check(12)

	if len(rec.spans) != 1 {
		t.Fatalf("Expected 1 span, got %d", len(rec.spans))
	}
	if rec.spans[0] != [2]int{5, 12} {
		t.Errorf("Expected span [5,12), got %v", rec.spans[0])
	}
	if tr.Pos() != 12 {
		t.Errorf("Expected cursor 12, got %d", tr.Pos())
	}
}

func TestRxTrackerWrap(t *testing.T) {
	tr, rec := newRecordingTracker(20)
	tr.Check(18)
	rec.reset()

	tr.Check(3)

	if len(rec.spans) != 2 {
		t.Fatalf("Expected 2 spans, got %d: %v", len(rec.spans), rec.spans)
	}
	if rec.spans[0] != [2]int{18, 20} {
		t.Errorf("Expected first span [18,20), got %v", rec.spans[0])
	}
	if rec.spans[1] != [2]int{0, 3} {
		t.Errorf("Expected second span [0,3), got %v", rec.spans[1])
	}
	if !bytes.Equal(rec.data, []byte{18, 19, 0, 1, 2}) {
		t.Errorf("Bytes out of order: %v", rec.data)
	}
	if tr.Pos() != 3 {
		t.Errorf("Expected cursor 3, got %d", tr.Pos())
	}
}

func TestRxTrackerWrapToZero(t *testing.T) {
	tr, rec := newRecordingTracker(20)
	tr.Check(15)
	rec.reset()

	tr.Check(0)

	if len(rec.spans) != 1 {
		t.Fatalf("Expected only the tail span, got %v", rec.spans)
	}
	if rec.spans[0] != [2]int{15, 20} {
		t.Errorf("Expected span [15,20), got %v", rec.spans[0])
	}
	if tr.Pos() != 0 {
		t.Errorf("Expected cursor 0, got %d", tr.Pos())
	}
}

func TestRxTrackerEqualIsNoop(t *testing.T) {
	tr, rec := newRecordingTracker(20)
	tr.Check(15)
	rec.reset()
	before := tr.Stats()

	// Same position, whether nothing arrived or the producer made a full lap.
	tr.Check(15)

	if len(rec.spans) != 0 {
		t.Errorf("Expected no spans, got %v", rec.spans)
	}
	if tr.Pos() != 15 {
		t.Errorf("Expected cursor unchanged at 15, got %d", tr.Pos())
	}
	if tr.Stats() != before {
		t.Errorf("Stats changed on a no-op check")
	}

	// Progress after the lap is still picked up.
	tr.Check(17)
	if len(rec.spans) != 1 || rec.spans[0] != [2]int{15, 17} {
		t.Errorf("Expected [15,17) after lap, got %v", rec.spans)
	}
}

func TestRxTrackerIdempotent(t *testing.T) {
	tr, rec := newRecordingTracker(20)

	tr.Check(7)
	tr.Check(7)

	if len(rec.spans) != 1 {
		t.Errorf("Expected data only on first call, got %d spans", len(rec.spans))
	}
	if len(rec.data) != 7 {
		t.Errorf("Expected 7 bytes, got %d", len(rec.data))
	}
}

func TestRxTrackerDeliveredLengthProperty(t *testing.T) {
	for n := 1; n <= 24; n++ {
		for oldPos := 0; oldPos < n; oldPos++ {
			for newPos := 0; newPos < n; newPos++ {
				tr, rec := newRecordingTracker(n)
				tr.Check(oldPos)
				rec.reset()

				tr.Check(newPos)

				want := (newPos - oldPos + n) % n
				if len(rec.data) != want {
					t.Fatalf("N=%d old=%d new=%d: expected %d bytes, got %d",
						n, oldPos, newPos, want, len(rec.data))
				}
				if got := Pending(oldPos, newPos, n); got != want {
					t.Fatalf("Pending(%d,%d,%d)=%d, expected %d", oldPos, newPos, n, got, want)
				}

				wantSpans := 0
				switch {
				case newPos > oldPos:
					wantSpans = 1
				case newPos < oldPos && newPos == 0:
					wantSpans = 1
				case newPos < oldPos:
					wantSpans = 2
				}
				if len(rec.spans) != wantSpans {
					t.Fatalf("N=%d old=%d new=%d: expected %d spans, got %v",
						n, oldPos, newPos, wantSpans, rec.spans)
				}

				// Bytes arrive in ring order starting at the old cursor.
				for i, b := range rec.data {
					if int(b) != (oldPos+i)%n {
						t.Fatalf("N=%d old=%d new=%d: byte %d is %d", n, oldPos, newPos, i, b)
					}
				}
				if tr.Pos() != newPos {
					t.Fatalf("N=%d: cursor %d, expected %d", n, tr.Pos(), newPos)
				}
			}
		}
	}
}

func TestRxTrackerStreamNeverSkipsOrRepeats(t *testing.T) {
	// Producer advances by varying steps, always less than a lap.
	const n = 20
	buf := make([]byte, n)
	var got []byte
	tr := NewRxTracker(buf, func(span []byte) { got = append(got, span...) })

	var want []byte
	var seq byte
	pos := 0
	steps := []int{3, 10, 7, 19, 1, 0, 12, 5, 18, 2}
	for _, step := range steps {
		for i := 0; i < step; i++ {
			buf[pos] = seq
			want = append(want, seq)
			seq++
			pos = (pos + 1) % n
		}
		tr.Check(pos)
	}

	if !bytes.Equal(got, want) {
		t.Errorf("Stream mismatch:\n got %v\nwant %v", got, want)
	}
	if st := tr.Stats(); int(st.Bytes) != len(want) {
		t.Errorf("Expected %d bytes in stats, got %d", len(want), st.Bytes)
	}
}

func TestRxTrackerSpanIsCapped(t *testing.T) {
	buf := make([]byte, 8)
	tr := NewRxTracker(buf, func(span []byte) {
		if cap(span) != len(span) {
			t.Errorf("Span capacity %d exceeds length %d", cap(span), len(span))
		}
		_ = append(span, 0xFF)
	})
	tr.Check(3)
	if buf[3] != 0 {
		t.Errorf("Consumer append wrote into the ring")
	}
}

func TestRxTrackerOutOfRangePanics(t *testing.T) {
	for _, pos := range []int{-1, 20, 21} {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("Check(%d) did not panic", pos)
				}
			}()
			tr, _ := newRecordingTracker(20)
			tr.Check(pos)
		}()
	}
}

func TestRxTrackerNotifyCountsTriggers(t *testing.T) {
	ClearRxRing()
	tr, _ := newRecordingTracker(20)

	tr.Notify(TriggerHalfTransfer, 10)
	tr.Notify(TriggerTransferComplete, 0)
	tr.Notify(TriggerIdleLine, 4)
	tr.Notify(TriggerIdleLine, 4)

	st := tr.Stats()
	if st.Triggers[TriggerHalfTransfer] != 1 || st.Triggers[TriggerTransferComplete] != 1 {
		t.Errorf("Unexpected HT/TC counts: %v", st.Triggers)
	}
	if st.Triggers[TriggerIdleLine] != 2 {
		t.Errorf("Expected 2 idle triggers, got %d", st.Triggers[TriggerIdleLine])
	}
	if st.Checks != 3 {
		t.Errorf("Expected 3 productive checks, got %d", st.Checks)
	}
	if st.Bytes != 24 {
		t.Errorf("Expected 24 bytes, got %d", st.Bytes)
	}
	if st.Wraps != 1 {
		t.Errorf("Expected 1 wrap, got %d", st.Wraps)
	}

	events := RxEvents()
	if len(events) != 4 {
		t.Fatalf("Expected 4 ring events, got %d", len(events))
	}
	if events[1].Trigger != TriggerTransferComplete || events[1].OldPos != 10 || events[1].Bytes != 10 {
		t.Errorf("Unexpected TC event: %+v", events[1])
	}
	if events[3].Bytes != 0 {
		t.Errorf("Expected empty idle event, got %+v", events[3])
	}
}

func TestRxTrackerReset(t *testing.T) {
	tr, _ := newRecordingTracker(20)
	tr.Check(9)
	tr.Reset()
	if tr.Pos() != 0 {
		t.Errorf("Expected cursor 0 after reset, got %d", tr.Pos())
	}
	if tr.Stats() != (RxStats{}) {
		t.Errorf("Expected zero stats after reset")
	}
}

func TestTriggerString(t *testing.T) {
	testCases := map[Trigger]string{
		TriggerHalfTransfer:     "HT",
		TriggerTransferComplete: "TC",
		TriggerIdleLine:         "IDLE",
		TriggerPoll:             "POLL",
		Trigger(42):             "UNKNOWN",
	}
	for trig, want := range testCases {
		if trig.String() != want {
			t.Errorf("Trigger(%d).String() = %q, expected %q", trig, trig.String(), want)
		}
	}
}
