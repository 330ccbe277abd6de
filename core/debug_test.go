package core

import (
	"strings"
	"sync"
	"testing"
)

func TestRxRingKeepsNewest(t *testing.T) {
	ClearRxRing()
	defer ClearRxRing()

	for i := 0; i < RxRingSize+5; i++ {
		RecordRx(TriggerPoll, i, i+1, 1)
	}
	events := RxEvents()
	if len(events) != RxRingSize {
		t.Fatalf("Expected %d events, got %d", RxRingSize, len(events))
	}
	if events[0].OldPos != 5 {
		t.Errorf("Expected oldest event from check 5, got %d", events[0].OldPos)
	}
	if last := events[len(events)-1]; last.OldPos != RxRingSize+4 {
		t.Errorf("Expected newest event from check %d, got %d", RxRingSize+4, last.OldPos)
	}
}

func TestDumpRxRing(t *testing.T) {
	ClearRxRing()
	defer ClearRxRing()

	var lines []string
	SetDebugWriter(func(s string) { lines = append(lines, s) })
	defer SetDebugWriter(func(string) {})

	SetTime(42)
	RecordRx(TriggerIdleLine, 3, 7, 4)
	DumpRxRing()

	if len(lines) != 3 {
		t.Fatalf("Expected header, 1 event and footer, got %q", lines)
	}
	want := "[RX] IDLE old=3 new=7 bytes=4 clock=42"
	if lines[1] != want {
		t.Errorf("Expected %q, got %q", want, lines[1])
	}
	if !strings.Contains(lines[0], "Dump") {
		t.Errorf("Unexpected header %q", lines[0])
	}
}

func TestRxRingDisabled(t *testing.T) {
	ClearRxRing()
	SetRxRingEnabled(false)
	defer SetRxRingEnabled(true)

	RecordRx(TriggerHalfTransfer, 0, 10, 10)
	if n := len(RxEvents()); n != 0 {
		t.Errorf("Expected no events while disabled, got %d", n)
	}
}

// Trackers on separate goroutines share the ring; run with -race.
func TestRxRingConcurrentTrackers(t *testing.T) {
	ClearRxRing()
	defer ClearRxRing()

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr := NewRxTracker(make([]byte, 20), func([]byte) {})
			for i := 1; i <= 200; i++ {
				tr.Notify(TriggerIdleLine, i%20)
				_ = RxEvents()
			}
		}()
	}
	wg.Wait()

	if n := len(RxEvents()); n != RxRingSize {
		t.Errorf("Expected a full ring of %d events, got %d", RxRingSize, n)
	}
}
