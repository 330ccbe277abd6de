package protocol

import (
	"bytes"
	"errors"
	"testing"
)

func collectProbes(t *testing.T) (*ProbeDecoder, *[]Probe) {
	t.Helper()
	var got []Probe
	return NewProbeDecoder(func(p Probe) { got = append(got, p) }), &got
}

func TestProbeRoundTrip(t *testing.T) {
	dec, got := collectProbes(t)

	var stream []byte
	for gen := uint32(0); gen < 40; gen++ {
		frame, err := EncodeProbe(gen*1000, []byte{byte(gen), 0x7E, 0x10})
		if err != nil {
			t.Fatalf("EncodeProbe(%d) failed: %v", gen, err)
		}
		if int(frame[0]) != len(frame) {
			t.Fatalf("Length byte %d, frame is %d bytes", frame[0], len(frame))
		}
		stream = append(stream, frame...)
	}

	// Feed in awkward chunk sizes to cross frame boundaries.
	for len(stream) > 0 {
		n := 7
		if n > len(stream) {
			n = len(stream)
		}
		dec.Feed(stream[:n])
		stream = stream[n:]
	}

	if len(*got) != 40 {
		t.Fatalf("Expected 40 probes, got %d", len(*got))
	}
	for i, p := range *got {
		if p.Generation != uint32(i)*1000 {
			t.Errorf("Probe %d: generation %d", i, p.Generation)
		}
		if !bytes.Equal(p.Payload, []byte{byte(i), 0x7E, 0x10}) {
			t.Errorf("Probe %d: payload %v", i, p.Payload)
		}
	}
	if st := dec.Stats(); st.Resyncs != 0 || st.Discarded != 0 {
		t.Errorf("Expected clean decode, got %+v", st)
	}
}

func TestProbeTooLong(t *testing.T) {
	if _, err := EncodeProbe(0, make([]byte, PayloadMax)); err != nil {
		t.Errorf("PayloadMax should fit: %v", err)
	}
	_, err := EncodeProbe(0, make([]byte, MessageLengthMax))
	if !errors.Is(err, ErrFrameTooLong) {
		t.Errorf("Expected ErrFrameTooLong, got %v", err)
	}
}

func TestProbeResyncAfterGarbage(t *testing.T) {
	dec, got := collectProbes(t)

	f1, _ := EncodeProbe(1, []byte("one"))
	f2, _ := EncodeProbe(2, []byte("two"))
	f3, _ := EncodeProbe(3, []byte("three"))

	var stream []byte
	stream = append(stream, f1...)
	stream = append(stream, 0x01, 0x02, 0x03) // line noise
	stream = append(stream, f2...)
	stream = append(stream, f3...)
	dec.Feed(stream)

	// The noise costs f2: the decoder hunts to f2's trailing sync.
	if len(*got) != 2 || (*got)[0].Generation != 1 || (*got)[1].Generation != 3 {
		t.Fatalf("Expected generations 1 and 3, got %+v", *got)
	}
	st := dec.Stats()
	if st.Resyncs != 1 {
		t.Errorf("Expected 1 resync, got %d", st.Resyncs)
	}
	if st.Discarded == 0 {
		t.Error("Expected discarded bytes to be counted")
	}
}

func TestProbeDroppedBytesFailCRC(t *testing.T) {
	dec, got := collectProbes(t)

	f1, _ := EncodeProbe(10, []byte("abcdefgh"))
	f2, _ := EncodeProbe(11, []byte("ijklmnop"))
	f3, _ := EncodeProbe(12, []byte("qrstuvwx"))

	// Lose two payload bytes from f2, as an overrun would.
	damaged := append([]byte{}, f2[:4]...)
	damaged = append(damaged, f2[6:]...)

	dec.Feed(f1)
	dec.Feed(damaged)
	dec.Feed(f3)

	gens := []uint32{}
	for _, p := range *got {
		gens = append(gens, p.Generation)
	}
	if len(gens) != 2 || gens[0] != 10 || gens[1] != 12 {
		t.Errorf("Expected generations [10 12], got %v", gens)
	}
}

func TestProbeDecoderDiscardsNoise(t *testing.T) {
	dec, got := collectProbes(t)
	noise := bytes.Repeat([]byte{0x55}, 1000)
	dec.Feed(noise)

	f, _ := EncodeProbe(7, []byte("ok"))
	dec.Feed([]byte{MessageValueSync})
	dec.Feed(f)

	if len(*got) != 1 || (*got)[0].Generation != 7 {
		t.Errorf("Expected probe 7 after noise, got %+v", *got)
	}
	if dec.Stats().Discarded < 1000 {
		t.Errorf("Expected noise to be discarded, got %d", dec.Stats().Discarded)
	}
}
