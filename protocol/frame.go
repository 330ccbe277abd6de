package protocol

import (
	"errors"
	"fmt"
)

// ErrFrameTooLong is returned when a payload does not fit in one frame.
var ErrFrameTooLong = errors.New("probe frame too long")

// Probe is one decoded frame
type Probe struct {
	Generation uint32
	Payload    []byte
}

// EncodeProbe builds a frame carrying generation and payload.
func EncodeProbe(generation uint32, payload []byte) ([]byte, error) {
	msgLen := MessageLengthMin + VLQLen(generation) + len(payload)
	if msgLen > MessageLengthMax {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrFrameTooLong, msgLen, MessageLengthMax)
	}

	frame := make([]byte, 0, msgLen)
	frame = append(frame, uint8(msgLen), MessageDest|uint8(generation&MessageSeqMask))
	frame = AppendVLQUint(frame, generation)
	frame = append(frame, payload...)

	crc := CRC16(frame)
	frame = append(frame, uint8(crc>>8), uint8(crc), MessageValueSync)
	return frame, nil
}

// DecoderStats counts what the decoder saw
type DecoderStats struct {
	Frames    uint32 // valid frames delivered
	Resyncs   uint32 // times framing was lost
	Discarded uint32 // bytes skipped while hunting for a sync byte
	BadCRC    uint32 // frames dropped on CRC or sequence mismatch
}

// ProbeDecoder reassembles probes from an arbitrarily chunked byte stream.
// After any framing error it drops bytes up to the next sync byte.
type ProbeDecoder struct {
	input   *FifoBuffer
	onProbe func(Probe)
	synced  bool
	stats   DecoderStats
}

// NewProbeDecoder calls onProbe for every valid frame. The payload is a
// fresh copy.
func NewProbeDecoder(onProbe func(Probe)) *ProbeDecoder {
	return &ProbeDecoder{
		input:   NewFifoBuffer(4 * MessageLengthMax),
		onProbe: onProbe,
		synced:  true,
	}
}

// Feed adds received bytes and decodes every complete frame.
func (d *ProbeDecoder) Feed(data []byte) {
	for len(data) > 0 {
		n := d.input.Write(data)
		data = data[n:]
		d.process()
		if n == 0 && d.input.Free() == 0 {
			// A full buffer with no frame in it is garbage.
			d.stats.Discarded += uint32(d.input.Available())
			d.input.Reset()
			d.lostSync()
		}
	}
}

// Stats returns a copy of the counters
func (d *ProbeDecoder) Stats() DecoderStats {
	return d.stats
}

func (d *ProbeDecoder) lostSync() {
	if d.synced {
		d.stats.Resyncs++
	}
	d.synced = false
}

func (d *ProbeDecoder) process() {
	data := d.input.Data()

	for len(data) > 0 {
		if !d.synced {
			syncPos := -1
			for i, b := range data {
				if b == MessageValueSync {
					syncPos = i
					break
				}
			}
			if syncPos < 0 {
				d.stats.Discarded += uint32(len(data))
				data = nil
				break
			}
			d.stats.Discarded += uint32(syncPos + 1)
			data = data[syncPos+1:]
			d.synced = true
			continue
		}

		// Leading sync bytes are frame separators
		if data[0] == MessageValueSync {
			data = data[1:]
			continue
		}

		if len(data) < MessageLengthMin {
			break
		}

		msgLen := int(data[MessagePositionLen])
		if msgLen < MessageLengthMin+1 || msgLen > MessageLengthMax {
			d.lostSync()
			continue
		}

		seq := data[MessagePositionSeq]
		if seq&^MessageSeqMask != MessageDest {
			d.lostSync()
			continue
		}

		if len(data) < msgLen {
			break
		}

		if data[msgLen-MessageTrailerSync] != MessageValueSync {
			d.lostSync()
			continue
		}

		frameCRC := uint16(data[msgLen-MessageTrailerCRC])<<8 |
			uint16(data[msgLen-MessageTrailerCRC+1])
		if frameCRC != CRC16(data[:msgLen-MessageTrailerSize]) {
			d.stats.BadCRC++
			d.lostSync()
			continue
		}

		body := data[MessageHeaderSize : msgLen-MessageTrailerSize]
		data = data[msgLen:]

		gen, err := DecodeVLQUint(&body)
		if err != nil || uint8(gen&MessageSeqMask) != seq&MessageSeqMask {
			d.stats.BadCRC++
			continue
		}

		d.stats.Frames++
		if d.onProbe != nil {
			payload := make([]byte, len(body))
			copy(payload, body)
			d.onProbe(Probe{Generation: gen, Payload: payload})
		}
	}

	consumed := d.input.Available() - len(data)
	if consumed > 0 {
		d.input.Pop(consumed)
	}
}
