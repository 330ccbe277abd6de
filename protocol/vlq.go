package protocol

import "errors"

var (
	ErrInvalidVLQ   = errors.New("invalid VLQ encoding")
	ErrTruncatedVLQ = errors.New("VLQ ends mid-value")
)

// AppendVLQInt appends v to dst in 7-bit groups, most significant first.
// Values in [-32, 96) take a single byte.
func AppendVLQInt(dst []byte, v int32) []byte {
	if !(-(1<<26) <= v && v < (3<<26)) {
		dst = append(dst, byte((v>>28)&0x7F)|0x80)
	}
	if !(-(1<<19) <= v && v < (3<<19)) {
		dst = append(dst, byte((v>>21)&0x7F)|0x80)
	}
	if !(-(1<<12) <= v && v < (3<<12)) {
		dst = append(dst, byte((v>>14)&0x7F)|0x80)
	}
	if !(-(1<<5) <= v && v < (3<<5)) {
		dst = append(dst, byte((v>>7)&0x7F)|0x80)
	}
	return append(dst, byte(v&0x7F))
}

// AppendVLQUint appends an unsigned value. Probe generations use this; it
// round-trips through DecodeVLQUint for every uint32.
func AppendVLQUint(dst []byte, v uint32) []byte {
	return AppendVLQInt(dst, int32(v))
}

// DecodeVLQInt decodes a signed value and advances data past it.
func DecodeVLQInt(data *[]byte) (int32, error) {
	if len(*data) == 0 {
		return 0, ErrTruncatedVLQ
	}

	c := uint32((*data)[0])
	*data = (*data)[1:]

	v := c & 0x7F
	if c&0x60 == 0x60 {
		// negative: sign extend the first group
		v |= ^uint32(0x1F)
	}

	for n := 1; c&0x80 != 0; n++ {
		if n == 5 {
			return 0, ErrInvalidVLQ
		}
		if len(*data) == 0 {
			return 0, ErrTruncatedVLQ
		}
		c = uint32((*data)[0])
		*data = (*data)[1:]
		v = v<<7 | c&0x7F
	}

	return int32(v), nil
}

// DecodeVLQUint decodes an unsigned value and advances data past it.
func DecodeVLQUint(data *[]byte) (uint32, error) {
	val, err := DecodeVLQInt(data)
	return uint32(val), err
}

// VLQLen returns the encoded size of v in bytes
func VLQLen(v uint32) int {
	s := int32(v)
	switch {
	case -(1<<5) <= s && s < (3<<5):
		return 1
	case -(1<<12) <= s && s < (3<<12):
		return 2
	case -(1<<19) <= s && s < (3<<19):
		return 3
	case -(1<<26) <= s && s < (3<<26):
		return 4
	default:
		return 5
	}
}
