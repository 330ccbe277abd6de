// Package protocol implements the framing used to probe the UART echo path.
//
// A probe is a self-checking frame. The host sends a numbered run of them,
// the firmware echoes the raw bytes, and the host decodes what comes back:
// a missing generation means bytes were lost somewhere in between, most
// likely by the DMA engine lapping the receive cursor.
package protocol

// Frame layout
//
//	[len][0x10|gen&0x0F][VLQ gen][payload...][crc hi][crc lo][0x7E]
//
// len counts the whole frame. The CRC covers everything before it.
const (
	MessageHeaderSize  = 2
	MessageTrailerSize = 3
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 64
	MessagePositionLen = 0
	MessagePositionSeq = 1
	MessageTrailerCRC  = 3
	MessageTrailerSync = 1
	MessageValueSync   = 0x7E
	MessageDest        = 0x10

	MessageSeqMask = 0x0F

	// PayloadMax leaves room for a five byte generation.
	PayloadMax = MessageLengthMax - MessageLengthMin - 5
)
