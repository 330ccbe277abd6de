package protocol

// CRC16Init is the register value before any byte is processed
const CRC16Init = 0xFFFF

// CRC16 returns the CRC-16/MCRF4XX checksum of data, the one carried in
// every probe trailer.
func CRC16(data []byte) uint16 {
	return CRC16Update(CRC16Init, data)
}

// CRC16Update continues a checksum over more data, so a frame can be
// checked as it arrives in pieces.
func CRC16Update(crc uint16, data []byte) uint16 {
	for _, b := range data {
		b ^= uint8(crc)
		b ^= b << 4
		w := uint16(b)
		crc = (w<<8 | crc>>8) ^ (w >> 4) ^ (w << 3)
	}
	return crc
}
