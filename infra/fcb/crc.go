package fcb

import (
	"encoding/binary"
	"hash/crc32"
)

// entryChecksum covers the length field followed by the payload, so a torn
// length write is caught as well as a torn payload.
func entryChecksum(n uint32, payload []byte) uint32 {
	var lenField [lenFieldSize]byte
	binary.LittleEndian.PutUint16(lenField[:], uint16(n))
	sum := crc32.Update(0, crc32.IEEETable, lenField[:])
	return crc32.Update(sum, crc32.IEEETable, payload)
}
