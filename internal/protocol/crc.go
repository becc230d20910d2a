package protocol

import (
	"encoding/binary"

	"github.com/sigurn/crc16"
)

var modbusTable = crc16.MakeTable(crc16.CRC16_MODBUS)

// ChecksumTrailer computes the CRC16/Modbus trailer over the wire bytes
// preceding it, big-endian as transmitted.
func ChecksumTrailer(frame []byte) uint16 {
	return crc16.Checksum(frame[:len(frame)-TrailerLen], modbusTable)
}

// VerifyTrailer checks the trailer of a complete masked frame. The check runs
// over the bytes as transmitted, before unmasking. The original service never
// rejected on mismatch, so callers log and count failures but still decode.
func VerifyTrailer(frame []byte) bool {
	if len(frame) < HeaderLen+TrailerLen {
		return false
	}
	got := binary.BigEndian.Uint16(frame[len(frame)-TrailerLen:])
	return ChecksumTrailer(frame) == got
}
