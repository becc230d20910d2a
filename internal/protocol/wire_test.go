package protocol

import (
	"encoding/binary"
	"testing"
)

// buildFrame assembles a complete wire frame: cleartext header, masked body,
// optional CRC trailer for v5+ captures.
func buildFrame(t *testing.T, seq, version uint16, typ MessageType, body []byte, withCRC bool) []byte {
	t.Helper()
	declared := 2 + len(body)
	if withCRC {
		declared += TrailerLen
	}
	frame := make([]byte, PrefixLen+declared)
	binary.BigEndian.PutUint16(frame[0:2], seq)
	binary.BigEndian.PutUint16(frame[2:4], version)
	binary.BigEndian.PutUint16(frame[4:6], uint16(declared))
	frame[6] = 0x01
	frame[7] = byte(typ)
	for i, b := range body {
		frame[HeaderLen+i] = b ^ DefaultMask[i%len(DefaultMask)]
	}
	if withCRC {
		binary.BigEndian.PutUint16(frame[len(frame)-TrailerLen:], ChecksumTrailer(frame))
	}
	return frame
}

func testCipher(t *testing.T) *Cipher {
	t.Helper()
	c, err := NewCipher(DefaultMask)
	if err != nil {
		t.Fatalf("cipher: %v", err)
	}
	return c
}
