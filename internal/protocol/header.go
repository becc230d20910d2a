package protocol

import (
	"encoding/binary"
	"errors"
)

const (
	// PrefixLen is the length-delimiting prefix: sequence, protocol
	// version and declared length, all big-endian u16.
	PrefixLen = 6
	// HeaderLen is the full cleartext header: prefix plus the unit and
	// message type bytes.
	HeaderLen = 8
	// TrailerLen is the CRC16 trailer carried by protocol versions 5+.
	TrailerLen = 2
)

var ErrShortHeader = errors.New("protocol: frame shorter than header")

// FrameHeader is the fixed-layout cleartext prefix of every frame.
type FrameHeader struct {
	Seq     uint16
	Version uint16
	// Length is the declared byte count following the length field. A
	// complete frame is PrefixLen+Length bytes on the wire.
	Length uint16
	Unit   uint8
	Type   MessageType
}

// ParseHeader extracts the fixed header from a complete frame. It is pure;
// frames shorter than HeaderLen fail with ErrShortHeader and are dropped
// from decoding (the raw bytes stay eligible for raw persistence).
func ParseHeader(frame []byte) (FrameHeader, error) {
	if len(frame) < HeaderLen {
		return FrameHeader{}, ErrShortHeader
	}
	return FrameHeader{
		Seq:     binary.BigEndian.Uint16(frame[0:2]),
		Version: binary.BigEndian.Uint16(frame[2:4]),
		Length:  binary.BigEndian.Uint16(frame[4:6]),
		Unit:    frame[6],
		Type:    MessageType(frame[7]),
	}, nil
}

// HasTrailer reports whether the protocol version appends a CRC16 trailer.
func (h FrameHeader) HasTrailer() bool {
	return h.Version >= 5
}

// BodyBounds returns the [start, end) range of the maskable body within a
// complete frame, excluding the header and any CRC trailer.
func (h FrameHeader) BodyBounds(frameLen int) (int, int) {
	end := frameLen
	if h.HasTrailer() && frameLen >= HeaderLen+TrailerLen {
		end = frameLen - TrailerLen
	}
	if end < HeaderLen {
		return HeaderLen, HeaderLen
	}
	return HeaderLen, end
}
