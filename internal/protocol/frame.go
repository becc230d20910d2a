package protocol

import "encoding/binary"

// DefaultMaxFrameSize bounds the declared length a frame may claim. Growatt
// data records top out around 1 KiB; anything past this is corruption.
const DefaultMaxFrameSize = 8192

// Reader reassembles a per-connection byte stream into complete frames. It
// tolerates arbitrary TCP segmentation: a chunk may carry zero, one or many
// frames, and a frame may span any number of chunks. State is per connection
// and is discarded when the connection closes.
type Reader struct {
	buf []byte
	max int
}

func NewReader(maxFrameSize int) *Reader {
	if maxFrameSize <= 0 {
		maxFrameSize = DefaultMaxFrameSize
	}
	return &Reader{max: maxFrameSize}
}

// Push appends a chunk and extracts every complete frame now available.
// Returned frames are copies; the caller owns them. dropped reports bytes
// discarded while resynchronizing after an implausible length prefix.
func (r *Reader) Push(chunk []byte) (frames [][]byte, dropped int) {
	r.buf = append(r.buf, chunk...)

	for {
		if len(r.buf) < PrefixLen {
			return frames, dropped
		}

		declared := int(binary.BigEndian.Uint16(r.buf[4:6]))
		total := PrefixLen + declared
		if total > r.max {
			dropped += r.resync()
			continue
		}
		if len(r.buf) < total {
			return frames, dropped
		}

		frame := make([]byte, total)
		copy(frame, r.buf[:total])
		frames = append(frames, frame)
		r.buf = r.buf[total:]
	}
}

// Buffered returns the number of bytes held back waiting for a complete frame.
func (r *Reader) Buffered() int {
	return len(r.buf)
}

// plausiblePrefix is the resync target test over a 6-byte window: a known
// protocol version and a declared length that holds at least the unit and
// type bytes within the size guard. Frames shorter than a full header are
// still emitted by Push so the header parser can report them; only
// oversized claims trigger resync.
func (r *Reader) plausiblePrefix(b []byte) bool {
	version := binary.BigEndian.Uint16(b[2:4])
	switch version {
	case 2, 5, 6:
	default:
		return false
	}
	declared := int(binary.BigEndian.Uint16(b[4:6]))
	return declared >= HeaderLen-PrefixLen && PrefixLen+declared <= r.max
}

// resync discards bytes until the buffer starts at something that could be a
// frame prefix again. The wire format has no resynchronization marker, so
// this is a best-effort, potentially lossy heuristic: skip forward to the
// next offset that looks like a prefix, or drop the buffer.
func (r *Reader) resync() int {
	for i := 1; i+PrefixLen <= len(r.buf); i++ {
		if r.plausiblePrefix(r.buf[i : i+PrefixLen]) {
			r.buf = r.buf[i:]
			return i
		}
	}
	// Keep an untestable tail shorter than a prefix; it is re-examined
	// once more bytes arrive.
	n := len(r.buf) - (PrefixLen - 1)
	r.buf = append(r.buf[:0], r.buf[n:]...)
	return n
}
