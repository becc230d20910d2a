package protocol

import (
	"bytes"
	"encoding/binary"
	"math/rand"
	"testing"
)

func pushAll(r *Reader, stream []byte, chunkSizes []int) (frames [][]byte, dropped int) {
	rest := stream
	for _, n := range chunkSizes {
		if n > len(rest) {
			n = len(rest)
		}
		f, d := r.Push(rest[:n])
		frames = append(frames, f...)
		dropped += d
		rest = rest[n:]
	}
	if len(rest) > 0 {
		f, d := r.Push(rest)
		frames = append(frames, f...)
		dropped += d
	}
	return frames, dropped
}

func TestReaderChunkingInvariance(t *testing.T) {
	var stream []byte
	var want [][]byte
	for seq := uint16(1); seq <= 5; seq++ {
		f := buildFrame(t, seq, 6, TypeData4, bytes.Repeat([]byte{byte(seq)}, 40+int(seq)), true)
		want = append(want, f)
		stream = append(stream, f...)
	}

	whole, dropped := NewReader(0).Push(stream)
	if dropped != 0 {
		t.Fatalf("contiguous push dropped %d bytes", dropped)
	}
	if len(whole) != len(want) {
		t.Fatalf("contiguous push got=%d frames want=%d", len(whole), len(want))
	}

	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 50; trial++ {
		var sizes []int
		remaining := len(stream)
		for remaining > 0 {
			n := 1 + rng.Intn(13)
			if n > remaining {
				n = remaining
			}
			sizes = append(sizes, n)
			remaining -= n
		}
		frames, dropped := pushAll(NewReader(0), stream, sizes)
		if dropped != 0 {
			t.Fatalf("trial %d: dropped %d bytes", trial, dropped)
		}
		if len(frames) != len(want) {
			t.Fatalf("trial %d: got=%d frames want=%d (sizes=%v)", trial, len(frames), len(want), sizes)
		}
		for i := range want {
			if !bytes.Equal(frames[i], want[i]) {
				t.Fatalf("trial %d: frame %d differs from contiguous result", trial, i)
			}
		}
	}
}

func TestReaderManyFramesInOneChunk(t *testing.T) {
	f1 := buildFrame(t, 1, 6, TypePing, []byte{1, 2}, true)
	f2 := buildFrame(t, 2, 6, TypePing, []byte{3, 4}, true)
	frames, dropped := NewReader(0).Push(append(append([]byte{}, f1...), f2...))
	if dropped != 0 || len(frames) != 2 {
		t.Fatalf("got frames=%d dropped=%d", len(frames), dropped)
	}
}

func TestReaderFrameSplitByteByByte(t *testing.T) {
	f := buildFrame(t, 9, 6, TypeData3, bytes.Repeat([]byte{0xaa}, 64), true)
	r := NewReader(0)
	var frames [][]byte
	for _, b := range f {
		got, dropped := r.Push([]byte{b})
		if dropped != 0 {
			t.Fatalf("dropped %d bytes", dropped)
		}
		frames = append(frames, got...)
	}
	if len(frames) != 1 || !bytes.Equal(frames[0], f) {
		t.Fatalf("byte-by-byte reassembly failed: frames=%d", len(frames))
	}
}

func TestReaderResyncAfterImplausibleLength(t *testing.T) {
	// A prefix claiming more than the guard allows, followed by a valid
	// frame: the reader discards the junk and recovers the real frame.
	junk := make([]byte, PrefixLen)
	binary.BigEndian.PutUint16(junk[4:6], 0xffff)
	valid := buildFrame(t, 3, 6, TypePing, []byte{7, 7}, true)

	r := NewReader(0)
	frames, dropped := r.Push(append(junk, valid...))
	if dropped == 0 {
		t.Fatalf("expected dropped bytes during resync")
	}
	if len(frames) != 1 || !bytes.Equal(frames[0], valid) {
		t.Fatalf("valid frame lost after resync: frames=%d", len(frames))
	}
}

func TestReaderShortFrameDoesNotCorruptStream(t *testing.T) {
	// A declared length of 0 yields a 6-byte frame: too short for a
	// header, but the reassembly state must survive it.
	short := make([]byte, PrefixLen)
	binary.BigEndian.PutUint16(short[2:4], 6)
	valid := buildFrame(t, 4, 6, TypeData4, bytes.Repeat([]byte{5}, 30), true)

	frames, dropped := NewReader(0).Push(append(short, valid...))
	if dropped != 0 {
		t.Fatalf("short frame must not trigger resync, dropped=%d", dropped)
	}
	if len(frames) != 2 {
		t.Fatalf("got=%d frames want=2", len(frames))
	}
	if _, err := ParseHeader(frames[0]); err == nil {
		t.Fatalf("expected header error for 6-byte frame")
	}
	if !bytes.Equal(frames[1], valid) {
		t.Fatalf("subsequent frame corrupted")
	}
}

func TestReaderBufferedAccounting(t *testing.T) {
	f := buildFrame(t, 1, 6, TypePing, []byte{1}, true)
	r := NewReader(0)
	if _, _ = r.Push(f[:4]); r.Buffered() != 4 {
		t.Fatalf("buffered=%d want=4", r.Buffered())
	}
	frames, _ := r.Push(f[4:])
	if len(frames) != 1 || r.Buffered() != 0 {
		t.Fatalf("frames=%d buffered=%d", len(frames), r.Buffered())
	}
}
