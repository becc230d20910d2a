package schema

import (
	"strings"
	"testing"
)

func TestFragmentDecodeString(t *testing.T) {
	f := Fragment{Name: "fw", Offset: 2, Length: 4, Kind: KindString}
	got, err := f.Decode([]byte{0, 0, 'v', '1', '.', '2', 0})
	if err != nil || got != "v1.2" {
		t.Fatalf("got=%q err=%v", got, err)
	}
}

func TestFragmentDecodeTextFiltersNonAlnum(t *testing.T) {
	f := Fragment{Name: "sn", Offset: 0, Length: 8, Kind: KindText}
	got, err := f.Decode([]byte{'A', 0x00, 'B', ' ', '1', 0xff, '2', '_'})
	if err != nil || got != "AB12" {
		t.Fatalf("got=%q err=%v", got, err)
	}
}

func TestFragmentDecodeInt(t *testing.T) {
	f := Fragment{Name: "n", Offset: 0, Length: 2, Kind: KindInt}
	got, err := f.Decode([]byte{0x01, 0x02})
	if err != nil || got != "258" {
		t.Fatalf("got=%q err=%v", got, err)
	}
}

func TestFragmentDecodeFloatScaled(t *testing.T) {
	f := Fragment{Name: "v", Offset: 0, Length: 2, Kind: KindFloat, Fraction: 10}
	got, err := f.Decode([]byte{0x09, 0x29}) // 2345
	if err != nil || got != "234.5" {
		t.Fatalf("got=%q err=%v", got, err)
	}

	noFraction := Fragment{Name: "v", Offset: 0, Length: 2, Kind: KindFloat}
	got, err = noFraction.Decode([]byte{0x00, 0x07})
	if err != nil || got != "7" {
		t.Fatalf("fraction default: got=%q err=%v", got, err)
	}
}

func TestFragmentDecodeDate(t *testing.T) {
	f := Fragment{Name: "t", Offset: 0, Length: 6, Kind: KindDate}
	got, err := f.Decode([]byte{23, 5, 1, 12, 30, 0})
	if err != nil || got != "2023-05-01 12:30:00" {
		t.Fatalf("got=%q err=%v", got, err)
	}

	if _, err := f.Decode([]byte{23, 13, 1, 12, 30, 0}); err == nil {
		t.Fatalf("month 13 accepted")
	}
}

func TestFragmentDecodeEnum(t *testing.T) {
	f := Fragment{
		Name: "status", Offset: 0, Length: 2, Kind: KindEnum,
		Values: map[string]string{"0": "waiting", "1": "normal", "3": "fault"},
	}
	got, err := f.Decode([]byte{0x00, 0x01})
	if err != nil || got != "normal" {
		t.Fatalf("got=%q err=%v", got, err)
	}
	// Unmapped values fall back to the bare number.
	got, err = f.Decode([]byte{0x00, 0x09})
	if err != nil || got != "9" {
		t.Fatalf("fallback: got=%q err=%v", got, err)
	}
}

func TestFragmentDecodeOutOfBounds(t *testing.T) {
	f := Fragment{Name: "x", Offset: 10, Length: 4, Kind: KindInt}
	if _, err := f.Decode(make([]byte, 12)); err == nil {
		t.Fatalf("out-of-bounds slice accepted")
	}
}

func TestFragmentDecodeOversizedInt(t *testing.T) {
	f := Fragment{Name: "x", Offset: 0, Length: 5, Kind: KindInt}
	_, err := f.Decode(make([]byte, 8))
	if err == nil || !strings.Contains(err.Error(), "integer") {
		t.Fatalf("5-byte integer accepted: %v", err)
	}
}
