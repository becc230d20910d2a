// Package schema loads and applies per-model field layouts for Growatt
// message bodies. Layouts come from JSON mapping files; the decoder consumes
// them read-only.
package schema

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// SerialKey is the canonical fragment name carrying the inverter serial
// number. The decoder surfaces fields with this key as a side output.
const SerialKey = "inverter_sn"

// Kind selects how a fragment's byte slice becomes a textual value. Adding a
// decode rule is a new variant here, not a new type.
type Kind string

const (
	// KindString keeps the raw ASCII bytes.
	KindString Kind = "string"
	// KindText keeps only alphanumeric ASCII, the rule the vendor uses
	// for serial numbers and firmware tags.
	KindText Kind = "text"
	// KindInt is a big-endian unsigned integer, left-padded to 4 bytes.
	KindInt Kind = "int"
	// KindFloat is KindInt divided by the fragment's fraction.
	KindFloat Kind = "float"
	// KindDate is the 6-byte on-wire timestamp: year-2000, month, day,
	// hour, minute, second.
	KindDate Kind = "date"
	// KindEnum maps the integer value through the fragment's values
	// table, falling back to the bare number.
	KindEnum Kind = "enum"
)

// Fragment describes one field slice of a decrypted message body. Offsets
// are relative to the body, not the frame.
type Fragment struct {
	Name     string            `json:"name"`
	Offset   int               `json:"offset"`
	Length   int               `json:"length"`
	Kind     Kind              `json:"type"`
	Fraction int               `json:"fraction,omitempty"`
	Values   map[string]string `json:"values,omitempty"`
}

// Layout is the ordered field schema for one (message type, model) pair.
type Layout struct {
	Model     string     `json:"model"`
	Type      uint8      `json:"message_type"`
	Fragments []Fragment `json:"fragments"`
}

// Decode extracts this fragment's value from a decrypted body. Failures are
// scoped to the fragment; the caller omits the field and carries on.
func (f Fragment) Decode(body []byte) (string, error) {
	if f.Offset < 0 || f.Length <= 0 || f.Offset+f.Length > len(body) {
		return "", fmt.Errorf("schema: fragment %q [%d:%d] outside body of %d bytes",
			f.Name, f.Offset, f.Offset+f.Length, len(body))
	}
	slice := body[f.Offset : f.Offset+f.Length]

	switch f.Kind {
	case KindString:
		return string(slice), nil
	case KindText:
		return filterText(slice), nil
	case KindInt:
		v, err := beUint(slice)
		if err != nil {
			return "", fmt.Errorf("schema: fragment %q: %w", f.Name, err)
		}
		return strconv.FormatUint(uint64(v), 10), nil
	case KindFloat:
		v, err := beUint(slice)
		if err != nil {
			return "", fmt.Errorf("schema: fragment %q: %w", f.Name, err)
		}
		frac := f.Fraction
		if frac <= 0 {
			frac = 1
		}
		return strconv.FormatFloat(float64(v)/float64(frac), 'f', -1, 64), nil
	case KindDate:
		return decodeDate(slice)
	case KindEnum:
		v, err := beUint(slice)
		if err != nil {
			return "", fmt.Errorf("schema: fragment %q: %w", f.Name, err)
		}
		key := strconv.FormatUint(uint64(v), 10)
		if label, ok := f.Values[key]; ok {
			return label, nil
		}
		return key, nil
	default:
		return "", fmt.Errorf("schema: fragment %q has unknown type %q", f.Name, f.Kind)
	}
}

func filterText(b []byte) string {
	var sb strings.Builder
	for _, c := range b {
		if c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' {
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

func beUint(b []byte) (uint32, error) {
	if len(b) > 4 {
		return 0, fmt.Errorf("integer slice of %d bytes", len(b))
	}
	var padded [4]byte
	copy(padded[4-len(b):], b)
	return binary.BigEndian.Uint32(padded[:]), nil
}

func decodeDate(b []byte) (string, error) {
	if len(b) < 6 {
		return "", fmt.Errorf("date slice of %d bytes", len(b))
	}
	if b[1] < 1 || b[1] > 12 || b[2] < 1 || b[2] > 31 || b[3] > 23 || b[4] > 59 || b[5] > 59 {
		return "", fmt.Errorf("date out of range: %v", b[:6])
	}
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d",
		2000+int(b[0]), b[1], b[2], b[3], b[4], b[5]), nil
}
