package protocol

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Direction identifies which half of a proxied connection produced bytes.
type Direction uint8

const (
	// FromLogger is traffic sent by the data logger toward the vendor cloud.
	FromLogger Direction = iota
	// FromRemote is traffic sent by the vendor cloud toward the data logger.
	FromRemote
)

func (d Direction) String() string {
	switch d {
	case FromLogger:
		return "logger_to_remote"
	case FromRemote:
		return "remote_to_logger"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

// MessageType is the one-byte message type code at header offset 7.
type MessageType uint8

const (
	TypeData3     MessageType = 0x03
	TypeData4     MessageType = 0x04
	TypePing      MessageType = 0x16
	TypeConfigure MessageType = 0x18
	TypeIdentify  MessageType = 0x19
)

func (t MessageType) String() string {
	switch t {
	case TypeData3:
		return "Data3"
	case TypeData4:
		return "Data4"
	case TypePing:
		return "Ping"
	case TypeConfigure:
		return "Configure"
	case TypeIdentify:
		return "Identify"
	default:
		return fmt.Sprintf("Unknown(0x%02x)", uint8(t))
	}
}

// RawFrame is one complete wire frame as captured from the stream, body still
// masked. Owned by the tap that produced it until handed to the sink.
type RawFrame struct {
	ConnID    uuid.UUID
	Direction Direction
	Time      time.Time
	Data      []byte
}

// Quality describes how much of a message the decoder could extract.
type Quality uint8

const (
	QualityComplete Quality = iota
	QualityPartial
	QualityHeaderOnly
)

func (q Quality) String() string {
	switch q {
	case QualityComplete:
		return "complete"
	case QualityPartial:
		return "partial"
	case QualityHeaderOnly:
		return "header_only"
	default:
		return fmt.Sprintf("quality(%d)", uint8(q))
	}
}

// DataField is one schema-extracted key/value pair. Values are textual at
// this layer; numeric semantics live in the schema.
type DataField struct {
	Key   string
	Value string
}

// DecodedMessage is the immutable result of decoding one frame. Serial
// corrections discovered later are sink-level backfills, never mutations.
type DecodedMessage struct {
	ID        uuid.UUID
	ConnID    uuid.UUID
	Direction Direction
	Type      MessageType
	Header    []byte
	Raw       []byte
	Time      time.Time
	Serial    string
	Fields    []DataField
	Quality   Quality
}

// Field returns the value for key, if the decoder extracted it.
func (m *DecodedMessage) Field(key string) (string, bool) {
	for _, f := range m.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}
