package protocol

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stefa168/growatt-server/internal/schema"
)

// SchemaSource resolves field layouts. Lookups are in-memory and safe for
// concurrent use; *schema.Registry satisfies this.
type SchemaSource interface {
	Lookup(msgType uint8, model string) (*schema.Layout, bool)
}

// Decoder turns raw frames into decoded messages using the body cipher and
// a schema source. It is stateless and shared across connections.
type Decoder struct {
	cipher  *Cipher
	schemas SchemaSource
	log     zerolog.Logger
}

func NewDecoder(cipher *Cipher, schemas SchemaSource, log zerolog.Logger) *Decoder {
	return &Decoder{cipher: cipher, schemas: schemas, log: log}
}

// Unmask returns the frame with its body region decrypted. Header and CRC
// trailer bytes pass through untouched.
func (d *Decoder) Unmask(frame []byte, h FrameHeader) []byte {
	out := make([]byte, len(frame))
	copy(out, frame)
	start, end := h.BodyBounds(len(frame))
	copy(out[start:end], d.cipher.Apply(frame[start:end]))
	return out
}

// Decode decrypts a frame body and extracts fields per the layout registered
// for (header type, model). Field-level failures omit the field and degrade
// quality to partial; a missing layout yields a header-only message. Decode
// never fails a session: it always returns a message.
//
// A field keyed schema.SerialKey additionally lands in DecodedMessage.Serial
// so the caller can attribute the connection to an inverter mid-stream.
func (d *Decoder) Decode(f RawFrame, h FrameHeader, model string) *DecodedMessage {
	start, end := h.BodyBounds(len(f.Data))
	body := d.cipher.Apply(f.Data[start:end])

	// Raw is the complete frame with only the body unscrambled; the CRC
	// trailer stays so stored frames remain byte-complete.
	raw := make([]byte, 0, len(f.Data))
	raw = append(raw, f.Data[:HeaderLen]...)
	raw = append(raw, body...)
	raw = append(raw, f.Data[end:]...)

	header := make([]byte, HeaderLen)
	copy(header, f.Data[:HeaderLen])

	msg := &DecodedMessage{
		ID:        uuid.New(),
		ConnID:    f.ConnID,
		Direction: f.Direction,
		Type:      h.Type,
		Header:    header,
		Raw:       raw,
		Time:      f.Time,
		Quality:   QualityComplete,
	}

	layout, ok := d.schemas.Lookup(uint8(h.Type), model)
	if !ok {
		msg.Quality = QualityHeaderOnly
		return msg
	}

	msg.Fields = make([]DataField, 0, len(layout.Fragments))
	for _, frag := range layout.Fragments {
		value, err := frag.Decode(body)
		if err != nil {
			d.log.Debug().Err(err).
				Str("type", h.Type.String()).
				Str("model", layout.Model).
				Msg("fragment dropped")
			msg.Quality = QualityPartial
			continue
		}
		msg.Fields = append(msg.Fields, DataField{Key: frag.Name, Value: value})
		if frag.Name == schema.SerialKey {
			msg.Serial = value
		}
	}
	return msg
}
