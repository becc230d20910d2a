package proxy

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stefa168/growatt-server/internal/observability"
	"github.com/stefa168/growatt-server/internal/protocol"
	"github.com/stefa168/growatt-server/internal/storage"
)

// tap is the non-blocking side channel for one direction of one connection.
// A single goroutine drains the queue, so frames are decoded and persisted
// in receipt order (FIFO per direction).
type tap struct {
	connID uuid.UUID
	dir    protocol.Direction
	model  string

	ch   chan []byte
	done chan struct{}

	reader      *protocol.Reader
	decoder     *protocol.Decoder
	sink        storage.Sink
	sessions    sessionStore
	sinkTimeout time.Duration
	log         zerolog.Logger
}

// sessionStore is the slice of the session registry the tap needs.
type sessionStore interface {
	SetSerial(id uuid.UUID, serial string) bool
	Serial(id uuid.UUID) string
}

func (s *Server) startTap(connID uuid.UUID, dir protocol.Direction, log zerolog.Logger) *tap {
	t := &tap{
		connID:      connID,
		dir:         dir,
		model:       s.cfg.Model,
		ch:          make(chan []byte, s.cfg.TapQueueDepth),
		done:        make(chan struct{}),
		reader:      protocol.NewReader(s.cfg.MaxFrameSize),
		decoder:     s.decoder,
		sink:        s.sink,
		sessions:    s.sessions,
		sinkTimeout: s.cfg.SinkTimeout,
		log:         log.With().Str("direction", dir.String()).Logger(),
	}
	go t.run()
	return t
}

// offer hands the tap a copy of a forwarded chunk. It never blocks: a full
// queue drops the copy and counts it, trading storage completeness for
// relay correctness.
func (t *tap) offer(chunk []byte) {
	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	select {
	case t.ch <- cp:
	default:
		observability.RecordTapDrop(t.dir.String())
	}
}

// close stops intake and waits for queued work to drain.
func (t *tap) close() {
	close(t.ch)
	<-t.done
}

func (t *tap) run() {
	defer close(t.done)
	for chunk := range t.ch {
		frames, dropped := t.reader.Push(chunk)
		if dropped > 0 {
			observability.RecordFramingError(t.dir.String(), dropped)
			t.log.Warn().Int("bytes", dropped).Msg("framing corruption, resynchronized")
		}
		for _, fb := range frames {
			t.handleFrame(fb)
		}
	}
}

func (t *tap) handleFrame(fb []byte) {
	// Persistence runs on its own context: captured frames may finish
	// storing after the relay sockets are gone.
	ctx, cancel := context.WithTimeout(context.Background(), t.sinkTimeout)
	defer cancel()

	frame := protocol.RawFrame{
		ConnID:    t.connID,
		Direction: t.dir,
		Time:      time.Now(),
		Data:      fb,
	}

	hdr, err := protocol.ParseHeader(fb)
	if err != nil {
		observability.RecordHeaderError(t.dir.String())
		t.log.Warn().Err(err).Int("len", len(fb)).Msg("malformed header, keeping raw bytes only")
		t.saveRaw(ctx, frame, fb)
		return
	}

	if hdr.HasTrailer() && !protocol.VerifyTrailer(fb) {
		observability.RecordCRCMismatch()
		t.log.Debug().Uint16("seq", hdr.Seq).Str("type", hdr.Type.String()).Msg("crc trailer mismatch")
	}
	observability.RecordFrame(t.dir.String(), hdr.Type.String())

	if t.dir == protocol.FromRemote {
		// Cloud-side traffic is stored raw, unmasked for later analysis.
		t.saveRaw(ctx, frame, t.decoder.Unmask(fb, hdr))
		return
	}

	msg := t.decoder.Decode(frame, hdr, t.model)
	observability.RecordDecode(msg.Quality.String())

	if msg.Serial == "" {
		// Attribute to the inverter learned earlier on this connection.
		msg.Serial = t.sessions.Serial(t.connID)
	} else if t.sessions.SetSerial(t.connID, msg.Serial) {
		if err := t.sink.BackfillSerial(ctx, t.connID, msg.Serial); err != nil {
			observability.RecordStorageFailure("backfill")
			t.log.Error().Err(err).Str("serial", msg.Serial).Msg("serial backfill failed")
		}
	}

	if err := t.sink.SaveMessage(ctx, msg); err != nil {
		observability.RecordStorageFailure("message")
		t.log.Error().Err(err).Str("type", hdr.Type.String()).Msg("storing decoded message failed")
	}
}

func (t *tap) saveRaw(ctx context.Context, frame protocol.RawFrame, raw []byte) {
	rec := storage.RawRecord{
		ConnID:    frame.ConnID,
		Direction: frame.Direction,
		Time:      frame.Time,
		Raw:       raw,
	}
	if err := t.sink.SaveRaw(ctx, rec); err != nil {
		observability.RecordStorageFailure("raw")
		t.log.Error().Err(err).Msg("storing raw frame failed")
	}
}
