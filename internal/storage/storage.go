// Package storage is the append-only persistence boundary for captured
// traffic. The proxy core only ever talks to the Sink interface; failures
// here degrade storage, never the relay.
package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/stefa168/growatt-server/internal/protocol"
)

// RawRecord is an undecoded frame tagged for raw persistence.
type RawRecord struct {
	ConnID    uuid.UUID
	Direction protocol.Direction
	Time      time.Time
	Raw       []byte
}

// Sink accepts decoded messages and raw frames for storage.
type Sink interface {
	// SaveMessage appends a decoded message and its fields.
	SaveMessage(ctx context.Context, msg *protocol.DecodedMessage) error
	// SaveRaw appends an undecoded frame.
	SaveRaw(ctx context.Context, rec RawRecord) error
	// BackfillSerial is the best-effort rewrite of earlier messages from
	// the same connection once its serial number becomes known.
	BackfillSerial(ctx context.Context, connID uuid.UUID, serial string) error
	Close()
}
