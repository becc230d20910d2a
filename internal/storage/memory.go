package storage

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/stefa168/growatt-server/internal/protocol"
)

// Memory is an in-process Sink used by tests and by the offline decode tool.
type Memory struct {
	mu       sync.Mutex
	messages []*protocol.DecodedMessage
	raw      []RawRecord
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) SaveMessage(_ context.Context, msg *protocol.DecodedMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

func (m *Memory) SaveRaw(_ context.Context, rec RawRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.raw = append(m.raw, rec)
	return nil
}

func (m *Memory) BackfillSerial(_ context.Context, connID uuid.UUID, serial string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.messages {
		if msg.ConnID == connID && msg.Serial == "" {
			msg.Serial = serial
		}
	}
	return nil
}

func (m *Memory) Close() {}

// Messages returns a snapshot of stored decoded messages in append order.
func (m *Memory) Messages() []*protocol.DecodedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*protocol.DecodedMessage, len(m.messages))
	copy(out, m.messages)
	return out
}

// Raw returns a snapshot of stored raw records in append order.
func (m *Memory) Raw() []RawRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RawRecord, len(m.raw))
	copy(out, m.raw)
	return out
}
