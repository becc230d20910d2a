// Package session tracks which inverter is behind each proxied connection.
// Identity is learned mid-stream from decoded traffic, not at accept time.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Context is a snapshot of one connection's state. The live entry is mutated
// only by that connection's tap pipeline (single writer per key).
type Context struct {
	ID         uuid.UUID
	RemoteAddr string
	AcceptedAt time.Time
	Serial     string
}

// Registry is the process-wide connection-to-inverter mapping. Entries live
// exactly as long as their relay does.
type Registry struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*Context
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[uuid.UUID]*Context)}
}

// Add registers a freshly accepted connection.
func (r *Registry) Add(id uuid.UUID, remoteAddr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[id] = &Context{
		ID:         id,
		RemoteAddr: remoteAddr,
		AcceptedAt: time.Now(),
	}
}

// SetSerial records the serial learned from an identity-bearing message.
// A later message reporting a different serial overwrites it; that is a
// model fact, not an error. The return reports whether the value changed.
func (r *Registry) SetSerial(id uuid.UUID, serial string) bool {
	if serial == "" {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[id]
	if !ok || entry.Serial == serial {
		return false
	}
	entry.Serial = serial
	return true
}

// Get returns a copy of the connection's context.
func (r *Registry) Get(id uuid.UUID) (Context, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[id]
	if !ok {
		return Context{}, false
	}
	return *entry, true
}

// Serial returns the learned serial for the connection, or "" while the
// identity is still unknown.
func (r *Registry) Serial(id uuid.UUID) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if entry, ok := r.entries[id]; ok {
		return entry.Serial
	}
	return ""
}

// Remove drops the entry once both halves of the relay have closed.
func (r *Registry) Remove(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
