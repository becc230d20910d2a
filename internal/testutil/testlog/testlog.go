// Package testlog wires zerolog output into the test harness so failures
// carry the surrounding log context.
package testlog

import (
	"testing"

	"github.com/rs/zerolog"
)

// Logger returns a test-scoped logger writing through t.Log.
func Logger(t *testing.T) zerolog.Logger {
	t.Helper()
	return zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel)
}
