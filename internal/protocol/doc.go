// Package protocol owns the Growatt wire contract and parsing primitives.
//
// Ownership boundary:
// - body mask cipher
// - stream-to-frame reassembly
// - frame header parsing and CRC trailer checks
// - schema-driven message decoding
package protocol
