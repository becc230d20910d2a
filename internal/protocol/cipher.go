package protocol

import "errors"

// DefaultMask is the XOR key the vendor firmware applies to frame bodies.
var DefaultMask = []byte("Growatt")

var ErrEmptyKey = errors.New("protocol: cipher key must not be empty")

// Cipher is the self-inverse XOR transform used on frame bodies. The 8-byte
// header stays cleartext on the wire; callers pass only the body region.
type Cipher struct {
	key []byte
}

func NewCipher(key []byte) (*Cipher, error) {
	if len(key) == 0 {
		return nil, ErrEmptyKey
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &Cipher{key: k}, nil
}

// Apply XORs b with the cycling key and returns a new slice. Applying it
// twice yields the input, so the same call masks and unmasks.
func (c *Cipher) Apply(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[i] = v ^ c.key[i%len(c.key)]
	}
	return out
}
