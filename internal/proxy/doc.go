// Package proxy is the intercepting relay between data loggers and the
// vendor cloud. Forwarding is the priority path; the per-direction taps
// that feed decoding and persistence are allowed to drop work, never to
// slow a socket write.
package proxy
