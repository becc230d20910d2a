package proxy

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/stefa168/growatt-server/internal/observability"
	"github.com/stefa168/growatt-server/internal/protocol"
)

const copyBufSize = 64 * 1024

// handleConn runs one relay session: dial upstream, forward both directions,
// tap each one, tear everything down when the session ends. All errors stay
// contained here; the listener and other sessions never see them.
func (s *Server) handleConn(ctx context.Context, inbound net.Conn) {
	connID := uuid.New()
	log := s.log.With().
		Str("conn", connID.String()).
		Str("logger", inbound.RemoteAddr().String()).
		Logger()
	log.Info().Msg("logger connected")

	// No buffering of logger traffic while the remote is unreachable: a
	// failed dial is fatal for the session.
	dialer := net.Dialer{Timeout: s.cfg.DialTimeout}
	outbound, err := dialer.DialContext(ctx, "tcp", s.cfg.RemoteAddr)
	if err != nil {
		log.Error().Err(err).Str("remote", s.cfg.RemoteAddr).Msg("upstream dial failed, closing logger connection")
		inbound.Close()
		return
	}

	s.sessions.Add(connID, inbound.RemoteAddr().String())
	observability.SessionOpened()
	defer func() {
		s.sessions.Remove(connID)
		observability.SessionClosed()
	}()

	loggerTap := s.startTap(connID, protocol.FromLogger, log)
	remoteTap := s.startTap(connID, protocol.FromRemote, log)

	g, gctx := errgroup.WithContext(ctx)

	// A socket error in either direction (or process shutdown) cancels the
	// group context; closing both conns unblocks the reads. A clean EOF
	// returns nil and leaves the other direction draining.
	watchDone := make(chan struct{})
	go func() {
		select {
		case <-gctx.Done():
			inbound.Close()
			outbound.Close()
		case <-watchDone:
		}
	}()

	g.Go(func() error { return s.forward(inbound, outbound, loggerTap) })
	g.Go(func() error { return s.forward(outbound, inbound, remoteTap) })
	err = g.Wait()
	close(watchDone)
	inbound.Close()
	outbound.Close()

	// In-flight decode and persistence work for frames already captured
	// completes before the session entry is released.
	loggerTap.close()
	remoteTap.close()

	switch {
	case err == nil:
		log.Info().Msg("connection closed")
	case errors.Is(err, net.ErrClosed), errors.Is(err, context.Canceled):
		log.Info().Msg("connection closed during shutdown")
	default:
		log.Warn().Err(err).Msg("relay ended with error")
	}
}

// forward copies one direction. Each chunk goes to the peer first, then a
// copy is offered to the tap; the tap can lag or drop, the write cannot.
func (s *Server) forward(src, dst net.Conn, t *tap) error {
	buf := make([]byte, copyBufSize)
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return werr
			}
			observability.RecordBytesForwarded(t.dir.String(), n)
			t.offer(buf[:n])
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				// Half-close so the peer can flush in-flight writes
				// after this side is done sending.
				halfClose(dst)
				return nil
			}
			return rerr
		}
	}
}

func halfClose(c net.Conn) {
	type closeWriter interface {
		CloseWrite() error
	}
	if cw, ok := c.(closeWriter); ok {
		_ = cw.CloseWrite()
		return
	}
	_ = c.Close()
}
