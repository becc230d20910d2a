package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/stefa168/growatt-server/internal/protocol"
	"github.com/stefa168/growatt-server/internal/session"
	"github.com/stefa168/growatt-server/internal/storage"
)

// ErrShutdownTimeout is returned when graceful shutdown exceeds the
// configured timeout.
var ErrShutdownTimeout = errors.New("proxy: shutdown timeout exceeded")

// Config holds the relay configuration.
type Config struct {
	// ListenAddr is the address loggers connect to.
	ListenAddr string
	// RemoteAddr is the real vendor endpoint to relay to.
	RemoteAddr string
	// Model selects the schema layouts for decoding.
	Model string
	// DialTimeout bounds the upstream connect per session.
	DialTimeout time.Duration
	// ShutdownTimeout is the maximum time to wait for active connections
	// to drain before they are forcefully closed.
	ShutdownTimeout time.Duration
	// TapQueueDepth bounds buffered chunk copies per direction; overflow
	// drops copies instead of blocking the forwarding loop.
	TapQueueDepth int
	// MaxFrameSize guards declared frame lengths in the tap readers.
	MaxFrameSize int
	// SinkTimeout bounds each persistence call.
	SinkTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.DialTimeout == 0 {
		c.DialTimeout = 10 * time.Second
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
	if c.TapQueueDepth == 0 {
		c.TapQueueDepth = 256
	}
	if c.MaxFrameSize == 0 {
		c.MaxFrameSize = protocol.DefaultMaxFrameSize
	}
	if c.SinkTimeout == 0 {
		c.SinkTimeout = 5 * time.Second
	}
}

// Server accepts logger connections and relays each one to the vendor
// endpoint while tapping both directions into the decode pipeline.
type Server struct {
	cfg      Config
	decoder  *protocol.Decoder
	sink     storage.Sink
	sessions *session.Registry
	log      zerolog.Logger
	wg       sync.WaitGroup

	readyOnce sync.Once
	ready     chan struct{}
	addr      net.Addr
}

func New(cfg Config, decoder *protocol.Decoder, sink storage.Sink, sessions *session.Registry, log zerolog.Logger) *Server {
	cfg.applyDefaults()
	return &Server{
		cfg:      cfg,
		decoder:  decoder,
		sink:     sink,
		sessions: sessions,
		log:      log,
		ready:    make(chan struct{}),
	}
}

// Addr returns the bound listener address once Listen has opened it.
func (s *Server) Addr() net.Addr {
	<-s.ready
	return s.addr
}

// Listen runs the accept loop until the context is cancelled, then drains
// active connections with a timeout. Per-connection errors never reach
// this level; a broken session self-heals on the logger's own retry.
func (s *Server) Listen(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("proxy: listening on %s: %w", s.cfg.ListenAddr, err)
	}
	s.readyOnce.Do(func() {
		s.addr = listener.Addr()
		close(s.ready)
	})
	s.log.Info().
		Str("listen", listener.Addr().String()).
		Str("remote", s.cfg.RemoteAddr).
		Msg("relay started")

	connCtx, connCancel := context.WithCancel(context.Background())
	defer connCancel()

	acceptDone := make(chan struct{})
	go func() {
		defer close(acceptDone)
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			conn, err := listener.Accept()
			if err != nil {
				select {
				case <-ctx.Done():
					return
				default:
					s.log.Error().Err(err).Msg("accept failed")
					continue
				}
			}

			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.handleConn(connCtx, conn)
			}()
		}
	}()

	<-ctx.Done()
	s.log.Info().Msg("shutdown signal received, closing listener")

	if err := listener.Close(); err != nil {
		s.log.Error().Err(err).Msg("closing listener")
	}
	<-acceptDone

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info().Msg("all connections closed")
		return nil
	case <-time.After(s.cfg.ShutdownTimeout):
		s.log.Warn().Msg("shutdown timeout exceeded, forcing connection closure")
		connCancel()
		select {
		case <-done:
		case <-time.After(time.Second):
		}
		return ErrShutdownTimeout
	}
}
