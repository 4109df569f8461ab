package session

import (
	"fmt"
	"net"

	"golang.org/x/time/rate"

	"github.com/leoftp/leo/internal/logging"
	"github.com/leoftp/leo/pkg/storage"
)

// Server accepts TCP connections and spawns one Actor per connection,
// per spec §5: connections share only the read-only Info and the
// stateless Store.
type Server struct {
	store  *storage.Store
	creds  Credentials
	info   Info
	logger *logging.Logger

	// GetRateLimiter optionally paces GET_CHUNK emission across every
	// session, satisfying spec §9's backpressure note. Nil disables pacing.
	GetRateLimiter *rate.Limiter

	listener net.Listener
}

// NewServer builds a Server over an already-open Store, ready to Serve.
func NewServer(store *storage.Store, creds Credentials, info Info, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.New("server", logging.INFO)
	}
	return &Server{store: store, creds: creds, info: info, logger: logger}
}

// ListenAndServe binds addr and serves connections until the listener is
// closed or accept fails fatally.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("session: listen %s: %w", addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until it is closed, spawning one Actor
// goroutine per connection. Each connection is fully independent; a
// misbehaving client can never affect another session.
func (s *Server) Serve(ln net.Listener) error {
	s.listener = ln
	s.logger.Info("listening", logging.Fields{"addr": ln.Addr().String()})

	for {
		conn, err := ln.Accept()
		if err != nil {
			return fmt.Errorf("session: accept: %w", err)
		}
		actor := NewActor(conn, s.store, s.creds, s.info, s.logger, s.GetRateLimiter)
		go actor.Run()
	}
}

// Close stops accepting new connections. In-flight sessions run to
// completion on their own.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}
