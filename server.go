package nativemsg

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Handler is the interface for handling accepted TCP connections.
// Each connection is an independent stream; handlers must not share
// session state between connections.
type Handler interface {
	// Handle is called in its own goroutine for each new connection.
	// The implementation owns the connection and must close it.
	Handle(ctx context.Context, conn *net.TCPConn)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, conn *net.TCPConn)

// Handle calls f(ctx, conn).
func (f HandlerFunc) Handle(ctx context.Context, conn *net.TCPConn) {
	f(ctx, conn)
}

// SessionHandler returns a Handler that runs one Session per connection.
// newOptions is called once per connection so that every session gets its
// own handler state.
func SessionHandler(newOptions func() []Option) Handler {
	return HandlerFunc(func(ctx context.Context, conn *net.TCPConn) {
		opts := newOptions()
		logger := withAttrs(applyOptions(opts).logger, "remote_addr", conn.RemoteAddr().String())
		opts = append(opts, LoggerOption(logger))

		session, err := NewSession(conn, conn, opts...)
		if err != nil {
			logger.Error("session setup failed", "error", err)
			_ = conn.Close()
			return
		}
		_ = session.Run(ctx)
	})
}

// Server accepts TCP connections and hands each one to a Handler.
type Server struct {
	listener        *net.TCPListener
	logger          Logger
	shutdownTimeout time.Duration

	mu          sync.Mutex
	shutdown    bool
	shutdownNow chan struct{} // signals immediate shutdown, bypassing timeout
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// ServerLoggerOption sets the logger for the server.
func ServerLoggerOption(logger Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// ServerShutdownTimeoutOption sets the graceful shutdown timeout.
// When the context is canceled, the server waits up to this duration
// before closing the listener. Default is 0 (immediate shutdown).
//
// Sessions receive the same context, so they end as soon as it is
// canceled; the timeout only delays listener closure.
func ServerShutdownTimeoutOption(timeout time.Duration) ServerOption {
	return func(s *Server) {
		s.shutdownTimeout = timeout
	}
}

// New creates a server bound to addr.
func New(addr *net.TCPAddr, opts ...ServerOption) (*Server, error) {
	listener, err := net.ListenTCP(addr.Network(), addr)
	if err != nil {
		return nil, errors.Wrapf(err, "listen on %s", addr)
	}

	s := &Server{
		listener:    listener,
		logger:      slog.Default(),
		shutdownNow: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Serve accepts connections and dispatches them to handler until ctx is
// canceled or accepting fails. It returns ctx.Err() after a shutdown.
func (s *Server) Serve(ctx context.Context, handler Handler) error {
	s.logger.Info("server started", "addr", s.listener.Addr())

	go func() {
		<-ctx.Done()

		if s.shutdownTimeout > 0 {
			s.logger.Info("graceful shutdown initiated", "timeout", s.shutdownTimeout)
			select {
			case <-time.After(s.shutdownTimeout):
			case <-s.shutdownNow:
				s.logger.Debug("shutdown timeout bypassed via Close()")
			}
		}

		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		// Unblock Accept.
		_ = s.listener.SetDeadline(time.Now())
	}()

	for {
		conn, err := s.listener.AcceptTCP()
		if err != nil {
			s.mu.Lock()
			isShutdown := s.shutdown
			s.mu.Unlock()

			if isShutdown {
				s.logger.Info("server stopped", "addr", s.listener.Addr())
				return ctx.Err()
			}

			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			s.logger.Error("accept error", "error", err)
			return err
		}

		s.logger.Debug("accepted connection", "remote_addr", conn.RemoteAddr())
		_ = conn.SetNoDelay(true)
		go handler.Handle(ctx, conn)
	}
}

// Close stops the server by closing the listener. It bypasses any pending
// shutdown timeout. Blocked Accept calls return with an error.
func (s *Server) Close() error {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()

	select {
	case s.shutdownNow <- struct{}{}:
	default:
	}

	return s.listener.Close()
}

// Addr returns the listener's network address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}
