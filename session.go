package nativemsg

import (
	"context"
	"io"
	"sync/atomic"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// State is the lifecycle state of a session.
type State int32

const (
	// Running means the session reads, dispatches and answers frames.
	Running State = iota
	// Terminated means the session stopped reading. It never runs again.
	Terminated
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Session drives a message handler over one channel.
//
// The loop is synchronous: one frame is read, handed to the handler, and
// the handler's responses are written before the next frame is read.
type Session struct {
	ch     *Channel
	logger Logger
	opts   options

	state    atomic.Int32
	received atomic.Uint64
}

// NewSession creates a session reading frames from r and writing to w.
// Returns ErrInvalidOnMessage if no OnMessageOption is given.
func NewSession(r io.Reader, w io.Writer, opt ...Option) (*Session, error) {
	opts := applyOptions(opt)
	if opts.onMessage == nil {
		return nil, ErrInvalidOnMessage
	}

	return &Session{
		ch:     newChannelWithOptions(r, w, opts),
		logger: opts.logger,
		opts:   opts,
	}, nil
}

// Run reads frames until the stream ends, the handler returns ErrStop, an
// unrecoverable error occurs, or ctx is canceled. It blocks until then.
//
// A clean end of stream and ErrStop return nil. Canceling ctx closes the
// stream to release the blocked read, and Run returns ctx.Err().
func (s *Session) Run(ctx context.Context) error {
	s.logger.Info("session started")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	group, child := errgroup.WithContext(ctx)

	group.Go(func() error {
		defer cancel()
		return s.loop(child)
	})

	// Watchdog: reads have no deadline of their own, so cancellation closes
	// the stream underneath them.
	group.Go(func() error {
		<-child.Done()
		s.terminate("context done")
		if err := s.ch.Close(); err != nil {
			s.logger.Debug("close error", "error", err)
		}
		return nil
	})

	err := group.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Info("session closed with error", "received", s.received.Load(), "error", err)
	} else {
		s.logger.Info("session closed", "received", s.received.Load())
	}

	return err
}

func (s *Session) loop(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		message, err := s.ch.ReadMessage()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err == io.EOF {
				s.terminate("end of stream")
				return nil
			}
			if errors.Is(err, ErrChannelClosed) {
				s.terminate("input closed")
				return nil
			}
			s.logger.Debug("read error", "error", err)
			if !recoverable(err) || s.opts.onError(err) == Disconnect {
				s.terminate("read error")
				return err
			}
			continue
		}

		s.received.Add(1)
		if err = s.opts.onMessage(s, message); err != nil {
			if errors.Is(err, ErrStop) {
				s.terminate("stopped by handler")
				return nil
			}
			s.logger.Debug("handler error", "error", err)
			if s.opts.onError(err) == Disconnect {
				s.terminate("handler error")
				return err
			}
		}
	}
}

// recoverable reports whether the stream is still on a frame boundary after
// err, so that reading can go on.
func recoverable(err error) bool {
	return errors.Is(err, ErrInvalidPayload) || errors.Is(err, ErrMessageTooLarge)
}

// terminate moves the session to Terminated. The transition happens once.
func (s *Session) terminate(reason string) {
	if s.state.CompareAndSwap(int32(Running), int32(Terminated)) {
		s.logger.Info("session terminated", "reason", reason)
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Received returns the number of frames handed to the handler so far.
func (s *Session) Received() uint64 {
	return s.received.Load()
}

// Write sends a message on the session's channel.
func (s *Session) Write(message Message) error {
	return s.ch.Write(message)
}

// WriteMessage sends payload as one frame.
func (s *Session) WriteMessage(payload []byte) error {
	return s.ch.WriteMessage(payload)
}

// CloseInput closes the read side of the stream. The session reads no
// further frames once the handler returns.
func (s *Session) CloseInput() error {
	return s.ch.CloseInput()
}

// Close ends the session and closes the stream.
// Safe to call multiple times.
func (s *Session) Close() error {
	s.terminate("closed")
	return s.ch.Close()
}

// IsClosed returns true if the session's stream has been closed.
func (s *Session) IsClosed() bool {
	return s.ch.IsClosed()
}
