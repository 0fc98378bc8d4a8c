// Package nativemsg implements the length-prefixed framing used by browser
// native messaging hosts: every message is a 4-byte length followed by that
// many bytes of UTF-8 JSON.
//
// A Channel frames and deframes messages on any byte stream. A Session runs
// a handler over one channel until the peer closes the stream. A Server runs
// one independent session per accepted TCP connection, and StartHost drives
// a host executable over its stdio the way a browser does.
package nativemsg

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

// flusher is implemented by buffered writers such as *bufio.Writer.
type flusher interface {
	Flush() error
}

// writeError reports a frame that could not be written. It matches
// ErrIOFailure and unwraps to the underlying stream error.
type writeError struct {
	cause error
}

func (e *writeError) Error() string {
	return fmt.Sprintf("%v: %v", ErrIOFailure, e.cause)
}

func (e *writeError) Is(target error) bool {
	return target == ErrIOFailure
}

func (e *writeError) Unwrap() error {
	return e.cause
}

// Channel reads and writes framed messages on a duplex byte stream.
//
// Reads are expected to come from a single goroutine. Writes are serialized
// so that frames from concurrent writers never interleave.
type Channel struct {
	in     io.Reader
	out    io.Writer
	reader *bufio.Reader
	codec  Codec
	logger Logger

	wmu         sync.Mutex
	inputClosed atomic.Bool
	closed      atomic.Bool
}

// NewChannel returns a channel reading frames from r and writing frames to w.
// Only the codec, byte order, size limit and logger options apply.
func NewChannel(r io.Reader, w io.Writer, opt ...Option) *Channel {
	opts := applyOptions(opt)
	return newChannelWithOptions(r, w, opts)
}

func newChannelWithOptions(r io.Reader, w io.Writer, opts options) *Channel {
	return &Channel{
		in:     r,
		out:    w,
		reader: bufio.NewReader(r),
		codec:  opts.codec,
		logger: opts.logger,
	}
}

// ReadMessage blocks until one complete frame has been read.
//
// It returns io.EOF when the stream closed cleanly between frames,
// ErrTruncatedFrame when it closed inside a frame, and ErrInvalidPayload when
// the codec rejects the payload.
func (c *Channel) ReadMessage() (Message, error) {
	if c.inputClosed.Load() {
		return nil, ErrChannelClosed
	}
	return c.codec.Decode(c.reader)
}

// WriteMessage frames payload and writes it, then flushes the stream.
func (c *Channel) WriteMessage(payload []byte) error {
	return c.Write(Bytes(payload))
}

// Write encodes msg and writes the whole frame with a single write call.
// Failures of the stream match ErrIOFailure; nothing is retried.
func (c *Channel) Write(msg Message) error {
	if c.closed.Load() {
		return ErrChannelClosed
	}

	frame, err := c.codec.Encode(msg)
	if err != nil {
		return err
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()

	if _, err := c.out.Write(frame); err != nil {
		c.logger.Debug("write error", "length", msg.Length(), "error", err)
		return &writeError{cause: err}
	}
	if f, ok := c.out.(flusher); ok {
		if err := f.Flush(); err != nil {
			c.logger.Debug("flush error", "length", msg.Length(), "error", err)
			return &writeError{cause: err}
		}
	}
	return nil
}

// CloseInput closes the read side of the stream if it can be closed.
// A peer still writing to the stream then observes a broken pipe.
// Safe to call multiple times.
func (c *Channel) CloseInput() error {
	if c.inputClosed.Swap(true) {
		return nil
	}
	// Connections carrying both directions only give up the read half.
	if half, ok := c.in.(interface{ CloseRead() error }); ok {
		return ignoreClosed(half.CloseRead())
	}
	if closer, ok := c.in.(io.Closer); ok {
		return ignoreClosed(closer.Close())
	}
	return nil
}

// Close closes both sides of the stream. Safe to call multiple times.
func (c *Channel) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	err := c.CloseInput()
	if closer, ok := c.out.(io.Closer); ok {
		if cerr := ignoreClosed(closer.Close()); err == nil {
			err = cerr
		}
	}
	return err
}

// IsClosed returns true if the channel has been closed.
func (c *Channel) IsClosed() bool {
	return c.closed.Load()
}

// ignoreClosed drops the error of closing a stream twice, which happens
// when both sides of the channel are the same connection.
func ignoreClosed(err error) error {
	if errors.Is(err, net.ErrClosed) || errors.Is(err, os.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return nil
	}
	return err
}
