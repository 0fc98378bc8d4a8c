package nativemsg

import (
	"encoding/binary"
)

// ErrorAction defines the action to take when an error occurs.
type ErrorAction int

const (
	// Disconnect ends the session when an error occurs.
	Disconnect ErrorAction = iota
	// Continue suppresses the error and reads the next frame.
	Continue
)

// options holds the configuration for a channel or a session.
type options struct {
	codec  Codec
	logger Logger

	onMessage func(s *Session, message Message) error
	// onError is called for recoverable failures: an invalid or oversized
	// frame, or an error returned by onMessage.
	// Returns Disconnect to end the session, Continue to suppress the error.
	onError func(error) ErrorAction

	byteOrder      binary.ByteOrder // length prefix byte order, nil means native
	maxMessageSize uint32           // maximum payload of a decoded frame, 0 means unlimited
}

// Option is a function that configures channel and session options.
type Option func(*options)

// CustomCodecOption returns an Option that sets the message codec.
// It takes precedence over ByteOrderOption and MessageMaxSize.
// Without it, a JSONCodec built from those two options is used.
func CustomCodecOption(codec Codec) Option {
	return func(o *options) {
		o.codec = codec
	}
}

// ByteOrderOption returns an Option that sets the byte order of the length
// prefix. The default is the host's native order, matching what browsers
// write.
func ByteOrderOption(order binary.ByteOrder) Option {
	return func(o *options) {
		o.byteOrder = order
	}
}

// MessageMaxSize returns an Option that limits the payload size of received
// frames. Frames over the limit are skipped and reported as
// ErrMessageTooLarge. Zero disables the limit.
func MessageMaxSize(size uint32) Option {
	return func(o *options) {
		o.maxMessageSize = size
	}
}

// OnErrorOption returns an Option that sets the error callback.
// Return Disconnect to end the session, or Continue to suppress the error.
func OnErrorOption(cb func(error) ErrorAction) Option {
	return func(o *options) {
		o.onError = cb
	}
}

// OnMessageOption returns an Option that sets the message handler callback.
// This callback is required by NewSession and is invoked for each received
// message. Returning ErrStop ends the session cleanly.
func OnMessageOption(cb func(s *Session, message Message) error) Option {
	return func(o *options) {
		o.onMessage = cb
	}
}

// LoggerOption returns an Option that sets the logger.
// If not set, the default slog logger will be used.
func LoggerOption(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// applyOptions fills the defaults shared by channels and sessions.
func applyOptions(opt []Option) options {
	var opts options
	for _, o := range opt {
		o(&opts)
	}

	if opts.codec == nil {
		opts.codec = NewJSONCodec(NewFrameCodec(opts.byteOrder, opts.maxMessageSize))
	}

	if opts.onError == nil {
		opts.onError = func(err error) ErrorAction { return Disconnect }
	}

	if opts.logger == nil {
		opts.logger = defaultLogger()
	}

	return opts
}
