package nativemsg

import "github.com/pkg/errors"

// Errors returned by the framing layer.
//
// A stream that closes cleanly between frames is reported as io.EOF, which
// signals end of communication rather than a failure.
var (
	// ErrTruncatedFrame is returned when the stream closed in the middle of
	// a frame, either inside the length prefix or before the full payload
	// arrived.
	ErrTruncatedFrame = errors.New("truncated frame")
	// ErrInvalidPayload is returned when a payload is not valid UTF-8 JSON.
	ErrInvalidPayload = errors.New("invalid payload")
	// ErrIOFailure is returned when a frame could not be written.
	ErrIOFailure = errors.New("io failure")
	// ErrMessageTooLarge is returned when a frame exceeds the configured
	// maximum size or cannot be described by a 32-bit length prefix.
	ErrMessageTooLarge = errors.New("message too large")
)

// Errors returned by session operations.
var (
	// ErrInvalidOnMessage is returned when no message handler is provided.
	ErrInvalidOnMessage = errors.New("invalid on message callback")
	// ErrChannelClosed is returned when operating on a closed channel.
	ErrChannelClosed = errors.New("channel closed")
	// ErrStop is returned by a message handler to end the session after it
	// has written its final response. Run reports it as a clean exit.
	ErrStop = errors.New("session stopped by handler")
)
