package nativemsg

import "io"

// Message is the interface for messages carried by one frame.
// Implementations should provide the payload length and body.
type Message interface {
	// Length returns the length of the message body.
	Length() int
	// Body returns the raw payload bytes.
	Body() []byte
}

// Bytes is a Message backed by a byte slice.
type Bytes []byte

// Length returns len(b).
func (b Bytes) Length() int {
	return len(b)
}

// Body returns b.
func (b Bytes) Body() []byte {
	return b
}

// Codec is the interface for message framing.
//
// Decode reads from an io.Reader so the codec controls exactly how many bytes
// are consumed for one message. This lets a codec reassemble frames from a
// stream that has no message boundaries of its own (a pipe, stdio, TCP).
type Codec interface {
	// Decode reads and decodes one complete message from the reader.
	// It returns io.EOF only when the stream ended before any byte of the
	// next frame arrived.
	Decode(r io.Reader) (Message, error)
	// Encode encodes a Message into the bytes of one frame.
	Encode(Message) ([]byte, error)
}
