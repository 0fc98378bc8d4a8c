package nativemsg

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"io"
	"math"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// HeaderSize is the size of the length prefix in bytes.
const HeaderSize = 4

// initialPayloadSize is the most a decoded payload buffer holds before any
// of its bytes have been read.
const initialPayloadSize = 64 * 1024

// FrameCodec frames payloads as a 4-byte unsigned length followed by the
// payload. It does not look at the payload.
//
// Browsers write the prefix in the host's native byte order, which is the
// default. The order is explicit so that a peer on a different architecture
// can pin it, for example to binary.LittleEndian.
type FrameCodec struct {
	order   binary.ByteOrder
	maxSize uint32 // 0 means unlimited
}

// NewFrameCodec returns a FrameCodec using order for the length prefix.
// A nil order selects binary.NativeEndian. maxSize limits the payload of a
// decoded frame; 0 disables the limit.
func NewFrameCodec(order binary.ByteOrder, maxSize uint32) *FrameCodec {
	if order == nil {
		order = binary.NativeEndian
	}
	return &FrameCodec{order: order, maxSize: maxSize}
}

// ByteOrder returns the byte order of the length prefix.
func (c *FrameCodec) ByteOrder() binary.ByteOrder {
	return c.order
}

// Decode reads one frame.
func (c *FrameCodec) Decode(r io.Reader) (Message, error) {
	var header [HeaderSize]byte
	n, err := io.ReadFull(r, header[:])
	switch {
	case err == io.EOF:
		return nil, io.EOF
	case err == io.ErrUnexpectedEOF:
		return nil, errors.Wrapf(ErrTruncatedFrame, "length prefix: got %d of %d bytes", n, HeaderSize)
	case err != nil:
		return nil, errors.Wrap(err, "reading length prefix")
	}

	length := c.order.Uint32(header[:])
	if c.maxSize > 0 && length > c.maxSize {
		// Skip the payload so the next Decode starts on a frame boundary.
		skipped, err := io.CopyN(io.Discard, r, int64(length))
		if err == io.EOF {
			return nil, errors.Wrapf(ErrTruncatedFrame, "payload: got %d of %d bytes", skipped, length)
		}
		if err != nil {
			return nil, errors.Wrap(err, "skipping oversized payload")
		}
		return nil, errors.Wrapf(ErrMessageTooLarge, "frame of %d bytes exceeds limit %d", length, c.maxSize)
	}

	// The buffer grows with the bytes that actually arrive, so a bogus
	// prefix cannot force a large allocation.
	var payload bytes.Buffer
	payload.Grow(int(min(length, initialPayloadSize)))
	if length > 0 {
		read, err := io.CopyN(&payload, r, int64(length))
		if err == io.EOF {
			return nil, errors.Wrapf(ErrTruncatedFrame, "payload: got %d of %d bytes", read, length)
		}
		if err != nil {
			return nil, errors.Wrap(err, "reading payload")
		}
	}

	return Bytes(payload.Bytes()), nil
}

// Encode returns the prefix and payload of msg as one buffer.
func (c *FrameCodec) Encode(msg Message) ([]byte, error) {
	body := msg.Body()
	if uint64(len(body)) > math.MaxUint32 {
		return nil, errors.Wrapf(ErrMessageTooLarge, "payload of %d bytes", len(body))
	}

	buf := make([]byte, HeaderSize+len(body))
	c.order.PutUint32(buf[:HeaderSize], uint32(len(body)))
	copy(buf[HeaderSize:], body)
	return buf, nil
}

// JSONCodec is a FrameCodec that only accepts UTF-8 encoded JSON payloads.
type JSONCodec struct {
	*FrameCodec
}

// NewJSONCodec returns a JSONCodec on top of frames.
func NewJSONCodec(frames *FrameCodec) *JSONCodec {
	return &JSONCodec{FrameCodec: frames}
}

// Decode reads one frame and validates its payload.
func (c *JSONCodec) Decode(r io.Reader) (Message, error) {
	msg, err := c.FrameCodec.Decode(r)
	if err != nil {
		return nil, err
	}
	if err := validateJSON(msg.Body()); err != nil {
		return nil, err
	}
	return msg, nil
}

// Encode validates the payload and frames it.
func (c *JSONCodec) Encode(msg Message) ([]byte, error) {
	if err := validateJSON(msg.Body()); err != nil {
		return nil, err
	}
	return c.FrameCodec.Encode(msg)
}

func validateJSON(body []byte) error {
	if !utf8.Valid(body) {
		return errors.Wrap(ErrInvalidPayload, "payload is not valid UTF-8")
	}
	if !json.Valid(body) {
		return errors.Wrap(ErrInvalidPayload, "payload is not valid JSON")
	}
	return nil
}
