// Package echohost is a native messaging host that echoes every message
// back to the caller. Browsers use it to test their native messaging
// transport, including oversized replies and hosts that exit early.
package echohost

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/pkg/errors"

	"github.com/Zereker/nativemsg"
)

// Sentinel keys that switch a message from echo to a test behavior.
const (
	// BigMessageKey replaces the message with BigMessageSize bytes of "x",
	// larger than browsers accept from a host.
	BigMessageKey = "bigMessageTest"
	// StopHostKey makes the host close stdin, confirm, and exit, so the
	// caller can check that a later send fails.
	StopHostKey = "stopHostTest"
)

// BigMessageSize is the length of the "key" value sent for BigMessageKey.
const BigMessageSize = 1024 * 1024

var stoppedResponse = []byte(`{"stopped": true }`)

// Response is the echo of one message.
type Response struct {
	ID        uint64          `json:"id"`
	Echo      json.RawMessage `json:"echo"`
	CallerURL string          `json:"caller_url"`
	Args      json.RawMessage `json:"args"`
}

// Host answers the messages of one session. The message counter belongs to
// the Host, so every session needs its own.
type Host struct {
	origin    string
	reconnect json.RawMessage
	logger    nativemsg.Logger

	count uint64
}

// New returns a host answering on behalf of origin. reconnect is echoed in
// every response as "args" (null when nil).
func New(origin string, reconnect json.RawMessage, logger nativemsg.Logger) *Host {
	if logger == nil {
		logger = slog.Default()
	}
	return &Host{origin: origin, reconnect: reconnect, logger: logger}
}

// Options returns the session options that route messages to h.
func (h *Host) Options() []nativemsg.Option {
	return []nativemsg.Option{
		nativemsg.OnMessageOption(h.HandleMessage),
		nativemsg.LoggerOption(h.logger),
	}
}

// HandleMessage answers one message. It returns nativemsg.ErrStop after
// the stop sentinel, and the write error when the caller stopped reading.
func (h *Host) HandleMessage(s *nativemsg.Session, m nativemsg.Message) error {
	payload := m.Body()

	// Only objects carry sentinel keys; anything else is echoed as is.
	var object map[string]json.RawMessage
	if json.Unmarshal(payload, &object) == nil {
		if _, ok := object[BigMessageKey]; ok {
			h.logger.Debug("big message test", "size", BigMessageSize)
			payload = bigMessage()
		} else if _, ok := object[StopHostKey]; ok {
			return h.stop(s)
		}
	}

	h.count++
	response, err := json.Marshal(Response{
		ID:        h.count,
		Echo:      payload,
		CallerURL: h.origin,
		Args:      h.reconnect,
	})
	if err != nil {
		return errors.Wrap(err, "encode response")
	}

	if err := s.WriteMessage(response); err != nil {
		h.logger.Warn("write failed, caller stopped reading", "id", h.count, "error", err)
		return err
	}
	h.logger.Debug("echoed message", "id", h.count, "length", len(response))
	return nil
}

// Count returns the number of messages echoed so far.
func (h *Host) Count() uint64 {
	return h.count
}

func (h *Host) stop(s *nativemsg.Session) error {
	h.logger.Info("stop host test, closing stdin")
	if err := s.CloseInput(); err != nil {
		h.logger.Warn("close stdin failed", "error", err)
	}
	if err := s.WriteMessage(stoppedResponse); err != nil {
		return err
	}
	return nativemsg.ErrStop
}

func bigMessage() json.RawMessage {
	raw, _ := json.Marshal(map[string]string{"key": strings.Repeat("x", BigMessageSize)})
	return raw
}
