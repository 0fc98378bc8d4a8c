package nativemsg

import (
	"encoding/binary"
	"testing"
)

func TestCustomCodecOption(t *testing.T) {
	codec := &mockCodec{}
	opt := CustomCodecOption(codec)

	var opts options
	opt(&opts)

	if opts.codec != codec {
		t.Error("codec not set correctly")
	}
}

func TestByteOrderOption(t *testing.T) {
	opt := ByteOrderOption(binary.BigEndian)

	var opts options
	opt(&opts)

	if opts.byteOrder != binary.BigEndian {
		t.Errorf("byteOrder = %v, want BigEndian", opts.byteOrder)
	}
}

func TestMessageMaxSize(t *testing.T) {
	opt := MessageMaxSize(4096)

	var opts options
	opt(&opts)

	if opts.maxMessageSize != 4096 {
		t.Errorf("maxMessageSize = %d, want 4096", opts.maxMessageSize)
	}
}

func TestOnErrorOption(t *testing.T) {
	called := false
	onError := func(err error) ErrorAction {
		called = true
		return Disconnect
	}
	opt := OnErrorOption(onError)

	var opts options
	opt(&opts)

	if opts.onError == nil {
		t.Fatal("onError is nil")
	}

	opts.onError(nil)
	if !called {
		t.Error("onError callback not called")
	}
}

func TestOnMessageOption(t *testing.T) {
	called := false
	onMessage := func(s *Session, msg Message) error {
		called = true
		return nil
	}
	opt := OnMessageOption(onMessage)

	var opts options
	opt(&opts)

	if opts.onMessage == nil {
		t.Fatal("onMessage is nil")
	}

	opts.onMessage(nil, nil)
	if !called {
		t.Error("onMessage callback not called")
	}
}

func TestLoggerOption(t *testing.T) {
	logger := &mockLogger{}
	opt := LoggerOption(logger)

	var opts options
	opt(&opts)

	if opts.logger != logger {
		t.Error("logger not set correctly")
	}
}

func TestApplyOptions_CodecFromByteOrderAndSize(t *testing.T) {
	opts := applyOptions([]Option{
		ByteOrderOption(binary.LittleEndian),
		MessageMaxSize(64),
	})

	codec, ok := opts.codec.(*JSONCodec)
	if !ok {
		t.Fatalf("codec = %T, want *JSONCodec", opts.codec)
	}
	if codec.ByteOrder() != binary.LittleEndian {
		t.Errorf("byte order = %v, want LittleEndian", codec.ByteOrder())
	}
	if codec.maxSize != 64 {
		t.Errorf("maxSize = %d, want 64", codec.maxSize)
	}
}

func TestApplyOptions_CustomCodecWins(t *testing.T) {
	codec := &mockCodec{}
	opts := applyOptions([]Option{
		ByteOrderOption(binary.BigEndian),
		CustomCodecOption(codec),
	})

	if opts.codec != codec {
		t.Error("custom codec should take precedence")
	}
}

func TestErrorAction(t *testing.T) {
	if Disconnect != 0 {
		t.Errorf("Disconnect = %d, want 0", Disconnect)
	}

	if Continue != 1 {
		t.Errorf("Continue = %d, want 1", Continue)
	}
}
