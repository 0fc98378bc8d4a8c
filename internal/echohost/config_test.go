package echohost

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLoadConfig_Missing(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), ConfigFileName))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if diff := cmp.Diff(Config{}, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)
	data := `
log_level = "debug"
byte_order = "little"
max_message_size = 4096
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	want := Config{LogLevel: "debug", ByteOrder: "little", MaxMessageSize: 4096}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfig_BadByteOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)
	if err := os.WriteFile(path, []byte(`byte_order = "middle"`), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if _, err := LoadConfig(path); err == nil {
		t.Error("expected error for unknown byte order")
	}
}

func TestParseByteOrder(t *testing.T) {
	cases := map[string]binary.ByteOrder{
		"":        binary.NativeEndian,
		"native":  binary.NativeEndian,
		"little":  binary.LittleEndian,
		"BIG":     binary.BigEndian,
		"network": binary.BigEndian,
	}
	for name, want := range cases {
		got, err := ParseByteOrder(name)
		if err != nil {
			t.Errorf("ParseByteOrder(%q) failed: %v", name, err)
			continue
		}
		if got != want {
			t.Errorf("ParseByteOrder(%q) = %v, want %v", name, got, want)
		}
	}
}
