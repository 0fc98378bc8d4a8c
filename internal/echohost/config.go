package echohost

import (
	"encoding/binary"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// ConfigFileName is looked up next to the executable.
const ConfigFileName = "echohost.toml"

// Config is the optional host configuration file.
type Config struct {
	// LogLevel is one of debug, info, warn, error, off.
	LogLevel string `toml:"log_level"`
	// ByteOrder of the length prefix: native (default), little or big.
	ByteOrder string `toml:"byte_order"`
	// MaxMessageSize rejects larger incoming frames; 0 means unlimited.
	MaxMessageSize uint32 `toml:"max_message_size"`
	// SkipInvalid keeps the session running after a frame that is not
	// valid JSON instead of exiting.
	SkipInvalid bool `toml:"skip_invalid"`
}

// LoadConfig reads path. A missing file yields the zero Config.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse %s", path)
	}
	if _, err := ParseByteOrder(cfg.ByteOrder); err != nil {
		return cfg, errors.Wrapf(err, "parse %s", path)
	}
	return cfg, nil
}

// ParseByteOrder maps a configuration name to a byte order.
func ParseByteOrder(name string) (binary.ByteOrder, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "native":
		return binary.NativeEndian, nil
	case "little", "little-endian", "le":
		return binary.LittleEndian, nil
	case "big", "big-endian", "be", "network":
		return binary.BigEndian, nil
	default:
		return nil, errors.Errorf("unknown byte order %q", name)
	}
}
