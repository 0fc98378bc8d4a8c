// Package logging configures the process-wide slog logger for the
// command-line tools. Logs always go to stderr because stdout of a native
// messaging host carries frames.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
)

// Environment variables that override the logger configuration.
const (
	// EnvLogLevel sets the level: debug, info, warn, error or off.
	EnvLogLevel = "NATIVEMSG_LOG_LEVEL"
	// EnvLogJSON forces JSON (true) or text (false) output.
	EnvLogJSON = "NATIVEMSG_LOG_JSON"
	// EnvLogSource adds the source position to every record.
	EnvLogSource = "NATIVEMSG_LOG_SOURCE"
)

// levelOff is above every level slog emits.
const levelOff = slog.Level(100)

// Profile selects the defaults of a logger.
type Profile int

const (
	// ProfileRuntime logs at info, JSON unless writing to a terminal, with a
	// session id.
	ProfileRuntime Profile = iota
	// ProfileTest logs text at debug without a session id.
	ProfileTest
)

// Config describes one logger.
type Config struct {
	Level     slog.Level
	JSON      bool
	AddSource bool
	// Session is attached to every record as "session". Empty disables it.
	Session string
}

var configureOnce sync.Once

// ConfigureRuntime installs the runtime logger on stderr as slog's default
// and returns it. Only the first call has an effect.
func ConfigureRuntime(level string) *slog.Logger {
	return Configure(ProfileRuntime, os.Stderr, level)
}

// Configure installs a logger writing to w as slog's default and returns
// it. Only the first call has an effect; later calls return the logger of
// the first.
func Configure(profile Profile, w io.Writer, level string) *slog.Logger {
	configureOnce.Do(func() {
		slog.SetDefault(NewProfile(profile, w, level))
	})
	return slog.Default()
}

// NewProfile builds a logger writing to w without touching slog's default.
// level, when it parses, overrides the profile default; the environment
// overrides both.
func NewProfile(profile Profile, w io.Writer, level string) *slog.Logger {
	cfg := DefaultConfig(profile, w)
	if lvl, ok := ParseLevel(level); ok {
		cfg.Level = lvl
	}
	applyEnvOverrides(&cfg)
	return New(w, cfg)
}

// DefaultConfig returns the profile defaults. Output to a terminal is
// text, anything else is JSON so log collectors can parse it.
func DefaultConfig(profile Profile, w io.Writer) Config {
	cfg := Config{
		Level:   slog.LevelInfo,
		JSON:    !isTerminal(w),
		Session: uuid.NewString(),
	}
	if profile == ProfileTest {
		cfg.Level = slog.LevelDebug
		cfg.JSON = false
		cfg.Session = ""
	}
	return cfg
}

// New builds a logger for cfg writing to w.
func New(w io.Writer, cfg Config) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: cfg.Level, AddSource: cfg.AddSource}

	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}

	logger := slog.New(handler)
	if cfg.Session != "" {
		logger = logger.With("session", cfg.Session)
	}
	return logger
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func applyEnvOverrides(cfg *Config) {
	if lvl, ok := ParseLevel(os.Getenv(EnvLogLevel)); ok {
		cfg.Level = lvl
	}
	if v, ok := parseBool(os.Getenv(EnvLogJSON)); ok {
		cfg.JSON = v
	}
	if v, ok := parseBool(os.Getenv(EnvLogSource)); ok {
		cfg.AddSource = v
	}
}

// ParseLevel parses a level name. The second result is false for an empty
// or unknown name.
func ParseLevel(raw string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return slog.LevelInfo, false
	case "debug", "trace":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	case "disabled", "off", "none":
		return levelOff, true
	default:
		return slog.LevelInfo, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
