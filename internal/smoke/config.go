package smoke

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultBenchmarkPrefix selects the memory flavor of the system health
	// benchmarks, which run every story with the fewest actions.
	DefaultBenchmarkPrefix = "system_health.memory"
	// DefaultMaxNumValues caps the values one benchmark may upload, summed
	// over its stories.
	DefaultMaxNumValues = 50000
)

// Config selects and tunes the generated smoke cases.
type Config struct {
	BenchmarkPrefix string `toml:"benchmark_prefix" yaml:"benchmark_prefix"`
	// Disabled lists case names ("benchmark/story") that are skipped.
	Disabled []string `toml:"disabled" yaml:"disabled"`
	// RunDisabled runs disabled cases anyway.
	RunDisabled  bool `toml:"run_disabled" yaml:"run_disabled"`
	MaxNumValues int  `toml:"max_num_values" yaml:"max_num_values"`
	// SkipPlatforms lists platforms on which every case is skipped.
	SkipPlatforms []string `toml:"skip_platforms" yaml:"skip_platforms"`
	// Platform is the platform the cases run on.
	Platform string `toml:"platform" yaml:"platform"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		BenchmarkPrefix: DefaultBenchmarkPrefix,
		MaxNumValues:    DefaultMaxNumValues,
		SkipPlatforms:   []string{"chromeos"},
	}
}

// LoadConfig reads a TOML (.toml) or YAML (.yaml, .yml) file. Keys missing
// from the file keep their DefaultConfig values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "read smoke config")
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(raw, &cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, &cfg)
	default:
		return cfg, errors.Errorf("unsupported smoke config format %q", filepath.Ext(path))
	}
	if err != nil {
		return cfg, errors.Wrapf(err, "parse %s", path)
	}

	if cfg.BenchmarkPrefix == "" {
		cfg.BenchmarkPrefix = DefaultBenchmarkPrefix
	}
	if cfg.MaxNumValues <= 0 {
		cfg.MaxNumValues = DefaultMaxNumValues
	}
	return cfg, nil
}

func (c Config) isDisabled(name string) bool {
	for _, d := range c.Disabled {
		if d == name {
			return true
		}
	}
	return false
}

func (c Config) skipsPlatform(platform string) bool {
	for _, p := range c.SkipPlatforms {
		if strings.EqualFold(p, platform) {
			return true
		}
	}
	return false
}
