// Package config loads the pdbgen command configuration file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/arloliu/pdbgen/errs"
	"github.com/arloliu/pdbgen/format"
	"github.com/arloliu/pdbgen/internal/logging"
)

// EnvConfigPath names the environment variable that overrides the config
// file path.
const EnvConfigPath = "PDBGEN_CONFIG"

// Default locations below the user home directory.
const (
	DefaultDir  = ".pdbgen"
	ConfigFile  = "config.yaml"
	fallbackDir = "/tmp/pdbgen-fallback"
)

// Config is the command configuration.
type Config struct {
	Log  LogConfig  `yaml:"log"`
	Pack PackConfig `yaml:"pack"`
}

// LogConfig configures the command logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// PackConfig configures artifact packing.
type PackConfig struct {
	// Codec is one of none, zstd, s2, lz4.
	Codec string `yaml:"codec"`
	// Level is the zstd compression level; 0 selects the default.
	Level int `yaml:"level"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Log:  LogConfig{Level: "info", Pretty: true},
		Pack: PackConfig{Codec: "zstd"},
	}
}

// Logging converts the log section into a logger configuration.
func (c *Config) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = c.Log.Level
	cfg.Pretty = c.Log.Pretty

	return cfg
}

// Codec returns the configured compression type.
func (c *Config) Codec() (format.CompressionType, error) {
	ct, ok := format.ParseCompressionType(c.Pack.Codec)
	if !ok {
		return 0, fmt.Errorf("%w: %q", errs.ErrInvalidCodec, c.Pack.Codec)
	}

	return ct, nil
}

// Validate checks field values.
func (c *Config) Validate() error {
	if _, err := c.Codec(); err != nil {
		return err
	}
	if c.Pack.Level < 0 || c.Pack.Level > 22 {
		return fmt.Errorf("pack.level %d out of range [0, 22]", c.Pack.Level)
	}
	switch c.Log.Level {
	case "", "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log.level %q", c.Log.Level)
	}

	return nil
}

// Loader locates and reads the configuration file.
type Loader struct {
	path string
}

// NewLoader creates a config loader. The file path is resolved in this order:
//  1. path, when not empty (the --config flag).
//  2. PDBGEN_CONFIG environment variable.
//  3. ~/.pdbgen/config.yaml.
//  4. /tmp/pdbgen-fallback/config.yaml when there is no home directory.
func NewLoader(path string) *Loader {
	if path != "" {
		return &Loader{path: path}
	}
	if env := os.Getenv(EnvConfigPath); env != "" {
		return &Loader{path: env}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return &Loader{path: filepath.Join(fallbackDir, ConfigFile)}
	}

	return &Loader{path: filepath.Join(homeDir, DefaultDir, ConfigFile)}
}

// Path returns the resolved config file path.
func (l *Loader) Path() string {
	return l.path
}

// Load reads the configuration file. Fields absent from the file keep their
// defaults, and a missing file yields Default().
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	//nolint:gosec // G304: path comes from the user's own flag or environment.
	data, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", l.path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", l.path, err)
	}

	return cfg, nil
}
