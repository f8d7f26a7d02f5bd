package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/pdbgen/errs"
	"github.com/arloliu/pdbgen/format"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestNewLoader_Resolution(t *testing.T) {
	t.Setenv(EnvConfigPath, "/etc/pdbgen.yaml")
	assert.Equal(t, "/from/flag.yaml", NewLoader("/from/flag.yaml").Path())
	assert.Equal(t, "/etc/pdbgen.yaml", NewLoader("").Path())

	t.Setenv(EnvConfigPath, "")
	t.Setenv("HOME", "/home/builder")
	assert.Equal(t, filepath.Join("/home/builder", DefaultDir, ConfigFile), NewLoader("").Path())
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := NewLoader(filepath.Join(t.TempDir(), "absent.yaml")).Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_Partial(t *testing.T) {
	path := writeConfig(t, "pack:\n  codec: lz4\n")

	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)
	assert.Equal(t, "lz4", cfg.Pack.Codec)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.Log.Pretty)

	ct, err := cfg.Codec()
	require.NoError(t, err)
	assert.Equal(t, format.CompressionLZ4, ct)
}

func TestLoad_Full(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
  pretty: false
pack:
  codec: zstd
  level: 19
`)

	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)
	assert.Equal(t, LogConfig{Level: "debug", Pretty: false}, cfg.Log)
	assert.Equal(t, PackConfig{Codec: "zstd", Level: 19}, cfg.Pack)

	lc := cfg.Logging()
	assert.Equal(t, "debug", lc.Level)
	assert.False(t, lc.Pretty)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		err     error
	}{
		{"syntax", "log: [", nil},
		{"codec", "pack:\n  codec: brotli\n", errs.ErrInvalidCodec},
		{"level", "pack:\n  level: 40\n", nil},
		{"log level", "log:\n  level: loud\n", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoader(writeConfig(t, tt.content)).Load()
			require.Error(t, err)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
			}
		})
	}
}

func TestLoad_Unreadable(t *testing.T) {
	// A directory cannot be read as a file.
	_, err := NewLoader(t.TempDir()).Load()
	require.Error(t, err)
}
