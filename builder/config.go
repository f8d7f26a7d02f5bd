package builder

import (
	"fmt"
	"runtime"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/arloliu/pdbgen/errs"
	"github.com/arloliu/pdbgen/internal/options"
	"github.com/arloliu/pdbgen/layout"
	"github.com/arloliu/pdbgen/msf"
)

// DefaultToolVersion is the toolchain version recorded when none is
// configured. Readers that gate features on the DBI build number expect a
// 14.x toolchain.
const DefaultToolVersion = "14.11.0"

// Config holds the settings of a Builder.
type Config struct {
	logger          zerolog.Logger
	age             uint32
	signature       uint32
	hasSignature    bool
	guid            uuid.UUID
	deterministic   bool
	version         *semver.Version
	scanConcurrency int
	blockSize       uint32
	timestamp       time.Time
}

// NewConfig returns the default configuration: age 1, a random GUID, the
// current time as signature, DefaultToolVersion and one scan worker per CPU.
func NewConfig() *Config {
	return &Config{
		logger:          zerolog.Nop(),
		age:             1,
		version:         semver.MustParse(DefaultToolVersion),
		scanConcurrency: runtime.GOMAXPROCS(0),
		blockSize:       msf.DefaultBlockSize,
	}
}

// Age returns the configured artifact age.
func (c *Config) Age() uint32 {
	return c.age
}

// ToolVersion returns the configured toolchain version.
func (c *Config) ToolVersion() *semver.Version {
	return c.version
}

// BlockSize returns the configured container block size.
func (c *Config) BlockSize() uint32 {
	return c.blockSize
}

// signatureAt returns the configured signature, or the timestamp in seconds
// when none was set.
func (c *Config) signatureAt(now time.Time) uint32 {
	if c.hasSignature {
		return c.signature
	}
	if !c.timestamp.IsZero() {
		now = c.timestamp
	}

	return uint32(now.Unix()) //nolint: gosec
}

// buildNumber returns the major and minor version packed into the DBI header.
func (c *Config) buildNumber() (major, minor uint8) {
	return uint8(min(c.version.Major(), 0x7f)), uint8(min(c.version.Minor(), 0xff)) //nolint: gosec
}

// Option configures a Builder.
type Option = options.Option[*Config]

// WithLogger sets the logger. The default discards every event.
func WithLogger(logger zerolog.Logger) Option {
	return options.NoError(func(c *Config) {
		c.logger = logger
	})
}

// WithAge sets the age stored in the info and DBI streams. Age must be
// positive.
func WithAge(age uint32) Option {
	return options.New(func(c *Config) error {
		if age == 0 {
			return fmt.Errorf("%w: age must be positive", errs.ErrInvalidAge)
		}
		c.age = age

		return nil
	})
}

// WithSignature sets the 32-bit info stream signature explicitly.
func WithSignature(signature uint32) Option {
	return options.NoError(func(c *Config) {
		c.signature = signature
		c.hasSignature = true
	})
}

// WithGUID sets the artifact GUID. uuid.Nil leaves the GUID to be generated.
func WithGUID(guid uuid.UUID) Option {
	return options.NoError(func(c *Config) {
		c.guid = guid
	})
}

// WithDeterministicGUID derives a generated GUID, and the signature unless
// one is set, from a hash of the finished streams, so identical inputs
// produce byte-identical artifacts.
func WithDeterministicGUID(enabled bool) Option {
	return options.NoError(func(c *Config) {
		c.deterministic = enabled
	})
}

// WithToolVersion sets the toolchain version recorded in S_COMPILE3 of the
// linker module and the DBI build number.
//
// Returns ErrInvalidVersion when version is not a semantic version.
func WithToolVersion(version string) Option {
	return options.New(func(c *Config) error {
		v, err := semver.NewVersion(version)
		if err != nil {
			return fmt.Errorf("%w: %q: %w", errs.ErrInvalidVersion, version, err)
		}
		c.version = v

		return nil
	})
}

// WithScanConcurrency bounds the number of modules split into records at
// the same time. n <= 0 selects GOMAXPROCS.
func WithScanConcurrency(n int) Option {
	return options.NoError(func(c *Config) {
		if n <= 0 {
			n = runtime.GOMAXPROCS(0)
		}
		c.scanConcurrency = n
	})
}

// WithBlockSize sets the container block size: 512, 1024, 2048 or 4096.
func WithBlockSize(size uint32) Option {
	return options.New(func(c *Config) error {
		if !layout.ValidBlockSize(size) {
			return fmt.Errorf("%w: %d", errs.ErrInvalidBlockSize, size)
		}
		c.blockSize = size

		return nil
	})
}

// WithTimestamp sets the link time used as default signature.
func WithTimestamp(t time.Time) Option {
	return options.NoError(func(c *Config) {
		c.timestamp = t
	})
}
