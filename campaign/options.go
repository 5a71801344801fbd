package campaign

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/t3gemstone/dfuflash/image"
	"github.com/t3gemstone/dfuflash/protocol"
	"github.com/t3gemstone/dfuflash/session"
)

// Acquirer produces a decompressed staging file for a selected image.
// Satisfied by *image.Acquirer.
type Acquirer interface {
	Acquire(ctx context.Context, sel image.Selector, progress image.ProgressFunc) (string, error)
}

// Config holds the campaign runner configuration.
type Config struct {
	// Match carries the base vendor/product identifiers; each stage
	// narrows it with its alternate-setting name
	Match protocol.DeviceMatch

	// RawAltName is the alternate setting the disk image is sent to
	RawAltName string

	// StageSettle is the wait between bootloader stages for the device
	// to re-enumerate
	StageSettle time.Duration

	// ImageSettle is the longer wait before the raw-storage stage
	ImageSettle time.Duration

	// EventBuffer sizes the event channel
	EventBuffer int

	// Logger receives campaign diagnostics
	Logger zerolog.Logger

	// Acquirer overrides the image acquirer (nil uses image.New with
	// defaults)
	Acquirer Acquirer

	// SessionOptions are applied to every per-stage session
	SessionOptions []session.Option
}

// defaultConfig returns the default configuration. The settle intervals
// are fixed rather than adaptive: the device's re-enumeration timing after
// a USB reset is not independently observable without risking a match
// against a half-initialized interface, so the campaign trades latency for
// determinism at known stage boundaries. The 5s/10s values are what TI
// J7-class devices were observed to need.
func defaultConfig() Config {
	return Config{
		Match:       protocol.DeviceMatch{VendorID: DefaultVendorID, ProductID: DefaultProductID},
		RawAltName:  DefaultRawAltName,
		StageSettle: 5 * time.Second,
		ImageSettle: 10 * time.Second,
		EventBuffer: 64,
		Logger:      zerolog.Nop(),
	}
}

// Option is a functional option for configuring the Runner.
type Option func(*Config)

// WithMatch overrides the base vendor/product identifiers.
func WithMatch(match protocol.DeviceMatch) Option {
	return func(c *Config) {
		c.Match = match
	}
}

// WithRawAltName overrides the raw-storage alternate-setting name.
func WithRawAltName(name string) Option {
	return func(c *Config) {
		if name != "" {
			c.RawAltName = name
		}
	}
}

// WithStageSettle sets the wait between bootloader stages.
// Default is 5 seconds.
func WithStageSettle(d time.Duration) Option {
	return func(c *Config) {
		if d >= 0 {
			c.StageSettle = d
		}
	}
}

// WithImageSettle sets the wait before the raw-storage image stage.
// Default is 10 seconds.
func WithImageSettle(d time.Duration) Option {
	return func(c *Config) {
		if d >= 0 {
			c.ImageSettle = d
		}
	}
}

// WithLogger sets a logger for campaign diagnostics.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithAcquirer overrides the image acquirer.
func WithAcquirer(a Acquirer) Option {
	return func(c *Config) {
		c.Acquirer = a
	}
}

// WithSessionOptions appends options applied to every per-stage session.
func WithSessionOptions(opts ...session.Option) Option {
	return func(c *Config) {
		c.SessionOptions = append(c.SessionOptions, opts...)
	}
}
