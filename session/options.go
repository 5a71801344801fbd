package session

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/t3gemstone/dfuflash/protocol"
)

// Config holds the session controller configuration.
type Config struct {
	// DiscoveryAttempts is the number of bus probes before discovery
	// gives up. The retry loop exists because a device may still be
	// completing a prior reset when discovery starts.
	DiscoveryAttempts int

	// RetryInterval is the wait between discovery attempts
	RetryInterval time.Duration

	// FallbackBlockSize is used when a device advertises no transfer size
	FallbackBlockSize int

	// DetachTimeout is passed to the DFU detach request after a transfer
	DetachTimeout time.Duration

	// Logger receives session diagnostics
	Logger zerolog.Logger

	// ProgressCallback is called during the transfer to report progress
	// (optional)
	ProgressCallback ProgressCallback
}

// defaultConfig returns the default configuration. The discovery and
// detach tunables are the values validated on TI J7-class devices.
func defaultConfig() Config {
	return Config{
		DiscoveryAttempts: 15,
		RetryInterval:     time.Second,
		FallbackBlockSize: protocol.DefaultTransferSize,
		DetachTimeout:     time.Second,
		Logger:            zerolog.Nop(),
	}
}

// Option is a functional option for configuring the Controller.
type Option func(*Config)

// WithDiscoveryAttempts sets the number of probe attempts before discovery
// fails. Default is 15.
func WithDiscoveryAttempts(attempts int) Option {
	return func(c *Config) {
		if attempts > 0 {
			c.DiscoveryAttempts = attempts
		}
	}
}

// WithRetryInterval sets the wait between discovery attempts.
// Default is one second.
func WithRetryInterval(interval time.Duration) Option {
	return func(c *Config) {
		if interval >= 0 {
			c.RetryInterval = interval
		}
	}
}

// WithFallbackBlockSize sets the transfer block size used when the device
// does not advertise one. Default is 1024 bytes.
func WithFallbackBlockSize(size int) Option {
	return func(c *Config) {
		if size > 0 {
			c.FallbackBlockSize = size
		}
	}
}

// WithDetachTimeout sets the timeout sent with the DFU detach request.
// Default is one second.
func WithDetachTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout > 0 {
			c.DetachTimeout = timeout
		}
	}
}

// WithLogger sets a logger for session diagnostics.
//
// Example:
//
//	ctrl := session.New(prober, session.WithLogger(log.With().Str("stage", "tispl").Logger()))
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithProgressCallback sets a callback function to track transfer progress.
func WithProgressCallback(callback ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = callback
	}
}
