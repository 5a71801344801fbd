package image

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/imroc/req/v3"
	"github.com/rs/zerolog"
)

const (
	fetchBufferSize = 64 * 1024
	megabyte        = 1024 * 1024

	// extractProgressSpan caps the extraction progress contribution;
	// scaled against a nominal 4 GiB image so huge images still move
	// the bar.
	extractProgressSpan  = 10
	extractNominalBytes  = int64(4) << 30
	downloadProgressBase = 5
	downloadProgressSpan = 35
)

// ProgressFunc receives acquisition progress as an absolute percentage in
// the 5-50 band plus a user-facing status message.
type ProgressFunc func(percent int, message string)

// Config holds the acquirer configuration.
type Config struct {
	// BaseURL is the image repository root
	BaseURL string

	// Release is the release tag images are resolved against
	Release string

	// CacheDir holds the cache slot and identity marker
	CacheDir string

	// CacheEnabled persists the compressed download for reuse
	CacheEnabled bool

	// TempDir receives decompressed staging files
	TempDir string

	// Logger receives acquisition diagnostics
	Logger zerolog.Logger
}

func defaultConfig() Config {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		cacheDir = os.TempDir()
	}
	return Config{
		BaseURL:      DefaultBaseURL,
		Release:      DefaultRelease,
		CacheDir:     filepath.Join(cacheDir, "dfuflash"),
		CacheEnabled: true,
		TempDir:      filepath.Join(os.TempDir(), "dfuflash"),
		Logger:       zerolog.Nop(),
	}
}

// Option is a functional option for configuring the Acquirer.
type Option func(*Config)

// WithBaseURL overrides the image repository root.
func WithBaseURL(url string) Option {
	return func(c *Config) {
		if url != "" {
			c.BaseURL = url
		}
	}
}

// WithRelease overrides the release tag.
func WithRelease(release string) Option {
	return func(c *Config) {
		if release != "" {
			c.Release = release
		}
	}
}

// WithCacheDir overrides the cache directory.
func WithCacheDir(dir string) Option {
	return func(c *Config) {
		if dir != "" {
			c.CacheDir = dir
		}
	}
}

// WithCaching enables or disables the persistent download cache.
func WithCaching(enabled bool) Option {
	return func(c *Config) {
		c.CacheEnabled = enabled
	}
}

// WithTempDir overrides the staging directory.
func WithTempDir(dir string) Option {
	return func(c *Config) {
		if dir != "" {
			c.TempDir = dir
		}
	}
}

// WithLogger sets a logger for acquisition diagnostics.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// Acquirer obtains the compressed disk image and produces its decompressed
// staging file, reusing a previous download when verifiably identical.
type Acquirer struct {
	client *req.Client
	cache  *Cache
	config Config
}

// New creates an Acquirer with the given options.
func New(opts ...Option) *Acquirer {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Acquirer{
		client: req.C().
			SetUserAgent("dfuflash").
			DisableAutoReadResponse(),
		cache:  NewCache(cfg.CacheDir, cfg.CacheEnabled, cfg.Logger),
		config: cfg,
	}
}

// Acquire resolves, fetches and decompresses the image named by sel,
// returning the path of the decompressed staging file. The caller owns the
// staging file and removes it when done; the compressed download persists
// only in the cache slot.
func (a *Acquirer) Acquire(ctx context.Context, sel Selector, progress ProgressFunc) (string, error) {
	if progress == nil {
		progress = func(int, string) {}
	}

	filename := sel.Filename(a.config.Release)
	url := sel.URL(a.config.BaseURL, a.config.Release)
	identity := Identity(filename)

	a.config.Logger.Debug().Str("url", url).Msg("image resolved")
	progress(downloadProgressBase, fmt.Sprintf("Downloading system image: %s", filename))

	compressed, cached, err := a.obtain(ctx, url, identity, filename, progress)
	if err != nil {
		return "", err
	}

	progress(40, "Extracting image from archive...")

	if err := os.MkdirAll(a.config.TempDir, 0o755); err != nil {
		return "", fmt.Errorf("create staging directory: %w", err)
	}
	staging := filepath.Join(a.config.TempDir, strings.TrimSuffix(filename, ".xz"))

	extractErr := extractXZ(compressed, staging, func(written int64) {
		pct := 40 + int(min64(extractProgressSpan, written*extractProgressSpan/extractNominalBytes))
		progress(pct, fmt.Sprintf("Extracted: %d MB", written/megabyte))
	})

	// The compressed source is only kept when it is the cache slot itself.
	if !cached {
		os.Remove(compressed)
	} else {
		a.config.Logger.Debug().Str("path", compressed).Msg("keeping cached compressed file")
	}

	if extractErr != nil {
		return "", extractErr
	}

	progress(50, "Image extracted successfully")
	return staging, nil
}

// obtain returns a readable compressed archive path, from cache when the
// stored identity matches, otherwise by network fetch. cached reports
// whether the returned path is the persistent cache slot.
func (a *Acquirer) obtain(ctx context.Context, url, identity, filename string, progress ProgressFunc) (path string, cached bool, err error) {
	if p, ok := a.cache.Lookup(identity); ok {
		a.config.Logger.Info().Msg("using cached image download")
		progress(40, "Using cached image file")
		return p, true, nil
	}

	var dest string
	if a.cache.Enabled() {
		dest = a.cache.SlotPath()
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			a.config.Logger.Warn().Err(err).Msg("cannot create cache directory, disabling caching")
			a.cache.Disable()
		} else {
			os.Remove(dest)
		}
	}
	if !a.cache.Enabled() {
		if err := os.MkdirAll(a.config.TempDir, 0o755); err != nil {
			return "", false, fmt.Errorf("create temp directory: %w", err)
		}
		dest = filepath.Join(a.config.TempDir, uuid.NewString()[:8]+"-"+filename)
	}

	if err := a.fetch(ctx, url, dest, progress); err != nil {
		os.Remove(dest)
		if a.cache.Enabled() {
			a.cache.Invalidate()
		}
		return "", false, err
	}

	if a.cache.Enabled() {
		if err := a.cache.Commit(identity); err != nil {
			a.config.Logger.Warn().Err(err).Msg("cannot persist cache identity")
		} else {
			a.config.Logger.Debug().Str("identity", identity).Msg("cache identity updated")
		}
		return dest, true, nil
	}
	return dest, false, nil
}

// fetch streams the archive at url into dest, reporting progress in the
// 5-40 band when the server announces a content length.
func (a *Acquirer) fetch(ctx context.Context, url, dest string, progress ProgressFunc) error {
	out, err := os.Create(dest)
	if err != nil {
		return &FetchError{URL: url, Err: err}
	}

	resp, err := a.client.R().SetContext(ctx).Get(url)
	if err != nil {
		out.Close()
		return &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.IsErrorState() {
		out.Close()
		return &FetchError{URL: url, StatusCode: resp.StatusCode}
	}

	total := resp.ContentLength
	if total > 0 {
		// Pre-allocate so a full disk fails fast instead of mid-download.
		if err := out.Truncate(total); err != nil {
			a.config.Logger.Warn().Err(err).Int64("size", total).Msg("cannot pre-allocate download file")
		}
	}

	buf := make([]byte, fetchBufferSize)
	var received int64

	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				out.Close()
				return &FetchError{URL: url, Err: werr}
			}
			received += int64(n)
			if total > 0 {
				pct := downloadProgressBase + int(received*downloadProgressSpan/total)
				progress(pct, fmt.Sprintf("Downloading: %d MB / %d MB",
					received/megabyte, total/megabyte))
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			out.Close()
			return &FetchError{URL: url, Err: rerr}
		}
	}

	if err := out.Close(); err != nil {
		return &FetchError{URL: url, Err: err}
	}

	a.config.Logger.Info().Int64("bytes", received).Msg("download completed")
	return nil
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
