package image

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const (
	// cacheFileName is the single compressed-image cache slot
	cacheFileName = "lastdfudownload.cache"

	// markerFileName stores the identity of the cached download
	markerFileName = "dfu-cache.yaml"
)

// cacheMarker is the persisted cache identity. The identity is a hash of
// the expected filename, not of the file contents: the filename already
// encodes release, board, distro and variant, and is known before any
// bytes are fetched.
type cacheMarker struct {
	LastDownloadSHA256 string `yaml:"last_download_sha256"`
}

// Identity derives the cache identity for an image filename.
func Identity(filename string) string {
	sum := sha256.Sum256([]byte(filename))
	return hex.EncodeToString(sum[:])
}

// Cache is the single-slot persistent download cache: one compressed image
// file plus one identity marker. An entry is valid only while the backing
// file exists, is readable and has nonzero size; any violation invalidates
// the entry as a side effect of the next lookup.
type Cache struct {
	dir     string
	enabled bool
	log     zerolog.Logger
}

// NewCache returns a cache rooted at dir. A disabled cache never hits and
// never persists downloads.
func NewCache(dir string, enabled bool, log zerolog.Logger) *Cache {
	return &Cache{dir: dir, enabled: enabled, log: log}
}

// Enabled reports whether downloads are persisted into the cache slot.
func (c *Cache) Enabled() bool { return c.enabled }

// Disable turns caching off for the rest of the run. Used after a cache
// write failure so a partial file is never presented as a valid entry.
func (c *Cache) Disable() { c.enabled = false }

// SlotPath returns the path of the cache slot file.
func (c *Cache) SlotPath() string {
	return filepath.Join(c.dir, cacheFileName)
}

func (c *Cache) markerPath() string {
	return filepath.Join(c.dir, markerFileName)
}

// Lookup returns the cached file path if the stored identity matches and
// the backing file is intact. A stored identity pointing at a missing,
// unreadable or empty file is cleared so the next run starts from a clean
// miss.
func (c *Cache) Lookup(identity string) (string, bool) {
	if !c.enabled {
		return "", false
	}

	data, err := os.ReadFile(c.markerPath())
	if err != nil {
		return "", false
	}

	var marker cacheMarker
	if err := yaml.Unmarshal(data, &marker); err != nil {
		c.log.Warn().Err(err).Msg("unreadable cache marker, treating as miss")
		c.clearMarker()
		return "", false
	}

	if marker.LastDownloadSHA256 == "" || marker.LastDownloadSHA256 != identity {
		return "", false
	}

	if !c.slotIntact() {
		c.log.Debug().Msg("cache slot invalid, clearing stored identity")
		c.clearMarker()
		return "", false
	}

	return c.SlotPath(), true
}

// Commit records identity as the cached download. Called only after a
// fully successful fetch into the slot.
func (c *Cache) Commit(identity string) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cacheMarker{LastDownloadSHA256: identity})
	if err != nil {
		return err
	}
	return os.WriteFile(c.markerPath(), data, 0o644)
}

// Invalidate removes the slot file and the stored identity. Called when a
// fetch into the slot fails so no partial file looks like a valid entry.
func (c *Cache) Invalidate() {
	c.clearMarker()
	if err := os.Remove(c.SlotPath()); err != nil && !os.IsNotExist(err) {
		c.log.Warn().Err(err).Msg("cannot remove cache slot")
	}
}

func (c *Cache) clearMarker() {
	if err := os.Remove(c.markerPath()); err != nil && !os.IsNotExist(err) {
		c.log.Warn().Err(err).Msg("cannot remove cache marker")
	}
}

// slotIntact checks existence, readability and nonzero size.
func (c *Cache) slotIntact() bool {
	fi, err := os.Stat(c.SlotPath())
	if err != nil || fi.Size() == 0 {
		return false
	}
	f, err := os.Open(c.SlotPath())
	if err != nil {
		return false
	}
	f.Close()
	return true
}
