package catalog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/mkline/orimg/pkg/models"
)

// DefaultTTL bounds how long a cached catalog is trusted.
const DefaultTTL = 24 * time.Hour

type cacheFile struct {
	FetchedAt time.Time          `json:"fetched_at"`
	Models    []models.ModelInfo `json:"models"`
}

// Cache stores the fetched catalog as JSON under the state directory.
type Cache struct {
	path string
	ttl  time.Duration
	now  func() time.Time
}

func NewCache() (*Cache, error) {
	path, err := defaultCachePath()
	if err != nil {
		return nil, err
	}
	return NewCacheWithPath(path, DefaultTTL), nil
}

func NewCacheWithPath(path string, ttl time.Duration) *Cache {
	return &Cache{path: path, ttl: ttl, now: time.Now}
}

func defaultCachePath() (string, error) {
	if v := os.Getenv("XDG_STATE_HOME"); v != "" {
		return filepath.Join(v, "orimg", "models.json"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "state", "orimg", "models.json"), nil
}

// Load returns the cached list when present and within the TTL. A missing
// or unparseable cache reads as absent, never as an error.
func (c *Cache) Load() ([]models.ModelInfo, bool) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, false
	}

	var cached cacheFile
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, false
	}
	if c.now().Sub(cached.FetchedAt) > c.ttl {
		return nil, false
	}
	return cached.Models, true
}

// Save writes the list with the current timestamp. Errors are swallowed:
// the cache is an optimization, not a store of record.
func (c *Cache) Save(list []models.ModelInfo) {
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return
	}

	data, err := json.MarshalIndent(cacheFile{FetchedAt: c.now(), Models: list}, "", "  ")
	if err != nil {
		return
	}
	os.WriteFile(c.path, data, 0644)
}
