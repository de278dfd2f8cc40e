package pricing

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// CacheTTL is how long a cached provider price list stays fresh.
const CacheTTL = 24 * time.Hour

// cacheRecord is the on-disk shape: one JSON record per provider.
type cacheRecord struct {
	Timestamp time.Time    `json:"timestamp"`
	Data      []PriceEntry `json:"data"`
	Source    string       `json:"source"`
}

// Cache persists provider price lists as one JSON record per provider.
type Cache struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

// NewCache creates a cache rooted at dir.
func NewCache(dir string) (*Cache, error) {
	if dir == "" {
		return nil, fmt.Errorf("cache directory is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &Cache{dir: dir, ttl: CacheTTL, now: time.Now}, nil
}

// Get returns the cached entries for a provider along with whether the
// record exists and whether it is still fresh.
func (c *Cache) Get(provider string) (entries []PriceEntry, fresh bool, ok bool) {
	data, err := os.ReadFile(c.path(provider))
	if err != nil {
		return nil, false, false
	}

	var record cacheRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, false, false
	}

	fresh = c.now().Sub(record.Timestamp) < c.ttl
	return record.Data, fresh, true
}

// Put stores a provider's entries with the current timestamp.
func (c *Cache) Put(provider string, entries []PriceEntry) error {
	record := cacheRecord{
		Timestamp: c.now(),
		Data:      entries,
		Source:    provider,
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.path(provider), data, 0644)
}

func (c *Cache) path(provider string) string {
	return filepath.Join(c.dir, provider+".json")
}
