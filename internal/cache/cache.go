// Package cache provides the TTL read cache in front of profile and search
// lookups, with in-memory and Redis backends.
package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lexicon-cli/internal/config"
	"github.com/sells-group/lexicon-cli/internal/model"
)

// Cache stores opaque values under string keys with a time-to-live.
type Cache interface {
	// Get returns the value for key. ok is false on a miss or an expired entry.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Set stores value under key. A ttl <= 0 never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Invalidate removes every key matching the glob pattern. An empty
	// pattern removes everything.
	Invalidate(ctx context.Context, pattern string) (int, error)
	// Sweep removes expired entries and returns how many were removed.
	Sweep(ctx context.Context) int
	Close() error
}

// Entry is a stored value and its lifetime.
type Entry struct {
	Data      []byte
	StoredAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the entry is no longer readable at now.
func (e Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// Keyspaces, used as metric labels.
const (
	KeyspaceProfile = "profile"
	KeyspaceSearch  = "search"
)

// SearchPattern matches every cached search result.
const SearchPattern = "search:*"

// ProfileWordKey is the cache key of a profile looked up by word.
func ProfileWordKey(word string) string {
	return "profile:word:" + model.NormalizeWord(word)
}

// ProfileIDKey is the cache key of a profile looked up by id.
func ProfileIDKey(id string) string {
	return "profile:id:" + id
}

// SearchKey is the cache key of a search result page.
func SearchKey(query string, limit int) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s|limit=%d", normalized, limit)))
	return fmt.Sprintf("search:%x", hash[:16])
}

// ProfileKeys returns the keys a write to the profile must invalidate.
func ProfileKeys(p *model.WordProfile) []string {
	keys := []string{ProfileWordKey(p.Word)}
	if p.ID != "" {
		keys = append(keys, ProfileIDKey(p.ID))
	}
	return keys
}

// New builds the backend selected by cfg.Backend.
func New(ctx context.Context, cfg config.CacheConfig) (Cache, error) {
	switch cfg.Backend {
	case "memory", "":
		return NewMemory(), nil
	case "redis":
		r, err := NewRedis(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
	return nil, eris.Errorf("cache: unknown backend %q", cfg.Backend)
}
