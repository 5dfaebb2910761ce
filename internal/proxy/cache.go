package proxy

import (
	"encoding/json"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// CacheTTL is how long a cacheable response stays fresh. The window is
// fixed; there is no per-action override.
const CacheTTL = 2 * time.Minute

// cacheableActions lists the read-only, low-volatility actions whose
// responses may be reused within the TTL. Everything else always goes to
// the network.
var cacheableActions = map[Provider]map[string]bool{
	ProviderOpenAI: {ActionListModels: true},
	ProviderGitHub: {ActionListRepos: true},
}

// isCacheable reports whether responses for this provider/action pair
// may be served from cache.
func isCacheable(provider Provider, action string) bool {
	return cacheableActions[provider][action]
}

// CacheKey derives the cache key for a call: the provider, the action,
// and the JSON serialization of the payload, colon-joined. Keys compare
// by exact string equality; two payloads that marshal differently are
// different keys even if semantically equal.
func CacheKey(provider Provider, action string, payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload for cache key: %w", err)
	}
	return string(provider) + ":" + action + ":" + string(raw), nil
}

// CacheStats describes the live cache contents.
type CacheStats struct {
	Entries int      `json:"entries"`
	Keys    []string `json:"keys"`
}

// Store is the cache the client reads and writes. Implementations expire
// entries on their own schedule; the client never re-checks freshness.
type Store interface {
	Get(key string) (Response, bool)
	Set(key string, r Response)
	Delete(key string)
	Keys() []string
	Clear()
}

// gocacheStore backs Store with an expiring in-memory cache.
type gocacheStore struct {
	c *gocache.Cache
}

var _ Store = (*gocacheStore)(nil)

// NewStore creates the production cache store with the given TTL.
func NewStore(ttl time.Duration) Store {
	if ttl <= 0 {
		ttl = CacheTTL
	}
	return &gocacheStore{c: gocache.New(ttl, 2*ttl)}
}

func (s *gocacheStore) Get(key string) (Response, bool) {
	v, ok := s.c.Get(key)
	if !ok {
		return Response{}, false
	}
	resp, ok := v.(Response)
	return resp, ok
}

func (s *gocacheStore) Set(key string, r Response) {
	s.c.Set(key, r, gocache.DefaultExpiration)
}

func (s *gocacheStore) Delete(key string) {
	s.c.Delete(key)
}

func (s *gocacheStore) Keys() []string {
	items := s.c.Items()
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	return keys
}

func (s *gocacheStore) Clear() {
	s.c.Flush()
}
