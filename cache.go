package barney

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// ProgramCache stores compiled rule programs keyed by expression strings.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// ModuleCache memoizes load results keyed by canonical identity. Hosts use it
// for their real loads; Uncache deletes from it.
type ModuleCache interface {
	Get(identity string) (any, bool)
	Set(identity string, value any)
	Delete(identity string) bool
	Flush()
}

type memoryCache struct {
	cache *gocache.Cache
}

// NewModuleCache returns a ModuleCache whose entries never expire.
func NewModuleCache() ModuleCache {
	return &memoryCache{cache: gocache.New(gocache.NoExpiration, 0)}
}

// NewProgramCache returns a ProgramCache evicting entries after ttl. A
// non-positive ttl keeps entries forever.
func NewProgramCache(ttl time.Duration) ProgramCache {
	if ttl <= 0 {
		return &memoryCache{cache: gocache.New(gocache.NoExpiration, 0)}
	}
	return &memoryCache{cache: gocache.New(ttl, 2*ttl)}
}

func (c *memoryCache) Get(key string) (any, bool) {
	return c.cache.Get(key)
}

func (c *memoryCache) Set(key string, value any) {
	c.cache.Set(key, value, gocache.DefaultExpiration)
}

func (c *memoryCache) Delete(key string) bool {
	if _, found := c.cache.Get(key); !found {
		return false
	}
	c.cache.Delete(key)
	return true
}

func (c *memoryCache) Flush() {
	c.cache.Flush()
}
