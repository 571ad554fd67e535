package memory

import (
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// UsernameCache keeps display names for typing indicators so a keystroke burst
// does not turn into a burst of user lookups.
type UsernameCache struct {
	cache *cache.Cache
}

func NewUsernameCache(ttl time.Duration) *UsernameCache {
	return &UsernameCache{
		cache: cache.New(ttl, 2*ttl),
	}
}

func (r *UsernameCache) Save(userId uuid.UUID, username string) {
	r.cache.Set(userId.String(), username, cache.DefaultExpiration)
}

func (r *UsernameCache) Get(userId uuid.UUID) (string, bool) {
	if x, found := r.cache.Get(userId.String()); found {
		return x.(string), true
	}
	return "", false
}

func (r *UsernameCache) Delete(userId uuid.UUID) {
	r.cache.Delete(userId.String())
}
