package identity

import (
	"fmt"

	"identity-gate/internal/metrics"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// SourceFactory returns the session-change stream for one session id.
type SourceFactory func(sessionID string) SessionSource

// Hub owns one started Resolver per browser session. Entries are held in
// a bounded LRU; evicted resolvers are stopped.
type Hub struct {
	newSource SourceFactory
	profiles  ProfileStore
	opts      []Option

	cache *lru.Cache[string, *Resolver]
	group singleflight.Group
}

func NewHub(newSource SourceFactory, profiles ProfileStore, size int, opts ...Option) (*Hub, error) {
	cache, err := lru.NewWithEvict(size, func(_ string, r *Resolver) {
		r.Stop()
		metrics.ActiveResolvers.Dec()
	})
	if err != nil {
		return nil, fmt.Errorf("identity: hub cache: %w", err)
	}

	return &Hub{
		newSource: newSource,
		profiles:  profiles,
		opts:      opts,
		cache:     cache,
	}, nil
}

// Resolver returns the started resolver for sessionID, creating it on
// first use. Concurrent first lookups share one creation.
func (h *Hub) Resolver(sessionID string) (*Resolver, error) {
	if r, ok := h.cache.Get(sessionID); ok {
		return r, nil
	}

	v, err, _ := h.group.Do(sessionID, func() (any, error) {
		if r, ok := h.cache.Get(sessionID); ok {
			return r, nil
		}

		r := NewResolver(h.newSource(sessionID), h.profiles, h.opts...)
		if _, err := r.Start(); err != nil {
			return nil, err
		}

		metrics.ActiveResolvers.Inc()
		h.cache.Add(sessionID, r)
		return r, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Resolver), nil
}

// Forget stops and drops the resolver for sessionID, if any.
func (h *Hub) Forget(sessionID string) {
	h.cache.Remove(sessionID)
}

// Len reports how many resolvers are live.
func (h *Hub) Len() int {
	return h.cache.Len()
}

// Close stops every resolver.
func (h *Hub) Close() {
	h.cache.Purge()
}
