package memory

import (
	"context"
	"sync"
)

// LookupFunc fetches the display name for a user ID from the messaging
// platform's profile endpoint.
type LookupFunc func(ctx context.Context, userID string) (string, error)

// NameCache resolves LINE user IDs to display names, remembering every
// successful lookup for the lifetime of the process. Failed lookups are
// not cached, so the next message from that user retries the profile
// fetch instead of pinning the raw ID forever.
type NameCache struct {
	mu     sync.RWMutex
	names  map[string]string
	lookup LookupFunc
}

// NewNameCache creates a cache backed by the given profile lookup.
func NewNameCache(lookup LookupFunc) *NameCache {
	return &NameCache{
		names:  make(map[string]string),
		lookup: lookup,
	}
}

// Resolve returns the display name for userID, fetching and caching it on
// first use. When the lookup fails or returns an empty name the raw ID is
// returned so the caller always has something to label the user with.
func (c *NameCache) Resolve(ctx context.Context, userID string) string {
	c.mu.RLock()
	name, ok := c.names[userID]
	c.mu.RUnlock()
	if ok {
		return name
	}

	name, err := c.lookup(ctx, userID)
	if err != nil || name == "" {
		return userID
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Another goroutine may have resolved the same user while we were on
	// the network; the first write wins.
	if cached, ok := c.names[userID]; ok {
		return cached
	}
	c.names[userID] = name
	return name
}

// Len reports how many names have been cached.
func (c *NameCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.names)
}
