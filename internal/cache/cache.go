// Package cache holds rendered dynamic persona prompts in memory so the
// pre-request hook does not hit SQLite on every call.
package cache

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// LoadFunc fetches a prompt from the authoritative store. ok is false when
// no prompt exists.
type LoadFunc func(ctx context.Context) (prompt string, ok bool, err error)

// PromptCache is a best-effort map of dynamic persona id to system prompt.
// It is never the only copy of a prompt.
type PromptCache struct {
	mu      sync.RWMutex
	prompts map[string]string
	group   singleflight.Group
}

// New returns an empty cache.
func New() *PromptCache {
	return &PromptCache{prompts: make(map[string]string)}
}

// Get returns the cached prompt for key.
func (c *PromptCache) Get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.prompts[key]
	return p, ok
}

// Set stores prompt under key.
func (c *PromptCache) Set(key, prompt string) {
	c.mu.Lock()
	c.prompts[key] = prompt
	c.mu.Unlock()
}

// Invalidate drops key so the next read goes to the store.
func (c *PromptCache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.prompts, key)
	c.mu.Unlock()
	c.group.Forget(key)
}

// InvalidateAll empties the cache.
func (c *PromptCache) InvalidateAll() {
	c.mu.Lock()
	keys := make([]string, 0, len(c.prompts))
	for k := range c.prompts {
		keys = append(keys, k)
	}
	c.prompts = make(map[string]string)
	c.mu.Unlock()
	for _, k := range keys {
		c.group.Forget(k)
	}
}

// Len reports how many prompts are cached.
func (c *PromptCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.prompts)
}

type loaded struct {
	prompt string
	ok     bool
}

// Load returns the cached prompt for key, calling fn on a miss. Concurrent
// misses for the same key share one fn call. A found prompt is cached; an
// absent one is not, so a later write becomes visible immediately.
func (c *PromptCache) Load(ctx context.Context, key string, fn LoadFunc) (string, bool, error) {
	if p, ok := c.Get(key); ok {
		return p, true, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		if p, ok := c.Get(key); ok {
			return loaded{p, true}, nil
		}
		p, ok, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		if ok {
			c.Set(key, p)
		}
		return loaded{p, ok}, nil
	})
	if err != nil {
		return "", false, err
	}
	l := v.(loaded)
	return l.prompt, l.ok, nil
}
