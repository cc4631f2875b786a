package geo

import "sync"

// TransformKey identifies a conversion between two reference systems.
type TransformKey struct {
	Source string
	Target string
}

// TransformCache holds projection objects for the life of the process.
// Lookups take a read lock; a miss builds the projection once under the write lock.
type TransformCache struct {
	mu    sync.RWMutex
	items map[TransformKey]*TransverseMercator
}

func NewTransformCache() *TransformCache {
	return &TransformCache{items: make(map[TransformKey]*TransverseMercator)}
}

// GetOrCreate returns the cached projection for key, building it with build on a miss.
func (c *TransformCache) GetOrCreate(key TransformKey, build func() *TransverseMercator) *TransverseMercator {
	c.mu.RLock()
	tm, ok := c.items[key]
	c.mu.RUnlock()
	if ok {
		return tm
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if tm, ok := c.items[key]; ok {
		return tm
	}
	tm = build()
	c.items[key] = tm
	return tm
}

func (c *TransformCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Reset drops every cached projection.
func (c *TransformCache) Reset() {
	c.mu.Lock()
	c.items = make(map[TransformKey]*TransverseMercator)
	c.mu.Unlock()
}
