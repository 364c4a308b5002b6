package app

import (
	"crypto/sha256"
	"sync"
)

// contentCache remembers a digest of the last indexed content per path so a
// refresh can tell edits from touches.
type contentCache struct {
	mu     sync.RWMutex
	hashes map[string][sha256.Size]byte
}

func newContentCache() *contentCache {
	return &contentCache{hashes: make(map[string][sha256.Size]byte)}
}

// changed records content for path and reports whether it differs from what
// was recorded before.
func (c *contentCache) changed(path string, content []byte) bool {
	sum := sha256.Sum256(content)
	c.mu.Lock()
	defer c.mu.Unlock()
	prev, ok := c.hashes[path]
	c.hashes[path] = sum
	return !ok || prev != sum
}

func (c *contentCache) drop(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.hashes, path)
}

func (c *contentCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.hashes)
}
