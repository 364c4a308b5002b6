package symbols

import (
	"container/list"
	"sync"
)

// lookupCache is a capacity-bounded LRU of declaration lookups keyed by
// qualified name. Misses are cached too so that repeated references to an
// absent type do not reach the database.
type lookupCache struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	order    *list.List // front = most recently used
}

type cachedLookup struct {
	name  string
	decl  *TypeDecl
	found bool
}

func newLookupCache(capacity int) *lookupCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &lookupCache{
		capacity: capacity,
		items:    make(map[string]*list.Element, capacity),
		order:    list.New(),
	}
}

func (c *lookupCache) get(name string) (cachedLookup, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[name]
	if !ok {
		return cachedLookup{}, false
	}
	c.order.MoveToFront(el)
	return *el.Value.(*cachedLookup), true
}

func (c *lookupCache) put(name string, decl *TypeDecl, found bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[name]; ok {
		c.order.MoveToFront(el)
		*el.Value.(*cachedLookup) = cachedLookup{name: name, decl: decl, found: found}
		return
	}
	if c.order.Len() >= c.capacity {
		if back := c.order.Back(); back != nil {
			c.order.Remove(back)
			delete(c.items, back.Value.(*cachedLookup).name)
		}
	}
	c.items[name] = c.order.PushFront(&cachedLookup{name: name, decl: decl, found: found})
}

// evict drops the given names, or everything when none are given.
func (c *lookupCache) evict(names ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(names) == 0 {
		c.order.Init()
		c.items = make(map[string]*list.Element, c.capacity)
		return
	}
	for _, name := range names {
		if el, ok := c.items[name]; ok {
			c.order.Remove(el)
			delete(c.items, name)
		}
	}
}

func (c *lookupCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
