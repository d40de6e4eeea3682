package dedupe

import (
	"container/list"
	"sync"
	"time"
)

type entry struct {
	id     string
	seenAt time.Time
}

// Cache remembers recently archived article IDs. It is bounded both by
// capacity (oldest evicted first) and by ttl.
type Cache struct {
	mu       sync.Mutex
	items    map[string]*list.Element
	order    *list.List
	capacity int
	ttl      time.Duration
	now      func() time.Time
}

// NewCache creates a cache with the provided capacity and ttl.
func NewCache(capacity int, ttl time.Duration) *Cache {
	if capacity <= 0 {
		capacity = 1
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{
		items:    make(map[string]*list.Element, capacity),
		order:    list.New(),
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
	}
}

// IsSeen reports whether id was marked within the ttl window. It does not mark id.
func (c *Cache) IsSeen(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[id]
	if !ok {
		return false
	}
	return c.now().Sub(el.Value.(entry).seenAt) <= c.ttl
}

// MarkSeen records id as archived now. Marking again refreshes its position.
func (c *Cache) MarkSeen(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if el, ok := c.items[id]; ok {
		c.order.Remove(el)
	}
	c.items[id] = c.order.PushBack(entry{id: id, seenAt: now})
	c.compact(now)
}

// Len returns the number of remembered IDs.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Cache) compact(now time.Time) {
	cutoff := now.Add(-c.ttl)
	for front := c.order.Front(); front != nil; front = c.order.Front() {
		e := front.Value.(entry)
		if len(c.items) <= c.capacity && !e.seenAt.Before(cutoff) {
			return
		}
		c.order.Remove(front)
		delete(c.items, e.id)
	}
}
