// Package cache keeps read results keyed by resource and query, and drops them when a
// mutation on that resource announces itself.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Resource names used as key prefixes.
const (
	Posts    = "posts"
	Labels   = "labels"
	Types    = "types"
	Comments = "comments"
	Summary  = "summary"
)

// Key is "<resource>:<digest of the sorted query parameters>".
type Key string

func NewKey(resource string, params map[string]string) Key {
	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	sum := sha256.Sum256([]byte(values.Encode()))
	return Key(resource + ":" + hex.EncodeToString(sum[:12]))
}

func (k Key) Resource() string {
	r, _, _ := strings.Cut(string(k), ":")
	return r
}

// Invalidation is published after a resource's entries are dropped.
type Invalidation struct {
	Resource string
	Removed  int
	At       time.Time
}

type Cache struct {
	entries *lru.Cache[Key, any]

	// genMu orders stores from GetOrLoad against Invalidate
	genMu       sync.Mutex
	generations map[string]uint64

	mu          sync.Mutex
	subscribers map[int]chan Invalidation
	nextID      int
}

func New(size int) (*Cache, error) {
	entries, err := lru.New[Key, any](size)
	if err != nil {
		return nil, err
	}
	return &Cache{
		entries:     entries,
		generations: make(map[string]uint64),
		subscribers: make(map[int]chan Invalidation),
	}, nil
}

func (c *Cache) Get(key Key) (any, bool) {
	return c.entries.Get(key)
}

func (c *Cache) Set(key Key, value any) {
	c.entries.Add(key, value)
}

func (c *Cache) Len() int {
	return c.entries.Len()
}

// Generation counts the invalidations of resource so far.
func (c *Cache) Generation(resource string) uint64 {
	c.genMu.Lock()
	defer c.genMu.Unlock()
	return c.generations[resource]
}

// setIfCurrent stores value only when resource has not been invalidated since gen.
func (c *Cache) setIfCurrent(key Key, gen uint64, value any) bool {
	c.genMu.Lock()
	defer c.genMu.Unlock()
	if c.generations[key.Resource()] != gen {
		return false
	}
	c.entries.Add(key, value)
	return true
}

// Invalidate drops every entry of resource and notifies subscribers.
func (c *Cache) Invalidate(resource string) int {
	c.genMu.Lock()
	c.generations[resource]++
	removed := 0
	prefix := resource + ":"
	for _, k := range c.entries.Keys() {
		if strings.HasPrefix(string(k), prefix) && c.entries.Remove(k) {
			removed++
		}
	}
	c.genMu.Unlock()
	c.publish(Invalidation{Resource: resource, Removed: removed, At: time.Now()})
	return removed
}

// Subscribe returns a channel of invalidations and a function that closes it.
// Slow subscribers miss messages rather than block writers.
func (c *Cache) Subscribe() (<-chan Invalidation, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	ch := make(chan Invalidation, 16)
	c.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subscribers, id)
			c.mu.Unlock()
			close(ch)
		})
	}
}

func (c *Cache) publish(msg Invalidation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ch := range c.subscribers {
		select {
		case ch <- msg:
		default:
			log.Printf("cache: subscriber %d is full, dropped invalidation of %s", id, msg.Resource)
		}
	}
}

// GetOrLoad returns the cached value for key, calling load and storing its result on a miss.
// A result loaded across an invalidation of the key's resource is returned but not stored.
func GetOrLoad[T any](c *Cache, key Key, load func() (T, error)) (T, error) {
	if v, ok := c.Get(key); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
	}
	gen := c.Generation(key.Resource())
	v, err := load()
	if err != nil {
		return v, err
	}
	c.setIfCurrent(key, gen, v)
	return v, nil
}
