package explorer

import (
	"slices"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/text/cases"
)

// Cache memoizes stages by (state, counties, coefficient). Thresholds are
// never shared across geographies because the geography is part of the key.
type Cache struct {
	mu      sync.Mutex
	size    int
	entries map[string]Stage
	order   []string
}

// NewCache creates a cache holding at most size stages. size <= 0 means 32.
func NewCache(size int) *Cache {
	if size <= 0 {
		size = 32
	}
	return &Cache{size: size, entries: make(map[string]Stage)}
}

func cacheKey(state string, counties []string, coefficient float64) string {
	fold := cases.Fold()
	cs := make([]string, len(counties))
	for i, c := range counties {
		cs[i] = fold.String(strings.TrimSpace(c))
	}
	slices.Sort(cs)
	return fold.String(state) + "|" + strings.Join(slices.Compact(cs), ",") + "|" +
		strconv.FormatFloat(coefficient, 'f', -1, 64)
}

// Len reports the number of cached stages.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear drops every cached stage.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Stage)
	c.order = nil
}

// getOrBuild holds the lock while building so concurrent identical requests
// fetch once. Errors are not cached.
func (c *Cache) getOrBuild(key string, build func() (Stage, error)) (Stage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if st, ok := c.entries[key]; ok {
		return st, nil
	}
	st, err := build()
	if err != nil {
		return Stage{}, err
	}
	if len(c.order) >= c.size {
		delete(c.entries, c.order[0])
		c.order = c.order[1:]
	}
	c.entries[key] = st
	c.order = append(c.order, key)
	return st, nil
}
