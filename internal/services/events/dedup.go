// Package events delivers incoming chat posts to the conversation handler,
// either by polling channels or from the websocket event stream, with
// duplicate posts dropped.
package events

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultDedupSize is the number of post ids remembered
const DefaultDedupSize = 1000

// Deduplicator remembers recently dispatched post ids in a bounded LRU
type Deduplicator struct {
	mu    sync.Mutex
	cache *lru.Cache[string, struct{}]
}

// NewDeduplicator creates a deduplicator holding up to size ids
func NewDeduplicator(size int) (*Deduplicator, error) {
	if size <= 0 {
		size = DefaultDedupSize
	}
	cache, err := lru.New[string, struct{}](size)
	if err != nil {
		return nil, fmt.Errorf("post deduper init: %w", err)
	}
	return &Deduplicator{cache: cache}, nil
}

// Seen records postID and reports whether it was already recorded.
// Empty ids are never treated as duplicates.
func (d *Deduplicator) Seen(postID string) bool {
	if postID == "" {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	seen, _ := d.cache.ContainsOrAdd(postID, struct{}{})
	return seen
}

// Len returns the number of remembered ids
func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cache.Len()
}
