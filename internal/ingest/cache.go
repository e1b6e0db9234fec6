package ingest

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/google/uuid"
)

// ColumnCache is a bounded LRU cache of task column names, owned by the
// ingestion component. Entries are written when ingestion completes and
// invalidated deliberately when a task is deleted; stale entries never
// outlive their task.
type ColumnCache struct {
	cache *lru.Cache[uuid.UUID, []string]
}

// NewColumnCache creates a cache bounded to the given number of tasks.
func NewColumnCache(capacity int) (*ColumnCache, error) {
	if capacity <= 0 {
		capacity = 128
	}

	cache, err := lru.New[uuid.UUID, []string](capacity)
	if err != nil {
		return nil, err
	}
	return &ColumnCache{cache: cache}, nil
}

// Get returns the cached column names for the task, if present.
func (c *ColumnCache) Get(taskID uuid.UUID) ([]string, bool) {
	return c.cache.Get(taskID)
}

// Put stores the column names for the task, evicting the least recently
// used entry when at capacity.
func (c *ColumnCache) Put(taskID uuid.UUID, columns []string) {
	c.cache.Add(taskID, columns)
}

// Invalidate removes the task's entry.
func (c *ColumnCache) Invalidate(taskID uuid.UUID) {
	c.cache.Remove(taskID)
}

// Len returns the number of cached entries.
func (c *ColumnCache) Len() int {
	return c.cache.Len()
}
