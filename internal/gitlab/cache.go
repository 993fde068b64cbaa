package gitlab

import (
	"sync"
	"time"
)

type cachedProject struct {
	name      string
	path      string
	fetchedAt time.Time
}

// projectCache memoizes project name/path lookups for MR listings so a
// page of MRs does not trigger one project fetch per row.
type projectCache struct {
	mu      sync.RWMutex
	entries map[int]cachedProject
	ttl     time.Duration
}

func newProjectCache(ttl time.Duration) *projectCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &projectCache{
		entries: make(map[int]cachedProject),
		ttl:     ttl,
	}
}

func (c *projectCache) get(projectID int) (name, path string, ok bool) {
	c.mu.RLock()
	entry, found := c.entries[projectID]
	c.mu.RUnlock()

	if !found || time.Since(entry.fetchedAt) > c.ttl {
		return "", "", false
	}
	return entry.name, entry.path, true
}

func (c *projectCache) put(projectID int, name, path string) {
	c.mu.Lock()
	c.entries[projectID] = cachedProject{name: name, path: path, fetchedAt: time.Now()}
	c.mu.Unlock()
}
