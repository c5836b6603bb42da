package scenes

import (
	"context"
	"sync"

	multicam "github.com/stepherg/obs-multicam"
	"github.com/stepherg/obs-multicam/translate"
)

// Lister is the slice of the transport the cache needs.
type Lister interface {
	Call(ctx context.Context, requestType string, params any, out any) error
}

type CacheState int

const (
	CacheEmpty CacheState = iota
	CachePopulated
)

// Cache memoizes the full scene-name list. It is either empty or holds a
// complete snapshot; structural changes clear it rather than patch it.
type Cache struct {
	remote Lister

	fetchMu sync.Mutex // one GetSceneList in flight at a time

	mu      sync.RWMutex
	names   []string
	state   CacheState
	gen     uint64
	fetches uint64
}

func NewCache(remote Lister) *Cache {
	return &Cache{remote: remote}
}

// List returns the cached names, fetching them first if the cache is empty.
// A failed fetch leaves the cache untouched.
func (c *Cache) List(ctx context.Context) ([]string, error) {
	if names, ok := c.snapshot(); ok {
		return names, nil
	}

	c.fetchMu.Lock()
	defer c.fetchMu.Unlock()

	// another caller may have filled the cache while we waited
	if names, ok := c.snapshot(); ok {
		return names, nil
	}

	c.mu.RLock()
	gen := c.gen
	c.mu.RUnlock()

	var resp translate.SceneListResponse
	if err := c.remote.Call(ctx, translate.GetSceneList, nil, &resp); err != nil {
		return nil, err
	}
	names := resp.Names()

	c.mu.Lock()
	c.fetches++
	// an invalidation raced the fetch: hand the result out but do not keep it
	if c.gen == gen {
		c.names = names
		c.state = CachePopulated
	}
	c.mu.Unlock()

	return append([]string(nil), names...), nil
}

// Invalidate clears the snapshot unconditionally.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.names = nil
	c.state = CacheEmpty
	c.gen++
	c.mu.Unlock()
}

func (c *Cache) State() CacheState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Fetches counts completed GetSceneList round trips.
func (c *Cache) Fetches() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fetches
}

func (c *Cache) snapshot() ([]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != CachePopulated {
		return nil, false
	}
	return append([]string(nil), c.names...), true
}

func (c *Cache) Selectors(ctx context.Context) ([]string, error) {
	names, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	return Selectors(names), nil
}

func (c *Cache) CameraSources(ctx context.Context) ([]string, error) {
	names, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	return Cameras(names), nil
}

func (c *Cache) FastSwitchScenes(ctx context.Context) ([]string, error) {
	names, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	return FastSwitch(names), nil
}

// Contains reports whether name is in the snapshot, fetching if needed.
func (c *Cache) Contains(ctx context.Context, name string) (bool, error) {
	names, err := c.List(ctx)
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

var _ Lister = multicam.Transport(nil)
