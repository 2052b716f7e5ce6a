package overlay

import (
	"sort"

	"github.com/RoaringBitmap/roaring/roaring64"
)

// ViewCache memoizes the id sets computed for named views within one scope.
//
// It is never authoritative: a miss means the caller recomputes. Each id set is
// held as a bitmap, so a view's sets come back deduplicated and in ascending
// signed order regardless of how they were put. When maxEntries is positive the
// oldest inserted view is evicted to make room.
type ViewCache struct {
	entries    map[string][]*roaring64.Bitmap
	order      []string
	maxEntries int
}

// NewViewCache returns an empty cache (maxEntries 0 = unlimited).
func NewViewCache(maxEntries int) *ViewCache {
	return &ViewCache{
		entries:    make(map[string][]*roaring64.Bitmap),
		maxEntries: maxEntries,
	}
}

// Put stores the id sets for name, replacing any previous value.
func (c *ViewCache) Put(name string, sets [][]int64) {
	bitmaps := make([]*roaring64.Bitmap, len(sets))
	for i, set := range sets {
		bm := roaring64.New()
		for _, id := range set {
			bm.Add(uint64(id))
		}
		bitmaps[i] = bm
	}

	if _, exists := c.entries[name]; !exists {
		if c.maxEntries > 0 && len(c.order) >= c.maxEntries {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, name)
	}
	c.entries[name] = bitmaps
}

// Get returns a copy of the id sets for name.
func (c *ViewCache) Get(name string) ([][]int64, bool) {
	bitmaps, ok := c.entries[name]
	if !ok {
		return nil, false
	}
	out := make([][]int64, len(bitmaps))
	for i, bm := range bitmaps {
		out[i] = signedIDs(bm)
	}
	return out, true
}

// Contains reports whether id appears in any set cached under name.
func (c *ViewCache) Contains(name string, id int64) bool {
	for _, bm := range c.entries[name] {
		if bm.Contains(uint64(id)) {
			return true
		}
	}
	return false
}

// Delete drops name. Returns false if it was not cached.
func (c *ViewCache) Delete(name string) bool {
	if _, ok := c.entries[name]; !ok {
		return false
	}
	delete(c.entries, name)
	for i, n := range c.order {
		if n == name {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true
}

// Names returns the cached view names in insertion order.
func (c *ViewCache) Names() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Len returns the number of cached views.
func (c *ViewCache) Len() int {
	return len(c.entries)
}

// Clear drops everything.
func (c *ViewCache) Clear() {
	c.entries = make(map[string][]*roaring64.Bitmap)
	c.order = nil
}

func signedIDs(bm *roaring64.Bitmap) []int64 {
	raw := bm.ToArray()
	out := make([]int64, len(raw))
	for i, v := range raw {
		out[i] = int64(v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
