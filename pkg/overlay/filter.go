package overlay

import "github.com/RoaringBitmap/roaring/roaring64"

// IDFilter is an allow-list restricting which ids a scope can see.
//
// A filter starts unused: nothing is restricted. Activating it with a non-empty
// id set switches it to allow-list mode; activating with nothing is a no-op.
// Negative (virtual) ids are stored through their two's-complement uint64 form.
type IDFilter struct {
	ids    *roaring64.Bitmap
	active bool
}

// NewIDFilter returns an unused filter.
func NewIDFilter() *IDFilter {
	return &IDFilter{ids: roaring64.New()}
}

// Unused reports whether no restriction is active.
func (f *IDFilter) Unused() bool {
	return !f.active
}

// Activate merges ids into the allow-list. Only a non-empty ids flips the filter to active.
func (f *IDFilter) Activate(ids []int64) {
	if len(ids) == 0 {
		return
	}
	for _, id := range ids {
		f.ids.Add(uint64(id))
	}
	f.active = true
}

// Contains reports allow-list membership. Only meaningful when the filter is active;
// callers check Unused first or use Allows.
func (f *IDFilter) Contains(id int64) bool {
	return f.ids.Contains(uint64(id))
}

// Allows reports whether id passes the filter: always true while unused.
func (f *IDFilter) Allows(id int64) bool {
	return !f.active || f.ids.Contains(uint64(id))
}

// Clear empties the allow-list and returns the filter to unused.
func (f *IDFilter) Clear() {
	f.ids.Clear()
	f.active = false
}

// Len returns the allow-list size.
func (f *IDFilter) Len() int {
	return int(f.ids.GetCardinality())
}

// IDs returns the allow-list in ascending signed order.
func (f *IDFilter) IDs() []int64 {
	return signedIDs(f.ids)
}

// Clone returns an independent copy.
func (f *IDFilter) Clone() *IDFilter {
	return &IDFilter{ids: f.ids.Clone(), active: f.active}
}

func toInt64s[T ~int64](ids []T) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}
