package overlay

import (
	"fmt"

	"github.com/orneryd/overlaydb/pkg/storage"
)

const (
	// VirtualThreshold splits the id space: every id strictly below it is virtual.
	// It equals the storage "no such entity" sentinel, so no virtual id can collide with it.
	VirtualThreshold int64 = storage.NoID

	// FirstVirtualID is the first id handed out in every category.
	FirstVirtualID = VirtualThreshold - 1
)

// IsVirtual reports whether id belongs to the virtual realm.
func IsVirtual[T ~int64](id T) bool {
	return int64(id) < VirtualThreshold
}

// Category selects one of the independent virtual id sequences.
type Category int

const (
	CategoryNode Category = iota
	CategoryRelationship
	CategoryLabel
	CategoryPropertyKey
	CategoryRelationshipType

	numCategories
)

func (c Category) String() string {
	switch c {
	case CategoryNode:
		return "node"
	case CategoryRelationship:
		return "relationship"
	case CategoryLabel:
		return "label"
	case CategoryPropertyKey:
		return "property key"
	case CategoryRelationshipType:
		return "relationship type"
	default:
		return fmt.Sprintf("Category(%d)", int(c))
	}
}

func tokenCategory(kind storage.TokenKind) Category {
	switch kind {
	case storage.TokenLabel:
		return CategoryLabel
	case storage.TokenPropertyKey:
		return CategoryPropertyKey
	default:
		return CategoryRelationshipType
	}
}

// IDAllocator hands out strictly decreasing negative ids per category.
//
// Freed ids are abandoned, never reused. Not safe for concurrent use: an
// allocator belongs to exactly one scope.
type IDAllocator struct {
	last [numCategories]int64
}

// NewIDAllocator returns an allocator whose first id in every category is FirstVirtualID.
func NewIDAllocator() *IDAllocator {
	a := &IDAllocator{}
	for i := range a.last {
		a.last[i] = VirtualThreshold
	}
	return a
}

// Next allocates a fresh id in category c.
func (a *IDAllocator) Next(c Category) int64 {
	a.last[c]--
	return a.last[c]
}

// Peek returns the most recently allocated id in category c,
// or VirtualThreshold when nothing has been allocated yet.
func (a *IDAllocator) Peek(c Category) int64 {
	return a.last[c]
}
