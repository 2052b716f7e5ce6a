// Package storage defines the real (persistent) graph kernel used underneath the
// virtual entity overlay, together with two implementations of it:
// MemoryEngine for tests and small datasets, and BadgerEngine for durable storage.
//
// Identifiers are int64 values. Real ids handed out by an engine are always
// non-negative; NoID (-1) is the "no such entity" sentinel and everything below it
// is reserved for virtual entities owned by pkg/overlay.
package storage

import (
	"fmt"
	"reflect"
)

// NodeID identifies a node.
type NodeID int64

// EdgeID identifies a relationship. The storage layer keeps the "edge" vocabulary.
type EdgeID int64

// LabelID identifies a label token.
type LabelID int64

// PropertyKeyID identifies a property-key token.
type PropertyKeyID int64

// RelTypeID identifies a relationship-type token.
type RelTypeID int64

// NoID is the "no such entity" sentinel shared by every id family.
// It is also used as the wildcard in count predicates.
const NoID = -1

// Node is a fully materialized node record.
type Node struct {
	ID         NodeID
	Labels     []LabelID
	Properties map[PropertyKeyID]any
}

// HasLabel reports whether the node carries label.
func (n *Node) HasLabel(label LabelID) bool {
	for _, l := range n.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// Edge is a fully materialized relationship record.
type Edge struct {
	ID         EdgeID
	Type       RelTypeID
	StartNode  NodeID
	EndNode    NodeID
	Properties map[PropertyKeyID]any
}

// OtherNode returns the endpoint opposite to node.
func (e *Edge) OtherNode(node NodeID) NodeID {
	if e.StartNode == node {
		return e.EndNode
	}
	return e.StartNode
}

// Direction selects which incident relationships a traversal yields.
type Direction int

const (
	Outgoing Direction = iota
	Incoming
	Both
)

func (d Direction) String() string {
	switch d {
	case Outgoing:
		return "OUTGOING"
	case Incoming:
		return "INCOMING"
	case Both:
		return "BOTH"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// Matches reports whether edge is incident to node in direction d.
// A self-loop matches every direction.
func (d Direction) Matches(edge *Edge, node NodeID) bool {
	switch d {
	case Outgoing:
		return edge.StartNode == node
	case Incoming:
		return edge.EndNode == node
	default:
		return edge.StartNode == node || edge.EndNode == node
	}
}

// MatchesType reports whether typ is in types. An empty types slice matches anything.
func MatchesType(typ RelTypeID, types []RelTypeID) bool {
	if len(types) == 0 {
		return true
	}
	for _, t := range types {
		if t == typ {
			return true
		}
	}
	return false
}

// TokenKind enumerates the three token families.
type TokenKind int

const (
	TokenLabel TokenKind = iota
	TokenPropertyKey
	TokenRelType
)

func (k TokenKind) String() string {
	switch k {
	case TokenLabel:
		return "label"
	case TokenPropertyKey:
		return "property key"
	case TokenRelType:
		return "relationship type"
	default:
		return fmt.Sprintf("TokenKind(%d)", int(k))
	}
}

// Token pairs a token id with its name.
type Token struct {
	ID   int64
	Name string
}

type noValue struct{}

func (noValue) String() string { return "NO_VALUE" }

// NoValue is returned by property removal (and by set, as the previous value)
// when the property was not present.
var NoValue any = noValue{}

// IsNoValue reports whether v is the NoValue marker.
func IsNoValue(v any) bool {
	_, ok := v.(noValue)
	return ok
}

// ValuesEqual compares two property values for index-seek purposes.
func ValuesEqual(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

// CopyNode returns a deep copy of n.
func CopyNode(n *Node) *Node {
	if n == nil {
		return nil
	}
	copied := &Node{
		ID:         n.ID,
		Labels:     make([]LabelID, len(n.Labels)),
		Properties: make(map[PropertyKeyID]any, len(n.Properties)),
	}
	copy(copied.Labels, n.Labels)
	for k, v := range n.Properties {
		copied.Properties[k] = v
	}
	return copied
}

// CopyEdge returns a deep copy of e.
func CopyEdge(e *Edge) *Edge {
	if e == nil {
		return nil
	}
	copied := &Edge{
		ID:         e.ID,
		Type:       e.Type,
		StartNode:  e.StartNode,
		EndNode:    e.EndNode,
		Properties: make(map[PropertyKeyID]any, len(e.Properties)),
	}
	for k, v := range e.Properties {
		copied.Properties[k] = v
	}
	return copied
}
