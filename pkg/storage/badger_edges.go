package storage

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// ============================================================================
// Edge Operations
// ============================================================================

// CreateEdge creates a new edge between two existing nodes.
func (b *BadgerEngine) CreateEdge(typ RelTypeID, start, end NodeID) (EdgeID, error) {
	if start < 0 || end < 0 {
		return NoID, ErrInvalidID
	}
	if !b.hasToken(TokenRelType, int64(typ)) {
		return NoID, ErrInvalidID
	}
	if err := b.ensureOpen(); err != nil {
		return NoID, err
	}
	next, err := b.edgeSeq.Next()
	if err != nil {
		return NoID, fmt.Errorf("failed to allocate edge id: %w", err)
	}
	edge := &Edge{
		ID:         EdgeID(next),
		Type:       typ,
		StartNode:  start,
		EndNode:    end,
		Properties: make(map[PropertyKeyID]any),
	}

	err = b.withUpdate(func(txn *badger.Txn) error {
		// Verify start and end nodes exist
		for _, nodeID := range []NodeID{start, end} {
			ok, err := keyExists(txn, nodeKey(nodeID))
			if err != nil {
				return err
			}
			if !ok {
				return ErrNotFound
			}
		}

		data, err := encodeEdge(edge)
		if err != nil {
			return fmt.Errorf("failed to encode edge: %w", err)
		}
		if err := txn.Set(edgeKey(edge.ID), data); err != nil {
			return err
		}
		if err := txn.Set(outgoingIndexKey(start, edge.ID), []byte{}); err != nil {
			return err
		}
		if err := txn.Set(incomingIndexKey(end, edge.ID), []byte{}); err != nil {
			return err
		}
		return txn.Set(edgeTypeIndexKey(typ, edge.ID), []byte{})
	})
	if err != nil {
		return NoID, err
	}

	b.edgeCount.Add(1)
	return edge.ID, nil
}

// GetEdge retrieves an edge by ID.
func (b *BadgerEngine) GetEdge(id EdgeID) (*Edge, error) {
	if id < 0 {
		return nil, ErrInvalidID
	}
	var edge *Edge
	err := b.withView(func(txn *badger.Txn) error {
		var err error
		edge, err = loadEdgeInTxn(txn, id)
		return err
	})
	return edge, err
}

// EdgeExists reports whether id is a live edge.
func (b *BadgerEngine) EdgeExists(id EdgeID) bool {
	if id < 0 {
		return false
	}
	exists := false
	_ = b.withView(func(txn *badger.Txn) error {
		var err error
		exists, err = keyExists(txn, edgeKey(id))
		return err
	})
	return exists
}

// DeleteEdge removes an edge and its index entries.
func (b *BadgerEngine) DeleteEdge(id EdgeID) error {
	if id < 0 {
		return ErrInvalidID
	}
	err := b.withUpdate(func(txn *badger.Txn) error {
		return b.deleteEdgeInTxn(txn, id)
	})
	if err == nil {
		b.edgeCount.Add(-1)
	}
	return err
}

// deleteEdgeInTxn removes an edge inside an existing transaction.
func (b *BadgerEngine) deleteEdgeInTxn(txn *badger.Txn, id EdgeID) error {
	edge, err := loadEdgeInTxn(txn, id)
	if err != nil {
		return err
	}
	for _, key := range [][]byte{
		outgoingIndexKey(edge.StartNode, id),
		incomingIndexKey(edge.EndNode, id),
		edgeTypeIndexKey(edge.Type, id),
		edgeKey(id),
	} {
		if err := txn.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

// updateEdge runs fn against the stored edge and writes it back when fn succeeds.
func (b *BadgerEngine) updateEdge(id EdgeID, fn func(edge *Edge)) error {
	if id < 0 {
		return ErrInvalidID
	}
	return b.withUpdate(func(txn *badger.Txn) error {
		edge, err := loadEdgeInTxn(txn, id)
		if err != nil {
			return err
		}
		fn(edge)
		data, err := encodeEdge(edge)
		if err != nil {
			return fmt.Errorf("failed to encode edge: %w", err)
		}
		return txn.Set(edgeKey(id), data)
	})
}

// SetEdgeProperty sets a property and returns the previous value or NoValue.
func (b *BadgerEngine) SetEdgeProperty(id EdgeID, key PropertyKeyID, value any) (any, error) {
	if value == nil {
		return NoValue, ErrInvalidData
	}
	if !b.hasToken(TokenPropertyKey, int64(key)) {
		return NoValue, ErrInvalidID
	}
	prev := NoValue
	err := b.updateEdge(id, func(edge *Edge) {
		prev = setProperty(edge.Properties, key, value)
	})
	return prev, err
}

// RemoveEdgeProperty removes a property and returns it, or NoValue when absent.
func (b *BadgerEngine) RemoveEdgeProperty(id EdgeID, key PropertyKeyID) (any, error) {
	prev := NoValue
	err := b.updateEdge(id, func(edge *Edge) {
		prev = removeProperty(edge.Properties, key)
	})
	return prev, err
}
