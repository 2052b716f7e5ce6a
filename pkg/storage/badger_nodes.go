package storage

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// ============================================================================
// Node Operations
// ============================================================================

// CreateNode allocates a node id from the node sequence and stores an empty node.
func (b *BadgerEngine) CreateNode() (NodeID, error) {
	if err := b.ensureOpen(); err != nil {
		return NoID, err
	}
	next, err := b.nodeSeq.Next()
	if err != nil {
		return NoID, fmt.Errorf("failed to allocate node id: %w", err)
	}
	node := &Node{ID: NodeID(next), Properties: make(map[PropertyKeyID]any)}

	err = b.withUpdate(func(txn *badger.Txn) error {
		data, err := encodeNode(node)
		if err != nil {
			return fmt.Errorf("failed to encode node: %w", err)
		}
		return txn.Set(nodeKey(node.ID), data)
	})
	if err != nil {
		return NoID, err
	}

	// Increment cached node count for O(1) stats lookups
	b.nodeCount.Add(1)
	return node.ID, nil
}

// GetNode retrieves a node by ID.
func (b *BadgerEngine) GetNode(id NodeID) (*Node, error) {
	if id < 0 {
		return nil, ErrInvalidID
	}
	var node *Node
	err := b.withView(func(txn *badger.Txn) error {
		var err error
		node, err = loadNodeInTxn(txn, id)
		return err
	})
	return node, err
}

// NodeExists reports whether id is a live node.
func (b *BadgerEngine) NodeExists(id NodeID) bool {
	if id < 0 {
		return false
	}
	exists := false
	_ = b.withView(func(txn *badger.Txn) error {
		var err error
		exists, err = keyExists(txn, nodeKey(id))
		return err
	})
	return exists
}

// DeleteNode removes a node and all its edges.
func (b *BadgerEngine) DeleteNode(id NodeID) error {
	if id < 0 {
		return ErrInvalidID
	}

	// Track edge deletions for counter update after transaction
	var totalEdgesDeleted int64

	err := b.withUpdate(func(txn *badger.Txn) error {
		node, err := loadNodeInTxn(txn, id)
		if err != nil {
			return err
		}

		// Delete label indexes
		for _, label := range node.Labels {
			if err := txn.Delete(labelIndexKey(label, id)); err != nil {
				return err
			}
		}

		// Delete outgoing then incoming edges. A self-loop shows up in both
		// scans; the second delete reports ErrNotFound and is skipped.
		for _, prefix := range [][]byte{outgoingIndexPrefix(id), incomingIndexPrefix(id)} {
			n, err := b.deleteEdgesWithPrefix(txn, prefix)
			if err != nil {
				return err
			}
			totalEdgesDeleted += n
		}

		return txn.Delete(nodeKey(id))
	})

	if err == nil {
		b.nodeCount.Add(-1)
		if totalEdgesDeleted > 0 {
			b.edgeCount.Add(-totalEdgesDeleted)
		}
	}
	return err
}

// deleteEdgesWithPrefix deletes all edges referenced by an adjacency index prefix.
// Returns the count of edges actually deleted for accurate stats tracking.
func (b *BadgerEngine) deleteEdgesWithPrefix(txn *badger.Txn, prefix []byte) (int64, error) {
	edgeIDs := collectTrailingIDs(txn, prefix)

	var deletedCount int64
	for _, raw := range edgeIDs {
		err := b.deleteEdgeInTxn(txn, EdgeID(raw))
		if err == nil {
			deletedCount++
		} else if err != ErrNotFound {
			return 0, err
		}
	}
	return deletedCount, nil
}

// updateNode runs fn against the stored node and writes it back when fn succeeds.
func (b *BadgerEngine) updateNode(id NodeID, fn func(txn *badger.Txn, node *Node) error) error {
	if id < 0 {
		return ErrInvalidID
	}
	return b.withUpdate(func(txn *badger.Txn) error {
		node, err := loadNodeInTxn(txn, id)
		if err != nil {
			return err
		}
		if err := fn(txn, node); err != nil {
			return err
		}
		data, err := encodeNode(node)
		if err != nil {
			return fmt.Errorf("failed to encode node: %w", err)
		}
		return txn.Set(nodeKey(id), data)
	})
}

// AddLabel adds label to a node. Returns false when the node already had it.
func (b *BadgerEngine) AddLabel(id NodeID, label LabelID) (bool, error) {
	if !b.hasToken(TokenLabel, int64(label)) {
		return false, ErrInvalidID
	}
	added := false
	err := b.updateNode(id, func(txn *badger.Txn, node *Node) error {
		if node.HasLabel(label) {
			return nil
		}
		node.Labels = append(node.Labels, label)
		added = true
		return txn.Set(labelIndexKey(label, id), []byte{})
	})
	return added, err
}

// RemoveLabel removes label from a node. Returns false when the node did not have it.
func (b *BadgerEngine) RemoveLabel(id NodeID, label LabelID) (bool, error) {
	removed := false
	err := b.updateNode(id, func(txn *badger.Txn, node *Node) error {
		for i, l := range node.Labels {
			if l == label {
				node.Labels = append(node.Labels[:i], node.Labels[i+1:]...)
				removed = true
				return txn.Delete(labelIndexKey(label, id))
			}
		}
		return nil
	})
	return removed, err
}

// SetNodeProperty sets a property and returns the previous value or NoValue.
func (b *BadgerEngine) SetNodeProperty(id NodeID, key PropertyKeyID, value any) (any, error) {
	if value == nil {
		return NoValue, ErrInvalidData
	}
	if !b.hasToken(TokenPropertyKey, int64(key)) {
		return NoValue, ErrInvalidID
	}
	prev := NoValue
	err := b.updateNode(id, func(_ *badger.Txn, node *Node) error {
		prev = setProperty(node.Properties, key, value)
		return nil
	})
	return prev, err
}

// RemoveNodeProperty removes a property and returns it, or NoValue when absent.
func (b *BadgerEngine) RemoveNodeProperty(id NodeID, key PropertyKeyID) (any, error) {
	prev := NoValue
	err := b.updateNode(id, func(_ *badger.Txn, node *Node) error {
		prev = removeProperty(node.Properties, key)
		return nil
	})
	return prev, err
}
