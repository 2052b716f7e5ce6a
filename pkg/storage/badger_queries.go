package storage

import (
	"sort"

	"github.com/dgraph-io/badger/v4"
)

// AllNodes returns all node ids in ascending order.
func (b *BadgerEngine) AllNodes() (Iterator[NodeID], error) {
	var ids []int64
	err := b.withView(func(txn *badger.Txn) error {
		ids = collectTrailingIDs(txn, []byte{prefixNode})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return NewSliceIterator(castIDs[NodeID](ids)), nil
}

// NodesByLabel returns the ids of all nodes with the given label.
func (b *BadgerEngine) NodesByLabel(label LabelID) (Iterator[NodeID], error) {
	var ids []int64
	err := b.withView(func(txn *badger.Txn) error {
		ids = collectTrailingIDs(txn, labelIndexPrefix(label))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return NewSliceIterator(castIDs[NodeID](ids)), nil
}

// NodesByProperty returns nodes with label whose key property equals value.
// The label index narrows the scan; property values are compared after decoding.
func (b *BadgerEngine) NodesByProperty(label LabelID, key PropertyKeyID, value any) (Iterator[NodeID], error) {
	var out []NodeID
	err := b.withView(func(txn *badger.Txn) error {
		for _, raw := range collectTrailingIDs(txn, labelIndexPrefix(label)) {
			node, err := loadNodeInTxn(txn, NodeID(raw))
			if err == ErrNotFound {
				continue
			}
			if err != nil {
				return err
			}
			if v, ok := node.Properties[key]; ok && ValuesEqual(v, value) {
				out = append(out, node.ID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return NewSliceIterator(out), nil
}

// AllEdges returns all edge ids in ascending order.
func (b *BadgerEngine) AllEdges() (Iterator[EdgeID], error) {
	var ids []int64
	err := b.withView(func(txn *badger.Txn) error {
		ids = collectTrailingIDs(txn, []byte{prefixEdge})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return NewSliceIterator(castIDs[EdgeID](ids)), nil
}

// EdgesByType returns the ids of all edges of the given type.
func (b *BadgerEngine) EdgesByType(typ RelTypeID) (Iterator[EdgeID], error) {
	var ids []int64
	err := b.withView(func(txn *badger.Txn) error {
		ids = collectTrailingIDs(txn, edgeTypeIndexPrefix(typ))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return NewSliceIterator(castIDs[EdgeID](ids)), nil
}

// NodeEdges returns the ids of edges incident to a node in the given direction.
func (b *BadgerEngine) NodeEdges(id NodeID, dir Direction) (Iterator[EdgeID], error) {
	var ids []int64
	err := b.withView(func(txn *badger.Txn) error {
		ok, err := keyExists(txn, nodeKey(id))
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotFound
		}
		if dir == Outgoing || dir == Both {
			ids = append(ids, collectTrailingIDs(txn, outgoingIndexPrefix(id))...)
		}
		if dir == Incoming || dir == Both {
			ids = append(ids, collectTrailingIDs(txn, incomingIndexPrefix(id))...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return NewSliceIterator(castIDs[EdgeID](dedupeSorted(ids))), nil
}

// dedupeSorted sorts ids and drops duplicates (self-loops appear in both adjacency lists).
func dedupeSorted(ids []int64) []int64 {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := ids[:0]
	for i, id := range ids {
		if i == 0 || id != ids[i-1] {
			out = append(out, id)
		}
	}
	return out
}

// initializeCounts scans the node and edge keyspaces once at open.
func (b *BadgerEngine) initializeCounts() error {
	return b.db.View(func(txn *badger.Txn) error {
		b.nodeCount.Store(countPrefix(txn, []byte{prefixNode}))
		b.edgeCount.Store(countPrefix(txn, []byte{prefixEdge}))
		return nil
	})
}

// NodeCount returns the number of nodes.
func (b *BadgerEngine) NodeCount() (int64, error) {
	if err := b.ensureOpen(); err != nil {
		return 0, err
	}
	return b.nodeCount.Load(), nil
}

// EdgeCount returns the number of edges.
func (b *BadgerEngine) EdgeCount() (int64, error) {
	if err := b.ensureOpen(); err != nil {
		return 0, err
	}
	return b.edgeCount.Load(), nil
}

// CountNodesWithLabel returns the number of nodes carrying label (NoID counts all nodes).
func (b *BadgerEngine) CountNodesWithLabel(label LabelID) (int64, error) {
	if label == NoID {
		return b.NodeCount()
	}
	var n int64
	err := b.withView(func(txn *badger.Txn) error {
		n = countPrefix(txn, labelIndexPrefix(label))
		return nil
	})
	return n, err
}

// CountEdges counts (start:startLabel)-[:typ]->(end:endLabel) patterns.
func (b *BadgerEngine) CountEdges(startLabel LabelID, typ RelTypeID, endLabel LabelID) (int64, error) {
	if startLabel == NoID && endLabel == NoID {
		if typ == NoID {
			return b.EdgeCount()
		}
		var n int64
		err := b.withView(func(txn *badger.Txn) error {
			n = countPrefix(txn, edgeTypeIndexPrefix(typ))
			return nil
		})
		return n, err
	}

	var count int64
	err := b.withView(func(txn *badger.Txn) error {
		var edgeIDs []int64
		if typ == NoID {
			edgeIDs = collectTrailingIDs(txn, []byte{prefixEdge})
		} else {
			edgeIDs = collectTrailingIDs(txn, edgeTypeIndexPrefix(typ))
		}
		for _, raw := range edgeIDs {
			edge, err := loadEdgeInTxn(txn, EdgeID(raw))
			if err == ErrNotFound {
				continue
			}
			if err != nil {
				return err
			}
			if startLabel != NoID {
				ok, err := keyExists(txn, labelIndexKey(startLabel, edge.StartNode))
				if err != nil {
					return err
				}
				if !ok {
					continue
				}
			}
			if endLabel != NoID {
				ok, err := keyExists(txn, labelIndexKey(endLabel, edge.EndNode))
				if err != nil {
					return err
				}
				if !ok {
					continue
				}
			}
			count++
		}
		return nil
	})
	return count, err
}
