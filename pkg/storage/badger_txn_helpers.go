package storage

import "github.com/dgraph-io/badger/v4"

func (b *BadgerEngine) ensureOpen() error {
	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return ErrStorageClosed
	}
	return nil
}

func (b *BadgerEngine) withView(fn func(txn *badger.Txn) error) error {
	if err := b.ensureOpen(); err != nil {
		return err
	}
	return b.db.View(fn)
}

func (b *BadgerEngine) withUpdate(fn func(txn *badger.Txn) error) error {
	if err := b.ensureOpen(); err != nil {
		return err
	}
	return b.db.Update(fn)
}

// loadNodeInTxn reads and decodes a node, mapping a missing key to ErrNotFound.
func loadNodeInTxn(txn *badger.Txn, id NodeID) (*Node, error) {
	item, err := txn.Get(nodeKey(id))
	if err == badger.ErrKeyNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var node *Node
	err = item.Value(func(val []byte) error {
		var decodeErr error
		node, decodeErr = decodeNode(val)
		return decodeErr
	})
	return node, err
}

// loadEdgeInTxn reads and decodes an edge, mapping a missing key to ErrNotFound.
func loadEdgeInTxn(txn *badger.Txn, id EdgeID) (*Edge, error) {
	item, err := txn.Get(edgeKey(id))
	if err == badger.ErrKeyNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var edge *Edge
	err = item.Value(func(val []byte) error {
		var decodeErr error
		edge, decodeErr = decodeEdge(val)
		return decodeErr
	})
	return edge, err
}

func keyExists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	return err == nil, err
}
