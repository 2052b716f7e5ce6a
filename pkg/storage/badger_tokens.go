package storage

import (
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// loadTokens fills the in-memory token tables from the by-id keyspace.
func (b *BadgerEngine) loadTokens() error {
	return b.db.View(func(txn *badger.Txn) error {
		prefix := []byte{prefixTokenByID}
		it := txn.NewIterator(badgerIterOptsPrefetchValues(prefix, 0))
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := item.Key()
			if len(key) != 10 {
				continue
			}
			kind := TokenKind(key[1])
			if kind < TokenLabel || kind > TokenRelType {
				continue
			}
			id := extractTrailingID(key)
			if err := item.Value(func(val []byte) error {
				b.tokens[kind].Put(id, string(val))
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *BadgerEngine) hasToken(kind TokenKind, id int64) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.tokens[kind].Contains(id)
}

// GetOrCreateToken returns the id of the named token, creating it when missing.
func (b *BadgerEngine) GetOrCreateToken(kind TokenKind, name string) (int64, error) {
	if strings.TrimSpace(name) == "" {
		return NoID, ErrInvalidData
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return NoID, ErrStorageClosed
	}
	if id, ok := b.tokens[kind].ID(name); ok {
		return id, nil
	}

	next, err := b.tokenSeq[kind].Next()
	if err != nil {
		return NoID, fmt.Errorf("failed to allocate %s id: %w", kind, err)
	}
	id := int64(next)
	err = b.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(tokenByNameKey(kind, name), appendID(nil, id)); err != nil {
			return err
		}
		return txn.Set(tokenByIDKey(kind, id), []byte(name))
	})
	if err != nil {
		return NoID, err
	}
	b.tokens[kind].Put(id, name)
	return id, nil
}

// TokenID looks up a token by name.
func (b *BadgerEngine) TokenID(kind TokenKind, name string) (int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if id, ok := b.tokens[kind].ID(name); ok {
		return id, nil
	}
	return NoID, ErrNotFound
}

// TokenName looks up a token by id.
func (b *BadgerEngine) TokenName(kind TokenKind, id int64) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if name, ok := b.tokens[kind].Name(id); ok {
		return name, nil
	}
	return "", ErrNotFound
}

// Tokens returns every token of a family.
func (b *BadgerEngine) Tokens(kind TokenKind) (Iterator[Token], error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrStorageClosed
	}
	return NewSliceIterator(b.tokens[kind].All()), nil
}

// ============================================================================
// Metadata
// ============================================================================

// PutMeta stores a metadata blob.
func (b *BadgerEngine) PutMeta(key string, value []byte) error {
	return b.withUpdate(func(txn *badger.Txn) error {
		return txn.Set(metaKey(key), value)
	})
}

// GetMeta loads a metadata blob.
func (b *BadgerEngine) GetMeta(key string) ([]byte, error) {
	var out []byte
	err := b.withView(func(txn *badger.Txn) error {
		item, err := txn.Get(metaKey(key))
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	return out, err
}

// DeleteMeta removes a metadata blob. Missing keys are not an error.
func (b *BadgerEngine) DeleteMeta(key string) error {
	return b.withUpdate(func(txn *badger.Txn) error {
		return txn.Delete(metaKey(key))
	})
}

// MetaKeys lists metadata keys with the given prefix, sorted.
func (b *BadgerEngine) MetaKeys(prefix string) ([]string, error) {
	var keys []string
	err := b.withView(func(txn *badger.Txn) error {
		p := metaKey(prefix)
		it := txn.NewIterator(badgerIterOptsKeyOnly(p))
		defer it.Close()
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			keys = append(keys, string(it.Item().Key()[1:]))
		}
		return nil
	})
	return keys, err
}
