package storage

import "github.com/dgraph-io/badger/v4"

func badgerIterOptsKeyOnly(prefix []byte) badger.IteratorOptions {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	return opts
}

func badgerIterOptsPrefetchValues(prefix []byte, prefetchSize int) badger.IteratorOptions {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = true
	if prefetchSize > 0 {
		opts.PrefetchSize = prefetchSize
	}
	opts.Prefix = prefix
	return opts
}

// collectTrailingIDs scans an index prefix and returns the id suffix of every key.
func collectTrailingIDs(txn *badger.Txn, prefix []byte) []int64 {
	it := txn.NewIterator(badgerIterOptsKeyOnly(prefix))
	defer it.Close()

	var ids []int64
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		ids = append(ids, extractTrailingID(it.Item().Key()))
	}
	return ids
}

// countPrefix counts keys under prefix without reading values.
func countPrefix(txn *badger.Txn, prefix []byte) int64 {
	it := txn.NewIterator(badgerIterOptsKeyOnly(prefix))
	defer it.Close()

	var n int64
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		n++
	}
	return n
}

func castIDs[T ~int64](raw []int64) []T {
	out := make([]T, len(raw))
	for i, v := range raw {
		out[i] = T(v)
	}
	return out
}
