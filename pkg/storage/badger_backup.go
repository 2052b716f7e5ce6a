package storage

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/dgraph-io/badger/v4"
)

// Backup creates a backup of the database to the specified file path.
// Uses BadgerDB's streaming backup which creates a consistent snapshot.
// The backup file is a self-contained, portable copy of the real graph,
// including tokens and view metadata.
func (b *BadgerEngine) Backup(path string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrStorageClosed
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create backup file: %w", err)
	}
	defer f.Close()

	buf := bufio.NewWriterSize(f, 4*1024*1024)

	// since=0 means full backup
	if _, err := b.db.Backup(buf, 0); err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}
	if err := buf.Flush(); err != nil {
		return fmt.Errorf("failed to flush backup: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync backup: %w", err)
	}
	return nil
}

// RestoreBadgerEngine opens a new engine with opts and loads a backup written
// by Backup into it. The target must be empty.
//
// The backup is loaded before any id sequence is leased, so allocation resumes
// after the highest id the source had handed out.
func RestoreBadgerEngine(opts BadgerOptions, r io.Reader) (*BadgerEngine, error) {
	db, err := badger.Open(badgerOptions(opts))
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}

	empty := true
	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badgerIterOptsKeyOnly(nil))
		defer it.Close()
		it.Rewind()
		empty = !it.Valid()
		return nil
	})
	if err == nil && !empty {
		err = fmt.Errorf("restore into non-empty database: %w", ErrAlreadyExists)
	}
	if err == nil {
		err = db.Load(bufio.NewReader(r), 256)
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("restore failed: %w", err)
	}

	engine := &BadgerEngine{
		db:       db,
		inMemory: opts.InMemory,
	}
	if err := engine.init(); err != nil {
		engine.releaseSequences()
		db.Close()
		return nil, err
	}
	return engine, nil
}

// RestoreBadgerEngineFromFile is RestoreBadgerEngine reading the backup at path.
func RestoreBadgerEngineFromFile(opts BadgerOptions, path string) (*BadgerEngine, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open backup file: %w", err)
	}
	defer f.Close()
	return RestoreBadgerEngine(opts, f)
}

// Size returns the approximate size of the database in bytes.
func (b *BadgerEngine) Size() (lsm, vlog int64) {
	if b.ensureOpen() != nil {
		return 0, 0
	}
	return b.db.Size()
}
