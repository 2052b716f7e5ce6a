// Package nornicdb provides the main API for embedded OverlayDB usage.
//
// A DB owns one real storage engine and hands out transactions. Every
// transaction gets its own scope: virtual nodes, relationships and tokens
// created through the transaction's overlay are visible only to that
// transaction and disappear when it is closed. Real entities go straight to the
// engine and are shared by everyone.
//
// Architecture:
//   - Storage: BadgerDB (on disk or in memory) or the in-process MemoryEngine
//   - Overlay: per-transaction virtual entities merged over the engine
//   - Views: named view catalog, persisted next to the graph
//
// Example Usage:
//
//	cfg := config.LoadDefaults()
//	cfg.Database.DataDir = "./data"
//
//	db, err := nornicdb.Open(cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer db.Close()
//
//	tx, err := db.Begin()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer tx.Close()
//
//	ov := tx.Overlay()
//	alice, _ := ov.CreateNode()          // real, visible to every transaction
//	ghost := ov.CreateVirtualNode()      // virtual, visible to tx only
//	knows, _ := ov.RelationshipTypeGetOrCreate("KNOWS")
//	ov.CreateVirtualRelationship(knows, ghost, alice)
//
// Thread Safety:
//
//	DB methods are safe for concurrent use. A Tx belongs to one goroutine at a time.
package nornicdb

import (
	"errors"
	"fmt"
	"sync"

	"github.com/orneryd/overlaydb/pkg/config"
	"github.com/orneryd/overlaydb/pkg/overlay"
	"github.com/orneryd/overlaydb/pkg/storage"
	"github.com/orneryd/overlaydb/pkg/views"
)

// Errors returned by DB and Tx.
var (
	ErrClosed   = errors.New("database is closed")
	ErrTxClosed = errors.New("transaction is closed")
)

// DB is an embedded OverlayDB instance.
type DB struct {
	config *config.Config
	mu     sync.RWMutex
	closed bool

	engine storage.Engine
	// ownsEngine is false when the caller passed the engine in and keeps closing it.
	ownsEngine bool
	scopes     *overlay.Registry
	views      *views.Registry
	logger     storage.Logger
}

// Open validates cfg and opens the configured real engine: BadgerDB in memory
// when Database.InMemory is set, otherwise BadgerDB under Database.DataDir.
func Open(cfg *config.Config) (*DB, error) {
	if cfg == nil {
		cfg = config.LoadDefaults()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	engine, err := storage.NewBadgerEngineWithOptions(badgerOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	db, err := newDB(engine, cfg, true)
	if err != nil {
		engine.Close()
		return nil, err
	}
	return db, nil
}

// OpenFromBackup restores a backup written by DB.Backup into the configured,
// empty location and opens it.
func OpenFromBackup(cfg *config.Config, backupPath string) (*DB, error) {
	if cfg == nil {
		cfg = config.LoadDefaults()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	engine, err := storage.RestoreBadgerEngineFromFile(badgerOptions(cfg), backupPath)
	if err != nil {
		return nil, err
	}
	db, err := newDB(engine, cfg, true)
	if err != nil {
		engine.Close()
		return nil, err
	}
	return db, nil
}

func badgerOptions(cfg *config.Config) storage.BadgerOptions {
	return storage.BadgerOptions{
		DataDir:    cfg.Database.DataDir,
		InMemory:   cfg.Database.InMemory,
		SyncWrites: cfg.Database.SyncWrites,
		LowMemory:  cfg.Database.LowMemory,
	}
}

// OpenWithEngine wraps an existing engine. The engine is not closed by DB.Close.
func OpenWithEngine(engine storage.Engine, cfg *config.Config) (*DB, error) {
	if engine == nil {
		return nil, fmt.Errorf("nil engine")
	}
	if cfg == nil {
		cfg = config.LoadDefaults()
	}
	return newDB(engine, cfg, false)
}

func newDB(engine storage.Engine, cfg *config.Config, owns bool) (*DB, error) {
	logger := storage.NewStdLogger("overlaydb", cfg.Logging.Level, cfg.Logging.Format)

	// Engines without a metadata keyspace keep the view catalog in memory.
	meta, _ := engine.(storage.MetadataStore)
	catalog, err := views.NewRegistry(meta, logger)
	if err != nil {
		return nil, err
	}

	db := &DB{
		config:     cfg,
		engine:     engine,
		ownsEngine: owns,
		scopes: overlay.NewRegistry(overlay.RegistryConfig{
			MaxScopes:           cfg.Overlay.MaxScopes,
			ViewCacheMaxEntries: cfg.Overlay.ViewCacheMaxEntries,
			Logger:              logger,
		}),
		views:  catalog,
		logger: logger,
	}
	logger.Log(storage.LevelInfo, "database opened", map[string]any{"config": cfg.String()})
	return db, nil
}

// Begin starts a transaction with a fresh scope.
// Fails with overlay.ErrTooManyScopes when Overlay.MaxScopes transactions are open.
func (db *DB) Begin() (*Tx, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return nil, ErrClosed
	}

	key := overlay.NewScopeKey()
	scope, err := db.scopes.ForScope(key)
	if err != nil {
		return nil, err
	}
	return &Tx{db: db, key: key, ov: overlay.New(db.engine, scope, db.logger)}, nil
}

// Resume returns a handle on the still-open transaction identified by key.
// Both handles share the same scope; closing either ends it.
func (db *DB) Resume(key overlay.ScopeKey) (*Tx, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return nil, ErrClosed
	}

	scope, ok := db.scopes.Lookup(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTxClosed, key)
	}
	return &Tx{db: db, key: key, ov: overlay.New(db.engine, scope, db.logger)}, nil
}

// Views returns the view catalog.
func (db *DB) Views() *views.Registry {
	return db.views
}

// Engine returns the real storage engine.
func (db *DB) Engine() storage.Engine {
	return db.engine
}

// Config returns the configuration the database was opened with.
func (db *DB) Config() *config.Config {
	return db.config
}

// Stats is a point-in-time summary of a database.
type Stats struct {
	Nodes         int64    `json:"nodes"`
	Relationships int64    `json:"relationships"`
	OpenScopes    int      `json:"open_scopes"`
	Views         []string `json:"views"`
	// LSMBytes and VlogBytes are only reported by Badger-backed databases.
	LSMBytes  int64 `json:"lsm_bytes,omitempty"`
	VlogBytes int64 `json:"vlog_bytes,omitempty"`
}

// sizer is implemented by engines that can report their on-disk footprint.
type sizer interface {
	Size() (lsm, vlog int64)
}

// Stats reports real entity counts, open transactions and defined views.
func (db *DB) Stats() (Stats, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return Stats{}, ErrClosed
	}

	nodes, err := db.engine.NodeCount()
	if err != nil {
		return Stats{}, fmt.Errorf("count nodes: %w", err)
	}
	rels, err := db.engine.EdgeCount()
	if err != nil {
		return Stats{}, fmt.Errorf("count relationships: %w", err)
	}
	stats := Stats{
		Nodes:         nodes,
		Relationships: rels,
		OpenScopes:    db.scopes.Len(),
		Views:         db.views.List(),
	}
	if s, ok := db.engine.(sizer); ok {
		stats.LSMBytes, stats.VlogBytes = s.Size()
	}
	return stats, nil
}

// Backup writes a full snapshot of the real graph, its tokens and the view
// catalog to path. Virtual entities are never part of a backup.
func (db *DB) Backup(path string) error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return ErrClosed
	}

	badgerEngine, ok := db.engine.(*storage.BadgerEngine)
	if !ok {
		return fmt.Errorf("backup requires a Badger engine, have %T", db.engine)
	}
	if err := badgerEngine.Backup(path); err != nil {
		return err
	}
	db.logger.Log(storage.LevelInfo, "backup written", map[string]any{"path": path})
	return nil
}

// Close closes the database. Open transactions are discarded.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return nil
	}
	db.closed = true

	var errs []error
	for _, key := range db.scopes.Keys() {
		db.scopes.Evict(key)
	}
	if db.ownsEngine {
		if err := db.engine.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	db.logger.Log(storage.LevelInfo, "database closed", nil)
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// Tx is one transaction and its scope of virtual entities.
type Tx struct {
	db     *DB
	key    overlay.ScopeKey
	ov     *overlay.Overlay
	closed bool
}

// Key identifies the transaction's scope.
func (tx *Tx) Key() overlay.ScopeKey {
	return tx.key
}

// Overlay returns the merged real+virtual view of the graph for this transaction.
// Once the transaction is closed every call on it fails with overlay.ErrScopeClosed.
func (tx *Tx) Overlay() *overlay.Overlay {
	return tx.ov
}

// ResolveView resolves a named view in this transaction.
func (tx *Tx) ResolveView(name string) ([][]int64, error) {
	if tx.closed {
		return nil, ErrTxClosed
	}
	return tx.db.views.Resolve(tx.ov, name)
}

// RestrictToView limits the transaction to the entities of a named view.
func (tx *Tx) RestrictToView(name string) error {
	if tx.closed {
		return ErrTxClosed
	}
	return tx.db.views.Restrict(tx.ov, name)
}

// Stats reports the transaction's virtual entity counts and filter state.
func (tx *Tx) Stats() overlay.ScopeStats {
	return tx.ov.Scope().Stats()
}

// Close ends the transaction and discards its virtual entities, also for any
// handle obtained through Resume. Idempotent.
func (tx *Tx) Close() error {
	if tx.closed {
		return nil
	}
	tx.closed = true
	tx.db.scopes.Evict(tx.key)
	return nil
}
