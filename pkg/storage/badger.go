// Package storage provides storage engine implementations.
//
// BadgerEngine provides persistent disk-based storage using BadgerDB.
// It implements the Engine interface with full ACID transaction support.
package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
)

// Key prefixes for BadgerDB storage organization
// Using single-byte prefixes for efficiency
const (
	prefixNode          = byte(0x01) // nodes:nodeID -> Node
	prefixEdge          = byte(0x02) // edges:edgeID -> Edge
	prefixLabelIndex    = byte(0x03) // label:labelID:nodeID -> []byte{}
	prefixOutgoingIndex = byte(0x04) // outgoing:nodeID:edgeID -> []byte{}
	prefixIncomingIndex = byte(0x05) // incoming:nodeID:edgeID -> []byte{}
	prefixEdgeTypeIndex = byte(0x06) // edgetype:typeID:edgeID -> []byte{}
	prefixTokenByName   = byte(0x07) // token:kind:name -> id
	prefixTokenByID     = byte(0x08) // tokenid:kind:id -> name
	prefixMeta          = byte(0x09) // meta:key -> blob
	prefixSequence      = byte(0x0A) // sequence:name -> badger.Sequence state
)

// sequenceBandwidth is how many ids a badger.Sequence leases per disk write.
const sequenceBandwidth = 128

// BadgerEngine provides persistent storage using BadgerDB.
//
// Features:
//   - ACID transactions for all operations
//   - Persistent storage to disk
//   - Secondary indexes for labels, relationship types and adjacency
//   - Id allocation through badger sequences (ids never reused)
//   - Thread-safe concurrent access
//
// Key Structure (ids are 8-byte big-endian):
//   - Nodes: 0x01 + nodeID -> gob(Node)
//   - Edges: 0x02 + edgeID -> gob(Edge)
//   - Label Index: 0x03 + labelID + nodeID -> empty
//   - Outgoing Index: 0x04 + nodeID + edgeID -> empty
//   - Incoming Index: 0x05 + nodeID + edgeID -> empty
//   - Edge Type Index: 0x06 + typeID + edgeID -> empty
//   - Tokens: 0x07 + kind + name -> id, 0x08 + kind + id -> name
//
// Example:
//
//	engine, err := storage.NewBadgerEngine("/path/to/data")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer engine.Close()
//
//	person, _ := engine.GetOrCreateToken(storage.TokenLabel, "Person")
//	id, _ := engine.CreateNode()
//	engine.AddLabel(id, storage.LabelID(person))
type BadgerEngine struct {
	db       *badger.DB
	mu       sync.RWMutex // Protects closed and the token caches
	closed   bool
	inMemory bool // True if running in memory-only mode (testing)

	nodeSeq  *badger.Sequence
	edgeSeq  *badger.Sequence
	tokenSeq [3]*badger.Sequence

	// Token tables are small and hot; they are mirrored in memory and
	// written through to disk on creation.
	tokens [3]*TokenTable

	// Cached counts for O(1) stats lookups (updated on create/delete)
	nodeCount atomic.Int64
	edgeCount atomic.Int64
}

// BadgerOptions configures the BadgerDB engine.
type BadgerOptions struct {
	// DataDir is the directory for storing data files.
	// Required unless InMemory is set.
	DataDir string

	// InMemory runs BadgerDB in memory-only mode.
	// Useful for testing. Data is not persisted.
	InMemory bool

	// SyncWrites forces fsync after each write.
	// Slower but more durable.
	SyncWrites bool

	// Logger for BadgerDB internal logging.
	// If nil, BadgerDB logging is disabled.
	Logger badger.Logger

	// LowMemory enables memory-constrained settings.
	LowMemory bool
}

// NewBadgerEngine creates a new persistent storage engine with default settings.
//
// Thread Safety:
//
//	Safe for concurrent use from multiple goroutines.
func NewBadgerEngine(dataDir string) (*BadgerEngine, error) {
	return NewBadgerEngineWithOptions(BadgerOptions{
		DataDir: dataDir,
	})
}

// NewBadgerEngineWithOptions creates a BadgerEngine with custom configuration.
//
// Example - In-Memory Database for Testing:
//
//	engine, err := storage.NewBadgerEngineWithOptions(storage.BadgerOptions{
//		InMemory: true, // All data in RAM, lost on shutdown
//	})
//	defer engine.Close()
func NewBadgerEngineWithOptions(opts BadgerOptions) (*BadgerEngine, error) {
	db, err := badger.Open(badgerOptions(opts))
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
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

func badgerOptions(opts BadgerOptions) badger.Options {
	dir := opts.DataDir
	if opts.InMemory {
		dir = ""
	}
	badgerOpts := badger.DefaultOptions(dir)

	if opts.InMemory {
		badgerOpts = badgerOpts.WithInMemory(true)
	}

	if opts.SyncWrites {
		badgerOpts = badgerOpts.WithSyncWrites(true)
	}

	// Quiet by default
	badgerOpts = badgerOpts.WithLogger(opts.Logger)

	if opts.LowMemory {
		badgerOpts = badgerOpts.
			WithMemTableSize(8 << 20).      // 8MB memtable
			WithValueLogFileSize(32 << 20). // 32MB value log
			WithNumMemtables(1).
			WithNumLevelZeroTables(1).
			WithNumLevelZeroTablesStall(2).
			WithBlockCacheSize(8 << 20).
			WithIndexCacheSize(4 << 20)
	}

	return badgerOpts
}

// NewBadgerEngineInMemory creates an in-memory BadgerDB for testing.
func NewBadgerEngineInMemory() (*BadgerEngine, error) {
	return NewBadgerEngineWithOptions(BadgerOptions{
		InMemory: true,
	})
}

func (b *BadgerEngine) init() error {
	var err error
	if b.nodeSeq, err = b.db.GetSequence(sequenceKey("node"), sequenceBandwidth); err != nil {
		return fmt.Errorf("failed to open node sequence: %w", err)
	}
	if b.edgeSeq, err = b.db.GetSequence(sequenceKey("edge"), sequenceBandwidth); err != nil {
		return fmt.Errorf("failed to open edge sequence: %w", err)
	}
	for kind := range b.tokenSeq {
		name := fmt.Sprintf("token:%d", kind)
		if b.tokenSeq[kind], err = b.db.GetSequence(sequenceKey(name), sequenceBandwidth); err != nil {
			return fmt.Errorf("failed to open %s sequence: %w", TokenKind(kind), err)
		}
		b.tokens[kind] = NewTokenTable(nil)
	}
	if err := b.loadTokens(); err != nil {
		return fmt.Errorf("failed to load tokens: %w", err)
	}
	// Initialize cached counts by scanning existing data (one-time cost)
	if err := b.initializeCounts(); err != nil {
		return fmt.Errorf("failed to initialize counts: %w", err)
	}
	return nil
}

// IsInMemory returns true if the engine is running in memory-only mode.
func (b *BadgerEngine) IsInMemory() bool {
	return b.inMemory
}

// Close releases sequences and closes the database.
func (b *BadgerEngine) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	b.releaseSequences()
	return b.db.Close()
}

func (b *BadgerEngine) releaseSequences() {
	seqs := []*badger.Sequence{b.nodeSeq, b.edgeSeq, b.tokenSeq[0], b.tokenSeq[1], b.tokenSeq[2]}
	for _, seq := range seqs {
		if seq != nil {
			_ = seq.Release()
		}
	}
}

// Sync flushes pending writes to disk.
func (b *BadgerEngine) Sync() error {
	if err := b.ensureOpen(); err != nil {
		return err
	}
	return b.db.Sync()
}

// RunGC runs value log garbage collection once.
// badger.ErrNoRewrite (nothing to collect) is not reported as an error.
func (b *BadgerEngine) RunGC() error {
	if err := b.ensureOpen(); err != nil {
		return err
	}
	if b.inMemory {
		return nil
	}
	err := b.db.RunValueLogGC(0.5)
	if err == badger.ErrNoRewrite {
		return nil
	}
	return err
}

// ============================================================================
// Key encoding helpers
// ============================================================================

func appendID(key []byte, id int64) []byte {
	return binary.BigEndian.AppendUint64(key, uint64(id))
}

func decodeID(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b))
}

// nodeKey creates a key for storing a node.
func nodeKey(id NodeID) []byte {
	return appendID([]byte{prefixNode}, int64(id))
}

// edgeKey creates a key for storing an edge.
func edgeKey(id EdgeID) []byte {
	return appendID([]byte{prefixEdge}, int64(id))
}

// labelIndexKey creates a key for the label index.
// Format: prefix + labelID + nodeID
func labelIndexKey(label LabelID, nodeID NodeID) []byte {
	return appendID(labelIndexPrefix(label), int64(nodeID))
}

// labelIndexPrefix returns the prefix for scanning all nodes with a label.
func labelIndexPrefix(label LabelID) []byte {
	return appendID([]byte{prefixLabelIndex}, int64(label))
}

// outgoingIndexKey creates a key for the outgoing edge index.
func outgoingIndexKey(nodeID NodeID, edgeID EdgeID) []byte {
	return appendID(outgoingIndexPrefix(nodeID), int64(edgeID))
}

// outgoingIndexPrefix returns the prefix for scanning outgoing edges.
func outgoingIndexPrefix(nodeID NodeID) []byte {
	return appendID([]byte{prefixOutgoingIndex}, int64(nodeID))
}

// incomingIndexKey creates a key for the incoming edge index.
func incomingIndexKey(nodeID NodeID, edgeID EdgeID) []byte {
	return appendID(incomingIndexPrefix(nodeID), int64(edgeID))
}

// incomingIndexPrefix returns the prefix for scanning incoming edges.
func incomingIndexPrefix(nodeID NodeID) []byte {
	return appendID([]byte{prefixIncomingIndex}, int64(nodeID))
}

// edgeTypeIndexKey creates a key for the edge type index.
func edgeTypeIndexKey(typ RelTypeID, edgeID EdgeID) []byte {
	return appendID(edgeTypeIndexPrefix(typ), int64(edgeID))
}

// edgeTypeIndexPrefix returns the prefix for scanning all edges of a type.
func edgeTypeIndexPrefix(typ RelTypeID) []byte {
	return appendID([]byte{prefixEdgeTypeIndex}, int64(typ))
}

func tokenByNameKey(kind TokenKind, name string) []byte {
	key := make([]byte, 0, 2+len(name))
	key = append(key, prefixTokenByName, byte(kind))
	return append(key, name...)
}

func tokenByIDKey(kind TokenKind, id int64) []byte {
	return appendID([]byte{prefixTokenByID, byte(kind)}, id)
}

func metaKey(key string) []byte {
	return append([]byte{prefixMeta}, key...)
}

func sequenceKey(name string) []byte {
	return append([]byte{prefixSequence}, name...)
}

// extractTrailingID returns the id stored in the last 8 bytes of an index key.
func extractTrailingID(key []byte) int64 {
	if len(key) < 8 {
		return NoID
	}
	return decodeID(key[len(key)-8:])
}

// ============================================================================
// Serialization helpers
// ============================================================================

// encodeNode serializes a Node using gob (preserves Go types like int64).
func encodeNode(n *Node) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(n); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeNode deserializes a Node from gob.
func decodeNode(data []byte) (*Node, error) {
	var node Node
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&node); err != nil {
		return nil, err
	}
	if node.Properties == nil {
		node.Properties = make(map[PropertyKeyID]any)
	}
	return &node, nil
}

// encodeEdge serializes an Edge using gob (preserves Go types).
func encodeEdge(e *Edge) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeEdge deserializes an Edge from gob.
func decodeEdge(data []byte) (*Edge, error) {
	var edge Edge
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&edge); err != nil {
		return nil, err
	}
	if edge.Properties == nil {
		edge.Properties = make(map[PropertyKeyID]any)
	}
	return &edge, nil
}

// Verify BadgerEngine implements Engine interface
var (
	_ Engine        = (*BadgerEngine)(nil)
	_ MetadataStore = (*BadgerEngine)(nil)
)
