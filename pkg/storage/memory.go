// Package storage provides storage implementations.
// MemoryEngine is a thread-safe in-memory storage for testing and small datasets.
package storage

import (
	"sort"
	"strings"
	"sync"
)

// MemoryEngine is an in-memory implementation of Engine.
// It's useful for:
// - Unit testing (no disk I/O)
// - Hosting the overlay in short-lived tools
// - Small datasets that fit in RAM
type MemoryEngine struct {
	mu    sync.RWMutex
	nodes map[NodeID]*Node
	edges map[EdgeID]*Edge

	// Indexes for efficient lookups
	nodesByLabel  map[LabelID]map[NodeID]struct{}
	outgoingEdges map[NodeID]map[EdgeID]struct{}
	incomingEdges map[NodeID]map[EdgeID]struct{}

	nextNodeID NodeID
	nextEdgeID EdgeID
	tokens     [3]*TokenTable
	nextToken  [3]int64

	meta map[string][]byte

	closed bool
}

// NewMemoryEngine creates a new in-memory storage engine.
func NewMemoryEngine() *MemoryEngine {
	m := &MemoryEngine{
		nodes:         make(map[NodeID]*Node),
		edges:         make(map[EdgeID]*Edge),
		nodesByLabel:  make(map[LabelID]map[NodeID]struct{}),
		outgoingEdges: make(map[NodeID]map[EdgeID]struct{}),
		incomingEdges: make(map[NodeID]map[EdgeID]struct{}),
		meta:          make(map[string][]byte),
	}
	for kind := range m.tokens {
		kind := kind
		m.tokens[kind] = NewTokenTable(func() int64 {
			id := m.nextToken[kind]
			m.nextToken[kind]++
			return id
		})
	}
	return m
}

// CreateNode creates a new node.
func (m *MemoryEngine) CreateNode() (NodeID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return NoID, ErrStorageClosed
	}

	id := m.nextNodeID
	m.nextNodeID++
	m.nodes[id] = &Node{ID: id, Properties: make(map[PropertyKeyID]any)}
	return id, nil
}

// GetNode retrieves a node by ID.
func (m *MemoryEngine) GetNode(id NodeID) (*Node, error) {
	if id < 0 {
		return nil, ErrInvalidID
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageClosed
	}

	node, exists := m.nodes[id]
	if !exists {
		return nil, ErrNotFound
	}

	return CopyNode(node), nil
}

// NodeExists reports whether id is a live node.
func (m *MemoryEngine) NodeExists(id NodeID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.nodes[id]
	return ok && !m.closed
}

// DeleteNode removes a node and all its edges.
func (m *MemoryEngine) DeleteNode(id NodeID) error {
	if id < 0 {
		return ErrInvalidID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStorageClosed
	}

	node, exists := m.nodes[id]
	if !exists {
		return ErrNotFound
	}

	// Remove from label indexes
	for _, label := range node.Labels {
		if m.nodesByLabel[label] != nil {
			delete(m.nodesByLabel[label], id)
		}
	}

	// Delete all outgoing edges
	if outgoing := m.outgoingEdges[id]; outgoing != nil {
		for edgeID := range outgoing {
			if edge := m.edges[edgeID]; edge != nil {
				if incoming := m.incomingEdges[edge.EndNode]; incoming != nil {
					delete(incoming, edgeID)
				}
			}
			delete(m.edges, edgeID)
		}
		delete(m.outgoingEdges, id)
	}

	// Delete all incoming edges
	if incoming := m.incomingEdges[id]; incoming != nil {
		for edgeID := range incoming {
			if edge := m.edges[edgeID]; edge != nil {
				if outgoing := m.outgoingEdges[edge.StartNode]; outgoing != nil {
					delete(outgoing, edgeID)
				}
			}
			delete(m.edges, edgeID)
		}
		delete(m.incomingEdges, id)
	}

	delete(m.nodes, id)
	return nil
}

// AddLabel adds label to a node. Returns false when the node already had it.
func (m *MemoryEngine) AddLabel(id NodeID, label LabelID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	node, err := m.liveNode(id)
	if err != nil {
		return false, err
	}
	if !m.tokens[TokenLabel].Contains(int64(label)) {
		return false, ErrInvalidID
	}
	if node.HasLabel(label) {
		return false, nil
	}
	node.Labels = append(node.Labels, label)
	if m.nodesByLabel[label] == nil {
		m.nodesByLabel[label] = make(map[NodeID]struct{})
	}
	m.nodesByLabel[label][id] = struct{}{}
	return true, nil
}

// RemoveLabel removes label from a node. Returns false when the node did not have it.
func (m *MemoryEngine) RemoveLabel(id NodeID, label LabelID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	node, err := m.liveNode(id)
	if err != nil {
		return false, err
	}
	for i, l := range node.Labels {
		if l == label {
			node.Labels = append(node.Labels[:i], node.Labels[i+1:]...)
			if idx := m.nodesByLabel[label]; idx != nil {
				delete(idx, id)
			}
			return true, nil
		}
	}
	return false, nil
}

// SetNodeProperty sets a property and returns the previous value or NoValue.
func (m *MemoryEngine) SetNodeProperty(id NodeID, key PropertyKeyID, value any) (any, error) {
	if value == nil {
		return NoValue, ErrInvalidData
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	node, err := m.liveNode(id)
	if err != nil {
		return NoValue, err
	}
	if !m.tokens[TokenPropertyKey].Contains(int64(key)) {
		return NoValue, ErrInvalidID
	}
	return setProperty(node.Properties, key, value), nil
}

// RemoveNodeProperty removes a property and returns it, or NoValue when absent.
func (m *MemoryEngine) RemoveNodeProperty(id NodeID, key PropertyKeyID) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	node, err := m.liveNode(id)
	if err != nil {
		return NoValue, err
	}
	return removeProperty(node.Properties, key), nil
}

// CreateEdge creates a new edge.
func (m *MemoryEngine) CreateEdge(typ RelTypeID, start, end NodeID) (EdgeID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return NoID, ErrStorageClosed
	}

	// Verify start and end nodes exist
	if _, exists := m.nodes[start]; !exists {
		return NoID, ErrNotFound
	}
	if _, exists := m.nodes[end]; !exists {
		return NoID, ErrNotFound
	}
	if !m.tokens[TokenRelType].Contains(int64(typ)) {
		return NoID, ErrInvalidID
	}

	id := m.nextEdgeID
	m.nextEdgeID++
	m.edges[id] = &Edge{
		ID:         id,
		Type:       typ,
		StartNode:  start,
		EndNode:    end,
		Properties: make(map[PropertyKeyID]any),
	}

	// Update indexes
	if m.outgoingEdges[start] == nil {
		m.outgoingEdges[start] = make(map[EdgeID]struct{})
	}
	m.outgoingEdges[start][id] = struct{}{}

	if m.incomingEdges[end] == nil {
		m.incomingEdges[end] = make(map[EdgeID]struct{})
	}
	m.incomingEdges[end][id] = struct{}{}

	return id, nil
}

// GetEdge retrieves an edge by ID.
func (m *MemoryEngine) GetEdge(id EdgeID) (*Edge, error) {
	if id < 0 {
		return nil, ErrInvalidID
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageClosed
	}

	edge, exists := m.edges[id]
	if !exists {
		return nil, ErrNotFound
	}

	return CopyEdge(edge), nil
}

// EdgeExists reports whether id is a live edge.
func (m *MemoryEngine) EdgeExists(id EdgeID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.edges[id]
	return ok && !m.closed
}

// DeleteEdge removes an edge.
func (m *MemoryEngine) DeleteEdge(id EdgeID) error {
	if id < 0 {
		return ErrInvalidID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStorageClosed
	}

	edge, exists := m.edges[id]
	if !exists {
		return ErrNotFound
	}

	// Remove from indexes
	if m.outgoingEdges[edge.StartNode] != nil {
		delete(m.outgoingEdges[edge.StartNode], id)
	}
	if m.incomingEdges[edge.EndNode] != nil {
		delete(m.incomingEdges[edge.EndNode], id)
	}

	delete(m.edges, id)
	return nil
}

// SetEdgeProperty sets a property and returns the previous value or NoValue.
func (m *MemoryEngine) SetEdgeProperty(id EdgeID, key PropertyKeyID, value any) (any, error) {
	if value == nil {
		return NoValue, ErrInvalidData
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	edge, err := m.liveEdge(id)
	if err != nil {
		return NoValue, err
	}
	if !m.tokens[TokenPropertyKey].Contains(int64(key)) {
		return NoValue, ErrInvalidID
	}
	return setProperty(edge.Properties, key, value), nil
}

// RemoveEdgeProperty removes a property and returns it, or NoValue when absent.
func (m *MemoryEngine) RemoveEdgeProperty(id EdgeID, key PropertyKeyID) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	edge, err := m.liveEdge(id)
	if err != nil {
		return NoValue, err
	}
	return removeProperty(edge.Properties, key), nil
}

// AllNodes returns all node ids in ascending order.
func (m *MemoryEngine) AllNodes() (Iterator[NodeID], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageClosed
	}
	ids := make([]NodeID, 0, len(m.nodes))
	for id := range m.nodes {
		ids = append(ids, id)
	}
	return NewSliceIterator(sortedIDs(ids)), nil
}

// NodesByLabel returns the ids of all nodes with the given label.
func (m *MemoryEngine) NodesByLabel(label LabelID) (Iterator[NodeID], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageClosed
	}
	nodeIDs := m.nodesByLabel[label]
	ids := make([]NodeID, 0, len(nodeIDs))
	for id := range nodeIDs {
		ids = append(ids, id)
	}
	return NewSliceIterator(sortedIDs(ids)), nil
}

// NodesByProperty returns nodes with label whose key property equals value.
// There is no property index in the memory engine; this is a label scan.
func (m *MemoryEngine) NodesByProperty(label LabelID, key PropertyKeyID, value any) (Iterator[NodeID], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageClosed
	}
	var ids []NodeID
	for id := range m.nodesByLabel[label] {
		if v, ok := m.nodes[id].Properties[key]; ok && ValuesEqual(v, value) {
			ids = append(ids, id)
		}
	}
	return NewSliceIterator(sortedIDs(ids)), nil
}

// AllEdges returns all edge ids in ascending order.
func (m *MemoryEngine) AllEdges() (Iterator[EdgeID], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageClosed
	}
	ids := make([]EdgeID, 0, len(m.edges))
	for id := range m.edges {
		ids = append(ids, id)
	}
	return NewSliceIterator(sortedIDs(ids)), nil
}

// EdgesByType returns the ids of all edges of the given type.
func (m *MemoryEngine) EdgesByType(typ RelTypeID) (Iterator[EdgeID], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageClosed
	}
	var ids []EdgeID
	for id, edge := range m.edges {
		if edge.Type == typ {
			ids = append(ids, id)
		}
	}
	return NewSliceIterator(sortedIDs(ids)), nil
}

// NodeEdges returns the ids of edges incident to a node in the given direction.
func (m *MemoryEngine) NodeEdges(id NodeID, dir Direction) (Iterator[EdgeID], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageClosed
	}
	if _, ok := m.nodes[id]; !ok {
		return nil, ErrNotFound
	}
	seen := make(map[EdgeID]struct{})
	if dir == Outgoing || dir == Both {
		for edgeID := range m.outgoingEdges[id] {
			seen[edgeID] = struct{}{}
		}
	}
	if dir == Incoming || dir == Both {
		for edgeID := range m.incomingEdges[id] {
			seen[edgeID] = struct{}{}
		}
	}
	ids := make([]EdgeID, 0, len(seen))
	for edgeID := range seen {
		ids = append(ids, edgeID)
	}
	return NewSliceIterator(sortedIDs(ids)), nil
}

// NodeCount returns the number of nodes.
func (m *MemoryEngine) NodeCount() (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, ErrStorageClosed
	}

	return int64(len(m.nodes)), nil
}

// EdgeCount returns the number of edges.
func (m *MemoryEngine) EdgeCount() (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, ErrStorageClosed
	}

	return int64(len(m.edges)), nil
}

// CountNodesWithLabel returns the number of nodes carrying label (NoID counts all nodes).
func (m *MemoryEngine) CountNodesWithLabel(label LabelID) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, ErrStorageClosed
	}
	if label == NoID {
		return int64(len(m.nodes)), nil
	}
	return int64(len(m.nodesByLabel[label])), nil
}

// CountEdges counts (start:startLabel)-[:typ]->(end:endLabel) patterns.
func (m *MemoryEngine) CountEdges(startLabel LabelID, typ RelTypeID, endLabel LabelID) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, ErrStorageClosed
	}
	var count int64
	for _, edge := range m.edges {
		if typ != NoID && edge.Type != typ {
			continue
		}
		if startLabel != NoID && !m.nodes[edge.StartNode].HasLabel(startLabel) {
			continue
		}
		if endLabel != NoID && !m.nodes[edge.EndNode].HasLabel(endLabel) {
			continue
		}
		count++
	}
	return count, nil
}

// GetOrCreateToken returns the id of the named token, creating it when missing.
func (m *MemoryEngine) GetOrCreateToken(kind TokenKind, name string) (int64, error) {
	if strings.TrimSpace(name) == "" {
		return NoID, ErrInvalidData
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return NoID, ErrStorageClosed
	}
	id, _ := m.tokens[kind].GetOrCreate(name)
	return id, nil
}

// TokenID looks up a token by name.
func (m *MemoryEngine) TokenID(kind TokenKind, name string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if id, ok := m.tokens[kind].ID(name); ok {
		return id, nil
	}
	return NoID, ErrNotFound
}

// TokenName looks up a token by id.
func (m *MemoryEngine) TokenName(kind TokenKind, id int64) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if name, ok := m.tokens[kind].Name(id); ok {
		return name, nil
	}
	return "", ErrNotFound
}

// Tokens returns every token of a family.
func (m *MemoryEngine) Tokens(kind TokenKind) (Iterator[Token], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageClosed
	}
	return NewSliceIterator(m.tokens[kind].All()), nil
}

// PutMeta stores a metadata blob.
func (m *MemoryEngine) PutMeta(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStorageClosed
	}
	m.meta[key] = append([]byte(nil), value...)
	return nil
}

// GetMeta loads a metadata blob.
func (m *MemoryEngine) GetMeta(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.meta[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// DeleteMeta removes a metadata blob. Missing keys are not an error.
func (m *MemoryEngine) DeleteMeta(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.meta, key)
	return nil
}

// MetaKeys lists metadata keys with the given prefix, sorted.
func (m *MemoryEngine) MetaKeys(prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []string
	for k := range m.meta {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Close closes the storage engine.
func (m *MemoryEngine) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.nodes = nil
	m.edges = nil
	m.nodesByLabel = nil
	m.outgoingEdges = nil
	m.incomingEdges = nil

	return nil
}

// liveNode must be called with m.mu held.
func (m *MemoryEngine) liveNode(id NodeID) (*Node, error) {
	if m.closed {
		return nil, ErrStorageClosed
	}
	if id < 0 {
		return nil, ErrInvalidID
	}
	node, ok := m.nodes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return node, nil
}

// liveEdge must be called with m.mu held.
func (m *MemoryEngine) liveEdge(id EdgeID) (*Edge, error) {
	if m.closed {
		return nil, ErrStorageClosed
	}
	if id < 0 {
		return nil, ErrInvalidID
	}
	edge, ok := m.edges[id]
	if !ok {
		return nil, ErrNotFound
	}
	return edge, nil
}

func setProperty(props map[PropertyKeyID]any, key PropertyKeyID, value any) any {
	prev, had := props[key]
	props[key] = value
	if !had {
		return NoValue
	}
	return prev
}

func removeProperty(props map[PropertyKeyID]any, key PropertyKeyID) any {
	prev, had := props[key]
	if !had {
		return NoValue
	}
	delete(props, key)
	return prev
}

func sortedIDs[T ~int64](ids []T) []T {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Verify MemoryEngine implements Engine interface
var (
	_ Engine        = (*MemoryEngine)(nil)
	_ MetadataStore = (*MemoryEngine)(nil)
)
