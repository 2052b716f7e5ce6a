package overlay

import (
	"fmt"
	"sort"

	"github.com/orneryd/overlaydb/pkg/storage"
)

type virtualNode struct {
	labels map[storage.LabelID]struct{}
	props  map[storage.PropertyKeyID]any
	rels   map[storage.EdgeID]struct{} // incident virtual relationships
}

type virtualRel struct {
	typ   storage.RelTypeID
	start storage.NodeID
	end   storage.NodeID
	props map[storage.PropertyKeyID]any
}

func (r *virtualRel) record(id storage.EdgeID) *storage.Edge {
	edge := &storage.Edge{
		ID:         id,
		Type:       r.typ,
		StartNode:  r.start,
		EndNode:    r.end,
		Properties: make(map[storage.PropertyKeyID]any, len(r.props)),
	}
	for k, v := range r.props {
		edge.Properties[k] = v
	}
	return edge
}

// Store holds every virtual entity of one scope.
//
// The store only checks what it can see itself: virtual ids must be live here and
// property keys must be virtual. Anything that needs the real engine (real
// endpoints, real tokens) is validated by Overlay before calling in.
// Not safe for concurrent use.
type Store struct {
	ids    *IDAllocator
	nodes  map[storage.NodeID]*virtualNode
	rels   map[storage.EdgeID]*virtualRel
	tokens [3]*storage.TokenTable
}

// NewStore returns an empty store with its own id allocator.
func NewStore() *Store {
	s := &Store{}
	s.reset()
	return s
}

// reset drops every virtual entity and token and restarts the allocator.
func (s *Store) reset() {
	s.ids = NewIDAllocator()
	s.nodes = make(map[storage.NodeID]*virtualNode)
	s.rels = make(map[storage.EdgeID]*virtualRel)
	for kind := range s.tokens {
		category := tokenCategory(storage.TokenKind(kind))
		s.tokens[kind] = storage.NewTokenTable(func() int64 { return s.ids.Next(category) })
	}
}

// ============================================================================
// Nodes
// ============================================================================

// CreateNode allocates a virtual node with no labels or properties.
func (s *Store) CreateNode() storage.NodeID {
	id := storage.NodeID(s.ids.Next(CategoryNode))
	s.nodes[id] = &virtualNode{
		labels: make(map[storage.LabelID]struct{}),
		props:  make(map[storage.PropertyKeyID]any),
		rels:   make(map[storage.EdgeID]struct{}),
	}
	return id
}

// HasNode reports whether id is a live virtual node.
func (s *Store) HasNode(id storage.NodeID) bool {
	_, ok := s.nodes[id]
	return ok
}

func (s *Store) node(id storage.NodeID) (*virtualNode, error) {
	n, ok := s.nodes[id]
	if !ok {
		return nil, notFound(KindNode, id)
	}
	return n, nil
}

// DeleteNode removes a virtual node and cascades to every virtual relationship
// incident to it. The deleted relationship ids are returned.
func (s *Store) DeleteNode(id storage.NodeID) ([]storage.EdgeID, error) {
	n, err := s.node(id)
	if err != nil {
		return nil, err
	}
	cascaded := sortedDesc(keys(n.rels))
	for _, relID := range cascaded {
		s.unlinkRelationship(relID)
	}
	delete(s.nodes, id)
	return cascaded, nil
}

// DetachRealNode removes every virtual relationship that references the real node id.
func (s *Store) DetachRealNode(id storage.NodeID) []storage.EdgeID {
	var detached []storage.EdgeID
	for relID, r := range s.rels {
		if r.start == id || r.end == id {
			detached = append(detached, relID)
		}
	}
	for _, relID := range detached {
		s.unlinkRelationship(relID)
	}
	return sortedDesc(detached)
}

// Node materializes a virtual node record.
func (s *Store) Node(id storage.NodeID) (*storage.Node, error) {
	n, err := s.node(id)
	if err != nil {
		return nil, err
	}
	record := &storage.Node{
		ID:         id,
		Labels:     sortedAsc(keys(n.labels)),
		Properties: make(map[storage.PropertyKeyID]any, len(n.props)),
	}
	for k, v := range n.props {
		record.Properties[k] = v
	}
	return record, nil
}

// NodeIDs returns every virtual node id in allocation order.
func (s *Store) NodeIDs() []storage.NodeID {
	return sortedDesc(keys(s.nodes))
}

// NodesWithLabel returns virtual nodes carrying label, in allocation order.
func (s *Store) NodesWithLabel(label storage.LabelID) []storage.NodeID {
	var out []storage.NodeID
	for id, n := range s.nodes {
		if _, ok := n.labels[label]; ok {
			out = append(out, id)
		}
	}
	return sortedDesc(out)
}

// NodesByProperty returns virtual nodes with label whose key equals value.
func (s *Store) NodesByProperty(label storage.LabelID, key storage.PropertyKeyID, value any) []storage.NodeID {
	var out []storage.NodeID
	for _, id := range s.NodesWithLabel(label) {
		if v, ok := s.nodes[id].props[key]; ok && storage.ValuesEqual(v, value) {
			out = append(out, id)
		}
	}
	return out
}

// AddLabel adds label to a virtual node. Virtual labels must exist in this store;
// real labels are accepted as given. Returns false if the node already had it.
func (s *Store) AddLabel(id storage.NodeID, label storage.LabelID) (bool, error) {
	n, err := s.node(id)
	if err != nil {
		return false, err
	}
	if IsVirtual(label) && !s.HasToken(storage.TokenLabel, int64(label)) {
		return false, notFound(KindLabel, label)
	}
	if _, ok := n.labels[label]; ok {
		return false, nil
	}
	n.labels[label] = struct{}{}
	return true, nil
}

// RemoveLabel removes label from a virtual node. Returns false if it was not set.
func (s *Store) RemoveLabel(id storage.NodeID, label storage.LabelID) (bool, error) {
	n, err := s.node(id)
	if err != nil {
		return false, err
	}
	if _, ok := n.labels[label]; !ok {
		return false, nil
	}
	delete(n.labels, label)
	return true, nil
}

// NodeHasLabel reports whether a virtual node carries label.
func (s *Store) NodeHasLabel(id storage.NodeID, label storage.LabelID) (bool, error) {
	n, err := s.node(id)
	if err != nil {
		return false, err
	}
	_, ok := n.labels[label]
	return ok, nil
}

// SetNodeProperty sets a property on a virtual node and returns the previous value
// or storage.NoValue.
func (s *Store) SetNodeProperty(id storage.NodeID, key storage.PropertyKeyID, value any) (any, error) {
	n, err := s.node(id)
	if err != nil {
		return storage.NoValue, err
	}
	if err := s.checkPropertyWrite("set node property", key, value); err != nil {
		return storage.NoValue, err
	}
	return putProperty(n.props, key, value), nil
}

// RemoveNodeProperty removes a property and returns it, or storage.NoValue when absent.
func (s *Store) RemoveNodeProperty(id storage.NodeID, key storage.PropertyKeyID) (any, error) {
	n, err := s.node(id)
	if err != nil {
		return storage.NoValue, err
	}
	return takeProperty(n.props, key), nil
}

// NodeProperty returns a property value or storage.NoValue.
func (s *Store) NodeProperty(id storage.NodeID, key storage.PropertyKeyID) (any, error) {
	n, err := s.node(id)
	if err != nil {
		return storage.NoValue, err
	}
	if v, ok := n.props[key]; ok {
		return v, nil
	}
	return storage.NoValue, nil
}

// ============================================================================
// Relationships
// ============================================================================

// CreateRelationship allocates a virtual relationship.
//
// Virtual endpoints must be live virtual nodes and a virtual type must be a
// known virtual token; real endpoints and types are taken as already validated.
func (s *Store) CreateRelationship(typ storage.RelTypeID, start, end storage.NodeID) (storage.EdgeID, error) {
	if IsVirtual(typ) && !s.HasToken(storage.TokenRelType, int64(typ)) {
		return storage.NoID, notFound(KindRelationshipType, typ)
	}
	for _, endpoint := range []storage.NodeID{start, end} {
		if IsVirtual(endpoint) && !s.HasNode(endpoint) {
			return storage.NoID, notFound(KindNode, endpoint)
		}
	}

	id := storage.EdgeID(s.ids.Next(CategoryRelationship))
	s.rels[id] = &virtualRel{
		typ:   typ,
		start: start,
		end:   end,
		props: make(map[storage.PropertyKeyID]any),
	}
	for _, endpoint := range []storage.NodeID{start, end} {
		if n, ok := s.nodes[endpoint]; ok {
			n.rels[id] = struct{}{}
		}
	}
	return id, nil
}

// HasRelationship reports whether id is a live virtual relationship.
func (s *Store) HasRelationship(id storage.EdgeID) bool {
	_, ok := s.rels[id]
	return ok
}

// realEndpoints returns the endpoints of relationship id that live in the engine.
func (s *Store) realEndpoints(id storage.EdgeID) []storage.NodeID {
	r, ok := s.rels[id]
	if !ok {
		return nil
	}
	var out []storage.NodeID
	if !IsVirtual(r.start) {
		out = append(out, r.start)
	}
	if !IsVirtual(r.end) && r.end != r.start {
		out = append(out, r.end)
	}
	return out
}

func (s *Store) relationship(id storage.EdgeID) (*virtualRel, error) {
	r, ok := s.rels[id]
	if !ok {
		return nil, notFound(KindRelationship, id)
	}
	return r, nil
}

// DeleteRelationship removes a virtual relationship.
func (s *Store) DeleteRelationship(id storage.EdgeID) error {
	if _, err := s.relationship(id); err != nil {
		return err
	}
	s.unlinkRelationship(id)
	return nil
}

func (s *Store) unlinkRelationship(id storage.EdgeID) {
	r, ok := s.rels[id]
	if !ok {
		return
	}
	for _, endpoint := range []storage.NodeID{r.start, r.end} {
		if n, ok := s.nodes[endpoint]; ok {
			delete(n.rels, id)
		}
	}
	delete(s.rels, id)
}

// Relationship materializes a virtual relationship record.
func (s *Store) Relationship(id storage.EdgeID) (*storage.Edge, error) {
	r, err := s.relationship(id)
	if err != nil {
		return nil, err
	}
	return r.record(id), nil
}

// RelationshipIDs returns every virtual relationship id in allocation order.
func (s *Store) RelationshipIDs() []storage.EdgeID {
	return sortedDesc(keys(s.rels))
}

// RelationshipsWithType returns virtual relationships of typ in allocation order.
func (s *Store) RelationshipsWithType(typ storage.RelTypeID) []storage.EdgeID {
	var out []storage.EdgeID
	for id, r := range s.rels {
		if r.typ == typ {
			out = append(out, id)
		}
	}
	return sortedDesc(out)
}

// Relationships returns the virtual relationships incident to node (virtual or real)
// that match dir and types, in allocation order. This is a scan over all virtual
// relationships; virtual graphs are expected to be small.
func (s *Store) Relationships(node storage.NodeID, dir storage.Direction, types ...storage.RelTypeID) []*storage.Edge {
	var out []*storage.Edge
	for _, id := range s.RelationshipIDs() {
		r := s.rels[id]
		if !storage.MatchesType(r.typ, types) {
			continue
		}
		edge := r.record(id)
		if dir.Matches(edge, node) {
			out = append(out, edge)
		}
	}
	return out
}

// Degree counts Relationships(node, dir, types...).
func (s *Store) Degree(node storage.NodeID, dir storage.Direction, types ...storage.RelTypeID) int {
	return len(s.Relationships(node, dir, types...))
}

// SetRelationshipProperty sets a property on a virtual relationship.
func (s *Store) SetRelationshipProperty(id storage.EdgeID, key storage.PropertyKeyID, value any) (any, error) {
	r, err := s.relationship(id)
	if err != nil {
		return storage.NoValue, err
	}
	if err := s.checkPropertyWrite("set relationship property", key, value); err != nil {
		return storage.NoValue, err
	}
	return putProperty(r.props, key, value), nil
}

// RemoveRelationshipProperty removes a property and returns it, or storage.NoValue.
func (s *Store) RemoveRelationshipProperty(id storage.EdgeID, key storage.PropertyKeyID) (any, error) {
	r, err := s.relationship(id)
	if err != nil {
		return storage.NoValue, err
	}
	return takeProperty(r.props, key), nil
}

// RelationshipProperty returns a property value or storage.NoValue.
func (s *Store) RelationshipProperty(id storage.EdgeID, key storage.PropertyKeyID) (any, error) {
	r, err := s.relationship(id)
	if err != nil {
		return storage.NoValue, err
	}
	if v, ok := r.props[key]; ok {
		return v, nil
	}
	return storage.NoValue, nil
}

// checkPropertyWrite validates a property write on a virtual entity.
func (s *Store) checkPropertyWrite(op string, key storage.PropertyKeyID, value any) error {
	if !IsVirtual(key) {
		return invalidRealm(op, "property key %d is real; virtual entities only take virtual property keys", key)
	}
	if !s.HasToken(storage.TokenPropertyKey, int64(key)) {
		return notFound(KindPropertyKey, key)
	}
	if value == nil {
		return fmt.Errorf("%s: nil value: %w", op, storage.ErrInvalidData)
	}
	return nil
}

// Stats counts the live entities of each category.
func (s *Store) Stats() StoreStats {
	return StoreStats{
		Nodes:             len(s.nodes),
		Relationships:     len(s.rels),
		Labels:            s.tokens[storage.TokenLabel].Len(),
		PropertyKeys:      s.tokens[storage.TokenPropertyKey].Len(),
		RelationshipTypes: s.tokens[storage.TokenRelType].Len(),
	}
}

// StoreStats is a snapshot of virtual entity counts.
type StoreStats struct {
	Nodes             int `json:"nodes"`
	Relationships     int `json:"relationships"`
	Labels            int `json:"labels"`
	PropertyKeys      int `json:"property_keys"`
	RelationshipTypes int `json:"relationship_types"`
}

// ============================================================================
// helpers
// ============================================================================

func putProperty(props map[storage.PropertyKeyID]any, key storage.PropertyKeyID, value any) any {
	prev, had := props[key]
	props[key] = value
	if !had {
		return storage.NoValue
	}
	return prev
}

func takeProperty(props map[storage.PropertyKeyID]any, key storage.PropertyKeyID) any {
	prev, had := props[key]
	if !had {
		return storage.NoValue
	}
	delete(props, key)
	return prev
}

func keys[K comparable, V any](m map[K]V) []K {
	out := make([]K, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// sortedDesc orders virtual ids by allocation (-2, -3, ...).
func sortedDesc[T ~int64](ids []T) []T {
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })
	return ids
}

func sortedAsc[T ~int64](ids []T) []T {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
