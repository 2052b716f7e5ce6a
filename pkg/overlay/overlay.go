// Package overlay layers per-transaction virtual graph entities over a real
// storage engine.
//
// A virtual entity (node, relationship, label, property key or relationship type)
// lives in exactly one Scope, is invisible to every other scope and is never
// persisted. Virtual ids are negative and strictly below VirtualThreshold, so the
// realm of any id is decided by a comparison, without a lookup.
//
// Overlay is the single entry point used by the query layer. It holds the real
// storage.Engine and the current Scope, and routes every call:
//
//	id virtual  -> the scope's Store
//	id real     -> the engine
//	"all X"     -> virtual ids first, then the engine's iterator, then the scope's IDFilter
//	counts      -> engine count + virtual count, exact under an active filter
//
// Example:
//
//	engine := storage.NewMemoryEngine()
//	registry := overlay.NewRegistry(overlay.RegistryConfig{})
//	scope, _ := registry.ForScope(overlay.NewScopeKey())
//	ov := overlay.New(engine, scope, nil)
//
//	person, _ := ov.VirtualLabelGetOrCreate("Person")
//	a := ov.CreateVirtualNode()
//	ov.AddLabel(a, person)
//
//	defer registry.Evict(scope.Key())
//
// Errors: every unknown or filtered-out entity surfaces as *EntityNotFoundError
// (errors.Is ErrEntityNotFound), every realm mix-up as *InvalidRealmError
// (errors.Is ErrInvalidRealm). Removing something that is not there is not an error.
// Once the scope is evicted every operation fails with ErrScopeClosed.
package overlay

import (
	"errors"
	"fmt"

	"github.com/orneryd/overlaydb/pkg/storage"
)

// Overlay presents one scope's merged virtual + real graph.
//
// An Overlay is as single-threaded as its scope. The engine carries its own
// concurrency control; nothing here adds locking around delegated calls.
type Overlay struct {
	engine storage.Engine
	scope  *Scope
	store  *Store
	logger storage.Logger
}

// New binds engine and scope. A nil logger discards diagnostics.
func New(engine storage.Engine, scope *Scope, logger storage.Logger) *Overlay {
	if logger == nil {
		logger = storage.NopLogger()
	}
	return &Overlay{
		engine: engine,
		scope:  scope,
		store:  scope.Store(),
		logger: logger,
	}
}

// Engine returns the underlying real engine.
func (o *Overlay) Engine() storage.Engine { return o.engine }

// Scope returns the scope this overlay works in.
func (o *Overlay) Scope() *Scope { return o.scope }

// ============================================================================
// Visibility
// ============================================================================

// checkOpen fails with ErrScopeClosed once the scope has been evicted.
func (o *Overlay) checkOpen(op string) error {
	if o.scope.closed {
		return fmt.Errorf("%s: %w", op, ErrScopeClosed)
	}
	return nil
}

func (o *Overlay) nodeVisible(id storage.NodeID) bool {
	if o.scope.closed || !o.scope.nodeFilter.Allows(int64(id)) {
		return false
	}
	if IsVirtual(id) {
		return o.store.HasNode(id)
	}
	return id >= 0 && o.engine.NodeExists(id)
}

func (o *Overlay) relationshipVisible(id storage.EdgeID) bool {
	if o.scope.closed || !o.scope.relFilter.Allows(int64(id)) {
		return false
	}
	if IsVirtual(id) {
		return o.store.HasRelationship(id) && o.virtualRelationshipLive(id)
	}
	return id >= 0 && o.engine.EdgeExists(id)
}

// virtualRelationshipLive reports whether every real endpoint of a virtual
// relationship still exists in the engine. Other scopes and direct engine
// writes can delete real nodes at any time.
func (o *Overlay) virtualRelationshipLive(id storage.EdgeID) bool {
	for _, node := range o.store.realEndpoints(id) {
		if !o.engine.NodeExists(node) {
			return false
		}
	}
	return true
}

// liveVirtualRelationships keeps the ids whose real endpoints still exist.
func (o *Overlay) liveVirtualRelationships(ids []storage.EdgeID) []storage.EdgeID {
	out := ids[:0:0]
	for _, id := range ids {
		if o.virtualRelationshipLive(id) {
			out = append(out, id)
		}
	}
	return out
}

func (o *Overlay) checkNode(id storage.NodeID) error {
	if err := o.checkOpen("node"); err != nil {
		return err
	}
	if !o.nodeVisible(id) {
		return notFound(KindNode, id)
	}
	return nil
}

func (o *Overlay) checkRelationship(id storage.EdgeID) error {
	if err := o.checkOpen("relationship"); err != nil {
		return err
	}
	if !o.relationshipVisible(id) {
		return notFound(KindRelationship, id)
	}
	return nil
}

// realError translates engine sentinels into the overlay taxonomy.
func realError(op string, kind EntityKind, id int64, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, storage.ErrNotFound) {
		return &EntityNotFoundError{Kind: kind, ID: id}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ============================================================================
// Existence and lookup
// ============================================================================

// NodeExists reports whether id is a live, visible node in either realm.
func (o *Overlay) NodeExists(id storage.NodeID) bool {
	return o.nodeVisible(id)
}

// RelationshipExists reports whether id is a live, visible relationship in either realm.
func (o *Overlay) RelationshipExists(id storage.EdgeID) bool {
	return o.relationshipVisible(id)
}

// Node returns the full record of a node.
func (o *Overlay) Node(id storage.NodeID) (*storage.Node, error) {
	if err := o.checkNode(id); err != nil {
		return nil, err
	}
	if IsVirtual(id) {
		return o.store.Node(id)
	}
	node, err := o.engine.GetNode(id)
	return node, realError("get node", KindNode, int64(id), err)
}

// Relationship returns the full record of a relationship.
func (o *Overlay) Relationship(id storage.EdgeID) (*storage.Edge, error) {
	if err := o.checkRelationship(id); err != nil {
		return nil, err
	}
	if IsVirtual(id) {
		return o.store.Relationship(id)
	}
	edge, err := o.engine.GetEdge(id)
	return edge, realError("get relationship", KindRelationship, int64(id), err)
}

// ============================================================================
// Filters and views
// ============================================================================

// ActivateNodeFilter restricts visible nodes to ids (merged with any earlier
// allow-list). Passing no ids leaves the filter as it was.
func (o *Overlay) ActivateNodeFilter(ids ...storage.NodeID) {
	o.scope.nodeFilter.Activate(toInt64s(ids))
}

// ActivateRelationshipFilter restricts visible relationships to ids.
func (o *Overlay) ActivateRelationshipFilter(ids ...storage.EdgeID) {
	o.scope.relFilter.Activate(toInt64s(ids))
}

// ClearNodeFilter lifts the node restriction.
func (o *Overlay) ClearNodeFilter() {
	o.scope.nodeFilter.Clear()
}

// ClearRelationshipFilter lifts the relationship restriction.
func (o *Overlay) ClearRelationshipFilter() {
	o.scope.relFilter.Clear()
}

// CacheView memoizes the id sets computed for a named view in this scope.
// A closed scope caches nothing.
func (o *Overlay) CacheView(name string, sets [][]int64) {
	if o.scope.closed {
		return
	}
	o.scope.views.Put(name, sets)
}

// CachedView returns the memoized id sets for name, if any.
func (o *Overlay) CachedView(name string) ([][]int64, bool) {
	return o.scope.views.Get(name)
}

// UncacheView forgets the memoized id sets for name.
func (o *Overlay) UncacheView(name string) bool {
	return o.scope.views.Delete(name)
}
