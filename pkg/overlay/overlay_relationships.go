package overlay

import "github.com/orneryd/overlaydb/pkg/storage"

// CreateRelationship creates a real relationship through the engine.
// Any virtual endpoint or virtual type is rejected with InvalidRealmError.
func (o *Overlay) CreateRelationship(typ storage.RelTypeID, start, end storage.NodeID) (storage.EdgeID, error) {
	const op = "create relationship"
	if err := o.checkOpen(op); err != nil {
		return storage.NoID, err
	}
	if IsVirtual(start) || IsVirtual(end) {
		return storage.NoID, invalidRealm(op, "real relationship %d->%d cannot have a virtual endpoint", start, end)
	}
	if IsVirtual(typ) {
		return storage.NoID, invalidRealm(op, "real relationship cannot have virtual type %d", typ)
	}
	if err := o.checkNode(start); err != nil {
		return storage.NoID, err
	}
	if err := o.checkNode(end); err != nil {
		return storage.NoID, err
	}
	if err := o.checkRealToken(storage.TokenRelType, int64(typ)); err != nil {
		return storage.NoID, err
	}
	id, err := o.engine.CreateEdge(typ, start, end)
	return id, realError(op, KindRelationship, storage.NoID, err)
}

// CreateVirtualRelationship creates a relationship that lives only in this scope.
// Endpoints may be any mix of visible real and virtual nodes; the type may be
// real or virtual.
func (o *Overlay) CreateVirtualRelationship(typ storage.RelTypeID, start, end storage.NodeID) (storage.EdgeID, error) {
	if err := o.checkNode(start); err != nil {
		return storage.NoID, err
	}
	if err := o.checkNode(end); err != nil {
		return storage.NoID, err
	}
	if !IsVirtual(typ) {
		if err := o.checkRealToken(storage.TokenRelType, int64(typ)); err != nil {
			return storage.NoID, err
		}
	}
	return o.store.CreateRelationship(typ, start, end)
}

// DeleteRelationship deletes a relationship of either realm.
func (o *Overlay) DeleteRelationship(id storage.EdgeID) error {
	if err := o.checkRelationship(id); err != nil {
		return err
	}
	if IsVirtual(id) {
		return o.store.DeleteRelationship(id)
	}
	return realError("delete relationship", KindRelationship, int64(id), o.engine.DeleteEdge(id))
}

// RelationshipProperty returns a property value, or storage.NoValue when unset.
func (o *Overlay) RelationshipProperty(id storage.EdgeID, key storage.PropertyKeyID) (any, error) {
	edge, err := o.Relationship(id)
	if err != nil {
		return storage.NoValue, err
	}
	if v, ok := edge.Properties[key]; ok {
		return v, nil
	}
	return storage.NoValue, nil
}

// RelationshipHasProperty reports whether key is set on a relationship.
func (o *Overlay) RelationshipHasProperty(id storage.EdgeID, key storage.PropertyKeyID) (bool, error) {
	v, err := o.RelationshipProperty(id, key)
	if err != nil {
		return false, err
	}
	return !storage.IsNoValue(v), nil
}

// RelationshipPropertyKeys returns the property keys set on a relationship.
func (o *Overlay) RelationshipPropertyKeys(id storage.EdgeID) ([]storage.PropertyKeyID, error) {
	if err := o.checkRelationship(id); err != nil {
		return nil, err
	}
	if IsVirtual(id) {
		return o.store.PropertyKeysOfRelationship(id)
	}
	edge, err := o.engine.GetEdge(id)
	if err != nil {
		return nil, realError("relationship property keys", KindRelationship, int64(id), err)
	}
	return sortedAsc(keys(edge.Properties)), nil
}

// SetRelationshipProperty sets a property and returns the previous value or storage.NoValue.
func (o *Overlay) SetRelationshipProperty(id storage.EdgeID, key storage.PropertyKeyID, value any) (any, error) {
	const op = "set relationship property"
	if err := o.checkRelationship(id); err != nil {
		return storage.NoValue, err
	}
	if IsVirtual(id) {
		return o.store.SetRelationshipProperty(id, key, value)
	}
	if IsVirtual(key) {
		return storage.NoValue, invalidRealm(op, "virtual property key %d cannot be set on real relationship %d", key, id)
	}
	if err := o.checkRealToken(storage.TokenPropertyKey, int64(key)); err != nil {
		return storage.NoValue, err
	}
	prev, err := o.engine.SetEdgeProperty(id, key, value)
	return prev, realError(op, KindRelationship, int64(id), err)
}

// RemoveRelationshipProperty removes a property and returns the removed value, or
// storage.NoValue when it was not set.
func (o *Overlay) RemoveRelationshipProperty(id storage.EdgeID, key storage.PropertyKeyID) (any, error) {
	if err := o.checkRelationship(id); err != nil {
		return storage.NoValue, err
	}
	if IsVirtual(id) {
		return o.store.RemoveRelationshipProperty(id, key)
	}
	if IsVirtual(key) {
		return storage.NoValue, nil
	}
	prev, err := o.engine.RemoveEdgeProperty(id, key)
	return prev, realError("remove relationship property", KindRelationship, int64(id), err)
}

// AllRelationships yields every visible relationship: virtual first, then real.
func (o *Overlay) AllRelationships() (storage.Iterator[storage.EdgeID], error) {
	if err := o.checkOpen("all relationships"); err != nil {
		return nil, err
	}
	stored, err := o.engine.AllEdges()
	if err != nil {
		return nil, realError("all relationships", KindRelationship, storage.NoID, err)
	}
	virtual := o.liveVirtualRelationships(o.store.RelationshipIDs())
	return MergeIDs(virtual, stored, o.scope.relFilter), nil
}

// RelationshipsWithType yields every visible relationship of typ.
func (o *Overlay) RelationshipsWithType(typ storage.RelTypeID) (storage.Iterator[storage.EdgeID], error) {
	if err := o.checkOpen("relationships with type"); err != nil {
		return nil, err
	}
	virtual := o.liveVirtualRelationships(o.store.RelationshipsWithType(typ))
	if IsVirtual(typ) {
		return MergeIDs(virtual, nil, o.scope.relFilter), nil
	}
	stored, err := o.engine.EdgesByType(typ)
	if err != nil {
		return nil, realError("relationships with type", KindRelationshipType, int64(typ), err)
	}
	return MergeIDs(virtual, stored, o.scope.relFilter), nil
}

// Relationships yields the visible relationships incident to node in direction
// dir, restricted to types when any are given.
//
// For a real node the engine's incident ids are materialized one at a time so
// direction and type can be checked on the record, then the scope's virtual
// relationships touching the same node are put in front. A virtual node only
// ever has virtual relationships.
func (o *Overlay) Relationships(node storage.NodeID, dir storage.Direction, types ...storage.RelTypeID) (storage.Iterator[*storage.Edge], error) {
	if err := o.checkNode(node); err != nil {
		return nil, err
	}

	filter := o.scope.relFilter
	visible := func(edge *storage.Edge) bool {
		return edge != nil && filter.Allows(int64(edge.ID)) &&
			dir.Matches(edge, node) && storage.MatchesType(edge.Type, types)
	}
	liveVirtual := func(edge *storage.Edge) bool {
		return visible(edge) && o.virtualRelationshipLive(edge.ID)
	}

	virtual := Filter[*storage.Edge](storage.NewSliceIterator(o.store.Relationships(node, dir, types...)), liveVirtual)
	if IsVirtual(node) {
		return virtual, nil
	}

	ids, err := o.engine.NodeEdges(node, dir)
	if err != nil {
		return nil, realError("relationships", KindNode, int64(node), err)
	}
	if !filter.Unused() {
		ids = FilterIDs(ids, filter)
	}
	records := Map(ids, func(id storage.EdgeID) *storage.Edge {
		edge, err := o.engine.GetEdge(id)
		if err != nil {
			// Deleted between the index read and the fetch.
			return nil
		}
		return edge
	})
	return Concat(virtual, Filter(records, visible)), nil
}

// Degree counts Relationships(node, dir, types...), so it is always consistent
// with traversal under the current filters.
func (o *Overlay) Degree(node storage.NodeID, dir storage.Direction, types ...storage.RelTypeID) (int64, error) {
	it, err := o.Relationships(node, dir, types...)
	if err != nil {
		return 0, err
	}
	return Count(it), nil
}

// RelationshipTypesOf returns the distinct types of the visible relationships
// touching node, in first-seen order.
func (o *Overlay) RelationshipTypesOf(node storage.NodeID) ([]storage.RelTypeID, error) {
	it, err := o.Relationships(node, storage.Both)
	if err != nil {
		return nil, err
	}
	seen := make(map[storage.RelTypeID]struct{})
	var out []storage.RelTypeID
	for it.HasNext() {
		typ := it.Next().Type
		if _, ok := seen[typ]; ok {
			continue
		}
		seen[typ] = struct{}{}
		out = append(out, typ)
	}
	return out, nil
}
