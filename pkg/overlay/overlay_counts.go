package overlay

import (
	"errors"

	"github.com/orneryd/overlaydb/pkg/storage"
)

// Counts add the engine's count to a scan of the scope's store. While a filter
// is active the engine's aggregate cannot be used, so the real side is counted
// by iterating the filtered candidates instead.

// CountNodes counts every visible node.
func (o *Overlay) CountNodes() (int64, error) {
	if err := o.checkOpen("count nodes"); err != nil {
		return 0, err
	}
	if o.scope.nodeFilter.Unused() {
		n, err := o.engine.NodeCount()
		if err != nil {
			return 0, realError("count nodes", KindNode, storage.NoID, err)
		}
		return n + int64(len(o.store.NodeIDs())), nil
	}
	it, err := o.AllNodes()
	if err != nil {
		return 0, err
	}
	return Count(it), nil
}

// CountRelationships counts every visible relationship.
func (o *Overlay) CountRelationships() (int64, error) {
	if err := o.checkOpen("count relationships"); err != nil {
		return 0, err
	}
	if o.scope.relFilter.Unused() {
		n, err := o.engine.EdgeCount()
		if err != nil {
			return 0, realError("count relationships", KindRelationship, storage.NoID, err)
		}
		return n + int64(len(o.liveVirtualRelationships(o.store.RelationshipIDs()))), nil
	}
	it, err := o.AllRelationships()
	if err != nil {
		return 0, err
	}
	return Count(it), nil
}

// CountNodesWithLabel counts visible nodes carrying label; storage.NoID counts all nodes.
func (o *Overlay) CountNodesWithLabel(label storage.LabelID) (int64, error) {
	if err := o.checkOpen("count nodes with label"); err != nil {
		return 0, err
	}
	if label == storage.NoID {
		return o.CountNodes()
	}
	if o.scope.nodeFilter.Unused() && !IsVirtual(label) {
		n, err := o.engine.CountNodesWithLabel(label)
		if err != nil {
			return 0, realError("count nodes with label", KindLabel, int64(label), err)
		}
		return n + int64(len(o.store.NodesWithLabel(label))), nil
	}
	it, err := o.NodesWithLabel(label)
	if err != nil {
		return 0, err
	}
	return Count(it), nil
}

// CountRelationshipsByType counts visible relationships matching
// (:startLabel)-[:typ]->(:endLabel). storage.NoID is a wildcard in every position.
func (o *Overlay) CountRelationshipsByType(startLabel storage.LabelID, typ storage.RelTypeID, endLabel storage.LabelID) (int64, error) {
	if err := o.checkOpen("count relationships"); err != nil {
		return 0, err
	}
	filter := o.scope.relFilter

	var virtual int64
	for _, id := range o.liveVirtualRelationships(o.store.RelationshipIDs()) {
		if !filter.Allows(int64(id)) {
			continue
		}
		edge, err := o.store.Relationship(id)
		if err != nil {
			return 0, err
		}
		if typ != storage.NoID && edge.Type != typ {
			continue
		}
		ok, err := o.endpointsMatch(edge, startLabel, endLabel)
		if err != nil {
			return 0, err
		}
		if ok {
			virtual++
		}
	}

	// Real relationships never carry virtual types and real nodes never carry
	// virtual labels.
	if IsVirtual(startLabel) || IsVirtual(typ) || IsVirtual(endLabel) {
		return virtual, nil
	}

	if filter.Unused() {
		n, err := o.engine.CountEdges(startLabel, typ, endLabel)
		if err != nil {
			return 0, realError("count relationships", KindRelationship, storage.NoID, err)
		}
		return n + virtual, nil
	}

	var candidates storage.Iterator[storage.EdgeID]
	var err error
	if typ == storage.NoID {
		candidates, err = o.engine.AllEdges()
	} else {
		candidates, err = o.engine.EdgesByType(typ)
	}
	if err != nil {
		return 0, realError("count relationships", KindRelationship, storage.NoID, err)
	}

	total := virtual
	candidates = FilterIDs(candidates, filter)
	for candidates.HasNext() {
		edge, err := o.engine.GetEdge(candidates.Next())
		if err != nil {
			continue
		}
		ok, err := o.endpointsMatch(edge, startLabel, endLabel)
		if err != nil {
			return 0, err
		}
		if ok {
			total++
		}
	}
	return total, nil
}

// endpointsMatch checks the label predicates of a count against both endpoints.
// Endpoints are checked for labels only; the node filter does not apply.
func (o *Overlay) endpointsMatch(edge *storage.Edge, startLabel, endLabel storage.LabelID) (bool, error) {
	ok, err := o.hasLabelUnfiltered(edge.StartNode, startLabel)
	if err != nil || !ok {
		return false, err
	}
	return o.hasLabelUnfiltered(edge.EndNode, endLabel)
}

func (o *Overlay) hasLabelUnfiltered(node storage.NodeID, label storage.LabelID) (bool, error) {
	if label == storage.NoID {
		return true, nil
	}
	if IsVirtual(node) {
		return o.store.NodeHasLabel(node, label)
	}
	if IsVirtual(label) {
		return false, nil
	}
	n, err := o.engine.GetNode(node)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, realError("count relationships", KindNode, int64(node), err)
	}
	return n.HasLabel(label), nil
}
