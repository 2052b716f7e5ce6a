package overlay

import "github.com/orneryd/overlaydb/pkg/storage"

// CreateNode creates a real node through the engine.
func (o *Overlay) CreateNode() (storage.NodeID, error) {
	if err := o.checkOpen("create node"); err != nil {
		return storage.NoID, err
	}
	id, err := o.engine.CreateNode()
	return id, realError("create node", KindNode, storage.NoID, err)
}

// CreateVirtualNode creates a node that lives only in this scope.
// A closed scope creates nothing and returns storage.NoID.
func (o *Overlay) CreateVirtualNode() storage.NodeID {
	if o.scope.closed {
		return storage.NoID
	}
	return o.store.CreateNode()
}

// DeleteNode deletes a node of either realm.
//
// Deleting a virtual node also deletes every virtual relationship incident to it.
// Deleting a real node (which cascades in the engine) also drops this scope's
// virtual relationships that referenced it.
func (o *Overlay) DeleteNode(id storage.NodeID) error {
	if err := o.checkNode(id); err != nil {
		return err
	}

	var cascaded []storage.EdgeID
	if IsVirtual(id) {
		var err error
		if cascaded, err = o.store.DeleteNode(id); err != nil {
			return err
		}
	} else {
		if err := o.engine.DeleteNode(id); err != nil {
			return realError("delete node", KindNode, int64(id), err)
		}
		cascaded = o.store.DetachRealNode(id)
	}

	if len(cascaded) > 0 {
		o.logger.Log(storage.LevelDebug, "cascaded virtual relationship delete", map[string]any{
			"scope":         o.scope.key.String(),
			"node":          int64(id),
			"relationships": len(cascaded),
		})
	}
	return nil
}

// NodeLabels returns the labels of a node.
func (o *Overlay) NodeLabels(id storage.NodeID) ([]storage.LabelID, error) {
	node, err := o.Node(id)
	if err != nil {
		return nil, err
	}
	return node.Labels, nil
}

// NodeHasLabel reports whether a node carries label.
// A real node never carries a virtual label.
func (o *Overlay) NodeHasLabel(id storage.NodeID, label storage.LabelID) (bool, error) {
	if err := o.checkNode(id); err != nil {
		return false, err
	}
	if IsVirtual(id) {
		return o.store.NodeHasLabel(id, label)
	}
	if IsVirtual(label) {
		return false, nil
	}
	node, err := o.engine.GetNode(id)
	if err != nil {
		return false, realError("node has label", KindNode, int64(id), err)
	}
	return node.HasLabel(label), nil
}

// AddLabel adds label to a node and reports whether it was newly added.
// Virtual nodes accept labels of both realms; real nodes only real labels.
func (o *Overlay) AddLabel(id storage.NodeID, label storage.LabelID) (bool, error) {
	if err := o.checkNode(id); err != nil {
		return false, err
	}
	if !IsVirtual(label) {
		if err := o.checkRealToken(storage.TokenLabel, int64(label)); err != nil {
			return false, err
		}
	}
	if IsVirtual(id) {
		return o.store.AddLabel(id, label)
	}
	if IsVirtual(label) {
		return false, invalidRealm("add label", "virtual label %d cannot be added to real node %d", label, id)
	}
	added, err := o.engine.AddLabel(id, label)
	return added, realError("add label", KindNode, int64(id), err)
}

// RemoveLabel removes label from a node and reports whether it was present.
func (o *Overlay) RemoveLabel(id storage.NodeID, label storage.LabelID) (bool, error) {
	if err := o.checkNode(id); err != nil {
		return false, err
	}
	if IsVirtual(id) {
		return o.store.RemoveLabel(id, label)
	}
	if IsVirtual(label) {
		return false, nil
	}
	removed, err := o.engine.RemoveLabel(id, label)
	return removed, realError("remove label", KindNode, int64(id), err)
}

// NodeProperty returns a property value, or storage.NoValue when unset.
func (o *Overlay) NodeProperty(id storage.NodeID, key storage.PropertyKeyID) (any, error) {
	if err := o.checkNode(id); err != nil {
		return storage.NoValue, err
	}
	if IsVirtual(id) {
		return o.store.NodeProperty(id, key)
	}
	node, err := o.engine.GetNode(id)
	if err != nil {
		return storage.NoValue, realError("node property", KindNode, int64(id), err)
	}
	if v, ok := node.Properties[key]; ok {
		return v, nil
	}
	return storage.NoValue, nil
}

// NodeHasProperty reports whether key is set on a node.
func (o *Overlay) NodeHasProperty(id storage.NodeID, key storage.PropertyKeyID) (bool, error) {
	v, err := o.NodeProperty(id, key)
	if err != nil {
		return false, err
	}
	return !storage.IsNoValue(v), nil
}

// NodePropertyKeys returns the property keys set on a node.
func (o *Overlay) NodePropertyKeys(id storage.NodeID) ([]storage.PropertyKeyID, error) {
	if err := o.checkNode(id); err != nil {
		return nil, err
	}
	if IsVirtual(id) {
		return o.store.PropertyKeysOfNode(id)
	}
	node, err := o.engine.GetNode(id)
	if err != nil {
		return nil, realError("node property keys", KindNode, int64(id), err)
	}
	return sortedAsc(keys(node.Properties)), nil
}

// SetNodeProperty sets a property and returns the previous value or storage.NoValue.
// Virtual nodes only take virtual keys and real nodes only real keys.
func (o *Overlay) SetNodeProperty(id storage.NodeID, key storage.PropertyKeyID, value any) (any, error) {
	if err := o.checkNode(id); err != nil {
		return storage.NoValue, err
	}
	if IsVirtual(id) {
		return o.store.SetNodeProperty(id, key, value)
	}
	if IsVirtual(key) {
		return storage.NoValue, invalidRealm("set node property", "virtual property key %d cannot be set on real node %d", key, id)
	}
	if err := o.checkRealToken(storage.TokenPropertyKey, int64(key)); err != nil {
		return storage.NoValue, err
	}
	prev, err := o.engine.SetNodeProperty(id, key, value)
	return prev, realError("set node property", KindNode, int64(id), err)
}

// RemoveNodeProperty removes a property and returns the removed value, or
// storage.NoValue when it was not set.
func (o *Overlay) RemoveNodeProperty(id storage.NodeID, key storage.PropertyKeyID) (any, error) {
	if err := o.checkNode(id); err != nil {
		return storage.NoValue, err
	}
	if IsVirtual(id) {
		return o.store.RemoveNodeProperty(id, key)
	}
	if IsVirtual(key) {
		return storage.NoValue, nil
	}
	prev, err := o.engine.RemoveNodeProperty(id, key)
	return prev, realError("remove node property", KindNode, int64(id), err)
}

// AllNodes yields every visible node: virtual first, then real.
func (o *Overlay) AllNodes() (storage.Iterator[storage.NodeID], error) {
	if err := o.checkOpen("all nodes"); err != nil {
		return nil, err
	}
	stored, err := o.engine.AllNodes()
	if err != nil {
		return nil, realError("all nodes", KindNode, storage.NoID, err)
	}
	return MergeIDs(o.store.NodeIDs(), stored, o.scope.nodeFilter), nil
}

// NodesWithLabel yields every visible node carrying label.
func (o *Overlay) NodesWithLabel(label storage.LabelID) (storage.Iterator[storage.NodeID], error) {
	if err := o.checkOpen("nodes with label"); err != nil {
		return nil, err
	}
	virtual := o.store.NodesWithLabel(label)
	if IsVirtual(label) {
		return MergeIDs(virtual, nil, o.scope.nodeFilter), nil
	}
	stored, err := o.engine.NodesByLabel(label)
	if err != nil {
		return nil, realError("nodes with label", KindLabel, int64(label), err)
	}
	return MergeIDs(virtual, stored, o.scope.nodeFilter), nil
}

// NodesByProperty yields visible nodes with label whose key equals value.
//
// The real side is handed to the engine's index seek; the virtual side is a scan
// of the scope's store. Virtual nodes only carry virtual keys, so a real key only
// ever matches real nodes and the other way round.
func (o *Overlay) NodesByProperty(label storage.LabelID, key storage.PropertyKeyID, value any) (storage.Iterator[storage.NodeID], error) {
	if err := o.checkOpen("nodes by property"); err != nil {
		return nil, err
	}
	virtual := o.store.NodesByProperty(label, key, value)
	if IsVirtual(label) || IsVirtual(key) {
		return MergeIDs(virtual, nil, o.scope.nodeFilter), nil
	}
	stored, err := o.engine.NodesByProperty(label, key, value)
	if err != nil {
		return nil, realError("nodes by property", KindLabel, int64(label), err)
	}
	return MergeIDs(virtual, stored, o.scope.nodeFilter), nil
}
