package overlay

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/overlaydb/pkg/storage"
)

func newStoreWithTokens(t *testing.T) (*Store, storage.LabelID, storage.PropertyKeyID, storage.RelTypeID) {
	t.Helper()
	s := NewStore()
	label, _ := s.GetOrCreateToken(storage.TokenLabel, "Person")
	key, _ := s.GetOrCreateToken(storage.TokenPropertyKey, "name")
	typ, _ := s.GetOrCreateToken(storage.TokenRelType, "KNOWS")
	return s, storage.LabelID(label), storage.PropertyKeyID(key), storage.RelTypeID(typ)
}

func TestStoreNodes(t *testing.T) {
	t.Run("create and delete", func(t *testing.T) {
		s := NewStore()
		a := s.CreateNode()
		b := s.CreateNode()
		assert.Equal(t, storage.NodeID(FirstVirtualID), a)
		assert.Equal(t, storage.NodeID(FirstVirtualID-1), b)
		assert.Equal(t, []storage.NodeID{a, b}, s.NodeIDs())

		_, err := s.DeleteNode(a)
		require.NoError(t, err)
		assert.False(t, s.HasNode(a))
		assert.Equal(t, []storage.NodeID{b}, s.NodeIDs())

		c := s.CreateNode()
		assert.NotEqual(t, a, c, "freed ids are not reused")
	})

	t.Run("unknown node", func(t *testing.T) {
		s := NewStore()
		_, err := s.DeleteNode(-50)
		var nf *EntityNotFoundError
		require.True(t, errors.As(err, &nf))
		assert.Equal(t, KindNode, nf.Kind)
		assert.Equal(t, int64(-50), nf.ID)
		assert.Contains(t, err.Error(), "virtual node -50")

		_, err = s.Node(-50)
		assert.ErrorIs(t, err, ErrEntityNotFound)
	})

	t.Run("labels are idempotent", func(t *testing.T) {
		s, label, _, _ := newStoreWithTokens(t)
		n := s.CreateNode()

		added, err := s.AddLabel(n, label)
		require.NoError(t, err)
		assert.True(t, added)
		added, err = s.AddLabel(n, label)
		require.NoError(t, err)
		assert.False(t, added)

		has, err := s.NodeHasLabel(n, label)
		require.NoError(t, err)
		assert.True(t, has)
		assert.Equal(t, []storage.NodeID{n}, s.NodesWithLabel(label))

		removed, err := s.RemoveLabel(n, label)
		require.NoError(t, err)
		assert.True(t, removed)
		removed, err = s.RemoveLabel(n, label)
		require.NoError(t, err)
		assert.False(t, removed)
		assert.Empty(t, s.NodesWithLabel(label))
	})

	t.Run("real labels allowed, unknown virtual labels rejected", func(t *testing.T) {
		s := NewStore()
		n := s.CreateNode()
		added, err := s.AddLabel(n, 3)
		require.NoError(t, err)
		assert.True(t, added)

		_, err = s.AddLabel(n, -77)
		assert.ErrorIs(t, err, ErrEntityNotFound)
	})

	t.Run("properties round trip", func(t *testing.T) {
		s, _, key, _ := newStoreWithTokens(t)
		n := s.CreateNode()

		prev, err := s.SetNodeProperty(n, key, "Alice")
		require.NoError(t, err)
		assert.True(t, storage.IsNoValue(prev))

		prev, err = s.SetNodeProperty(n, key, "Bob")
		require.NoError(t, err)
		assert.Equal(t, "Alice", prev)

		v, err := s.NodeProperty(n, key)
		require.NoError(t, err)
		assert.Equal(t, "Bob", v)

		removed, err := s.RemoveNodeProperty(n, key)
		require.NoError(t, err)
		assert.Equal(t, "Bob", removed)

		removed, err = s.RemoveNodeProperty(n, key)
		require.NoError(t, err)
		assert.True(t, storage.IsNoValue(removed))
	})

	t.Run("real property key rejected", func(t *testing.T) {
		s := NewStore()
		n := s.CreateNode()
		_, err := s.SetNodeProperty(n, 0, "x")
		assert.ErrorIs(t, err, ErrInvalidRealm)

		var ir *InvalidRealmError
		require.True(t, errors.As(err, &ir))
		assert.Equal(t, "set node property", ir.Op)
	})

	t.Run("unknown virtual key and nil value", func(t *testing.T) {
		s, _, key, _ := newStoreWithTokens(t)
		n := s.CreateNode()
		_, err := s.SetNodeProperty(n, -99, "x")
		assert.ErrorIs(t, err, ErrEntityNotFound)

		_, err = s.SetNodeProperty(n, key, nil)
		assert.ErrorIs(t, err, storage.ErrInvalidData)
	})

	t.Run("nodes by property", func(t *testing.T) {
		s, label, key, _ := newStoreWithTokens(t)
		a := s.CreateNode()
		b := s.CreateNode()
		for _, n := range []storage.NodeID{a, b} {
			_, err := s.AddLabel(n, label)
			require.NoError(t, err)
		}
		_, err := s.SetNodeProperty(a, key, "Alice")
		require.NoError(t, err)
		_, err = s.SetNodeProperty(b, key, "Bob")
		require.NoError(t, err)

		assert.Equal(t, []storage.NodeID{b}, s.NodesByProperty(label, key, "Bob"))
		assert.Empty(t, s.NodesByProperty(label, key, "Carol"))
	})
}

func TestStoreRelationships(t *testing.T) {
	t.Run("mixed endpoints", func(t *testing.T) {
		s, _, _, typ := newStoreWithTokens(t)
		a := s.CreateNode()

		r, err := s.CreateRelationship(typ, a, 7)
		require.NoError(t, err)
		assert.Equal(t, storage.EdgeID(FirstVirtualID), r)

		edge, err := s.Relationship(r)
		require.NoError(t, err)
		assert.Equal(t, typ, edge.Type)
		assert.Equal(t, a, edge.StartNode)
		assert.Equal(t, storage.NodeID(7), edge.EndNode)
	})

	t.Run("validation", func(t *testing.T) {
		s, _, _, typ := newStoreWithTokens(t)
		a := s.CreateNode()

		_, err := s.CreateRelationship(-55, a, a)
		var nf *EntityNotFoundError
		require.True(t, errors.As(err, &nf))
		assert.Equal(t, KindRelationshipType, nf.Kind)

		_, err = s.CreateRelationship(typ, a, -40)
		require.True(t, errors.As(err, &nf))
		assert.Equal(t, KindNode, nf.Kind)
		assert.Empty(t, s.RelationshipIDs(), "failed creates leave nothing behind")
	})

	t.Run("traversal and degree", func(t *testing.T) {
		s, _, _, typ := newStoreWithTokens(t)
		other, _ := s.GetOrCreateToken(storage.TokenRelType, "LIKES")
		a := s.CreateNode()
		b := s.CreateNode()
		ab, err := s.CreateRelationship(typ, a, b)
		require.NoError(t, err)
		ba, err := s.CreateRelationship(storage.RelTypeID(other), b, a)
		require.NoError(t, err)
		loop, err := s.CreateRelationship(typ, a, a)
		require.NoError(t, err)

		ids := func(edges []*storage.Edge) []storage.EdgeID {
			var out []storage.EdgeID
			for _, e := range edges {
				out = append(out, e.ID)
			}
			return out
		}

		assert.Equal(t, []storage.EdgeID{ab, loop}, ids(s.Relationships(a, storage.Outgoing)))
		assert.Equal(t, []storage.EdgeID{ba, loop}, ids(s.Relationships(a, storage.Incoming)))
		assert.Equal(t, []storage.EdgeID{ab, ba, loop}, ids(s.Relationships(a, storage.Both)))
		assert.Equal(t, []storage.EdgeID{ab, loop}, ids(s.Relationships(a, storage.Both, typ)))
		assert.Equal(t, 3, s.Degree(a, storage.Both))
		assert.Equal(t, 1, s.Degree(b, storage.Outgoing))
	})

	t.Run("delete node cascades", func(t *testing.T) {
		s, _, _, typ := newStoreWithTokens(t)
		a := s.CreateNode()
		b := s.CreateNode()
		ab, err := s.CreateRelationship(typ, a, b)
		require.NoError(t, err)
		toReal, err := s.CreateRelationship(typ, a, 3)
		require.NoError(t, err)
		keep, err := s.CreateRelationship(typ, b, 3)
		require.NoError(t, err)

		cascaded, err := s.DeleteNode(a)
		require.NoError(t, err)
		assert.Equal(t, []storage.EdgeID{ab, toReal}, cascaded)
		assert.Equal(t, []storage.EdgeID{keep}, s.RelationshipIDs())
		assert.Equal(t, 1, s.Degree(b, storage.Both))
	})

	t.Run("detach real node", func(t *testing.T) {
		s, _, _, typ := newStoreWithTokens(t)
		a := s.CreateNode()
		r1, err := s.CreateRelationship(typ, a, 3)
		require.NoError(t, err)
		r2, err := s.CreateRelationship(typ, 3, 3)
		require.NoError(t, err)
		keep, err := s.CreateRelationship(typ, a, 4)
		require.NoError(t, err)

		assert.Equal(t, []storage.EdgeID{r1, r2}, s.DetachRealNode(3))
		assert.Equal(t, []storage.EdgeID{keep}, s.RelationshipIDs())
		assert.Equal(t, 1, s.Degree(a, storage.Both))
		assert.Empty(t, s.DetachRealNode(3))
	})

	t.Run("delete relationship", func(t *testing.T) {
		s, _, key, typ := newStoreWithTokens(t)
		a := s.CreateNode()
		r, err := s.CreateRelationship(typ, a, a)
		require.NoError(t, err)
		_, err = s.SetRelationshipProperty(r, key, 1.5)
		require.NoError(t, err)

		require.NoError(t, s.DeleteRelationship(r))
		assert.ErrorIs(t, s.DeleteRelationship(r), ErrEntityNotFound)
		assert.Equal(t, 0, s.Degree(a, storage.Both))
		_, err = s.RelationshipProperty(r, key)
		assert.ErrorIs(t, err, ErrEntityNotFound)
	})
}

func TestStoreTokens(t *testing.T) {
	s := NewStore()
	id1, created := s.GetOrCreateToken(storage.TokenLabel, "Person")
	assert.True(t, created)
	id2, created := s.GetOrCreateToken(storage.TokenLabel, "Person")
	assert.False(t, created)
	assert.Equal(t, id1, id2)
	assert.Equal(t, FirstVirtualID, id1)

	other, _ := s.GetOrCreateToken(storage.TokenLabel, "City")
	assert.Equal(t, FirstVirtualID-1, other)

	key, _ := s.GetOrCreateToken(storage.TokenPropertyKey, "Person")
	assert.Equal(t, FirstVirtualID, key, "families allocate independently")

	name, err := s.TokenName(storage.TokenLabel, other)
	require.NoError(t, err)
	assert.Equal(t, "City", name)

	_, err = s.TokenName(storage.TokenRelType, other)
	assert.ErrorIs(t, err, ErrEntityNotFound)

	assert.Equal(t, []storage.Token{{ID: id1, Name: "Person"}, {ID: other, Name: "City"}}, s.Tokens(storage.TokenLabel))

	stats := s.Stats()
	assert.Equal(t, 2, stats.Labels)
	assert.Equal(t, 1, stats.PropertyKeys)
	assert.Equal(t, 0, stats.RelationshipTypes)
}
