package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runEngineContract exercises the Engine contract shared by every implementation.
func runEngineContract(t *testing.T, newEngine func(t *testing.T) Engine) {
	t.Run("node lifecycle", func(t *testing.T) {
		engine := newEngine(t)
		id, err := engine.CreateNode()
		require.NoError(t, err)
		assert.GreaterOrEqual(t, int64(id), int64(0))
		assert.True(t, engine.NodeExists(id))

		node, err := engine.GetNode(id)
		require.NoError(t, err)
		assert.Equal(t, id, node.ID)
		assert.Empty(t, node.Labels)

		require.NoError(t, engine.DeleteNode(id))
		assert.False(t, engine.NodeExists(id))
		_, err = engine.GetNode(id)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, engine.DeleteNode(id), ErrNotFound)
	})

	t.Run("ids are non-negative and unique", func(t *testing.T) {
		engine := newEngine(t)
		seen := make(map[NodeID]bool)
		for i := 0; i < 20; i++ {
			id, err := engine.CreateNode()
			require.NoError(t, err)
			assert.GreaterOrEqual(t, int64(id), int64(0))
			assert.False(t, seen[id], "duplicate id %d", id)
			seen[id] = true
		}
	})

	t.Run("negative ids are invalid", func(t *testing.T) {
		engine := newEngine(t)
		_, err := engine.GetNode(-5)
		assert.ErrorIs(t, err, ErrInvalidID)
		_, err = engine.GetEdge(-5)
		assert.ErrorIs(t, err, ErrInvalidID)
		assert.False(t, engine.NodeExists(-5))
	})

	t.Run("labels", func(t *testing.T) {
		engine := newEngine(t)
		person, err := engine.GetOrCreateToken(TokenLabel, "Person")
		require.NoError(t, err)
		id, _ := engine.CreateNode()

		added, err := engine.AddLabel(id, LabelID(person))
		require.NoError(t, err)
		assert.True(t, added)
		added, err = engine.AddLabel(id, LabelID(person))
		require.NoError(t, err)
		assert.False(t, added)

		ids := Drain(mustIter(engine.NodesByLabel(LabelID(person))))
		assert.Equal(t, []NodeID{id}, ids)
		n, err := engine.CountNodesWithLabel(LabelID(person))
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		removed, err := engine.RemoveLabel(id, LabelID(person))
		require.NoError(t, err)
		assert.True(t, removed)
		removed, err = engine.RemoveLabel(id, LabelID(person))
		require.NoError(t, err)
		assert.False(t, removed)
		assert.Empty(t, Drain(mustIter(engine.NodesByLabel(LabelID(person)))))
	})

	t.Run("unknown label token rejected", func(t *testing.T) {
		engine := newEngine(t)
		id, _ := engine.CreateNode()
		_, err := engine.AddLabel(id, 999)
		assert.ErrorIs(t, err, ErrInvalidID)
	})

	t.Run("node properties", func(t *testing.T) {
		engine := newEngine(t)
		key, _ := engine.GetOrCreateToken(TokenPropertyKey, "name")
		id, _ := engine.CreateNode()

		prev, err := engine.SetNodeProperty(id, PropertyKeyID(key), "Alice")
		require.NoError(t, err)
		assert.True(t, IsNoValue(prev))

		prev, err = engine.SetNodeProperty(id, PropertyKeyID(key), "Bob")
		require.NoError(t, err)
		assert.Equal(t, "Alice", prev)

		node, err := engine.GetNode(id)
		require.NoError(t, err)
		assert.Equal(t, "Bob", node.Properties[PropertyKeyID(key)])

		removed, err := engine.RemoveNodeProperty(id, PropertyKeyID(key))
		require.NoError(t, err)
		assert.Equal(t, "Bob", removed)

		removed, err = engine.RemoveNodeProperty(id, PropertyKeyID(key))
		require.NoError(t, err)
		assert.True(t, IsNoValue(removed))

		_, err = engine.SetNodeProperty(id, PropertyKeyID(key), nil)
		assert.ErrorIs(t, err, ErrInvalidData)
	})

	t.Run("edges and traversal", func(t *testing.T) {
		engine := newEngine(t)
		knows, _ := engine.GetOrCreateToken(TokenRelType, "KNOWS")
		a, _ := engine.CreateNode()
		b, _ := engine.CreateNode()
		c, _ := engine.CreateNode()

		ab, err := engine.CreateEdge(RelTypeID(knows), a, b)
		require.NoError(t, err)
		ca, err := engine.CreateEdge(RelTypeID(knows), c, a)
		require.NoError(t, err)
		loop, err := engine.CreateEdge(RelTypeID(knows), a, a)
		require.NoError(t, err)

		edge, err := engine.GetEdge(ab)
		require.NoError(t, err)
		assert.Equal(t, a, edge.StartNode)
		assert.Equal(t, b, edge.EndNode)
		assert.Equal(t, RelTypeID(knows), edge.Type)

		out := Drain(mustIter(engine.NodeEdges(a, Outgoing)))
		assert.ElementsMatch(t, []EdgeID{ab, loop}, out)
		in := Drain(mustIter(engine.NodeEdges(a, Incoming)))
		assert.ElementsMatch(t, []EdgeID{ca, loop}, in)
		both := Drain(mustIter(engine.NodeEdges(a, Both)))
		assert.ElementsMatch(t, []EdgeID{ab, ca, loop}, both)

		byType := Drain(mustIter(engine.EdgesByType(RelTypeID(knows))))
		assert.ElementsMatch(t, []EdgeID{ab, ca, loop}, byType)

		n, err := engine.EdgeCount()
		require.NoError(t, err)
		assert.EqualValues(t, 3, n)
	})

	t.Run("edge requires live endpoints and known type", func(t *testing.T) {
		engine := newEngine(t)
		knows, _ := engine.GetOrCreateToken(TokenRelType, "KNOWS")
		a, _ := engine.CreateNode()

		_, err := engine.CreateEdge(RelTypeID(knows), a, 12345)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = engine.CreateEdge(777, a, a)
		assert.ErrorIs(t, err, ErrInvalidID)
	})

	t.Run("delete node removes its edges", func(t *testing.T) {
		engine := newEngine(t)
		knows, _ := engine.GetOrCreateToken(TokenRelType, "KNOWS")
		a, _ := engine.CreateNode()
		b, _ := engine.CreateNode()
		ab, _ := engine.CreateEdge(RelTypeID(knows), a, b)
		loop, _ := engine.CreateEdge(RelTypeID(knows), a, a)

		require.NoError(t, engine.DeleteNode(a))
		assert.False(t, engine.EdgeExists(ab))
		assert.False(t, engine.EdgeExists(loop))
		assert.Empty(t, Drain(mustIter(engine.NodeEdges(b, Both))))

		n, err := engine.EdgeCount()
		require.NoError(t, err)
		assert.EqualValues(t, 0, n)
	})

	t.Run("edge properties", func(t *testing.T) {
		engine := newEngine(t)
		knows, _ := engine.GetOrCreateToken(TokenRelType, "KNOWS")
		since, _ := engine.GetOrCreateToken(TokenPropertyKey, "since")
		a, _ := engine.CreateNode()
		ab, _ := engine.CreateEdge(RelTypeID(knows), a, a)

		prev, err := engine.SetEdgeProperty(ab, PropertyKeyID(since), 2020)
		require.NoError(t, err)
		assert.True(t, IsNoValue(prev))
		edge, _ := engine.GetEdge(ab)
		assert.Equal(t, 2020, edge.Properties[PropertyKeyID(since)])

		removed, err := engine.RemoveEdgeProperty(ab, PropertyKeyID(since))
		require.NoError(t, err)
		assert.Equal(t, 2020, removed)
	})

	t.Run("count edges by pattern", func(t *testing.T) {
		engine := newEngine(t)
		person, _ := engine.GetOrCreateToken(TokenLabel, "Person")
		city, _ := engine.GetOrCreateToken(TokenLabel, "City")
		livesIn, _ := engine.GetOrCreateToken(TokenRelType, "LIVES_IN")
		knows, _ := engine.GetOrCreateToken(TokenRelType, "KNOWS")

		alice, _ := engine.CreateNode()
		bob, _ := engine.CreateNode()
		paris, _ := engine.CreateNode()
		engine.AddLabel(alice, LabelID(person))
		engine.AddLabel(bob, LabelID(person))
		engine.AddLabel(paris, LabelID(city))
		engine.CreateEdge(RelTypeID(livesIn), alice, paris)
		engine.CreateEdge(RelTypeID(knows), alice, bob)

		tests := []struct {
			name     string
			start    LabelID
			typ      RelTypeID
			end      LabelID
			expected int64
		}{
			{"all", NoID, NoID, NoID, 2},
			{"by type", NoID, RelTypeID(livesIn), NoID, 1},
			{"person to any", LabelID(person), NoID, NoID, 2},
			{"any to city", NoID, NoID, LabelID(city), 1},
			{"person knows person", LabelID(person), RelTypeID(knows), LabelID(person), 1},
			{"city to any", LabelID(city), NoID, NoID, 0},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				n, err := engine.CountEdges(tt.start, tt.typ, tt.end)
				require.NoError(t, err)
				assert.Equal(t, tt.expected, n)
			})
		}
	})

	t.Run("nodes by property", func(t *testing.T) {
		engine := newEngine(t)
		person, _ := engine.GetOrCreateToken(TokenLabel, "Person")
		name, _ := engine.GetOrCreateToken(TokenPropertyKey, "name")
		alice, _ := engine.CreateNode()
		bob, _ := engine.CreateNode()
		for _, id := range []NodeID{alice, bob} {
			engine.AddLabel(id, LabelID(person))
		}
		engine.SetNodeProperty(alice, PropertyKeyID(name), "Alice")
		engine.SetNodeProperty(bob, PropertyKeyID(name), "Bob")

		ids := Drain(mustIter(engine.NodesByProperty(LabelID(person), PropertyKeyID(name), "Bob")))
		assert.Equal(t, []NodeID{bob}, ids)
	})

	t.Run("tokens", func(t *testing.T) {
		engine := newEngine(t)
		first, err := engine.GetOrCreateToken(TokenLabel, "Person")
		require.NoError(t, err)
		again, err := engine.GetOrCreateToken(TokenLabel, "Person")
		require.NoError(t, err)
		assert.Equal(t, first, again)

		// Families are independent
		key, err := engine.GetOrCreateToken(TokenPropertyKey, "Person")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, key, int64(0))

		id, err := engine.TokenID(TokenLabel, "Person")
		require.NoError(t, err)
		assert.Equal(t, first, id)
		name, err := engine.TokenName(TokenLabel, first)
		require.NoError(t, err)
		assert.Equal(t, "Person", name)

		_, err = engine.TokenID(TokenLabel, "Missing")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = engine.GetOrCreateToken(TokenLabel, "  ")
		assert.ErrorIs(t, err, ErrInvalidData)

		tokens := Drain(mustIter(engine.Tokens(TokenLabel)))
		assert.Equal(t, []Token{{ID: first, Name: "Person"}}, tokens)
	})

	t.Run("metadata", func(t *testing.T) {
		engine := newEngine(t)
		meta, ok := engine.(MetadataStore)
		require.True(t, ok)

		require.NoError(t, meta.PutMeta("view:b", []byte("2")))
		require.NoError(t, meta.PutMeta("view:a", []byte("1")))
		require.NoError(t, meta.PutMeta("other", []byte("x")))

		v, err := meta.GetMeta("view:a")
		require.NoError(t, err)
		assert.Equal(t, []byte("1"), v)

		keys, err := meta.MetaKeys("view:")
		require.NoError(t, err)
		assert.Equal(t, []string{"view:a", "view:b"}, keys)

		require.NoError(t, meta.DeleteMeta("view:a"))
		_, err = meta.GetMeta("view:a")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func mustIter[T any](it Iterator[T], err error) Iterator[T] {
	if err != nil {
		panic(err)
	}
	return it
}
