package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNode_HasLabel(t *testing.T) {
	node := &Node{ID: 1, Labels: []LabelID{3, 7}}
	assert.True(t, node.HasLabel(7))
	assert.False(t, node.HasLabel(4))
	assert.False(t, (&Node{}).HasLabel(0))
}

func TestEdge_OtherNode(t *testing.T) {
	edge := &Edge{ID: 1, StartNode: 10, EndNode: 20}
	assert.Equal(t, NodeID(20), edge.OtherNode(10))
	assert.Equal(t, NodeID(10), edge.OtherNode(20))

	loop := &Edge{ID: 2, StartNode: 5, EndNode: 5}
	assert.Equal(t, NodeID(5), loop.OtherNode(5))
}

func TestDirection_Matches(t *testing.T) {
	edge := &Edge{StartNode: 1, EndNode: 2}
	loop := &Edge{StartNode: 3, EndNode: 3}

	tests := []struct {
		dir  Direction
		edge *Edge
		node NodeID
		want bool
	}{
		{Outgoing, edge, 1, true},
		{Outgoing, edge, 2, false},
		{Incoming, edge, 1, false},
		{Incoming, edge, 2, true},
		{Both, edge, 1, true},
		{Both, edge, 2, true},
		{Both, edge, 9, false},
		{Outgoing, loop, 3, true},
		{Incoming, loop, 3, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.dir.Matches(tt.edge, tt.node), "%s %+v node %d", tt.dir, *tt.edge, tt.node)
	}
	assert.Equal(t, "BOTH", Both.String())
	assert.Equal(t, "Direction(9)", Direction(9).String())
}

func TestMatchesType(t *testing.T) {
	assert.True(t, MatchesType(4, nil))
	assert.True(t, MatchesType(4, []RelTypeID{1, 4}))
	assert.False(t, MatchesType(4, []RelTypeID{1, 2}))
}

func TestNoValue(t *testing.T) {
	assert.True(t, IsNoValue(NoValue))
	assert.False(t, IsNoValue(nil))
	assert.False(t, IsNoValue("NO_VALUE"))
}

func TestCopyNodeAndEdge(t *testing.T) {
	node := &Node{ID: 1, Labels: []LabelID{2}, Properties: map[PropertyKeyID]any{0: "a"}}
	copied := CopyNode(node)
	copied.Labels[0] = 9
	copied.Properties[0] = "b"
	assert.Equal(t, LabelID(2), node.Labels[0])
	assert.Equal(t, "a", node.Properties[0])
	assert.Nil(t, CopyNode(nil))

	edge := &Edge{ID: 1, Type: 2, StartNode: 3, EndNode: 4, Properties: map[PropertyKeyID]any{0: int64(1)}}
	copiedEdge := CopyEdge(edge)
	copiedEdge.Properties[0] = int64(2)
	assert.Equal(t, int64(1), edge.Properties[0])
	assert.Equal(t, edge.StartNode, copiedEdge.StartNode)
	assert.Nil(t, CopyEdge(nil))
}

func TestValuesEqual(t *testing.T) {
	assert.True(t, ValuesEqual("x", "x"))
	assert.True(t, ValuesEqual([]int64{1, 2}, []int64{1, 2}))
	assert.False(t, ValuesEqual(int64(1), 1), "types must match")
}
