package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBadgerEngine_Backup(t *testing.T) {
	t.Run("backup empty database", func(t *testing.T) {
		engine, err := NewBadgerEngine(t.TempDir())
		require.NoError(t, err)
		defer engine.Close()

		backupPath := filepath.Join(t.TempDir(), "backup.bin")
		require.NoError(t, engine.Backup(backupPath))

		info, err := os.Stat(backupPath)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, info.Size(), int64(0))
	})

	t.Run("backup to invalid path", func(t *testing.T) {
		engine, err := NewBadgerEngine(t.TempDir())
		require.NoError(t, err)
		defer engine.Close()

		assert.Error(t, engine.Backup("/nonexistent/dir/backup.bin"))
	})

	t.Run("backup closed engine", func(t *testing.T) {
		engine, err := NewBadgerEngine(t.TempDir())
		require.NoError(t, err)
		require.NoError(t, engine.Close())

		err = engine.Backup(filepath.Join(t.TempDir(), "backup.bin"))
		assert.ErrorIs(t, err, ErrStorageClosed)
	})
}

func TestBadgerEngine_Restore(t *testing.T) {
	source, err := NewBadgerEngine(t.TempDir())
	require.NoError(t, err)
	defer source.Close()

	person, err := source.GetOrCreateToken(TokenLabel, "Person")
	require.NoError(t, err)
	knows, err := source.GetOrCreateToken(TokenRelType, "KNOWS")
	require.NoError(t, err)
	name, err := source.GetOrCreateToken(TokenPropertyKey, "name")
	require.NoError(t, err)

	var nodes []NodeID
	for i := 0; i < 10; i++ {
		id, err := source.CreateNode()
		require.NoError(t, err)
		_, err = source.AddLabel(id, LabelID(person))
		require.NoError(t, err)
		nodes = append(nodes, id)
	}
	_, err = source.SetNodeProperty(nodes[0], PropertyKeyID(name), "alice")
	require.NoError(t, err)
	edge, err := source.CreateEdge(RelTypeID(knows), nodes[0], nodes[1])
	require.NoError(t, err)
	require.NoError(t, source.PutMeta("views/people", []byte("name: people")))

	backupPath := filepath.Join(t.TempDir(), "backup.bin")
	require.NoError(t, source.Backup(backupPath))

	t.Run("restores graph tokens and metadata", func(t *testing.T) {
		restored, err := RestoreBadgerEngineFromFile(BadgerOptions{DataDir: t.TempDir()}, backupPath)
		require.NoError(t, err)
		defer restored.Close()

		n, err := restored.NodeCount()
		require.NoError(t, err)
		assert.Equal(t, int64(10), n)
		e, err := restored.EdgeCount()
		require.NoError(t, err)
		assert.Equal(t, int64(1), e)

		id, err := restored.TokenID(TokenLabel, "Person")
		require.NoError(t, err)
		assert.Equal(t, person, id)

		node, err := restored.GetNode(nodes[0])
		require.NoError(t, err)
		assert.Equal(t, "alice", node.Properties[PropertyKeyID(name)])

		got, err := restored.GetEdge(edge)
		require.NoError(t, err)
		assert.Equal(t, nodes[1], got.EndNode)

		meta, err := restored.GetMeta("views/people")
		require.NoError(t, err)
		assert.Equal(t, "name: people", string(meta))
	})

	t.Run("allocation continues after restored ids", func(t *testing.T) {
		restored, err := RestoreBadgerEngineFromFile(BadgerOptions{InMemory: true}, backupPath)
		require.NoError(t, err)
		defer restored.Close()

		id, err := restored.CreateNode()
		require.NoError(t, err)
		assert.NotContains(t, nodes, id)
		assert.Greater(t, id, nodes[len(nodes)-1])

		tok, err := restored.GetOrCreateToken(TokenLabel, "Company")
		require.NoError(t, err)
		assert.NotEqual(t, person, tok)
	})

	t.Run("target must be empty", func(t *testing.T) {
		dir := t.TempDir()
		existing, err := NewBadgerEngine(dir)
		require.NoError(t, err)
		_, err = existing.CreateNode()
		require.NoError(t, err)
		require.NoError(t, existing.Close())

		_, err = RestoreBadgerEngineFromFile(BadgerOptions{DataDir: dir}, backupPath)
		assert.ErrorIs(t, err, ErrAlreadyExists)
	})

	t.Run("missing backup file", func(t *testing.T) {
		_, err := RestoreBadgerEngineFromFile(BadgerOptions{InMemory: true}, filepath.Join(t.TempDir(), "nope.bin"))
		assert.Error(t, err)
	})
}
