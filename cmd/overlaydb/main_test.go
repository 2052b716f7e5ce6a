package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "OverlayDB v"+version)
}

func TestInitStatsAndViews(t *testing.T) {
	t.Setenv("OVERLAYDB_LOG_LEVEL", "error")
	dir := filepath.Join(t.TempDir(), "db")
	cfgPath := filepath.Join(dir, "overlaydb.yaml")

	out, err := run(t, "init", "--data-dir", dir, "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "initialized")
	assert.FileExists(t, cfgPath)

	out, err = run(t, "views", "define", "people", "--labels", "Person", "--types", "KNOWS", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "View people defined")

	_, err = run(t, "views", "define", "people", "--labels", "Person", "--config", cfgPath)
	assert.Error(t, err, "duplicate view")

	out, err = run(t, "views", "list", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "people\tlabels=Person\ttypes=KNOWS")

	out, err = run(t, "stats", "--json", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, `"views": [`)
	assert.Contains(t, out, `"people"`)

	_, err = run(t, "views", "drop", "people", "--config", cfgPath)
	require.NoError(t, err)
	out, err = run(t, "views", "list", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "No views defined")
}

func TestDemo(t *testing.T) {
	t.Setenv("OVERLAYDB_LOG_LEVEL", "error")
	out, err := run(t, "demo", "--config", filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "tx1: 2 :Person nodes, Alice has 2 relationships, sees Ghost: true")
	assert.Contains(t, out, "tx2: 1 :Person nodes, Alice has 0 relationships, sees Ghost: false")
	assert.Contains(t, out, "after tx1 closes: 1 real nodes, 0 real relationships, 1 open transactions")
}

func TestBackupRestore(t *testing.T) {
	t.Setenv("OVERLAYDB_LOG_LEVEL", "error")
	noConfig := filepath.Join(t.TempDir(), "none.yaml")
	src := filepath.Join(t.TempDir(), "src")
	dst := filepath.Join(t.TempDir(), "dst")
	backup := filepath.Join(t.TempDir(), "backup.bin")

	_, err := run(t, "views", "define", "people", "--labels", "Person", "--data-dir", src, "--config", noConfig)
	require.NoError(t, err)

	out, err := run(t, "backup", backup, "--data-dir", src, "--config", noConfig)
	require.NoError(t, err)
	assert.Contains(t, out, "Backup written")

	out, err = run(t, "restore", backup, "--data-dir", dst, "--config", noConfig)
	require.NoError(t, err)
	assert.Contains(t, out, "Restored 0 nodes, 0 relationships, 1 views")

	_, err = run(t, "restore", backup, "--data-dir", dst, "--config", noConfig)
	assert.Error(t, err, "restore target must be empty")
}
