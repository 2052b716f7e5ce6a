package storage

import (
	"bytes"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prevOut, prevFlags := log.Writer(), log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	t.Cleanup(func() {
		log.SetOutput(prevOut)
		log.SetFlags(prevFlags)
	})
	return &buf
}

func TestStdLogger(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		buf := captureLog(t)
		logger := NewStdLogger("overlay", LevelInfo, "json")

		logger.Log(LevelDebug, "dropped", nil)
		assert.Empty(t, buf.String())

		logger.Log(LevelInfo, "scope created", map[string]any{"scope": "abc"})
		assert.Equal(t, `[overlay] {"level":"info","msg":"scope created","scope":"abc"}`+"\n", buf.String())
	})

	t.Run("text", func(t *testing.T) {
		buf := captureLog(t)
		logger := NewStdLogger("overlay", LevelDebug, "text")
		logger.Log(LevelDebug, "hello", map[string]any{"n": 1})
		assert.Equal(t, "[overlay] level=debug msg=hello fields=map[n:1]\n", buf.String())
	})

	t.Run("unknown level defaults to info", func(t *testing.T) {
		buf := captureLog(t)
		logger := NewStdLogger("overlay", "chatty", "json")
		logger.Log(LevelDebug, "dropped", nil)
		logger.Log(LevelWarn, "kept", nil)
		assert.Contains(t, buf.String(), `"msg":"kept"`)
		assert.NotContains(t, buf.String(), "dropped")
	})

	t.Run("nop", func(t *testing.T) {
		buf := captureLog(t)
		NopLogger().Log(LevelError, "nothing", nil)
		assert.Empty(t, buf.String())
	})
}
