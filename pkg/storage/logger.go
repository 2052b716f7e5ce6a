package storage

import (
	"encoding/json"
	"log"
	"strings"
)

// Logger receives structured diagnostics from the storage and overlay layers.
//
// This is intentionally minimal to avoid coupling storage to a specific logging library.
// Implementations should treat fields as a stable machine-readable contract.
type Logger interface {
	Log(level string, msg string, fields map[string]any)
}

// Log levels understood by NewStdLogger.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

var levelRank = map[string]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

type stdLogger struct {
	component string
	min       int
	json      bool
}

// NewStdLogger returns a Logger printing through the standard library log package.
// Messages below minLevel are dropped. format is "json" or "text".
func NewStdLogger(component, minLevel, format string) Logger {
	min, ok := levelRank[strings.ToLower(minLevel)]
	if !ok {
		min = levelRank[LevelInfo]
	}
	return &stdLogger{component: component, min: min, json: format != "text"}
}

func (l *stdLogger) Log(level string, msg string, fields map[string]any) {
	if rank, ok := levelRank[level]; ok && rank < l.min {
		return
	}
	if !l.json {
		log.Printf("[%s] level=%s msg=%s fields=%v", l.component, level, msg, fields)
		return
	}
	// Best-effort structured printing using stdlib log.
	payload := map[string]any{
		"level": level,
		"msg":   msg,
	}
	for k, v := range fields {
		payload[k] = v
	}
	b, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[%s] level=%s msg=%s fields=%v", l.component, level, msg, fields)
		return
	}
	log.Printf("[%s] %s", l.component, string(b))
}

type nopLogger struct{}

func (nopLogger) Log(string, string, map[string]any) {}

// NopLogger discards everything.
func NopLogger() Logger { return nopLogger{} }
