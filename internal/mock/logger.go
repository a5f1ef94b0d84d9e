// Package mock provides hand-written test doubles for the bridge's core
// interfaces: broker session, cache, store, publisher and logger.
package mock

import (
	"fmt"
	"strings"
	"sync"

	"tqbridge/internal/core"
)

// Logger records log lines for assertions and discards nothing.
type Logger struct {
	mu    sync.Mutex
	lines []string
}

// NewLogger returns an empty recording logger.
func NewLogger() *Logger {
	return &Logger{}
}

func (l *Logger) record(level, msg string, fields []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	line := level + " " + msg
	for i := 0; i+1 < len(fields); i += 2 {
		line += fmt.Sprintf(" %v=%v", fields[i], fields[i+1])
	}
	l.lines = append(l.lines, line)
}

func (l *Logger) Debug(msg string, fields ...interface{}) { l.record("DEBUG", msg, fields) }
func (l *Logger) Info(msg string, fields ...interface{})  { l.record("INFO", msg, fields) }
func (l *Logger) Warn(msg string, fields ...interface{})  { l.record("WARN", msg, fields) }
func (l *Logger) Error(msg string, fields ...interface{}) { l.record("ERROR", msg, fields) }
func (l *Logger) Fatal(msg string, fields ...interface{}) { l.record("FATAL", msg, fields) }

func (l *Logger) WithField(key string, value interface{}) core.ILogger { return l }

func (l *Logger) WithFields(fields map[string]interface{}) core.ILogger { return l }

// Lines returns a copy of everything logged so far.
func (l *Logger) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.lines))
	copy(out, l.lines)
	return out
}

// CountLevel returns how many lines were logged at the given level.
func (l *Logger) CountLevel(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, line := range l.lines {
		if strings.HasPrefix(line, level) {
			n++
		}
	}
	return n
}

// Contains reports whether any logged line contains substr.
func (l *Logger) Contains(substr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range l.lines {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}
