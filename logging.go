// logging.go: Pluggable logging interface for the plugin host
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"sync"
)

// Logger is the logging interface used throughout the plugin host.
//
// Arguments after the message are alternating key/value pairs:
//
//	logger.Warn("Plugin start failed", "plugin", id, "error", err)
//
// A zerolog-backed implementation is provided by NewZerologAdapter; any
// other framework can be plugged in by implementing these five methods.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	// With returns a logger that adds the given key/value pairs to every entry.
	With(args ...any) Logger
}

// NewLogger normalizes a user supplied logger.
//
// Supported types:
//   - Logger interface: used directly
//   - nil: NoOpLogger
//   - anything else: panic with a descriptive message
func NewLogger(logger any) Logger {
	switch l := logger.(type) {
	case Logger:
		return l
	case nil:
		return NewNoOpLogger()
	default:
		panic("unsupported logger type: expected pluginhost.Logger or nil")
	}
}

// NoOpLogger discards every entry.
type NoOpLogger struct{}

// NewNoOpLogger creates a new no-operation logger.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (n *NoOpLogger) Debug(msg string, args ...any) {}
func (n *NoOpLogger) Info(msg string, args ...any)  {}
func (n *NoOpLogger) Warn(msg string, args ...any)  {}
func (n *NoOpLogger) Error(msg string, args ...any) {}

// With returns the same instance since it's stateless.
func (n *NoOpLogger) With(args ...any) Logger {
	return n
}

// TestLogger captures log entries in memory so tests can assert on them.
// Loggers derived through With share the parent's buffer.
type TestLogger struct {
	shared *testLogBuffer
	fields []any
}

// TestLogMessage represents a captured log message for testing.
type TestLogMessage struct {
	Level   string
	Message string
	Args    []any
}

type testLogBuffer struct {
	mu       sync.Mutex
	messages []TestLogMessage
}

// NewTestLogger creates a new test logger.
func NewTestLogger() *TestLogger {
	return &TestLogger{shared: &testLogBuffer{}}
}

func (t *TestLogger) record(level, msg string, args []any) {
	all := make([]any, 0, len(t.fields)+len(args))
	all = append(all, t.fields...)
	all = append(all, args...)

	t.shared.mu.Lock()
	defer t.shared.mu.Unlock()
	t.shared.messages = append(t.shared.messages, TestLogMessage{Level: level, Message: msg, Args: all})
}

func (t *TestLogger) Debug(msg string, args ...any) { t.record("DEBUG", msg, args) }
func (t *TestLogger) Info(msg string, args ...any)  { t.record("INFO", msg, args) }
func (t *TestLogger) Warn(msg string, args ...any)  { t.record("WARN", msg, args) }
func (t *TestLogger) Error(msg string, args ...any) { t.record("ERROR", msg, args) }

// With returns a child logger writing to the same buffer.
func (t *TestLogger) With(args ...any) Logger {
	fields := make([]any, 0, len(t.fields)+len(args))
	fields = append(fields, t.fields...)
	fields = append(fields, args...)
	return &TestLogger{shared: t.shared, fields: fields}
}

// Messages returns a snapshot of every captured entry.
func (t *TestLogger) Messages() []TestLogMessage {
	t.shared.mu.Lock()
	defer t.shared.mu.Unlock()
	out := make([]TestLogMessage, len(t.shared.messages))
	copy(out, t.shared.messages)
	return out
}

// HasMessage checks if the logger captured a message at the given level.
func (t *TestLogger) HasMessage(level, message string) bool {
	for _, msg := range t.Messages() {
		if msg.Level == level && msg.Message == message {
			return true
		}
	}
	return false
}

// Clear removes all captured messages.
func (t *TestLogger) Clear() {
	t.shared.mu.Lock()
	defer t.shared.mu.Unlock()
	t.shared.messages = t.shared.messages[:0]
}

// DefaultLogger returns the logger used when none is configured.
func DefaultLogger() Logger {
	return NewNoOpLogger()
}
