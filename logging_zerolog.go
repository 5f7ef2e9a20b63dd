// logging_zerolog.go: zerolog adapter for the Logger interface
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// ZerologAdapter adapts a zerolog.Logger to the Logger interface.
type ZerologAdapter struct {
	zl zerolog.Logger
}

// NewZerologAdapter wraps an existing zerolog logger.
func NewZerologAdapter(zl zerolog.Logger) *ZerologAdapter {
	return &ZerologAdapter{zl: zl}
}

// NewConsoleLogger builds a zerolog-backed Logger writing to w at the given level.
// If w is nil, output goes to stderr in human readable console form.
func NewConsoleLogger(w io.Writer, level string) *ZerologAdapter {
	if w == nil {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	zl := zerolog.New(w).With().Timestamp().Logger().Level(ParseLogLevel(level))
	return &ZerologAdapter{zl: zl}
}

func (z *ZerologAdapter) Debug(msg string, args ...any) { z.emit(z.zl.Debug(), msg, args) }
func (z *ZerologAdapter) Info(msg string, args ...any)  { z.emit(z.zl.Info(), msg, args) }
func (z *ZerologAdapter) Warn(msg string, args ...any)  { z.emit(z.zl.Warn(), msg, args) }
func (z *ZerologAdapter) Error(msg string, args ...any) { z.emit(z.zl.Error(), msg, args) }

// With returns a child adapter carrying the given key/value pairs.
func (z *ZerologAdapter) With(args ...any) Logger {
	ctx := z.zl.With()
	for i := 0; i < len(args); i += 2 {
		key, val := pairAt(args, i)
		ctx = ctx.Interface(key, val)
	}
	return &ZerologAdapter{zl: ctx.Logger()}
}

// Zerolog returns the underlying zerolog.Logger.
func (z *ZerologAdapter) Zerolog() zerolog.Logger {
	return z.zl
}

func (z *ZerologAdapter) emit(event *zerolog.Event, msg string, args []any) {
	if event == nil {
		return
	}
	for i := 0; i < len(args); i += 2 {
		key, val := pairAt(args, i)
		if err, ok := val.(error); ok {
			event = event.AnErr(key, err)
			continue
		}
		event = event.Interface(key, val)
	}
	event.Msg(msg)
}

// pairAt returns the key/value pair starting at i; a dangling value gets a
// positional key.
func pairAt(args []any, i int) (string, any) {
	if i+1 >= len(args) {
		return fmt.Sprintf("arg%d", i), args[i]
	}
	key, ok := args[i].(string)
	if !ok {
		key = fmt.Sprint(args[i])
	}
	return key, args[i+1]
}

// ParseLogLevel maps a level name to a zerolog level, defaulting to info.
func ParseLogLevel(s string) zerolog.Level {
	switch s {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "silent":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}
