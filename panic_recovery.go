// panic_recovery.go: Panic recovery for listener and plugin callbacks
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"fmt"
	"runtime"

	"github.com/agilira/go-errors"
)

const panicStackSize = 64 << 10

// withStackRecover returns a function to defer that logs a recovered panic
// with its stack trace. Extra key/value pairs are added to the entry.
//
//	func() {
//	    defer withStackRecover(logger, "listener", i)()
//	    listener.PluginStateChanged(event)
//	}()
func withStackRecover(logger Logger, args ...any) func() {
	return func() {
		if r := recover(); r != nil {
			buf := make([]byte, panicStackSize)
			n := runtime.Stack(buf, false)

			fields := append([]any{"panic", r, "stack", string(buf[:n])}, args...)
			logger.Error("Panic recovered in callback", fields...)
		}
	}
}

// callGuarded runs a plugin hook and turns a panic into an error, so a
// misbehaving plugin surfaces as an activation fault instead of crashing
// the host.
func callGuarded(hook func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, panicStackSize)
			n := runtime.Stack(buf, false)
			err = errors.New(ErrCodeActivationFault, fmt.Sprintf("plugin panicked: %v", r)).
				WithContext("stack", string(buf[:n])).
				WithSeverity("critical")
		}
	}()
	return hook()
}
