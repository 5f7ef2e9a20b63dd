// plugin_record.go: Runtime wrapper around a loaded plugin
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"sync"
	"sync/atomic"
)

// PluginRecord is a loaded plugin: its descriptor, its lifecycle state, the
// isolation unit holding its code and, once started, its entry point.
//
// Accessors are safe to call from state listeners; they never take the
// manager lock.
type PluginRecord struct {
	descriptor *PluginDescriptor
	source     string
	manager    *PluginManager
	unit       IsolationUnit

	state atomic.Int32

	mu       sync.Mutex
	failure  error
	instance Plugin
}

func newPluginRecord(manager *PluginManager, descriptor *PluginDescriptor, source string, unit IsolationUnit) *PluginRecord {
	r := &PluginRecord{
		descriptor: descriptor,
		source:     source,
		manager:    manager,
		unit:       unit,
	}
	r.state.Store(int32(StateCreated))
	return r
}

// ID returns the plugin id.
func (r *PluginRecord) ID() string { return r.descriptor.ID }

// Version returns the plugin version string.
func (r *PluginRecord) Version() string { return r.descriptor.Version }

// Descriptor returns a copy of the plugin descriptor.
func (r *PluginRecord) Descriptor() *PluginDescriptor { return r.descriptor.Clone() }

// Source returns the location the plugin was loaded from, if any.
func (r *PluginRecord) Source() string { return r.source }

// Manager returns the owning manager.
func (r *PluginRecord) Manager() *PluginManager { return r.manager }

// Unit returns the isolation unit holding the plugin code.
func (r *PluginRecord) Unit() IsolationUnit { return r.unit }

// State returns the current lifecycle state.
func (r *PluginRecord) State() PluginState { return PluginState(r.state.Load()) }

func (r *PluginRecord) setState(s PluginState) { r.state.Store(int32(s)) }

// FailureCause returns the last start or stop fault, or nil.
func (r *PluginRecord) FailureCause() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failure
}

func (r *PluginRecord) setFailure(err error) {
	r.mu.Lock()
	r.failure = err
	r.mu.Unlock()
}

// Plugin returns the plugin entry point, instantiating it through the
// isolation unit on first use.
func (r *PluginRecord) Plugin() (Plugin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.instance != nil {
		return r.instance, nil
	}
	if r.State() == StateUnloaded {
		return nil, NewIsolationError(r.ID(), "plugin is unloaded", nil)
	}
	if r.unit == nil {
		return nil, NewIsolationError(r.ID(), "plugin has no isolation unit", nil)
	}
	instance, err := r.unit.Instantiate()
	if err != nil {
		return nil, err
	}
	r.instance = instance
	return instance, nil
}

// loadedInstance returns the entry point only if it was already created.
func (r *PluginRecord) loadedInstance() Plugin {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.instance
}

func (r *PluginRecord) String() string {
	return r.descriptor.ID + "@" + r.descriptor.Version + " (" + r.State().String() + ")"
}
