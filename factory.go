// factory.go: In-process isolation loader backed by registered factories
//
// FactoryLoader is the default IsolationLoader. Plugins compiled into the
// host register a PluginFactory under their entry point; loading a plugin
// produces a unit that resolves the factory following the configured
// LoadingStrategy.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"sync"
	"sync/atomic"
)

// FactoryLoader resolves plugin entry points from three registries that
// mirror the LoadSource values:
//   - application factories, registered by the host for an entry point
//   - plugin factories, registered for a specific plugin id
//   - dependency factories, i.e. plugin factories registered for one of the
//     plugin's declared dependencies
type FactoryLoader struct {
	logger Logger

	mu          sync.RWMutex
	application map[string]PluginFactory
	plugins     map[string]map[string]PluginFactory
	units       map[*factoryUnit]struct{}
}

// NewFactoryLoader creates an empty factory loader.
func NewFactoryLoader(logger any) *FactoryLoader {
	return &FactoryLoader{
		logger:      NewLogger(logger),
		application: make(map[string]PluginFactory),
		plugins:     make(map[string]map[string]PluginFactory),
		units:       make(map[*factoryUnit]struct{}),
	}
}

// RegisterFactory registers a host supplied factory for an entry point.
func (fl *FactoryLoader) RegisterFactory(entryPoint string, factory PluginFactory) error {
	if entryPoint == "" {
		return NewConfigValidationError("entry point cannot be empty")
	}
	if factory == nil {
		return NewConfigValidationError("factory function cannot be nil")
	}

	fl.mu.Lock()
	defer fl.mu.Unlock()
	fl.application[entryPoint] = factory
	fl.logger.Debug("Application factory registered", "entry_point", entryPoint)
	return nil
}

// RegisterPluginFactory registers a factory owned by pluginID.
func (fl *FactoryLoader) RegisterPluginFactory(pluginID, entryPoint string, factory PluginFactory) error {
	if pluginID == "" || entryPoint == "" {
		return NewConfigValidationError("plugin id and entry point cannot be empty")
	}
	if factory == nil {
		return NewConfigValidationError("factory function cannot be nil")
	}

	fl.mu.Lock()
	defer fl.mu.Unlock()
	scoped, ok := fl.plugins[pluginID]
	if !ok {
		scoped = make(map[string]PluginFactory)
		fl.plugins[pluginID] = scoped
	}
	scoped[entryPoint] = factory
	fl.logger.Debug("Plugin factory registered", "plugin", pluginID, "entry_point", entryPoint)
	return nil
}

// Load creates a unit for descriptor. Factory lookup is deferred to
// Instantiate, so a plugin can be loaded and resolved before its code is
// available.
func (fl *FactoryLoader) Load(descriptor *PluginDescriptor, source string, strategy LoadingStrategy) (IsolationUnit, error) {
	if descriptor == nil {
		return nil, NewIsolationError("", "nil descriptor", nil)
	}
	if !strategy.Valid() {
		strategy = DefaultLoadingStrategy
	}
	unit := &factoryUnit{
		loader:     fl,
		descriptor: descriptor.Clone(),
		source:     source,
		strategy:   strategy,
	}

	fl.mu.Lock()
	fl.units[unit] = struct{}{}
	fl.mu.Unlock()
	return unit, nil
}

// Release invalidates a unit produced by this loader.
func (fl *FactoryLoader) Release(unit IsolationUnit) error {
	fu, ok := unit.(*factoryUnit)
	if !ok || fu.loader != fl {
		return NewIsolationError(unitPluginID(unit), "unit was not created by this loader", nil)
	}
	if !fu.released.CompareAndSwap(false, true) {
		return NewIsolationError(fu.descriptor.ID, "unit already released", nil)
	}

	fl.mu.Lock()
	delete(fl.units, fu)
	fl.mu.Unlock()
	return nil
}

// ActiveUnits returns how many units are loaded and not yet released.
func (fl *FactoryLoader) ActiveUnits() int {
	fl.mu.RLock()
	defer fl.mu.RUnlock()
	return len(fl.units)
}

func (fl *FactoryLoader) lookup(descriptor *PluginDescriptor, strategy LoadingStrategy) (PluginFactory, LoadSource, bool) {
	entryPoint := descriptor.EntryPoint()

	fl.mu.RLock()
	defer fl.mu.RUnlock()
	for _, src := range strategy.Sources() {
		switch src {
		case SourcePlugin:
			if f, ok := fl.plugins[descriptor.ID][entryPoint]; ok {
				return f, src, true
			}
		case SourceApplication:
			if f, ok := fl.application[entryPoint]; ok {
				return f, src, true
			}
		case SourceDependencies:
			for _, dep := range descriptor.Dependencies {
				if f, ok := fl.plugins[dep.PluginID][entryPoint]; ok {
					return f, src, true
				}
			}
		}
	}
	return nil, 0, false
}

type factoryUnit struct {
	loader     *FactoryLoader
	descriptor *PluginDescriptor
	source     string
	strategy   LoadingStrategy
	released   atomic.Bool
}

func (u *factoryUnit) PluginID() string { return u.descriptor.ID }

func (u *factoryUnit) Instantiate() (Plugin, error) {
	if u.released.Load() {
		return nil, NewIsolationError(u.descriptor.ID, "unit already released", nil)
	}
	factory, src, ok := u.loader.lookup(u.descriptor, u.strategy)
	if !ok {
		return nil, NewIsolationError(u.descriptor.ID, "no factory for entry point "+u.descriptor.EntryPoint(), nil)
	}
	u.loader.logger.Debug("Instantiating plugin",
		"plugin", u.descriptor.ID,
		"entry_point", u.descriptor.EntryPoint(),
		"source", src.String())

	plugin, err := factory(u.descriptor.Clone())
	if err != nil {
		return nil, NewIsolationError(u.descriptor.ID, "factory failed", err)
	}
	if plugin == nil {
		return nil, NewIsolationError(u.descriptor.ID, "factory returned nil plugin", nil)
	}
	return plugin, nil
}

func unitPluginID(unit IsolationUnit) string {
	if unit == nil {
		return ""
	}
	return unit.PluginID()
}
