// extension.go: Extension definitions, records and factories
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"reflect"
	"strings"
	"sync"
)

// ExtensionDefinition describes one implementation of an extension point.
type ExtensionDefinition struct {
	// Name identifies the implementation. It is the candidate name returned
	// by discovery sources and must be unique across the catalog.
	Name string

	// Point names the capability the implementation provides. Use
	// PointName[T]() for interface based points.
	Point string

	// Ordinal orders implementations of the same point, lowest first.
	Ordinal int

	// Plugins must all be started for the extension to be visible while
	// the dependency check is on. Used by extensions that rely on an
	// optional plugin dependency.
	Plugins []string

	// Factory creates the extension instance.
	Factory func() (any, error)
}

// ExtensionRecord is one discovered extension. The instance is created on
// first use.
type ExtensionRecord struct {
	definition ExtensionDefinition
	owner      string
	factory    ExtensionFactory

	once     sync.Once
	instance any
	err      error
}

func newExtensionRecord(owner string, def ExtensionDefinition, factory ExtensionFactory) *ExtensionRecord {
	return &ExtensionRecord{definition: def, owner: owner, factory: factory}
}

func (e *ExtensionRecord) Name() string  { return e.definition.Name }
func (e *ExtensionRecord) Point() string { return e.definition.Point }
func (e *ExtensionRecord) Ordinal() int  { return e.definition.Ordinal }

// PluginID returns the contributing plugin, or "" for host extensions.
func (e *ExtensionRecord) PluginID() string { return e.owner }

// RequiredPlugins returns the plugins that gate the extension's visibility.
func (e *ExtensionRecord) RequiredPlugins() []string {
	return append([]string(nil), e.definition.Plugins...)
}

// Instance returns the extension instance, creating it through the factory
// on first call. A creation error is returned on every later call too.
func (e *ExtensionRecord) Instance() (any, error) {
	e.once.Do(func() {
		e.instance, e.err = e.factory.Create(e.owner, e.definition)
	})
	return e.instance, e.err
}

// ExtensionFactory creates extension instances.
type ExtensionFactory interface {
	Create(owner string, def ExtensionDefinition) (any, error)
}

// DefaultExtensionFactory creates a fresh instance per extension record.
type DefaultExtensionFactory struct{}

func (DefaultExtensionFactory) Create(owner string, def ExtensionDefinition) (any, error) {
	return createExtension(def)
}

func createExtension(def ExtensionDefinition) (instance any, err error) {
	if def.Factory == nil {
		return nil, NewExtensionError(def.Name, "extension has no factory", nil)
	}
	err = callGuarded(func() error {
		var ferr error
		instance, ferr = def.Factory()
		return ferr
	})
	if err != nil {
		return nil, NewExtensionError(def.Name, "failed to create extension", err)
	}
	if instance == nil {
		return nil, NewExtensionError(def.Name, "factory returned nil", nil)
	}
	return instance, nil
}

// SingletonExtensionFactory shares one instance per extension name. The
// instances of a plugin are evicted when it leaves the started state.
type SingletonExtensionFactory struct {
	mu        sync.Mutex
	instances map[string]any
	owners    map[string][]string
}

// NewSingletonExtensionFactory creates an empty singleton factory.
func NewSingletonExtensionFactory() *SingletonExtensionFactory {
	return &SingletonExtensionFactory{
		instances: make(map[string]any),
		owners:    make(map[string][]string),
	}
}

func (f *SingletonExtensionFactory) Create(owner string, def ExtensionDefinition) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if instance, ok := f.instances[def.Name]; ok {
		return instance, nil
	}
	instance, err := createExtension(def)
	if err != nil {
		return nil, err
	}
	f.instances[def.Name] = instance
	f.owners[owner] = append(f.owners[owner], def.Name)
	return instance, nil
}

// Evict drops every cached instance contributed by owner.
func (f *SingletonExtensionFactory) Evict(owner string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := f.owners[owner]
	for _, name := range names {
		delete(f.instances, name)
	}
	delete(f.owners, owner)
	return len(names)
}

// Cached reports how many instances are held.
func (f *SingletonExtensionFactory) Cached() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.instances)
}

// DependencyCheckMode controls the required-plugins filter.
type DependencyCheckMode string

const (
	// DependencyCheckAuto turns the check on once a started plugin declares
	// an optional dependency.
	DependencyCheckAuto   DependencyCheckMode = "auto"
	DependencyCheckAlways DependencyCheckMode = "always"
	DependencyCheckNever  DependencyCheckMode = "never"
)

// ParseDependencyCheckMode parses a mode; empty means auto.
func ParseDependencyCheckMode(s string) (DependencyCheckMode, error) {
	switch mode := DependencyCheckMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case "":
		return DependencyCheckAuto, nil
	case DependencyCheckAuto, DependencyCheckAlways, DependencyCheckNever:
		return mode, nil
	default:
		return "", NewConfigValidationError("invalid extensions.dependency_check " + s + " (want auto, always or never)")
	}
}

// PointName returns the extension point name for T: the package path and
// type name, e.g. "example.com/app/api.Greeter".
func PointName[T any]() string {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if t.Name() == "" || t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}
