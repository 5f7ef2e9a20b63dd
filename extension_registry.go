// extension_registry.go: Cached, state aware extension lookup
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"sort"
	"sync"
	"sync/atomic"
)

// extensionIndex is one discovery pass: extension records per owner, host
// ("") first and plugins in load order.
type extensionIndex struct {
	owners  []string
	byOwner map[string][]*ExtensionRecord
}

// pluginView is the part of the manager state a lookup needs: loaded
// records in load order.
type pluginView struct {
	order   []string
	records map[string]*PluginRecord
}

func (v pluginView) started(id string) bool {
	r, ok := v.records[id]
	return ok && r.State() == StateStarted
}

// cachedIndex pairs an index with the generation it was built in.
type cachedIndex struct {
	generation uint64
	index      *extensionIndex
}

// extensionRegistry caches discovery results and drops the whole cache on
// every plugin state change. A cached index is only served while its
// generation is current.
type extensionRegistry struct {
	catalog *ExtensionCatalog
	source  DiscoverySource
	factory ExtensionFactory
	mode    DependencyCheckMode
	logger  Logger

	checkDependencies atomic.Bool
	generation        atomic.Uint64
	cache             atomic.Pointer[cachedIndex]
	buildMu           sync.Mutex
}

func newExtensionRegistry(catalog *ExtensionCatalog, source DiscoverySource, factory ExtensionFactory, mode DependencyCheckMode, logger Logger) *extensionRegistry {
	if source == nil {
		source = catalog
	}
	if factory == nil {
		factory = DefaultExtensionFactory{}
	}
	r := &extensionRegistry{
		catalog: catalog,
		source:  source,
		factory: factory,
		mode:    mode,
		logger:  logger,
	}
	r.checkDependencies.Store(mode == DependencyCheckAlways)
	return r
}

// PluginStateChanged drops the cache and tracks the dependency check mode.
func (r *extensionRegistry) PluginStateChanged(event PluginStateEvent) {
	r.invalidate()

	if r.mode == DependencyCheckAuto && event.State == StateStarted && event.Plugin != nil &&
		event.Plugin.descriptor.HasOptionalDependency() && !r.checkDependencies.Load() {
		r.checkDependencies.Store(true)
		r.logger.Debug("Extension dependency check enabled", "plugin", event.PluginID)
	}

	if event.OldState == StateStarted && event.State != StateStarted {
		if singleton, ok := r.factory.(*SingletonExtensionFactory); ok {
			if n := singleton.Evict(event.PluginID); n > 0 {
				r.logger.Debug("Evicted extension instances", "plugin", event.PluginID, "count", n)
			}
		}
	}
}

func (r *extensionRegistry) invalidate() {
	r.generation.Add(1)
	r.cache.Store(nil)
}

func (r *extensionRegistry) current() *extensionIndex {
	c := r.cache.Load()
	if c == nil || c.generation != r.generation.Load() {
		return nil
	}
	return c.index
}

func (r *extensionRegistry) dependencyCheckEnabled() bool {
	return r.checkDependencies.Load()
}

// index returns the current index, building it when the cache is empty or
// stale. The generation is read before the plugin view is taken, so a build
// that races with an invalidation is never served from the cache.
func (r *extensionRegistry) index(viewOf func() pluginView) (*extensionIndex, error) {
	if idx := r.current(); idx != nil {
		return idx, nil
	}

	r.buildMu.Lock()
	defer r.buildMu.Unlock()
	if idx := r.current(); idx != nil {
		return idx, nil
	}

	generation := r.generation.Load()
	view := viewOf()
	idx := &extensionIndex{byOwner: make(map[string][]*ExtensionRecord)}

	hostNames, err := r.source.HostCandidates()
	if err != nil {
		return nil, NewDiscoveryError("failed to list host extensions", err)
	}
	idx.owners = append(idx.owners, "")
	idx.byOwner[""] = r.records("", hostNames)

	for _, id := range view.order {
		names, err := r.source.PluginCandidates(id)
		if err != nil {
			r.logger.Error("Failed to list plugin extensions", "plugin", id, "error", err)
			continue
		}
		idx.owners = append(idx.owners, id)
		idx.byOwner[id] = r.records(id, names)
	}

	r.cache.Store(&cachedIndex{generation: generation, index: idx})
	return idx, nil
}

func (r *extensionRegistry) records(owner string, names []string) []*ExtensionRecord {
	out := make([]*ExtensionRecord, 0, len(names))
	for _, name := range names {
		def, _, ok := r.catalog.Definition(name)
		if !ok {
			r.logger.Warn("Unknown extension candidate", "extension", name, "plugin", owner)
			continue
		}
		out = append(out, newExtensionRecord(owner, def, r.factory))
	}
	return out
}

// extensions returns the visible extensions of point, ordered by ordinal
// with ties kept in discovery order. onlyOwner restricts the result to one
// plugin when set.
func (r *extensionRegistry) extensions(viewOf func() pluginView, point string, onlyOwner *string) ([]*ExtensionRecord, error) {
	idx, err := r.index(viewOf)
	if err != nil {
		return nil, err
	}

	view := viewOf()
	check := r.dependencyCheckEnabled()
	var out []*ExtensionRecord
	for _, owner := range idx.owners {
		if onlyOwner != nil && owner != *onlyOwner {
			continue
		}
		if owner != "" && !view.started(owner) {
			continue
		}
		for _, ext := range idx.byOwner[owner] {
			if ext.Point() != point {
				continue
			}
			if check && !r.requiredStarted(view, ext) {
				continue
			}
			out = append(out, ext)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Ordinal() < out[j].Ordinal()
	})
	return out, nil
}

func (r *extensionRegistry) requiredStarted(view pluginView, ext *ExtensionRecord) bool {
	for _, id := range ext.definition.Plugins {
		if !view.started(id) {
			r.logger.Debug("Extension skipped, required plugin not started",
				"extension", ext.Name(), "required", id)
			return false
		}
	}
	return true
}
