// manager.go: Plugin manager, registry and resolution
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"io"
	"path/filepath"
	"sync"
)

// PluginManager owns the loaded plugins and drives them through their
// lifecycle.
//
// Mutating methods (load, resolve, start, stop, disable, enable, unload,
// delete) hold the manager lock for the whole call, so they are serialized.
// Queries may run concurrently with each other. State listeners run while
// the lock is held and must not call back into the manager; the
// PluginRecord accessors are safe to use from a listener.
//
// Example usage:
//
//	loader := pluginhost.NewFactoryLoader(nil)
//	loader.RegisterFactory("greeter", newGreeter)
//
//	manager, err := pluginhost.NewPluginManager(pluginhost.DefaultManagerConfig(),
//	    pluginhost.WithIsolationLoader(loader))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer manager.Close()
//
//	if _, err := manager.LoadPlugin(&pluginhost.PluginDescriptor{ID: "greeter", Version: "1.0.0"}, ""); err != nil {
//	    log.Fatal(err)
//	}
//	manager.StartPlugins()
type PluginManager struct {
	config        ManagerConfig
	logger        Logger
	strategy      LoadingStrategy
	versions      *VersionManager
	resolver      *DependencyResolver
	loader        IsolationLoader
	statusStore   StatusStore
	repository    PluginRepository
	finder        DescriptorFinder
	catalog       *ExtensionCatalog
	discovery     DiscoverySource
	extFactory    ExtensionFactory
	extensions    *extensionRegistry
	notifier      *stateNotifier
	userListeners []PluginStateListener

	closers   []io.Closer
	closeOnce sync.Once

	mu         sync.RWMutex
	plugins    map[string]*PluginRecord
	order      []string
	unresolved []string
	resolved   []string
	started    []string
}

// Option customizes a PluginManager.
type Option func(*PluginManager)

// WithLogger sets the logger. Accepts a Logger or nil.
func WithLogger(logger any) Option {
	return func(m *PluginManager) { m.logger = NewLogger(logger) }
}

// WithIsolationLoader replaces the default FactoryLoader.
func WithIsolationLoader(loader IsolationLoader) Option {
	return func(m *PluginManager) { m.loader = loader }
}

// WithStatusStore replaces the store selected by the status configuration.
func WithStatusStore(store StatusStore) Option {
	return func(m *PluginManager) { m.statusStore = store }
}

// WithRepository replaces the DirectoryRepository rooted at plugins_root.
func WithRepository(repository PluginRepository) Option {
	return func(m *PluginManager) { m.repository = repository }
}

// WithDescriptorFinder replaces the ManifestDescriptorFinder.
func WithDescriptorFinder(finder DescriptorFinder) Option {
	return func(m *PluginManager) { m.finder = finder }
}

// WithStateListener registers a listener from construction on.
func WithStateListener(listener PluginStateListener) Option {
	return func(m *PluginManager) { m.userListeners = append(m.userListeners, listener) }
}

// WithExtensionCatalog shares a catalog the host filled beforehand.
func WithExtensionCatalog(catalog *ExtensionCatalog) Option {
	return func(m *PluginManager) { m.catalog = catalog }
}

// WithDiscoverySource replaces catalog based extension discovery.
func WithDiscoverySource(source DiscoverySource) Option {
	return func(m *PluginManager) { m.discovery = source }
}

// WithExtensionFactory replaces the extension factory selected by the
// extensions configuration.
func WithExtensionFactory(factory ExtensionFactory) Option {
	return func(m *PluginManager) { m.extFactory = factory }
}

// NewPluginManager validates config and wires the manager's collaborators.
// Collaborators not supplied as options are built from config.
func NewPluginManager(config ManagerConfig, opts ...Option) (*PluginManager, error) {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	strategy, err := ParseLoadingStrategy(config.LoadingStrategy)
	if err != nil {
		return nil, err
	}
	mode, err := ParseDependencyCheckMode(config.Extensions.DependencyCheck)
	if err != nil {
		return nil, err
	}

	m := &PluginManager{
		config:   config,
		logger:   NewNoOpLogger(),
		strategy: strategy,
		plugins:  make(map[string]*PluginRecord),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.versions = NewVersionManager(config.ExactVersionAllowed)
	m.resolver = NewDependencyResolver(m.versions)
	if m.loader == nil {
		m.loader = NewFactoryLoader(m.logger)
	}
	if m.repository == nil {
		m.repository = NewDirectoryRepository(config.PluginsRoot, m.logger)
	}
	if m.finder == nil {
		m.finder = NewManifestDescriptorFinder(config.ManifestNames...)
	}
	if m.statusStore == nil {
		if err := m.openStatusStore(); err != nil {
			return nil, err
		}
	}

	if m.catalog == nil {
		m.catalog = NewExtensionCatalog()
	}
	if m.discovery == nil && config.Extensions.IndexFile != "" {
		m.discovery = NewIndexDiscoverySource(config.Extensions.IndexFile, m.pluginSource)
	}
	if m.extFactory == nil && config.Extensions.Singleton {
		m.extFactory = NewSingletonExtensionFactory()
	}
	m.extensions = newExtensionRegistry(m.catalog, m.discovery, m.extFactory, mode, m.logger)

	listeners := []PluginStateListener{m.extensions}
	if config.Audit.Enabled {
		audit, err := NewAuditStateListener(config.Audit.OutputFile)
		if err != nil {
			m.closeCollaborators()
			return nil, err
		}
		listeners = append(listeners, audit)
		m.closers = append(m.closers, audit)
	}
	listeners = append(listeners, m.userListeners...)
	m.notifier = newStateNotifier(m.logger, listeners)

	m.logger.Debug("Plugin manager created",
		"system_version", config.SystemVersion,
		"loading_strategy", string(strategy),
		"status_backend", config.Status.Backend,
		"dependency_check", string(mode))
	return m, nil
}

func (m *PluginManager) openStatusStore() error {
	status := m.config.Status
	path := status.Path
	if path != "" && !filepath.IsAbs(path) {
		path = filepath.Join(m.config.PluginsRoot, path)
	}

	switch status.Backend {
	case StatusBackendFile:
		if path == "" {
			path = m.config.PluginsRoot
		}
		store, err := NewFileStatusStore(path, m.logger)
		if err != nil {
			return err
		}
		m.closers = append(m.closers, store)
		if status.Watch {
			interval, err := status.pollInterval()
			if err != nil {
				return err
			}
			if err := store.Watch(interval); err != nil {
				m.closeCollaborators()
				return err
			}
		}
		m.statusStore = store
	case StatusBackendBolt:
		if path == "" {
			path = filepath.Join(m.config.PluginsRoot, "plugin-status.db")
		}
		store, err := OpenBoltStatusStore(path, m.logger)
		if err != nil {
			return err
		}
		m.closers = append(m.closers, store)
		m.statusStore = store
	default:
		m.statusStore = NewMemoryStatusStore()
	}
	return nil
}

// Close stops every started plugin and closes the status store and audit
// log the manager opened. It is safe to call more than once.
func (m *PluginManager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		m.StopPlugins()
		err = m.closeCollaborators()
	})
	return err
}

func (m *PluginManager) closeCollaborators() error {
	var first error
	for i := len(m.closers) - 1; i >= 0; i-- {
		if err := m.closers[i].Close(); err != nil {
			m.logger.Error("Failed to close collaborator", "error", err)
			if first == nil {
				first = err
			}
		}
	}
	m.closers = nil
	return first
}

// SystemVersion returns the host version plugins are checked against.
func (m *PluginManager) SystemVersion() string { return m.config.SystemVersion }

// Config returns the effective configuration.
func (m *PluginManager) Config() ManagerConfig { return m.config }

// Versions returns the version engine used for dependency ranges.
func (m *PluginManager) Versions() *VersionManager { return m.versions }

// Catalog returns the extension catalog hosts and plugins register into.
func (m *PluginManager) Catalog() *ExtensionCatalog { return m.catalog }

// Loader returns the isolation loader.
func (m *PluginManager) Loader() IsolationLoader { return m.loader }

// AddStateListener registers a listener.
func (m *PluginManager) AddStateListener(listener PluginStateListener) {
	m.notifier.add(listener)
}

// RemoveStateListener unregisters a listener and reports whether it was registered.
func (m *PluginManager) RemoveStateListener(listener PluginStateListener) bool {
	return m.notifier.remove(listener)
}

// LoadPlugin registers a descriptor and runs a resolution pass. source is
// the location the plugin came from, or "" for plugins built into the host.
//
// A plugin that the status store reports as disabled, or whose requires
// range excludes the system version, is loaded Disabled. When the
// resolution pass fails the plugin stays loaded but unresolved, and both
// its id and the resolution error are returned.
func (m *PluginManager) LoadPlugin(descriptor *PluginDescriptor, source string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, err := m.registerLocked(descriptor, source)
	if err != nil {
		return "", err
	}
	return record.ID(), m.resolveLocked()
}

// LoadPluginFromPath reads the descriptor at path with the descriptor
// finder and loads it.
func (m *PluginManager) LoadPluginFromPath(path string) (string, error) {
	descriptor, err := m.finder.Find(path)
	if err != nil {
		return "", err
	}
	return m.LoadPlugin(descriptor, path)
}

// LoadPlugins loads every plugin the repository lists, then resolves once.
// Per plugin failures are logged and skipped. The ids loaded are returned
// along with the resolution error, if any.
func (m *PluginManager) LoadPlugins() ([]string, error) {
	paths, err := m.repository.PluginPaths()
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var loaded []string
	for _, path := range paths {
		descriptor, err := m.finder.Find(path)
		if err != nil {
			m.logger.Warn("Skipping plugin", "path", path, "error", err)
			continue
		}
		record, err := m.registerLocked(descriptor, path)
		if err != nil {
			m.logger.Warn("Skipping plugin", "path", path, "error", err)
			continue
		}
		loaded = append(loaded, record.ID())
	}
	m.logger.Info("Plugins loaded", "count", len(loaded), "root", m.config.PluginsRoot)

	if err := m.resolveLocked(); err != nil {
		m.logger.Error("Plugin resolution failed", "error", err)
		return loaded, err
	}
	return loaded, nil
}

// ResolvePlugins runs a resolution pass over every loaded plugin. On
// success, unresolved plugins become Resolved in dependency order; Disabled
// plugins join the resolved set but keep their state. On failure nothing
// changes.
func (m *PluginManager) ResolvePlugins() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resolveLocked()
}

// Resolution returns the raw outcome of a resolution pass over the loaded
// plugins without applying it.
func (m *PluginManager) Resolution() *ResolveResult {
	m.mu.RLock()
	descriptors := m.descriptorsLocked()
	m.mu.RUnlock()
	return NewDependencyResolver(m.versions).Resolve(descriptors)
}

func (m *PluginManager) registerLocked(descriptor *PluginDescriptor, source string) (*PluginRecord, error) {
	if descriptor == nil {
		return nil, NewInvalidDescriptorError("", "descriptor is nil")
	}
	d := descriptor.Clone()
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if source != "" {
		source = filepath.Clean(source)
	}

	if existing, ok := m.plugins[d.ID]; ok {
		return nil, NewAlreadyLoadedError(d.ID, existing.source)
	}
	if source != "" {
		for _, id := range m.order {
			if m.plugins[id].source == source {
				return nil, NewAlreadyLoadedError(id, source)
			}
		}
	}

	unit, err := m.loader.Load(d, source, m.strategy)
	if err != nil {
		return nil, NewIsolationError(d.ID, "failed to load isolation unit", err)
	}

	record := newPluginRecord(m, d, source, unit)
	switch {
	case m.statusStore.IsDisabled(d.ID):
		record.setState(StateDisabled)
		m.logger.Info("Plugin disabled by status store", "plugin", d.ID)
	case !m.isPluginValid(d):
		record.setState(StateDisabled)
		m.logger.Warn("Plugin disabled, system version not supported",
			"plugin", d.ID, "requires", d.RequiredVersionRange(), "system_version", m.config.SystemVersion)
	}

	m.plugins[d.ID] = record
	m.order = append(m.order, d.ID)
	m.unresolved = append(m.unresolved, d.ID)
	m.extensions.invalidate()

	m.logger.Info("Plugin loaded", "plugin", d.ID, "version", d.Version, "source", source, "state", record.State().String())
	return record, nil
}

// isPluginValid checks the plugin's requires range against the system
// version. System version 0.0.0 accepts every plugin.
func (m *PluginManager) isPluginValid(d *PluginDescriptor) bool {
	system := m.config.SystemVersion
	if system == "" || system == "0.0.0" || system == AnyVersion {
		return true
	}
	ok, err := m.versions.Satisfies(system, d.RequiredVersionRange())
	if err != nil {
		m.logger.Warn("Invalid requires range", "plugin", d.ID, "requires", d.Requires, "error", err)
		return false
	}
	return ok
}

func (m *PluginManager) descriptorsLocked() []*PluginDescriptor {
	out := make([]*PluginDescriptor, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.plugins[id].descriptor)
	}
	return out
}

func (m *PluginManager) resolveLocked() error {
	result := m.resolver.Resolve(m.descriptorsLocked())
	if err := result.Err(); err != nil {
		return err
	}

	pending := make(map[string]bool, len(m.unresolved))
	for _, id := range m.unresolved {
		pending[id] = true
	}
	for _, id := range result.SortedPlugins {
		if !pending[id] {
			continue
		}
		delete(pending, id)
		m.resolved = append(m.resolved, id)
		record := m.plugins[id]
		if record.State() == StateCreated {
			m.transition(record, StateResolved)
		}
		m.logger.Debug("Plugin resolved", "plugin", id, "state", record.State().String())
	}

	m.unresolved = m.unresolved[:0]
	for _, id := range m.order {
		if pending[id] {
			m.unresolved = append(m.unresolved, id)
		}
	}
	return nil
}

// transition moves record to state and notifies listeners. Redundant
// transitions are silent.
func (m *PluginManager) transition(record *PluginRecord, state PluginState) {
	old := record.State()
	if old == state {
		return
	}
	record.setState(state)
	m.notifier.notify(newPluginStateEvent(record, old))
}

func (m *PluginManager) recordLocked(pluginID string) (*PluginRecord, error) {
	record, ok := m.plugins[pluginID]
	if !ok {
		return nil, NewUnknownPluginError(pluginID)
	}
	return record, nil
}

// Plugins returns every loaded plugin in load order.
func (m *PluginManager) Plugins() []*PluginRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.recordsLocked(m.order)
}

// Plugin returns one loaded plugin.
func (m *PluginManager) Plugin(pluginID string) (*PluginRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.plugins[pluginID]
	return record, ok
}

// PluginsByState returns the loaded plugins currently in state, in load order.
func (m *PluginManager) PluginsByState(state PluginState) []*PluginRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*PluginRecord
	for _, id := range m.order {
		if r := m.plugins[id]; r.State() == state {
			out = append(out, r)
		}
	}
	return out
}

// ResolvedPlugins returns the resolved set in resolution order.
func (m *PluginManager) ResolvedPlugins() []*PluginRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.recordsLocked(m.resolved)
}

// UnresolvedPlugins returns the plugins the last resolution pass did not accept.
func (m *PluginManager) UnresolvedPlugins() []*PluginRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.recordsLocked(m.unresolved)
}

// StartedPlugins returns the started plugins in start order.
func (m *PluginManager) StartedPlugins() []*PluginRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.recordsLocked(m.started)
}

func (m *PluginManager) recordsLocked(ids []string) []*PluginRecord {
	out := make([]*PluginRecord, 0, len(ids))
	for _, id := range ids {
		if r, ok := m.plugins[id]; ok {
			out = append(out, r)
		}
	}
	return out
}

// Dependencies returns the required dependencies of pluginID as of the last
// resolution pass.
func (m *PluginManager) Dependencies(pluginID string) ([]string, error) {
	return m.resolver.Dependencies(pluginID)
}

// Dependents returns the plugins that require pluginID as of the last
// resolution pass.
func (m *PluginManager) Dependents(pluginID string) ([]string, error) {
	return m.resolver.Dependents(pluginID)
}

func (m *PluginManager) pluginSource(pluginID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.plugins[pluginID]
	if !ok {
		return "", false
	}
	return r.source, true
}

func removeID(ids []string, id string) []string {
	if i := indexID(ids, id); i >= 0 {
		return append(ids[:i:i], ids[i+1:]...)
	}
	return ids
}
