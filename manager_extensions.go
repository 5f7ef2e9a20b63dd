// manager_extensions.go: Extension queries on the plugin manager
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

// RegisterExtension adds an extension definition to the catalog. pluginID
// is the contributing plugin, or "" for the host.
func (m *PluginManager) RegisterExtension(pluginID string, def ExtensionDefinition) error {
	if err := m.catalog.Register(pluginID, def); err != nil {
		return err
	}
	m.extensions.invalidate()
	return nil
}

// Extensions returns the visible extensions of point: host extensions and
// those of started plugins, ordered by ordinal and then discovery order.
// While the dependency check is on, extensions whose required plugins are
// not all started are left out.
func (m *PluginManager) Extensions(point string) ([]*ExtensionRecord, error) {
	return m.extensions.extensions(m.pluginView, point, nil)
}

// PluginExtensions returns the visible extensions of point contributed by
// one plugin. A plugin that is not started contributes nothing.
func (m *PluginManager) PluginExtensions(point, pluginID string) ([]*ExtensionRecord, error) {
	if _, ok := m.Plugin(pluginID); !ok {
		return nil, NewUnknownPluginError(pluginID)
	}
	return m.extensions.extensions(m.pluginView, point, &pluginID)
}

// ExtensionDependencyCheck reports whether the required-plugins filter is
// currently applied.
func (m *PluginManager) ExtensionDependencyCheck() bool {
	return m.extensions.dependencyCheckEnabled()
}

func (m *PluginManager) pluginView() pluginView {
	m.mu.RLock()
	defer m.mu.RUnlock()
	view := pluginView{
		order:   append([]string(nil), m.order...),
		records: make(map[string]*PluginRecord, len(m.plugins)),
	}
	for id, r := range m.plugins {
		view.records[id] = r
	}
	return view
}

// ExtensionsOf returns the instances of every visible extension of the
// point named after T. Extensions whose instance cannot be created, or is
// not a T, are logged and skipped.
//
//	greeters, err := pluginhost.ExtensionsOf[api.Greeter](manager)
func ExtensionsOf[T any](m *PluginManager) ([]T, error) {
	records, err := m.Extensions(PointName[T]())
	if err != nil {
		return nil, err
	}
	return instancesOf[T](m.logger, records), nil
}

// PluginExtensionsOf is ExtensionsOf restricted to one plugin.
func PluginExtensionsOf[T any](m *PluginManager, pluginID string) ([]T, error) {
	records, err := m.PluginExtensions(PointName[T](), pluginID)
	if err != nil {
		return nil, err
	}
	return instancesOf[T](m.logger, records), nil
}

func instancesOf[T any](logger Logger, records []*ExtensionRecord) []T {
	out := make([]T, 0, len(records))
	for _, r := range records {
		instance, err := r.Instance()
		if err != nil {
			logger.Error("Failed to create extension", "extension", r.Name(), "plugin", r.PluginID(), "error", err)
			continue
		}
		typed, ok := instance.(T)
		if !ok {
			logger.Error("Extension does not implement its point", "extension", r.Name(), "point", r.Point())
			continue
		}
		out = append(out, typed)
	}
	return out
}
