// extension_catalog.go: Extension catalog and discovery sources
//
// The catalog maps candidate names to definitions. A DiscoverySource
// decides which candidate names the host and each plugin contribute; by
// default the catalog itself is the discovery source.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"os"
	"path/filepath"
	"sync"
)

// DiscoverySource lists candidate extension names.
type DiscoverySource interface {
	HostCandidates() ([]string, error)
	PluginCandidates(pluginID string) ([]string, error)
}

// ExtensionCatalog holds every known extension definition.
type ExtensionCatalog struct {
	mu          sync.RWMutex
	definitions map[string]ExtensionDefinition
	owners      map[string]string
	host        []string
	plugins     map[string][]string
}

// NewExtensionCatalog creates an empty catalog.
func NewExtensionCatalog() *ExtensionCatalog {
	return &ExtensionCatalog{
		definitions: make(map[string]ExtensionDefinition),
		owners:      make(map[string]string),
		plugins:     make(map[string][]string),
	}
}

// Register adds a definition contributed by pluginID, or by the host when
// pluginID is empty.
func (c *ExtensionCatalog) Register(pluginID string, def ExtensionDefinition) error {
	if def.Name == "" {
		return NewExtensionError(def.Name, "extension name is required", nil)
	}
	if def.Point == "" {
		return NewExtensionError(def.Name, "extension point is required", nil)
	}
	if def.Factory == nil {
		return NewExtensionError(def.Name, "extension factory is required", nil)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.definitions[def.Name]; exists {
		return NewExtensionError(def.Name, "extension already registered", nil)
	}
	def.Plugins = append([]string(nil), def.Plugins...)
	c.definitions[def.Name] = def
	c.owners[def.Name] = pluginID
	if pluginID == "" {
		c.host = append(c.host, def.Name)
	} else {
		c.plugins[pluginID] = append(c.plugins[pluginID], def.Name)
	}
	return nil
}

// Definition looks up a definition and its registered owner.
func (c *ExtensionCatalog) Definition(name string) (ExtensionDefinition, string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	def, ok := c.definitions[name]
	return def, c.owners[name], ok
}

// HostCandidates returns host definitions in registration order.
func (c *ExtensionCatalog) HostCandidates() ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.host...), nil
}

// PluginCandidates returns the definitions pluginID registered, in order.
func (c *ExtensionCatalog) PluginCandidates(pluginID string) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.plugins[pluginID]...), nil
}

// DefaultIndexFile is the index file name looked up in plugin directories.
const DefaultIndexFile = "extensions.idx"

// IndexDiscoverySource reads candidate names from index files with one
// name per line. Blank lines and '#' comments are ignored. A missing index
// contributes nothing.
type IndexDiscoverySource struct {
	hostIndex string
	indexName string
	locate    func(pluginID string) (string, bool)
}

// NewIndexDiscoverySource reads host candidates from hostIndex and plugin
// candidates from the file with hostIndex's base name inside the directory
// locate returns for each plugin.
func NewIndexDiscoverySource(hostIndex string, locate func(pluginID string) (string, bool)) *IndexDiscoverySource {
	name := filepath.Base(hostIndex)
	if hostIndex == "" {
		name = DefaultIndexFile
	}
	return &IndexDiscoverySource{hostIndex: hostIndex, indexName: name, locate: locate}
}

func (s *IndexDiscoverySource) HostCandidates() ([]string, error) {
	if s.hostIndex == "" {
		return nil, nil
	}
	names, err := readIDList(s.hostIndex)
	if err != nil {
		return nil, NewDiscoveryError("failed to read host index "+s.hostIndex, err)
	}
	return names, nil
}

func (s *IndexDiscoverySource) PluginCandidates(pluginID string) ([]string, error) {
	if s.locate == nil {
		return nil, nil
	}
	source, ok := s.locate(pluginID)
	if !ok || source == "" {
		return nil, nil
	}
	dir := source
	if info, err := os.Stat(source); err == nil && !info.IsDir() {
		dir = filepath.Dir(source)
	}
	path := filepath.Join(dir, s.indexName)
	names, err := readIDList(path)
	if err != nil {
		return nil, NewDiscoveryError("failed to read plugin index "+path, err)
	}
	return names, nil
}
