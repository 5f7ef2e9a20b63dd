// discovery.go: Plugin repository and manifest based descriptor discovery
//
// A DirectoryRepository lists one directory per plugin under a root; a
// ManifestDescriptorFinder reads the plugin manifest found in each of them.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// PluginRepository locates plugin artifacts and removes them on delete.
type PluginRepository interface {
	// PluginPaths returns the source location of every available plugin.
	PluginPaths() ([]string, error)

	// DeletePluginPath removes a plugin artifact. It returns false when
	// there was nothing to delete.
	DeletePluginPath(path string) (bool, error)
}

// DescriptorFinder reads a plugin descriptor from a source location.
type DescriptorFinder interface {
	Find(path string) (*PluginDescriptor, error)
}

// DirectoryRepository treats every non-hidden subdirectory of Root as a plugin.
type DirectoryRepository struct {
	Root   string
	logger Logger
}

// NewDirectoryRepository creates a repository rooted at root.
func NewDirectoryRepository(root string, logger any) *DirectoryRepository {
	return &DirectoryRepository{Root: root, logger: NewLogger(logger)}
}

// PluginPaths lists plugin directories in name order. A missing root yields
// no plugins.
func (r *DirectoryRepository) PluginPaths() ([]string, error) {
	entries, err := os.ReadDir(r.Root)
	if err != nil {
		if os.IsNotExist(err) {
			r.logger.Debug("Plugins root does not exist", "root", r.Root)
			return nil, nil
		}
		return nil, NewRepositoryError(r.Root, "failed to read plugins root", err)
	}

	var paths []string
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		paths = append(paths, filepath.Join(r.Root, entry.Name()))
	}
	return paths, nil
}

// DeletePluginPath removes path, which must be located inside Root.
func (r *DirectoryRepository) DeletePluginPath(path string) (bool, error) {
	root, err := filepath.Abs(r.Root)
	if err != nil {
		return false, NewRepositoryError(r.Root, "invalid plugins root", err)
	}
	target, err := filepath.Abs(path)
	if err != nil {
		return false, NewRepositoryError(path, "invalid plugin path", err)
	}
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false, NewRepositoryError(path, "plugin path is outside the plugins root", err)
	}

	if _, err := os.Stat(target); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, NewRepositoryError(path, "failed to inspect plugin path", err)
	}
	if err := os.RemoveAll(target); err != nil {
		return false, NewRepositoryError(path, "failed to delete plugin path", err)
	}
	r.logger.Info("Plugin artifact deleted", "path", target)
	return true, nil
}

// DefaultManifestNames are tried in order inside a plugin directory.
var DefaultManifestNames = []string{
	"plugin.yaml",
	"plugin.yml",
	"plugin.json",
	"plugin.toml",
	"plugin.properties",
}

// ManifestDescriptorFinder reads descriptors from manifest files.
//
// Keys may be written plainly ("id") or with the "plugin." prefix
// ("plugin.id"), either flat or nested under a "plugin" section.
// Dependencies are either a comma separated string in the compact
// id[@range][?] form or a list of such strings.
type ManifestDescriptorFinder struct {
	names []string
}

// NewManifestDescriptorFinder creates a finder trying names in order; no
// names means DefaultManifestNames.
func NewManifestDescriptorFinder(names ...string) *ManifestDescriptorFinder {
	if len(names) == 0 {
		names = DefaultManifestNames
	}
	return &ManifestDescriptorFinder{names: append([]string(nil), names...)}
}

// Find reads the manifest at path, or the first known manifest inside the
// directory at path.
func (f *ManifestDescriptorFinder) Find(path string) (*PluginDescriptor, error) {
	manifestPath, err := f.manifestPath(path)
	if err != nil {
		return nil, err
	}

	data, format, err := readDocument(manifestPath)
	if err != nil {
		return nil, NewManifestError(manifestPath, err)
	}
	values, err := parseDocumentMap(data, format)
	if err != nil {
		return nil, NewManifestError(manifestPath, err)
	}

	descriptor, err := descriptorFromMap(values)
	if err != nil {
		return nil, NewManifestError(manifestPath, err)
	}
	if err := descriptor.Validate(); err != nil {
		return nil, err
	}
	return descriptor, nil
}

func (f *ManifestDescriptorFinder) manifestPath(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", NewManifestError(path, err)
	}
	if !info.IsDir() {
		return path, nil
	}
	for _, name := range f.names {
		candidate := filepath.Join(path, name)
		if st, err := os.Stat(candidate); err == nil && !st.IsDir() {
			return candidate, nil
		}
	}
	return "", NewDescriptorNotFoundError(path)
}

func descriptorFromMap(values map[string]interface{}) (*PluginDescriptor, error) {
	get := manifestLookup(values)

	d := &PluginDescriptor{
		ID:          get("id"),
		Version:     get("version"),
		Description: get("description"),
		PluginClass: firstNonEmpty(get("class"), get("plugin_class")),
		Requires:    get("requires"),
		Provider:    get("provider"),
		License:     get("license"),
	}

	deps, err := manifestDependencies(manifestRaw(values, "dependencies"))
	if err != nil {
		return nil, err
	}
	d.Dependencies = deps
	return d, nil
}

// manifestRaw finds key as "key", "plugin.key" or plugin: {key: ...}.
func manifestRaw(values map[string]interface{}, key string) interface{} {
	if v, ok := values[key]; ok {
		return v
	}
	if v, ok := values["plugin."+key]; ok {
		return v
	}
	if nested, ok := values["plugin"].(map[string]interface{}); ok {
		if v, ok := nested[key]; ok {
			return v
		}
	}
	return nil
}

func manifestLookup(values map[string]interface{}) func(string) string {
	return func(key string) string {
		return scalarString(manifestRaw(values, key))
	}
}

func scalarString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func manifestDependencies(raw interface{}) ([]PluginDependency, error) {
	switch t := raw.(type) {
	case nil:
		return nil, nil
	case string:
		return ParseDependencies(t)
	case []interface{}:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if m, ok := item.(map[string]interface{}); ok {
				parts = append(parts, dependencyFromMap(m))
				continue
			}
			parts = append(parts, scalarString(item))
		}
		deps := make([]PluginDependency, 0, len(parts))
		for _, p := range parts {
			dep, err := ParsePluginDependency(p)
			if err != nil {
				return nil, err
			}
			deps = append(deps, dep)
		}
		return deps, nil
	default:
		return nil, fmt.Errorf("dependencies must be a string or a list, got %T", raw)
	}
}

// dependencyFromMap renders {id, version, optional} back into compact form.
func dependencyFromMap(m map[string]interface{}) string {
	id := firstNonEmpty(scalarString(m["id"]), scalarString(m["plugin_id"]))
	versionRange := firstNonEmpty(scalarString(m["version"]), scalarString(m["version_range"]))
	out := id
	if versionRange != "" {
		out += "@" + versionRange
	}
	if opt, ok := m["optional"].(bool); ok && opt {
		out += "?"
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
