// dependency.go: Parsing of the compact dependency declaration syntax
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"strings"
	"unicode"
)

// ParsePluginDependency parses "id[@range][?]".
//
// A trailing "?" marks the dependency optional; "id?@range" is accepted as
// well. A missing or empty range means any version.
//
//	ParsePluginDependency("storage@>=1.2 & <2?")
//	// PluginDependency{PluginID: "storage", VersionRange: ">=1.2 & <2", Optional: true}
func ParsePluginDependency(text string) (PluginDependency, error) {
	s := strings.TrimSpace(text)
	var dep PluginDependency

	if strings.HasSuffix(s, "?") {
		dep.Optional = true
		s = strings.TrimSpace(strings.TrimSuffix(s, "?"))
	}

	id, versionRange, hasRange := strings.Cut(s, "@")
	id = strings.TrimSpace(id)
	if strings.HasSuffix(id, "?") {
		dep.Optional = true
		id = strings.TrimSpace(strings.TrimSuffix(id, "?"))
	}
	if id == "" || strings.IndexFunc(id, unicode.IsSpace) >= 0 || strings.ContainsAny(id, "@?,") {
		return PluginDependency{}, NewInvalidDependencyError(text, nil)
	}
	dep.PluginID = id

	if hasRange {
		versionRange = strings.TrimSpace(versionRange)
		if versionRange == "" {
			versionRange = AnyVersion
		}
		if _, err := ParseConstraint(versionRange); err != nil {
			return PluginDependency{}, NewInvalidDependencyError(text, err)
		}
		dep.VersionRange = versionRange
	} else {
		dep.VersionRange = AnyVersion
	}
	return dep, nil
}

// ParseDependencies parses a comma separated dependency list such as
// "core@>=1.0, storage?, metrics@^2.1".
//
// Segments starting with a comparison operator continue the previous
// segment's range, so "core@>=1.0,<2.0" keeps both bounds on core.
func ParseDependencies(text string) ([]PluginDependency, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	var merged []string
	for _, part := range strings.Split(text, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		if len(merged) > 0 && strings.ContainsRune("<>=!^~", rune(trimmed[0])) {
			merged[len(merged)-1] += "," + trimmed
			continue
		}
		merged = append(merged, trimmed)
	}

	deps := make([]PluginDependency, 0, len(merged))
	seen := make(map[string]bool, len(merged))
	for _, item := range merged {
		dep, err := ParsePluginDependency(item)
		if err != nil {
			return nil, err
		}
		if seen[dep.PluginID] {
			return nil, NewInvalidDependencyError(item, nil).
				WithContext("reason", "duplicate dependency")
		}
		seen[dep.PluginID] = true
		deps = append(deps, dep)
	}
	return deps, nil
}

// FormatDependencies renders dependencies back into the comma separated form.
func FormatDependencies(deps []PluginDependency) string {
	parts := make([]string, len(deps))
	for i, d := range deps {
		parts[i] = d.String()
	}
	return strings.Join(parts, ", ")
}
