// types.go: Common data types and structures for the plugin host
//
// This file contains the shared data model: the lifecycle state enumeration,
// plugin descriptors and their declared dependencies.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"strings"
)

// PluginState is the lifecycle state of a loaded plugin.
//
// The normal path is Created, Resolved, Started, Stopped. A plugin may be
// Disabled by policy instead of being resolved, becomes Failed when its own
// start logic raises an error, and ends as Unloaded once removed.
type PluginState int

const (
	StateCreated PluginState = iota
	StateDisabled
	StateResolved
	StateStarted
	StateStopped
	StateFailed
	StateUnloaded
)

// String returns a human-readable representation of the plugin state.
func (s PluginState) String() string {
	switch s {
	case StateCreated:
		return "CREATED"
	case StateDisabled:
		return "DISABLED"
	case StateResolved:
		return "RESOLVED"
	case StateStarted:
		return "STARTED"
	case StateStopped:
		return "STOPPED"
	case StateFailed:
		return "FAILED"
	case StateUnloaded:
		return "UNLOADED"
	default:
		return "UNKNOWN"
	}
}

// ParsePluginState converts a state name (case insensitive) back to a PluginState.
func ParsePluginState(s string) (PluginState, bool) {
	for st := StateCreated; st <= StateUnloaded; st++ {
		if strings.EqualFold(st.String(), s) {
			return st, true
		}
	}
	return StateCreated, false
}

func (s PluginState) IsCreated() bool  { return s == StateCreated }
func (s PluginState) IsDisabled() bool { return s == StateDisabled }
func (s PluginState) IsResolved() bool { return s == StateResolved }
func (s PluginState) IsStarted() bool  { return s == StateStarted }
func (s PluginState) IsStopped() bool  { return s == StateStopped }
func (s PluginState) IsFailed() bool   { return s == StateFailed }
func (s PluginState) IsUnloaded() bool { return s == StateUnloaded }

// PluginDescriptor is the immutable metadata of a plugin.
//
// Requires is a version range evaluated against the host system version;
// an empty value means any version. PluginClass is the entry-point key the
// isolation loader uses to instantiate the plugin; it defaults to the id.
type PluginDescriptor struct {
	ID           string             `json:"id" yaml:"id"`
	Version      string             `json:"version" yaml:"version"`
	Description  string             `json:"description,omitempty" yaml:"description,omitempty"`
	PluginClass  string             `json:"plugin_class,omitempty" yaml:"plugin_class,omitempty"`
	Requires     string             `json:"requires,omitempty" yaml:"requires,omitempty"`
	Provider     string             `json:"provider,omitempty" yaml:"provider,omitempty"`
	License      string             `json:"license,omitempty" yaml:"license,omitempty"`
	Dependencies []PluginDependency `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}

// EntryPoint returns the key used to look up the plugin's factory.
func (d *PluginDescriptor) EntryPoint() string {
	if d.PluginClass != "" {
		return d.PluginClass
	}
	return d.ID
}

// RequiredVersionRange returns Requires, or "*" when unset.
func (d *PluginDescriptor) RequiredVersionRange() string {
	if strings.TrimSpace(d.Requires) == "" {
		return AnyVersion
	}
	return d.Requires
}

// HasOptionalDependency reports whether any declared dependency is optional.
func (d *PluginDescriptor) HasOptionalDependency() bool {
	for _, dep := range d.Dependencies {
		if dep.Optional {
			return true
		}
	}
	return false
}

// Dependency returns the declared dependency on the given plugin id, if any.
func (d *PluginDescriptor) Dependency(pluginID string) (PluginDependency, bool) {
	for _, dep := range d.Dependencies {
		if dep.PluginID == pluginID {
			return dep, true
		}
	}
	return PluginDependency{}, false
}

// Clone returns a deep copy, so callers can never mutate a loaded descriptor.
func (d *PluginDescriptor) Clone() *PluginDescriptor {
	c := *d
	c.Dependencies = append([]PluginDependency(nil), d.Dependencies...)
	return &c
}

// Validate checks the fields that must be present for a plugin to be loaded.
func (d *PluginDescriptor) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return NewInvalidDescriptorError(d.ID, "id is missing")
	}
	if strings.TrimSpace(d.Version) == "" {
		return NewInvalidDescriptorError(d.ID, "version is missing")
	}
	if _, err := ParseVersion(d.Version); err != nil {
		return NewInvalidDescriptorError(d.ID, "version "+d.Version+" is malformed")
	}
	if _, err := ParseConstraint(d.RequiredVersionRange()); err != nil {
		return NewInvalidDescriptorError(d.ID, "requires "+d.Requires+" is malformed")
	}
	for _, dep := range d.Dependencies {
		if dep.PluginID == "" {
			return NewInvalidDescriptorError(d.ID, "dependency without plugin id")
		}
		if dep.PluginID == d.ID {
			return NewInvalidDescriptorError(d.ID, "plugin depends on itself")
		}
		if _, err := ParseConstraint(dep.Range()); err != nil {
			return NewInvalidDescriptorError(d.ID, "dependency range "+dep.VersionRange+" is malformed")
		}
	}
	return nil
}

// PluginDependency is one entry of a plugin's dependency list.
type PluginDependency struct {
	PluginID     string `json:"plugin_id" yaml:"plugin_id"`
	VersionRange string `json:"version_range,omitempty" yaml:"version_range,omitempty"`
	Optional     bool   `json:"optional,omitempty" yaml:"optional,omitempty"`
}

// Range returns the version range, or "*" when unset.
func (p PluginDependency) Range() string {
	if strings.TrimSpace(p.VersionRange) == "" {
		return AnyVersion
	}
	return p.VersionRange
}

// String renders the dependency in its compact textual form.
func (p PluginDependency) String() string {
	var b strings.Builder
	b.WriteString(p.PluginID)
	if r := p.Range(); r != AnyVersion {
		b.WriteByte('@')
		b.WriteString(r)
	}
	if p.Optional {
		b.WriteByte('?')
	}
	return b.String()
}
