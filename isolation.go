// isolation.go: Isolation boundary between the host and plugin code
//
// The lifecycle controller never instantiates plugin code itself. It asks an
// IsolationLoader for an IsolationUnit when a plugin is loaded, asks the unit
// for the plugin entry point on first start, and hands the unit back for
// release when the plugin is unloaded.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"strings"
)

// LoadSource is one place an isolation unit may resolve code from.
type LoadSource int

const (
	// SourcePlugin is the plugin's own code.
	SourcePlugin LoadSource = iota
	// SourceApplication is code supplied by the host application.
	SourceApplication
	// SourceDependencies is code exported by the plugin's declared dependencies.
	SourceDependencies
)

func (s LoadSource) String() string {
	switch s {
	case SourcePlugin:
		return "plugin"
	case SourceApplication:
		return "application"
	case SourceDependencies:
		return "dependencies"
	default:
		return "unknown"
	}
}

// LoadingStrategy is the delegation order an isolation unit uses when
// looking up code. Each letter is a source: P(lugin), A(pplication),
// D(ependencies).
type LoadingStrategy string

const (
	StrategyPAD LoadingStrategy = "PAD"
	StrategyPDA LoadingStrategy = "PDA"
	StrategyAPD LoadingStrategy = "APD"
	StrategyADP LoadingStrategy = "ADP"
	StrategyDAP LoadingStrategy = "DAP"
	StrategyDPA LoadingStrategy = "DPA"

	// DefaultLoadingStrategy resolves plugin code first, then dependencies,
	// then the host.
	DefaultLoadingStrategy = StrategyPDA
)

var strategyLetters = map[byte]LoadSource{
	'P': SourcePlugin,
	'A': SourceApplication,
	'D': SourceDependencies,
}

// ParseLoadingStrategy accepts a three letter code ("PDA") or the long
// hyphenated form ("plugin-dependencies-application"), case insensitive.
// An empty string yields DefaultLoadingStrategy.
func ParseLoadingStrategy(s string) (LoadingStrategy, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultLoadingStrategy, nil
	}
	code := strings.ToUpper(s)
	if strings.Contains(s, "-") {
		var b strings.Builder
		for _, word := range strings.Split(s, "-") {
			if word == "" {
				return "", NewConfigValidationError("invalid loading strategy " + s)
			}
			b.WriteByte(strings.ToUpper(word)[0])
		}
		code = b.String()
	}
	st := LoadingStrategy(code)
	if !st.Valid() {
		return "", NewConfigValidationError("invalid loading strategy " + s)
	}
	return st, nil
}

// Valid reports whether the strategy names each source exactly once.
func (s LoadingStrategy) Valid() bool {
	if len(s) != 3 {
		return false
	}
	seen := make(map[LoadSource]bool, 3)
	for i := 0; i < 3; i++ {
		src, ok := strategyLetters[s[i]]
		if !ok || seen[src] {
			return false
		}
		seen[src] = true
	}
	return true
}

// Sources returns the lookup order. An invalid strategy yields the default order.
func (s LoadingStrategy) Sources() []LoadSource {
	if !s.Valid() {
		s = DefaultLoadingStrategy
	}
	out := make([]LoadSource, 3)
	for i := 0; i < 3; i++ {
		out[i] = strategyLetters[s[i]]
	}
	return out
}

// IsolationUnit is the loaded, isolated code of one plugin.
type IsolationUnit interface {
	// PluginID returns the id of the plugin the unit was loaded for.
	PluginID() string

	// Instantiate creates the plugin entry point inside the unit.
	Instantiate() (Plugin, error)
}

// IsolationLoader loads and releases isolation units.
//
// Release is best effort; the lifecycle controller logs its error and
// carries on.
type IsolationLoader interface {
	Load(descriptor *PluginDescriptor, source string, strategy LoadingStrategy) (IsolationUnit, error)
	Release(unit IsolationUnit) error
}
