// dependency_resolver.go: Dependency ordering and validation for plugin descriptors
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"fmt"
	"sync"
)

// WrongDependencyVersion describes an installed dependency whose version
// falls outside the range declared by one of its dependents.
type WrongDependencyVersion struct {
	DependencyID    string `json:"dependency_id"`
	DependentID     string `json:"dependent_id"`
	ExistingVersion string `json:"existing_version"`
	RequiredVersion string `json:"required_version"`

	// Err is set when the check itself failed, e.g. on a malformed range.
	Err error `json:"-"`
}

func (w WrongDependencyVersion) String() string {
	return fmt.Sprintf("%s requires %s@%s but %s is installed",
		w.DependentID, w.DependencyID, w.RequiredVersion, w.ExistingVersion)
}

// ResolveResult is the outcome of one resolution pass.
//
// SortedPlugins lists every vertex so that each plugin follows all of its
// required dependencies. It is empty when CyclicDependency is set. The
// order among unrelated plugins is not guaranteed.
type ResolveResult struct {
	SortedPlugins            []string                 `json:"sorted_plugins"`
	CyclicDependency         bool                     `json:"cyclic_dependency"`
	CyclePlugins             []string                 `json:"cycle_plugins,omitempty"`
	NotFoundDependencies     []string                 `json:"not_found_dependencies,omitempty"`
	WrongVersionDependencies []WrongDependencyVersion `json:"wrong_version_dependencies,omitempty"`
}

// HasErrors reports whether any failure was classified.
func (r *ResolveResult) HasErrors() bool {
	return r.CyclicDependency || len(r.NotFoundDependencies) > 0 || len(r.WrongVersionDependencies) > 0
}

// Err converts the first classified failure into a structured error, in the
// order cycle, missing dependency, version mismatch. It returns nil when the
// pass succeeded.
func (r *ResolveResult) Err() error {
	switch {
	case r.CyclicDependency:
		return NewCyclicDependencyError(r.CyclePlugins)
	case len(r.NotFoundDependencies) > 0:
		return NewDependencyNotFoundError(r.NotFoundDependencies)
	case len(r.WrongVersionDependencies) > 0:
		return NewDependencyVersionMismatchError(r.WrongVersionDependencies)
	}
	return nil
}

// DependencyResolver builds the dependency graph of a descriptor set and
// answers dependency queries against the last pass.
type DependencyResolver struct {
	versions *VersionManager

	mu                sync.RWMutex
	dependenciesGraph *DirectedGraph // dependent -> dependency
	dependentsGraph   *DirectedGraph // dependency -> dependent
	resolved          bool
}

// NewDependencyResolver creates a resolver evaluating ranges with versions.
func NewDependencyResolver(versions *VersionManager) *DependencyResolver {
	if versions == nil {
		versions = NewVersionManager(false)
	}
	return &DependencyResolver{versions: versions}
}

// Resolve computes the activation order of the given descriptors and
// collects every cycle, missing dependency and version violation.
//
// Only required dependencies become edges. Plugins without required
// dependencies still get a vertex so they appear in the order.
func (r *DependencyResolver) Resolve(descriptors []*PluginDescriptor) *ResolveResult {
	byID := make(map[string]*PluginDescriptor, len(descriptors))
	dependencies := NewDirectedGraph()
	for _, d := range descriptors {
		byID[d.ID] = d
		dependencies.AddVertex(d.ID)
		for _, dep := range d.Dependencies {
			if dep.Optional {
				continue
			}
			dependencies.AddEdge(d.ID, dep.PluginID)
		}
	}
	dependents := dependencies.Transpose()

	r.mu.Lock()
	r.dependenciesGraph = dependencies
	r.dependentsGraph = dependents
	r.resolved = true
	r.mu.Unlock()

	result := &ResolveResult{}
	sorted, ok := dependencies.ReverseTopologicalSort()
	if !ok {
		result.CyclicDependency = true
		result.CyclePlugins = dependencies.CycleMembers()
	} else {
		result.SortedPlugins = sorted
		for _, id := range sorted {
			if _, known := byID[id]; !known {
				result.NotFoundDependencies = append(result.NotFoundDependencies, id)
			}
		}
	}

	for _, d := range descriptors {
		for _, dependentID := range dependents.Neighbors(d.ID) {
			dependent, known := byID[dependentID]
			if !known {
				continue
			}
			dep, declared := dependent.Dependency(d.ID)
			if !declared {
				continue
			}
			ok, err := r.versions.Satisfies(d.Version, dep.Range())
			if err != nil || !ok {
				result.WrongVersionDependencies = append(result.WrongVersionDependencies, WrongDependencyVersion{
					DependencyID:    d.ID,
					DependentID:     dependentID,
					ExistingVersion: d.Version,
					RequiredVersion: dep.Range(),
					Err:             err,
				})
			}
		}
	}

	return result
}

// Resolved reports whether at least one resolution pass has run.
func (r *DependencyResolver) Resolved() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolved
}

// Dependencies returns the required dependencies of pluginID from the last
// pass. The slice is a fresh copy.
func (r *DependencyResolver) Dependencies(pluginID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.resolved {
		return nil, NewGraphNotResolvedError()
	}
	return r.dependenciesGraph.Neighbors(pluginID), nil
}

// Dependents returns the plugins that require pluginID, from the last pass.
// The slice is a fresh copy.
func (r *DependencyResolver) Dependents(pluginID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.resolved {
		return nil, NewGraphNotResolvedError()
	}
	return r.dependentsGraph.Neighbors(pluginID), nil
}
