// manager_lifecycle.go: Start, stop, enable, disable, unload and delete
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

// StartPlugins starts every resolved plugin that is neither Disabled nor
// already Started, in resolution order. A plugin whose required
// dependencies are not started is marked Failed. Faults are recorded on
// the plugin and logged; the batch always continues.
func (m *PluginManager) StartPlugins() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range append([]string(nil), m.resolved...) {
		record, ok := m.plugins[id]
		if !ok {
			continue
		}
		state := record.State()
		if state == StateDisabled || state == StateStarted {
			continue
		}

		if dep, depState, ok := m.inactiveDependencyLocked(record); !ok {
			fault := NewDependencyNotActiveError(id, dep, depState)
			record.setFailure(fault)
			m.transition(record, StateFailed)
			m.logger.Error("Plugin not started", "plugin", id, "dependency", dep, "dependency_state", depState.String())
			continue
		}

		if _, err := m.activateLocked(record); err != nil {
			m.logger.Error("Plugin failed to start", "plugin", id, "error", err)
		}
	}
}

// inactiveDependencyLocked returns the first required dependency that is
// not started.
func (m *PluginManager) inactiveDependencyLocked(record *PluginRecord) (string, PluginState, bool) {
	for _, dep := range record.descriptor.Dependencies {
		if dep.Optional {
			continue
		}
		depRecord, ok := m.plugins[dep.PluginID]
		if !ok {
			return dep.PluginID, StateUnloaded, false
		}
		if s := depRecord.State(); s != StateStarted {
			return dep.PluginID, s, false
		}
	}
	return "", StateStarted, true
}

// StartPlugin starts one plugin after its dependencies. A Disabled plugin
// is enabled first. Required dependencies are started recursively and
// their faults are returned; optional dependencies are started only when
// loaded, enabled and resolved, and their faults are logged.
//
// Starting a started plugin returns StateStarted and does nothing.
func (m *PluginManager) StartPlugin(pluginID string) (PluginState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startLocked(pluginID, make(map[string]bool))
}

func (m *PluginManager) startLocked(pluginID string, visiting map[string]bool) (PluginState, error) {
	record, err := m.recordLocked(pluginID)
	if err != nil {
		return StateUnloaded, err
	}
	state := record.State()
	if state == StateStarted {
		return state, nil
	}
	if !containsID(m.resolved, pluginID) {
		return state, NewPluginNotResolvedError(pluginID, state)
	}
	if state == StateDisabled {
		if ok, err := m.enableLocked(record); !ok {
			return record.State(), err
		}
	}

	visiting[pluginID] = true
	for _, dep := range record.descriptor.Dependencies {
		if visiting[dep.PluginID] {
			continue
		}
		if dep.Optional {
			depRecord, loaded := m.plugins[dep.PluginID]
			if !loaded || depRecord.State() == StateDisabled || !containsID(m.resolved, dep.PluginID) {
				continue
			}
			if _, err := m.startLocked(dep.PluginID, visiting); err != nil {
				m.logger.Warn("Optional dependency failed to start",
					"plugin", pluginID, "dependency", dep.PluginID, "error", err)
			}
			continue
		}
		if _, err := m.startLocked(dep.PluginID, visiting); err != nil {
			return record.State(), err
		}
	}

	return m.activateLocked(record)
}

// activateLocked calls the plugin's Start hook.
func (m *PluginManager) activateLocked(record *PluginRecord) (PluginState, error) {
	instance, err := record.Plugin()
	if err == nil {
		err = callGuarded(instance.Start)
	}
	if err != nil {
		fault := NewActivationFaultError(record.ID(), "start", err)
		record.setFailure(fault)
		m.transition(record, StateFailed)
		return StateFailed, fault
	}

	record.setFailure(nil)
	m.started = append(m.started, record.ID())
	m.transition(record, StateStarted)
	m.logger.Info("Plugin started", "plugin", record.ID(), "version", record.Version())
	return StateStarted, nil
}

// StopPlugins stops every started plugin in reverse start order. Faults are
// logged and the batch continues.
func (m *PluginManager) StopPlugins() {
	m.mu.Lock()
	defer m.mu.Unlock()

	started := append([]string(nil), m.started...)
	for i := len(started) - 1; i >= 0; i-- {
		record, ok := m.plugins[started[i]]
		if !ok {
			continue
		}
		if _, err := m.stopSingleLocked(record); err != nil {
			m.logger.Error("Plugin failed to stop", "plugin", record.ID(), "error", err)
		}
	}
}

// StopPlugin stops a plugin after stopping, transitively, every plugin that
// depends on it. Dependents that never started become Stopped without their
// hook being called. Stopping a Stopped or Disabled plugin returns its state
// and does nothing.
func (m *PluginManager) StopPlugin(pluginID string) (PluginState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopLocked(pluginID, true)
}

func (m *PluginManager) stopLocked(pluginID string, cascade bool) (PluginState, error) {
	record, err := m.recordLocked(pluginID)
	if err != nil {
		return StateUnloaded, err
	}
	if s := record.State(); s == StateStopped || s == StateDisabled {
		return s, nil
	}

	if cascade {
		for _, dependentID := range m.transitiveDependentsLocked(pluginID) {
			if _, err := m.stopSingleLocked(m.plugins[dependentID]); err != nil {
				return record.State(), err
			}
		}
	}
	return m.stopSingleLocked(record)
}

// stopSingleLocked stops one plugin without looking at its dependents. Only
// a started plugin has its Stop hook called; a plugin that never started
// simply becomes Stopped. When the hook fails the plugin stays Started and
// the fault is recorded.
func (m *PluginManager) stopSingleLocked(record *PluginRecord) (PluginState, error) {
	state := record.State()
	if state == StateStopped || state == StateDisabled {
		return state, nil
	}

	if state == StateStarted {
		if instance := record.loadedInstance(); instance != nil {
			if err := callGuarded(instance.Stop); err != nil {
				fault := NewActivationFaultError(record.ID(), "stop", err)
				record.setFailure(fault)
				return StateStarted, fault
			}
		}
		m.started = removeID(m.started, record.ID())
		m.logger.Info("Plugin stopped", "plugin", record.ID())
	}

	m.transition(record, StateStopped)
	return StateStopped, nil
}

// transitiveDependentsLocked returns every loaded plugin that depends,
// directly or not, on pluginID. Dependents are discovered with a worklist,
// re-querying the graph for each newly found plugin, then ordered so that a
// plugin always comes before the plugins it depends on. pluginID itself is
// not included.
func (m *PluginManager) transitiveDependentsLocked(pluginID string) []string {
	if !m.resolver.Resolved() {
		return nil
	}

	seen := map[string]bool{pluginID: true}
	var found []string
	queue := []string{pluginID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		dependents, _ := m.resolver.Dependents(id)
		for _, d := range dependents {
			if seen[d] {
				continue
			}
			seen[d] = true
			found = append(found, d)
			queue = append(queue, d)
		}
	}

	out := make([]string, 0, len(found))
	for _, id := range dependentsFirst(found, m.resolver) {
		if _, loaded := m.plugins[id]; loaded {
			out = append(out, id)
		}
	}
	return out
}

// dependentsFirst orders ids so that every id precedes the ids it depends
// on, restricted to the given set.
func dependentsFirst(ids []string, resolver *DependencyResolver) []string {
	inSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		inSet[id] = true
	}
	g := NewDirectedGraph()
	for _, id := range ids {
		g.AddVertex(id)
	}
	for _, id := range ids {
		deps, _ := resolver.Dependencies(id)
		for _, d := range deps {
			if inSet[d] {
				g.AddEdge(id, d)
			}
		}
	}
	sorted, ok := g.TopologicalSort()
	if !ok {
		return ids
	}
	return sorted
}

// DisablePlugin stops the plugin and its dependents, persists the decision
// and marks it Disabled. Disabling a Disabled plugin returns true and does
// nothing.
func (m *PluginManager) DisablePlugin(pluginID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, err := m.recordLocked(pluginID)
	if err != nil {
		return false, err
	}
	if record.State() == StateDisabled {
		return true, nil
	}
	if record.State() == StateStarted {
		state, err := m.stopLocked(pluginID, true)
		if err != nil {
			return false, err
		}
		if state != StateStopped {
			return false, NewPluginStillStartedError(pluginID)
		}
	}

	if err := m.statusStore.SetDisabled(pluginID, true); err != nil {
		return false, err
	}
	m.transition(record, StateDisabled)
	m.logger.Info("Plugin disabled", "plugin", pluginID)
	return true, nil
}

// EnablePlugin re-enables a Disabled plugin and persists the decision. The
// plugin returns to Created and is started by the next StartPlugin or
// StartPlugins. Enabling a plugin that is not Disabled returns true.
func (m *PluginManager) EnablePlugin(pluginID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, err := m.recordLocked(pluginID)
	if err != nil {
		return false, err
	}
	return m.enableLocked(record)
}

func (m *PluginManager) enableLocked(record *PluginRecord) (bool, error) {
	if record.State() != StateDisabled {
		return true, nil
	}
	d := record.descriptor
	if !m.isPluginValid(d) {
		return false, NewEnableRejectedError(d.ID, d.RequiredVersionRange(), m.config.SystemVersion)
	}
	if err := m.statusStore.SetDisabled(d.ID, false); err != nil {
		return false, err
	}
	m.transition(record, StateCreated)
	m.logger.Info("Plugin enabled", "plugin", d.ID)
	return true, nil
}

// UnloadPlugin unloads every plugin depending on pluginID, then stops and
// removes the plugin and releases its isolation unit. It fails, leaving the
// plugin loaded, when a dependent cannot be unloaded or the plugin cannot be
// stopped.
func (m *PluginManager) UnloadPlugin(pluginID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unloadLocked(pluginID, true)
}

// UnloadPluginOnly unloads pluginID without touching its dependents.
func (m *PluginManager) UnloadPluginOnly(pluginID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unloadLocked(pluginID, false)
}

func (m *PluginManager) unloadLocked(pluginID string, cascade bool) (bool, error) {
	record, err := m.recordLocked(pluginID)
	if err != nil {
		return false, err
	}

	if cascade {
		for _, dependentID := range m.transitiveDependentsLocked(pluginID) {
			if _, loaded := m.plugins[dependentID]; !loaded {
				continue
			}
			if ok, err := m.unloadLocked(dependentID, false); !ok {
				return false, err
			}
		}
	}

	state, err := m.stopLocked(pluginID, false)
	if err != nil {
		return false, err
	}
	if state == StateStarted {
		return false, NewPluginStillStartedError(pluginID)
	}

	defer m.releaseLocked(record)

	delete(m.plugins, pluginID)
	m.order = removeID(m.order, pluginID)
	m.resolved = removeID(m.resolved, pluginID)
	m.unresolved = removeID(m.unresolved, pluginID)
	m.started = removeID(m.started, pluginID)
	m.extensions.invalidate()

	m.transition(record, StateUnloaded)
	m.logger.Info("Plugin unloaded", "plugin", pluginID)
	return true, nil
}

// releaseLocked hands the isolation unit back to the loader. Failures are
// logged only.
func (m *PluginManager) releaseLocked(record *PluginRecord) {
	if record.unit == nil {
		return
	}
	if err := m.loader.Release(record.unit); err != nil {
		m.logger.Error("Failed to release isolation unit", "plugin", record.ID(), "error", err)
	}
}

// DeletePlugin stops and unloads the plugin, calls its Delete hook and
// removes its artifact from the repository. Each step's failure aborts the
// remaining ones.
func (m *PluginManager) DeletePlugin(pluginID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, err := m.recordLocked(pluginID)
	if err != nil {
		return false, err
	}

	state, err := m.stopLocked(pluginID, true)
	if err != nil {
		return false, err
	}
	if state == StateStarted {
		return false, NewPluginStillStartedError(pluginID)
	}

	// The instance must be captured before unload releases the unit.
	instance, err := record.Plugin()
	if err != nil {
		return false, err
	}

	if ok, err := m.unloadLocked(pluginID, true); !ok {
		return false, err
	}

	if err := callGuarded(instance.Delete); err != nil {
		return false, NewActivationFaultError(pluginID, "delete", err)
	}

	if record.source == "" || m.repository == nil {
		return true, nil
	}
	return m.repository.DeletePluginPath(record.source)
}
