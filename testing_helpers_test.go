// testing_helpers_test.go: Shared test doubles for the plugin host
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// journal records lifecycle hook calls across plugins as "id:hook".
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(entry string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, entry)
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

func (j *journal) count(entry string) int {
	n := 0
	for _, e := range j.list() {
		if e == entry {
			n++
		}
	}
	return n
}

// indexOfEntry returns the position of entry, or -1.
func (j *journal) indexOfEntry(entry string) int {
	for i, e := range j.list() {
		if e == entry {
			return i
		}
	}
	return -1
}

// fakePlugin is a Plugin whose hooks write to a journal and can be told to fail.
type fakePlugin struct {
	id        string
	journal   *journal
	startErr  error
	stopErr   error
	deleteErr error
	panicOn   string
}

func (p *fakePlugin) hook(name string, err error) error {
	if p.panicOn == name {
		panic(p.id + " exploded in " + name)
	}
	p.journal.add(p.id + ":" + name)
	return err
}

func (p *fakePlugin) Start() error  { return p.hook("start", p.startErr) }
func (p *fakePlugin) Stop() error   { return p.hook("stop", p.stopErr) }
func (p *fakePlugin) Delete() error { return p.hook("delete", p.deleteErr) }

var errBoom = errors.New("boom")

// testHost bundles a manager with the doubles behind it.
type testHost struct {
	t        *testing.T
	manager  *PluginManager
	loader   *FactoryLoader
	journal  *journal
	events   *recordingListener
	plugins  map[string]*fakePlugin
	store    *MemoryStatusStore
	logger   *TestLogger
	pluginMu sync.Mutex
}

func newTestHost(t *testing.T, config ManagerConfig, opts ...Option) *testHost {
	t.Helper()
	h := &testHost{
		t:       t,
		journal: &journal{},
		events:  &recordingListener{},
		plugins: make(map[string]*fakePlugin),
		store:   NewMemoryStatusStore(),
		logger:  NewTestLogger(),
	}
	h.loader = NewFactoryLoader(h.logger)
	require.NoError(t, h.loader.RegisterFactory("fake", h.factory))

	all := append([]Option{
		WithLogger(h.logger),
		WithIsolationLoader(h.loader),
		WithStatusStore(h.store),
		WithStateListener(h.events),
	}, opts...)
	m, err := NewPluginManager(config, all...)
	require.NoError(t, err)
	h.manager = m
	t.Cleanup(func() { _ = m.Close() })
	return h
}

func newDefaultTestHost(t *testing.T, opts ...Option) *testHost {
	return newTestHost(t, DefaultManagerConfig(), opts...)
}

// factory hands out one fakePlugin per plugin id, created on demand.
func (h *testHost) factory(d *PluginDescriptor) (Plugin, error) {
	return h.plugin(d.ID), nil
}

func (h *testHost) plugin(id string) *fakePlugin {
	h.pluginMu.Lock()
	defer h.pluginMu.Unlock()
	p, ok := h.plugins[id]
	if !ok {
		p = &fakePlugin{id: id, journal: h.journal}
		h.plugins[id] = p
	}
	return p
}

// load registers a fake plugin. deps uses the compact "id[@range][?]" list form.
func (h *testHost) load(id, version, deps string) error {
	h.t.Helper()
	_, err := h.manager.LoadPlugin(fakeDescriptor(h.t, id, version, deps), "")
	return err
}

func (h *testHost) mustLoad(id, version, deps string) {
	h.t.Helper()
	require.NoError(h.t, h.load(id, version, deps))
}

func (h *testHost) state(id string) PluginState {
	h.t.Helper()
	r, ok := h.manager.Plugin(id)
	if !ok {
		return StateUnloaded
	}
	return r.State()
}

func fakeDescriptor(t *testing.T, id, version, deps string) *PluginDescriptor {
	t.Helper()
	parsed, err := ParseDependencies(deps)
	require.NoError(t, err)
	return &PluginDescriptor{ID: id, Version: version, PluginClass: "fake", Dependencies: parsed}
}

// recordingListener keeps every event it receives.
type recordingListener struct {
	mu     sync.Mutex
	events []PluginStateEvent
}

func (l *recordingListener) PluginStateChanged(event PluginStateEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *recordingListener) all() []PluginStateEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]PluginStateEvent(nil), l.events...)
}

// transitions renders events as "id:OLD->NEW".
func (l *recordingListener) transitions() []string {
	var out []string
	for _, e := range l.all() {
		out = append(out, e.PluginID+":"+e.OldState.String()+"->"+e.State.String())
	}
	return out
}

func (l *recordingListener) countTo(id string, state PluginState) int {
	n := 0
	for _, e := range l.all() {
		if e.PluginID == id && e.State == state {
			n++
		}
	}
	return n
}

func (l *recordingListener) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = nil
}

func descriptorsOf(t *testing.T, specs ...[3]string) []*PluginDescriptor {
	t.Helper()
	out := make([]*PluginDescriptor, 0, len(specs))
	for _, s := range specs {
		out = append(out, fakeDescriptor(t, s[0], s[1], s[2]))
	}
	return out
}

func positions(ids []string) map[string]int {
	pos := make(map[string]int, len(ids))
	for i, id := range ids {
		pos[id] = i
	}
	return pos
}
