// extension_test.go: tests for extension discovery, ordering and visibility
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type greeter interface {
	Greet() string
}

type staticGreeter string

func (g staticGreeter) Greet() string { return string(g) }

func greeterDef(name string, ordinal int, requires ...string) ExtensionDefinition {
	return ExtensionDefinition{
		Name:    name,
		Point:   PointName[greeter](),
		Ordinal: ordinal,
		Plugins: requires,
		Factory: func() (any, error) { return staticGreeter(name), nil },
	}
}

func extensionNames(records []*ExtensionRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Name())
	}
	return out
}

func greetings(t *testing.T, m *PluginManager) []string {
	t.Helper()
	all, err := ExtensionsOf[greeter](m)
	require.NoError(t, err)
	out := make([]string, 0, len(all))
	for _, g := range all {
		out = append(out, g.Greet())
	}
	return out
}

func TestExtensions_OrderedByOrdinal(t *testing.T) {
	h := newDefaultTestHost(t)
	h.mustLoad("p1", "1.0.0", "")
	h.mustLoad("p2", "1.0.0", "")
	require.NoError(t, h.manager.RegisterExtension("p1", greeterDef("five", 5)))
	require.NoError(t, h.manager.RegisterExtension("p2", greeterDef("one", 1)))
	h.manager.StartPlugins()

	records, err := h.manager.Extensions(PointName[greeter]())
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "five"}, extensionNames(records))
	assert.Equal(t, "p2", records[0].PluginID())
	assert.Equal(t, 1, records[0].Ordinal())
}

func TestExtensions_TiesKeepDiscoveryOrder(t *testing.T) {
	h := newDefaultTestHost(t)
	h.mustLoad("p1", "1.0.0", "")
	require.NoError(t, h.manager.RegisterExtension("p1", greeterDef("plugin-b", 0)))
	require.NoError(t, h.manager.RegisterExtension("", greeterDef("host-a", 0)))
	require.NoError(t, h.manager.RegisterExtension("p1", greeterDef("plugin-c", 0)))
	h.manager.StartPlugins()

	assert.Equal(t, []string{"host-a", "plugin-b", "plugin-c"}, greetings(t, h.manager))
}

func TestExtensions_OnlyStartedPluginsContribute(t *testing.T) {
	h := newDefaultTestHost(t)
	h.mustLoad("p1", "1.0.0", "")
	require.NoError(t, h.manager.RegisterExtension("", greeterDef("host", 10)))
	require.NoError(t, h.manager.RegisterExtension("p1", greeterDef("plugin", 1)))

	assert.Equal(t, []string{"host"}, greetings(t, h.manager))

	_, err := h.manager.StartPlugin("p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"plugin", "host"}, greetings(t, h.manager))

	_, err = h.manager.StopPlugin("p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"host"}, greetings(t, h.manager))

	_, err = h.manager.UnloadPlugin("p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"host"}, greetings(t, h.manager))
}

// gatedSource holds the next host listing until release is closed.
type gatedSource struct {
	DiscoverySource
	armed   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func (s *gatedSource) HostCandidates() ([]string, error) {
	if s.armed.CompareAndSwap(true, false) {
		close(s.entered)
		<-s.release
	}
	return s.DiscoverySource.HostCandidates()
}

func TestExtensions_StateChangeDuringBuildIsNotLost(t *testing.T) {
	catalog := NewExtensionCatalog()
	source := &gatedSource{
		DiscoverySource: catalog,
		entered:         make(chan struct{}),
		release:         make(chan struct{}),
	}
	source.armed.Store(true)
	require.NoError(t, catalog.Register("late", greeterDef("late-greeter", 0)))

	h := newDefaultTestHost(t, WithExtensionCatalog(catalog), WithDiscoverySource(source))

	done := make(chan error, 1)
	go func() {
		_, err := h.manager.Extensions(PointName[greeter]())
		done <- err
	}()
	<-source.entered

	h.mustLoad("late", "1.0.0", "")
	state, err := h.manager.StartPlugin("late")
	require.NoError(t, err)
	require.Equal(t, StateStarted, state)

	close(source.release)
	require.NoError(t, <-done)

	assert.Equal(t, []string{"late-greeter"}, greetings(t, h.manager))
}

func TestExtensions_CacheIsRebuiltAfterStateChange(t *testing.T) {
	h := newDefaultTestHost(t)
	h.mustLoad("p1", "1.0.0", "")
	require.NoError(t, h.manager.RegisterExtension("p1", greeterDef("plugin", 1)))
	h.manager.StartPlugins()

	first, err := h.manager.Extensions(PointName[greeter]())
	require.NoError(t, err)
	again, err := h.manager.Extensions(PointName[greeter]())
	require.NoError(t, err)
	assert.Same(t, first[0], again[0], "records are served from the cache")

	h.manager.StopPlugin("p1")
	h.manager.StartPlugin("p1")
	rebuilt, err := h.manager.Extensions(PointName[greeter]())
	require.NoError(t, err)
	require.Len(t, rebuilt, 1)
	assert.NotSame(t, first[0], rebuilt[0])
}

func TestPluginExtensions(t *testing.T) {
	h := newDefaultTestHost(t)
	h.mustLoad("p1", "1.0.0", "")
	h.mustLoad("p2", "1.0.0", "")
	require.NoError(t, h.manager.RegisterExtension("", greeterDef("host", 0)))
	require.NoError(t, h.manager.RegisterExtension("p1", greeterDef("from-p1", 0)))
	require.NoError(t, h.manager.RegisterExtension("p2", greeterDef("from-p2", 0)))
	h.manager.StartPlugins()

	records, err := h.manager.PluginExtensions(PointName[greeter](), "p2")
	require.NoError(t, err)
	assert.Equal(t, []string{"from-p2"}, extensionNames(records))

	typed, err := PluginExtensionsOf[greeter](h.manager, "p1")
	require.NoError(t, err)
	require.Len(t, typed, 1)
	assert.Equal(t, "from-p1", typed[0].Greet())

	_, err = h.manager.PluginExtensions(PointName[greeter](), "ghost")
	assert.True(t, HasErrorCode(err, ErrCodeUnknownPlugin))
	_, err = PluginExtensionsOf[greeter](h.manager, "ghost")
	assert.True(t, HasErrorCode(err, ErrCodeUnknownPlugin))
}

func TestExtensions_DependencyCheckModes(t *testing.T) {
	tests := []struct {
		mode          string
		beforeStart   []string
		afterStart    []string
		checkAtFinish bool
	}{
		{"always", []string{"plain"}, []string{"plain"}, true},
		{"never", []string{"needs-cache", "plain"}, []string{"needs-cache", "plain"}, false},
		{"auto", []string{"needs-cache", "plain"}, []string{"plain"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			cfg := DefaultManagerConfig()
			cfg.Extensions.DependencyCheck = tt.mode
			h := newTestHost(t, cfg)

			h.mustLoad("cache", "1.0.0", "")
			h.mustLoad("app", "1.0.0", "cache?")
			_, err := h.manager.DisablePlugin("cache")
			require.NoError(t, err)
			require.NoError(t, h.manager.RegisterExtension("", greeterDef("needs-cache", 1, "cache")))
			require.NoError(t, h.manager.RegisterExtension("", greeterDef("plain", 2)))

			assert.Equal(t, tt.beforeStart, greetings(t, h.manager))

			_, err = h.manager.StartPlugin("app")
			require.NoError(t, err)
			assert.Equal(t, tt.afterStart, greetings(t, h.manager))
			assert.Equal(t, tt.checkAtFinish, h.manager.ExtensionDependencyCheck())
		})
	}
}

func TestExtensions_RequiredPluginStartedMakesExtensionVisible(t *testing.T) {
	cfg := DefaultManagerConfig()
	cfg.Extensions.DependencyCheck = string(DependencyCheckAlways)
	h := newTestHost(t, cfg)
	h.mustLoad("cache", "1.0.0", "")
	h.mustLoad("app", "1.0.0", "cache?")
	require.NoError(t, h.manager.RegisterExtension("app", greeterDef("cached-greeter", 0, "cache")))

	_, err := h.manager.StartPlugin("app")
	require.NoError(t, err)
	assert.Equal(t, []string{"cached-greeter"}, greetings(t, h.manager), "the optional dependency was started with app")

	_, err = h.manager.StopPlugin("cache")
	require.NoError(t, err)
	assert.Empty(t, greetings(t, h.manager))
}

func TestExtensionsOf_SkipsBrokenExtensions(t *testing.T) {
	h := newDefaultTestHost(t)
	point := PointName[greeter]()
	require.NoError(t, h.manager.RegisterExtension("", greeterDef("good", 0)))
	require.NoError(t, h.manager.RegisterExtension("", ExtensionDefinition{
		Name: "failing", Point: point,
		Factory: func() (any, error) { return nil, errBoom },
	}))
	require.NoError(t, h.manager.RegisterExtension("", ExtensionDefinition{
		Name: "panicking", Point: point,
		Factory: func() (any, error) { panic("no greeting today") },
	}))
	require.NoError(t, h.manager.RegisterExtension("", ExtensionDefinition{
		Name: "wrong-type", Point: point,
		Factory: func() (any, error) { return 42, nil },
	}))
	require.NoError(t, h.manager.RegisterExtension("", ExtensionDefinition{
		Name: "nil", Point: point,
		Factory: func() (any, error) { return nil, nil },
	}))

	assert.Equal(t, []string{"good"}, greetings(t, h.manager))
	assert.True(t, h.logger.HasMessage("ERROR", "Failed to create extension"))
	assert.True(t, h.logger.HasMessage("ERROR", "Extension does not implement its point"))

	records, err := h.manager.Extensions(point)
	require.NoError(t, err)
	require.Len(t, records, 5)
	for _, r := range records[1:4] {
		if r.Name() == "wrong-type" {
			continue
		}
		_, err := r.Instance()
		assert.True(t, HasErrorCode(err, ErrCodeExtensionError), "%s: %v", r.Name(), err)
	}
}

func TestExtensionRecord_InstanceIsCreatedOnce(t *testing.T) {
	var calls atomic.Int32
	def := ExtensionDefinition{
		Name: "counted", Point: "p",
		Factory: func() (any, error) {
			calls.Add(1)
			return staticGreeter("hi"), nil
		},
	}
	r := newExtensionRecord("", def, DefaultExtensionFactory{})
	first, err := r.Instance()
	require.NoError(t, err)
	second, err := r.Instance()
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), calls.Load())
	assert.Empty(t, r.RequiredPlugins())
}

func TestSingletonExtensionFactory(t *testing.T) {
	var calls atomic.Int32
	cfg := DefaultManagerConfig()
	cfg.Extensions.Singleton = true
	h := newTestHost(t, cfg)
	h.mustLoad("p1", "1.0.0", "")
	h.mustLoad("p2", "1.0.0", "")
	require.NoError(t, h.manager.RegisterExtension("p1", ExtensionDefinition{
		Name: "shared", Point: "counter",
		Factory: func() (any, error) {
			calls.Add(1)
			return staticGreeter("shared"), nil
		},
	}))
	h.manager.StartPlugins()

	instance := func() any {
		records, err := h.manager.Extensions("counter")
		require.NoError(t, err)
		require.Len(t, records, 1)
		v, err := records[0].Instance()
		require.NoError(t, err)
		return v
	}

	instance()
	h.manager.StopPlugin("p2")
	instance()
	assert.Equal(t, int32(1), calls.Load(), "instances survive unrelated state changes")

	h.manager.StopPlugin("p1")
	h.manager.StartPlugin("p1")
	instance()
	assert.Equal(t, int32(2), calls.Load(), "stopping the owner evicts its instances")
}

func TestSingletonExtensionFactory_Evict(t *testing.T) {
	f := NewSingletonExtensionFactory()
	def := greeterDef("a", 0)
	first, err := f.Create("p1", def)
	require.NoError(t, err)
	second, err := f.Create("p1", def)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.Cached())

	_, err = f.Create("p2", greeterDef("b", 0))
	require.NoError(t, err)
	assert.Equal(t, 1, f.Evict("p1"))
	assert.Equal(t, 0, f.Evict("p1"))
	assert.Equal(t, 1, f.Cached())
}

func TestExtensionCatalog_Register(t *testing.T) {
	c := NewExtensionCatalog()
	require.NoError(t, c.Register("p1", greeterDef("a", 0)))

	tests := []struct {
		name string
		def  ExtensionDefinition
	}{
		{"missing name", ExtensionDefinition{Point: "p", Factory: func() (any, error) { return 1, nil }}},
		{"missing point", ExtensionDefinition{Name: "x", Factory: func() (any, error) { return 1, nil }}},
		{"missing factory", ExtensionDefinition{Name: "x", Point: "p"}},
		{"duplicate", greeterDef("a", 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Register("p2", tt.def)
			assert.True(t, HasErrorCode(err, ErrCodeExtensionError), "got %v", err)
		})
	}

	def, owner, ok := c.Definition("a")
	require.True(t, ok)
	assert.Equal(t, "p1", owner)
	assert.Equal(t, "a", def.Name)

	host, err := c.HostCandidates()
	require.NoError(t, err)
	assert.Empty(t, host)
	names, err := c.PluginCandidates("p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, names)
}

func TestParseDependencyCheckMode(t *testing.T) {
	for input, want := range map[string]DependencyCheckMode{
		"":        DependencyCheckAuto,
		"auto":    DependencyCheckAuto,
		" ALWAYS": DependencyCheckAlways,
		"never":   DependencyCheckNever,
	} {
		got, err := ParseDependencyCheckMode(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got)
	}
	_, err := ParseDependencyCheckMode("maybe")
	assert.True(t, HasErrorCode(err, ErrCodeConfigValidationError))
}

func TestPointName(t *testing.T) {
	assert.Equal(t, "github.com/agilira/go-pluginhost.greeter", PointName[greeter]())
	assert.Equal(t, "error", PointName[error]())
	assert.Equal(t, "[]string", PointName[[]string]())
}

type failingSource struct{ host error }

func (s failingSource) HostCandidates() ([]string, error) { return nil, s.host }
func (s failingSource) PluginCandidates(id string) ([]string, error) {
	return nil, errBoom
}

func TestExtensions_DiscoveryFailures(t *testing.T) {
	h := newDefaultTestHost(t, WithDiscoverySource(failingSource{host: errBoom}))
	_, err := h.manager.Extensions("anything")
	assert.True(t, HasErrorCode(err, ErrCodeDiscoveryError), "got %v", err)

	h = newDefaultTestHost(t, WithDiscoverySource(failingSource{}))
	h.mustLoad("p1", "1.0.0", "")
	h.manager.StartPlugins()
	records, err := h.manager.Extensions("anything")
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.True(t, h.logger.HasMessage("ERROR", "Failed to list plugin extensions"))
}

func TestIndexDiscoverySource(t *testing.T) {
	root := t.TempDir()
	hostIndex := filepath.Join(root, "host", DefaultIndexFile)
	require.NoError(t, os.MkdirAll(filepath.Dir(hostIndex), 0o755))
	require.NoError(t, os.WriteFile(hostIndex, []byte("# host extensions\nhost-greeter\n\nunknown-name\n"), 0o644))

	pluginDir := filepath.Join(root, "plugins", "fancy")
	require.NoError(t, os.MkdirAll(pluginDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(pluginDir, DefaultIndexFile), []byte("fancy-greeter\n"), 0o644))

	cfg := DefaultManagerConfig()
	cfg.PluginsRoot = filepath.Join(root, "plugins")
	cfg.Extensions.IndexFile = hostIndex
	h := newTestHost(t, cfg)

	catalog := h.manager.Catalog()
	require.NoError(t, catalog.Register("", greeterDef("host-greeter", 2)))
	require.NoError(t, catalog.Register("fancy", greeterDef("fancy-greeter", 1)))
	require.NoError(t, catalog.Register("", greeterDef("not-indexed", 0)))

	_, err := h.manager.LoadPlugin(fakeDescriptor(t, "fancy", "1.0.0", ""), pluginDir)
	require.NoError(t, err)
	h.mustLoad("builtin", "1.0.0", "")
	h.manager.StartPlugins()

	assert.Equal(t, []string{"fancy-greeter", "host-greeter"}, greetings(t, h.manager))
	assert.True(t, h.logger.HasMessage("WARN", "Unknown extension candidate"))
}

func TestIndexDiscoverySource_MissingFiles(t *testing.T) {
	dir := t.TempDir()
	src := NewIndexDiscoverySource(filepath.Join(dir, "absent.idx"), func(id string) (string, bool) {
		return filepath.Join(dir, id), true
	})

	host, err := src.HostCandidates()
	require.NoError(t, err)
	assert.Empty(t, host)

	names, err := src.PluginCandidates("p1")
	require.NoError(t, err)
	assert.Empty(t, names)

	none := NewIndexDiscoverySource("", nil)
	host, err = none.HostCandidates()
	require.NoError(t, err)
	assert.Empty(t, host)
	names, err = none.PluginCandidates("p1")
	require.NoError(t, err)
	assert.Empty(t, names)
}
