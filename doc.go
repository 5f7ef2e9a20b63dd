// Package pluginhost is an in-process plugin management core for Go
// applications. It orders plugins by their declared dependencies, drives
// each one through its lifecycle and exposes the extensions they contribute.
//
// Key Features:
//   - Version ranges with caret, tilde, x-range and comparison operators
//   - Dependency resolution with cycle, missing and version mismatch reports
//   - Lifecycle with cascading start, stop, disable, unload and delete
//   - Extension registry ordered by ordinal, gated by plugin state
//   - Synchronous state events, channel listeners and an audit trail
//   - Enable/disable decisions persisted in memory, text files or bolt
//
// Basic Usage:
//
//	loader := pluginhost.NewFactoryLoader(nil)
//	loader.RegisterFactory("greeter", func(d *pluginhost.PluginDescriptor) (pluginhost.Plugin, error) {
//		return &Greeter{}, nil
//	})
//
//	manager, err := pluginhost.NewPluginManager(pluginhost.DefaultManagerConfig(),
//		pluginhost.WithIsolationLoader(loader))
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer manager.Close()
//
//	manager.LoadPlugin(&pluginhost.PluginDescriptor{ID: "greeter", Version: "1.0.0"}, "")
//	manager.StartPlugins()
//
//	greeters, err := pluginhost.ExtensionsOf[Greeting](manager)
//
// Plugins found on disk are described by a manifest (plugin.yaml,
// plugin.json, plugin.toml or plugin.properties) and loaded with
// LoadPlugins from the configured plugins root. Dependencies use the
// compact form "id[@range][?]", where a trailing '?' marks the dependency
// optional.
//
// Copyright (c) 2025 AGILira - A. Giordano
// SPDX-License-Identifier: MPL-2.0
package pluginhost
