// plugin.go: Core plugin interfaces
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

// Plugin is the entry point of a loaded plugin.
//
// Start and Stop are invoked by the lifecycle controller when the plugin
// enters and leaves the Started state. Delete is invoked once, after the
// plugin was unloaded and right before its artifact is removed.
type Plugin interface {
	Start() error
	Stop() error
	Delete() error
}

// BasePlugin is an embeddable Plugin with no-op lifecycle hooks.
//
//	type Greeter struct {
//	    pluginhost.BasePlugin
//	}
//
//	func (g *Greeter) Start() error { ... }
type BasePlugin struct {
	Descriptor *PluginDescriptor
}

func (b *BasePlugin) Start() error  { return nil }
func (b *BasePlugin) Stop() error   { return nil }
func (b *BasePlugin) Delete() error { return nil }

// PluginFactory creates the entry point of a plugin from its descriptor.
type PluginFactory func(descriptor *PluginDescriptor) (Plugin, error)
