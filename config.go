// config.go: Plugin manager configuration
//
// A ManagerConfig can be built in code, starting from DefaultManagerConfig,
// or loaded from a YAML, JSON, TOML or properties file with
// LoadManagerConfig.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Status store backends.
const (
	StatusBackendMemory = "memory"
	StatusBackendFile   = "file"
	StatusBackendBolt   = "bolt"
)

// DefaultStatusPollInterval is used when status.watch is on and no interval is set.
const DefaultStatusPollInterval = 2 * time.Second

// ManagerConfig configures a PluginManager.
type ManagerConfig struct {
	// PluginsRoot is the directory scanned by LoadPlugins.
	PluginsRoot string `json:"plugins_root" yaml:"plugins_root"`

	// SystemVersion is checked against each plugin's requires range.
	// "0.0.0" disables the check.
	SystemVersion string `json:"system_version" yaml:"system_version"`

	// ExactVersionAllowed makes a bare version constraint such as "1.2.3"
	// mean exactly that version instead of ">=1.2.3".
	ExactVersionAllowed bool `json:"exact_version_allowed" yaml:"exact_version_allowed"`

	// LoadingStrategy is handed to the isolation loader ("PDA", "plugin-application-dependencies", ...).
	LoadingStrategy string `json:"loading_strategy" yaml:"loading_strategy"`

	// ManifestNames are the file names tried inside each plugin directory.
	ManifestNames []string `json:"manifest_names,omitempty" yaml:"manifest_names,omitempty"`

	Status     StatusConfig     `json:"status" yaml:"status"`
	Extensions ExtensionsConfig `json:"extensions" yaml:"extensions"`
	Audit      AuditSettings    `json:"audit" yaml:"audit"`
}

// StatusConfig selects where enable/disable decisions are persisted.
type StatusConfig struct {
	// Backend is "memory", "file" or "bolt".
	Backend string `json:"backend" yaml:"backend"`

	// Path is the directory holding enabled.txt and disabled.txt for the
	// file backend, or the database file for the bolt backend. Relative
	// paths are resolved against PluginsRoot.
	Path string `json:"path" yaml:"path"`

	// Watch reloads the file backend when the lists change on disk.
	Watch bool `json:"watch" yaml:"watch"`

	// PollInterval is a duration string such as "2s".
	PollInterval string `json:"poll_interval" yaml:"poll_interval"`
}

// ExtensionsConfig configures the extension registry.
type ExtensionsConfig struct {
	// DependencyCheck is "auto", "always" or "never".
	DependencyCheck string `json:"dependency_check" yaml:"dependency_check"`

	// Singleton shares one instance per extension across queries.
	Singleton bool `json:"singleton" yaml:"singleton"`

	// IndexFile enables index based discovery. It names the host index
	// file; plugins are read from an index of the same base name in their
	// source directory.
	IndexFile string `json:"index_file" yaml:"index_file"`
}

// AuditSettings enables the audit trail of state transitions.
type AuditSettings struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	OutputFile string `json:"output_file" yaml:"output_file"`
}

// DefaultManagerConfig returns a configuration with an in-memory status
// store, the default loading strategy and the version check disabled.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		PluginsRoot:     "plugins",
		SystemVersion:   "0.0.0",
		LoadingStrategy: string(DefaultLoadingStrategy),
		ManifestNames:   append([]string(nil), DefaultManifestNames...),
		Status: StatusConfig{
			Backend: StatusBackendMemory,
		},
		Extensions: ExtensionsConfig{
			DependencyCheck: string(DependencyCheckAuto),
		},
	}
}

// ApplyDefaults fills every unset field.
func (c *ManagerConfig) ApplyDefaults() {
	defaults := DefaultManagerConfig()
	if c.PluginsRoot == "" {
		c.PluginsRoot = defaults.PluginsRoot
	}
	if c.SystemVersion == "" {
		c.SystemVersion = defaults.SystemVersion
	}
	if c.LoadingStrategy == "" {
		c.LoadingStrategy = defaults.LoadingStrategy
	}
	if len(c.ManifestNames) == 0 {
		c.ManifestNames = defaults.ManifestNames
	}
	if c.Status.Backend == "" {
		c.Status.Backend = defaults.Status.Backend
	}
	if c.Status.Watch && c.Status.PollInterval == "" {
		c.Status.PollInterval = DefaultStatusPollInterval.String()
	}
	if c.Extensions.DependencyCheck == "" {
		c.Extensions.DependencyCheck = defaults.Extensions.DependencyCheck
	}
	if c.Audit.Enabled && c.Audit.OutputFile == "" {
		c.Audit.OutputFile = "pluginhost-audit.jsonl"
	}
}

// Validate checks the configuration. Call ApplyDefaults first when loading
// partial configurations.
func (c *ManagerConfig) Validate() error {
	if c.SystemVersion != "" && c.SystemVersion != AnyVersion {
		if _, err := ParseVersion(c.SystemVersion); err != nil {
			return NewConfigValidationError("invalid system_version " + c.SystemVersion)
		}
	}
	if _, err := ParseLoadingStrategy(c.LoadingStrategy); err != nil {
		return err
	}

	switch c.Status.Backend {
	case "", StatusBackendMemory:
	case StatusBackendFile, StatusBackendBolt:
		if c.Status.Path == "" && c.PluginsRoot == "" {
			return NewConfigValidationError("status.path is required for the " + c.Status.Backend + " backend")
		}
	default:
		return NewConfigValidationError(fmt.Sprintf("unknown status backend %q (want memory, file or bolt)", c.Status.Backend))
	}
	if c.Status.Watch && c.Status.Backend != StatusBackendFile {
		return NewConfigValidationError("status.watch is only supported by the file backend")
	}
	if _, err := c.Status.pollInterval(); err != nil {
		return err
	}

	if _, err := ParseDependencyCheckMode(c.Extensions.DependencyCheck); err != nil {
		return err
	}
	if c.Audit.Enabled && c.Audit.OutputFile == "" {
		return NewConfigValidationError("audit.output_file is required when audit is enabled")
	}
	return nil
}

func (s StatusConfig) pollInterval() (time.Duration, error) {
	if strings.TrimSpace(s.PollInterval) == "" {
		return DefaultStatusPollInterval, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(s.PollInterval))
	if err != nil || d <= 0 {
		return 0, NewConfigValidationError("invalid status.poll_interval " + s.PollInterval)
	}
	return d, nil
}

// LoadManagerConfig reads a configuration file, expands ${VAR}
// placeholders, applies PLUGINHOST_* overrides and defaults, then validates
// the result.
func LoadManagerConfig(path string) (ManagerConfig, error) {
	var config ManagerConfig

	data, format, err := readDocument(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, NewConfigNotFoundError(path)
		}
		return config, NewConfigParseError(path, err)
	}
	if err := decodeDocument(data, format, &config); err != nil {
		return config, NewConfigParseError(path, err)
	}

	if err := expandConfigStrings(&config, DefaultEnvConfigOptions()); err != nil {
		return config, err
	}
	if err := applyEnvOverrides(&config); err != nil {
		return config, err
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}
