// errors.go: structured error definitions for the plugin host
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	stderrors "errors"

	"github.com/agilira/go-errors"
)

// Error codes for the plugin host
const (
	// Registry errors (1000-1099)
	ErrCodeAlreadyLoaded      = "PLUGIN_1001"
	ErrCodeUnknownPlugin      = "PLUGIN_1002"
	ErrCodeInvalidDescriptor  = "PLUGIN_1003"
	ErrCodeInvalidDependency  = "PLUGIN_1004"
	ErrCodeManifestError      = "PLUGIN_1005"
	ErrCodeDescriptorNotFound = "PLUGIN_1006"

	// Resolution errors (1100-1199)
	ErrCodeCyclicDependency          = "RESOLVE_1101"
	ErrCodeDependencyNotFound        = "RESOLVE_1102"
	ErrCodeDependencyVersionMismatch = "RESOLVE_1103"
	ErrCodeGraphNotResolved          = "RESOLVE_1104"

	// Version errors (1200-1299)
	ErrCodeInvalidVersion    = "VERSION_1201"
	ErrCodeInvalidConstraint = "VERSION_1202"

	// Lifecycle errors (1300-1399)
	ErrCodeActivationFault     = "LIFECYCLE_1301"
	ErrCodePluginNotResolved   = "LIFECYCLE_1302"
	ErrCodeEnableRejected      = "LIFECYCLE_1303"
	ErrCodePluginStillStarted  = "LIFECYCLE_1304"
	ErrCodeDependencyNotActive = "LIFECYCLE_1305"

	// Isolation and storage errors (1400-1499)
	ErrCodeIsolationError  = "ISOLATION_1401"
	ErrCodeStatusStore     = "STORE_1402"
	ErrCodeRepositoryError = "STORE_1403"

	// Extension errors (1500-1599)
	ErrCodeExtensionError = "EXTENSION_1501"
	ErrCodeDiscoveryError = "EXTENSION_1502"

	// Configuration management errors (1700-1799)
	ErrCodeConfigNotFound        = "CONFIG_1701"
	ErrCodeConfigParseError      = "CONFIG_1702"
	ErrCodeConfigValidationError = "CONFIG_1703"
	ErrCodeAuditError            = "CONFIG_1704"
)

// Registry error constructors

func NewAlreadyLoadedError(pluginID, source string) *errors.Error {
	return errors.New(ErrCodeAlreadyLoaded, "Plugin already loaded").
		WithUserMessage("A plugin with the same id or source location is already loaded").
		WithContext("plugin_id", pluginID).
		WithContext("source", source).
		WithSeverity("error")
}

func NewUnknownPluginError(pluginID string) *errors.Error {
	return errors.New(ErrCodeUnknownPlugin, "Unknown plugin").
		WithUserMessage("No plugin is registered with the given id").
		WithContext("plugin_id", pluginID).
		WithSeverity("error")
}

func NewInvalidDescriptorError(pluginID, message string) *errors.Error {
	return errors.New(ErrCodeInvalidDescriptor, "Invalid plugin descriptor: "+message).
		WithUserMessage("Plugin metadata is incomplete or malformed").
		WithContext("plugin_id", pluginID).
		WithSeverity("error")
}

func NewInvalidDependencyError(text string, cause error) *errors.Error {
	if cause != nil {
		return errors.Wrap(cause, ErrCodeInvalidDependency, "Invalid dependency declaration").
			WithUserMessage("Dependency must be written as id[@range][?]").
			WithContext("dependency", text).
			WithSeverity("error")
	}
	return errors.New(ErrCodeInvalidDependency, "Invalid dependency declaration").
		WithUserMessage("Dependency must be written as id[@range][?]").
		WithContext("dependency", text).
		WithSeverity("error")
}

func NewManifestError(path string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeManifestError, "Failed to read plugin manifest").
		WithUserMessage("The plugin manifest could not be parsed").
		WithContext("path", path).
		WithSeverity("error")
}

func NewDescriptorNotFoundError(path string) *errors.Error {
	return errors.New(ErrCodeDescriptorNotFound, "No plugin manifest found").
		WithUserMessage("The plugin location does not contain a known manifest file").
		WithContext("path", path).
		WithSeverity("warning")
}

// Resolution error constructors

func NewCyclicDependencyError(pluginIDs []string) *errors.Error {
	return errors.New(ErrCodeCyclicDependency, "Cyclic plugin dependency").
		WithUserMessage("Plugins depend on each other in a cycle and cannot be ordered").
		WithContext("plugin_ids", pluginIDs).
		WithSeverity("error")
}

func NewDependencyNotFoundError(dependencyIDs []string) *errors.Error {
	return errors.New(ErrCodeDependencyNotFound, "Dependencies not found").
		WithUserMessage("One or more required plugins are not loaded").
		WithContext("dependency_ids", dependencyIDs).
		WithSeverity("error")
}

func NewDependencyVersionMismatchError(violations []WrongDependencyVersion) *errors.Error {
	return errors.New(ErrCodeDependencyVersionMismatch, "Dependency version mismatch").
		WithUserMessage("One or more installed plugins do not satisfy a declared version range").
		WithContext("violations", violations).
		WithSeverity("error")
}

func NewGraphNotResolvedError() *errors.Error {
	return errors.New(ErrCodeGraphNotResolved, "Dependency graph not resolved").
		WithUserMessage("Dependencies can only be queried after a resolution pass").
		WithSeverity("error")
}

// Version error constructors

func NewInvalidVersionError(version string, cause error) *errors.Error {
	if cause != nil {
		return errors.Wrap(cause, ErrCodeInvalidVersion, "Invalid version").
			WithUserMessage("Version must look like MAJOR[.MINOR[.PATCH]][-PRERELEASE][+BUILD]").
			WithContext("version", version).
			WithSeverity("error")
	}
	return errors.New(ErrCodeInvalidVersion, "Invalid version").
		WithUserMessage("Version must look like MAJOR[.MINOR[.PATCH]][-PRERELEASE][+BUILD]").
		WithContext("version", version).
		WithSeverity("error")
}

func NewInvalidConstraintError(constraint, message string) *errors.Error {
	return errors.New(ErrCodeInvalidConstraint, "Invalid version constraint: "+message).
		WithUserMessage("The version range expression could not be parsed").
		WithContext("constraint", constraint).
		WithSeverity("error")
}

// Lifecycle error constructors

func NewActivationFaultError(pluginID, phase string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeActivationFault, "Plugin "+phase+" failed").
		WithUserMessage("The plugin raised an error during "+phase).
		WithContext("plugin_id", pluginID).
		WithContext("phase", phase).
		WithSeverity("error")
}

func NewPluginNotResolvedError(pluginID string, state PluginState) *errors.Error {
	return errors.New(ErrCodePluginNotResolved, "Plugin not resolved").
		WithUserMessage("Only resolved plugins can be started").
		WithContext("plugin_id", pluginID).
		WithContext("state", state.String()).
		WithSeverity("error")
}

func NewEnableRejectedError(pluginID, requires, systemVersion string) *errors.Error {
	return errors.New(ErrCodeEnableRejected, "Plugin cannot be enabled").
		WithUserMessage("The plugin does not accept the running system version").
		WithContext("plugin_id", pluginID).
		WithContext("requires", requires).
		WithContext("system_version", systemVersion).
		WithSeverity("error")
}

func NewPluginStillStartedError(pluginID string) *errors.Error {
	return errors.New(ErrCodePluginStillStarted, "Plugin still started").
		WithUserMessage("The plugin could not be stopped and was left in place").
		WithContext("plugin_id", pluginID).
		WithSeverity("error")
}

func NewDependencyNotActiveError(pluginID, dependencyID string, state PluginState) *errors.Error {
	return errors.New(ErrCodeDependencyNotActive, "Required dependency not started").
		WithUserMessage("A required dependency is not running").
		WithContext("plugin_id", pluginID).
		WithContext("dependency_id", dependencyID).
		WithContext("dependency_state", state.String()).
		WithSeverity("error")
}

// Isolation and storage error constructors

func NewIsolationError(pluginID, message string, cause error) *errors.Error {
	if cause == nil {
		return errors.New(ErrCodeIsolationError, "Isolation error: "+message).
			WithUserMessage("Plugin isolation unit failed").
			WithContext("plugin_id", pluginID).
			WithSeverity("error")
	}
	return errors.Wrap(cause, ErrCodeIsolationError, "Isolation error: "+message).
		WithUserMessage("Plugin isolation unit failed").
		WithContext("plugin_id", pluginID).
		WithSeverity("error")
}

func NewStatusStoreError(message string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeStatusStore, "Status store error: "+message).
		WithUserMessage("Plugin enable/disable state could not be persisted").
		WithSeverity("error").
		AsRetryable()
}

func NewRepositoryError(path, message string, cause error) *errors.Error {
	if cause == nil {
		return errors.New(ErrCodeRepositoryError, "Repository error: "+message).
			WithUserMessage("Plugin repository operation failed").
			WithContext("path", path).
			WithSeverity("error")
	}
	return errors.Wrap(cause, ErrCodeRepositoryError, "Repository error: "+message).
		WithUserMessage("Plugin repository operation failed").
		WithContext("path", path).
		WithSeverity("error")
}

// Extension error constructors

func NewExtensionError(name, message string, cause error) *errors.Error {
	if cause == nil {
		return errors.New(ErrCodeExtensionError, "Extension error: "+message).
			WithUserMessage("Extension could not be materialized").
			WithContext("extension", name).
			WithSeverity("warning")
	}
	return errors.Wrap(cause, ErrCodeExtensionError, "Extension error: "+message).
		WithUserMessage("Extension could not be materialized").
		WithContext("extension", name).
		WithSeverity("warning")
}

func NewDiscoveryError(message string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeDiscoveryError, "Discovery error: "+message).
		WithUserMessage("Extension discovery failed").
		WithSeverity("warning")
}

// Configuration management error constructors

func NewConfigNotFoundError(path string) *errors.Error {
	return errors.New(ErrCodeConfigNotFound, "Configuration file not found").
		WithUserMessage("The specified configuration file could not be found").
		WithContext("config_path", path).
		WithSeverity("error")
}

func NewConfigParseError(path string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeConfigParseError, "Failed to parse configuration").
		WithUserMessage("Configuration file contains invalid syntax").
		WithContext("config_path", path).
		WithSeverity("error")
}

func NewConfigValidationError(message string) *errors.Error {
	return errors.New(ErrCodeConfigValidationError, "Configuration validation failed: "+message).
		WithUserMessage("Configuration contains invalid values").
		WithSeverity("error")
}

func NewAuditError(message string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeAuditError, "Audit error: "+message).
		WithUserMessage("Audit logging failed").
		WithSeverity("warning")
}

// HasErrorCode reports whether err is a structured plugin host error with the given code.
func HasErrorCode(err error, code errors.ErrorCode) bool {
	var hostErr *errors.Error
	if !stderrors.As(err, &hostErr) {
		return false
	}
	return hostErr.Code == code
}

// WrongVersionsFromError extracts the version violations carried by a
// DependencyVersionMismatch error.
func WrongVersionsFromError(err error) []WrongDependencyVersion {
	var hostErr *errors.Error
	if !stderrors.As(err, &hostErr) || hostErr.Code != ErrCodeDependencyVersionMismatch {
		return nil
	}
	violations, _ := hostErr.Context["violations"].([]WrongDependencyVersion)
	return violations
}

// MissingDependenciesFromError extracts the dependency ids carried by a
// DependencyNotFound error.
func MissingDependenciesFromError(err error) []string {
	var hostErr *errors.Error
	if !stderrors.As(err, &hostErr) || hostErr.Code != ErrCodeDependencyNotFound {
		return nil
	}
	ids, _ := hostErr.Context["dependency_ids"].([]string)
	return ids
}
