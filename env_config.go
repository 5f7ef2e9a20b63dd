// env_config.go: Environment variable expansion and overrides for ManagerConfig
//
// String fields of a loaded configuration may reference ${VAR} or
// ${VAR:-default}. After expansion, PLUGINHOST_* variables override
// individual fields.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// EnvPrefix is tried before the bare variable name during expansion and
// prefixes every override variable.
const EnvPrefix = "PLUGINHOST_"

const maxEnvValueLength = 4096

var envVariablePattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// EnvConfigOptions controls placeholder expansion.
type EnvConfigOptions struct {
	// Prefix is tried before the bare name ("PLUGINHOST_").
	Prefix string `json:"prefix" yaml:"prefix"`

	// FailOnMissing turns an unresolvable placeholder into an error instead
	// of an empty string.
	FailOnMissing bool `json:"fail_on_missing" yaml:"fail_on_missing"`

	// ValidateValues rejects values with null bytes, control characters or
	// excessive length.
	ValidateValues bool `json:"validate_values" yaml:"validate_values"`

	// Defaults apply when neither the environment nor an inline default
	// provides a value.
	Defaults map[string]string `json:"defaults,omitempty" yaml:"defaults,omitempty"`
}

// DefaultEnvConfigOptions returns the options LoadManagerConfig uses.
func DefaultEnvConfigOptions() EnvConfigOptions {
	return EnvConfigOptions{
		Prefix:         EnvPrefix,
		ValidateValues: true,
	}
}

// ExpandEnvironmentVariables replaces every ${VAR} and ${VAR:-default} in
// input. A variable resolves from, in order: the prefixed environment
// variable, the bare environment variable, the inline default, then
// options.Defaults.
func ExpandEnvironmentVariables(input string, options EnvConfigOptions) (string, error) {
	if !strings.Contains(input, "${") {
		return input, nil
	}

	var firstErr error
	result := envVariablePattern.ReplaceAllStringFunc(input, func(match string) string {
		sub := envVariablePattern.FindStringSubmatch(match)
		value, err := lookupEnvironmentVariable(sub[1], sub[3], options)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return match
		}
		return value
	})
	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

func lookupEnvironmentVariable(name, inlineDefault string, options EnvConfigOptions) (string, error) {
	if options.Prefix != "" {
		if value, ok := os.LookupEnv(options.Prefix + name); ok && value != "" {
			return sanitizeEnvValue(name, value, options)
		}
	}
	if value, ok := os.LookupEnv(name); ok && value != "" {
		return sanitizeEnvValue(name, value, options)
	}
	if inlineDefault != "" {
		return sanitizeEnvValue(name, inlineDefault, options)
	}
	if value, ok := options.Defaults[name]; ok {
		return sanitizeEnvValue(name, value, options)
	}
	if options.FailOnMissing {
		return "", NewConfigValidationError(fmt.Sprintf("required environment variable not found: %s", name))
	}
	return "", nil
}

func sanitizeEnvValue(name, value string, options EnvConfigOptions) (string, error) {
	if !options.ValidateValues {
		return value, nil
	}
	if strings.ContainsRune(value, 0) {
		return "", NewConfigValidationError(fmt.Sprintf("environment variable %s contains a null byte", name))
	}
	if len(value) > maxEnvValueLength {
		return "", NewConfigValidationError(fmt.Sprintf("environment variable %s is too long: %d bytes (max %d)", name, len(value), maxEnvValueLength))
	}
	for i, r := range value {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return "", NewConfigValidationError(fmt.Sprintf("environment variable %s contains a control character at position %d", name, i))
		}
	}
	return value, nil
}

// expandConfigStrings expands placeholders in every string field of config.
func expandConfigStrings(config *ManagerConfig, options EnvConfigOptions) error {
	fields := []*string{
		&config.PluginsRoot,
		&config.SystemVersion,
		&config.LoadingStrategy,
		&config.Status.Backend,
		&config.Status.Path,
		&config.Status.PollInterval,
		&config.Extensions.DependencyCheck,
		&config.Extensions.IndexFile,
		&config.Audit.OutputFile,
	}
	for _, field := range fields {
		expanded, err := ExpandEnvironmentVariables(*field, options)
		if err != nil {
			return err
		}
		*field = expanded
	}
	for i, name := range config.ManifestNames {
		expanded, err := ExpandEnvironmentVariables(name, options)
		if err != nil {
			return err
		}
		config.ManifestNames[i] = expanded
	}
	return nil
}

// applyEnvOverrides sets fields from PLUGINHOST_* variables. Boolean
// variables that do not parse are reported as validation errors.
func applyEnvOverrides(config *ManagerConfig) error {
	textFields := map[string]*string{
		"PLUGINS_ROOT":                &config.PluginsRoot,
		"SYSTEM_VERSION":              &config.SystemVersion,
		"LOADING_STRATEGY":            &config.LoadingStrategy,
		"STATUS_BACKEND":              &config.Status.Backend,
		"STATUS_PATH":                 &config.Status.Path,
		"STATUS_POLL_INTERVAL":        &config.Status.PollInterval,
		"EXTENSIONS_DEPENDENCY_CHECK": &config.Extensions.DependencyCheck,
		"EXTENSIONS_INDEX_FILE":       &config.Extensions.IndexFile,
		"AUDIT_OUTPUT_FILE":           &config.Audit.OutputFile,
	}
	for key, field := range textFields {
		if value, ok := os.LookupEnv(EnvPrefix + key); ok {
			*field = value
		}
	}

	flagFields := map[string]*bool{
		"EXACT_VERSION_ALLOWED": &config.ExactVersionAllowed,
		"STATUS_WATCH":          &config.Status.Watch,
		"EXTENSIONS_SINGLETON":  &config.Extensions.Singleton,
		"AUDIT_ENABLED":         &config.Audit.Enabled,
	}
	for key, field := range flagFields {
		value, ok := os.LookupEnv(EnvPrefix + key)
		if !ok {
			continue
		}
		parsed, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return NewConfigValidationError(fmt.Sprintf("%s%s must be a boolean, got %q", EnvPrefix, key, value))
		}
		*field = parsed
	}

	if value, ok := os.LookupEnv(EnvPrefix + "MANIFEST_NAMES"); ok {
		var names []string
		for _, name := range strings.Split(value, ",") {
			if name = strings.TrimSpace(name); name != "" {
				names = append(names, name)
			}
		}
		config.ManifestNames = names
	}
	return nil
}
