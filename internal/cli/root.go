// root.go: pluginctl root command and shared setup
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"os"

	pluginhost "github.com/agilira/go-pluginhost"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string

	// loaded by PersistentPreRunE
	config pluginhost.ManagerConfig
	log    *pluginhost.ZerologAdapter
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pluginctl",
		Short: "Inspect and manage plugins of a pluginhost installation",
		Long:  "pluginctl loads the plugins found under the configured plugins root, reports their resolution and lifecycle state, and persists enable/disable decisions.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := logLevel
			if level == "" {
				level = "warn"
			}
			log = pluginhost.NewConsoleLogger(os.Stderr, level)

			if cfgFile == "" {
				config = pluginhost.DefaultManagerConfig()
				return nil
			}
			var err error
			config, err = pluginhost.LoadManagerConfig(cfgFile)
			return err
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json, toml or properties)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error, silent)")

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newOrderCmd())
	cmd.AddCommand(newDepsCmd())
	cmd.AddCommand(newDisableCmd())
	cmd.AddCommand(newEnableCmd())
	cmd.AddCommand(newCheckCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}

// openManager creates a manager from the loaded configuration and loads
// every plugin under the plugins root. A resolution failure is logged and
// the manager is still returned.
func openManager() (*pluginhost.PluginManager, error) {
	manager, err := pluginhost.NewPluginManager(config, pluginhost.WithLogger(log))
	if err != nil {
		return nil, err
	}
	if _, err := manager.LoadPlugins(); err != nil {
		log.Warn("Plugins could not be resolved", "error", err)
	}
	return manager, nil
}
