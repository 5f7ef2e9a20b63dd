// status.go: enable, disable and check commands
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"fmt"

	pluginhost "github.com/agilira/go-pluginhost"
	"github.com/spf13/cobra"
)

func newDisableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disable <plugin-id>",
		Short: "Disable a plugin and persist the decision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := openManager()
			if err != nil {
				return err
			}
			defer manager.Close()

			if _, err := manager.DisablePlugin(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s disabled (%s store)\n", args[0], config.Status.Backend)
			return nil
		},
	}
}

func newEnableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enable <plugin-id>",
		Short: "Enable a disabled plugin and persist the decision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := openManager()
			if err != nil {
				return err
			}
			defer manager.Close()

			if _, err := manager.EnablePlugin(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s enabled (%s store)\n", args[0], config.Status.Backend)
			return nil
		},
	}
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <version> <constraint>",
		Short: "Check whether a version satisfies a constraint",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			versions := pluginhost.NewVersionManager(config.ExactVersionAllowed)
			ok, err := versions.Satisfies(args[0], args[1])
			if err != nil {
				return err
			}
			if ok {
				fmt.Fprintf(cmd.OutOrStdout(), "%s satisfies %s\n", args[0], args[1])
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s does not satisfy %s\n", args[0], args[1])
			return fmt.Errorf("constraint not satisfied")
		},
	}
}
