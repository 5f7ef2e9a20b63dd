// plugins.go: list, order and deps commands
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List plugins with their version and state",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := openManager()
			if err != nil {
				return err
			}
			defer manager.Close()

			records := manager.Plugins()
			if len(records) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No plugins found under %s\n", config.PluginsRoot)
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tVERSION\tSTATE\tSOURCE")
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.ID(), r.Version(), r.State(), r.Source())
			}
			return w.Flush()
		},
	}
}

func newOrderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "order",
		Short: "Print the dependency resolution order",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := openManager()
			if err != nil {
				return err
			}
			defer manager.Close()

			out := cmd.OutOrStdout()
			result := manager.Resolution()
			if !result.HasErrors() {
				for i, id := range result.SortedPlugins {
					fmt.Fprintf(out, "%d. %s\n", i+1, id)
				}
				return nil
			}

			if result.CyclicDependency {
				fmt.Fprintf(out, "Cyclic dependency: %s\n", strings.Join(result.CyclePlugins, ", "))
			}
			if len(result.NotFoundDependencies) > 0 {
				fmt.Fprintf(out, "Missing dependencies: %s\n", strings.Join(result.NotFoundDependencies, ", "))
			}
			for _, v := range result.WrongVersionDependencies {
				fmt.Fprintf(out, "Version mismatch: %s\n", v)
			}
			return result.Err()
		},
	}
}

func newDepsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deps <plugin-id>",
		Short: "Show the dependencies and dependents of a plugin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := openManager()
			if err != nil {
				return err
			}
			defer manager.Close()

			id := args[0]
			record, ok := manager.Plugin(id)
			if !ok {
				return fmt.Errorf("plugin %s not found", id)
			}
			dependencies, err := manager.Dependencies(id)
			if err != nil {
				return err
			}
			dependents, err := manager.Dependents(id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s@%s (%s)\n", record.ID(), record.Version(), record.State())
			for _, dep := range record.Descriptor().Dependencies {
				if dep.Optional {
					fmt.Fprintf(out, "  optional: %s\n", dep)
				}
			}
			fmt.Fprintf(out, "  depends on: %s\n", joinOrNone(dependencies))
			fmt.Fprintf(out, "  required by: %s\n", joinOrNone(dependents))
			return nil
		},
	}
}

func joinOrNone(ids []string) string {
	if len(ids) == 0 {
		return "(none)"
	}
	return strings.Join(ids, ", ")
}
