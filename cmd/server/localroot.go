package main

import (
	"fmt"

	"github.com/linkfinder/backend/internal/prefs"
	"github.com/spf13/cobra"
)

var localRootCmd = &cobra.Command{
	Use:   "root",
	Short: "Manage the persisted local root used for copyable paths",
}

var localRootGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the local root",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPrefs(func(store prefs.Store) error {
			root, err := prefs.LocalRoot(cmd.Context(), store)
			if err != nil {
				return err
			}
			if root == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "(not set)")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), root)
			return nil
		})
	},
}

var localRootSetCmd = &cobra.Command{
	Use:   "set <path>",
	Short: "Store the local root",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPrefs(func(store prefs.Store) error {
			if err := prefs.SetLocalRoot(cmd.Context(), store, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "local root set to %s\n", args[0])
			return nil
		})
	},
}

var localRootClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the local root",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPrefs(func(store prefs.Store) error {
			if err := prefs.SetLocalRoot(cmd.Context(), store, ""); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "local root cleared")
			return nil
		})
	},
}

func init() {
	localRootCmd.AddCommand(localRootGetCmd, localRootSetCmd, localRootClearCmd)
}

func withPrefs(fn func(store prefs.Store) error) error {
	store, err := openPrefs()
	if err != nil {
		return fmt.Errorf("failed to open preferences: %w", err)
	}
	defer store.Close()
	return fn(store)
}
