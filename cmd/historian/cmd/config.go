package cmd

import (
	"fmt"

	"github.com/historian-labs/historian/internal/config"
	"github.com/spf13/cobra"
)

// newConfigCmd groups the commands that manage the on-disk user config file
// itself, as distinct from the config that `historian` loads and runs with.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Back up, list, or restore the user config file",
	}
	cmd.AddCommand(newConfigBackupCmd(), newConfigListBackupsCmd(), newConfigRestoreCmd())
	return cmd
}

func newConfigBackupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Snapshot the current user config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.BackupUserConfig()
			if err != nil {
				return fmt.Errorf("backup config: %w", err)
			}
			if path == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "no user config file to back up")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func newConfigListBackupsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-backups",
		Short: "List config backups, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backups, err := config.ListUserConfigBackups()
			if err != nil {
				return fmt.Errorf("list config backups: %w", err)
			}
			w := cmd.OutOrStdout()
			if len(backups) == 0 {
				fmt.Fprintln(w, "no config backups found")
				return nil
			}
			for _, b := range backups {
				fmt.Fprintln(w, b)
			}
			return nil
		},
	}
}

func newConfigRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <backup-path>",
		Short: "Restore the user config from a backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.RestoreUserConfig(args[0]); err != nil {
				return fmt.Errorf("restore config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored config from %s\n", args[0])
			return nil
		},
	}
}
