package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dendrascience/transfs/store"
)

// NewBackupCmd creates and returns the backup subcommand, a one-shot
// snapshot of a table file that is not mounted.
func NewBackupCmd() *cobra.Command {
	var keep int

	cmd := &cobra.Command{
		Use:   "backup DB_FILE BACKUP_DIR",
		Short: "Snapshot a table file into a backup directory",
		Long: `Write a consistent copy of DB_FILE into BACKUP_DIR and prune old copies.

For a table in use by a running mount, use 'translate backup' instead.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openReadOnly(args[0])
			if err != nil {
				return err
			}
			defer st.Close()

			p, err := st.Backup(args[1])
			if err != nil {
				return err
			}
			removed, err := store.PruneBackups(args[1], keep)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), p)
			if len(removed) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "pruned %d old backups\n", len(removed))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&keep, "keep", 24, "Number of backups to keep, 0 keeps all")

	return cmd
}
