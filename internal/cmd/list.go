package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/boltdb/bolt"
	"github.com/spf13/cobra"

	"github.com/dendrascience/transfs/store"
)

// NewListCmd creates and returns the list subcommand. It reads a table file
// or a backup of one without a running mount.
func NewListCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list DB_FILE",
		Short: "List the translations stored in a table file or backup",
		Long: `List the translations stored in DB_FILE.

DB_FILE may be a live table or any backup of one. A table in use by a
running mount is locked; use 'translate list' for those.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openReadOnly(args[0])
			if err != nil {
				return err
			}
			defer st.Close()

			entries, err := st.List()
			if err != nil {
				return err
			}
			return printEntries(cmd.OutOrStdout(), entries, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the list_translations JSON document")

	return cmd
}

func openReadOnly(path string) (*store.Store, error) {
	st, err := store.Open(path, store.Options{ReadOnly: true, Timeout: 2 * time.Second})
	if errors.Is(err, bolt.ErrTimeout) {
		return nil, fmt.Errorf("%w (is it mounted? try 'transfs translate')", err)
	}
	return st, err
}
