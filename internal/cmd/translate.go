package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dendrascience/transfs/api"
	"github.com/dendrascience/transfs/store"
)

// NewTranslateCmd creates and returns the translate subcommand, which talks
// to the control interface of a running mount.
func NewTranslateCmd() *cobra.Command {
	var server string

	cmd := &cobra.Command{
		Use:   "translate",
		Short: "Change the translations of a running mount",
		Long: `Add, remove, look up and list translations through the HTTP control
interface of a running mount. Changes take effect immediately.`,
	}
	cmd.PersistentFlags().StringVarP(&server, "server", "s", "localhost:6000", "Address of the control interface")

	client := func() *api.Client { return api.NewClient(server) }

	addCmd := &cobra.Command{
		Use:   "add ORIGINAL TRANSLATED",
		Short: "Serve TRANSLATED at the path ORIGINAL",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client().Add(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", args[0], args[1])
			return nil
		},
	}

	removeCmd := &cobra.Command{
		Use:   "remove ORIGINAL",
		Short: "Remove the translation of ORIGINAL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client().Remove(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
			return nil
		},
	}

	lookupCmd := &cobra.Command{
		Use:   "lookup ORIGINAL",
		Short: "Print the translation of ORIGINAL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := client().Lookup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), p)
			return nil
		},
	}

	var asJSON bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List every translation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := client().List(cmd.Context())
			if err != nil {
				return err
			}
			return printEntries(cmd.OutOrStdout(), entries, asJSON)
		},
	}
	listCmd.Flags().BoolVar(&asJSON, "json", false, "Print the list_translations JSON document")

	backupCmd := &cobra.Command{
		Use:   "backup",
		Short: "Snapshot the table of the running mount",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := client().Backup(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), p)
			return nil
		},
	}

	cmd.AddCommand(addCmd, removeCmd, lookupCmd, listCmd, backupCmd)
	return cmd
}

// printEntries writes entries one per line, or as the document served by
// GET /list_translations, which import reads back.
func printEntries(w io.Writer, entries []store.Entry, asJSON bool) error {
	if asJSON {
		doc := api.ListResponse{Translations: make([][2]string, 0, len(entries))}
		for _, e := range entries {
			doc.Translations = append(doc.Translations, [2]string{e.Original, e.Translated})
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	}
	for _, e := range entries {
		fmt.Fprintf(w, "%s -> %s\n", e.Original, e.Translated)
	}
	return nil
}
