package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dendrascience/transfs/api"
	"github.com/dendrascience/transfs/store"
	"github.com/dendrascience/transfs/util"
)

// NewImportCmd creates and returns the import subcommand. It bulk loads
// translations into a table file that is not mounted.
func NewImportCmd() *cobra.Command {
	var (
		verbose bool
		dryRun  bool
	)

	cmd := &cobra.Command{
		Use:   "import DB_FILE FILE",
		Short: "Bulk load translations into a table file",
		Long: `Load translations from FILE ("-" for stdin) into DB_FILE.

FILE is either the document served by GET /list_translations,

  {"translations": [["/original", "/translated"], ...]}

or a JSON array of {"original": ..., "translated": ...} objects. Every entry
is validated first and all of them are written in one transaction, so either
the whole file is imported or nothing is.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := runImport(args[0], args[1], dryRun, verbose, cmd.InOrStdin(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if dryRun {
				fmt.Fprintf(cmd.OutOrStdout(), "DRY RUN - %d translations would be imported\n", n)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d translations\n", n)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate the input without writing the table")

	return cmd
}

func runImport(dbFile, src string, dryRun, verbose bool, stdin io.Reader, out io.Writer) (int, error) {
	r := stdin
	if src != "-" {
		f, err := os.Open(src)
		if err != nil {
			return 0, err
		}
		defer f.Close()
		r = f
	}

	entries, err := parseImport(r)
	if err != nil {
		return 0, err
	}
	if verbose {
		for _, e := range entries {
			fmt.Fprintf(out, "%s -> %s\n", e.Original, e.Translated)
		}
	}
	if dryRun {
		return len(entries), nil
	}

	st, err := store.Open(dbFile, store.Options{Timeout: 2 * time.Second})
	if err != nil {
		return 0, err
	}
	defer st.Close()

	if err := st.UpsertAll(entries); err != nil {
		return 0, err
	}
	return len(entries), nil
}

// parseImport decodes either accepted document shape and returns the entries
// with cleaned paths. All invalid entries are reported together.
func parseImport(r io.Reader) ([]store.Entry, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("invalid import document: %w", err)
	}

	var entries []store.Entry
	var doc api.ListResponse
	if err := json.Unmarshal(raw, &doc); err == nil {
		for _, p := range doc.Translations {
			entries = append(entries, store.Entry{Original: p[0], Translated: p[1]})
		}
	} else if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("invalid import document: %w", err)
	}

	var errs []error
	for i, e := range entries {
		orig, err := util.CleanOriginalPath(e.Original)
		if err != nil {
			errs = append(errs, fmt.Errorf("entry %d original %q: %w", i, e.Original, err))
		}
		target, err := util.CleanVirtualPath(e.Translated)
		if err != nil {
			errs = append(errs, fmt.Errorf("entry %d translated %q: %w", i, e.Translated, err))
		}
		entries[i] = store.Entry{Original: orig, Translated: target}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return entries, nil
}
