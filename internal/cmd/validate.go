package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dendrascience/transfs/store"
	"github.com/dendrascience/transfs/util"
)

type validateOptions struct {
	contentRoot string
	verbose     bool
	strict      bool
}

// validateReport summarizes a validation run.
type validateReport struct {
	entries        int
	errors         []string
	missingTargets []string
}

// NewValidateCmd creates and returns the validate subcommand for the transfs
// CLI. It checks a table file for corruption and its entries for consistency.
func NewValidateCmd() *cobra.Command {
	var opts validateOptions

	cmd := &cobra.Command{
		Use:   "validate DB_FILE",
		Short: "Validate a translation table for corruption and consistency",
		Long: `Validate a translation table file.

This command runs the same integrity check performed before mounting, then
checks that every entry maps an absolute, clean path to another. With
--content-root it also reports entries whose translated file does not exist;
those are warnings unless --strict is given, since content may be added after
its translation.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := runValidate(args[0], opts, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			failed := len(report.errors)
			if opts.strict {
				failed += len(report.missingTargets)
			}
			if failed > 0 {
				return fmt.Errorf("validation failed with %d errors", failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.contentRoot, "content-root", "", "Check that translated files exist below this root")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose output")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Treat missing translated files as errors")

	return cmd
}

func runValidate(dbFile string, opts validateOptions, out io.Writer) (validateReport, error) {
	var report validateReport

	if opts.verbose {
		fmt.Fprintf(out, "Validating translation table %s\n", dbFile)
	}

	// Open runs the integrity check
	st, err := openReadOnly(dbFile)
	if err != nil {
		return report, err
	}
	defer st.Close()

	entries, err := st.List()
	if err != nil {
		return report, err
	}
	report.entries = len(entries)

	for _, e := range entries {
		report.errors = append(report.errors, checkEntry(e)...)

		if opts.contentRoot == "" {
			continue
		}
		target := filepath.Join(opts.contentRoot, filepath.FromSlash(e.Translated))
		if _, err := os.Stat(target); err != nil {
			report.missingTargets = append(report.missingTargets, e.Translated)
			if opts.verbose {
				fmt.Fprintf(out, "  missing: %s -> %s\n", e.Original, e.Translated)
			}
		}
	}

	if len(report.errors) > 0 {
		fmt.Fprintf(out, "Table %s has %d errors:\n", dbFile, len(report.errors))
		for _, e := range report.errors {
			fmt.Fprintf(out, "  - %s\n", e)
		}
	}

	fmt.Fprintf(out, "\nValidation complete:\n")
	fmt.Fprintf(out, "  Entries checked: %d\n", report.entries)
	fmt.Fprintf(out, "  Total errors: %d\n", len(report.errors))
	if opts.contentRoot != "" {
		fmt.Fprintf(out, "  Missing translated files: %d\n", len(report.missingTargets))
	}
	return report, nil
}

func checkEntry(e store.Entry) []string {
	var errs []string
	for _, p := range []struct{ field, value string }{
		{"original", e.Original},
		{"translated", e.Translated},
	} {
		clean, err := util.CleanVirtualPath(p.value)
		switch {
		case err != nil:
			errs = append(errs, fmt.Sprintf("%s path %q: %v", p.field, p.value, err))
		case clean != p.value:
			errs = append(errs, fmt.Sprintf("%s path %q is not clean, want %q", p.field, p.value, clean))
		}
	}
	if e.Original == "/" {
		errs = append(errs, fmt.Sprintf("original path %q: %v", e.Original, util.ErrRootPath))
	}
	return errs
}
