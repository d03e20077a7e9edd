package cmd

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dendrascience/transfs/api"
	"github.com/dendrascience/transfs/store"
	"github.com/dendrascience/transfs/util"
)

type seedOptions struct {
	output   string
	count    int
	percent  int
	dbFile   string
	verbose  bool
	baseTime time.Time
}

type seedResult struct {
	files   int
	entries []store.Entry
}

// NewSeedCmd creates and returns the seed subcommand for the transfs CLI.
// It generates an original tree, a translated-content tree and the
// translations between them.
func NewSeedCmd() *cobra.Command {
	opts := seedOptions{baseTime: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Generate demo trees and translations",
		Long: `Generate a demo setup for trying out transfs.

Creates OUTPUT/original with files in a YYYY/MM/DD directory structure and
translates a share of them to files in OUTPUT/translated, spread across
colorhash buckets. One in ten translations points at a path that only exists
virtually, below /translated-only. The translations are written to
OUTPUT/translations.json for 'transfs import', and into --db when given.
Mount the result with --content-root OUTPUT/translated.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := runSeed(opts, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %d files and %d translations in %s\n", res.files, len(res.entries), opts.output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Path to output directory (required)")
	cmd.Flags().IntVarP(&opts.count, "count", "c", 1000, "Number of original files to generate")
	cmd.Flags().IntVarP(&opts.percent, "percent", "p", 30, "Percentage of files to translate")
	cmd.Flags().StringVar(&opts.dbFile, "db", "", "Also write the translations into this table file")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose output")

	cmd.MarkFlagRequired("output")

	return cmd
}

func runSeed(opts seedOptions, out io.Writer) (seedResult, error) {
	var res seedResult

	originalRoot := filepath.Join(opts.output, "original")
	translatedRoot := filepath.Join(opts.output, "translated")
	for _, d := range []string{originalRoot, translatedRoot} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return res, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	if opts.verbose {
		fmt.Fprintf(out, "Generating %d files in %s\n", opts.count, opts.output)
	}

	for res.files < opts.count {
		// random day within a year of the base time
		day := opts.baseTime.AddDate(0, 0, int(randInt(365)))
		dir := path.Join("/", fmt.Sprintf("%04d", day.Year()), fmt.Sprintf("%02d", day.Month()), fmt.Sprintf("%02d", day.Day()))
		name := fmt.Sprintf("%08x.txt", randInt(0xFFFFFFFF))
		virtual := path.Join(dir, name)

		hostPath := filepath.Join(originalRoot, filepath.FromSlash(virtual))
		if _, err := os.Stat(hostPath); err == nil {
			continue
		}
		if err := writeSeedFile(hostPath, "original "+uuid.NewString()); err != nil {
			return res, err
		}
		res.files++
		if opts.verbose && res.files%1000 == 0 {
			fmt.Fprintf(out, "Created %d/%d files...\n", res.files, opts.count)
		}

		if randInt(100) >= int64(opts.percent) {
			continue
		}
		if len(res.entries)%10 == 9 {
			virtual = path.Join("/translated-only", util.BucketFor(virtual), name)
		}
		target := path.Join("/", util.BucketFor(virtual), name)
		if err := writeSeedFile(filepath.Join(translatedRoot, filepath.FromSlash(target)), "translated "+uuid.NewString()); err != nil {
			return res, err
		}
		res.entries = append(res.entries, store.Entry{Original: virtual, Translated: target})
	}

	if err := writeSeedDocument(filepath.Join(opts.output, "translations.json"), res.entries); err != nil {
		return res, err
	}

	if opts.dbFile != "" {
		st, err := store.Open(opts.dbFile, store.Options{})
		if err != nil {
			return res, err
		}
		defer st.Close()
		if err := st.UpsertAll(res.entries); err != nil {
			return res, err
		}
	}

	if opts.verbose {
		fmt.Fprintf(out, "Mount with: transfs mount --content-root %s MOUNTPOINT %s DB_FILE BACKUP_DIR\n", translatedRoot, originalRoot)
	}
	return res, nil
}

func writeSeedFile(p, content string) error {
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", filepath.Dir(p), err)
	}
	return os.WriteFile(p, []byte(content+"\n"), 0o644)
}

func writeSeedDocument(p string, entries []store.Entry) error {
	doc := api.ListResponse{Translations: make([][2]string, 0, len(entries))}
	for _, e := range entries {
		doc.Translations = append(doc.Translations, [2]string{e.Original, e.Translated})
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p, b, 0o644)
}

func randInt(n int64) int64 {
	v, err := rand.Int(rand.Reader, big.NewInt(n))
	if err != nil {
		panic(err)
	}
	return v.Int64()
}
