package cmd

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/dendrascience/transfs/internal/logging"
	"github.com/dendrascience/transfs/version"
)

// NewRootCmd creates and returns the root cobra command for the transfs CLI.
// It sets up all subcommands, command groups and the logging flags shared by
// every command.
func NewRootCmd() *cobra.Command {
	var (
		logOpts   logging.Options
		logCloser io.Closer
	)

	rootCmd := &cobra.Command{
		Use:   "transfs",
		Short: "transfs - a FUSE translation overlay with a live control interface",
		Long: `transfs mounts a translation overlay over an existing directory tree.

Every path is served from the original tree unless the translation table maps
it to a file elsewhere, in which case the mapped file is served instead. The
table is stored in a single database file and can be changed over HTTP while
the overlay is mounted.

Use subcommands to perform different operations:
  - mount: Mount the overlay and serve the control interface
  - translate: Add, remove and list translations on a running mount
  - list, import, backup: Work with a translation table file directly
  - validate: Check a translation table file for corruption
  - seed: Generate demo trees and translations
  - version: Print version and build information`,
		Version:      version.GetFullVersion(),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := logging.Setup(logOpts)
			if err != nil {
				return err
			}
			logCloser = c
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logCloser != nil {
				logCloser.Close()
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&logOpts.Level, "log-level", "", "Log level: error, warn, info, debug or trace (default info, or $LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&logOpts.File, "log-file", "", "Append logs to this file instead of stderr")
	rootCmd.PersistentFlags().BoolVar(&logOpts.JSON, "log-json", false, "Log JSON lines")

	groupFilesystem := "filesystem"
	groupTranslations := "translations"
	groupUtilities := "utilities"

	rootCmd.AddGroup(&cobra.Group{
		ID:    groupFilesystem,
		Title: "Filesystem Operations",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    groupTranslations,
		Title: "Translation Table",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    groupUtilities,
		Title: "Utility Commands",
	})

	mountCmd := NewMountCmd()
	translateCmd := NewTranslateCmd()
	listCmd := NewListCmd()
	importCmd := NewImportCmd()
	backupCmd := NewBackupCmd()
	validateCmd := NewValidateCmd()
	seedCmd := NewSeedCmd()
	versionCmd := NewVersionCmd()

	mountCmd.GroupID = groupFilesystem
	translateCmd.GroupID = groupTranslations
	listCmd.GroupID = groupTranslations
	importCmd.GroupID = groupTranslations
	backupCmd.GroupID = groupTranslations
	validateCmd.GroupID = groupUtilities
	seedCmd.GroupID = groupUtilities
	versionCmd.GroupID = groupUtilities

	rootCmd.AddCommand(mountCmd)
	rootCmd.AddCommand(translateCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(versionCmd)

	return rootCmd
}
