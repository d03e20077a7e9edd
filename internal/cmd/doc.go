// Package cmd provides the command-line interface implementation for transfs.
//
// Every subcommand lives in its own file with a constructor returning a
// *cobra.Command; NewRootCmd groups them and installs the logging flags
// shared by all of them:
//   - mount: Mount the overlay, run backups and serve the control interface
//   - translate: HTTP client for the control interface of a running mount
//   - list, import, backup: Offline access to a translation table file
//   - validate: Integrity and consistency checks for a table file
//   - seed: Demo data generator
//   - version: Build information
//
// Commands that only need a table file open it directly through the store
// package. Everything that talks to a mounted overlay goes through api.Client.
package cmd
