// Package main provides the transfs command-line interface.
//
// transfs mounts a FUSE translation overlay: a view of an existing directory
// tree in which individual paths can be redirected to files stored elsewhere.
// Redirections live in a translation table file and can be added or removed
// over HTTP while the overlay stays mounted.
//
// The CLI supports several subcommands:
//   - mount: Mount the overlay and serve the control interface
//   - translate: Manage translations on a running mount over HTTP
//   - list: Print the translations stored in a table file
//   - import: Bulk load translations into a table file
//   - backup: Copy a table file into a backup directory
//   - validate: Check a table file for corruption and consistency
//   - seed: Generate demo trees and translations
//   - version: Print version and build information
//
// Usage:
//
//	transfs mount MOUNTPOINT ORIGINAL_ROOT DB_FILE BACKUP_DIR
//	transfs translate add /reports/q1.pdf /archive/2024/q1-v2.pdf
//	transfs validate translations.db --content-root /srv/archive
//	transfs --help
//
// Version information can be displayed using the --version flag.
package main
