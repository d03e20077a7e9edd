// Package store persists the translation table.
//
// The table lives in a single bolt file with one bucket, "translations", keyed
// by original (virtual) path. Each value is a small JSON record holding the
// translated (real) path and its creation and update times. Every mutation is
// one bolt write transaction, committed and fsynced before the call returns,
// so a crash leaves the file in either the old or the new state and never
// with a torn row.
//
// Backups are taken from a read transaction, which bolt serves from a
// consistent snapshot while writers continue. Backup files are complete bolt
// files and can be opened with Open like the live table.
package store
