// Package overlay implements the translation overlay as a FUSE filesystem.
//
// Every node carries only its virtual path. Each call resolves that path
// through the translation table at the time of the call: a mapped path is
// served from its real path on the translated-content tree, anything else
// from the same path on the original tree. A translation added or removed
// while the filesystem is mounted is therefore seen by the next call on any
// node, including nodes the kernel looked up before the change.
//
// Directory listings are the children of the original directory at the
// listed path plus every name the table contributes below it: mapped files
// and the virtual directories leading to deeper mappings. Virtual
// directories that do not exist in the original tree are synthesized so that
// every mapped path is reachable by walking from the root.
//
// Unlink and rename act on the resolved real paths and never change the
// table. Renaming between a translated and an untranslated path would move
// a file across trees and fails with EXDEV.
package overlay
