// Package util provides small helpers shared by the transfs packages.
//
// Virtual paths are the slash-separated, absolute names that consumers of the
// mounted overlay see. Every path that enters the translation table or the
// overlay engine goes through CleanVirtualPath first so that "/a/b", "/a//b"
// and "/a/b/" all refer to the same entry.
//
// The package also carries the colorhash based bucketing used when laying out
// generated translated-content trees, so that a large number of translated
// files never lands in a single directory.
package util
