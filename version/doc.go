// Package version reports build metadata for transfs.
//
// Version, Commit and Date can be injected at link time:
//
//	-ldflags "-X github.com/dendrascience/transfs/version.Version=v1.0.0 \
//	          -X github.com/dendrascience/transfs/version.Commit=abc123 \
//	          -X github.com/dendrascience/transfs/version.Date=2024-01-01T00:00:00Z"
//
// Without them the values come from the module and VCS information embedded
// by the Go toolchain. The same Info is printed by `transfs --version`,
// logged when a mount starts and served at GET /version.
package version
