// Package util provides utility functions for transfs.
package util

import "errors"

// Sentinel errors for package util.
// These errors can be checked with errors.Is() for specific error handling.
var (
	// Path errors
	ErrEmptyPath    = errors.New("path is empty")
	ErrRelativePath = errors.New("path is not absolute")
	ErrRootPath     = errors.New("the root cannot be translated")
)
