package util

import (
	"fmt"

	"github.com/taigrr/colorhash"
)

// BucketCount is the number of directories generated translated-content trees
// are spread across.
const BucketCount = 1000

// BucketFor returns the bucket directory name for a virtual path. The bucket is
// derived from a colorhash of the path, so the same path always lands in the
// same bucket.
func BucketFor(virtualPath string) string {
	h := colorhash.HashString(virtualPath)
	if h < 0 {
		h = -h
	}
	return fmt.Sprintf("%03d", h%BucketCount)
}
