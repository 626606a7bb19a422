//go:build noshmem

package node

import "math"

// ZeroCopyThreshold is effectively infinite when shared memory support
// is compiled out: every sample is heap-backed.
const ZeroCopyThreshold = math.MaxInt
