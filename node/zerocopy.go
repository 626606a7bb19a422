//go:build !noshmem

package node

// ZeroCopyThreshold is the minimum payload size that prefers
// shared-memory transport over inline copy. The noshmem
// build tag models the disabled mode, where this constant is effectively
// infinite (see zerocopy_disabled.go).
const ZeroCopyThreshold = 4096
