// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package util

// PartitionRequest represents an RPC memory domain partition request.
type PartitionRequest struct {
	// Start is the partition physical start address
	Start uint64
	// Size is the partition size
	Size uint64
	// Perm is the partition access in "rwx" notation
	Perm string
}

// ValidateRequest represents an RPC buffer validation request.
type ValidateRequest struct {
	// Addr is the buffer address
	Addr uint64
	// Size is the buffer size
	Size uint64
	// Write selects write access validation
	Write bool
}
