// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package manual provides buffers whose lifetime is managed explicitly by the
// caller through New and Free, with per-purpose accounting. Buffers are
// allocated from the Go heap so that references which outlive Free keep
// pointing at valid (if poisoned) memory rather than at memory returned to
// another allocator.
package manual

import (
	"sync/atomic"
	"unsafe"

	"github.com/cockroachdb/relblob/internal/invariants"
)

// Alignment is the alignment of the first byte of every buffer returned by
// New.
const Alignment = 16

// Purpose identifies the use-case for an allocation.
type Purpose uint8

const (
	_ Purpose = iota

	// BuilderScratch buffers back the chunks of short-lived builders. They
	// are recycled through size-class pools.
	BuilderScratch
	// BuilderPersistent buffers back the chunks of long-lived builders.
	BuilderPersistent
	// AssetBlock buffers hold finalized, contiguous blob images.
	AssetBlock

	NumPurposes
)

var purposeNames = [NumPurposes]string{
	BuilderScratch:    "builder-scratch",
	BuilderPersistent: "builder-persistent",
	AssetBlock:        "asset-block",
}

func (p Purpose) String() string {
	if p == 0 || p >= NumPurposes {
		return "unknown"
	}
	return purposeNames[p]
}

// Metrics contains memory statistics by purpose.
type Metrics [NumPurposes]struct {
	// InUseBytes is the total number of bytes currently allocated. This is just
	// the sum of the lengths of the allocations and does not include any overhead
	// or fragmentation.
	InUseBytes uint64

	// TotalBytes is the total cumulative number of bytes allocated since the
	// process started.
	TotalBytes uint64
}

var counters [NumPurposes]struct {
	TotalAllocated atomic.Uint64
	TotalFreed     atomic.Uint64
	// Pad to separate counters into cache lines. We assume 64 byte cache line
	// size which is the case for ARM64 servers and AMD64.
	_ [6]uint64
}

func recordAlloc(purpose Purpose, n uintptr) {
	counters[purpose].TotalAllocated.Add(uint64(n))
}

func recordFree(purpose Purpose, n uintptr) {
	counters[purpose].TotalFreed.Add(uint64(n))
}

// GetMetrics returns manual memory usage statistics.
func GetMetrics() Metrics {
	var res Metrics
	for i := range res {
		// Read freed first so that a concurrent allocation can only make
		// InUseBytes larger.
		freed := counters[i].TotalFreed.Load()
		res[i].TotalBytes = counters[i].TotalAllocated.Load()
		res[i].InUseBytes = invariants.SafeSub(res[i].TotalBytes, freed)
	}
	return res
}

// Buf is a buffer allocated by New.
type Buf struct {
	data unsafe.Pointer
	n    uintptr
}

// Data returns a pointer to the buffer data. Nil if the buffer is empty.
func (b Buf) Data() unsafe.Pointer {
	return b.data
}

// Len returns the buffer length.
func (b Buf) Len() int {
	return int(b.n)
}

// Slice converts the buffer to a byte slice.
func (b Buf) Slice() []byte {
	if b.data == nil {
		return nil
	}
	return unsafe.Slice((*byte)(b.data), b.n)
}
