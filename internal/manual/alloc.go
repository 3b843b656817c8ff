// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package manual

import (
	"math/bits"
	"sync"
	"unsafe"

	"github.com/cockroachdb/relblob/internal/aligned"
	"github.com/cockroachdb/relblob/internal/invariants"
)

// New allocates a zeroed buffer of size n, aligned to Alignment. The buffer
// MUST be released by calling Free with the same purpose.
func New(purpose Purpose, n uintptr) Buf {
	if n == 0 {
		return Buf{}
	}
	recordAlloc(purpose, n)
	if pooled(purpose) {
		data := pools[sizeClass(n)].Get().(unsafe.Pointer)
		b := Buf{data: data, n: n}
		// Pooled buffers are only mangled (zeroed) on release in invariant
		// builds, so they are zeroed again here.
		clear(b.Slice())
		return b
	}
	s := aligned.ByteSlice(int(n), Alignment)
	return Buf{data: unsafe.Pointer(unsafe.SliceData(s)), n: n}
}

// Free releases the specified buffer. It has to be exactly the buffer that was
// returned by New, with the same purpose.
func Free(purpose Purpose, b Buf) {
	if b.data == nil {
		return
	}
	invariants.MaybeMangle(b.Slice())
	recordFree(purpose, b.n)
	if pooled(purpose) {
		pools[sizeClass(b.n)].Put(b.data)
	}
}

func pooled(purpose Purpose) bool {
	return purpose == BuilderScratch
}

var pools = mkPools() // pools[n] is for allocs of size 1 << n

func mkPools() [bits.UintSize]sync.Pool {
	var pools [bits.UintSize]sync.Pool
	for i := range pools {
		pools[i].New = func() any {
			return unsafe.Pointer(unsafe.SliceData(aligned.ByteSlice(1<<i, Alignment)))
		}
	}
	return pools
}

// sizeClass determines the smallest n such that 1 << n >= size
func sizeClass(size uintptr) int {
	return bits.UintSize - bits.LeadingZeros(uint(size-1))
}
