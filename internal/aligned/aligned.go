// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package aligned

import (
	"fmt"
	"unsafe"
)

// ByteSlice allocates a new zeroed byte slice of length n whose first byte is
// aligned to align, which must be a power of two. Go only guarantees that a
// []uint64 is word aligned, so the backing array is over-allocated by align
// bytes and the returned slice starts at the first aligned address within it.
func ByteSlice(n, align int) []byte {
	if align <= 0 || align&(align-1) != 0 {
		panic(fmt.Sprintf("alignment %d is not a power of two", align))
	}
	if n == 0 {
		return nil
	}
	a := make([]uint64, (n+align+7)/8)
	base := unsafe.Pointer(&a[0])
	pad := (align - int(uintptr(base)&uintptr(align-1))) & (align - 1)
	b := unsafe.Slice((*byte)(unsafe.Add(base, pad)), n)

	// Verify alignment.
	ptr := uintptr(unsafe.Pointer(&b[0]))
	if ptr%uintptr(align) != 0 {
		panic(fmt.Sprintf("allocated slice not %d-aligned: pointer %p", align, &b[0]))
	}
	return b
}
