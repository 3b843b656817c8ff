// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package relblob

import (
	"math"
	"slices"
	"unsafe"

	"github.com/cockroachdb/relblob/internal/base"
)

// pendingOffset is stored in a relative reference whose target lives in a
// different builder chunk than the reference itself. The real offset is only
// known once CreateAssetRef lays the chunks out contiguously.
const pendingOffset = math.MinInt32

// resolve returns the address offset bytes away from the reference at self.
// An offset of zero is the null sentinel: no reference can target itself.
func resolve(self unsafe.Pointer, offset int32, what string) unsafe.Pointer {
	switch offset {
	case 0:
		panic(base.InvalidOperationf("relblob: dereference of unset %s", what))
	case pendingOffset:
		panic(base.InvalidOperationf(
			"relblob: %s targets another builder chunk and cannot be read before finalization", what))
	}
	return unsafe.Add(self, offset)
}

// Ptr is a relative pointer to a T. It stores the signed distance, in bytes,
// from its own address to its target's address. The zero value is null.
//
// A Ptr only resolves correctly at the address it was written to; methods
// must be called on the Ptr in place, never on a copy.
type Ptr[T any] struct {
	offset int32
}

// IsNull returns true if the pointer was never allocated or set.
func (p *Ptr[T]) IsNull() bool {
	return p.offset == 0
}

// Value returns the pointer's target. It panics with ErrInvalidOperation if the
// pointer is null.
//
// While the blob is still under construction, Value also panics with
// ErrInvalidOperation if the target was allocated in a different builder
// chunk than the pointer, since that offset is only fixed by CreateAssetRef.
// Callers that need the target before finalization should keep the *T
// returned by Allocate. Finalized blobs have no such restriction.
func (p *Ptr[T]) Value() *T {
	return (*T)(resolve(unsafe.Pointer(p), p.offset, "Ptr"))
}

// Array is a relative pointer to the first of Len consecutive T values.
//
// Like Ptr, an Array must be accessed in place.
type Array[T any] struct {
	offset int32
	length int32
}

// Len returns the number of elements in the array.
func (a *Array[T]) Len() int {
	return int(a.length)
}

// At returns a pointer to the i'th element. It panics with ErrOutOfRange if i
// is not in [0, Len). During construction it has the same cross-chunk
// restriction as Ptr.Value.
func (a *Array[T]) At(i int) *T {
	if uint(i) >= uint(a.length) {
		panic(base.OutOfRangef("relblob: index %d out of range [0, %d)", i, a.length))
	}
	var zero T
	return (*T)(unsafe.Add(resolve(unsafe.Pointer(a), a.offset, "Array"), uintptr(i)*unsafe.Sizeof(zero)))
}

// Slice returns the elements as a slice that aliases the array's storage.
// The slice must not be retained beyond the lifetime of the containing blob.
func (a *Array[T]) Slice() []T {
	if a.length == 0 {
		return nil
	}
	return unsafe.Slice((*T)(resolve(unsafe.Pointer(a), a.offset, "Array")), a.length)
}

// ToSlice returns a copy of the elements.
func (a *Array[T]) ToSlice() []T {
	return slices.Clone(a.Slice())
}

// String is a relative reference to a sequence of bytes, conventionally UTF-8
// text. It is not null terminated.
//
// Like Ptr, a String must be accessed in place.
type String struct {
	data Array[byte]
}

// Len returns the length of the string in bytes.
func (s *String) Len() int {
	return s.data.Len()
}

// Bytes returns the string's bytes as a slice that aliases the blob's storage.
func (s *String) Bytes() []byte {
	return s.data.Slice()
}

// String returns a copy of the string.
func (s *String) String() string {
	return string(s.data.Slice())
}
