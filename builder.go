// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package relblob

import (
	"math"
	"reflect"
	"unsafe"

	"github.com/cockroachdb/relblob/internal/base"
	"github.com/cockroachdb/relblob/internal/invariants"
	"github.com/cockroachdb/relblob/internal/manual"
)

// maxPayloadSize bounds the size of a blob so that every relative offset, and
// the header's length field, fit in an int32.
const maxPayloadSize = math.MaxInt32 - headerSize

// chunk is a region of arena memory. Allocations are carved out of it
// sequentially; the chunk itself never moves, so regions handed out from it
// remain valid until the builder is disposed.
type chunk struct {
	buf  manual.Buf
	used uintptr
}

// Builder is a single-writer arena in which the graph of a blob is
// constructed. The first allocation must be the root (ConstructRoot); every
// other region is allocated against a relative reference field (Allocate,
// AllocateArray, AllocateString) that already lives in the arena, and
// additional references can be pointed at existing regions with SetPointer.
//
// References that cross chunk boundaries cannot be expressed until the chunks
// are laid out contiguously, so the builder records a patch for every
// reference it writes and CreateAssetRef resolves them all.
//
// A Builder is not safe for concurrent use. It must be released with Dispose
// once any AssetRef has been created from it.
type Builder struct {
	opts    *Options
	purpose manual.Purpose
	chunks  []chunk
	patches patchTable
	// rootType is the type given to ConstructRoot, or nil before it is called.
	rootType  reflect.Type
	allocs    int
	finalized bool
	disposed  bool
}

// NewBuilder returns a new, empty Builder.
func NewBuilder(opts *Options) *Builder {
	opts = opts.Clone().EnsureDefaults()
	b := &Builder{
		opts:    opts,
		purpose: opts.Lifetime.purpose(),
	}
	invariants.SetFinalizer(b, (*Builder).reportLeak)
	return b
}

func (b *Builder) reportLeak() {
	if !b.disposed {
		b.opts.Logger.Errorf("relblob: builder with %d chunks was garbage collected without being disposed",
			len(b.chunks))
	}
}

func (b *Builder) checkUsable() {
	if b.disposed {
		panic(base.InvalidOperationf("relblob: use of disposed builder"))
	}
}

// alloc returns a zeroed region of size bytes aligned to align, growing the
// arena if the current chunk lacks room.
func (b *Builder) alloc(size, align uintptr) (unsafe.Pointer, location) {
	if align > manual.Alignment {
		panic(base.InvalidArgumentf("relblob: alignment %d exceeds the maximum of %d", align, manual.Alignment))
	}
	if size > maxPayloadSize {
		panic(base.InvalidArgumentf("relblob: allocation of %d bytes exceeds the maximum blob size", size))
	}
	b.allocs++
	if n := len(b.chunks); n > 0 {
		c := &b.chunks[n-1]
		// Chunk bases are aligned to manual.Alignment, so aligning the offset
		// aligns the address.
		off := alignUp(c.used, align)
		if off+size <= uintptr(c.buf.Len()) {
			c.used = off + size
			return unsafe.Add(c.buf.Data(), off), location{chunk: int32(n - 1), offset: int32(off)}
		}
	}
	capacity := max(uintptr(b.opts.ChunkSize), size)
	b.chunks = append(b.chunks, chunk{
		buf:  manual.New(b.purpose, capacity),
		used: size,
	})
	n := len(b.chunks)
	return b.chunks[n-1].buf.Data(), location{chunk: int32(n - 1)}
}

// locate returns the arena location of the size bytes starting at p. It
// returns false if they do not lie within a region handed out by this
// builder.
func (b *Builder) locate(p unsafe.Pointer, size uintptr) (location, bool) {
	addr := uintptr(p)
	for i := len(b.chunks) - 1; i >= 0; i-- {
		start := uintptr(b.chunks[i].buf.Data())
		if addr >= start && addr-start+size <= b.chunks[i].used {
			return location{chunk: int32(i), offset: int32(addr - start)}, true
		}
	}
	return location{}, false
}

func (b *Builder) locateField(p unsafe.Pointer, size uintptr, what string) location {
	from, ok := b.locate(p, size)
	if !ok {
		panic(base.InvalidArgumentf("relblob: %s at %p does not belong to this builder", what, p))
	}
	return from
}

// link records a patch for the reference at from and, when the target lies in
// the same chunk, stores the final offset immediately so that the reference
// can already be read during construction.
func (b *Builder) link(offset *int32, from, to location) {
	b.patches.add(from, to)
	switch {
	case to.isNull():
		*offset = 0
	case from.chunk == to.chunk:
		*offset = to.offset - from.offset
	default:
		*offset = pendingOffset
	}
}

// ConstructRoot allocates the zeroed root value of the blob. It must be the
// first allocation made by the builder, and may only be called once.
func ConstructRoot[T any](b *Builder) *T {
	b.checkUsable()
	if b.rootType != nil || b.allocs != 0 {
		panic(base.InvalidOperationf("relblob: root already constructed"))
	}
	checkPointerFree[T]()
	var zero T
	p, _ := b.alloc(max(unsafe.Sizeof(zero), 1), unsafe.Alignof(zero))
	b.rootType = reflect.TypeFor[T]()
	return (*T)(p)
}

// Allocate allocates a zeroed T, points field at it and returns it. The
// field must itself lie within a region allocated by b.
func Allocate[T any](b *Builder, field *Ptr[T]) *T {
	b.checkUsable()
	checkPointerFree[T]()
	from := b.locateField(unsafe.Pointer(field), unsafe.Sizeof(*field), "Ptr")
	var zero T
	p, to := b.alloc(max(unsafe.Sizeof(zero), 1), unsafe.Alignof(zero))
	b.link(&field.offset, from, to)
	return (*T)(p)
}

// AllocateArray allocates n zeroed, contiguous T values, points field at
// them and returns them as a slice. The field must itself lie within a region
// allocated by b. The returned slice aliases arena memory and must not be
// used after the builder is disposed.
func AllocateArray[T any](b *Builder, field *Array[T], n int) []T {
	b.checkUsable()
	checkPointerFree[T]()
	from := b.locateField(unsafe.Pointer(field), unsafe.Sizeof(*field), "Array")
	var zero T
	size := unsafe.Sizeof(zero)
	// The length is stored as an int32 even when the elements take no space.
	if n < 0 || int64(n) > math.MaxInt32 || (size > 0 && uint64(n) > maxPayloadSize/uint64(size)) {
		panic(base.InvalidArgumentf("relblob: invalid array length %d", n))
	}
	if n == 0 {
		if field.offset != 0 {
			b.link(&field.offset, from, nullLocation)
		}
		field.length = 0
		return nil
	}
	p, to := b.alloc(max(size*uintptr(n), 1), unsafe.Alignof(zero))
	b.link(&field.offset, from, to)
	field.length = int32(n)
	return unsafe.Slice((*T)(p), n)
}

// AllocateString allocates a copy of s and points field at it. The field
// must lie within a region allocated by b.
func (b *Builder) AllocateString(field *String, s string) {
	copy(AllocateArray(b, &field.data, len(s)), s)
}

// SetPointer points field at target, which must already have been allocated
// by b, without allocating. It is used to express references that do not own
// their target, such as links from a child back to its parent.
func SetPointer[T any](b *Builder, field *Ptr[T], target *T) {
	b.checkUsable()
	from := b.locateField(unsafe.Pointer(field), unsafe.Sizeof(*field), "Ptr")
	if target == nil {
		panic(base.InvalidArgumentf("relblob: SetPointer target is nil"))
	}
	var zero T
	to, ok := b.locate(unsafe.Pointer(target), max(unsafe.Sizeof(zero), 1))
	if !ok {
		panic(base.InvalidArgumentf("relblob: SetPointer target %p does not belong to this builder", target))
	}
	if to == from {
		panic(base.InvalidArgumentf("relblob: Ptr at %p cannot point at itself", field))
	}
	b.link(&field.offset, from, to)
}

// Stats returns statistics about the builder's arena.
func (b *Builder) Stats() BuilderStats {
	b.checkUsable()
	s := BuilderStats{
		Chunks:      len(b.chunks),
		Allocations: b.allocs,
		Patches:     b.patches.len(),
	}
	for i := range b.chunks {
		s.BytesUsed += uint64(b.chunks[i].used)
		s.BytesReserved += uint64(b.chunks[i].buf.Len())
	}
	return s
}

// Dispose releases the builder's memory. Slices and pointers returned by the
// builder must not be used afterwards. Disposing twice panics with
// ErrInvalidOperation.
func (b *Builder) Dispose() {
	if b.disposed {
		panic(base.InvalidOperationf("relblob: builder disposed twice"))
	}
	b.disposed = true
	for i := range b.chunks {
		manual.Free(b.purpose, b.chunks[i].buf)
	}
	b.chunks = nil
	b.patches.reset()
}

func alignUp(n, align uintptr) uintptr {
	return (n + align - 1) &^ (align - 1)
}
