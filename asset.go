// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package relblob

import (
	"encoding/binary"
	"sync/atomic"
	"unsafe"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/crlib/crhumanize"
	"github.com/cockroachdb/redact"
	"github.com/cockroachdb/relblob/internal/base"
	"github.com/cockroachdb/relblob/internal/binfmt"
	"github.com/cockroachdb/relblob/internal/invariants"
	"github.com/cockroachdb/relblob/internal/manual"
)

// headerSize is the size of the fixed header that precedes the payload of a
// block. It is a multiple of manual.Alignment so that the root, which is the
// first value of the payload, is as aligned as the block itself.
//
//	offset 0   uint32  payload length
//	offset 4   uint32  reserved, zero
//	offset 8   uint64  xxhash64 of the payload
const headerSize = 16

// block is the state shared by every copy of an AssetRef.
type block struct {
	// gen is advanced when the block is disposed. An AssetRef is live only
	// while its generation matches.
	gen atomic.Uint32
	// data points at the block image, and is nil once the block is disposed.
	data atomic.Pointer[byte]
	size int
	hash uint64
	// buf is only accessed by newBlock and release.
	buf    manual.Buf
	logger base.Logger
}

// newBlock allocates a zeroed block able to hold payloadSize bytes.
func newBlock(payloadSize int, logger base.Logger) *block {
	if logger == nil {
		logger = base.DefaultLogger{}
	}
	b := &block{
		size:   payloadSize,
		buf:    manual.New(manual.AssetBlock, uintptr(headerSize+payloadSize)),
		logger: logger,
	}
	b.gen.Store(1)
	b.data.Store((*byte)(b.buf.Data()))
	invariants.SetFinalizer(b, (*block).reportLeak)
	return b
}

// image returns the header and payload. Only valid until release.
func (b *block) image() []byte {
	return b.buf.Slice()
}

func (b *block) payload() []byte {
	return b.image()[headerSize:]
}

// seal fills in the header once the payload is complete.
func (b *block) seal() {
	img := b.image()
	b.hash = xxhash.Sum64(img[headerSize:])
	binary.LittleEndian.PutUint32(img[0:4], uint32(b.size))
	binary.LittleEndian.PutUint32(img[4:8], 0)
	binary.LittleEndian.PutUint64(img[8:16], b.hash)
}

func (b *block) release() {
	b.data.Store(nil)
	buf := b.buf
	b.buf = manual.Buf{}
	manual.Free(manual.AssetBlock, buf)
}

func (b *block) reportLeak() {
	if b.data.Load() != nil {
		b.logger.Errorf("relblob: %d-byte asset block was garbage collected without being disposed", b.size)
	}
}

// AssetRef is a handle to a finalized blob whose root is a T. It is a small
// value that may be freely copied and shared between goroutines; every copy
// refers to the same block. The block is immutable, so any number of
// goroutines may read it concurrently.
//
// Exactly one call to Dispose releases the block. Afterwards every copy of
// the handle reports the block as disposed: Value panics with
// ErrInvalidOperation, and UnsafePtr returns nil. Callers are responsible for
// ensuring no reader is still in flight when Dispose is called.
//
// Two handles are equal (==) iff they refer to the same block. The zero
// value is the null handle, also returned by Null.
type AssetRef[T any] struct {
	b   *block
	gen uint32
}

// Null returns the null handle.
func Null[T any]() AssetRef[T] {
	return AssetRef[T]{}
}

func makeAssetRef[T any](b *block) AssetRef[T] {
	return AssetRef[T]{b: b, gen: b.gen.Load()}
}

// Create returns a blob whose root is a copy of v. T must not contain
// populated relative references, since they would not resolve once copied.
func Create[T any](v T) AssetRef[T] {
	var zero T
	b := NewBuilder(&Options{ChunkSize: int(max(unsafe.Sizeof(zero), 1))})
	defer b.Dispose()
	*ConstructRoot[T](b) = v
	return CreateAssetRef[T](b)
}

// data returns the start of the block image, or nil if the handle is null or
// the block has been disposed.
func (r AssetRef[T]) data() unsafe.Pointer {
	if r.b == nil || r.b.gen.Load() != r.gen {
		return nil
	}
	return unsafe.Pointer(r.b.data.Load())
}

func (r AssetRef[T]) mustData() unsafe.Pointer {
	d := r.data()
	if d == nil {
		if r.b == nil {
			panic(base.InvalidOperationf("relblob: use of null AssetRef"))
		}
		panic(base.InvalidOperationf("relblob: use of disposed AssetRef"))
	}
	return d
}

// IsCreated returns true if the handle refers to a block that has not been
// disposed.
func (r AssetRef[T]) IsCreated() bool {
	return r.data() != nil
}

// Value returns the root of the blob. It panics with ErrInvalidOperation if
// the handle is null or the block has been disposed.
func (r AssetRef[T]) Value() *T {
	return (*T)(unsafe.Add(r.mustData(), headerSize))
}

// UnsafePtr returns the address of the root of the blob, or nil if the handle
// is null or the block has been disposed.
func (r AssetRef[T]) UnsafePtr() unsafe.Pointer {
	d := r.data()
	if d == nil {
		return nil
	}
	return unsafe.Add(d, headerSize)
}

// Size returns the size of the payload in bytes, excluding the header.
func (r AssetRef[T]) Size() int {
	r.mustData()
	return r.b.size
}

// Hash returns the xxhash64 of the payload recorded in the header.
func (r AssetRef[T]) Hash() uint64 {
	r.mustData()
	return r.b.hash
}

// Bytes returns the block image, header included, aliasing the block's
// memory. It is exactly what Write persists after the version tag.
func (r AssetRef[T]) Bytes() []byte {
	return unsafe.Slice((*byte)(r.mustData()), headerSize+r.b.size)
}

// Dispose releases the block. It panics with ErrInvalidOperation if the handle
// is null or the block was already disposed, through this handle or any
// copy of it.
func (r AssetRef[T]) Dispose() {
	if r.b == nil {
		panic(base.InvalidOperationf("relblob: Dispose of null AssetRef"))
	}
	if !r.b.gen.CompareAndSwap(r.gen, r.gen+1) {
		panic(base.InvalidOperationf("relblob: AssetRef disposed twice"))
	}
	r.b.release()
}

// Equal returns true if both handles refer to the same block.
func (r AssetRef[T]) Equal(o AssetRef[T]) bool {
	return r == o
}

// Describe returns an annotated hex dump of the block image.
func (r AssetRef[T]) Describe() string {
	f := binfmt.New(r.Bytes())
	f.HexBytesln(4, "payload length: %d", f.PeekUint(4))
	f.HexBytesln(4, "reserved")
	f.HexBytesln(8, "xxhash64: %016x", f.PeekUint(8))
	f.Comment("payload")
	if f.More() {
		f.HexTextln(f.Remaining())
	}
	return f.String()
}

func (r AssetRef[T]) String() string {
	return redact.StringWithoutMarkers(r)
}

// SafeFormat implements redact.SafeFormatter.
func (r AssetRef[T]) SafeFormat(w redact.SafePrinter, _ rune) {
	switch {
	case r.b == nil:
		w.Printf("AssetRef(null)")
	case !r.IsCreated():
		w.Printf("AssetRef(disposed)")
	default:
		w.Printf("AssetRef(%s, hash=%016x)",
			crhumanize.Bytes(uint64(r.b.size), crhumanize.Compact, crhumanize.OmitI), redact.Safe(r.b.hash))
	}
}
