// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package relblob

import (
	"reflect"
	"unsafe"

	"github.com/cockroachdb/relblob/internal/base"
	"github.com/cockroachdb/relblob/internal/invariants"
	"github.com/cockroachdb/relblob/internal/manual"
)

// CreateAssetRef finalizes the builder's graph into a new, contiguous block
// and returns a handle to it. T must be the type given to ConstructRoot.
//
// The chunks are copied in allocation order, each starting at a
// manual.Alignment boundary so that every alignment within a chunk is
// preserved, and every recorded reference is rewritten for the new layout.
// The builder is left intact and must still be disposed; it cannot be
// finalized a second time.
func CreateAssetRef[T any](b *Builder) AssetRef[T] {
	b.checkUsable()
	switch {
	case b.finalized:
		panic(base.InvalidOperationf("relblob: builder already finalized"))
	case b.rootType == nil:
		panic(base.InvalidOperationf("relblob: builder has no root"))
	case b.rootType != reflect.TypeFor[T]():
		panic(base.InvalidArgumentf("relblob: root was constructed as %s, not %s",
			b.rootType.String(), reflect.TypeFor[T]().String()))
	}

	placements := make([]int64, len(b.chunks))
	var size int64
	for i := range b.chunks {
		size = int64(alignUp(uintptr(size), manual.Alignment))
		placements[i] = size
		size += int64(b.chunks[i].used)
	}
	if size > maxPayloadSize {
		panic(base.InvalidOperationf("relblob: blob of %d bytes exceeds the maximum blob size", size))
	}

	blk := newBlock(int(size), b.opts.Logger)
	payload := blk.payload()
	for i := range b.chunks {
		c := &b.chunks[i]
		copy(payload[placements[i]:], c.buf.Slice()[:c.used])
	}
	b.patches.apply(payload, placements)
	if invariants.Enabled {
		verifyPatches(&b.patches, payload, placements)
	}
	blk.seal()
	b.finalized = true
	return makeAssetRef[T](blk)
}

// verifyPatches checks that every reference in the finalized payload resolves
// to the location recorded for it, and that no reference was left pending.
func verifyPatches(t *patchTable, payload []byte, placements []int64) {
	final := make(map[int64]location, len(t.entries))
	for _, p := range t.entries {
		final[placements[p.from.chunk]+int64(p.from.offset)] = p.to
	}
	for at, to := range final {
		rel := *(*int32)(unsafe.Pointer(&payload[at]))
		switch {
		case rel == pendingOffset:
			panic(base.InvalidOperationf("relblob: reference at %d left pending", at))
		case to.isNull() && rel != 0:
			panic(base.InvalidOperationf("relblob: reference at %d should be null, found %d", at, rel))
		case !to.isNull() && at+int64(rel) != placements[to.chunk]+int64(to.offset):
			panic(base.InvalidOperationf("relblob: reference at %d resolves to %d, expected %s", at, at+int64(rel), to))
		}
	}
}
