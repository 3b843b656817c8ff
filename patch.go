// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package relblob

import (
	"fmt"
	"unsafe"
)

// location identifies a byte within a builder's arena.
type location struct {
	chunk  int32
	offset int32
}

// nullLocation is the target of a patch that clears a reference.
var nullLocation = location{chunk: -1}

func (l location) isNull() bool {
	return l.chunk < 0
}

func (l location) String() string {
	if l.isNull() {
		return "null"
	}
	return fmt.Sprintf("%d:%d", l.chunk, l.offset)
}

// patch records that the relative reference stored at from must point at to
// once the arena's chunks are laid out contiguously.
type patch struct {
	from location
	to   location
}

// patchTable accumulates patches during construction. Patches are applied in
// the order they were recorded, so when a reference is written more than once
// the last write wins.
type patchTable struct {
	entries []patch
}

func (t *patchTable) add(from, to location) {
	t.entries = append(t.entries, patch{from: from, to: to})
}

func (t *patchTable) len() int {
	return len(t.entries)
}

func (t *patchTable) reset() {
	t.entries = nil
}

// apply rewrites every recorded reference in payload, given the offset at
// which each chunk was placed.
func (t *patchTable) apply(payload []byte, placements []int64) {
	for _, p := range t.entries {
		at := placements[p.from.chunk] + int64(p.from.offset)
		var rel int32
		if !p.to.isNull() {
			rel = int32(placements[p.to.chunk] + int64(p.to.offset) - at)
		}
		*(*int32)(unsafe.Pointer(&payload[at])) = rel
	}
}
