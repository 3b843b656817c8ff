// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

/*
Package relblob builds immutable, relocatable binary blobs: graphs of
fixed-layout values laid out in a single contiguous block in which every
internal reference is a byte offset relative to the reference's own address.
A finalized block can be copied, moved, written to disk and read back without
any pointer fix-up pass.

A blob is constructed with a Builder. The first allocation is the root, and
everything else hangs off the root through the relative reference types Ptr,
Array and String:

	type Node struct {
		Value    float32
		Children relblob.Array[Node]
		Parent   relblob.Ptr[Node]
	}

	b := relblob.NewBuilder(nil)
	defer b.Dispose()
	root := relblob.ConstructRoot[Node](b)
	children := relblob.AllocateArray(b, &root.Children, 2)
	for i := range children {
		relblob.SetPointer(b, &children[i].Parent, root)
	}
	ref := relblob.CreateAssetRef[Node](b)
	defer ref.Dispose()

The returned AssetRef is a cheap value that may be copied and shared by any
number of concurrent readers. Disposing it releases the block; every copy
observes the disposal through a generation check.

Stored types must not contain Go pointers, slices, strings, maps, channels,
functions or interfaces. Use Ptr, Array and String instead. Relative
references must always be accessed in place, through a pointer: copying a
struct that contains one out of its block leaves the copy dangling.

Misuse, such as indexing out of range, dereferencing an unset Ptr, linking
data from two builders, or using a disposed AssetRef, panics with an error
marked with one of ErrOutOfRange, ErrInvalidOperation or ErrInvalidArgument.
Building with the "invariants" tag additionally zeroes released memory, so
that references derived from a disposed AssetRef resolve to null and panic
when read.
*/
package relblob
