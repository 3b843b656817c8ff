// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package relblob

import (
	"fmt"
	"math"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func TestBuilderGraph(t *testing.T) {
	for _, lifetime := range []Lifetime{Scratch, Persistent} {
		for _, chunkSize := range []int{16, 32, 64, 128, 0} {
			t.Run(fmt.Sprintf("%s/chunk=%d", lifetime, chunkSize), func(t *testing.T) {
				b := NewBuilder(&Options{ChunkSize: chunkSize, Lifetime: lifetime})
				buildTestGraph(b)
				ref := CreateAssetRef[testGraph](b)
				b.Dispose()
				defer ref.Dispose()
				checkTestGraph(t, ref.Value())
			})
		}
	}
}

func TestBuilderStats(t *testing.T) {
	b := NewBuilder(&Options{ChunkSize: 32})
	defer b.Dispose()
	buildTestGraph(b)
	require.Equal(t, BuilderStats{
		Chunks:        3,
		Allocations:   7,
		Patches:       6,
		BytesUsed:     92,
		BytesReserved: 100,
	}, b.Stats())
}

func TestConstructRootTwice(t *testing.T) {
	b := NewBuilder(nil)
	defer b.Dispose()
	ConstructRoot[int32](b)
	requirePanicsWith(t, ErrInvalidOperation, func() { ConstructRoot[int32](b) })
}

func TestUnsetPtr(t *testing.T) {
	b := NewBuilder(nil)
	defer b.Dispose()
	root := ConstructRoot[testGraph](b)
	require.True(t, root.Vec.IsNull())
	requirePanicsWith(t, ErrInvalidOperation, func() { root.Vec.Value() })
	requirePanicsWith(t, ErrOutOfRange, func() { root.Floats.At(0) })
	require.Nil(t, root.Floats.Slice())

	// Pointers may be read back during construction when their target lives
	// in the same chunk.
	*Allocate(b, &root.Vec) = vec3{1, 2, 3}
	require.False(t, root.Vec.IsNull())
	require.Equal(t, vec3{1, 2, 3}, *root.Vec.Value())
}

func TestPendingPtr(t *testing.T) {
	b := NewBuilder(&Options{ChunkSize: 64})
	defer b.Dispose()
	root := ConstructRoot[testGraph](b)
	// Fill the rest of the first chunk so that the next allocation lands in
	// a new one.
	AllocateArray(b, &root.Floats, 7)
	vec := Allocate(b, &root.Vec)
	*vec = vec3{1, 2, 3}
	require.Equal(t, 2, b.Stats().Chunks)
	require.False(t, root.Vec.IsNull())
	requirePanicsWith(t, ErrInvalidOperation, func() { root.Vec.Value() })
	// The pointer returned by Allocate stays usable.
	require.Equal(t, vec3{1, 2, 3}, *vec)

	ref := CreateAssetRef[testGraph](b)
	defer ref.Dispose()
	require.Equal(t, vec3{1, 2, 3}, *ref.Value().Vec.Value())
}

type intArrayRoot struct {
	Values Array[int32]
}

func TestArrayBounds(t *testing.T) {
	const n = 100
	b := NewBuilder(&Options{ChunkSize: 128})
	defer b.Dispose()
	root := ConstructRoot[intArrayRoot](b)
	values := AllocateArray(b, &root.Values, n)
	require.Len(t, values, n)
	for i := range values {
		values[i] = int32(i)
	}
	idx := n
	require.Panics(t, func() { values[idx] = 1 })

	// The array does not fit in a 128-byte chunk, so it gets a chunk of its
	// own sized exactly to fit.
	stats := b.Stats()
	require.Equal(t, 2, stats.Chunks)
	require.Equal(t, uint64(128+4*n), stats.BytesReserved)

	ref := CreateAssetRef[intArrayRoot](b)
	defer ref.Dispose()
	arr := &ref.Value().Values
	require.Equal(t, n, arr.Len())
	for i := 0; i < n; i++ {
		require.Equal(t, int32(i), *arr.At(i))
	}
	requirePanicsWith(t, ErrOutOfRange, func() { arr.At(n) })
	requirePanicsWith(t, ErrOutOfRange, func() { arr.At(-1) })
	require.Panics(t, func() { _ = arr.Slice()[idx] })
	require.Equal(t, values, arr.ToSlice())
}

func TestOversizedRoot(t *testing.T) {
	type big struct {
		Values [64]int64
		Name   String
	}
	b := NewBuilder(&Options{ChunkSize: 16})
	defer b.Dispose()
	root := ConstructRoot[big](b)
	for i := range root.Values {
		root.Values[i] = int64(i * i)
	}
	b.AllocateString(&root.Name, "oversized")
	ref := CreateAssetRef[big](b)
	defer ref.Dispose()
	v := ref.Value()
	for i := range v.Values {
		require.Equal(t, int64(i*i), v.Values[i])
	}
	require.Equal(t, "oversized", v.Name.String())
}

type alignRoot struct {
	Pad    Array[Array[byte]]
	Shorts Array[Ptr[int16]]
	Ints   Array[Ptr[int32]]
	Arrays Array[Array[int32]]
}

func TestAlignment(t *testing.T) {
	const n = 100
	b := NewBuilder(&Options{ChunkSize: 128})
	defer b.Dispose()
	root := ConstructRoot[alignRoot](b)
	pads := AllocateArray(b, &root.Pad, 3*n)
	shorts := AllocateArray(b, &root.Shorts, n)
	ints := AllocateArray(b, &root.Ints, n)
	arrays := AllocateArray(b, &root.Arrays, n)
	for i := 0; i < n; i++ {
		// Odd-sized byte allocations between the others force padding.
		AllocateArray(b, &pads[3*i], 1+i%3)
		s := Allocate(b, &shorts[i])
		*s = int16(i)
		require.Zero(t, uintptr(unsafe.Pointer(s))%2)
		AllocateArray(b, &pads[3*i+1], 1)
		p := Allocate(b, &ints[i])
		*p = int32(i)
		require.Zero(t, uintptr(unsafe.Pointer(p))%4)
		AllocateArray(b, &pads[3*i+2], 3)
		a := AllocateArray(b, &arrays[i], 2)
		a[0], a[1] = int32(i), int32(-i)
		require.Zero(t, uintptr(unsafe.Pointer(&a[0]))%4)
	}
	require.Greater(t, b.Stats().Chunks, 1)

	ref := CreateAssetRef[alignRoot](b)
	defer ref.Dispose()
	v := ref.Value()
	for i := 0; i < n; i++ {
		s := v.Shorts.At(i).Value()
		require.Zero(t, uintptr(unsafe.Pointer(s))%2)
		require.Equal(t, int16(i), *s)

		p := v.Ints.At(i).Value()
		require.Zero(t, uintptr(unsafe.Pointer(p))%4)
		require.Equal(t, int32(i), *p)

		a := v.Arrays.At(i)
		require.Zero(t, uintptr(unsafe.Pointer(a))%4)
		require.Zero(t, uintptr(unsafe.Pointer(a.At(0)))%4)
		require.Equal(t, []int32{int32(i), int32(-i)}, a.ToSlice())
	}
}

type treeNode struct {
	Value    int64
	Name     String
	Children Array[treeNode]
	Parent   Ptr[treeNode]
}

func TestSetPointerTree(t *testing.T) {
	b := NewBuilder(&Options{ChunkSize: 64})
	defer b.Dispose()
	root := ConstructRoot[treeNode](b)
	root.Value = 1
	children := AllocateArray(b, &root.Children, 3)
	for i := range children {
		children[i].Value = int64(10 + i)
		SetPointer(b, &children[i].Parent, root)
		grandchildren := AllocateArray(b, &children[i].Children, i)
		for j := range grandchildren {
			grandchildren[j].Value = int64(100 + 10*i + j)
			SetPointer(b, &grandchildren[j].Parent, &children[i])
		}
	}

	ref := CreateAssetRef[treeNode](b)
	defer ref.Dispose()
	v := ref.Value()
	require.True(t, v.Parent.IsNull())
	require.Equal(t, 3, v.Children.Len())
	for i := 0; i < 3; i++ {
		c := v.Children.At(i)
		require.Equal(t, int64(10+i), c.Value)
		require.Same(t, v, c.Parent.Value())
		require.Equal(t, i, c.Children.Len())
		for j := 0; j < i; j++ {
			g := c.Children.At(j)
			require.Equal(t, int64(100+10*i+j), g.Value)
			require.Same(t, c, g.Parent.Value())
			require.Same(t, v, g.Parent.Value().Parent.Value())
		}
	}
}

func TestSetPointerAcrossBuilders(t *testing.T) {
	b1 := NewBuilder(nil)
	defer b1.Dispose()
	b2 := NewBuilder(nil)
	defer b2.Dispose()
	root1 := ConstructRoot[treeNode](b1)
	root2 := ConstructRoot[treeNode](b2)

	// Target in another builder.
	requirePanicsWith(t, ErrInvalidArgument, func() { SetPointer(b1, &root1.Parent, root2) })
	// Field in another builder.
	requirePanicsWith(t, ErrInvalidArgument, func() { SetPointer(b1, &root2.Parent, root1) })
	// Field outside of any builder.
	var local treeNode
	requirePanicsWith(t, ErrInvalidArgument, func() { SetPointer(b1, &local.Parent, root1) })
	requirePanicsWith(t, ErrInvalidArgument, func() { Allocate(b1, &local.Parent) })
	requirePanicsWith(t, ErrInvalidArgument, func() { AllocateArray(b1, &local.Children, 1) })
	// Nil target.
	requirePanicsWith(t, ErrInvalidArgument, func() { SetPointer(b1, &root1.Parent, nil) })
	// A reference cannot target itself.
	type selfRef struct {
		Self Ptr[selfRef]
	}
	b3 := NewBuilder(nil)
	defer b3.Dispose()
	s := ConstructRoot[selfRef](b3)
	requirePanicsWith(t, ErrInvalidArgument, func() { SetPointer(b3, &s.Self, s) })
}

func TestReallocateField(t *testing.T) {
	b := NewBuilder(&Options{ChunkSize: 16})
	defer b.Dispose()
	root := ConstructRoot[intArrayRoot](b)
	AllocateArray(b, &root.Values, 3)
	copy(AllocateArray(b, &root.Values, 2), []int32{7, 8})
	ref := CreateAssetRef[intArrayRoot](b)
	require.Equal(t, []int32{7, 8}, ref.Value().Values.ToSlice())
	ref.Dispose()

	b2 := NewBuilder(&Options{ChunkSize: 16})
	defer b2.Dispose()
	root = ConstructRoot[intArrayRoot](b2)
	AllocateArray(b2, &root.Values, 3)
	require.Nil(t, AllocateArray(b2, &root.Values, 0))
	ref = CreateAssetRef[intArrayRoot](b2)
	defer ref.Dispose()
	require.Equal(t, 0, ref.Value().Values.Len())
	require.Nil(t, ref.Value().Values.Slice())
}

func TestInvalidArguments(t *testing.T) {
	b := NewBuilder(nil)
	defer b.Dispose()
	root := ConstructRoot[intArrayRoot](b)
	b2 := NewBuilder(nil)
	defer b2.Dispose()
	requirePanicsWith(t, ErrInvalidArgument, func() { AllocateArray(b, &root.Values, -1) })

	type emptyArrayRoot struct {
		Empty Array[struct{}]
	}
	empty := ConstructRoot[emptyArrayRoot](b2)
	if math.MaxInt > math.MaxInt32 {
		n := math.MaxInt32
		requirePanicsWith(t, ErrInvalidArgument, func() { AllocateArray(b2, &empty.Empty, n+1) })
		require.Equal(t, 0, empty.Empty.Len())
	}
	require.Len(t, AllocateArray(b2, &empty.Empty, 5), 5)
	require.Equal(t, 5, empty.Empty.Len())

	type withString struct {
		S string
	}
	type withSlice struct {
		Values [2]struct{ B []byte }
	}
	b3 := NewBuilder(nil)
	defer b3.Dispose()
	requirePanicsWith(t, ErrInvalidArgument, func() { ConstructRoot[withString](b3) })
	requirePanicsWith(t, ErrInvalidArgument, func() { ConstructRoot[withSlice](b3) })
	requirePanicsWith(t, ErrInvalidArgument, func() { ConstructRoot[*int](b3) })
}

func TestFinalizeMisuse(t *testing.T) {
	b := NewBuilder(nil)
	defer b.Dispose()
	requirePanicsWith(t, ErrInvalidOperation, func() { CreateAssetRef[int32](b) })
	ConstructRoot[int32](b)
	requirePanicsWith(t, ErrInvalidArgument, func() { CreateAssetRef[int64](b) })
	ref := CreateAssetRef[int32](b)
	defer ref.Dispose()
	requirePanicsWith(t, ErrInvalidOperation, func() { CreateAssetRef[int32](b) })
}

func TestBuilderDispose(t *testing.T) {
	b := NewBuilder(nil)
	root := buildTestGraph(b)
	ref := CreateAssetRef[testGraph](b)
	b.Dispose()

	// The finalized block does not depend on the builder.
	checkTestGraph(t, ref.Value())
	ref.Dispose()

	requirePanicsWith(t, ErrInvalidOperation, func() { b.Dispose() })
	requirePanicsWith(t, ErrInvalidOperation, func() { b.Stats() })
	requirePanicsWith(t, ErrInvalidOperation, func() { ConstructRoot[int32](b) })
	requirePanicsWith(t, ErrInvalidOperation, func() { Allocate(b, &root.Vec) })
	requirePanicsWith(t, ErrInvalidOperation, func() { AllocateArray(b, &root.Floats, 1) })
	requirePanicsWith(t, ErrInvalidOperation, func() { b.AllocateString(&root.Name, "x") })
	requirePanicsWith(t, ErrInvalidOperation, func() { CreateAssetRef[testGraph](b) })
}

func TestZeroSizedRoot(t *testing.T) {
	ref := Create(struct{}{})
	defer ref.Dispose()
	require.NotNil(t, ref.Value())
	require.Equal(t, 1, ref.Size())
}
