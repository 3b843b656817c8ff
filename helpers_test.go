// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package relblob

import (
	"fmt"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

type vec3 struct {
	X, Y, Z float32
}

// testGraph exercises every kind of relative reference: a flat array, an
// array of arrays, a pointer and strings.
type testGraph struct {
	Floats Array[float32]
	Nested Array[Array[int32]]
	Vec    Ptr[vec3]
	Name   String
	Empty  String
}

func buildTestGraph(b *Builder) *testGraph {
	root := ConstructRoot[testGraph](b)
	floats := AllocateArray(b, &root.Floats, 3)
	for i := range floats {
		floats[i] = float32(i)
	}
	nested := AllocateArray(b, &root.Nested, 2)
	for i := range nested {
		inner := AllocateArray(b, &nested[i], i+1)
		for j := range inner {
			inner[j] = int32(i + j)
		}
	}
	*Allocate(b, &root.Vec) = vec3{3, 3, 3}
	b.AllocateString(&root.Name, "Blah")
	b.AllocateString(&root.Empty, "")
	return root
}

func checkTestGraph(t *testing.T, g *testGraph) {
	t.Helper()
	require.Equal(t, []float32{0, 1, 2}, g.Floats.ToSlice())
	require.Equal(t, 2, g.Nested.Len())
	require.Equal(t, []int32{0}, g.Nested.At(0).ToSlice())
	require.Equal(t, []int32{1, 2}, g.Nested.At(1).ToSlice())
	require.Equal(t, vec3{3, 3, 3}, *g.Vec.Value())
	require.Equal(t, "Blah", g.Name.String())
	require.Equal(t, 0, g.Empty.Len())
	require.Equal(t, "", g.Empty.String())
}

func formatTestGraph(g *testGraph) string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "floats: %v\n", g.Floats.Slice())
	buf.WriteString("nested: [")
	for i := 0; i < g.Nested.Len(); i++ {
		if i > 0 {
			buf.WriteString(" ")
		}
		fmt.Fprintf(&buf, "%v", g.Nested.At(i).Slice())
	}
	buf.WriteString("]\n")
	fmt.Fprintf(&buf, "vec: %v\n", *g.Vec.Value())
	fmt.Fprintf(&buf, "name: %q\n", g.Name.String())
	fmt.Fprintf(&buf, "empty: %q\n", g.Empty.String())
	return buf.String()
}

// requirePanicsWith runs fn and requires that it panics with an error marked
// with target.
func requirePanicsWith(t *testing.T, target error, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		require.NotNil(t, r, "expected a panic")
		err, ok := r.(error)
		require.True(t, ok, "panic value %v is not an error", r)
		require.True(t, errors.Is(err, target), "expected %v, got %v", target, err)
	}()
	fn()
}

// capturePanic returns the output of fn, or the error it panicked with.
func capturePanic(fn func() string) (s string) {
	defer func() {
		if r := recover(); r != nil {
			s = fmt.Sprintf("error: %v\n", r)
		}
	}()
	return fn()
}
