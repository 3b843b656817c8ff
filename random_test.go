// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package relblob

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

// modelNode is the heap representation of a treeNode that random trees are
// checked against.
type modelNode struct {
	value    int64
	name     string
	children []*modelNode
}

func randomModel(rng *rand.Rand, depth int) *modelNode {
	n := &modelNode{
		value: rng.Int63(),
		name:  fmt.Sprintf("n%x", rng.Uint32()),
	}
	if depth > 0 {
		n.children = make([]*modelNode, rng.Intn(4))
		for i := range n.children {
			n.children[i] = randomModel(rng, depth-1)
		}
	}
	if rng.Intn(10) == 0 {
		n.name = ""
	}
	return n
}

// buildModel writes m into dst, which must lie in b, setting dst's parent
// pointer to parent unless it is nil.
func buildModel(b *Builder, dst, parent *treeNode, m *modelNode) {
	dst.Value = m.value
	b.AllocateString(&dst.Name, m.name)
	if parent != nil {
		SetPointer(b, &dst.Parent, parent)
	}
	children := AllocateArray(b, &dst.Children, len(m.children))
	for i, c := range m.children {
		buildModel(b, &children[i], dst, c)
	}
}

func checkModel(t *testing.T, n, parent *treeNode, m *modelNode) int {
	require.Equal(t, m.value, n.Value)
	require.Equal(t, m.name, n.Name.String())
	if parent == nil {
		require.True(t, n.Parent.IsNull())
	} else {
		require.Same(t, parent, n.Parent.Value())
	}
	require.Equal(t, len(m.children), n.Children.Len())
	count := 1
	for i, c := range m.children {
		count += checkModel(t, n.Children.At(i), n, c)
	}
	return count
}

func TestRandomTrees(t *testing.T) {
	seed := uint64(time.Now().UnixNano())
	t.Logf("seed: %d", seed)
	rng := rand.New(rand.NewSource(seed))

	for i := 0; i < 50; i++ {
		m := randomModel(rng, 1+rng.Intn(5))
		opts := &Options{ChunkSize: 16 << rng.Intn(10)}
		if rng.Intn(2) == 0 {
			opts.Lifetime = Persistent
		}
		b := NewBuilder(opts)
		buildModel(b, ConstructRoot[treeNode](b), nil, m)
		ref := CreateAssetRef[treeNode](b)
		b.Dispose()
		nodes := checkModel(t, ref.Value(), nil, m)

		version := rng.Uint32()
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, ref, version))
		ref.Dispose()

		got, ok, err := TryRead[treeNode](&buf, version)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, nodes, checkModel(t, got.Value(), nil, m))
		got.Dispose()
	}
}
