// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package relblob

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/cockroachdb/crlib/crstrings"
	"github.com/cockroachdb/datadriven"
)

func TestBuilderDataDriven(t *testing.T) {
	var b *Builder
	var root *testGraph
	var ref AssetRef[testGraph]
	var serialized bytes.Buffer
	defer func() {
		if b != nil {
			b.Dispose()
		}
		if ref.IsCreated() {
			ref.Dispose()
		}
	}()

	datadriven.RunTest(t, "testdata/builder", func(t *testing.T, td *datadriven.TestData) string {
		switch td.Cmd {
		case "build":
			if b != nil {
				b.Dispose()
			}
			opts := &Options{}
			td.MaybeScanArgs(t, "chunk-size", &opts.ChunkSize)
			if td.HasArg("persistent") {
				opts.Lifetime = Persistent
			}
			b = NewBuilder(opts)
			root = buildTestGraph(b)
			s := b.Stats()
			return fmt.Sprintf("chunks=%d allocations=%d patches=%d used=%d reserved=%d\n",
				s.Chunks, s.Allocations, s.Patches, s.BytesUsed, s.BytesReserved)

		case "deref-vec":
			return capturePanic(func() string {
				return fmt.Sprintf("vec: %v\n", *root.Vec.Value())
			})

		case "finalize":
			return capturePanic(func() string {
				r := CreateAssetRef[testGraph](b)
				if ref.IsCreated() {
					ref.Dispose()
				}
				ref = r
				return fmt.Sprintf("size=%d\n%s", ref.Size(), formatTestGraph(ref.Value()))
			})

		case "write":
			var version int
			td.ScanArgs(t, "version", &version)
			serialized.Reset()
			if err := Write(&serialized, ref, uint32(version)); err != nil {
				return fmt.Sprintf("error: %v\n", err)
			}
			return fmt.Sprintf("wrote %d bytes\n", serialized.Len())

		case "read":
			var version int
			td.ScanArgs(t, "version", &version)
			r, ok, err := TryRead[testGraph](bytes.NewReader(serialized.Bytes()), uint32(version))
			switch {
			case err != nil:
				return fmt.Sprintf("error: %v\n", err)
			case !ok:
				return "version mismatch\n"
			}
			if ref.IsCreated() {
				ref.Dispose()
			}
			ref = r
			return fmt.Sprintf("size=%d\n%s", ref.Size(), formatTestGraph(ref.Value()))

		case "dispose":
			return capturePanic(func() string {
				ref.Dispose()
				return "disposed\n"
			})

		case "value":
			return capturePanic(func() string {
				return formatTestGraph(ref.Value())
			})

		default:
			return fmt.Sprintf("unknown command: %s", td.Cmd)
		}
	})
}

// TestTreeDataDriven builds trees whose nodes link back to their parents.
// Each input line names a node already in the tree followed by its children;
// the first line names the root.
func TestTreeDataDriven(t *testing.T) {
	datadriven.RunTest(t, "testdata/tree", func(t *testing.T, td *datadriven.TestData) string {
		switch td.Cmd {
		case "tree":
			opts := &Options{}
			td.MaybeScanArgs(t, "chunk-size", &opts.ChunkSize)
			b := NewBuilder(opts)
			defer b.Dispose()

			lines := crstrings.Lines(td.Input)
			if len(lines) == 0 {
				return "empty tree\n"
			}
			root := ConstructRoot[treeNode](b)
			rootName := strings.Fields(lines[0])[0]
			b.AllocateString(&root.Name, rootName)
			nodes := map[string]*treeNode{rootName: root}
			for _, line := range lines {
				fields := strings.Fields(line)
				parent, ok := nodes[fields[0]]
				if !ok {
					return fmt.Sprintf("unknown node %s\n", fields[0])
				}
				children := AllocateArray(b, &parent.Children, len(fields)-1)
				for i, name := range fields[1:] {
					b.AllocateString(&children[i].Name, name)
					SetPointer(b, &children[i].Parent, parent)
					nodes[name] = &children[i]
				}
			}
			chunks := b.Stats().Chunks

			ref := CreateAssetRef[treeNode](b)
			defer ref.Dispose()
			var buf strings.Builder
			fmt.Fprintf(&buf, "chunks=%d\n", chunks)
			var walk func(n *treeNode, depth int)
			walk = func(n *treeNode, depth int) {
				fmt.Fprintf(&buf, "%s%s", strings.Repeat("  ", depth), n.Name.String())
				if n.Parent.IsNull() {
					buf.WriteString(" (root)\n")
				} else {
					fmt.Fprintf(&buf, " (parent %s)\n", n.Parent.Value().Name.String())
				}
				for i := 0; i < n.Children.Len(); i++ {
					walk(n.Children.At(i), depth+1)
				}
			}
			walk(ref.Value(), 0)
			return buf.String()

		default:
			return fmt.Sprintf("unknown command: %s", td.Cmd)
		}
	})
}
