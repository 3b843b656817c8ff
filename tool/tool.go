// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package tool implements introspection commands for serialized blobs.
package tool

import (
	"github.com/cockroachdb/relblob"
	"github.com/cockroachdb/relblob/vfs"
	"github.com/spf13/cobra"
)

// T is the container for all of the introspection tools.
type T struct {
	Commands []*cobra.Command
	asset    *assetT
	bench    *benchT
	opts     relblob.Options
}

// New creates a new introspection tool.
func New() *T {
	t := &T{}
	t.opts.EnsureDefaults()
	t.asset = newAsset(&t.opts)
	t.bench = newBench(&t.opts)
	t.Commands = []*cobra.Command{
		t.asset.Root,
		t.bench.Root,
	}
	return t
}

// SetFS sets the file system that asset files are read from.
func (t *T) SetFS(fs vfs.FS) {
	t.opts.FS = fs
}

// SetLogger sets the logger that receives reports about rejected files.
func (t *T) SetLogger(logger relblob.Logger) {
	t.opts.Logger = logger
}
