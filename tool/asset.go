// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tool

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/errors/oserror"
	"github.com/cockroachdb/relblob"
	"github.com/cockroachdb/relblob/internal/binfmt"
	"github.com/cockroachdb/relblob/vfs"
	"github.com/spf13/cobra"
)

// assetT implements the asset introspection tool.
type assetT struct {
	Root    *cobra.Command
	Inspect *cobra.Command
	Version *cobra.Command
	Options *cobra.Command

	// Configuration and state.
	opts    *relblob.Options
	ext     string
	hex     bool
	version int64
}

func newAsset(opts *relblob.Options) *assetT {
	a := &assetT{
		opts: opts,
	}

	a.Root = &cobra.Command{
		Use:   "asset",
		Short: "asset introspection tools",
	}
	a.Inspect = &cobra.Command{
		Use:   "inspect <asset files>",
		Short: "verify and describe serialized assets",
		Long: `
Verify each asset file against its header and print its version, size and
hash. Directories are walked for files with the asset extension. With --hex,
an annotated dump of the block is printed as well, or a raw dump of the file
if it cannot be decoded.
`,
		Args: cobra.MinimumNArgs(1),
		Run:  a.runInspect,
	}
	a.Version = &cobra.Command{
		Use:   "version <asset files>",
		Short: "print the version tag of serialized assets",
		Args:  cobra.MinimumNArgs(1),
		Run:   a.runVersion,
	}
	a.Options = &cobra.Command{
		Use:   "options [options file]",
		Short: "print builder options",
		Long: `
Print the builder options read from the given file, with defaults filled in,
or the default options if no file is given.
`,
		Args: cobra.MaximumNArgs(1),
		Run:  a.runOptions,
	}

	a.Root.AddCommand(a.Inspect, a.Version, a.Options)
	a.Root.PersistentFlags().StringVar(
		&a.ext, "ext", ".blob", "extension of asset files when walking directories")
	a.Inspect.Flags().BoolVar(
		&a.hex, "hex", false, "print a hex dump of each block, or of each file that cannot be decoded")
	a.Inspect.Flags().Int64Var(
		&a.version, "version", -1, "expected version tag (-1 accepts any version)")
	return a
}

// foreachAsset calls fn for each file named in args. Directories are walked
// for files with the configured extension.
func (a *assetT) foreachAsset(stderr io.Writer, args []string, fn func(path string)) {
	for _, arg := range args {
		info, err := a.opts.FS.Stat(arg)
		if err != nil {
			if oserror.IsNotExist(err) {
				fmt.Fprintf(stderr, "%s: no such file or directory\n", arg)
			} else {
				fmt.Fprintf(stderr, "%s\n", err)
			}
			continue
		}
		if !info.IsDir() {
			fn(arg)
			continue
		}
		a.walk(stderr, arg, fn)
	}
}

// walk calls fn for each file below dir with the configured extension, in
// lexical order.
func (a *assetT) walk(stderr io.Writer, dir string, fn func(path string)) {
	fs := a.opts.FS
	names, err := fs.List(dir)
	if err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
		return
	}
	sort.Strings(names)
	for _, name := range names {
		path := fs.PathJoin(dir, name)
		info, err := fs.Stat(path)
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
			continue
		}
		switch {
		case info.IsDir():
			a.walk(stderr, path, fn)
		case filepath.Ext(name) == a.ext:
			fn(path)
		}
	}
}

func (a *assetT) runInspect(cmd *cobra.Command, args []string) {
	stdout, stderr := cmd.OutOrStdout(), cmd.OutOrStderr()
	a.foreachAsset(stderr, args, func(path string) {
		fmt.Fprintf(stdout, "%s\n", path)
		v, err := a.readVersion(path)
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
			a.dumpRaw(stdout, stderr, path)
			return
		}
		expected := v
		if a.version >= 0 {
			expected = uint32(a.version)
		}
		// The root type is unknown, so the block is only checked against its
		// header.
		ref, ok, err := relblob.TryReadFile[struct{}](path, expected, a.opts)
		switch {
		case err != nil:
			fmt.Fprintf(stderr, "%s\n", err)
			a.dumpRaw(stdout, stderr, path)
			return
		case !ok:
			fmt.Fprintf(stdout, "  version %d, expected %d\n", v, expected)
			a.dumpRaw(stdout, stderr, path)
			return
		}
		defer ref.Dispose()
		fmt.Fprintf(stdout, "  version: %d\n", v)
		fmt.Fprintf(stdout, "  size: %d\n", ref.Size())
		fmt.Fprintf(stdout, "  xxhash64: %016x\n", ref.Hash())
		if a.hex {
			fmt.Fprint(stdout, ref.Describe())
		}
	})
}

// dumpRaw prints a plain hex dump of a file that could not be decoded, if
// --hex was given.
func (a *assetT) dumpRaw(stdout, stderr io.Writer, path string) {
	if !a.hex {
		return
	}
	data, err := vfs.ReadFile(a.opts.FS, path)
	if err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
		return
	}
	binfmt.FHexDump(stdout, data, 16)
}

func (a *assetT) runVersion(cmd *cobra.Command, args []string) {
	stdout, stderr := cmd.OutOrStdout(), cmd.OutOrStderr()
	a.foreachAsset(stderr, args, func(path string) {
		v, err := a.readVersion(path)
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
			return
		}
		fmt.Fprintf(stdout, "%s: %d\n", path, v)
	})
}

func (a *assetT) runOptions(cmd *cobra.Command, args []string) {
	stdout, stderr := cmd.OutOrStdout(), cmd.OutOrStderr()
	opts := a.opts.Clone()
	if len(args) == 1 {
		data, err := vfs.ReadFile(a.opts.FS, args[0])
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
			return
		}
		opts = &relblob.Options{Logger: a.opts.Logger, FS: a.opts.FS}
		if err := opts.Parse(string(data)); err != nil {
			fmt.Fprintf(stderr, "%s: %s\n", args[0], err)
			return
		}
		opts.EnsureDefaults()
	}
	fmt.Fprint(stdout, opts.String())
}

func (a *assetT) readVersion(path string) (uint32, error) {
	f, err := a.opts.FS.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	v, err := relblob.PeekVersion(f)
	if err != nil {
		return 0, errors.Wrapf(err, "%s", path)
	}
	return v, nil
}
