// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package relblob

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/relblob/internal/base"
	"github.com/cockroachdb/relblob/internal/manual"
	"github.com/cockroachdb/relblob/vfs"
)

// DefaultChunkSize is the chunk size used by builders whose Options leave
// ChunkSize unset.
const DefaultChunkSize = 64 << 10

// Lifetime describes how long a Builder's memory is expected to live, which
// selects the strategy used to back its chunks.
type Lifetime int8

const (
	// Scratch builders are short-lived. Their chunks are drawn from, and
	// returned to, process-wide pools.
	Scratch Lifetime = iota
	// Persistent builders may live for a long time. Their chunks are
	// allocated individually and released to the garbage collector on
	// Dispose.
	Persistent
)

func (l Lifetime) String() string {
	switch l {
	case Scratch:
		return "scratch"
	case Persistent:
		return "persistent"
	default:
		return fmt.Sprintf("Lifetime(%d)", int8(l))
	}
}

func (l Lifetime) purpose() manual.Purpose {
	if l == Persistent {
		return manual.BuilderPersistent
	}
	return manual.BuilderScratch
}

func parseLifetime(s string) (Lifetime, error) {
	switch s {
	case "scratch":
		return Scratch, nil
	case "persistent":
		return Persistent, nil
	default:
		return 0, errors.Newf("unknown lifetime %q", s)
	}
}

// Options holds the optional parameters for configuring a Builder. The
// zero value, and a nil *Options, are valid and select the defaults.
type Options struct {
	// ChunkSize is the capacity, in bytes, of each chunk the builder
	// allocates. An allocation larger than ChunkSize gets a chunk sized
	// exactly to fit it.
	//
	// The default value is 64 KB.
	ChunkSize int

	// Lifetime selects the backing strategy for chunks.
	//
	// The default value is Scratch.
	Lifetime Lifetime

	// Logger receives reports about builders and asset blocks that were
	// garbage collected without being disposed (in invariant builds), and
	// about assets rejected by TryReadFile.
	//
	// The default value is DefaultLogger.
	Logger Logger

	// FS provides the interface for persistent file storage used by
	// WriteFile and TryReadFile.
	//
	// The default value uses the underlying operating system's file system.
	FS vfs.FS
}

// EnsureDefaults ensures that the default values for all options are set if a
// valid value was not already specified. Returns the new options.
func (o *Options) EnsureDefaults() *Options {
	if o == nil {
		o = &Options{}
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.Logger == nil {
		o.Logger = base.DefaultLogger{}
	}
	if o.FS == nil {
		o.FS = vfs.Default
	}
	return o
}

// Clone creates a shallow-copy of the supplied options.
func (o *Options) Clone() *Options {
	n := &Options{}
	if o != nil {
		*n = *o
	}
	return n
}

// String implements fmt.Stringer. The output can be read back with Parse.
func (o *Options) String() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "[Builder]\n")
	fmt.Fprintf(&buf, "  chunk_size=%d\n", o.ChunkSize)
	fmt.Fprintf(&buf, "  lifetime=%s\n", o.Lifetime)
	return buf.String()
}

// Parse parses the options from the specified string. Note that certain
// options cannot be parsed into populated fields. For example, the Logger
// and FS are not serialized and must be set by the caller.
func (o *Options) Parse(s string) error {
	var section string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if len(line) == 0 || line[0] == ';' || line[0] == '#' {
			// Skip blank lines and comments.
			continue
		}
		n := len(line)
		if line[0] == '[' && line[n-1] == ']' {
			section = line[1 : n-1]
			continue
		}

		pos := strings.Index(line, "=")
		if pos < 0 {
			const maxLen = 50
			if len(line) > maxLen {
				line = line[:maxLen-3] + "..."
			}
			return base.CorruptionErrorf("invalid key=value syntax: %q", errors.Safe(line))
		}
		key := strings.TrimSpace(line[:pos])
		value := strings.TrimSpace(line[pos+1:])

		var err error
		switch {
		case section == "Builder" && key == "chunk_size":
			o.ChunkSize, err = strconv.Atoi(value)
			if err == nil && o.ChunkSize <= 0 {
				err = errors.Newf("chunk size must be positive")
			}
		case section == "Builder" && key == "lifetime":
			o.Lifetime, err = parseLifetime(value)
		default:
			return errors.Errorf("relblob: unknown option: %s.%s",
				errors.Safe(section), errors.Safe(key))
		}
		if err != nil {
			return errors.Wrapf(err, "relblob: invalid value for %s.%s",
				errors.Safe(section), errors.Safe(key))
		}
	}
	return nil
}
