// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package relblob

import (
	"bytes"
	"encoding/binary"
	"io"
	"unsafe"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/relblob/internal/base"
	"github.com/cockroachdb/relblob/vfs"
)

// versionSize is the size of the version tag that precedes a serialized
// block.
const versionSize = 4

// Write serializes the blob to w: a little-endian uint32 version tag followed
// by the block image exactly as it is laid out in memory. No conversion is
// needed, since every reference in the block is relative.
func Write[T any](w io.Writer, ref AssetRef[T], version uint32) error {
	img := ref.Bytes()
	var tag [versionSize]byte
	binary.LittleEndian.PutUint32(tag[:], version)
	if _, err := w.Write(tag[:]); err != nil {
		return errors.Wrap(err, "relblob: writing version tag")
	}
	if _, err := w.Write(img); err != nil {
		return errors.Wrap(err, "relblob: writing block")
	}
	return nil
}

// WriteBuilder finalizes b, writes the resulting blob to w as Write does, and
// releases the intermediate block. The builder must still be disposed by the
// caller.
func WriteBuilder[T any](w io.Writer, b *Builder, version uint32) error {
	ref := CreateAssetRef[T](b)
	defer ref.Dispose()
	return Write(w, ref, version)
}

// PeekVersion reads the version tag of a serialized blob from r.
func PeekVersion(r io.Reader) (uint32, error) {
	var tag [versionSize]byte
	if _, err := io.ReadFull(r, tag[:]); err != nil {
		return 0, errors.Wrap(err, "relblob: reading version tag")
	}
	return binary.LittleEndian.Uint32(tag[:]), nil
}

// TryRead reads a blob written by Write. If the stored version tag is not
// version, TryRead returns false and a null handle without reading past the
// tag; this is an expected outcome and not an error. Otherwise the block is
// read into newly allocated memory, verified against its header, and
// returned. Errors are returned for I/O failures and, marked with
// ErrCorruption, for blocks that fail verification.
func TryRead[T any](r io.Reader, version uint32) (AssetRef[T], bool, error) {
	v, err := PeekVersion(r)
	if err != nil {
		return Null[T](), false, err
	}
	if v != version {
		return Null[T](), false, nil
	}
	ref, err := readBlock[T](r, nil)
	if err != nil {
		return Null[T](), false, err
	}
	return ref, true, nil
}

func readBlock[T any](r io.Reader, logger base.Logger) (AssetRef[T], error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Null[T](), errors.Wrap(err, "relblob: reading block header")
	}
	size := binary.LittleEndian.Uint32(hdr[0:4])
	want := binary.LittleEndian.Uint64(hdr[8:16])
	var zero T
	switch {
	case size > maxPayloadSize:
		return Null[T](), base.CorruptionErrorf("relblob: payload length %d exceeds the maximum blob size", size)
	case binary.LittleEndian.Uint32(hdr[4:8]) != 0:
		return Null[T](), base.CorruptionErrorf("relblob: reserved header field is not zero")
	case uintptr(size) < unsafe.Sizeof(zero):
		return Null[T](), base.CorruptionErrorf("relblob: payload of %d bytes cannot hold a %d-byte root",
			size, unsafe.Sizeof(zero))
	}

	blk, err := readPayload(r, int(size), logger)
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return Null[T](), base.MarkCorruptionError(errors.Wrapf(err, "relblob: reading %d-byte payload", size))
		}
		return Null[T](), errors.Wrapf(err, "relblob: reading %d-byte payload", size)
	}
	copy(blk.image(), hdr[:])
	if got := xxhash.Sum64(blk.payload()); got != want {
		blk.release()
		return Null[T](), base.CorruptionErrorf("relblob: payload hash %016x does not match header hash %016x", got, want)
	}
	blk.hash = want
	return makeAssetRef[T](blk), nil
}

// directReadSize is the largest payload read straight into its block. Larger
// payloads are staged in a buffer that grows as bytes arrive, so that a
// corrupt length in the header cannot force an allocation the input does not
// back.
const directReadSize = 1 << 20

// readPayload reads a size-byte payload from r into a new block. The header
// bytes of the block are left for the caller to fill.
func readPayload(r io.Reader, size int, logger base.Logger) (*block, error) {
	if size <= directReadSize {
		blk := newBlock(size, logger)
		if _, err := io.ReadFull(r, blk.payload()); err != nil {
			blk.release()
			return nil, err
		}
		return blk, nil
	}
	var buf bytes.Buffer
	if n, err := io.CopyN(&buf, r, int64(size)); err != nil {
		if errors.Is(err, io.EOF) && n > 0 {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	blk := newBlock(size, logger)
	copy(blk.payload(), buf.Bytes())
	return blk, nil
}

// WriteFile writes the blob to the named file in opts.FS. The blob is
// written to a temporary file that is synced and then renamed over path, so a
// failed or interrupted write leaves any previous file at path intact.
func WriteFile[T any](path string, ref AssetRef[T], version uint32, opts *Options) error {
	opts = opts.Clone().EnsureDefaults()
	fs := opts.FS
	tmpPath := path + ".tmp"
	f, err := fs.Create(tmpPath)
	if err != nil {
		return errors.Wrapf(err, "relblob: creating %s", tmpPath)
	}
	err = Write(f, ref, version)
	if err == nil {
		err = errors.Wrapf(f.Sync(), "relblob: syncing %s", tmpPath)
	}
	err = errors.CombineErrors(err, f.Close())
	if err == nil {
		err = errors.Wrapf(fs.Rename(tmpPath, path), "relblob: renaming %s", tmpPath)
	}
	if err != nil {
		return errors.CombineErrors(err, fs.Remove(tmpPath))
	}
	return syncDir(fs, fs.PathDir(path))
}

func syncDir(fs vfs.FS, dir string) error {
	d, err := fs.OpenDir(dir)
	if err != nil {
		return errors.Wrapf(err, "relblob: opening directory %s", dir)
	}
	err = d.Sync()
	return errors.CombineErrors(errors.Wrapf(err, "relblob: syncing directory %s", dir), d.Close())
}

// TryReadFile reads a blob from the named file in opts.FS, as TryRead does.
// Version mismatches and corrupt files are reported to opts.Logger.
func TryReadFile[T any](path string, version uint32, opts *Options) (AssetRef[T], bool, error) {
	opts = opts.Clone().EnsureDefaults()
	f, err := opts.FS.Open(path)
	if err != nil {
		return Null[T](), false, errors.Wrapf(err, "relblob: opening %s", path)
	}
	defer f.Close()

	v, err := PeekVersion(f)
	if err != nil {
		return Null[T](), false, err
	}
	if v != version {
		opts.Logger.Infof("relblob: %s has version %d, expected %d", path, v, version)
		return Null[T](), false, nil
	}
	ref, err := readBlock[T](f, opts.Logger)
	if err != nil {
		if errors.Is(err, ErrCorruption) {
			opts.Logger.Errorf("relblob: %s: %v", path, err)
		}
		return Null[T](), false, err
	}
	return ref, true, nil
}
