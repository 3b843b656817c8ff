// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import "github.com/cockroachdb/errors"

var (
	// ErrInvalidOperation marks misuse of a builder or asset reference: use
	// after Dispose, double Dispose, dereferencing an unset pointer, or
	// constructing a second root.
	ErrInvalidOperation = errors.New("relblob: invalid operation")

	// ErrInvalidArgument marks arguments that can never be valid, such as a
	// pointer target that was not allocated by the same builder.
	ErrInvalidArgument = errors.New("relblob: invalid argument")

	// ErrOutOfRange marks an index outside the bounds of an array.
	ErrOutOfRange = errors.New("relblob: index out of range")

	// ErrCorruption is a marker to indicate that serialized data is corrupted.
	ErrCorruption = errors.New("relblob: corruption")
)

// InvalidOperationf formats according to a format specifier and arguments and
// returns an error that has been marked as an invalid operation.
func InvalidOperationf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrInvalidOperation)
}

// InvalidArgumentf formats according to a format specifier and arguments and
// returns an error that has been marked as an invalid argument.
func InvalidArgumentf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrInvalidArgument)
}

// OutOfRangef formats according to a format specifier and arguments and
// returns an error that has been marked as an out of range access.
func OutOfRangef(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrOutOfRange)
}

// CorruptionErrorf formats according to a format specifier and arguments and
// returns an error that has been marked as a corruption error.
func CorruptionErrorf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrCorruption)
}

// MarkCorruptionError marks given error as a corruption error.
func MarkCorruptionError(err error) error {
	if errors.Is(err, ErrCorruption) {
		return err
	}
	return errors.Mark(err, ErrCorruption)
}
