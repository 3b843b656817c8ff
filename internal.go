// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package relblob

import "github.com/cockroachdb/relblob/internal/base"

// ErrInvalidOperation marks misuse of a Builder, AssetRef or unset Ptr.
var ErrInvalidOperation = base.ErrInvalidOperation

// ErrInvalidArgument marks arguments that can never be valid, such as a Ptr
// target allocated by another Builder.
var ErrInvalidArgument = base.ErrInvalidArgument

// ErrOutOfRange marks an Array index outside [0, Len).
var ErrOutOfRange = base.ErrOutOfRange

// ErrCorruption is returned when serialized data fails validation.
var ErrCorruption = base.ErrCorruption

// Logger defines an interface for writing log messages.
type Logger = base.Logger

// DefaultLogger logs to the Go stdlib logs.
type DefaultLogger = base.DefaultLogger
