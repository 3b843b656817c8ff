// Copyright 2014 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

//go:build windows

package vfs

import (
	"os"
	"syscall"

	"github.com/cockroachdb/errors"
)

type windowsDir struct {
	*os.File
}

func (defaultFS) OpenDir(name string) (File, error) {
	f, err := os.OpenFile(name, syscall.O_CLOEXEC, 0)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return windowsDir{f}, nil
}

// Sync is a noop on Windows, where directories cannot be synced.
func (windowsDir) Sync() error {
	return nil
}
