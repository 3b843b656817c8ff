// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package relblob

import (
	"reflect"
	"sync"

	"github.com/cockroachdb/relblob/internal/base"
)

// pointerFreeTypes caches the result of pointerFree per type. Values are nil
// for types that may be stored in a blob and an error otherwise.
var pointerFreeTypes sync.Map // map[reflect.Type]error

// checkPointerFree panics with ErrInvalidArgument if T contains anything the
// garbage collector would need to trace, or anything that is only meaningful
// at a particular address.
func checkPointerFree[T any]() {
	t := reflect.TypeFor[T]()
	v, ok := pointerFreeTypes.Load(t)
	if !ok {
		var err error
		if bad := pointerFree(t); bad != nil {
			err = base.InvalidArgumentf("relblob: %s cannot be stored in a blob: it contains %s", t.String(), bad.String())
		}
		v, _ = pointerFreeTypes.LoadOrStore(t, err)
	}
	if v != nil {
		panic(v.(error))
	}
}

// pointerFree returns the first offending type nested within t, or nil.
func pointerFree(t reflect.Type) reflect.Type {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return nil
	case reflect.Array:
		return pointerFree(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if bad := pointerFree(t.Field(i).Type); bad != nil {
				return bad
			}
		}
		return nil
	default:
		return t
	}
}
