// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package binfmt

import (
	"fmt"
	"io"
	"math"
	"strconv"
)

// FHexDump writes a hex dump of the data to w, prefixing each line with its
// offset. The width is the number of bytes per line.
func FHexDump(w io.Writer, data []byte, width int) {
	offsetFormatWidth := max(2, int(math.Log(float64(max(len(data)/2, 1)))/math.Log(16))+1)
	offsetFormatStr := "%0" + strconv.Itoa(offsetFormatWidth) + "x"
	for i := 0; i < len(data); i += width {
		fmt.Fprintf(w, offsetFormatStr+": ", i)
		for j := 0; j < width; j++ {
			if j%4 == 0 {
				fmt.Fprint(w, " ")
			}
			if i+j >= len(data) {
				fmt.Fprintf(w, "  ")
			} else {
				fmt.Fprintf(w, "%02x", data[i+j])
			}
		}

		fmt.Fprint(w, " | ")
		for j := 0; j < width && i+j < len(data); j++ {
			if j%4 == 0 {
				fmt.Fprint(w, " ")
			}
			if data[i+j] < 32 || data[i+j] > 126 {
				fmt.Fprint(w, ".")
			} else {
				fmt.Fprintf(w, "%c", data[i+j])
			}
		}
		fmt.Fprintln(w)
	}
}
