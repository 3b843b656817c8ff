// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package relblob

import (
	"github.com/cockroachdb/crlib/crhumanize"
	"github.com/cockroachdb/redact"
	"github.com/cockroachdb/relblob/internal/manual"
	"github.com/prometheus/client_golang/prometheus"
)

// MemoryUsage describes the bytes allocated for one purpose.
type MemoryUsage struct {
	// InUseBytes is the number of bytes allocated and not yet released.
	InUseBytes uint64
	// TotalBytes is the cumulative number of bytes allocated since the
	// process started.
	TotalBytes uint64
}

// MemoryMetrics describes the memory held by builders and asset blocks
// across the process.
type MemoryMetrics struct {
	BuilderScratch    MemoryUsage
	BuilderPersistent MemoryUsage
	AssetBlocks       MemoryUsage
}

// GetMemoryMetrics returns process-wide memory statistics.
func GetMemoryMetrics() MemoryMetrics {
	m := manual.GetMetrics()
	usage := func(p manual.Purpose) MemoryUsage {
		return MemoryUsage{InUseBytes: m[p].InUseBytes, TotalBytes: m[p].TotalBytes}
	}
	return MemoryMetrics{
		BuilderScratch:    usage(manual.BuilderScratch),
		BuilderPersistent: usage(manual.BuilderPersistent),
		AssetBlocks:       usage(manual.AssetBlock),
	}
}

func (m MemoryMetrics) String() string {
	return redact.StringWithoutMarkers(m)
}

// SafeFormat implements redact.SafeFormatter.
func (m MemoryMetrics) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("builder-scratch: %s\n", m.BuilderScratch)
	w.Printf("builder-persistent: %s\n", m.BuilderPersistent)
	w.Printf("asset-blocks: %s\n", m.AssetBlocks)
}

func (u MemoryUsage) String() string {
	return redact.StringWithoutMarkers(u)
}

// SafeFormat implements redact.SafeFormatter.
func (u MemoryUsage) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("%s in use (%s total)",
		crhumanize.Bytes(u.InUseBytes, crhumanize.Compact, crhumanize.OmitI),
		crhumanize.Bytes(u.TotalBytes, crhumanize.Compact, crhumanize.OmitI))
}

// MemoryCollector is a prometheus.Collector that exports GetMemoryMetrics.
// Each metric carries a purpose label.
type MemoryCollector struct {
	inUse *prometheus.Desc
	total *prometheus.Desc
}

var _ prometheus.Collector = (*MemoryCollector)(nil)

// NewMemoryCollector returns a collector for process-wide memory metrics.
func NewMemoryCollector() *MemoryCollector {
	labels := []string{"purpose"}
	return &MemoryCollector{
		inUse: prometheus.NewDesc("relblob_memory_in_use_bytes",
			"Bytes allocated and not yet released.", labels, nil),
		total: prometheus.NewDesc("relblob_memory_allocated_bytes_total",
			"Cumulative bytes allocated.", labels, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *MemoryCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.inUse
	ch <- c.total
}

// Collect implements prometheus.Collector.
func (c *MemoryCollector) Collect(ch chan<- prometheus.Metric) {
	m := GetMemoryMetrics()
	for _, p := range []struct {
		purpose string
		usage   MemoryUsage
	}{
		{"builder-scratch", m.BuilderScratch},
		{"builder-persistent", m.BuilderPersistent},
		{"asset-block", m.AssetBlocks},
	} {
		ch <- prometheus.MustNewConstMetric(c.inUse, prometheus.GaugeValue, float64(p.usage.InUseBytes), p.purpose)
		ch <- prometheus.MustNewConstMetric(c.total, prometheus.CounterValue, float64(p.usage.TotalBytes), p.purpose)
	}
}

// BuilderStats describes the state of a Builder's arena.
type BuilderStats struct {
	// Chunks is the number of chunks allocated.
	Chunks int
	// Allocations is the number of regions handed out, including the root.
	Allocations int
	// Patches is the number of relative references recorded for patching at
	// finalization.
	Patches int
	// BytesUsed is the sum of the bytes used in each chunk, including
	// alignment padding between allocations.
	BytesUsed uint64
	// BytesReserved is the sum of the chunk capacities.
	BytesReserved uint64
}

func (s BuilderStats) String() string {
	return redact.StringWithoutMarkers(s)
}

// SafeFormat implements redact.SafeFormatter.
func (s BuilderStats) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("chunks: %d, allocations: %d, patches: %d, used: %s of %s",
		redact.Safe(s.Chunks), redact.Safe(s.Allocations), redact.Safe(s.Patches),
		crhumanize.Bytes(s.BytesUsed, crhumanize.Compact, crhumanize.OmitI),
		crhumanize.Bytes(s.BytesReserved, crhumanize.Compact, crhumanize.OmitI))
}
