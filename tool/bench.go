// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tool

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/cockroachdb/crlib/crhumanize"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/relblob"
	"github.com/cockroachdb/tokenbucket"
	"github.com/guptarohit/asciigraph"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"golang.org/x/exp/rand"
)

const (
	minLatency = time.Microsecond
	maxLatency = 10 * time.Second
)

// benchNode is the root and node type of the trees built by the benchmark.
type benchNode struct {
	Value    int64
	Name     relblob.String
	Children relblob.Array[benchNode]
}

type benchPhase int

const (
	phaseBuild benchPhase = iota
	phaseFinalize
	phaseWrite
	phaseRead
	numPhases
)

var phaseNames = [numPhases]string{
	phaseBuild:    "build",
	phaseFinalize: "finalize",
	phaseWrite:    "write",
	phaseRead:     "read",
}

// benchT implements the benchmark tool.
type benchT struct {
	Root *cobra.Command

	// Configuration and state.
	opts      *relblob.Options
	assets    int
	nodes     int
	chunkSize int
	rate      float64
	seed      uint64
	plot      bool
}

func newBench(opts *relblob.Options) *benchT {
	b := &benchT{
		opts: opts,
	}
	b.Root = &cobra.Command{
		Use:   "bench",
		Short: "benchmark building, finalizing and serializing assets",
		Long: `
Build random trees, finalize each into an asset, write it to memory and read
it back, reporting the latency distribution of every phase.
`,
		Args: cobra.NoArgs,
		Run:  b.run,
	}
	b.Root.Flags().IntVarP(
		&b.assets, "assets", "n", 1000, "number of assets to build")
	b.Root.Flags().IntVar(
		&b.nodes, "nodes", 1000, "number of tree nodes in each asset")
	b.Root.Flags().IntVar(
		&b.chunkSize, "chunk-size", relblob.DefaultChunkSize, "builder chunk size")
	b.Root.Flags().Float64Var(
		&b.rate, "rate", 0, "maximum assets built per second (0 means unlimited)")
	b.Root.Flags().Uint64Var(
		&b.seed, "seed", 0, "random seed (0 picks one from the clock)")
	b.Root.Flags().BoolVar(
		&b.plot, "plot", false, "plot the finalize latency of each asset")
	return b
}

func (b *benchT) run(cmd *cobra.Command, args []string) {
	stdout, stderr := cmd.OutOrStdout(), cmd.OutOrStderr()
	if err := b.runBench(context.Background(), stdout); err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
	}
}

func (b *benchT) runBench(ctx context.Context, stdout io.Writer) error {
	if b.assets <= 0 || b.nodes <= 0 {
		return errors.Newf("--assets and --nodes must be positive")
	}
	seed := b.seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	rng := rand.New(rand.NewSource(seed))

	var limiter *tokenbucket.TokenBucket
	if b.rate > 0 {
		limiter = &tokenbucket.TokenBucket{}
		rate := tokenbucket.TokensPerSecond(b.rate)
		limiter.Init(rate, tokenbucket.Tokens(max(rate*0.1, 1)))
	}

	opts := b.opts.Clone()
	opts.ChunkSize = b.chunkSize
	var hists [numPhases]*hdrhistogram.Histogram
	for i := range hists {
		hists[i] = hdrhistogram.New(minLatency.Nanoseconds(), maxLatency.Nanoseconds(), 2)
	}
	record := func(p benchPhase, start time.Time) time.Duration {
		d := time.Since(start)
		_ = hists[p].RecordValue(max(d.Nanoseconds(), minLatency.Nanoseconds()))
		return d
	}

	var buf bytes.Buffer
	var written uint64
	finalizeMicros := make([]float64, 0, b.assets)
	for i := 0; i < b.assets; i++ {
		if limiter != nil {
			if err := limiter.WaitCtx(ctx, 1); err != nil {
				return err
			}
		}

		start := time.Now()
		bld := relblob.NewBuilder(opts)
		buildBenchTree(bld, rng, b.nodes)
		record(phaseBuild, start)

		start = time.Now()
		ref := relblob.CreateAssetRef[benchNode](bld)
		bld.Dispose()
		d := record(phaseFinalize, start)
		finalizeMicros = append(finalizeMicros, float64(d.Nanoseconds())/1e3)

		buf.Reset()
		start = time.Now()
		err := relblob.Write(&buf, ref, 1)
		record(phaseWrite, start)
		ref.Dispose()
		if err != nil {
			return err
		}
		written += uint64(buf.Len())

		start = time.Now()
		got, ok, err := relblob.TryRead[benchNode](&buf, 1)
		record(phaseRead, start)
		switch {
		case err != nil:
			return err
		case !ok:
			return errors.AssertionFailedf("asset %d was written with an unexpected version", i)
		}
		got.Dispose()
	}

	fmt.Fprintf(stdout, "seed %d: %d assets of %d nodes, %s written\n", seed, b.assets, b.nodes,
		crhumanize.Bytes(written, crhumanize.Compact, crhumanize.OmitI))
	tbl := tablewriter.NewWriter(stdout)
	tbl.SetHeader([]string{"phase", "ops", "p50(us)", "p95(us)", "p99(us)", "pMax(us)"})
	for p, h := range hists {
		tbl.Append([]string{
			phaseNames[p],
			fmt.Sprintf("%d", h.TotalCount()),
			fmt.Sprintf("%.1f", float64(h.ValueAtQuantile(50))/1e3),
			fmt.Sprintf("%.1f", float64(h.ValueAtQuantile(95))/1e3),
			fmt.Sprintf("%.1f", float64(h.ValueAtQuantile(99))/1e3),
			fmt.Sprintf("%.1f", float64(h.ValueAtQuantile(100))/1e3),
		})
	}
	tbl.Render()
	if b.plot {
		fmt.Fprintln(stdout, asciigraph.Plot(finalizeMicros,
			asciigraph.Height(10), asciigraph.Caption("finalize latency (us)")))
	}
	fmt.Fprint(stdout, relblob.GetMemoryMetrics())
	return nil
}

// buildBenchTree builds a random tree of n nodes breadth first.
func buildBenchTree(b *relblob.Builder, rng *rand.Rand, n int) {
	root := relblob.ConstructRoot[benchNode](b)
	root.Value = rng.Int63()
	b.AllocateString(&root.Name, "root")
	queue := []*benchNode{root}
	for remaining := n - 1; remaining > 0 && len(queue) > 0; {
		parent := queue[0]
		queue = queue[1:]
		k := min(1+rng.Intn(4), remaining)
		remaining -= k
		children := relblob.AllocateArray(b, &parent.Children, k)
		for i := range children {
			children[i].Value = rng.Int63()
			b.AllocateString(&children[i].Name, fmt.Sprintf("node-%d", n-remaining-k+i))
			queue = append(queue, &children[i])
		}
	}
}
