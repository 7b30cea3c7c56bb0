// Copyright (C) 2021 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.


package backend

import (
	"fmt"
	"runtime"
	"github.com/klauspost/cpuid"
	"github.com/mlnoga/imadjust/internal/ndimg"
	"github.com/mlnoga/imadjust/internal/stats"
)

// Backend for memory owned by a pool of worker goroutines. Splits kernels into
// batches sized to the L2 cache, and runs them on all available CPUs.
type Pool struct {
	kernels
	Threads   int   // maximum number of concurrently running batches
	BatchSize int   // number of elements per batch
}

var _ Backend = (*Pool)(nil) // this type is a Backend

// Creates a pool backend with given number of threads. 0 uses runtime.GOMAXPROCS
func NewPool(threads int) *Pool {
	if threads<=0 { threads=runtime.GOMAXPROCS(0) }
	p:=&Pool{
		Threads   : threads,
		BatchSize : defaultBatchSize(),
	}
	p.run=p.runBatches
	return p
}

// Half the L2 cache in float64 values, leaving room for the source data
func defaultBatchSize() int {
	l2:=cpuid.CPU.Cache.L2
	if l2<=0 { l2=256*1024 }
	size:=l2/(2*8)
	if size<4096 { size=4096 }
	return size
}

func (p *Pool) Name() string { return "pool" }

func (p *Pool) Device() ndimg.Device { return ndimg.Pool }

func (p *Pool) String() string {
	brand:=cpuid.CPU.BrandName
	if brand=="" { brand="unknown CPU" }
	return fmt.Sprintf("pool, %d threads, batch size %d, %s with %d physical cores, AVX2 %v",
	                   p.Threads, p.BatchSize, brand, cpuid.CPU.PhysicalCores, cpuid.CPU.AVX2())
}

// Splits [0,n) into batches and runs them with limited parallelism. Returns when all batches are done
func (p *Pool) runBatches(n int, f func(lo, hi int)) {
	batchSize:=p.BatchSize
	if batchSize<=0 { batchSize=4096 }
	if n<=batchSize {
		if n>0 { f(0, n) }
		return
	}

	sem:=make(chan bool, p.Threads)
	for lower:=0; lower<n; lower+=batchSize {
		upper:=lower+batchSize
		if upper>n { upper=n }

		sem <- true
		go func(lo, hi int) {
			f(lo, hi)
			<-sem
		}(lower, upper)
	}

	for i:=0; i<cap(sem); i++ {  // wait for goroutines to finish
		sem <- true
	}
}

// Splits [0,n) into one chunk per thread and runs them concurrently. Returns when all chunks are done
func (p *Pool) runChunks(n int, f func(chunk, lo, hi int)) int {
	chunks:=p.Threads
	if chunks<1 { chunks=1 }
	chunkSize:=(n+chunks-1)/chunks
	if chunkSize<p.BatchSize { chunkSize=p.BatchSize }
	if chunkSize<1 { chunkSize=1 }
	chunks=(n+chunkSize-1)/chunkSize

	done:=make(chan bool, chunks)
	for c:=0; c<chunks; c++ {
		lower, upper:=c*chunkSize, (c+1)*chunkSize
		if upper>n { upper=n }
		go func(c, lo, hi int) {
			f(c, lo, hi)
			done <- true
		}(c, lower, upper)
	}
	for c:=0; c<chunks; c++ {
		<-done
	}
	return chunks
}

func (p *Pool) Quantiles(b *Buffer, pLow, pHigh float64, opts QuantileOpts) (low, high float64) {
	if opts.MaxSamples>0 && b.Len()>opts.MaxSamples {
		rng:=samplingRNG(b.Len())
		if b.Single() { return stats.SampledQuantiles(b.F32, pLow, pHigh, opts.MaxSamples, rng) }
		return stats.SampledQuantiles(b.F64, pLow, pHigh, opts.MaxSamples, rng)
	}
	if opts.Bins>1 { return p.histogramQuantiles(b, pLow, pHigh, opts.Bins) }

	if b.Single() {
		scratch:=poolFloat32.get(len(b.F32))
		defer poolFloat32.put(scratch)
		return stats.SelectQuantiles(b.F32, scratch, pLow, pHigh)
	}
	scratch:=poolFloat64.get(len(b.F64))
	defer poolFloat64.put(scratch)
	return stats.SelectQuantiles(b.F64, scratch, pLow, pHigh)
}

// Calculates one histogram per chunk concurrently, then merges them
func (p *Pool) histogramQuantiles(b *Buffer, pLow, pHigh float64, numBins int) (low, high float64) {
	n:=b.Len()
	maxChunks:=p.Threads
	if maxChunks<1 { maxChunks=1 }
	partBins:=make([][]int64, maxChunks)
	partCounts:=make([]int64, maxChunks)

	chunks:=p.runChunks(n, func(c, lo, hi int) {
		bins:=make([]int64, numBins)
		if b.Single() {
			partCounts[c]=stats.Histogram(b.F32[lo:hi], bins)
		} else {
			partCounts[c]=stats.Histogram(b.F64[lo:hi], bins)
		}
		partBins[c]=bins
	})

	bins:=partBins[0]
	count:=partCounts[0]
	for c:=1; c<chunks; c++ {
		for i, v:=range partBins[c] { bins[i]+=v }
		count+=partCounts[c]
	}
	return stats.HistogramQuantiles(bins, count, pLow, pHigh)
}
