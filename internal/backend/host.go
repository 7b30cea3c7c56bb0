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
	"github.com/mlnoga/imadjust/internal/ndimg"
	"github.com/mlnoga/imadjust/internal/stats"
)

// Backend for host memory. Runs all kernels serially on the calling goroutine
type Host struct {
	kernels
}

var _ Backend = (*Host)(nil) // this type is a Backend

func NewHost() *Host {
	h:=&Host{}
	h.run=func(n int, f func(lo, hi int)) {
		if n>0 { f(0, n) }
	}
	return h
}

func (h *Host) Name() string { return "host" }

func (h *Host) Device() ndimg.Device { return ndimg.Host }

func (h *Host) String() string { return "host, serial" }

func (h *Host) Quantiles(b *Buffer, pLow, pHigh float64, opts QuantileOpts) (low, high float64) {
	if opts.MaxSamples>0 && b.Len()>opts.MaxSamples {
		rng:=samplingRNG(b.Len())
		if b.Single() { return stats.SampledQuantiles(b.F32, pLow, pHigh, opts.MaxSamples, rng) }
		return stats.SampledQuantiles(b.F64, pLow, pHigh, opts.MaxSamples, rng)
	}
	if opts.Bins>1 {
		bins:=make([]int64, opts.Bins)
		var n int64
		if b.Single() {
			n=stats.Histogram(b.F32, bins)
		} else {
			n=stats.Histogram(b.F64, bins)
		}
		return stats.HistogramQuantiles(bins, n, pLow, pHigh)
	}
	if b.Single() { return stats.SortQuantiles(b.F32, pLow, pHigh) }
	return stats.SortQuantiles(b.F64, pLow, pHigh)
}
