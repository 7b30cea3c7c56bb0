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


package stats

import (
	"sort"
	"github.com/mlnoga/imadjust/internal/qsort"
	"github.com/valyala/fastrand"
	"golang.org/x/exp/constraints"
	"gonum.org/v1/gonum/stat"
)

// Returns the pLow-quantile and the (1-pHigh)-quantile of sorted data
func SortedQuantiles(sorted []float64, pLow, pHigh float64) (low, high float64) {
	if len(sorted)==0 { return 0, 1 }
	low =stat.Quantile(pLow,   stat.Empirical, sorted, nil)
	high=stat.Quantile(1-pHigh, stat.Empirical, sorted, nil)
	return low, high
}

// Returns the pLow-quantile and the (1-pHigh)-quantile of data, ignoring NaNs.
// Copies and sorts the data, does not change it.
func SortQuantiles[W constraints.Float](data []W, pLow, pHigh float64) (low, high float64) {
	tmp:=make([]float64, 0, len(data))
	for _, d:=range data {
		if d==d { tmp=append(tmp, float64(d)) }
	}
	sort.Float64s(tmp)
	return SortedQuantiles(tmp, pLow, pHigh)
}

// Returns the pLow-quantile and the (1-pHigh)-quantile of data with k-th element selection,
// ignoring NaNs. Uses scratch as temporary storage if large enough. Does not change the data.
func SelectQuantiles[W constraints.Float](data, scratch []W, pLow, pHigh float64) (low, high float64) {
	if cap(scratch)<len(data) { scratch=make([]W, len(data)) }
	tmp:=scratch[:0]
	for _, d:=range data {
		if d==d { tmp=append(tmp, d) }
	}
	if len(tmp)==0 { return 0, 1 }

	lowIdx :=QuantileIndex(pLow,   len(tmp))
	highIdx:=QuantileIndex(1-pHigh, len(tmp))
	if highIdx<lowIdx { highIdx=lowIdx }
	low =float64(qsort.QSelect(tmp, lowIdx+1))
	// elements right of lowIdx are not less than low, so the search can continue there
	high=float64(qsort.QSelect(tmp[lowIdx:], highIdx-lowIdx+1))
	return low, high
}

// Estimates the pLow-quantile and the (1-pHigh)-quantile of data from numSamples random samples,
// ignoring NaNs. Falls back to the exact quantiles if the data is not larger than numSamples.
func SampledQuantiles[W constraints.Float](data []W, pLow, pHigh float64, numSamples int, rng *fastrand.RNG) (low, high float64) {
	if numSamples<=0 || len(data)<=numSamples { return SortQuantiles(data, pLow, pHigh) }
	samples:=make([]float64, 0, numSamples)
	for i:=0; i<numSamples; i++ {
		d:=data[rng.Uint32n(uint32(len(data)))]
		if d==d { samples=append(samples, float64(d)) }
	}
	sort.Float64s(samples)
	return SortedQuantiles(samples, pLow, pHigh)
}
