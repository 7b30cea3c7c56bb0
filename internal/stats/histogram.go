// Copyright (C) 2020 Markus L. Noga
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
	"math"
	"golang.org/x/exp/constraints"
)

// Calculate histogram of data normalized to [0,1] into given bins, rounding to the nearest bin.
// Adds to the existing bin counts. NaNs are skipped. Returns the number of values counted.
func Histogram[W constraints.Float](data []W, bins []int64) (n int64) {
	last := len(bins) - 1
	scale := W(last)
	for _, d := range data {
		if d != d {
			continue
		}
		index := int(d*scale + 0.5)
		if index < 0 {
			index = 0
		} else if index > last {
			index = last
		}
		bins[index]++
		n++
	}
	return n
}

// Returns the bin index holding the q-quantile of n counted values. The q-quantile is the
// lowest value for which at least a fraction q of all values are less or equal.
func HistogramQuantileIndex(bins []int64, n int64, q float64) int {
	fidx := q * float64(n)
	cumsum := int64(0)
	for i, b := range bins {
		cumsum += b
		if cumsum > 0 && float64(cumsum) >= fidx {
			return i
		}
	}
	return len(bins) - 1
}

// Returns the pLow-quantile and the (1-pHigh)-quantile of the histogram, as normalized values in [0,1]
func HistogramQuantiles(bins []int64, n int64, pLow, pHigh float64) (low, high float64) {
	if n == 0 || len(bins) < 2 {
		return 0, 1
	}
	scale := 1 / float64(len(bins)-1)
	low = float64(HistogramQuantileIndex(bins, n, pLow)) * scale
	high = float64(HistogramQuantileIndex(bins, n, 1-pHigh)) * scale
	return low, high
}

// Returns the index of the q-quantile in a sorted array of n values
func QuantileIndex(q float64, n int) int {
	i := int(math.Ceil(q*float64(n))) - 1
	if i < 0 {
		i = 0
	} else if i > n-1 {
		i = n - 1
	}
	return i
}
