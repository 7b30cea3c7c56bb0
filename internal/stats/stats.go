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
	"fmt"
	"math"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Basic statistics on data arrays
type Stats struct {
	Min    float64  `json:"min"`    // Minimum
	Max    float64  `json:"max"`    // Maximum
	Mean   float64  `json:"mean"`   // Mean (average)
	StdDev float64  `json:"stdDev"` // Standard deviation (norm 2, sigma)
	NaNs   int      `json:"nans"`   // Number of NaN values, excluded from the above
}

// Calculate basic statistics for a data array. NaNs are counted and skipped.
// Without any finite values, all statistics are zero
func CalcStats(data []float64) (s *Stats) {
	s=&Stats{}
	finite:=data
	for _, d:=range data {
		if math.IsNaN(d) { s.NaNs++ }
	}
	if s.NaNs>0 {
		finite=make([]float64, 0, len(data)-s.NaNs)
		for _, d:=range data {
			if !math.IsNaN(d) { finite=append(finite, d) }
		}
	}
	if len(finite)==0 { return s }

	s.Min, s.Max=floats.Min(finite), floats.Max(finite)
	if len(finite)>1 {
		s.Mean, s.StdDev=stat.MeanStdDev(finite, nil)
	} else {
		s.Mean=finite[0]
	}
	return s
}

// True if all values are equal, or there are none
func (s *Stats) IsUniform() bool {
	return !(s.Max>s.Min)
}

// Pretty print basic stats to string
func (s *Stats) String() string {
	str:=fmt.Sprintf("Min %.6g Max %.6g Mean %.6g StdDev %.6g", s.Min, s.Max, s.Mean, s.StdDev)
	if s.NaNs>0 { str+=fmt.Sprintf(" NaNs %d", s.NaNs) }
	return str
}

// Pretty print basic stats to CSV header
func (s *Stats) ToCSVHeader() string {
	return "Min,Max,Mean,StdDev,NaNs"
}

// Pretty print basic stats to CSV line item
func (s *Stats) ToCSVLine() string {
	return fmt.Sprintf("%.6g,%.6g,%.6g,%.6g,%d", s.Min, s.Max, s.Mean, s.StdDev, s.NaNs)
}
