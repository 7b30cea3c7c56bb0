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


package qsort

import (
	"testing"
	"github.com/valyala/fastrand"
)

// prepare array of given length with a random permutation of 1..n
func permutation(rng *fastrand.RNG, n int) []float64 {
	arr:=make([]float64, n)
	for j:=0; j<len(arr); j++ {
		arr[j]=float64(j+1)
	}
	for j:=0; j<len(arr); j++ {
		k:=rng.Uint32n(uint32(len(arr)))
		arr[j], arr[k] = arr[k], arr[j]
	}
	return arr
}

func TestMedian(t *testing.T) {
	rng:=fastrand.RNG{}
	for i:=1; i<1000; i++ {
		arr:=permutation(&rng, i)

		// calculate expected result
		var expect float64
		if (i&1)!=0 {
			expect=float64((i+1)/2)
		} else {
			expect=0.5*(float64(i/2) + float64(i/2+1))
		}

		// calculate actual result and compare
		res:=QSelectMedian(arr)
		if res!=expect {
			t.Logf("median(1..%d) got %f expect %f\n", i ,res, expect)
			t.Fail()
		}
	}
}

func TestSelect(t *testing.T) {
	rng:=fastrand.RNG{}
	for i:=1; i<300; i++ {
		for _, k:=range []int{1, (i+1)/2, i} {
			arr:=permutation(&rng, i)
			res:=QSelect(arr, k)
			if res!=float64(k) { t.Errorf("select(1..%d, %d)=%f; want %d", i, k, res, k) }
			if arr[k-1]!=res { t.Errorf("select(1..%d, %d) left a[k-1]=%f; want %f", i, k, arr[k-1], res) }
			for j:=0; j<k-1; j++ {
				if arr[j]>res { t.Errorf("select(1..%d, %d) a[%d]=%f > %f", i, k, j, arr[j], res) }
			}
		}
	}
}

func TestSelectWithDuplicates(t *testing.T) {
	arr:=[]uint8{3,3,3,1,1,9,9,9,9,3}
	want:=[]uint8{1,1,3,3,3,3,9,9,9,9}
	for k:=1; k<=len(arr); k++ {
		tmp:=append([]uint8(nil), arr...)
		if res:=QSelect(tmp, k); res!=want[k-1] { t.Errorf("select(%d)=%d; want %d", k, res, want[k-1]) }
	}
}

func TestSort(t *testing.T) {
	rng:=fastrand.RNG{}
	for i:=0; i<200; i++ {
		arr:=permutation(&rng, i)
		QSort(arr)
		for j:=range arr {
			if arr[j]!=float64(j+1) { t.Errorf("sort(1..%d) a[%d]=%f; want %d", i, j, arr[j], j+1) }
		}
	}
}
