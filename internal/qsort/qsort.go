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
    "golang.org/x/exp/constraints"
)

// Sort an array in ascending order.
// Array must not contain IEEE NaN
func QSort[T constraints.Ordered](a []T) {
    if len(a)>1 {
        index := QPartition(a)
        QSort(a[:index+1])
        QSort(a[index+1:])
    }
}


// Partitions an array with the middle pivot element, and returns the pivot index.
// Values less than the pivot are moved left of the pivot, those greater are moved right.
// Array must not contain IEEE NaN
func QPartition[T constraints.Ordered](a []T) int {
    left, right:=0, len(a)-1
    mid   := (left+right)>>1
    pivot := a[mid]
    l := left -1
    r := right+1
    for {
        for {
            l++
            if a[l]>=pivot { break }
        }
        for {
            r--
            if a[r]<=pivot { break }
        }
        if l >= r { return r }
        a[l], a[r] = a[r], a[l]
    }
}


// Select median of an array. Partially reorders the array.
// Array must not contain IEEE NaN
func QSelectMedian[T constraints.Float](a []T) T {
    if (len(a)&1)!=0 { return QSelect(a, (len(a)>>1)+1) }
    lower:=QSelect(a, len(a)>>1)
    upper:=QSelect(a[len(a)>>1:], 1)  // the upper half holds no element below lower
    return 0.5*(lower+upper)
}


// Select kth lowest element from an array, with k starting at 1. Partially reorders the array,
// so that a[k-1] holds the result and no element left of it is greater.
// Array must not contain IEEE NaN
func QSelect[T constraints.Ordered](a []T, k int) T {
    left, right:=0, len(a)-1
    for left<right {
        // partition
        mid:=(left+right)>>1
        pivot := a[mid]
        l, r  := left-1, right+1
        for {
            for {
                l++
                if a[l]>=pivot { break }
            }
            for {
                r--
                if a[r]<=pivot { break }
            }
            if l >= r { break } // index in r
            a[l], a[r] = a[r], a[l]
        }
        index:=r

        offset:=index-left+1
        if k<=offset {
            right=index
        } else {
            left=index+1
            k=k-offset
        }
    }
    return a[left]
}
