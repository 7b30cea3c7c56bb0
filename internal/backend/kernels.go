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
	"math"
	"github.com/mlnoga/imadjust/internal/ndimg"
	"golang.org/x/exp/constraints"
)

// Runs f over the index range [0,n), possibly split into sub-ranges [lo,hi). Returns when all calls are done
type runner func(n int, f func(lo, hi int))

// Elementwise kernels shared by all backends. Backends differ in how they run them
type kernels struct {
	run runner
}

func (k *kernels) Normalize(img *ndimg.Image, single bool) (*Buffer, error) {
	if err:=img.Validate(); err!=nil { return nil, err }
	min, max:=img.DType.NativeRange()
	scale:=1/(max-min)
	n:=img.Len()

	if single {
		dst:=poolFloat32.get(n)
		k.run(n, func(lo, hi int) { normalizeFrom(img.Data, dst, lo, hi, min, scale) })
		return &Buffer{F32: dst}, nil
	}
	dst:=poolFloat64.get(n)
	k.run(n, func(lo, hi int) { normalizeFrom(img.Data, dst, lo, hi, min, scale) })
	return &Buffer{F64: dst}, nil
}

func (k *kernels) Clamp(b *Buffer, lo, hi float64) {
	if b.Single() {
		d, l, h:=b.F32, float32(lo), float32(hi)
		k.run(len(d), func(from, to int) { clamp(d[from:to], l, h) })
	} else {
		d:=b.F64
		k.run(len(d), func(from, to int) { clamp(d[from:to], lo, hi) })
	}
}

func (k *kernels) Pow(b *Buffer, gamma float64) {
	if b.Single() {
		d:=b.F32
		k.run(len(d), func(lo, hi int) { pow(d[lo:hi], gamma) })
	} else {
		d:=b.F64
		k.run(len(d), func(lo, hi int) { pow(d[lo:hi], gamma) })
	}
}

func (k *kernels) ScaleOffset(b *Buffer, scale, offset float64) {
	if b.Single() {
		d, s, o:=b.F32, float32(scale), float32(offset)
		k.run(len(d), func(lo, hi int) { scaleOffset(d[lo:hi], s, o) })
	} else {
		d:=b.F64
		k.run(len(d), func(lo, hi int) { scaleOffset(d[lo:hi], scale, offset) })
	}
}

func (k *kernels) Denormalize(b *Buffer, like *ndimg.Image) (*ndimg.Image, error) {
	out, err:=ndimg.NewImageLike(like)
	if err!=nil { return nil, err }
	if b.Len()!=out.Len() { return nil, fmt.Errorf("buffer length %d does not match image %s", b.Len(), out.DimensionsToString()) }
	min, max:=like.DType.NativeRange()
	span:=max-min

	if b.Single() {
		k.run(len(b.F32), func(lo, hi int) { denormalizeTo(b.F32[lo:hi], out.Data, lo, hi, min, span) })
	} else {
		k.run(len(b.F64), func(lo, hi int) { denormalizeTo(b.F64[lo:hi], out.Data, lo, hi, min, span) })
	}
	return out, nil
}

func (k *kernels) Release(b *Buffer) {
	if b==nil { return }
	poolFloat32.put(b.F32)
	poolFloat64.put(b.F64)
	b.F32, b.F64=nil, nil
}


// Normalizes data[lo:hi] of any supported type into dst[lo:hi]
func normalizeFrom[W constraints.Float](data interface{}, dst []W, lo, hi int, min, scale float64) {
	switch d:=data.(type) {
	case []uint8:   normalize(d[lo:hi], dst[lo:hi], min, scale)
	case []uint16:  normalize(d[lo:hi], dst[lo:hi], min, scale)
	case []uint32:  normalize(d[lo:hi], dst[lo:hi], min, scale)
	case []int8:    normalize(d[lo:hi], dst[lo:hi], min, scale)
	case []int16:   normalize(d[lo:hi], dst[lo:hi], min, scale)
	case []int32:   normalize(d[lo:hi], dst[lo:hi], min, scale)
	case []float32: normalize(d[lo:hi], dst[lo:hi], min, scale)
	case []float64: normalize(d[lo:hi], dst[lo:hi], min, scale)
	}
}

func normalize[T ndimg.Number, W constraints.Float](src []T, dst []W, min, scale float64) {
	for i, v:=range src {
		dst[i]=W((float64(v)-min)*scale)
	}
}

// Denormalizes src into data[lo:hi] of any supported type
func denormalizeTo[W constraints.Float](src []W, data interface{}, lo, hi int, min, span float64) {
	switch d:=data.(type) {
	case []uint8:   denormalizeInt(src, d[lo:hi], min, span, 0, math.MaxUint8)
	case []uint16:  denormalizeInt(src, d[lo:hi], min, span, 0, math.MaxUint16)
	case []uint32:  denormalizeInt(src, d[lo:hi], min, span, 0, math.MaxUint32)
	case []int8:    denormalizeInt(src, d[lo:hi], min, span, math.MinInt8,  math.MaxInt8)
	case []int16:   denormalizeInt(src, d[lo:hi], min, span, math.MinInt16, math.MaxInt16)
	case []int32:   denormalizeInt(src, d[lo:hi], min, span, math.MinInt32, math.MaxInt32)
	case []float32: denormalizeFloat(src, d[lo:hi], min, span)
	case []float64: denormalizeFloat(src, d[lo:hi], min, span)
	}
}

// Rounds half away from zero and saturates to [lower, upper]. NaN maps to lower
func denormalizeInt[W constraints.Float, T constraints.Integer](src []W, dst []T, min, span, lower, upper float64) {
	for i, v:=range src {
		x:=math.Round(float64(v)*span+min)
		if !(x>=lower) {
			x=lower
		} else if x>upper {
			x=upper
		}
		dst[i]=T(x)
	}
}

func denormalizeFloat[W constraints.Float, T constraints.Float](src []W, dst []T, min, span float64) {
	for i, v:=range src {
		dst[i]=T(float64(v)*span+min)
	}
}

// Saturates values to [lo, hi]. NaNs are kept
func clamp[W constraints.Float](data []W, lo, hi W) {
	for i, d:=range data {
		if d<lo {
			data[i]=lo
		} else if d>hi {
			data[i]=hi
		}
	}
}

func pow[W constraints.Float](data []W, gamma float64) {
	for i, d:=range data {
		data[i]=W(math.Pow(float64(d), gamma))
	}
}

func scaleOffset[W constraints.Float](data []W, scale, offset W) {
	for i, d:=range data {
		data[i]=d*scale+offset
	}
}
