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


// Package backend provides the array primitives the intensity transform is built from.
// Each storage device has one backend, which allocates working buffers, runs the
// elementwise kernels and quantile computations, and places results on its device.
package backend

import (
	"fmt"
	"sync"
	"github.com/mlnoga/imadjust/internal/ndimg"
	"github.com/valyala/fastrand"
)

// Working values of an image, normalized to its native range.
// Exactly one of F32 and F64 is set.
type Buffer struct {
	F32 []float32
	F64 []float64
}

func (b *Buffer) Len() int {
	if b.F32!=nil { return len(b.F32) }
	return len(b.F64)
}

// True if the buffer holds single precision values
func (b *Buffer) Single() bool { return b.F32!=nil }

// Options for quantile computation
type QuantileOpts struct {
	Bins       int  // if >0, values lie on a grid of Bins equidistant steps in [0,1] and an exact histogram is used
	MaxSamples int  // if >0, estimate from at most this many random samples instead
}

// Returns a random generator seeded from the buffer length. The seed is never 0, which draws from the clock
func samplingRNG(n int) *fastrand.RNG {
	rng:=&fastrand.RNG{}
	rng.Seed(uint32(n)*2654435761 | 1)
	return rng
}

// The set of array primitives an intensity transform needs
type Backend interface {
	Name() string
	Device() ndimg.Device

	// Converts the image to working precision and normalizes its native range to [0,1]
	Normalize(img *ndimg.Image, single bool) (*Buffer, error)

	// Returns the pLow-quantile and the (1-pHigh)-quantile of the buffer, ignoring NaNs
	Quantiles(b *Buffer, pLow, pHigh float64, opts QuantileOpts) (low, high float64)

	// Saturates values to [lo, hi]. Operates in-place
	Clamp(b *Buffer, lo, hi float64)

	// Raises values to the given power. Operates in-place
	Pow(b *Buffer, gamma float64)

	// Applies given scale factor and offset. Operates in-place
	ScaleOffset(b *Buffer, scale, offset float64)

	// Maps values from [0,1] back to the native range of like, rounding and saturating
	// for integer types. Returns a new image with the same shape, type and device as like
	Denormalize(b *Buffer, like *ndimg.Image) (*ndimg.Image, error)

	// Hands the buffer back for reuse. The buffer must not be used afterwards
	Release(b *Buffer)
}

var backends=struct{
	sync.RWMutex
	m map[ndimg.Device]Backend
}{m: make(map[ndimg.Device]Backend)}

// Registers the backend for its device, replacing any previous one
func Register(b Backend) {
	backends.Lock()
	backends.m[b.Device()]=b
	backends.Unlock()
}

// Returns the backend for the given device
func For(device ndimg.Device) (Backend, error) {
	backends.RLock()
	b:=backends.m[device]
	backends.RUnlock()
	if b==nil { return nil, fmt.Errorf("%w: no backend for device %v", ndimg.ErrUnsupportedDevice, device) }
	return b, nil
}

func init() {
	Register(NewHost())
	Register(NewPool(0))
}
