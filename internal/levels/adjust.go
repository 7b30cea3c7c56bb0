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


// Package levels remaps image intensities from an input range onto an output range
// with optional gamma correction, in the manner of a levels dialog.
package levels

import (
	"fmt"
	"math"
	"github.com/mlnoga/imadjust/internal/backend"
	"github.com/mlnoga/imadjust/internal/ndimg"
)

// Parameters of an intensity adjustment
type Options struct {
	In         InLevel          `json:"inLevel"`
	Out        OutLevel         `json:"outLevel"`
	Gamma      float64          `json:"gamma"`      // exponent applied to normalized values. 1 is linear
	UseSingle  bool             `json:"useSingle"`  // compute integer images in single precision
	MaxSamples int              `json:"maxSamples"` // if >0, estimate quantiles from this many random samples
	Backend    backend.Backend  `json:"-"`          // if nil, the backend of the image's device
}

// Auto input level, full output range, linear gamma
func DefaultOptions() Options {
	return Options{Gamma: 1}
}

func (o *Options) Validate() error {
	if err:=o.In.Validate(); err!=nil { return err }
	if err:=o.Out.Validate(); err!=nil { return err }
	if !(o.Gamma>0) || math.IsInf(o.Gamma, 1) {
		return fmt.Errorf("%w: gamma %g must be finite and positive", ErrInvalidArgument, o.Gamma)
	}
	if o.MaxSamples<0 { return fmt.Errorf("%w: negative sample count %d", ErrInvalidArgument, o.MaxSamples) }
	return nil
}

// The normalized bounds an adjustment actually used
type Limits struct {
	InLow    float64  `json:"inLow"`
	InHigh   float64  `json:"inHigh"`
	OutLow   float64  `json:"outLow"`
	OutHigh  float64  `json:"outHigh"`
	Gamma    float64  `json:"gamma"`
}

func (l Limits) String() string {
	return fmt.Sprintf("in [%.6g,%.6g] out [%.6g,%.6g] gamma %.4g", l.InLow, l.InHigh, l.OutLow, l.OutHigh, l.Gamma)
}

// True if float32 is used as working precision for the given element type
func WorkingSingle(dtype ndimg.DType, useSingle bool) bool {
	return dtype==ndimg.DTFloat32 || (useSingle && dtype.IsInteger())
}

// Remaps the intensities of img from the input level onto the output level with given gamma.
// Returns a new image of the same shape, element type and device
func Adjust(img *ndimg.Image, in InLevel, out OutLevel, gamma float64, useSingle bool) (*ndimg.Image, error) {
	res, _, err:=AdjustWith(img, Options{In: in, Out: out, Gamma: gamma, UseSingle: useSingle})
	return res, err
}

// Remaps the intensities of img as per the given options. Returns the new image and the limits used
func AdjustWith(img *ndimg.Image, opts Options) (*ndimg.Image, Limits, error) {
	be, err:=prepare(img, &opts)
	if err!=nil { return nil, Limits{}, err }

	buf, err:=be.Normalize(img, WorkingSingle(img.DType, opts.UseSingle))
	if err!=nil { return nil, Limits{}, err }
	defer be.Release(buf)

	lim:=Limits{Gamma: opts.Gamma}
	lim.InLow, lim.InHigh=resolve(be, buf, img.DType, &opts)
	lim.OutLow, lim.OutHigh=opts.Out.Bounds()

	// map [InLow, InHigh] onto [0,1]. A degenerate input range maps everything to OutLow.
	// Subtracting first keeps InLow at exactly zero in both precisions
	be.Clamp(buf, lim.InLow, lim.InHigh)
	be.ScaleOffset(buf, 1, -lim.InLow)
	scale:=0.0
	if span:=lim.InHigh-lim.InLow; span>0 { scale=1/span }
	be.ScaleOffset(buf, scale, 0)
	be.Clamp(buf, 0, 1)

	if opts.Gamma!=1 { be.Pow(buf, opts.Gamma) }

	// map [0,1] onto [OutLow, OutHigh], which may be inverted
	be.ScaleOffset(buf, lim.OutHigh-lim.OutLow, lim.OutLow)

	res, err:=be.Denormalize(buf, img)
	if err!=nil { return nil, Limits{}, err }
	return res, lim, nil
}

// Determines the limits an adjustment of img with given options would use, without transforming it
func ResolveLimits(img *ndimg.Image, opts Options) (Limits, error) {
	be, err:=prepare(img, &opts)
	if err!=nil { return Limits{}, err }

	lim:=Limits{Gamma: opts.Gamma}
	lim.OutLow, lim.OutHigh=opts.Out.Bounds()
	if low, high, ok:=opts.In.Bounds(); ok {
		lim.InLow, lim.InHigh=low, high
		return lim, nil
	}

	buf, err:=be.Normalize(img, WorkingSingle(img.DType, opts.UseSingle))
	if err!=nil { return Limits{}, err }
	defer be.Release(buf)
	lim.InLow, lim.InHigh=resolve(be, buf, img.DType, &opts)
	return lim, nil
}

// Validates arguments and picks the backend
func prepare(img *ndimg.Image, opts *Options) (backend.Backend, error) {
	if img==nil { return nil, fmt.Errorf("%w: nil image", ErrInvalidArgument) }
	if err:=opts.Validate(); err!=nil { return nil, err }
	if err:=img.Validate(); err!=nil { return nil, err }
	if opts.Backend!=nil { return opts.Backend, nil }
	return backend.For(img.Device)
}

// Returns the normalized input bounds, either fixed or from quantiles of the buffer
func resolve(be backend.Backend, buf *backend.Buffer, dtype ndimg.DType, opts *Options) (low, high float64) {
	if low, high, ok:=opts.In.Bounds(); ok { return low, high }

	pLow, pHigh, _:=opts.In.Saturation()
	qo:=backend.QuantileOpts{Bins: dtype.HistogramBins(), MaxSamples: opts.MaxSamples}
	low, high=be.Quantiles(buf, pLow, pHigh, qo)

	// float images may hold values outside [0,1]
	low, high=unitClamp(low), unitClamp(high)
	if high<low { low, high=high, low }
	return low, high
}

func unitClamp(x float64) float64 {
	if x<0 { return 0 }
	if x>1 { return 1 }
	return x
}
