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
	"errors"
	"math"
	"testing"
	"github.com/mlnoga/imadjust/internal/ndimg"
	"github.com/valyala/fastrand"
)

// A pool with tiny batches, so that even small test images are split
func newTestPool() *Pool {
	p:=NewPool(4)
	p.BatchSize=7
	return p
}

func TestRegistry(t *testing.T) {
	h, err:=For(ndimg.Host)
	if err!=nil || h.Device()!=ndimg.Host { t.Errorf("For(host)=%v,%v", h, err) }
	p, err:=For(ndimg.Pool)
	if err!=nil || p.Device()!=ndimg.Pool { t.Errorf("For(pool)=%v,%v", p, err) }
	if _, err:=For(ndimg.Device(42)); !errors.Is(err, ndimg.ErrUnsupportedDevice) {
		t.Errorf("For(42) err=%v; want ErrUnsupportedDevice", err)
	}
}

func TestNormalizeDenormalizeRoundTrip(t *testing.T) {
	imgs:=[]*ndimg.Image{}
	add:=func(n int32, data interface{}) {
		img, err:=ndimg.NewImage([]int32{n}, data)
		if err!=nil { t.Fatal(err) }
		imgs=append(imgs, img)
	}
	add(6, []uint8{0, 1, 127, 128, 254, 255})
	add(4, []uint16{0, 1, 32767, 65535})
	add(3, []uint32{0, 1, 4294967295})
	add(5, []int8{-128, -1, 0, 1, 127})
	add(4, []int16{-32768, -1, 0, 32767})
	add(3, []int32{-2147483648, 0, 2147483647})
	add(5, []float32{0, 0.25, 1, -0.5, 2})
	add(5, []float64{0, 0.125, 1, -3, 4})

	for _, be:=range []Backend{NewHost(), newTestPool()} {
		for _, img:=range imgs {
			for _, single:=range []bool{false, true} {
				if single && (img.DType==ndimg.DTUint32 || img.DType==ndimg.DTInt32 || img.DType==ndimg.DTFloat64) { continue }
				buf, err:=be.Normalize(img, single)
				if err!=nil { t.Fatalf("%s %v: normalize err=%v", be.Name(), img.DType, err) }
				if buf.Single()!=single { t.Errorf("%s %v: single=%v; want %v", be.Name(), img.DType, buf.Single(), single) }
				out, err:=be.Denormalize(buf, img)
				if err!=nil { t.Fatalf("%s %v: denormalize err=%v", be.Name(), img.DType, err) }
				be.Release(buf)
				if out.DType!=img.DType || !out.SameShape(img) { t.Errorf("%s: got %v %s; want %v %s", be.Name(), out.DType, out.DimensionsToString(), img.DType, img.DimensionsToString()) }
				want, got:=img.Float64s(), out.Float64s()
				for i:=range want {
					if got[i]!=want[i] { t.Errorf("%s %v single=%v: [%d]=%g; want %g", be.Name(), img.DType, single, i, got[i], want[i]) }
				}
			}
		}
	}
}

func TestDenormalizeSaturatesAndRounds(t *testing.T) {
	like, _:=ndimg.NewImage([]int32{6}, make([]uint8, 6))
	for _, be:=range []Backend{NewHost(), newTestPool()} {
		buf:=&Buffer{F64: []float64{-0.5, 0, 0.5, 10.6/255, 1, 1.5}}
		out, err:=be.Denormalize(buf, like)
		if err!=nil { t.Fatal(err) }
		want:=[]uint8{0, 0, 128, 11, 255, 255}
		for i, w:=range want {
			if got:=out.Data.([]uint8)[i]; got!=w { t.Errorf("%s: [%d]=%d; want %d", be.Name(), i, got, w) }
		}
	}
}

func TestKernelsAgree(t *testing.T) {
	rng:=fastrand.RNG{}
	n:=1001
	data:=make([]float64, n)
	for i:=range data { data[i]=float64(rng.Uint32n(10000))/9999 }
	data[17]=math.NaN()

	host, pool:=NewHost(), newTestPool()
	run:=func(be Backend) []float64 {
		buf:=&Buffer{F64: append([]float64(nil), data...)}
		be.Clamp(buf, 0.1, 0.8)
		be.ScaleOffset(buf, 1/0.7, -0.1/0.7)
		be.Clamp(buf, 0, 1)
		be.Pow(buf, 0.5)
		return buf.F64
	}
	a, b:=run(host), run(pool)
	for i:=range a {
		if !(a[i]==b[i] || (math.IsNaN(a[i]) && math.IsNaN(b[i]))) { t.Errorf("[%d] host %g pool %g", i, a[i], b[i]) }
		if !math.IsNaN(a[i]) && (a[i]<0 || a[i]>1) { t.Errorf("[%d]=%g outside [0,1]", i, a[i]) }
	}
	if !math.IsNaN(a[17]) { t.Errorf("NaN not kept: %g", a[17]) }
}

func TestQuantilesAgree(t *testing.T) {
	rng:=fastrand.RNG{}
	host, pool:=NewHost(), newTestPool()
	for _, n:=range []int{1, 5, 64, 1000} {
		grid:=make([]float32, n)
		free:=make([]float64, n)
		for i:=0; i<n; i++ {
			grid[i]=float32(rng.Uint32n(256))/255
			free[i]=float64(rng.Uint32())/math.MaxUint32
		}
		for _, p:=range [][2]float64{ {0.005,0.005}, {0.05,0.01}, {0,0.2} } {
			bg:=&Buffer{F32: grid}
			hl, hh:=host.Quantiles(bg, p[0], p[1], QuantileOpts{Bins: 256})
			pl, ph:=pool.Quantiles(bg, p[0], p[1], QuantileOpts{Bins: 256})
			sl, sh:=host.Quantiles(bg, p[0], p[1], QuantileOpts{})
			if hl!=pl || hh!=ph { t.Errorf("n=%d p=%v histogram host [%g,%g] pool [%g,%g]", n, p, hl, hh, pl, ph) }
			if math.Abs(hl-sl)>1e-6 || math.Abs(hh-sh)>1e-6 { t.Errorf("n=%d p=%v histogram [%g,%g] sort [%g,%g]", n, p, hl, hh, sl, sh) }

			bf:=&Buffer{F64: free}
			hl, hh=host.Quantiles(bf, p[0], p[1], QuantileOpts{})
			pl, ph=pool.Quantiles(bf, p[0], p[1], QuantileOpts{})
			if hl!=pl || hh!=ph { t.Errorf("n=%d p=%v host [%g,%g] pool [%g,%g]", n, p, hl, hh, pl, ph) }
		}
	}
}

func TestPoolRunsAllBatches(t *testing.T) {
	p:=newTestPool()
	for _, n:=range []int{0, 1, 7, 8, 100, 1001} {
		hits:=make([]int32, n)
		p.run(n, func(lo, hi int) {
			for i:=lo; i<hi; i++ { hits[i]++ }
		})
		for i, h:=range hits {
			if h!=1 { t.Errorf("n=%d: index %d visited %d times; want 1", n, i, h) }
		}
	}
}

func TestBufferPoolReuse(t *testing.T) {
	a:=poolFloat64.get(123)
	if len(a)!=123 { t.Errorf("len=%d; want 123", len(a)) }
	poolFloat64.put(a)
	b:=poolFloat64.get(123)
	if len(b)!=123 { t.Errorf("len=%d; want 123", len(b)) }
	ClearPools()
	c:=poolFloat32.get(5)
	if len(c)!=5 { t.Errorf("len=%d; want 5", len(c)) }
}

func TestSampledQuantilesDeterministic(t *testing.T) {
	rng:=fastrand.RNG{}
	data:=make([]float64, 10000)
	for i:=range data { data[i]=float64(rng.Uint32())/math.MaxUint32 }
	b:=&Buffer{F64: data}
	opts:=QuantileOpts{MaxSamples: 100}

	host, pool:=NewHost(), newTestPool()
	l0, h0:=host.Quantiles(b, 0.05, 0.05, opts)
	for i:=0; i<3; i++ {
		if l, h:=host.Quantiles(b, 0.05, 0.05, opts); l!=l0 || h!=h0 { t.Errorf("host call %d [%g,%g]; want [%g,%g]", i, l, h, l0, h0) }
		if l, h:=pool.Quantiles(b, 0.05, 0.05, opts); l!=l0 || h!=h0 { t.Errorf("pool call %d [%g,%g]; want [%g,%g]", i, l, h, l0, h0) }
	}
}
