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


package backend

import (
	"runtime"
	"sync"
)

// Pools of constant sized arrays of given type, to reduce memory allocation overhead
type sizedPools[W any] struct {
	sync.RWMutex
	m map[int]*sync.Pool
}

func newSizedPools[W any]() *sizedPools[W] {
	return &sizedPools[W]{m: make(map[int]*sync.Pool)}
}

var poolFloat32=newSizedPools[float32]()
var poolFloat64=newSizedPools[float64]()

// Clears all memory pools and triggers garbage collection
func ClearPools() {
	poolFloat32.clear()
	poolFloat64.clear()
	runtime.GC()
}

func (p *sizedPools[W]) clear() {
	p.Lock()
	p.m=make(map[int]*sync.Pool)
	p.Unlock()
}

// Returns a pool for arrays of the given size
func (p *sizedPools[W]) sized(size int) *sync.Pool {
	p.RLock()
	pool:=p.m[size]
	p.RUnlock()
	if pool==nil {
		p.Lock()
		if pool=p.m[size]; pool==nil {
			pool=&sync.Pool{
				New: func() interface{} {
					return make([]W, size)
				},
			}
			p.m[size]=pool
		}
		p.Unlock()
	}
	return pool
}

// Retrieves an array of given size from the pool. Contents are undefined
func (p *sizedPools[W]) get(size int) []W {
	return p.sized(size).Get().([]W)
}

// Returns an array to the pool
func (p *sizedPools[W]) put(arr []W) {
	if cap(arr)==0 { return }
	p.sized(cap(arr)).Put(arr[:cap(arr)])
}
