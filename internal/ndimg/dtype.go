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


package ndimg

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"golang.org/x/exp/constraints"
)

// Returned for element types and data slices which cannot be processed
var ErrUnsupportedType=errors.New("unsupported type")

// Returned for unknown storage locations
var ErrUnsupportedDevice=errors.New("unsupported device")

// Numeric element types an image can hold
type Number interface {
	constraints.Integer | constraints.Float
}

// Element type of an image
type DType int
const (
	DTInvalid DType = iota
	DTUint8
	DTUint16
	DTUint32
	DTInt8
	DTInt16
	DTInt32
	DTFloat32
	DTFloat64
)

var dtypeNames=[...]string{"invalid", "uint8", "uint16", "uint32", "int8", "int16", "int32", "float32", "float64"}

// Native value range per element type. Normalization maps [Min,Max] onto [0,1].
// Floating point images are taken to be in [0,1] already.
var nativeRanges=[...]struct{ Min, Max float64 }{
	DTInvalid: {0, 1},
	DTUint8  : {0, math.MaxUint8},
	DTUint16 : {0, math.MaxUint16},
	DTUint32 : {0, math.MaxUint32},
	DTInt8   : {math.MinInt8, math.MaxInt8},
	DTInt16  : {math.MinInt16, math.MaxInt16},
	DTInt32  : {math.MinInt32, math.MaxInt32},
	DTFloat32: {0, 1},
	DTFloat64: {0, 1},
}

func (d DType) String() string {
	if !d.Valid() { return dtypeNames[0] }
	return dtypeNames[d]
}

func (d DType) Valid() bool { return d>DTInvalid && d<=DTFloat64 }

func (d DType) IsInteger() bool { return d>=DTUint8 && d<=DTInt32 }

// Size of one element in bytes
func (d DType) Size() int {
	switch d {
	case DTUint8,  DTInt8:                return 1
	case DTUint16, DTInt16:               return 2
	case DTUint32, DTInt32, DTFloat32:    return 4
	case DTFloat64:                       return 8
	}
	return 0
}

// Returns the native range of the type, i.e. the values mapped to 0 and 1 by normalization
func (d DType) NativeRange() (min, max float64) {
	if !d.Valid() { return 0, 1 }
	r:=nativeRanges[d]
	return r.Min, r.Max
}

// Number of exact histogram bins if the type has few enough distinct values, else 0
func (d DType) HistogramBins() int {
	switch d {
	case DTUint8,  DTInt8:  return 1<<8
	case DTUint16, DTInt16: return 1<<16
	}
	return 0
}

// Parses an element type name such as "uint16"
func ParseDType(s string) (DType, error) {
	for i, n:=range dtypeNames {
		if i>0 && n==s { return DType(i), nil }
	}
	return DTInvalid, fmt.Errorf("%w: element type '%s'", ErrUnsupportedType, s)
}

func (d DType) MarshalJSON() ([]byte, error) {
	if !d.Valid() { return nil, fmt.Errorf("%w: element type %d", ErrUnsupportedType, int(d)) }
	return json.Marshal(d.String())
}

func (d *DType) UnmarshalJSON(b []byte) error {
	var s string
	if err:=json.Unmarshal(b, &s); err!=nil { return err }
	dt, err:=ParseDType(s)
	if err!=nil { return err }
	*d=dt
	return nil
}


// Storage location of an image. Operations on an image run on the backend
// owning its device, and results are placed on the same device.
type Device int
const (
	Host Device = iota  // ordinary memory, serial kernels
	Pool                // memory owned by the multi-core worker pool backend
)

var deviceNames=[...]string{"host", "pool"}

func (d Device) String() string {
	if d<0 || int(d)>=len(deviceNames) { return fmt.Sprintf("device%d", int(d)) }
	return deviceNames[d]
}

func ParseDevice(s string) (Device, error) {
	if s=="" { return Host, nil }
	for i, n:=range deviceNames {
		if n==s { return Device(i), nil }
	}
	return Host, fmt.Errorf("%w: '%s'", ErrUnsupportedDevice, s)
}

func (d Device) MarshalJSON() ([]byte, error) { return json.Marshal(d.String()) }

func (d *Device) UnmarshalJSON(b []byte) error {
	var s string
	if err:=json.Unmarshal(b, &s); err!=nil { return err }
	dev, err:=ParseDevice(s)
	if err!=nil { return err }
	*d=dev
	return nil
}
