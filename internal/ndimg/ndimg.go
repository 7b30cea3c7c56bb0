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
	"strings"
)

// An N-dimensional grayscale image with a fixed element type
type Image struct {
	ID       int         // Sequential ID number, for log output
	FileName string      // Original file name, if any, for log output

	Naxisn   []int32     // Axis dimensions. Most quickly varying dimension first (i.e. X,Y,...)
	Pixels   int32       // Number of elements in the image. Product of Naxisn[]
	DType    DType       // Element type of Data
	Device   Device      // Storage location

	Data     interface{} // The image data, one of []uint8 ... []float64 as per DType
}

// Returns the element type of a data slice
func DTypeOf(data interface{}) (DType, error) {
	switch data.(type) {
	case []uint8:   return DTUint8,   nil
	case []uint16:  return DTUint16,  nil
	case []uint32:  return DTUint32,  nil
	case []int8:    return DTInt8,    nil
	case []int16:   return DTInt16,   nil
	case []int32:   return DTInt32,   nil
	case []float32: return DTFloat32, nil
	case []float64: return DTFloat64, nil
	}
	return DTInvalid, fmt.Errorf("%w: data of type %T", ErrUnsupportedType, data)
}

// Returns the number of elements of a supported data slice, or -1
func dataLen(data interface{}) int {
	switch d:=data.(type) {
	case []uint8:   return len(d)
	case []uint16:  return len(d)
	case []uint32:  return len(d)
	case []int8:    return len(d)
	case []int16:   return len(d)
	case []int32:   return len(d)
	case []float32: return len(d)
	case []float64: return len(d)
	}
	return -1
}

// Allocates a zeroed data slice of given type and length
func MakeData(dtype DType, n int) (interface{}, error) {
	switch dtype {
	case DTUint8:   return make([]uint8,   n), nil
	case DTUint16:  return make([]uint16,  n), nil
	case DTUint32:  return make([]uint32,  n), nil
	case DTInt8:    return make([]int8,    n), nil
	case DTInt16:   return make([]int16,   n), nil
	case DTInt32:   return make([]int32,   n), nil
	case DTFloat32: return make([]float32, n), nil
	case DTFloat64: return make([]float64, n), nil
	}
	return nil, fmt.Errorf("%w: element type %v", ErrUnsupportedType, dtype)
}

func numPixels(naxisn []int32) (int32, error) {
	if len(naxisn)==0 { return 0, errors.New("image needs at least one axis") }
	n:=int64(1)
	for i, naxis:=range(naxisn) {
		if naxis<=0 { return 0, fmt.Errorf("axis %d has invalid length %d", i, naxis) }
		n*=int64(naxis)
		if n>math.MaxInt32 { return 0, fmt.Errorf("dimensions %s exceed %d elements", dimsToString(naxisn), math.MaxInt32) }
	}
	return int32(n), nil
}

// Creates an image on the host from given naxisn and data. Data is not copied. naxisn is deep copied
func NewImage(naxisn []int32, data interface{}) (*Image, error) {
	dtype, err:=DTypeOf(data)
	if err!=nil { return nil, err }
	n, err:=numPixels(naxisn)
	if err!=nil { return nil, err }
	if l:=dataLen(data); l!=int(n) {
		return nil, fmt.Errorf("data length %d does not match dimensions %s", l, dimsToString(naxisn))
	}
	return &Image{
		Naxisn : append([]int32(nil), naxisn...), // clone slice
		Pixels : n,
		DType  : dtype,
		Device : Host,
		Data   : data,
	}, nil
}

// Creates a zeroed image of given dimensions, element type and device
func NewImageOf(naxisn []int32, dtype DType, device Device) (*Image, error) {
	n, err:=numPixels(naxisn)
	if err!=nil { return nil, err }
	data, err:=MakeData(dtype, int(n))
	if err!=nil { return nil, err }
	return &Image{
		Naxisn : append([]int32(nil), naxisn...),
		Pixels : n,
		DType  : dtype,
		Device : device,
		Data   : data,
	}, nil
}

// Creates an image with the same metadata as the given one, and zeroed data
func NewImageLike(img *Image) (*Image, error) {
	res, err:=NewImageOf(img.Naxisn, img.DType, img.Device)
	if err!=nil { return nil, err }
	res.ID, res.FileName=img.ID, img.FileName
	return res, nil
}

// Returns a deep copy of the image
func (f *Image) Clone() *Image {
	res, err:=NewImageLike(f)
	if err!=nil { return nil }
	switch d:=f.Data.(type) {
	case []uint8:   copy(res.Data.([]uint8),   d)
	case []uint16:  copy(res.Data.([]uint16),  d)
	case []uint32:  copy(res.Data.([]uint32),  d)
	case []int8:    copy(res.Data.([]int8),    d)
	case []int16:   copy(res.Data.([]int16),   d)
	case []int32:   copy(res.Data.([]int32),   d)
	case []float32: copy(res.Data.([]float32), d)
	case []float64: copy(res.Data.([]float64), d)
	}
	return res
}

// Moves the image to another device. Data is shared, not copied
func (f *Image) To(device Device) *Image {
	res:=*f
	res.Naxisn=append([]int32(nil), f.Naxisn...)
	res.Device=device
	return &res
}

// Number of elements
func (f *Image) Len() int { return int(f.Pixels) }

// Checks that the image is internally consistent
func (f *Image) Validate() error {
	if f==nil { return errors.New("nil image") }
	dtype, err:=DTypeOf(f.Data)
	if err!=nil { return err }
	if dtype!=f.DType { return fmt.Errorf("%w: data of type %v labeled %v", ErrUnsupportedType, dtype, f.DType) }
	n, err:=numPixels(f.Naxisn)
	if err!=nil { return err }
	if n!=f.Pixels || dataLen(f.Data)!=int(n) {
		return fmt.Errorf("data length %d does not match dimensions %s", dataLen(f.Data), f.DimensionsToString())
	}
	return nil
}

// True if both images have identical axis dimensions
func (f *Image) SameShape(o *Image) bool {
	if len(f.Naxisn)!=len(o.Naxisn) { return false }
	for i:=range f.Naxisn {
		if f.Naxisn[i]!=o.Naxisn[i] { return false }
	}
	return true
}

func (f *Image) DimensionsToString() string { return dimsToString(f.Naxisn) }

func dimsToString(naxisn []int32) string {
	b:=strings.Builder{}
	for i,naxis:=range(naxisn) {
		if i>0 {
			fmt.Fprintf(&b, "x%d", naxis)
		} else {
			fmt.Fprintf(&b, "%d", naxis)
		}
	}
	return b.String()
}

// Returns the raw element values converted to float64. Not normalized
func (f *Image) Float64s() []float64 {
	switch d:=f.Data.(type) {
	case []uint8:   return toFloat64s(d)
	case []uint16:  return toFloat64s(d)
	case []uint32:  return toFloat64s(d)
	case []int8:    return toFloat64s(d)
	case []int16:   return toFloat64s(d)
	case []int32:   return toFloat64s(d)
	case []float32: return toFloat64s(d)
	case []float64: return append([]float64(nil), d...)
	}
	return nil
}

func toFloat64s[T Number](d []T) []float64 {
	res:=make([]float64, len(d))
	for i, v:=range d {
		res[i]=float64(v)
	}
	return res
}


// JSON interchange format for images
type imageJSON struct {
	ID       int             `json:"id"`
	Naxisn   []int32         `json:"naxisn"`
	DType    DType           `json:"dtype"`
	Device   Device          `json:"device"`
	Data     json.RawMessage `json:"data"`
}

func (f *Image) MarshalJSON() ([]byte, error) {
	data:=f.Data
	if d, ok:=data.([]uint8); ok { // avoid base64 encoding of byte slices
		wide:=make([]uint16, len(d))
		for i, v:=range d { wide[i]=uint16(v) }
		data=wide
	}
	raw, err:=json.Marshal(data)
	if err!=nil { return nil, err }
	return json.Marshal(imageJSON{ID: f.ID, Naxisn: f.Naxisn, DType: f.DType, Device: f.Device, Data: raw})
}

func (f *Image) UnmarshalJSON(b []byte) error {
	var ij imageJSON
	if err:=json.Unmarshal(b, &ij); err!=nil { return err }
	if !ij.DType.Valid() { return fmt.Errorf("%w: missing element type", ErrUnsupportedType) }

	var data interface{}
	var err error
	switch ij.DType {
	case DTUint8:
		var wide []uint16
		if err=json.Unmarshal(ij.Data, &wide); err!=nil { return err }
		d:=make([]uint8, len(wide))
		for i, v:=range wide {
			if v>255 { return fmt.Errorf("value %d at index %d out of range for uint8", v, i) }
			d[i]=uint8(v)
		}
		data=d
	case DTUint16:  data, err=unmarshalData[uint16] (ij.Data)
	case DTUint32:  data, err=unmarshalData[uint32] (ij.Data)
	case DTInt8:    data, err=unmarshalData[int8]   (ij.Data)
	case DTInt16:   data, err=unmarshalData[int16]  (ij.Data)
	case DTInt32:   data, err=unmarshalData[int32]  (ij.Data)
	case DTFloat32: data, err=unmarshalData[float32](ij.Data)
	case DTFloat64: data, err=unmarshalData[float64](ij.Data)
	}
	if err!=nil { return err }

	img, err:=NewImage(ij.Naxisn, data)
	if err!=nil { return err }
	img.ID, img.Device=ij.ID, ij.Device
	*f=*img
	return nil
}

func unmarshalData[T Number](raw json.RawMessage) (interface{}, error) {
	var d []T
	if err:=json.Unmarshal(raw, &d); err!=nil { return nil, err }
	return d, nil
}
