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


package levels

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Returned for percentages, bounds and gamma values outside their valid range
var ErrInvalidArgument=errors.New("invalid argument")

// Fraction of elements saturated when no input level is given, split evenly between both tails
const DefaultSaturation=0.01

type inKind int
const (
	inAuto inKind = iota
	inSaturate
	inFixed
)

// Input level selection. The zero value saturates DefaultSaturation of all elements.
type InLevel struct {
	kind   inKind
	split  bool     // saturation given per tail
	pLow   float64  // fraction of elements saturated at the low end
	pHigh  float64  // fraction of elements saturated at the high end
	low    float64  // fixed normalized low bound
	high   float64  // fixed normalized high bound
}

// Default saturation of DefaultSaturation
func Auto() InLevel { return InLevel{} }

// Saturates a total fraction p in (0,1) of all elements, half at each end
func Saturate(p float64) InLevel {
	return InLevel{kind: inSaturate, pLow: p/2, pHigh: p/2}
}

// Saturates a fraction pLow of elements at the low end and pHigh at the high end
func SaturateSplit(pLow, pHigh float64) InLevel {
	return InLevel{kind: inSaturate, split: true, pLow: pLow, pHigh: pHigh}
}

// Fixed normalized input bounds in [0,1]
func Fixed(low, high float64) InLevel {
	return InLevel{kind: inFixed, low: low, high: high}
}

// The full normalized range [0,1]
func Full() InLevel { return Fixed(0, 1) }

// Returns the fractions of elements to saturate at each end, and whether the level is percentage based
func (l InLevel) Saturation() (pLow, pHigh float64, ok bool) {
	switch l.kind {
	case inAuto:     return DefaultSaturation/2, DefaultSaturation/2, true
	case inSaturate: return l.pLow, l.pHigh, true
	}
	return 0, 0, false
}

// Returns the fixed bounds, and whether the level has fixed bounds
func (l InLevel) Bounds() (low, high float64, ok bool) {
	if l.kind!=inFixed { return 0, 0, false }
	return l.low, l.high, true
}

func (l InLevel) Validate() error {
	switch l.kind {
	case inAuto:
		return nil
	case inSaturate:
		if !(l.pLow>=0 && l.pHigh>=0) || !(l.pLow+l.pHigh>0 && l.pLow+l.pHigh<1) {
			if l.split { return fmt.Errorf("%w: saturation low %g high %g, need both >=0 and sum in (0,1)", ErrInvalidArgument, l.pLow, l.pHigh) }
			return fmt.Errorf("%w: saturation percentage %g outside (0,1)", ErrInvalidArgument, l.pLow+l.pHigh)
		}
		return nil
	case inFixed:
		if !inUnitRange(l.low) || !inUnitRange(l.high) {
			return fmt.Errorf("%w: input bounds [%g,%g] outside [0,1]", ErrInvalidArgument, l.low, l.high)
		}
		if l.low>l.high {
			return fmt.Errorf("%w: input low bound %g above high bound %g", ErrInvalidArgument, l.low, l.high)
		}
		return nil
	}
	return fmt.Errorf("%w: unknown input level kind %d", ErrInvalidArgument, int(l.kind))
}

func (l InLevel) String() string {
	switch l.kind {
	case inAuto:
		return fmt.Sprintf("auto %g%%", DefaultSaturation*100)
	case inSaturate:
		if l.split { return fmt.Sprintf("saturate %g%% low %g%% high", l.pLow*100, l.pHigh*100) }
		return fmt.Sprintf("saturate %g%%", (l.pLow+l.pHigh)*100)
	}
	return fmt.Sprintf("[%g,%g]", l.low, l.high)
}

// Marshals to null for auto, a number for even saturation, an object for split
// saturation, and a two-element array for fixed bounds
func (l InLevel) MarshalJSON() ([]byte, error) {
	switch l.kind {
	case inAuto:
		return []byte("null"), nil
	case inSaturate:
		if l.split { return json.Marshal(map[string]float64{"low": l.pLow, "high": l.pHigh}) }
		return json.Marshal(l.pLow+l.pHigh)
	}
	return json.Marshal([]float64{l.low, l.high})
}

// Unmarshals null, a number, an empty array, a two-element array or an object with low and high saturation
func (l *InLevel) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err:=json.Unmarshal(b, &v); err!=nil { return fmt.Errorf("%w: %s", ErrInvalidArgument, err.Error()) }

	var res InLevel
	switch vv:=v.(type) {
	case nil:
		res=Auto()
	case float64:
		res=Saturate(vv)
	case []interface{}:
		low, high, err:=pairFromJSON(vv, "input")
		if err!=nil { return err }
		res=Fixed(low, high)
	case map[string]interface{}:
		pLow, okLow  :=vv["low"].(float64)
		pHigh, okHigh:=vv["high"].(float64)
		if !okLow || !okHigh || len(vv)!=2 { return fmt.Errorf("%w: input saturation object %s needs numeric low and high", ErrInvalidArgument, string(b)) }
		res=SaturateSplit(pLow, pHigh)
	default:
		return fmt.Errorf("%w: input level %s", ErrInvalidArgument, string(b))
	}
	if err:=res.Validate(); err!=nil { return err }
	*l=res
	return nil
}

// Parses an input level from a command line string. Empty selects auto, a number or
// percentage saturates, "[]" selects the full range and "low,high" fixed bounds
func ParseInLevel(s string) (InLevel, error) {
	s=strings.TrimSpace(s)
	var res InLevel
	switch {
	case s=="":
		res=Auto()
	case strings.Contains(s, ",") || strings.HasPrefix(s, "["):
		low, high, err:=parsePair(s, "input")
		if err!=nil { return InLevel{}, err }
		res=Fixed(low, high)
	case strings.HasSuffix(s, "%"):
		p, err:=strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
		if err!=nil { return InLevel{}, fmt.Errorf("%w: saturation '%s'", ErrInvalidArgument, s) }
		res=Saturate(p/100)
	default:
		p, err:=strconv.ParseFloat(s, 64)
		if err!=nil { return InLevel{}, fmt.Errorf("%w: saturation '%s'", ErrInvalidArgument, s) }
		res=Saturate(p)
	}
	if err:=res.Validate(); err!=nil { return InLevel{}, err }
	return res, nil
}


// Output level selection. The zero value is the full range [0,1]. High below low inverts the mapping.
type OutLevel struct {
	set    bool
	low    float64
	high   float64
}

// The full output range [0,1]
func FullOut() OutLevel { return OutLevel{} }

// Output bounds in [0,1]. High may be below low
func Range(low, high float64) OutLevel { return OutLevel{set: true, low: low, high: high} }

func (o OutLevel) Bounds() (low, high float64) {
	if !o.set { return 0, 1 }
	return o.low, o.high
}

// True if the output mapping is inverted
func (o OutLevel) Inverted() bool {
	low, high:=o.Bounds()
	return high<low
}

func (o OutLevel) Validate() error {
	low, high:=o.Bounds()
	if !inUnitRange(low) || !inUnitRange(high) {
		return fmt.Errorf("%w: output bounds [%g,%g] outside [0,1]", ErrInvalidArgument, low, high)
	}
	return nil
}

func (o OutLevel) String() string {
	low, high:=o.Bounds()
	return fmt.Sprintf("[%g,%g]", low, high)
}

func (o OutLevel) MarshalJSON() ([]byte, error) {
	low, high:=o.Bounds()
	return json.Marshal([]float64{low, high})
}

// Unmarshals null or an empty array as the full range, or a two-element array
func (o *OutLevel) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err:=json.Unmarshal(b, &v); err!=nil { return fmt.Errorf("%w: %s", ErrInvalidArgument, err.Error()) }

	var res OutLevel
	switch vv:=v.(type) {
	case nil:
		res=FullOut()
	case []interface{}:
		if len(vv)==0 {
			res=FullOut()
			break
		}
		low, high, err:=pairFromJSON(vv, "output")
		if err!=nil { return err }
		res=Range(low, high)
	default:
		return fmt.Errorf("%w: output level %s", ErrInvalidArgument, string(b))
	}
	if err:=res.Validate(); err!=nil { return err }
	*o=res
	return nil
}

// Parses an output level from a command line string. Empty or "[]" select the full range
func ParseOutLevel(s string) (OutLevel, error) {
	s=strings.TrimSpace(s)
	if s=="" || s=="[]" { return FullOut(), nil }
	low, high, err:=parsePair(s, "output")
	if err!=nil { return OutLevel{}, err }
	res:=Range(low, high)
	if err:=res.Validate(); err!=nil { return OutLevel{}, err }
	return res, nil
}


func inUnitRange(x float64) bool { return x>=0 && x<=1 }

// Returns the two numbers of a JSON array. An empty array is the full range [0,1]
func pairFromJSON(vs []interface{}, what string) (low, high float64, err error) {
	if len(vs)==0 { return 0, 1, nil }
	if len(vs)!=2 { return 0, 0, fmt.Errorf("%w: %s bounds need two elements, have %d", ErrInvalidArgument, what, len(vs)) }
	low, okLow  :=vs[0].(float64)
	high, okHigh:=vs[1].(float64)
	if !okLow || !okHigh { return 0, 0, fmt.Errorf("%w: %s bounds %v are not numeric", ErrInvalidArgument, what, vs) }
	return low, high, nil
}

// Parses "low,high" with optional brackets. "[]" is the full range [0,1]
func parsePair(s, what string) (low, high float64, err error) {
	inner:=strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(s, "["), "]"))
	if inner=="" { return 0, 1, nil }
	parts:=strings.Split(inner, ",")
	if len(parts)!=2 { return 0, 0, fmt.Errorf("%w: %s bounds '%s' need two elements", ErrInvalidArgument, what, s) }
	low, err=strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err!=nil { return 0, 0, fmt.Errorf("%w: %s bounds '%s' are not numeric", ErrInvalidArgument, what, s) }
	high, err=strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err!=nil { return 0, 0, fmt.Errorf("%w: %s bounds '%s' are not numeric", ErrInvalidArgument, what, s) }
	return low, high, nil
}
