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


package adjust

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"github.com/mlnoga/imadjust/internal/levels"
	"github.com/mlnoga/imadjust/internal/ndimg"
	"github.com/mlnoga/imadjust/internal/ops"
	"github.com/mlnoga/imadjust/internal/stats"
)

// Remaps image intensities from an input level to an output level with gamma. Takes one input, produces one output
type OpAdjust struct {
	ops.OpBase
	InLevel     levels.InLevel   `json:"inLevel"`
	OutLevel    levels.OutLevel  `json:"outLevel"`
	Gamma       float64          `json:"gamma"`
	UseSingle   bool             `json:"useSingle"`
	MaxSamples  int              `json:"maxSamples"`
}

var _ ops.Operator = (*OpAdjust)(nil) // this type is an Operator
func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpAdjustDefault() })} // register the operator for JSON decoding

func NewOpAdjustDefault() *OpAdjust { return NewOpAdjust(levels.DefaultOptions()) }

func NewOpAdjust(o levels.Options) *OpAdjust {
	return &OpAdjust{
		OpBase     : ops.OpBase{Type: "adjust", Active: true},
		InLevel    : o.In,
		OutLevel   : o.Out,
		Gamma      : o.Gamma,
		UseSingle  : o.UseSingle,
		MaxSamples : o.MaxSamples,
	}
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpAdjust) UnmarshalJSON(data []byte) error {
	type defaults OpAdjust
	def:=defaults( *NewOpAdjustDefault() )
	err:=json.Unmarshal(data, &def)
	if err!=nil { return err }
	*op=OpAdjust(def)
	return nil
}

func (op *OpAdjust) Options() levels.Options {
	return levels.Options{In: op.InLevel, Out: op.OutLevel, Gamma: op.Gamma, UseSingle: op.UseSingle, MaxSamples: op.MaxSamples}
}

// Estimated working memory in MiB for adjusting the image, input and output excluded
func (op *OpAdjust) WorkMemoryMB(f *ndimg.Image) int {
	elemSize:=8
	if levels.WorkingSingle(f.DType, op.UseSingle) { elemSize=4 }
	return int((int64(f.Len())*int64(elemSize)+1024*1024-1)/(1024*1024))
}

func (op *OpAdjust) Apply(f *ndimg.Image, c *ops.Context) (result *ndimg.Image, err error) {
	if !op.Active { return f, nil }
	if f==nil { return nil, errors.New("no image to adjust") }
	opts:=op.Options()
	if err:=opts.Validate(); err!=nil { return nil, fmt.Errorf("%d: %w", f.ID, err) }

	if mb:=op.WorkMemoryMB(f); c.WorkMemoryMB>0 && mb>c.WorkMemoryMB {
		hint:=""
		if f.DType.IsInteger() && !op.UseSingle { hint=", consider useSingle" }
		fmt.Fprintf(c.Log, "%d: Warning: working buffer of %d MiB exceeds memory budget of %d MiB%s\n", f.ID, mb, c.WorkMemoryMB, hint)
	}

	fmt.Fprintf(c.Log, "%d: Adjusting %s %v image on %v with input %v output %v gamma %.4g\n",
	            f.ID, f.DimensionsToString(), f.DType, f.Device, op.InLevel, op.OutLevel, op.Gamma)
	res, lim, err:=levels.AdjustWith(f, opts)
	if err!=nil { return nil, fmt.Errorf("%d: %w", f.ID, err) }
	fmt.Fprintf(c.Log, "%d: Adjusted with %v\n", res.ID, lim)
	return res, nil
}


// Reports basic statistics and the input limits an adjustment would use. Produces the unchanged input
type OpStats struct {
	ops.OpBase
	InLevel     levels.InLevel   `json:"inLevel"`
	UseSingle   bool             `json:"useSingle"`
	MaxSamples  int              `json:"maxSamples"`
	CSVFile     string           `json:"csvFile"`    // if set, appends one line per image to this file
}

var _ ops.Operator = (*OpStats)(nil) // this type is an Operator
func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpStatsDefault() })} // register the operator for JSON decoding

func NewOpStatsDefault() *OpStats { return NewOpStats(levels.Auto(), false, 0) }

func NewOpStats(in levels.InLevel, useSingle bool, maxSamples int) *OpStats {
	return &OpStats{
		OpBase     : ops.OpBase{Type: "stats", Active: true},
		InLevel    : in,
		UseSingle  : useSingle,
		MaxSamples : maxSamples,
	}
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpStats) UnmarshalJSON(data []byte) error {
	type defaults OpStats
	def:=defaults( *NewOpStatsDefault() )
	err:=json.Unmarshal(data, &def)
	if err!=nil { return err }
	*op=OpStats(def)
	return nil
}

// Calculates native-range statistics and the resolved normalized limits
func (op *OpStats) Calc(f *ndimg.Image) (*stats.Stats, levels.Limits, error) {
	if f==nil { return nil, levels.Limits{}, errors.New("no image for statistics") }
	opts:=levels.DefaultOptions()
	opts.In, opts.UseSingle, opts.MaxSamples=op.InLevel, op.UseSingle, op.MaxSamples
	lim, err:=levels.ResolveLimits(f, opts)
	if err!=nil { return nil, levels.Limits{}, err }
	return stats.CalcStats(f.Float64s()), lim, nil
}

func (op *OpStats) Apply(f *ndimg.Image, c *ops.Context) (result *ndimg.Image, err error) {
	if !op.Active { return f, nil }
	s, lim, err:=op.Calc(f)
	if err!=nil { return nil, err }
	fmt.Fprintf(c.Log, "%d: %s %v image with %v; input %v resolves to [%.6g,%.6g]\n",
	            f.ID, f.DimensionsToString(), f.DType, s, op.InLevel, lim.InLow, lim.InHigh)
	if op.CSVFile!="" {
		if err:=op.appendCSV(f, s, lim, c); err!=nil { return nil, fmt.Errorf("%d: error writing to file %s: %w", f.ID, op.CSVFile, err) }
	}
	return f, nil
}

// Appends a CSV line for the image, preceded by a header if the file is empty
func (op *OpStats) appendCSV(f *ndimg.Image, s *stats.Stats, lim levels.Limits, c *ops.Context) (err error) {
	path, err:=c.Path(op.CSVFile)
	if err!=nil { return err }
	file, err:=os.OpenFile(path, os.O_APPEND | os.O_CREATE | os.O_WRONLY, 0666)
	if err!=nil { return err }
	defer func() {
		if errClose:=file.Close(); err==nil { err=errClose }
	}()

	info, err:=file.Stat()
	if err!=nil { return err }
	if info.Size()==0 {
		if _, err=fmt.Fprintf(file, "ID,Dims,DType,%s,InLow,InHigh\n", s.ToCSVHeader()); err!=nil { return err }
	}
	_, err=fmt.Fprintf(file, "%d,%s,%v,%s,%.6g,%.6g\n", f.ID, f.DimensionsToString(), f.DType, s.ToCSVLine(), lim.InLow, lim.InHigh)
	return err
}
