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


package ops

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"github.com/pbnjay/memory"
	"github.com/mlnoga/imadjust/internal/ndimg"
	"github.com/mlnoga/imadjust/internal/stats"
)

// An execution context for operators
type Context struct {
	Log              io.Writer
	Dir              string       // base directory for relative file names
	MemoryMB         int          // memory.TotalMemory()/1024/1024
	WorkMemoryMB     int          // MemoryMB*7/10
	MaxThreads       int          `json:"maxThreads"`
}

func NewContext(log io.Writer) *Context {
	memoryMB:=int(memory.TotalMemory()/1024/1024)
	return &Context{
		Log          : log,
		MemoryMB     : memoryMB,
		WorkMemoryMB : memoryMB*7/10,
		MaxThreads   : runtime.GOMAXPROCS(0),
	}
}

// Resolves a file name against the base directory, rejecting unsafe paths
func (c *Context) Path(fileName string) (string, error) {
	if !isPathAllowed(fileName) { return "", fmt.Errorf("file name '%s' outside current directory tree", fileName) }
	if c.Dir=="" { return fileName, nil }
	return filepath.Join(c.Dir, fileName), nil
}

// Returns true if a path is considered safe, i.e. not an absolute path,
// and doesn't contain the ".." characters to change to a parent directory
func isPathAllowed(p string) bool {
	if p=="" { return false }
	if filepath.IsAbs(p) { return false }          // relative paths only
	if strings.Contains(p, "..") { return false }  // no going outside the tree
	return true
}


// A general image processing operator: takes an image, produces an image or an error.
// Operators which create images ignore their input
type Operator interface {
	GetType() string
	IsActive() bool
	Apply(img *ndimg.Image, c *Context) (*ndimg.Image, error)
}

// Base type for operators, including type information for JSON serializing/deserializing
type OpBase struct {
	Type        string `json:"type"`
	Active      bool   `json:"active"`
}

func (op *OpBase) GetType() string { return op.Type }
func (op *OpBase) IsActive() bool { return op.Active }

// Factory method for operators. For JSON serializing/deserializing
type OperatorFactory func() Operator

// Mapping from operator type strings to factory method for the type
var operatorFactories=map[string]OperatorFactory{}

// Returns the operator factory for a given type string
func GetOperatorFactory(t string) OperatorFactory {
	return operatorFactories[t]
}

// Registers a given type string for a given type of Operator, identified via an exemplar generator
func SetOperatorFactory(f OperatorFactory) {
	op:=f()
	t:=op.GetType()
	if GetOperatorFactory(t)!=nil { panic(fmt.Sprintf("error: re-registering operator key %s\n", t))}
	operatorFactories[t]=f
}


// Loads a single image from a JSON document. Ignores its input, produces one output
type OpLoad struct {
	OpBase
	ID          int           `json:"id"`
	FileName    string        `json:"fileName"`
	Device      ndimg.Device  `json:"device"`
}

func init() { SetOperatorFactory(func() Operator { return NewOpLoadDefault()}) } // register the operator for JSON decoding

func NewOpLoadDefault() *OpLoad { return NewOpLoad(0, "", ndimg.Host) }

func NewOpLoad(id int, fileName string, device ndimg.Device) *OpLoad {
	return &OpLoad{
		OpBase   : OpBase{Type: "load", Active: true},
		ID       : id,
		FileName : fileName,
		Device   : device,
	}
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpLoad) UnmarshalJSON(data []byte) error {
	type defaults OpLoad
	def:=defaults( *NewOpLoadDefault() )
	err:=json.Unmarshal(data, &def)
	if err!=nil { return err }
	*op=OpLoad(def)
	return nil
}

func (op *OpLoad) Apply(img *ndimg.Image, c *Context) (result *ndimg.Image, err error) {
	if !op.Active { return img, nil }
	fileName, err:=c.Path(op.FileName)
	if err!=nil { return nil, err }
	b, err:=os.ReadFile(fileName)
	if err!=nil { return nil, err }

	var f ndimg.Image
	if err:=json.Unmarshal(b, &f); err!=nil { return nil, fmt.Errorf("%d: error reading %s: %w", op.ID, op.FileName, err) }
	f.ID, f.FileName=op.ID, op.FileName
	res:=f.To(op.Device)

	s:=stats.CalcStats(res.Float64s())
	warning:=""
	if s.IsUniform() {
		warning="; WARNING low dynamic range"
	}
	fmt.Fprintf(c.Log, "%d: Loaded %s %v image on %v with %v from %s%s\n",
	            res.ID, res.DimensionsToString(), res.DType, res.Device, s, res.FileName, warning)
	return res, nil
}


// Saves the image as a JSON document under a given filename, with pattern expansion
// for %d based on the image id. Produces the unchanged input
type OpSave struct {
	OpBase
	FilePattern       string          `json:"filePattern"`
}

func init() { SetOperatorFactory(func() Operator { return NewOpSaveDefault()}) } // register the operator for JSON decoding

func NewOpSaveDefault() *OpSave { return NewOpSave("") }

func NewOpSave(filenamePattern string) *OpSave {
	return &OpSave{
		OpBase      : OpBase{Type: "save", Active: filenamePattern!=""},
		FilePattern : filenamePattern,
	}
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpSave) UnmarshalJSON(data []byte) error {
	type defaults OpSave
	def:=defaults( *NewOpSaveDefault() )
	def.Active=true
	err:=json.Unmarshal(data, &def)
	if err!=nil { return err }
	*op=OpSave(def)
	return nil
}

func (op *OpSave) Apply(f *ndimg.Image, c *Context) (result *ndimg.Image, err error) {
	if !op.Active || op.FilePattern=="" { return f, nil }
	if f==nil { return nil, errors.New("no image to save") }
	fileName:=expandPattern(op.FilePattern, f.ID)
	if !strings.HasSuffix(strings.ToLower(fileName), ".json") {
		return nil, fmt.Errorf("%d: unknown suffix for %s, want .json", f.ID, fileName)
	}
	path, err:=c.Path(fileName)
	if err!=nil { return nil, err }

	fmt.Fprintf(c.Log,"%d: Writing %s %v image to %s\n", f.ID, f.DimensionsToString(), f.DType, fileName)
	b, err:=json.Marshal(f)
	if err==nil { err=os.WriteFile(path, b, 0666) }
	if err!=nil { return nil, fmt.Errorf("%d: error writing to file %s: %w", f.ID, fileName, err) }
	return f, nil
}


// Matches a single integer verb with optional flags and width, e.g. %d or %04d
var idVerb=regexp.MustCompile(`%[-+ 0]*[0-9]*d`)

// Expands the first integer verb in the pattern to the given id. Other text is kept verbatim
func expandPattern(pattern string, id int) string {
	loc:=idVerb.FindStringIndex(pattern)
	if loc==nil { return pattern }
	return pattern[:loc[0]]+fmt.Sprintf(pattern[loc[0]:loc[1]], id)+pattern[loc[1]:]
}


// Applies a sequence of operators to an image, skipping inactive ones
type OpSequence struct {
	OpBase
	Steps       []Operator        `json:"-"`      // the actual steps
	StepsRaw    []json.RawMessage `json:"steps"`  // helper for unmarshaling
}

func init() { SetOperatorFactory(func() Operator { return NewOpSequenceDefault()}) } // register the operator for JSON decoding

func NewOpSequenceDefault() *OpSequence {
	op:=NewOpSequence()
	op.Active=true
	return op
}

func NewOpSequence(steps ...Operator) *OpSequence {
	return &OpSequence{
		OpBase : OpBase{Type: "seq", Active: len(steps)>0},
		Steps  : steps,
	}
}

// Unmarshals a sequence of polymorphic operators from JSON.
// Uses temporary op.StepsRaw inspired by https://alexkappa.medium.com/json-polymorphism-in-go-4cade1e58ed1
func (op *OpSequence) UnmarshalJSON(b []byte) error {
	type alias OpSequence
	err := json.Unmarshal(b, (*alias)(op))
	if err != nil { return err }

	op.Steps=nil
	for _, raw := range op.StepsRaw {
		var step OpBase
		err = json.Unmarshal(raw, &step)
		if err != nil { return err }

		factory:=GetOperatorFactory(step.Type)
		if factory==nil {
			return fmt.Errorf("unknown operator type '%s' in raw JSON message '%s'", step.Type, string(raw))
		}
		i:=factory()
		err = json.Unmarshal(raw, i)
		if err != nil { return err }
		op.Steps = append(op.Steps, i)
	}
	op.StepsRaw=nil
	return nil
}

// Appends one or more operators to the existing sequence
func (op *OpSequence) Append(steps ...Operator) {
	op.Steps=append(op.Steps, steps...)
	if len(op.Steps)>0 { op.Active=true }
}

// Marshals a sequence with polymorphic operators to JSON.
// Uses the actual op.Steps with label "steps", and ignores op.StepsRaw
func (op *OpSequence) MarshalJSON() (bs []byte, err error) {
	buf:=bytes.Buffer{}
	buf.WriteString("{\"type\":")
	inner,err:=json.Marshal(op.Type)
	if err!=nil { return nil, err }
	buf.Write(inner)
	fmt.Fprintf(&buf,", \"active\":%v, \"steps\":", op.Active)
	steps:=op.Steps
	if steps==nil { steps=[]Operator{} }
	inner,err=json.Marshal(steps)
	if err!=nil { return nil, err }
	buf.Write(inner)
	buf.WriteRune('}')
	return buf.Bytes(), nil
}

func (op *OpSequence) Apply(img *ndimg.Image, c *Context) (result *ndimg.Image, err error) {
	if !op.Active { return img, nil }
	for _, step:=range op.Steps {
		if !step.IsActive() { continue }
		if img, err=step.Apply(img, c); err!=nil { return nil, err }
	}
	return img, nil
}
