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


package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"github.com/mlnoga/imadjust/internal/levels"
	"github.com/mlnoga/imadjust/internal/ndimg"
	"github.com/mlnoga/imadjust/internal/ops"
	"github.com/mlnoga/imadjust/internal/ops/adjust"
)

func TestAutoLogName(t *testing.T) {
	tcs:=[]struct {
		Out, Want string
	}{
		{"adj%04d.json",     "adj.log"},
		{"out.json",         "out.log"},
		{"res/%d.json",      "res/imadjust.log"},
		{"",                 "imadjust.log"},
	}
	for _, tc:=range tcs {
		if got:=autoLogName(tc.Out); got!=tc.Want { t.Errorf("autoLogName(%q)=%q; want %q", tc.Out, got, tc.Want) }
	}
}

func TestOptionsFromFlags(t *testing.T) {
	*inLevel, *outLevel, *gamma, *single, *samples="2%", "1,0", 2.2, true, 1000
	defer func() { *inLevel, *outLevel, *gamma, *single, *samples="", "", 1, false, 0 }()

	opts, err:=optionsFromFlags()
	if err!=nil { t.Fatal(err) }
	if opts.In!=levels.Saturate(0.02) || !opts.Out.Inverted() || opts.Gamma!=2.2 || !opts.UseSingle || opts.MaxSamples!=1000 {
		t.Errorf("options %+v", opts)
	}

	*gamma=0
	if _, err:=optionsFromFlags(); !errors.Is(err, levels.ErrInvalidArgument) { t.Errorf("gamma 0 err=%v", err) }
}

func TestGlobFilesNoMatch(t *testing.T) {
	if _, err:=globFiles([]string{"does-not-exist-*.json"}); err==nil { t.Errorf("err=nil; want error") }
}

func TestApplyToFilesWritesOneOutputPerInput(t *testing.T) {
	wd, err:=os.Getwd()
	if err!=nil { t.Fatal(err) }
	if err:=os.Chdir(t.TempDir()); err!=nil { t.Fatal(err) }
	defer os.Chdir(wd)

	inputs:=map[string][]uint8{ "in1.json": {10, 20, 30}, "in2.json": {40, 50, 60} }
	for name, data:=range inputs {
		img, _:=ndimg.NewImage([]int32{3}, data)
		b, err:=json.Marshal(img)
		if err!=nil { t.Fatal(err) }
		if err:=os.WriteFile(name, b, 0666); err!=nil { t.Fatal(err) }
	}

	opts:=levels.DefaultOptions()
	opts.In=levels.Full()
	c:=ops.NewContext(&bytes.Buffer{})
	if err:=applyToFiles([]string{"in*.json"}, adjust.NewOpAdjust(opts), ops.NewOpSave("adj%04d.json"), c); err!=nil { t.Fatal(err) }

	for name, want:=range map[string][]uint8{ "adj0000.json": inputs["in1.json"], "adj0001.json": inputs["in2.json"] } {
		b, err:=os.ReadFile(name)
		if err!=nil { t.Fatalf("%s: %v", name, err) }
		var img ndimg.Image
		if err:=json.Unmarshal(b, &img); err!=nil { t.Fatal(err) }
		got:=img.Data.([]uint8)
		for i:=range want {
			if got[i]!=want[i] { t.Errorf("%s[%d]=%d; want %d", name, i, got[i], want[i]) }
		}
	}
	if _, err:=os.Stat("adj%04d.json"); err==nil { t.Errorf("unexpanded file name written") }
}

func TestRunCommand(t *testing.T) {
	log:=&bytes.Buffer{}
	c:=ops.NewContext(log)
	if err:=runCommand("version", nil, c); err!=nil || log.String()!="Version "+version+"\n" {
		t.Errorf("version=%q,%v", log.String(), err)
	}
	if err:=runCommand("bogus", nil, c); err==nil { t.Errorf("unknown command err=nil") }
}
