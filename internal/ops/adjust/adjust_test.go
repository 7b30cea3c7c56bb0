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
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"github.com/mlnoga/imadjust/internal/levels"
	"github.com/mlnoga/imadjust/internal/ndimg"
	"github.com/mlnoga/imadjust/internal/ops"
)

func TestOpAdjustDefaults(t *testing.T) {
	var op OpAdjust
	if err:=json.Unmarshal([]byte(`{"type":"adjust","outLevel":[1,0]}`), &op); err!=nil { t.Fatal(err) }
	if !op.Active || op.Gamma!=1 || op.InLevel!=levels.Auto() || !op.OutLevel.Inverted() {
		t.Errorf("got active %v gamma %g in %v out %v", op.Active, op.Gamma, op.InLevel, op.OutLevel)
	}
	if err:=json.Unmarshal([]byte(`{"type":"adjust","inLevel":2}`), &op); !errors.Is(err, levels.ErrInvalidArgument) {
		t.Errorf("inLevel 2 err=%v; want ErrInvalidArgument", err)
	}
}

func TestOpAdjustApply(t *testing.T) {
	log:=&bytes.Buffer{}
	c:=ops.NewContext(log)
	img, _:=ndimg.NewImage([]int32{5}, []uint8{0, 25, 50, 75, 100})
	img.ID=2

	op:=NewOpAdjust(levels.Options{In: levels.Fixed(0, 100.0/255), Out: levels.Range(1, 0), Gamma: 1})
	res, err:=op.Apply(img, c)
	if err!=nil { t.Fatal(err) }
	got:=res.Data.([]uint8)
	if got[0]!=255 || got[4]!=0 { t.Errorf("inverted extremes %d %d; want 255 0", got[0], got[4]) }
	if img.Data.([]uint8)[0]!=0 { t.Errorf("input modified") }
	if s:=log.String(); !strings.Contains(s, "2: Adjusting 5 uint8 image on host") || !strings.Contains(s, "2: Adjusted with in [0,") {
		t.Errorf("log %q", s)
	}

	op.Gamma=0
	if _, err:=op.Apply(img, c); !errors.Is(err, levels.ErrInvalidArgument) { t.Errorf("gamma 0 err=%v", err) }
	op.Active=false
	if res, err:=op.Apply(img, c); err!=nil || res!=img { t.Errorf("inactive=%v,%v; want input", res, err) }
}

func TestOpAdjustMemoryWarning(t *testing.T) {
	log:=&bytes.Buffer{}
	c:=ops.NewContext(log)
	c.WorkMemoryMB=1
	img, _:=ndimg.NewImageOf([]int32{512,512}, ndimg.DTUint16, ndimg.Host)

	op:=NewOpAdjustDefault()
	if mb:=op.WorkMemoryMB(img); mb!=2 { t.Errorf("double precision %d MiB; want 2", mb) }
	if _, err:=op.Apply(img, c); err!=nil { t.Fatal(err) }
	if !strings.Contains(log.String(), "consider useSingle") { t.Errorf("log %q", log.String()) }

	op.UseSingle=true
	if mb:=op.WorkMemoryMB(img); mb!=1 { t.Errorf("single precision %d MiB; want 1", mb) }
}

func TestSequenceWithAdjust(t *testing.T) {
	js:=`{"type":"seq","active":true,"steps":[
		{"type":"stats","inLevel":0.1},
		{"type":"adjust","inLevel":[0.2,0.6],"gamma":0.5,"useSingle":true}
	]}`
	var seq ops.OpSequence
	if err:=json.Unmarshal([]byte(js), &seq); err!=nil { t.Fatal(err) }
	if len(seq.Steps)!=2 { t.Fatalf("steps %d", len(seq.Steps)) }
	st, ok:=seq.Steps[0].(*OpStats)
	if !ok || !st.Active { t.Fatalf("step 0 %#v", seq.Steps[0]) }
	adj, ok:=seq.Steps[1].(*OpAdjust)
	if !ok || adj.Gamma!=0.5 || !adj.UseSingle { t.Fatalf("step 1 %#v", seq.Steps[1]) }
	if low, high, ok:=adj.InLevel.Bounds(); !ok || low!=0.2 || high!=0.6 { t.Errorf("inLevel %v", adj.InLevel) }

	log:=&bytes.Buffer{}
	img, _:=ndimg.NewImage([]int32{2,2}, []float64{0.1, 0.2, 0.4, 0.9})
	res, err:=seq.Apply(img, ops.NewContext(log))
	if err!=nil { t.Fatal(err) }
	got:=res.Data.([]float64)
	if got[0]!=0 || got[1]!=0 || math.Abs(got[3]-1)>1e-12 { t.Errorf("got %v", got) }
	if !strings.Contains(log.String(), "resolves to") { t.Errorf("log %q", log.String()) }

	b, err:=json.Marshal(&seq)
	if err!=nil { t.Fatal(err) }
	var back ops.OpSequence
	if err:=json.Unmarshal(b, &back); err!=nil { t.Fatalf("round trip %s: %v", string(b), err) }
	if a, ok:=back.Steps[1].(*OpAdjust); !ok || a.Options().In!=adj.InLevel { t.Errorf("round trip step %#v", back.Steps[1]) }
}

func TestOpStatsCalc(t *testing.T) {
	img, _:=ndimg.NewImage([]int32{5}, []uint8{0, 25, 50, 75, 100})
	s, lim, err:=NewOpStatsDefault().Calc(img)
	if err!=nil { t.Fatal(err) }
	if s.Min!=0 || s.Max!=100 || s.Mean!=50 { t.Errorf("stats %v", s) }
	if lim.InLow!=0 || lim.InHigh<0.39 || lim.InHigh>0.4 { t.Errorf("limits %v", lim) }
	if _, _, err:=NewOpStats(levels.Saturate(2), false, 0).Calc(img); !errors.Is(err, levels.ErrInvalidArgument) {
		t.Errorf("saturate 2 err=%v", err)
	}
}

func TestOpStatsCSV(t *testing.T) {
	c:=ops.NewContext(&bytes.Buffer{})
	c.Dir=t.TempDir()
	op:=NewOpStats(levels.Full(), false, 0)
	op.CSVFile="stats.csv"

	for id, data:=range [][]uint8{{0, 255}, {10, 20}} {
		img, _:=ndimg.NewImage([]int32{2}, data)
		img.ID=id
		if _, err:=op.Apply(img, c); err!=nil { t.Fatal(err) }
	}

	b, err:=os.ReadFile(filepath.Join(c.Dir, "stats.csv"))
	if err!=nil { t.Fatal(err) }
	want:="ID,Dims,DType,Min,Max,Mean,StdDev,NaNs,InLow,InHigh\n"+
	      "0,2,uint8,0,255,127.5,180.312,0,0,1\n"+
	      "1,2,uint8,10,20,15,7.07107,0,0,1\n"
	if got:=string(b); got!=want { t.Errorf("csv=%q; want %q", got, want) }

	op.CSVFile="../stats.csv"
	img, _:=ndimg.NewImage([]int32{1}, []uint8{1})
	if _, err:=op.Apply(img, c); err==nil { t.Errorf("parent path err=nil") }
}
