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


package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"strings"
	"time"
	nl "github.com/mlnoga/imadjust/internal"
	"github.com/mlnoga/imadjust/internal/backend"
	"github.com/mlnoga/imadjust/internal/levels"
	"github.com/mlnoga/imadjust/internal/ndimg"
	"github.com/mlnoga/imadjust/internal/ops"
	"github.com/mlnoga/imadjust/internal/ops/adjust"
	"github.com/mlnoga/imadjust/internal/rest"
)

const version = "0.1.0"

var cpuprofile = flag.String("cpuprofile", "", "write cpu profile to `file`")
var memprofile = flag.String("memprofile", "", "write memory profile to `file`")

var out     = flag.String("out", "adj%04d.json", "save adjusted images to `file` pattern, %d expands to the image ID")
var log     = flag.String("log", "%auto", "save log output to `file`. `%auto` derives the name from the output pattern")

var inLevel = flag.String("inLevel", "", "input level: empty for 1% saturation, a fraction such as 0.02 or 2% to saturate, [] for the full range, or low,high in [0,1]")
var outLevel= flag.String("outLevel", "", "output level: empty or [] for the full range, or low,high in [0,1]. high<low inverts")
var gamma   = flag.Float64("gamma", 1, "gamma applied to normalized intensities, 1: linear")
var single  = flag.Bool("single", false, "process integer images in single precision")
var samples = flag.Int("samples", 0, "estimate saturation quantiles from this many random samples, 0: exact")
var device  = flag.String("device", "host", "device to process on, host or pool")
var threads = flag.Int("threads", 0, "threads for the pool device, 0: all available")
var csvFile = flag.String("csv", "", "stats: also append statistics to CSV `file`")

var addr    = flag.String("addr", ":8080", "address for the serve command to listen on")
var chroot  = flag.String("chroot", "", "serve: change filesystem root to `dir` before serving (requires root)")
var setuid  = flag.Int("setuid", -1, "serve: change user id to this value before serving, -1: keep")

func main() {
	logWriter:=nl.Log
	start:=time.Now()
	flag.Usage=func(){
		fmt.Fprintf(logWriter, `imadjust Copyright (c) 2021 Markus L. Noga
This program comes with ABSOLUTELY NO WARRANTY.
This is free software, and you are welcome to redistribute it under certain conditions.
Refer to https://www.gnu.org/licenses/gpl-3.0.en.html for details.

Usage: %s [-flag value] (adjust|stats|run|serve|legal|version|help) (img0.json ... imgn.json)

Commands:
  adjust  Remap intensities of the input images and save the results
  stats   Show input image statistics and the input limits an adjustment would use
  run     Apply operator sequences from JSON files, e.g. load, adjust and save steps
  serve   Serve the HTTP API
  legal   Show license and attribution information
  version Show version information

Flags:
`, os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	// Initialize logging to file in addition to stdout, if selected
	if *log=="%auto" {
		*log=autoLogName(*out)
	}
	if *log!="" {
		err:=nl.LogAlsoToFile(*log)
		if err!=nil { nl.LogFatalf("Unable to open logfile '%s'\n", *log) }
	}

	// Enable CPU profiling if flagged
	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			nl.LogFatal("Could not create CPU profile: ", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			nl.LogFatal("Could not start CPU profile: ", err)
		}
		defer pprof.StopCPUProfile()
	}

	args:=flag.Args()
	if len(args)<1 {
		flag.Usage()
		nl.LogSync()
		return
	}

	if *threads>0 {
		runtime.GOMAXPROCS(*threads)
		backend.Register(backend.NewPool(*threads))
	}
	c:=ops.NewContext(logWriter)

	err:=runCommand(args[0], args[1:], c)

	now:=time.Now()
	elapsed:=now.Sub(start)
	fmt.Fprintf(logWriter, "\nDone after %v\n", elapsed)

	// Store memory profile if flagged
	if *memprofile != "" {
		f, err := os.Create(*memprofile)
		if err != nil {
			nl.LogFatal("Could not create memory profile: ", err)
		}
		defer f.Close()
		runtime.GC() // get up-to-date statistics
		if err := pprof.Lookup("allocs").WriteTo(f,0); err != nil {
			nl.LogFatal("Could not write allocation profile: ", err)
		}
	}

	if err!=nil {
		fmt.Fprintf(logWriter, "Error: %s\n", err.Error())
		nl.LogClose()
		os.Exit(-1)
	}
	nl.LogSync()
}

// Runs the given command on its arguments. Unknown commands print usage and fail
func runCommand(cmd string, args []string, c *ops.Context) (err error) {
	switch cmd {
	case "adjust":
		err=cmdAdjust(args, c)

	case "stats":
		err=cmdStats(args, c)

	case "run":
		err=cmdRun(args, c)

	case "serve":
		if err=rest.MakeSandbox(c.Log, *chroot, *setuid); err==nil {
			err=rest.Serve(*addr, c)
		}

	case "legal":
		fmt.Fprint(c.Log, legal)

	case "version":
		fmt.Fprintf(c.Log, "Version %s\n", version)

	case "help", "?":
		flag.Usage()

	default:
		flag.Usage()
		err=fmt.Errorf("unknown command '%s'", cmd)
	}
	return err
}

// Derives the log file name from the output pattern, dropping the suffix and any %d expansion
func autoLogName(outPattern string) string {
	base:=strings.TrimSuffix(outPattern, filepath.Ext(outPattern))
	if i:=strings.Index(base, "%"); i>=0 { base=base[:i] }
	if base=="" || strings.HasSuffix(base, "/") { base+="imadjust" }
	return base+".log"
}

// Expands file name wildcards. Fails if nothing matches
func globFiles(patterns []string) ([]string, error) {
	var files []string
	for _, pattern:=range patterns {
		matches, err:=filepath.Glob(pattern)
		if err!=nil { return nil, err }
		files=append(files, matches...)
	}
	if len(files)==0 { return nil, fmt.Errorf("no files to load from pattern %v", patterns) }
	return files, nil
}

// Parses the level flags into adjustment options
func optionsFromFlags() (levels.Options, error) {
	opts:=levels.DefaultOptions()
	var err error
	if opts.In, err=levels.ParseInLevel(*inLevel); err!=nil { return opts, err }
	if opts.Out, err=levels.ParseOutLevel(*outLevel); err!=nil { return opts, err }
	opts.Gamma, opts.UseSingle, opts.MaxSamples=*gamma, *single, *samples
	return opts, opts.Validate()
}

// Applies a load step, the given operator and an optional save step to each input file in turn
func applyToFiles(patterns []string, op ops.Operator, save *ops.OpSave, c *ops.Context) error {
	dev, err:=ndimg.ParseDevice(*device)
	if err!=nil { return err }
	files, err:=globFiles(patterns)
	if err!=nil { return err }
	fmt.Fprintf(c.Log, "Found %d files.\n", len(files))

	numErrors:=0
	for i, file:=range files {
		seq:=ops.NewOpSequence(ops.NewOpLoad(i, file, dev), op)
		if save!=nil { seq.Append(save) }
		if _, err:=seq.Apply(nil, c); err!=nil {
			fmt.Fprintf(c.Log, "%d: Error: %s\n", i, err.Error())
			numErrors++
		}
	}
	if numErrors>0 { return fmt.Errorf("%d of %d files failed", numErrors, len(files)) }
	return nil
}

// Perform the adjust command
func cmdAdjust(args []string, c *ops.Context) error {
	opts, err:=optionsFromFlags()
	if err!=nil { return err }
	opAdjust:=adjust.NewOpAdjust(opts)

	m, err:=json.MarshalIndent(opAdjust, "", "  ")
	if err!=nil { return err }
	fmt.Fprintf(c.Log, "Adjusting with these settings:\n%s\n", string(m))

	return applyToFiles(args, opAdjust, ops.NewOpSave(*out), c)
}

// Perform the stats command
func cmdStats(args []string, c *ops.Context) error {
	in, err:=levels.ParseInLevel(*inLevel)
	if err!=nil { return err }
	opStats:=adjust.NewOpStats(in, *single, *samples)
	opStats.CSVFile=*csvFile
	return applyToFiles(args, opStats, nil, c)
}

// Perform the run command
func cmdRun(args []string, c *ops.Context) error {
	if len(args)==0 { return fmt.Errorf("no operator sequence given") }
	for _, fileName:=range args {
		b, err:=os.ReadFile(fileName)
		if err!=nil { return err }
		seq:=ops.NewOpSequenceDefault()
		if err:=json.Unmarshal(b, seq); err!=nil { return fmt.Errorf("%s: %w", fileName, err) }
		fmt.Fprintf(c.Log, "Running %d steps from %s\n", len(seq.Steps), fileName)
		if _, err:=seq.Apply(nil, c); err!=nil { return err }
	}
	return nil
}
