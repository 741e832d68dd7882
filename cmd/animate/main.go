package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	persistlog "chambersim.ai/internal/persistence/log"
	"chambersim.ai/internal/persistence/indexdb"
	"chambersim.ai/internal/sim/chamber"
	"chambersim.ai/internal/sim/tuning"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// printSink writes each frame on its own line.
type printSink struct{ w *bufio.Writer }

func (p printSink) WriteFrame(_ uint64, frame []byte) error {
	if _, err := p.w.Write(frame); err != nil {
		return err
	}
	return p.w.WriteByte('\n')
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("animate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		configPath = fs.String("config", "", "path to tuning.yaml (optional)")
		framesDir  = fs.String("frames", "", "write a frame log into this directory (optional)")
		indexPath  = fs.String("index", "", "record the run into this sqlite index (optional)")
		quiet      = fs.Bool("quiet", false, "do not log run summary")
	)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: animate [flags] <speed> <chamber>")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}

	tune := tuning.Defaults()
	if *configPath != "" {
		t, err := tuning.Load(*configPath)
		if err != nil {
			fmt.Fprintln(stderr, "load config:", err)
			return 1
		}
		tune = t
	}
	if *framesDir == "" {
		*framesDir = tune.FramesDir
	}
	if *indexPath == "" {
		*indexPath = tune.IndexPath
	}

	speed, desc := tune.Speed, tune.Chamber
	switch fs.NArg() {
	case 0:
		if *configPath == "" {
			fs.Usage()
			return 2
		}
	case 2:
		s, err := strconv.Atoi(strings.TrimSpace(fs.Arg(0)))
		if err != nil {
			fmt.Fprintf(stderr, "bad speed %q: %v\n", fs.Arg(0), err)
			return 2
		}
		speed, desc = s, fs.Arg(1)
	default:
		fs.Usage()
		return 2
	}

	logger := log.New(stderr, "[animate] ", log.LstdFlags|log.Lmicroseconds)
	if *quiet {
		logger.SetOutput(io.Discard)
	}

	out := bufio.NewWriter(stdout)
	defer out.Flush()
	fmt.Fprintf(out, "results of speed=%d and input=%s\n", speed, desc)

	runID := uuid.NewString()
	sinks := chamber.MultiSink{printSink{w: out}}

	var frameLog *persistlog.FrameLogger
	if *framesDir != "" && speed > 0 {
		fl, err := persistlog.NewFrameLogger(*framesDir, runID, speed, []byte(desc))
		if err != nil {
			fmt.Fprintln(stderr, "frame log:", err)
			return 1
		}
		frameLog = fl
		sinks = append(sinks, fl)
	}

	start := time.Now()
	sum, err := chamber.Run(speed, chamber.Desc(desc), sinks)
	elapsed := time.Since(start)
	if frameLog != nil {
		if cerr := frameLog.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close frame log: %w", cerr)
		}
	}
	if err != nil {
		_ = out.Flush()
		if errors.Is(err, chamber.ErrInvalidSpeed) || errors.Is(err, chamber.ErrInvalidInput) {
			fmt.Fprintln(stderr, "error:", err)
		} else {
			fmt.Fprintln(stderr, "run:", err)
		}
		return 1
	}
	logger.Printf("run=%s speed=%d width=%d left=%d right=%d ticks=%d digest=%s elapsed=%s",
		runID, sum.Speed, sum.Width, sum.Left, sum.Right, sum.Ticks, sum.Digest, elapsed)

	if *indexPath != "" {
		idx, err := indexdb.OpenSQLite(*indexPath)
		if err != nil {
			fmt.Fprintln(stderr, "open index:", err)
			return 1
		}
		row := indexdb.RunRow{
			RunID:     runID,
			Source:    "animate",
			Speed:     sum.Speed,
			Width:     sum.Width,
			Left:      sum.Left,
			Right:     sum.Right,
			Ticks:     sum.Ticks,
			ElapsedUS: elapsed.Microseconds(),
			Digest:    sum.Digest,
		}
		if frameLog != nil {
			row.FramesPath = frameLog.Path()
		}
		idx.RecordRun(row)
		if err := idx.Close(); err != nil {
			fmt.Fprintln(stderr, "close index:", err)
			return 1
		}
	}
	return 0
}
