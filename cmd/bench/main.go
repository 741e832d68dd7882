package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"chambersim.ai/internal/persistence/indexdb"
	"chambersim.ai/internal/sim/chamber"
	"chambersim.ai/internal/sim/chambergen"
	"chambersim.ai/internal/sim/tuning"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("bench", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		configPath = fs.String("config", "", "path to tuning.yaml (optional)")
		size       = fs.Int("size", 0, "chamber width (overrides config)")
		left       = fs.Int("left", -1, "approximate left-mover count (overrides config)")
		right      = fs.Int("right", -1, "approximate right-mover count (overrides config)")
		count      = fs.Int("count", 0, "number of chambers (overrides config)")
		indexPath  = fs.String("index", "", "record runs into this sqlite index (optional)")
	)
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
	cfg := tune.GeneratorConfig()
	if *size > 0 {
		cfg.Size = *size
	}
	if *left >= 0 {
		cfg.ApproxLeft = *left
	}
	if *right >= 0 {
		cfg.ApproxRight = *right
	}
	if *count > 0 {
		cfg.Count = *count
	}
	if *indexPath == "" {
		*indexPath = tune.IndexPath
	}

	sup, err := chambergen.NewSupplier(cfg)
	if err != nil {
		fmt.Fprintln(stderr, "generator:", err)
		return 2
	}

	logger := log.New(stdout, "[bench] ", log.LstdFlags|log.Lmicroseconds)

	var idx *indexdb.SQLiteIndex
	if *indexPath != "" {
		idx, err = indexdb.OpenSQLite(*indexPath)
		if err != nil {
			fmt.Fprintln(stderr, "open index:", err)
			return 1
		}
		defer idx.Close()
	}

	var (
		n     int
		total time.Duration
	)
	for {
		desc, ok := sup.Next()
		if !ok {
			break
		}
		speed := chambergen.BenchSpeed(len(desc), tune.Bench.FallbackSpeed)

		start := time.Now()
		frames, err := chamber.Animate(speed, desc)
		elapsed := time.Since(start)
		if err != nil {
			fmt.Fprintln(stderr, "simulate:", err)
			return 1
		}
		n++
		total += elapsed

		sets := chamber.Classify([]byte(desc))
		digest := chamber.NewRunDigest()
		for _, f := range frames {
			digest.Add([]byte(f))
		}
		runID := uuid.NewString()
		logger.Printf("#%d run=%s width=%d speed=%d left=%d right=%d frames=%d elapsed=%s",
			n, runID, len(desc), speed, len(sets.Left), len(sets.Right), len(frames), elapsed)

		if len(desc) < tune.Bench.EchoBelow {
			fmt.Fprintf(stdout, "results of speed=%d and input=%s\n", speed, desc)
			for _, f := range frames {
				fmt.Fprintln(stdout, f)
			}
		}

		idx.RecordRun(indexdb.RunRow{
			RunID:     runID,
			Source:    "bench",
			Speed:     speed,
			Width:     len(desc),
			Left:      len(sets.Left),
			Right:     len(sets.Right),
			Ticks:     uint64(len(frames) - 1),
			ElapsedUS: elapsed.Microseconds(),
			Digest:    digest.Sum(),
		})
	}
	if n > 0 {
		logger.Printf("runs=%d total=%s mean=%s", n, total, total/time.Duration(n))
	}
	if idx != nil && idx.Dropped() > 0 {
		logger.Printf("index dropped %d rows", idx.Dropped())
	}
	return 0
}
