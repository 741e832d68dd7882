package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/gdamore/tcell/v2"

	"chambersim.ai/internal/sim/chamber"
	"chambersim.ai/internal/sim/tuning"
	"chambersim.ai/internal/view"
)

var errUsage = errors.New("usage: view [flags] [<speed> <chamber>]")

func main() {
	var (
		configPath = flag.String("config", "", "path to tuning.yaml (optional)")
		tickMs     = flag.Int("tick_ms", 0, "delay between frames (overrides config)")
	)
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, errUsage)
		flag.PrintDefaults()
	}
	flag.Parse()

	tune := tuning.Defaults()
	if *configPath != "" {
		t, err := tuning.Load(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "load config:", err)
			os.Exit(1)
		}
		tune = t
	}
	speed, desc, err := runArgs(flag.Args(), tune)
	if err != nil {
		if errors.Is(err, errUsage) {
			flag.Usage()
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(2)
	}
	interval := time.Duration(tune.View.TickMs) * time.Millisecond
	if *tickMs > 0 {
		interval = time.Duration(*tickMs) * time.Millisecond
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		fmt.Fprintln(os.Stderr, "screen:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := play(ctx, screen, speed, desc, interval); err != nil {
		fmt.Fprintln(os.Stderr, "view:", err)
		os.Exit(1)
	}
}

// runArgs picks the run from positional args, falling back to the config.
func runArgs(args []string, tune tuning.Tuning) (int, string, error) {
	switch len(args) {
	case 0:
		return tune.Speed, tune.Chamber, nil
	case 2:
		s, err := strconv.Atoi(args[0])
		if err != nil {
			return 0, "", fmt.Errorf("bad speed %q: %v", args[0], err)
		}
		return s, args[1], nil
	default:
		return 0, "", errUsage
	}
}

// play owns the screen for one run: it initializes it, plays until the user
// quits or ctx ends, and always finalizes it.
func play(ctx context.Context, screen tcell.Screen, speed int, desc string, interval time.Duration) error {
	if err := screen.Init(); err != nil {
		return fmt.Errorf("screen init: %w", err)
	}
	defer screen.Fini()

	player, err := view.NewPlayer(screen, speed, chamber.Desc(desc))
	if err != nil {
		return err
	}
	if err := player.Run(ctx, interval); err != nil && !errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
