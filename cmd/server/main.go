package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"chambersim.ai/internal/envconfig"
	"chambersim.ai/internal/transport/observer"
)

// serverEnv is read from the environment; flags of the same meaning win.
type serverEnv struct {
	Addr            string `env:"CHAMBER_ADDR" envDefault:":8080"`
	DataDir         string `env:"CHAMBER_DATA_DIR" envDefault:"./data"`
	IndexBackend    string `env:"CHAMBER_INDEX_BACKEND" envDefault:"sqlite"`
	MaxWidth        int    `env:"CHAMBER_MAX_WIDTH" envDefault:"1048576"`
	FrameIntervalMs int    `env:"CHAMBER_FRAME_INTERVAL_MS" envDefault:"0"`
	MaxSessions     int    `env:"CHAMBER_MAX_SESSIONS" envDefault:"64"`
	EnablePprof     bool   `env:"CHAMBER_ENABLE_PPROF" envDefault:"false"`
	RecordFrames    bool   `env:"CHAMBER_RECORD_FRAMES" envDefault:"false"`

	Archive archiveEnv `envPrefix:"CHAMBER_ARCHIVE_"`
}

func main() {
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	var cfg serverEnv
	if err := envconfig.Parse(&cfg); err != nil {
		logger.Fatalf("%v", err)
	}

	var (
		addr          = flag.String("addr", cfg.Addr, "http listen address")
		dataDir       = flag.String("data", cfg.DataDir, "runtime data directory")
		indexBackend  = flag.String("index_backend", cfg.IndexBackend, "run index backend: sqlite|none")
		maxWidth      = flag.Int("max_width", cfg.MaxWidth, "largest chamber accepted from observers")
		frameInterval = flag.Int("frame_interval_ms", cfg.FrameIntervalMs, "default delay between frames when a client asks for none")
		maxSessions   = flag.Int("max_sessions", cfg.MaxSessions, "max concurrent observer sessions")
		recordFrames  = flag.Bool("record_frames", cfg.RecordFrames, "write a frame log for every observer run")
	)
	flag.Parse()

	idx, err := openRuntimeIndex(*dataDir, *indexBackend)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
	}

	mirror, err := buildMirror(cfg.Archive, logger)
	if err != nil {
		logger.Fatalf("init archive mirror: %v", err)
	}
	defer mirror.Close()

	var rec observer.RunRecorder
	if idx != nil {
		rec = idx
	}
	obsCfg := observer.Config{
		MaxWidth:        *maxWidth,
		MaxSessions:     *maxSessions,
		DefaultInterval: time.Duration(*frameInterval) * time.Millisecond,
	}
	if *recordFrames {
		obsCfg.FramesDir = filepath.Join(*dataDir, "frames")
		if mirror != nil {
			obsCfg.OnFrameLog = mirror.Enqueue
		}
	}
	obs := observer.NewServer(obsCfg, rec, logger)

	srv := &http.Server{
		Addr:              *addr,
		Handler:           newMux(obs, idx, mirror, cfg.EnablePprof, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := signalContext()
	defer cancel()
	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s (index=%s max_width=%d max_sessions=%d)", *addr, *indexBackend, *maxWidth, *maxSessions)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
