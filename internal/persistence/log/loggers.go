package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"chambersim.ai/internal/sim/chamber"
	"chambersim.ai/internal/sim/encoding"
)

// JSONLZstdWriter appends one JSON document per line to a zstd stream.
type JSONLZstdWriter struct {
	path string

	mu  sync.Mutex
	f   *os.File
	enc *zstd.Encoder
	w   *bufio.Writer
}

func NewJSONLZstdWriter(path string) (*JSONLZstdWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &JSONLZstdWriter{
		path: path,
		f:    f,
		enc:  enc,
		w:    bufio.NewWriterSize(enc, 128*1024),
	}, nil
}

func (w *JSONLZstdWriter) Path() string { return w.path }

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.w == nil {
		return fmt.Errorf("%s: writer closed", filepath.Base(w.path))
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	return w.w.WriteByte('\n')
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var err1 error
	if w.w != nil {
		err1 = w.w.Flush()
		w.w = nil
	}
	if w.enc != nil {
		if err := w.enc.Close(); err1 == nil {
			err1 = err
		}
		w.enc = nil
	}
	if w.f != nil {
		if err := w.f.Close(); err1 == nil {
			err1 = err
		}
		w.f = nil
	}
	return err1
}

const (
	EntryRun   = "RUN"
	EntryFrame = "FRAME"
)

// Entry is one line of a frame log. The first line is a RUN header carrying
// the inputs; every following line is a FRAME.
type Entry struct {
	Type string `json:"type"`

	// RUN
	RunID   string `json:"run_id,omitempty"`
	Speed   int    `json:"speed,omitempty"`
	Width   int    `json:"width,omitempty"`
	Chamber string `json:"chamber,omitempty"`

	// FRAME
	Tick     uint64 `json:"tick"`
	Digest   string `json:"digest,omitempty"`
	Encoding string `json:"encoding,omitempty"`
	Data     string `json:"data,omitempty"`
}

// FrameLogger writes a replayable record of one run.
type FrameLogger struct{ w *JSONLZstdWriter }

// FrameLogPath is where a run's frame log lives under dir.
func FrameLogPath(dir, runID string) string {
	return filepath.Join(dir, fmt.Sprintf("frames-%s.jsonl.zst", runID))
}

// NewFrameLogger creates the log and writes its RUN header.
func NewFrameLogger(dir, runID string, speed int, desc []byte) (*FrameLogger, error) {
	w, err := NewJSONLZstdWriter(FrameLogPath(dir, runID))
	if err != nil {
		return nil, err
	}
	l := &FrameLogger{w: w}
	if err := w.Write(Entry{
		Type:    EntryRun,
		RunID:   runID,
		Speed:   speed,
		Width:   len(desc),
		Chamber: string(desc),
	}); err != nil {
		_ = w.Close()
		return nil, err
	}
	return l, nil
}

func (l *FrameLogger) WriteFrame(tick uint64, frame []byte) error {
	return l.w.Write(Entry{
		Type:     EntryFrame,
		Tick:     tick,
		Digest:   chamber.FrameDigest(frame),
		Encoding: "RLE",
		Data:     encoding.EncodeFrame(frame),
	})
}

func (l *FrameLogger) Path() string { return l.w.Path() }
func (l *FrameLogger) Close() error { return l.w.Close() }
