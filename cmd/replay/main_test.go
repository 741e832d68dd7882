package main

import (
	"path/filepath"
	"strings"
	"testing"

	persistlog "chambersim.ai/internal/persistence/log"
	"chambersim.ai/internal/sim/chamber"
)

func writeLog(t *testing.T, dir, runID string, speed int, desc string, frames [][]byte) string {
	t.Helper()
	fl, err := persistlog.NewFrameLogger(dir, runID, speed, []byte(desc))
	if err != nil {
		t.Fatalf("NewFrameLogger: %v", err)
	}
	for i, f := range frames {
		if err := fl.WriteFrame(uint64(i), f); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}
	if err := fl.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return fl.Path()
}

func simulated(t *testing.T, speed int, desc string) [][]byte {
	t.Helper()
	frames, err := chamber.Animate(speed, desc)
	if err != nil {
		t.Fatalf("Animate: %v", err)
	}
	out := make([][]byte, len(frames))
	for i, f := range frames {
		out[i] = []byte(f)
	}
	return out
}

func TestVerifyLog_OK(t *testing.T) {
	dir := t.TempDir()
	path := writeLog(t, dir, "a", 2, "LRLR.LRLR", simulated(t, 2, "LRLR.LRLR"))

	res, err := verifyLog(path, true)
	if err != nil {
		t.Fatalf("verifyLog: %v", err)
	}
	sum, _ := chamber.Run(2, []byte("LRLR.LRLR"), nil)
	if res.Frames != 5 || res.Digest != sum.Digest || res.RunID != "a" {
		t.Fatalf("res=%+v", res)
	}

	files, err := listFrameLogs(dir)
	if err != nil || len(files) != 1 || files[0] != path {
		t.Fatalf("files=%v err=%v", files, err)
	}
}

func TestVerifyLog_DetectsTampering(t *testing.T) {
	dir := t.TempDir()

	frames := simulated(t, 1, "R..L")
	frames[1] = []byte("X..X")
	path := writeLog(t, filepath.Join(dir, "bad"), "bad", 1, "R..L", frames)
	if _, err := verifyLog(path, false); err == nil || !strings.Contains(err.Error(), "digest mismatch at tick 1") {
		t.Fatalf("expected digest mismatch, got %v", err)
	}

	short := simulated(t, 1, "R..L")
	path = writeLog(t, filepath.Join(dir, "short"), "short", 1, "R..L", short[:2])
	if _, err := verifyLog(path, true); err == nil || !strings.Contains(err.Error(), "log ends before") {
		t.Fatalf("expected truncated log error, got %v", err)
	}

	long := append(simulated(t, 1, "R..L"), []byte("...."))
	path = writeLog(t, filepath.Join(dir, "long"), "long", 1, "R..L", long)
	if _, err := verifyLog(path, true); err == nil || !strings.Contains(err.Error(), "log has 6 frames") {
		t.Fatalf("expected extra frame error, got %v", err)
	}
}
