package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"chambersim.ai/internal/persistence/indexdb"
	"chambersim.ai/internal/sim/chamber"
)

func TestRun_SmallChambers(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.sqlite")
	var stdout, stderr bytes.Buffer
	code := run([]string{"-size", "10", "-left", "2", "-right", "2", "-count", "3", "-index", dbPath}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit=%d stderr=%s", code, stderr.String())
	}
	out := stdout.String()
	if got := strings.Count(out, "results of speed=2 and input=R...R.L..L"); got != 3 {
		t.Fatalf("echo count=%d out=%s", got, out)
	}
	if !strings.Contains(out, "runs=3") {
		t.Fatalf("missing totals: %s", out)
	}

	idx, err := indexdb.OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer idx.Close()
	rows, err := idx.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows=%d", len(rows))
	}
	sum, err := chamber.Run(2, []byte("R...R.L..L"), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, r := range rows {
		if r.Source != "bench" || r.Digest != sum.Digest || r.Ticks != sum.Ticks || r.Left != 2 || r.Right != 2 {
			t.Fatalf("row=%+v want digest=%s ticks=%d", r, sum.Digest, sum.Ticks)
		}
	}
}

func TestRun_RejectsBadConfig(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(cfg, []byte("generator:\n  size: -1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	var stdout, stderr bytes.Buffer
	if code := run([]string{"-config", cfg}, &stdout, &stderr); code != 1 {
		t.Fatalf("exit=%d", code)
	}
	if !strings.Contains(stderr.String(), "tuning.yaml") {
		t.Fatalf("stderr=%s", stderr.String())
	}
}
