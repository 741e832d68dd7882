package tuning

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTuning(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestLoad_OverridesDefaults(t *testing.T) {
	p := writeTuning(t, `
speed: 3
chamber: "RR..LRL"
frames_dir: ./data/frames
generator:
  size: 500
  approx_left: 20
  approx_right: 30
  count: 2
view:
  tick_ms: 50
`)
	tu, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tu.Speed != 3 || tu.Chamber != "RR..LRL" || tu.FramesDir != "./data/frames" {
		t.Fatalf("unexpected run fields: %+v", tu)
	}
	g := tu.GeneratorConfig()
	if g.Size != 500 || g.ApproxLeft != 20 || g.ApproxRight != 30 || g.Count != 2 {
		t.Fatalf("generator=%+v", g)
	}
	if tu.View.TickMs != 50 {
		t.Fatalf("tick_ms=%d", tu.View.TickMs)
	}
	// Untouched sections keep defaults.
	if tu.Bench.FallbackSpeed != 2 || tu.Bench.EchoBelow != 200 {
		t.Fatalf("bench=%+v", tu.Bench)
	}
}

func TestLoad_RejectsBadSpeed(t *testing.T) {
	p := writeTuning(t, "speed: 0\n")
	_, err := Load(p)
	if err == nil || !strings.Contains(err.Error(), "speed") {
		t.Fatalf("expected speed error, got %v", err)
	}
}

func TestLoad_BadYAML(t *testing.T) {
	p := writeTuning(t, "speed: [\n")
	if _, err := Load(p); err == nil || !strings.Contains(err.Error(), "tuning.yaml") {
		t.Fatalf("expected yaml error, got %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func findRepoRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatalf("could not locate go.mod from %s", dir)
		}
		dir = parent
	}
}

func TestLoad_RepoConfig(t *testing.T) {
	tu, err := Load(filepath.Join(findRepoRoot(t), "configs", "tuning.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tu.Speed != 2 || tu.Chamber != "LRLR.LRLR" || tu.Generator.Size != 10_000_000 || tu.View.TickMs != 250 {
		t.Fatalf("tuning=%+v", tu)
	}
}
