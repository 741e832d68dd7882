package chamber

import (
	"errors"
	"testing"
)

type recordSink struct {
	ticks  []uint64
	frames []string
	failAt int
}

func (r *recordSink) WriteFrame(tick uint64, frame []byte) error {
	if r.failAt > 0 && len(r.frames) == r.failAt {
		return errors.New("sink full")
	}
	r.ticks = append(r.ticks, tick)
	r.frames = append(r.frames, string(frame))
	return nil
}

func TestRun_MatchesSimulate(t *testing.T) {
	in := []byte("RR..LRL")
	want, err := Simulate(3, in)
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}

	sink := &recordSink{}
	sum, err := Run(3, in, sink)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	assertFrames(t, sink.frames, want)
	for i, tick := range sink.ticks {
		if tick != uint64(i) {
			t.Fatalf("tick[%d]=%d", i, tick)
		}
	}
	if sum.Ticks != 3 || sum.Width != 7 || sum.Left != 2 || sum.Right != 3 || sum.Speed != 3 {
		t.Fatalf("summary=%+v", sum)
	}
	if sum.Digest == "" {
		t.Fatalf("expected digest")
	}

	again, err := Run(3, in, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if again.Digest != sum.Digest {
		t.Fatalf("digest not stable: %s vs %s", again.Digest, sum.Digest)
	}
	other, _ := Run(2, in, nil)
	if other.Digest == sum.Digest {
		t.Fatalf("different runs share a digest")
	}
}

func TestRun_PropagatesSinkError(t *testing.T) {
	_, err := Run(1, []byte("R...."), &recordSink{failAt: 2})
	if err == nil || err.Error() != "sink full" {
		t.Fatalf("expected sink error, got %v", err)
	}
}

func TestRun_ValidatesBeforeWork(t *testing.T) {
	sink := &recordSink{}
	if _, err := Run(0, []byte("R"), sink); !errors.Is(err, ErrInvalidSpeed) {
		t.Fatalf("expected ErrInvalidSpeed, got %v", err)
	}
	if len(sink.frames) != 0 {
		t.Fatalf("sink saw %d frames", len(sink.frames))
	}
}

func TestMultiSink_SkipsNil(t *testing.T) {
	a, b := &recordSink{}, &recordSink{}
	if _, err := Run(5, []byte("L.R"), MultiSink{a, nil, b}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(a.frames) != 2 || len(b.frames) != 2 {
		t.Fatalf("a=%q b=%q", a.frames, b.frames)
	}
}
