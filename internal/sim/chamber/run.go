package chamber

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
)

// FrameSink receives every frame of a run in tick order, including the
// trailing all-empty frame. frame is only valid for the duration of the call.
type FrameSink interface {
	WriteFrame(tick uint64, frame []byte) error
}

// Summary describes a finished run.
type Summary struct {
	Speed  int
	Width  int
	Left   int
	Right  int
	Ticks  uint64 // frames with particles, excluding the trailing empty frame
	Digest string
}

// FrameDigest is the hex sha256 of a single frame.
func FrameDigest(frame []byte) string {
	sum := sha256.Sum256(frame)
	return hex.EncodeToString(sum[:])
}

// RunDigest accumulates a digest over a frame sequence in order.
type RunDigest struct{ h hash.Hash }

func NewRunDigest() *RunDigest { return &RunDigest{h: sha256.New()} }

func (d *RunDigest) Add(frame []byte) {
	d.h.Write(frame)
	d.h.Write([]byte{'\n'})
}

func (d *RunDigest) Sum() string { return hex.EncodeToString(d.h.Sum(nil)) }

// Run steps a chamber to completion, feeding each frame to sink (which may
// be nil). The summary digest covers every frame in order, so two runs with
// the same digest produced the same sequence.
func Run(speed int, chamber []byte, sink FrameSink) (Summary, error) {
	st, err := NewStepper(speed, chamber)
	if err != nil {
		return Summary{}, err
	}
	sum := Summary{Speed: speed, Width: st.Width()}
	sum.Left, sum.Right = st.Active()

	d := NewRunDigest()
	emit := func(tick uint64, frame []byte) error {
		d.Add(frame)
		if sink == nil {
			return nil
		}
		return sink.WriteFrame(tick, frame)
	}

	for {
		tick := st.Tick()
		frame, ok := st.Next()
		if !ok {
			break
		}
		if err := emit(tick, frame); err != nil {
			return sum, err
		}
	}
	sum.Ticks = st.Tick()
	if err := emit(sum.Ticks, Blank(sum.Width)); err != nil {
		return sum, err
	}
	sum.Digest = d.Sum()
	return sum, nil
}

// MultiSink fans frames out to several sinks, stopping at the first error.
type MultiSink []FrameSink

func (m MultiSink) WriteFrame(tick uint64, frame []byte) error {
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.WriteFrame(tick, frame); err != nil {
			return err
		}
	}
	return nil
}
