package chambergen

import (
	"fmt"

	"chambersim.ai/internal/sim/chamber"
)

// Config describes the chambers a Supplier produces. Left and right counts
// are approximate: right-movers are placed after left-movers and may
// overwrite them.
type Config struct {
	Size        int
	ApproxLeft  int
	ApproxRight int
	Count       int
}

func Defaults() Config {
	return Config{Size: 10, ApproxLeft: 1, ApproxRight: 1, Count: 1}
}

func (c Config) Validate() error {
	if c.Size < 0 {
		return fmt.Errorf("size must be >= 0, got %d", c.Size)
	}
	if c.ApproxLeft < 0 || c.ApproxRight < 0 {
		return fmt.Errorf("particle counts must be >= 0, got left=%d right=%d", c.ApproxLeft, c.ApproxRight)
	}
	if c.Count < 0 {
		return fmt.Errorf("count must be >= 0, got %d", c.Count)
	}
	return nil
}

// Supplier hands out Count generated chambers.
type Supplier struct {
	cfg       Config
	generated int
}

func NewSupplier(cfg Config) (*Supplier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Supplier{cfg: cfg}, nil
}

// Next returns the next chamber, or false once Count chambers were produced.
func (s *Supplier) Next() (string, bool) {
	if s.generated >= s.cfg.Count {
		return "", false
	}
	s.generated++
	return string(Generate(s.cfg.Size, s.cfg.ApproxLeft, s.cfg.ApproxRight)), true
}

// Generate lays out a chamber: left-movers every third cell walking in from
// the right end, then right-movers every fourth cell from the left end.
func Generate(size, left, right int) []byte {
	b := chamber.Blank(size)
	placed := 0
	for i := size - 1; i >= 0 && placed < left; i -= 3 {
		b[i] = chamber.LeftMarker
		placed++
	}
	placed = 0
	for i := 0; i < size && placed < right; i += 4 {
		b[i] = chamber.RightMarker
		placed++
	}
	return b
}

// BenchSpeed picks a speed for load runs: wide chambers move a twentieth of
// their width per tick so runs stay short.
func BenchSpeed(size, fallback int) int {
	if size > 1000 {
		return size / 20
	}
	return fallback
}
