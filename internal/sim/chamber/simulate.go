package chamber

// Collector accumulates one stable frame per tick.
type Collector struct {
	frames []string
	width  int
}

func NewCollector(width int) *Collector {
	return &Collector{width: width}
}

// Add copies frame into the result sequence.
func (c *Collector) Add(frame []byte) {
	c.frames = append(c.frames, string(frame))
}

// Finish appends the trailing all-empty frame and returns the sequence.
func (c *Collector) Finish() []string {
	c.frames = append(c.frames, string(Blank(c.width)))
	return c.frames
}

// Blank returns an all-empty frame of the given width.
func Blank(width int) []byte {
	b := make([]byte, width)
	for i := range b {
		b[i] = Empty
	}
	return b
}

// Simulate runs a chamber to completion and returns one frame per tick
// followed by a single all-empty frame. speed must be positive and chamber
// must be non-nil; both are checked before any work is done.
func Simulate(speed int, chamber []byte) ([]string, error) {
	st, err := NewStepper(speed, chamber)
	if err != nil {
		return nil, err
	}
	c := NewCollector(st.Width())
	for {
		frame, ok := st.Next()
		if !ok {
			break
		}
		c.Add(frame)
	}
	return c.Finish(), nil
}

// Animate is Simulate for a textual chamber description.
func Animate(speed int, desc string) ([]string, error) {
	return Simulate(speed, Desc(desc))
}

// Desc copies a textual description into a non-nil byte slice, so an empty
// string is a zero-width chamber rather than a missing one.
func Desc(s string) []byte {
	b := make([]byte, len(s))
	copy(b, s)
	return b
}
