package chamber

import "fmt"

// Stepper advances the particles of one chamber tick by tick.
//
// Every particle of a direction moves by the same speed, so relative order
// inside a direction never changes. Left-movers therefore exit strictly from
// the front of their set and right-movers strictly from the back, and the
// active part of each set is a single range tracked by one integer:
// left is active in [leftStart, len(left)), right in [0, rightCount).
// Both bounds only ever move inward.
type Stepper struct {
	speed int
	width int

	left       []Particle
	leftStart  int
	right      []Particle
	rightCount int

	frame []byte
	tick  uint64
}

// NewStepper validates its inputs and classifies the chamber. A nil
// description is rejected; an empty one is a valid zero-width chamber.
func NewStepper(speed int, desc []byte) (*Stepper, error) {
	if speed <= 0 {
		return nil, fmt.Errorf("chamber: %w: got %d", ErrInvalidSpeed, speed)
	}
	if desc == nil {
		return nil, ErrInvalidInput
	}
	sets := Classify(desc)
	return &Stepper{
		speed:      speed,
		width:      sets.Width,
		left:       sets.Left,
		right:      sets.Right,
		rightCount: len(sets.Right),
		frame:      make([]byte, sets.Width),
	}, nil
}

// Done reports whether every particle has left the chamber.
func (s *Stepper) Done() bool {
	return s.leftStart == len(s.left) && s.rightCount == 0
}

// Tick is the number of frames produced so far.
func (s *Stepper) Tick() uint64 { return s.tick }

// Width is the chamber length.
func (s *Stepper) Width() int { return s.width }

// Speed is the per-tick distance every particle moves.
func (s *Stepper) Speed() int { return s.speed }

// Active returns how many left- and right-movers are still in the chamber.
func (s *Stepper) Active() (left, right int) {
	return len(s.left) - s.leftStart, s.rightCount
}

// Next renders the occupancy of the current tick and then moves every
// active particle. The returned frame aliases an internal buffer that is
// overwritten by the next call; callers that keep it must copy it.
// Next returns false once the chamber is empty.
func (s *Stepper) Next() ([]byte, bool) {
	if s.Done() {
		return nil, false
	}
	s.resetFrame()

	// Marks happen before moves: a frame shows where particles were at the
	// start of the tick.
	end := len(s.left)
	for i := s.leftStart; i < end; i++ {
		p := &s.left[i]
		s.frame[p.Pos] = Occupied
		next := p.Pos - s.speed
		if next < 0 {
			p.Exited = true
			s.leftStart++
			continue
		}
		p.Pos = next
	}

	end = s.rightCount
	for i := 0; i < end; i++ {
		p := &s.right[i]
		s.frame[p.Pos] = Occupied
		// Compared as a distance so huge speeds cannot overflow Pos.
		if s.speed >= s.width-p.Pos {
			p.Exited = true
			s.rightCount--
			continue
		}
		p.Pos += s.speed
	}

	s.tick++
	return s.frame, true
}

func (s *Stepper) resetFrame() {
	for i := range s.frame {
		s.frame[i] = Empty
	}
}
