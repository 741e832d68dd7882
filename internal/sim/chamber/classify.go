package chamber

// Input and output symbols.
const (
	LeftMarker  byte = 'L'
	RightMarker byte = 'R'
	Empty       byte = '.'
	Occupied    byte = 'X'
)

// Particle is one slot in a direction set. An exited particle keeps its slot
// so indexes into the set stay stable for the lifetime of a run.
type Particle struct {
	Pos    int
	Exited bool
}

// Sets holds the particles of a chamber split by direction, each in
// ascending original position.
type Sets struct {
	Left  []Particle
	Right []Particle
	Width int
}

// Classify scans a chamber description once. Unrecognized symbols are empty
// cells. Both sets are sized for the worst case (every cell a mover in the
// same direction) so stepping never grows them.
func Classify(desc []byte) Sets {
	n := len(desc)
	s := Sets{
		Left:  make([]Particle, 0, n),
		Right: make([]Particle, 0, n),
		Width: n,
	}
	for i, c := range desc {
		switch c {
		case LeftMarker:
			s.Left = append(s.Left, Particle{Pos: i})
		case RightMarker:
			s.Right = append(s.Right, Particle{Pos: i})
		}
	}
	return s
}
