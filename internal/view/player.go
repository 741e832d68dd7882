package view

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"

	"chambersim.ai/internal/sim/chamber"
)

var (
	styleOccupied = tcell.StyleDefault.Foreground(tcell.ColorGreen).Bold(true)
	styleEmpty    = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleStatus   = tcell.StyleDefault.Reverse(true)
)

// Player draws a run on a terminal, one row per tick. Older rows scroll off
// the top; the last line is a status bar.
type Player struct {
	screen tcell.Screen
	st     *chamber.Stepper

	rows        []string
	tick        uint64
	left, right int
	done        bool
}

func NewPlayer(screen tcell.Screen, speed int, desc []byte) (*Player, error) {
	st, err := chamber.NewStepper(speed, desc)
	if err != nil {
		return nil, err
	}
	p := &Player{screen: screen, st: st}
	p.left, p.right = st.Active()
	return p, nil
}

// Done reports whether the trailing empty frame has been shown.
func (p *Player) Done() bool { return p.done }

// Step shows the next frame. It returns false once the run is over.
func (p *Player) Step() bool {
	if p.done {
		return false
	}
	p.tick = p.st.Tick()
	p.left, p.right = p.st.Active()
	frame, ok := p.st.Next()
	if !ok {
		frame = chamber.Blank(p.st.Width())
		p.done = true
	}
	p.rows = append(p.rows, string(frame))
	_, h := p.screen.Size()
	if keep := h - 1; keep > 0 && len(p.rows) > keep {
		p.rows = append(p.rows[:0], p.rows[len(p.rows)-keep:]...)
	}
	p.draw()
	return !p.done
}

func (p *Player) draw() {
	p.screen.Clear()
	w, h := p.screen.Size()
	start := 0
	if h > 1 && len(p.rows) > h-1 {
		start = len(p.rows) - (h - 1)
	}
	for y, row := range p.rows[start:] {
		for x := 0; x < len(row) && x < w; x++ {
			style := styleEmpty
			if row[x] == chamber.Occupied {
				style = styleOccupied
			}
			p.screen.SetContent(x, y, rune(row[x]), nil, style)
		}
	}

	status := fmt.Sprintf(" tick %d  left %d  right %d  speed %d ", p.tick, p.left, p.right, p.st.Speed())
	if p.done {
		status += " done "
	}
	status += " [q]uit"
	for x, r := range []rune(status) {
		if x >= w {
			break
		}
		p.screen.SetContent(x, h-1, r, nil, styleStatus)
	}
	p.screen.Show()
}

// Run advances one frame per interval until ctx ends or the user quits
// (q, Esc or Ctrl-C). After the last frame it keeps the screen up until quit.
func (p *Player) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	quit := make(chan struct{})
	defer close(quit)

	events := make(chan tcell.Event, 16)
	go func() {
		for {
			ev := p.screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-quit:
				return
			}
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.Step()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-events:
			switch ev := ev.(type) {
			case *tcell.EventKey:
				if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC ||
					(ev.Key() == tcell.KeyRune && (ev.Rune() == 'q' || ev.Rune() == 'Q')) {
					return nil
				}
			case *tcell.EventResize:
				p.screen.Sync()
				p.draw()
			}
		case <-ticker.C:
			p.Step()
		}
	}
}
