// Package loopy implements the Casio Loopy controller stage: six
// row-select lines multiplexed against a shared 8-bit parallel output
// bus, players 1/2 answering on the first three rows and players 3/4 on
// the next three, plus a distinct mouse word (X-quadrature in the low
// nybble, buttons in the high nybble).
//
// Grounded on spec.md §4.F's Loopy section; no example repo models this
// console, so the row/bus timing is taken directly from the spec's
// description rather than any retrieved source.
package loopy

import (
	"context"
	"sync/atomic"

	"github.com/usbretro/usbretro/canonical"
	"github.com/usbretro/usbretro/console"
	"github.com/usbretro/usbretro/router"
)

// numRows is the row-select line count; rows 0-2 answer for players 0-1,
// rows 3-5 for players 2-3.
const numRows = 6

// quadPhase is a 2-bit Gray-code sequence a quadrature mouse encoder
// cycles through as it moves one detent in the positive direction.
var quadPhase = [4]uint8{0b00, 0b01, 0b11, 0b10}

type mouseState struct {
	phaseX, phaseY uint8
}

// Stage implements console.Stage for the Loopy.
type Stage struct {
	word  atomic.Uint64
	mouse [2]mouseState // one per player pair, matching the console's two mouse ports
}

// New returns a ready Stage.
func New() *Stage {
	return &Stage{}
}

func rowByte(ev *canonical.Event) uint8 {
	if ev == nil {
		return 0
	}
	var b uint8
	if ev.Buttons&canonical.ButtonUp != 0 {
		b |= 1 << 0
	}
	if ev.Buttons&canonical.ButtonDown != 0 {
		b |= 1 << 1
	}
	if ev.Buttons&canonical.ButtonLeft != 0 {
		b |= 1 << 2
	}
	if ev.Buttons&canonical.ButtonRight != 0 {
		b |= 1 << 3
	}
	if ev.Buttons&canonical.ButtonB1 != 0 {
		b |= 1 << 4
	}
	if ev.Buttons&canonical.ButtonB2 != 0 {
		b |= 1 << 5
	}
	if ev.Buttons&canonical.ButtonSelect != 0 {
		b |= 1 << 6
	}
	if ev.Buttons&canonical.ButtonStart != 0 {
		b |= 1 << 7
	}
	return b
}

// mouseWord advances this port's quadrature phase by the sign of dx/dy
// and packs {quadX(2b), quadY(2b)} into the low nybble and buttons into
// the high nybble.
func (s *Stage) mouseWord(port int, ev *canonical.Event) uint8 {
	m := &s.mouse[port]
	if ev.DeltaX > 0 {
		m.phaseX = (m.phaseX + 1) % 4
	} else if ev.DeltaX < 0 {
		m.phaseX = (m.phaseX + 3) % 4
	}
	if ev.DeltaY > 0 {
		m.phaseY = (m.phaseY + 1) % 4
	} else if ev.DeltaY < 0 {
		m.phaseY = (m.phaseY + 3) % 4
	}

	low := (quadPhase[m.phaseX] & 0x3) | (quadPhase[m.phaseY]&0x3)<<2
	var high uint8
	if ev.Buttons&canonical.ButtonB1 != 0 {
		high |= 1 << 0
	}
	if ev.Buttons&canonical.ButtonB2 != 0 {
		high |= 1 << 1
	}
	return low | high<<4
}

// Compose builds the byte for every row this scan, packing all six rows
// into the low 48 bits of WireWord.Lo, one byte per row.
func (s *Stage) Compose(r *router.Router) console.WireWord {
	var word uint64
	for row := 0; row < numRows; row++ {
		pair := row / 3    // 0 => players 0/1, 1 => players 2/3
		within := row % 3  // row 0/1 of each trio alternates players, row 2 carries the mouse word
		player := pair*2 + within%2
		ev := r.Output(router.Target("loopy"), player)

		var b uint8
		switch {
		case within == 2 && ev != nil && ev.Type == canonical.TypeMouse:
			b = s.mouseWord(pair, ev)
		default:
			b = rowByte(ev)
		}
		word |= uint64(b) << (8 * uint(row))
	}
	return console.WireWord{Lo: word}
}

// Run pushes the last published word on every row-select strobe.
func (s *Stage) Run(ctx context.Context, clock <-chan console.ClockEdge, tx chan<- console.WireWord) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-clock:
			if !ok {
				return
			}
			select {
			case tx <- console.WireWord{Lo: s.word.Load()}:
			default:
			}
		}
	}
}

// Publish stores the most recently composed word for Run to transmit.
func (s *Stage) Publish(w console.WireWord) {
	s.word.Store(w.Lo)
}
