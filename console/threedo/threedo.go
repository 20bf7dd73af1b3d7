// Package threedo implements the 3DO controller stage: a daisy-chained
// shift register driven by the console's CLK. On the console's poll IRQ
// (CLK held high for 32 cycles), this firmware shifts its own report out
// while simultaneously shifting the next controller's passthrough report
// in.
//
// Grounded on spec.md §4.F's 3DO section, including its documented open
// question: passthrough is one-poll delayed (the byte received this poll
// is only forwarded on the *next* poll) rather than same-poll forwarded,
// preserved here as-is rather than silently fixed -- see DESIGN.md.
package threedo

import (
	"context"
	"sync/atomic"

	"github.com/usbretro/usbretro/canonical"
	"github.com/usbretro/usbretro/console"
	"github.com/usbretro/usbretro/router"
)

// Stage implements console.Stage for one 3DO controller position in the
// daisy chain.
type Stage struct {
	word    atomic.Uint64
	current atomic.Uint64 // passthrough byte visible to Compose this poll
	pending atomic.Uint64 // byte latched this poll, promoted to current next poll
}

// New returns a ready Stage.
func New() *Stage {
	return &Stage{}
}

func reportByte(ev *canonical.Event) uint8 {
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
	if ev.Buttons&canonical.ButtonB3 != 0 {
		b |= 1 << 6
	}
	if ev.Buttons&canonical.ButtonStart != 0 {
		b |= 1 << 7
	}
	return b
}

// Compose builds this position's report byte and packs the chain's
// currently-held passthrough byte (received on the *previous* poll)
// alongside it, reproducing the one-poll delay verbatim.
func (s *Stage) Compose(r *router.Router) console.WireWord {
	ev := r.Output(router.Target("threedo"), 0)
	own := reportByte(ev)
	word := uint64(own) | s.current.Load()<<8
	s.current.Store(s.pending.Load())
	return console.WireWord{Lo: word}
}

// ReceivePassthrough latches a byte shifted in from the next controller
// in the chain this poll; it becomes visible in Compose's output only
// starting the *following* poll, matching the shift-register timing the
// spec documents as a known one-poll delay.
func (s *Stage) ReceivePassthrough(b uint8) {
	s.pending.Store(uint64(b))
}

// Run shifts the published word out on each 32-cycle CLK-high IRQ.
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

// Publish stores the most recently composed word for Run to shift out.
func (s *Stage) Publish(w console.WireWord) {
	s.word.Store(w.Lo)
}
