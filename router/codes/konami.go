// Package codes implements the router's cheat-code service: a sliding
// window of discrete button edges matched against the Konami sequence,
// toggling a fun/test flag every device driver's output path can consult.
package codes

import (
	"sync/atomic"

	"github.com/usbretro/usbretro/canonical"
)

const windowSize = 10

// edgeMask restricts the watched buttons to d-pad plus B1/B2, per
// spec.md §4.E -- other buttons never enter the window.
const edgeMask = canonical.ButtonUp | canonical.ButtonDown | canonical.ButtonLeft |
	canonical.ButtonRight | canonical.ButtonB1 | canonical.ButtonB2

// Sequence is the classic Konami code expressed in canonical buttons:
// Up Up Down Down Left Right Left Right B2 B1 (B then A).
var Sequence = [windowSize]uint32{
	canonical.ButtonUp, canonical.ButtonUp,
	canonical.ButtonDown, canonical.ButtonDown,
	canonical.ButtonLeft, canonical.ButtonRight,
	canonical.ButtonLeft, canonical.ButtonRight,
	canonical.ButtonB2, canonical.ButtonB1,
}

// Detector watches one player's canonical buttons across ticks and
// toggles Fun() on a Konami-sequence match. Not safe to Feed from more
// than one goroutine concurrently; Fun is safe to read from any.
type Detector struct {
	prev   uint32
	window [windowSize]uint32
	filled int
	fun    atomic.Bool
}

// NewDetector returns a Detector with an empty window.
func NewDetector() *Detector {
	return &Detector{}
}

// Fun reports the current test/fun flag.
func (d *Detector) Fun() bool {
	return d.fun.Load()
}

// Feed consumes one console tick's canonical buttons, appending any
// newly-pressed watched button to the sliding window (one edge per call:
// if more than one watched button transitions high in the same tick, the
// lowest-bit one is recorded, matching a human pressing one direction or
// face button at a time). On a full-window Konami match it toggles Fun.
func (d *Detector) Feed(buttons uint32) {
	pressedNow := buttons &^ d.prev & edgeMask
	d.prev = buttons

	if pressedNow == 0 {
		return
	}

	// isolate the lowest set bit so a simultaneous multi-button edge
	// (SOCD-resolved combos, chorded presses) still advances the window
	// by exactly one symbol.
	edge := pressedNow & -pressedNow

	copy(d.window[:], d.window[1:])
	d.window[windowSize-1] = edge
	if d.filled < windowSize {
		d.filled++
	}

	if d.filled == windowSize && d.window == Sequence {
		d.fun.Store(!d.fun.Load())
		d.filled = 0
	}
}
