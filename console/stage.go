// Package console defines the common contract every console output
// stage implements, standing in for the firmware's PIO-hosted core1 wire
// loop plus core0's best-effort composition task. Each subpackage
// (pcengine, gamecube, loopy, nuon, threedo, xboxone) implements Stage
// for one target console's wire protocol.
//
// Grounded on spec.md §4.F/§5: core1 "blocks waiting for the next
// console-scheduled event... reads the prepared wire word... pushes it
// into the PIO TX FIFO" becomes Run blocking on a clock channel and
// writing to a tx channel; core0 "reads the router's current outputs,
// composes them... writes it atomically" becomes Compose, called by the
// main loop on its own ticker.
package console

import (
	"context"

	"github.com/usbretro/usbretro/router"
)

// WireWord is the bit-packed payload a console expects on its wire for
// one poll/scan. Consoles with multi-word state (PC-Engine's word_0 +
// word_1) pack both into Lo/Hi; single-word consoles use only Lo.
type WireWord struct {
	Lo uint64
	Hi uint64
}

// ClockEdge is sent on the clock channel once per console-scheduled
// event (a CLK rising edge, a poll command byte, a row-select strobe --
// whatever that console's wire protocol uses to request the next word).
// State carries a stage-specific cycle position (e.g. PC-Engine's
// 3/2/1/0 presentation state) so Run doesn't need to re-derive it from
// wall-clock time.
type ClockEdge struct {
	State int
}

// Stage is the Go expression of one console's PIO+core1+core0 triad.
type Stage interface {
	// Compose reads the router's current outputs and returns the wire
	// word that should be presented on the next clock edge. Called from
	// the core0 analog of a time.Ticker loop; must not block.
	Compose(r *router.Router) WireWord

	// Run is the core1 analog: it blocks on clock, and for every edge
	// received composes (or reuses a core0-provided) wire word and
	// pushes it to tx, advancing its own state. Run returns when ctx is
	// canceled or clock is closed.
	Run(ctx context.Context, clock <-chan ClockEdge, tx chan<- WireWord)
}
