// Package wiresim drives a console.Stage's Compose/Run pair at a
// caller-controlled pace without a real clock or real USB traffic, so
// console stage tests can assert spec.md §8's testable properties
// (state-cycle sequencing, SOCD normalization, hat round-trip, nybble
// math) deterministically.
//
// Grounded on internal/cmd.Run's own driveClock/drainWire goroutines,
// generalized into a synchronous harness a test can step one edge at a
// time instead of a free-running ticker.
package wiresim

import (
	"context"
	"time"

	"github.com/usbretro/usbretro/console"
	"github.com/usbretro/usbretro/router"
)

// Harness runs one console.Stage's Run loop in a background goroutine and
// lets a test drive it edge by edge, inspecting every transmitted
// WireWord.
type Harness struct {
	stage  console.Stage
	router *router.Router
	clock  chan console.ClockEdge
	tx     chan console.WireWord
	cancel context.CancelFunc
	state  int
}

// New starts stage.Run against rt, returning a Harness ready to step.
func New(stage console.Stage, rt *router.Router) *Harness {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Harness{
		stage:  stage,
		router: rt,
		clock:  make(chan console.ClockEdge, 1),
		tx:     make(chan console.WireWord, 1),
		cancel: cancel,
	}
	go stage.Run(ctx, h.clock, h.tx)
	return h
}

// Step composes one wire word from the router's current state, sends a
// clock edge carrying the harness's running state counter, and returns
// whatever Run transmitted for that edge. It fails the caller's test via
// the returned ok=false if Run doesn't respond within timeout -- a stuck
// Run is a bug in the stage under test, not a harness fluke.
func (h *Harness) Step(timeout time.Duration) (console.WireWord, bool) {
	h.clock <- console.ClockEdge{State: h.state}
	h.state++
	select {
	case w := <-h.tx:
		return w, true
	case <-time.After(timeout):
		return console.WireWord{}, false
	}
}

// Compose calls the stage's Compose directly, bypassing Run entirely --
// useful for asserting core0's best-effort output independent of core1's
// wire cadence.
func (h *Harness) Compose() console.WireWord {
	return h.stage.Compose(h.router)
}

// Close stops the background Run goroutine.
func (h *Harness) Close() {
	h.cancel()
}

// Cycle steps n edges and returns every transmitted word in order,
// stopping early (with ok=false on the returned slice's validity) if any
// step times out.
func (h *Harness) Cycle(n int, timeout time.Duration) ([]console.WireWord, bool) {
	words := make([]console.WireWord, 0, n)
	for i := 0; i < n; i++ {
		w, ok := h.Step(timeout)
		if !ok {
			return words, false
		}
		words = append(words, w)
	}
	return words, true
}
