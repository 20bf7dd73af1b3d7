// Package router fans canonical controller events from device drivers
// out to console output stages. Each output target (a console build, a
// UART bridge) owns its own cell array and its own cadence; a single
// Submit call can write into more than one target's cells depending on
// the routing table in force.
//
// Grounded on the teacher's internal/server/bus player-slot bookkeeping
// (smallest-free-slot allocation on first report, not on mount) and
// generalized from its fixed single-target array into a per-target map
// since this firmware may drive a native console build and a UART
// bridge target from the same binary.
package router

import (
	"sync"
	"sync/atomic"

	"github.com/usbretro/usbretro/canonical"
)

// MaxPlayers bounds every target's cell array. Individual console builds
// use fewer slots (PC-Engine multitaps top out at 5); the array is sized
// for the widest target in the corpus.
const MaxPlayers = 9

// cacheLinePad is sized so two adjacent Cells never share a cache line;
// the atomic pointer itself is 8 bytes on every platform this firmware
// targets.
const cacheLinePad = 64 - 8

// Cell holds the most recently submitted event for one (target, player)
// pair. The pointer is published with a single atomic store so a reader
// on another goroutine either sees the old event or the new one in full,
// never a torn mix of the two.
type Cell struct {
	ev   atomic.Pointer[canonical.Event]
	_    [cacheLinePad]byte
}

// Get returns the latest event for this cell, or nil if Submit has never
// targeted it.
func (c *Cell) Get() *canonical.Event {
	return c.ev.Load()
}

func (c *Cell) set(ev *canonical.Event) {
	c.ev.Store(ev)
}

// Target identifies one output destination (a console build, a bridge
// link) by name; each gets its own cell array and its own routing mode.
type Target string

// Mode selects one of three routing primitives for a target; the fourth,
// N:1 merge, is applied in Submit through the canonical.MergeRoot
// instance regardless of mode.
type Mode uint8

const (
	// ModeDirect is simple 1:1: input slot N feeds output slot N.
	ModeDirect Mode = iota
	// ModeBroadcast is 1:N: the single player occupying slot 0 is
	// visible at every output slot of this target.
	ModeBroadcast
	// ModeTable is configurable N:M: Router.SetMapping assigns an
	// explicit input-slot -> output-slot table for this target.
	ModeTable
)

// targetState is the per-target cell array plus its routing mode and,
// for ModeTable, the input->output slot mapping.
type targetState struct {
	cells   [MaxPlayers]Cell
	mode    Mode
	mapping map[int]int
}

// Router owns the player slot table and every output target's cells. The
// zero value is not usable; construct with New.
type Router struct {
	mu      sync.Mutex
	players *PlayerManager
	targets map[Target]*targetState

	// mergeRoots tracks, per player slot, the accumulated OR of every
	// event submitted this scan under the MergeRoot convention (e.g. a
	// Joy-Con charging grip's two halves). Reset to the root instance's
	// own event each time it submits a fresh, non-merge event, so later
	// merge submissions are OR-ed onto it.
	mergeRoots map[int]canonical.Event
}

// New returns a Router with no targets registered yet.
func New() *Router {
	return &Router{
		players:    NewPlayerManager(),
		targets:    make(map[Target]*targetState),
		mergeRoots: make(map[int]canonical.Event),
	}
}

// AddTarget registers an output target with the given routing mode. Must
// be called before any Submit that should reach it.
func (r *Router) AddTarget(t Target, mode Mode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targets[t] = &targetState{mode: mode, mapping: make(map[int]int)}
}

// SetMapping installs an explicit input-slot -> output-slot entry for a
// ModeTable target. Slots outside the mapping receive nothing.
func (r *Router) SetMapping(t Target, inputSlot, outputSlot int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ts, ok := r.targets[t]
	if !ok {
		return
	}
	ts.mapping[inputSlot] = outputSlot
}

// Submit is the router's ingress. It resolves (devAddr, instance) to a
// player slot -- allocating one on first input if necessary -- applies
// the merge-root convention, and publishes the resulting event into
// every registered target's cell(s) per that target's routing mode.
func (r *Router) Submit(devAddr uint8, instance int8, ev canonical.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if instance == canonical.MergeRoot {
		rootSlot := r.players.findRootFor(devAddr)
		if rootSlot < 0 {
			return
		}
		merged := r.mergeRoots[rootSlot]
		merged.Buttons |= ev.Buttons
		for i := range ev.Analog {
			if ev.Analog[i] != 0 {
				merged.Analog[i] = ev.Analog[i]
			}
		}
		r.mergeRoots[rootSlot] = merged
		r.publish(rootSlot, merged)
		return
	}

	slot := r.players.AddPlayer(devAddr, instance)
	if slot < 0 {
		return
	}
	r.mergeRoots[slot] = ev
	if ev.Type == canonical.TypeMouse {
		r.players.AccumulateMouse(slot, ev.DeltaX, ev.DeltaY)
	}
	r.players.SetLast(slot, ev)
	r.publish(slot, ev)
}

// publish writes ev into every target's cell(s) that slot maps to under
// that target's current mode.
func (r *Router) publish(slot int, ev canonical.Event) {
	stored := ev
	for _, ts := range r.targets {
		switch ts.mode {
		case ModeBroadcast:
			if slot != 0 {
				continue
			}
			for i := range ts.cells {
				ts.cells[i].set(&stored)
			}
		case ModeTable:
			out, ok := ts.mapping[slot]
			if !ok || out < 0 || out >= MaxPlayers {
				continue
			}
			ts.cells[out].set(&stored)
		default: // ModeDirect
			if slot < 0 || slot >= MaxPlayers {
				continue
			}
			ts.cells[slot].set(&stored)
		}
	}
}

// Output returns the latest event published for (target, player), or nil
// if nothing has reached that cell yet.
func (r *Router) Output(t Target, player int) *canonical.Event {
	r.mu.Lock()
	ts, ok := r.targets[t]
	r.mu.Unlock()
	if !ok || player < 0 || player >= MaxPlayers {
		return nil
	}
	return ts.cells[player].Get()
}

// RemovePlayersByAddress releases every slot owned by devAddr, called
// from a device's unmount callback.
func (r *Router) RemovePlayersByAddress(devAddr uint8) {
	r.mu.Lock()
	defer r.mu.Unlock()
	freed := r.players.RemoveByAddress(devAddr)
	for _, slot := range freed {
		delete(r.mergeRoots, slot)
	}
}

// Players exposes the underlying player manager for callers that need
// mouse accumulator access (console stages consuming global_x/global_y).
func (r *Router) Players() *PlayerManager {
	return r.players
}
