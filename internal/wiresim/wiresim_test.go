package wiresim

import (
	"testing"
	"time"

	"github.com/usbretro/usbretro/canonical"
	"github.com/usbretro/usbretro/console"
	"github.com/usbretro/usbretro/console/pcengine"
	"github.com/usbretro/usbretro/router"
)

// stepState is like Harness.Step but lets the caller pick the exact
// ClockEdge.State value, needed for stages like pcengine whose state
// machine is driven by the edge's state rather than a monotonic counter.
func stepState(h *Harness, state int, timeout time.Duration) (console.WireWord, bool) {
	h.clock <- console.ClockEdge{State: state}
	select {
	case w := <-h.tx:
		return w, true
	case <-time.After(timeout):
		return console.WireWord{}, false
	}
}

func TestPCEngineStateCycle(t *testing.T) {
	rt := router.New()
	rt.AddTarget(router.Target("pcengine"), router.ModeDirect)
	rt.Submit(1, 0, canonical.Event{Type: canonical.TypeGamepad, Buttons: canonical.ButtonB1})

	stage := pcengine.New()
	h := New(stage, rt)
	defer h.Close()

	seq := []int{3, 2, 1, 0, 3, 2}
	for _, s := range seq {
		if _, ok := stepState(h, s, time.Second); !ok {
			t.Fatalf("state %d: stage did not respond in time", s)
		}
	}
}

func TestHarnessComposeIndependentOfRun(t *testing.T) {
	rt := router.New()
	rt.AddTarget(router.Target("pcengine"), router.ModeDirect)
	rt.Submit(2, 0, canonical.Event{Type: canonical.TypeGamepad, Buttons: canonical.ButtonUp})

	stage := pcengine.New()
	h := New(stage, rt)
	defer h.Close()

	first := h.Compose()
	second := h.Compose()
	if first != second {
		t.Fatalf("Compose should be deterministic for unchanged router state: %+v vs %+v", first, second)
	}
}
