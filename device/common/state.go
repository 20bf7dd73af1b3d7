// Package common holds the per-instance scaffolding every device/*
// driver needs: a cache of the last decoded event keyed by (DevAddr,
// Instance) for epsilon-debounced change detection, and a throttled-send
// helper. Grounded on the teacher's fixed-size per-instance state arrays
// (the `ds4_devices[MAX_DEVICES]` pattern from original_source), reshaped
// here into a Go map guarded by a mutex since Go drivers don't need a
// static hardware-sized table.
package common

import (
	"sync"
	"time"

	"github.com/usbretro/usbretro/canonical"
)

// InstanceKey identifies one mounted device instance. GameCube adapter
// ports and other multi-port devices use Instance to distinguish sub-
// devices sharing one DevAddr.
type InstanceKey struct {
	DevAddr  uint8
	Instance int8
}

// AxisEpsilon is the largest per-axis delta still treated as noise; only
// a delta greater than it counts as a real change. Deltas up to it are
// treated as ADC jitter and suppressed so the
// router and console stages don't churn on them.
const AxisEpsilon = 2

// ThrottleInterval is the minimum spacing between two emitted events for
// the same instance, matching the 20ms throttle/debounce contract.
const ThrottleInterval = 20 * time.Millisecond

// Store is a (DevAddr, Instance)-keyed cache of the last decoded event and
// last-sent timestamp for every mounted device instance.
type Store struct {
	mu    sync.Mutex
	last  map[InstanceKey]canonical.Event
	sent  map[InstanceKey]time.Time
}

// NewStore returns an empty Store ready for use.
func NewStore() *Store {
	return &Store{
		last: make(map[InstanceKey]canonical.Event),
		sent: make(map[InstanceKey]time.Time),
	}
}

// Changed reports whether next differs meaningfully from the last event
// recorded for key: any button-mask difference, or any analog axis
// differing by more than AxisEpsilon. It does not update the stored
// state -- call Commit once the caller has decided to actually emit.
func (s *Store) Changed(key InstanceKey, next canonical.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.last[key]
	if !ok {
		return true
	}
	if prev.Buttons != next.Buttons {
		return true
	}
	for i := range prev.Analog {
		d := int(prev.Analog[i]) - int(next.Analog[i])
		if d < 0 {
			d = -d
		}
		if d > AxisEpsilon {
			return true
		}
	}
	return prev.DeltaX != next.DeltaX || prev.DeltaY != next.DeltaY || prev.DeltaWheel != next.DeltaWheel
}

// Commit stores ev as the last-known event for key.
func (s *Store) Commit(key InstanceKey, ev canonical.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last[key] = ev
}

// Forget drops all state associated with key, called when a device
// instance unmounts.
func (s *Store) Forget(key InstanceKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.last, key)
	delete(s.sent, key)
}

// AllowSend reports whether enough time has elapsed since the last send
// for key to permit another one right now, and if so records now as the
// new last-send time. Callers that decide not to send (because Changed
// returned false) should not call this.
func (s *Store) AllowSend(key InstanceKey, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	last, ok := s.sent[key]
	if ok && now.Sub(last) < ThrottleInterval {
		return false
	}
	s.sent[key] = now
	return true
}
