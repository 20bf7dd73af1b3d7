package router

import "github.com/usbretro/usbretro/canonical"

// playerSlot tracks one occupied slot's owning device and accumulated
// state.
type playerSlot struct {
	occupied bool
	devAddr  uint8
	instance int8
	last     canonical.Event

	// globalX/globalY are running mouse-delta accumulators; console
	// stages that latch relative motion into an absolute wire field
	// (PC-Engine's mouse nybbles) read and clear these, not DeltaX/Y
	// directly, so a scan that misses a poll doesn't lose motion.
	globalX, globalY int32
}

// PlayerManager assigns and tracks player slots by (devAddr, instance),
// grounded on the teacher's find_player_index/add_player bookkeeping:
// slots are assigned on first real input, never on USB mount, since many
// devices emit a neutral report before the user touches a control.
type PlayerManager struct {
	slots [MaxPlayers]playerSlot
}

// NewPlayerManager returns a PlayerManager with every slot free.
func NewPlayerManager() *PlayerManager {
	return &PlayerManager{}
}

// FindPlayerIndex returns the slot index owned by (devAddr, instance), or
// -1 if none is assigned yet.
func (m *PlayerManager) FindPlayerIndex(devAddr uint8, instance int8) int {
	for i := range m.slots {
		s := &m.slots[i]
		if s.occupied && s.devAddr == devAddr && s.instance == instance {
			return i
		}
	}
	return -1
}

// AddPlayer returns the existing slot for (devAddr, instance) if one is
// already assigned, or allocates the smallest free slot and assigns it.
// Returns -1 if every slot is occupied.
func (m *PlayerManager) AddPlayer(devAddr uint8, instance int8) int {
	if i := m.FindPlayerIndex(devAddr, instance); i >= 0 {
		return i
	}
	for i := range m.slots {
		if !m.slots[i].occupied {
			m.slots[i] = playerSlot{occupied: true, devAddr: devAddr, instance: instance}
			return i
		}
	}
	return -1
}

// findRootFor returns the slot of the root instance (instance 0) owned
// by devAddr, used to resolve a MergeRoot submission to its target slot.
// Allocates the root slot if this is the very first event from devAddr
// to arrive via either half.
func (m *PlayerManager) findRootFor(devAddr uint8) int {
	if i := m.FindPlayerIndex(devAddr, 0); i >= 0 {
		return i
	}
	return m.AddPlayer(devAddr, 0)
}

// SetLast records ev as the last-known state for slot, ignoring requests
// for an unoccupied slot.
func (m *PlayerManager) SetLast(slot int, ev canonical.Event) {
	if slot < 0 || slot >= MaxPlayers || !m.slots[slot].occupied {
		return
	}
	m.slots[slot].last = ev
}

// Last returns the last-known event for slot and whether the slot is
// occupied.
func (m *PlayerManager) Last(slot int) (canonical.Event, bool) {
	if slot < 0 || slot >= MaxPlayers || !m.slots[slot].occupied {
		return canonical.Event{}, false
	}
	return m.slots[slot].last, true
}

// AccumulateMouse adds dx, dy into slot's running mouse accumulators,
// sign-extending to the wider int32 total so a console stage can latch
// and clear them independently of the per-poll DeltaX/DeltaY.
func (m *PlayerManager) AccumulateMouse(slot int, dx, dy int8) {
	if slot < 0 || slot >= MaxPlayers || !m.slots[slot].occupied {
		return
	}
	m.slots[slot].globalX += int32(dx)
	m.slots[slot].globalY += int32(dy)
}

// ConsumeMouse returns slot's accumulated mouse deltas and resets them to
// zero, implementing the "consumed by this scan" behavior spec.md §4.F
// describes for PC-Engine mouse mode.
func (m *PlayerManager) ConsumeMouse(slot int) (x, y int32) {
	if slot < 0 || slot >= MaxPlayers || !m.slots[slot].occupied {
		return 0, 0
	}
	s := &m.slots[slot]
	x, y = s.globalX, s.globalY
	s.globalX, s.globalY = 0, 0
	return x, y
}

// RemoveByAddress frees every slot owned by devAddr and returns the list
// of freed slot indices, called from a device's unmount path.
func (m *PlayerManager) RemoveByAddress(devAddr uint8) []int {
	var freed []int
	for i := range m.slots {
		if m.slots[i].occupied && m.slots[i].devAddr == devAddr {
			m.slots[i] = playerSlot{}
			freed = append(freed, i)
		}
	}
	return freed
}

// Count returns the number of currently occupied slots.
func (m *PlayerManager) Count() int {
	n := 0
	for i := range m.slots {
		if m.slots[i].occupied {
			n++
		}
	}
	return n
}
