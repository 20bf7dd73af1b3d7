// Package registry is the sole public entry point for extending device
// support: a dense vector of drivers indexed by DevType, populated once at
// program start by every device/* package's init() blank-importing into
// cmd/usbretro (teacher pattern: internal/registry/devices.go). Adding a
// controller is one Driver implementation and one call to Register.
package registry

import (
	"sync"

	"github.com/usbretro/usbretro/device"
)

// DevType indexes the dense driver vector. Order matches spec.md §4.B's
// enumeration; DevTypeCount sizes the backing array.
type DevType int

const (
	DevTypeDS3 DevType = iota
	DevTypeDS4
	DevTypeSwitchPro
	DevTypeGeneric
	DevTypeKeyboard
	DevTypeMouse
	DevTypeGCAdapter
	DevTypeSega6Button
	DevTypeCount
)

// Matcher identifies whether a given VID/PID pair is this driver's
// device. Registered alongside the driver Factory so Dispatch's first
// lookup step never has to instantiate a driver just to ask.
type Matcher func(vid, pid uint16) bool

type entry struct {
	devType  DevType
	is       Matcher
	factory  device.Factory
	checker  func(desc []byte) (*device.CreateOptions, bool)
}

var (
	mu    sync.Mutex
	slots [DevTypeCount]*entry

	// keyboardSlot and mouseSlot back the protocol-fallback step (§4.B
	// step 3): HID boot-protocol keyboards/mice don't carry a fixed
	// VID/PID table, so they're matched by interface protocol instead.
	keyboardSlot DevType = -1
	mouseSlot    DevType = -1
	genericSlot  DevType = -1
)

// Register installs a driver factory into the dense vector at devType,
// guarded by a VID/PID matcher. Called from each device/* package's
// init().
func Register(devType DevType, is Matcher, factory device.Factory) {
	mu.Lock()
	defer mu.Unlock()
	slots[devType] = &entry{devType: devType, is: is, factory: factory}
}

// RegisterProtocolFallback marks devType as the driver to use when no
// VID/PID matcher wins and the mounted interface advertises the given
// HID boot-protocol class (keyboard or mouse), per §4.B step 3.
func RegisterProtocolFallback(devType DevType, isKeyboard bool) {
	mu.Lock()
	defer mu.Unlock()
	if isKeyboard {
		keyboardSlot = devType
	} else {
		mouseSlot = devType
	}
}

// RegisterGenericHID marks devType as the descriptor-based fallback of
// last resort (§4.B step 4): Dispatch hands it the raw descriptor and
// commits only if checker reports at least one recognized button.
func RegisterGenericHID(devType DevType, checker func(desc []byte) (*device.CreateOptions, bool)) {
	mu.Lock()
	defer mu.Unlock()
	genericSlot = devType
	if slots[devType] != nil {
		slots[devType].checker = checker
	}
}

const (
	hidProtocolNone     = 0
	hidProtocolKeyboard = 1
	hidProtocolMouse    = 2
)

// Dispatch implements spec.md §4.B's five-step lookup: a VID/PID match
// wins outright; failing that, HID boot-protocol class selects keyboard
// or mouse; failing that, the generic-HID driver's descriptor check
// either commits the device as DINPUT or rejects it as unknown.
func Dispatch(vid, pid uint16, hidProtocol uint8, descriptor []byte) (device.Driver, bool) {
	mu.Lock()
	defer mu.Unlock()

	for _, e := range slots {
		if e == nil || e.is == nil {
			continue
		}
		if e.is(vid, pid) {
			return instantiate(e, vid, pid, hidProtocol, descriptor)
		}
	}

	switch hidProtocol {
	case hidProtocolKeyboard:
		if keyboardSlot >= 0 && slots[keyboardSlot] != nil {
			return instantiate(slots[keyboardSlot], vid, pid, hidProtocol, descriptor)
		}
	case hidProtocolMouse:
		if mouseSlot >= 0 && slots[mouseSlot] != nil {
			return instantiate(slots[mouseSlot], vid, pid, hidProtocol, descriptor)
		}
	}

	if genericSlot >= 0 && slots[genericSlot] != nil && slots[genericSlot].checker != nil {
		opts, ok := slots[genericSlot].checker(descriptor)
		if !ok {
			return nil, false
		}
		drv, err := slots[genericSlot].factory(opts)
		if err != nil {
			return nil, false
		}
		if init, ok := drv.(device.Initializer); ok {
			if err := init.Init(); err != nil {
				return nil, false
			}
		}
		return drv, true
	}

	return nil, false
}

func instantiate(e *entry, vid, pid uint16, hidProtocol uint8, descriptor []byte) (device.Driver, bool) {
	opts := &device.CreateOptions{
		IdVendor:   &vid,
		IdProduct:  &pid,
		Protocol:   hidProtocol,
		Descriptor: descriptor,
	}
	drv, err := e.factory(opts)
	if err != nil || drv == nil {
		return nil, false
	}
	if init, ok := drv.(device.Initializer); ok {
		if err := init.Init(); err != nil {
			return nil, false
		}
	}
	return drv, true
}
