// Package gcadapter decodes the Nintendo/Mayflash GameCube USB adapter
// (WUP-028): a single USB device multiplexing 4 controller ports into one
// 37-byte report. ProcessAll decodes up to 4 canonical events, one per
// connected port, each tagged with a synthetic Instance = port index so
// the four ports can be four independent players sharing one DevAddr
// (spec.md §4.A). Process, the device.Driver entry point, returns port 0
// only.
package gcadapter

import (
	"github.com/usbretro/usbretro/canonical"
	"github.com/usbretro/usbretro/device"
	"github.com/usbretro/usbretro/device/common"
	"github.com/usbretro/usbretro/device/registry"
)

const (
	DefaultVID = 0x057E
	DefaultPID = 0x0337

	reportLen    = 37
	portStride   = 9
	portsOffset  = 1
	numPorts     = 4
)

func init() {
	registry.Register(registry.DevTypeGCAdapter, isAdapter, func(o *device.CreateOptions) (device.Driver, error) {
		return New(), nil
	})
}

func isAdapter(vid, pid uint16) bool {
	return vid == DefaultVID && pid == DefaultPID
}

// portState bits: the adapter reports per-port connection type in the
// high nibble of each port's first status byte (0=none, 1=wired,
// 2=wireless).
const portConnectedMask = 0x30

// Driver decodes all 4 GameCube ports from one adapter report.
type Driver struct {
	store *common.Store
}

// New returns a GameCube adapter driver.
func New() *Driver {
	return &Driver{store: common.NewStore()}
}

// PortEvent pairs a decoded canonical.Event with the port index (0..3)
// it came from, since one Process call can produce up to 4 of them and
// device.Driver.Process only has room for one *canonical.Event return.
type PortEvent struct {
	Instance int8
	Event    canonical.Event
	Changed  bool
}

// Process decodes port 0 into ev and returns whether it changed; ports
// 1-3 are decoded but not returned. ProcessAll returns every connected
// port; the report loop in internal/cmd calls Process only, so ports 1-3
// do not reach the router.
func (d *Driver) Process(report []byte, ev *canonical.Event) (bool, error) {
	events := d.ProcessAll(report)
	for _, pe := range events {
		if pe.Instance == 0 {
			*ev = pe.Event
			return pe.Changed, nil
		}
	}
	return false, nil
}

// ProcessAll decodes every connected port in report into its own
// canonical.Event, keyed by port index as Instance.
func (d *Driver) ProcessAll(report []byte) []PortEvent {
	if len(report) < reportLen {
		return nil
	}

	var out []PortEvent
	for port := 0; port < numPorts; port++ {
		base := portsOffset + port*portStride
		status := report[base]
		if status&portConnectedMask == 0 {
			d.store.Forget(common.InstanceKey{Instance: int8(port)})
			continue
		}

		var ev canonical.Event
		ev.Type = canonical.TypeGamepad
		ev.Transport = canonical.TransportUSB
		ev.Instance = int8(port)

		b1, b2 := report[base+1], report[base+2]
		var buttons uint32
		if b1&0x01 != 0 {
			buttons |= canonical.ButtonStart
		}
		if b1&0x02 != 0 {
			buttons |= canonical.ButtonL1 // Z shoulder -> mapped as L1
		}
		if b1&0x04 != 0 {
			buttons |= canonical.ButtonR2 // digital R (analog trigger button)
		}
		if b1&0x08 != 0 {
			buttons |= canonical.ButtonL2 // digital L
		}
		if b1&0x10 != 0 {
			buttons |= canonical.ButtonUp
		}
		if b1&0x20 != 0 {
			buttons |= canonical.ButtonDown
		}
		if b1&0x40 != 0 {
			buttons |= canonical.ButtonRight
		}
		if b1&0x80 != 0 {
			buttons |= canonical.ButtonLeft
		}
		if b2&0x01 != 0 {
			buttons |= canonical.ButtonB1 // A
		}
		if b2&0x02 != 0 {
			buttons |= canonical.ButtonB2 // B
		}
		if b2&0x04 != 0 {
			buttons |= canonical.ButtonB3 // X
		}
		if b2&0x08 != 0 {
			buttons |= canonical.ButtonB4 // Y
		}
		ev.Buttons = canonical.ApplySOCD(buttons)
		ev.ButtonCount = 8

		ev.Analog[canonical.AxisLeftX] = canonical.ClampAxis(report[base+3])
		ev.Analog[canonical.AxisLeftY] = canonical.ClampAxis(report[base+4])
		ev.Analog[canonical.AxisRightX] = canonical.ClampAxis(report[base+5])
		ev.Analog[canonical.AxisRightY] = canonical.ClampAxis(report[base+6])
		// GameCube's L/R are analog triggers even when not pressed past
		// their digital click point; the adapter reports the analog
		// value independent of the digital bits above (trigger dualism,
		// spec.md §4.F).
		ev.Analog[canonical.AxisLeftTrigger] = report[base+7]
		ev.Analog[canonical.AxisRightTrigger] = report[base+8]

		key := common.InstanceKey{Instance: int8(port)}
		changed := d.store.Changed(key, ev)
		d.store.Commit(key, ev)
		out = append(out, PortEvent{Instance: int8(port), Event: ev, Changed: changed})
	}
	return out
}

// SetOutput is a no-op: the WUP-028 has no rumble/LED control surface
// over USB beyond per-port rumble, which the router does not yet route
// to a specific port through this single-driver interface.
func (d *Driver) SetOutput(out device.OutputReport) error {
	return nil
}
