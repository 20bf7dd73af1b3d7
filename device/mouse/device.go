// Package mouse decodes boot-protocol and 5-button HID mouse input
// reports into canonical controller events. Adapted from the teacher's
// device/mouse package, which built reports of this exact 9-byte shape
// for a virtual mouse being polled by a host; Process here parses one of
// the same shape arriving from a real device, clamping signed deltas per
// spec.md §4.D.
package mouse

import (
	"github.com/usbretro/usbretro/canonical"
	"github.com/usbretro/usbretro/device"
	"github.com/usbretro/usbretro/device/common"
	"github.com/usbretro/usbretro/device/registry"
)

// Button bitfield positions within the report's first byte.
const (
	ButtonLeft    = 1 << 0
	ButtonRight   = 1 << 1
	ButtonMiddle  = 1 << 2
	ButtonBack    = 1 << 3
	ButtonForward = 1 << 4
)

const bootReportLen = 3
const fullReportLen = 9

func init() {
	registry.Register(registry.DevTypeMouse, func(vid, pid uint16) bool { return false },
		func(o *device.CreateOptions) (device.Driver, error) { return New(), nil })
	registry.RegisterProtocolFallback(registry.DevTypeMouse, false)
}

// Driver decodes mouse input reports.
type Driver struct {
	store *common.Store
	key   common.InstanceKey
}

// New returns a mouse driver.
func New() *Driver {
	return &Driver{store: common.NewStore()}
}

// Process decodes either the 3-byte boot-protocol report (buttons, dx,
// dy) or the full 9-byte report this firmware's own virtual mouse emits
// (adding wheel and pan), distinguishing by length.
func (d *Driver) Process(report []byte, ev *canonical.Event) (bool, error) {
	if len(report) < bootReportLen {
		return false, nil
	}

	ev.Type = canonical.TypeMouse
	ev.Transport = canonical.TransportUSB

	var buttons uint32
	b := report[0]
	if b&ButtonLeft != 0 {
		buttons |= canonical.ButtonB1
	}
	if b&ButtonRight != 0 {
		buttons |= canonical.ButtonB2
	}
	if b&ButtonMiddle != 0 {
		buttons |= canonical.ButtonB3
	}
	if b&ButtonBack != 0 {
		buttons |= canonical.ButtonL1
	}
	if b&ButtonForward != 0 {
		buttons |= canonical.ButtonR1
	}
	ev.Buttons = buttons
	ev.ButtonCount = 5

	ev.DeltaX = clampDelta(int16(int8(report[1])))
	ev.DeltaY = clampDelta(int16(int8(report[2])))

	if len(report) >= fullReportLen {
		dx := int16(report[1]) | int16(report[2])<<8
		dy := int16(report[3]) | int16(report[4])<<8
		wheel := int16(report[5]) | int16(report[6])<<8
		ev.DeltaX = clampDelta(dx)
		ev.DeltaY = clampDelta(dy)
		ev.DeltaWheel = clampDelta(wheel)
	}

	changed := d.store.Changed(d.key, *ev)
	d.store.Commit(d.key, *ev)
	return changed, nil
}

// clampDelta saturates a wider signed delta into the canonical int8
// range rather than wrapping, so a fast physical swipe reads as
// full-scale movement instead of rolling over.
func clampDelta(v int16) int8 {
	if v > 127 {
		return 127
	}
	if v < -128 {
		return -128
	}
	return int8(v)
}

// SetOutput is a no-op: mice have no output report this firmware drives.
func (d *Driver) SetOutput(out device.OutputReport) error {
	return nil
}
