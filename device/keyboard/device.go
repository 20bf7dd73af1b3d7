// Package keyboard decodes HID keyboard input reports (both the 8-byte
// boot protocol and the 34-byte N-key-rollover bitmap report this
// firmware's own virtual keyboard emits) into canonical controller
// events. Adapted from the teacher's device/keyboard package, read in
// reverse: that package built reports of this exact shape for a virtual
// keyboard being polled by a host; Process here parses one of the same
// shape arriving from a real device.
package keyboard

import (
	"github.com/usbretro/usbretro/canonical"
	"github.com/usbretro/usbretro/device"
	"github.com/usbretro/usbretro/device/common"
	"github.com/usbretro/usbretro/device/registry"
)

const (
	bootReportLen = 8
	nkroReportLen = 34
)

func init() {
	registry.Register(registry.DevTypeKeyboard, func(vid, pid uint16) bool { return false },
		func(o *device.CreateOptions) (device.Driver, error) { return New(), nil })
	registry.RegisterProtocolFallback(registry.DevTypeKeyboard, true)
}

// Driver decodes keyboard input reports.
type Driver struct {
	store *common.Store
	key   common.InstanceKey
}

// New returns a keyboard driver.
func New() *Driver {
	return &Driver{store: common.NewStore()}
}

// Process decodes a boot-protocol report (modifiers, reserved, 6 keycode
// slots) or the 34-byte N-key-rollover bitmap report, packing up to the
// first 4 pressed keycodes into ev.Keys -- canonical.Event only carries
// 4 simultaneous keys, which covers every console target this firmware
// drives.
func (d *Driver) Process(report []byte, ev *canonical.Event) (bool, error) {
	if len(report) < bootReportLen {
		return false, nil
	}

	ev.Type = canonical.TypeKeyboard
	ev.Transport = canonical.TransportUSB
	ev.Modifiers = report[0]
	ev.Keys = [4]uint8{}

	if len(report) >= nkroReportLen {
		n := 0
		for i := 0; i < 256 && n < len(ev.Keys); i++ {
			byteIdx := 2 + i/8
			bit := uint(i % 8)
			if report[byteIdx]&(1<<bit) != 0 {
				ev.Keys[n] = uint8(i)
				n++
			}
		}
	} else {
		n := 0
		for i := 2; i < bootReportLen && n < len(ev.Keys); i++ {
			if report[i] != 0 {
				ev.Keys[n] = report[i]
				n++
			}
		}
	}

	changed := d.store.Changed(d.key, *ev)
	d.store.Commit(d.key, *ev)
	return changed, nil
}

// SetOutput is a no-op: this driver has no feedback state of its own to
// shape, and no LED SET_REPORT (LEDNumLock etc) is sent to the keyboard.
func (d *Driver) SetOutput(out device.OutputReport) error {
	return nil
}
