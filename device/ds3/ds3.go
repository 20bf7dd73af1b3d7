// Package ds3 decodes Sony DualShock 3 and PS Classic controller USB
// input reports. Shares the DS4 driver's button-layout shape but the PSC
// hat switch uses the classic 0,2,4,6,8,10 encoding rather than the
// standard 0..7 compass (spec.md §4.A.2), so it normalizes through
// canonical.DecodeHatClassic instead of canonical.DecodeHat.
package ds3

import (
	"github.com/usbretro/usbretro/canonical"
	"github.com/usbretro/usbretro/device"
	"github.com/usbretro/usbretro/device/common"
	"github.com/usbretro/usbretro/device/registry"
)

const (
	DefaultVID = 0x054C
	DefaultPID = 0x0268 // DualShock 3

	// PSClassicPID is the PlayStation Classic's bundled controller,
	// which shares the DS3 report shape and hat encoding.
	PSClassicPID = 0x0CDA

	ReportIDOutput = 0x01

	minReportLen = 6
)

func init() {
	registry.Register(registry.DevTypeDS3, isDS3, func(o *device.CreateOptions) (device.Driver, error) {
		return New(), nil
	})
}

func isDS3(vid, pid uint16) bool {
	return vid == DefaultVID && (pid == DefaultPID || pid == PSClassicPID)
}

// Driver decodes DualShock3/PSC input reports.
type Driver struct {
	store *common.Store
	key   common.InstanceKey
}

// New returns a DS3/PSC driver.
func New() *Driver {
	return &Driver{store: common.NewStore()}
}

// Process decodes a DS3-shape report: byte 2 carries the classic hat
// nibble plus select/L3/R3/start in its high nibble, byte 3 the face
// buttons and shoulder bits.
func (d *Driver) Process(report []byte, ev *canonical.Event) (bool, error) {
	if len(report) < minReportLen {
		return false, nil
	}

	ev.Type = canonical.TypeGamepad
	ev.Transport = canonical.TransportUSB
	ev.Layout = canonical.LayoutDefault

	hatByte := report[2]
	up, right, down, left := canonical.DecodeHatClassic(hatByte & 0x0F)

	var buttons uint32
	if up {
		buttons |= canonical.ButtonUp
	}
	if down {
		buttons |= canonical.ButtonDown
	}
	if left {
		buttons |= canonical.ButtonLeft
	}
	if right {
		buttons |= canonical.ButtonRight
	}
	if hatByte&0x10 != 0 {
		buttons |= canonical.ButtonSelect
	}
	if hatByte&0x20 != 0 {
		buttons |= canonical.ButtonL3
	}
	if hatByte&0x40 != 0 {
		buttons |= canonical.ButtonR3
	}
	if hatByte&0x80 != 0 {
		buttons |= canonical.ButtonStart
	}

	face := report[3]
	if face&0x10 != 0 {
		buttons |= canonical.ButtonB4 // square
	}
	if face&0x20 != 0 {
		buttons |= canonical.ButtonB1 // cross
	}
	if face&0x40 != 0 {
		buttons |= canonical.ButtonB2 // circle
	}
	if face&0x80 != 0 {
		buttons |= canonical.ButtonB3 // triangle
	}
	if face&0x01 != 0 {
		buttons |= canonical.ButtonL1
	}
	if face&0x02 != 0 {
		buttons |= canonical.ButtonR1
	}
	if face&0x04 != 0 {
		buttons |= canonical.ButtonL2
	}
	if face&0x08 != 0 {
		buttons |= canonical.ButtonR2
	}

	ev.Buttons = canonical.ApplySOCD(buttons)
	ev.ButtonCount = 14

	if len(report) >= 20 {
		ev.Analog[canonical.AxisLeftX] = canonical.ClampAxis(report[6])
		ev.Analog[canonical.AxisLeftY] = canonical.ClampAxis(report[7])
		ev.Analog[canonical.AxisRightX] = canonical.ClampAxis(report[8])
		ev.Analog[canonical.AxisRightY] = canonical.ClampAxis(report[9])
	}

	changed := d.store.Changed(d.key, *ev)
	d.store.Commit(d.key, *ev)
	return changed, nil
}

// SetOutput discards out and sends nothing to the device: DS3 rumble is
// not driven by this driver. The DS3 has no LED-color control, only four
// numbered player LEDs.
func (d *Driver) SetOutput(out device.OutputReport) error {
	return nil
}

// BuildOutputReport encodes out into the 0x01-prefixed DS3 output
// report's rumble bytes.
func BuildOutputReport(out device.OutputReport) []byte {
	b := make([]byte, 7)
	b[0] = ReportIDOutput
	b[2] = out.RumbleHigh
	b[4] = out.RumbleLow
	return b
}
