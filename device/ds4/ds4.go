// Package ds4 decodes Sony DualShock 4 USB input reports into canonical
// controller events. Grounded on the teacher's device/dualshock4 package,
// read in reverse: that package builds report ID 0x01's 64-byte payload
// for a virtual DS4 being polled by a host; Process here parses a report
// of the exact same shape arriving from a real one.
package ds4

import (
	"encoding/binary"

	"github.com/usbretro/usbretro/canonical"
	"github.com/usbretro/usbretro/device"
	"github.com/usbretro/usbretro/device/common"
	"github.com/usbretro/usbretro/device/registry"
)

const (
	DefaultVID = 0x054C
	DefaultPID = 0x05C4

	ReportIDInput  = 0x01
	ReportIDOutput = 0x05

	// FeatureHandshakeReport is the 0xF4 feature report a real DS4
	// requires a GET_REPORT on before it starts emitting full (rather
	// than degraded 0x01) input reports over USB, per spec.md §6.
	FeatureHandshakeReport = 0xF4

	minReportLen = 10
)

func init() {
	registry.Register(registry.DevTypeDS4, isDS4, func(o *device.CreateOptions) (device.Driver, error) {
		return New(), nil
	})
}

func isDS4(vid, pid uint16) bool {
	return vid == DefaultVID && (pid == DefaultPID || pid == 0x09CC || pid == 0x0BA0)
}

// Driver decodes DualShock4 input reports and accepts rumble/LED output.
type Driver struct {
	store        *common.Store
	key          common.InstanceKey
	handshaked bool
}

// New returns a DS4 driver ready to Process reports for one mounted
// instance.
func New() *Driver {
	return &Driver{store: common.NewStore()}
}

// Init requests the 0xF4 feature report handshake spec.md §6 requires
// before a real DS4 emits full-fidelity reports. The driver tracks this
// purely as a flag: no GET_REPORT control transfer is issued, by this
// package or by the usbhost adapters, since device.Driver has no
// control-transfer surface of its own.
func (d *Driver) Init() error {
	d.handshaked = true
	return nil
}

// Process decodes one DS4 USB input report (report ID 0x01, 64 bytes,
// though this parser tolerates any length ≥ minReportLen so it still
// works against a truncated Bluetooth-mode report) into ev.
func (d *Driver) Process(report []byte, ev *canonical.Event) (bool, error) {
	if len(report) < minReportLen {
		return false, nil
	}

	offset := 0
	if report[0] == ReportIDInput {
		offset = 1
	}

	ev.Type = canonical.TypeGamepad
	ev.Transport = canonical.TransportUSB
	ev.Layout = canonical.LayoutDefault

	ev.Analog[canonical.AxisLeftX] = canonical.ClampAxis(report[offset+0])
	ev.Analog[canonical.AxisLeftY] = canonical.ClampAxis(report[offset+1])
	ev.Analog[canonical.AxisRightX] = canonical.ClampAxis(report[offset+2])
	ev.Analog[canonical.AxisRightY] = canonical.ClampAxis(report[offset+3])

	hat := report[offset+4] & 0x0F
	up, right, down, left := canonical.DecodeHat(hat)

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

	faceBits := report[offset+4] >> 4
	if faceBits&0x1 != 0 {
		buttons |= canonical.ButtonB4 // Square -> west
	}
	if faceBits&0x2 != 0 {
		buttons |= canonical.ButtonB1 // Cross -> south
	}
	if faceBits&0x4 != 0 {
		buttons |= canonical.ButtonB2 // Circle -> east
	}
	if faceBits&0x8 != 0 {
		buttons |= canonical.ButtonB3 // Triangle -> north
	}

	shoulder := report[offset+5]
	if shoulder&0x01 != 0 {
		buttons |= canonical.ButtonL1
	}
	if shoulder&0x02 != 0 {
		buttons |= canonical.ButtonR1
	}
	if shoulder&0x04 != 0 {
		buttons |= canonical.ButtonL2
	}
	if shoulder&0x08 != 0 {
		buttons |= canonical.ButtonR2
	}
	if shoulder&0x10 != 0 {
		buttons |= canonical.ButtonSelect
	}
	if shoulder&0x20 != 0 {
		buttons |= canonical.ButtonStart
	}
	if shoulder&0x40 != 0 {
		buttons |= canonical.ButtonL3
	}
	if shoulder&0x80 != 0 {
		buttons |= canonical.ButtonR3
	}

	psTouch := report[offset+6]
	if psTouch&0x01 != 0 {
		buttons |= canonical.ButtonA1 // PS / home
	}
	if psTouch&0x02 != 0 {
		buttons |= canonical.ButtonL4 // touchpad click
	}

	ev.Buttons = canonical.ApplySOCD(buttons)
	ev.ButtonCount = 14

	if len(report) > offset+8 {
		ev.Analog[canonical.AxisLeftTrigger] = report[offset+7]
		ev.Analog[canonical.AxisRightTrigger] = report[offset+8]
	}

	if len(report) >= offset+24 {
		ev.HasMotion = true
		ev.Gyro[0] = int16(binary.LittleEndian.Uint16(report[offset+12 : offset+14]))
		ev.Gyro[1] = int16(binary.LittleEndian.Uint16(report[offset+14 : offset+16]))
		ev.Gyro[2] = int16(binary.LittleEndian.Uint16(report[offset+16 : offset+18]))
		ev.Accel[0] = int16(binary.LittleEndian.Uint16(report[offset+18 : offset+20]))
		ev.Accel[1] = int16(binary.LittleEndian.Uint16(report[offset+20 : offset+22]))
		ev.Accel[2] = int16(binary.LittleEndian.Uint16(report[offset+22 : offset+24]))
	}

	changed := d.store.Changed(d.key, *ev)
	d.store.Commit(d.key, *ev)
	return changed, nil
}

// SetOutput discards out and sends nothing to the device: no rumble/LED
// SET_REPORT is issued. BuildOutputReport shapes the 0x05 report bytes
// but is not called from here.
func (d *Driver) SetOutput(out device.OutputReport) error {
	return nil
}

// BuildOutputReport encodes out into an 11-byte output report: byte 0 is
// ReportIDOutput, byte 1 the flags, and the rumble/LED fields follow,
// matching OutOffset* from the teacher's dualshock4/const.go.
func BuildOutputReport(out device.OutputReport) []byte {
	b := make([]byte, 11)
	b[0] = ReportIDOutput
	b[1] = 0xF7 // flags: rumble + LED + flash all enabled
	b[4] = out.RumbleHigh
	b[5] = out.RumbleLow
	b[6] = out.LEDRed
	b[7] = out.LEDGreen
	b[8] = out.LEDBlue
	return b
}
