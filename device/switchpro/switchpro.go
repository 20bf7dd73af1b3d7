// Package switchpro decodes Nintendo Switch Pro Controller and Switch 2
// Pro Controller USB input reports, and drives the handshake sequence a
// real Pro Controller requires before it starts emitting full (rather
// than simplified HID) reports. Report layout (ID 0x30/0x09, button
// bytes 3/4/5, 12-bit stick pairs at byte offsets 6 and 9) is grounded on
// dalmatheo-procon2-driver/hidinput.go's parseReport/getStickValues.
package switchpro

import (
	"github.com/usbretro/usbretro/canonical"
	"github.com/usbretro/usbretro/device"
	"github.com/usbretro/usbretro/device/common"
	"github.com/usbretro/usbretro/device/registry"
)

const (
	DefaultVID = 0x057E
	ProControllerPID = 0x2009
	Switch2ProPID    = 0x2069

	ReportIDFull = 0x30
	ReportIDSub  = 0x09 // subcommand-ack style report, same field layout

	minReportLen = 12
)

// HandshakeStep is the mount-time state machine spec.md §4.A requires
// before a real Pro Controller emits ReportIDFull reports: it boots in a
// minimal report mode and must be walked through enabling USB HID
// comms, setting the home LED, and requesting full report mode.
type HandshakeStep uint8

const (
	StepIdle HandshakeStep = iota
	StepHandshakeSent
	StepHandshakeAcked
	StepUSBEnabled
	StepHomeLEDSet
	StepFullReportEnabled
	StepReady
)

func init() {
	registry.Register(registry.DevTypeSwitchPro, isSwitchPro, func(o *device.CreateOptions) (device.Driver, error) {
		return New(), nil
	})
}

func isSwitchPro(vid, pid uint16) bool {
	return vid == DefaultVID && (pid == ProControllerPID || pid == Switch2ProPID)
}

// Driver decodes Switch Pro reports and tracks the handshake state
// machine that must reach StepReady before Process trusts incoming data.
type Driver struct {
	store *common.Store
	key   common.InstanceKey
	step  HandshakeStep
}

// New returns a Switch Pro driver starting at StepIdle.
func New() *Driver {
	return &Driver{store: common.NewStore()}
}

// Init begins the handshake. This package only tracks where in the
// sequence the device currently is; no subcommand writes (0x02
// handshake, 0x03 baud rate, 0x30 player lights, 0x03 full-report mode)
// are sent to the device, by this package or by the usbhost adapters.
func (d *Driver) Init() error {
	d.step = StepHandshakeSent
	return nil
}

// Step advances the handshake by one stage. Its only caller is Task, once
// per tick; it does not wait for or check any acknowledgement from the
// device. It is idempotent past StepReady.
func (d *Driver) Step() HandshakeStep {
	if d.step < StepReady {
		d.step++
	}
	return d.step
}

// Ready reports whether the handshake has completed and Process should
// be trusted to decode full reports.
func (d *Driver) Ready() bool {
	return d.step == StepReady
}

// Process decodes a ReportIDFull/ReportIDSub-shaped report. Reports
// arriving before the handshake reaches StepReady are accepted but
// treated as unreliable (changed=false) since a Pro Controller can emit
// garbage stick data mid-handshake.
func (d *Driver) Process(report []byte, ev *canonical.Event) (bool, error) {
	if len(report) < minReportLen {
		return false, nil
	}
	reportID := report[0]
	if reportID != ReportIDFull && reportID != ReportIDSub {
		return false, nil
	}

	ev.Type = canonical.TypeGamepad
	ev.Transport = canonical.TransportUSB
	ev.Layout = canonical.LayoutDefault

	var buttons uint32
	b3 := report[3]
	if b3&0x01 != 0 {
		buttons |= canonical.ButtonB1 // B
	}
	if b3&0x02 != 0 {
		buttons |= canonical.ButtonB2 // A
	}
	if b3&0x04 != 0 {
		buttons |= canonical.ButtonB3 // Y
	}
	if b3&0x08 != 0 {
		buttons |= canonical.ButtonB4 // X
	}
	if b3&0x10 != 0 {
		buttons |= canonical.ButtonR1
	}
	if b3&0x20 != 0 {
		buttons |= canonical.ButtonR2 // ZR, digital
	}
	if b3&0x40 != 0 {
		buttons |= canonical.ButtonStart // Plus
	}
	if b3&0x80 != 0 {
		buttons |= canonical.ButtonR3
	}

	b4 := report[4]
	if b4&0x01 != 0 {
		buttons |= canonical.ButtonDown
	}
	if b4&0x02 != 0 {
		buttons |= canonical.ButtonRight
	}
	if b4&0x04 != 0 {
		buttons |= canonical.ButtonLeft
	}
	if b4&0x08 != 0 {
		buttons |= canonical.ButtonUp
	}
	if b4&0x10 != 0 {
		buttons |= canonical.ButtonL1
	}
	if b4&0x20 != 0 {
		buttons |= canonical.ButtonL2 // ZL, digital
	}
	if b4&0x40 != 0 {
		buttons |= canonical.ButtonSelect // Minus
	}
	if b4&0x80 != 0 {
		buttons |= canonical.ButtonL3
	}

	b5 := report[5]
	if b5&0x01 != 0 {
		buttons |= canonical.ButtonA1 // home
	}
	if b5&0x02 != 0 {
		buttons |= canonical.ButtonA2 // capture
	}

	ev.Buttons = canonical.ApplySOCD(buttons)
	ev.ButtonCount = 14

	lx, ly := decode12BitPair(report, 6)
	rx, ry := decode12BitPair(report, 9)
	ev.Analog[canonical.AxisLeftX] = canonical.ClampAxis(scale12(lx))
	ev.Analog[canonical.AxisLeftY] = canonical.ClampAxis(scale12(ly))
	ev.Analog[canonical.AxisRightX] = canonical.ClampAxis(scale12(rx))
	ev.Analog[canonical.AxisRightY] = canonical.ClampAxis(scale12(ry))

	// ZL/ZR are also exposed as full-scale analog triggers, per spec.md
	// §4.F's GameCube trigger-dualism rule: a console profile may prefer
	// the digital edge or the analog value depending on target.
	if b3&0x20 != 0 {
		ev.Analog[canonical.AxisRightTrigger] = 255
	}
	if b4&0x20 != 0 {
		ev.Analog[canonical.AxisLeftTrigger] = 255
	}

	changed := d.store.Changed(d.key, *ev) && d.Ready()
	d.store.Commit(d.key, *ev)
	return changed, nil
}

// decode12BitPair reads a 12-bit X/12-bit Y pair packed into 3 bytes
// starting at offset, matching getStickValues' bit layout: X is the
// low 12 bits, Y the high 12 bits across the 3-byte span.
func decode12BitPair(data []byte, offset int) (x, y int) {
	if len(data) < offset+3 {
		return 0, 0
	}
	b0, b1, b2 := data[offset], data[offset+1], data[offset+2]
	x = int(b0) | (int(b1&0x0F) << 8)
	y = (int(b1&0xF0) >> 4) | (int(b2) << 4)
	return x, y
}

// scale12 maps a raw 12-bit stick value (range 0..4095, center ~2048)
// onto the canonical analog byte range via the same two-segment midpoint
// rule the generic HID extractor uses.
func scale12(v int) uint8 {
	if v < 0 {
		v = 0
	}
	if v > 4095 {
		v = 4095
	}
	const mid = 2048
	switch {
	case v == mid:
		return 128
	case v < mid:
		return uint8(1 + (v*127)/mid)
	default:
		return uint8(128 + ((v-mid)*127)/(4095-mid))
	}
}

// SetOutput is a no-op: it discards out, and no rumble/LED subcommand is
// sent to the Pro Controller.
func (d *Driver) SetOutput(out device.OutputReport) error {
	return nil
}

// Task advances the handshake once per core0 tick, satisfying
// device.TaskRunner. A real Pro Controller only starts trusting Process
// output once Step reaches StepReady; without a periodic caller the
// handshake never leaves StepIdle/StepHandshakeSent.
func (d *Driver) Task() {
	d.Step()
}
