// Package device defines the driver contract every supported controller
// implements: decode an incoming USB input report into a canonical.Event,
// and optionally accept outbound rumble/LED state for devices that support
// it. Where the teacher's device packages model a USB *peripheral* being
// polled by a host, a Driver here sits on the other side of that
// conversation -- it is handed reports a real or virtual host already
// captured and produces the canonical event the router consumes.
package device

import (
	"github.com/usbretro/usbretro/canonical"
)

// CreateOptions identifies which concrete device attached: vendor/product
// ID and the USB interface protocol/subclass byte, for drivers (keyboard,
// mouse, generic HID) that distinguish behavior by protocol rather than by
// VID/PID alone. Pointer fields allow an absent ID to mean "match any."
type CreateOptions struct {
	IdVendor  *uint16
	IdProduct *uint16
	Protocol  uint8
	SubClass  uint8

	// Descriptor is the raw HID report descriptor fetched from the
	// device, when available. Only device/generichid uses it; drivers
	// with a fixed, known report layout ignore it.
	Descriptor []byte
}

// Driver decodes raw USB input reports from one mounted device instance
// into canonical controller events, and accepts canonical output state
// (rumble, LED) for devices capable of driving it back out.
type Driver interface {
	// Process decodes a single input report into ev, returning whether
	// anything in ev actually changed relative to the driver's last
	// decode (so a caller can skip emitting unchanged events upstream).
	Process(report []byte, ev *canonical.Event) (changed bool, err error)

	// SetOutput pushes rumble/LED/trigger-effect state the router wants
	// reflected on the physical device. Drivers without output hardware
	// implement this as a no-op.
	SetOutput(out OutputReport) error
}

// TaskRunner is implemented by drivers that need periodic work (Switch
// Pro's handshake stepping); internal/cmd calls Task once per clock tick.
// Mirrors the teacher's per-device Task() hook.
type TaskRunner interface {
	Task()
}

// Initializer is implemented by drivers that must run device-specific
// setup (a feature-report handshake, requesting a calibration report)
// before the first input report can be trusted.
type Initializer interface {
	Init() error
}

// Unmounter is implemented by drivers holding resources (goroutines,
// open control-transfer sessions) that must be released when the device
// is removed from its bus.
type Unmounter interface {
	Unmount()
}

// DescriptorChecker is implemented by drivers that accept or reject a
// device based on its HID report descriptor rather than VID/PID alone --
// device/generichid uses this to build and validate an hid.ExtractionPlan
// before claiming the device.
type DescriptorChecker interface {
	CheckDescriptor(desc []byte) bool
}

// OutputReport is the canonical outbound state a Driver.SetOutput call
// carries. Fields a device can't act on (a keyboard has no rumble motors)
// are simply ignored by that driver's SetOutput.
type OutputReport struct {
	RumbleLow  uint8
	RumbleHigh uint8
	LEDRed     uint8
	LEDGreen   uint8
	LEDBlue    uint8
}

// Factory builds a new Driver instance for one mounted device, given the
// identifying options captured at mount time.
type Factory func(o *CreateOptions) (Driver, error)
