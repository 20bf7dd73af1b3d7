// Package usbhost abstracts the USB host surface spec.md §6 describes:
// accepting any HID gamepad/mouse/keyboard plus vendor-specific classes,
// with mount/unmount callbacks per (dev_addr, instance) and a receive
// callback delivering raw report bytes. Two implementations exist:
// usbhost/realusb (github.com/google/gousb against real hardware) and
// usbhost/virtual (the teacher's own usbip wire protocol against an
// emulated device, for integration tests and CI).
package usbhost

import "context"

// Event is one report arriving from a mounted device instance.
type Event struct {
	DevAddr   uint8
	Instance  int8
	VID, PID  uint16
	Protocol  uint8 // HID boot protocol: 0=none, 1=keyboard, 2=mouse
	SubClass  uint8
	Report    []byte
	Descriptor []byte // present on mount only, nil on subsequent reports
}

// MountEvent marks a new device instance attaching.
type MountEvent struct {
	DevAddr    uint8
	Instance   int8
	VID, PID   uint16
	Protocol   uint8
	SubClass   uint8
	Descriptor []byte
}

// UnmountEvent marks a device address leaving the bus entirely.
type UnmountEvent struct {
	DevAddr uint8
}

// Adapter is the host-side USB transport a build links against. Real
// builds use realusb.Adapter; test/CI builds use virtual.Adapter talking
// to an emulated device over the usbip wire protocol.
type Adapter interface {
	// Run drives the adapter's event loop until ctx is canceled,
	// delivering mounts, reports, and unmounts on the returned channels.
	Run(ctx context.Context) (mounts <-chan MountEvent, reports <-chan Event, unmounts <-chan UnmountEvent, err error)

	// SetOutput issues an output or feature report (rumble/LED/PS3
	// handshake) to the given device instance.
	SetOutput(devAddr uint8, instance int8, report []byte, isFeature bool) error

	// Close releases the adapter's underlying transport.
	Close() error
}
