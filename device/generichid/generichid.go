// Package generichid is the registry's fallback of last resort (spec.md
// §4.B step 4): any HID gamepad the VID/PID table and keyboard/mouse
// protocol checks don't recognize gets its report descriptor walked and,
// if it advertises at least one button, is accepted as a DINPUT device
// decoded purely from its ExtractionPlan.
package generichid

import (
	"github.com/usbretro/usbretro/canonical"
	"github.com/usbretro/usbretro/device"
	"github.com/usbretro/usbretro/device/common"
	"github.com/usbretro/usbretro/device/registry"
	"github.com/usbretro/usbretro/hid"
)

func init() {
	registry.Register(registry.DevTypeGeneric, func(vid, pid uint16) bool { return false },
		func(o *device.CreateOptions) (device.Driver, error) {
			return newFromOptions(o)
		})
	registry.RegisterGenericHID(registry.DevTypeGeneric, checkDescriptor)
}

// checkDescriptor builds an extraction plan from desc and commits the
// device only if it advertises a button usage, per §4.B step 4.
func checkDescriptor(desc []byte) (*device.CreateOptions, bool) {
	items := hid.Walk(desc)
	if !hasButtonUsage(items) {
		return nil, false
	}
	return &device.CreateOptions{Descriptor: desc}, true
}

func hasButtonUsage(items []hid.Item) bool {
	for _, it := range items {
		if it.IsInput && it.UsagePage == hid.UsagePageButton {
			return true
		}
	}
	return false
}

func newFromOptions(o *device.CreateOptions) (device.Driver, error) {
	items := hid.Walk(o.Descriptor)
	plan := hid.BuildExtractionPlan(items)
	buttonLoc := findButtonField(items)
	return &Driver{plan: plan, buttons: buttonLoc, store: common.NewStore()}, nil
}

// buttonField locates the contiguous run of button bits in the report,
// found by walking the same items a second time: generic pads vary in
// button count, so rather than a Location per button this driver treats
// the whole run as one bitfield starting at its first bit's offset.
type buttonField struct {
	byteIndex int
	bitOffset int
	count     int
}

func findButtonField(items []hid.Item) buttonField {
	bitOffset := 0
	for _, it := range items {
		if !it.IsInput {
			continue
		}
		fieldBits := int(it.ReportSize)
		count := int(it.ReportCount)
		if count == 0 {
			count = 1
		}
		if it.UsagePage == hid.UsagePageButton {
			return buttonField{byteIndex: bitOffset / 8, bitOffset: bitOffset % 8, count: count}
		}
		bitOffset += fieldBits * count
	}
	return buttonField{}
}

// Driver decodes a generic HID gamepad's reports purely from its compiled
// ExtractionPlan; it has no device-specific knowledge beyond what the
// descriptor itself advertised at mount time.
type Driver struct {
	plan    *hid.ExtractionPlan
	buttons buttonField
	store   *common.Store
	key     common.InstanceKey
}

// Process applies every Location in the plan to report, scaling each
// recognized axis and reading the button run as a flat bitfield mapped
// positionally onto the canonical button bits in descriptor order.
func (d *Driver) Process(report []byte, ev *canonical.Event) (bool, error) {
	ev.Type = canonical.TypeGamepad
	ev.Transport = canonical.TransportUSB
	ev.Layout = canonical.LayoutDefault

	for _, loc := range d.plan.Locations {
		raw := loc.Extract(report)
		scaled := hid.ScaleAnalog(raw, loc.LogicalMax)
		switch loc.Usage {
		case hid.UsageX:
			ev.Analog[canonical.AxisLeftX] = scaled
		case hid.UsageY:
			ev.Analog[canonical.AxisLeftY] = scaled
		case hid.UsageZ:
			ev.Analog[canonical.AxisRightX] = scaled
		case hid.UsageRz:
			ev.Analog[canonical.AxisRightY] = scaled
		case hid.UsageRx:
			ev.Analog[canonical.AxisLeftTrigger] = scaled
		case hid.UsageRy:
			ev.Analog[canonical.AxisRightTrigger] = scaled
		case hid.UsageHatSwitch:
			up, right, down, left := canonical.DecodeHat(uint8(raw))
			if up {
				ev.Buttons |= canonical.ButtonUp
			}
			if right {
				ev.Buttons |= canonical.ButtonRight
			}
			if down {
				ev.Buttons |= canonical.ButtonDown
			}
			if left {
				ev.Buttons |= canonical.ButtonLeft
			}
		}
	}

	if d.buttons.count > 0 && d.buttons.byteIndex < len(report) {
		var mask uint32
		for i := 0; i < d.buttons.count && i < 20; i++ {
			bit := d.buttons.bitOffset + i
			byteIdx := d.buttons.byteIndex + bit/8
			if byteIdx >= len(report) {
				break
			}
			if report[byteIdx]&(1<<uint(bit%8)) != 0 {
				mask |= canonicalButtonAt(i)
			}
		}
		ev.Buttons |= mask
	}

	ev.Buttons = canonical.ApplySOCD(ev.Buttons)
	ev.ButtonCount = uint8(d.buttons.count)

	changed := d.store.Changed(d.key, *ev)
	d.store.Commit(d.key, *ev)
	return changed, nil
}

// canonicalButtonAt maps the i-th positional button (0-indexed, in
// descriptor order) onto a canonical bit. Buttons 1..4 land on the face
// buttons, 5..8 on the shoulders, matching the common DINPUT convention
// most generic pads advertise their buttons in.
func canonicalButtonAt(i int) uint32 {
	order := []uint32{
		canonical.ButtonB1, canonical.ButtonB2, canonical.ButtonB3, canonical.ButtonB4,
		canonical.ButtonL1, canonical.ButtonR1, canonical.ButtonL2, canonical.ButtonR2,
		canonical.ButtonSelect, canonical.ButtonStart, canonical.ButtonL3, canonical.ButtonR3,
	}
	if i < 0 || i >= len(order) {
		return 0
	}
	return order[i]
}

// SetOutput is a no-op: a generic HID gamepad's output report shape is
// unknown without per-device knowledge this driver deliberately doesn't
// have.
func (d *Driver) SetOutput(out device.OutputReport) error {
	return nil
}
