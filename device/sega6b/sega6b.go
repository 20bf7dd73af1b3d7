// Package sega6b drives any pad whose face advertises the Sega 6-button
// layout. Only the VID/PID pairs in knownPads are recognized (8BitDo
// M30, HORI Fighting Commander); Sega Astrocity pads are not among them.
// Its six main buttons map positionally, not semantically, onto the
// canonical bits via canonical.MapSega6Button (spec.md §4.A.3). It shares
// the same physical report shape a generic DirectInput pad would send;
// what distinguishes it is solely the positional mapping and the
// LayoutSega6Button tag consoles use to render the physical legend.
package sega6b

import (
	"github.com/usbretro/usbretro/canonical"
	"github.com/usbretro/usbretro/device"
	"github.com/usbretro/usbretro/device/common"
	"github.com/usbretro/usbretro/device/registry"
)

const minReportLen = 6

func init() {
	registry.Register(registry.DevTypeSega6Button, isSega6Button, func(o *device.CreateOptions) (device.Driver, error) {
		return New(), nil
	})
}

// knownPads lists the VID/PID pairs of pads this firmware recognizes as
// Sega-layout rather than routing them to device/generichid, where their
// six buttons would otherwise map onto the generic DINPUT B1..B4/L1/R1
// order instead of the Sega-positional one.
var knownPads = map[[2]uint16]bool{
	{0x2DC8, 0x5006}: true, // 8BitDo M30
	{0x0F0D, 0x00EE}: true, // HORI Fighting Commander
}

func isSega6Button(vid, pid uint16) bool {
	return knownPads[[2]uint16{vid, pid}]
}

// Driver decodes a Sega-layout 6-button pad's report: byte 2 carries the
// hat in its low nibble and four face buttons in its high nibble, byte 3
// the shoulder and system buttons.
type Driver struct {
	store *common.Store
	key   common.InstanceKey
}

// New returns a Sega 6-button pad driver.
func New() *Driver {
	return &Driver{store: common.NewStore()}
}

// Process decodes the hat switch and six face buttons positionally.
func (d *Driver) Process(report []byte, ev *canonical.Event) (bool, error) {
	if len(report) < minReportLen {
		return false, nil
	}

	ev.Type = canonical.TypeGamepad
	ev.Transport = canonical.TransportUSB

	hat := report[2] & 0x0F
	up, right, down, left := canonical.DecodeHat(hat)
	var dpad uint32
	if up {
		dpad |= canonical.ButtonUp
	}
	if right {
		dpad |= canonical.ButtonRight
	}
	if down {
		dpad |= canonical.ButtonDown
	}
	if left {
		dpad |= canonical.ButtonLeft
	}

	face := report[2] >> 4
	shoulder := report[3]
	buttons, layout := canonical.MapSega6Button(
		face&0x1 != 0, // top-left
		face&0x2 != 0, // mid-top
		shoulder&0x2 != 0, // top-right (R1)
		face&0x4 != 0, // bottom-left
		face&0x8 != 0, // mid-bottom
		shoulder&0x8 != 0, // bottom-right (R2)
	)

	ev.Layout = layout
	ev.Buttons = canonical.ApplySOCD(dpad | buttons)
	ev.ButtonCount = 6

	changed := d.store.Changed(d.key, *ev)
	d.store.Commit(d.key, *ev)
	return changed, nil
}

// SetOutput is a no-op: these pads carry no rumble/LED state this
// firmware drives.
func (d *Driver) SetOutput(out device.OutputReport) error {
	return nil
}
