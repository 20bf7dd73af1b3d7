// Package xboxone implements the Xbox One GIP (Game Input Protocol)
// device-side stage: chunked-transfer input reports and an auth-packet
// relay to an external dongle, grounded on the 16-byte GIP_INPUT_REPORT
// (0x20) layout captured in the bkase-xbox-one-fake-driver reference
// file's decode routine.
package xboxone

import (
	"context"
	"encoding/binary"
	"io"

	"github.com/usbretro/usbretro/canonical"
	"github.com/usbretro/usbretro/console"
	"github.com/usbretro/usbretro/router"
	"github.com/usbretro/usbretro/usb"
)

// USB identity an Xbox One console expects to enumerate on its
// controller port, vendor-defined class/subclass/protocol (no generic
// HID report descriptor -- GIP frames its own envelope over bulk
// transfers).
const (
	usbVID             = 0x0E6F
	usbPID             = 0x02A4
	usbVendorClass     = 0xFF
	usbVendorSubClass  = 0x47
	usbVendorProtocol  = 0xD0
	gipBulkEndpointIn  = 0x82
	gipBulkEndpointOut = 0x02
	gipEndpointNumber  = 0x02 // shared endpoint number; direction distinguishes IN/OUT
)

// Descriptor is the usb.Descriptor this Stage announces when the build
// runs in USB peripheral mode against a real Xbox One console, grounded
// on the teacher's usb.Descriptor/usb.InterfaceConfig shape.
var Descriptor = usb.Descriptor{
	Device: usb.DeviceDescriptor{
		BcdUSB:             0x0200,
		BDeviceClass:       0x00,
		BMaxPacketSize0:    0x40,
		IDVendor:           usbVID,
		IDProduct:          usbPID,
		BcdDevice:          0x0114,
		IManufacturer:      0x01,
		IProduct:           0x02,
		BNumConfigurations: 0x01,
		Speed:              3,
	},
	Interfaces: []usb.InterfaceConfig{
		{
			Descriptor: usb.InterfaceDescriptor{
				BNumEndpoints:      0x02,
				BInterfaceClass:    usbVendorClass,
				BInterfaceSubClass: usbVendorSubClass,
				BInterfaceProtocol: usbVendorProtocol,
			},
			Endpoints: []usb.EndpointDescriptor{
				{BEndpointAddress: gipBulkEndpointIn, BMAttributes: 0x02, WMaxPacketSize: 64},
				{BEndpointAddress: gipBulkEndpointOut, BMAttributes: 0x02, WMaxPacketSize: 64},
			},
		},
	},
	Strings: map[uint8]string{
		0: "\x09\x04",
		1: "PowerA",
		2: "Xbox One Controller",
	},
}

// Button bit positions within report byte 2 (btn1) and byte 3 (btn2),
// matching the reference driver's decode table exactly.
const (
	bit2Sync uint8 = 1 << iota
	bit2Unknown
	bit2Menu
	bit2Share
	bit2A
	bit2B
	bit2X
	bit2Y
)

const (
	bit3Up uint8 = 1 << iota
	bit3Down
	bit3Left
	bit3Right
	bit3LTrigger
	bit3RTrigger
	bit3LStick
	bit3RStick
)

// ReportLen is the fixed GIP_INPUT_REPORT (0x20) payload length.
const ReportLen = 16

// chunkSize and ackEvery implement the auth-relay chunking spec.md §6
// specifies: 58-byte chunks, ACK on the 1st and every 5th chunk.
const (
	chunkSize = 58
	ackEvery  = 5
)

// BuildInputReport encodes one player's canonical state into the 16-byte
// GIP_INPUT_REPORT body: byte 0 carries seq, byte 1 is left zero.
func BuildInputReport(ev *canonical.Event, seq byte) []byte {
	data := make([]byte, ReportLen)
	data[0] = seq

	var btn1, btn2 uint8
	if ev.Buttons&canonical.ButtonA2 != 0 {
		btn1 |= bit2Share
	}
	if ev.Buttons&canonical.ButtonStart != 0 {
		btn1 |= bit2Menu
	}
	if ev.Buttons&canonical.ButtonB1 != 0 {
		btn1 |= bit2A
	}
	if ev.Buttons&canonical.ButtonB2 != 0 {
		btn1 |= bit2B
	}
	if ev.Buttons&canonical.ButtonB3 != 0 {
		btn1 |= bit2X
	}
	if ev.Buttons&canonical.ButtonB4 != 0 {
		btn1 |= bit2Y
	}

	if ev.Buttons&canonical.ButtonUp != 0 {
		btn2 |= bit3Up
	}
	if ev.Buttons&canonical.ButtonDown != 0 {
		btn2 |= bit3Down
	}
	if ev.Buttons&canonical.ButtonLeft != 0 {
		btn2 |= bit3Left
	}
	if ev.Buttons&canonical.ButtonRight != 0 {
		btn2 |= bit3Right
	}
	if ev.Buttons&canonical.ButtonL1 != 0 {
		btn2 |= bit3LTrigger
	}
	if ev.Buttons&canonical.ButtonR1 != 0 {
		btn2 |= bit3RTrigger
	}
	if ev.Buttons&canonical.ButtonL3 != 0 {
		btn2 |= bit3LStick
	}
	if ev.Buttons&canonical.ButtonR3 != 0 {
		btn2 |= bit3RStick
	}

	data[2], data[3] = btn1, btn2

	lt := uint16(ev.Analog[canonical.AxisLeftTrigger]) * 4  // 8-bit canonical -> 0..1020 GIP range
	rt := uint16(ev.Analog[canonical.AxisRightTrigger]) * 4
	binary.LittleEndian.PutUint16(data[4:6], lt)
	binary.LittleEndian.PutUint16(data[6:8], rt)

	toSigned16 := func(v uint8) int16 { return (int16(v) - 128) * 256 }
	binary.LittleEndian.PutUint16(data[8:10], uint16(toSigned16(ev.Analog[canonical.AxisLeftX])))
	binary.LittleEndian.PutUint16(data[10:12], uint16(toSigned16(ev.Analog[canonical.AxisLeftY])))
	binary.LittleEndian.PutUint16(data[12:14], uint16(toSigned16(ev.Analog[canonical.AxisRightX])))
	binary.LittleEndian.PutUint16(data[14:16], uint16(toSigned16(ev.Analog[canonical.AxisRightY])))

	return data
}

// Stage implements console.Stage for the Xbox One GIP interface, and
// additionally usb.Device for builds that run this firmware as a real
// USB peripheral talking to an Xbox One console rather than relaying a
// wire protocol to router-side console hardware. Dongle is the external
// auth-relay collaborator (spec.md §6's "external collaborator"
// framing); nil disables auth relay entirely.
type Stage struct {
	Dongle io.ReadWriter
	Router *router.Router
	seq    byte
}

// New returns a Stage with no auth dongle attached.
func New() *Stage {
	return &Stage{}
}

// GetDescriptor implements usb.Device.
func (s *Stage) GetDescriptor() *usb.Descriptor { return &Descriptor }

// HandleTransfer implements usb.Device: bulk-IN polls return the latest
// GIP_INPUT_REPORT built from the router's player-0 output; bulk-OUT
// payloads (auth chunks, rumble commands) are relayed to Dongle verbatim
// when present and otherwise dropped.
func (s *Stage) HandleTransfer(ep uint32, dir uint32, out []byte) []byte {
	if ep != gipEndpointNumber {
		return nil
	}
	if dir == 1 { // usbip.DirIn, avoided as an import to keep this package console-stage-only
		if s.Router == nil {
			return nil
		}
		w := s.Compose(s.Router)
		report := make([]byte, ReportLen)
		binary.LittleEndian.PutUint64(report[0:8], w.Lo)
		binary.LittleEndian.PutUint64(report[8:16], w.Hi)
		return report
	}
	if s.Dongle != nil {
		_, _ = s.Dongle.Write(out)
	}
	return nil
}

// Compose builds player 0's GIP_INPUT_REPORT and packs its first 8 bytes
// into WireWord.Lo, the remaining 8 into Hi, since WireWord only carries
// 16 bytes total.
func (s *Stage) Compose(r *router.Router) console.WireWord {
	ev := r.Output(router.Target("xboxone"), 0)
	if ev == nil {
		ev = &canonical.Event{Analog: [8]uint8{0x80, 0x80, 0x80, 0x80, 0, 0, 0, 0}}
	}
	s.seq++
	report := BuildInputReport(ev, s.seq)
	return console.WireWord{
		Lo: binary.LittleEndian.Uint64(report[0:8]),
		Hi: binary.LittleEndian.Uint64(report[8:16]),
	}
}

// Run has no independent clock cadence of its own beyond USB's 1ms
// interrupt polling; it only waits for ctx to be canceled. It reads no
// clock edges and sends nothing on tx: reports reach the console through
// HandleTransfer, which composes a fresh report on each bulk-IN poll.
func (s *Stage) Run(ctx context.Context, clock <-chan console.ClockEdge, tx chan<- console.WireWord) {
	<-ctx.Done()
}

// RelayAuthChunk forwards one auth (0x06) or final-auth (0x1E) chunk to
// the attached dongle verbatim and returns its response. Chunking (58
// bytes per chunk) and ACK cadence are the caller's responsibility via
// ShouldAck; RelayAuthChunk never inspects chunk contents.
func (s *Stage) RelayAuthChunk(chunk []byte) (resp []byte, err error) {
	if s.Dongle == nil {
		return nil, io.ErrClosedPipe
	}
	if _, err := s.Dongle.Write(chunk); err != nil {
		return nil, err
	}
	resp = make([]byte, chunkSize)
	n, err := s.Dongle.Read(resp)
	if err != nil {
		return nil, err
	}
	return resp[:n], nil
}

// ShouldAck reports whether the chunkIndex'th (0-based) chunk of a
// transfer requires an ACK: the first chunk, and every ackEvery'th one
// after it.
func ShouldAck(chunkIndex int) bool {
	return chunkIndex == 0 || (chunkIndex+1)%ackEvery == 0
}
