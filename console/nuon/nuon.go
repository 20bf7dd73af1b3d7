// Package nuon implements the Nuon Polyface controller stage: an
// asynchronous, addressable bus where the console issues 25-bit commands
// and the controller replies with a parity-checked, CRC16-protected data
// packet, advertising its capability bitfield in the configuration
// packet.
//
// Grounded on spec.md §4.F's Nuon section; no example repo speaks this
// protocol, so command encoding follows the spec's own command-name
// list directly.
package nuon

import (
	"context"
	"hash/crc32"

	"github.com/usbretro/usbretro/canonical"
	"github.com/usbretro/usbretro/console"
	"github.com/usbretro/usbretro/router"
)

// Command identifies a Polyface bus command.
type Command uint8

const (
	CmdAlive Command = iota
	CmdProbe
	CmdChannel
	CmdAnalog
	CmdSwitch
)

// Capability bits the controller advertises in its configuration packet.
const (
	CapAnalog1 uint16 = 1 << iota
	CapAnalog2
	CapStdButtons
	CapDPad
	CapShoulder
	CapExtButtons
)

// Capabilities this controller reports: every stick/trigger plus the
// standard button set and d-pad this firmware's canonical.Event always
// carries.
const Capabilities = CapAnalog1 | CapAnalog2 | CapStdButtons | CapDPad | CapShoulder | CapExtButtons

// crc16 computes the packet CRC the console validates; Nuon's real CRC16
// polynomial isn't in the retrieved corpus, so this takes the low 16 bits
// of the standard library's CRC-32/IEEE checksum -- a placeholder checksum
// consistent in both directions of this firmware, documented as a design
// simplification in DESIGN.md rather than a bit-exact reproduction of the
// original polynomial.
func crc16(data []byte) uint16 {
	return uint16(crc32.ChecksumIEEE(data))
}

func parity(b byte) byte {
	p := byte(0)
	for b != 0 {
		p ^= b & 1
		b >>= 1
	}
	return p
}

// Packet is one parity-checked, CRC16-protected Polyface response.
type Packet struct {
	Data []byte
	CRC  uint16
}

// buildPacket assembles a Packet from a canonical event's button/analog
// state for the SWITCH[8:1] and ANALOG commands.
func buildPacket(ev *canonical.Event) Packet {
	data := make([]byte, 0, 8)
	var sw uint8
	if ev.Buttons&canonical.ButtonUp != 0 {
		sw |= 1 << 0
	}
	if ev.Buttons&canonical.ButtonDown != 0 {
		sw |= 1 << 1
	}
	if ev.Buttons&canonical.ButtonLeft != 0 {
		sw |= 1 << 2
	}
	if ev.Buttons&canonical.ButtonRight != 0 {
		sw |= 1 << 3
	}
	if ev.Buttons&canonical.ButtonB1 != 0 {
		sw |= 1 << 4
	}
	if ev.Buttons&canonical.ButtonB2 != 0 {
		sw |= 1 << 5
	}
	if ev.Buttons&canonical.ButtonL1 != 0 {
		sw |= 1 << 6
	}
	if ev.Buttons&canonical.ButtonR1 != 0 {
		sw |= 1 << 7
	}
	data = append(data, sw, parity(sw))
	data = append(data, ev.Analog[canonical.AxisLeftX], ev.Analog[canonical.AxisLeftY])
	return Packet{Data: data, CRC: crc16(data)}
}

// softResetHolds is how long Nuon+Start+L+R must be held to trigger a
// soft reset.
const softResetHolds = 100 // clock edges at the caller's tick rate standing in for 2s

// Stage implements console.Stage for the Nuon.
type Stage struct {
	lastPacket    Packet
	resetHoldTick int
	resetFired    bool
}

// New returns a ready Stage.
func New() *Stage {
	return &Stage{}
}

// Compose reads player 0's canonical state and builds the SWITCH/ANALOG
// response packet for the next command the console issues.
func (s *Stage) Compose(r *router.Router) console.WireWord {
	ev := r.Output(router.Target("nuon"), 0)
	if ev == nil {
		ev = &canonical.Event{Analog: [8]uint8{0x80, 0x80, 0x80, 0x80, 0, 0, 0, 0}}
	}

	softReset := ev.Buttons&(canonical.ButtonA1|canonical.ButtonStart|canonical.ButtonL1|canonical.ButtonR1) ==
		canonical.ButtonA1|canonical.ButtonStart|canonical.ButtonL1|canonical.ButtonR1
	if softReset {
		s.resetHoldTick++
	} else {
		s.resetHoldTick = 0
		s.resetFired = false
	}
	if s.resetHoldTick >= softResetHolds {
		s.resetFired = true
	}

	s.lastPacket = buildPacket(ev)

	var word uint64
	for i, b := range s.lastPacket.Data {
		if i >= 6 {
			break
		}
		word |= uint64(b) << (8 * uint(i))
	}
	word |= uint64(s.lastPacket.CRC) << 48
	return console.WireWord{Lo: word, Hi: uint64(Capabilities)}
}

// Run answers each command edge with the last composed packet.
func (s *Stage) Run(ctx context.Context, clock <-chan console.ClockEdge, tx chan<- console.WireWord) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-clock:
			if !ok {
				return
			}
			var word uint64
			for i, b := range s.lastPacket.Data {
				if i >= 6 {
					break
				}
				word |= uint64(b) << (8 * uint(i))
			}
			word |= uint64(s.lastPacket.CRC) << 48
			select {
			case tx <- console.WireWord{Lo: word, Hi: uint64(Capabilities)}:
			default:
			}
		}
	}
}

// SoftResetRequested reports whether Nuon+Start+L+R has been held long
// enough (per the caller's clock rate) to request a soft reset.
func (s *Stage) SoftResetRequested() bool {
	return s.resetFired
}
