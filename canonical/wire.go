package canonical

import (
	"encoding/binary"
	"io"
)

// WireSize is the fixed length of Event's binary wire encoding, used by
// the UART/bridge output target to forward canonical events off-box.
const WireSize = 28

// MarshalBinary encodes an Event for transport across the bridge output
// target. Layout is little-endian and fixed-size, matching the style the
// teacher repo uses for every device's wire-state struct.
func (e *Event) MarshalBinary() ([]byte, error) {
	b := make([]byte, WireSize)
	b[0] = e.DevAddr
	b[1] = uint8(e.Instance)
	b[2] = uint8(e.Type)
	b[3] = uint8(e.Transport)
	binary.LittleEndian.PutUint32(b[4:8], e.Buttons)
	b[8] = e.ButtonCount
	b[9] = uint8(e.Layout)
	copy(b[10:18], e.Analog[:])
	b[18] = uint8(e.DeltaX)
	b[19] = uint8(e.DeltaY)
	b[20] = uint8(e.DeltaWheel)
	copy(b[21:25], e.Keys[:])
	b[25] = e.Modifiers
	if e.HasMotion {
		b[26] = 1
	}
	b[27] = 0
	return b, nil
}

// UnmarshalBinary decodes an Event previously encoded with MarshalBinary.
// Motion samples are not carried over the wire format (bridge targets do
// not need IMU data); HasMotion is always false after a round trip.
func (e *Event) UnmarshalBinary(data []byte) error {
	if len(data) < WireSize {
		return io.ErrUnexpectedEOF
	}
	e.DevAddr = data[0]
	e.Instance = int8(data[1])
	e.Type = Type(data[2])
	e.Transport = Transport(data[3])
	e.Buttons = binary.LittleEndian.Uint32(data[4:8])
	e.ButtonCount = data[8]
	e.Layout = Layout(data[9])
	copy(e.Analog[:], data[10:18])
	e.DeltaX = int8(data[18])
	e.DeltaY = int8(data[19])
	e.DeltaWheel = int8(data[20])
	copy(e.Keys[:], data[21:25])
	e.Modifiers = data[25]
	e.HasMotion = false
	return nil
}
