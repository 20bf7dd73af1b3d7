package hid_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/usbretro/usbretro/hid"
)

func TestScaleAnalogEndpointsAndMidpoint(t *testing.T) {
	cases := []struct {
		logicalMax int32
	}{
		{255}, {1023}, {4095}, {100}, {2},
	}
	for _, tc := range cases {
		m := tc.logicalMax
		assert.Equalf(t, uint8(1), hid.ScaleAnalog(0, m), "logicalMax=%d v=0", m)
		assert.Equalf(t, uint8(255), hid.ScaleAnalog(uint32(m), m), "logicalMax=%d v=max", m)
		assert.Equalf(t, uint8(128), hid.ScaleAnalog(uint32(m)/2, m), "logicalMax=%d v=mid", m)
	}
}

func TestScaleAnalogMonotone(t *testing.T) {
	const m = int32(1023)
	prev := uint8(0)
	for v := uint32(0); v <= uint32(m); v += 7 {
		got := hid.ScaleAnalog(v, m)
		assert.GreaterOrEqual(t, got, prev)
		prev = got
	}
}

func TestScaleAnalogClampsAboveLogicalMax(t *testing.T) {
	assert.Equal(t, uint8(255), hid.ScaleAnalog(9999, 255))
}

func TestExtractSingleByteField(t *testing.T) {
	loc := hid.Location{ByteIndex: 1, BitMask: 0xFF}
	report := []byte{0x00, 0x7F, 0x00}
	assert.Equal(t, uint32(0x7F), loc.Extract(report))
}

func TestExtractMaskedNibble(t *testing.T) {
	// Low nibble of byte 0.
	loc := hid.Location{ByteIndex: 0, BitMask: 0x0F}
	assert.Equal(t, uint32(0x0A), loc.Extract([]byte{0xFA}))

	// High nibble of byte 0.
	loc = hid.Location{ByteIndex: 0, BitMask: 0xF0}
	assert.Equal(t, uint32(0x0F), loc.Extract([]byte{0xFA}))
}

func TestExtractTwoByteLittleEndian(t *testing.T) {
	loc := hid.Location{ByteIndex: 0, BitMask: 0xFFFF}
	report := []byte{0x34, 0x12}
	assert.Equal(t, uint32(0x1234), loc.Extract(report))
}

func TestExtractOutOfRangeReturnsZero(t *testing.T) {
	loc := hid.Location{ByteIndex: 5, BitMask: 0xFF}
	assert.Equal(t, uint32(0), loc.Extract([]byte{0x01, 0x02}))
}

// A minimal gamepad descriptor: usage page generic desktop, X/Y axes (8-bit
// each) then a 4-bit hat switch, built with the same short-item encoding
// Walk parses -- exercising BuildExtractionPlan end to end rather than
// constructing Items by hand.
func buildGamepadDescriptor() []byte {
	return []byte{
		0x05, hid.UsagePageGenericDesktop, // Usage Page (Generic Desktop)
		0x09, hid.UsageGamePad, // Usage (Gamepad)
		0xA1, 0x01, // Collection (Application)
		0x09, hid.UsageX, //   Usage (X)
		0x15, 0x00, //   Logical Minimum (0)
		0x26, 0xFF, 0x00, //   Logical Maximum (255)
		0x75, 0x08, //   Report Size (8)
		0x95, 0x01, //   Report Count (1)
		0x81, hid.MainData | hid.MainVar, //   Input (Data,Var,Abs)
		0x09, hid.UsageY, //   Usage (Y)
		0x15, 0x00, //   Logical Minimum (0)
		0x26, 0xFF, 0x00, //   Logical Maximum (255)
		0x75, 0x08, //   Report Size (8)
		0x95, 0x01, //   Report Count (1)
		0x81, hid.MainData | hid.MainVar, //   Input (Data,Var,Abs)
		0x09, hid.UsageHatSwitch, //   Usage (Hat switch)
		0x15, 0x00, //   Logical Minimum (0)
		0x25, 0x07, //   Logical Maximum (7)
		0x75, 0x04, //   Report Size (4)
		0x95, 0x01, //   Report Count (1)
		0x81, hid.MainData | hid.MainVar, //   Input (Data,Var,Abs)
		0x75, 0x04, //   Report Size (4) -- padding
		0x95, 0x01, //   Report Count (1)
		0x81, hid.MainConst, //   Input (Const) -- padding
		0xC0, // End Collection
	}
}

func TestBuildExtractionPlanFromWalkedDescriptor(t *testing.T) {
	items := hid.Walk(buildGamepadDescriptor())
	plan := hid.BuildExtractionPlan(items)

	// X, Y, and hat switch.
	if assert.Len(t, plan.Locations, 3) {
		assert.Equal(t, uint16(hid.UsageX), plan.Locations[0].Usage)
		assert.Equal(t, 0, plan.Locations[0].ByteIndex)

		assert.Equal(t, uint16(hid.UsageY), plan.Locations[1].Usage)
		assert.Equal(t, 1, plan.Locations[1].ByteIndex)

		assert.Equal(t, uint16(hid.UsageHatSwitch), plan.Locations[2].Usage)
		assert.Equal(t, 2, plan.Locations[2].ByteIndex)
		assert.Equal(t, uint32(0x0F), plan.Locations[2].BitMask)
	}

	report := []byte{0x80, 0x01, 0x03}
	assert.Equal(t, uint32(0x80), plan.Locations[0].Extract(report))
	assert.Equal(t, uint32(0x01), plan.Locations[1].Extract(report))
	assert.Equal(t, uint32(0x03), plan.Locations[2].Extract(report))
}
