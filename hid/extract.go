package hid

import "math/bits"

// Location is where and how to pull one analog or hat value out of a raw
// input report. byteIndex/bitMask are precomputed once from the descriptor
// so the hot path (Extract, called once per report) never re-derives bit
// offsets.
type Location struct {
	Usage      uint16
	UsagePage  uint16
	ByteIndex  int
	BitMask    uint32
	LogicalMin int32
	LogicalMax int32
}

// ExtractionPlan is the compiled result of walking a generic HID report
// descriptor: one Location per recognized input usage, in descriptor order.
// A device driver that doesn't know its device's exact report layout ahead
// of time (device/generichid) builds one of these once at mount and reuses
// it for every report thereafter.
type ExtractionPlan struct {
	Locations []Location
}

// BuildExtractionPlan walks the Main input items Walk produced and emits a
// Location for every field under UsagePageGenericDesktop this firmware
// knows how to route: the X/Y/Z/Rx/Ry/Rz axes, the wheel and the hat
// switch. Button items only advance the bit offset; they are neither
// counted nor located here --
// device/generichid reads them as a contiguous bitfield starting at the
// first button's bit offset instead, since a pad's button count varies and
// they route as a single uint32 mask rather than per-field like axes do.
func BuildExtractionPlan(items []Item) *ExtractionPlan {
	plan := &ExtractionPlan{}

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

		if it.UsagePage == UsagePageGenericDesktop && isRecognizedAxisUsage(it.Usage) {
			for i := 0; i < count; i++ {
				plan.Locations = append(plan.Locations, locationAt(it, bitOffset+i*fieldBits, fieldBits))
			}
		}

		bitOffset += fieldBits * count
	}

	return plan
}

func isRecognizedAxisUsage(usage uint16) bool {
	switch usage {
	case UsageX, UsageY, UsageZ, UsageRx, UsageRy, UsageRz, UsageWheel, UsageHatSwitch:
		return true
	default:
		return false
	}
}

func locationAt(it Item, bitOffset, fieldBits int) Location {
	byteIndex := bitOffset / 8
	bitShift := bitOffset % 8

	var raw uint32
	if fieldBits+bitShift > 16 {
		fieldBits = 16 - bitShift
	}
	raw = uint32(1)<<uint(fieldBits) - 1
	mask := raw << uint(bitShift)

	return Location{
		Usage:      it.Usage,
		UsagePage:  it.UsagePage,
		ByteIndex:  byteIndex,
		BitMask:    mask,
		LogicalMin: it.LogicalMin,
		LogicalMax: it.LogicalMax,
	}
}

// Extract pulls the raw field value named by loc out of report. If the
// field's mask spans more than one byte the two bytes starting at
// ByteIndex are combined little-endian (matching how HID packs multi-byte
// fields) before the mask and shift are applied; a field that fits in a
// single byte is loaded and masked directly.
func (loc Location) Extract(report []byte) uint32 {
	if loc.ByteIndex >= len(report) {
		return 0
	}

	var word uint32
	if loc.BitMask > 0xFF {
		word = uint32(report[loc.ByteIndex])
		if loc.ByteIndex+1 < len(report) {
			word |= uint32(report[loc.ByteIndex+1]) << 8
		}
	} else {
		word = uint32(report[loc.ByteIndex])
	}

	masked := word & loc.BitMask
	shift := bits.TrailingZeros32(loc.BitMask)
	if shift == 32 {
		return 0
	}
	return masked >> uint(shift)
}

// ScaleAnalog maps a raw field value v in [0, logicalMax] onto the
// canonical analog byte range [1, 255], preserving the 128 midpoint: the
// lower half of v's range scales linearly onto [1, 128], the upper half
// onto [128, 255]. This two-segment mapping (rather than one linear
// formula across the whole range) is what keeps v == logicalMax/2 landing
// exactly on neutral regardless of logicalMax's parity.
func ScaleAnalog(v uint32, logicalMax int32) uint8 {
	if logicalMax <= 0 {
		return 128
	}
	m := uint32(logicalMax)
	if v > m {
		v = m
	}

	mid := m / 2
	switch {
	case v == mid:
		return 128
	case v < mid:
		if mid == 0 {
			return 1
		}
		return uint8(1 + (v*127)/mid)
	default:
		upper := m - mid
		if upper == 0 {
			return 255
		}
		return uint8(128 + ((v-mid)*127)/upper)
	}
}
