package hid

// Raw HID short-item tags, scoped by item type (main=0, global=1, local=2).
const (
	tagInput          = 0x8
	tagOutput         = 0x9
	tagCollection     = 0xA
	tagFeature        = 0xB
	tagEndCollection  = 0xC
	tagUsagePage      = 0x0
	tagLogicalMinimum = 0x1
	tagLogicalMaximum = 0x2
	tagReportSize     = 0x7
	tagReportID       = 0x8
	tagReportCount    = 0x9
	tagUsage          = 0x0
	tagUsageMinimum   = 0x1
	tagUsageMaximum   = 0x2
)

// Walk decodes a raw HID report descriptor (short items only, which is all
// the controllers and generic gamepads this firmware targets ever emit)
// into a flat Item stream. Global state (usage page, logical range, report
// size/count) is carried forward the way a real HID parser does; local
// state (usage, usage range) is attached to the next Main item and then
// reset, since it only ever applies to the single field that follows it.
func Walk(desc []byte) []Item {
	var items []Item

	var usagePage uint16
	var logicalMin, logicalMax int32
	var reportSize, reportCount uint8
	var usage uint16
	var usageMin, usageMax uint16
	var hasRange bool

	i := 0
	for i < len(desc) {
		prefix := desc[i]
		i++

		size := prefix & 0x03
		btype := (prefix >> 2) & 0x03
		tag := (prefix >> 4) & 0x0F

		n := int(size)
		if n == 3 {
			n = 4
		}
		if i+n > len(desc) {
			break
		}
		data := desc[i : i+n]
		i += n

		uval := unsignedData(data)
		sval := signedData(data)

		switch btype {
		case 1: // global
			switch tag {
			case tagUsagePage:
				usagePage = uint16(uval)
			case tagLogicalMinimum:
				logicalMin = sval
			case tagLogicalMaximum:
				logicalMax = sval
			case tagReportSize:
				reportSize = uint8(uval)
			case tagReportCount:
				reportCount = uint8(uval)
			}
		case 2: // local
			switch tag {
			case tagUsage:
				usage = uint16(uval)
			case tagUsageMinimum:
				usageMin = uint16(uval)
				hasRange = true
			case tagUsageMaximum:
				usageMax = uint16(uval)
				hasRange = true
			}
		case 0: // main
			it := Item{
				Type:        ItemTypeMain,
				Tag:         tag,
				UsagePage:   usagePage,
				Usage:       usage,
				UsageMin:    usageMin,
				UsageMax:    usageMax,
				HasRange:    hasRange,
				LogicalMin:  logicalMin,
				LogicalMax:  logicalMax,
				ReportSize:  reportSize,
				ReportCount: reportCount,
				Flags:       uint8(uval),
			}
			switch tag {
			case tagInput:
				it.IsInput = true
			case tagOutput:
				it.IsOutput = true
			case tagCollection:
				it.IsCollectionStart = true
			case tagEndCollection:
				it.IsCollectionEnd = true
			}
			items = append(items, it)

			// Local state resets after every main item.
			usage, usageMin, usageMax = 0, 0, 0
			hasRange = false
		}
	}
	return items
}

func unsignedData(b []byte) uint32 {
	var v uint32
	for i, by := range b {
		v |= uint32(by) << (8 * i)
	}
	return v
}

func signedData(b []byte) int32 {
	v := int32(unsignedData(b))
	switch len(b) {
	case 1:
		return int32(int8(v))
	case 2:
		return int32(int16(v))
	default:
		return v
	}
}
