// Package hid implements the small slice of the USB HID report descriptor
// language this firmware needs: enough item types to describe the usages
// it looks for (axes, hat switch, buttons) and a walker that turns a
// descriptor -- however it arrived, parsed from real device bytes or
// built declaratively in a test -- into a flat ExtractionPlan.
package hid

// ItemType is the HID item type field (global, local, main).
type ItemType uint8

const (
	ItemTypeMain ItemType = iota
	ItemTypeGlobal
	ItemTypeLocal
)

// Usage page identifiers this firmware recognizes.
const (
	UsagePageGenericDesktop = 0x01
	UsagePageKeyboard       = 0x07
	UsagePageLEDs           = 0x08
	UsagePageButton         = 0x09
)

// Usage identifiers within UsagePageGenericDesktop.
const (
	UsageX         = 0x30
	UsageY         = 0x31
	UsageZ         = 0x32
	UsageRx        = 0x33
	UsageRy        = 0x34
	UsageRz        = 0x35
	UsageWheel     = 0x38
	UsageHatSwitch = 0x39
	UsageDpadUp    = 0x90
	UsageDpadDown  = 0x91
	UsageDpadRight = 0x92
	UsageDpadLeft  = 0x93
	UsageGamePad   = 0x05
	UsageMouse     = 0x02
	UsageKeyboard  = 0x06
)

// Main item input/output/feature flags (subset actually consumed).
const (
	MainData  = 0
	MainConst = 1 << 0
	MainVar   = 1 << 1
	MainAbs   = 0
	MainRel   = 1 << 2
	MainNullState = 1 << 6
)

// Item is a single descriptor element. Rather than model every HID item
// tag as a distinct Go type pair (as the teacher's declarative descriptor
// builder does for devices it emulates), the parser's direction only
// needs one concrete shape: a decoded (page/usage or range, flags, report
// geometry) tuple, which Walk produces from raw bytes and which tests can
// also construct directly to exercise BuildExtractionPlan without a real
// descriptor blob.
type Item struct {
	Type ItemType
	Tag  uint8 // raw item tag, for items Walk doesn't special-case

	UsagePage uint16
	Usage     uint16
	UsageMin  uint16
	UsageMax  uint16
	HasRange  bool

	LogicalMin int32
	LogicalMax int32

	ReportSize  uint8
	ReportCount uint8

	IsInput  bool
	IsOutput bool
	Flags    uint8

	IsCollectionStart bool
	IsCollectionEnd   bool
}
