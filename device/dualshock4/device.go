package dualshock4

import (
	"bytes"
	"encoding/binary"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/usbretro/usbretro/device"
	"github.com/usbretro/usbretro/usb"
	"github.com/usbretro/usbretro/usbip"
)

type DualShock4 struct {
	inputState *InputState
	stateMu    sync.Mutex
	outputFunc func(OutputState)
	descriptor usb.Descriptor

	usbReportTimestamp uint32
	usbPacketCounter   uint32
}

func New(o *device.CreateOptions) (*DualShock4, error) {
	d := &DualShock4{
		descriptor: defaultDescriptor,
	}
	if o != nil {
		if o.IdVendor != nil {
			d.descriptor.Device.IDVendor = *o.IdVendor
		}
		if o.IdProduct != nil {
			d.descriptor.Device.IDProduct = *o.IdProduct
		}
	}

	d.inputState = &InputState{
		LX:           0,
		LY:           0,
		RX:           0,
		RY:           0,
		Buttons:      0,
		DPad:         0,
		L2:           0,
		R2:           0,
		Touch1X:      0,
		Touch1Y:      0,
		Touch1Active: false,
		Touch2X:      0,
		Touch2Y:      0,
		Touch2Active: false,
		GyroX:        0,
		GyroY:        0,
		GyroZ:        0,
		AccelX:       DefaultAccelXRaw,
		AccelY:       DefaultAccelYRaw,
		AccelZ:       DefaultAccelZRaw,
	}

	return d, nil
}

func (d *DualShock4) SetOutputCallback(f func(OutputState)) {
	d.outputFunc = f
}

func (d *DualShock4) UpdateInputState(state *InputState) {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	d.inputState = state
}

func (d *DualShock4) HandleTransfer(ep uint32, dir uint32, out []byte) []byte {
	if dir == usbip.DirIn {
		switch ep {
		case 4:
			d.stateMu.Lock()
			st := *d.inputState
			d.stateMu.Unlock()
			return d.buildUSBInputReport(st)
		default:
			return nil
		}
	}

	if dir == usbip.DirOut && ep == 3 {
		if len(out) >= 11 && out[OutOffsetReportID] == ReportIDOutput {
			feedback := OutputState{
				RumbleSmall: out[OutOffsetRumbleSmall],
				RumbleLarge: out[OutOffsetRumbleLarge],
				LedRed:      out[OutOffsetLedRed],
				LedGreen:    out[OutOffsetLedGreen],
				LedBlue:     out[OutOffsetLedBlue],
				FlashOn:     out[OutOffsetFlashOn],
				FlashOff:    out[OutOffsetFlashOff],
			}
			if d.outputFunc != nil {
				d.outputFunc(feedback)
			}
		}
	}

	return nil
}

func (d *DualShock4) HandleControl(bmRequestType, bRequest uint8, wValue, _ /* wIndex */, wLength uint16, data []byte) ([]byte, bool) {
	const (
		hidGetReport = 0x01
		hidSetReport = 0x09
	)

	const (
		reportTypeInput   = 0x01
		reportTypeOutput  = 0x02
		reportTypeFeature = 0x03
	)

	reportType := uint8(wValue >> 8)
	reportID := uint8(wValue & 0xFF)

	if bmRequestType == 0xA1 && bRequest == hidGetReport {
		if reportType == reportTypeInput && reportID == ReportIDInput {
			d.stateMu.Lock()
			st := *d.inputState
			d.stateMu.Unlock()
			report := d.buildUSBInputReport(st)
			if wLength > 0 && int(wLength) < len(report) {
				return report[:wLength], true
			}
			return report, true
		}

		if reportType == reportTypeFeature {
			switch reportID {
			case 0x02: // Gyro calibration
				return make([]byte, 37), true
			case 0x03: // Device capabilities
				return make([]byte, 48), true
			case 0x05: // Gyro calibration
				return make([]byte, 41), true
			case 0x12: // Serial number
				return make([]byte, 16), true
			}
		}
	}

	if bmRequestType == 0x21 && bRequest == hidSetReport {
		if reportType == reportTypeOutput && reportID == ReportIDOutput && len(data) >= 11 {
			feedback := OutputState{
				RumbleSmall: data[OutOffsetRumbleSmall],
				RumbleLarge: data[OutOffsetRumbleLarge],
				LedRed:      data[OutOffsetLedRed],
				LedGreen:    data[OutOffsetLedGreen],
				LedBlue:     data[OutOffsetLedBlue],
				FlashOn:     data[OutOffsetFlashOn],
				FlashOff:    data[OutOffsetFlashOff],
			}
			if d.outputFunc != nil {
				d.outputFunc(feedback)
			}
			return nil, true
		}
	}

	slog.Warn("Unsupported control request",
		"bmRequestType", bmRequestType,
		"bRequest", bRequest)

	return nil, false
}

func (d *DualShock4) GetDescriptor() *usb.Descriptor {
	return &d.descriptor
}

func (x *DualShock4) GetDeviceSpecificArgs() map[string]any {
	return map[string]any{}
}

func (d *DualShock4) buildUSBInputReport(s InputState) []byte {
	b := make([]byte, InputReportSize)

	b[0] = ReportIDInput

	b[1] = uint8(int16(s.LX) + 128)
	b[2] = uint8(int16(s.LY) + 128)
	b[3] = uint8(int16(s.RX) + 128)
	b[4] = uint8(int16(s.RY) + 128)

	usbDPad := uint8(DPadUSBNeutral)
	if s.DPad&DPadUp != 0 && s.DPad&DPadRight != 0 {
		usbDPad = DPadUSBUpRight
	} else if s.DPad&DPadUp != 0 && s.DPad&DPadLeft != 0 {
		usbDPad = DPadUSBUpLeft
	} else if s.DPad&DPadDown != 0 && s.DPad&DPadRight != 0 {
		usbDPad = DPadUSBDownRight
	} else if s.DPad&DPadDown != 0 && s.DPad&DPadLeft != 0 {
		usbDPad = DPadUSBDownLeft
	} else if s.DPad&DPadUp != 0 {
		usbDPad = DPadUSBUp
	} else if s.DPad&DPadDown != 0 {
		usbDPad = DPadUSBDown
	} else if s.DPad&DPadLeft != 0 {
		usbDPad = DPadUSBLeft
	} else if s.DPad&DPadRight != 0 {
		usbDPad = DPadUSBRight
	}

	b[5] = (usbDPad & DPadMask) | (uint8(s.Buttons) & 0xF0)
	b[6] = uint8(s.Buttons >> 8)

	counter := atomic.AddUint32(&d.usbPacketCounter, 1) & 0x3F

	psTouch := uint8(0)
	if s.Buttons&ButtonPS != 0 {
		psTouch |= ButtonPSUSB
	}
	if s.Buttons&ButtonTouchpadClick != 0 {
		psTouch |= ButtonTouchpadClickUSB
	}
	b[7] = psTouch | uint8(counter<<CounterShift)

	b[8] = s.L2
	b[9] = s.R2

	ts := atomic.AddUint32(&d.usbReportTimestamp, 1)
	binary.LittleEndian.PutUint16(b[10:12], uint16(ts))

	b[12] = 0x00

	binary.LittleEndian.PutUint16(b[13:15], uint16(s.GyroX))
	binary.LittleEndian.PutUint16(b[15:17], uint16(s.GyroY))
	binary.LittleEndian.PutUint16(b[17:19], uint16(s.GyroZ))

	binary.LittleEndian.PutUint16(b[19:21], uint16(s.AccelX))
	binary.LittleEndian.PutUint16(b[21:23], uint16(s.AccelY))
	binary.LittleEndian.PutUint16(b[23:25], uint16(s.AccelZ))

	b[30] = BatteryFullyCharged

	touch1Counter := uint8(0)
	if !s.Touch1Active {
		touch1Counter |= TouchInactiveMask
	}
	b[35] = touch1Counter
	encodeTouchCoords(b[36:39], s.Touch1X, s.Touch1Y)

	touch2Counter := uint8(0)
	if !s.Touch2Active {
		touch2Counter |= TouchInactiveMask
	}
	b[39] = touch2Counter
	encodeTouchCoords(b[40:43], s.Touch2X, s.Touch2Y)

	return b
}

func encodeTouchCoords(b []byte, x, y uint16) {
	if x > TouchpadMaxX {
		x = TouchpadMaxX
	}
	if y > TouchpadMaxY {
		y = TouchpadMaxY
	}

	b[0] = uint8(x & 0xFF)
	b[1] = uint8((x>>8)&0x0F) | uint8((y&0x0F)<<4)
	b[2] = uint8(y >> 4)
}

// ds4ReportDescriptor is the DualShock 4 HID report descriptor, hand-encoded
// from the same field layout (report ID 1 input / report ID 5 output,
// X/Y/Z/Rz axes, 8-way hat switch, 14 buttons, vendor-specific touchpad and
// gyro/accel blocks) any host driver or PC game would see from a real pad.
var ds4ReportDescriptor = []byte{
	0x05, 0x01, // Usage Page (Generic Desktop)
	0x09, 0x05, // Usage (Game Pad)
	0xA1, 0x01, // Collection (Application)
	0x85, 0x01, //   Report ID (1)
	0x05, 0x01, //   Usage Page (Generic Desktop)
	0x09, 0x30, //   Usage (X)
	0x09, 0x31, //   Usage (Y)
	0x09, 0x32, //   Usage (Z)
	0x09, 0x35, //   Usage (Rz)
	0x15, 0x00, //   Logical Minimum (0)
	0x25, 0xFF, //   Logical Maximum (255)
	0x75, 0x08, //   Report Size (8)
	0x95, 0x04, //   Report Count (4)
	0x81, 0x02, //   Input (Data,Var,Abs)
	0x05, 0x01, //   Usage Page (Generic Desktop)
	0x09, 0x39, //   Usage (Hat Switch)
	0x15, 0x00, //   Logical Minimum (0)
	0x25, 0x07, //   Logical Maximum (7)
	0x35, 0x00, //   Physical Minimum (0)
	0x46, 0x3B, 0x01, //   Physical Maximum (315)
	0x65, 0x14, //   Unit (Eng Rot: Degrees)
	0x75, 0x04, //   Report Size (4)
	0x95, 0x01, //   Report Count (1)
	0x81, 0x42, //   Input (Data,Var,Abs,Null)
	0x65, 0x00, //   Unit (None)
	0x05, 0x09, //   Usage Page (Button)
	0x19, 0x01, //   Usage Minimum (1)
	0x29, 0x0E, //   Usage Maximum (14)
	0x15, 0x00, //   Logical Minimum (0)
	0x25, 0x01, //   Logical Maximum (1)
	0x95, 0x0E, //   Report Count (14)
	0x75, 0x01, //   Report Size (1)
	0x81, 0x02, //   Input (Data,Var,Abs)
	0x06, 0x00, 0xFF, //   Usage Page (Vendor 0xFF00)
	0x09, 0x20, //   Usage (0x20)
	0x75, 0x06, //   Report Size (6)
	0x95, 0x01, //   Report Count (1)
	0x81, 0x02, //   Input (Data,Var,Abs)
	0x05, 0x01, //   Usage Page (Generic Desktop)
	0x09, 0x32, //   Usage (Z, rumble left per Sony's mapping)
	0x09, 0x35, //   Usage (Rz, rumble right per Sony's mapping)
	0x15, 0x00, //   Logical Minimum (0)
	0x25, 0xFF, //   Logical Maximum (255)
	0x75, 0x08, //   Report Size (8)
	0x95, 0x02, //   Report Count (2)
	0x81, 0x02, //   Input (Data,Var,Abs)
	0x06, 0x00, 0xFF, //   Usage Page (Vendor 0xFF00)
	0x09, 0x20, //   Usage (0x20)
	0x15, 0x00, //   Logical Minimum (0)
	0x25, 0xFF, //   Logical Maximum (255)
	0x75, 0x08, //   Report Size (8)
	0x95, 0x36, //   Report Count (54)
	0x81, 0x02, //   Input (Data,Var,Abs)
	0x85, 0x05, //   Report ID (5)
	0x06, 0x00, 0xFF, //   Usage Page (Vendor 0xFF00)
	0x09, 0x21, //   Usage (0x21)
	0x15, 0x00, //   Logical Minimum (0)
	0x25, 0xFF, //   Logical Maximum (255)
	0x75, 0x08, //   Report Size (8)
	0x95, 0x1F, //   Report Count (31)
	0x91, 0x02, //   Output (Data,Var,Abs)
	0xC0, // End Collection
}

func buildHIDClassDescriptor(reportLen int) []byte {
	var b bytes.Buffer
	h := usb.HIDDescriptor{
		BcdHID:            0x0111,
		BCountryCode:      0x00,
		BNumDescriptors:   0x01,
		ClassDescType:     0x22,
		WDescriptorLength: uint16(reportLen),
	}
	h.Write(&b)
	return b.Bytes()
}

var defaultDescriptor = usb.Descriptor{
	Device: usb.DeviceDescriptor{
		BcdUSB:             0x0200,
		BDeviceClass:       0x00,
		BDeviceSubClass:    0x00,
		BDeviceProtocol:    0x00,
		BMaxPacketSize0:    0x40,
		IDVendor:           DefaultVID,
		IDProduct:          DefaultPID,
		BcdDevice:          0x0100,
		IManufacturer:      0x01,
		IProduct:           0x02,
		ISerialNumber:      0x00,
		BNumConfigurations: 0x01,
		Speed:              2,
	},
	Interfaces: []usb.InterfaceConfig{
		{
			Descriptor: usb.InterfaceDescriptor{
				BInterfaceNumber:   0x00,
				BAlternateSetting:  0x00,
				BNumEndpoints:      0x02,
				BInterfaceClass:    0x03,
				BInterfaceSubClass: 0x00,
				BInterfaceProtocol: 0x00,
				IInterface:         0x00,
			},
			HIDDescriptor: buildHIDClassDescriptor(len(ds4ReportDescriptor)),
			HIDReport:     ds4ReportDescriptor,
			Endpoints: []usb.EndpointDescriptor{
				{
					BEndpointAddress: EndpointIn,
					BMAttributes:     0x03,
					WMaxPacketSize:   64,
					BInterval:        5,
				},
				{
					BEndpointAddress: EndpointOut,
					BMAttributes:     0x03,
					WMaxPacketSize:   64,
					BInterval:        5,
				},
			},
		},
	},
	Strings: map[uint8]string{
		0: "\x04\x09",
		1: "Sony Interactive Entertainment",
		2: "Wireless Controller",
	},
}
