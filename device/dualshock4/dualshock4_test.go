package dualshock4_test

import (
	"testing"

	"github.com/usbretro/usbretro/device/dualshock4"
	"github.com/usbretro/usbretro/usbip"
	"github.com/stretchr/testify/assert"
)

func TestInputReports(t *testing.T) {
	type testCase struct {
		name           string
		inputState     dualshock4.InputState
		expectedReport []byte
	}

	cases := []testCase{
		{
			name: "neutral defaults",
			inputState: dualshock4.InputState{
				Touch1Active: false,
				Touch2Active: false,
			},
			expectedReport: func() []byte {
				b := make([]byte, dualshock4.InputReportSize)
				b[0] = 0x01
				b[1], b[2], b[3], b[4] = 0x80, 0x80, 0x80, 0x80
				b[5] = 0x08
				b[30] = 0x0b
				b[35] = 0x80
				b[39] = 0x80
				return b
			}(),
		},
		{
			name: "dpad up",
			inputState: dualshock4.InputState{
				DPad:         dualshock4.DPadUp,
				Touch1Active: false,
				Touch2Active: false,
			},
			expectedReport: func() []byte {
				b := make([]byte, dualshock4.InputReportSize)
				b[0] = 0x01
				b[1], b[2], b[3], b[4] = 0x80, 0x80, 0x80, 0x80
				b[5] = 0x00
				b[30] = 0x0b
				b[35] = 0x80
				b[39] = 0x80
				return b
			}(),
		},
		{
			name: "buttons - square",
			inputState: dualshock4.InputState{
				Buttons:      uint16(dualshock4.ButtonSquare),
				Touch1Active: false,
				Touch2Active: false,
			},
			expectedReport: func() []byte {
				b := make([]byte, dualshock4.InputReportSize)
				b[0] = 0x01
				b[1], b[2], b[3], b[4] = 0x80, 0x80, 0x80, 0x80
				b[5] = 0x18
				b[30] = 0x0b
				b[35] = 0x80
				b[39] = 0x80
				return b
			}(),
		},
		{
			name: "buttons - ps",
			inputState: dualshock4.InputState{
				Buttons:      dualshock4.ButtonPS,
				Touch1Active: false,
				Touch2Active: false,
			},
			expectedReport: func() []byte {
				b := make([]byte, dualshock4.InputReportSize)
				b[0] = 0x01
				b[1], b[2], b[3], b[4] = 0x80, 0x80, 0x80, 0x80
				b[5] = 0x08
				b[7] = 0x01
				b[30] = 0x0b
				b[35] = 0x80
				b[39] = 0x80
				return b
			}(),
		},
		{
			name: "triggers - l2/r2",
			inputState: dualshock4.InputState{
				L2:           0x12,
				R2:           0xFE,
				Touch1Active: false,
				Touch2Active: false,
			},
			expectedReport: func() []byte {
				b := make([]byte, dualshock4.InputReportSize)
				b[0] = 0x01
				b[1], b[2], b[3], b[4] = 0x80, 0x80, 0x80, 0x80
				b[5] = 0x08
				b[8] = 0x12
				b[9] = 0xFE
				b[30] = 0x0b
				b[35] = 0x80
				b[39] = 0x80
				return b
			}(),
		},
		{
			name: "touch1 active with coords",
			inputState: dualshock4.InputState{
				Touch1X:      123,
				Touch1Y:      456,
				Touch1Active: true,
				Touch2Active: false,
			},
			expectedReport: func() []byte {
				b := make([]byte, dualshock4.InputReportSize)
				b[0] = 0x01
				b[1], b[2], b[3], b[4] = 0x80, 0x80, 0x80, 0x80
				b[5] = 0x08
				b[30] = 0x0b
				b[35] = 0x00
				b[36] = 0x7b
				b[37] = 0x80
				b[38] = 0x1c
				b[39] = 0x80
				return b
			}(),
		},
		{
			name: "sensors",
			inputState: dualshock4.InputState{
				GyroX:        1234,
				GyroY:        -2345,
				GyroZ:        3456,
				AccelX:       -111,
				AccelY:       222,
				AccelZ:       -333,
				Touch1Active: false,
				Touch2Active: false,
			},
			expectedReport: func() []byte {
				b := make([]byte, dualshock4.InputReportSize)
				b[0] = 0x01
				b[1], b[2], b[3], b[4] = 0x80, 0x80, 0x80, 0x80
				b[5] = 0x08
				b[13], b[14] = 0xD2, 0x04
				b[15], b[16] = 0xD7, 0xF6
				b[17], b[18] = 0x80, 0x0D
				b[19], b[20] = 0x91, 0xFF
				b[21], b[22] = 0xDE, 0x00
				b[23], b[24] = 0xB3, 0xFE
				b[30] = 0x0b
				b[35] = 0x80
				b[39] = 0x80
				return b
			}(),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dev, err := dualshock4.New(nil)
			if !assert.NoError(t, err) {
				return
			}
			dev.UpdateInputState(&tc.inputState)
			got := dev.HandleTransfer(4, usbip.DirIn, nil)

			gg := append([]byte(nil), got...)
			exp := append([]byte(nil), tc.expectedReport...)
			// byte 7's top bits carry a free-running packet counter; byte
			// 10/11 carry a free-running timestamp. Both are masked out of
			// comparison since they vary per call.
			gg[7] &= 0x03
			exp[7] &= 0x03
			gg[10], gg[11] = 0, 0
			exp[10], exp[11] = 0, 0
			assert.Equal(t, exp, gg)
		})
	}
}

func TestFeedback(t *testing.T) {
	type testCase struct {
		name      string
		out       dualshock4.OutputState
		outPacket []byte
	}

	cases := []testCase{
		{
			name: "off",
			out:  dualshock4.OutputState{},
			outPacket: []byte{
				dualshock4.ReportIDOutput, 0x00, 0x00, 0x00,
				0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
			},
		},
		{
			name: "rumble + led + flash",
			out: dualshock4.OutputState{
				RumbleSmall: 0x12,
				RumbleLarge: 0xFE,
				LedRed:      0x01,
				LedGreen:    0x02,
				LedBlue:     0x03,
				FlashOn:     0x04,
				FlashOff:    0x05,
			},
			outPacket: []byte{
				dualshock4.ReportIDOutput, 0x00, 0x00, 0x00,
				0x12, 0xFE, 0x01, 0x02, 0x03, 0x04, 0x05,
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dev, err := dualshock4.New(nil)
			if !assert.NoError(t, err) {
				return
			}
			var got dualshock4.OutputState
			dev.SetOutputCallback(func(fb dualshock4.OutputState) { got = fb })
			dev.HandleTransfer(3, usbip.DirOut, tc.outPacket)
			assert.Equal(t, tc.out, got)
		})
	}
}
