// Package registry's sole purpose is its import side effects: each
// device subpackage registers itself with device/registry from an init
// function, and cmd/usbretro blank-imports this package once to pull all
// of them in rather than listing every driver package itself.
package registry

import (
	_ "github.com/usbretro/usbretro/device/ds3"        // Register PS3 controller driver
	_ "github.com/usbretro/usbretro/device/ds4"        // Register DualShock 4 driver
	_ "github.com/usbretro/usbretro/device/gcadapter"  // Register Nintendo GameCube adapter driver
	_ "github.com/usbretro/usbretro/device/generichid" // Register generic HID gamepad fallback driver
	_ "github.com/usbretro/usbretro/device/keyboard"   // Register keyboard driver
	_ "github.com/usbretro/usbretro/device/mouse"      // Register mouse driver
	_ "github.com/usbretro/usbretro/device/sega6b"     // Register Sega 6-button driver
	_ "github.com/usbretro/usbretro/device/switchpro"  // Register Switch Pro controller driver
)
