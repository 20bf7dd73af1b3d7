package usb

// Device is the minimal interface a device must implement.
// It only handles non-EP0 (interrupt/bulk) transfers.
type Device interface {
	// HandleTransfer processes a non-EP0 transfer (interrupt/bulk).
	// ep is the endpoint number (without direction). dir is protocol.DirIn or protocol.DirOut.
	// For IN transfers, return the payload to send; for OUT, consume 'out' and return nil.
	HandleTransfer(ep uint32, dir uint32, out []byte) []byte
	GetDescriptor() *Descriptor
}

// ControlDevice is an optional Device extension for class-specific EP0
// requests (HID GET_REPORT/SET_REPORT feature reports) that fall outside
// the standard GET_DESCRIPTOR/SET_CONFIGURATION handling a usbip server
// already provides generically. handled=false lets the server fall back
// to stalling the request.
type ControlDevice interface {
	HandleControl(bmRequestType, bRequest uint8, wValue, wIndex, wLength uint16, data []byte) (resp []byte, handled bool)
}
