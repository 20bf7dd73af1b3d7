// Package virtual implements usbhost.Adapter as a USB-IP protocol client
// against an emulated device exported by virtualbus.VirtualBus, letting
// integration tests and CI replay spec.md §8's end-to-end scenarios
// without physical hardware.
//
// Grounded directly on the teacher's own usbip package (MgmtHeader,
// ExportedDevice, CmdSubmit/RetSubmit framing) -- this package is the
// client half of the same protocol VIIPER's server half already speaks.
package virtual

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/usbretro/usbretro/usbhost"
	"github.com/usbretro/usbretro/usbip"
)

// Adapter is a usbhost.Adapter that imports one exported device over a
// usbip-protocol connection and polls it back to back, with no interval
// between polls, by issuing a CMD_SUBMIT IN transfer on endpoint 1.
type Adapter struct {
	conn     net.Conn
	busID    string
	devAddr  uint8
	seqnum   atomic.Uint32
	mu       sync.Mutex
	descriptor []byte
	vid, pid uint16
	protocol, subclass uint8
}

// Dial connects to a usbip-protocol listener (typically a
// usbipserver.Server running against a virtualbus.VirtualBus in the same
// test process or a loopback TCP listener) and imports busID, returning a
// ready Adapter.
func Dial(conn net.Conn, busID string, devAddr uint8) (*Adapter, error) {
	a := &Adapter{conn: conn, busID: busID, devAddr: devAddr}

	hdr := usbip.MgmtHeader{Version: usbip.Version, Command: usbip.OpReqImport, Status: 0}
	if err := hdr.Write(conn); err != nil {
		return nil, fmt.Errorf("usbip import request: %w", err)
	}
	var busIDBuf [32]byte
	copy(busIDBuf[:], busID)
	if _, err := conn.Write(busIDBuf[:]); err != nil {
		return nil, fmt.Errorf("usbip import busid: %w", err)
	}

	r := bufio.NewReader(conn)
	var replyHdr [8]byte
	if err := usbip.ReadExactly(r, replyHdr[:]); err != nil {
		return nil, fmt.Errorf("usbip import reply header: %w", err)
	}
	status := binary.BigEndian.Uint32(replyHdr[4:8])
	if status != 0 {
		return nil, fmt.Errorf("usbip import rejected: status %d", status)
	}

	// OP_REP_IMPORT device entry, per ExportedDevice.WriteImport:
	// Path[256] USBBusId[32] BusId(4) DevId(4) Speed(4) IDVendor(2)
	// IDProduct(2) BcdDevice(2) then 6 class/config bytes.
	var meta [256 + 32 + 4 + 4 + 4 + 2 + 2 + 2 + 6]byte
	if err := usbip.ReadExactly(r, meta[:]); err != nil {
		return nil, fmt.Errorf("usbip import device entry: %w", err)
	}
	const fixedLen = 256 + 32
	a.vid = binary.BigEndian.Uint16(meta[fixedLen+12 : fixedLen+14])
	a.pid = binary.BigEndian.Uint16(meta[fixedLen+14 : fixedLen+16])
	// fixedLen+16:18 is BcdDevice, +18 is BDeviceClass.
	a.subclass = meta[fixedLen+19]
	a.protocol = meta[fixedLen+20]

	return a, nil
}

// Run issues a CMD_SUBMIT IN transfer per poll and translates RET_SUBMIT
// payloads into usbhost.Event reports. Run emits exactly one mount event
// immediately (the usbip import already completed mount semantics) and
// returns at once; a goroutine keeps polling until ctx is canceled or the
// connection reaches EOF, skipping polls that fail with any other error,
// and then sends the unmount event.
//
// The mount event's Descriptor is always nil: OP_REP_IMPORT carries only
// VID/PID/class bytes, not a HID report descriptor, and fetching one would
// require a GET_DESCRIPTOR control transfer this adapter doesn't issue.
// VID/PID-keyed drivers in device/registry match without it; only the
// generic-HID fallback's descriptor checker is unreachable over this
// adapter.
func (a *Adapter) Run(ctx context.Context) (<-chan usbhost.MountEvent, <-chan usbhost.Event, <-chan usbhost.UnmountEvent, error) {
	mounts := make(chan usbhost.MountEvent, 1)
	reports := make(chan usbhost.Event, 16)
	unmounts := make(chan usbhost.UnmountEvent, 1)

	mounts <- usbhost.MountEvent{
		DevAddr: a.devAddr, Instance: 0,
		VID: a.vid, PID: a.pid,
		Protocol: a.protocol, SubClass: a.subclass,
		Descriptor: a.descriptor,
	}

	go func() {
		defer close(reports)
		defer func() { unmounts <- usbhost.UnmountEvent{DevAddr: a.devAddr} }()

		r := bufio.NewReader(a.conn)
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			report, err := a.submitIn(r)
			if err != nil {
				if err == io.EOF {
					return
				}
				continue
			}
			select {
			case reports <- usbhost.Event{DevAddr: a.devAddr, Instance: 0, VID: a.vid, PID: a.pid, Report: report}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return mounts, reports, unmounts, nil
}

// submitIn sends one CMD_SUBMIT (IN, endpoint 1) and reads back the
// RET_SUBMIT payload.
func (a *Adapter) submitIn(r *bufio.Reader) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	seq := a.seqnum.Add(1)
	cmd := usbip.CmdSubmit{
		Basic: usbip.HeaderBasic{
			Command: usbip.CmdSubmitCode,
			Seqnum:  seq,
			Devid:   uint32(a.devAddr),
			Dir:     usbip.DirIn,
			Ep:      1,
		},
		TransferBufferLen: 64,
	}
	if err := cmd.Write(a.conn); err != nil {
		return nil, err
	}

	// RetSubmit header: HeaderBasic (5 uint32) + Status + ActualLength +
	// StartFrame + NumberOfPackets + ErrorCount (5 uint32) + 8 bytes pad.
	var hdr [48]byte
	if err := usbip.ReadExactly(r, hdr[:]); err != nil {
		return nil, err
	}
	actualLen := binary.BigEndian.Uint32(hdr[24:28])

	payload := make([]byte, actualLen)
	if actualLen > 0 {
		if err := usbip.ReadExactly(r, payload); err != nil {
			return nil, err
		}
	}
	return payload, nil
}

// SetOutput sends a CMD_SUBMIT OUT transfer carrying report as the
// payload, used for rumble/LED/feature reports.
func (a *Adapter) SetOutput(devAddr uint8, instance int8, report []byte, isFeature bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	ep := uint32(2)
	if isFeature {
		ep = 0
	}
	seq := a.seqnum.Add(1)
	cmd := usbip.CmdSubmit{
		Basic: usbip.HeaderBasic{
			Command: usbip.CmdSubmitCode,
			Seqnum:  seq,
			Devid:   uint32(devAddr),
			Dir:     usbip.DirOut,
			Ep:      ep,
		},
		TransferBufferLen: uint32(len(report)),
	}
	if err := cmd.Write(a.conn); err != nil {
		return err
	}
	_, err := a.conn.Write(report)
	return err
}

// Close closes the underlying connection.
func (a *Adapter) Close() error {
	return a.conn.Close()
}

var _ usbhost.Adapter = (*Adapter)(nil)
