package usbipserver

import (
	"bufio"
	"context"
	"encoding/binary"
	"log/slog"
	"net"
	"os"
	"testing"
	"time"

	"github.com/usbretro/usbretro/device/dualshock4"
	"github.com/usbretro/usbretro/usb"
	"github.com/usbretro/usbretro/usbhost/virtual"
	"github.com/usbretro/usbretro/usbip"
	"github.com/usbretro/usbretro/virtualbus"
)

// fakePad is a minimal usb.Device presenting one fixed 8-byte report on
// every interrupt IN poll, just enough to exercise the usbip server's
// devlist/import/URB-stream plumbing end to end.
type fakePad struct {
	report []byte
}

func (f *fakePad) HandleTransfer(ep uint32, dir uint32, out []byte) []byte {
	if dir == 1 { // usbip.DirIn
		return f.report
	}
	return nil
}

func (f *fakePad) GetDescriptor() *usb.Descriptor {
	return &usb.Descriptor{
		Device: usb.DeviceDescriptor{
			BcdUSB: 0x0200, BDeviceClass: 0, BMaxPacketSize0: 64,
			IDVendor: 0x1234, IDProduct: 0xABCD, BNumConfigurations: 1, Speed: 2,
		},
		Interfaces: []usb.InterfaceConfig{
			{
				Descriptor: usb.InterfaceDescriptor{BInterfaceClass: 0x03, BNumEndpoints: 1},
				Endpoints: []usb.EndpointDescriptor{
					{BEndpointAddress: 0x81, BMAttributes: 0x03, WMaxPacketSize: 8, BInterval: 1},
				},
			},
		},
	}
}

func TestServerServesOneDeviceEndToEnd(t *testing.T) {
	vb := virtualbus.New()
	pad := &fakePad{report: []byte{1, 2, 3, 4, 5, 6, 7, 8}}
	if _, err := vb.Add(pad); err != nil {
		t.Fatalf("vb.Add: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	srv := New(Config{Addr: "127.0.0.1:0", ConnectionTimeout: 5 * time.Second, BusCleanupTimeout: time.Second}, logger, nil)
	if err := srv.AddBus(vb); err != nil {
		t.Fatalf("AddBus: %v", err)
	}
	defer srv.Close()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-srv.Ready():
	case err := <-errCh:
		t.Fatalf("server exited before ready: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("server never became ready")
	}

	conn, err := net.Dial("tcp", srv.Addr())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	busIDs := vb.GetAllDeviceMetas()
	if len(busIDs) != 1 {
		t.Fatalf("expected 1 exported device, got %d", len(busIDs))
	}
	busID := string(busIDs[0].Meta.USBBusId[:])
	for i, b := range busIDs[0].Meta.USBBusId {
		if b == 0 {
			busID = string(busIDs[0].Meta.USBBusId[:i])
			break
		}
	}

	adapter, err := virtual.Dial(conn, busID, 1)
	if err != nil {
		t.Fatalf("virtual.Dial: %v", err)
	}
	defer adapter.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	mounts, reports, _, err := adapter.Run(ctx)
	if err != nil {
		t.Fatalf("adapter.Run: %v", err)
	}

	select {
	case m := <-mounts:
		if m.VID != 0x1234 || m.PID != 0xABCD {
			t.Fatalf("mount mismatch: %+v", m)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for mount")
	}

	select {
	case ev := <-reports:
		if len(ev.Report) != 8 || ev.Report[0] != 1 {
			t.Fatalf("unexpected report: %v", ev.Report)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for report")
	}
}

// TestServerServesDualShock4OverRawEndpoint4 exercises device/dualshock4
// through usbhost/usbipserver's real URB dispatch, on its actual
// interrupt-IN endpoint (4). usbhost/virtual.Adapter only ever polls
// endpoint 1, so this speaks the usbip CMD_SUBMIT/RET_SUBMIT wire
// protocol directly rather than going through that adapter.
func TestServerServesDualShock4OverRawEndpoint4(t *testing.T) {
	vb := virtualbus.New()
	ds4dev, err := dualshock4.New(nil)
	if err != nil {
		t.Fatalf("dualshock4.New: %v", err)
	}
	if _, err := vb.Add(ds4dev); err != nil {
		t.Fatalf("vb.Add: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	srv := New(Config{Addr: "127.0.0.1:0", ConnectionTimeout: 5 * time.Second, BusCleanupTimeout: time.Second}, logger, nil)
	if err := srv.AddBus(vb); err != nil {
		t.Fatalf("AddBus: %v", err)
	}
	defer srv.Close()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-srv.Ready():
	case err := <-errCh:
		t.Fatalf("server exited before ready: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("server never became ready")
	}

	conn, err := net.Dial("tcp", srv.Addr())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	busIDs := vb.GetAllDeviceMetas()
	if len(busIDs) != 1 {
		t.Fatalf("expected 1 exported device, got %d", len(busIDs))
	}
	busID := string(busIDs[0].Meta.USBBusId[:])
	for i, b := range busIDs[0].Meta.USBBusId {
		if b == 0 {
			busID = string(busIDs[0].Meta.USBBusId[:i])
			break
		}
	}

	hdr := usbip.MgmtHeader{Version: usbip.Version, Command: usbip.OpReqImport}
	if err := hdr.Write(conn); err != nil {
		t.Fatalf("import request: %v", err)
	}
	var busIDBuf [32]byte
	copy(busIDBuf[:], busID)
	if _, err := conn.Write(busIDBuf[:]); err != nil {
		t.Fatalf("import busid: %v", err)
	}

	r := bufio.NewReader(conn)
	var replyHdr [8]byte
	if err := usbip.ReadExactly(r, replyHdr[:]); err != nil {
		t.Fatalf("import reply header: %v", err)
	}
	if status := binary.BigEndian.Uint32(replyHdr[4:8]); status != 0 {
		t.Fatalf("import rejected: status %d", status)
	}
	// OP_REP_IMPORT device entry, per usbip.ExportedDevice.WriteImport:
	// Path[256] USBBusId[32] BusId(4) DevId(4) Speed(4) IDVendor(2)
	// IDProduct(2) BcdDevice(2) then 6 class/config bytes.
	var meta [256 + 32 + 4 + 4 + 4 + 2 + 2 + 2 + 6]byte
	if err := usbip.ReadExactly(r, meta[:]); err != nil {
		t.Fatalf("import device entry: %v", err)
	}

	cmd := usbip.CmdSubmit{
		Basic: usbip.HeaderBasic{
			Command: usbip.CmdSubmitCode,
			Seqnum:  1,
			Devid:   1,
			Dir:     usbip.DirIn,
			Ep:      4,
		},
		TransferBufferLen: 64,
	}
	if err := cmd.Write(conn); err != nil {
		t.Fatalf("cmd submit: %v", err)
	}

	// RetSubmit header: HeaderBasic (5 uint32) + Status + ActualLength +
	// StartFrame + NumberOfPackets + ErrorCount (5 uint32) + 8 bytes pad.
	var retHdr [48]byte
	if err := usbip.ReadExactly(r, retHdr[:]); err != nil {
		t.Fatalf("ret submit header: %v", err)
	}
	actualLen := binary.BigEndian.Uint32(retHdr[24:28])
	payload := make([]byte, actualLen)
	if actualLen > 0 {
		if err := usbip.ReadExactly(r, payload); err != nil {
			t.Fatalf("ret submit payload: %v", err)
		}
	}

	if len(payload) == 0 {
		t.Fatal("expected a non-empty DualShock4 input report on endpoint 4")
	}
	if payload[0] != 0x01 {
		t.Fatalf("expected report ID 0x01, got 0x%02X", payload[0])
	}
}
