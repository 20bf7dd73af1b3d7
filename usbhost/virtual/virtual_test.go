package virtual

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/usbretro/usbretro/usbip"
)

// fakeServer plays the server half of the usbip protocol directly against
// the ExportedDevice/RetSubmit wire helpers, standing in for a real
// virtualbus-backed usbip listener in these adapter-level tests.
func fakeServer(t *testing.T, conn net.Conn, dev usbip.ExportedDevice, reports [][]byte) {
	t.Helper()
	go func() {
		var reqHdr [8]byte
		if err := usbip.ReadExactly(conn, reqHdr[:]); err != nil {
			return
		}
		var busIDBuf [32]byte
		if err := usbip.ReadExactly(conn, busIDBuf[:]); err != nil {
			return
		}

		replyHdr := usbip.MgmtHeader{Version: usbip.Version, Command: usbip.OpRepImport, Status: 0}
		if err := replyHdr.Write(conn); err != nil {
			return
		}
		if err := dev.WriteImport(conn); err != nil {
			return
		}

		for _, payload := range reports {
			var cmdHdr [48]byte
			if err := usbip.ReadExactly(conn, cmdHdr[:]); err != nil {
				return
			}
			ret := usbip.RetSubmit{
				Basic:        usbip.HeaderBasic{Command: usbip.RetSubmitCode},
				ActualLength: uint32(len(payload)),
			}
			if err := ret.Write(conn); err != nil {
				return
			}
			if len(payload) > 0 {
				if _, err := conn.Write(payload); err != nil {
					return
				}
			}
		}
	}()
}

func TestDialParsesImportReply(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	dev := usbip.ExportedDevice{
		ExportMeta: usbip.ExportMeta{BusId: 1, DevId: 1},
		Speed:      2,
		IDVendor:   0x054C,
		IDProduct:  0x05C4,
		BDeviceClass:    0x03,
		BDeviceSubClass: 0x00,
		BDeviceProtocol: 0x00,
	}
	fakeServer(t, server, dev, nil)

	adapter, err := Dial(client, "1-1", 3)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if adapter.vid != 0x054C || adapter.pid != 0x05C4 {
		t.Fatalf("vid/pid mismatch: got %04x/%04x", adapter.vid, adapter.pid)
	}
	if adapter.devAddr != 3 {
		t.Fatalf("devAddr mismatch: got %d", adapter.devAddr)
	}
}

func TestRunDeliversMountAndReports(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	dev := usbip.ExportedDevice{
		ExportMeta: usbip.ExportMeta{BusId: 1, DevId: 1},
		IDVendor:   0x054C,
		IDProduct:  0x05C4,
	}
	report := []byte{0x01, 0x7F, 0x7F, 0x7F, 0x7F, 0x08, 0x00, 0x00}
	fakeServer(t, server, dev, [][]byte{report})

	adapter, err := Dial(client, "1-1", 1)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	mounts, reports, _, err := adapter.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	select {
	case m := <-mounts:
		if m.VID != 0x054C || m.PID != 0x05C4 {
			t.Fatalf("mount event mismatch: %+v", m)
		}
		if m.Descriptor != nil {
			t.Fatalf("expected nil descriptor over the virtual adapter")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for mount event")
	}

	select {
	case ev := <-reports:
		if len(ev.Report) != len(report) {
			t.Fatalf("report length mismatch: got %d want %d", len(ev.Report), len(report))
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for report event")
	}
}
