package uart

import (
	"net"
	"testing"

	"github.com/usbretro/usbretro/canonical"
)

func TestSinkSourceRoundTripPlaintext(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	sink, err := Dial(client, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	source, err := Listen(server, nil)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	want := canonical.Event{DevAddr: 3, Instance: 1, Type: canonical.TypeGamepad, Buttons: canonical.ButtonB1 | canonical.ButtonUp}

	done := make(chan error, 1)
	go func() { done <- sink.Send(&want) }()

	got, err := source.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("Send: %v", err)
	}

	if got.DevAddr != want.DevAddr || got.Buttons != want.Buttons || got.Instance != want.Instance {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, want)
	}
}

func TestSinkSourceRoundTripEncrypted(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}

	sink, err := Dial(client, key)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	source, err := Listen(server, key)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	want := canonical.Event{DevAddr: 7, Buttons: canonical.ButtonStart}

	done := make(chan error, 1)
	go func() { done <- sink.Send(&want) }()

	got, err := source.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("Send: %v", err)
	}

	if got.DevAddr != want.DevAddr || got.Buttons != want.Buttons {
		t.Fatalf("encrypted round trip mismatch: got %+v want %+v", got, want)
	}
}

func TestListenRejectsMismatchedKey(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	sendKey := make([]byte, 32)
	recvKey := make([]byte, 32)
	recvKey[0] = 0xFF

	sink, err := Dial(client, sendKey)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	source, err := Listen(server, recvKey)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	ev := canonical.Event{DevAddr: 1}
	go sink.Send(&ev)

	if _, err := source.Recv(); err == nil {
		t.Fatalf("expected auth failure with mismatched session key")
	}
}
