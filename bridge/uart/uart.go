// Package uart implements the bridge output target: canonical events are
// marshaled to their fixed-size wire form and written across a net.Conn
// (a real UART, or TCP for test harnesses), optionally wrapped in an
// authenticated, encrypted session.
//
// The session framing (length-prefixed nonce+ciphertext) is carried over
// directly from the teacher's own api/auth.Conn; canonical events take
// the place of that package's JSON-RPC frames.
package uart

import (
	"bytes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/usbretro/usbretro/canonical"
)

const maxPacketSize = 64 * 1024

// secureConn wraps a net.Conn with chacha20poly1305-AEAD framing: each
// Write is one sealed record, length-prefixed as
// uint32(len(nonce)+len(ciphertext)).
type secureConn struct {
	net.Conn
	aead    cipher.AEAD
	sendCtr uint64
	recvBuf bytes.Buffer
	mu      sync.Mutex
}

// wrapSecure derives an AEAD from sessionKey and wraps conn so every
// subsequent Write/Read is authenticated and encrypted.
func wrapSecure(conn net.Conn, sessionKey []byte) (net.Conn, error) {
	aead, err := chacha20poly1305.New(sessionKey)
	if err != nil {
		return nil, err
	}
	return &secureConn{Conn: conn, aead: aead}, nil
}

func (s *secureConn) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nonce := make([]byte, 12)
	binary.BigEndian.PutUint64(nonce[4:], s.sendCtr)
	s.sendCtr++

	ct := s.aead.Seal(nil, nonce, p, nil)
	length := uint32(len(nonce) + len(ct))

	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], length)

	if i, err := s.Conn.Write(hdr[:]); err != nil {
		return i, err
	}
	if i, err := s.Conn.Write(nonce); err != nil {
		return i, err
	}
	if i, err := s.Conn.Write(ct); err != nil {
		return i, err
	}
	return len(p), nil
}

func (s *secureConn) Read(p []byte) (int, error) {
	if s.recvBuf.Len() == 0 {
		var hdr [4]byte
		if _, err := io.ReadFull(s.Conn, hdr[:]); err != nil {
			return 0, err
		}
		length := binary.BigEndian.Uint32(hdr[:])
		if length > maxPacketSize {
			return 0, io.ErrUnexpectedEOF
		}

		pkt := make([]byte, length)
		if _, err := io.ReadFull(s.Conn, pkt); err != nil {
			return 0, err
		}

		nonce := pkt[:12]
		ct := pkt[12:]
		pt, err := s.aead.Open(nil, nonce, ct, nil)
		if err != nil {
			return 0, err
		}
		s.recvBuf.Write(pt)
	}
	return s.recvBuf.Read(p)
}

// Sink is the bridge output target: it writes one canonical.Event per
// call to Send, optionally over an encrypted session.
type Sink struct {
	conn net.Conn
	mu   sync.Mutex
}

// Dial opens conn as a bridge output, wrapping it in an encrypted
// session when sessionKey is non-nil. A nil sessionKey sends plaintext
// wire frames, for a bench UART with no authentication requirement.
func Dial(conn net.Conn, sessionKey []byte) (*Sink, error) {
	if sessionKey == nil {
		return &Sink{conn: conn}, nil
	}
	sc, err := wrapSecure(conn, sessionKey)
	if err != nil {
		return nil, fmt.Errorf("bridge session: %w", err)
	}
	return &Sink{conn: sc}, nil
}

// Send marshals ev and writes it to the bridge connection.
func (s *Sink) Send(ev *canonical.Event) error {
	b, err := ev.MarshalBinary()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.conn.Write(b)
	return err
}

// Close releases the underlying connection.
func (s *Sink) Close() error {
	return s.conn.Close()
}

// Source reads canonical events off a bridge connection, the receiving
// half used by integration tests that assert on what a Sink produced.
type Source struct {
	conn net.Conn
	buf  [canonical.WireSize]byte
}

// Listen wraps conn as a bridge input, mirroring Dial's session wrapping.
func Listen(conn net.Conn, sessionKey []byte) (*Source, error) {
	if sessionKey == nil {
		return &Source{conn: conn}, nil
	}
	sc, err := wrapSecure(conn, sessionKey)
	if err != nil {
		return nil, fmt.Errorf("bridge session: %w", err)
	}
	return &Source{conn: sc}, nil
}

// Recv blocks for the next canonical event off the wire.
func (s *Source) Recv() (canonical.Event, error) {
	var ev canonical.Event
	if _, err := io.ReadFull(s.conn, s.buf[:]); err != nil {
		return ev, err
	}
	if err := ev.UnmarshalBinary(s.buf[:]); err != nil {
		return ev, err
	}
	return ev, nil
}

// Close releases the underlying connection.
func (s *Source) Close() error {
	return s.conn.Close()
}
