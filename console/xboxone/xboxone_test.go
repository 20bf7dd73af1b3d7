package xboxone_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usbretro/usbretro/canonical"
	"github.com/usbretro/usbretro/console/xboxone"
	"github.com/usbretro/usbretro/router"
)

type loopback struct {
	bytes.Buffer
}

func TestBuildInputReportEncodesButtons(t *testing.T) {
	ev := &canonical.Event{Buttons: canonical.ButtonB1 | canonical.ButtonStart}
	report := xboxone.BuildInputReport(ev, 1)

	require.Len(t, report, xboxone.ReportLen)
	assert.NotZero(t, report[2]&0x04) // Menu bit
	assert.NotZero(t, report[2]&0x10) // A bit
}

func TestShouldAckFiresOnFirstAndEveryFifthChunk(t *testing.T) {
	assert.True(t, xboxone.ShouldAck(0))
	assert.False(t, xboxone.ShouldAck(1))
	assert.True(t, xboxone.ShouldAck(4))
	assert.True(t, xboxone.ShouldAck(9))
}

func TestRelayAuthChunkForwardsVerbatim(t *testing.T) {
	lb := &loopback{}
	s := xboxone.New()
	s.Dongle = lb

	lb.Write(make([]byte, 58))
	resp, err := s.RelayAuthChunk([]byte{0x06, 0x01, 0x02})
	require.NoError(t, err)
	assert.Len(t, resp, 58)
}

func TestRelayAuthChunkErrorsWithoutDongle(t *testing.T) {
	s := xboxone.New()
	_, err := s.RelayAuthChunk([]byte{0x06})
	assert.Error(t, err)
}

func TestGetDescriptorReportsXboxIdentity(t *testing.T) {
	s := xboxone.New()
	d := s.GetDescriptor()
	assert.Equal(t, uint16(0x0E6F), d.Device.IDVendor)
	assert.Equal(t, uint16(0x02A4), d.Device.IDProduct)
}

func TestHandleTransferBulkInReturnsCurrentReport(t *testing.T) {
	s := xboxone.New()
	s.Router = router.New()
	s.Router.AddTarget(router.Target("xboxone"), router.ModeDirect)

	report := s.HandleTransfer(2, 1, nil)
	require.Len(t, report, xboxone.ReportLen)
}

func TestHandleTransferBulkOutRelaysToDongle(t *testing.T) {
	lb := &loopback{}
	s := xboxone.New()
	s.Dongle = lb

	out := s.HandleTransfer(2, 0, []byte{0x06, 0x01})
	assert.Nil(t, out)
	assert.Equal(t, []byte{0x06, 0x01}, lb.Bytes())
}
