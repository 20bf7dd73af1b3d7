package router_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usbretro/usbretro/canonical"
	"github.com/usbretro/usbretro/router"
)

func TestSubmitAllocatesSmallestFreeSlot(t *testing.T) {
	r := router.New()
	r.AddTarget("native", router.ModeDirect)

	r.Submit(1, 0, canonical.Event{Buttons: canonical.ButtonB1})
	r.Submit(2, 0, canonical.Event{Buttons: canonical.ButtonB2})

	require.Equal(t, 0, r.Players().FindPlayerIndex(1, 0))
	require.Equal(t, 1, r.Players().FindPlayerIndex(2, 0))

	ev0 := r.Output("native", 0)
	require.NotNil(t, ev0)
	assert.Equal(t, canonical.ButtonB1, ev0.Buttons)

	ev1 := r.Output("native", 1)
	require.NotNil(t, ev1)
	assert.Equal(t, canonical.ButtonB2, ev1.Buttons)
}

func TestSubmitReusesSlotAfterSameDeviceReports(t *testing.T) {
	r := router.New()
	r.AddTarget("native", router.ModeDirect)

	r.Submit(5, 0, canonical.Event{Buttons: canonical.ButtonUp})
	r.Submit(5, 0, canonical.Event{Buttons: canonical.ButtonDown})

	assert.Equal(t, 1, r.Players().Count())
	ev := r.Output("native", 0)
	require.NotNil(t, ev)
	assert.Equal(t, canonical.ButtonDown, ev.Buttons)
}

func TestSubmitMergeRootOrsButtons(t *testing.T) {
	r := router.New()
	r.AddTarget("native", router.ModeDirect)

	r.Submit(7, 0, canonical.Event{Buttons: canonical.ButtonB1})
	r.Submit(7, canonical.MergeRoot, canonical.Event{Buttons: canonical.ButtonB2})

	ev := r.Output("native", 0)
	require.NotNil(t, ev)
	assert.Equal(t, canonical.ButtonB1|canonical.ButtonB2, ev.Buttons)
}

func TestSubmitBroadcastReachesEveryOutputSlot(t *testing.T) {
	r := router.New()
	r.AddTarget("native", router.ModeBroadcast)

	r.Submit(1, 0, canonical.Event{Buttons: canonical.ButtonStart})

	ev3 := r.Output("native", 3)
	require.NotNil(t, ev3)
	assert.Equal(t, canonical.ButtonStart, ev3.Buttons)
}

func TestSubmitTableMapsInputSlotToOutputSlot(t *testing.T) {
	r := router.New()
	r.AddTarget("bridge", router.ModeTable)
	r.SetMapping("bridge", 0, 3)

	r.Submit(1, 0, canonical.Event{Buttons: canonical.ButtonSelect})

	assert.Nil(t, r.Output("bridge", 0))
	ev := r.Output("bridge", 3)
	require.NotNil(t, ev)
	assert.Equal(t, canonical.ButtonSelect, ev.Buttons)
}

func TestRemovePlayersByAddressFreesSlot(t *testing.T) {
	r := router.New()
	r.AddTarget("native", router.ModeDirect)

	r.Submit(9, 0, canonical.Event{})
	require.Equal(t, 0, r.Players().FindPlayerIndex(9, 0))

	r.RemovePlayersByAddress(9)
	assert.Equal(t, -1, r.Players().FindPlayerIndex(9, 0))
	assert.Equal(t, 0, r.Players().Count())
}

func TestMouseAccumulatorConsumeResetsToZero(t *testing.T) {
	pm := router.NewPlayerManager()
	slot := pm.AddPlayer(1, 0)

	pm.AccumulateMouse(slot, 5, -3)
	pm.AccumulateMouse(slot, 2, -1)

	x, y := pm.ConsumeMouse(slot)
	assert.Equal(t, int32(7), x)
	assert.Equal(t, int32(-4), y)

	x, y = pm.ConsumeMouse(slot)
	assert.Zero(t, x)
	assert.Zero(t, y)
}
