package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/schema"
)

const stopTestSymbol = schema.VTSymbol("BTCUSDT.BINANCE")

func buyStopReq(volume int64) schema.OrderRequest {
	return schema.OrderRequest{
		VTSymbol:  stopTestSymbol,
		Direction: schema.DirectionLong,
		Offset:    schema.OffsetOpen,
		Price:     101,
		Volume:    volume,
	}
}

func TestStopOrderTriggersOnce(t *testing.T) {
	c := newStopOrderCenter()
	so := c.Add("s1", buyStopReq(1), 101)
	assert.Equal(t, "STOP.1", so.StopOrderID)
	assert.Equal(t, schema.StopOrderStatusWaiting, so.Status)

	// Below the trigger: nothing fires.
	assert.Empty(t, c.CrossPrice(stopTestSymbol, 99))
	assert.Empty(t, c.CrossPrice(stopTestSymbol, 100.99))

	// First crossing price fires exactly one transition.
	fired := c.CrossPrice(stopTestSymbol, 101)
	require.Len(t, fired, 1)
	assert.Equal(t, schema.StopOrderStatusTriggered, fired[0].Status)

	// Later prices past the trigger must not re-fire.
	assert.Empty(t, c.CrossPrice(stopTestSymbol, 102))

	got, ok := c.Get(so.StopOrderID)
	require.True(t, ok)
	assert.Equal(t, schema.StopOrderStatusTriggered, got.Status)
}

func TestStopOrderSellTriggersAtOrBelow(t *testing.T) {
	c := newStopOrderCenter()
	req := buyStopReq(1)
	req.Direction = schema.DirectionShort
	c.Add("s1", req, 95)

	assert.Empty(t, c.CrossPrice(stopTestSymbol, 95.01))
	fired := c.CrossPrice(stopTestSymbol, 95)
	require.Len(t, fired, 1)
	assert.Equal(t, schema.StopOrderStatusTriggered, fired[0].Status)
}

func TestStopOrderIgnoresOtherInstruments(t *testing.T) {
	c := newStopOrderCenter()
	c.Add("s1", buyStopReq(1), 101)
	assert.Empty(t, c.CrossPrice("ETHUSDT.BINANCE", 9999))
}

func TestStopOrderCancel(t *testing.T) {
	c := newStopOrderCenter()
	so := c.Add("s1", buyStopReq(1), 101)

	// A foreign strategy cannot cancel it.
	_, ok := c.Cancel("s2", so.StopOrderID, "x")
	assert.False(t, ok)

	cancelled, ok := c.Cancel("s1", so.StopOrderID, "mind changed")
	require.True(t, ok)
	assert.Equal(t, schema.StopOrderStatusCancelled, cancelled.Status)
	assert.Equal(t, "mind changed", cancelled.Reason)

	// Terminal states are final: no re-cancel, no trigger.
	_, ok = c.Cancel("s1", so.StopOrderID, "again")
	assert.False(t, ok)
	assert.Empty(t, c.CrossPrice(stopTestSymbol, 500))

	_, ok = c.Cancel("s1", "STOP.404", "unknown")
	assert.False(t, ok)
}

func TestStopOrderCancelByStrategy(t *testing.T) {
	c := newStopOrderCenter()
	c.Add("s1", buyStopReq(1), 101)
	c.Add("s1", buyStopReq(2), 102)
	c.Add("s2", buyStopReq(3), 103)
	triggered := c.Add("s1", buyStopReq(4), 90)
	require.Len(t, c.CrossPrice(stopTestSymbol, 90), 1)

	cancelled := c.CancelByStrategy("s1", "strategy stopped")
	assert.Len(t, cancelled, 2, "waiting orders of s1 only")
	for _, so := range cancelled {
		assert.Equal(t, schema.StopOrderStatusCancelled, so.Status)
		assert.NotEqual(t, triggered.StopOrderID, so.StopOrderID)
	}
	assert.Len(t, c.WaitingByStrategy("s2"), 1)
	assert.Empty(t, c.WaitingByStrategy("s1"))
}

func TestStopOrderRecordsSpawnedIDs(t *testing.T) {
	c := newStopOrderCenter()
	so := c.Add("s1", buyStopReq(1), 101)
	require.Len(t, c.CrossPrice(stopTestSymbol, 101), 1)

	updated, ok := c.RecordOrderIDs(so.StopOrderID, []string{"SIM.1", "SIM.2"})
	require.True(t, ok)
	assert.Equal(t, []string{"SIM.1", "SIM.2"}, updated.VTOrderIDs)

	_, ok = c.RecordOrderIDs("STOP.404", []string{"SIM.3"})
	assert.False(t, ok)
}

func TestStopOrderIDsAreSequential(t *testing.T) {
	c := newStopOrderCenter()
	a := c.Add("s1", buyStopReq(1), 1)
	b := c.Add("s1", buyStopReq(1), 2)
	assert.Equal(t, "STOP.1", a.StopOrderID)
	assert.Equal(t, "STOP.2", b.StopOrderID)
}
