package engine

import (
	"fmt"
	"sync"
	"time"

	"main/internal/schema"
)

// stopOrderCenter holds locally simulated conditional orders. Status
// transitions are check-and-set under one lock so a stop order can never
// trigger twice, even with market data arriving from multiple feeds.
type stopOrderCenter struct {
	mu      sync.Mutex
	counter uint64
	orders  map[string]*schema.StopOrder
}

func newStopOrderCenter() *stopOrderCenter {
	return &stopOrderCenter{orders: make(map[string]*schema.StopOrder)}
}

// Add registers a new stop order in Waiting status and returns a copy.
func (c *stopOrderCenter) Add(strategyName string, req schema.OrderRequest, triggerPrice float64) schema.StopOrder {
	symbol, exchange := req.VTSymbol.Split()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.counter++
	so := &schema.StopOrder{
		Symbol:       symbol,
		Exchange:     exchange,
		Direction:    req.Direction,
		Offset:       req.Offset,
		TriggerPrice: triggerPrice,
		Volume:       req.Volume,
		StopOrderID:  fmt.Sprintf("%s.%d", schema.StopOrderPrefix, c.counter),
		StrategyName: strategyName,
		Datetime:     time.Now().UTC(),
		Status:       schema.StopOrderStatusWaiting,
		Lock:         req.Lock,
		Net:          req.Net,
	}
	c.orders[so.StopOrderID] = so
	return *so
}

// Cancel transitions one Waiting stop order to Cancelled. It returns false
// when the id is unknown, owned by another strategy, or already terminal.
func (c *stopOrderCenter) Cancel(strategyName, stopOrderID, reason string) (schema.StopOrder, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	so, ok := c.orders[stopOrderID]
	if !ok || so.StrategyName != strategyName || so.Status != schema.StopOrderStatusWaiting {
		return schema.StopOrder{}, false
	}
	so.Status = schema.StopOrderStatusCancelled
	so.Reason = reason
	return *so, true
}

// CancelByStrategy cancels every Waiting stop order of one strategy and
// returns the cancelled copies.
func (c *stopOrderCenter) CancelByStrategy(strategyName, reason string) []schema.StopOrder {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []schema.StopOrder
	for _, so := range c.orders {
		if so.StrategyName != strategyName || so.Status != schema.StopOrderStatusWaiting {
			continue
		}
		so.Status = schema.StopOrderStatusCancelled
		so.Reason = reason
		out = append(out, *so)
	}
	return out
}

// CrossPrice transitions every Waiting stop order on the instrument whose
// trigger condition the price satisfies to Triggered, and returns the
// triggered copies. The flip happens under the lock; real order emission is
// the caller's follow-up.
func (c *stopOrderCenter) CrossPrice(vtSymbol schema.VTSymbol, price float64) []schema.StopOrder {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []schema.StopOrder
	for _, so := range c.orders {
		if so.Status != schema.StopOrderStatusWaiting || so.VTSymbol() != vtSymbol {
			continue
		}
		if !so.Crossed(price) {
			continue
		}
		so.Status = schema.StopOrderStatusTriggered
		so.Reason = fmt.Sprintf("triggered at %v", price)
		out = append(out, *so)
	}
	return out
}

// RecordOrderIDs attaches the spawned real order ids to a triggered stop
// order and returns the updated copy.
func (c *stopOrderCenter) RecordOrderIDs(stopOrderID string, vtOrderIDs []string) (schema.StopOrder, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	so, ok := c.orders[stopOrderID]
	if !ok {
		return schema.StopOrder{}, false
	}
	so.VTOrderIDs = append(so.VTOrderIDs, vtOrderIDs...)
	return *so, true
}

// Get returns a copy of one stop order.
func (c *stopOrderCenter) Get(stopOrderID string) (schema.StopOrder, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	so, ok := c.orders[stopOrderID]
	if !ok {
		return schema.StopOrder{}, false
	}
	return *so, true
}

// WaitingByStrategy returns copies of one strategy's Waiting stop orders.
func (c *stopOrderCenter) WaitingByStrategy(strategyName string) []schema.StopOrder {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []schema.StopOrder
	for _, so := range c.orders {
		if so.StrategyName == strategyName && so.Status == schema.StopOrderStatusWaiting {
			out = append(out, *so)
		}
	}
	return out
}
