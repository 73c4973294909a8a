package engine

import (
	"fmt"
	"sync"
	"time"

	"main/internal/schema"
)

// Gateway is the order-routing transport. Implementations report lifecycle
// progress through the callbacks registered with OnOrder/OnTrade.
type Gateway interface {
	SendOrder(req schema.OrderRequest) ([]string, error)
	CancelOrder(vtOrderID string) error
}

// SimGatewayConfig controls the simulated gateway.
type SimGatewayConfig struct {
	Session string

	// RejectOrders makes every submission come back rejected, for failure
	// path testing.
	RejectOrders bool
}

// SimGateway is an in-process venue stand-in: it acknowledges submissions,
// fills them on demand and keeps a net position per instrument so that
// net-routing requests can split into close+open child orders.
type SimGateway struct {
	cfg SimGatewayConfig

	mu      sync.Mutex
	counter uint64
	orders  map[string]*simOrder
	netPos  map[schema.VTSymbol]int64

	onOrder func(schema.OrderData)
	onTrade func(schema.TradeData)
	tradeID uint64
}

type simOrder struct {
	id     string
	req    schema.OrderRequest
	traded int64
	status schema.OrderStatus
}

// NewSimGateway creates a simulated gateway.
func NewSimGateway(cfg SimGatewayConfig) *SimGateway {
	if cfg.Session == "" {
		cfg.Session = "SIM"
	}
	return &SimGateway{
		cfg:    cfg,
		orders: make(map[string]*simOrder),
		netPos: make(map[schema.VTSymbol]int64),
	}
}

// OnOrder registers the order status callback sink.
func (g *SimGateway) OnOrder(fn func(schema.OrderData)) { g.onOrder = fn }

// OnTrade registers the fill callback sink.
func (g *SimGateway) OnTrade(fn func(schema.TradeData)) { g.onTrade = fn }

// SendOrder accepts a request and returns the generated order ids. A net
// request against opposite exposure splits into a closing child and an
// opening child for the remainder.
func (g *SimGateway) SendOrder(req schema.OrderRequest) ([]string, error) {
	if req.Volume <= 0 {
		return nil, fmt.Errorf("volume must be > 0")
	}
	if req.Direction != schema.DirectionLong && req.Direction != schema.DirectionShort {
		return nil, fmt.Errorf("unknown direction")
	}

	children := g.split(req)

	g.mu.Lock()
	ids := make([]string, 0, len(children))
	acks := make([]schema.OrderData, 0, len(children))
	for _, child := range children {
		g.counter++
		id := fmt.Sprintf("%s.%d", g.cfg.Session, g.counter)
		status := schema.OrderStatusNotTraded
		reason := ""
		if g.cfg.RejectOrders {
			status = schema.OrderStatusRejected
			reason = "rejected by sim gateway"
		}
		o := &simOrder{id: id, req: child, status: status}
		g.orders[id] = o
		ids = append(ids, id)
		acks = append(acks, g.orderData(o, reason))
	}
	g.mu.Unlock()

	for _, ack := range acks {
		g.emitOrder(ack)
	}
	return ids, nil
}

// CancelOrder moves a live order to cancelled. Unknown or terminal ids are
// ignored.
func (g *SimGateway) CancelOrder(vtOrderID string) error {
	g.mu.Lock()
	o, ok := g.orders[vtOrderID]
	if !ok || !o.status.IsActive() {
		g.mu.Unlock()
		return nil
	}
	o.status = schema.OrderStatusCancelled
	ack := g.orderData(o, "cancelled")
	g.mu.Unlock()

	g.emitOrder(ack)
	return nil
}

// Fill executes volume against a live order at the given price, emitting the
// trade and the resulting order status. Zero price fills at the order price.
func (g *SimGateway) Fill(vtOrderID string, volume int64, price float64) error {
	g.mu.Lock()
	o, ok := g.orders[vtOrderID]
	if !ok {
		g.mu.Unlock()
		return fmt.Errorf("order not found: %s", vtOrderID)
	}
	if !o.status.IsActive() {
		g.mu.Unlock()
		return fmt.Errorf("order not active: %s", vtOrderID)
	}
	left := o.req.Volume - o.traded
	if volume <= 0 || volume > left {
		g.mu.Unlock()
		return fmt.Errorf("invalid fill volume: %d (left %d)", volume, left)
	}
	if price == 0 {
		price = o.req.Price
	}
	o.traded += volume
	if o.traded == o.req.Volume {
		o.status = schema.OrderStatusAllTraded
	} else {
		o.status = schema.OrderStatusPartTraded
	}

	signed := volume
	if o.req.Direction == schema.DirectionShort {
		signed = -volume
	}
	g.netPos[o.req.VTSymbol] += signed

	g.tradeID++
	symbol, exchange := o.req.VTSymbol.Split()
	trade := schema.TradeData{
		Symbol:    symbol,
		Exchange:  exchange,
		VTOrderID: o.id,
		TradeID:   fmt.Sprintf("%s.T%d", g.cfg.Session, g.tradeID),
		Direction: o.req.Direction,
		Offset:    o.req.Offset,
		Price:     price,
		Volume:    volume,
		Datetime:  time.Now().UTC(),
	}
	ack := g.orderData(o, "")
	g.mu.Unlock()

	g.emitTrade(trade)
	g.emitOrder(ack)
	return nil
}

// FillAll fully executes every live order at its limit price.
func (g *SimGateway) FillAll() {
	g.mu.Lock()
	pending := make([]*simOrder, 0, len(g.orders))
	for _, o := range g.orders {
		if o.status.IsActive() {
			pending = append(pending, o)
		}
	}
	g.mu.Unlock()

	for _, o := range pending {
		_ = g.Fill(o.id, o.req.Volume-o.traded, 0)
	}
}

// NetPosition returns the gateway's own net exposure for an instrument.
func (g *SimGateway) NetPosition(vtSymbol schema.VTSymbol) int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.netPos[vtSymbol]
}

func (g *SimGateway) split(req schema.OrderRequest) []schema.OrderRequest {
	if !req.Net {
		return []schema.OrderRequest{req}
	}

	g.mu.Lock()
	pos := g.netPos[req.VTSymbol]
	g.mu.Unlock()

	opposite := (req.Direction == schema.DirectionLong && pos < 0) ||
		(req.Direction == schema.DirectionShort && pos > 0)
	if !opposite {
		return []schema.OrderRequest{req}
	}

	held := pos
	if held < 0 {
		held = -held
	}
	if req.Volume <= held {
		child := req
		child.Offset = schema.OffsetClose
		return []schema.OrderRequest{child}
	}

	closing := req
	closing.Offset = schema.OffsetClose
	closing.Volume = held
	opening := req
	opening.Offset = schema.OffsetOpen
	opening.Volume = req.Volume - held
	return []schema.OrderRequest{closing, opening}
}

func (g *SimGateway) orderData(o *simOrder, reason string) schema.OrderData {
	symbol, exchange := o.req.VTSymbol.Split()
	return schema.OrderData{
		Symbol:    symbol,
		Exchange:  exchange,
		VTOrderID: o.id,
		Direction: o.req.Direction,
		Offset:    o.req.Offset,
		Price:     o.req.Price,
		Volume:    o.req.Volume,
		Traded:    o.traded,
		Status:    o.status,
		Reason:    reason,
		Datetime:  time.Now().UTC(),
	}
}

func (g *SimGateway) emitOrder(order schema.OrderData) {
	if g.onOrder != nil {
		g.onOrder(order)
	}
}

func (g *SimGateway) emitTrade(trade schema.TradeData) {
	if g.onTrade != nil {
		g.onTrade(trade)
	}
}
