package schema

import "time"

// TickData is a level-1 market data snapshot for one instrument.
type TickData struct {
	Symbol    string
	Exchange  Exchange
	Datetime  time.Time
	LastPrice float64
	LastQty   int64
	BidPrice  float64
	BidQty    int64
	AskPrice  float64
	AskQty    int64
}

// VTSymbol returns the instrument key of the tick.
func (t TickData) VTSymbol() VTSymbol {
	return MakeVTSymbol(t.Symbol, t.Exchange)
}

// BarData is one OHLCV candle for one instrument.
type BarData struct {
	Symbol   string
	Exchange Exchange
	Datetime time.Time
	Interval Interval
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   int64
	Turnover float64
}

// VTSymbol returns the instrument key of the bar.
func (b BarData) VTSymbol() VTSymbol {
	return MakeVTSymbol(b.Symbol, b.Exchange)
}

// OrderData is an order status callback payload from the routing engine.
type OrderData struct {
	Symbol    string
	Exchange  Exchange
	VTOrderID string
	Direction Direction
	Offset    Offset
	Price     float64
	Volume    int64
	Traded    int64
	Status    OrderStatus
	Reason    string
	Datetime  time.Time
}

// VTSymbol returns the instrument key of the order.
func (o OrderData) VTSymbol() VTSymbol {
	return MakeVTSymbol(o.Symbol, o.Exchange)
}

// IsActive reports whether the order still counts against the active set.
func (o OrderData) IsActive() bool {
	return o.Status.IsActive()
}

// TradeData is a fill callback payload from the routing engine.
type TradeData struct {
	Symbol    string
	Exchange  Exchange
	VTOrderID string
	TradeID   string
	Direction Direction
	Offset    Offset
	Price     float64
	Volume    int64
	Datetime  time.Time
}

// VTSymbol returns the instrument key of the trade.
func (t TradeData) VTSymbol() VTSymbol {
	return MakeVTSymbol(t.Symbol, t.Exchange)
}

// SignedVolume is the position delta of the fill: long adds, short subtracts.
func (t TradeData) SignedVolume() int64 {
	if t.Direction == DirectionShort {
		return -t.Volume
	}
	return t.Volume
}

// OrderRequest is a new-order command sent from a strategy to the engine.
type OrderRequest struct {
	VTSymbol  VTSymbol
	Direction Direction
	Offset    Offset
	Price     float64
	Volume    int64

	// Lock requests position-locked routing; Net requests net-position
	// routing, which may split one request into several child orders.
	Lock bool
	Net  bool
}
