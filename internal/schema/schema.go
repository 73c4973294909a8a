package schema

import "strings"

// Exchange identifies the venue half of an instrument key.
type Exchange string

const (
	ExchangeBinance Exchange = "BINANCE"
	ExchangeOKX     Exchange = "OKX"
	ExchangeBybit   Exchange = "BYBIT"
	ExchangeLocal   Exchange = "LOCAL"
)

// VTSymbol is the globally unique instrument key: "SYMBOL.EXCHANGE".
type VTSymbol string

// MakeVTSymbol joins a trading symbol and an exchange into an instrument key.
func MakeVTSymbol(symbol string, exchange Exchange) VTSymbol {
	return VTSymbol(symbol + "." + string(exchange))
}

// Split breaks an instrument key into its symbol and exchange parts.
// The exchange is everything after the last dot, so symbols may contain dots.
func (vt VTSymbol) Split() (symbol string, exchange Exchange) {
	s := string(vt)
	i := strings.LastIndexByte(s, '.')
	if i < 0 {
		return s, ""
	}
	return s[:i], Exchange(s[i+1:])
}

// Direction is the side of an order or trade.
type Direction uint16

const (
	DirectionUnknown Direction = iota
	DirectionLong
	DirectionShort
)

func (d Direction) String() string {
	switch d {
	case DirectionLong:
		return "long"
	case DirectionShort:
		return "short"
	default:
		return "unknown"
	}
}

// Offset describes whether an order opens or closes position.
type Offset uint16

const (
	OffsetUnknown Offset = iota
	OffsetOpen
	OffsetClose
)

func (o Offset) String() string {
	switch o {
	case OffsetOpen:
		return "open"
	case OffsetClose:
		return "close"
	default:
		return "unknown"
	}
}

// OrderStatus is the engine's view of an order lifecycle stage.
type OrderStatus uint16

const (
	OrderStatusUnknown OrderStatus = iota
	OrderStatusSubmitting
	OrderStatusNotTraded
	OrderStatusPartTraded
	OrderStatusAllTraded
	OrderStatusCancelled
	OrderStatusRejected
)

// IsActive reports whether the status is non-terminal.
func (s OrderStatus) IsActive() bool {
	switch s {
	case OrderStatusSubmitting, OrderStatusNotTraded, OrderStatusPartTraded:
		return true
	default:
		return false
	}
}

func (s OrderStatus) String() string {
	switch s {
	case OrderStatusSubmitting:
		return "submitting"
	case OrderStatusNotTraded:
		return "not_traded"
	case OrderStatusPartTraded:
		return "part_traded"
	case OrderStatusAllTraded:
		return "all_traded"
	case OrderStatusCancelled:
		return "cancelled"
	case OrderStatusRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Interval is a bar aggregation period.
type Interval uint16

const (
	IntervalUnknown Interval = iota
	IntervalMinute
	IntervalHour
	IntervalDaily
)

// ParseInterval is the inverse of Interval.String.
func ParseInterval(s string) Interval {
	switch s {
	case "1m":
		return IntervalMinute
	case "1h":
		return IntervalHour
	case "1d":
		return IntervalDaily
	default:
		return IntervalUnknown
	}
}

func (i Interval) String() string {
	switch i {
	case IntervalMinute:
		return "1m"
	case IntervalHour:
		return "1h"
	case IntervalDaily:
		return "1d"
	default:
		return "unknown"
	}
}
