package schema

import "time"

// StopOrderPrefix marks locally generated stop order ids.
const StopOrderPrefix = "STOP"

// StopOrderStatus is the lifecycle stage of a locally simulated stop order.
type StopOrderStatus uint16

const (
	StopOrderStatusUnknown StopOrderStatus = iota
	StopOrderStatusWaiting
	StopOrderStatusCancelled
	StopOrderStatusTriggered
)

func (s StopOrderStatus) String() string {
	switch s {
	case StopOrderStatusWaiting:
		return "waiting"
	case StopOrderStatusCancelled:
		return "cancelled"
	case StopOrderStatusTriggered:
		return "triggered"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further transition is allowed.
func (s StopOrderStatus) IsTerminal() bool {
	return s == StopOrderStatusCancelled || s == StopOrderStatusTriggered
}

// StopOrder is a conditional order held locally until its trigger price is
// crossed by incoming market data. It is never sent to the exchange itself;
// once triggered it spawns one or more real orders.
type StopOrder struct {
	Symbol       string
	Exchange     Exchange
	Direction    Direction
	Offset       Offset
	TriggerPrice float64
	Volume       int64
	StopOrderID  string
	StrategyName string
	Datetime     time.Time
	VTOrderIDs   []string
	Status       StopOrderStatus
	Reason       string

	Lock bool
	Net  bool
}

// VTSymbol returns the instrument key of the stop order.
func (s StopOrder) VTSymbol() VTSymbol {
	return MakeVTSymbol(s.Symbol, s.Exchange)
}

// Crossed reports whether the given price satisfies the trigger condition:
// buy stops fire at or above the trigger, sell stops at or below.
func (s StopOrder) Crossed(price float64) bool {
	switch s.Direction {
	case DirectionLong:
		return price >= s.TriggerPrice
	case DirectionShort:
		return price <= s.TriggerPrice
	default:
		return false
	}
}
