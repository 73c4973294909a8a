package strategy

import "main/internal/schema"

// Engine is the capability surface an Instance consumes from the surrounding
// order-routing engine. Commands are keyed by the owning strategy name so the
// engine can attribute orders, logs and events.
//
// SendOrder and CancelOrder may block on transport I/O; implementations must
// not require any lock their callback dispatch path holds while a strategy
// hook is running, because every method here is called from inside hooks.
type Engine interface {
	// SendOrder routes a new order and returns the ids the engine will track.
	// One request may split into several child orders (net-position flips),
	// so zero or more ids come back.
	SendOrder(strategyName string, req schema.OrderRequest) []string

	// CancelOrder asks the engine to cancel a live order. Cancelling an
	// unknown or already-terminal id is a no-op.
	CancelOrder(strategyName string, vtOrderID string)

	// SendStopOrder registers a locally simulated conditional order and
	// returns it in Waiting status.
	SendStopOrder(strategyName string, req schema.OrderRequest, triggerPrice float64) (schema.StopOrder, bool)

	// CancelStopOrder cancels a Waiting stop order and returns the
	// Cancelled copy. False when the id is unknown, foreign or terminal.
	CancelStopOrder(strategyName string, stopOrderID string) (schema.StopOrder, bool)

	// PriceTick returns the minimum price increment of a contract.
	PriceTick(vtSymbol schema.VTSymbol) float64

	// ContractSize returns the contract multiplier.
	ContractSize(vtSymbol schema.VTSymbol) int64

	// LoadBars returns historical bars for the instruments, grouped per
	// timestamp in ascending order, ready for replay through OnBars.
	LoadBars(vtSymbols []schema.VTSymbol, days int, interval schema.Interval) []map[schema.VTSymbol]schema.BarData

	// WriteLog records a strategy-attributed log line. Fire and forget.
	WriteLog(strategyName string, msg string)

	// PutStrategyEvent publishes a strategy data snapshot to observers.
	PutStrategyEvent(data Data)

	// SyncStrategyData persists a strategy data snapshot.
	SyncStrategyData(data Data)
}
