package strategy

import (
	"main/internal/errors"
	"main/internal/schema"
)

// Logic is the strategy extension point. The runtime invokes hooks after its
// own bookkeeping, so OnTrade observes updated position and OnOrder observes
// the already-shrunk active-order set. Embed NopLogic to get no-op defaults
// and override only what the trading idea needs.
type Logic interface {
	Declare() Declaration

	OnInit(s *Instance)
	OnStart(s *Instance)
	OnStop(s *Instance)
	OnTick(s *Instance, tick schema.TickData)
	OnBars(s *Instance, bars map[schema.VTSymbol]schema.BarData)
	OnTrade(s *Instance, trade schema.TradeData)
	OnOrder(s *Instance, order schema.OrderData)
	OnStopOrder(s *Instance, stopOrder schema.StopOrder)
}

// Declaration is the fixed schema of a strategy variant: its class name,
// author and the ordered parameter/variable descriptors the engine may read
// and write generically. Descriptors bind names to direct field access via
// closures, so there is no string-driven reflection at runtime.
type Declaration struct {
	Class      string
	Author     string
	Parameters []Parameter
	Variables  []Variable
}

// Parameter is a named, externally settable attribute. Default carries the
// class-level value readable without an instance; Set reports false when the
// supplied value has the wrong type.
type Parameter struct {
	Name    string
	Default any
	Get     func() any
	Set     func(v any) bool
}

// Variable is a named, read-only attribute exposed for monitoring.
type Variable struct {
	Name string
	Get  func() any
}

// Validate checks the declaration for empty or duplicate names and missing
// accessors. A broken schema would corrupt setting application, so instance
// construction fails fast on it.
func (d Declaration) Validate() error {
	if d.Class == "" {
		return errors.Config("strategy class name is empty")
	}
	seen := make(map[string]struct{}, len(d.Parameters)+len(d.Variables))
	for _, p := range d.Parameters {
		if p.Name == "" {
			return errors.Config("%s: parameter name is empty", d.Class)
		}
		if _, ok := seen[p.Name]; ok {
			return errors.Config("%s: duplicate parameter name: %s", d.Class, p.Name)
		}
		seen[p.Name] = struct{}{}
		if p.Get == nil || p.Set == nil {
			return errors.Config("%s: parameter %s is missing accessors", d.Class, p.Name)
		}
	}
	for _, v := range d.Variables {
		if v.Name == "" {
			return errors.Config("%s: variable name is empty", d.Class)
		}
		if _, ok := seen[v.Name]; ok {
			return errors.Config("%s: duplicate variable name: %s", d.Class, v.Name)
		}
		seen[v.Name] = struct{}{}
		if v.Get == nil {
			return errors.Config("%s: variable %s is missing accessor", d.Class, v.Name)
		}
	}
	return nil
}

// ClassParameters returns the declared defaults of a strategy variant without
// constructing an instance.
func ClassParameters(logic Logic) map[string]any {
	decl := logic.Declare()
	out := make(map[string]any, len(decl.Parameters))
	for _, p := range decl.Parameters {
		out[p.Name] = p.Default
	}
	return out
}

// NopLogic provides no-op hook bodies for embedding.
type NopLogic struct{}

func (NopLogic) OnInit(*Instance) {}
func (NopLogic) OnStart(*Instance) {}
func (NopLogic) OnStop(*Instance) {}
func (NopLogic) OnTick(*Instance, schema.TickData) {}
func (NopLogic) OnBars(*Instance, map[schema.VTSymbol]schema.BarData) {}
func (NopLogic) OnTrade(*Instance, schema.TradeData) {}
func (NopLogic) OnOrder(*Instance, schema.OrderData) {}
func (NopLogic) OnStopOrder(*Instance, schema.StopOrder) {}
