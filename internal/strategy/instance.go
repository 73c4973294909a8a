package strategy

import (
	"sort"

	"main/internal/errors"
	"main/internal/schema"
)

// Built-in variable names exposed by every instance, ahead of the declared
// strategy variables.
const (
	varInited  = "inited"
	varTrading = "trading"
	varPosData = "pos_data"
)

// Instance is the per-strategy runtime state: position per instrument, the
// set of order ids believed live at the engine, lifecycle flags and the
// declared parameter/variable schema of its Logic.
//
// The engine must dispatch callbacks for one instance serially (single
// dispatch goroutine or a per-instance queue); under that guarantee the
// instance keeps no internal locks.
type Instance struct {
	engine    Engine
	name      string
	vtSymbols []schema.VTSymbol
	logic     Logic
	decl      Declaration

	inited  bool
	trading bool

	posData        map[schema.VTSymbol]int64
	activeOrderIDs map[string]struct{}
}

// Data is the externally visible snapshot of an instance.
type Data struct {
	Name       string            `json:"name"`
	VTSymbols  []schema.VTSymbol `json:"vtSymbols"`
	Class      string            `json:"class"`
	Author     string            `json:"author"`
	Parameters map[string]any    `json:"parameters"`
	Variables  map[string]any    `json:"variables"`
}

// New binds a logic implementation to an engine and applies the initial
// parameter setting. Unknown setting keys are ignored for forward
// compatibility; a malformed declaration or empty identity fails fast.
func New(engine Engine, name string, vtSymbols []schema.VTSymbol, setting map[string]any, logic Logic) (*Instance, error) {
	if engine == nil {
		return nil, errors.Config("engine is nil")
	}
	if name == "" {
		return nil, errors.Config("strategy name is empty")
	}
	if logic == nil {
		return nil, errors.Config("%s: logic is nil", name)
	}
	if len(vtSymbols) == 0 {
		return nil, errors.Config("%s: no instruments", name)
	}
	seen := make(map[schema.VTSymbol]struct{}, len(vtSymbols))
	for _, vt := range vtSymbols {
		if vt == "" {
			return nil, errors.Config("%s: empty instrument key", name)
		}
		if _, ok := seen[vt]; ok {
			return nil, errors.Config("%s: duplicate instrument key: %s", name, vt)
		}
		seen[vt] = struct{}{}
	}

	decl := logic.Declare()
	if err := decl.Validate(); err != nil {
		return nil, err
	}

	s := &Instance{
		engine:         engine,
		name:           name,
		vtSymbols:      append([]schema.VTSymbol(nil), vtSymbols...),
		logic:          logic,
		decl:           decl,
		posData:        make(map[schema.VTSymbol]int64),
		activeOrderIDs: make(map[string]struct{}),
	}
	s.UpdateSetting(setting)
	return s, nil
}

// UpdateSetting overwrites declared parameters with matching setting values.
// Each parameter is written at most once per call; values of the wrong type
// are skipped.
func (s *Instance) UpdateSetting(setting map[string]any) {
	if len(setting) == 0 {
		return
	}
	for _, p := range s.decl.Parameters {
		if v, ok := setting[p.Name]; ok {
			p.Set(v)
		}
	}
}

// Name returns the unique strategy name.
func (s *Instance) Name() string { return s.name }

// VTSymbols returns the instrument keys the strategy trades.
func (s *Instance) VTSymbols() []schema.VTSymbol {
	return append([]schema.VTSymbol(nil), s.vtSymbols...)
}

// Inited reports whether the init hook has completed.
func (s *Instance) Inited() bool { return s.inited }

// Trading reports whether order commands are currently allowed.
func (s *Instance) Trading() bool { return s.trading }

// Init runs the init hook, then marks the instance initialized. It runs at
// most once.
func (s *Instance) Init() {
	if s.inited {
		return
	}
	s.logic.OnInit(s)
	s.inited = true
}

// Start runs the start hook, then opens the trading gate.
func (s *Instance) Start() {
	if !s.inited || s.trading {
		return
	}
	s.logic.OnStart(s)
	s.trading = true
}

// Stop runs the stop hook, then closes the trading gate. Cancelling the
// remaining live orders is the engine's job, not the instance's.
func (s *Instance) Stop() {
	if !s.trading {
		return
	}
	s.logic.OnStop(s)
	s.trading = false
}

// HandleTick forwards a tick to the strategy hook.
func (s *Instance) HandleTick(tick schema.TickData) {
	s.logic.OnTick(s, tick)
}

// HandleBars forwards a bar slice to the strategy hook.
func (s *Instance) HandleBars(bars map[schema.VTSymbol]schema.BarData) {
	s.logic.OnBars(s, bars)
}

// UpdateTrade applies the signed fill volume to the position map, then
// invokes the trade hook. The hook always observes the updated position.
func (s *Instance) UpdateTrade(trade schema.TradeData) {
	s.posData[trade.VTSymbol()] += trade.SignedVolume()
	s.logic.OnTrade(s, trade)
}

// UpdateOrder drops terminal orders from the active set, then invokes the
// order hook. Removal of an untracked id is a no-op, so repeated terminal
// callbacks for the same id are harmless.
func (s *Instance) UpdateOrder(order schema.OrderData) {
	if !order.IsActive() {
		delete(s.activeOrderIDs, order.VTOrderID)
	}
	s.logic.OnOrder(s, order)
}

// UpdateStopOrder forwards a stop order transition to the strategy hook.
func (s *Instance) UpdateStopOrder(stopOrder schema.StopOrder) {
	s.logic.OnStopOrder(s, stopOrder)
}

// SendOrder routes a new order through the engine. While the trading gate is
// closed it returns an empty id list without touching any state.
func (s *Instance) SendOrder(req schema.OrderRequest) []string {
	if !s.trading {
		return nil
	}
	vtOrderIDs := s.engine.SendOrder(s.name, req)
	for _, id := range vtOrderIDs {
		s.activeOrderIDs[id] = struct{}{}
	}
	return vtOrderIDs
}

// Buy sends a long open order.
func (s *Instance) Buy(vtSymbol schema.VTSymbol, price float64, volume int64) []string {
	return s.SendOrder(schema.OrderRequest{
		VTSymbol: vtSymbol, Direction: schema.DirectionLong, Offset: schema.OffsetOpen,
		Price: price, Volume: volume,
	})
}

// Sell sends a short close order.
func (s *Instance) Sell(vtSymbol schema.VTSymbol, price float64, volume int64) []string {
	return s.SendOrder(schema.OrderRequest{
		VTSymbol: vtSymbol, Direction: schema.DirectionShort, Offset: schema.OffsetClose,
		Price: price, Volume: volume,
	})
}

// Short sends a short open order.
func (s *Instance) Short(vtSymbol schema.VTSymbol, price float64, volume int64) []string {
	return s.SendOrder(schema.OrderRequest{
		VTSymbol: vtSymbol, Direction: schema.DirectionShort, Offset: schema.OffsetOpen,
		Price: price, Volume: volume,
	})
}

// Cover sends a long close order.
func (s *Instance) Cover(vtSymbol schema.VTSymbol, price float64, volume int64) []string {
	return s.SendOrder(schema.OrderRequest{
		VTSymbol: vtSymbol, Direction: schema.DirectionLong, Offset: schema.OffsetClose,
		Price: price, Volume: volume,
	})
}

// CancelOrder asks the engine to cancel one live order.
func (s *Instance) CancelOrder(vtOrderID string) {
	if !s.trading {
		return
	}
	s.engine.CancelOrder(s.name, vtOrderID)
}

// CancelAll cancels every currently tracked order. It iterates a snapshot of
// the active set because cancellation confirmations mutate the live set.
func (s *Instance) CancelAll() {
	if !s.trading {
		return
	}
	for _, id := range s.ActiveOrderIDs() {
		s.engine.CancelOrder(s.name, id)
	}
}

// SendStopOrder registers a conditional order with the engine and notifies
// the stop order hook of the new Waiting entry. Empty id while the trading
// gate is closed.
func (s *Instance) SendStopOrder(req schema.OrderRequest, triggerPrice float64) string {
	if !s.trading {
		return ""
	}
	stopOrder, ok := s.engine.SendStopOrder(s.name, req, triggerPrice)
	if !ok {
		return ""
	}
	s.logic.OnStopOrder(s, stopOrder)
	return stopOrder.StopOrderID
}

// CancelStopOrder cancels a waiting conditional order and notifies the stop
// order hook when the cancel took effect.
func (s *Instance) CancelStopOrder(stopOrderID string) {
	if !s.trading {
		return
	}
	if stopOrder, ok := s.engine.CancelStopOrder(s.name, stopOrderID); ok {
		s.logic.OnStopOrder(s, stopOrder)
	}
}

// Pos returns the current signed position of one instrument.
func (s *Instance) Pos(vtSymbol schema.VTSymbol) int64 {
	return s.posData[vtSymbol]
}

// ActiveOrderIDs returns a sorted snapshot of the tracked order ids.
func (s *Instance) ActiveOrderIDs() []string {
	out := make([]string, 0, len(s.activeOrderIDs))
	for id := range s.activeOrderIDs {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// PriceTick returns the minimum price increment of a contract.
func (s *Instance) PriceTick(vtSymbol schema.VTSymbol) float64 {
	return s.engine.PriceTick(vtSymbol)
}

// ContractSize returns the contract multiplier.
func (s *Instance) ContractSize(vtSymbol schema.VTSymbol) int64 {
	return s.engine.ContractSize(vtSymbol)
}

// LoadBars replays history through OnBars to warm the strategy up.
func (s *Instance) LoadBars(days int, interval schema.Interval) {
	for _, bars := range s.engine.LoadBars(s.vtSymbols, days, interval) {
		s.HandleBars(bars)
	}
}

// WriteLog records a strategy-attributed log line.
func (s *Instance) WriteLog(msg string) {
	s.engine.WriteLog(s.name, msg)
}

// PutEvent publishes the data snapshot to observers once initialized.
func (s *Instance) PutEvent() {
	if s.inited {
		s.engine.PutStrategyEvent(s.Data())
	}
}

// SyncData persists the variable snapshot while trading.
func (s *Instance) SyncData() {
	if s.trading {
		s.engine.SyncStrategyData(s.Data())
	}
}

// Parameters snapshots the declared parameters in their current state.
func (s *Instance) Parameters() map[string]any {
	out := make(map[string]any, len(s.decl.Parameters))
	for _, p := range s.decl.Parameters {
		out[p.Name] = p.Get()
	}
	return out
}

// Variables snapshots the built-in and declared variables.
func (s *Instance) Variables() map[string]any {
	out := make(map[string]any, len(s.decl.Variables)+3)
	out[varInited] = s.inited
	out[varTrading] = s.trading
	out[varPosData] = s.posSnapshot()
	for _, v := range s.decl.Variables {
		out[v.Name] = v.Get()
	}
	return out
}

// Data builds the wire snapshot of the instance.
func (s *Instance) Data() Data {
	return Data{
		Name:       s.name,
		VTSymbols:  s.VTSymbols(),
		Class:      s.decl.Class,
		Author:     s.decl.Author,
		Parameters: s.Parameters(),
		Variables:  s.Variables(),
	}
}

func (s *Instance) posSnapshot() map[string]int64 {
	out := make(map[string]int64, len(s.posData))
	for vt, pos := range s.posData {
		out[string(vt)] = pos
	}
	return out
}
