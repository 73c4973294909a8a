/*
Engine implements the multi-instrument strategy executor.

# Module
  - in-memory bus: receives market data & order data then push them to the dispatch loop
  - dispatch loop: single thread strategy invoker
  - stop order center: locally simulated conditional orders crossed against ticks
  - contract registry: immutable instrument metadata resolved at startup

# Source
 1. market data from ingest or the synthetic generator
 2. order & trade confirmations from the gateway

# Produce
  - order requests to the gateway
  - strategy data snapshots to the store and event observers
*/
package engine

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/bus"
	"main/internal/errors"
	"main/internal/obs"
	"main/internal/schema"
	"main/internal/strategy"
)

// stopOrderPricePadding is how many price ticks past the crossing price a
// triggered stop order is priced, so the spawned limit order fills like a
// market order in a moving book.
const stopOrderPricePadding = 5

// BarProvider loads historical bars for strategy warm-up.
type BarProvider interface {
	LoadBars(vtSymbols []schema.VTSymbol, days int, interval schema.Interval) ([]schema.BarData, error)
}

// DataStore persists strategy data snapshots.
type DataStore interface {
	SaveStrategyData(data strategy.Data) error
}

// BarRecorder persists finished bars built from the live tick stream.
type BarRecorder interface {
	SaveBars(bars []schema.BarData) error
}

// Config carries the engine dependencies. Contracts and Gateway are
// mandatory; Bars, Store and Metrics are optional.
type Config struct {
	QueueCapacity int
	Contracts     *schema.ContractRegistry
	Gateway       Gateway
	Bars          BarProvider
	Store         DataStore
	Recorder      BarRecorder
	Metrics       *obs.Metrics
}

// Engine hosts strategy instances and serializes every callback through a
// single dispatch goroutine. Lifecycle commands share the dispatch mutex, so
// Init/Start/Stop never interleave with a running hook.
type Engine struct {
	contracts *schema.ContractRegistry
	gateway   Gateway
	bars      BarProvider
	store     DataStore
	recorder  BarRecorder
	metrics   *obs.Metrics

	queue      *bus.Queue
	stopOrders *stopOrderCenter
	bargen     *barGenerator

	mu          sync.Mutex
	classes     map[string]func() strategy.Logic
	instances   map[string]*strategy.Instance
	subscribers map[schema.VTSymbol][]string

	ordersMu sync.Mutex
	owners   map[string]string

	onStrategyEvent func(strategy.Data)
}

// New validates the configuration and builds an idle engine. Run must be
// called before published events are dispatched.
func New(cfg Config) (*Engine, error) {
	if cfg.Contracts == nil || cfg.Contracts.Len() == 0 {
		return nil, errors.Config("engine: no contracts")
	}
	if cfg.Gateway == nil {
		return nil, errors.Config("engine: gateway is nil")
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = defaultQueueCapacity
	}
	if cfg.Metrics == nil {
		cfg.Metrics = obs.NewMetrics()
	}
	e := &Engine{
		contracts:   cfg.Contracts,
		gateway:     cfg.Gateway,
		bars:        cfg.Bars,
		store:       cfg.Store,
		recorder:    cfg.Recorder,
		metrics:     cfg.Metrics,
		queue:       bus.NewQueue(cfg.QueueCapacity),
		stopOrders:  newStopOrderCenter(),
		classes:     make(map[string]func() strategy.Logic),
		instances:   make(map[string]*strategy.Instance),
		subscribers: make(map[schema.VTSymbol][]string),
		owners:      make(map[string]string),
	}
	e.bargen = newBarGenerator(e.processBars)
	return e, nil
}

const defaultQueueCapacity = 4096

// Run drains the event queue until ctx is done or Close is called.
func (e *Engine) Run(ctx context.Context) {
	e.queue.Run(ctx, e.dispatch)
}

// Close stops accepting events; Run returns after the backlog drains.
func (e *Engine) Close() {
	e.queue.Close()
}

// OnStrategyEvent registers the observer for strategy data snapshots. Must be
// set before Run; the callback fires on the dispatch goroutine.
func (e *Engine) OnStrategyEvent(fn func(strategy.Data)) {
	e.onStrategyEvent = fn
}

// RegisterClass registers a strategy logic factory under its declared class
// name.
func (e *Engine) RegisterClass(factory func() strategy.Logic) error {
	class := factory().Declare().Class
	if class == "" {
		return errors.Config("engine: strategy class name is empty")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.classes[class]; ok {
		return errors.Config("engine: duplicate strategy class: %s", class)
	}
	e.classes[class] = factory
	return nil
}

// Classes returns the registered class names in registration-independent
// sorted order.
func (e *Engine) Classes() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.classes))
	for class := range e.classes {
		out = append(out, class)
	}
	sort.Strings(out)
	return out
}

// ClassParameters returns the default parameters of a registered class.
func (e *Engine) ClassParameters(class string) (map[string]any, bool) {
	e.mu.Lock()
	factory, ok := e.classes[class]
	e.mu.Unlock()
	if !ok {
		return nil, false
	}
	return strategy.ClassParameters(factory()), true
}

// AddStrategy creates a named instance of a registered class. Every
// instrument key must resolve in the contract registry.
func (e *Engine) AddStrategy(class, name string, vtSymbols []schema.VTSymbol, setting map[string]any) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	factory, ok := e.classes[class]
	if !ok {
		return errors.Config("engine: unknown strategy class: %s", class)
	}
	if _, ok := e.instances[name]; ok {
		return errors.Config("engine: duplicate strategy name: %s", name)
	}
	for _, vt := range vtSymbols {
		if _, ok := e.contracts.Contract(vt); !ok {
			return errors.Config("engine: %s: unknown instrument: %s", name, vt)
		}
	}

	inst, err := strategy.New(e, name, vtSymbols, setting, factory())
	if err != nil {
		return err
	}
	e.instances[name] = inst
	for _, vt := range vtSymbols {
		e.subscribers[vt] = append(e.subscribers[vt], name)
	}
	return nil
}

// InitStrategy runs the init hook once and publishes the updated snapshot.
func (e *Engine) InitStrategy(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	inst, ok := e.instances[name]
	if !ok {
		return errors.Config("engine: unknown strategy: %s", name)
	}
	inst.Init()
	logs.Infof("[%s] initialized", name)
	e.emitEvent(inst)
	return nil
}

// StartStrategy opens the trading gate of an initialized instance.
func (e *Engine) StartStrategy(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	inst, ok := e.instances[name]
	if !ok {
		return errors.Config("engine: unknown strategy: %s", name)
	}
	if !inst.Inited() {
		return errors.Config("engine: %s: not initialized", name)
	}
	inst.Start()
	logs.Infof("[%s] started", name)
	e.emitEvent(inst)
	return nil
}

// StopStrategy closes the trading gate, then cancels every live order and
// waiting stop order the instance still owns, and persists its data.
func (e *Engine) StopStrategy(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	inst, ok := e.instances[name]
	if !ok {
		return errors.Config("engine: unknown strategy: %s", name)
	}
	if !inst.Trading() {
		return nil
	}
	inst.Stop()

	for _, id := range inst.ActiveOrderIDs() {
		if err := e.gateway.CancelOrder(id); err != nil {
			logs.Errorf("[%s] cancel order %s, err: %+v", name, id, err)
		}
		e.metrics.IncOrderCancelled()
	}
	for _, stopOrder := range e.stopOrders.CancelByStrategy(name, "strategy stopped") {
		inst.UpdateStopOrder(stopOrder)
	}

	e.syncData(inst.Data())
	logs.Infof("[%s] stopped", name)
	e.emitEvent(inst)
	return nil
}

// Strategy returns the data snapshot of one instance.
func (e *Engine) Strategy(name string) (strategy.Data, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	inst, ok := e.instances[name]
	if !ok {
		return strategy.Data{}, false
	}
	return inst.Data(), true
}

// Strategies returns the data snapshots of every instance, sorted by name.
func (e *Engine) Strategies() []strategy.Data {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, 0, len(e.instances))
	for name := range e.instances {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]strategy.Data, 0, len(names))
	for _, name := range names {
		out = append(out, e.instances[name].Data())
	}
	return out
}

// ProcessTick publishes one tick to the event queue. Safe from any goroutine.
func (e *Engine) ProcessTick(tick schema.TickData) {
	e.publish(bus.Event{Type: bus.EventTick, Tick: tick})
}

// ProcessTrade publishes one trade confirmation to the event queue.
func (e *Engine) ProcessTrade(trade schema.TradeData) {
	e.publish(bus.Event{Type: bus.EventTrade, Trade: trade})
}

// ProcessOrder publishes one order status update to the event queue.
func (e *Engine) ProcessOrder(order schema.OrderData) {
	e.publish(bus.Event{Type: bus.EventOrder, Order: order})
}

func (e *Engine) processBars(bars map[schema.VTSymbol]schema.BarData) {
	e.publish(bus.Event{Type: bus.EventBars, Bars: bars})
}

func (e *Engine) publish(event bus.Event) {
	switch err := e.queue.TryPublish(event); err {
	case nil:
	case bus.ErrQueueFull:
		e.metrics.IncQueueDrop()
		logs.Errorf("event queue full, dropped %s event", eventName(event.Type))
	case bus.ErrQueueClosed:
		e.metrics.IncQueueClosed()
	default:
		logs.Errorf("publish event, err: %+v", err)
	}
}

func eventName(t bus.EventType) string {
	switch t {
	case bus.EventTick:
		return "tick"
	case bus.EventBars:
		return "bars"
	case bus.EventTrade:
		return "trade"
	case bus.EventOrder:
		return "order"
	default:
		return "unknown"
	}
}

func (e *Engine) dispatch(event bus.Event) {
	start := time.Now()
	e.metrics.ObserveEvent(event.Type)

	e.mu.Lock()
	switch event.Type {
	case bus.EventTick:
		e.dispatchTick(event.Tick)
	case bus.EventBars:
		e.dispatchBars(event.Bars)
	case bus.EventTrade:
		e.dispatchTrade(event.Trade)
	case bus.EventOrder:
		e.dispatchOrder(event.Order)
	}
	e.mu.Unlock()

	e.metrics.ObserveDispatch(time.Since(start))
}

func (e *Engine) dispatchTick(tick schema.TickData) {
	vtSymbol := tick.VTSymbol()

	// Stop orders cross first, so a strategy observing the tick already sees
	// the trigger consequences of earlier prices.
	for _, stopOrder := range e.stopOrders.CrossPrice(vtSymbol, tick.LastPrice) {
		e.executeStopOrder(stopOrder, tick)
	}

	for _, name := range e.subscribers[vtSymbol] {
		inst := e.instances[name]
		if inst.Inited() {
			inst.HandleTick(tick)
		}
	}

	e.bargen.UpdateTick(tick)
}

// executeStopOrder converts a freshly triggered stop order into a real order
// owned by the same strategy, then reports the transition to its hook.
func (e *Engine) executeStopOrder(stopOrder schema.StopOrder, tick schema.TickData) {
	inst, ok := e.instances[stopOrder.StrategyName]
	if !ok {
		e.metrics.IncDroppedCallback()
		return
	}

	price := tick.LastPrice
	if contract, ok := e.contracts.Contract(stopOrder.VTSymbol()); ok {
		pad := float64(stopOrderPricePadding) * contract.PriceTick
		if stopOrder.Direction == schema.DirectionLong {
			price += pad
		} else {
			price -= pad
		}
	}

	vtOrderIDs := inst.SendOrder(schema.OrderRequest{
		VTSymbol:  stopOrder.VTSymbol(),
		Direction: stopOrder.Direction,
		Offset:    stopOrder.Offset,
		Price:     price,
		Volume:    stopOrder.Volume,
		Lock:      stopOrder.Lock,
		Net:       stopOrder.Net,
	})
	if updated, ok := e.stopOrders.RecordOrderIDs(stopOrder.StopOrderID, vtOrderIDs); ok {
		stopOrder = updated
	}

	e.metrics.IncStopOrderFired()
	logs.Infof("[%s] stop order %s triggered at %v, spawned %d orders",
		stopOrder.StrategyName, stopOrder.StopOrderID, tick.LastPrice, len(vtOrderIDs))
	inst.UpdateStopOrder(stopOrder)
	e.emitEvent(inst)
}

func (e *Engine) dispatchBars(bars map[schema.VTSymbol]schema.BarData) {
	e.recordBars(bars)

	delivered := make(map[string]struct{}, len(e.instances))
	for vtSymbol := range bars {
		for _, name := range e.subscribers[vtSymbol] {
			if _, ok := delivered[name]; ok {
				continue
			}
			delivered[name] = struct{}{}

			inst := e.instances[name]
			if !inst.Inited() {
				continue
			}
			inst.HandleBars(filterBars(bars, inst.VTSymbols()))
		}
	}
}

func (e *Engine) recordBars(bars map[schema.VTSymbol]schema.BarData) {
	if e.recorder == nil {
		return
	}
	out := make([]schema.BarData, 0, len(bars))
	for _, bar := range bars {
		out = append(out, bar)
	}
	if err := e.recorder.SaveBars(out); err != nil {
		logs.Errorf("record bars, err: %+v", err)
	}
}

func filterBars(bars map[schema.VTSymbol]schema.BarData, vtSymbols []schema.VTSymbol) map[schema.VTSymbol]schema.BarData {
	out := make(map[schema.VTSymbol]schema.BarData, len(vtSymbols))
	for _, vt := range vtSymbols {
		if bar, ok := bars[vt]; ok {
			out[vt] = bar
		}
	}
	return out
}

func (e *Engine) dispatchTrade(trade schema.TradeData) {
	e.ordersMu.Lock()
	name, ok := e.owners[trade.VTOrderID]
	e.ordersMu.Unlock()
	if !ok {
		e.metrics.IncDroppedCallback()
		return
	}
	inst, ok := e.instances[name]
	if !ok {
		e.metrics.IncDroppedCallback()
		return
	}
	inst.UpdateTrade(trade)
	e.syncData(inst.Data())
	e.emitEvent(inst)
}

func (e *Engine) dispatchOrder(order schema.OrderData) {
	e.ordersMu.Lock()
	name, ok := e.owners[order.VTOrderID]
	if ok && !order.IsActive() {
		delete(e.owners, order.VTOrderID)
	}
	e.ordersMu.Unlock()
	if !ok {
		e.metrics.IncDroppedCallback()
		return
	}
	inst, ok := e.instances[name]
	if !ok {
		e.metrics.IncDroppedCallback()
		return
	}
	inst.UpdateOrder(order)
}

// SendOrder implements strategy.Engine. The limit price is rounded to the
// contract price tick before routing.
func (e *Engine) SendOrder(strategyName string, req schema.OrderRequest) []string {
	contract, ok := e.contracts.Contract(req.VTSymbol)
	if !ok {
		logs.Errorf("[%s] send order: unknown instrument: %s", strategyName, req.VTSymbol)
		return nil
	}
	req.Price = roundToTick(req.Price, contract.PriceTick)

	vtOrderIDs, err := e.gateway.SendOrder(req)
	if err != nil {
		logs.Errorf("[%s] send order, err: %+v", strategyName, err)
		return nil
	}

	e.ordersMu.Lock()
	for _, id := range vtOrderIDs {
		e.owners[id] = strategyName
	}
	e.ordersMu.Unlock()

	e.metrics.IncOrdersSent(len(vtOrderIDs))
	return vtOrderIDs
}

// CancelOrder implements strategy.Engine.
func (e *Engine) CancelOrder(strategyName string, vtOrderID string) {
	e.ordersMu.Lock()
	owner, ok := e.owners[vtOrderID]
	e.ordersMu.Unlock()
	if !ok || owner != strategyName {
		return
	}
	if err := e.gateway.CancelOrder(vtOrderID); err != nil {
		logs.Errorf("[%s] cancel order %s, err: %+v", strategyName, vtOrderID, err)
		return
	}
	e.metrics.IncOrderCancelled()
}

// SendStopOrder implements strategy.Engine.
func (e *Engine) SendStopOrder(strategyName string, req schema.OrderRequest, triggerPrice float64) (schema.StopOrder, bool) {
	contract, ok := e.contracts.Contract(req.VTSymbol)
	if !ok {
		logs.Errorf("[%s] send stop order: unknown instrument: %s", strategyName, req.VTSymbol)
		return schema.StopOrder{}, false
	}
	req.Price = roundToTick(req.Price, contract.PriceTick)

	stopOrder := e.stopOrders.Add(strategyName, req, roundToTick(triggerPrice, contract.PriceTick))
	e.metrics.IncStopOrderPlaced()
	return stopOrder, true
}

// CancelStopOrder implements strategy.Engine.
func (e *Engine) CancelStopOrder(strategyName string, stopOrderID string) (schema.StopOrder, bool) {
	return e.stopOrders.Cancel(strategyName, stopOrderID, "cancelled by strategy")
}

// PriceTick implements strategy.Engine. Zero for unknown instruments.
func (e *Engine) PriceTick(vtSymbol schema.VTSymbol) float64 {
	contract, _ := e.contracts.Contract(vtSymbol)
	return contract.PriceTick
}

// ContractSize implements strategy.Engine. Zero for unknown instruments.
func (e *Engine) ContractSize(vtSymbol schema.VTSymbol) int64 {
	contract, _ := e.contracts.Contract(vtSymbol)
	return contract.Size
}

// LoadBars implements strategy.Engine. Bars sharing a timestamp are grouped
// into one batch; batches come back in ascending time order.
func (e *Engine) LoadBars(vtSymbols []schema.VTSymbol, days int, interval schema.Interval) []map[schema.VTSymbol]schema.BarData {
	if e.bars == nil {
		return nil
	}
	bars, err := e.bars.LoadBars(vtSymbols, days, interval)
	if err != nil {
		logs.Errorf("load bars, err: %+v", err)
		return nil
	}
	return groupBars(bars)
}

// groupBars folds a time-ordered bar slice into per-timestamp batches,
// preserving order.
func groupBars(bars []schema.BarData) []map[schema.VTSymbol]schema.BarData {
	var out []map[schema.VTSymbol]schema.BarData
	var last time.Time
	for _, bar := range bars {
		if len(out) == 0 || !bar.Datetime.Equal(last) {
			out = append(out, make(map[schema.VTSymbol]schema.BarData))
			last = bar.Datetime
		}
		out[len(out)-1][bar.VTSymbol()] = bar
	}
	return out
}

// WriteLog implements strategy.Engine.
func (e *Engine) WriteLog(strategyName string, msg string) {
	logs.Infof("[%s] %s", strategyName, msg)
}

// PutStrategyEvent implements strategy.Engine.
func (e *Engine) PutStrategyEvent(data strategy.Data) {
	if e.onStrategyEvent != nil {
		e.onStrategyEvent(data)
	}
}

// SyncStrategyData implements strategy.Engine.
func (e *Engine) SyncStrategyData(data strategy.Data) {
	e.syncData(data)
}

func (e *Engine) syncData(data strategy.Data) {
	if e.store == nil {
		return
	}
	if err := e.store.SaveStrategyData(data); err != nil {
		logs.Errorf("[%s] sync strategy data, err: %+v", data.Name, err)
	}
}

func (e *Engine) emitEvent(inst *strategy.Instance) {
	if e.onStrategyEvent != nil {
		e.onStrategyEvent(inst.Data())
	}
}

// roundToTick snaps a price to the nearest multiple of tick.
func roundToTick(price, tick float64) float64 {
	if tick <= 0 {
		return price
	}
	return math.Round(price/tick) * tick
}
