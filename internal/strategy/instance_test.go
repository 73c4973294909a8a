package strategy

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/errors"
	"main/internal/schema"
)

const (
	testSymbolA = schema.VTSymbol("BTCUSDT.BINANCE")
	testSymbolB = schema.VTSymbol("ETHUSDT.BINANCE")
)

// mockEngine records every command an instance routes.
type mockEngine struct {
	counter     int
	sentOrders  []schema.OrderRequest
	cancelled   []string
	stopOrders  []schema.StopOrder
	stopCancels []string
	synced      []Data
	events      []Data
	logLines    []string
	loadedBars  []map[schema.VTSymbol]schema.BarData
}

func (m *mockEngine) SendOrder(strategyName string, req schema.OrderRequest) []string {
	m.counter++
	m.sentOrders = append(m.sentOrders, req)
	return []string{fmt.Sprintf("SIM.%d", m.counter)}
}

func (m *mockEngine) CancelOrder(strategyName string, vtOrderID string) {
	m.cancelled = append(m.cancelled, vtOrderID)
}

func (m *mockEngine) SendStopOrder(strategyName string, req schema.OrderRequest, triggerPrice float64) (schema.StopOrder, bool) {
	m.counter++
	symbol, exchange := req.VTSymbol.Split()
	stopOrder := schema.StopOrder{
		Symbol:       symbol,
		Exchange:     exchange,
		Direction:    req.Direction,
		Offset:       req.Offset,
		TriggerPrice: triggerPrice,
		Volume:       req.Volume,
		StopOrderID:  fmt.Sprintf("%s.%d", schema.StopOrderPrefix, m.counter),
		StrategyName: strategyName,
		Status:       schema.StopOrderStatusWaiting,
	}
	m.stopOrders = append(m.stopOrders, stopOrder)
	return stopOrder, true
}

func (m *mockEngine) CancelStopOrder(strategyName string, stopOrderID string) (schema.StopOrder, bool) {
	m.stopCancels = append(m.stopCancels, stopOrderID)
	return schema.StopOrder{StopOrderID: stopOrderID, Status: schema.StopOrderStatusCancelled}, true
}

func (m *mockEngine) PriceTick(schema.VTSymbol) float64 { return 0.5 }
func (m *mockEngine) ContractSize(schema.VTSymbol) int64 { return 10 }
func (m *mockEngine) WriteLog(name, msg string) { m.logLines = append(m.logLines, msg) }
func (m *mockEngine) PutStrategyEvent(data Data) { m.events = append(m.events, data) }
func (m *mockEngine) SyncStrategyData(data Data) { m.synced = append(m.synced, data) }

func (m *mockEngine) LoadBars(vtSymbols []schema.VTSymbol, days int, interval schema.Interval) []map[schema.VTSymbol]schema.BarData {
	return m.loadedBars
}

// countingLogic counts hook invocations on top of the no-op base.
type countingLogic struct {
	NopLogic
	inits, starts, stops int
	trades               []schema.TradeData
	orders               []schema.OrderData
	stopOrders           []schema.StopOrder
	posSeen              []int64
}

func (l *countingLogic) Declare() Declaration {
	return Declaration{Class: "Counting", Author: "test"}
}

func (l *countingLogic) OnInit(s *Instance) { l.inits++ }
func (l *countingLogic) OnStart(s *Instance) { l.starts++ }
func (l *countingLogic) OnStop(s *Instance) { l.stops++ }

func (l *countingLogic) OnTrade(s *Instance, trade schema.TradeData) {
	l.trades = append(l.trades, trade)
	l.posSeen = append(l.posSeen, s.Pos(trade.VTSymbol()))
}

func (l *countingLogic) OnOrder(s *Instance, order schema.OrderData) {
	l.orders = append(l.orders, order)
}

func (l *countingLogic) OnStopOrder(s *Instance, stopOrder schema.StopOrder) {
	l.stopOrders = append(l.stopOrders, stopOrder)
}

func newTestInstance(t *testing.T) (*Instance, *mockEngine, *countingLogic) {
	t.Helper()
	eng := &mockEngine{}
	logic := &countingLogic{}
	inst, err := New(eng, "test", []schema.VTSymbol{testSymbolA, testSymbolB}, nil, logic)
	require.NoError(t, err)
	return inst, eng, logic
}

func TestNewFailsFast(t *testing.T) {
	logic := &countingLogic{}
	symbols := []schema.VTSymbol{testSymbolA}

	_, err := New(nil, "s", symbols, nil, logic)
	assert.True(t, errors.IsConfig(err), "nil engine: %v", err)

	_, err = New(&mockEngine{}, "", symbols, nil, logic)
	assert.True(t, errors.IsConfig(err), "empty name: %v", err)

	_, err = New(&mockEngine{}, "s", symbols, nil, nil)
	assert.True(t, errors.IsConfig(err), "nil logic: %v", err)

	_, err = New(&mockEngine{}, "s", nil, nil, logic)
	assert.True(t, errors.IsConfig(err), "no instruments: %v", err)

	_, err = New(&mockEngine{}, "s", []schema.VTSymbol{testSymbolA, testSymbolA}, nil, logic)
	assert.True(t, errors.IsConfig(err), "duplicate instruments: %v", err)

	_, err = New(&mockEngine{}, "s", []schema.VTSymbol{testSymbolA, ""}, nil, logic)
	assert.True(t, errors.IsConfig(err), "empty instrument: %v", err)
}

func TestLifecycle(t *testing.T) {
	inst, _, logic := newTestInstance(t)

	assert.False(t, inst.Inited())
	assert.False(t, inst.Trading())

	// Start before init is ignored.
	inst.Start()
	assert.False(t, inst.Trading())
	assert.Zero(t, logic.starts)

	inst.Init()
	assert.True(t, inst.Inited())
	assert.Equal(t, 1, logic.inits)

	// Init runs at most once.
	inst.Init()
	assert.Equal(t, 1, logic.inits)

	inst.Start()
	assert.True(t, inst.Trading())
	assert.Equal(t, 1, logic.starts)
	inst.Start()
	assert.Equal(t, 1, logic.starts)

	inst.Stop()
	assert.False(t, inst.Trading())
	assert.True(t, inst.Inited())
	assert.Equal(t, 1, logic.stops)

	// Stop while already stopped is ignored.
	inst.Stop()
	assert.Equal(t, 1, logic.stops)

	// Restart is allowed.
	inst.Start()
	assert.True(t, inst.Trading())
	assert.Equal(t, 2, logic.starts)
}

func TestSendOrderGatedByTrading(t *testing.T) {
	inst, eng, _ := newTestInstance(t)

	assert.Nil(t, inst.Buy(testSymbolA, 100, 1))
	assert.Empty(t, eng.sentOrders)
	assert.Empty(t, inst.ActiveOrderIDs())

	inst.Init()
	assert.Nil(t, inst.Buy(testSymbolA, 100, 1), "inited but not started")

	inst.Start()
	ids := inst.Buy(testSymbolA, 100, 1)
	require.Len(t, ids, 1)
	assert.Equal(t, ids, inst.ActiveOrderIDs())
}

func TestOrderSugar(t *testing.T) {
	inst, eng, _ := newTestInstance(t)
	inst.Init()
	inst.Start()

	inst.Buy(testSymbolA, 100, 1)
	inst.Sell(testSymbolA, 101, 2)
	inst.Short(testSymbolB, 102, 3)
	inst.Cover(testSymbolB, 103, 4)

	require.Len(t, eng.sentOrders, 4)
	assert.Equal(t, schema.OrderRequest{
		VTSymbol: testSymbolA, Direction: schema.DirectionLong, Offset: schema.OffsetOpen,
		Price: 100, Volume: 1,
	}, eng.sentOrders[0])
	assert.Equal(t, schema.DirectionShort, eng.sentOrders[1].Direction)
	assert.Equal(t, schema.OffsetClose, eng.sentOrders[1].Offset)
	assert.Equal(t, schema.DirectionShort, eng.sentOrders[2].Direction)
	assert.Equal(t, schema.OffsetOpen, eng.sentOrders[2].Offset)
	assert.Equal(t, schema.DirectionLong, eng.sentOrders[3].Direction)
	assert.Equal(t, schema.OffsetClose, eng.sentOrders[3].Offset)
}

func TestUpdateTradePositionBeforeHook(t *testing.T) {
	inst, _, logic := newTestInstance(t)
	inst.Init()

	trade := func(vt schema.VTSymbol, dir schema.Direction, volume int64) schema.TradeData {
		symbol, exchange := vt.Split()
		return schema.TradeData{
			Symbol: symbol, Exchange: exchange,
			Direction: dir, Volume: volume, Price: 100,
		}
	}

	inst.UpdateTrade(trade(testSymbolA, schema.DirectionLong, 3))
	assert.Equal(t, int64(3), inst.Pos(testSymbolA))

	inst.UpdateTrade(trade(testSymbolA, schema.DirectionShort, 5))
	assert.Equal(t, int64(-2), inst.Pos(testSymbolA))

	inst.UpdateTrade(trade(testSymbolB, schema.DirectionLong, 7))
	assert.Equal(t, int64(7), inst.Pos(testSymbolB))
	assert.Equal(t, int64(-2), inst.Pos(testSymbolA), "per-instrument isolation")

	// The hook observed the already-updated position each time.
	assert.Equal(t, []int64{3, -2, 7}, logic.posSeen)
	assert.Len(t, logic.trades, 3)
}

func TestPosUnknownInstrument(t *testing.T) {
	inst, _, _ := newTestInstance(t)
	assert.Zero(t, inst.Pos("UNTRADED.LOCAL"))
}

func TestUpdateOrderActiveSet(t *testing.T) {
	inst, _, logic := newTestInstance(t)
	inst.Init()
	inst.Start()

	ids := inst.Buy(testSymbolA, 100, 1)
	require.Len(t, ids, 1)
	id := ids[0]

	order := func(status schema.OrderStatus) schema.OrderData {
		return schema.OrderData{Symbol: "BTCUSDT", Exchange: schema.ExchangeBinance, VTOrderID: id, Status: status}
	}

	inst.UpdateOrder(order(schema.OrderStatusNotTraded))
	assert.Equal(t, []string{id}, inst.ActiveOrderIDs(), "active status keeps the id")

	inst.UpdateOrder(order(schema.OrderStatusAllTraded))
	assert.Empty(t, inst.ActiveOrderIDs(), "terminal status removes the id")

	// Duplicate terminal callback is harmless, and the hook still fires.
	inst.UpdateOrder(order(schema.OrderStatusCancelled))
	assert.Empty(t, inst.ActiveOrderIDs())
	assert.Len(t, logic.orders, 3)

	// Terminal callback for an id that was never tracked is a no-op.
	inst.UpdateOrder(schema.OrderData{VTOrderID: "SIM.999", Status: schema.OrderStatusRejected})
	assert.Empty(t, inst.ActiveOrderIDs())
}

func TestCancelAllSnapshot(t *testing.T) {
	inst, eng, _ := newTestInstance(t)
	inst.Init()
	inst.Start()

	first := inst.Buy(testSymbolA, 100, 1)
	second := inst.Buy(testSymbolA, 101, 1)
	require.Len(t, append(first, second...), 2)

	inst.CancelAll()
	assert.ElementsMatch(t, []string{first[0], second[0]}, eng.cancelled)

	// Not trading: both single and bulk cancels are silent no-ops.
	inst.Stop()
	eng.cancelled = nil
	inst.CancelOrder(first[0])
	inst.CancelAll()
	assert.Empty(t, eng.cancelled)
}

// mutatingEngine confirms each cancel synchronously, like a gateway whose
// terminal callback lands before CancelOrder returns. This shrinks the
// active set while CancelAll is still iterating.
type mutatingEngine struct {
	mockEngine
	inst *Instance
}

func (m *mutatingEngine) CancelOrder(strategyName string, vtOrderID string) {
	m.mockEngine.CancelOrder(strategyName, vtOrderID)
	m.inst.UpdateOrder(schema.OrderData{
		Symbol: "BTCUSDT", Exchange: schema.ExchangeBinance,
		VTOrderID: vtOrderID, Status: schema.OrderStatusCancelled,
	})
}

func TestCancelAllSurvivesMutationDuringIteration(t *testing.T) {
	eng := &mutatingEngine{}
	logic := &countingLogic{}
	inst, err := New(eng, "test", []schema.VTSymbol{testSymbolA}, nil, logic)
	require.NoError(t, err)
	eng.inst = inst
	inst.Init()
	inst.Start()

	sent := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		ids := inst.Buy(testSymbolA, 100+float64(i), 1)
		require.Len(t, ids, 1)
		sent = append(sent, ids[0])
	}
	require.Len(t, inst.ActiveOrderIDs(), 5)

	inst.CancelAll()

	// Exactly one cancel per id present at call time, despite each
	// confirmation removing from the set mid-iteration.
	assert.ElementsMatch(t, sent, eng.cancelled)
	assert.Empty(t, inst.ActiveOrderIDs())
	assert.Len(t, logic.orders, 5)
}

func TestStopOrderCommands(t *testing.T) {
	inst, eng, logic := newTestInstance(t)

	req := schema.OrderRequest{
		VTSymbol: testSymbolA, Direction: schema.DirectionLong, Offset: schema.OffsetOpen,
		Price: 105, Volume: 1,
	}

	assert.Empty(t, inst.SendStopOrder(req, 105), "gated before start")
	assert.Empty(t, eng.stopOrders)

	inst.Init()
	inst.Start()

	id := inst.SendStopOrder(req, 105)
	require.NotEmpty(t, id)
	require.Len(t, logic.stopOrders, 1)
	assert.Equal(t, schema.StopOrderStatusWaiting, logic.stopOrders[0].Status)

	inst.CancelStopOrder(id)
	assert.Equal(t, []string{id}, eng.stopCancels)
	require.Len(t, logic.stopOrders, 2)
	assert.Equal(t, schema.StopOrderStatusCancelled, logic.stopOrders[1].Status)

	inst.Stop()
	inst.CancelStopOrder(id)
	assert.Len(t, eng.stopCancels, 1, "gated after stop")
}

func TestEventAndSyncGates(t *testing.T) {
	inst, eng, _ := newTestInstance(t)

	inst.PutEvent()
	inst.SyncData()
	assert.Empty(t, eng.events)
	assert.Empty(t, eng.synced)

	inst.Init()
	inst.PutEvent()
	inst.SyncData()
	assert.Len(t, eng.events, 1, "events flow once inited")
	assert.Empty(t, eng.synced, "sync still needs trading")

	inst.Start()
	inst.SyncData()
	require.Len(t, eng.synced, 1)
	assert.Equal(t, "test", eng.synced[0].Name)
}

func TestLoadBarsReplaysThroughOnBars(t *testing.T) {
	eng := &mockEngine{}
	bar := schema.BarData{Symbol: "BTCUSDT", Exchange: schema.ExchangeBinance, Close: 42}
	eng.loadedBars = []map[schema.VTSymbol]schema.BarData{
		{testSymbolA: bar},
		{testSymbolA: bar},
	}

	var seen int
	logic := &barCountingLogic{onBars: func(map[schema.VTSymbol]schema.BarData) { seen++ }}
	inst, err := New(eng, "test", []schema.VTSymbol{testSymbolA}, nil, logic)
	require.NoError(t, err)

	inst.LoadBars(10, schema.IntervalMinute)
	assert.Equal(t, 2, seen)
}

type barCountingLogic struct {
	NopLogic
	onBars func(map[schema.VTSymbol]schema.BarData)
}

func (l *barCountingLogic) Declare() Declaration {
	return Declaration{Class: "BarCounting", Author: "test"}
}

func (l *barCountingLogic) OnBars(s *Instance, bars map[schema.VTSymbol]schema.BarData) {
	l.onBars(bars)
}

func TestContractQueries(t *testing.T) {
	inst, _, _ := newTestInstance(t)
	assert.Equal(t, 0.5, inst.PriceTick(testSymbolA))
	assert.Equal(t, int64(10), inst.ContractSize(testSymbolA))
}

func TestDataSnapshot(t *testing.T) {
	eng := &mockEngine{}
	logic := &declaredLogic{window: 20, label: "x"}
	inst, err := New(eng, "snap", []schema.VTSymbol{testSymbolA}, map[string]any{"window": float64(30)}, logic)
	require.NoError(t, err)

	data := inst.Data()
	assert.Equal(t, "snap", data.Name)
	assert.Equal(t, "Declared", data.Class)
	assert.Equal(t, []schema.VTSymbol{testSymbolA}, data.VTSymbols)
	assert.Equal(t, int64(30), data.Parameters["window"], "setting applied through declared setter")

	assert.Equal(t, false, data.Variables["inited"])
	assert.Equal(t, false, data.Variables["trading"])
	assert.Equal(t, map[string]int64{}, data.Variables["pos_data"])
	assert.Equal(t, "x", data.Variables["label"])

	inst.Init()
	symbol, exchange := testSymbolA.Split()
	inst.UpdateTrade(schema.TradeData{Symbol: symbol, Exchange: exchange, Direction: schema.DirectionLong, Volume: 2})

	data = inst.Data()
	assert.Equal(t, true, data.Variables["inited"])
	assert.Equal(t, map[string]int64{string(testSymbolA): 2}, data.Variables["pos_data"])
}

type declaredLogic struct {
	NopLogic
	window int64
	label  string
}

func (l *declaredLogic) Declare() Declaration {
	return Declaration{
		Class:  "Declared",
		Author: "test",
		Parameters: []Parameter{
			IntParam("window", 20, &l.window),
		},
		Variables: []Variable{
			StringVar("label", &l.label),
		},
	}
}

func TestUpdateSettingIgnoresUnknownAndBadTypes(t *testing.T) {
	eng := &mockEngine{}
	logic := &declaredLogic{window: 20}
	inst, err := New(eng, "s", []schema.VTSymbol{testSymbolA}, map[string]any{
		"window":  "not a number",
		"unknown": 1,
	}, logic)
	require.NoError(t, err)

	assert.Equal(t, int64(20), logic.window, "bad type keeps the default")
	_, ok := inst.Parameters()["unknown"]
	assert.False(t, ok)
}
