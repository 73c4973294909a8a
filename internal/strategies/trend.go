// Package strategies bundles the trading logic shipped with the runtime.
package strategies

import (
	"fmt"

	"main/internal/schema"
	"main/internal/stats"
	"main/internal/strategy"
)

// Trend trades Bollinger band breakouts on its first instrument and trails
// the position with an ATR stop. Entries and exits are placed as stop orders
// so they fire on the tick that crosses the level.
type Trend struct {
	strategy.NopLogic

	BollWindow int64
	BollDev    float64
	AtrWindow  int64
	AtrMult    float64
	FixedSize  int64

	bollUp        float64
	bollDown      float64
	atrValue      float64
	intraHigh     float64
	intraLow      float64
	lastEntry     float64
	pendingStopID string

	vtSymbol schema.VTSymbol
	am       *stats.ArrayManager
}

// NewTrend returns the logic with its default tuning.
func NewTrend() strategy.Logic {
	return &Trend{
		BollWindow: 18,
		BollDev:    3.4,
		AtrWindow:  22,
		AtrMult:    4,
		FixedSize:  1,
	}
}

func (t *Trend) Declare() strategy.Declaration {
	return strategy.Declaration{
		Class:  "Trend",
		Author: "trading",
		Parameters: []strategy.Parameter{
			strategy.IntParam("boll_window", 18, &t.BollWindow),
			strategy.FloatParam("boll_dev", 3.4, &t.BollDev),
			strategy.IntParam("atr_window", 22, &t.AtrWindow),
			strategy.FloatParam("atr_mult", 4, &t.AtrMult),
			strategy.IntParam("fixed_size", 1, &t.FixedSize),
		},
		Variables: []strategy.Variable{
			strategy.FloatVar("boll_up", &t.bollUp),
			strategy.FloatVar("boll_down", &t.bollDown),
			strategy.FloatVar("atr_value", &t.atrValue),
			strategy.FloatVar("intra_high", &t.intraHigh),
			strategy.FloatVar("intra_low", &t.intraLow),
		},
	}
}

func (t *Trend) OnInit(s *strategy.Instance) {
	t.vtSymbol = s.VTSymbols()[0]
	t.am = stats.NewArrayManager(int(t.BollWindow) * 2)
	s.WriteLog("loading history")
	s.LoadBars(10, schema.IntervalMinute)
	s.WriteLog("initialized")
}

func (t *Trend) OnStart(s *strategy.Instance) {
	s.WriteLog("started")
}

func (t *Trend) OnStop(s *strategy.Instance) {
	s.WriteLog("stopped")
}

func (t *Trend) OnBars(s *strategy.Instance, bars map[schema.VTSymbol]schema.BarData) {
	bar, ok := bars[t.vtSymbol]
	if !ok {
		return
	}
	t.am.Update(bar)
	if !t.am.Ready() {
		return
	}

	t.bollUp, t.bollDown = t.am.Boll(int(t.BollWindow), t.BollDev)
	t.atrValue = t.am.ATR(int(t.AtrWindow))

	s.CancelAll()
	if t.pendingStopID != "" {
		s.CancelStopOrder(t.pendingStopID)
		t.pendingStopID = ""
	}

	switch pos := s.Pos(t.vtSymbol); {
	case pos == 0:
		t.intraHigh = bar.High
		t.intraLow = bar.Low
		t.placeBreakout(s)
	case pos > 0:
		if bar.High > t.intraHigh {
			t.intraHigh = bar.High
		}
		stop := t.intraHigh - t.atrValue*t.AtrMult
		t.pendingStopID = s.SendStopOrder(schema.OrderRequest{
			VTSymbol:  t.vtSymbol,
			Direction: schema.DirectionShort,
			Offset:    schema.OffsetClose,
			Price:     stop,
			Volume:    pos,
		}, stop)
	default:
		if bar.Low < t.intraLow {
			t.intraLow = bar.Low
		}
		stop := t.intraLow + t.atrValue*t.AtrMult
		t.pendingStopID = s.SendStopOrder(schema.OrderRequest{
			VTSymbol:  t.vtSymbol,
			Direction: schema.DirectionLong,
			Offset:    schema.OffsetClose,
			Price:     stop,
			Volume:    -pos,
		}, stop)
	}

	s.PutEvent()
}

// placeBreakout arms both entry stops around the channel when flat.
func (t *Trend) placeBreakout(s *strategy.Instance) {
	s.SendStopOrder(schema.OrderRequest{
		VTSymbol:  t.vtSymbol,
		Direction: schema.DirectionLong,
		Offset:    schema.OffsetOpen,
		Price:     t.bollUp,
		Volume:    t.FixedSize,
	}, t.bollUp)
	s.SendStopOrder(schema.OrderRequest{
		VTSymbol:  t.vtSymbol,
		Direction: schema.DirectionShort,
		Offset:    schema.OffsetOpen,
		Price:     t.bollDown,
		Volume:    t.FixedSize,
	}, t.bollDown)
}

func (t *Trend) OnTrade(s *strategy.Instance, trade schema.TradeData) {
	t.lastEntry = trade.Price
	s.WriteLog(fmt.Sprintf("filled %s %s %d@%v, pos %d",
		trade.Direction, trade.VTSymbol(), trade.Volume, trade.Price, s.Pos(trade.VTSymbol())))
	s.SyncData()
}

func (t *Trend) OnStopOrder(s *strategy.Instance, stopOrder schema.StopOrder) {
	if stopOrder.StopOrderID == t.pendingStopID && stopOrder.Status.IsTerminal() {
		t.pendingStopID = ""
	}
}
