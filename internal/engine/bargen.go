package engine

import (
	"time"

	"main/internal/schema"
)

// barGenerator folds ticks into one-minute bars across all instruments. When
// the first tick of a newer minute arrives, the finished bars of the previous
// minute are emitted together as one batch.
type barGenerator struct {
	emit    func(map[schema.VTSymbol]schema.BarData)
	window  time.Time
	pending map[schema.VTSymbol]schema.BarData
}

func newBarGenerator(emit func(map[schema.VTSymbol]schema.BarData)) *barGenerator {
	return &barGenerator{
		emit:    emit,
		pending: make(map[schema.VTSymbol]schema.BarData),
	}
}

// UpdateTick folds one tick into the pending minute. Ticks without a trade
// price are ignored.
func (g *barGenerator) UpdateTick(tick schema.TickData) {
	if tick.LastPrice <= 0 {
		return
	}

	window := tick.Datetime.Truncate(time.Minute)
	if window.After(g.window) {
		g.Flush()
		g.window = window
	} else if window.Before(g.window) {
		// Late tick from an already emitted minute.
		return
	}

	vtSymbol := tick.VTSymbol()
	bar, ok := g.pending[vtSymbol]
	if !ok {
		bar = schema.BarData{
			Symbol:   tick.Symbol,
			Exchange: tick.Exchange,
			Datetime: window,
			Interval: schema.IntervalMinute,
			Open:     tick.LastPrice,
			High:     tick.LastPrice,
			Low:      tick.LastPrice,
		}
	}
	if tick.LastPrice > bar.High {
		bar.High = tick.LastPrice
	}
	if tick.LastPrice < bar.Low {
		bar.Low = tick.LastPrice
	}
	bar.Close = tick.LastPrice
	bar.Volume += tick.LastQty
	bar.Turnover += tick.LastPrice * float64(tick.LastQty)
	g.pending[vtSymbol] = bar
}

// Flush emits the pending bars, if any, and resets the window.
func (g *barGenerator) Flush() {
	if len(g.pending) == 0 {
		return
	}
	g.emit(g.pending)
	g.pending = make(map[schema.VTSymbol]schema.BarData)
}
