package strategies

import (
	"main/internal/schema"
	"main/internal/stats"
	"main/internal/strategy"
)

// Turtle runs an independent Donchian channel breakout on every instrument of
// the portfolio: enter on a break of the entry channel, exit on a break of
// the shorter exit channel.
type Turtle struct {
	strategy.NopLogic

	EntryWindow int64
	ExitWindow  int64
	FixedSize   int64

	tradeCount int64

	ams map[schema.VTSymbol]*stats.ArrayManager
}

// NewTurtle returns the logic with its default tuning.
func NewTurtle() strategy.Logic {
	return &Turtle{
		EntryWindow: 20,
		ExitWindow:  10,
		FixedSize:   1,
	}
}

func (t *Turtle) Declare() strategy.Declaration {
	return strategy.Declaration{
		Class:  "Turtle",
		Author: "trading",
		Parameters: []strategy.Parameter{
			strategy.IntParam("entry_window", 20, &t.EntryWindow),
			strategy.IntParam("exit_window", 10, &t.ExitWindow),
			strategy.IntParam("fixed_size", 1, &t.FixedSize),
		},
		Variables: []strategy.Variable{
			strategy.IntVar("trade_count", &t.tradeCount),
		},
	}
}

func (t *Turtle) OnInit(s *strategy.Instance) {
	t.ams = make(map[schema.VTSymbol]*stats.ArrayManager, len(s.VTSymbols()))
	for _, vt := range s.VTSymbols() {
		t.ams[vt] = stats.NewArrayManager(int(t.EntryWindow) + 1)
	}
	s.LoadBars(10, schema.IntervalMinute)
	s.WriteLog("initialized")
}

func (t *Turtle) OnBars(s *strategy.Instance, bars map[schema.VTSymbol]schema.BarData) {
	s.CancelAll()

	for vt, bar := range bars {
		am, ok := t.ams[vt]
		if !ok {
			continue
		}
		am.Update(bar)
		if !am.Ready() {
			continue
		}

		entryUp, entryDown := am.Donchian(int(t.EntryWindow))
		exitUp, exitDown := am.Donchian(int(t.ExitWindow))

		switch pos := s.Pos(vt); {
		case pos == 0:
			if bar.Close >= entryUp {
				s.Buy(vt, bar.Close, t.FixedSize)
			} else if bar.Close <= entryDown {
				s.Short(vt, bar.Close, t.FixedSize)
			}
		case pos > 0:
			if bar.Close <= exitDown {
				s.Sell(vt, bar.Close, pos)
			}
		default:
			if bar.Close >= exitUp {
				s.Cover(vt, bar.Close, -pos)
			}
		}
	}

	s.PutEvent()
}

func (t *Turtle) OnTrade(s *strategy.Instance, trade schema.TradeData) {
	t.tradeCount++
	s.SyncData()
}
