package store

import (
	"encoding/json"
	"time"

	"main/internal/errors"
	"main/internal/schema"
	"main/internal/strategy"
)

// strategyDataRow is the persisted form of a strategy data snapshot. The
// parameter and variable maps travel as JSON blobs so strategy classes can
// evolve without schema migrations.
type strategyDataRow struct {
	Name       string `gorm:"primaryKey"`
	Class      string
	Author     string
	VTSymbols  string `gorm:"column:vt_symbols"`
	Parameters string
	Variables  string
	UpdatedAt  time.Time
}

func (strategyDataRow) TableName() string { return "strategy_data" }

func newStrategyDataRow(data strategy.Data) (strategyDataRow, error) {
	symbols, err := json.Marshal(data.VTSymbols)
	if err != nil {
		return strategyDataRow{}, errors.Wrapf(err, "marshal instruments: %s", data.Name)
	}
	parameters, err := json.Marshal(data.Parameters)
	if err != nil {
		return strategyDataRow{}, errors.Wrapf(err, "marshal parameters: %s", data.Name)
	}
	variables, err := json.Marshal(data.Variables)
	if err != nil {
		return strategyDataRow{}, errors.Wrapf(err, "marshal variables: %s", data.Name)
	}
	return strategyDataRow{
		Name:       data.Name,
		Class:      data.Class,
		Author:     data.Author,
		VTSymbols:  string(symbols),
		Parameters: string(parameters),
		Variables:  string(variables),
		UpdatedAt:  time.Now(),
	}, nil
}

func (r strategyDataRow) data() (strategy.Data, error) {
	data := strategy.Data{
		Name:   r.Name,
		Class:  r.Class,
		Author: r.Author,
	}
	if err := json.Unmarshal([]byte(r.VTSymbols), &data.VTSymbols); err != nil {
		return strategy.Data{}, errors.Wrapf(err, "unmarshal instruments: %s", r.Name)
	}
	if err := json.Unmarshal([]byte(r.Parameters), &data.Parameters); err != nil {
		return strategy.Data{}, errors.Wrapf(err, "unmarshal parameters: %s", r.Name)
	}
	if err := json.Unmarshal([]byte(r.Variables), &data.Variables); err != nil {
		return strategy.Data{}, errors.Wrapf(err, "unmarshal variables: %s", r.Name)
	}
	return data, nil
}

// barRow is one persisted OHLCV candle.
type barRow struct {
	Symbol   string    `gorm:"primaryKey"`
	Exchange string    `gorm:"primaryKey"`
	Interval string    `gorm:"primaryKey"`
	Datetime time.Time `gorm:"primaryKey"`
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   int64
	Turnover float64
}

func (barRow) TableName() string { return "bar_history" }

func newBarRow(bar schema.BarData) barRow {
	return barRow{
		Symbol:   bar.Symbol,
		Exchange: string(bar.Exchange),
		Interval: bar.Interval.String(),
		Datetime: bar.Datetime,
		Open:     bar.Open,
		High:     bar.High,
		Low:      bar.Low,
		Close:    bar.Close,
		Volume:   bar.Volume,
		Turnover: bar.Turnover,
	}
}

func (r barRow) bar() schema.BarData {
	return schema.BarData{
		Symbol:   r.Symbol,
		Exchange: schema.Exchange(r.Exchange),
		Interval: schema.ParseInterval(r.Interval),
		Datetime: r.Datetime,
		Open:     r.Open,
		High:     r.High,
		Low:      r.Low,
		Close:    r.Close,
		Volume:   r.Volume,
		Turnover: r.Turnover,
	}
}
