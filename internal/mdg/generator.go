// Package mdg creates synthetic market data ticks for development and load
// testing.
package mdg

import (
	"math"
	"math/rand"
	"time"

	"main/internal/errors"
	"main/internal/schema"
)

// Generator walks one synthetic price per contract. Deterministic for a fixed
// seed.
type Generator struct {
	contracts []schema.Contract
	prices    []float64
	rng       *rand.Rand
	baseQty   int64
	drift     float64
	index     int
}

// NewGenerator creates a generator for all contracts in the registry. Each
// price walk starts at basePrice and moves up to drift price ticks per tick.
func NewGenerator(reg *schema.ContractRegistry, basePrice float64, baseQty int64, drift float64, seed int64) (*Generator, error) {
	if reg == nil || reg.Len() == 0 {
		return nil, errors.Config("mdg: registry has no contracts")
	}
	if basePrice <= 0 {
		return nil, errors.Config("mdg: base price must be positive")
	}
	if baseQty <= 0 {
		baseQty = 1
	}
	if drift <= 0 {
		drift = 1
	}

	contracts := make([]schema.Contract, 0, reg.Len())
	prices := make([]float64, 0, reg.Len())
	for _, vt := range reg.Keys() {
		contract, ok := reg.Contract(vt)
		if !ok {
			continue
		}
		contracts = append(contracts, contract)
		prices = append(prices, basePrice)
	}

	return &Generator{
		contracts: contracts,
		prices:    prices,
		rng:       rand.New(rand.NewSource(seed)),
		baseQty:   baseQty,
		drift:     drift,
	}, nil
}

// Next creates the next tick, cycling through the contracts round-robin.
func (g *Generator) Next(now time.Time) schema.TickData {
	i := g.index
	g.index = (g.index + 1) % len(g.contracts)

	contract := g.contracts[i]
	step := (g.rng.Float64()*2 - 1) * g.drift * contract.PriceTick
	price := g.prices[i] + step
	if price < contract.PriceTick {
		price = contract.PriceTick
	}
	price = math.Round(price/contract.PriceTick) * contract.PriceTick
	g.prices[i] = price

	qty := g.baseQty + g.rng.Int63n(g.baseQty)
	return schema.TickData{
		Symbol:    contract.Symbol,
		Exchange:  contract.Exchange,
		Datetime:  now,
		LastPrice: price,
		LastQty:   qty,
		BidPrice:  price - contract.PriceTick,
		BidQty:    qty,
		AskPrice:  price + contract.PriceTick,
		AskQty:    qty,
	}
}

// Run emits ticks at the interval until done closes.
func (g *Generator) Run(done <-chan struct{}, interval time.Duration, handler func(schema.TickData)) {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case now := <-ticker.C:
			handler(g.Next(now))
		}
	}
}
