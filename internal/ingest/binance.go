// Package ingest turns venue websocket streams into tick data.
package ingest

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/yanun0323/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
	"github.com/yanun0323/pkg/ws"

	"main/internal/schema"
)

const _binanceBaseWsUrl = "wss://data-stream.binance.vision/ws"

// BinanceFeed merges the book ticker and aggregate trade streams of the
// subscribed symbols into level-1 ticks.
type BinanceFeed struct {
	wss   *ws.WebSocket
	books map[string]bookState
}

type bookState struct {
	lastPrice float64
	bidPrice  float64
	bidQty    int64
	askPrice  float64
	askQty    int64
}

func NewBinanceFeed(ctx context.Context) *BinanceFeed {
	return &BinanceFeed{
		wss:   ws.New(ctx, _binanceBaseWsUrl),
		books: make(map[string]bookState),
	}
}

func (repo *BinanceFeed) StartWebsocket(ctx context.Context) error {
	if err := repo.wss.Start(ctx); err != nil {
		return errors.Wrap(err, "start wss")
	}

	return nil
}

func (repo *BinanceFeed) Close() {
	repo.wss.Close()
}

type binanceSubscribeRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

type binanceSubscribeResponse struct {
	ID     int64 `json:"id"`
	Result any   `json:"result"`
}

func subscriberResponseParser(m ws.Message) (binanceSubscribeResponse, bool) {
	var resp binanceSubscribeResponse
	err := m.Unmarshal(&resp)
	return resp, err == nil
}

// Subscribe registers the book ticker and aggregate trade streams of one
// symbol.
func (repo *BinanceFeed) Subscribe(ctx context.Context, symbol string) error {
	appendIntoRegister := true
	if err := repo.wss.SendAndWait(ctx, ws.Sidecar{
		Sender: func(ctx context.Context, ws *ws.WebSocket) error {
			payload := binanceSubscribeRequest{
				Method: "SUBSCRIBE",
				Params: []string{
					fmt.Sprintf("%s@bookTicker", strings.ToLower(symbol)),
					fmt.Sprintf("%s@aggTrade", strings.ToLower(symbol)),
				},
				ID: 1,
			}

			if err := ws.WriteJSON(payload); err != nil {
				return errors.Wrap(err, "write subscribe payload").With("payload", payload)
			}

			return nil
		},
		Waiter: func(ctx context.Context, m ws.Message) (bool, error) {
			resp, ok := subscriberResponseParser(m)
			if !ok || resp.ID != 1 {
				return false, nil
			}

			if resp.Result != nil {
				return false, errors.Errorf("subscribe and wait, err: %+v", resp.Result)
			}
			return true, nil
		},
	}, appendIntoRegister); err != nil {
		return errors.Wrap(err, "send and wait")
	}

	return nil
}

type binanceBookTicker struct {
	UpdateID int64           `json:"u"`
	Symbol   string          `json:"s"`
	BidPrice decimal.Decimal `json:"b"`
	BidQty   decimal.Decimal `json:"B"`
	AskPrice decimal.Decimal `json:"a"`
	AskQty   decimal.Decimal `json:"A"`
}

type binanceAggTrade struct {
	EventType string          `json:"e"`
	EventTime int64           `json:"E"`
	Symbol    string          `json:"s"`
	Price     decimal.Decimal `json:"p"`
	Quantity  decimal.Decimal `json:"q"`
	TradeTime int64           `json:"T"`
}

// Observe pushes one tick per stream update until the context or the socket
// closes. Book updates reuse the last trade price; trade updates reuse the
// last book.
func (repo *BinanceFeed) Observe(ctx context.Context, handler func(tick schema.TickData)) (unsubscribe func()) {
	ch, cancel := repo.wss.Subscribe()

	go func() {
		defer cancel()
		for {
			select {
			case <-sys.Shutdown():
				return
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}

				if trade, ok := ws.ReadMessage[binanceAggTrade](m); ok && trade.EventType == "aggTrade" {
					repo.handleAggTrade(trade, handler)
					continue
				}

				if book, ok := ws.ReadMessage[binanceBookTicker](m); ok && book.Symbol != "" && book.UpdateID > 0 {
					repo.handleBookTicker(book, handler)
				}
			}
		}
	}()

	return cancel
}

func (repo *BinanceFeed) handleAggTrade(trade binanceAggTrade, handler func(schema.TickData)) {
	price, ok := parsePrice(trade.Price)
	if !ok {
		logs.Errorf("parse trade price: %s", trade.Price)
		return
	}
	qty, ok := parseQty(trade.Quantity)
	if !ok {
		logs.Errorf("parse trade quantity: %s", trade.Quantity)
		return
	}

	book := repo.books[trade.Symbol]
	book.lastPrice = price
	repo.books[trade.Symbol] = book

	handler(schema.TickData{
		Symbol:    trade.Symbol,
		Exchange:  schema.ExchangeBinance,
		Datetime:  time.UnixMilli(trade.TradeTime),
		LastPrice: price,
		LastQty:   qty,
		BidPrice:  book.bidPrice,
		BidQty:    book.bidQty,
		AskPrice:  book.askPrice,
		AskQty:    book.askQty,
	})
}

func (repo *BinanceFeed) handleBookTicker(ticker binanceBookTicker, handler func(schema.TickData)) {
	bidPrice, ok1 := parsePrice(ticker.BidPrice)
	bidQty, ok2 := parseQty(ticker.BidQty)
	askPrice, ok3 := parsePrice(ticker.AskPrice)
	askQty, ok4 := parseQty(ticker.AskQty)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		logs.Errorf("parse book ticker: %+v", ticker)
		return
	}

	book := repo.books[ticker.Symbol]
	book.bidPrice, book.bidQty = bidPrice, bidQty
	book.askPrice, book.askQty = askPrice, askQty
	repo.books[ticker.Symbol] = book

	handler(schema.TickData{
		Symbol:    ticker.Symbol,
		Exchange:  schema.ExchangeBinance,
		Datetime:  time.Now(),
		LastPrice: book.lastPrice,
		BidPrice:  bidPrice,
		BidQty:    bidQty,
		AskPrice:  askPrice,
		AskQty:    askQty,
	})
}

func parsePrice(d decimal.Decimal) (float64, bool) {
	v, err := strconv.ParseFloat(d.String(), 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

// parseQty rounds a venue quantity to whole contract units.
func parseQty(d decimal.Decimal) (int64, bool) {
	v, err := strconv.ParseFloat(d.String(), 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return int64(math.Round(v)), true
}
