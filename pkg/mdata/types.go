// Package mdata defines the market data records the ingestion adapter
// writes: candles, trades, and funding rates. Each record knows how to
// render itself as a wire payload; the remote service owns schema
// validation.
package mdata

import "strings"

// Candle is one OHLCV bar for a symbol at a fixed interval. Timestamps are
// Unix milliseconds.
type Candle struct {
	Symbol    string
	Interval  string
	OpenTime  int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	CloseTime int64
}

// Payload renders the candle as a wire payload keyed by the remote schema.
func (c Candle) Payload() map[string]any {
	return map[string]any{
		"symbol":     strings.ToUpper(strings.TrimSpace(c.Symbol)),
		"interval":   c.Interval,
		"timestamp":  c.OpenTime,
		"open":       c.Open,
		"high":       c.High,
		"low":        c.Low,
		"close":      c.Close,
		"volume":     c.Volume,
		"close_time": c.CloseTime,
	}
}

// Trade is one executed trade.
type Trade struct {
	Symbol    string
	TradeID   int64
	Price     float64
	Quantity  float64
	Side      string
	Timestamp int64
}

// Payload renders the trade as a wire payload.
func (t Trade) Payload() map[string]any {
	return map[string]any{
		"symbol":    strings.ToUpper(strings.TrimSpace(t.Symbol)),
		"trade_id":  t.TradeID,
		"price":     t.Price,
		"quantity":  t.Quantity,
		"side":      strings.ToLower(strings.TrimSpace(t.Side)),
		"timestamp": t.Timestamp,
	}
}

// FundingRate is one perpetual funding observation.
type FundingRate struct {
	Symbol      string
	Rate        float64
	MarkPrice   float64
	FundingTime int64
}

// Payload renders the funding rate as a wire payload.
func (f FundingRate) Payload() map[string]any {
	return map[string]any{
		"symbol":       strings.ToUpper(strings.TrimSpace(f.Symbol)),
		"funding_rate": f.Rate,
		"mark_price":   f.MarkPrice,
		"funding_time": f.FundingTime,
	}
}
