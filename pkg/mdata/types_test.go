package mdata

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCandle_Payload(t *testing.T) {
	c := Candle{
		Symbol:    " btcusdt ",
		Interval:  "15m",
		OpenTime:  1717200000000,
		Open:      67000.5,
		High:      67200,
		Low:       66800,
		Close:     67100,
		Volume:    123.45,
		CloseTime: 1717200899999,
	}
	p := c.Payload()
	require.Equal(t, "BTCUSDT", p["symbol"], "symbol is normalized")
	require.Equal(t, "15m", p["interval"])
	require.Equal(t, int64(1717200000000), p["timestamp"], "open time keys the bar")
	require.Equal(t, 67000.5, p["open"])
	require.Equal(t, int64(1717200899999), p["close_time"])
}

func TestTrade_Payload(t *testing.T) {
	tr := Trade{Symbol: "ethusdt", TradeID: 42, Price: 3000.25, Quantity: 0.5, Side: "SELL", Timestamp: 1717200000123}
	p := tr.Payload()
	require.Equal(t, "ETHUSDT", p["symbol"])
	require.Equal(t, int64(42), p["trade_id"])
	require.Equal(t, "sell", p["side"], "side is lowercased")
	require.Equal(t, int64(1717200000123), p["timestamp"])
}

func TestFundingRate_Payload(t *testing.T) {
	f := FundingRate{Symbol: "btcusdt", Rate: 0.0001, MarkPrice: 67000, FundingTime: 1717228800000}
	p := f.Payload()
	require.Equal(t, "BTCUSDT", p["symbol"])
	require.Equal(t, 0.0001, p["funding_rate"])
	require.Equal(t, int64(1717228800000), p["funding_time"], "funding rows key on funding_time")
}
