package ingest

import "strings"

// Target-name prefixes understood by the write router. Candle targets carry
// an interval suffix (kline_15m), trade and funding targets a symbol suffix
// (trades_BTCUSDT, funding_BTCUSDT). Anything else routes generically.
const (
	CandlePrefix  = "kline_"
	TradePrefix   = "trades_"
	FundingPrefix = "funding_"
)

// Kind tags the logical category of a write target.
type Kind int

const (
	KindGeneric Kind = iota
	KindCandles
	KindTrades
	KindFunding
)

// String returns the kind label used in logs and metrics.
func (k Kind) String() string {
	switch k {
	case KindCandles:
		return "candles"
	case KindTrades:
		return "trades"
	case KindFunding:
		return "funding"
	default:
		return "generic"
	}
}

// DataKind is the parsed form of a target name: a closed variant over the
// routing categories. Exactly one of Interval/Symbol/Name is meaningful
// depending on Kind.
type DataKind struct {
	Kind     Kind
	Interval string // candles only
	Symbol   string // trades/funding only
	Name     string // full target name, always set
}

// ParseTarget derives the DataKind from a target name. Unrecognized names
// parse as generic, never as an error.
func ParseTarget(target string) DataKind {
	name := strings.TrimSpace(target)
	switch {
	case strings.HasPrefix(name, CandlePrefix):
		return DataKind{Kind: KindCandles, Interval: strings.TrimPrefix(name, CandlePrefix), Name: name}
	case strings.HasPrefix(name, TradePrefix):
		return DataKind{Kind: KindTrades, Symbol: strings.TrimPrefix(name, TradePrefix), Name: name}
	case strings.HasPrefix(name, FundingPrefix):
		return DataKind{Kind: KindFunding, Symbol: strings.TrimPrefix(name, FundingPrefix), Name: name}
	default:
		return DataKind{Kind: KindGeneric, Name: name}
	}
}

// TimestampField returns the field used for latest-record ordering on this
// target.
func (d DataKind) TimestampField() string {
	if d.Kind == KindFunding {
		return "funding_time"
	}
	return "timestamp"
}
