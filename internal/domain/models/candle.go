package models

// Candle represents one OHLCV record for a fixed time interval. Rows are
// immutable once stored and uniquely identified by
// (exchange, ticker, timeframe, timestamp).
type Candle struct {
	Ticker    string  `json:"ticker"`
	Timeframe string  `json:"timeframe"`
	Exchange  string  `json:"exchange"`
	Timestamp int64   `json:"timestamp"` // epoch ms, bar open time
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// CountValidation is the outcome of the bar-count check.
type CountValidation struct {
	Valid  bool
	Reason string
}

// Gap describes a run of missing bars inferred from an oversized interval
// between two consecutive stored candles.
type Gap struct {
	StartTimestamp int64
	EndTimestamp   int64
	Missing        int
	StartIndex     int
	EndIndex       int
}

// GapReport is the outcome of the timestamp-consistency check. Valid with an
// empty Gaps slice means the series is contiguous.
type GapReport struct {
	Valid  bool
	Reason string
	Gaps   []Gap
}

// TotalMissing sums missing bars across all gaps.
func (r GapReport) TotalMissing() int {
	n := 0
	for _, g := range r.Gaps {
		n += g.Missing
	}
	return n
}
