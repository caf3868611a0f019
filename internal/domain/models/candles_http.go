package models

// Requests for the candles HTTP endpoints. Defined in domain for consistency and reuse.

// ValidatedCandlesRequest is the body of POST /api/candles/validated.
// minVolume is in millions of quote currency.
type ValidatedCandlesRequest struct {
	Exchange       string   `json:"exchange" default:"OKX" validate:"required"`
	Timeframe      string   `json:"timeframe" default:"1H" validate:"required,oneof=1m 5m 15m 1H 4H 1D 1W 1M"`
	Period         string   `json:"period" default:"1 month" validate:"required"`
	UntilDate      string   `json:"untilDate" validate:"omitempty"`
	MinVolume      float64  `json:"minVolume" default:"10" validate:"gte=0"`
	UseCache       bool     `json:"useCache" default:"true"`
	Sorted         bool     `json:"sorted" default:"true"`
	Tickers        []string `json:"tickers,omitempty"`
	ExcludeTickers []string `json:"excludeTickers,omitempty"`
}

// ValidatedCandlesResponse maps ticker to its reconciled candle window.
type ValidatedCandlesResponse map[string][]Candle
