package repository

import (
	"fmt"
	"time"
)

// Timeframe represents candle resolution buckets.
type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF1H  Timeframe = "1H"
	TF4H  Timeframe = "4H"
	TF1D  Timeframe = "1D"
	TF1W  Timeframe = "1W"
	TF1M  Timeframe = "1M"
)

// ErrInvalidTimeframe is returned for unrecognized timeframe labels.
// Unknown labels are a hard failure: a silent 1H fallback would corrupt
// count and gap validation for a typo'd timeframe.
var ErrInvalidTimeframe = fmt.Errorf("invalid timeframe")

// IsValidTimeframe returns true if tf is a supported timeframe.
func IsValidTimeframe(tf Timeframe) bool {
	switch tf {
	case TF1m, TF5m, TF15m, TF1H, TF4H, TF1D, TF1W, TF1M:
		return true
	default:
		return false
	}
}

// Duration returns the fixed wall-clock length of one bar. 1M uses the
// conventional 30-day approximation.
func (tf Timeframe) Duration() (time.Duration, error) {
	switch tf {
	case TF1m:
		return time.Minute, nil
	case TF5m:
		return 5 * time.Minute, nil
	case TF15m:
		return 15 * time.Minute, nil
	case TF1H:
		return time.Hour, nil
	case TF4H:
		return 4 * time.Hour, nil
	case TF1D:
		return 24 * time.Hour, nil
	case TF1W:
		return 7 * 24 * time.Hour, nil
	case TF1M:
		return 30 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeframe, string(tf))
	}
}

// DurationMillis returns the bar length in epoch milliseconds.
func (tf Timeframe) DurationMillis() (int64, error) {
	d, err := tf.Duration()
	if err != nil {
		return 0, err
	}
	return d.Milliseconds(), nil
}

// BarsPerDay returns how many bars of this timeframe fit into one day.
// Daily-and-above timeframes return 0; they never get a one-day tolerance.
func (tf Timeframe) BarsPerDay() int {
	switch tf {
	case TF1m:
		return 24 * 60
	case TF5m:
		return 24 * 12
	case TF15m:
		return 24 * 4
	case TF1H:
		return 24
	case TF4H:
		return 6
	default:
		return 0
	}
}
