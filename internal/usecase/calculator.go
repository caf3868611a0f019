package usecase

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	domrepo "CandleVault/internal/domain/repository"
)

// Period arithmetic constants. Months and years use the conventional
// 30/365-day approximations; the count tolerance absorbs the drift.
const (
	daysPerWeek  = 7
	daysPerMonth = 30
	daysPerYear  = 365
)

var periodPattern = regexp.MustCompile(`^(\d+)\s*(.*)$`)

// ParsePeriodDays converts a human period label ("day", "week", "1 month",
// "6 months", "2 years") into a day count.
func ParsePeriodDays(period string) (int, error) {
	p := strings.ToLower(strings.TrimSpace(period))
	if p == "" {
		return 0, fmt.Errorf("period is empty")
	}

	if m := periodPattern.FindStringSubmatch(p); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, fmt.Errorf("parse period %q: %w", period, err)
		}
		switch strings.TrimSpace(m[2]) {
		case "year", "years":
			return n * daysPerYear, nil
		case "month", "months":
			return n * daysPerMonth, nil
		case "week", "weeks":
			return n * daysPerWeek, nil
		case "day", "days":
			return n, nil
		default:
			return 0, fmt.Errorf("unknown period unit in %q", period)
		}
	}

	switch p {
	case "day":
		return 1, nil
	case "week":
		return daysPerWeek, nil
	case "month":
		return daysPerMonth, nil
	case "year":
		return daysPerYear, nil
	default:
		return 0, fmt.Errorf("unknown period %q", period)
	}
}

// ExpectedCount returns how many bars of tf the period should yield.
func ExpectedCount(tf domrepo.Timeframe, period string) (int, error) {
	days, err := ParsePeriodDays(period)
	if err != nil {
		return 0, err
	}

	switch tf {
	case domrepo.TF1m:
		return days * 24 * 60, nil
	case domrepo.TF5m:
		return days * 24 * 12, nil
	case domrepo.TF15m:
		return days * 24 * 4, nil
	case domrepo.TF1H:
		return days * 24, nil
	case domrepo.TF4H:
		return days * 6, nil
	case domrepo.TF1D:
		return days, nil
	case domrepo.TF1W:
		return days / daysPerWeek, nil
	case domrepo.TF1M:
		return days / daysPerMonth, nil
	default:
		return 0, fmt.Errorf("%w: %q", domrepo.ErrInvalidTimeframe, string(tf))
	}
}

// AllowedDifference returns the tolerance band for count validation:
// one day's worth of bars for sub-daily timeframes, exact match otherwise.
func AllowedDifference(tf domrepo.Timeframe) int {
	return tf.BarsPerDay()
}

// AllowedDifferenceUntilDate widens the base tolerance for windows cut at an
// arbitrary until-date: 1.5x the base band plus a per-timeframe buffer for
// the boundary bar that may straddle the cutoff.
func AllowedDifferenceUntilDate(tf domrepo.Timeframe) int {
	base := AllowedDifference(tf) * 3 / 2

	var buffer int
	switch tf {
	case domrepo.TF1m:
		buffer = 48
	case domrepo.TF5m:
		buffer = 24
	case domrepo.TF15m:
		buffer = 16
	case domrepo.TF1H:
		buffer = 8
	case domrepo.TF4H:
		buffer = 6
	}

	return base + buffer
}

// ToleranceDescription returns a human-readable tolerance label for
// diagnostics.
func ToleranceDescription(tf domrepo.Timeframe) string {
	switch tf {
	case domrepo.TF1m, domrepo.TF5m, domrepo.TF15m, domrepo.TF1H, domrepo.TF4H:
		return "±1 day"
	case domrepo.TF1D, domrepo.TF1W, domrepo.TF1M:
		return "exact match"
	default:
		return "unknown"
	}
}
