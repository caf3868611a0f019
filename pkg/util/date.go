package util

import (
    "strconv"
    "time"
)

// ParseTime tries RFC3339, RFC3339Nano, and unix seconds. Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
    if s == "" {
        return time.Time{}, false
    }
    if t, err := time.Parse(time.RFC3339, s); err == nil {
        return t, true
    }
    if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
        return t, true
    }
    if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
        return time.Unix(ts, 0), true
    }
    return time.Time{}, false
}

// AlignFromTo rounds the time range to bar boundaries for the timeframe.
func AlignFromTo(from, to time.Time, tf string) (time.Time, time.Time) {
    var d time.Duration
    switch tf {
    case "1m":
        d = time.Minute
    case "5m":
        d = 5 * time.Minute
    case "15m":
        d = 15 * time.Minute
    case "1H":
        d = time.Hour
    case "4H":
        d = 4 * time.Hour
    case "1D", "1W", "1M":
        d = 24 * time.Hour
    default:
        d = time.Minute
    }
    return from.Truncate(d), to.Truncate(d)
}

// epochMillisFloor: any epoch at or above this is taken as milliseconds.
const epochMillisFloor = 100_000_000_000

// FormatTimestamp renders a second- or millisecond-epoch value as RFC3339 UTC.
func FormatTimestamp(ts int64) string {
    if ts >= epochMillisFloor {
        return time.UnixMilli(ts).UTC().Format(time.RFC3339)
    }
    return time.Unix(ts, 0).UTC().Format(time.RFC3339)
}