package util

import (
    "strconv"
    "testing"
    "time"
)

func TestParseTimeRFC3339(t *testing.T) {
    s := "2024-10-10T10:10:10Z"
    got, ok := ParseTime(s)
    if !ok {
        t.Fatalf("expected ok")
    }
    if got.UTC().Format(time.RFC3339) != s {
        t.Fatalf("unexpected time %v", got)
    }
}

func TestParseTimeUnix(t *testing.T) {
    ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
    got, ok := ParseTime(strconv.FormatInt(ts, 10))
    if !ok {
        t.Fatalf("expected ok")
    }
    if got.Unix() != ts {
        t.Fatalf("unexpected unix %v", got.Unix())
    }
}

func TestAlignFromTo(t *testing.T) {
    from := time.Date(2024, 10, 10, 10, 37, 42, 0, time.UTC)
    to := time.Date(2024, 10, 10, 14, 3, 9, 0, time.UTC)

    gotFrom, gotTo := AlignFromTo(from, to, "1H")
    if gotFrom.Minute() != 0 || gotFrom.Second() != 0 {
        t.Fatalf("from not aligned: %v", gotFrom)
    }
    if gotTo.Hour() != 14 || gotTo.Minute() != 0 {
        t.Fatalf("to not aligned: %v", gotTo)
    }

    gotFrom, _ = AlignFromTo(from, to, "1D")
    if gotFrom.Hour() != 0 || gotFrom.Minute() != 0 {
        t.Fatalf("daily from not aligned: %v", gotFrom)
    }
}

func TestFormatTimestampSecondsAndMillis(t *testing.T) {
    want := "2024-10-10T10:10:10Z"
    ref := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)

    if got := FormatTimestamp(ref.Unix()); got != want {
        t.Fatalf("seconds: got %s", got)
    }
    if got := FormatTimestamp(ref.UnixMilli()); got != want {
        t.Fatalf("millis: got %s", got)
    }
}
