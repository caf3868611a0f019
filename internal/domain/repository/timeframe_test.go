package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidTimeframe(t *testing.T) {
	for _, tf := range []Timeframe{TF1m, TF5m, TF15m, TF1H, TF4H, TF1D, TF1W, TF1M} {
		assert.True(t, IsValidTimeframe(tf), string(tf))
	}
	for _, tf := range []Timeframe{"", "2H", "1h", "30m", "1d"} {
		assert.False(t, IsValidTimeframe(tf), string(tf))
	}
}

func TestDuration(t *testing.T) {
	cases := map[Timeframe]time.Duration{
		TF1m:  time.Minute,
		TF5m:  5 * time.Minute,
		TF15m: 15 * time.Minute,
		TF1H:  time.Hour,
		TF4H:  4 * time.Hour,
		TF1D:  24 * time.Hour,
		TF1W:  7 * 24 * time.Hour,
		TF1M:  30 * 24 * time.Hour,
	}
	for tf, want := range cases {
		got, err := tf.Duration()
		require.NoError(t, err)
		assert.Equal(t, want, got, string(tf))
	}

	_, err := Timeframe("2H").Duration()
	assert.ErrorIs(t, err, ErrInvalidTimeframe)
}

func TestDurationMillis(t *testing.T) {
	ms, err := TF1H.DurationMillis()
	require.NoError(t, err)
	assert.Equal(t, int64(3_600_000), ms)
}

func TestBarsPerDay(t *testing.T) {
	assert.Equal(t, 1440, TF1m.BarsPerDay())
	assert.Equal(t, 288, TF5m.BarsPerDay())
	assert.Equal(t, 96, TF15m.BarsPerDay())
	assert.Equal(t, 24, TF1H.BarsPerDay())
	assert.Equal(t, 6, TF4H.BarsPerDay())
	assert.Equal(t, 0, TF1D.BarsPerDay())
	assert.Equal(t, 0, TF1W.BarsPerDay())
	assert.Equal(t, 0, TF1M.BarsPerDay())
}
