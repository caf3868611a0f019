package usecase

import (
	"testing"

	"CandleVault/internal/domain/models"
	domrepo "CandleVault/internal/domain/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCountWithinTolerance(t *testing.T) {
	// 1H until-date tolerance is 44 bars
	expected := 720
	for _, n := range []int{720, 720 - 44, 720 + 44} {
		res := ValidateCount(makeSeries("T", domrepo.TF1H, n, testUntil), expected, domrepo.TF1H)
		assert.True(t, res.Valid, "n=%d", n)
	}
}

func TestValidateCountOutsideTolerance(t *testing.T) {
	expected := 720
	for _, n := range []int{720 - 45, 720 + 45, 0} {
		res := ValidateCount(makeSeries("T", domrepo.TF1H, n, testUntil), expected, domrepo.TF1H)
		assert.False(t, res.Valid, "n=%d", n)
		assert.NotEmpty(t, res.Reason)
	}
}

func TestValidateCountDailyIsExact(t *testing.T) {
	res := ValidateCount(makeSeries("T", domrepo.TF1D, 365, testUntil), 365, domrepo.TF1D)
	assert.True(t, res.Valid)

	res = ValidateCount(makeSeries("T", domrepo.TF1D, 364, testUntil), 365, domrepo.TF1D)
	assert.False(t, res.Valid)
}

func TestDetectGapsContiguous(t *testing.T) {
	rep, err := DetectGaps(makeSeries("T", domrepo.TF1H, 48, testUntil), domrepo.TF1H)
	require.NoError(t, err)
	assert.True(t, rep.Valid)
	assert.Empty(t, rep.Gaps)
}

func TestDetectGapsTooFewCandles(t *testing.T) {
	for _, n := range []int{0, 1} {
		rep, err := DetectGaps(makeSeries("T", domrepo.TF1H, n, testUntil), domrepo.TF1H)
		require.NoError(t, err)
		assert.True(t, rep.Valid, "n=%d", n)
	}
}

func TestDetectGapsSingleGap(t *testing.T) {
	series := makeSeries("T", domrepo.TF1H, 48, testUntil)
	gapped := dropRange(series, 20, 25) // 5 missing bars

	rep, err := DetectGaps(gapped, domrepo.TF1H)
	require.NoError(t, err)
	assert.False(t, rep.Valid)
	require.Len(t, rep.Gaps, 1)
	assert.Equal(t, 5, rep.Gaps[0].Missing)
	assert.Equal(t, 5, rep.TotalMissing())
	assert.Equal(t, series[19].Timestamp, rep.Gaps[0].StartTimestamp)
	assert.Equal(t, series[25].Timestamp, rep.Gaps[0].EndTimestamp)
}

func TestDetectGapsMultipleGaps(t *testing.T) {
	series := makeSeries("T", domrepo.TF1H, 100, testUntil)
	gapped := dropRange(series, 10, 12)
	gapped = append(gapped[:50], gapped[51:]...) // one more missing bar

	rep, err := DetectGaps(gapped, domrepo.TF1H)
	require.NoError(t, err)
	assert.False(t, rep.Valid)
	assert.Len(t, rep.Gaps, 2)
	assert.Equal(t, 3, rep.TotalMissing())
}

func TestDetectGapsToleratesJitter(t *testing.T) {
	step, err := domrepo.TF1H.DurationMillis()
	require.NoError(t, err)

	series := makeSeries("T", domrepo.TF1H, 10, testUntil)
	// nudge every other bar by 5% of the step, inside the 10% threshold
	for i := 1; i < len(series); i += 2 {
		series[i].Timestamp += step / 20
	}

	rep, err := DetectGaps(series, domrepo.TF1H)
	require.NoError(t, err)
	assert.True(t, rep.Valid)
}

func TestDetectGapsInvalidTimeframe(t *testing.T) {
	_, err := DetectGaps([]models.Candle{{Timestamp: 1}, {Timestamp: 2}}, domrepo.Timeframe("2H"))
	assert.ErrorIs(t, err, domrepo.ErrInvalidTimeframe)
}
