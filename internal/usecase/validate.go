package usecase

import (
	"fmt"

	"CandleVault/internal/domain/models"
	domrepo "CandleVault/internal/domain/repository"
)

// gapThreshold is the relative deviation between two consecutive bar
// timestamps above which the interval is treated as anomalous.
const gapThreshold = 0.10

// ValidateCount checks the cached bar count against the expected count using
// the until-date-aware tolerance band. It is a pure comparison and never
// inspects timestamps.
func ValidateCount(candles []models.Candle, expected int, tf domrepo.Timeframe) models.CountValidation {
	allowed := AllowedDifferenceUntilDate(tf)
	diff := len(candles) - expected
	if diff < 0 {
		diff = -diff
	}

	if diff > allowed {
		return models.CountValidation{
			Valid: false,
			Reason: fmt.Sprintf("candle count off by %d: expected %d, got %d (allowed %d, %s + until-date buffer)",
				diff, expected, len(candles), allowed, ToleranceDescription(tf)),
		}
	}
	return models.CountValidation{Valid: true, Reason: "count within tolerance"}
}

// DetectGaps walks consecutive candles and reports every interval that
// deviates from the timeframe duration by more than gapThreshold. The input
// must be ascending by timestamp. Fewer than two candles is trivially valid.
func DetectGaps(candles []models.Candle, tf domrepo.Timeframe) (models.GapReport, error) {
	if len(candles) < 2 {
		return models.GapReport{Valid: true, Reason: "not enough candles to check"}, nil
	}

	step, err := tf.DurationMillis()
	if err != nil {
		return models.GapReport{}, err
	}

	var gaps []models.Gap
	for i := 1; i < len(candles); i++ {
		prev := candles[i-1].Timestamp
		cur := candles[i].Timestamp
		interval := cur - prev

		deviation := interval - step
		if deviation < 0 {
			deviation = -deviation
		}
		if float64(deviation) <= float64(step)*gapThreshold {
			continue
		}

		missing := int(interval/step) - 1
		if missing <= 0 {
			continue
		}
		gaps = append(gaps, models.Gap{
			StartTimestamp: prev,
			EndTimestamp:   cur,
			Missing:        missing,
			StartIndex:     i - 1,
			EndIndex:       i,
		})
	}

	if len(gaps) == 0 {
		return models.GapReport{Valid: true, Reason: "timestamps contiguous"}, nil
	}

	report := models.GapReport{Valid: false, Gaps: gaps}
	report.Reason = fmt.Sprintf("found %d gaps with %d missing candles total", len(gaps), report.TotalMissing())
	return report, nil
}
