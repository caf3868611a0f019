package usecase

import (
	"fmt"
	"strings"

	"CandleVault/internal/domain/models"
	domrepo "CandleVault/internal/domain/repository"
	xlogger "CandleVault/pkg/logger"
	"CandleVault/pkg/util"
)

// CrossInstrumentReconciler cross-checks a resolved batch: every instrument
// must match the reference instrument's bar count and first/last timestamps
// exactly, or it is dropped. The reference is the instrument with the most
// bars; ties break to the lexicographically smallest ticker so reconciliation
// is reproducible regardless of map iteration order.
type CrossInstrumentReconciler struct {
	logger  *xlogger.Logger
	metrics domrepo.Metrics
}

func NewCrossInstrumentReconciler(logger *xlogger.Logger, metrics domrepo.Metrics) *CrossInstrumentReconciler {
	return &CrossInstrumentReconciler{logger: logger, metrics: metrics}
}

// Reconcile filters batch down to instruments agreeing with the reference.
// A batch with no non-empty instrument is returned unchanged.
func (r *CrossInstrumentReconciler) Reconcile(batch map[string][]models.Candle) map[string][]models.Candle {
	refTicker := ""
	for ticker, candles := range batch {
		if len(candles) == 0 {
			continue
		}
		if refTicker == "" {
			refTicker = ticker
			continue
		}
		ref := batch[refTicker]
		if len(candles) > len(ref) || (len(candles) == len(ref) && ticker < refTicker) {
			refTicker = ticker
		}
	}
	if refTicker == "" {
		return batch
	}

	ref := batch[refTicker]
	refCount := len(ref)
	refFirst := ref[0].Timestamp
	refLast := ref[refCount-1].Timestamp

	r.logger.Debug("reconciliation reference selected",
		xlogger.String("ticker", refTicker),
		xlogger.Int("candles", refCount),
		xlogger.Int64("first", refFirst),
		xlogger.Int64("last", refLast))

	kept := make(map[string][]models.Candle, len(batch))
	for ticker, candles := range batch {
		if reason := mismatchReason(candles, refCount, refFirst, refLast); reason != "" {
			r.logger.Warn("ticker dropped by reconciliation",
				xlogger.String("ticker", ticker),
				xlogger.String("reference", refTicker),
				xlogger.String("reason", reason))
			r.metrics.RecordDropped(reasonLabel(reason))
			continue
		}
		kept[ticker] = candles
	}
	return kept
}

// mismatchReason returns "" when candles agree with the reference, otherwise
// a diagnostic naming every field that disagrees.
func mismatchReason(candles []models.Candle, refCount int, refFirst, refLast int64) string {
	if len(candles) == 0 {
		return "empty"
	}

	var fields []string
	if len(candles) != refCount {
		fields = append(fields, fmt.Sprintf("count %d != %d", len(candles), refCount))
	}
	if candles[0].Timestamp != refFirst {
		fields = append(fields, fmt.Sprintf("first %s != %s",
			util.FormatTimestamp(candles[0].Timestamp), util.FormatTimestamp(refFirst)))
	}
	if candles[len(candles)-1].Timestamp != refLast {
		fields = append(fields, fmt.Sprintf("last %s != %s",
			util.FormatTimestamp(candles[len(candles)-1].Timestamp), util.FormatTimestamp(refLast)))
	}
	return strings.Join(fields, ", ")
}

func reasonLabel(reason string) string {
	switch {
	case reason == "empty":
		return "empty"
	case strings.Contains(reason, "count"):
		return "count"
	case strings.Contains(reason, "first"):
		return "first"
	default:
		return "last"
	}
}
