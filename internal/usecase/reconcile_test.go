package usecase

import (
	"testing"

	"CandleVault/internal/domain/models"
	domrepo "CandleVault/internal/domain/repository"

	"github.com/stretchr/testify/assert"
)

func newTestReconciler(t *testing.T) *CrossInstrumentReconciler {
	t.Helper()
	return NewCrossInstrumentReconciler(testLogger(t), noopMetrics{})
}

func TestReconcileDropsMismatchedInstrument(t *testing.T) {
	r := newTestReconciler(t)
	batch := map[string][]models.Candle{
		"AAA": makeSeries("AAA", domrepo.TF1H, 720, testUntil),
		"BBB": makeSeries("BBB", domrepo.TF1H, 720, testUntil),
		"CCC": makeSeries("CCC", domrepo.TF1H, 719, testUntil),
	}

	kept := r.Reconcile(batch)
	assert.Len(t, kept, 2)
	assert.Contains(t, kept, "AAA")
	assert.Contains(t, kept, "BBB")
	assert.NotContains(t, kept, "CCC")
}

func TestReconcileDropsShiftedWindow(t *testing.T) {
	step, _ := domrepo.TF1H.DurationMillis()
	r := newTestReconciler(t)
	batch := map[string][]models.Candle{
		"AAA": makeSeries("AAA", domrepo.TF1H, 720, testUntil),
		"BBB": makeSeries("BBB", domrepo.TF1H, 720, testUntil-step), // same count, shifted
	}

	kept := r.Reconcile(batch)
	assert.Len(t, kept, 1)
	assert.Contains(t, kept, "AAA") // deterministic tie-break: smallest ticker wins
}

func TestReconcileSingleInstrumentKept(t *testing.T) {
	r := newTestReconciler(t)
	batch := map[string][]models.Candle{
		"AAA": makeSeries("AAA", domrepo.TF1H, 100, testUntil),
	}
	kept := r.Reconcile(batch)
	assert.Len(t, kept, 1)
}

func TestReconcileEmptyBatchUnchanged(t *testing.T) {
	r := newTestReconciler(t)

	assert.Empty(t, r.Reconcile(map[string][]models.Candle{}))

	// all-empty batch has no reference, nothing to judge against
	batch := map[string][]models.Candle{"AAA": nil, "BBB": {}}
	kept := r.Reconcile(batch)
	assert.Len(t, kept, 2)
}

func TestReconcileDropsEmptyWhenReferenceExists(t *testing.T) {
	r := newTestReconciler(t)
	batch := map[string][]models.Candle{
		"AAA": makeSeries("AAA", domrepo.TF1H, 100, testUntil),
		"BBB": {},
	}
	kept := r.Reconcile(batch)
	assert.Len(t, kept, 1)
	assert.Contains(t, kept, "AAA")
}
