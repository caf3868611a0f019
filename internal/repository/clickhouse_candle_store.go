package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"CandleVault/internal/domain/models"
	domrepo "CandleVault/internal/domain/repository"
)

// ClickHouseCandleStore implements CandleStore over the shared candle cache
// table. The service only reads; rows are written by the loader collaborator.
type ClickHouseCandleStore struct {
	db    *sql.DB
	table string
}

// NewClickHouseCandleStore creates ClickHouse-backed candle storage.
func NewClickHouseCandleStore(db *sql.DB, table string) domrepo.CandleStore {
	return &ClickHouseCandleStore{db: db, table: table}
}

func (s *ClickHouseCandleStore) FindBefore(ctx context.Context, exchange, ticker string, tf domrepo.Timeframe, until int64) ([]models.Candle, error) {
	q := fmt.Sprintf(
		"SELECT ticker, timeframe, exchange, ts, open, high, low, close, volume FROM %s WHERE ticker = ? AND timeframe = ? AND exchange = ? AND ts < ? ORDER BY ts DESC",
		s.table)
	rows, err := s.db.QueryContext(ctx, q, ticker, string(tf), exchange, time.UnixMilli(until).UTC())
	if err != nil {
		return nil, fmt.Errorf("find candles before: %w", err)
	}
	defer rows.Close()

	var candles []models.Candle
	for rows.Next() {
		var c models.Candle
		var ts time.Time
		if err := rows.Scan(&c.Ticker, &c.Timeframe, &c.Exchange, &ts, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		c.Timestamp = ts.UnixMilli()
		candles = append(candles, c)
	}
	return candles, rows.Err()
}

func (s *ClickHouseCandleStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
