package marketdata

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ever-flow/ETF/internal/database"
)

// HistoryStore persists cleaned daily closes so the presentation layer can
// run correlation lookups against retained series without refetching.
type HistoryStore struct {
	db  *database.DB
	log zerolog.Logger
}

// NewHistoryStore creates a history store over the engine database.
func NewHistoryStore(db *database.DB, log zerolog.Logger) *HistoryStore {
	return &HistoryStore{
		db:  db,
		log: log.With().Str("component", "history_store").Logger(),
	}
}

// UpsertSeries stores the cleaned series for one ticker, replacing existing
// rows for the same (ticker, date).
func (h *HistoryStore) UpsertSeries(ticker string, series Series) error {
	tx, err := h.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO daily_prices (ticker, date, close) VALUES (?, ?, ?)
		ON CONFLICT(ticker, date) DO UPDATE SET close = excluded.close
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for i, date := range series.Dates {
		if _, err := stmt.Exec(ticker, date.Unix(), series.Closes[i]); err != nil {
			return fmt.Errorf("failed to upsert price for %s: %w", ticker, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit prices for %s: %w", ticker, err)
	}
	return nil
}

// GetSeries fetches the stored series for one ticker, oldest first.
func (h *HistoryStore) GetSeries(ticker string) (Series, error) {
	rows, err := h.db.Conn().Query(`
		SELECT date, close FROM daily_prices
		WHERE ticker = ?
		ORDER BY date ASC
	`, ticker)
	if err != nil {
		return Series{}, fmt.Errorf("failed to query prices for %s: %w", ticker, err)
	}
	defer rows.Close()

	var series Series
	for rows.Next() {
		var dateUnix int64
		var close float64
		if err := rows.Scan(&dateUnix, &close); err != nil {
			return Series{}, fmt.Errorf("failed to scan price row: %w", err)
		}
		series.Dates = append(series.Dates, time.Unix(dateUnix, 0).UTC())
		series.Closes = append(series.Closes, close)
	}
	return series, rows.Err()
}
