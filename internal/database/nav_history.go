package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/fund-tracker/internal/models"
)

// SaveNavHistory upserts a historical NAV for (fund, date). The resolver
// writes provider hits here so repeat lookups stay local.
func (db *DB) SaveNavHistory(code string, navDate time.Time, nav decimal.Decimal) error {
	query := `
		INSERT INTO fund_nav_history (fund_code, nav_date, nav, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (fund_code, nav_date) DO UPDATE SET
			nav = EXCLUDED.nav
	`
	_, err := db.conn.Exec(query, code, navDate, nav, time.Now())
	if err != nil {
		return fmt.Errorf("failed to save nav history: %w", err)
	}
	return nil
}

// GetNavOnDate retrieves the stored NAV for an exact calendar date
func (db *DB) GetNavOnDate(code string, navDate time.Time) (*models.NavQuote, error) {
	query := `
		SELECT fund_code, nav_date, nav
		FROM fund_nav_history
		WHERE fund_code = $1 AND nav_date = $2
	`
	var q models.NavQuote
	err := db.conn.QueryRow(query, code, navDate).Scan(&q.FundCode, &q.Date, &q.Nav)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("nav not found for %s on %s: %w",
			code, navDate.Format("2006-01-02"), models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get nav history: %w", err)
	}
	return &q, nil
}

// GetNavRange retrieves stored NAVs for a fund within a date range,
// ordered by date ascending
func (db *DB) GetNavRange(code string, startDate, endDate time.Time) ([]*models.NavQuote, error) {
	query := `
		SELECT fund_code, nav_date, nav
		FROM fund_nav_history
		WHERE fund_code = $1 AND nav_date >= $2 AND nav_date <= $3
		ORDER BY nav_date ASC
	`
	rows, err := db.conn.Query(query, code, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("failed to query nav history: %w", err)
	}
	defer rows.Close()

	var quotes []*models.NavQuote
	for rows.Next() {
		var q models.NavQuote
		if err := rows.Scan(&q.FundCode, &q.Date, &q.Nav); err != nil {
			return nil, fmt.Errorf("failed to scan nav history: %w", err)
		}
		quotes = append(quotes, &q)
	}

	return quotes, rows.Err()
}

// DeleteNavHistoryOlderThan trims stored NAVs before the given date
func (db *DB) DeleteNavHistoryOlderThan(date time.Time) (int64, error) {
	result, err := db.conn.Exec(`DELETE FROM fund_nav_history WHERE nav_date < $1`, date)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old nav history: %w", err)
	}
	return result.RowsAffected()
}
