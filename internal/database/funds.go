package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/fund-tracker/internal/models"
)

// SaveFund inserts or updates fund settings (upsert keyed by fund code)
func (db *DB) SaveFund(f *models.Fund) error {
	query := `
		INSERT INTO funds (
			fund_code, fund_name, fund_type, current_nav, last_update_time,
			buy_fee_rate, sell_fee_lt7, sell_fee_lt365, sell_fee_gt365,
			target_allocation, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (fund_code) DO UPDATE SET
			fund_name = EXCLUDED.fund_name,
			fund_type = EXCLUDED.fund_type,
			buy_fee_rate = EXCLUDED.buy_fee_rate,
			sell_fee_lt7 = EXCLUDED.sell_fee_lt7,
			sell_fee_lt365 = EXCLUDED.sell_fee_lt365,
			sell_fee_gt365 = EXCLUDED.sell_fee_gt365,
			target_allocation = EXCLUDED.target_allocation,
			updated_at = EXCLUDED.updated_at
	`
	now := time.Now()
	_, err := db.conn.Exec(query,
		f.Code, f.Name, f.Category, f.CurrentNav, f.LastUpdateTime,
		f.BuyFeeRate, f.SellFeeLt7, f.SellFeeLt365, f.SellFeeGt365,
		f.TargetAllocation, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save fund: %w", err)
	}
	f.CreatedAt = now
	f.UpdatedAt = now
	return nil
}

// EnsureFund inserts a fund row with defaults if the code is unknown.
// Used when a transaction references a fund that has no settings yet.
func (db *DB) EnsureFund(code, name string, nav decimal.Decimal) error {
	query := `
		INSERT INTO funds (fund_code, fund_name, current_nav, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (fund_code) DO NOTHING
	`
	_, err := db.conn.Exec(query, code, name, nav, time.Now())
	if err != nil {
		return fmt.Errorf("failed to ensure fund: %w", err)
	}
	return nil
}

// GetFund retrieves a fund by code
func (db *DB) GetFund(code string) (*models.Fund, error) {
	query := `
		SELECT fund_code, fund_name, fund_type, current_nav, last_update_time,
		       buy_fee_rate, sell_fee_lt7, sell_fee_lt365, sell_fee_gt365,
		       target_allocation, created_at, updated_at
		FROM funds
		WHERE fund_code = $1
	`
	var f models.Fund
	var lastUpdate sql.NullTime

	err := db.conn.QueryRow(query, code).Scan(
		&f.Code, &f.Name, &f.Category, &f.CurrentNav, &lastUpdate,
		&f.BuyFeeRate, &f.SellFeeLt7, &f.SellFeeLt365, &f.SellFeeGt365,
		&f.TargetAllocation, &f.CreatedAt, &f.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("fund not found: %s: %w", code, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get fund: %w", err)
	}

	if lastUpdate.Valid {
		f.LastUpdateTime = &lastUpdate.Time
	}
	return &f, nil
}

// GetAllFunds retrieves all funds ordered by code
func (db *DB) GetAllFunds() ([]*models.Fund, error) {
	query := `
		SELECT fund_code, fund_name, fund_type, current_nav, last_update_time,
		       buy_fee_rate, sell_fee_lt7, sell_fee_lt365, sell_fee_gt365,
		       target_allocation, created_at, updated_at
		FROM funds
		ORDER BY fund_code ASC
	`
	rows, err := db.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query funds: %w", err)
	}
	defer rows.Close()

	var funds []*models.Fund
	for rows.Next() {
		var f models.Fund
		var lastUpdate sql.NullTime

		err := rows.Scan(
			&f.Code, &f.Name, &f.Category, &f.CurrentNav, &lastUpdate,
			&f.BuyFeeRate, &f.SellFeeLt7, &f.SellFeeLt365, &f.SellFeeGt365,
			&f.TargetAllocation, &f.CreatedAt, &f.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fund: %w", err)
		}

		if lastUpdate.Valid {
			f.LastUpdateTime = &lastUpdate.Time
		}
		funds = append(funds, &f)
	}

	return funds, rows.Err()
}

// UpdateFundNav writes a resolved NAV onto the fund row. This is the
// write-through cache side of NAV resolution: advisory, last writer wins.
func (db *DB) UpdateFundNav(code string, nav decimal.Decimal, asOf time.Time) error {
	query := `
		UPDATE funds
		SET current_nav = $2, last_update_time = $3, updated_at = NOW()
		WHERE fund_code = $1
	`
	result, err := db.conn.Exec(query, code, nav, asOf)
	if err != nil {
		return fmt.Errorf("failed to update fund nav: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("fund not found: %s: %w", code, models.ErrNotFound)
	}
	return nil
}

// DeleteFund removes a fund. Rejected while transactions reference it.
func (db *DB) DeleteFund(code string) error {
	count, err := db.CountTransactionsByFund(code)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("fund %s has %d transactions: %w", code, count, models.ErrIntegrity)
	}

	result, err := db.conn.Exec(`DELETE FROM funds WHERE fund_code = $1`, code)
	if err != nil {
		return fmt.Errorf("failed to delete fund: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("fund not found: %s: %w", code, models.ErrNotFound)
	}
	return nil
}
