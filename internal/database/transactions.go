package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/trogers1052/fund-tracker/internal/models"
)

// CreateTransaction inserts a new ledger entry
func (db *DB) CreateTransaction(t *models.Transaction) error {
	query := `
		INSERT INTO fund_transactions (
			fund_code, transaction_type, amount, nav, fee, shares,
			transaction_date, external_ref, source, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	now := time.Now()
	var externalRef, source sql.NullString
	if t.ExternalRef != "" {
		externalRef = sql.NullString{String: t.ExternalRef, Valid: true}
		source = sql.NullString{String: t.Source, Valid: true}
	}

	err := db.conn.QueryRow(query,
		t.FundCode, t.Type, t.Amount, t.Nav, t.Fee, t.Shares,
		t.Date, externalRef, source, now,
	).Scan(&t.ID)

	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	t.CreatedAt = now
	return nil
}

// GetTransactionByID retrieves a single ledger entry
func (db *DB) GetTransactionByID(id int) (*models.Transaction, error) {
	query := `
		SELECT id, fund_code, transaction_type, amount, nav, fee, shares,
		       transaction_date, external_ref, source, created_at
		FROM fund_transactions
		WHERE id = $1
	`
	var t models.Transaction
	var externalRef, source sql.NullString

	err := db.conn.QueryRow(query, id).Scan(
		&t.ID, &t.FundCode, &t.Type, &t.Amount, &t.Nav, &t.Fee, &t.Shares,
		&t.Date, &externalRef, &source, &t.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("transaction not found: %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	if externalRef.Valid {
		t.ExternalRef = externalRef.String
	}
	if source.Valid {
		t.Source = source.String
	}
	return &t, nil
}

// GetTransactions retrieves ledger entries matching the filter, sorted by
// date ascending with id as the tie-breaker so replays are deterministic.
func (db *DB) GetTransactions(filter models.TransactionFilter) ([]*models.Transaction, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT id, fund_code, transaction_type, amount, nav, fee, shares,
		       transaction_date, external_ref, source, created_at
		FROM fund_transactions
		WHERE 1=1
	`)

	var args []interface{}
	if filter.FundCode != "" {
		args = append(args, filter.FundCode)
		fmt.Fprintf(&sb, " AND fund_code = $%d", len(args))
	}
	if filter.StartDate != nil {
		args = append(args, *filter.StartDate)
		fmt.Fprintf(&sb, " AND transaction_date >= $%d", len(args))
	}
	if filter.EndDate != nil {
		args = append(args, *filter.EndDate)
		fmt.Fprintf(&sb, " AND transaction_date <= $%d", len(args))
	}
	if filter.Type != "" && filter.Type != "all" {
		args = append(args, filter.Type)
		fmt.Fprintf(&sb, " AND transaction_type = $%d", len(args))
	}
	sb.WriteString(" ORDER BY transaction_date ASC, id ASC")

	return db.scanTransactions(db.conn.Query(sb.String(), args...))
}

func (db *DB) scanTransactions(rows *sql.Rows, err error) ([]*models.Transaction, error) {
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*models.Transaction
	for rows.Next() {
		var t models.Transaction
		var externalRef, source sql.NullString

		err := rows.Scan(
			&t.ID, &t.FundCode, &t.Type, &t.Amount, &t.Nav, &t.Fee, &t.Shares,
			&t.Date, &externalRef, &source, &t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}

		if externalRef.Valid {
			t.ExternalRef = externalRef.String
		}
		if source.Valid {
			t.Source = source.String
		}
		transactions = append(transactions, &t)
	}

	return transactions, rows.Err()
}

// UpdateTransaction replaces the mutable fields of a ledger entry
func (db *DB) UpdateTransaction(t *models.Transaction) error {
	query := `
		UPDATE fund_transactions
		SET transaction_type = $2, amount = $3, nav = $4, fee = $5,
		    shares = $6, transaction_date = $7
		WHERE id = $1
	`
	result, err := db.conn.Exec(query,
		t.ID, t.Type, t.Amount, t.Nav, t.Fee, t.Shares, t.Date,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("transaction not found: %d: %w", t.ID, models.ErrNotFound)
	}
	return nil
}

// DeleteTransaction removes a ledger entry by ID
func (db *DB) DeleteTransaction(id int) error {
	result, err := db.conn.Exec(`DELETE FROM fund_transactions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("transaction not found: %d: %w", id, models.ErrNotFound)
	}
	return nil
}

// CountTransactionsByFund returns the number of ledger entries for a fund
func (db *DB) CountTransactionsByFund(code string) (int, error) {
	var count int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM fund_transactions WHERE fund_code = $1`, code,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

// TransactionExistsByExternalRef reports whether an imported transaction
// with the given (external_ref, source) pair is already recorded.
func (db *DB) TransactionExistsByExternalRef(externalRef, source string) (bool, error) {
	var exists bool
	err := db.conn.QueryRow(`
		SELECT EXISTS (
			SELECT 1 FROM fund_transactions
			WHERE external_ref = $1 AND source = $2
		)`, externalRef, source,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check for duplicate transaction: %w", err)
	}
	return exists, nil
}
