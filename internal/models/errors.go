package models

import "errors"

// Sentinel errors for the service error taxonomy. Callers wrap these with
// fmt.Errorf("...: %w", ...) and match with errors.Is.
var (
	// ErrValidation covers bad ledger input: missing fields, non-positive
	// amount or nav, unknown transaction type, oversells.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound covers missing funds, transactions, or NAVs within the
	// resolver's lookback window.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable covers network or parse failures from the quote
	// provider. Non-fatal: batch operations continue past it.
	ErrUnavailable = errors.New("quote provider unavailable")

	// ErrIntegrity covers writes rejected to protect referential state,
	// such as deleting a fund that still has transactions.
	ErrIntegrity = errors.New("integrity violation")
)
