package db

import "errors"

// Domain-level database error sentinels.
var (
	// User errors
	ErrUserNotFound = errors.New("user not found")

	// Quota ledger errors. A missing row means a count of zero for the day.
	ErrLedgerEntryNotFound = errors.New("quota ledger entry not found")
)
