package domain

import "errors"

// Domain errors. Stores return these sentinels; callers classify with
// errors.Is after the service layer has wrapped them with context.
var (
	ErrAccountNotFound      = errors.New("account not found")
	ErrCardNotFound         = errors.New("card not found")
	ErrUnknownCurrency      = errors.New("unknown currency")
	ErrOrganizationNotFound = errors.New("billing organization not found")
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrEntryNotFound        = errors.New("catalog entry not found")

	// ErrInvalidAmount rejects transfers of zero or negative amounts.
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrSameAccount rejects transfers where source and destination match.
	ErrSameAccount = errors.New("from and to accounts are the same")
	// ErrInvalidCadence rejects recurring payments outside daily/weekly/monthly.
	ErrInvalidCadence = errors.New("invalid cadence")
)
