package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one immutable ledger entry. IDs come from a single
// monotonically increasing sequence shared by domestic and foreign entries.
//
// For foreign entries Amount is the amount as originally requested in the
// foreign currency, kept for audit; the Foreign leg carries the converted
// base-currency amount, which is what actually moved between the accounts.
type Transaction struct {
	ID          int64
	FromAccount string
	// ToAccount is an account number for transfers, or a billing
	// organization code for bill settlements.
	ToAccount   string
	Amount      decimal.Decimal
	Date        time.Time
	Description string
	Foreign     *ForeignLeg
}

// ForeignLeg marks a transaction as foreign-currency sourced.
type ForeignLeg struct {
	CurrencyCode  string
	ForeignAmount decimal.Decimal
}

// CalendarDay truncates t to its calendar day in loc. Ledger dates have day
// granularity, never time-of-day.
func CalendarDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
