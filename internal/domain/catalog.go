package domain

import "github.com/shopspring/decimal"

// Cadence is the recurrence category of a standing payment instruction.
type Cadence string

const (
	CadenceDaily   Cadence = "daily"
	CadenceWeekly  Cadence = "weekly"
	CadenceMonthly Cadence = "monthly"
)

// Valid reports whether c is one of the three supported cadences.
func (c Cadence) Valid() bool {
	switch c {
	case CadenceDaily, CadenceWeekly, CadenceMonthly:
		return true
	}
	return false
}

// RecurringPayment is a standing transfer instruction. Every scheduler tick
// matching its cadence produces one new Transaction with the same amount and
// description, dated to the tick's calendar day.
//
// LastSettled holds the period key of the last period this entry settled in
// (or was deliberately skipped in); it is what keeps a re-fired tick from
// settling the same entry twice within one period.
type RecurringPayment struct {
	ID          int64
	FromAccount string
	ToAccount   string
	Amount      decimal.Decimal
	Cadence     Cadence
	Description string
	LastSettled string
}

// MonthlyBill is a standing card-funded obligation to a billing organization.
// Settlement is debit-only and conditional on sufficient balance; the
// organization is not a ledger account.
type MonthlyBill struct {
	ID           int64
	CardNumber   string
	Organization string
	Amount       decimal.Decimal
	Description  string
	LastSettled  string
}
