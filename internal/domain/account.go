package domain

import "github.com/shopspring/decimal"

// Account is a ledger account identified by its account number. Balances are
// signed: the transfer primitive never blocks an account from going negative,
// only bill settlement gates on available funds.
type Account struct {
	Number          string
	UserID          string
	Type            string
	Balance         decimal.Decimal
	SpendingLimit   decimal.Decimal
	WithdrawalLimit decimal.Decimal
}

// Card is a credit/debit card tied to exactly one account. Monthly bills are
// funded through the card's linked account.
type Card struct {
	Number        string
	AccountNumber string
	Type          string
	SpendingLimit decimal.Decimal
}
