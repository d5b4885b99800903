package domain

import "github.com/shopspring/decimal"

// ForeignCurrency is static reference data: the exchange rate applied when a
// foreign transfer is converted to the base currency.
type ForeignCurrency struct {
	Code string
	Name string
	Rate decimal.Decimal
}

// BillingOrganization is static reference data identifying a payee of
// monthly bills.
type BillingOrganization struct {
	Code string
	Name string
}
