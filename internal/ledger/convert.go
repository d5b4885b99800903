package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Convert applies the registered exchange rate for currencyCode to amount
// and rounds the result to two decimal places.
//
// Rounding is half-up (decimal rounds halves away from zero, and amounts
// here are positive): 2.675 becomes 2.68, 2.674 becomes 2.67.
func (s *Service) Convert(ctx context.Context, amount decimal.Decimal, currencyCode string) (decimal.Decimal, error) {
	cur, err := s.store.GetCurrency(ctx, currencyCode)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("currency %s: %w", currencyCode, err)
	}
	return amount.Mul(cur.Rate).Round(2), nil
}
