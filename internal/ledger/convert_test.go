package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bankcore/internal/domain"
	"bankcore/internal/repository"
)

func TestConvert(t *testing.T) {
	store := repository.NewMemory()
	svc := New(store, time.UTC)
	ctx := context.Background()

	require.NoError(t, store.SaveCurrency(ctx, domain.ForeignCurrency{
		Code: "USD", Name: "US Dollar", Rate: decimal.RequireFromString("1.34"),
	}))
	require.NoError(t, store.SaveCurrency(ctx, domain.ForeignCurrency{
		Code: "JPY", Name: "Japanese Yen", Rate: decimal.RequireFromString("0.0094"),
	}))

	tests := []struct {
		name   string
		amount string
		code   string
		want   string
	}{
		{"whole amount", "1000", "USD", "1340"},
		{"rounds down below midpoint", "1.49", "JPY", "0.01"},
		{"rounds to two decimals", "100", "JPY", "0.94"},
		// 0.75 * 1.34 = 1.005 exactly, a true x.xx5 tie.
		{"tie rounds up", "0.75", "USD", "1.01"},
		{"below midpoint rounds down", "0.74", "USD", "0.99"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := svc.Convert(ctx, decimal.RequireFromString(tc.amount), tc.code)
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tc.want)),
				"got %s, want %s", got, tc.want)
		})
	}
}

func TestConvertRoundsHalfUpOnTies(t *testing.T) {
	store := repository.NewMemory()
	svc := New(store, time.UTC)
	ctx := context.Background()

	// Identity rate isolates the rounding behavior.
	require.NoError(t, store.SaveCurrency(ctx, domain.ForeignCurrency{
		Code: "SGD", Name: "Singapore Dollar", Rate: decimal.NewFromInt(1),
	}))

	tests := []struct {
		amount string
		want   string
	}{
		{"2.675", "2.68"},
		{"2.674", "2.67"},
		{"1.005", "1.01"},
		{"1.0049", "1.00"},
	}

	for _, tc := range tests {
		got, err := svc.Convert(ctx, decimal.RequireFromString(tc.amount), "SGD")
		require.NoError(t, err)
		assert.True(t, got.Equal(decimal.RequireFromString(tc.want)),
			"%s: got %s, want %s", tc.amount, got, tc.want)
	}
}

func TestConvertResultWithinHalfCentOfProduct(t *testing.T) {
	store := repository.NewMemory()
	svc := New(store, time.UTC)
	ctx := context.Background()

	rate := decimal.RequireFromString("1.337733")
	require.NoError(t, store.SaveCurrency(ctx, domain.ForeignCurrency{
		Code: "EUR", Name: "Euro", Rate: rate,
	}))

	amount := decimal.RequireFromString("123.45")
	got, err := svc.Convert(ctx, amount, "EUR")
	require.NoError(t, err)

	diff := got.Sub(amount.Mul(rate)).Abs()
	assert.True(t, diff.LessThanOrEqual(decimal.RequireFromString("0.005")),
		"rounding moved the result by %s", diff)
}

func TestConvertUnknownCurrency(t *testing.T) {
	store := repository.NewMemory()
	svc := New(store, time.UTC)

	_, err := svc.Convert(context.Background(), decimal.NewFromInt(10), "XXX")
	require.ErrorIs(t, err, domain.ErrUnknownCurrency)
}
