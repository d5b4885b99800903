package repository

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bankcore/internal/domain"
)

func TestMemoryAccounts(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	_, err := store.GetAccount(ctx, "A")
	require.ErrorIs(t, err, domain.ErrAccountNotFound)

	acct := domain.Account{Number: "A", UserID: "u1", Type: "checking", Balance: decimal.NewFromInt(100)}
	require.NoError(t, store.SaveAccount(ctx, acct))

	got, err := store.GetAccount(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(100)))

	// Save is an upsert.
	acct.Balance = decimal.NewFromInt(50)
	require.NoError(t, store.SaveAccount(ctx, acct))
	got, err = store.GetAccount(ctx, "A")
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(50)))

	require.NoError(t, store.DeleteAccount(ctx, "A"))
	_, err = store.GetAccount(ctx, "A")
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
	require.ErrorIs(t, store.DeleteAccount(ctx, "A"), domain.ErrAccountNotFound)
}

func TestMemoryReferenceData(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	_, err := store.GetCard(ctx, "C1")
	require.ErrorIs(t, err, domain.ErrCardNotFound)
	_, err = store.GetCurrency(ctx, "USD")
	require.ErrorIs(t, err, domain.ErrUnknownCurrency)
	_, err = store.GetOrganization(ctx, "POWERGRID")
	require.ErrorIs(t, err, domain.ErrOrganizationNotFound)

	require.NoError(t, store.SaveCard(ctx, domain.Card{Number: "C1", AccountNumber: "A"}))
	require.NoError(t, store.SaveCurrency(ctx, domain.ForeignCurrency{Code: "USD", Rate: decimal.RequireFromString("1.34")}))
	require.NoError(t, store.SaveOrganization(ctx, domain.BillingOrganization{Code: "POWERGRID", Name: "Power Grid Ltd"}))

	card, err := store.GetCard(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, "A", card.AccountNumber)

	cur, err := store.GetCurrency(ctx, "USD")
	require.NoError(t, err)
	assert.True(t, cur.Rate.Equal(decimal.RequireFromString("1.34")))

	org, err := store.GetOrganization(ctx, "POWERGRID")
	require.NoError(t, err)
	assert.Equal(t, "Power Grid Ltd", org.Name)
}

func TestMemoryTransactionIDsAreMonotonic(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	date := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	for i := 1; i <= 3; i++ {
		tx, err := store.SaveTransaction(ctx, domain.Transaction{
			FromAccount: "A", ToAccount: "B",
			Amount: decimal.NewFromInt(int64(i)), Date: date,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(i), tx.ID)
	}

	// Foreign entries draw from the same sequence.
	tx, err := store.SaveTransaction(ctx, domain.Transaction{
		FromAccount: "A", ToAccount: "B",
		Amount: decimal.NewFromInt(10), Date: date,
		Foreign: &domain.ForeignLeg{CurrencyCode: "USD", ForeignAmount: decimal.RequireFromString("13.40")},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4), tx.ID)

	got, err := store.GetTransaction(ctx, 4)
	require.NoError(t, err)
	require.NotNil(t, got.Foreign)
	assert.Equal(t, "USD", got.Foreign.CurrencyCode)
}

func TestMemoryTransactionQueries(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	date := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	for _, from := range []string{"A", "B", "A"} {
		_, err := store.SaveTransaction(ctx, domain.Transaction{
			FromAccount: from, ToAccount: "Z",
			Amount: decimal.NewFromInt(1), Date: date,
		})
		require.NoError(t, err)
	}

	all, err := store.ListTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, int64(1), all[0].ID)
	assert.Equal(t, int64(3), all[2].ID)

	fromA, err := store.TransactionsByFromAccount(ctx, "A")
	require.NoError(t, err)
	require.Len(t, fromA, 2)
	assert.Equal(t, int64(1), fromA[0].ID)
	assert.Equal(t, int64(3), fromA[1].ID)

	_, err = store.GetTransaction(ctx, 99)
	require.ErrorIs(t, err, domain.ErrTransactionNotFound)
}

func TestMemoryRecurringPayments(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	daily, err := store.SaveRecurringPayment(ctx, domain.RecurringPayment{
		FromAccount: "A", ToAccount: "B",
		Amount: decimal.NewFromInt(10), Cadence: domain.CadenceDaily,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), daily.ID)

	weekly, err := store.SaveRecurringPayment(ctx, domain.RecurringPayment{
		FromAccount: "A", ToAccount: "B",
		Amount: decimal.NewFromInt(20), Cadence: domain.CadenceWeekly,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), weekly.ID)

	byCadence, err := store.RecurringPaymentsByCadence(ctx, domain.CadenceDaily)
	require.NoError(t, err)
	require.Len(t, byCadence, 1)
	assert.Equal(t, daily.ID, byCadence[0].ID)

	daily.LastSettled = "2024-06-01"
	_, err = store.SaveRecurringPayment(ctx, daily)
	require.NoError(t, err)
	got, err := store.GetRecurringPayment(ctx, daily.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-06-01", got.LastSettled)

	require.NoError(t, store.DeleteRecurringPayment(ctx, weekly.ID))
	require.ErrorIs(t, store.DeleteRecurringPayment(ctx, weekly.ID), domain.ErrEntryNotFound)

	all, err := store.ListRecurringPayments(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestMemoryMonthlyBills(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	bill, err := store.SaveMonthlyBill(ctx, domain.MonthlyBill{
		CardNumber: "C1", Organization: "POWERGRID",
		Amount: decimal.NewFromInt(50),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), bill.ID)

	got, err := store.GetMonthlyBill(ctx, bill.ID)
	require.NoError(t, err)
	assert.Equal(t, "POWERGRID", got.Organization)

	all, err := store.ListMonthlyBills(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, store.DeleteMonthlyBill(ctx, bill.ID))
	_, err = store.GetMonthlyBill(ctx, bill.ID)
	require.ErrorIs(t, err, domain.ErrEntryNotFound)
}
