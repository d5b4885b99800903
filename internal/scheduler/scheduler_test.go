package scheduler

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bankcore/internal/domain"
	"bankcore/internal/ledger"
	"bankcore/internal/repository"
)

var testDay = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

type fixture struct {
	store *repository.Memory
	sched *Scheduler
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	store := repository.NewMemory()
	svc := ledger.New(store, time.UTC)
	svc.WithClock(func() time.Time { return testDay })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sched := New(svc, store, logger, cfg)
	sched.WithClock(func() time.Time { return testDay })
	return &fixture{store: store, sched: sched}
}

func (f *fixture) seedAccount(t *testing.T, number, balance string) {
	t.Helper()
	err := f.store.SaveAccount(context.Background(), domain.Account{
		Number:  number,
		UserID:  "user-1",
		Type:    "checking",
		Balance: decimal.RequireFromString(balance),
	})
	require.NoError(t, err)
}

func (f *fixture) seedRecurring(t *testing.T, from, to, amount string, cadence domain.Cadence) domain.RecurringPayment {
	t.Helper()
	rp, err := f.store.SaveRecurringPayment(context.Background(), domain.RecurringPayment{
		FromAccount: from,
		ToAccount:   to,
		Amount:      decimal.RequireFromString(amount),
		Cadence:     cadence,
		Description: string(cadence) + " payment",
	})
	require.NoError(t, err)
	return rp
}

func (f *fixture) seedBill(t *testing.T, card, account, org, amount string) domain.MonthlyBill {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.store.SaveCard(ctx, domain.Card{Number: card, AccountNumber: account, Type: "debit"}))
	bill, err := f.store.SaveMonthlyBill(ctx, domain.MonthlyBill{
		CardNumber:   card,
		Organization: org,
		Amount:       decimal.RequireFromString(amount),
		Description:  "bill",
	})
	require.NoError(t, err)
	return bill
}

func (f *fixture) balance(t *testing.T, number string) decimal.Decimal {
	t.Helper()
	acct, err := f.store.GetAccount(context.Background(), number)
	require.NoError(t, err)
	return acct.Balance
}

func tick(cadence domain.Cadence) Tick {
	return Tick{Cadence: cadence, Date: testDay, RunID: "test-run"}
}

func TestRunTickDailySettlesOnlyDailyEntries(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	f.seedAccount(t, "A", "1000")
	f.seedAccount(t, "B", "0")
	f.seedRecurring(t, "A", "B", "10", domain.CadenceDaily)
	f.seedRecurring(t, "A", "B", "100", domain.CadenceWeekly)
	f.seedRecurring(t, "A", "B", "500", domain.CadenceMonthly)

	report := f.sched.RunTick(ctx, tick(domain.CadenceDaily))

	assert.Equal(t, 1, report.Settled)
	assert.Equal(t, 0, report.Skipped)
	assert.Empty(t, report.Failures)
	assert.True(t, f.balance(t, "A").Equal(decimal.RequireFromString("990")))
	assert.True(t, f.balance(t, "B").Equal(decimal.RequireFromString("10")))

	all, err := f.store.ListTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].Amount.Equal(decimal.RequireFromString("10")))
	assert.Equal(t, testDay, all[0].Date)
}

func TestRunTickMonthlySettlesMonthlyEntriesAndBills(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	f.seedAccount(t, "A", "1000")
	f.seedAccount(t, "B", "0")
	f.seedRecurring(t, "A", "B", "10", domain.CadenceDaily)
	f.seedRecurring(t, "A", "B", "500", domain.CadenceMonthly)
	f.seedBill(t, "CARD-1", "A", "POWERGRID", "40")

	report := f.sched.RunTick(ctx, tick(domain.CadenceMonthly))

	// The monthly recurring payment and the bill settle; daily is untouched.
	assert.Equal(t, 2, report.Settled)
	assert.Empty(t, report.Failures)
	assert.True(t, f.balance(t, "A").Equal(decimal.RequireFromString("460")))
	assert.True(t, f.balance(t, "B").Equal(decimal.RequireFromString("500")))

	all, err := f.store.ListTransactions(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestRunTickWeeklyLeavesOtherCadencesUntouched(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	f.seedAccount(t, "A", "1000")
	f.seedAccount(t, "B", "0")
	f.seedRecurring(t, "A", "B", "10", domain.CadenceDaily)
	f.seedRecurring(t, "A", "B", "100", domain.CadenceWeekly)
	f.seedBill(t, "CARD-1", "A", "POWERGRID", "40")

	report := f.sched.RunTick(ctx, tick(domain.CadenceWeekly))

	// Bills settle on monthly ticks only.
	assert.Equal(t, 1, report.Settled)
	assert.True(t, f.balance(t, "A").Equal(decimal.RequireFromString("900")))
}

func TestRunTickIsolatesEntryFailures(t *testing.T) {
	f := newFixture(t, Config{Workers: 1})
	ctx := context.Background()
	f.seedAccount(t, "A", "1000")
	f.seedAccount(t, "B", "0")
	first := f.seedRecurring(t, "A", "B", "10", domain.CadenceDaily)
	broken := f.seedRecurring(t, "GONE", "B", "10", domain.CadenceDaily)
	third := f.seedRecurring(t, "A", "B", "20", domain.CadenceDaily)

	report := f.sched.RunTick(ctx, tick(domain.CadenceDaily))

	assert.Equal(t, 2, report.Settled)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "recurring", report.Failures[0].Kind)
	assert.Equal(t, broken.ID, report.Failures[0].ID)
	assert.ErrorIs(t, report.Failures[0].Err, domain.ErrAccountNotFound)

	// Entries around the failure settled normally.
	assert.True(t, f.balance(t, "A").Equal(decimal.RequireFromString("970")))
	assert.True(t, f.balance(t, "B").Equal(decimal.RequireFromString("30")))

	// The failed entry carries no settlement marker and retries next period.
	got, err := f.store.GetRecurringPayment(ctx, broken.ID)
	require.NoError(t, err)
	assert.Empty(t, got.LastSettled)
	for _, id := range []int64{first.ID, third.ID} {
		got, err := f.store.GetRecurringPayment(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "2024-06-01", got.LastSettled)
	}
}

func TestRunTickMarkerPreventsDoubleSettlement(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	f.seedAccount(t, "A", "1000")
	f.seedAccount(t, "B", "0")
	f.seedRecurring(t, "A", "B", "10", domain.CadenceDaily)

	first := f.sched.RunTick(ctx, tick(domain.CadenceDaily))
	second := f.sched.RunTick(ctx, tick(domain.CadenceDaily))

	assert.Equal(t, 1, first.Settled)
	assert.Equal(t, 0, second.Settled)
	assert.Equal(t, 1, second.Skipped)

	// Funds moved exactly once.
	assert.True(t, f.balance(t, "A").Equal(decimal.RequireFromString("990")))
	all, err := f.store.ListTransactions(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRunTickSettlesAgainInNextPeriod(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	f.seedAccount(t, "A", "1000")
	f.seedAccount(t, "B", "0")
	f.seedRecurring(t, "A", "B", "10", domain.CadenceDaily)

	f.sched.RunTick(ctx, tick(domain.CadenceDaily))
	nextDay := Tick{Cadence: domain.CadenceDaily, Date: testDay.AddDate(0, 0, 1), RunID: "test-run-2"}
	report := f.sched.RunTick(ctx, nextDay)

	assert.Equal(t, 1, report.Settled)
	assert.True(t, f.balance(t, "A").Equal(decimal.RequireFromString("980")))
}

func TestRunTickBillInsufficientFundsIsSkipNotFailure(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	f.seedAccount(t, "A", "30")
	bill := f.seedBill(t, "CARD-1", "A", "POWERGRID", "50")

	report := f.sched.RunTick(ctx, tick(domain.CadenceMonthly))

	assert.Equal(t, 0, report.Settled)
	assert.Equal(t, 1, report.Skipped)
	assert.Empty(t, report.Failures)

	// Balance untouched, no ledger entry.
	assert.True(t, f.balance(t, "A").Equal(decimal.RequireFromString("30")))
	all, err := f.store.ListTransactions(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	// The skip still consumes the period: no retry within the month.
	got, err := f.store.GetMonthlyBill(ctx, bill.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-06", got.LastSettled)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	f := newFixture(t, Config{DailyHour: 12})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- f.sched.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancellation")
	}
}

func TestNextBoundaryDaily(t *testing.T) {
	f := newFixture(t, Config{DailyHour: 2})

	before := time.Date(2024, 6, 1, 1, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 6, 1, 2, 0, 0, 0, time.UTC),
		f.sched.nextBoundary(domain.CadenceDaily, before))

	after := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 6, 2, 2, 0, 0, 0, time.UTC),
		f.sched.nextBoundary(domain.CadenceDaily, after))

	// A boundary is strictly after the reference time, never equal.
	exact := time.Date(2024, 6, 1, 2, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 6, 2, 2, 0, 0, 0, time.UTC),
		f.sched.nextBoundary(domain.CadenceDaily, exact))
}

func TestNextBoundaryWeekly(t *testing.T) {
	f := newFixture(t, Config{WeeklyWeekday: time.Monday, WeeklyHour: 3})

	// 2024-06-01 is a Saturday; the next Monday is 2024-06-03.
	sat := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 6, 3, 3, 0, 0, 0, time.UTC),
		f.sched.nextBoundary(domain.CadenceWeekly, sat))

	// On Monday after the hour, the boundary is the following Monday.
	mon := time.Date(2024, 6, 3, 4, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 6, 10, 3, 0, 0, 0, time.UTC),
		f.sched.nextBoundary(domain.CadenceWeekly, mon))
}

func TestNextBoundaryMonthly(t *testing.T) {
	f := newFixture(t, Config{MonthlyDay: 1, MonthlyHour: 0})

	mid := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
		f.sched.nextBoundary(domain.CadenceMonthly, mid))

	beforeFirst := time.Date(2024, 5, 31, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		f.sched.nextBoundary(domain.CadenceMonthly, beforeFirst))
}

func TestNextBoundaryMonthlyClampsShortMonths(t *testing.T) {
	f := newFixture(t, Config{MonthlyDay: 31, MonthlyHour: 0})

	// February 2024 has 29 days.
	feb := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		f.sched.nextBoundary(domain.CadenceMonthly, feb))

	endFeb := time.Date(2024, 2, 29, 1, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		f.sched.nextBoundary(domain.CadenceMonthly, endFeb))
}

func TestPeriodKey(t *testing.T) {
	date := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-06-01", PeriodKey(domain.CadenceDaily, date))
	assert.Equal(t, "2024-W22", PeriodKey(domain.CadenceWeekly, date))
	assert.Equal(t, "2024-06", PeriodKey(domain.CadenceMonthly, date))

	// ISO weeks can belong to the previous year.
	newYear := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-W53", PeriodKey(domain.CadenceWeekly, newYear))
}
