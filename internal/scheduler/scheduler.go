// Package scheduler drives recurring settlement. A single background loop
// sleeps until the next cadence boundary, then enumerates the due catalog
// entries and settles each one through the ledger, isolating per-entry
// failures so one bad entry never aborts the rest of the tick.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bankcore/internal/domain"
)

const defaultWorkers = 4

// Ledger is the settlement contract required by the scheduler.
type Ledger interface {
	Transfer(ctx context.Context, from, to string, amount decimal.Decimal, date *time.Time, description string) (domain.Transaction, error)
	PayBill(ctx context.Context, bill domain.MonthlyBill, date time.Time) (domain.Transaction, bool, error)
}

// Store is the catalog persistence contract required by the scheduler.
type Store interface {
	RecurringPaymentsByCadence(ctx context.Context, cadence domain.Cadence) ([]domain.RecurringPayment, error)
	SaveRecurringPayment(ctx context.Context, rp domain.RecurringPayment) (domain.RecurringPayment, error)
	ListMonthlyBills(ctx context.Context) ([]domain.MonthlyBill, error)
	SaveMonthlyBill(ctx context.Context, bill domain.MonthlyBill) (domain.MonthlyBill, error)
}

// Config anchors the three cadence boundaries. All boundary math and every
// period key uses Location.
type Config struct {
	Location      *time.Location
	DailyHour     int
	WeeklyWeekday time.Weekday
	WeeklyHour    int
	MonthlyDay    int
	MonthlyHour   int
	Workers       int
}

// Scheduler owns the tick loop.
type Scheduler struct {
	ledger Ledger
	store  Store
	logger *slog.Logger
	cfg    Config
	nowFn  func() time.Time
}

// New constructs a scheduler. Location defaults to UTC, MonthlyDay to 1 and
// Workers to 4.
func New(ledger Ledger, store Store, logger *slog.Logger, cfg Config) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.MonthlyDay <= 0 {
		cfg.MonthlyDay = 1
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	return &Scheduler{
		ledger: ledger,
		store:  store,
		logger: logger,
		cfg:    cfg,
		nowFn:  time.Now,
	}
}

// WithClock overrides the time provider (used primarily in tests).
func (s *Scheduler) WithClock(nowFn func() time.Time) {
	if nowFn != nil {
		s.nowFn = nowFn
	}
}

// Tick is one firing of a cadence boundary. Date is the boundary's calendar
// day; RunID correlates the tick's log lines.
type Tick struct {
	Cadence domain.Cadence
	Date    time.Time
	RunID   string
}

// EntryFailure records one catalog entry that could not be settled.
type EntryFailure struct {
	Kind string
	ID   int64
	Err  error
}

// Report summarizes one tick. Skipped counts entries already settled this
// period plus bills left unsettled for insufficient funds.
type Report struct {
	Cadence  domain.Cadence
	Date     time.Time
	RunID    string
	Settled  int
	Skipped  int
	Failures []EntryFailure
}

// Run blocks until ctx is cancelled, firing ticks at cadence boundaries. A
// tick runs to completion before the next boundary is armed, so ticks never
// overlap.
func (s *Scheduler) Run(ctx context.Context) error {
	loc := s.cfg.Location
	s.logger.Info("scheduler started", "timezone", loc.String(), "workers", s.cfg.Workers)

	for {
		now := s.nowFn().In(loc)
		boundaries := []struct {
			cadence domain.Cadence
			at      time.Time
		}{
			{domain.CadenceDaily, s.nextBoundary(domain.CadenceDaily, now)},
			{domain.CadenceWeekly, s.nextBoundary(domain.CadenceWeekly, now)},
			{domain.CadenceMonthly, s.nextBoundary(domain.CadenceMonthly, now)},
		}

		next := boundaries[0].at
		for _, b := range boundaries[1:] {
			if b.at.Before(next) {
				next = b.at
			}
		}

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-timer.C:
		}

		// Coinciding boundaries (e.g. the monthly hour on a daily hour)
		// fire in daily, weekly, monthly order.
		day := domain.CalendarDay(next, loc)
		for _, b := range boundaries {
			if !b.at.Equal(next) {
				continue
			}
			s.RunTick(ctx, Tick{Cadence: b.cadence, Date: day, RunID: uuid.NewString()})
		}
	}
}

// RunTick enumerates the catalog entries due for the tick's cadence and
// settles each one. Monthly ticks additionally settle every monthly bill.
// Exported so tests and operational tooling can inject synthetic ticks
// without waiting on the wall clock.
func (s *Scheduler) RunTick(ctx context.Context, tick Tick) Report {
	report := Report{Cadence: tick.Cadence, Date: tick.Date, RunID: tick.RunID}
	key := PeriodKey(tick.Cadence, tick.Date)

	logger := s.logger.With(
		"run_id", tick.RunID,
		"cadence", string(tick.Cadence),
		"period", key,
	)
	logger.Info("tick started")

	var jobs []settleJob

	payments, err := s.store.RecurringPaymentsByCadence(ctx, tick.Cadence)
	if err != nil {
		report.Failures = append(report.Failures, EntryFailure{
			Kind: "catalog",
			Err:  fmt.Errorf("enumerate recurring payments: %w", err),
		})
	}
	for _, rp := range payments {
		if rp.LastSettled == key {
			report.Skipped++
			continue
		}
		rp := rp
		jobs = append(jobs, func(ctx context.Context) outcome {
			return s.settleRecurring(ctx, rp, tick.Date, key)
		})
	}

	if tick.Cadence == domain.CadenceMonthly {
		bills, err := s.store.ListMonthlyBills(ctx)
		if err != nil {
			report.Failures = append(report.Failures, EntryFailure{
				Kind: "catalog",
				Err:  fmt.Errorf("enumerate monthly bills: %w", err),
			})
		}
		for _, bill := range bills {
			if bill.LastSettled == key {
				report.Skipped++
				continue
			}
			bill := bill
			jobs = append(jobs, func(ctx context.Context) outcome {
				return s.settleBill(ctx, bill, tick.Date, key)
			})
		}
	}

	for _, o := range runPool(ctx, s.cfg.Workers, jobs) {
		switch {
		case o.err != nil:
			report.Failures = append(report.Failures, EntryFailure{Kind: o.kind, ID: o.id, Err: o.err})
			logger.Error("entry settlement failed", "kind", o.kind, "id", o.id, "error", o.err)
		case o.skipped:
			report.Skipped++
			logger.Info("bill skipped, insufficient funds", "id", o.id)
		default:
			report.Settled++
		}
	}

	sort.Slice(report.Failures, func(i, j int) bool {
		if report.Failures[i].Kind != report.Failures[j].Kind {
			return report.Failures[i].Kind < report.Failures[j].Kind
		}
		return report.Failures[i].ID < report.Failures[j].ID
	})

	logger.Info("tick finished",
		"settled", report.Settled,
		"skipped", report.Skipped,
		"failed", len(report.Failures),
	)
	return report
}

func (s *Scheduler) settleRecurring(ctx context.Context, rp domain.RecurringPayment, date time.Time, key string) outcome {
	o := outcome{kind: "recurring", id: rp.ID}

	if _, err := s.ledger.Transfer(ctx, rp.FromAccount, rp.ToAccount, rp.Amount, &date, rp.Description); err != nil {
		o.err = err
		return o
	}

	rp.LastSettled = key
	if _, err := s.store.SaveRecurringPayment(ctx, rp); err != nil {
		o.err = fmt.Errorf("persist settlement marker: %w", err)
	}
	return o
}

func (s *Scheduler) settleBill(ctx context.Context, bill domain.MonthlyBill, date time.Time, key string) outcome {
	o := outcome{kind: "bill", id: bill.ID}

	_, settled, err := s.ledger.PayBill(ctx, bill, date)
	if err != nil {
		o.err = err
		return o
	}
	o.skipped = !settled

	// An uncovered bill still consumes the period: it is attempted once per
	// month, never retried within it.
	bill.LastSettled = key
	if _, err := s.store.SaveMonthlyBill(ctx, bill); err != nil {
		o.err = fmt.Errorf("persist settlement marker: %w", err)
	}
	return o
}

// nextBoundary returns the first boundary for cadence strictly after the
// given time, in the scheduler's location. A monthly day beyond the end of a
// month clamps to that month's last day.
func (s *Scheduler) nextBoundary(cadence domain.Cadence, after time.Time) time.Time {
	loc := s.cfg.Location
	after = after.In(loc)

	switch cadence {
	case domain.CadenceDaily:
		next := time.Date(after.Year(), after.Month(), after.Day(), s.cfg.DailyHour, 0, 0, 0, loc)
		if !next.After(after) {
			next = next.AddDate(0, 0, 1)
		}
		return next

	case domain.CadenceWeekly:
		next := time.Date(after.Year(), after.Month(), after.Day(), s.cfg.WeeklyHour, 0, 0, 0, loc)
		next = next.AddDate(0, 0, (int(s.cfg.WeeklyWeekday)-int(next.Weekday())+7)%7)
		if !next.After(after) {
			next = next.AddDate(0, 0, 7)
		}
		return next

	default: // monthly
		year, month := after.Year(), after.Month()
		for {
			day := s.cfg.MonthlyDay
			if last := daysIn(year, month); day > last {
				day = last
			}
			next := time.Date(year, month, day, s.cfg.MonthlyHour, 0, 0, 0, loc)
			if next.After(after) {
				return next
			}
			first := time.Date(year, month, 1, 0, 0, 0, 0, loc).AddDate(0, 1, 0)
			year, month = first.Year(), first.Month()
		}
	}
}

// PeriodKey identifies the settlement period a date falls in for a cadence:
// the calendar day for daily, the ISO week for weekly, the calendar month
// for monthly.
func PeriodKey(cadence domain.Cadence, date time.Time) string {
	switch cadence {
	case domain.CadenceWeekly:
		year, week := date.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	case domain.CadenceMonthly:
		return date.Format("2006-01")
	default:
		return date.Format("2006-01-02")
	}
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
