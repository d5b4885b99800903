// Package ledger owns every balance mutation in the system. All transfers
// and bill settlements flow through Service, which serializes them so the
// debit/credit pair of one transfer and its ledger write appear atomic to
// any concurrent reader.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"bankcore/internal/domain"
)

// Store is the persistence contract required by the ledger service.
type Store interface {
	GetAccount(ctx context.Context, number string) (domain.Account, error)
	SaveAccount(ctx context.Context, acct domain.Account) error
	GetCard(ctx context.Context, number string) (domain.Card, error)
	GetCurrency(ctx context.Context, code string) (domain.ForeignCurrency, error)
	SaveTransaction(ctx context.Context, tx domain.Transaction) (domain.Transaction, error)
}

// Service executes transfers and bill settlements against the store.
type Service struct {
	store Store
	loc   *time.Location
	nowFn func() time.Time

	// mu serializes all balance mutations. Two concurrent transfers naming
	// the same account must not lose an update, and a transfer's two writes
	// must not interleave with another transfer's.
	mu sync.Mutex
}

// New constructs a ledger service. Transaction dates are anchored to loc
// (UTC when nil).
func New(store Store, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		store: store,
		loc:   loc,
		nowFn: time.Now,
	}
}

// WithClock overrides the time provider (used primarily in tests).
func (s *Service) WithClock(nowFn func() time.Time) {
	if nowFn != nil {
		s.nowFn = nowFn
	}
}

// Transfer debits from, credits to, and records exactly one ledger entry for
// the amount moved. A nil date means today. The balance of from is allowed
// to go negative; only bill settlement gates on available funds.
func (s *Service) Transfer(ctx context.Context, from, to string, amount decimal.Decimal, date *time.Time, description string) (domain.Transaction, error) {
	if err := validateTransfer(from, to, amount); err != nil {
		return domain.Transaction{}, err
	}
	return s.execute(ctx, from, to, amount, s.transactionDate(date), description, nil)
}

// ForeignTransfer converts amount from the given currency into the base
// currency and moves the converted amount. The ledger entry records the
// original amount for audit and carries the foreign leg with the amount
// actually moved.
func (s *Service) ForeignTransfer(ctx context.Context, from, to string, amount decimal.Decimal, currencyCode string, date *time.Time, description string) (domain.Transaction, error) {
	if err := validateTransfer(from, to, amount); err != nil {
		return domain.Transaction{}, err
	}
	foreignAmount, err := s.Convert(ctx, amount, currencyCode)
	if err != nil {
		return domain.Transaction{}, err
	}
	leg := &domain.ForeignLeg{CurrencyCode: currencyCode, ForeignAmount: foreignAmount}
	return s.execute(ctx, from, to, amount, s.transactionDate(date), description, leg)
}

// PayBill settles one monthly bill: it resolves the bill's card to its
// funding account and, when the balance covers the amount, applies a
// debit-only mutation with one ledger entry naming the billing organization.
//
// An uncovered bill is skipped outright: no partial debit, no ledger entry,
// no error. The second return value reports whether the bill settled.
func (s *Service) PayBill(ctx context.Context, bill domain.MonthlyBill, date time.Time) (domain.Transaction, bool, error) {
	card, err := s.store.GetCard(ctx, bill.CardNumber)
	if err != nil {
		return domain.Transaction{}, false, fmt.Errorf("resolve card %s: %w", bill.CardNumber, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acct, err := s.store.GetAccount(ctx, card.AccountNumber)
	if err != nil {
		return domain.Transaction{}, false, fmt.Errorf("load account %s: %w", card.AccountNumber, err)
	}
	if acct.Balance.LessThan(bill.Amount) {
		return domain.Transaction{}, false, nil
	}

	acct.Balance = acct.Balance.Sub(bill.Amount)
	if err := s.store.SaveAccount(ctx, acct); err != nil {
		return domain.Transaction{}, false, fmt.Errorf("save account %s: %w", acct.Number, err)
	}

	tx := domain.Transaction{
		FromAccount: acct.Number,
		ToAccount:   bill.Organization,
		Amount:      bill.Amount,
		Date:        domain.CalendarDay(date, s.loc),
		Description: bill.Description,
	}
	tx, err = s.store.SaveTransaction(ctx, tx)
	if err != nil {
		return domain.Transaction{}, false, fmt.Errorf("save transaction: %w", err)
	}
	return tx, true, nil
}

// execute applies the debit/credit pair and the ledger write under the
// service mutex. moveAmount is the quantity actually moved between accounts;
// recordAmount is what the ledger entry carries as Amount. They differ only
// for foreign transfers.
func (s *Service) execute(ctx context.Context, from, to string, recordAmount decimal.Decimal, date time.Time, description string, leg *domain.ForeignLeg) (domain.Transaction, error) {
	moveAmount := recordAmount
	if leg != nil {
		moveAmount = leg.ForeignAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	src, err := s.store.GetAccount(ctx, from)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("load from account %s: %w", from, err)
	}
	dst, err := s.store.GetAccount(ctx, to)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("load to account %s: %w", to, err)
	}

	src.Balance = src.Balance.Sub(moveAmount)
	dst.Balance = dst.Balance.Add(moveAmount)

	if err := s.store.SaveAccount(ctx, src); err != nil {
		return domain.Transaction{}, fmt.Errorf("save from account %s: %w", from, err)
	}
	if err := s.store.SaveAccount(ctx, dst); err != nil {
		return domain.Transaction{}, fmt.Errorf("save to account %s: %w", to, err)
	}

	tx := domain.Transaction{
		FromAccount: from,
		ToAccount:   to,
		Amount:      recordAmount,
		Date:        date,
		Description: description,
		Foreign:     leg,
	}
	tx, err = s.store.SaveTransaction(ctx, tx)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}
	return tx, nil
}

func (s *Service) transactionDate(date *time.Time) time.Time {
	if date != nil {
		return domain.CalendarDay(*date, s.loc)
	}
	return domain.CalendarDay(s.nowFn(), s.loc)
}

func validateTransfer(from, to string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return domain.ErrInvalidAmount
	}
	if from == to {
		return domain.ErrSameAccount
	}
	return nil
}
