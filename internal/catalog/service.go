// Package catalog manages the standing instructions the scheduler consumes:
// recurring payments and monthly bills. It is plain CRUD with referential
// checks; settlement itself lives in the ledger and scheduler packages.
package catalog

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"bankcore/internal/domain"
)

// Store is the persistence contract required by the catalog service.
type Store interface {
	GetAccount(ctx context.Context, number string) (domain.Account, error)
	GetCard(ctx context.Context, number string) (domain.Card, error)
	GetOrganization(ctx context.Context, code string) (domain.BillingOrganization, error)

	GetRecurringPayment(ctx context.Context, id int64) (domain.RecurringPayment, error)
	ListRecurringPayments(ctx context.Context) ([]domain.RecurringPayment, error)
	RecurringPaymentsByCadence(ctx context.Context, cadence domain.Cadence) ([]domain.RecurringPayment, error)
	SaveRecurringPayment(ctx context.Context, rp domain.RecurringPayment) (domain.RecurringPayment, error)
	DeleteRecurringPayment(ctx context.Context, id int64) error

	GetMonthlyBill(ctx context.Context, id int64) (domain.MonthlyBill, error)
	ListMonthlyBills(ctx context.Context) ([]domain.MonthlyBill, error)
	SaveMonthlyBill(ctx context.Context, bill domain.MonthlyBill) (domain.MonthlyBill, error)
	DeleteMonthlyBill(ctx context.Context, id int64) error
}

// Service exposes catalog CRUD to the calling layer.
type Service struct {
	store Store
}

// New constructs a catalog service.
func New(store Store) *Service {
	return &Service{store: store}
}

// RecurringPaymentInput carries the fields needed to create a standing
// transfer instruction.
type RecurringPaymentInput struct {
	FromAccount string
	ToAccount   string
	Amount      decimal.Decimal
	Cadence     domain.Cadence
	Description string
}

// RecurringPaymentUpdate patches an existing entry; nil fields are left
// untouched.
type RecurringPaymentUpdate struct {
	FromAccount *string
	ToAccount   *string
	Amount      *decimal.Decimal
	Cadence     *domain.Cadence
	Description *string
}

// CreateRecurringPayment validates and stores a new recurring payment.
func (s *Service) CreateRecurringPayment(ctx context.Context, input RecurringPaymentInput) (domain.RecurringPayment, error) {
	if !input.Amount.IsPositive() {
		return domain.RecurringPayment{}, domain.ErrInvalidAmount
	}
	if !input.Cadence.Valid() {
		return domain.RecurringPayment{}, fmt.Errorf("%q: %w", input.Cadence, domain.ErrInvalidCadence)
	}
	if input.FromAccount == input.ToAccount {
		return domain.RecurringPayment{}, domain.ErrSameAccount
	}
	if _, err := s.store.GetAccount(ctx, input.FromAccount); err != nil {
		return domain.RecurringPayment{}, fmt.Errorf("from account %s: %w", input.FromAccount, err)
	}
	if _, err := s.store.GetAccount(ctx, input.ToAccount); err != nil {
		return domain.RecurringPayment{}, fmt.Errorf("to account %s: %w", input.ToAccount, err)
	}
	return s.store.SaveRecurringPayment(ctx, domain.RecurringPayment{
		FromAccount: input.FromAccount,
		ToAccount:   input.ToAccount,
		Amount:      input.Amount,
		Cadence:     input.Cadence,
		Description: input.Description,
	})
}

// GetRecurringPayment returns one entry by id.
func (s *Service) GetRecurringPayment(ctx context.Context, id int64) (domain.RecurringPayment, error) {
	return s.store.GetRecurringPayment(ctx, id)
}

// ListRecurringPayments returns all entries in id order.
func (s *Service) ListRecurringPayments(ctx context.Context) ([]domain.RecurringPayment, error) {
	return s.store.ListRecurringPayments(ctx)
}

// RecurringPaymentsByCadence returns entries for one cadence in id order.
func (s *Service) RecurringPaymentsByCadence(ctx context.Context, cadence domain.Cadence) ([]domain.RecurringPayment, error) {
	if !cadence.Valid() {
		return nil, fmt.Errorf("%q: %w", cadence, domain.ErrInvalidCadence)
	}
	return s.store.RecurringPaymentsByCadence(ctx, cadence)
}

// UpdateRecurringPayment applies a field-wise patch to an existing entry.
func (s *Service) UpdateRecurringPayment(ctx context.Context, id int64, upd RecurringPaymentUpdate) (domain.RecurringPayment, error) {
	rp, err := s.store.GetRecurringPayment(ctx, id)
	if err != nil {
		return domain.RecurringPayment{}, err
	}
	if upd.FromAccount != nil {
		if _, err := s.store.GetAccount(ctx, *upd.FromAccount); err != nil {
			return domain.RecurringPayment{}, fmt.Errorf("from account %s: %w", *upd.FromAccount, err)
		}
		rp.FromAccount = *upd.FromAccount
	}
	if upd.ToAccount != nil {
		if _, err := s.store.GetAccount(ctx, *upd.ToAccount); err != nil {
			return domain.RecurringPayment{}, fmt.Errorf("to account %s: %w", *upd.ToAccount, err)
		}
		rp.ToAccount = *upd.ToAccount
	}
	if upd.Amount != nil {
		if !upd.Amount.IsPositive() {
			return domain.RecurringPayment{}, domain.ErrInvalidAmount
		}
		rp.Amount = *upd.Amount
	}
	if upd.Cadence != nil {
		if !upd.Cadence.Valid() {
			return domain.RecurringPayment{}, fmt.Errorf("%q: %w", *upd.Cadence, domain.ErrInvalidCadence)
		}
		rp.Cadence = *upd.Cadence
	}
	if upd.Description != nil {
		rp.Description = *upd.Description
	}
	if rp.FromAccount == rp.ToAccount {
		return domain.RecurringPayment{}, domain.ErrSameAccount
	}
	return s.store.SaveRecurringPayment(ctx, rp)
}

// DeleteRecurringPayment removes one entry by id.
func (s *Service) DeleteRecurringPayment(ctx context.Context, id int64) error {
	return s.store.DeleteRecurringPayment(ctx, id)
}

// MonthlyBillInput carries the fields needed to create a standing bill.
type MonthlyBillInput struct {
	CardNumber   string
	Organization string
	Amount       decimal.Decimal
	Description  string
}

// MonthlyBillUpdate patches an existing bill; nil fields are left untouched.
type MonthlyBillUpdate struct {
	CardNumber   *string
	Organization *string
	Amount       *decimal.Decimal
	Description  *string
}

// CreateMonthlyBill validates and stores a new monthly bill.
func (s *Service) CreateMonthlyBill(ctx context.Context, input MonthlyBillInput) (domain.MonthlyBill, error) {
	if !input.Amount.IsPositive() {
		return domain.MonthlyBill{}, domain.ErrInvalidAmount
	}
	if _, err := s.store.GetCard(ctx, input.CardNumber); err != nil {
		return domain.MonthlyBill{}, fmt.Errorf("card %s: %w", input.CardNumber, err)
	}
	if _, err := s.store.GetOrganization(ctx, input.Organization); err != nil {
		return domain.MonthlyBill{}, fmt.Errorf("organization %s: %w", input.Organization, err)
	}
	return s.store.SaveMonthlyBill(ctx, domain.MonthlyBill{
		CardNumber:   input.CardNumber,
		Organization: input.Organization,
		Amount:       input.Amount,
		Description:  input.Description,
	})
}

// GetMonthlyBill returns one bill by id.
func (s *Service) GetMonthlyBill(ctx context.Context, id int64) (domain.MonthlyBill, error) {
	return s.store.GetMonthlyBill(ctx, id)
}

// ListMonthlyBills returns all bills in id order.
func (s *Service) ListMonthlyBills(ctx context.Context) ([]domain.MonthlyBill, error) {
	return s.store.ListMonthlyBills(ctx)
}

// UpdateMonthlyBill applies a field-wise patch to an existing bill.
func (s *Service) UpdateMonthlyBill(ctx context.Context, id int64, upd MonthlyBillUpdate) (domain.MonthlyBill, error) {
	bill, err := s.store.GetMonthlyBill(ctx, id)
	if err != nil {
		return domain.MonthlyBill{}, err
	}
	if upd.CardNumber != nil {
		if _, err := s.store.GetCard(ctx, *upd.CardNumber); err != nil {
			return domain.MonthlyBill{}, fmt.Errorf("card %s: %w", *upd.CardNumber, err)
		}
		bill.CardNumber = *upd.CardNumber
	}
	if upd.Organization != nil {
		if _, err := s.store.GetOrganization(ctx, *upd.Organization); err != nil {
			return domain.MonthlyBill{}, fmt.Errorf("organization %s: %w", *upd.Organization, err)
		}
		bill.Organization = *upd.Organization
	}
	if upd.Amount != nil {
		if !upd.Amount.IsPositive() {
			return domain.MonthlyBill{}, domain.ErrInvalidAmount
		}
		bill.Amount = *upd.Amount
	}
	if upd.Description != nil {
		bill.Description = *upd.Description
	}
	return s.store.SaveMonthlyBill(ctx, bill)
}

// DeleteMonthlyBill removes one bill by id.
func (s *Service) DeleteMonthlyBill(ctx context.Context, id int64) error {
	return s.store.DeleteMonthlyBill(ctx, id)
}
