package repository

import (
	"context"
	"sort"
	"sync"

	"bankcore/internal/domain"
)

// Memory is an in-memory store implementing every repository contract the
// engine consumes. It is the default backend and the one unit tests run
// against; the postgres backend lives beside it and exposes the same method
// set, so the engine never knows which one it has.
//
// All reads hand back copies, never internal state.
type Memory struct {
	mu sync.RWMutex

	accounts   map[string]domain.Account
	cards      map[string]domain.Card
	currencies map[string]domain.ForeignCurrency
	orgs       map[string]domain.BillingOrganization

	transactions map[int64]domain.Transaction
	recurring    map[int64]domain.RecurringPayment
	bills        map[int64]domain.MonthlyBill

	nextTransactionID int64
	nextRecurringID   int64
	nextBillID        int64
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		accounts:     make(map[string]domain.Account),
		cards:        make(map[string]domain.Card),
		currencies:   make(map[string]domain.ForeignCurrency),
		orgs:         make(map[string]domain.BillingOrganization),
		transactions: make(map[int64]domain.Transaction),
		recurring:    make(map[int64]domain.RecurringPayment),
		bills:        make(map[int64]domain.MonthlyBill),
	}
}

// GetAccount returns the account with the given number.
func (m *Memory) GetAccount(_ context.Context, number string) (domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	acct, ok := m.accounts[number]
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	return acct, nil
}

// SaveAccount upserts an account keyed by its number.
func (m *Memory) SaveAccount(_ context.Context, acct domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[acct.Number] = acct
	return nil
}

// DeleteAccount removes an account by number.
func (m *Memory) DeleteAccount(_ context.Context, number string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[number]; !ok {
		return domain.ErrAccountNotFound
	}
	delete(m.accounts, number)
	return nil
}

// GetCard returns the card with the given number.
func (m *Memory) GetCard(_ context.Context, number string) (domain.Card, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	card, ok := m.cards[number]
	if !ok {
		return domain.Card{}, domain.ErrCardNotFound
	}
	return card, nil
}

// SaveCard upserts a card keyed by its number.
func (m *Memory) SaveCard(_ context.Context, card domain.Card) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cards[card.Number] = card
	return nil
}

// GetCurrency returns the registered foreign currency for a code.
func (m *Memory) GetCurrency(_ context.Context, code string) (domain.ForeignCurrency, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cur, ok := m.currencies[code]
	if !ok {
		return domain.ForeignCurrency{}, domain.ErrUnknownCurrency
	}
	return cur, nil
}

// SaveCurrency upserts reference data for a currency code.
func (m *Memory) SaveCurrency(_ context.Context, cur domain.ForeignCurrency) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currencies[cur.Code] = cur
	return nil
}

// GetOrganization returns the billing organization for a code.
func (m *Memory) GetOrganization(_ context.Context, code string) (domain.BillingOrganization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	org, ok := m.orgs[code]
	if !ok {
		return domain.BillingOrganization{}, domain.ErrOrganizationNotFound
	}
	return org, nil
}

// SaveOrganization upserts reference data for a billing organization.
func (m *Memory) SaveOrganization(_ context.Context, org domain.BillingOrganization) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orgs[org.Code] = org
	return nil
}

// SaveTransaction persists a ledger entry. A zero ID is assigned from the
// shared monotonic sequence; the stored entry is returned.
func (m *Memory) SaveTransaction(_ context.Context, tx domain.Transaction) (domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tx.ID == 0 {
		m.nextTransactionID++
		tx.ID = m.nextTransactionID
	} else if tx.ID > m.nextTransactionID {
		m.nextTransactionID = tx.ID
	}
	if tx.Foreign != nil {
		leg := *tx.Foreign
		tx.Foreign = &leg
	}
	m.transactions[tx.ID] = tx
	return tx, nil
}

// GetTransaction returns one ledger entry by id.
func (m *Memory) GetTransaction(_ context.Context, id int64) (domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tx, ok := m.transactions[id]
	if !ok {
		return domain.Transaction{}, domain.ErrTransactionNotFound
	}
	return copyTransaction(tx), nil
}

// ListTransactions returns every ledger entry ordered by id ascending.
func (m *Memory) ListTransactions(_ context.Context) ([]domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Transaction, 0, len(m.transactions))
	for _, tx := range m.transactions {
		out = append(out, copyTransaction(tx))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// TransactionsByFromAccount returns entries debited from the given account,
// ordered by id ascending.
func (m *Memory) TransactionsByFromAccount(_ context.Context, number string) ([]domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Transaction
	for _, tx := range m.transactions {
		if tx.FromAccount == number {
			out = append(out, copyTransaction(tx))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetRecurringPayment returns a recurring payment by id.
func (m *Memory) GetRecurringPayment(_ context.Context, id int64) (domain.RecurringPayment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rp, ok := m.recurring[id]
	if !ok {
		return domain.RecurringPayment{}, domain.ErrEntryNotFound
	}
	return rp, nil
}

// ListRecurringPayments returns all recurring payments ordered by id ascending.
func (m *Memory) ListRecurringPayments(_ context.Context) ([]domain.RecurringPayment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.RecurringPayment, 0, len(m.recurring))
	for _, rp := range m.recurring {
		out = append(out, rp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// RecurringPaymentsByCadence returns recurring payments with the given
// cadence, ordered by id ascending. Catalog enumeration order is stable so
// scheduler ticks settle entries deterministically.
func (m *Memory) RecurringPaymentsByCadence(_ context.Context, cadence domain.Cadence) ([]domain.RecurringPayment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.RecurringPayment
	for _, rp := range m.recurring {
		if rp.Cadence == cadence {
			out = append(out, rp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SaveRecurringPayment upserts a recurring payment, assigning an id when zero.
func (m *Memory) SaveRecurringPayment(_ context.Context, rp domain.RecurringPayment) (domain.RecurringPayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rp.ID == 0 {
		m.nextRecurringID++
		rp.ID = m.nextRecurringID
	} else if rp.ID > m.nextRecurringID {
		m.nextRecurringID = rp.ID
	}
	m.recurring[rp.ID] = rp
	return rp, nil
}

// DeleteRecurringPayment removes a recurring payment by id.
func (m *Memory) DeleteRecurringPayment(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.recurring[id]; !ok {
		return domain.ErrEntryNotFound
	}
	delete(m.recurring, id)
	return nil
}

// GetMonthlyBill returns a monthly bill by id.
func (m *Memory) GetMonthlyBill(_ context.Context, id int64) (domain.MonthlyBill, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bill, ok := m.bills[id]
	if !ok {
		return domain.MonthlyBill{}, domain.ErrEntryNotFound
	}
	return bill, nil
}

// ListMonthlyBills returns all monthly bills ordered by id ascending.
func (m *Memory) ListMonthlyBills(_ context.Context) ([]domain.MonthlyBill, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.MonthlyBill, 0, len(m.bills))
	for _, bill := range m.bills {
		out = append(out, bill)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SaveMonthlyBill upserts a monthly bill, assigning an id when zero.
func (m *Memory) SaveMonthlyBill(_ context.Context, bill domain.MonthlyBill) (domain.MonthlyBill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if bill.ID == 0 {
		m.nextBillID++
		bill.ID = m.nextBillID
	} else if bill.ID > m.nextBillID {
		m.nextBillID = bill.ID
	}
	m.bills[bill.ID] = bill
	return bill, nil
}

// DeleteMonthlyBill removes a monthly bill by id.
func (m *Memory) DeleteMonthlyBill(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bills[id]; !ok {
		return domain.ErrEntryNotFound
	}
	delete(m.bills, id)
	return nil
}

func copyTransaction(tx domain.Transaction) domain.Transaction {
	if tx.Foreign != nil {
		leg := *tx.Foreign
		tx.Foreign = &leg
	}
	return tx
}
