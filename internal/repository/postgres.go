package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	_ "github.com/lib/pq"

	"bankcore/internal/domain"
)

// Postgres is the durable store backend. It exposes the same method set as
// Memory, so the engine can be pointed at either through configuration.
type Postgres struct {
	db *sql.DB
}

// NewPostgres opens a connection pool against the given DSN and verifies
// connectivity.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Postgres{db: db}, nil
}

// Close releases the underlying connection pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}

// EnsureSchema creates the ledger tables when they do not exist yet.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	account_number   TEXT PRIMARY KEY,
	user_id          TEXT NOT NULL,
	account_type     TEXT NOT NULL,
	balance          NUMERIC(18,2) NOT NULL,
	spending_limit   NUMERIC(18,2) NOT NULL,
	withdrawal_limit NUMERIC(18,2) NOT NULL
);
CREATE TABLE IF NOT EXISTS cards (
	card_number    TEXT PRIMARY KEY,
	account_number TEXT NOT NULL,
	card_type      TEXT NOT NULL,
	spending_limit NUMERIC(18,2) NOT NULL
);
CREATE TABLE IF NOT EXISTS foreign_currencies (
	currency_code TEXT PRIMARY KEY,
	currency_name TEXT NOT NULL,
	exchange_rate NUMERIC(18,6) NOT NULL
);
CREATE TABLE IF NOT EXISTS billing_organizations (
	org_code TEXT PRIMARY KEY,
	org_name TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS transactions (
	transaction_id BIGSERIAL PRIMARY KEY,
	from_account   TEXT NOT NULL,
	to_account     TEXT NOT NULL,
	amount         NUMERIC(18,2) NOT NULL,
	date           DATE NOT NULL,
	description    TEXT NOT NULL,
	currency_code  TEXT,
	foreign_amount NUMERIC(18,2)
);
CREATE TABLE IF NOT EXISTS recurring_payments (
	recurring_id BIGSERIAL PRIMARY KEY,
	from_account TEXT NOT NULL,
	to_account   TEXT NOT NULL,
	amount       NUMERIC(18,2) NOT NULL,
	cadence      TEXT NOT NULL,
	description  TEXT NOT NULL,
	last_settled TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS monthly_bills (
	bill_id      BIGSERIAL PRIMARY KEY,
	card_number  TEXT NOT NULL,
	organization TEXT NOT NULL,
	amount       NUMERIC(18,2) NOT NULL,
	description  TEXT NOT NULL,
	last_settled TEXT NOT NULL DEFAULT ''
);`
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// GetAccount returns the account with the given number.
func (p *Postgres) GetAccount(ctx context.Context, number string) (domain.Account, error) {
	const query = `SELECT account_number, user_id, account_type, balance, spending_limit, withdrawal_limit
	FROM accounts WHERE account_number = $1`
	var (
		acct                      domain.Account
		balance, spending, wdraw string
	)
	err := p.db.QueryRowContext(ctx, query, number).Scan(
		&acct.Number, &acct.UserID, &acct.Type, &balance, &spending, &wdraw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	if err != nil {
		return domain.Account{}, fmt.Errorf("get account %s: %w", number, err)
	}
	if acct.Balance, err = decimal.NewFromString(balance); err != nil {
		return domain.Account{}, fmt.Errorf("parse balance for %s: %w", number, err)
	}
	if acct.SpendingLimit, err = decimal.NewFromString(spending); err != nil {
		return domain.Account{}, fmt.Errorf("parse spending limit for %s: %w", number, err)
	}
	if acct.WithdrawalLimit, err = decimal.NewFromString(wdraw); err != nil {
		return domain.Account{}, fmt.Errorf("parse withdrawal limit for %s: %w", number, err)
	}
	return acct, nil
}

// SaveAccount upserts an account keyed by its number.
func (p *Postgres) SaveAccount(ctx context.Context, acct domain.Account) error {
	const query = `INSERT INTO accounts (account_number, user_id, account_type, balance, spending_limit, withdrawal_limit)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (account_number) DO UPDATE SET
		user_id = EXCLUDED.user_id,
		account_type = EXCLUDED.account_type,
		balance = EXCLUDED.balance,
		spending_limit = EXCLUDED.spending_limit,
		withdrawal_limit = EXCLUDED.withdrawal_limit`
	_, err := p.db.ExecContext(ctx, query, acct.Number, acct.UserID, acct.Type,
		acct.Balance.String(), acct.SpendingLimit.String(), acct.WithdrawalLimit.String())
	if err != nil {
		return fmt.Errorf("save account %s: %w", acct.Number, err)
	}
	return nil
}

// GetCard returns the card with the given number.
func (p *Postgres) GetCard(ctx context.Context, number string) (domain.Card, error) {
	const query = `SELECT card_number, account_number, card_type, spending_limit FROM cards WHERE card_number = $1`
	var (
		card     domain.Card
		spending string
	)
	err := p.db.QueryRowContext(ctx, query, number).Scan(&card.Number, &card.AccountNumber, &card.Type, &spending)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Card{}, domain.ErrCardNotFound
	}
	if err != nil {
		return domain.Card{}, fmt.Errorf("get card %s: %w", number, err)
	}
	if card.SpendingLimit, err = decimal.NewFromString(spending); err != nil {
		return domain.Card{}, fmt.Errorf("parse spending limit for card %s: %w", number, err)
	}
	return card, nil
}

// SaveCard upserts a card keyed by its number.
func (p *Postgres) SaveCard(ctx context.Context, card domain.Card) error {
	const query = `INSERT INTO cards (card_number, account_number, card_type, spending_limit)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (card_number) DO UPDATE SET
		account_number = EXCLUDED.account_number,
		card_type = EXCLUDED.card_type,
		spending_limit = EXCLUDED.spending_limit`
	if _, err := p.db.ExecContext(ctx, query, card.Number, card.AccountNumber, card.Type, card.SpendingLimit.String()); err != nil {
		return fmt.Errorf("save card %s: %w", card.Number, err)
	}
	return nil
}

// GetCurrency returns the registered foreign currency for a code.
func (p *Postgres) GetCurrency(ctx context.Context, code string) (domain.ForeignCurrency, error) {
	const query = `SELECT currency_code, currency_name, exchange_rate FROM foreign_currencies WHERE currency_code = $1`
	var (
		cur  domain.ForeignCurrency
		rate string
	)
	err := p.db.QueryRowContext(ctx, query, code).Scan(&cur.Code, &cur.Name, &rate)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ForeignCurrency{}, domain.ErrUnknownCurrency
	}
	if err != nil {
		return domain.ForeignCurrency{}, fmt.Errorf("get currency %s: %w", code, err)
	}
	if cur.Rate, err = decimal.NewFromString(rate); err != nil {
		return domain.ForeignCurrency{}, fmt.Errorf("parse rate for %s: %w", code, err)
	}
	return cur, nil
}

// SaveCurrency upserts reference data for a currency code.
func (p *Postgres) SaveCurrency(ctx context.Context, cur domain.ForeignCurrency) error {
	const query = `INSERT INTO foreign_currencies (currency_code, currency_name, exchange_rate)
	VALUES ($1, $2, $3)
	ON CONFLICT (currency_code) DO UPDATE SET
		currency_name = EXCLUDED.currency_name,
		exchange_rate = EXCLUDED.exchange_rate`
	if _, err := p.db.ExecContext(ctx, query, cur.Code, cur.Name, cur.Rate.String()); err != nil {
		return fmt.Errorf("save currency %s: %w", cur.Code, err)
	}
	return nil
}

// GetOrganization returns the billing organization for a code.
func (p *Postgres) GetOrganization(ctx context.Context, code string) (domain.BillingOrganization, error) {
	const query = `SELECT org_code, org_name FROM billing_organizations WHERE org_code = $1`
	var org domain.BillingOrganization
	err := p.db.QueryRowContext(ctx, query, code).Scan(&org.Code, &org.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.BillingOrganization{}, domain.ErrOrganizationNotFound
	}
	if err != nil {
		return domain.BillingOrganization{}, fmt.Errorf("get organization %s: %w", code, err)
	}
	return org, nil
}

// SaveOrganization upserts reference data for a billing organization.
func (p *Postgres) SaveOrganization(ctx context.Context, org domain.BillingOrganization) error {
	const query = `INSERT INTO billing_organizations (org_code, org_name)
	VALUES ($1, $2)
	ON CONFLICT (org_code) DO UPDATE SET org_name = EXCLUDED.org_name`
	if _, err := p.db.ExecContext(ctx, query, org.Code, org.Name); err != nil {
		return fmt.Errorf("save organization %s: %w", org.Code, err)
	}
	return nil
}

// SaveTransaction persists a ledger entry, assigning an id from the shared
// sequence when zero, and returns the stored entry.
func (p *Postgres) SaveTransaction(ctx context.Context, tx domain.Transaction) (domain.Transaction, error) {
	var code, foreign sql.NullString
	if tx.Foreign != nil {
		code = sql.NullString{String: tx.Foreign.CurrencyCode, Valid: true}
		foreign = sql.NullString{String: tx.Foreign.ForeignAmount.String(), Valid: true}
	}
	if tx.ID == 0 {
		const query = `INSERT INTO transactions (from_account, to_account, amount, date, description, currency_code, foreign_amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING transaction_id`
		err := p.db.QueryRowContext(ctx, query, tx.FromAccount, tx.ToAccount, tx.Amount.String(),
			tx.Date, tx.Description, code, foreign).Scan(&tx.ID)
		if err != nil {
			return domain.Transaction{}, fmt.Errorf("save transaction: %w", err)
		}
		return tx, nil
	}
	const query = `UPDATE transactions SET from_account = $2, to_account = $3, amount = $4, date = $5,
	description = $6, currency_code = $7, foreign_amount = $8 WHERE transaction_id = $1`
	if _, err := p.db.ExecContext(ctx, query, tx.ID, tx.FromAccount, tx.ToAccount, tx.Amount.String(),
		tx.Date, tx.Description, code, foreign); err != nil {
		return domain.Transaction{}, fmt.Errorf("update transaction %d: %w", tx.ID, err)
	}
	return tx, nil
}

// GetTransaction returns one ledger entry by id.
func (p *Postgres) GetTransaction(ctx context.Context, id int64) (domain.Transaction, error) {
	const query = `SELECT transaction_id, from_account, to_account, amount, date, description, currency_code, foreign_amount
	FROM transactions WHERE transaction_id = $1`
	tx, err := scanTransaction(p.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Transaction{}, domain.ErrTransactionNotFound
	}
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return tx, nil
}

// ListTransactions returns every ledger entry ordered by id ascending.
func (p *Postgres) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	const query = `SELECT transaction_id, from_account, to_account, amount, date, description, currency_code, foreign_amount
	FROM transactions ORDER BY transaction_id`
	return p.queryTransactions(ctx, query)
}

// TransactionsByFromAccount returns entries debited from the given account.
func (p *Postgres) TransactionsByFromAccount(ctx context.Context, number string) ([]domain.Transaction, error) {
	const query = `SELECT transaction_id, from_account, to_account, amount, date, description, currency_code, foreign_amount
	FROM transactions WHERE from_account = $1 ORDER BY transaction_id`
	return p.queryTransactions(ctx, query, number)
}

func (p *Postgres) queryTransactions(ctx context.Context, query string, args ...any) ([]domain.Transaction, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (domain.Transaction, error) {
	var (
		tx            domain.Transaction
		amount        string
		code, foreign sql.NullString
	)
	if err := row.Scan(&tx.ID, &tx.FromAccount, &tx.ToAccount, &amount, &tx.Date, &tx.Description, &code, &foreign); err != nil {
		return domain.Transaction{}, err
	}
	var err error
	if tx.Amount, err = decimal.NewFromString(amount); err != nil {
		return domain.Transaction{}, err
	}
	if code.Valid && foreign.Valid {
		foreignAmount, err := decimal.NewFromString(foreign.String)
		if err != nil {
			return domain.Transaction{}, err
		}
		tx.Foreign = &domain.ForeignLeg{CurrencyCode: code.String, ForeignAmount: foreignAmount}
	}
	return tx, nil
}

// GetRecurringPayment returns a recurring payment by id.
func (p *Postgres) GetRecurringPayment(ctx context.Context, id int64) (domain.RecurringPayment, error) {
	const query = `SELECT recurring_id, from_account, to_account, amount, cadence, description, last_settled
	FROM recurring_payments WHERE recurring_id = $1`
	rp, err := scanRecurringPayment(p.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RecurringPayment{}, domain.ErrEntryNotFound
	}
	if err != nil {
		return domain.RecurringPayment{}, fmt.Errorf("get recurring payment %d: %w", id, err)
	}
	return rp, nil
}

// ListRecurringPayments returns all recurring payments ordered by id ascending.
func (p *Postgres) ListRecurringPayments(ctx context.Context) ([]domain.RecurringPayment, error) {
	const query = `SELECT recurring_id, from_account, to_account, amount, cadence, description, last_settled
	FROM recurring_payments ORDER BY recurring_id`
	return p.queryRecurringPayments(ctx, query)
}

// RecurringPaymentsByCadence returns recurring payments for a cadence,
// ordered by id ascending.
func (p *Postgres) RecurringPaymentsByCadence(ctx context.Context, cadence domain.Cadence) ([]domain.RecurringPayment, error) {
	const query = `SELECT recurring_id, from_account, to_account, amount, cadence, description, last_settled
	FROM recurring_payments WHERE cadence = $1 ORDER BY recurring_id`
	return p.queryRecurringPayments(ctx, query, string(cadence))
}

func (p *Postgres) queryRecurringPayments(ctx context.Context, query string, args ...any) ([]domain.RecurringPayment, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recurring payments: %w", err)
	}
	defer rows.Close()

	var out []domain.RecurringPayment
	for rows.Next() {
		rp, err := scanRecurringPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recurring payment: %w", err)
		}
		out = append(out, rp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recurring payments: %w", err)
	}
	return out, nil
}

func scanRecurringPayment(row rowScanner) (domain.RecurringPayment, error) {
	var (
		rp      domain.RecurringPayment
		amount  string
		cadence string
	)
	if err := row.Scan(&rp.ID, &rp.FromAccount, &rp.ToAccount, &amount, &cadence, &rp.Description, &rp.LastSettled); err != nil {
		return domain.RecurringPayment{}, err
	}
	var err error
	if rp.Amount, err = decimal.NewFromString(amount); err != nil {
		return domain.RecurringPayment{}, err
	}
	rp.Cadence = domain.Cadence(cadence)
	return rp, nil
}

// SaveRecurringPayment upserts a recurring payment, assigning an id when zero.
func (p *Postgres) SaveRecurringPayment(ctx context.Context, rp domain.RecurringPayment) (domain.RecurringPayment, error) {
	if rp.ID == 0 {
		const query = `INSERT INTO recurring_payments (from_account, to_account, amount, cadence, description, last_settled)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING recurring_id`
		err := p.db.QueryRowContext(ctx, query, rp.FromAccount, rp.ToAccount, rp.Amount.String(),
			string(rp.Cadence), rp.Description, rp.LastSettled).Scan(&rp.ID)
		if err != nil {
			return domain.RecurringPayment{}, fmt.Errorf("save recurring payment: %w", err)
		}
		return rp, nil
	}
	const query = `UPDATE recurring_payments SET from_account = $2, to_account = $3, amount = $4,
	cadence = $5, description = $6, last_settled = $7 WHERE recurring_id = $1`
	if _, err := p.db.ExecContext(ctx, query, rp.ID, rp.FromAccount, rp.ToAccount, rp.Amount.String(),
		string(rp.Cadence), rp.Description, rp.LastSettled); err != nil {
		return domain.RecurringPayment{}, fmt.Errorf("update recurring payment %d: %w", rp.ID, err)
	}
	return rp, nil
}

// DeleteRecurringPayment removes a recurring payment by id.
func (p *Postgres) DeleteRecurringPayment(ctx context.Context, id int64) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM recurring_payments WHERE recurring_id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete recurring payment %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrEntryNotFound
	}
	return nil
}

// GetMonthlyBill returns a monthly bill by id.
func (p *Postgres) GetMonthlyBill(ctx context.Context, id int64) (domain.MonthlyBill, error) {
	const query = `SELECT bill_id, card_number, organization, amount, description, last_settled
	FROM monthly_bills WHERE bill_id = $1`
	bill, err := scanMonthlyBill(p.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.MonthlyBill{}, domain.ErrEntryNotFound
	}
	if err != nil {
		return domain.MonthlyBill{}, fmt.Errorf("get monthly bill %d: %w", id, err)
	}
	return bill, nil
}

// ListMonthlyBills returns all monthly bills ordered by id ascending.
func (p *Postgres) ListMonthlyBills(ctx context.Context) ([]domain.MonthlyBill, error) {
	const query = `SELECT bill_id, card_number, organization, amount, description, last_settled
	FROM monthly_bills ORDER BY bill_id`
	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query monthly bills: %w", err)
	}
	defer rows.Close()

	var out []domain.MonthlyBill
	for rows.Next() {
		bill, err := scanMonthlyBill(rows)
		if err != nil {
			return nil, fmt.Errorf("scan monthly bill: %w", err)
		}
		out = append(out, bill)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate monthly bills: %w", err)
	}
	return out, nil
}

func scanMonthlyBill(row rowScanner) (domain.MonthlyBill, error) {
	var (
		bill   domain.MonthlyBill
		amount string
	)
	if err := row.Scan(&bill.ID, &bill.CardNumber, &bill.Organization, &amount, &bill.Description, &bill.LastSettled); err != nil {
		return domain.MonthlyBill{}, err
	}
	var err error
	if bill.Amount, err = decimal.NewFromString(amount); err != nil {
		return domain.MonthlyBill{}, err
	}
	return bill, nil
}

// SaveMonthlyBill upserts a monthly bill, assigning an id when zero.
func (p *Postgres) SaveMonthlyBill(ctx context.Context, bill domain.MonthlyBill) (domain.MonthlyBill, error) {
	if bill.ID == 0 {
		const query = `INSERT INTO monthly_bills (card_number, organization, amount, description, last_settled)
		VALUES ($1, $2, $3, $4, $5) RETURNING bill_id`
		err := p.db.QueryRowContext(ctx, query, bill.CardNumber, bill.Organization, bill.Amount.String(),
			bill.Description, bill.LastSettled).Scan(&bill.ID)
		if err != nil {
			return domain.MonthlyBill{}, fmt.Errorf("save monthly bill: %w", err)
		}
		return bill, nil
	}
	const query = `UPDATE monthly_bills SET card_number = $2, organization = $3, amount = $4,
	description = $5, last_settled = $6 WHERE bill_id = $1`
	if _, err := p.db.ExecContext(ctx, query, bill.ID, bill.CardNumber, bill.Organization,
		bill.Amount.String(), bill.Description, bill.LastSettled); err != nil {
		return domain.MonthlyBill{}, fmt.Errorf("update monthly bill %d: %w", bill.ID, err)
	}
	return bill, nil
}

// DeleteMonthlyBill removes a monthly bill by id.
func (p *Postgres) DeleteMonthlyBill(ctx context.Context, id int64) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM monthly_bills WHERE bill_id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete monthly bill %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrEntryNotFound
	}
	return nil
}
