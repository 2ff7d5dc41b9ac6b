// Package postgres provides the postgres-backed AccountStore. Balance
// mutations are single-statement atomic updates (or one transaction for the
// credit marker plus increment) so concurrent writers cannot lose updates.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tonforge/jetton-credit-service/internal/interfaces"
	"github.com/tonforge/jetton-credit-service/internal/models"
)

type PostgresAccountStore struct {
	db *sql.DB
}

func NewPostgresAccountStore(db *sql.DB) *PostgresAccountStore {
	return &PostgresAccountStore{db: db}
}

func (p *PostgresAccountStore) GetAccount(ctx context.Context, username string) (models.Account, error) {
	const query = `SELECT username, ton_balance, account_balance FROM accounts WHERE username = $1`

	var account models.Account
	err := p.db.QueryRowContext(ctx, query, username).Scan(
		&account.Username,
		&account.TokenBalance,
		&account.AccountBalance,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Account{}, fmt.Errorf("%w: %s", interfaces.ErrAccountNotFound, username)
	}
	if err != nil {
		return models.Account{}, err
	}
	return account, nil
}

func (p *PostgresAccountStore) UpsertAccount(ctx context.Context, account models.Account) (models.Account, error) {
	const query = `INSERT INTO accounts (username, ton_balance, account_balance)
	VALUES ($1, $2, $3)
	ON CONFLICT (username) DO UPDATE SET ton_balance = EXCLUDED.ton_balance
	RETURNING username, ton_balance, account_balance`

	var stored models.Account
	err := p.db.QueryRowContext(ctx, query, account.Username, account.TokenBalance, account.AccountBalance).Scan(
		&stored.Username,
		&stored.TokenBalance,
		&stored.AccountBalance,
	)
	if err != nil {
		return models.Account{}, err
	}
	return stored, nil
}

func (p *PostgresAccountStore) ApplyCredit(ctx context.Context, username, tokenID, eventID string, delta decimal.Decimal) (decimal.Decimal, bool, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return decimal.Zero, false, err
	}
	defer tx.Rollback()

	// The credit marker makes the increment exactly-once per event, also
	// across separate poll invocations over overlapping date windows.
	const markQuery = `INSERT INTO credited_events (username, token_id, event_id)
	VALUES ($1, $2, $3)
	ON CONFLICT DO NOTHING`

	res, err := tx.ExecContext(ctx, markQuery, username, tokenID, eventID)
	if err != nil {
		return decimal.Zero, false, err
	}
	marked, err := res.RowsAffected()
	if err != nil {
		return decimal.Zero, false, err
	}

	if marked == 0 {
		// Already credited; report the current balance unchanged.
		const balanceQuery = `SELECT account_balance FROM accounts WHERE username = $1`
		var balance decimal.Decimal
		err := tx.QueryRowContext(ctx, balanceQuery, username).Scan(&balance)
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, false, fmt.Errorf("%w: %s", interfaces.ErrAccountNotFound, username)
		}
		if err != nil {
			return decimal.Zero, false, err
		}
		return balance, false, tx.Commit()
	}

	const creditQuery = `UPDATE accounts SET account_balance = account_balance + $2
	WHERE username = $1
	RETURNING account_balance`

	var balance decimal.Decimal
	err = tx.QueryRowContext(ctx, creditQuery, username, delta).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, false, fmt.Errorf("%w: %s", interfaces.ErrAccountNotFound, username)
	}
	if err != nil {
		return decimal.Zero, false, err
	}
	return balance, true, tx.Commit()
}

func (p *PostgresAccountStore) DeductBalance(ctx context.Context, username string, amount decimal.Decimal) (decimal.Decimal, error) {
	const query = `UPDATE accounts SET account_balance = account_balance - $2
	WHERE username = $1 AND account_balance >= $2
	RETURNING account_balance`

	var balance decimal.Decimal
	err := p.db.QueryRowContext(ctx, query, username, amount).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, err
	}

	// No row updated: either the account is missing or the balance is short.
	const existsQuery = `SELECT 1 FROM accounts WHERE username = $1`
	var exists int
	err = p.db.QueryRowContext(ctx, existsQuery, username).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("%w: %s", interfaces.ErrAccountNotFound, username)
	}
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.Zero, interfaces.ErrInsufficientBalance
}

var _ interfaces.AccountStore = (*PostgresAccountStore)(nil)
