package interfaces

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/tonforge/jetton-credit-service/internal/models"
)

var (
	// ErrAccountNotFound is returned when no account exists for a username.
	ErrAccountNotFound = errors.New("account not found")
	// ErrInsufficientBalance is returned when a deduction would take the
	// account balance below zero.
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// AccountStore is the keyed record store for user accounts. Balance mutations
// must be atomic per account so that concurrent crediting attempts cannot
// interleave read-modify-write.
type AccountStore interface {
	// GetAccount looks up an account by username.
	GetAccount(ctx context.Context, username string) (models.Account, error)

	// UpsertAccount creates the account if missing; for an existing account
	// it updates the token balance only, leaving the account balance to the
	// crediting and deduction paths. Returns the stored record.
	UpsertAccount(ctx context.Context, account models.Account) (models.Account, error)

	// ApplyCredit increments the account balance by delta, at most once per
	// (username, tokenID, eventID). A replayed event leaves the balance
	// untouched and reports applied=false.
	ApplyCredit(ctx context.Context, username, tokenID, eventID string, delta decimal.Decimal) (newBalance decimal.Decimal, applied bool, err error)

	// DeductBalance subtracts amount from the account balance, failing with
	// ErrInsufficientBalance rather than going negative.
	DeductBalance(ctx context.Context, username string, amount decimal.Decimal) (newBalance decimal.Decimal, err error)
}
