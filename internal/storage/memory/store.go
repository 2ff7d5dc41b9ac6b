// Package memory provides an in-memory AccountStore, used for tests and for
// running the service without a database.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/tonforge/jetton-credit-service/internal/interfaces"
	"github.com/tonforge/jetton-credit-service/internal/models"
)

type MemoryAccountStore struct {
	mu       sync.Mutex
	accounts map[string]models.Account
	credited map[string]struct{} // username|tokenID|eventID
}

func NewMemoryAccountStore() *MemoryAccountStore {
	return &MemoryAccountStore{
		accounts: make(map[string]models.Account),
		credited: make(map[string]struct{}),
	}
}

func (m *MemoryAccountStore) GetAccount(ctx context.Context, username string) (models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.accounts[username]
	if !ok {
		return models.Account{}, fmt.Errorf("%w: %s", interfaces.ErrAccountNotFound, username)
	}
	return account, nil
}

func (m *MemoryAccountStore) UpsertAccount(ctx context.Context, account models.Account) (models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.accounts[account.Username]
	if ok {
		// Only the token balance is synced here; the account balance is
		// mutated through crediting and deduction.
		existing.TokenBalance = account.TokenBalance
		m.accounts[account.Username] = existing
		return existing, nil
	}
	m.accounts[account.Username] = account
	return account, nil
}

func (m *MemoryAccountStore) ApplyCredit(ctx context.Context, username, tokenID, eventID string, delta decimal.Decimal) (decimal.Decimal, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.accounts[username]
	if !ok {
		return decimal.Zero, false, fmt.Errorf("%w: %s", interfaces.ErrAccountNotFound, username)
	}

	key := creditKey(username, tokenID, eventID)
	if _, seen := m.credited[key]; seen {
		return account.AccountBalance, false, nil
	}

	account.AccountBalance = account.AccountBalance.Add(delta)
	m.accounts[username] = account
	m.credited[key] = struct{}{}
	return account.AccountBalance, true, nil
}

func (m *MemoryAccountStore) DeductBalance(ctx context.Context, username string, amount decimal.Decimal) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.accounts[username]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", interfaces.ErrAccountNotFound, username)
	}
	if account.AccountBalance.LessThan(amount) {
		return decimal.Zero, interfaces.ErrInsufficientBalance
	}

	account.AccountBalance = account.AccountBalance.Sub(amount)
	m.accounts[username] = account
	return account.AccountBalance, nil
}

func creditKey(username, tokenID, eventID string) string {
	return username + "|" + tokenID + "|" + eventID
}

var _ interfaces.AccountStore = (*MemoryAccountStore)(nil)
