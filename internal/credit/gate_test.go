package credit

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tonforge/jetton-credit-service/internal/interfaces"
	"github.com/tonforge/jetton-credit-service/internal/models"
	"github.com/tonforge/jetton-credit-service/internal/storage/memory"
)

type fakePublisher struct {
	mu     sync.Mutex
	topics []string
	err    error
}

func (f *fakePublisher) Publish(ctx context.Context, topic string, event any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topics = append(f.topics, topic)
	return f.err
}

func newTestGate(t *testing.T, publisher interfaces.EventPublisher) (*Gate, *memory.MemoryAccountStore) {
	t.Helper()

	store := memory.NewMemoryAccountStore()
	_, err := store.UpsertAccount(context.Background(), models.Account{Username: "bob"})
	require.NoError(t, err)
	return NewGate(store, publisher, zerolog.Nop()), store
}

func TestCreditConvertsNanounits(t *testing.T) {
	gate, _ := newTestGate(t, nil)

	outcome, err := gate.Credit(context.Background(), "bob", "jUSDT", "e1", 1_500_000_000)
	require.NoError(t, err)

	assert.True(t, outcome.Applied)
	assert.True(t, outcome.Amount.Equal(decimal.RequireFromString("1.5")), "amount %s", outcome.Amount)
	assert.True(t, outcome.NewBalance.Equal(decimal.RequireFromString("1.5")))
}

func TestCreditIsIdempotentPerEvent(t *testing.T) {
	gate, store := newTestGate(t, nil)
	ctx := context.Background()

	first, err := gate.Credit(ctx, "bob", "jUSDT", "e1", 1_000_000_000)
	require.NoError(t, err)
	require.True(t, first.Applied)

	second, err := gate.Credit(ctx, "bob", "jUSDT", "e1", 1_000_000_000)
	require.NoError(t, err)
	assert.False(t, second.Applied)
	assert.True(t, second.NewBalance.Equal(decimal.NewFromInt(1)))

	account, err := store.GetAccount(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, account.AccountBalance.Equal(decimal.NewFromInt(1)))
}

func TestCreditAccumulatesDistinctEvents(t *testing.T) {
	gate, _ := newTestGate(t, nil)
	ctx := context.Background()

	_, err := gate.Credit(ctx, "bob", "jUSDT", "e1", 1_000_000_000)
	require.NoError(t, err)
	outcome, err := gate.Credit(ctx, "bob", "jUSDT", "e2", 500_000_000)
	require.NoError(t, err)

	assert.True(t, outcome.NewBalance.Equal(decimal.RequireFromString("1.5")))
}

func TestCreditRejectsNegativeAmount(t *testing.T) {
	gate, _ := newTestGate(t, nil)

	_, err := gate.Credit(context.Background(), "bob", "jUSDT", "e1", -1)
	assert.Error(t, err)
}

func TestCreditUnknownAccount(t *testing.T) {
	gate, _ := newTestGate(t, nil)

	_, err := gate.Credit(context.Background(), "ghost", "jUSDT", "e1", 1)
	assert.ErrorIs(t, err, interfaces.ErrAccountNotFound)
}

func TestCreditPublishesOncePerAppliedCredit(t *testing.T) {
	publisher := &fakePublisher{}
	gate, _ := newTestGate(t, publisher)
	ctx := context.Background()

	_, err := gate.Credit(ctx, "bob", "jUSDT", "e1", 1_000_000_000)
	require.NoError(t, err)
	_, err = gate.Credit(ctx, "bob", "jUSDT", "e1", 1_000_000_000)
	require.NoError(t, err)

	require.Len(t, publisher.topics, 1)
	assert.Equal(t, "balance_credited", publisher.topics[0])
}

func TestCreditSurvivesPublishFailure(t *testing.T) {
	publisher := &fakePublisher{err: errors.New("broker down")}
	gate, store := newTestGate(t, publisher)

	outcome, err := gate.Credit(context.Background(), "bob", "jUSDT", "e1", 1_000_000_000)
	require.NoError(t, err)
	assert.True(t, outcome.Applied)

	account, err := store.GetAccount(context.Background(), "bob")
	require.NoError(t, err)
	assert.True(t, account.AccountBalance.Equal(decimal.NewFromInt(1)))
}

func TestConcurrentCreditsDoNotLoseUpdates(t *testing.T) {
	gate, store := newTestGate(t, nil)
	ctx := context.Background()

	const workers = 20
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(n int) {
			defer wg.Done()
			_, err := gate.Credit(ctx, "bob", "jUSDT", string(rune('a'+n)), 1_000_000_000)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	account, err := store.GetAccount(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, account.AccountBalance.Equal(decimal.NewFromInt(workers)))
}
