// Package credit converts confirmed ledger transfer amounts into account
// currency and applies them to the account store exactly once per event.
package credit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/tonforge/jetton-credit-service/internal/interfaces"
	"github.com/tonforge/jetton-credit-service/internal/models/events"
)

// nanounitExponent converts the ledger's smallest unit into account currency:
// one unit is 1e9 nanounits.
const nanounitExponent = -9

// Outcome reports an applied (or replayed) credit.
type Outcome struct {
	Username   string          `json:"username"`
	TokenID    string          `json:"token_id"`
	EventID    string          `json:"event_id"`
	Amount     decimal.Decimal `json:"amount"`
	NewBalance decimal.Decimal `json:"new_balance"`
	// Applied is false when the event had already been credited and the
	// balance was left untouched.
	Applied bool `json:"applied"`
}

// Gate is the only path through which transfers mutate account balances.
type Gate struct {
	store     interfaces.AccountStore
	publisher interfaces.EventPublisher // optional
	log       zerolog.Logger

	mapMu sync.Mutex             // protects muMap itself
	muMap map[string]*sync.Mutex // one lock per account
}

func NewGate(store interfaces.AccountStore, publisher interfaces.EventPublisher, log zerolog.Logger) *Gate {
	return &Gate{
		store:     store,
		publisher: publisher,
		log:       log,
		muMap:     make(map[string]*sync.Mutex),
	}
}

func (g *Gate) accountLock(username string) *sync.Mutex {
	g.mapMu.Lock()
	defer g.mapMu.Unlock()

	if _, exists := g.muMap[username]; !exists {
		g.muMap[username] = &sync.Mutex{}
	}
	return g.muMap[username]
}

// Credit converts nanounits to account currency and increments the account
// balance, at most once per (username, tokenID, eventID). Concurrent credits
// for the same account serialize on a per-account lock so the store's
// read-modify-write cannot interleave.
func (g *Gate) Credit(ctx context.Context, username, tokenID, eventID string, nanounits int64) (Outcome, error) {
	if nanounits < 0 {
		return Outcome{}, fmt.Errorf("negative transfer amount %d", nanounits)
	}
	delta := decimal.New(nanounits, nanounitExponent)

	lock := g.accountLock(username)
	lock.Lock()
	defer lock.Unlock()

	newBalance, applied, err := g.store.ApplyCredit(ctx, username, tokenID, eventID, delta)
	if err != nil {
		return Outcome{}, fmt.Errorf("apply credit: %w", err)
	}

	outcome := Outcome{
		Username:   username,
		TokenID:    tokenID,
		EventID:    eventID,
		Amount:     delta,
		NewBalance: newBalance,
		Applied:    applied,
	}

	if !applied {
		g.log.Info().Str("user", username).Str("event_id", eventID).Msg("event already credited, balance unchanged")
		return outcome, nil
	}

	if g.publisher != nil {
		evt := events.BalanceCredited{
			Username:   username,
			TokenID:    tokenID,
			EventID:    eventID,
			Amount:     delta,
			NewBalance: newBalance,
			OccurredAt: time.Now().UTC(),
		}
		// The credit is already committed; a publish failure is logged, not
		// propagated.
		if err := g.publisher.Publish(ctx, events.TopicBalanceCredited, evt); err != nil {
			g.log.Error().Err(err).Str("event_id", eventID).Msg("failed to publish balance_credited")
		}
	}

	return outcome, nil
}
