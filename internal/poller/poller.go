// Package poller drives the transfer confirmation loop: it watches the
// ledger's history feed for the queried account until a new event appears and
// stabilizes, then hands that event to the matcher and the crediting gate.
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/tonforge/jetton-credit-service/internal/credit"
	"github.com/tonforge/jetton-credit-service/internal/interfaces"
	"github.com/tonforge/jetton-credit-service/internal/models"
)

// state of one poll invocation. A first observed event id is only a baseline,
// not proof of a new transfer: the ledger may already hold old events before
// the expected transfer lands. The poll therefore needs to observe a *change*
// in the newest event id, then wait one more interval for that event to
// settle, before trusting its contents.
type state int

const (
	stateAwaitingBaseline state = iota
	stateAwaitingChange
	stateAwaitingStabilization
	stateMatching
	stateDone
)

type pollState struct {
	state      state
	lastSeenID string
}

// observe feeds the newest event id into the state machine.
func (s *pollState) observe(latestID string) {
	switch s.state {
	case stateAwaitingBaseline:
		s.lastSeenID = latestID
		s.state = stateAwaitingChange
	case stateAwaitingChange:
		if latestID != s.lastSeenID {
			s.state = stateAwaitingStabilization
		}
	}
}

// Creditor applies a confirmed transfer amount to an account.
type Creditor interface {
	Credit(ctx context.Context, username, tokenID, eventID string, nanounits int64) (credit.Outcome, error)
}

// Config fixes one poll invocation's pacing.
type Config struct {
	WaitInterval time.Duration
	MaxAttempts  int
	PageSize     int
}

func (c Config) withDefaults() Config {
	if c.WaitInterval <= 0 {
		c.WaitInterval = 15 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 12
	}
	if c.PageSize <= 0 {
		c.PageSize = 100
	}
	return c
}

// Request identifies the expected transfer: whose account, which token, and
// the date window (unix seconds) the transfer is expected in.
type Request struct {
	UserID    string `json:"user_id"`
	TokenID   string `json:"token_id"`
	StartDate int64  `json:"start_date"`
	EndDate   int64  `json:"end_date"`
}

type Poller struct {
	accounts interfaces.AccountStore
	ledger   interfaces.LedgerQuery
	gate     Creditor
	cfg      Config
	log      zerolog.Logger

	// sleep is swappable so tests can run the loop without real waits.
	sleep func(ctx context.Context, d time.Duration) error
}

func New(accounts interfaces.AccountStore, ledger interfaces.LedgerQuery, gate Creditor, cfg Config, log zerolog.Logger) *Poller {
	return &Poller{
		accounts: accounts,
		ledger:   ledger,
		gate:     gate,
		cfg:      cfg.withDefaults(),
		log:      log,
		sleep:    sleepContext,
	}
}

// Poll watches the ledger until the expected transfer is confirmed, then
// credits the account exactly once and returns the outcome. All failures are
// terminal for this invocation; only "no new event yet" is retried
// internally, up to MaxAttempts.
func (p *Poller) Poll(ctx context.Context, req Request) (credit.Outcome, error) {
	// Precondition before any network call: the account must exist.
	if _, err := p.accounts.GetAccount(ctx, req.UserID); err != nil {
		if errors.Is(err, interfaces.ErrAccountNotFound) {
			return credit.Outcome{}, failure(ReasonUserNotFound, err)
		}
		return credit.Outcome{}, failure(ReasonServiceError, err)
	}

	log := p.log.With().Str("user", req.UserID).Str("token", req.TokenID).Logger()
	st := pollState{}

	for attempt := 0; attempt < p.cfg.MaxAttempts; attempt++ {
		events, err := p.ledger.TransferHistory(ctx, req.UserID, req.TokenID, req.StartDate, req.EndDate, p.cfg.PageSize)
		if err != nil {
			if ctx.Err() != nil {
				return credit.Outcome{}, ctx.Err()
			}
			// A connection error is terminal, not transient; callers may
			// re-invoke.
			log.Error().Err(err).Int("attempt", attempt+1).Msg("ledger query failed")
			return credit.Outcome{}, failure(ReasonServiceError, err)
		}

		if len(events) > 0 {
			latest := events[0]
			if st.state == stateAwaitingStabilization {
				// The settle interval has elapsed; the latest event is now
				// trusted and the outcome, good or bad, ends the poll.
				st.state = stateMatching
				outcome, err := p.settle(ctx, req, latest, log)
				st.state = stateDone
				return outcome, err
			}
			st.observe(latest.EventID)
		}

		log.Debug().
			Int("attempt", attempt+1).
			Int("max_attempts", p.cfg.MaxAttempts).
			Str("last_seen_event", st.lastSeenID).
			Msg("no confirmed transfer yet")

		if err := p.sleep(ctx, p.cfg.WaitInterval); err != nil {
			return credit.Outcome{}, err
		}
	}

	log.Error().Int("max_attempts", p.cfg.MaxAttempts).Msg("no new transfer within attempt budget")
	return credit.Outcome{}, failure(ReasonExhausted, fmt.Errorf("no new transfer after %d attempts", p.cfg.MaxAttempts))
}

func (p *Poller) settle(ctx context.Context, req Request, latest models.AccountEvent, log zerolog.Logger) (credit.Outcome, error) {
	nanounits, err := MatchTransfer(latest)
	if err != nil {
		log.Error().Err(err).Str("event_id", latest.EventID).Msg("stabilized event did not confirm the transfer")
		reason := ReasonMalformedTransfer
		if errors.Is(err, ErrActionNotSuccessful) {
			reason = ReasonActionNotSuccessful
		}
		return credit.Outcome{}, failure(reason, err)
	}

	outcome, err := p.gate.Credit(ctx, req.UserID, req.TokenID, latest.EventID, nanounits)
	if err != nil {
		return credit.Outcome{}, failure(ReasonServiceError, err)
	}
	log.Info().
		Str("event_id", latest.EventID).
		Str("amount", outcome.Amount.String()).
		Str("new_balance", outcome.NewBalance.String()).
		Bool("applied", outcome.Applied).
		Msg("transfer confirmed")
	return outcome, nil
}

// sleepContext blocks for d or until ctx is cancelled, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
