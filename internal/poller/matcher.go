package poller

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/tonforge/jetton-credit-service/internal/models"
)

var (
	// ErrActionNotSuccessful marks an event whose first action did not
	// succeed on the ledger.
	ErrActionNotSuccessful = errors.New("action did not succeed on the ledger")
	// ErrMalformedTransfer marks an event that carries no parseable transfer
	// payload.
	ErrMalformedTransfer = errors.New("malformed transfer event")
)

// MatchTransfer validates a stabilized event and extracts the transferred
// amount in nanounits. Only the first action is inspected: the first action
// in event order is authoritative for this flow.
func MatchTransfer(event models.AccountEvent) (int64, error) {
	if len(event.Actions) == 0 {
		return 0, fmt.Errorf("%w: event %s has no actions", ErrMalformedTransfer, event.EventID)
	}

	action := event.Actions[0]
	if action.Status != models.ActionOK {
		return 0, fmt.Errorf("%w: status %q", ErrActionNotSuccessful, action.Status)
	}
	if action.JettonTransfer == nil {
		return 0, fmt.Errorf("%w: first action carries no transfer payload", ErrMalformedTransfer)
	}

	amount, err := strconv.ParseInt(action.JettonTransfer.Amount.String(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: amount %q is not an integer", ErrMalformedTransfer, action.JettonTransfer.Amount)
	}
	if amount < 0 {
		return 0, fmt.Errorf("%w: negative amount %d", ErrMalformedTransfer, amount)
	}
	return amount, nil
}
