package interfaces

import (
	"context"

	"github.com/tonforge/jetton-credit-service/internal/models"
)

// LedgerQuery is the read-only view of the external ledger used to confirm
// transfers. Implementations are side-effect free; callers own the pacing.
type LedgerQuery interface {
	// TransferHistory returns up to limit transfer events for the account and
	// jetton within [start, end] (unix seconds), newest first.
	TransferHistory(ctx context.Context, accountID, jettonID string, start, end int64, limit int) ([]models.AccountEvent, error)
}
