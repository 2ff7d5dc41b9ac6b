package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// TopicBalanceCredited carries one BalanceCredited message per applied credit.
const TopicBalanceCredited = "balance_credited"

type BalanceCredited struct {
	Username   string          `json:"username"`
	TokenID    string          `json:"token_id"`
	EventID    string          `json:"event_id"`
	Amount     decimal.Decimal `json:"amount"`
	NewBalance decimal.Decimal `json:"new_balance"`
	OccurredAt time.Time       `json:"occurred_at"`
}
