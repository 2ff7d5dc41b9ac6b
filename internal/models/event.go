package models

import "encoding/json"

// ActionOK is the status the ledger reports for an action that succeeded
// on-chain.
const ActionOK = "ok"

// AccountEvent is one entry in the ledger's transfer history feed. The feed is
// ordered newest first, so the first element of a history page is the latest
// event for the queried account.
type AccountEvent struct {
	EventID string   `json:"event_id"`
	Actions []Action `json:"actions"`
}

// Action is a single on-chain action within an event. The first action in
// event order is authoritative for the crediting flow; this is a deliberate
// simplification of the ledger's richer action model.
type Action struct {
	Status         string          `json:"status"`
	JettonTransfer *JettonTransfer `json:"JettonTransfer,omitempty"`
}

// JettonTransfer carries the transferred amount in nanounits. The ledger
// serialises the amount as either a JSON string or a bare number.
type JettonTransfer struct {
	Amount json.Number `json:"amount"`
}

// JettonBalance is one token balance from the ledger's per-account jetton
// listing.
type JettonBalance struct {
	Symbol  string      `json:"symbol"`
	Balance json.Number `json:"token_balance"`
}
