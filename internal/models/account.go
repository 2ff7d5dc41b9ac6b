package models

import "github.com/shopspring/decimal"

// Account is a user record holding an account-currency balance and an
// independently tracked on-ledger token balance.
type Account struct {
	Username       string          `json:"username"`
	TokenBalance   decimal.Decimal `json:"ton_balance"`
	AccountBalance decimal.Decimal `json:"account_balance"`
}
