// Package tonapi implements the ledger query client used to confirm jetton
// transfers. It is a thin, read-only HTTP client; any transport failure or
// non-2xx response is surfaced to the caller as a terminal error.
package tonapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tonforge/jetton-credit-service/internal/interfaces"
	"github.com/tonforge/jetton-credit-service/internal/models"
)

// ErrJettonNotFound is returned when an account holds no balance for the
// requested token symbol.
var ErrJettonNotFound = errors.New("jetton not found for account")

type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
	log     zerolog.Logger
}

func NewClient(baseURL, token string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpc:   &http.Client{Timeout: 30 * time.Second},
		log:     log,
	}
}

// TransferHistory returns the account's transfer events for one jetton within
// [start, end] unix seconds, newest first.
func (c *Client) TransferHistory(ctx context.Context, accountID, jettonID string, start, end int64, limit int) ([]models.AccountEvent, error) {
	endpoint := fmt.Sprintf("%s/accounts/%s/jettons/%s/history?limit=%d&start_date=%d&end_date=%d",
		c.baseURL, url.PathEscape(accountID), url.PathEscape(jettonID), limit, start, end)

	var payload struct {
		Events []models.AccountEvent `json:"events"`
	}
	if err := c.get(ctx, endpoint, &payload); err != nil {
		return nil, err
	}
	c.log.Debug().Str("account", accountID).Str("jetton", jettonID).Int("events", len(payload.Events)).Msg("fetched transfer history")
	return payload.Events, nil
}

// JettonBalance looks up the account's balance for the token with the given
// symbol from the ledger's per-account jetton listing.
func (c *Client) JettonBalance(ctx context.Context, accountID, symbol string) (models.JettonBalance, error) {
	endpoint := fmt.Sprintf("%s/accounts/%s/jettons", c.baseURL, url.PathEscape(accountID))

	var payload struct {
		Balances []struct {
			Balance json.Number `json:"balance"`
			Jetton  struct {
				Symbol string `json:"symbol"`
			} `json:"jetton"`
		} `json:"balances"`
	}
	if err := c.get(ctx, endpoint, &payload); err != nil {
		return models.JettonBalance{}, err
	}

	for _, b := range payload.Balances {
		if b.Jetton.Symbol == symbol {
			return models.JettonBalance{Symbol: symbol, Balance: b.Balance}, nil
		}
	}
	return models.JettonBalance{}, fmt.Errorf("%w: %s", ErrJettonNotFound, symbol)
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build ledger request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("query ledger: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("ledger responded %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode ledger response: %w", err)
	}
	return nil
}

var _ interfaces.LedgerQuery = (*Client)(nil)
