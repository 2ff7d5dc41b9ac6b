package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"os"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/tonforge/jetton-credit-service/internal/config"
	"github.com/tonforge/jetton-credit-service/internal/credit"
	"github.com/tonforge/jetton-credit-service/internal/events/kafka"
	"github.com/tonforge/jetton-credit-service/internal/interfaces"
	"github.com/tonforge/jetton-credit-service/internal/jobs"
	"github.com/tonforge/jetton-credit-service/internal/models"
	"github.com/tonforge/jetton-credit-service/internal/poller"
	"github.com/tonforge/jetton-credit-service/internal/storage/memory"
	"github.com/tonforge/jetton-credit-service/internal/storage/postgres"
	"github.com/tonforge/jetton-credit-service/internal/tonapi"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	var store interfaces.AccountStore
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to open database")
		}
		defer db.Close()
		store = postgres.NewPostgresAccountStore(db)
		logger.Info().Msg("using postgres account store")
	} else {
		store = memory.NewMemoryAccountStore()
		logger.Info().Msg("using in-memory account store")
	}

	var publisher interfaces.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kp := kafka.NewPublisher(cfg.KafkaBrokers)
		defer kp.Close()
		publisher = kp
		logger.Info().Strs("brokers", cfg.KafkaBrokers).Msg("kafka publisher enabled")
	}

	ledger := tonapi.NewClient(cfg.TonAPIBaseURL, cfg.TonAPIToken, logger)
	gate := credit.NewGate(store, publisher, logger)
	confirmer := poller.New(store, ledger, gate, poller.Config{
		WaitInterval: cfg.PollInterval,
		MaxAttempts:  cfg.MaxAttempts,
	}, logger)
	manager := jobs.NewManager(cfg.PollTimeout, logger)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	mux.HandleFunc("POST /users", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username       string           `json:"username"`
			TonBalance     *decimal.Decimal `json:"ton_balance"`
			AccountBalance *decimal.Decimal `json:"account_balance"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if req.Username == "" {
			http.Error(w, "username is a mandatory field", http.StatusBadRequest)
			return
		}

		account := models.Account{Username: req.Username}
		if existing, err := store.GetAccount(r.Context(), req.Username); err == nil {
			account = existing
		}
		if req.TonBalance != nil {
			account.TokenBalance = *req.TonBalance
		}
		if req.AccountBalance != nil {
			account.AccountBalance = *req.AccountBalance
		}

		stored, err := store.UpsertAccount(r.Context(), account)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"message": "User data updated",
			"data":    stored,
		})
	})

	mux.HandleFunc("GET /accounts/balance", func(w http.ResponseWriter, r *http.Request) {
		username := r.URL.Query().Get("username")
		if username == "" {
			http.Error(w, "username is a mandatory field", http.StatusBadRequest)
			return
		}

		account, err := store.GetAccount(r.Context(), username)
		if errors.Is(err, interfaces.ErrAccountNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": "User not found"})
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"success":         true,
			"account_balance": account.AccountBalance,
		})
	})

	mux.HandleFunc("POST /accounts/deduct", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UserID          string           `json:"user_id"`
			DeductionAmount *decimal.Decimal `json:"deduction_amount"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		amount := decimal.NewFromInt(1)
		if req.DeductionAmount != nil {
			amount = *req.DeductionAmount
		}

		balance, err := store.DeductBalance(r.Context(), req.UserID, amount)
		switch {
		case errors.Is(err, interfaces.ErrAccountNotFound):
			writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": "User not found"})
		case errors.Is(err, interfaces.ErrInsufficientBalance):
			writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "Insufficient balance"})
		case err != nil:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		default:
			writeJSON(w, http.StatusOK, map[string]any{
				"success":     true,
				"message":     "Token deducted",
				"new_balance": balance,
			})
		}
	})

	mux.HandleFunc("GET /jettons/balance", func(w http.ResponseWriter, r *http.Request) {
		accountID := r.URL.Query().Get("account_id")
		symbol := r.URL.Query().Get("symbol")
		if accountID == "" || symbol == "" {
			http.Error(w, "account_id and symbol are mandatory fields", http.StatusBadRequest)
			return
		}

		balance, err := ledger.JettonBalance(r.Context(), accountID, symbol)
		if errors.Is(err, tonapi.ErrJettonNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "Token " + symbol + " not found"})
			return
		}
		if err != nil {
			writeJSON(w, http.StatusBadGateway, map[string]any{"error": "Failed to fetch token data"})
			return
		}

		writeJSON(w, http.StatusOK, balance)
	})

	// Blocking confirmation: the poll runs on the request goroutine and a
	// dropped connection cancels it mid-sleep.
	mux.HandleFunc("POST /credits/confirm", func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeConfirmRequest(w, r)
		if !ok {
			return
		}

		outcome, err := confirmer.Poll(r.Context(), req)
		if err != nil {
			writeConfirmFailure(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success":     true,
			"message":     "Balance updated",
			"new_balance": outcome.NewBalance,
		})
	})

	// Asynchronous confirmation: returns a job handle to poll for the result.
	mux.HandleFunc("POST /credits", func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeConfirmRequest(w, r)
		if !ok {
			return
		}

		job := manager.Start(func(ctx context.Context) (credit.Outcome, error) {
			return confirmer.Poll(ctx, req)
		})
		writeJSON(w, http.StatusAccepted, job)
	})

	mux.HandleFunc("GET /credits/{id}", func(w http.ResponseWriter, r *http.Request) {
		job, ok := manager.Get(r.PathValue("id"))
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": "Job not found"})
			return
		}
		writeJSON(w, http.StatusOK, job)
	})

	logger.Info().Str("addr", cfg.ListenAddr).Msg("starting server")
	if err := http.ListenAndServe(cfg.ListenAddr, mux); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}

func decodeConfirmRequest(w http.ResponseWriter, r *http.Request) (poller.Request, bool) {
	var req poller.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return poller.Request{}, false
	}
	if req.UserID == "" || req.TokenID == "" {
		http.Error(w, "user_id and token_id are mandatory fields", http.StatusBadRequest)
		return poller.Request{}, false
	}
	return req, true
}

func writeConfirmFailure(w http.ResponseWriter, err error) {
	reason := poller.ReasonOf(err)

	status := http.StatusInternalServerError
	message := err.Error()
	switch reason {
	case poller.ReasonUserNotFound:
		status, message = http.StatusNotFound, "User not found"
	case poller.ReasonServiceError:
		status, message = http.StatusBadGateway, "Error contacting ledger"
	case poller.ReasonActionNotSuccessful:
		status, message = http.StatusNotFound, "No successful transfer action found"
	case poller.ReasonMalformedTransfer:
		status, message = http.StatusUnprocessableEntity, "Unexpected transfer event shape"
	case poller.ReasonExhausted:
		status, message = http.StatusNotFound, "Failed to fetch new transaction"
	case "":
		// Cancelled or timed out before a terminal outcome.
		status, message = http.StatusGatewayTimeout, "Confirmation cancelled"
	}

	writeJSON(w, status, map[string]any{
		"success": false,
		"message": message,
		"reason":  reason,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
