package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/swiftpay/wallet-service/internal/domain"
)

// APIHandlers exposes HTTP handlers for the wallet REST API.
type APIHandlers struct {
	logger *slog.Logger
	wallet *domain.WalletService
}

// NewAPIHandlers constructs an APIHandlers instance.
func NewAPIHandlers(logger *slog.Logger, wallet *domain.WalletService) *APIHandlers {
	return &APIHandlers{
		logger: logger,
		wallet: wallet,
	}
}

type identityRequest struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl"`
}

type accountResponse struct {
	AccountID      string    `json:"accountId"`
	DisplayName    string    `json:"displayName"`
	Email          string    `json:"email,omitempty"`
	AvatarURL      string    `json:"avatarUrl,omitempty"`
	Balance        string    `json:"balance"`
	PaymentID      string    `json:"paymentId"`
	CreatedAt      time.Time `json:"createdAt"`
	LastInterestAt time.Time `json:"lastInterestAt"`
}

type transferRequest struct {
	ReceiverPaymentID string `json:"receiverPaymentId"`
	Amount            string `json:"amount"`
}

type transferResponse struct {
	Success bool                 `json:"success"`
	Message string               `json:"message"`
	Entry   *transactionResponse `json:"entry,omitempty"`
}

type transactionResponse struct {
	ID           string    `json:"id"`
	SenderID     string    `json:"senderId"`
	ReceiverID   string    `json:"receiverId"`
	Amount       string    `json:"amount"`
	Type         string    `json:"type"`
	Direction    string    `json:"direction,omitempty"`
	Status       string    `json:"status"`
	Note         string    `json:"note,omitempty"`
	SenderName   string    `json:"senderName,omitempty"`
	ReceiverName string    `json:"receiverName,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

type adjustBalanceRequest struct {
	Balance string `json:"balance"`
}

// createAccount handles POST /v1/accounts: get-or-create from an identity
// handle issued by the external identity provider.
func (h *APIHandlers) createAccount(w http.ResponseWriter, r *http.Request) {
	var req identityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "identity id is required")
		return
	}

	account, err := h.wallet.GetOrCreateAccount(r.Context(), domain.Identity{
		ID:          req.ID,
		Email:       req.Email,
		DisplayName: req.DisplayName,
		AvatarURL:   req.AvatarURL,
	})
	if err != nil {
		h.logger.Error("failed to get or create account", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load account")
		return
	}

	respondJSON(w, http.StatusOK, toAccountResponse(account))
}

// getAccount handles GET /v1/accounts/{accountID}. Loading a profile
// triggers interest accrual, so the returned balance is current.
func (h *APIHandlers) getAccount(w http.ResponseWriter, r *http.Request) {
	accountID, ok := parseAccountID(w, r)
	if !ok {
		return
	}

	account, err := h.wallet.GetAccount(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			writeError(w, http.StatusNotFound, "account not found")
			return
		}
		h.logger.Error("failed to load account", "error", err, "account_id", accountID)
		writeError(w, http.StatusInternalServerError, "failed to load account")
		return
	}

	respondJSON(w, http.StatusOK, toAccountResponse(account))
}

// createTransfer handles POST /v1/accounts/{accountID}/transfers. Expected
// validation failures come back as 200 with success=false; only storage
// failures produce a 500, with a deliberately generic message.
func (h *APIHandlers) createTransfer(w http.ResponseWriter, r *http.Request) {
	senderID, ok := parseAccountID(w, r)
	if !ok {
		return
	}

	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		respondJSON(w, http.StatusOK, transferResponse{Message: "Invalid amount"})
		return
	}

	result, err := h.wallet.Transfer(r.Context(), senderID, req.ReceiverPaymentID, amount)
	if err != nil {
		h.logger.Error("transfer failed", "error", err, "sender_id", senderID)
		respondJSON(w, http.StatusInternalServerError, transferResponse{Message: "Transaction failed unexpectedly"})
		return
	}

	resp := transferResponse{Success: result.Success, Message: result.Message}
	if result.Entry != nil {
		entry := toTransactionResponse(result.Entry, senderID)
		resp.Entry = &entry
	}
	respondJSON(w, http.StatusOK, resp)
}

// listTransactions handles GET /v1/accounts/{accountID}/transactions: the
// account's full history, newest first, with the per-viewer direction label
// derived from the canonical entry.
func (h *APIHandlers) listTransactions(w http.ResponseWriter, r *http.Request) {
	accountID, ok := parseAccountID(w, r)
	if !ok {
		return
	}

	entries, err := h.wallet.ListHistory(r.Context(), accountID)
	if err != nil {
		h.logger.Error("failed to list transactions", "error", err, "account_id", accountID)
		writeError(w, http.StatusInternalServerError, "failed to list transactions")
		return
	}

	responses := make([]transactionResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, toTransactionResponse(entry, accountID))
	}
	respondJSON(w, http.StatusOK, map[string]any{"transactions": responses})
}

// adminListAccounts handles GET /v1/admin/accounts.
func (h *APIHandlers) adminListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.wallet.ListAllAccounts(r.Context())
	if err != nil {
		h.logger.Error("failed to list accounts", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list accounts")
		return
	}

	responses := make([]accountResponse, 0, len(accounts))
	for _, account := range accounts {
		responses = append(responses, toAccountResponse(account))
	}
	respondJSON(w, http.StatusOK, map[string]any{"accounts": responses})
}

// adminAdjustBalance handles PUT /v1/admin/accounts/{accountID}/balance.
func (h *APIHandlers) adminAdjustBalance(w http.ResponseWriter, r *http.Request) {
	accountID, ok := parseAccountID(w, r)
	if !ok {
		return
	}

	var req adjustBalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	balance, err := decimal.NewFromString(req.Balance)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid balance")
		return
	}

	account, err := h.wallet.AdjustBalance(r.Context(), accountID, balance)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAccountNotFound):
			writeError(w, http.StatusNotFound, "account not found")
		case errors.Is(err, domain.ErrInvalidAmount):
			writeError(w, http.StatusBadRequest, "invalid balance")
		default:
			h.logger.Error("failed to adjust balance", "error", err, "account_id", accountID)
			writeError(w, http.StatusInternalServerError, "failed to adjust balance")
		}
		return
	}

	respondJSON(w, http.StatusOK, toAccountResponse(account))
}

func parseAccountID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "accountID")
	accountID, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return uuid.Nil, false
	}
	return accountID, true
}

func toAccountResponse(account *domain.Account) accountResponse {
	return accountResponse{
		AccountID:      account.ID.String(),
		DisplayName:    account.DisplayName,
		Email:          account.Email,
		AvatarURL:      account.AvatarURL,
		Balance:        domain.FormatAmount(account.Balance),
		PaymentID:      account.PaymentID,
		CreatedAt:      account.CreatedAt.UTC(),
		LastInterestAt: account.LastInterestAt.UTC(),
	}
}

func toTransactionResponse(entry *domain.LedgerEntry, viewer uuid.UUID) transactionResponse {
	senderID := "SYSTEM"
	if !entry.IsSystem() {
		senderID = entry.SenderID.String()
	}
	return transactionResponse{
		ID:           entry.ID.String(),
		SenderID:     senderID,
		ReceiverID:   entry.ReceiverID.String(),
		Amount:       domain.FormatAmount(entry.Amount),
		Type:         string(entry.Type),
		Direction:    string(entry.Direction(viewer)),
		Status:       string(entry.Status),
		Note:         entry.Note,
		SenderName:   entry.SenderName,
		ReceiverName: entry.ReceiverName,
		Timestamp:    entry.CreatedAt.UTC(),
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
