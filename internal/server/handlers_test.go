package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/swiftpay/wallet-service/internal/domain"
	"github.com/swiftpay/wallet-service/internal/server"
)

// stubStore backs the HTTP tests with a real WalletService on top of
// in-memory repositories.
type stubStore struct {
	accounts map[uuid.UUID]*domain.Account
	entries  []*domain.LedgerEntry
}

type stubAccountRepo struct{ store *stubStore }

func (r *stubAccountRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Account, error) {
	account, ok := r.store.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	clone := *account
	return &clone, nil
}

func (r *stubAccountRepo) GetByExternalID(_ context.Context, externalID string) (*domain.Account, error) {
	for _, account := range r.store.accounts {
		if account.ExternalID == externalID {
			clone := *account
			return &clone, nil
		}
	}
	return nil, domain.ErrAccountNotFound
}

func (r *stubAccountRepo) GetByPaymentID(_ context.Context, paymentID string) (*domain.Account, error) {
	for _, account := range r.store.accounts {
		if account.PaymentID == paymentID {
			clone := *account
			return &clone, nil
		}
	}
	return nil, domain.ErrAccountNotFound
}

func (r *stubAccountRepo) Create(_ context.Context, account *domain.Account) error {
	clone := *account
	r.store.accounts[account.ID] = &clone
	return nil
}

func (r *stubAccountRepo) Update(_ context.Context, account *domain.Account) error {
	if _, ok := r.store.accounts[account.ID]; !ok {
		return domain.ErrAccountNotFound
	}
	clone := *account
	r.store.accounts[account.ID] = &clone
	return nil
}

func (r *stubAccountRepo) Lock(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return r.GetByID(ctx, id)
}

func (r *stubAccountRepo) List(_ context.Context) ([]*domain.Account, error) {
	accounts := make([]*domain.Account, 0, len(r.store.accounts))
	for _, account := range r.store.accounts {
		clone := *account
		accounts = append(accounts, &clone)
	}
	return accounts, nil
}

type stubLedgerRepo struct{ store *stubStore }

func (r *stubLedgerRepo) Create(_ context.Context, entry *domain.LedgerEntry) error {
	clone := *entry
	r.store.entries = append(r.store.entries, &clone)
	return nil
}

func (r *stubLedgerRepo) ListByAccount(_ context.Context, accountID uuid.UUID) ([]*domain.LedgerEntry, error) {
	var entries []*domain.LedgerEntry
	for i := len(r.store.entries) - 1; i >= 0; i-- {
		entry := r.store.entries[i]
		if entry.SenderID == accountID || entry.ReceiverID == accountID {
			clone := *entry
			entries = append(entries, &clone)
		}
	}
	return entries, nil
}

type stubTxManager struct{}

func (stubTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

const adminPassword = "hunter2"

func newTestRouter(t *testing.T) (http.Handler, *stubStore) {
	t.Helper()
	store := &stubStore{accounts: make(map[uuid.UUID]*domain.Account)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	wallet := domain.NewWalletService(
		&stubAccountRepo{store: store},
		&stubLedgerRepo{store: store},
		stubTxManager{},
		nil,
		logger,
	)

	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash admin password: %v", err)
	}

	router := server.NewRouter(logger, server.RouterDependencies{
		API:               server.NewAPIHandlers(logger, wallet),
		AdminPasswordHash: string(hash),
	})
	return router, store
}

func seedAccount(store *stubStore, name, paymentID, balance string) *domain.Account {
	now := time.Now()
	account := &domain.Account{
		ID:             uuid.New(),
		ExternalID:     "ext-" + name,
		DisplayName:    name,
		Balance:        decimal.RequireFromString(balance),
		PaymentID:      paymentID,
		CreatedAt:      now,
		LastInterestAt: now,
		UpdatedAt:      now,
	}
	store.accounts[account.ID] = account
	return account
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateAccount(t *testing.T) {
	router, store := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/v1/accounts", map[string]string{
		"id":          "google-42",
		"email":       "alice@example.com",
		"displayName": "Alice",
	}, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		AccountID string `json:"accountId"`
		Balance   string `json:"balance"`
		PaymentID string `json:"paymentId"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Balance != "30.00" {
		t.Errorf("expected welcome balance 30.00, got %s", resp.Balance)
	}
	if resp.PaymentID != "alice@swiftpay" {
		t.Errorf("expected payment id alice@swiftpay, got %s", resp.PaymentID)
	}
	if len(store.entries) != 1 || store.entries[0].Type != domain.EntryBonus {
		t.Errorf("expected a single bonus entry, got %+v", store.entries)
	}
}

func TestCreateAccount_MissingIdentity(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/v1/accounts", map[string]string{"email": "x@y.z"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetAccount(t *testing.T) {
	router, store := newTestRouter(t)
	account := seedAccount(store, "Alice", "alice@swiftpay", "100")

	rec := doJSON(t, router, http.MethodGet, "/v1/accounts/"+account.ID.String(), nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/v1/accounts/"+uuid.New().String(), nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown account, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/v1/accounts/not-a-uuid", nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed id, got %d", rec.Code)
	}
}

func TestCreateTransfer(t *testing.T) {
	router, store := newTestRouter(t)
	alice := seedAccount(store, "Alice", "alice@swiftpay", "100")
	bob := seedAccount(store, "Bob", "bob@swiftpay", "10")

	rec := doJSON(t, router, http.MethodPost, "/v1/accounts/"+alice.ID.String()+"/transfers", map[string]string{
		"receiverPaymentId": "bob@swiftpay",
		"amount":            "40",
	}, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Entry   *struct {
			Type      string `json:"type"`
			Direction string `json:"direction"`
			Amount    string `json:"amount"`
		} `json:"entry"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Success {
		t.Fatalf("expected success, got message %q", resp.Message)
	}
	if resp.Entry == nil || resp.Entry.Type != "sent" || resp.Entry.Amount != "40.00" {
		t.Errorf("unexpected entry: %+v", resp.Entry)
	}

	if got := store.accounts[alice.ID].Balance; !got.Equal(decimal.RequireFromString("60")) {
		t.Errorf("sender balance = %s, want 60", got)
	}
	if got := store.accounts[bob.ID].Balance; !got.Equal(decimal.RequireFromString("50")) {
		t.Errorf("receiver balance = %s, want 50", got)
	}
}

func TestCreateTransfer_ExpectedFailures(t *testing.T) {
	router, store := newTestRouter(t)
	alice := seedAccount(store, "Alice", "alice@swiftpay", "100")
	seedAccount(store, "Bob", "bob@swiftpay", "10")

	tests := []struct {
		name    string
		body    map[string]string
		message string
	}{
		{
			name:    "invalid amount",
			body:    map[string]string{"receiverPaymentId": "bob@swiftpay", "amount": "zero"},
			message: "Invalid amount",
		},
		{
			name:    "unknown receiver",
			body:    map[string]string{"receiverPaymentId": "ghost@swiftpay", "amount": "10"},
			message: "Receiver payment ID not found",
		},
		{
			name:    "insufficient balance",
			body:    map[string]string{"receiverPaymentId": "bob@swiftpay", "amount": "1000"},
			message: "Insufficient balance",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodPost, "/v1/accounts/"+alice.ID.String()+"/transfers", tt.body, nil)
			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200 with structured failure, got %d", rec.Code)
			}

			var resp struct {
				Success bool   `json:"success"`
				Message string `json:"message"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Success {
				t.Error("expected failure")
			}
			if resp.Message != tt.message {
				t.Errorf("message = %q, want %q", resp.Message, tt.message)
			}
		})
	}

	if len(store.entries) != 0 {
		t.Errorf("failed transfers must not write ledger entries, got %d", len(store.entries))
	}
}

func TestListTransactions_DirectionDerived(t *testing.T) {
	router, store := newTestRouter(t)
	alice := seedAccount(store, "Alice", "alice@swiftpay", "100")
	bob := seedAccount(store, "Bob", "bob@swiftpay", "10")

	rec := doJSON(t, router, http.MethodPost, "/v1/accounts/"+alice.ID.String()+"/transfers", map[string]string{
		"receiverPaymentId": "bob@swiftpay",
		"amount":            "25",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("transfer failed: %d", rec.Code)
	}

	var history struct {
		Transactions []struct {
			Type      string `json:"type"`
			Direction string `json:"direction"`
		} `json:"transactions"`
	}

	rec = doJSON(t, router, http.MethodGet, "/v1/accounts/"+bob.ID.String()+"/transactions", nil, nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &history); err != nil {
		t.Fatalf("failed to decode history: %v", err)
	}
	if len(history.Transactions) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(history.Transactions))
	}
	// Canonical type stays "sent"; Bob's view is "received".
	if history.Transactions[0].Type != "sent" || history.Transactions[0].Direction != "received" {
		t.Errorf("unexpected view: %+v", history.Transactions[0])
	}
}

func TestAdminRoutes_Auth(t *testing.T) {
	router, store := newTestRouter(t)
	account := seedAccount(store, "Alice", "alice@swiftpay", "100")

	rec := doJSON(t, router, http.MethodGet, "/v1/admin/accounts", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without credentials, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/v1/admin/accounts", nil, map[string]string{"X-Admin-Password": "wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with bad credentials, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/v1/admin/accounts", nil, map[string]string{"X-Admin-Password": adminPassword})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with good credentials, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPut, "/v1/admin/accounts/"+account.ID.String()+"/balance",
		map[string]string{"balance": "500.00"},
		map[string]string{"X-Admin-Password": adminPassword})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := store.accounts[account.ID].Balance; !got.Equal(decimal.RequireFromString("500")) {
		t.Errorf("balance = %s, want 500", got)
	}
	if len(store.entries) != 1 || store.entries[0].Type != domain.EntryAdminAdjustment {
		t.Errorf("expected an admin_adjustment audit entry, got %+v", store.entries)
	}
}
