package domain

import (
	"context"

	"github.com/google/uuid"
)

// AccountRepository defines the interface for account data access operations.
// This follows the Repository pattern to abstract data persistence logic.
type AccountRepository interface {
	// GetByID retrieves an account by its unique identifier.
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)

	// GetByExternalID retrieves the account bound to an identity-provider
	// subject. Returns ErrAccountNotFound if no account exists yet.
	GetByExternalID(ctx context.Context, externalID string) (*Account, error)

	// GetByPaymentID resolves a payment identifier to an account via the
	// unique payment_id index. Returns ErrAccountNotFound if absent.
	GetByPaymentID(ctx context.Context, paymentID string) (*Account, error)

	// Create persists a new account. Returns ErrPaymentIDTaken if the
	// payment identifier is already in use.
	Create(ctx context.Context, account *Account) error

	// Update persists changes to an existing account.
	// Typically used to update the balance after a transfer or accrual.
	Update(ctx context.Context, account *Account) error

	// Lock acquires a database lock on the account for the duration of the
	// transaction. Must be called within a transaction context.
	Lock(ctx context.Context, id uuid.UUID) (*Account, error)

	// List returns all accounts, oldest first. Admin surface only.
	List(ctx context.Context) ([]*Account, error)
}

// LedgerRepository defines the interface for ledger entry data access.
// Entries are append-only; there is no update or delete path.
type LedgerRepository interface {
	// Create appends a new entry to the global ledger.
	Create(ctx context.Context, entry *LedgerEntry) error

	// ListByAccount returns every entry the account participates in,
	// as sender or receiver, newest first.
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*LedgerEntry, error)
}

// TransactionManager defines the interface for managing database transactions.
// This abstraction allows the service layer to work with transactions
// without being coupled to a specific database implementation.
type TransactionManager interface {
	// WithTransaction executes the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	// Otherwise, the transaction is committed.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// EventPublisher publishes domain events to external systems (e.g. RabbitMQ).
type EventPublisher interface {
	PublishTransferCompleted(ctx context.Context, entry *LedgerEntry) error
}
