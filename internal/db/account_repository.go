package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/swiftpay/wallet-service/internal/domain"
)

const accountColumns = `id, external_id, display_name, email, avatar_url,
	balance::text, payment_id, created_at, last_interest_at, updated_at`

// AccountRepository implements domain.AccountRepository using PostgreSQL.
type AccountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{
		pool: pool,
	}
}

// GetByID retrieves an account by its unique identifier.
func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return r.queryAccount(ctx, query, id)
}

// GetByExternalID retrieves the account bound to an identity-provider subject.
func (r *AccountRepository) GetByExternalID(ctx context.Context, externalID string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE external_id = $1`
	return r.queryAccount(ctx, query, externalID)
}

// GetByPaymentID resolves a payment identifier via the unique payment_id
// index.
func (r *AccountRepository) GetByPaymentID(ctx context.Context, paymentID string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE payment_id = $1`
	return r.queryAccount(ctx, query, paymentID)
}

// Create persists a new account.
func (r *AccountRepository) Create(ctx context.Context, account *domain.Account) error {
	query := `
		INSERT INTO accounts (
			id, external_id, display_name, email, avatar_url,
			balance, payment_id, created_at, last_interest_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	args := []any{
		account.ID,
		account.ExternalID,
		account.DisplayName,
		account.Email,
		account.AvatarURL,
		account.Balance.StringFixed(2),
		account.PaymentID,
		account.CreatedAt,
		account.LastInterestAt,
		account.UpdatedAt,
	}

	var err error
	if tx := getTx(ctx); tx != nil {
		_, err = tx.Exec(ctx, query, args...)
	} else {
		_, err = r.pool.Exec(ctx, query, args...)
	}

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			switch pgErr.ConstraintName {
			case "accounts_payment_id_key":
				return domain.ErrPaymentIDTaken
			case "accounts_external_id_key":
				return domain.ErrAccountExists
			}
		}
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

// Update persists changes to an existing account.
func (r *AccountRepository) Update(ctx context.Context, account *domain.Account) error {
	query := `
		UPDATE accounts
		SET display_name = $2,
		    email = $3,
		    avatar_url = $4,
		    balance = $5,
		    last_interest_at = $6,
		    updated_at = $7
		WHERE id = $1
	`

	args := []any{
		account.ID,
		account.DisplayName,
		account.Email,
		account.AvatarURL,
		account.Balance.StringFixed(2),
		account.LastInterestAt,
		account.UpdatedAt,
	}

	var result pgconn.CommandTag
	var err error
	if tx := getTx(ctx); tx != nil {
		result, err = tx.Exec(ctx, query, args...)
	} else {
		result, err = r.pool.Exec(ctx, query, args...)
	}

	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}

	return nil
}

// Lock acquires a pessimistic lock on the account for the duration of the
// transaction. This method MUST be called within a transaction context.
// Uses SELECT ... FOR UPDATE to lock the row.
func (r *AccountRepository) Lock(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 FOR UPDATE`
	return r.queryAccount(ctx, query, id)
}

// List returns all accounts, oldest first.
func (r *AccountRepository) List(ctx context.Context) ([]*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY created_at`

	var rows pgx.Rows
	var err error
	if tx := getTx(ctx); tx != nil {
		rows, err = tx.Query(ctx, query)
	} else {
		rows, err = r.pool.Query(ctx, query)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	return accounts, nil
}

// queryAccount runs a single-row account query, preferring the context
// transaction over the pool.
func (r *AccountRepository) queryAccount(ctx context.Context, query string, arg any) (*domain.Account, error) {
	var row pgx.Row
	if tx := getTx(ctx); tx != nil {
		row = tx.QueryRow(ctx, query, arg)
	} else {
		row = r.pool.QueryRow(ctx, query, arg)
	}

	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// scanAccount maps one row onto a domain.Account. The balance travels as
// text to preserve NUMERIC precision end to end.
func scanAccount(row pgx.Row) (*domain.Account, error) {
	var account domain.Account
	var balance string

	err := row.Scan(
		&account.ID,
		&account.ExternalID,
		&account.DisplayName,
		&account.Email,
		&account.AvatarURL,
		&balance,
		&account.PaymentID,
		&account.CreatedAt,
		&account.LastInterestAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	account.Balance, err = decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("failed to parse balance %q: %w", balance, err)
	}
	return &account, nil
}
