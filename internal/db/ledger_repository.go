package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/swiftpay/wallet-service/internal/domain"
)

// LedgerRepository implements domain.LedgerRepository using PostgreSQL.
// Ledger rows are append-only.
type LedgerRepository struct {
	pool *pgxpool.Pool
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{
		pool: pool,
	}
}

// Create appends a new entry to the global ledger. A nil sender id is
// stored as NULL and marks the platform (SYSTEM) as the sender.
func (r *LedgerRepository) Create(ctx context.Context, entry *domain.LedgerEntry) error {
	query := `
		INSERT INTO ledger_entries (
			id, sender_id, receiver_id, amount,
			entry_type, status, note,
			sender_name, receiver_name, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	var senderID *uuid.UUID
	if entry.SenderID != uuid.Nil {
		senderID = &entry.SenderID
	}

	args := []any{
		entry.ID,
		senderID,
		entry.ReceiverID,
		entry.Amount.StringFixed(2),
		string(entry.Type),
		string(entry.Status),
		entry.Note,
		entry.SenderName,
		entry.ReceiverName,
		entry.CreatedAt,
	}

	var err error
	if tx := getTx(ctx); tx != nil {
		_, err = tx.Exec(ctx, query, args...)
	} else {
		_, err = r.pool.Exec(ctx, query, args...)
	}

	if err != nil {
		return fmt.Errorf("failed to create ledger entry: %w", err)
	}

	return nil
}

// ListByAccount returns every entry the account participates in, as sender
// or receiver, newest first.
func (r *LedgerRepository) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*domain.LedgerEntry, error) {
	query := `
		SELECT id, sender_id, receiver_id, amount::text,
		       entry_type, status, note,
		       sender_name, receiver_name, created_at
		FROM ledger_entries
		WHERE sender_id = $1 OR receiver_id = $1
		ORDER BY created_at DESC, id DESC
	`

	var rows pgx.Rows
	var err error
	if tx := getTx(ctx); tx != nil {
		rows, err = tx.Query(ctx, query, accountID)
	} else {
		rows, err = r.pool.Query(ctx, query, accountID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*domain.LedgerEntry
	for rows.Next() {
		entry, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}

	return entries, nil
}

// scanLedgerEntry maps one row onto a domain.LedgerEntry.
func scanLedgerEntry(row pgx.Row) (*domain.LedgerEntry, error) {
	var entry domain.LedgerEntry
	var senderID *uuid.UUID
	var amount, entryType, status string

	err := row.Scan(
		&entry.ID,
		&senderID,
		&entry.ReceiverID,
		&amount,
		&entryType,
		&status,
		&entry.Note,
		&entry.SenderName,
		&entry.ReceiverName,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
	}

	if senderID != nil {
		entry.SenderID = *senderID
	}
	entry.Type = domain.EntryType(entryType)
	entry.Status = domain.EntryStatus(status)
	entry.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("failed to parse amount %q: %w", amount, err)
	}
	return &entry, nil
}
