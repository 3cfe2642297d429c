package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrAccountNotFound is returned when an account doesn't exist
	ErrAccountNotFound = errors.New("account not found")

	// ErrInsufficientFunds is returned when the sender doesn't have enough balance
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidAmount is returned when an amount is not a positive value
	// with at most 2 decimal places
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrSameAccount is returned when sender and receiver are the same
	ErrSameAccount = errors.New("sender and receiver must be different accounts")

	// ErrPaymentIDTaken is returned when a payment identifier is already in use
	ErrPaymentIDTaken = errors.New("payment identifier already in use")

	// ErrAccountExists is returned when an account already exists for an identity
	ErrAccountExists = errors.New("account already exists for identity")
)

// WelcomeBonus is credited to every account on first sight of its identity.
var WelcomeBonus = decimal.NewFromInt(30)

// interestRate is the simple daily interest rate (0.1% per elapsed day).
var interestRate = decimal.RequireFromString("0.001")

const oneDay = 24 * time.Hour

// TransferResult is the structured outcome of a transfer attempt. Expected
// validation failures (bad amount, unknown receiver, self-transfer,
// insufficient balance) are reported here with Success=false rather than as
// errors; only storage failures surface as errors.
type TransferResult struct {
	Success bool
	Message string
	Entry   *LedgerEntry // set only on success
}

// WalletService handles the business logic of the wallet: account
// provisioning, balance transfers, interest accrual, history and the admin
// surface. It coordinates between repositories and ensures transactional
// consistency.
type WalletService struct {
	accounts AccountRepository
	ledger   LedgerRepository
	tx       TransactionManager
	// Optional event publisher to emit domain events (e.g. transfer completed)
	events EventPublisher
	logger *slog.Logger

	// now is swappable in tests to control interest accrual windows.
	now func() time.Time
}

// NewWalletService creates a new WalletService.
// Pass nil for events if no events should be emitted.
func NewWalletService(
	accounts AccountRepository,
	ledger LedgerRepository,
	tx TransactionManager,
	events EventPublisher,
	logger *slog.Logger,
) *WalletService {
	if logger == nil {
		logger = slog.Default()
	}
	return &WalletService{
		accounts: accounts,
		ledger:   ledger,
		tx:       tx,
		events:   events,
		logger:   logger,
		now:      time.Now,
	}
}

// GetOrCreateAccount returns the account bound to the given identity,
// creating it on first sight. A new account opens with the welcome bonus as
// its balance and a "bonus" ledger entry; an existing account gets interest
// accrual applied before being returned. The operation is idempotent per
// identity: a second call never duplicates the bonus.
func (s *WalletService) GetOrCreateAccount(ctx context.Context, identity Identity) (*Account, error) {
	if identity.ID == "" {
		return nil, fmt.Errorf("identity id is required")
	}

	account, err := s.accounts.GetByExternalID(ctx, identity.ID)
	if err == nil {
		return s.applyInterest(ctx, account)
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}

	account = NewAccount(identity, WelcomeBonus)

	// Resolve payment id collisions before inserting: a failed insert would
	// abort the surrounding transaction.
	if _, err := s.accounts.GetByPaymentID(ctx, account.PaymentID); err == nil {
		account.PaymentID = disambiguatePaymentID(account.PaymentID, account.ID)
	} else if !errors.Is(err, ErrAccountNotFound) {
		return nil, fmt.Errorf("failed to check payment id: %w", err)
	}

	err = s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.accounts.Create(txCtx, account); err != nil {
			return err
		}
		bonus := s.newEntry(uuid.Nil, account.ID, WelcomeBonus, EntryBonus, "Welcome Bonus", SystemName, account.DisplayName)
		if err := s.ledger.Create(txCtx, bonus); err != nil {
			return fmt.Errorf("failed to record welcome bonus: %w", err)
		}
		return nil
	})
	if err != nil {
		// Lost a race against a concurrent first login for the same
		// identity; the winner's account is the account.
		if errors.Is(err, ErrAccountExists) {
			existing, lookupErr := s.accounts.GetByExternalID(ctx, identity.ID)
			if lookupErr != nil {
				return nil, fmt.Errorf("failed to load existing account: %w", lookupErr)
			}
			return existing, nil
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	s.logger.Info("account created",
		"account_id", account.ID,
		"payment_id", account.PaymentID,
	)
	return account, nil
}

// GetAccount loads an account by id, applying interest accrual the way every
// profile load does.
func (s *WalletService) GetAccount(ctx context.Context, accountID uuid.UUID) (*Account, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return s.applyInterest(ctx, account)
}

// ResolvePaymentID maps a payment identifier to its account.
// Returns ErrAccountNotFound if no account owns the identifier.
func (s *WalletService) ResolvePaymentID(ctx context.Context, paymentID string) (*Account, error) {
	return s.accounts.GetByPaymentID(ctx, paymentID)
}

// Transfer moves amount from the sender to the account owning
// receiverPaymentID.
//
// The transfer is executed atomically within a database transaction:
//  1. Validate amount, resolve receiver, reject self-transfer
//  2. Lock both accounts in deterministic order to prevent deadlocks
//  3. Re-check the sender balance against the locked row
//  4. Debit sender, credit receiver
//  5. Append one canonical "sent" ledger entry
//  6. Commit
//
// Expected failures come back as a TransferResult with Success=false and a
// nil error; only unexpected storage failures return a non-nil error.
func (s *WalletService) Transfer(ctx context.Context, senderID uuid.UUID, receiverPaymentID string, amount decimal.Decimal) (*TransferResult, error) {
	if err := ValidateAmount(amount); err != nil {
		return &TransferResult{Message: "Invalid amount"}, nil
	}

	receiver, err := s.accounts.GetByPaymentID(ctx, receiverPaymentID)
	if errors.Is(err, ErrAccountNotFound) {
		return &TransferResult{Message: "Receiver payment ID not found"}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve receiver: %w", err)
	}
	if receiver.ID == senderID {
		return &TransferResult{Message: "Cannot send money to yourself"}, nil
	}

	var entry *LedgerEntry
	err = s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		sender, recv, err := s.lockPair(txCtx, senderID, receiver.ID)
		if err != nil {
			return err
		}

		// Authoritative balance check against the locked row; the cached
		// balance the caller validated against may be stale.
		if !sender.HasSufficientFunds(amount) {
			return ErrInsufficientFunds
		}

		if err := sender.Debit(amount); err != nil {
			return fmt.Errorf("failed to debit sender: %w", err)
		}
		if err := recv.Credit(amount); err != nil {
			return fmt.Errorf("failed to credit receiver: %w", err)
		}

		if err := s.accounts.Update(txCtx, sender); err != nil {
			return fmt.Errorf("failed to update sender account: %w", err)
		}
		if err := s.accounts.Update(txCtx, recv); err != nil {
			return fmt.Errorf("failed to update receiver account: %w", err)
		}

		entry = s.newEntry(sender.ID, recv.ID, amount, EntrySent, "Transfer", sender.DisplayName, recv.DisplayName)
		if err := s.ledger.Create(txCtx, entry); err != nil {
			return fmt.Errorf("failed to record transfer: %w", err)
		}
		return nil
	})

	switch {
	case err == nil:
	case errors.Is(err, ErrInsufficientFunds):
		return &TransferResult{Message: "Insufficient balance"}, nil
	case errors.Is(err, ErrAccountNotFound):
		// Receiver vanished between resolution and lock.
		return &TransferResult{Message: "Receiver payment ID not found"}, nil
	default:
		return nil, err
	}

	s.publishTransferCompleted(entry)

	s.logger.Info("transfer completed",
		"entry_id", entry.ID,
		"sender_id", senderID,
		"receiver_id", receiver.ID,
		"amount", FormatAmount(amount),
	)
	return &TransferResult{Success: true, Message: "Transfer successful", Entry: entry}, nil
}

// ListHistory returns every ledger entry the account participates in,
// newest first. The full index is returned each call; there is no
// pagination.
func (s *WalletService) ListHistory(ctx context.Context, accountID uuid.UUID) ([]*LedgerEntry, error) {
	entries, err := s.ledger.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	return entries, nil
}

// ListAllAccounts returns every account. Admin surface only.
func (s *WalletService) ListAllAccounts(ctx context.Context) ([]*Account, error) {
	accounts, err := s.accounts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}

// AdjustBalance overrides an account balance to newBalance and records an
// "admin_adjustment" ledger entry carrying the delta, so administrative
// overrides stay auditable.
func (s *WalletService) AdjustBalance(ctx context.Context, accountID uuid.UUID, newBalance decimal.Decimal) (*Account, error) {
	if newBalance.IsNegative() || newBalance.Exponent() < -2 {
		return nil, ErrInvalidAmount
	}

	var account *Account
	err := s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		locked, err := s.accounts.Lock(txCtx, accountID)
		if err != nil {
			return err
		}

		delta := newBalance.Sub(locked.Balance)
		if delta.IsZero() {
			account = locked
			return nil
		}

		note := fmt.Sprintf("Balance adjusted from %s to %s", FormatAmount(locked.Balance), FormatAmount(newBalance))
		locked.Balance = newBalance
		locked.UpdatedAt = s.now()
		if err := s.accounts.Update(txCtx, locked); err != nil {
			return fmt.Errorf("failed to update account: %w", err)
		}

		entry := s.newEntry(uuid.Nil, locked.ID, delta.Abs(), EntryAdminAdjustment, note, SystemName, locked.DisplayName)
		if err := s.ledger.Create(txCtx, entry); err != nil {
			return fmt.Errorf("failed to record adjustment: %w", err)
		}

		account = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("balance adjusted", "account_id", accountID, "balance", FormatAmount(newBalance))
	return account, nil
}

// applyInterest credits simple daily interest on account load: 0.1% of the
// balance per elapsed whole day since the accrual anchor, floored to 2
// decimal places. When the computed interest is zero the anchor stays put,
// so fractional accrual is not lost. The anchor is re-checked under lock so
// concurrent loads of the same account cannot double-pay.
func (s *WalletService) applyInterest(ctx context.Context, account *Account) (*Account, error) {
	now := s.now()
	interest := computeInterest(account.Balance, account.LastInterestAt, now)
	if !interest.IsPositive() {
		return account, nil
	}

	updated := account
	err := s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		locked, err := s.accounts.Lock(txCtx, account.ID)
		if err != nil {
			return err
		}

		// Another load may have accrued already; recompute authoritatively.
		interest = computeInterest(locked.Balance, locked.LastInterestAt, now)
		if !interest.IsPositive() {
			updated = locked
			return nil
		}
		days := daysBetween(locked.LastInterestAt, now)

		if err := locked.Credit(interest); err != nil {
			return fmt.Errorf("failed to credit interest: %w", err)
		}
		locked.LastInterestAt = now
		if err := s.accounts.Update(txCtx, locked); err != nil {
			return fmt.Errorf("failed to update account: %w", err)
		}

		note := fmt.Sprintf("Daily interest for %d day(s)", days)
		entry := s.newEntry(uuid.Nil, locked.ID, interest, EntryInterest, note, SystemName+" Interest", locked.DisplayName)
		if err := s.ledger.Create(txCtx, entry); err != nil {
			return fmt.Errorf("failed to record interest: %w", err)
		}

		updated = locked
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to apply interest: %w", err)
	}
	return updated, nil
}

// computeInterest returns the simple interest accrued between anchor and
// now: balance * 0.001 per elapsed whole day, floored to 2 decimal places.
func computeInterest(balance decimal.Decimal, anchor, now time.Time) decimal.Decimal {
	days := daysBetween(anchor, now)
	if days <= 0 {
		return decimal.Zero
	}
	return balance.Mul(interestRate).Mul(decimal.NewFromInt(days)).RoundDown(2)
}

// daysBetween returns the number of whole days elapsed from anchor to now.
func daysBetween(anchor, now time.Time) int64 {
	elapsed := now.Sub(anchor)
	if elapsed <= 0 {
		return 0
	}
	return int64(elapsed / oneDay)
}

// lockPair locks two accounts in deterministic id order to prevent
// deadlocks between concurrent transfers.
func (s *WalletService) lockPair(ctx context.Context, senderID, receiverID uuid.UUID) (sender, receiver *Account, err error) {
	if senderID.String() < receiverID.String() {
		sender, err = s.accounts.Lock(ctx, senderID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to lock sender account: %w", err)
		}
		receiver, err = s.accounts.Lock(ctx, receiverID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to lock receiver account: %w", err)
		}
	} else {
		receiver, err = s.accounts.Lock(ctx, receiverID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to lock receiver account: %w", err)
		}
		sender, err = s.accounts.Lock(ctx, senderID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to lock sender account: %w", err)
		}
	}
	return sender, receiver, nil
}

// newEntry builds a ledger entry stamped with the service clock.
func (s *WalletService) newEntry(senderID, receiverID uuid.UUID, amount decimal.Decimal, typ EntryType, note, senderName, receiverName string) *LedgerEntry {
	return &LedgerEntry{
		ID:           uuid.New(),
		SenderID:     senderID,
		ReceiverID:   receiverID,
		Amount:       amount,
		Type:         typ,
		Status:       EntryStatusSuccess,
		Note:         note,
		SenderName:   senderName,
		ReceiverName: receiverName,
		CreatedAt:    s.now(),
	}
}

// publishTransferCompleted emits the transfer event after commit
// (best-effort). Publishing happens asynchronously so that transient broker
// failures don't make an already-committed transfer appear to fail.
func (s *WalletService) publishTransferCompleted(entry *LedgerEntry) {
	if s.events == nil {
		return
	}
	go func(e *LedgerEntry) {
		if err := s.events.PublishTransferCompleted(context.Background(), e); err != nil {
			s.logger.Warn("failed to publish transfer completed event", "error", err, "entry_id", e.ID)
		}
	}(entry)
}
