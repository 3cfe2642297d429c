package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SystemName is the display name used for entries credited by the platform
// itself (welcome bonus, interest, admin adjustments). Such entries carry a
// nil sender id.
const SystemName = "SwiftPay"

// PaymentIDSuffix is appended to every derived payment identifier.
const PaymentIDSuffix = "@swiftpay"

// Identity is the opaque handle issued by the external identity provider.
// Only ID is guaranteed to be present.
type Identity struct {
	ID          string
	Email       string
	DisplayName string
	AvatarURL   string
}

// Account represents a user's wallet: identity, balance and the payment
// identifier other users address transfers to.
type Account struct {
	ID             uuid.UUID       // Unique identifier of the account
	ExternalID     string          // Identity-provider subject, unique per account
	DisplayName    string          // Human-readable name shown in ledger entries
	Email          string          // Optional contact email
	AvatarURL      string          // Optional avatar URL
	Balance        decimal.Decimal // Current balance, 2 decimal places
	PaymentID      string          // Human-readable payment identifier (e.g. alice@swiftpay)
	CreatedAt      time.Time       // Timestamp when the account was created
	LastInterestAt time.Time       // Anchor for daily interest accrual
	UpdatedAt      time.Time       // Timestamp of the last account update
}

// EntryType is the canonical classification of a ledger entry. The
// "received" label is never stored; it is derived per viewing account
// (see LedgerEntry.Direction).
type EntryType string

const (
	EntrySent            EntryType = "sent"
	EntryReceived        EntryType = "received"
	EntryBonus           EntryType = "bonus"
	EntryInterest        EntryType = "interest"
	EntryAdminAdjustment EntryType = "admin_adjustment"
)

// EntryStatus represents the outcome recorded on a ledger entry.
type EntryStatus string

const (
	EntryStatusSuccess EntryStatus = "success"
	EntryStatusFailed  EntryStatus = "failed"
	EntryStatusPending EntryStatus = "pending"
)

// LedgerEntry is an immutable record in the global ledger. SenderID is
// uuid.Nil for entries credited by the platform (bonus, interest,
// admin_adjustment).
type LedgerEntry struct {
	ID           uuid.UUID
	SenderID     uuid.UUID // uuid.Nil when the platform is the sender
	ReceiverID   uuid.UUID
	Amount       decimal.Decimal
	Type         EntryType // canonical type, never "received"
	Status       EntryStatus
	Note         string
	SenderName   string
	ReceiverName string
	CreatedAt    time.Time
}

// IsSystem reports whether the entry was credited by the platform rather
// than another account.
func (e *LedgerEntry) IsSystem() bool {
	return e.SenderID == uuid.Nil
}

// Direction returns the entry type from the given account's point of view:
// the canonical type for the sender, "received" for the receiver. The
// canonical record itself stays type-correct always.
func (e *LedgerEntry) Direction(viewer uuid.UUID) EntryType {
	if viewer == e.ReceiverID && viewer != e.SenderID {
		return EntryReceived
	}
	return e.Type
}

// NewAccount creates a new Account for the given identity with the given
// opening balance. The payment identifier is derived from the identity's
// email; uniqueness is enforced by the repository at creation time.
func NewAccount(identity Identity, balance decimal.Decimal) *Account {
	now := time.Now()
	name := identity.DisplayName
	if name == "" {
		name = "User"
	}
	return &Account{
		ID:             uuid.New(),
		ExternalID:     identity.ID,
		DisplayName:    name,
		Email:          identity.Email,
		AvatarURL:      identity.AvatarURL,
		Balance:        balance,
		PaymentID:      DerivePaymentID(identity.Email),
		CreatedAt:      now,
		LastInterestAt: now,
		UpdatedAt:      now,
	}
}

// DerivePaymentID builds a payment identifier from an email address: the
// local part stripped of non-alphanumeric characters, plus the fixed suffix.
// An empty result falls back to "user".
func DerivePaymentID(email string) string {
	local := email
	if i := strings.IndexByte(email, '@'); i >= 0 {
		local = email[:i]
	}
	var b strings.Builder
	for _, r := range local {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	prefix := b.String()
	if prefix == "" {
		prefix = "user"
	}
	return prefix + PaymentIDSuffix
}

// disambiguatePaymentID derives an alternative payment identifier when the
// plain derivation collides with an existing account. The account id supplies
// a stable short disambiguator.
func disambiguatePaymentID(paymentID string, accountID uuid.UUID) string {
	prefix := strings.TrimSuffix(paymentID, PaymentIDSuffix)
	return fmt.Sprintf("%s%s%s", prefix, accountID.String()[:4], PaymentIDSuffix)
}

// Debit subtracts the given amount from the account balance.
// Returns ErrInsufficientFunds if the balance would go negative.
func (a *Account) Debit(amount decimal.Decimal) error {
	if err := ValidateAmount(amount); err != nil {
		return err
	}
	if a.Balance.LessThan(amount) {
		return ErrInsufficientFunds
	}
	a.Balance = a.Balance.Sub(amount)
	a.UpdatedAt = time.Now()
	return nil
}

// Credit adds the given amount to the account balance.
func (a *Account) Credit(amount decimal.Decimal) error {
	if err := ValidateAmount(amount); err != nil {
		return err
	}
	a.Balance = a.Balance.Add(amount)
	a.UpdatedAt = time.Now()
	return nil
}

// HasSufficientFunds checks if the account can cover the given amount.
func (a *Account) HasSufficientFunds(amount decimal.Decimal) bool {
	return a.Balance.GreaterThanOrEqual(amount)
}
