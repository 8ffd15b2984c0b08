package hold

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cargolink/escrow-api/internal/pkg/money"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusReleased Status = "released"
	StatusCaptured Status = "captured"
	StatusCanceled Status = "canceled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusReleased, StatusCaptured, StatusCanceled:
		return true
	}
	return false
}

// Terminal holds accept no further transitions.
func (s Status) Terminal() bool {
	return s == StatusReleased || s == StatusCaptured || s == StatusCanceled
}

func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", ErrInvalidStatus
	}
	return s, nil
}

// Hold reserves part of a wallet's balance for one claim.
type Hold struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	WalletID      uuid.UUID       `db:"wallet_id" json:"wallet_id"`
	ClaimID       uuid.UUID       `db:"claim_id" json:"claim_id"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	Currency      money.Currency  `db:"currency" json:"currency"`
	Status        Status          `db:"status" json:"status"`
	LedgerEntryID uuid.UUID       `db:"ledger_entry_id" json:"ledger_entry_id"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
	SettledAt     *time.Time      `db:"settled_at" json:"settled_at,omitempty"`
}

func newHold(id, walletID, claimID uuid.UUID, amount decimal.Decimal, currency money.Currency, ledgerEntryID uuid.UUID) *Hold {
	now := time.Now().UTC()
	return &Hold{
		ID:            id,
		WalletID:      walletID,
		ClaimID:       claimID,
		Amount:        amount,
		Currency:      currency,
		Status:        StatusPending,
		LedgerEntryID: ledgerEntryID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Ledger references are derived from the hold id so a retried transition
// can never write a second entry.
func reference(holdID uuid.UUID) string        { return "hold:" + holdID.String() }
func releaseReference(holdID uuid.UUID) string { return reference(holdID) + ":release" }
func cancelReference(holdID uuid.UUID) string  { return reference(holdID) + ":cancel" }
func captureReference(holdID uuid.UUID) string { return reference(holdID) + ":capture" }
func creditReference(holdID uuid.UUID) string  { return reference(holdID) + ":capture:in" }
