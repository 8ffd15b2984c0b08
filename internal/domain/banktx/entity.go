package banktx

import (
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cargolink/escrow-api/internal/pkg/money"
)

type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// BankTransaction is the gateway-facing record of money entering or leaving
// a wallet. TransactionID links the ledger entry it produced.
type BankTransaction struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	WalletID      uuid.UUID       `db:"wallet_id" json:"wallet_id"`
	GatewayRef    string          `db:"gateway_ref" json:"gateway_ref"`
	Direction     Direction       `db:"direction" json:"direction"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	Currency      money.Currency  `db:"currency" json:"currency"`
	Status        Status          `db:"status" json:"status"`
	TransactionID *uuid.UUID      `db:"transaction_id" json:"transaction_id,omitempty"`
	Destination   sql.NullString  `db:"destination" json:"-"`
	FailureReason sql.NullString  `db:"failure_reason" json:"-"`
	Attempts      int             `db:"attempts" json:"attempts"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`

	Replayed bool `db:"-" json:"-"`
}

// IncomingParams describes a deposit the gateway reported.
type IncomingParams struct {
	GatewayRef string
	WalletID   uuid.UUID
	Amount     decimal.Decimal
	Currency   money.Currency
}

// OutgoingParams describes a withdrawal to a bank destination.
type OutgoingParams struct {
	GatewayRef  string
	WalletID    uuid.UUID
	Amount      decimal.Decimal
	Destination string
}

func newIncoming(p IncomingParams, currency money.Currency, transactionID uuid.UUID) *BankTransaction {
	now := time.Now().UTC()
	return &BankTransaction{
		ID:            uuid.New(),
		WalletID:      p.WalletID,
		GatewayRef:    p.GatewayRef,
		Direction:     DirectionIncoming,
		Amount:        p.Amount,
		Currency:      currency,
		Status:        StatusCompleted,
		TransactionID: &transactionID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func newOutgoing(p OutgoingParams, currency money.Currency, transactionID uuid.UUID) *BankTransaction {
	now := time.Now().UTC()
	return &BankTransaction{
		ID:            uuid.New(),
		WalletID:      p.WalletID,
		GatewayRef:    p.GatewayRef,
		Direction:     DirectionOutgoing,
		Amount:        p.Amount,
		Currency:      currency,
		Status:        StatusPending,
		TransactionID: &transactionID,
		Destination:   sql.NullString{String: p.Destination, Valid: true},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func validateRef(ref string) error {
	if strings.TrimSpace(ref) == "" || len(ref) > 200 {
		return ErrInvalidGatewayRef
	}
	return nil
}

func validateAmount(amount decimal.Decimal) error {
	if err := money.ValidateAmount(amount); err != nil {
		return ErrInvalidAmount
	}
	return nil
}

// ledgerReference is the ledger idempotency key for a gateway reference.
func ledgerReference(gatewayRef string) string {
	return "bank:" + gatewayRef
}

func (b *BankTransaction) matches(direction Direction, walletID uuid.UUID, amount decimal.Decimal) bool {
	return b.Direction == direction && b.WalletID == walletID && b.Amount.Equal(amount)
}
