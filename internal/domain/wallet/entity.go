package wallet

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cargolink/escrow-api/internal/pkg/money"
)

type TransactionType string

const (
	TypeTopUp       TransactionType = "top_up"
	TypeWithdrawal  TransactionType = "withdrawal"
	TypeTransferOut TransactionType = "transfer_out"
	TypeTransferIn  TransactionType = "transfer_in"
	TypeHold        TransactionType = "hold"
	TypeHoldRelease TransactionType = "hold_release"
	TypeHoldCapture TransactionType = "hold_capture"
	TypeHoldCancel  TransactionType = "hold_cancel"
)

// Direction is the effect an entry has on the stored balance.
type Direction int

const (
	// DirectionNone marks reservation-only entries; they document a hold
	// transition but never move the stored balance.
	DirectionNone Direction = iota
	DirectionCredit
	DirectionDebit
)

func (t TransactionType) Valid() bool {
	switch t {
	case TypeTopUp, TypeWithdrawal, TypeTransferOut, TypeTransferIn,
		TypeHold, TypeHoldRelease, TypeHoldCapture, TypeHoldCancel:
		return true
	}
	return false
}

func ParseTransactionType(raw string) (TransactionType, error) {
	t := TransactionType(raw)
	if !t.Valid() {
		return "", ErrInvalidType
	}
	return t, nil
}

func (t TransactionType) Direction() Direction {
	switch t {
	case TypeTopUp, TypeTransferIn:
		return DirectionCredit
	case TypeWithdrawal, TypeTransferOut, TypeHoldCapture:
		return DirectionDebit
	}
	return DirectionNone
}

// ConsumesAvailable reports whether recording the entry requires free
// (available) funds: every debit, plus the hold reservation itself.
func (t TransactionType) ConsumesAvailable() bool {
	return t.Direction() == DirectionDebit || t == TypeHold
}

// Compensating returns the type written by Reverse.
func (t TransactionType) Compensating() (TransactionType, bool) {
	switch t {
	case TypeTopUp:
		return TypeWithdrawal, true
	case TypeWithdrawal:
		return TypeTopUp, true
	case TypeTransferIn:
		return TypeTransferOut, true
	case TypeTransferOut, TypeHoldCapture:
		return TypeTransferIn, true
	}
	return "", false
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusReversed  Status = "reversed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed, StatusReversed:
		return true
	}
	return false
}

func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", ErrInvalidStatus
	}
	return s, nil
}

// CanTransition is the whole ledger status machine.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusCompleted || to == StatusFailed
	case StatusCompleted:
		return to == StatusReversed
	}
	return false
}

type Wallet struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	OwnerID   uuid.UUID       `db:"owner_id" json:"owner_id"`
	Currency  money.Currency  `db:"currency" json:"currency"`
	Balance   decimal.Decimal `db:"balance" json:"balance"`
	Version   int64           `db:"version" json:"-"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// Balance is always derived from stored rows, never cached.
type Balance struct {
	WalletID  uuid.UUID       `db:"wallet_id" json:"wallet_id"`
	Currency  money.Currency  `db:"currency" json:"currency"`
	Stored    decimal.Decimal `db:"stored" json:"balance"`
	Reserved  decimal.Decimal `db:"reserved" json:"reserved"`
	Available decimal.Decimal `db:"-" json:"available"`
}

// Metadata is free-form context stored as JSONB.
type Metadata map[string]string

func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *Metadata) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("metadata: unsupported scan type")
	}
	return json.Unmarshal(raw, m)
}

// Transaction is an immutable ledger entry. Only Status changes after insert.
type Transaction struct {
	ID                  uuid.UUID       `db:"id" json:"id"`
	WalletID            uuid.UUID       `db:"wallet_id" json:"wallet_id"`
	Type                TransactionType `db:"type" json:"type"`
	Amount              decimal.Decimal `db:"amount" json:"amount"`
	Currency            money.Currency  `db:"currency" json:"currency"`
	Status              Status          `db:"status" json:"status"`
	Reference           string          `db:"reference" json:"reference"`
	RelatedID           *uuid.UUID      `db:"related_id" json:"related_id,omitempty"`
	CounterpartWalletID *uuid.UUID      `db:"counterpart_wallet_id" json:"counterpart_wallet_id,omitempty"`
	Metadata            Metadata        `db:"metadata" json:"metadata,omitempty"`
	CreatedAt           time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time       `db:"updated_at" json:"updated_at"`

	// Replayed is set when the call matched an existing entry by reference.
	Replayed bool `db:"-" json:"-"`
}

// Delta is the signed change this entry applies to the stored balance
// once completed.
func (t *Transaction) Delta() decimal.Decimal {
	switch t.Type.Direction() {
	case DirectionCredit:
		return t.Amount
	case DirectionDebit:
		return t.Amount.Neg()
	}
	return decimal.Zero
}

// EntryParams is everything a caller may set on a new ledger entry.
type EntryParams struct {
	WalletID            uuid.UUID
	Type                TransactionType
	Amount              decimal.Decimal
	Currency            money.Currency // optional; must match the wallet
	Reference           string
	Pending             bool // bank withdrawals start pending
	RelatedID           *uuid.UUID
	CounterpartWalletID *uuid.UUID
	Metadata            Metadata
}

const maxReferenceLen = 255

// NewEntry builds a validated entry. It is the only way entries are created.
func NewEntry(p EntryParams) (*Transaction, error) {
	if p.WalletID == uuid.Nil {
		return nil, ErrWalletNotFound
	}
	if !p.Type.Valid() {
		return nil, ErrInvalidType
	}
	if err := money.ValidateAmount(p.Amount); err != nil {
		return nil, ErrInvalidAmount
	}
	if p.Reference == "" || len(p.Reference) > maxReferenceLen {
		return nil, ErrInvalidReference
	}
	if p.Currency != "" && !p.Currency.Valid() {
		return nil, ErrCurrencyMismatch
	}

	status := StatusCompleted
	if p.Pending {
		if p.Type.Direction() != DirectionDebit {
			return nil, ErrInvalidType
		}
		status = StatusPending
	}

	now := time.Now().UTC()
	return &Transaction{
		ID:                  uuid.New(),
		WalletID:            p.WalletID,
		Type:                p.Type,
		Amount:              p.Amount,
		Currency:            p.Currency,
		Status:              status,
		Reference:           p.Reference,
		RelatedID:           p.RelatedID,
		CounterpartWalletID: p.CounterpartWalletID,
		Metadata:            p.Metadata,
		CreatedAt:           now,
		UpdatedAt:           now,
	}, nil
}

// sameRequest decides whether a stored entry answers a retried request.
func (t *Transaction) sameRequest(other *Transaction) bool {
	return t.WalletID == other.WalletID &&
		t.Type == other.Type &&
		t.Amount.Equal(other.Amount)
}

// ListFilter narrows a transaction history query.
type ListFilter struct {
	Type   TransactionType
	Status Status
	Limit  int
	Offset int
}

func (f *ListFilter) normalize() {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}
