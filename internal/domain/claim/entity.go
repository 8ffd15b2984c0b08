package claim

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cargolink/escrow-api/internal/pkg/money"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusApproved   Status = "approved"
	StatusPaid       Status = "paid"
	StatusInProgress Status = "in_progress"
	StatusDelivered  Status = "delivered"
	StatusCanceled   Status = "canceled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusPaid, StatusInProgress, StatusDelivered, StatusCanceled:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCanceled
}

func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", ErrInvalidStatus
	}
	return s, nil
}

// Action is a claim lifecycle command.
type Action string

const (
	ActionApprove  Action = "approve"
	ActionMarkPaid Action = "mark_paid"
	ActionStart    Action = "start"
	ActionDeliver  Action = "deliver"
	ActionCancel   Action = "cancel"
)

var transitions = map[Action]map[Status]Status{
	ActionApprove:  {StatusPending: StatusApproved},
	ActionMarkPaid: {StatusApproved: StatusPaid},
	ActionStart:    {StatusPaid: StatusInProgress},
	ActionDeliver:  {StatusInProgress: StatusDelivered},
	ActionCancel: {
		StatusPending:  StatusCanceled,
		StatusApproved: StatusCanceled,
		StatusPaid:     StatusCanceled,
	},
}

// Next returns the status an action leads to, or ErrInvalidTransition.
func Next(from Status, a Action) (Status, error) {
	to, ok := transitions[a][from]
	if !ok {
		return "", ErrInvalidTransition
	}
	return to, nil
}

// Claim is a carrier's request to fulfil a project for an amount paid by
// the sponsor. Code hashes are write-once and never serialized.
type Claim struct {
	ID                   uuid.UUID       `db:"id" json:"id"`
	ProjectID            uuid.UUID       `db:"project_id" json:"project_id"`
	ClaimantID           uuid.UUID       `db:"claimant_id" json:"claimant_id"`
	SponsorID            uuid.UUID       `db:"sponsor_id" json:"sponsor_id"`
	Amount               decimal.Decimal `db:"amount" json:"amount"`
	Currency             money.Currency  `db:"currency" json:"currency"`
	Weight               decimal.Decimal `db:"weight" json:"weight"`
	Status               Status          `db:"status" json:"status"`
	HoldID               *uuid.UUID      `db:"hold_id" json:"hold_id,omitempty"`
	ConfirmationCodeHash sql.NullString  `db:"confirmation_code_hash" json:"-"`
	DeliveryCodeHash     sql.NullString  `db:"delivery_code_hash" json:"-"`
	CanceledReason       sql.NullString  `db:"canceled_reason" json:"-"`
	CreatedAt            time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time       `db:"updated_at" json:"updated_at"`
}

// IsParticipant reports whether the user is the claimant or the sponsor.
func (c *Claim) IsParticipant(userID uuid.UUID) bool {
	return userID != uuid.Nil && (c.ClaimantID == userID || c.SponsorID == userID)
}

// NewClaimParams enumerates the fields a caller may set on creation.
type NewClaimParams struct {
	ProjectID  uuid.UUID
	ClaimantID uuid.UUID
	SponsorID  uuid.UUID
	Amount     decimal.Decimal
	Currency   money.Currency
	Weight     decimal.Decimal
}

func NewClaim(p NewClaimParams) (*Claim, error) {
	if p.ProjectID == uuid.Nil || p.ClaimantID == uuid.Nil || p.SponsorID == uuid.Nil {
		return nil, ErrMissingParty
	}
	if p.ClaimantID == p.SponsorID {
		return nil, ErrSelfSponsored
	}
	if err := money.ValidateAmount(p.Amount); err != nil {
		return nil, ErrInvalidAmount
	}
	if !p.Currency.Valid() {
		return nil, ErrInvalidCurrency
	}
	if p.Weight.IsNegative() || !p.Weight.Equal(p.Weight.Truncate(3)) {
		return nil, ErrInvalidWeight
	}

	now := time.Now().UTC()
	return &Claim{
		ID:         uuid.New(),
		ProjectID:  p.ProjectID,
		ClaimantID: p.ClaimantID,
		SponsorID:  p.SponsorID,
		Amount:     p.Amount,
		Currency:   p.Currency,
		Weight:     p.Weight,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// ListFilter pages through a project's claims. Participant limits the
// result to claims where that user is claimant or sponsor.
type ListFilter struct {
	Participant *uuid.UUID
	Status      Status
	Limit       int
	Offset      int
}

func (f *ListFilter) normalize() {
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}
