package claim

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cargolink/escrow-api/internal/pkg/money"
)

type CreateClaimRequest struct {
	ProjectID string `json:"project_id" validate:"required,uuid"`
	SponsorID string `json:"sponsor_id" validate:"omitempty,uuid"`
	Amount    string `json:"amount" validate:"required,amount"`
	Currency  string `json:"currency" validate:"omitempty,currency"`
	Weight    string `json:"weight" validate:"omitempty,numeric"`
}

// toRequest converts an already validated body.
func (r CreateClaimRequest) toRequest() (CreateRequest, error) {
	out := CreateRequest{ProjectID: uuid.MustParse(r.ProjectID)}
	if r.SponsorID != "" {
		out.SponsorID = uuid.MustParse(r.SponsorID)
	}

	amount, err := money.ParseAmount(r.Amount)
	if err != nil {
		return CreateRequest{}, ErrInvalidAmount
	}
	out.Amount = amount

	if r.Currency != "" {
		if out.Currency, err = money.ParseCurrency(r.Currency); err != nil {
			return CreateRequest{}, ErrInvalidCurrency
		}
	}
	if r.Weight != "" {
		if out.Weight, err = decimal.NewFromString(r.Weight); err != nil {
			return CreateRequest{}, ErrInvalidWeight
		}
	}
	return out, nil
}

type CodeRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

type CancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}
